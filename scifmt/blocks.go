package scifmt

import (
	"errors"
	"fmt"
)

// BlockType tags a block of a block-structured script.
type BlockType uint16

const (
	BlockEnd         BlockType = 0
	BlockObject      BlockType = 1
	BlockCode        BlockType = 2
	BlockSynonyms    BlockType = 3
	BlockSaid        BlockType = 4
	BlockStrings     BlockType = 5
	BlockClass       BlockType = 6
	BlockExports     BlockType = 7
	BlockPointers    BlockType = 8
	BlockPreloadText BlockType = 9
	BlockLocalVars   BlockType = 10
)

var blockNames = map[BlockType]string{
	BlockEnd:         "end",
	BlockObject:      "object",
	BlockCode:        "code",
	BlockSynonyms:    "synonyms",
	BlockSaid:        "said",
	BlockStrings:     "strings",
	BlockClass:       "class",
	BlockExports:     "exports",
	BlockPointers:    "pointers",
	BlockPreloadText: "preload-text",
	BlockLocalVars:   "localvars",
}

func (t BlockType) String() string {
	if n, ok := blockNames[t]; ok {
		return n
	}
	return fmt.Sprintf("block(%d)", uint16(t))
}

// BlockHeaderSize is the size of a block's type and length words.
const BlockHeaderSize = 4

// ErrTruncated is returned when a block or record runs past its buffer.
var ErrTruncated = errors.New("scifmt: truncated script")

// Block is one typed block of a block-structured script.
type Block struct {
	Type   BlockType
	Offset int // offset of the block header within the script
	Data   []byte
}

// DataOffset returns the script offset of the first data byte.
func (b Block) DataOffset() int {
	return b.Offset + BlockHeaderSize
}

// Blocks walks the blocks of a block-structured script. The walk stops at an
// end block or at the end of the buffer.
func Blocks(buf []byte, layout Layout) ([]Block, error) {
	if layout.SplitHeap {
		return nil, fmt.Errorf("scifmt: %s scripts are not block structured", layout.Version)
	}
	var blocks []Block
	off := layout.HeaderPrefix
	for off+2 <= len(buf) {
		typ, _ := Word(buf, off)
		if BlockType(typ) == BlockEnd {
			break
		}
		length, ok := Word(buf, off+2)
		if !ok {
			return nil, fmt.Errorf("%w: block header at %#x", ErrTruncated, off)
		}
		if int(length) < BlockHeaderSize || off+int(length) > len(buf) {
			return nil, fmt.Errorf("%w: %s block at %#x claims %d bytes", ErrTruncated, BlockType(typ), off, length)
		}
		blocks = append(blocks, Block{
			Type:   BlockType(typ),
			Offset: off,
			Data:   buf[off+BlockHeaderSize : off+int(length)],
		})
		off += int(length)
	}
	return blocks, nil
}
