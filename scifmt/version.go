// Package scifmt describes the binary layout of compiled game scripts.
//
// Script resources come in several format generations. Everything that
// differs between them (where an object's magic word sits, which variable
// slot holds the species, whether code and heap live in separate resources)
// is collected in a single version-indexed Layout table. Loaders look the
// layout up once and never hard-code offsets.
package scifmt

import (
	"encoding/binary"
	"fmt"
)

// Version identifies a script format generation.
type Version int

const (
	VersionUnknown Version = iota

	// VersionSCI0Early scripts start with a word giving the number of
	// local variables instead of a local variable block, and use the low
	// bit of a selector as a read/write toggle.
	VersionSCI0Early

	// VersionSCI0 scripts are a sequence of typed blocks.
	VersionSCI0

	// VersionSCI11 splits a script into a code resource and a heap resource.
	VersionSCI11
)

func (v Version) String() string {
	switch v {
	case VersionSCI0Early:
		return "sci0-early"
	case VersionSCI0:
		return "sci0"
	case VersionSCI11:
		return "sci1.1"
	default:
		return "unknown"
	}
}

// ParseVersion maps a version name as printed by String back to a Version.
func ParseVersion(name string) (Version, error) {
	for _, v := range []Version{VersionSCI0Early, VersionSCI0, VersionSCI11} {
		if v.String() == name {
			return v, nil
		}
	}
	return VersionUnknown, fmt.Errorf("scifmt: unknown script version %q", name)
}

// ObjectMagic is the word every object record carries at Layout.MagicOffset.
const ObjectMagic uint16 = 0x1234

// NoClass marks an absent species or superclass in raw object records.
const NoClass uint16 = 0xffff

// Info selector bits.
const (
	InfoClone uint16 = 0x0001
	InfoClass uint16 = 0x8000
)

// Layout holds every version-dependent offset of the object record format.
// Byte offsets are relative to the object's position (the address the class
// table and the VM use for the object).
type Layout struct {
	Version Version

	// HeaderPrefix is the number of bytes preceding the first block.
	HeaderPrefix int

	MagicOffset           int
	LocalVarPtrOffset     int
	FunctAreaPtrOffset    int
	SelectorCounterOffset int

	// ExportTableOffset locates the export count: relative to the export
	// block's data, or to the start of the script resource for split heaps.
	ExportTableOffset int

	// Heap resource header of split-heap scripts; -1 elsewhere.
	HeapRelocTableOffset  int
	HeapLocalsCountOffset int
	HeapLocalsOffset      int

	// Variable indices of the well-known header variables.
	SpeciesSelector    int
	SuperclassSelector int
	InfoSelector       int
	NameSelector       int

	// PropDictSelector and MethDictSelector are the variable indices that
	// hold dictionary offsets in split-heap scripts, or -1.
	PropDictSelector int
	MethDictSelector int

	// HeaderVars is the number of leading variables that are not
	// user-visible properties.
	HeaderVars int

	SplitHeap        bool
	SelectorRWToggle bool
}

var layouts = [...]Layout{
	VersionSCI0Early: {
		Version:               VersionSCI0Early,
		HeaderPrefix:          2,
		MagicOffset:           -8,
		LocalVarPtrOffset:     -6,
		FunctAreaPtrOffset:    -4,
		SelectorCounterOffset: -2,
		ExportTableOffset:     0,
		HeapRelocTableOffset:  -1,
		HeapLocalsCountOffset: -1,
		HeapLocalsOffset:      -1,
		SpeciesSelector:       0,
		SuperclassSelector:    1,
		InfoSelector:          2,
		NameSelector:          3,
		PropDictSelector:      -1,
		MethDictSelector:      -1,
		HeaderVars:            4,
		SelectorRWToggle:      true,
	},
	VersionSCI0: {
		Version:               VersionSCI0,
		MagicOffset:           -8,
		LocalVarPtrOffset:     -6,
		FunctAreaPtrOffset:    -4,
		SelectorCounterOffset: -2,
		ExportTableOffset:     0,
		HeapRelocTableOffset:  -1,
		HeapLocalsCountOffset: -1,
		HeapLocalsOffset:      -1,
		SpeciesSelector:       0,
		SuperclassSelector:    1,
		InfoSelector:          2,
		NameSelector:          3,
		PropDictSelector:      -1,
		MethDictSelector:      -1,
		HeaderVars:            4,
	},
	VersionSCI11: {
		Version:               VersionSCI11,
		MagicOffset:           0,
		LocalVarPtrOffset:     -1,
		FunctAreaPtrOffset:    6,
		SelectorCounterOffset: 2,
		ExportTableOffset:     6,
		HeapRelocTableOffset:  0,
		HeapLocalsCountOffset: 2,
		HeapLocalsOffset:      4,
		SpeciesSelector:       5,
		SuperclassSelector:    6,
		InfoSelector:          7,
		NameSelector:          8,
		PropDictSelector:      2,
		MethDictSelector:      3,
		HeaderVars:            9,
		SplitHeap:             true,
	},
}

// LayoutFor returns the object layout of a format version.
func LayoutFor(v Version) (Layout, error) {
	if v <= VersionUnknown || int(v) >= len(layouts) {
		return Layout{}, fmt.Errorf("scifmt: unsupported script version %d", int(v))
	}
	return layouts[v], nil
}

// Word reads a little-endian 16-bit word. Out-of-range reads return 0, false.
func Word(buf []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(buf[off:]), true
}

// PutWord writes a little-endian 16-bit word.
func PutWord(buf []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(buf[off:], v)
}
