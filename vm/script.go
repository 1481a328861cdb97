package vm

import (
	"fmt"

	"github.com/chazu/sciv/scifmt"
)

// CodeBlock is a range of a script holding bytecode.
type CodeBlock struct {
	Offset int
	Size   int
}

// ScriptClass records a class defined by a script.
type ScriptClass struct {
	Species int
	Offset  uint16
}

// Script is a loaded script segment: the raw script bytes (followed by the
// heap bytes for split-heap formats) plus everything parsed out of them.
type Script struct {
	Number    int
	Version   scifmt.Version
	Buf       []byte
	HeapStart int

	Exports  []uint16
	Synonyms []scifmt.Synonym
	Objects  []Object

	// objIndex maps an object's offset to its index in Objects.
	objIndex *HashIndexMap[int]

	LocalsSegment uint16
	LocalsOffset  int
	LocalsCount   int

	// Lockers counts the contexts that need the script resident.
	Lockers int

	CodeBlocks []CodeBlock

	// Classes lists the classes the script defines.
	Classes []ScriptClass

	// Dependencies lists the other scripts this one instantiated because
	// they provide a species or superclass of one of its objects.
	Dependencies []int

	Relocated         bool
	MarkedForDeletion bool
}

func newScript(nr int, v scifmt.Version) *Script {
	return &Script{
		Number:   nr,
		Version:  v,
		objIndex: NewHashIndexMap[int](IntHasher{}),
	}
}

func (s *Script) Type() SegmentType { return SegScript }

func (s *Script) IsValidOffset(off uint16) bool { return int(off) < len(s.Buf) }

func (s *Script) Bytes(off uint16) ([]byte, error) {
	if !s.IsValidOffset(off) {
		return nil, fmt.Errorf("script %03d offset %#x beyond %d bytes", s.Number, off, len(s.Buf))
	}
	return s.Buf[off:], nil
}

// ObjectAt returns the object positioned at off.
func (s *Script) ObjectAt(off uint16) (*Object, bool) {
	idx, _ := s.objIndex.CheckValue(int(off), false)
	if idx < 0 || idx >= len(s.Objects) {
		return nil, false
	}
	return &s.Objects[idx], true
}

// addObject registers a parsed object under its offset.
func (s *Script) addObject(obj Object) *Object {
	idx, wasNew := s.objIndex.CheckValue(int(obj.Pos.Offset), true)
	if !wasNew {
		s.Objects[idx] = obj
		return &s.Objects[idx]
	}
	s.Objects = append(s.Objects, obj)
	return &s.Objects[idx]
}

// References reports everything a resident script keeps alive: the
// variables of all its objects and its locals block.
func (s *Script) References(_ uint16, fn func(Reg)) {
	for i := range s.Objects {
		for _, v := range s.Objects[i].Variables {
			fn(v)
		}
	}
	if s.LocalsSegment != 0 {
		fn(MakeReg(s.LocalsSegment, 0))
	}
}

// exportAt returns the raw value of an export table entry.
func (s *Script) exportAt(idx int) (uint16, bool) {
	if idx < 0 || idx >= len(s.Exports) {
		return 0, false
	}
	return s.Exports[idx], true
}

func (s *Script) hasDependency(nr int) bool {
	for _, d := range s.Dependencies {
		if d == nr {
			return true
		}
	}
	return false
}

func (s *Script) addDependency(nr int) {
	if nr == s.Number || s.hasDependency(nr) {
		return
	}
	s.Dependencies = append(s.Dependencies, nr)
}
