package vm

import "fmt"

// ---------------------------------------------------------------------------
// Segments: independently typed memory arenas
// ---------------------------------------------------------------------------

// SegmentType tags the payload of a segment.
type SegmentType int

const (
	SegScript SegmentType = iota + 1
	SegLocals
	SegStack
	SegSysStrings
	SegClones
	SegLists
	SegNodes
	SegHunks
	SegDynMem
)

var segmentTypeNames = map[SegmentType]string{
	SegScript:     "script",
	SegLocals:     "locals",
	SegStack:      "stack",
	SegSysStrings: "sys_strings",
	SegClones:     "clones",
	SegLists:      "lists",
	SegNodes:      "nodes",
	SegHunks:      "hunks",
	SegDynMem:     "dynmem",
}

func (t SegmentType) String() string {
	if n, ok := segmentTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("segment(%d)", int(t))
}

// Segment is the capability every segment has. The other capabilities are
// expressed by the optional interfaces below; callers type-assert for them.
type Segment interface {
	Type() SegmentType
	IsValidOffset(off uint16) bool
}

// ByteSegment segments can be read as raw bytes.
type ByteSegment interface {
	Segment
	Bytes(off uint16) ([]byte, error)
}

// RegSegment segments hold arrays of Regs, addressed two bytes per entry.
type RegSegment interface {
	Segment
	Regs(off uint16) ([]Reg, error)
}

// ObjectSegment segments contain object records.
type ObjectSegment interface {
	Segment
	ObjectAt(off uint16) (*Object, bool)
}

// ReferenceLister segments report the addresses reachable from an address
// inside them. The collector uses it to trace the heap.
type ReferenceLister interface {
	Segment
	References(off uint16, fn func(Reg))
}

// EntryFreer segments hold individually collectable entries.
type EntryFreer interface {
	Segment
	LiveOffsets() []uint16
	FreeAt(off uint16) error
}

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// LocalsSegment is one script's local variable block.
type LocalsSegment struct {
	ScriptID int
	Values   []Reg
}

func (l *LocalsSegment) Type() SegmentType { return SegLocals }

func (l *LocalsSegment) IsValidOffset(off uint16) bool {
	return int(off)/2 < len(l.Values)
}

func (l *LocalsSegment) Regs(off uint16) ([]Reg, error) {
	if !l.IsValidOffset(off) {
		return nil, fmt.Errorf("locals offset %#x beyond %d variables", off, len(l.Values))
	}
	return l.Values[off/2:], nil
}

func (l *LocalsSegment) References(_ uint16, fn func(Reg)) {
	for _, v := range l.Values {
		fn(v)
	}
}

// ---------------------------------------------------------------------------
// Data stack
// ---------------------------------------------------------------------------

// StackSegment is the VM's single evaluation and parameter stack.
type StackSegment struct {
	Entries []Reg
}

func (s *StackSegment) Type() SegmentType { return SegStack }

func (s *StackSegment) IsValidOffset(off uint16) bool {
	return int(off)/2 < len(s.Entries)
}

func (s *StackSegment) Regs(off uint16) ([]Reg, error) {
	if !s.IsValidOffset(off) {
		return nil, fmt.Errorf("stack offset %#x beyond %d entries", off, len(s.Entries))
	}
	return s.Entries[off/2:], nil
}

func (s *StackSegment) References(_ uint16, fn func(Reg)) {
	for _, v := range s.Entries {
		fn(v)
	}
}

// ---------------------------------------------------------------------------
// System strings
// ---------------------------------------------------------------------------

// SysStringsMax is the number of system string slots.
const SysStringsMax = 8

// Well-known system string slots.
const (
	SysStringSaveDir = iota
	SysStringParserBase
	SysStringParserResult
)

// SysString is one fixed-size system string slot.
type SysString struct {
	Name    string
	MaxSize int
	Value   []byte
}

// SysStringsSegment holds the VM's fixed system string slots. The offset of
// an address into this segment is the slot number.
type SysStringsSegment struct {
	Strings [SysStringsMax]SysString
}

func (s *SysStringsSegment) Type() SegmentType { return SegSysStrings }

func (s *SysStringsSegment) IsValidOffset(off uint16) bool {
	return int(off) < SysStringsMax && s.Strings[off].Name != ""
}

func (s *SysStringsSegment) Bytes(off uint16) ([]byte, error) {
	if !s.IsValidOffset(off) {
		return nil, fmt.Errorf("no system string in slot %d", off)
	}
	return s.Strings[off].Value, nil
}

// Set stores value into a slot, truncated to the slot's size.
func (s *SysStringsSegment) Set(slot int, name string, maxSize int, value []byte) {
	buf := make([]byte, maxSize)
	copy(buf, value)
	s.Strings[slot] = SysString{Name: name, MaxSize: maxSize, Value: buf}
}

// ---------------------------------------------------------------------------
// Clones
// ---------------------------------------------------------------------------

// CloneTable stores cloned objects; an address's offset is the table index.
type CloneTable struct {
	Table *HeapTable[Object]
}

func (c *CloneTable) Type() SegmentType { return SegClones }

func (c *CloneTable) IsValidOffset(off uint16) bool { return c.Table.IsValid(int(off)) }

func (c *CloneTable) ObjectAt(off uint16) (*Object, bool) { return c.Table.At(int(off)) }

func (c *CloneTable) References(off uint16, fn func(Reg)) {
	obj, ok := c.Table.At(int(off))
	if !ok {
		return
	}
	for _, v := range obj.Variables {
		fn(v)
	}
}

func (c *CloneTable) LiveOffsets() []uint16 { return liveOffsets(c.Table) }

func (c *CloneTable) FreeAt(off uint16) error { return c.Table.Free(int(off)) }

// ---------------------------------------------------------------------------
// Lists and nodes
// ---------------------------------------------------------------------------

// List is the head of a doubly linked list of nodes.
type List struct {
	First Reg
	Last  Reg
}

// Node is one list cell.
type Node struct {
	Pred  Reg
	Succ  Reg
	Key   Reg
	Value Reg
}

// ListTable stores list heads.
type ListTable struct {
	Table *HeapTable[List]
}

func (l *ListTable) Type() SegmentType { return SegLists }

func (l *ListTable) IsValidOffset(off uint16) bool { return l.Table.IsValid(int(off)) }

func (l *ListTable) References(off uint16, fn func(Reg)) {
	if list, ok := l.Table.At(int(off)); ok {
		fn(list.First)
		fn(list.Last)
	}
}

func (l *ListTable) LiveOffsets() []uint16 { return liveOffsets(l.Table) }

func (l *ListTable) FreeAt(off uint16) error { return l.Table.Free(int(off)) }

// NodeTable stores list nodes.
type NodeTable struct {
	Table *HeapTable[Node]
}

func (n *NodeTable) Type() SegmentType { return SegNodes }

func (n *NodeTable) IsValidOffset(off uint16) bool { return n.Table.IsValid(int(off)) }

func (n *NodeTable) References(off uint16, fn func(Reg)) {
	if node, ok := n.Table.At(int(off)); ok {
		fn(node.Pred)
		fn(node.Succ)
		fn(node.Key)
		fn(node.Value)
	}
}

func (n *NodeTable) LiveOffsets() []uint16 { return liveOffsets(n.Table) }

func (n *NodeTable) FreeAt(off uint16) error { return n.Table.Free(int(off)) }

// ---------------------------------------------------------------------------
// Hunks and dynamic memory
// ---------------------------------------------------------------------------

// Hunk is an opaque named buffer owned by kernel code.
type Hunk struct {
	Type string
	Mem  []byte
}

// HunkTable stores hunks. Hunks are freed explicitly, never by the collector.
type HunkTable struct {
	Table *HeapTable[Hunk]
}

func (h *HunkTable) Type() SegmentType { return SegHunks }

func (h *HunkTable) IsValidOffset(off uint16) bool { return h.Table.IsValid(int(off)) }

func (h *HunkTable) Bytes(off uint16) ([]byte, error) {
	hunk, ok := h.Table.At(int(off))
	if !ok {
		return nil, fmt.Errorf("no hunk at index %d", off)
	}
	return hunk.Mem, nil
}

// DynMemSegment is a free-form byte buffer.
type DynMemSegment struct {
	Description string
	Buf         []byte
}

func (d *DynMemSegment) Type() SegmentType { return SegDynMem }

func (d *DynMemSegment) IsValidOffset(off uint16) bool { return int(off) < len(d.Buf) }

func (d *DynMemSegment) Bytes(off uint16) ([]byte, error) {
	if !d.IsValidOffset(off) {
		return nil, fmt.Errorf("dynmem offset %#x beyond %d bytes", off, len(d.Buf))
	}
	return d.Buf[off:], nil
}

func liveOffsets[T any](t *HeapTable[T]) []uint16 {
	var offs []uint16
	t.ForEachValid(func(i int, _ *T) {
		offs = append(offs, uint16(i))
	})
	return offs
}
