package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// SegManager: owns every segment and hands out segment ids
// ---------------------------------------------------------------------------

// Initial sizes and growth increments of the entry tables.
const (
	cloneTableInitial = 16
	listTableInitial  = 8
	nodeTableInitial  = 32
	hunkTableInitial  = 4
	tableIncrement    = 16
)

// SegManager owns all segments. Segment id 0 is reserved for plain integers
// and is never handed out.
type SegManager struct {
	segments    []Segment
	freeIDs     []uint16
	scriptToSeg map[int]uint16

	stackSeg      uint16
	sysStringsSeg uint16
	clonesSeg     uint16
	listsSeg      uint16
	nodesSeg      uint16
	hunksSeg      uint16
}

// NewSegManager creates an empty segment manager.
func NewSegManager() *SegManager {
	return &SegManager{
		segments:    []Segment{nil},
		scriptToSeg: make(map[int]uint16),
	}
}

func (sm *SegManager) allocate(seg Segment) uint16 {
	if n := len(sm.freeIDs); n > 0 {
		id := sm.freeIDs[n-1]
		sm.freeIDs = sm.freeIDs[:n-1]
		sm.segments[id] = seg
		return id
	}
	sm.segments = append(sm.segments, seg)
	return uint16(len(sm.segments) - 1)
}

// Deallocate frees a segment and makes its id available for reuse.
func (sm *SegManager) Deallocate(id uint16) error {
	if !sm.IsLive(id) {
		return &IntegrityError{Table: "segments", Index: int(id), Op: "deallocate"}
	}
	if s, ok := sm.segments[id].(*Script); ok {
		delete(sm.scriptToSeg, s.Number)
	}
	for _, fixed := range []*uint16{&sm.stackSeg, &sm.sysStringsSeg, &sm.clonesSeg, &sm.listsSeg, &sm.nodesSeg, &sm.hunksSeg} {
		if *fixed == id {
			*fixed = 0
		}
	}
	sm.segments[id] = nil
	sm.freeIDs = append(sm.freeIDs, id)
	return nil
}

// IsLive reports whether id names a resident segment.
func (sm *SegManager) IsLive(id uint16) bool {
	return id != 0 && int(id) < len(sm.segments) && sm.segments[id] != nil
}

// Segment returns the segment with the given id.
func (sm *SegManager) Segment(id uint16) (Segment, bool) {
	if !sm.IsLive(id) {
		return nil, false
	}
	return sm.segments[id], true
}

// LiveSegments returns the ids of all resident segments in ascending order.
func (sm *SegManager) LiveSegments() []uint16 {
	var ids []uint16
	for id := 1; id < len(sm.segments); id++ {
		if sm.segments[id] != nil {
			ids = append(ids, uint16(id))
		}
	}
	return ids
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// AllocateScript registers a script segment.
func (sm *SegManager) AllocateScript(s *Script) uint16 {
	id := sm.allocate(s)
	sm.scriptToSeg[s.Number] = id
	return id
}

// AllocateLocals creates the locals segment of a script.
func (sm *SegManager) AllocateLocals(scriptNr, count int) (uint16, *LocalsSegment) {
	l := &LocalsSegment{ScriptID: scriptNr, Values: make([]Reg, count)}
	return sm.allocate(l), l
}

// AllocateStack creates the data stack. There is only one.
func (sm *SegManager) AllocateStack(size int) (uint16, *StackSegment) {
	s := &StackSegment{Entries: make([]Reg, size)}
	sm.stackSeg = sm.allocate(s)
	return sm.stackSeg, s
}

// AllocateSysStrings creates the system strings segment.
func (sm *SegManager) AllocateSysStrings() (uint16, *SysStringsSegment) {
	s := &SysStringsSegment{}
	sm.sysStringsSeg = sm.allocate(s)
	return sm.sysStringsSeg, s
}

// AllocateDynMem creates a free-form byte segment.
func (sm *SegManager) AllocateDynMem(size int, description string) (uint16, *DynMemSegment) {
	d := &DynMemSegment{Description: description, Buf: make([]byte, size)}
	return sm.allocate(d), d
}

// Clones returns the clone table, creating it on first use.
func (sm *SegManager) Clones() (uint16, *CloneTable) {
	if sm.clonesSeg == 0 {
		sm.clonesSeg = sm.allocate(&CloneTable{Table: NewHeapTable[Object]("clones", cloneTableInitial, tableIncrement)})
	}
	return sm.clonesSeg, sm.segments[sm.clonesSeg].(*CloneTable)
}

// Lists returns the list table, creating it on first use.
func (sm *SegManager) Lists() (uint16, *ListTable) {
	if sm.listsSeg == 0 {
		sm.listsSeg = sm.allocate(&ListTable{Table: NewHeapTable[List]("lists", listTableInitial, tableIncrement)})
	}
	return sm.listsSeg, sm.segments[sm.listsSeg].(*ListTable)
}

// Nodes returns the node table, creating it on first use.
func (sm *SegManager) Nodes() (uint16, *NodeTable) {
	if sm.nodesSeg == 0 {
		sm.nodesSeg = sm.allocate(&NodeTable{Table: NewHeapTable[Node]("nodes", nodeTableInitial, tableIncrement)})
	}
	return sm.nodesSeg, sm.segments[sm.nodesSeg].(*NodeTable)
}

// Hunks returns the hunk table, creating it on first use.
func (sm *SegManager) Hunks() (uint16, *HunkTable) {
	if sm.hunksSeg == 0 {
		sm.hunksSeg = sm.allocate(&HunkTable{Table: NewHeapTable[Hunk]("hunks", hunkTableInitial, tableIncrement)})
	}
	return sm.hunksSeg, sm.segments[sm.hunksSeg].(*HunkTable)
}

// StackSegmentID returns the id of the data stack, or 0 before it exists.
func (sm *SegManager) StackSegmentID() uint16 { return sm.stackSeg }

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve returns the segment an address lives in, checking the offset.
func (sm *SegManager) Resolve(r Reg) (Segment, error) {
	if r.Segment == 0 {
		return nil, &AddressError{Addr: r, Reason: "integer, not an address"}
	}
	seg, ok := sm.Segment(r.Segment)
	if !ok {
		return nil, &AddressError{Addr: r, Reason: "stale or unknown segment"}
	}
	if !seg.IsValidOffset(r.Offset) {
		return nil, &AddressError{Addr: r, Reason: fmt.Sprintf("offset out of %s segment bounds", seg.Type())}
	}
	return seg, nil
}

// Bytes dereferences a byte-addressable location.
func (sm *SegManager) Bytes(r Reg) ([]byte, error) {
	seg, err := sm.Resolve(r)
	if err != nil {
		return nil, err
	}
	bs, ok := seg.(ByteSegment)
	if !ok {
		return nil, &AddressError{Addr: r, Reason: fmt.Sprintf("%s segment is not byte addressable", seg.Type())}
	}
	return bs.Bytes(r.Offset)
}

// Regs dereferences a location holding Regs.
func (sm *SegManager) Regs(r Reg) ([]Reg, error) {
	seg, err := sm.Resolve(r)
	if err != nil {
		return nil, err
	}
	rs, ok := seg.(RegSegment)
	if !ok {
		return nil, &AddressError{Addr: r, Reason: fmt.Sprintf("%s segment does not hold values", seg.Type())}
	}
	return rs.Regs(r.Offset)
}

// Object returns the object at an address.
func (sm *SegManager) Object(r Reg) (*Object, error) {
	seg, err := sm.Resolve(r)
	if err != nil {
		return nil, err
	}
	os, ok := seg.(ObjectSegment)
	if !ok {
		return nil, &AddressError{Addr: r, Reason: fmt.Sprintf("%s segment holds no objects", seg.Type())}
	}
	obj, ok := os.ObjectAt(r.Offset)
	if !ok {
		return nil, &AddressError{Addr: r, Reason: "no object at offset"}
	}
	return obj, nil
}

// ScriptSegment returns the segment id of a resident script, or 0.
func (sm *SegManager) ScriptSegment(nr int) uint16 {
	return sm.scriptToSeg[nr]
}

// ScriptByNumber returns a resident script.
func (sm *SegManager) ScriptByNumber(nr int) (*Script, bool) {
	id, ok := sm.scriptToSeg[nr]
	if !ok {
		return nil, false
	}
	s, ok := sm.segments[id].(*Script)
	return s, ok
}

// Script returns the script in segment id.
func (sm *SegManager) Script(id uint16) (*Script, bool) {
	seg, ok := sm.Segment(id)
	if !ok {
		return nil, false
	}
	s, ok := seg.(*Script)
	return s, ok
}

// Scripts returns all resident scripts ordered by number.
func (sm *SegManager) Scripts() []*Script {
	var out []*Script
	for _, id := range sm.scriptToSeg {
		if s, ok := sm.segments[id].(*Script); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
