package vm

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Garbage collection
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection.
type GCStats struct {
	Visited       int
	Clones        int
	Lists         int
	Nodes         int
	Scripts       int
	SweepDuration time.Duration
	Timestamp     time.Time
}

// TotalSwept returns the number of entries and scripts freed.
func (s GCStats) TotalSwept() int {
	return s.Clones + s.Lists + s.Nodes + s.Scripts
}

func (s GCStats) String() string {
	return fmt.Sprintf("visited %d, freed %d clones %d lists %d nodes %d scripts in %s",
		s.Visited, s.Clones, s.Lists, s.Nodes, s.Scripts, s.SweepDuration)
}

// RunGC collects unreachable clones, lists and nodes, and frees scripts
// awaiting deletion that no frame uses. Marking starts from the execution
// stack, the live part of the data stack, the accumulator, the game object,
// the class table and every locked script. Hunks and dynamic memory are
// owned by kernel code and never collected.
func (e *EngineState) RunGC() GCStats {
	start := time.Now()
	stats := GCStats{Timestamp: start}

	visited := NewHashIndexMap[Reg](RegHasher{})
	var work []Reg
	mark := func(r Reg) {
		if r.IsInteger() {
			return
		}
		work = append(work, r)
	}

	for _, f := range e.Stack.Frames() {
		mark(f.CalledObject)
		mark(f.SendTarget)
		mark(f.PC)
		mark(f.VarObject)
		if f.LocalsSegment != 0 {
			mark(MakeReg(f.LocalsSegment, 0))
		}
	}
	for _, r := range e.data.Entries[:e.liveStackTop()] {
		mark(r)
	}
	mark(e.Acc)
	mark(e.GameObject)
	for _, c := range e.Classes.Entries() {
		mark(c.Reg)
	}
	for _, s := range e.Segs.Scripts() {
		if s.Lockers > 0 {
			mark(MakeReg(e.Segs.ScriptSegment(s.Number), 0))
		}
	}

	for len(work) > 0 {
		r := work[len(work)-1]
		work = work[:len(work)-1]
		seg, ok := e.Segs.Segment(r.Segment)
		if !ok {
			continue
		}
		key := r
		switch seg.Type() {
		case SegScript, SegLocals, SegStack, SegSysStrings, SegDynMem:
			// whole-segment granularity
			key = MakeReg(r.Segment, 0)
		}
		if _, isNew := visited.CheckValue(key, true); !isNew {
			continue
		}
		if rl, ok := seg.(ReferenceLister); ok {
			rl.References(r.Offset, mark)
		}
	}
	stats.Visited = visited.Len()

	for _, id := range e.Segs.LiveSegments() {
		seg, _ := e.Segs.Segment(id)
		freer, ok := seg.(EntryFreer)
		if !ok {
			continue
		}
		for _, off := range freer.LiveOffsets() {
			if vid, _ := visited.CheckValue(MakeReg(id, off), false); vid >= 0 {
				continue
			}
			var err error
			switch t := seg.(type) {
			case *CloneTable:
				err = e.freeClone(t, off)
				stats.Clones++
			case *ListTable:
				err = freer.FreeAt(off)
				stats.Lists++
			case *NodeTable:
				err = freer.FreeAt(off)
				stats.Nodes++
			}
			if err != nil {
				e.log.Errorf("gc: freeing %s: %s", MakeReg(id, off), err)
			}
		}
	}

	before := len(e.deferred)
	if err := e.recheckDeferred(); err != nil {
		e.log.Errorf("gc: deferred script deletion: %s", err)
	}
	stats.Scripts = before - len(e.deferred)
	if stats.Scripts < 0 {
		stats.Scripts = 0
	}
	stats.SweepDuration = time.Since(start)
	return stats
}

// liveStackTop returns the index above the highest data stack entry in use.
func (e *EngineState) liveStackTop() int {
	top := 0
	for _, f := range e.Stack.Frames() {
		if f.SP > top {
			top = f.SP
		}
		if end := f.ArgP + f.ArgC + 1; end > top {
			top = end
		}
	}
	if top > len(e.data.Entries) {
		top = len(e.data.Entries)
	}
	return top
}
