package vm

import (
	"fmt"

	"github.com/chazu/sciv/scifmt"
)

// CloneObject copies the object at addr into the clone table. The clone gets
// its own variables, loses the class bit and gains the clone bit. Cloning a
// class makes the class the clone's species and superclass. The clone holds a
// locker on the script containing its methods until it is disposed.
func (e *EngineState) CloneObject(addr Reg) (Reg, error) {
	src, err := e.Segs.Object(addr)
	if err != nil {
		return NullReg, err
	}
	seg, clones := e.Segs.Clones()
	idx, slot := clones.Table.Allocate()
	if idx > 0xffff {
		_ = clones.Table.Free(idx)
		return NullReg, fmt.Errorf("clone table full")
	}
	clone := src.copyObject()
	clone.Pos = MakeReg(seg, uint16(idx))
	if src.IsClass() {
		l := clone.layout()
		clone.Variables[l.SpeciesSelector] = addr
		clone.Variables[l.SuperclassSelector] = addr
	}
	clone.setInfo((src.Info() &^ scifmt.InfoClass) | scifmt.InfoClone)
	if s, ok := e.Segs.Script(clone.CodeSegment); ok && !s.MarkedForDeletion {
		s.Lockers++
		clone.Flags |= ObjectFlagLocksScript
	}
	*slot = clone
	return clone.Pos, nil
}

// DisposeClone frees a clone immediately.
func (e *EngineState) DisposeClone(addr Reg) error {
	seg, ok := e.Segs.Segment(addr.Segment)
	if !ok {
		return &AddressError{Addr: addr, Reason: "stale or unknown segment"}
	}
	clones, ok := seg.(*CloneTable)
	if !ok {
		return &AddressError{Addr: addr, Reason: fmt.Sprintf("%s segment holds no clones", seg.Type())}
	}
	return e.freeClone(clones, addr.Offset)
}

func (e *EngineState) freeClone(clones *CloneTable, off uint16) error {
	obj, ok := clones.Table.At(int(off))
	if !ok {
		return e.fatal(&IntegrityError{Table: "clones", Index: int(off), Op: "free"})
	}
	flags, codeSeg := obj.Flags, obj.CodeSegment
	if err := clones.Table.Free(int(off)); err != nil {
		return e.fatal(err)
	}
	if flags&ObjectFlagLocksScript == 0 {
		return nil
	}
	if s, ok := e.Segs.Script(codeSeg); ok && !s.MarkedForDeletion {
		return e.Uninstantiate(s.Number)
	}
	return nil
}
