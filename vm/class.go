package vm

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// ---------------------------------------------------------------------------
// ClassTable: species id -> defining script and class address
// ---------------------------------------------------------------------------

// DefaultMaxClasses bounds the class table when no limit is configured.
const DefaultMaxClasses = 1024

// ClassEntry is one class table slot. Script is -1 when no script defines
// the class; Reg is NullReg while the defining script is not resident.
type ClassEntry struct {
	Script int
	Reg    Reg
}

// ClassTable gives O(1) species id to class lookup without walking scripts.
type ClassTable struct {
	entries []ClassEntry
	max     int
}

// NewClassTable creates an empty class table bounded at max entries.
func NewClassTable(max int) *ClassTable {
	if max <= 0 {
		max = DefaultMaxClasses
	}
	return &ClassTable{max: max}
}

func (ct *ClassTable) grow(species int) error {
	if species < 0 || species >= ct.max {
		return fmt.Errorf("class %d outside class table bounds [0,%d)", species, ct.max)
	}
	for len(ct.entries) <= species {
		ct.entries = append(ct.entries, ClassEntry{Script: -1})
	}
	return nil
}

// Register records which script defines a class.
func (ct *ClassTable) Register(species, script int) error {
	if err := ct.grow(species); err != nil {
		return err
	}
	ct.entries[species].Script = script
	return nil
}

// setAddress records where a resident class lives.
func (ct *ClassTable) setAddress(species, script int, addr Reg) error {
	if err := ct.grow(species); err != nil {
		return err
	}
	ct.entries[species] = ClassEntry{Script: script, Reg: addr}
	return nil
}

// clearSegment forgets the addresses of all classes living in seg.
func (ct *ClassTable) clearSegment(seg uint16) {
	for i := range ct.entries {
		if ct.entries[i].Reg.Segment == seg {
			ct.entries[i].Reg = NullReg
		}
	}
}

// Entry returns the slot for a species id.
func (ct *ClassTable) Entry(species int) (ClassEntry, bool) {
	if species < 0 || species >= len(ct.entries) || ct.entries[species].Script < 0 {
		return ClassEntry{Script: -1}, false
	}
	return ct.entries[species], true
}

// Len returns the number of slots in use, absent classes included.
func (ct *ClassTable) Len() int { return len(ct.entries) }

// Max returns the table's bound.
func (ct *ClassTable) Max() int { return ct.max }

// Entries returns a copy of all slots.
func (ct *ClassTable) Entries() []ClassEntry {
	return append([]ClassEntry(nil), ct.entries...)
}

// Fingerprint hashes the species to script assignment. Two games with the
// same fingerprint agree on the class table layout.
func (ct *ClassTable) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i, e := range ct.entries {
		if e.Script < 0 {
			continue
		}
		binary.LittleEndian.PutUint32(buf[:4], uint32(i))
		binary.LittleEndian.PutUint32(buf[4:], uint32(e.Script))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// LoadClassTable fills the table from a class vocabulary: a sequence of
// four-byte records (a reserved word, then the defining script number, with
// 0xffff meaning absent), one per species id.
func (ct *ClassTable) LoadClassTable(vocab []byte) error {
	n := len(vocab) / 4
	for species := 0; species < n; species++ {
		script := binary.LittleEndian.Uint16(vocab[species*4+2:])
		if script == 0xffff {
			if err := ct.grow(species); err != nil {
				return err
			}
			continue
		}
		if err := ct.Register(species, int(script)); err != nil {
			return err
		}
	}
	return nil
}
