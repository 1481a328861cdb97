package vm

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
)

// SelectorTable maps selector ids to names.
//
// Selector ids are small dense integers shared by the whole game. They are
// assigned by the vocabulary; the VM only consumes them, so the table exists
// for diagnostics, breakpoints and tooling.
type SelectorTable struct {
	byName map[string]int
	byID   []string
}

// NewSelectorTable creates an empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byName: make(map[string]int),
		byID:   make([]string, 0, 256),
	}
}

// Clone returns an independent copy of the table.
func (st *SelectorTable) Clone() *SelectorTable {
	return &SelectorTable{
		byName: maps.Clone(st.byName),
		byID:   slices.Clone(st.byID),
	}
}

// Define names selector id.
func (st *SelectorTable) Define(id int, name string) {
	for len(st.byID) <= id {
		st.byID = append(st.byID, "")
	}
	if old := st.byID[id]; old != "" {
		delete(st.byName, old)
	}
	st.byID[id] = name
	if name != "" {
		st.byName[name] = id
	}
}

// Intern returns the id of name, assigning the next free id if needed.
func (st *SelectorTable) Intern(name string) int {
	if id, ok := st.byName[name]; ok {
		return id
	}
	id := len(st.byID)
	st.Define(id, name)
	return id
}

// Lookup returns the id for a selector name, or -1 if not found.
func (st *SelectorTable) Lookup(name string) int {
	if id, ok := st.byName[name]; ok {
		return id
	}
	return -1
}

// Name returns the selector name for an id, or "" if unknown.
func (st *SelectorTable) Name(id int) string {
	if id < 0 || id >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of selector ids.
func (st *SelectorTable) Len() int { return len(st.byID) }

// All returns all selector names in id order.
func (st *SelectorTable) All() []string {
	result := make([]string, len(st.byID))
	copy(result, st.byID)
	return result
}

// LoadSelectorNames reads a selector vocabulary: a word holding the highest
// selector id, a table of that many plus one word offsets, and at each offset
// a length word followed by the name bytes.
func (st *SelectorTable) LoadSelectorNames(vocab []byte) error {
	if len(vocab) < 2 {
		return fmt.Errorf("selector vocabulary truncated")
	}
	count := int(binary.LittleEndian.Uint16(vocab)) + 1
	for id := 0; id < count; id++ {
		at := 2 + id*2
		if at+2 > len(vocab) {
			return fmt.Errorf("selector vocabulary: offset table truncated at id %d", id)
		}
		off := int(binary.LittleEndian.Uint16(vocab[at:]))
		if off+2 > len(vocab) {
			return fmt.Errorf("selector vocabulary: name %d at %#x out of range", id, off)
		}
		n := int(binary.LittleEndian.Uint16(vocab[off:]))
		if off+2+n > len(vocab) {
			return fmt.Errorf("selector vocabulary: name %d truncated", id)
		}
		st.Define(id, string(vocab[off+2:off+2+n]))
	}
	return nil
}

// WellKnownSelectors caches the selector ids the engine itself sends.
type WellKnownSelectors struct {
	Play   int
	Replay int
}

func (st *SelectorTable) wellKnown() WellKnownSelectors {
	return WellKnownSelectors{
		Play:   st.Lookup("play"),
		Replay: st.Lookup("replay"),
	}
}
