package vm

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ---------------------------------------------------------------------------
// Selector lookup
// ---------------------------------------------------------------------------

// SelectorKind is the result class of a selector lookup.
type SelectorKind int

const (
	SelectorNone SelectorKind = iota
	SelectorVariable
	SelectorMethod
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorVariable:
		return "variable"
	case SelectorMethod:
		return "method"
	default:
		return "none"
	}
}

// normalizeSelector drops the read/write toggle bit of early scripts.
func (e *EngineState) normalizeSelector(selector int) uint16 {
	sel := uint16(selector)
	if e.Layout.SelectorRWToggle {
		sel &^= 1
	}
	return sel
}

// LookupSelector resolves selector on the object at addr. Variables are
// looked up on the object itself; methods on the object and then up its
// superclass chain. The variable index is only meaningful for
// SelectorVariable and the method entry only for SelectorMethod. A selector
// nothing defines yields SelectorNone without an error.
func (e *EngineState) LookupSelector(addr Reg, selector int) (SelectorKind, int, Reg, error) {
	obj, err := e.Segs.Object(addr)
	if err != nil {
		return SelectorNone, -1, NullReg, err
	}
	sel := e.normalizeSelector(selector)
	if idx := obj.locateVarSelector(sel); idx >= 0 {
		return SelectorVariable, idx, NullReg, nil
	}
	funcp, err := e.lookupMethod(obj, sel)
	if err != nil || funcp.IsNull() {
		return SelectorNone, -1, NullReg, err
	}
	return SelectorMethod, -1, funcp, nil
}

// lookupMethod walks the superclass chain from obj looking for a method.
func (e *EngineState) lookupMethod(obj *Object, sel uint16) (Reg, error) {
	for depth := 0; obj != nil; depth++ {
		if depth > e.Classes.Max() {
			return NullReg, &AddressError{Addr: obj.Pos, Reason: "superclass chain does not terminate"}
		}
		if i := obj.locateFuncSelector(sel); i >= 0 {
			return obj.methodEntry(i), nil
		}
		super := obj.Superclass()
		if super.IsNull() || super == obj.Pos {
			return NullReg, nil
		}
		next, err := e.Segs.Object(super)
		if err != nil {
			return NullReg, err
		}
		obj = next
	}
	return NullReg, nil
}

// ResolveSelector is LookupSelector with the failure policy explicit: when
// probe is false a selector that resolves to nothing is a *SelectorError.
func (e *EngineState) ResolveSelector(addr Reg, selector int, probe bool) (SelectorKind, int, Reg, error) {
	kind, idx, funcp, err := e.LookupSelector(addr, selector)
	if err != nil || kind != SelectorNone || probe {
		return kind, idx, funcp, err
	}
	return kind, idx, funcp, e.selectorError(addr, selector, "selector not found")
}

func (e *EngineState) selectorError(addr Reg, selector int, reason string) *SelectorError {
	return &SelectorError{
		Selector: selector,
		Name:     e.Selectors.Name(selector),
		Object:   addr,
		Class:    e.ObjectName(addr),
		Reason:   reason,
	}
}

// Property reads a variable selector of an object.
func (e *EngineState) Property(addr Reg, selector int) (Reg, error) {
	kind, idx, _, err := e.LookupSelector(addr, selector)
	if err != nil {
		return NullReg, err
	}
	if kind != SelectorVariable {
		return NullReg, e.selectorError(addr, selector, "not a property")
	}
	obj, _ := e.Segs.Object(addr)
	return obj.Variables[idx], nil
}

// SetProperty writes a variable selector of an object.
func (e *EngineState) SetProperty(addr Reg, selector int, value Reg) error {
	kind, idx, _, err := e.LookupSelector(addr, selector)
	if err != nil {
		return err
	}
	if kind != SelectorVariable {
		return e.selectorError(addr, selector, "not a property")
	}
	obj, _ := e.Segs.Object(addr)
	obj.Variables[idx] = value
	return nil
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

// ObjectName returns the name of the object at addr, decoded from code page
// 437. Objects without a readable name yield "<no name>".
func (e *EngineState) ObjectName(addr Reg) string {
	obj, err := e.Segs.Object(addr)
	if err != nil {
		return "<invalid>"
	}
	name, err := e.Segs.Bytes(obj.NameReg())
	if err != nil {
		return "<no name>"
	}
	return decodeString(name)
}

// decodeString decodes a NUL-terminated code page 437 string.
func decodeString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// encodeString encodes s into code page 437, replacing unmappable runes.
func encodeString(s string) []byte {
	b, err := charmap.CodePage437.NewEncoder().Bytes([]byte(s))
	if err == nil {
		return b
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := charmap.CodePage437.EncodeRune(r); ok {
			out = append(out, c)
		} else {
			out = append(out, '?')
		}
	}
	return out
}

// FindObject returns the address of the first resident object with the
// given name.
func (e *EngineState) FindObject(name string) (Reg, error) {
	for _, s := range e.Segs.Scripts() {
		for i := range s.Objects {
			if e.ObjectName(s.Objects[i].Pos) == name {
				return s.Objects[i].Pos, nil
			}
		}
	}
	return NullReg, fmt.Errorf("no resident object named %q", name)
}
