package vm

import "github.com/chazu/sciv/scifmt"

// Object is a parsed object record.
//
// Records are parsed once at load time; selector tables and method entry
// points are kept as plain slices so lookups never re-derive byte offsets.
// The well-known header variables (species, superclass, info, name) are
// located through the layout of the script format the object came from.
type Object struct {
	Flags   uint16
	Version scifmt.Version
	Pos     Reg

	// CodeSegment is the script segment holding the method code. Clones
	// inherit it from the object they were cloned from.
	CodeSegment uint16

	// NamedVarCount is how many entries of VarSelectors name a variable.
	// For instances the names come from the species class.
	NamedVarCount int
	Variables     []Reg
	VarSelectors  []uint16
	FuncSelectors []uint16
	MethodOffsets []uint16
}

// Runtime object flags.
const (
	// ObjectFlagLocksScript marks clones holding a locker on their species' script.
	ObjectFlagLocksScript uint16 = 1 << 0
)

func (o *Object) layout() scifmt.Layout {
	l, _ := scifmt.LayoutFor(o.Version)
	return l
}

func (o *Object) variable(idx int) Reg {
	if idx < 0 || idx >= len(o.Variables) {
		return NullReg
	}
	return o.Variables[idx]
}

// VariableCount returns the number of variables, header variables included.
func (o *Object) VariableCount() int { return len(o.Variables) }

// MethodCount returns the number of methods the object itself defines.
func (o *Object) MethodCount() int { return len(o.FuncSelectors) }

// Species returns the address of the object's class.
func (o *Object) Species() Reg { return o.variable(o.layout().SpeciesSelector) }

// Superclass returns the address of the object's parent, or NullReg at a root.
func (o *Object) Superclass() Reg { return o.variable(o.layout().SuperclassSelector) }

// Info returns the info selector bits.
func (o *Object) Info() uint16 { return o.variable(o.layout().InfoSelector).Offset }

// NameReg returns the address of the object's name string.
func (o *Object) NameReg() Reg { return o.variable(o.layout().NameSelector) }

// IsClass reports whether the record is a class.
func (o *Object) IsClass() bool { return o.Info()&scifmt.InfoClass != 0 }

// IsClone reports whether the record is a clone.
func (o *Object) IsClone() bool { return o.Info()&scifmt.InfoClone != 0 }

func (o *Object) setInfo(bits uint16) {
	idx := o.layout().InfoSelector
	if idx < len(o.Variables) {
		o.Variables[idx] = IntReg(bits)
	}
}

// locateVarSelector returns the variable index named by sel, or -1.
func (o *Object) locateVarSelector(sel uint16) int {
	n := o.NamedVarCount
	if n > len(o.VarSelectors) {
		n = len(o.VarSelectors)
	}
	if n > len(o.Variables) {
		n = len(o.Variables)
	}
	for i := 0; i < n; i++ {
		if o.VarSelectors[i] == sel {
			return i
		}
	}
	return -1
}

// locateFuncSelector returns the index of the method the object itself
// defines for sel, or -1. Superclasses are not consulted.
func (o *Object) locateFuncSelector(sel uint16) int {
	for i, s := range o.FuncSelectors {
		if s == sel {
			return i
		}
	}
	return -1
}

// methodEntry returns the entry point of the object's i-th method.
func (o *Object) methodEntry(i int) Reg {
	return MakeReg(o.CodeSegment, o.MethodOffsets[i])
}

// copyObject returns a deep copy owning its own variable vector.
func (o *Object) copyObject() Object {
	c := *o
	c.Variables = append([]Reg(nil), o.Variables...)
	return c
}
