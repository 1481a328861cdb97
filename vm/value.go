package vm

import "fmt"

// Reg is a VM address: a segment id and an offset within that segment.
//
// Every "pointer" the VM manipulates is a Reg, never a host pointer. Plain
// integers live in segment 0, so a Reg doubles as the VM's value type.
type Reg struct {
	Segment uint16
	Offset  uint16
}

// NullReg is the zero address and the integer 0.
var NullReg = Reg{}

// MakeReg builds a Reg.
func MakeReg(segment, offset uint16) Reg {
	return Reg{Segment: segment, Offset: offset}
}

// IntReg wraps an integer value.
func IntReg(v uint16) Reg {
	return Reg{Offset: v}
}

// IsNull reports whether r is the zero address.
func (r Reg) IsNull() bool {
	return r.Segment == 0 && r.Offset == 0
}

// IsInteger reports whether r holds a plain integer rather than an address.
func (r Reg) IsInteger() bool {
	return r.Segment == 0
}

// Add returns r moved by delta bytes within its segment.
func (r Reg) Add(delta int) Reg {
	return Reg{Segment: r.Segment, Offset: uint16(int(r.Offset) + delta)}
}

// Compare orders addresses by segment, then offset.
func (r Reg) Compare(o Reg) int {
	switch {
	case r.Segment < o.Segment:
		return -1
	case r.Segment > o.Segment:
		return 1
	case r.Offset < o.Offset:
		return -1
	case r.Offset > o.Offset:
		return 1
	}
	return 0
}

func (r Reg) String() string {
	return fmt.Sprintf("%04x:%04x", r.Segment, r.Offset)
}
