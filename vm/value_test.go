package vm

import "testing"

func TestRegBasics(t *testing.T) {
	if !NullReg.IsNull() || !NullReg.IsInteger() {
		t.Error("NullReg is not a null integer")
	}
	n := IntReg(7)
	if !n.IsInteger() || n.IsNull() || n.Offset != 7 {
		t.Errorf("IntReg(7) = %+v", n)
	}
	a := MakeReg(3, 0x10)
	if a.IsInteger() || a.IsNull() {
		t.Errorf("MakeReg(3, 0x10) = %+v", a)
	}
	if got := a.String(); got != "0003:0010" {
		t.Errorf("String = %q, want 0003:0010", got)
	}
}

func TestRegAdd(t *testing.T) {
	a := MakeReg(2, 10)
	if got := a.Add(4); got != MakeReg(2, 14) {
		t.Errorf("Add(4) = %v", got)
	}
	if got := a.Add(-10); got != MakeReg(2, 0) {
		t.Errorf("Add(-10) = %v", got)
	}
	if got := IntReg(0xffff).Add(1); got != IntReg(0) {
		t.Errorf("integer Add wraps to %v, want 0", got)
	}
}

func TestRegCompare(t *testing.T) {
	tests := []struct {
		a, b Reg
		want int
	}{
		{IntReg(1), IntReg(2), -1},
		{IntReg(2), IntReg(2), 0},
		{MakeReg(1, 9), MakeReg(2, 0), -1},
		{MakeReg(2, 4), MakeReg(2, 3), 1},
		{MakeReg(1, 0), IntReg(5), 1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
