package vm

import (
	"errors"
	"testing"

	"github.com/chazu/sciv/scifmt"
)

func TestExecStackLIFO(t *testing.T) {
	xs := NewExecStack(32)

	if _, err := xs.PushCall(Frame{PC: MakeReg(3, 10), SP: 2, FP: 2, ArgP: 0, LocalsSegment: 4}); err != nil {
		t.Fatalf("PushCall failed: %v", err)
	}
	if _, err := xs.PushKernel(Frame{SP: 6, FP: 6, ArgP: 3, ArgC: 2, Kernel: "Load"}); err != nil {
		t.Fatalf("PushKernel failed: %v", err)
	}
	if xs.Len() != 2 {
		t.Fatalf("Len = %d, want 2", xs.Len())
	}
	top, _ := xs.Top()
	if top.Type != FrameKernel || top.Kernel != "Load" {
		t.Errorf("top = %+v, want kernel Load", top)
	}

	f, err := xs.Pop()
	if err != nil || f.Type != FrameKernel {
		t.Errorf("Pop = %+v, %v", f, err)
	}
	f, _ = xs.Pop()
	if f.Type != FrameCall || f.LocalsSegment != 4 || f.PC != MakeReg(3, 10) {
		t.Errorf("Pop = %+v, want the call frame", f)
	}
	if _, err := xs.Pop(); !errors.Is(err, ErrStackEmpty) {
		t.Errorf("Pop on empty = %v, want ErrStackEmpty", err)
	}
	if _, ok := xs.Top(); ok {
		t.Error("Top on empty stack")
	}
}

func TestReturnRestoresCallerFrame(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)

	objs := []Reg{w.animalClass(), w.catClass(), w.tom()}
	locals := make([]uint16, len(objs))
	for i := range objs {
		locals[i], _ = w.e.Segs.AllocateLocals(90+i, 1)
		if _, err := w.e.Stack.PushCall(Frame{
			CalledObject:  objs[i],
			SendTarget:    objs[i],
			FP:            2 * (i + 1),
			SP:            2 * (i + 1),
			LocalsSegment: locals[i],
			Selector:      -1,
			Origin:        i - 1,
		}); err != nil {
			t.Fatalf("PushCall(F%d) failed: %v", i+1, err)
		}
	}
	if got := w.e.CurrentLocals(); got != locals[2] {
		t.Fatalf("CurrentLocals = %d, want %d", got, locals[2])
	}

	tests := []struct {
		name   string
		obj    Reg
		locals uint16
		empty  bool
	}{
		{"pop F3", objs[1], locals[1], false},
		{"pop F2", objs[0], locals[0], false},
		{"pop F1", NullReg, 0, true},
	}
	for i, tt := range tests {
		top, err := w.e.Return(IntReg(uint16(i)))
		if err != nil {
			t.Fatalf("%s: Return failed: %v", tt.name, err)
		}
		if w.e.Acc != IntReg(uint16(i)) {
			t.Errorf("%s: Acc = %v, want %d", tt.name, w.e.Acc, i)
		}
		if got := w.e.CurrentLocals(); got != tt.locals {
			t.Errorf("%s: CurrentLocals = %d, want %d", tt.name, got, tt.locals)
		}
		if tt.empty {
			if top != nil {
				t.Errorf("%s: top = %+v, want empty stack", tt.name, top)
			}
			continue
		}
		if top == nil || top.CalledObject != tt.obj {
			t.Errorf("%s: top = %+v, want frame of %v", tt.name, top, tt.obj)
		}
	}
}

func TestExecStackBounds(t *testing.T) {
	xs := NewExecStack(8)

	if _, err := xs.PushCall(Frame{SP: 9, FP: 0}); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("sp outside data stack = %v, want ErrStackOverflow", err)
	}
	if _, err := xs.PushCall(Frame{SP: 2, FP: 2, ArgP: 6, ArgC: 2}); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("arguments outside data stack = %v, want ErrStackOverflow", err)
	}
	if _, err := xs.PushVarAccess(Frame{SP: spCarry, FP: spCarry, ArgP: 1}); err != nil {
		t.Errorf("carried pointers rejected: %v", err)
	}

	xs.SetMaxFrames(2)
	xs.PushCall(Frame{SP: 1, FP: 1})
	if _, err := xs.PushCall(Frame{SP: 1, FP: 1}); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("push past max frames = %v, want ErrStackOverflow", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	tests := map[FrameType]string{
		FrameCall:      "call",
		FrameKernel:    "kernel",
		FrameVarAccess: "varselector",
		FrameType(9):   "frame(9)",
	}
	for ft, want := range tests {
		if got := ft.String(); got != want {
			t.Errorf("FrameType(%d).String() = %q, want %q", int(ft), got, want)
		}
	}
}
