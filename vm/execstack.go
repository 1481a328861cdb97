package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Execution stack
// ---------------------------------------------------------------------------

// FrameType distinguishes execution stack frames.
type FrameType int

const (
	FrameCall FrameType = iota
	FrameKernel
	FrameVarAccess
)

func (t FrameType) String() string {
	switch t {
	case FrameCall:
		return "call"
	case FrameKernel:
		return "kernel"
	case FrameVarAccess:
		return "varselector"
	default:
		return fmt.Sprintf("frame(%d)", int(t))
	}
}

// spCarry marks a frame whose stack pointer is inherited from the frame
// above it when that frame returns. Later groups of a compound send use it.
const spCarry = -1

// Frame is one execution stack entry. FP, SP and ArgP index the shared data
// stack; ArgP is the slot holding the argument count and the arguments follow
// it.
type Frame struct {
	Type FrameType

	// CalledObject is the object whose method runs (self). SendTarget is
	// the object the send was addressed to; the two differ for super sends.
	CalledObject Reg
	SendTarget   Reg

	// PC is the program counter of call frames.
	PC Reg

	// VarObject and VarIndex address the variable of an access frame.
	VarObject Reg
	VarIndex  int

	FP   int
	SP   int
	ArgC int
	ArgP int

	LocalsSegment uint16

	// Selector is the selector that created the frame, or -1.
	Selector int

	// Origin is the index of the frame that issued the call, or -1.
	Origin int

	// Kernel names the kernel function of kernel frames.
	Kernel string
}

// ErrStackEmpty is returned when popping an empty execution stack.
var ErrStackEmpty = errors.New("execution stack empty")

// DefaultMaxFrames bounds the execution stack depth.
const DefaultMaxFrames = 256

// ExecStack is the LIFO stack of frames. Every frame's pointers are checked
// against the data stack size when it is pushed.
type ExecStack struct {
	frames    []Frame
	dataSize  int
	maxFrames int
}

// NewExecStack creates an execution stack over a data stack of dataSize entries.
func NewExecStack(dataSize int) *ExecStack {
	return &ExecStack{
		frames:    make([]Frame, 0, 16),
		dataSize:  dataSize,
		maxFrames: DefaultMaxFrames,
	}
}

func (xs *ExecStack) inData(idx int) bool {
	return idx >= 0 && idx <= xs.dataSize
}

func (xs *ExecStack) push(f Frame, t FrameType) (*Frame, error) {
	if len(xs.frames) >= xs.maxFrames {
		return nil, fmt.Errorf("%d frames: %w", len(xs.frames), ErrStackOverflow)
	}
	if f.SP != spCarry && (!xs.inData(f.SP) || !xs.inData(f.FP)) {
		return nil, fmt.Errorf("frame pointers fp=%d sp=%d outside data stack of %d: %w", f.FP, f.SP, xs.dataSize, ErrStackOverflow)
	}
	if f.ArgP < 0 || f.ArgP+f.ArgC >= xs.dataSize {
		return nil, fmt.Errorf("arguments %d+%d outside data stack of %d: %w", f.ArgP, f.ArgC, xs.dataSize, ErrStackOverflow)
	}
	f.Type = t
	xs.frames = append(xs.frames, f)
	return &xs.frames[len(xs.frames)-1], nil
}

// PushCall pushes a method or export call frame.
func (xs *ExecStack) PushCall(f Frame) (*Frame, error) { return xs.push(f, FrameCall) }

// PushKernel pushes a kernel call frame.
func (xs *ExecStack) PushKernel(f Frame) (*Frame, error) { return xs.push(f, FrameKernel) }

// PushVarAccess pushes a variable selector access frame.
func (xs *ExecStack) PushVarAccess(f Frame) (*Frame, error) { return xs.push(f, FrameVarAccess) }

// Pop removes and returns the top frame.
func (xs *ExecStack) Pop() (Frame, error) {
	n := len(xs.frames)
	if n == 0 {
		return Frame{}, ErrStackEmpty
	}
	f := xs.frames[n-1]
	xs.frames = xs.frames[:n-1]
	return f, nil
}

// Top returns the top frame.
func (xs *ExecStack) Top() (*Frame, bool) {
	if len(xs.frames) == 0 {
		return nil, false
	}
	return &xs.frames[len(xs.frames)-1], true
}

// Len returns the number of frames.
func (xs *ExecStack) Len() int { return len(xs.frames) }

// At returns frame i, counted from the bottom.
func (xs *ExecStack) At(i int) *Frame { return &xs.frames[i] }

// Frames returns a copy of all frames, bottom first.
func (xs *ExecStack) Frames() []Frame {
	return append([]Frame(nil), xs.frames...)
}

// SetMaxFrames changes the depth limit.
func (xs *ExecStack) SetMaxFrames(n int) {
	if n > 0 {
		xs.maxFrames = n
	}
}

func (xs *ExecStack) reset(frames []Frame) {
	xs.frames = append(xs.frames[:0], frames...)
}
