package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Send dispatch
// ---------------------------------------------------------------------------

// maxSendArgs bounds the argument count of one selector group.
const maxSendArgs = 0x800

// SendState is the state of the per-group send state machine.
type SendState int

const (
	ResolvingNextSelector SendState = iota
	InvokingMethod
	AccessingVariable
	SendDone
)

// sendCall is one resolved selector group of a send.
type sendCall struct {
	state    SendState
	selector int
	argc     int
	argp     int
	sp       int
	funcp    Reg
	varIndex int
}

// SendSelector dispatches a send expression. The data stack holds frameSize
// entries of selector groups starting at argp: a selector, an argument count,
// then the arguments. Method lookup starts at sendObj while variables are
// accessed on workObj; the two differ only for super sends.
//
// Every group is resolved before anything is pushed; a selector that resolves
// to nothing fails the whole send with a *SelectorError and sets the abort
// flag. The groups are then pushed last to first so the first group runs
// first, and variable accesses on top of the stack execute immediately. The
// returned frame is the new top of the execution stack.
func (e *EngineState) SendSelector(sendObj, workObj Reg, sp, frameSize, argp int) (*Frame, error) {
	if e.abort.set {
		return nil, ErrAborted
	}
	origin := e.Stack.Len() - 1
	data := e.data.Entries
	var calls []sendCall

	for frameSize > 0 {
		if argp+1 >= len(data) {
			return nil, e.fatal(&AddressError{Addr: MakeReg(e.stackSeg, uint16(2*argp)), Reason: "send group outside data stack"})
		}
		call := sendCall{
			state:    ResolvingNextSelector,
			selector: int(data[argp].Offset),
			argc:     int(data[argp+1].Offset),
			argp:     argp + 1,
		}
		if call.argc > maxSendArgs {
			return nil, e.fatal(e.selectorError(sendObj, call.selector, fmt.Sprintf("%d arguments", call.argc)))
		}
		e.checkSelectorBreakpoint(sendObj, call.selector)

		kind, idx, funcp, err := e.lookupSend(sendObj, workObj, call.selector)
		if err != nil {
			return nil, e.fatal(err)
		}
		switch kind {
		case SelectorNone:
			return nil, e.fatal(e.selectorError(sendObj, call.selector, "selector not found"))
		case SelectorVariable:
			if call.argc > 1 && e.Config.StrictSend {
				return nil, e.fatal(e.selectorError(sendObj, call.selector, fmt.Sprintf("variable selector sent %d arguments", call.argc)))
			}
			call.state = AccessingVariable
			call.varIndex = idx
			e.log.Debugf("send %s::%s: %s variable %d", e.ObjectName(sendObj), e.selectorName(call.selector), accessVerb(call.argc), idx)
		case SelectorMethod:
			call.state = InvokingMethod
			call.funcp = funcp
			call.sp = sp
			sp = spCarry
			e.log.Debugf("send %s::%s: method at %s", e.ObjectName(sendObj), e.selectorName(call.selector), funcp)
		}
		calls = append(calls, call)

		frameSize -= 2 + call.argc
		argp += 2 + call.argc
	}

	for i := len(calls) - 1; i >= 0; i-- {
		c := calls[i]
		data[c.argp] = IntReg(uint16(c.argc))
		var err error
		if c.state == AccessingVariable {
			_, err = e.Stack.PushVarAccess(Frame{
				CalledObject:  workObj,
				SendTarget:    workObj,
				VarObject:     workObj,
				VarIndex:      c.varIndex,
				FP:            spCarry,
				SP:            spCarry,
				ArgC:          c.argc,
				ArgP:          c.argp,
				LocalsSegment: e.CurrentLocals(),
				Selector:      c.selector,
				Origin:        origin,
			})
		} else {
			_, err = e.Stack.PushCall(Frame{
				CalledObject:  workObj,
				SendTarget:    sendObj,
				PC:            c.funcp,
				FP:            c.sp,
				SP:            c.sp,
				ArgC:          c.argc,
				ArgP:          c.argp,
				LocalsSegment: e.methodLocals(c.funcp),
				Selector:      c.selector,
				Origin:        origin,
			})
		}
		if err != nil {
			return nil, e.fatal(err)
		}
	}
	if err := e.execVarSelectors(); err != nil {
		return nil, err
	}
	top, _ := e.Stack.Top()
	return top, nil
}

// lookupSend resolves a selector for a send. Variables belong to workObj;
// for super sends the method search starts at the class sendObj.
func (e *EngineState) lookupSend(sendObj, workObj Reg, selector int) (SelectorKind, int, Reg, error) {
	if sendObj == workObj {
		return e.LookupSelector(sendObj, selector)
	}
	kind, idx, _, err := e.LookupSelector(workObj, selector)
	if err != nil || kind == SelectorVariable {
		return kind, idx, NullReg, err
	}
	class, err := e.Segs.Object(sendObj)
	if err != nil {
		return SelectorNone, -1, NullReg, err
	}
	funcp, err := e.lookupMethod(class, e.normalizeSelector(selector))
	if err != nil || funcp.IsNull() {
		return SelectorNone, -1, NullReg, err
	}
	return SelectorMethod, -1, funcp, nil
}

// methodLocals returns the locals segment of the script defining funcp.
func (e *EngineState) methodLocals(funcp Reg) uint16 {
	if s, ok := e.Segs.Script(funcp.Segment); ok {
		return s.LocalsSegment
	}
	return 0
}

// execVarSelectors runs and pops the variable access frames on top of the
// execution stack.
func (e *EngineState) execVarSelectors() error {
	for {
		top, ok := e.Stack.Top()
		if !ok || top.Type != FrameVarAccess {
			return nil
		}
		if err := e.accessVariable(top); err != nil {
			return e.fatal(err)
		}
		old, err := e.Stack.Pop()
		if err != nil {
			return err
		}
		e.carryStackPointers(old)
	}
}

func (e *EngineState) accessVariable(f *Frame) error {
	obj, err := e.Segs.Object(f.VarObject)
	if err != nil {
		return err
	}
	if f.VarIndex < 0 || f.VarIndex >= len(obj.Variables) {
		return &AddressError{Addr: f.VarObject, Reason: fmt.Sprintf("variable %d of %d", f.VarIndex, len(obj.Variables))}
	}
	if f.ArgC > 0 {
		obj.Variables[f.VarIndex] = e.data.Entries[f.ArgP+1]
	} else {
		e.Acc = obj.Variables[f.VarIndex]
	}
	return nil
}

// Return ends the executing frame with value as its result: the frame is
// popped, the accumulator set, pending variable accesses run, and scripts
// awaiting deletion rechecked. It returns the new top frame, or nil when the
// stack is empty.
func (e *EngineState) Return(value Reg) (*Frame, error) {
	old, err := e.Stack.Pop()
	if err != nil {
		return nil, err
	}
	e.Acc = value
	e.carryStackPointers(old)
	if err := e.execVarSelectors(); err != nil {
		return nil, err
	}
	if err := e.recheckDeferred(); err != nil {
		e.log.Errorf("deferred script deletion: %s", err)
	}
	top, _ := e.Stack.Top()
	return top, nil
}

// carryStackPointers hands the stack pointers of a popped frame to the new
// top frame when that frame continues a compound send.
func (e *EngineState) carryStackPointers(old Frame) {
	if old.SP == spCarry {
		return
	}
	if top, ok := e.Stack.Top(); ok && (top.SP == spCarry || top.Type != FrameCall) {
		top.SP = old.SP
		top.FP = old.FP
	}
}

func (e *EngineState) selectorName(selector int) string {
	if n := e.Selectors.Name(selector); n != "" {
		return n
	}
	return fmt.Sprintf("%#x", selector)
}

func accessVerb(argc int) string {
	if argc == 0 {
		return "read"
	}
	return "write"
}

// SendString formats a send for traces, e.g. "Cat::speak".
func (e *EngineState) SendString(obj Reg, selector int) string {
	var b strings.Builder
	b.WriteString(e.ObjectName(obj))
	b.WriteString("::")
	b.WriteString(e.selectorName(selector))
	return b.String()
}
