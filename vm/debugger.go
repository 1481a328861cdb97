package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Debugger hook
// ---------------------------------------------------------------------------

// Variable scopes exposed to the debugger.
const (
	ScopeGlobal = iota
	ScopeLocal
	ScopeTemp
	ScopeParam
	scopeCount
)

// VariableScope locates one block of variables: a segment and the index of
// the first entry, plus how many entries there are.
type VariableScope struct {
	Segment uint16
	Base    int
	Count   int
}

// DebugContext is the machine state handed to the debugger.
type DebugContext struct {
	Engine *EngineState
	Frame  *Frame

	PC         Reg
	SP         Reg
	FP         Reg
	ObjP       Reg
	RestAdjust int

	Scopes [scopeCount]VariableScope

	IsBreakpoint bool
}

// Variables returns the values of one scope.
func (c *DebugContext) Variables(scope int) ([]Reg, error) {
	if scope < 0 || scope >= scopeCount {
		return nil, fmt.Errorf("no variable scope %d", scope)
	}
	vs := c.Scopes[scope]
	if vs.Segment == 0 || vs.Count == 0 {
		return nil, nil
	}
	regs, err := c.Engine.Segs.Regs(MakeReg(vs.Segment, uint16(2*vs.Base)))
	if err != nil {
		return nil, err
	}
	if vs.Count < len(regs) {
		regs = regs[:vs.Count]
	}
	return regs, nil
}

// Debugger receives control between instructions when single stepping or
// after a breakpoint. ScriptDebug blocks the VM until it returns.
type Debugger interface {
	ScriptDebug(ctx *DebugContext)
}

// DebuggerFunc adapts a function to the Debugger interface.
type DebuggerFunc func(ctx *DebugContext)

func (f DebuggerFunc) ScriptDebug(ctx *DebugContext) { f(ctx) }

// Breakpoints holds selector and export breakpoints.
type Breakpoints struct {
	// Selectors are "Class::selector" names. A name ending in ':' matches
	// every selector name it prefixes, so "Ego::" breaks on all of Ego.
	Selectors []string

	// Exports are script<<16 | export addresses.
	Exports []uint32
}

func (b *Breakpoints) hasExport(script, export int) bool {
	addr := uint32(script)<<16 | uint32(export)
	for _, a := range b.Exports {
		if a == addr {
			return true
		}
	}
	return false
}

func (b *Breakpoints) matchSelector(name string) bool {
	for _, bp := range b.Selectors {
		if strings.HasSuffix(bp, ":") {
			if strings.HasPrefix(name, bp) {
				return true
			}
		} else if bp == name {
			return true
		}
	}
	return false
}

// SetDebugger installs or removes the debugger hook.
func (e *EngineState) SetDebugger(d Debugger) { e.debugger = d }

// AddSelectorBreakpoint breaks on sends matching "Class::selector".
func (e *EngineState) AddSelectorBreakpoint(name string) {
	e.breakpoints.Selectors = append(e.breakpoints.Selectors, name)
}

// AddExportBreakpoint breaks when export of script is executed.
func (e *EngineState) AddExportBreakpoint(script, export int) {
	e.breakpoints.Exports = append(e.breakpoints.Exports, uint32(script)<<16|uint32(export))
}

// ClearBreakpoints removes all breakpoints.
func (e *EngineState) ClearBreakpoints() { e.breakpoints = Breakpoints{} }

// BreakpointList returns a copy of the breakpoints.
func (e *EngineState) BreakpointList() Breakpoints {
	return Breakpoints{
		Selectors: append([]string(nil), e.breakpoints.Selectors...),
		Exports:   append([]uint32(nil), e.breakpoints.Exports...),
	}
}

// EnterDebugger requests the debugger at the next instruction boundary.
func (e *EngineState) EnterDebugger() { e.debugFlag = true }

// DebugRequested reports whether the decode loop must call ScriptDebug.
func (e *EngineState) DebugRequested() bool { return e.debugFlag }

func (e *EngineState) hitBreakpoint() {
	e.debugFlag = true
	e.bpHit = true
}

func (e *EngineState) checkSelectorBreakpoint(obj Reg, selector int) {
	if len(e.breakpoints.Selectors) == 0 {
		return
	}
	name := e.SendString(obj, selector)
	if e.breakpoints.matchSelector(name) {
		e.log.Infof("break on %s (in [%s])", name, obj)
		e.hitBreakpoint()
	}
}

// ScriptDebug hands control to the debugger if one is installed and a step
// or breakpoint is pending. The decode loop calls it between instructions.
// Calls made while the debugger is already running are ignored. The debugger
// keeps single stepping by calling EnterDebugger before it returns.
func (e *EngineState) ScriptDebug(restAdjust int) {
	if !e.debugFlag || e.debugger == nil || e.inDebugger {
		return
	}
	ctx := e.debugContext(restAdjust)
	e.debugFlag = false
	e.bpHit = false
	e.inDebugger = true
	defer func() { e.inDebugger = false }()
	e.debugger.ScriptDebug(ctx)
}

func (e *EngineState) debugContext(restAdjust int) *DebugContext {
	ctx := &DebugContext{
		Engine:       e,
		RestAdjust:   restAdjust,
		IsBreakpoint: e.bpHit,
	}
	if s, ok := e.Segs.ScriptByNumber(0); ok && s.LocalsSegment != 0 {
		ctx.Scopes[ScopeGlobal] = VariableScope{Segment: s.LocalsSegment, Count: s.LocalsCount}
	}
	f, ok := e.Stack.Top()
	if !ok {
		return ctx
	}
	ctx.Frame = f
	ctx.PC = f.PC
	ctx.ObjP = f.CalledObject
	if f.SP != spCarry {
		ctx.SP = MakeReg(e.stackSeg, uint16(2*f.SP))
		ctx.FP = MakeReg(e.stackSeg, uint16(2*f.FP))
		ctx.Scopes[ScopeTemp] = VariableScope{Segment: e.stackSeg, Base: f.FP, Count: f.SP - f.FP}
	}
	if l, ok := e.Segs.Segment(f.LocalsSegment); ok {
		if ls, ok := l.(*LocalsSegment); ok {
			ctx.Scopes[ScopeLocal] = VariableScope{Segment: f.LocalsSegment, Count: len(ls.Values)}
		}
	}
	ctx.Scopes[ScopeParam] = VariableScope{Segment: e.stackSeg, Base: f.ArgP, Count: f.ArgC + 1}
	return ctx
}
