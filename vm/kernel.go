package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Kernel boundary
// ---------------------------------------------------------------------------

// KernelFunc implements a kernel call. argv holds the argc arguments.
type KernelFunc func(e *EngineState, argv []Reg) (Reg, error)

// RegisterKernel binds a kernel function name. Registering a name again
// replaces the previous binding.
func (e *EngineState) RegisterKernel(name string, fn KernelFunc) {
	e.kernel[name] = fn
}

// HasKernelFunction reports whether a kernel function is bound.
func (e *EngineState) HasKernelFunction(name string) bool {
	_, ok := e.kernel[name]
	return ok
}

// KernelFunctions returns the bound kernel function names, sorted.
func (e *EngineState) KernelFunctions() []string {
	names := make([]string, 0, len(e.kernel))
	for n := range e.kernel {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CallKernel invokes a kernel function under a kernel frame. argp indexes
// the argument count slot on the data stack; the arguments follow it. The
// result lands in the accumulator. Collection runs between kernel calls,
// once every GCInterval calls.
func (e *EngineState) CallKernel(name string, argc, argp int) (Reg, error) {
	if e.abort.set {
		return NullReg, ErrAborted
	}
	fn, ok := e.kernel[name]
	if !ok {
		return NullReg, fmt.Errorf("kernel function %q not bound", name)
	}
	if argp < 0 || argp+argc >= len(e.data.Entries) {
		return NullReg, fmt.Errorf("kernel %s: arguments %d+%d: %w", name, argp, argc, ErrStackOverflow)
	}
	e.data.Entries[argp] = IntReg(uint16(argc))
	sp := argp + argc + 1
	if _, err := e.Stack.PushKernel(Frame{
		CalledObject:  NullReg,
		FP:            sp,
		SP:            sp,
		ArgC:          argc,
		ArgP:          argp,
		LocalsSegment: e.CurrentLocals(),
		Selector:      -1,
		Origin:        e.Stack.Len() - 1,
		Kernel:        name,
	}); err != nil {
		return NullReg, err
	}
	argv := append([]Reg(nil), e.data.Entries[argp+1:argp+1+argc]...)
	result, err := fn(e, argv)
	if _, perr := e.Stack.Pop(); perr != nil && err == nil {
		err = perr
	}
	if derr := e.recheckDeferred(); derr != nil {
		e.log.Errorf("deferred script deletion: %s", derr)
	}
	if err != nil {
		if IsFatal(err) {
			return NullReg, e.fatal(err)
		}
		return NullReg, fmt.Errorf("kernel %s: %w", name, err)
	}
	e.Acc = result

	e.gcCountdown--
	if e.gcCountdown <= 0 {
		e.gcCountdown = e.Config.GCInterval
		stats := e.RunGC()
		e.log.Debugf("gc after %s: %s", name, stats)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Kernel-managed memory
// ---------------------------------------------------------------------------

// Kalloc allocates a hunk of size bytes tagged with typeTag.
func (e *EngineState) Kalloc(typeTag string, size int) (Reg, error) {
	if size < 0 || size > 0xffff {
		return NullReg, fmt.Errorf("kalloc %s: bad size %d", typeTag, size)
	}
	seg, hunks := e.Segs.Hunks()
	idx, h := hunks.Table.Allocate()
	if idx > 0xffff {
		_ = hunks.Table.Free(idx)
		return NullReg, fmt.Errorf("kalloc %s: hunk table full", typeTag)
	}
	*h = Hunk{Type: typeTag, Mem: make([]byte, size)}
	return MakeReg(seg, uint16(idx)), nil
}

// Kmem returns the memory of a hunk.
func (e *EngineState) Kmem(handle Reg) ([]byte, error) {
	seg, err := e.Segs.Resolve(handle)
	if err != nil {
		return nil, err
	}
	hunks, ok := seg.(*HunkTable)
	if !ok {
		return nil, &AddressError{Addr: handle, Reason: fmt.Sprintf("%s segment is not a hunk table", seg.Type())}
	}
	return hunks.Bytes(handle.Offset)
}

// Kfree releases a hunk. Freeing a free hunk is an *IntegrityError.
func (e *EngineState) Kfree(handle Reg) error {
	seg, ok := e.Segs.Segment(handle.Segment)
	if !ok {
		return &AddressError{Addr: handle, Reason: "stale or unknown segment"}
	}
	hunks, ok := seg.(*HunkTable)
	if !ok {
		return &AddressError{Addr: handle, Reason: fmt.Sprintf("%s segment is not a hunk table", seg.Type())}
	}
	if err := hunks.Table.Free(int(handle.Offset)); err != nil {
		return e.fatal(err)
	}
	return nil
}

// AllocDynMem creates a dynamic memory segment and returns its base address.
func (e *EngineState) AllocDynMem(size int, description string) (Reg, []byte) {
	id, d := e.Segs.AllocateDynMem(size, description)
	return MakeReg(id, 0), d.Buf
}

// FreeDynMem releases a dynamic memory segment.
func (e *EngineState) FreeDynMem(addr Reg) error {
	seg, ok := e.Segs.Segment(addr.Segment)
	if !ok || seg.Type() != SegDynMem {
		return &AddressError{Addr: addr, Reason: "not a dynamic memory segment"}
	}
	return e.Segs.Deallocate(addr.Segment)
}

// ---------------------------------------------------------------------------
// System strings
// ---------------------------------------------------------------------------

// Sizes of the fixed system strings.
const (
	SaveDirMax      = 256
	ParserResultMax = 1024
)

func (e *EngineState) initSysStrings() {
	e.sys.Set(SysStringSaveDir, "savedir", SaveDirMax, nil)
	e.sys.Set(SysStringParserBase, "parser-base", 4, nil)
	e.sys.Set(SysStringParserResult, "parser-result", ParserResultMax, nil)
}

// SysStringAddr returns the address of a system string slot.
func (e *EngineState) SysStringAddr(slot int) Reg {
	return MakeReg(e.sysSeg, uint16(slot))
}

// SetSysString stores value, encoded in code page 437, into a slot. The
// value is truncated to the slot size minus the terminator.
func (e *EngineState) SetSysString(slot int, value string) error {
	if slot < 0 || slot >= SysStringsMax || e.sys.Strings[slot].Name == "" {
		return &AddressError{Addr: e.SysStringAddr(slot), Reason: "no such system string"}
	}
	str := &e.sys.Strings[slot]
	enc := encodeString(value)
	if len(enc) >= str.MaxSize {
		enc = enc[:str.MaxSize-1]
	}
	clear(str.Value)
	copy(str.Value, enc)
	return nil
}

// SysString returns the decoded contents of a slot.
func (e *EngineState) SysString(slot int) (string, error) {
	b, err := e.Segs.Bytes(e.SysStringAddr(slot))
	if err != nil {
		return "", err
	}
	return decodeString(b), nil
}
