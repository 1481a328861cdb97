package vm

import (
	"fmt"

	"github.com/chazu/sciv/scifmt"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// EngineState: one VM instance
// ---------------------------------------------------------------------------

// Vocabulary resources the engine reads at boot.
const (
	VocabClassTable    = 996
	VocabSelectorNames = 997
)

// Defaults for the tunables exposed as options.
const (
	DefaultGCInterval = 32768
	DefaultStackSize  = 0x1000
)

// Config holds the tunables of an EngineState.
type Config struct {
	GCInterval int
	MaxClasses int
	StackSize  int

	// StrictSend rejects variable selectors sent with more than one argument.
	StrictSend bool

	// CheckLoads logs every script load and unload.
	CheckLoads bool

	Version scifmt.Version
}

// EngineState is a single VM instance. It is not safe for concurrent use; the
// whole VM runs on one goroutine.
type EngineState struct {
	Config    Config
	Resources scifmt.Finder
	Layout    scifmt.Layout

	Segs      *SegManager
	Classes   *ClassTable
	Selectors *SelectorTable
	Stack     *ExecStack

	stackSeg uint16
	data     *StackSegment
	sysSeg   uint16
	sys      *SysStringsSegment

	// Acc is the accumulator: the result of the last expression.
	Acc Reg

	// GameObject receives play and replay sends.
	GameObject Reg

	wellKnown WellKnownSelectors
	kernel    map[string]KernelFunc

	gcCountdown int
	deferred    []int

	abort   abortState
	restart bool

	debugger    Debugger
	debugFlag   bool
	bpHit       bool
	inDebugger  bool
	breakpoints Breakpoints

	log commonlog.Logger
}

// Option configures an EngineState.
type Option func(*EngineState) error

// WithGCInterval sets how many kernel calls pass between collections.
func WithGCInterval(n int) Option {
	return func(e *EngineState) error {
		if n <= 0 {
			return fmt.Errorf("gc interval must be positive, got %d", n)
		}
		e.Config.GCInterval = n
		return nil
	}
}

// WithMaxClasses bounds the class table.
func WithMaxClasses(n int) Option {
	return func(e *EngineState) error {
		if n <= 0 {
			return fmt.Errorf("max classes must be positive, got %d", n)
		}
		e.Config.MaxClasses = n
		return nil
	}
}

// WithStackSize sets the data stack size in entries.
func WithStackSize(n int) Option {
	return func(e *EngineState) error {
		if n <= 0 || n > 0x8000 {
			return fmt.Errorf("stack size %d outside (0,32768]", n)
		}
		e.Config.StackSize = n
		return nil
	}
}

// WithStrictSend makes multi-argument variable sends fatal.
func WithStrictSend(strict bool) Option {
	return func(e *EngineState) error { e.Config.StrictSend = strict; return nil }
}

// WithCheckLoads logs script loads and unloads.
func WithCheckLoads(check bool) Option {
	return func(e *EngineState) error { e.Config.CheckLoads = check; return nil }
}

// WithVersion forces the script format instead of detecting it.
func WithVersion(v scifmt.Version) Option {
	return func(e *EngineState) error {
		if _, err := scifmt.LayoutFor(v); err != nil {
			return err
		}
		e.Config.Version = v
		return nil
	}
}

// WithDebugger installs the debugger hook.
func WithDebugger(d Debugger) Option {
	return func(e *EngineState) error { e.debugger = d; return nil }
}

// WithLogger replaces the engine's logger.
func WithLogger(l commonlog.Logger) Option {
	return func(e *EngineState) error { e.log = l; return nil }
}

// NewEngineState boots a VM over a resource source: it detects the script
// format (unless forced), creates the data stack and system strings, and
// reads the class and selector vocabularies when present.
func NewEngineState(res scifmt.Finder, opts ...Option) (*EngineState, error) {
	e := &EngineState{
		Config: Config{
			GCInterval: DefaultGCInterval,
			MaxClasses: DefaultMaxClasses,
			StackSize:  DefaultStackSize,
		},
		Resources: res,
		kernel:    make(map[string]KernelFunc),
		log:       commonlog.GetLogger("sciv.vm"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.Config.Version == scifmt.VersionUnknown {
		e.Config.Version = scifmt.Detect(res)
		e.log.Infof("detected script format %s", e.Config.Version)
	}
	layout, err := scifmt.LayoutFor(e.Config.Version)
	if err != nil {
		return nil, err
	}
	e.Layout = layout

	e.Segs = NewSegManager()
	e.Classes = NewClassTable(e.Config.MaxClasses)
	e.Selectors = NewSelectorTable()
	e.stackSeg, e.data = e.Segs.AllocateStack(e.Config.StackSize)
	e.Stack = NewExecStack(e.Config.StackSize)
	e.sysSeg, e.sys = e.Segs.AllocateSysStrings()
	e.initSysStrings()
	e.gcCountdown = e.Config.GCInterval

	if vocab, ok := res.Find(scifmt.ResourceVocab, VocabClassTable); ok {
		if err := e.Classes.LoadClassTable(vocab); err != nil {
			return nil, fmt.Errorf("class vocabulary: %w", err)
		}
	}
	if vocab, ok := res.Find(scifmt.ResourceVocab, VocabSelectorNames); ok {
		if err := e.Selectors.LoadSelectorNames(vocab); err != nil {
			return nil, fmt.Errorf("selector vocabulary: %w", err)
		}
	}
	e.wellKnown = e.Selectors.wellKnown()
	return e, nil
}

// Logger returns the engine's logger.
func (e *EngineState) Logger() commonlog.Logger { return e.log }

// DataStack returns the shared data stack entries.
func (e *EngineState) DataStack() []Reg { return e.data.Entries }

// StackSegmentID returns the segment id of the data stack.
func (e *EngineState) StackSegmentID() uint16 { return e.stackSeg }

// CurrentLocals returns the locals segment of the executing frame, or 0.
func (e *EngineState) CurrentLocals() uint16 {
	if top, ok := e.Stack.Top(); ok {
		return top.LocalsSegment
	}
	return 0
}

// fatal logs and records an error that must abort the VM.
func (e *EngineState) fatal(err error) error {
	e.log.Criticalf("%s", err)
	e.Abort(AbortFatal, err)
	return err
}
