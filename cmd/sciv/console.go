package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/sciv/vm"
	"golang.org/x/term"
)

// console is a line-oriented debugger front end. On a terminal it uses
// x/term for line editing; otherwise it reads plain lines.
type console struct {
	out      io.Writer
	readLine func() (string, error)
}

func newConsole(in io.Reader, out io.Writer) *console {
	sc := bufio.NewScanner(in)
	return &console{
		out: out,
		readLine: func() (string, error) {
			fmt.Fprint(out, "debug> ")
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			return sc.Text(), nil
		},
	}
}

// newTermConsole attaches a console to stdin. The returned function restores
// the terminal.
func newTermConsole() (*console, func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return newConsole(os.Stdin, os.Stdout), func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("raw terminal: %w", err)
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "debug> ")
	if w, h, err := term.GetSize(fd); err == nil {
		t.SetSize(w, h)
	}
	c := &console{out: t, readLine: t.ReadLine}
	return c, func() { term.Restore(fd, state) }, nil
}

// ScriptDebug implements vm.Debugger. It reads commands until one of them
// resumes execution.
func (c *console) ScriptDebug(ctx *vm.DebugContext) {
	if ctx.IsBreakpoint {
		fmt.Fprintf(c.out, "breakpoint\n")
	}
	c.where(ctx, 1)
	for {
		line, err := c.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(c.out, "read error: %v\n", err)
			}
			return
		}
		if c.exec(ctx, strings.Fields(line)) {
			return
		}
	}
}

// exec runs one command and reports whether execution resumes.
func (c *console) exec(ctx *vm.DebugContext, args []string) bool {
	if len(args) == 0 {
		return false
	}
	e := ctx.Engine
	switch args[0] {
	case "help", "h", "?":
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  where, bt [n]         Show the execution stack")
		fmt.Fprintln(c.out, "  vars <scope>          Show global, local, temp or param variables")
		fmt.Fprintln(c.out, "  acc                   Show the accumulator")
		fmt.Fprintln(c.out, "  segs                  Show the segment table")
		fmt.Fprintln(c.out, "  break <Class::sel>    Break on a send")
		fmt.Fprintln(c.out, "  bpx <script> <export> Break on an export call")
		fmt.Fprintln(c.out, "  bl, bc                List or clear breakpoints")
		fmt.Fprintln(c.out, "  step, s               Resume for one instruction")
		fmt.Fprintln(c.out, "  continue, c           Resume")
		fmt.Fprintln(c.out, "  quit, q               Abort the game")
	case "where", "bt":
		n := e.Stack.Len()
		if len(args) > 1 {
			if v, err := strconv.Atoi(args[1]); err == nil {
				n = v
			}
		}
		c.where(ctx, n)
	case "vars":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: vars global|local|temp|param")
			return false
		}
		c.vars(ctx, args[1])
	case "acc":
		fmt.Fprintf(c.out, "acc = %s\n", e.Acc)
	case "segs":
		fmt.Fprint(c.out, e.SegmentTable())
	case "break":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: break Class::selector")
			return false
		}
		e.AddSelectorBreakpoint(args[1])
	case "bpx":
		if len(args) != 3 {
			fmt.Fprintln(c.out, "usage: bpx script export")
			return false
		}
		script, err1 := strconv.Atoi(args[1])
		export, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			fmt.Fprintln(c.out, "bpx: script and export must be numbers")
			return false
		}
		e.AddExportBreakpoint(script, export)
	case "bl":
		bp := e.BreakpointList()
		for _, s := range bp.Selectors {
			fmt.Fprintf(c.out, "send %s\n", s)
		}
		for _, x := range bp.Exports {
			fmt.Fprintf(c.out, "export %d:%d\n", x>>16, x&0xffff)
		}
	case "bc":
		e.ClearBreakpoints()
	case "step", "s":
		e.EnterDebugger()
		return true
	case "continue", "c":
		return true
	case "quit", "q":
		e.Abort(vm.AbortQuit, nil)
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q (type help)\n", args[0])
	}
	return false
}

func (c *console) where(ctx *vm.DebugContext, n int) {
	e := ctx.Engine
	frames := e.Stack.Frames()
	if len(frames) == 0 {
		fmt.Fprintln(c.out, "no frames")
		return
	}
	for i := len(frames) - 1; i >= 0 && len(frames)-i <= n; i-- {
		f := frames[i]
		desc := f.Kernel
		switch {
		case f.Type == vm.FrameKernel:
		case f.Selector >= 0:
			desc = e.SendString(f.SendTarget, f.Selector)
		default:
			desc = fmt.Sprintf("call from %s", e.ObjectName(f.CalledObject))
		}
		fmt.Fprintf(c.out, "#%d %-11s %s pc=%s argc=%d\n", i, f.Type, desc, f.PC, f.ArgC)
	}
}

var scopeNames = map[string]int{
	"global": vm.ScopeGlobal,
	"local":  vm.ScopeLocal,
	"temp":   vm.ScopeTemp,
	"param":  vm.ScopeParam,
}

func (c *console) vars(ctx *vm.DebugContext, name string) {
	scope, ok := scopeNames[name]
	if !ok {
		fmt.Fprintf(c.out, "unknown scope %q\n", name)
		return
	}
	regs, err := ctx.Variables(scope)
	if err != nil {
		fmt.Fprintf(c.out, "%s: %v\n", name, err)
		return
	}
	if len(regs) == 0 {
		fmt.Fprintf(c.out, "no %s variables\n", name)
		return
	}
	for i, r := range regs {
		fmt.Fprintf(c.out, "%s[%d] = %s\n", name, i, r)
	}
}

func cmdDebug(g *game, args []string) error {
	if len(args) != 2 {
		return usageError("debug <script> <export>")
	}
	script, err := parseScript(args[0])
	if err != nil {
		return err
	}
	export, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad export %q", args[1])
	}
	c, restore, err := newTermConsole()
	if err != nil {
		return err
	}
	defer restore()
	return debugExport(g.engine, c, script, export)
}

// debugExport calls an export with no arguments and hands control to the
// debugger until it resumes without asking for another step.
func debugExport(e *vm.EngineState, d vm.Debugger, script, export int) error {
	e.SetDebugger(d)
	if _, err := e.Instantiate(script); err != nil {
		return err
	}
	if _, err := e.ExecuteMethod(script, export, 1, vm.NullReg, 0, 0); err != nil {
		return err
	}
	e.EnterDebugger()
	for e.DebugRequested() {
		e.ScriptDebug(0)
		if aborted, _ := e.Aborted(); aborted {
			_, err := e.PollAbort()
			return err
		}
	}
	return nil
}
