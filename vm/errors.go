package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrScriptNotFound is returned when no resource backs a script number.
	ErrScriptNotFound = errors.New("script not found")

	// ErrNotLoaded is returned when a script must already be resident but is not.
	ErrNotLoaded = errors.New("script not loaded")

	// ErrStackOverflow is returned when a frame would leave the data stack.
	ErrStackOverflow = errors.New("data stack overflow")

	// ErrIncompatibleSave is returned when a save file does not match the
	// running game's script format or class table.
	ErrIncompatibleSave = errors.New("incompatible save game")

	// ErrUnknownClass is returned for species ids no script defines.
	ErrUnknownClass = errors.New("unknown class")

	// ErrAborted is returned by entry points invoked while the abort flag is set.
	ErrAborted = errors.New("vm aborted")
)

// AddressError reports a Reg that cannot be resolved: a stale segment id, an
// out-of-bounds offset, or a segment lacking the requested capability.
type AddressError struct {
	Addr   Reg
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid address %s: %s", e.Addr, e.Reason)
}

// IntegrityError reports a violated heap invariant such as a double free. It
// signals a VM bug rather than bad input.
type IntegrityError struct {
	Table string
	Index int
	Op    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("heap integrity violation: %s of entry %d in %s", e.Op, e.Index, e.Table)
}

// SelectorError reports a send to a selector the target cannot resolve.
type SelectorError struct {
	Selector int
	Name     string
	Object   Reg
	Class    string
	Reason   string
}

func (e *SelectorError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("%#x", e.Selector)
	}
	return fmt.Sprintf("send to %s::%s at %s: %s", e.Class, name, e.Object, e.Reason)
}

// FormatError reports a malformed or unsupported script.
type FormatError struct {
	Script int
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("script %03d: format error at %#x: %s", e.Script, e.Offset, e.Reason)
}

// IsFatal reports whether err belongs to a class of errors that abort the VM.
func IsFatal(err error) bool {
	var ie *IntegrityError
	var se *SelectorError
	return errors.As(err, &ie) || errors.As(err, &se)
}
