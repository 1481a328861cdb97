package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Abort handling and the game loop
// ---------------------------------------------------------------------------

// AbortReason says why the VM was asked to stop.
type AbortReason int

const (
	AbortNone AbortReason = iota
	// AbortQuit ends the game.
	AbortQuit
	// AbortRestart unwinds and starts the game over with play.
	AbortRestart
	// AbortReplay unwinds and resumes the game with replay, after a restore.
	AbortReplay
	// AbortFatal unwinds after an unrecoverable error.
	AbortFatal
)

func (r AbortReason) String() string {
	switch r {
	case AbortQuit:
		return "quit"
	case AbortRestart:
		return "restart"
	case AbortReplay:
		return "replay"
	case AbortFatal:
		return "fatal"
	default:
		return "none"
	}
}

type abortState struct {
	set    bool
	reason AbortReason
	err    error
}

// Abort raises the abort flag. The first fatal error is kept; a fatal abort
// is never downgraded by a later request.
func (e *EngineState) Abort(reason AbortReason, err error) {
	if e.abort.set && e.abort.reason == AbortFatal {
		return
	}
	e.abort = abortState{set: true, reason: reason, err: err}
}

// Aborted reports whether the abort flag is up and why.
func (e *EngineState) Aborted() (bool, AbortReason) {
	return e.abort.set, e.abort.reason
}

// PollAbort is called by the decode loop once per instruction. When the
// abort flag is up it unwinds the execution stack and clears the flag. A
// replay abort then sends replay to the game object, so execution continues
// with the new top frame. The returned error is the fatal error, if any.
func (e *EngineState) PollAbort() (bool, error) {
	if !e.abort.set {
		return false, nil
	}
	st := e.abort
	e.unwind()
	e.abort = abortState{}
	switch st.reason {
	case AbortFatal:
		if st.err == nil {
			st.err = ErrAborted
		}
		return true, st.err
	case AbortReplay:
		if err := e.sendToGame(e.wellKnown.Replay); err != nil {
			return true, err
		}
	case AbortRestart:
		e.restart = true
	}
	return true, nil
}

func (e *EngineState) unwind() {
	for e.Stack.Len() > 0 {
		_, _ = e.Stack.Pop()
	}
	if err := e.recheckDeferred(); err != nil {
		e.log.Errorf("unwinding: %s", err)
	}
}

// sendToGame sends a zero-argument selector to the game object from the
// bottom of the data stack.
func (e *EngineState) sendToGame(selector int) error {
	if e.GameObject.IsNull() {
		return fmt.Errorf("no game object")
	}
	if selector < 0 {
		return fmt.Errorf("game selector not in vocabulary")
	}
	e.data.Entries[0] = IntReg(uint16(selector))
	e.data.Entries[1] = IntReg(0)
	_, err := e.SendSelector(e.GameObject, e.GameObject, 2, 2, 0)
	return err
}

// DecodeLoop executes bytecode until the execution stack is empty. It must
// call PollAbort once per instruction and return when told to.
type DecodeLoop func(e *EngineState) error

// SetGameObject locates the game object: export 0 of script 0.
func (e *EngineState) SetGameObject() error {
	addr, err := e.LookupExport(0, 0)
	if err != nil {
		return fmt.Errorf("game object: %w", err)
	}
	if _, err := e.Segs.Object(addr); err != nil {
		return fmt.Errorf("game object: %w", err)
	}
	e.GameObject = addr
	return nil
}

// RunGame sends play to the game object and runs loop until the game ends.
// A restart abort sends play again.
func (e *EngineState) RunGame(loop DecodeLoop) error {
	if e.GameObject.IsNull() {
		if err := e.SetGameObject(); err != nil {
			return err
		}
	}
	for {
		e.restart = false
		if err := e.sendToGame(e.wellKnown.Play); err != nil {
			return err
		}
		for e.Stack.Len() > 0 {
			if err := loop(e); err != nil && !errors.Is(err, ErrAborted) {
				return err
			}
			if aborted, err := e.PollAbort(); err != nil {
				return err
			} else if aborted && e.restart {
				break
			}
		}
		if !e.restart {
			return nil
		}
		e.log.Infof("restarting game")
	}
}
