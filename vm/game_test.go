package vm

import (
	"errors"
	"testing"

	"github.com/chazu/sciv/scifmt"
)

func TestSetGameObject(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	if err := w.e.SetGameObject(); err != nil {
		t.Fatalf("SetGameObject failed: %v", err)
	}
	if got := w.e.ObjectName(w.e.GameObject); got != "theGame" {
		t.Errorf("game object = %q, want theGame", got)
	}
}

func TestAbortNeverDowngradesFatal(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	boom := errors.New("boom")
	w.e.Abort(AbortFatal, boom)
	w.e.Abort(AbortQuit, nil)
	if _, reason := w.e.Aborted(); reason != AbortFatal {
		t.Errorf("reason = %s, want fatal", reason)
	}
	aborted, err := w.e.PollAbort()
	if !aborted || !errors.Is(err, boom) {
		t.Errorf("PollAbort = %v, %v; want true, boom", aborted, err)
	}
	if aborted, _ := w.e.Aborted(); aborted {
		t.Error("flag still set after PollAbort")
	}
}

func TestPollAbortQuit(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)
	size := w.pushSend(0, group(selSpeak))
	w.e.SendSelector(w.tom(), w.tom(), size, size, 0)

	if aborted, _ := w.e.PollAbort(); aborted {
		t.Fatal("PollAbort reported an abort that was never raised")
	}
	w.e.Abort(AbortQuit, nil)
	aborted, err := w.e.PollAbort()
	if !aborted || err != nil {
		t.Errorf("PollAbort = %v, %v; want true, nil", aborted, err)
	}
	if w.e.Stack.Len() != 0 {
		t.Errorf("stack not unwound: %d frames", w.e.Stack.Len())
	}
}

func TestPollAbortReplay(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	if err := w.e.SetGameObject(); err != nil {
		t.Fatalf("SetGameObject failed: %v", err)
	}
	w.e.Abort(AbortReplay, nil)
	if aborted, err := w.e.PollAbort(); !aborted || err != nil {
		t.Fatalf("PollAbort = %v, %v", aborted, err)
	}
	top, ok := w.e.Stack.Top()
	if !ok || top.Selector != selReplay {
		t.Fatalf("top frame = %+v, want replay call", top)
	}
	if top.CalledObject != w.e.GameObject {
		t.Errorf("replay sent to %v, want %v", top.CalledObject, w.e.GameObject)
	}
}

func TestSendWhileAborted(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)
	w.e.Abort(AbortQuit, nil)
	size := w.pushSend(0, group(selSpeak))
	if _, err := w.e.SendSelector(w.tom(), w.tom(), size, size, 0); !errors.Is(err, ErrAborted) {
		t.Errorf("SendSelector = %v, want ErrAborted", err)
	}
}

// returnLoop stands in for the bytecode interpreter: every instruction
// returns from the current frame.
func returnLoop(seen *[]int) DecodeLoop {
	return func(e *EngineState) error {
		top, _ := e.Stack.Top()
		*seen = append(*seen, top.Selector)
		_, err := e.Return(NullReg)
		return err
	}
}

func TestRunGame(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	var seen []int
	if err := w.e.RunGame(returnLoop(&seen)); err != nil {
		t.Fatalf("RunGame failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != selPlay {
		t.Errorf("selectors run = %v, want [play]", seen)
	}
	if w.e.GameObject.IsNull() {
		t.Error("game object not located")
	}
}

func TestRunGameRestart(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	var seen []int
	restarted := false
	loop := func(e *EngineState) error {
		top, _ := e.Stack.Top()
		seen = append(seen, top.Selector)
		if !restarted {
			restarted = true
			e.Abort(AbortRestart, nil)
			return nil
		}
		_, err := e.Return(NullReg)
		return err
	}
	if err := w.e.RunGame(loop); err != nil {
		t.Fatalf("RunGame failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != selPlay || seen[1] != selPlay {
		t.Errorf("selectors run = %v, want play twice", seen)
	}
}

func TestRunGameFatal(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	loop := func(e *EngineState) error {
		return e.fatal(&IntegrityError{Table: "nodes", Index: 3, Op: "free"})
	}
	err := w.e.RunGame(loop)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Errorf("RunGame = %v, want *IntegrityError", err)
	}
}
