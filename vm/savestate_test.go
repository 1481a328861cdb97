package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/sciv/scifmt"
)

func saveTo(t *testing.T, e *EngineState, name string, coredump bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := e.SaveState(&buf, name, coredump); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	return &buf
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)
	if err := w.e.SetGameObject(); err != nil {
		t.Fatalf("SetGameObject failed: %v", err)
	}
	clone, _ := w.e.CloneObject(w.tom())
	w.e.SetProperty(clone, selLegs, IntReg(3))
	list, _ := w.e.NewList()
	node, _ := w.e.NewNode(clone, IntReg(1))
	w.e.AddToEnd(list, node)
	w.e.SetSysString(SysStringSaveDir, "GAMES")
	w.e.Acc = list

	size := w.pushSend(0, group(selSpeak))
	if _, err := w.e.SendSelector(w.tom(), w.tom(), size, size, 0); err != nil {
		t.Fatalf("SendSelector failed: %v", err)
	}

	buf := saveTo(t, w.e, "in the forest", false)
	r, err := RestoreState(buf, w.e)
	if err != nil {
		t.Fatalf("RestoreState failed: %v", err)
	}

	if r.Acc != list || r.GameObject != w.e.GameObject {
		t.Errorf("Acc, GameObject = %v, %v", r.Acc, r.GameObject)
	}
	if r.Stack.Len() != 1 {
		t.Fatalf("restored %d frames, want 1", r.Stack.Len())
	}
	top, _ := r.Stack.Top()
	if top.Selector != selSpeak || top.PC != w.animalMethod(0) {
		t.Errorf("top frame = %+v", top)
	}

	for _, nr := range []int{scriptGame, scriptAnimal, scriptCat} {
		orig, _ := w.e.Segs.ScriptByNumber(nr)
		got, ok := r.Segs.ScriptByNumber(nr)
		if !ok {
			t.Fatalf("script %d not restored", nr)
		}
		if got.Lockers != orig.Lockers {
			t.Errorf("script %d lockers = %d, want %d", nr, got.Lockers, orig.Lockers)
		}
		if r.Segs.ScriptSegment(nr) != w.e.Segs.ScriptSegment(nr) {
			t.Errorf("script %d moved segments", nr)
		}
	}

	if got := r.ObjectName(w.tom()); got != "Tom" {
		t.Errorf("ObjectName(Tom) = %q", got)
	}
	if v, err := r.Property(clone, selLegs); err != nil || v != IntReg(3) {
		t.Errorf("clone legs = %v, %v; want 3", v, err)
	}
	if kind, _, funcp, err := r.LookupSelector(w.tom(), selSpeak); err != nil || kind != SelectorMethod || funcp != w.animalMethod(0) {
		t.Errorf("LookupSelector(speak) = %v, %v, %v", kind, funcp, err)
	}
	if nodes, err := r.ListNodes(list); err != nil || len(nodes) != 1 || nodes[0] != node {
		t.Errorf("ListNodes = %v, %v", nodes, err)
	}
	if s, _ := r.SysString(SysStringSaveDir); s != "GAMES" {
		t.Errorf("save dir = %q", s)
	}
	if r.Classes.Fingerprint() != w.e.Classes.Fingerprint() {
		t.Error("class table changed")
	}
	if e, ok := r.Classes.Entry(speciesCat); !ok || e.Reg != w.catClass() {
		t.Errorf("class entry = %+v", e)
	}

	// The restored state keeps allocating where the original left off.
	id, _ := r.AllocDynMem(4, "after restore")
	if _, ok := w.e.Segs.Segment(id.Segment); ok {
		t.Errorf("restored state reused live segment %d", id.Segment)
	}
}

func TestSaveRestoreSharesBindings(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.e.RegisterKernel("Add", addKernel)
	w.e.AddSelectorBreakpoint("Tom::speak")

	r, err := RestoreState(saveTo(t, w.e, "x", false), w.e)
	if err != nil {
		t.Fatalf("RestoreState failed: %v", err)
	}
	if !r.HasKernelFunction("Add") {
		t.Error("kernel bindings lost")
	}
	if bp := r.BreakpointList(); len(bp.Selectors) != 1 {
		t.Errorf("breakpoints = %v", bp)
	}
	if r.Selectors.Name(selSpeak) != "speak" {
		t.Error("selector names lost")
	}

	// Later bindings stay with the state they were made on.
	r.RegisterKernel("Sub", addKernel)
	if w.e.HasKernelFunction("Sub") {
		t.Error("kernel registered on restored state leaked into the original")
	}
	w.e.RegisterKernel("Mul", addKernel)
	if r.HasKernelFunction("Mul") {
		t.Error("kernel registered on the original leaked into the restored state")
	}
	r.Selectors.Intern("meow")
	if w.e.Selectors.Lookup("meow") != -1 {
		t.Error("selector interned on restored state leaked into the original")
	}
}

func TestProbeSave(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	hdr, err := ProbeSave(saveTo(t, w.e, "by the lake", false))
	if err != nil {
		t.Fatalf("ProbeSave failed: %v", err)
	}
	if hdr.Name != "by the lake" || hdr.ScriptVersion != scifmt.VersionSCI0 {
		t.Errorf("header = %+v", hdr)
	}
	if hdr.Coredump || hdr.SegmentDump != "" {
		t.Error("plain save carries a segment dump")
	}
	if hdr.Time().IsZero() {
		t.Error("save has no timestamp")
	}
	if err := w.e.CheckCompatible(hdr); err != nil {
		t.Errorf("CheckCompatible = %v", err)
	}
}

func TestCoredump(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)
	hdr, err := ProbeSave(saveTo(t, w.e, "crash", true))
	if err != nil {
		t.Fatalf("ProbeSave failed: %v", err)
	}
	if !hdr.Coredump {
		t.Error("Coredump = false")
	}
	for _, want := range []string{"script 011", "stack", "sys_strings"} {
		if !strings.Contains(hdr.SegmentDump, want) {
			t.Errorf("segment dump lacks %q:\n%s", want, hdr.SegmentDump)
		}
	}
}

func TestRestoreIncompatible(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	buf := saveTo(t, w.e, "x", false)

	other := newWorld(t, scifmt.VersionSCI11)
	if _, err := RestoreState(bytes.NewReader(buf.Bytes()), other.e); !errors.Is(err, ErrIncompatibleSave) {
		t.Errorf("RestoreState across versions = %v, want ErrIncompatibleSave", err)
	}

	w.e.Classes.Register(3, 7)
	if _, err := RestoreState(bytes.NewReader(buf.Bytes()), w.e); !errors.Is(err, ErrIncompatibleSave) {
		t.Errorf("RestoreState across class tables = %v, want ErrIncompatibleSave", err)
	}
}

func TestProbeNotASave(t *testing.T) {
	if _, err := ProbeSave(strings.NewReader("GIF89a....")); !errors.Is(err, ErrIncompatibleSave) {
		t.Errorf("ProbeSave = %v, want ErrIncompatibleSave", err)
	}
	if _, err := ProbeSave(strings.NewReader("SC")); err == nil {
		t.Error("ProbeSave of a short file should fail")
	}
}
