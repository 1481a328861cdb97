package savegame

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/sciv/resource"
	"github.com/chazu/sciv/scifmt"
	"github.com/chazu/sciv/vm"
)

func newEngine(t *testing.T, opts ...vm.Option) *vm.EngineState {
	t.Helper()
	opts = append([]vm.Option{vm.WithVersion(scifmt.VersionSCI0)}, opts...)
	e, err := vm.NewEngineState(resource.Map{}, opts...)
	if err != nil {
		t.Fatalf("NewEngineState: %v", err)
	}
	return e
}

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.db"), filepath.Join(dir, "saves"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSaveAndRestore(t *testing.T) {
	c := openCatalog(t)
	e := newEngine(t)
	e.Acc = vm.IntReg(42)

	entry, err := c.GameSaveState(e, "before the troll", false)
	if err != nil {
		t.Fatalf("GameSaveState: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("entry has no id")
	}
	if _, err := os.Stat(entry.Path); err != nil {
		t.Errorf("save file missing: %v", err)
	}

	restored, err := c.GameRestoreState(entry.ID, e)
	if err != nil {
		t.Fatalf("GameRestoreState: %v", err)
	}
	if restored.Acc != vm.IntReg(42) {
		t.Errorf("Acc = %v, want %v", restored.Acc, vm.IntReg(42))
	}
}

func TestList(t *testing.T) {
	c := openCatalog(t)
	e := newEngine(t)

	for _, name := range []string{"one", "two"} {
		if _, err := c.GameSaveState(e, name, false); err != nil {
			t.Fatalf("GameSaveState(%s): %v", name, err)
		}
	}
	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.ScriptVersion != "sci0" {
			t.Errorf("%s: script version = %q, want sci0", entry.Name, entry.ScriptVersion)
		}
		if entry.ClassFingerprint != e.Classes.Fingerprint() {
			t.Errorf("%s: fingerprint = %x, want %x", entry.Name, entry.ClassFingerprint, e.Classes.Fingerprint())
		}
	}
}

func TestTestSavegame(t *testing.T) {
	c := openCatalog(t)
	e := newEngine(t)

	entry, err := c.GameSaveState(e, "slot", false)
	if err != nil {
		t.Fatalf("GameSaveState: %v", err)
	}
	if !c.TestSavegame(entry.ID, e) {
		t.Error("TestSavegame = false for a fresh save")
	}
	if c.TestSavegame("no-such-id", e) {
		t.Error("TestSavegame = true for an unknown id")
	}

	other := newEngine(t, vm.WithVersion(scifmt.VersionSCI11))
	if c.TestSavegame(entry.ID, other) {
		t.Error("TestSavegame = true for a different script format")
	}
}

func TestRestoreIncompatible(t *testing.T) {
	c := openCatalog(t)
	e := newEngine(t)

	entry, err := c.GameSaveState(e, "slot", false)
	if err != nil {
		t.Fatalf("GameSaveState: %v", err)
	}
	if err := e.Classes.Register(3, 7); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = c.GameRestoreState(entry.ID, e)
	if !errors.Is(err, vm.ErrIncompatibleSave) {
		t.Errorf("GameRestoreState error = %v, want ErrIncompatibleSave", err)
	}
}

func TestDelete(t *testing.T) {
	c := openCatalog(t)
	e := newEngine(t)

	entry, err := c.GameSaveState(e, "gone", true)
	if err != nil {
		t.Fatalf("GameSaveState: %v", err)
	}
	if !entry.Coredump {
		t.Error("entry should be a coredump")
	}
	if err := c.Delete(entry.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(entry.Path); !os.IsNotExist(err) {
		t.Errorf("save file still present: %v", err)
	}
	if _, err := c.Get(entry.ID); !errors.Is(err, ErrSaveNotFound) {
		t.Errorf("Get after delete = %v, want ErrSaveNotFound", err)
	}
	if err := c.Delete(entry.ID); !errors.Is(err, ErrSaveNotFound) {
		t.Errorf("second Delete = %v, want ErrSaveNotFound", err)
	}
}
