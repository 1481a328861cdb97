package vm

import (
	"errors"
	"testing"
)

func TestSegManagerRecyclesIDs(t *testing.T) {
	sm := NewSegManager()
	a, _ := sm.AllocateDynMem(4, "a")
	b, _ := sm.AllocateDynMem(4, "b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("ids = %d, %d", a, b)
	}
	if err := sm.Deallocate(a); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	if sm.IsLive(a) {
		t.Error("deallocated segment still live")
	}
	if c, _ := sm.AllocateDynMem(8, "c"); c != a {
		t.Errorf("new segment id = %d, want recycled %d", c, a)
	}

	var ie *IntegrityError
	if err := sm.Deallocate(0); !errors.As(err, &ie) {
		t.Errorf("Deallocate(0) = %v, want *IntegrityError", err)
	}
	if err := sm.Deallocate(99); !errors.As(err, &ie) {
		t.Errorf("Deallocate(99) = %v, want *IntegrityError", err)
	}
}

func TestSegManagerResolve(t *testing.T) {
	sm := NewSegManager()
	id, d := sm.AllocateDynMem(4, "buf")
	copy(d.Buf, "abcd")

	var ae *AddressError
	if _, err := sm.Resolve(IntReg(3)); !errors.As(err, &ae) {
		t.Errorf("Resolve(integer) = %v, want *AddressError", err)
	}
	if _, err := sm.Resolve(MakeReg(id, 4)); !errors.As(err, &ae) {
		t.Errorf("Resolve(out of bounds) = %v, want *AddressError", err)
	}
	b, err := sm.Bytes(MakeReg(id, 2))
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if string(b) != "cd" {
		t.Errorf("Bytes = %q, want cd", b)
	}
	if _, err := sm.Object(MakeReg(id, 0)); !errors.As(err, &ae) {
		t.Errorf("Object(dynmem) = %v, want *AddressError", err)
	}

	sm.Deallocate(id)
	if _, err := sm.Bytes(MakeReg(id, 0)); !errors.As(err, &ae) {
		t.Errorf("Bytes(stale) = %v, want *AddressError", err)
	}
}

func TestSegManagerLazyTables(t *testing.T) {
	sm := NewSegManager()
	c1, _ := sm.Clones()
	c2, _ := sm.Clones()
	if c1 != c2 {
		t.Errorf("Clones() = %d then %d, want one table", c1, c2)
	}
	l, _ := sm.Lists()
	n, _ := sm.Nodes()
	h, _ := sm.Hunks()
	seen := map[uint16]bool{c1: true}
	for _, id := range []uint16{l, n, h} {
		if seen[id] {
			t.Errorf("segment id %d handed out twice", id)
		}
		seen[id] = true
	}
	if got := len(sm.LiveSegments()); got != 4 {
		t.Errorf("LiveSegments = %d, want 4", got)
	}
}

func TestSegManagerScripts(t *testing.T) {
	sm := NewSegManager()
	id := sm.AllocateScript(newScript(12, 0))
	sm.AllocateScript(newScript(3, 0))

	if sm.ScriptSegment(12) != id {
		t.Errorf("ScriptSegment(12) = %d, want %d", sm.ScriptSegment(12), id)
	}
	scripts := sm.Scripts()
	if len(scripts) != 2 || scripts[0].Number != 3 || scripts[1].Number != 12 {
		t.Errorf("Scripts() not ordered by number")
	}
	sm.Deallocate(id)
	if _, ok := sm.ScriptByNumber(12); ok {
		t.Error("deallocated script still registered")
	}
}
