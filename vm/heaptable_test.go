package vm

import (
	"errors"
	"testing"
)

func TestHeapTableAllocate(t *testing.T) {
	ht := NewHeapTable[int]("ints", 2, 3)

	for want := 0; want < 3; want++ {
		idx, v := ht.Allocate()
		if idx != want {
			t.Errorf("Allocate = %d, want %d", idx, want)
		}
		*v = want * 10
	}
	if ht.Capacity() != 5 {
		t.Errorf("Capacity = %d, want 5", ht.Capacity())
	}
	if ht.EntriesUsed() != 3 {
		t.Errorf("EntriesUsed = %d, want 3", ht.EntriesUsed())
	}
	if v, ok := ht.At(2); !ok || *v != 20 {
		t.Errorf("At(2) = %v, %v; want 20", v, ok)
	}
	if ht.IsValid(3) {
		t.Error("index 3 was never allocated")
	}
}

func TestHeapTableFreeListIsLIFO(t *testing.T) {
	ht := NewHeapTable[string]("strings", 4, 4)
	for i := 0; i < 4; i++ {
		ht.Allocate()
	}
	if err := ht.Free(1); err != nil {
		t.Fatalf("Free(1) failed: %v", err)
	}
	if err := ht.Free(2); err != nil {
		t.Fatalf("Free(2) failed: %v", err)
	}
	if ht.IsValid(1) || ht.IsValid(2) {
		t.Error("freed slots still valid")
	}

	first, v := ht.Allocate()
	if first != 2 {
		t.Errorf("first reuse = %d, want 2", first)
	}
	if *v != "" {
		t.Errorf("recycled payload = %q, want zero value", *v)
	}
	if second, _ := ht.Allocate(); second != 1 {
		t.Errorf("second reuse = %d, want 1", second)
	}
	if next, _ := ht.Allocate(); next != 4 {
		t.Errorf("fresh index = %d, want 4", next)
	}
}

func TestHeapTableDoubleFree(t *testing.T) {
	ht := NewHeapTable[int]("ints", 1, 1)
	idx, _ := ht.Allocate()
	if err := ht.Free(idx); err != nil {
		t.Fatalf("Free failed: %v", err)
	}

	var ie *IntegrityError
	if err := ht.Free(idx); !errors.As(err, &ie) {
		t.Fatalf("double Free = %v, want *IntegrityError", err)
	}
	if ie.Table != "ints" || ie.Index != idx {
		t.Errorf("IntegrityError = %+v", ie)
	}
	if err := ht.Free(99); !errors.As(err, &ie) {
		t.Errorf("Free(99) = %v, want *IntegrityError", err)
	}
	if ht.EntriesUsed() != 0 {
		t.Errorf("EntriesUsed = %d, want 0", ht.EntriesUsed())
	}
}

func TestHeapTableSnapshot(t *testing.T) {
	ht := NewHeapTable[int]("ints", 2, 2)
	for i := 0; i < 3; i++ {
		_, v := ht.Allocate()
		*v = i + 1
	}
	ht.Free(0)

	restored := RestoreHeapTable(ht.Snapshot())
	if restored.EntriesUsed() != 2 {
		t.Errorf("EntriesUsed = %d, want 2", restored.EntriesUsed())
	}
	if restored.IsValid(0) {
		t.Error("freed slot valid after restore")
	}
	if v, ok := restored.At(2); !ok || *v != 3 {
		t.Errorf("At(2) = %v, %v; want 3", v, ok)
	}
	if idx, _ := restored.Allocate(); idx != 0 {
		t.Errorf("restored free list hands out %d, want 0", idx)
	}
}
