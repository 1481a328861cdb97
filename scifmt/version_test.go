package scifmt

import "testing"

func TestVersionNames(t *testing.T) {
	for _, v := range []Version{VersionSCI0Early, VersionSCI0, VersionSCI11} {
		got, err := ParseVersion(v.String())
		if err != nil {
			t.Errorf("ParseVersion(%q) failed: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("ParseVersion(%q) = %v, want %v", v, got, v)
		}
	}
	if _, err := ParseVersion("sci2"); err == nil {
		t.Error("ParseVersion(sci2) should fail")
	}
	if VersionUnknown.String() != "unknown" {
		t.Errorf("VersionUnknown.String() = %q", VersionUnknown)
	}
}

func TestLayoutFor(t *testing.T) {
	if _, err := LayoutFor(VersionUnknown); err == nil {
		t.Error("LayoutFor(unknown) should fail")
	}
	if _, err := LayoutFor(Version(42)); err == nil {
		t.Error("LayoutFor(42) should fail")
	}

	tests := []struct {
		v          Version
		species    int
		name       int
		headerVars int
		split      bool
		toggle     bool
	}{
		{VersionSCI0Early, 0, 3, 4, false, true},
		{VersionSCI0, 0, 3, 4, false, false},
		{VersionSCI11, 5, 8, 9, true, false},
	}
	for _, tt := range tests {
		l, err := LayoutFor(tt.v)
		if err != nil {
			t.Fatalf("LayoutFor(%s) failed: %v", tt.v, err)
		}
		if l.Version != tt.v {
			t.Errorf("%s: Version = %s", tt.v, l.Version)
		}
		if l.SpeciesSelector != tt.species || l.NameSelector != tt.name || l.HeaderVars != tt.headerVars {
			t.Errorf("%s: species %d name %d header %d", tt.v, l.SpeciesSelector, l.NameSelector, l.HeaderVars)
		}
		if l.SplitHeap != tt.split || l.SelectorRWToggle != tt.toggle {
			t.Errorf("%s: split %v toggle %v", tt.v, l.SplitHeap, l.SelectorRWToggle)
		}
		if hasHeap := l.HeapLocalsOffset >= 0; hasHeap != tt.split {
			t.Errorf("%s: HeapLocalsOffset = %d with split %v", tt.v, l.HeapLocalsOffset, tt.split)
		}
	}
}

func TestSplitHeaderFromLayout(t *testing.T) {
	b, err := NewBuilder(VersionSCI11)
	if err != nil {
		t.Fatal(err)
	}
	b.Locals(5, 6, 7)
	obj := b.AddObject(ObjectDef{Name: "Box", Class: true, Species: 1, Superclass: NoClass})
	b.ExportObject(obj)
	asm, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	l, _ := LayoutFor(VersionSCI11)

	if n, _ := Word(asm.Script, l.ExportTableOffset); n != 1 {
		t.Errorf("export count = %d, want 1", n)
	}
	if v, _ := Word(asm.Script, l.ExportTableOffset+2); v != asm.Objects[0].Pos {
		t.Errorf("export 0 = %#x, want %#x", v, asm.Objects[0].Pos)
	}
	if n, _ := Word(asm.Heap, l.HeapLocalsCountOffset); n != 3 {
		t.Errorf("locals count = %d, want 3", n)
	}
	if v, _ := Word(asm.Heap, l.HeapLocalsOffset+4); v != 7 {
		t.Errorf("local 2 = %d, want 7", v)
	}
	p := int(asm.Objects[0].Pos) - asm.HeapStart
	if v, _ := Word(asm.Heap, p+l.MagicOffset); v != ObjectMagic {
		t.Errorf("magic = %#x", v)
	}
	reloc, _ := Word(asm.Heap, l.HeapRelocTableOffset)
	if n, _ := Word(asm.Heap, int(reloc)); n != 1 {
		t.Errorf("relocations = %d, want 1 (the name)", n)
	}
}

func TestWord(t *testing.T) {
	buf := make([]byte, 4)
	PutWord(buf, 1, 0xbeef)
	if v, ok := Word(buf, 1); !ok || v != 0xbeef {
		t.Errorf("Word = %#x, %v", v, ok)
	}
	if buf[1] != 0xef || buf[2] != 0xbe {
		t.Errorf("not little endian: % x", buf)
	}
	if _, ok := Word(buf, 3); ok {
		t.Error("Word past the end succeeded")
	}
	if _, ok := Word(buf, -1); ok {
		t.Error("Word at negative offset succeeded")
	}
}
