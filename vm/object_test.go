package vm

import (
	"testing"

	"github.com/chazu/sciv/scifmt"
)

func TestObjectHeader(t *testing.T) {
	for _, v := range []scifmt.Version{scifmt.VersionSCI0, scifmt.VersionSCI11} {
		t.Run(v.String(), func(t *testing.T) {
			w := newWorld(t, v)
			w.instantiate(t, scriptCat)

			cat, err := w.e.Segs.Object(w.catClass())
			if err != nil {
				t.Fatalf("Object(Cat) failed: %v", err)
			}
			if !cat.IsClass() || cat.IsClone() {
				t.Errorf("Cat info = %#x", cat.Info())
			}
			if cat.Superclass() != w.animalClass() {
				t.Errorf("Cat superclass = %v, want %v", cat.Superclass(), w.animalClass())
			}
			if cat.MethodCount() != 1 {
				t.Errorf("Cat methods = %d, want 1", cat.MethodCount())
			}

			tom, err := w.e.Segs.Object(w.tom())
			if err != nil {
				t.Fatalf("Object(Tom) failed: %v", err)
			}
			if tom.IsClass() {
				t.Error("Tom has the class bit")
			}
			if tom.Species() != w.catClass() || tom.Superclass() != w.catClass() {
				t.Errorf("Tom species/super = %v/%v", tom.Species(), tom.Superclass())
			}
			if tom.VariableCount() != w.e.Layout.HeaderVars+1 {
				t.Errorf("Tom variables = %d, want %d", tom.VariableCount(), w.e.Layout.HeaderVars+1)
			}
			if got := w.e.ObjectName(tom.Pos); got != "Tom" {
				t.Errorf("ObjectName = %q", got)
			}
			if tom.locateVarSelector(selLegs) != w.e.Layout.HeaderVars {
				t.Errorf("legs at %d, want %d", tom.locateVarSelector(selLegs), w.e.Layout.HeaderVars)
			}
			if tom.locateFuncSelector(selPurr) != -1 {
				t.Error("Tom defines purr itself")
			}
		})
	}
}

func TestCopyObjectOwnsVariables(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	w.instantiate(t, scriptCat)
	tom, _ := w.e.Segs.Object(w.tom())

	c := tom.copyObject()
	c.Variables[w.e.Layout.HeaderVars] = IntReg(99)
	if tom.Variables[w.e.Layout.HeaderVars] == IntReg(99) {
		t.Error("copy shares the variable vector")
	}
}

func TestObjectNameFallback(t *testing.T) {
	w := newWorld(t, scifmt.VersionSCI0)
	if got := w.e.ObjectName(IntReg(3)); got != "<invalid>" {
		t.Errorf("ObjectName(integer) = %q", got)
	}
}
