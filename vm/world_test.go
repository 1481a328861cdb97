package vm

import (
	"encoding/binary"
	"testing"

	"github.com/chazu/sciv/resource"
	"github.com/chazu/sciv/scifmt"
)

// ---------------------------------------------------------------------------
// Test world: Animal (script 10) <- Cat (script 11) <- Tom, plus a game
// object in script 0.
// ---------------------------------------------------------------------------

const (
	selSpeak  = 17
	selWalk   = 22
	selPurr   = 24
	selLegs   = 30
	selPlay   = 40
	selReplay = 42

	speciesGame   = 0
	speciesAnimal = 2
	speciesCat    = 5

	scriptGame   = 0
	scriptAnimal = 10
	scriptCat    = 11
)

var testSelectorNames = map[int]string{
	selSpeak:  "speak",
	selWalk:   "walk",
	selPurr:   "purr",
	selLegs:   "legs",
	selPlay:   "play",
	selReplay: "replay",
}

func selectorVocab(names map[int]string) []byte {
	maxID := 0
	for id := range names {
		if id > maxID {
			maxID = id
		}
	}
	n := maxID + 1
	buf := make([]byte, 2+2*n)
	binary.LittleEndian.PutUint16(buf, uint16(maxID))
	for id := 0; id < n; id++ {
		binary.LittleEndian.PutUint16(buf[2+2*id:], uint16(len(buf)))
		name := names[id]
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
		buf = append(buf, name...)
	}
	return buf
}

func classVocab(scripts map[int]int) []byte {
	maxSpecies := 0
	for s := range scripts {
		if s > maxSpecies {
			maxSpecies = s
		}
	}
	buf := make([]byte, 4*(maxSpecies+1))
	for species := 0; species <= maxSpecies; species++ {
		script, ok := scripts[species]
		if !ok {
			script = 0xffff
		}
		binary.LittleEndian.PutUint16(buf[species*4+2:], uint16(script))
	}
	return buf
}

type world struct {
	e      *EngineState
	res    resource.Map
	game   *scifmt.Assembled
	animal *scifmt.Assembled
	cat    *scifmt.Assembled
}

func build(t *testing.T, b *scifmt.Builder) *scifmt.Assembled {
	t.Helper()
	asm, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return asm
}

func newBuilder(t *testing.T, v scifmt.Version) *scifmt.Builder {
	t.Helper()
	b, err := scifmt.NewBuilder(v)
	if err != nil {
		t.Fatalf("NewBuilder(%s) failed: %v", v, err)
	}
	return b
}

func gameScript(t *testing.T, v scifmt.Version) *scifmt.Assembled {
	b := newBuilder(t, v)
	b.Locals(100, 200, 300)
	b.AddObject(scifmt.ObjectDef{
		Name:       "Game",
		Class:      true,
		Species:    speciesGame,
		Superclass: scifmt.NoClass,
		Methods: []scifmt.Method{
			{Selector: selPlay, Code: []byte{0x48}},
			{Selector: selReplay, Code: []byte{0x48}},
		},
	})
	g := b.AddObject(scifmt.ObjectDef{
		Name:       "theGame",
		Species:    speciesGame,
		Superclass: speciesGame,
	})
	b.ExportObject(g)
	return build(t, b)
}

func animalScript(t *testing.T, v scifmt.Version) *scifmt.Assembled {
	b := newBuilder(t, v)
	b.AddObject(scifmt.ObjectDef{
		Name:       "Animal",
		Class:      true,
		Species:    speciesAnimal,
		Superclass: scifmt.NoClass,
		Properties: []scifmt.Property{{Selector: selLegs, Value: 4}},
		Methods: []scifmt.Method{
			{Selector: selSpeak, Code: []byte{0x48}},
			{Selector: selWalk, Code: []byte{0x48, 0x48}},
		},
	})
	return build(t, b)
}

func catScript(t *testing.T, v scifmt.Version) *scifmt.Assembled {
	b := newBuilder(t, v)
	b.Locals(7, 8)
	b.AddObject(scifmt.ObjectDef{
		Name:       "Cat",
		Class:      true,
		Species:    speciesCat,
		Superclass: speciesAnimal,
		Properties: []scifmt.Property{{Selector: selLegs, Value: 4}},
		Methods:    []scifmt.Method{{Selector: selPurr, Code: []byte{0x48}}},
	})
	tom := b.AddObject(scifmt.ObjectDef{
		Name:       "Tom",
		Species:    speciesCat,
		Superclass: speciesCat,
		Properties: []scifmt.Property{{Selector: selLegs, Value: 4}},
	})
	b.ExportObject(tom)
	b.ExportCode([]byte{0x48})
	return build(t, b)
}

func newWorld(t *testing.T, v scifmt.Version, opts ...Option) *world {
	t.Helper()
	w := &world{
		res:    resource.Map{},
		game:   gameScript(t, v),
		animal: animalScript(t, v),
		cat:    catScript(t, v),
	}
	w.res.AddScript(scriptGame, w.game)
	w.res.AddScript(scriptAnimal, w.animal)
	w.res.AddScript(scriptCat, w.cat)
	w.res.AddVocab(VocabSelectorNames, selectorVocab(testSelectorNames))
	w.res.AddVocab(VocabClassTable, classVocab(map[int]int{
		speciesGame:   scriptGame,
		speciesAnimal: scriptAnimal,
		speciesCat:    scriptCat,
	}))

	opts = append([]Option{WithVersion(v)}, opts...)
	e, err := NewEngineState(w.res, opts...)
	if err != nil {
		t.Fatalf("NewEngineState failed: %v", err)
	}
	w.e = e
	return w
}

func (w *world) instantiate(t *testing.T, nr int) uint16 {
	t.Helper()
	id, err := w.e.Instantiate(nr)
	if err != nil {
		t.Fatalf("Instantiate(%d) failed: %v", nr, err)
	}
	return id
}

func (w *world) script(t *testing.T, nr int) *Script {
	t.Helper()
	s, ok := w.e.Segs.ScriptByNumber(nr)
	if !ok {
		t.Fatalf("script %d not resident", nr)
	}
	return s
}

func (w *world) tom() Reg {
	return MakeReg(w.e.Segs.ScriptSegment(scriptCat), w.cat.Objects[1].Pos)
}

func (w *world) catClass() Reg {
	return MakeReg(w.e.Segs.ScriptSegment(scriptCat), w.cat.Objects[0].Pos)
}

func (w *world) animalClass() Reg {
	return MakeReg(w.e.Segs.ScriptSegment(scriptAnimal), w.animal.Objects[0].Pos)
}

func (w *world) animalMethod(i int) Reg {
	return MakeReg(w.e.Segs.ScriptSegment(scriptAnimal), w.animal.Objects[0].Methods[i])
}

// pushSend lays selector groups out on the data stack from argp and returns
// the frame size.
func (w *world) pushSend(argp int, groups ...[]Reg) int {
	data := w.e.DataStack()
	n := 0
	for _, g := range groups {
		copy(data[argp+n:], g)
		n += len(g)
	}
	return n
}

func group(selector int, args ...Reg) []Reg {
	g := []Reg{IntReg(uint16(selector)), IntReg(uint16(len(args)))}
	return append(g, args...)
}
