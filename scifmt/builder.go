package scifmt

import (
	"encoding/binary"
	"fmt"
)

// Property is a user-visible object variable beyond the header variables.
// Pointer marks values that are offsets to be relocated into the script's
// segment at load time: script offsets for block-structured scripts, heap
// offsets for split-heap scripts.
type Property struct {
	Selector uint16
	Value    uint16
	Pointer  bool
}

// Method is a method selector and its opaque code bytes.
type Method struct {
	Selector uint16
	Code     []byte
}

// ObjectDef describes one class or instance record.
type ObjectDef struct {
	Name       string
	Class      bool
	Species    uint16
	Superclass uint16
	Info       uint16
	Properties []Property
	Methods    []Method
}

// Synonym is a parser synonym pair.
type Synonym struct {
	Word        uint16
	Replacement uint16
}

// AssembledObject reports where an object and its methods ended up.
type AssembledObject struct {
	Name    string
	Pos     uint16
	Methods []uint16
}

// Assembled is the output of a Builder. Offsets are segment offsets, that is
// offsets into the script as the loader maps it (script followed by heap).
type Assembled struct {
	Version   Version
	Script    []byte
	Heap      []byte
	HeapStart int
	Objects   []AssembledObject
	Exports   []uint16
}

// DefaultHeaderSelectors are the selector ids used for the species,
// superclass, info and name variables. They are even so that they survive the
// read/write toggle of early scripts.
var DefaultHeaderSelectors = [4]uint16{0x1000, 0x1002, 0x1004, 0x1006}

// split-heap objects carry five more header variables.
var splitHeaderSelectors = [5]uint16{0x1008, 0x100a, 0x100c, 0x100e, 0x1010}

type localDef struct {
	value   uint16
	pointer bool
}

type exportDef struct {
	object int
	code   []byte
}

// Builder assembles script resources. It is used by tests and tooling to
// produce scripts without a compiler.
type Builder struct {
	version Version
	layout  Layout

	HeaderSelectors [4]uint16

	locals   []localDef
	objects  []ObjectDef
	exports  []exportDef
	synonyms []Synonym
}

// NewBuilder returns a Builder for the given format version.
func NewBuilder(v Version) (*Builder, error) {
	layout, err := LayoutFor(v)
	if err != nil {
		return nil, err
	}
	return &Builder{
		version:         v,
		layout:          layout,
		HeaderSelectors: DefaultHeaderSelectors,
	}, nil
}

// Locals appends plain local variables.
func (b *Builder) Locals(values ...uint16) *Builder {
	for _, v := range values {
		b.locals = append(b.locals, localDef{value: v})
	}
	return b
}

// LocalPointer appends a local variable holding a relocatable offset.
func (b *Builder) LocalPointer(v uint16) *Builder {
	b.locals = append(b.locals, localDef{value: v, pointer: true})
	return b
}

// AddObject appends an object record and returns its index.
func (b *Builder) AddObject(def ObjectDef) int {
	b.objects = append(b.objects, def)
	return len(b.objects) - 1
}

// ExportObject appends an export entry pointing at an object.
func (b *Builder) ExportObject(index int) *Builder {
	b.exports = append(b.exports, exportDef{object: index})
	return b
}

// ExportCode appends an export entry pointing at a code fragment.
func (b *Builder) ExportCode(code []byte) *Builder {
	b.exports = append(b.exports, exportDef{object: -1, code: code})
	return b
}

// Synonym appends a synonym pair.
func (b *Builder) Synonym(word, replacement uint16) *Builder {
	b.synonyms = append(b.synonyms, Synonym{word, replacement})
	return b
}

// Build lays the script out.
func (b *Builder) Build() (*Assembled, error) {
	for i, e := range b.exports {
		if e.object >= len(b.objects) {
			return nil, fmt.Errorf("scifmt: export %d refers to object %d of %d", i, e.object, len(b.objects))
		}
	}
	if b.layout.SplitHeap {
		return b.buildSplit()
	}
	return b.buildBlocks()
}

// writer is an append-only little-endian buffer with back-patching.
type writer struct {
	buf []byte
}

func (w *writer) len() int { return len(w.buf) }

func (w *writer) word(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) bytes(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *writer) pad(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

func (w *writer) align() {
	if len(w.buf)&1 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) put(off int, v uint16) {
	binary.LittleEndian.PutUint16(w.buf[off:], v)
}

func (w *writer) begin(t BlockType) int {
	start := w.len()
	w.word(uint16(t))
	w.word(0)
	return start
}

func (w *writer) end(start int) {
	w.align()
	w.put(start+2, uint16(w.len()-start))
}

func codeOrPad(code []byte) []byte {
	if len(code) == 0 {
		return []byte{0}
	}
	return code
}

func (b *Builder) info(def ObjectDef) uint16 {
	if def.Class {
		return def.Info | InfoClass
	}
	return def.Info
}

func (b *Builder) buildBlocks() (*Assembled, error) {
	l := b.layout
	w := &writer{}
	asm := &Assembled{Version: b.version}
	var relocs []int

	if l.HeaderPrefix > 0 {
		w.word(uint16(len(b.locals)))
		w.pad(l.HeaderPrefix - 2)
	}

	exportSlots := make([]int, len(b.exports))
	if len(b.exports) > 0 {
		blk := w.begin(BlockExports)
		w.word(uint16(len(b.exports)))
		for i := range b.exports {
			exportSlots[i] = w.len()
			w.word(0)
		}
		w.end(blk)
	}

	if len(b.synonyms) > 0 {
		blk := w.begin(BlockSynonyms)
		for _, s := range b.synonyms {
			w.word(s.Word)
			w.word(s.Replacement)
		}
		w.end(blk)
	}

	localsOff := 0
	if l.HeaderPrefix == 0 && len(b.locals) > 0 {
		blk := w.begin(BlockLocalVars)
		localsOff = w.len()
		for _, lv := range b.locals {
			if lv.pointer {
				relocs = append(relocs, w.len())
			}
			w.word(lv.value)
		}
		w.end(blk)
	}

	nameSlots := make([]int, len(b.objects))
	methodSlots := make([][]int, len(b.objects))
	for i, def := range b.objects {
		typ := BlockObject
		if def.Class {
			typ = BlockClass
		}
		blk := w.begin(typ)
		pos := w.len() - l.MagicOffset
		w.pad(-l.MagicOffset)
		varCount := l.HeaderVars + len(def.Properties)
		w.put(pos+l.MagicOffset, ObjectMagic)
		w.put(pos+l.LocalVarPtrOffset, uint16(localsOff))
		w.put(pos+l.SelectorCounterOffset, uint16(varCount))

		vars := make([]uint16, varCount)
		vars[l.SpeciesSelector] = def.Species
		vars[l.SuperclassSelector] = def.Superclass
		vars[l.InfoSelector] = b.info(def)
		for j, p := range def.Properties {
			vars[l.HeaderVars+j] = p.Value
			if p.Pointer {
				relocs = append(relocs, pos+2*(l.HeaderVars+j))
			}
		}
		nameSlots[i] = -1
		if def.Name != "" {
			nameSlots[i] = pos + 2*l.NameSelector
			relocs = append(relocs, nameSlots[i])
		}
		for _, v := range vars {
			w.word(v)
		}
		if def.Class {
			for _, s := range b.HeaderSelectors {
				w.word(s)
			}
			for _, p := range def.Properties {
				w.word(p.Selector)
			}
		}

		w.put(pos+l.FunctAreaPtrOffset, uint16(w.len()-pos))
		w.word(uint16(len(def.Methods)))
		for _, m := range def.Methods {
			w.word(m.Selector)
		}
		w.word(0)
		for range def.Methods {
			methodSlots[i] = append(methodSlots[i], w.len())
			w.word(0)
		}
		w.end(blk)
		asm.Objects = append(asm.Objects, AssembledObject{Name: def.Name, Pos: uint16(pos)})
	}

	if hasNames(b.objects) {
		blk := w.begin(BlockStrings)
		for i, def := range b.objects {
			if nameSlots[i] < 0 {
				continue
			}
			w.put(nameSlots[i], uint16(w.len()))
			w.bytes(append([]byte(def.Name), 0))
		}
		w.end(blk)
	}

	asm.Exports = make([]uint16, len(b.exports))
	if hasCode(b.objects, b.exports) {
		blk := w.begin(BlockCode)
		for i, def := range b.objects {
			for j, m := range def.Methods {
				off := uint16(w.len())
				w.put(methodSlots[i][j], off)
				asm.Objects[i].Methods = append(asm.Objects[i].Methods, off)
				w.bytes(codeOrPad(m.Code))
			}
		}
		for i, e := range b.exports {
			if e.object < 0 {
				asm.Exports[i] = uint16(w.len())
				w.bytes(codeOrPad(e.code))
			}
		}
		w.end(blk)
	}
	for i, e := range b.exports {
		if e.object >= 0 {
			asm.Exports[i] = asm.Objects[e.object].Pos
		}
		w.put(exportSlots[i], asm.Exports[i])
	}

	if len(relocs) > 0 {
		blk := w.begin(BlockPointers)
		w.word(uint16(len(relocs)))
		for _, r := range relocs {
			w.word(uint16(r))
		}
		w.end(blk)
	}
	w.word(uint16(BlockEnd))

	asm.Script = w.buf
	return asm, nil
}

func (b *Builder) buildSplit() (*Assembled, error) {
	l := b.layout
	s := &writer{}
	h := &writer{}
	asm := &Assembled{Version: b.version}

	s.pad(l.ExportTableOffset)
	s.word(uint16(len(b.exports)))
	exportSlots := make([]int, len(b.exports))
	for i := range b.exports {
		exportSlots[i] = s.len()
		s.word(0)
	}

	propDicts := make([]int, len(b.objects))
	methDicts := make([]int, len(b.objects))
	methodSlots := make([][]int, len(b.objects))
	for i, def := range b.objects {
		propDicts[i] = s.len()
		for _, sel := range splitHeaderSelectors {
			s.word(sel)
		}
		for _, sel := range b.HeaderSelectors {
			s.word(sel)
		}
		for _, p := range def.Properties {
			s.word(p.Selector)
		}
		methDicts[i] = s.len()
		s.word(uint16(len(def.Methods)))
		for _, m := range def.Methods {
			s.word(m.Selector)
			methodSlots[i] = append(methodSlots[i], s.len())
			s.word(0)
		}
	}
	methodOffsets := make([][]uint16, len(b.objects))
	for i, def := range b.objects {
		for j, m := range def.Methods {
			off := uint16(s.len())
			s.put(methodSlots[i][j], off)
			methodOffsets[i] = append(methodOffsets[i], off)
			s.bytes(codeOrPad(m.Code))
		}
	}
	asm.Exports = make([]uint16, len(b.exports))
	for i, e := range b.exports {
		if e.object < 0 {
			asm.Exports[i] = uint16(s.len())
			s.bytes(codeOrPad(e.code))
		}
	}
	s.align()
	heapStart := s.len()

	var relocs []int
	h.pad(l.HeapLocalsOffset)
	h.put(l.HeapLocalsCountOffset, uint16(len(b.locals)))
	for _, lv := range b.locals {
		if lv.pointer {
			relocs = append(relocs, h.len())
		}
		h.word(lv.value)
	}

	nameSlots := make([]int, len(b.objects))
	for i, def := range b.objects {
		p := h.len()
		varCount := l.HeaderVars + len(def.Properties)
		vars := make([]uint16, varCount)
		vars[l.MagicOffset/2] = ObjectMagic
		vars[l.SelectorCounterOffset/2] = uint16(varCount)
		vars[l.PropDictSelector] = uint16(propDicts[i])
		vars[l.MethDictSelector] = uint16(methDicts[i])
		vars[l.SpeciesSelector] = def.Species
		vars[l.SuperclassSelector] = def.Superclass
		vars[l.InfoSelector] = b.info(def)
		for j, prop := range def.Properties {
			vars[l.HeaderVars+j] = prop.Value
			if prop.Pointer {
				relocs = append(relocs, p+2*(l.HeaderVars+j))
			}
		}
		nameSlots[i] = -1
		if def.Name != "" {
			nameSlots[i] = p + 2*l.NameSelector
			relocs = append(relocs, nameSlots[i])
		}
		for _, v := range vars {
			h.word(v)
		}
		asm.Objects = append(asm.Objects, AssembledObject{
			Name:    def.Name,
			Pos:     uint16(heapStart + p),
			Methods: methodOffsets[i],
		})
	}
	h.word(0)

	for i, def := range b.objects {
		if nameSlots[i] < 0 {
			continue
		}
		h.put(nameSlots[i], uint16(h.len()))
		h.bytes(append([]byte(def.Name), 0))
	}
	h.align()

	h.put(l.HeapRelocTableOffset, uint16(h.len()))
	h.word(uint16(len(relocs)))
	for _, r := range relocs {
		h.word(uint16(r))
	}

	for i, e := range b.exports {
		if e.object >= 0 {
			asm.Exports[i] = asm.Objects[e.object].Pos
		}
		s.put(exportSlots[i], asm.Exports[i])
	}

	asm.Script = s.buf
	asm.Heap = h.buf
	asm.HeapStart = heapStart
	return asm, nil
}

func hasNames(objs []ObjectDef) bool {
	for _, o := range objs {
		if o.Name != "" {
			return true
		}
	}
	return false
}

func hasCode(objs []ObjectDef, exports []exportDef) bool {
	for _, o := range objs {
		if len(o.Methods) > 0 {
			return true
		}
	}
	for _, e := range exports {
		if e.object < 0 {
			return true
		}
	}
	return false
}
