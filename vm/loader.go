package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/sciv/scifmt"
)

// ---------------------------------------------------------------------------
// Script loader: instantiate, relocate, link, uninstantiate
// ---------------------------------------------------------------------------

// LoadPolicy says what GetScriptSegment may do about a missing script.
type LoadPolicy int

const (
	// DontLoad requires the script to be resident already.
	DontLoad LoadPolicy = iota
	// Load loads a missing script without taking a lock on a resident one.
	Load
	// LoadAndLock loads a missing script, or adds a locker to a resident one.
	LoadAndLock
)

// GetScriptSegment returns the segment of script nr according to policy.
func (e *EngineState) GetScriptSegment(nr int, policy LoadPolicy) (uint16, error) {
	if id := e.Segs.ScriptSegment(nr); id != 0 {
		if policy == LoadAndLock {
			return e.Instantiate(nr)
		}
		return id, nil
	}
	if policy == DontLoad {
		return 0, fmt.Errorf("script %03d: %w", nr, ErrNotLoaded)
	}
	return e.Instantiate(nr)
}

// Instantiate makes script nr resident and takes a locker on it. A resident
// script is not parsed again; a script awaiting deferred deletion is revived.
func (e *EngineState) Instantiate(nr int) (uint16, error) {
	if nr < 0 || nr >= scifmt.MaxScripts {
		return 0, &FormatError{Script: nr, Reason: "script number out of range"}
	}
	if s, ok := e.Segs.ScriptByNumber(nr); ok {
		id := e.Segs.ScriptSegment(nr)
		if s.MarkedForDeletion {
			if err := e.resurrect(s, id); err != nil {
				return 0, err
			}
			return id, nil
		}
		s.Lockers++
		return id, nil
	}
	return e.load(nr)
}

func (e *EngineState) load(nr int) (uint16, error) {
	raw, ok := e.Resources.Find(scifmt.ResourceScript, nr)
	if !ok {
		return 0, fmt.Errorf("instantiate script %03d: %w", nr, ErrScriptNotFound)
	}
	var heap []byte
	if e.Layout.SplitHeap {
		if heap, ok = e.Resources.Find(scifmt.ResourceHeap, nr); !ok {
			return 0, fmt.Errorf("instantiate heap %03d: %w", nr, ErrScriptNotFound)
		}
	}

	s := newScript(nr, e.Config.Version)
	s.Lockers = 1
	id := e.Segs.AllocateScript(s)

	var err error
	if e.Layout.SplitHeap {
		err = e.parseSplit(s, id, raw, heap)
	} else {
		err = e.parseBlocks(s, id, raw)
	}
	if err == nil {
		err = e.linkObjects(s)
	}
	if err != nil {
		e.discard(s, id)
		return 0, err
	}
	s.Relocated = true
	if e.Config.CheckLoads {
		e.log.Infof("loaded script %03d into segment %d (%d objects, %d locals)", nr, id, len(s.Objects), s.LocalsCount)
	}
	return id, nil
}

// discard undoes a partial load.
func (e *EngineState) discard(s *Script, id uint16) {
	for _, dep := range s.Dependencies {
		if err := e.Uninstantiate(dep); err != nil {
			e.log.Warningf("releasing script %03d after failed load of %03d: %s", dep, s.Number, err)
		}
	}
	e.freeScript(s, id)
}

func (e *EngineState) allocateLocals(s *Script, fromBuf bool) {
	if s.LocalsCount == 0 {
		return
	}
	id, locals := e.Segs.AllocateLocals(s.Number, s.LocalsCount)
	s.LocalsSegment = id
	if !fromBuf {
		return
	}
	for i := range locals.Values {
		v, _ := scifmt.Word(s.Buf, s.LocalsOffset+2*i)
		locals.Values[i] = IntReg(v)
	}
}

func (e *EngineState) locals(s *Script) *LocalsSegment {
	seg, ok := e.Segs.Segment(s.LocalsSegment)
	if !ok {
		return nil
	}
	l, _ := seg.(*LocalsSegment)
	return l
}

func (e *EngineState) registerClass(s *Script, species int, pos Reg) error {
	if entry, ok := e.Classes.Entry(species); ok && entry.Script != s.Number {
		e.log.Warningf("class %d claimed by script %03d, defined in script %03d", species, entry.Script, s.Number)
	}
	if err := e.Classes.setAddress(species, s.Number, pos); err != nil {
		return &FormatError{Script: s.Number, Offset: int(pos.Offset), Reason: err.Error()}
	}
	return nil
}

// maxScriptSize is the size of the offset space of one segment.
const maxScriptSize = 0x10000

func tooLarge(s *Script, size int) error {
	return &FormatError{Script: s.Number, Offset: maxScriptSize, Reason: fmt.Sprintf("%d bytes do not fit a segment", size)}
}

func truncated(s *Script, off int, what string) error {
	return &FormatError{Script: s.Number, Offset: off, Reason: what + " truncated"}
}

// ---------------------------------------------------------------------------
// Block-structured scripts
// ---------------------------------------------------------------------------

func (e *EngineState) parseBlocks(s *Script, id uint16, raw []byte) error {
	l := e.Layout
	if len(raw) > maxScriptSize {
		return tooLarge(s, len(raw))
	}
	s.Buf = append([]byte(nil), raw...)
	blocks, err := scifmt.Blocks(s.Buf, l)
	if err != nil {
		return &FormatError{Script: s.Number, Reason: err.Error()}
	}

	// Old-header scripts declare their locals up front and start them at zero.
	if l.HeaderPrefix > 0 {
		count, _ := scifmt.Word(s.Buf, 0)
		s.LocalsCount = int(count)
		s.LocalsOffset = -1
	}

	var objects []scifmt.Block
	var relocs []int
	for _, b := range blocks {
		switch b.Type {
		case scifmt.BlockExports:
			n, ok := scifmt.Word(b.Data, l.ExportTableOffset)
			if !ok {
				return truncated(s, b.Offset, "export table")
			}
			for i := 0; i < int(n); i++ {
				v, ok := scifmt.Word(b.Data, l.ExportTableOffset+2+2*i)
				if !ok {
					return truncated(s, b.Offset, "export table")
				}
				s.Exports = append(s.Exports, v)
			}
		case scifmt.BlockSynonyms:
			for i := 0; i+4 <= len(b.Data); i += 4 {
				w, _ := scifmt.Word(b.Data, i)
				r, _ := scifmt.Word(b.Data, i+2)
				s.Synonyms = append(s.Synonyms, scifmt.Synonym{Word: w, Replacement: r})
			}
		case scifmt.BlockLocalVars:
			s.LocalsOffset = b.DataOffset()
			s.LocalsCount = len(b.Data) / 2
		case scifmt.BlockCode:
			s.CodeBlocks = append(s.CodeBlocks, CodeBlock{Offset: b.DataOffset(), Size: len(b.Data)})
		case scifmt.BlockObject, scifmt.BlockClass:
			objects = append(objects, b)
		case scifmt.BlockPointers:
			n, ok := scifmt.Word(b.Data, 0)
			if !ok {
				return truncated(s, b.Offset, "relocation table")
			}
			for i := 0; i < int(n); i++ {
				off, ok := scifmt.Word(b.Data, 2+2*i)
				if !ok {
					return truncated(s, b.Offset, "relocation table")
				}
				relocs = append(relocs, int(off))
			}
		}
	}
	e.allocateLocals(s, l.HeaderPrefix == 0)

	for _, b := range objects {
		obj, err := e.parseBlockObject(s, id, b)
		if err != nil {
			return err
		}
		s.addObject(obj)
		if b.Type == scifmt.BlockClass {
			species := int(obj.Variables[l.SpeciesSelector].Offset)
			s.Classes = append(s.Classes, ScriptClass{Species: species, Offset: obj.Pos.Offset})
			if err := e.registerClass(s, species, obj.Pos); err != nil {
				return err
			}
		}
	}

	locals := e.locals(s)
	for _, off := range relocs {
		e.relocateBlockWord(s, id, locals, off)
	}
	return nil
}

func (e *EngineState) parseBlockObject(s *Script, id uint16, b scifmt.Block) (Object, error) {
	l := e.Layout
	pos := b.DataOffset() - l.MagicOffset
	magic, ok := scifmt.Word(s.Buf, pos+l.MagicOffset)
	if !ok || magic != scifmt.ObjectMagic {
		return Object{}, &FormatError{Script: s.Number, Offset: pos, Reason: fmt.Sprintf("bad object magic %#04x", magic)}
	}
	count, ok := scifmt.Word(s.Buf, pos+l.SelectorCounterOffset)
	if !ok {
		return Object{}, truncated(s, pos, "object header")
	}
	functRel, _ := scifmt.Word(s.Buf, pos+l.FunctAreaPtrOffset)

	obj := Object{
		Version:     s.Version,
		Pos:         MakeReg(id, uint16(pos)),
		CodeSegment: id,
		Variables:   make([]Reg, count),
	}
	for i := range obj.Variables {
		v, ok := scifmt.Word(s.Buf, pos+2*i)
		if !ok {
			return Object{}, truncated(s, pos, "object variables")
		}
		obj.Variables[i] = IntReg(v)
	}
	if b.Type == scifmt.BlockClass {
		base := pos + 2*int(count)
		obj.VarSelectors = make([]uint16, count)
		for i := range obj.VarSelectors {
			v, ok := scifmt.Word(s.Buf, base+2*i)
			if !ok {
				return Object{}, truncated(s, base, "class selector table")
			}
			obj.VarSelectors[i] = v
		}
		obj.NamedVarCount = int(count)
	}

	funct := pos + int(functRel)
	n, ok := scifmt.Word(s.Buf, funct)
	if !ok {
		return Object{}, truncated(s, funct, "method table")
	}
	offsets := funct + 2 + 2*int(n) + 2
	obj.FuncSelectors = make([]uint16, n)
	obj.MethodOffsets = make([]uint16, n)
	for i := 0; i < int(n); i++ {
		sel, ok1 := scifmt.Word(s.Buf, funct+2+2*i)
		off, ok2 := scifmt.Word(s.Buf, offsets+2*i)
		if !ok1 || !ok2 {
			return Object{}, truncated(s, funct, "method table")
		}
		if int(off) >= len(s.Buf) {
			return Object{}, &FormatError{Script: s.Number, Offset: funct, Reason: fmt.Sprintf("method %#x entry %#x outside script", sel, off)}
		}
		obj.FuncSelectors[i] = sel
		obj.MethodOffsets[i] = off
	}
	return obj, nil
}

// relocateBlockWord turns the script offset stored at off into an address in
// segment id. Relocations pointing into code are ignored.
func (e *EngineState) relocateBlockWord(s *Script, id uint16, locals *LocalsSegment, off int) {
	if locals != nil && s.LocalsOffset >= 0 && off >= s.LocalsOffset && off < s.LocalsOffset+2*s.LocalsCount {
		locals.Values[(off-s.LocalsOffset)/2].Segment = id
		return
	}
	for i := range s.Objects {
		obj := &s.Objects[i]
		pos := int(obj.Pos.Offset)
		if off >= pos && off < pos+2*len(obj.Variables) && (off-pos)%2 == 0 {
			obj.Variables[(off-pos)/2].Segment = id
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Split script and heap
// ---------------------------------------------------------------------------

func (e *EngineState) parseSplit(s *Script, id uint16, script, heap []byte) error {
	l := e.Layout
	heapStart := len(script) + len(script)&1
	if heapStart+len(heap) > maxScriptSize {
		return tooLarge(s, heapStart+len(heap))
	}
	s.Buf = make([]byte, heapStart+len(heap))
	copy(s.Buf, script)
	copy(s.Buf[heapStart:], heap)
	s.HeapStart = heapStart
	s.CodeBlocks = []CodeBlock{{Offset: 0, Size: len(script)}}

	n, ok := scifmt.Word(script, l.ExportTableOffset)
	if !ok {
		return truncated(s, l.ExportTableOffset, "export table")
	}
	for i := 0; i < int(n); i++ {
		v, ok := scifmt.Word(script, l.ExportTableOffset+2+2*i)
		if !ok {
			return truncated(s, l.ExportTableOffset, "export table")
		}
		s.Exports = append(s.Exports, v)
	}

	relocOff, ok1 := scifmt.Word(heap, l.HeapRelocTableOffset)
	count, ok2 := scifmt.Word(heap, l.HeapLocalsCountOffset)
	if !ok1 || !ok2 {
		return truncated(s, heapStart, "heap header")
	}
	s.LocalsOffset = heapStart + l.HeapLocalsOffset
	s.LocalsCount = int(count)
	e.allocateLocals(s, true)

	p := l.HeapLocalsOffset + 2*int(count)
	for {
		magic, ok := scifmt.Word(heap, p+l.MagicOffset)
		if !ok {
			return truncated(s, heapStart+p, "object list")
		}
		if magic == 0 {
			break
		}
		if magic != scifmt.ObjectMagic {
			return &FormatError{Script: s.Number, Offset: heapStart + p, Reason: fmt.Sprintf("bad object magic %#04x", magic)}
		}
		obj, err := e.parseSplitObject(s, id, script, heap, p)
		if err != nil {
			return err
		}
		s.addObject(obj)
		if obj.IsClass() {
			species := int(obj.Variables[l.SpeciesSelector].Offset)
			s.Classes = append(s.Classes, ScriptClass{Species: species, Offset: obj.Pos.Offset})
			if err := e.registerClass(s, species, obj.Pos); err != nil {
				return err
			}
		}
		p += 2 * len(obj.Variables)
	}

	rc, ok := scifmt.Word(heap, int(relocOff))
	if !ok {
		return truncated(s, heapStart+int(relocOff), "relocation table")
	}
	locals := e.locals(s)
	for i := 0; i < int(rc); i++ {
		ho, ok := scifmt.Word(heap, int(relocOff)+2+2*i)
		if !ok {
			return truncated(s, heapStart+int(relocOff), "relocation table")
		}
		if err := e.relocateSplitWord(s, id, locals, heapStart+int(ho)); err != nil {
			return err
		}
	}
	return nil
}

func (e *EngineState) parseSplitObject(s *Script, id uint16, script, heap []byte, p int) (Object, error) {
	l := e.Layout
	varCount, ok := scifmt.Word(heap, p+l.SelectorCounterOffset)
	if !ok || int(varCount) < l.HeaderVars {
		return Object{}, truncated(s, s.HeapStart+p, "object header")
	}
	obj := Object{
		Version:       s.Version,
		Pos:           MakeReg(id, uint16(s.HeapStart+p)),
		CodeSegment:   id,
		NamedVarCount: int(varCount),
		Variables:     make([]Reg, varCount),
		VarSelectors:  make([]uint16, varCount),
	}
	for i := range obj.Variables {
		v, ok := scifmt.Word(heap, p+2*i)
		if !ok {
			return Object{}, truncated(s, s.HeapStart+p, "object variables")
		}
		obj.Variables[i] = IntReg(v)
	}

	propDict := int(obj.Variables[l.PropDictSelector].Offset)
	for i := range obj.VarSelectors {
		v, ok := scifmt.Word(script, propDict+2*i)
		if !ok {
			return Object{}, truncated(s, propDict, "property dictionary")
		}
		obj.VarSelectors[i] = v
	}

	methRel, _ := scifmt.Word(heap, p+l.FunctAreaPtrOffset)
	methDict := int(methRel)
	n, ok := scifmt.Word(script, methDict)
	if !ok {
		return Object{}, truncated(s, methDict, "method dictionary")
	}
	obj.FuncSelectors = make([]uint16, n)
	obj.MethodOffsets = make([]uint16, n)
	for i := 0; i < int(n); i++ {
		sel, ok1 := scifmt.Word(script, methDict+2+4*i)
		off, ok2 := scifmt.Word(script, methDict+4+4*i)
		if !ok1 || !ok2 {
			return Object{}, truncated(s, methDict, "method dictionary")
		}
		if int(off) >= len(script) {
			return Object{}, &FormatError{Script: s.Number, Offset: methDict, Reason: fmt.Sprintf("method %#x entry %#x outside script", sel, off)}
		}
		obj.FuncSelectors[i] = sel
		obj.MethodOffsets[i] = off
	}
	return obj, nil
}

// relocateSplitWord turns the heap offset stored at segment offset off into
// an address in segment id. Heap offsets pointing past the segment are a
// format error.
func (e *EngineState) relocateSplitWord(s *Script, id uint16, locals *LocalsSegment, off int) error {
	rebase := func(r *Reg) error {
		addr := s.HeapStart + int(r.Offset)
		if addr >= len(s.Buf) {
			return &FormatError{Script: s.Number, Offset: off, Reason: fmt.Sprintf("heap pointer %#x outside script", r.Offset)}
		}
		*r = MakeReg(id, uint16(addr))
		return nil
	}
	if locals != nil && off >= s.LocalsOffset && off < s.LocalsOffset+2*s.LocalsCount {
		return rebase(&locals.Values[(off-s.LocalsOffset)/2])
	}
	for i := range s.Objects {
		obj := &s.Objects[i]
		pos := int(obj.Pos.Offset)
		if off >= pos && off < pos+2*len(obj.Variables) && (off-pos)%2 == 0 {
			return rebase(&obj.Variables[(off-pos)/2])
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Linking species and superclasses
// ---------------------------------------------------------------------------

// linkObjects replaces the class numbers in the species and superclass
// variables with class addresses, loading the scripts that define them.
func (e *EngineState) linkObjects(s *Script) error {
	l := e.Layout
	link := func(r Reg) (Reg, error) {
		if r.Offset == scifmt.NoClass {
			return NullReg, nil
		}
		return e.getClassAddress(int(r.Offset), LoadAndLock, s)
	}
	for i := range s.Objects {
		obj := &s.Objects[i]
		species, err := link(obj.Variables[l.SpeciesSelector])
		if err != nil {
			return fmt.Errorf("script %03d object at %s: species: %w", s.Number, obj.Pos, err)
		}
		super, err := link(obj.Variables[l.SuperclassSelector])
		if err != nil {
			return fmt.Errorf("script %03d object at %s: superclass: %w", s.Number, obj.Pos, err)
		}
		obj.Variables[l.SpeciesSelector] = species
		obj.Variables[l.SuperclassSelector] = super
	}
	if l.SplitHeap {
		return nil
	}
	// Block-format instances take their variable names from their species.
	for i := range s.Objects {
		obj := &s.Objects[i]
		if obj.IsClass() || obj.Species().IsNull() {
			continue
		}
		class, err := e.Segs.Object(obj.Species())
		if err != nil {
			return &FormatError{Script: s.Number, Offset: int(obj.Pos.Offset), Reason: "species not resident: " + err.Error()}
		}
		obj.VarSelectors = class.VarSelectors
		obj.NamedVarCount = min(len(obj.Variables), len(class.VarSelectors))
	}
	return nil
}

// GetClassAddress returns the address of class classNr, loading its script
// according to policy. When caller lies in another script, that script
// records the class's script as a dependency and holds one locker on it.
func (e *EngineState) GetClassAddress(classNr int, policy LoadPolicy, caller Reg) (Reg, error) {
	s, _ := e.Segs.Script(caller.Segment)
	return e.getClassAddress(classNr, policy, s)
}

func (e *EngineState) getClassAddress(classNr int, policy LoadPolicy, caller *Script) (Reg, error) {
	entry, ok := e.Classes.Entry(classNr)
	if !ok {
		return NullReg, fmt.Errorf("class %d: %w", classNr, ErrUnknownClass)
	}
	switch {
	case caller != nil && entry.Script == caller.Number:
	case caller != nil:
		if !caller.hasDependency(entry.Script) {
			if _, err := e.GetScriptSegment(entry.Script, LoadAndLock); err != nil {
				return NullReg, err
			}
			caller.addDependency(entry.Script)
		}
	default:
		if _, err := e.GetScriptSegment(entry.Script, policy); err != nil {
			return NullReg, err
		}
	}
	entry, _ = e.Classes.Entry(classNr)
	if entry.Reg.IsNull() {
		return NullReg, fmt.Errorf("script %03d does not define class %d: %w", entry.Script, classNr, ErrUnknownClass)
	}
	return entry.Reg, nil
}

// ---------------------------------------------------------------------------
// Unloading
// ---------------------------------------------------------------------------

// Uninstantiate drops one locker on script nr. When the last locker goes the
// script's classes leave the class table, and the script is freed together
// with its locals, releasing the scripts it depends on. A script still
// referenced by a live frame is only marked for deletion; it keeps its
// dependencies until the frame is gone.
func (e *EngineState) Uninstantiate(nr int) error {
	s, ok := e.Segs.ScriptByNumber(nr)
	if !ok || s.MarkedForDeletion || s.Lockers <= 0 {
		return fmt.Errorf("uninstantiate script %03d: %w", nr, ErrNotLoaded)
	}
	s.Lockers--
	if s.Lockers > 0 {
		return nil
	}
	id := e.Segs.ScriptSegment(nr)
	e.Classes.clearSegment(id)
	if e.scriptInUse(s, id) {
		s.MarkedForDeletion = true
		e.deferred = append(e.deferred, nr)
		if e.Config.CheckLoads {
			e.log.Infof("script %03d still executing, deletion deferred", nr)
		}
		return nil
	}
	return e.release(s, id)
}

// release frees an unlocked script and drops its dependencies.
func (e *EngineState) release(s *Script, id uint16) error {
	deps := s.Dependencies
	e.freeScript(s, id)
	var errs []error
	for _, dep := range deps {
		if err := e.Uninstantiate(dep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *EngineState) freeScript(s *Script, id uint16) {
	e.Classes.clearSegment(id)
	if s.LocalsSegment != 0 && e.Segs.IsLive(s.LocalsSegment) {
		_ = e.Segs.Deallocate(s.LocalsSegment)
	}
	if e.Segs.IsLive(id) {
		_ = e.Segs.Deallocate(id)
	}
	if e.Config.CheckLoads {
		e.log.Infof("unloaded script %03d from segment %d", s.Number, id)
	}
}

func (e *EngineState) resurrect(s *Script, id uint16) error {
	s.MarkedForDeletion = false
	s.Lockers = 1
	for i, nr := range e.deferred {
		if nr == s.Number {
			e.deferred = append(e.deferred[:i], e.deferred[i+1:]...)
			break
		}
	}
	for _, c := range s.Classes {
		if err := e.registerClass(s, c.Species, MakeReg(id, c.Offset)); err != nil {
			return err
		}
	}
	if e.Config.CheckLoads {
		e.log.Infof("script %03d revived before deletion", s.Number)
	}
	return nil
}

// scriptInUse reports whether a live frame executes in or refers to the
// script or its locals.
func (e *EngineState) scriptInUse(s *Script, id uint16) bool {
	hit := func(seg uint16) bool {
		return seg != 0 && (seg == id || seg == s.LocalsSegment)
	}
	for i := 0; i < e.Stack.Len(); i++ {
		f := e.Stack.At(i)
		if hit(f.PC.Segment) || hit(f.LocalsSegment) || hit(f.CalledObject.Segment) ||
			hit(f.SendTarget.Segment) || hit(f.VarObject.Segment) {
			return true
		}
	}
	return false
}

// recheckDeferred frees the scripts awaiting deletion that no frame uses
// any more.
func (e *EngineState) recheckDeferred() error {
	if len(e.deferred) == 0 {
		return nil
	}
	pending := e.deferred
	e.deferred = nil
	var errs []error
	for _, nr := range pending {
		s, ok := e.Segs.ScriptByNumber(nr)
		if !ok || !s.MarkedForDeletion {
			continue
		}
		id := e.Segs.ScriptSegment(nr)
		if e.scriptInUse(s, id) {
			e.deferred = append(e.deferred, nr)
			continue
		}
		if err := e.release(s, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deferred returns the numbers of scripts awaiting deletion.
func (e *EngineState) Deferred() []int {
	return append([]int(nil), e.deferred...)
}

// ---------------------------------------------------------------------------
// Exports
// ---------------------------------------------------------------------------

// LookupExport returns the address of export index of script nr, loading the
// script if needed.
func (e *EngineState) LookupExport(nr, index int) (Reg, error) {
	id, err := e.GetScriptSegment(nr, Load)
	if err != nil {
		return NullReg, err
	}
	s, _ := e.Segs.Script(id)
	off, ok := s.exportAt(index)
	if !ok || off == 0 || int(off) >= len(s.Buf) {
		return NullReg, &AddressError{Addr: MakeReg(id, uint16(index)), Reason: fmt.Sprintf("script %03d has no export %d", nr, index)}
	}
	return MakeReg(id, off), nil
}

// ExecuteMethod pushes a call frame for an exported function. argp indexes
// the data stack slot that receives the argument count; the arguments follow
// it.
func (e *EngineState) ExecuteMethod(script, export int, sp int, callingObj Reg, argc, argp int) (*Frame, error) {
	id, err := e.GetScriptSegment(script, Load)
	if err != nil {
		return nil, err
	}
	s, _ := e.Segs.Script(id)
	if s.MarkedForDeletion {
		if err := e.resurrect(s, id); err != nil {
			return nil, err
		}
	}
	pc, err := e.LookupExport(script, export)
	if err != nil {
		return nil, err
	}
	if e.breakpoints.hasExport(script, export) {
		e.log.Infof("break on script %d, export %d", script, export)
		e.hitBreakpoint()
	}
	if argp >= 0 && argp < len(e.data.Entries) {
		e.data.Entries[argp] = IntReg(uint16(argc))
	}
	return e.Stack.PushCall(Frame{
		CalledObject:  callingObj,
		SendTarget:    callingObj,
		PC:            pc,
		FP:            sp,
		SP:            sp,
		ArgC:          argc,
		ArgP:          argp,
		LocalsSegment: s.LocalsSegment,
		Selector:      -1,
		Origin:        e.Stack.Len() - 1,
	})
}
