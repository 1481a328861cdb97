package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"

	"github.com/chazu/sciv/scifmt"
	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Save file format
// ---------------------------------------------------------------------------

// SaveMagic identifies a save file.
var SaveMagic = [4]byte{'S', 'C', 'I', 'V'}

// SaveFormatVersion is the version of the save body layout.
// v1: initial format
const SaveFormatVersion uint32 = 1

// maxSaveHeader bounds the header length read by ProbeSave.
const maxSaveHeader = 1 << 20

var saveEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	saveEncMode = em
}

// SaveHeader is the part of a save file that can be read without decoding
// the machine state.
type SaveHeader struct {
	FormatVersion    uint32         `cbor:"1,keyasint"`
	ScriptVersion    scifmt.Version `cbor:"2,keyasint"`
	ClassFingerprint uint64         `cbor:"3,keyasint"`
	Name             string         `cbor:"4,keyasint"`
	Timestamp        int64          `cbor:"5,keyasint"`
	Coredump         bool           `cbor:"6,keyasint"`
	SegmentDump      string         `cbor:"7,keyasint,omitempty"`
}

// Time returns the save time.
func (h SaveHeader) Time() time.Time { return time.Unix(h.Timestamp, 0) }

type savedScript struct {
	Number            int
	Version           scifmt.Version
	Buf               []byte
	HeapStart         int
	Exports           []uint16
	Synonyms          []scifmt.Synonym
	Objects           []Object
	ObjIndex          HashSnapshot[int]
	LocalsSegment     uint16
	LocalsOffset      int
	LocalsCount       int
	Lockers           int
	CodeBlocks        []CodeBlock
	Classes           []ScriptClass
	Dependencies      []int
	Relocated         bool
	MarkedForDeletion bool
}

type savedSegment struct {
	ID         uint16                `cbor:"1,keyasint"`
	Type       SegmentType           `cbor:"2,keyasint"`
	Script     *savedScript          `cbor:"3,keyasint,omitempty"`
	Locals     *LocalsSegment        `cbor:"4,keyasint,omitempty"`
	Stack      *StackSegment         `cbor:"5,keyasint,omitempty"`
	SysStrings *SysStringsSegment    `cbor:"6,keyasint,omitempty"`
	Clones     *HeapSnapshot[Object] `cbor:"7,keyasint,omitempty"`
	Lists      *HeapSnapshot[List]   `cbor:"8,keyasint,omitempty"`
	Nodes      *HeapSnapshot[Node]   `cbor:"9,keyasint,omitempty"`
	Hunks      *HeapSnapshot[Hunk]   `cbor:"10,keyasint,omitempty"`
	DynMem     *DynMemSegment        `cbor:"11,keyasint,omitempty"`
}

type saveBody struct {
	Segments    []savedSegment `cbor:"1,keyasint"`
	FreeIDs     []uint16       `cbor:"2,keyasint"`
	Classes     []ClassEntry   `cbor:"3,keyasint"`
	Frames      []Frame        `cbor:"4,keyasint"`
	Acc         Reg            `cbor:"5,keyasint"`
	GameObject  Reg            `cbor:"6,keyasint"`
	Deferred    []int          `cbor:"7,keyasint"`
	GCCountdown int            `cbor:"8,keyasint"`
}

// ---------------------------------------------------------------------------
// Saving
// ---------------------------------------------------------------------------

// SaveState writes the complete machine state: every segment, the class
// table and every execution stack frame. A coredump also carries a textual
// segment table for post-mortem inspection.
func (e *EngineState) SaveState(w io.Writer, name string, coredump bool) error {
	hdr := SaveHeader{
		FormatVersion:    SaveFormatVersion,
		ScriptVersion:    e.Config.Version,
		ClassFingerprint: e.Classes.Fingerprint(),
		Name:             name,
		Timestamp:        time.Now().Unix(),
		Coredump:         coredump,
	}
	if coredump {
		hdr.SegmentDump = e.SegmentTable()
	}
	body := saveBody{
		FreeIDs:     append([]uint16(nil), e.Segs.freeIDs...),
		Classes:     e.Classes.Entries(),
		Frames:      e.Stack.Frames(),
		Acc:         e.Acc,
		GameObject:  e.GameObject,
		Deferred:    append([]int(nil), e.deferred...),
		GCCountdown: e.gcCountdown,
	}
	for _, id := range e.Segs.LiveSegments() {
		seg, _ := e.Segs.Segment(id)
		saved, err := saveSegment(id, seg)
		if err != nil {
			return err
		}
		body.Segments = append(body.Segments, saved)
	}

	hdrBytes, err := saveEncMode.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("save header: %w", err)
	}
	bodyBytes, err := saveEncMode.Marshal(body)
	if err != nil {
		return fmt.Errorf("save body: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(SaveMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(len(hdrBytes)))
	buf.Write(hdrBytes)
	buf.Write(bodyBytes)
	_, err = w.Write(buf.Bytes())
	return err
}

func saveSegment(id uint16, seg Segment) (savedSegment, error) {
	out := savedSegment{ID: id, Type: seg.Type()}
	switch s := seg.(type) {
	case *Script:
		out.Script = &savedScript{
			Number:            s.Number,
			Version:           s.Version,
			Buf:               s.Buf,
			HeapStart:         s.HeapStart,
			Exports:           s.Exports,
			Synonyms:          s.Synonyms,
			Objects:           s.Objects,
			ObjIndex:          s.objIndex.Export(),
			LocalsSegment:     s.LocalsSegment,
			LocalsOffset:      s.LocalsOffset,
			LocalsCount:       s.LocalsCount,
			Lockers:           s.Lockers,
			CodeBlocks:        s.CodeBlocks,
			Classes:           s.Classes,
			Dependencies:      s.Dependencies,
			Relocated:         s.Relocated,
			MarkedForDeletion: s.MarkedForDeletion,
		}
	case *LocalsSegment:
		out.Locals = s
	case *StackSegment:
		out.Stack = s
	case *SysStringsSegment:
		out.SysStrings = s
	case *CloneTable:
		snap := s.Table.Snapshot()
		out.Clones = &snap
	case *ListTable:
		snap := s.Table.Snapshot()
		out.Lists = &snap
	case *NodeTable:
		snap := s.Table.Snapshot()
		out.Nodes = &snap
	case *HunkTable:
		snap := s.Table.Snapshot()
		out.Hunks = &snap
	case *DynMemSegment:
		out.DynMem = s
	default:
		return out, fmt.Errorf("save: segment %d has unsupported type %s", id, seg.Type())
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Restoring
// ---------------------------------------------------------------------------

func readHeader(r io.Reader) (SaveHeader, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return SaveHeader{}, fmt.Errorf("save magic: %w", err)
	}
	if magic != SaveMagic {
		return SaveHeader{}, fmt.Errorf("not a save file (magic %q): %w", magic[:], ErrIncompatibleSave)
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return SaveHeader{}, fmt.Errorf("save header length: %w", err)
	}
	if n > maxSaveHeader {
		return SaveHeader{}, fmt.Errorf("save header of %d bytes: %w", n, ErrIncompatibleSave)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return SaveHeader{}, fmt.Errorf("save header: %w", err)
	}
	var hdr SaveHeader
	if err := cbor.Unmarshal(raw, &hdr); err != nil {
		return SaveHeader{}, fmt.Errorf("save header: %w", err)
	}
	if hdr.FormatVersion != SaveFormatVersion {
		return hdr, fmt.Errorf("save format v%d, want v%d: %w", hdr.FormatVersion, SaveFormatVersion, ErrIncompatibleSave)
	}
	return hdr, nil
}

// ProbeSave reads only the header of a save file.
func ProbeSave(r io.Reader) (SaveHeader, error) {
	return readHeader(r)
}

// CheckCompatible reports whether a save header fits the running game.
func (e *EngineState) CheckCompatible(hdr SaveHeader) error {
	if hdr.ScriptVersion != e.Config.Version {
		return fmt.Errorf("save uses %s scripts, game uses %s: %w", hdr.ScriptVersion, e.Config.Version, ErrIncompatibleSave)
	}
	if fp := e.Classes.Fingerprint(); hdr.ClassFingerprint != fp {
		return fmt.Errorf("class table %016x, game has %016x: %w", hdr.ClassFingerprint, fp, ErrIncompatibleSave)
	}
	return nil
}

// RestoreState reads a save file into a new EngineState. The new state shares
// the resources, configuration, selector names, kernel bindings and debugger
// of current; saves from another script format or class table are refused.
func RestoreState(r io.Reader, current *EngineState) (*EngineState, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if err := current.CheckCompatible(hdr); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("save body: %w", err)
	}
	var body saveBody
	if err := cbor.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("save body: %w", err)
	}

	e := &EngineState{
		Config:      current.Config,
		Resources:   current.Resources,
		Layout:      current.Layout,
		Selectors:   current.Selectors.Clone(),
		Classes:     NewClassTable(current.Config.MaxClasses),
		Segs:        NewSegManager(),
		Acc:         body.Acc,
		GameObject:  body.GameObject,
		wellKnown:   current.wellKnown,
		kernel:      maps.Clone(current.kernel),
		gcCountdown: body.GCCountdown,
		deferred:    body.Deferred,
		debugger:    current.debugger,
		breakpoints: current.BreakpointList(),
		log:         current.log,
	}
	for species, c := range body.Classes {
		if err := e.Classes.grow(species); err != nil {
			return nil, fmt.Errorf("restore class table: %w", err)
		}
		e.Classes.entries[species] = c
	}
	if err := e.restoreSegments(body); err != nil {
		return nil, err
	}
	if e.data == nil || e.sys == nil {
		return nil, fmt.Errorf("save lacks data stack or system strings: %w", ErrIncompatibleSave)
	}
	e.Stack = NewExecStack(len(e.data.Entries))
	e.Stack.reset(body.Frames)
	e.log.Infof("restored %q saved %s", hdr.Name, hdr.Time().Format(time.RFC3339))
	return e, nil
}

func (e *EngineState) restoreSegments(body saveBody) error {
	sm := e.Segs
	for _, saved := range body.Segments {
		if saved.ID == 0 {
			return fmt.Errorf("restore: segment id 0: %w", ErrIncompatibleSave)
		}
		for int(saved.ID) >= len(sm.segments) {
			sm.segments = append(sm.segments, nil)
		}
		var seg Segment
		switch {
		case saved.Script != nil:
			seg = restoreScript(saved.Script)
			sm.scriptToSeg[saved.Script.Number] = saved.ID
		case saved.Locals != nil:
			seg = saved.Locals
		case saved.Stack != nil:
			seg = saved.Stack
			e.stackSeg, e.data = saved.ID, saved.Stack
			sm.stackSeg = saved.ID
		case saved.SysStrings != nil:
			seg = saved.SysStrings
			e.sysSeg, e.sys = saved.ID, saved.SysStrings
			sm.sysStringsSeg = saved.ID
		case saved.Clones != nil:
			seg = &CloneTable{Table: RestoreHeapTable(*saved.Clones)}
			sm.clonesSeg = saved.ID
		case saved.Lists != nil:
			seg = &ListTable{Table: RestoreHeapTable(*saved.Lists)}
			sm.listsSeg = saved.ID
		case saved.Nodes != nil:
			seg = &NodeTable{Table: RestoreHeapTable(*saved.Nodes)}
			sm.nodesSeg = saved.ID
		case saved.Hunks != nil:
			seg = &HunkTable{Table: RestoreHeapTable(*saved.Hunks)}
			sm.hunksSeg = saved.ID
		case saved.DynMem != nil:
			seg = saved.DynMem
		default:
			return fmt.Errorf("restore: segment %d (%s) has no payload: %w", saved.ID, saved.Type, ErrIncompatibleSave)
		}
		if seg.Type() != saved.Type {
			return fmt.Errorf("restore: segment %d is %s, payload is %s: %w", saved.ID, saved.Type, seg.Type(), ErrIncompatibleSave)
		}
		sm.segments[saved.ID] = seg
	}
	sm.freeIDs = append([]uint16(nil), body.FreeIDs...)
	return nil
}

func restoreScript(ss *savedScript) *Script {
	s := newScript(ss.Number, ss.Version)
	s.Buf = ss.Buf
	s.HeapStart = ss.HeapStart
	s.Exports = ss.Exports
	s.Synonyms = ss.Synonyms
	s.Objects = ss.Objects
	s.objIndex.Import(ss.ObjIndex)
	s.LocalsSegment = ss.LocalsSegment
	s.LocalsOffset = ss.LocalsOffset
	s.LocalsCount = ss.LocalsCount
	s.Lockers = ss.Lockers
	s.CodeBlocks = ss.CodeBlocks
	s.Classes = ss.Classes
	s.Dependencies = ss.Dependencies
	s.Relocated = ss.Relocated
	s.MarkedForDeletion = ss.MarkedForDeletion
	return s
}

// ---------------------------------------------------------------------------
// Segment table dump
// ---------------------------------------------------------------------------

// SegmentTable renders the resident segments, one per line.
func (e *EngineState) SegmentTable() string {
	var b strings.Builder
	for _, id := range e.Segs.LiveSegments() {
		seg, _ := e.Segs.Segment(id)
		fmt.Fprintf(&b, "%04x %-11s ", id, seg.Type())
		switch s := seg.(type) {
		case *Script:
			fmt.Fprintf(&b, "script %03d, %d bytes, %d objects, lockers %d", s.Number, len(s.Buf), len(s.Objects), s.Lockers)
			if s.MarkedForDeletion {
				b.WriteString(", deleted")
			}
		case *LocalsSegment:
			fmt.Fprintf(&b, "script %03d, %d variables", s.ScriptID, len(s.Values))
		case *StackSegment:
			fmt.Fprintf(&b, "%d entries", len(s.Entries))
		case *CloneTable:
			fmt.Fprintf(&b, "%d clones", s.Table.EntriesUsed())
		case *ListTable:
			fmt.Fprintf(&b, "%d lists", s.Table.EntriesUsed())
		case *NodeTable:
			fmt.Fprintf(&b, "%d nodes", s.Table.EntriesUsed())
		case *HunkTable:
			fmt.Fprintf(&b, "%d hunks", s.Table.EntriesUsed())
		case *DynMemSegment:
			fmt.Fprintf(&b, "%q, %d bytes", s.Description, len(s.Buf))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
