package scifmt

import "encoding/binary"

// ResourceKind names the resource types the VM core reads.
type ResourceKind int

const (
	ResourceScript ResourceKind = iota
	ResourceHeap
	ResourceVocab
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceScript:
		return "script"
	case ResourceHeap:
		return "heap"
	case ResourceVocab:
		return "vocab"
	default:
		return "unknown"
	}
}

// Finder locates raw resource data.
type Finder interface {
	Find(kind ResourceKind, number int) ([]byte, bool)
}

// MaxScripts bounds script numbers.
const MaxScripts = 1000

// Detect guesses the script format from the available resources. Split-heap
// games are recognized by the presence of heap 0; otherwise the first word of
// the first script found decides: old-header scripts begin with a local
// variable count, new ones with a block type, and block types never exceed 15.
func Detect(f Finder) Version {
	if _, ok := f.Find(ResourceHeap, 0); ok {
		return VersionSCI11
	}
	for nr := 0; nr < MaxScripts; nr++ {
		data, ok := f.Find(ResourceScript, nr)
		if !ok || len(data) < 2 {
			continue
		}
		if int16(binary.LittleEndian.Uint16(data)) > 15 {
			return VersionSCI0Early
		}
		return VersionSCI0
	}
	return VersionSCI0
}
