// Package resource locates the raw script, heap and vocabulary resources
// the VM loads.
package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chazu/sciv/scifmt"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sciv.resource")

// Key identifies one resource.
type Key struct {
	Kind   scifmt.ResourceKind
	Number int
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%03d", k.Kind, k.Number)
}

// ---------------------------------------------------------------------------
// Map: in-memory resources
// ---------------------------------------------------------------------------

// Map is an in-memory resource set.
type Map map[Key][]byte

// Find implements scifmt.Finder.
func (m Map) Find(kind scifmt.ResourceKind, number int) ([]byte, bool) {
	data, ok := m[Key{kind, number}]
	return data, ok
}

// AddScript stores an assembled script, and its heap for split formats.
func (m Map) AddScript(number int, asm *scifmt.Assembled) {
	m[Key{scifmt.ResourceScript, number}] = asm.Script
	if asm.Heap != nil {
		m[Key{scifmt.ResourceHeap, number}] = asm.Heap
	}
}

// AddVocab stores a vocabulary resource.
func (m Map) AddVocab(number int, data []byte) {
	m[Key{scifmt.ResourceVocab, number}] = data
}

// Keys returns the stored keys in kind then number order.
func (m Map) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Number < keys[j].Number
	})
}

// ---------------------------------------------------------------------------
// Dir: patch files on disk
// ---------------------------------------------------------------------------

// Patch file type bytes, stored with the high bit set in the first byte.
var patchTypes = map[scifmt.ResourceKind]byte{
	scifmt.ResourceScript: 0x02,
	scifmt.ResourceVocab:  0x06,
	scifmt.ResourceHeap:   0x11,
}

// Alternative file extensions, as in 123.scr.
var patchExts = map[scifmt.ResourceKind]string{
	scifmt.ResourceScript: "scr",
	scifmt.ResourceVocab:  "voc",
	scifmt.ResourceHeap:   "hep",
}

// Dir finds resources stored as patch files in one or more directories.
// Earlier directories take precedence. Both script.000 and 000.scr names are
// recognized. Loaded files are cached.
type Dir struct {
	roots []string
	cache map[Key][]byte
}

// NewDir creates a directory source.
func NewDir(roots ...string) *Dir {
	return &Dir{roots: roots, cache: make(map[Key][]byte)}
}

// Roots returns the searched directories.
func (d *Dir) Roots() []string { return d.roots }

// Find implements scifmt.Finder.
func (d *Dir) Find(kind scifmt.ResourceKind, number int) ([]byte, bool) {
	key := Key{kind, number}
	if data, ok := d.cache[key]; ok {
		return data, true
	}
	for _, root := range d.roots {
		for _, name := range fileNames(key) {
			raw, err := os.ReadFile(filepath.Join(root, name))
			if err != nil {
				continue
			}
			data, err := stripPatchHeader(kind, raw)
			if err != nil {
				log.Warningf("%s: %s", filepath.Join(root, name), err)
				continue
			}
			d.cache[key] = data
			return data, true
		}
	}
	return nil, false
}

// List returns the keys of all recognizable resources in the directories.
func (d *Dir) List() []Key {
	seen := make(map[Key]bool)
	for _, root := range d.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if key, ok := ParseFileName(ent.Name()); ok {
				seen[key] = true
			}
		}
	}
	keys := make([]Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func fileNames(k Key) []string {
	return []string{
		fmt.Sprintf("%s.%03d", k.Kind, k.Number),
		fmt.Sprintf("%d.%s", k.Number, patchExts[k.Kind]),
	}
}

// ParseFileName recognizes a patch file name.
func ParseFileName(name string) (Key, bool) {
	for kind, ext := range patchExts {
		var nr int
		if n, err := fmt.Sscanf(name, kind.String()+".%d", &nr); err == nil && n == 1 && name == fmt.Sprintf("%s.%03d", kind, nr) {
			return Key{kind, nr}, true
		}
		if filepath.Ext(name) == "."+ext {
			if _, err := fmt.Sscanf(name, "%d."+ext, &nr); err == nil {
				return Key{kind, nr}, true
			}
		}
	}
	return Key{}, false
}

// stripPatchHeader removes the type byte and header of a patch file. Files
// without a recognizable header are returned unchanged.
func stripPatchHeader(kind scifmt.ResourceKind, raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != patchTypes[kind]|0x80 {
		return raw, nil
	}
	skip := 2 + int(raw[1])
	if skip > len(raw) {
		return nil, fmt.Errorf("patch header of %d bytes in %d byte file", skip, len(raw))
	}
	return raw[skip:], nil
}

// WritePatch stores data as a patch file named kind.NNN in dir.
func WritePatch(dir string, kind scifmt.ResourceKind, number int, data []byte) error {
	buf := make([]byte, 0, len(data)+2)
	buf = append(buf, patchTypes[kind]|0x80, 0)
	buf = append(buf, data...)
	return os.WriteFile(filepath.Join(dir, fileNames(Key{kind, number})[0]), buf, 0644)
}
