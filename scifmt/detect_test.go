package scifmt

import "testing"

type finder map[ResourceKind]map[int][]byte

func (f finder) Find(kind ResourceKind, number int) ([]byte, bool) {
	data, ok := f[kind][number]
	return data, ok
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		res  finder
		want Version
	}{
		{"empty", finder{}, VersionSCI0},
		{"heap", finder{ResourceHeap: {0: {0, 0}}}, VersionSCI11},
		{"blocks", finder{ResourceScript: {0: {byte(BlockExports), 0, 6, 0}}}, VersionSCI0},
		{"local count", finder{ResourceScript: {0: {40, 0}}}, VersionSCI0Early},
		{"first script wins", finder{ResourceScript: {
			3: {byte(BlockObject), 0},
			7: {99, 0},
		}}, VersionSCI0},
		{"short scripts skipped", finder{ResourceScript: {
			0: {1},
			1: {0x20, 0},
		}}, VersionSCI0Early},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.res); got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResourceKindString(t *testing.T) {
	if ResourceHeap.String() != "heap" || ResourceKind(9).String() != "unknown" {
		t.Errorf("names = %q, %q", ResourceHeap, ResourceKind(9))
	}
}
