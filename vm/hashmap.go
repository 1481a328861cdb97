package vm

// ---------------------------------------------------------------------------
// HashIndexMap: interns values to small dense integers
// ---------------------------------------------------------------------------

// HashMax is the number of buckets of a HashIndexMap.
const HashMax = 256

// Hasher supplies hashing and equality for a HashIndexMap key type.
type Hasher[K any] interface {
	Hash(K) uint32
	Equal(a, b K) bool
}

// IntHasher hashes integers by their low bits.
type IntHasher struct{}

func (IntHasher) Hash(v int) uint32   { return uint32(v) }
func (IntHasher) Equal(a, b int) bool { return a == b }

// RegHasher hashes addresses by combining segment and offset.
type RegHasher struct{}

func (RegHasher) Hash(r Reg) uint32 {
	return uint32(r.Segment)<<3 ^ uint32(r.Offset) ^ uint32(r.Offset)>>8
}

func (RegHasher) Equal(a, b Reg) bool { return a == b }

type hashNode[K any] struct {
	key  K
	id   int
	next *hashNode[K]
}

// HashIndexMap assigns every distinct key a small integer id.
//
// Ids are handed out in increasing order starting at 0 and are never reused,
// even after the key that held them is removed.
type HashIndexMap[K any] struct {
	hasher  Hasher[K]
	buckets [HashMax]*hashNode[K]
	nextID  int
	count   int
}

// NewHashIndexMap creates an empty map using h for hashing and comparison.
func NewHashIndexMap[K any](h Hasher[K]) *HashIndexMap[K] {
	return &HashIndexMap[K]{hasher: h}
}

func (m *HashIndexMap[K]) bucket(v K) int {
	return int(m.hasher.Hash(v) % HashMax)
}

// CheckValue looks v up. When v is absent and add is true it is inserted with
// a fresh id and wasNew is true; when absent and add is false id is -1.
func (m *HashIndexMap[K]) CheckValue(v K, add bool) (id int, wasNew bool) {
	b := m.bucket(v)
	for n := m.buckets[b]; n != nil; n = n.next {
		if m.hasher.Equal(n.key, v) {
			return n.id, false
		}
	}
	if !add {
		return -1, false
	}
	m.insert(b, v, m.nextID)
	m.nextID++
	return m.nextID - 1, true
}

func (m *HashIndexMap[K]) insert(b int, v K, id int) {
	m.buckets[b] = &hashNode[K]{key: v, id: id, next: m.buckets[b]}
	m.count++
}

// RemoveValue unlinks v and returns the id it held.
func (m *HashIndexMap[K]) RemoveValue(v K) (int, bool) {
	b := m.bucket(v)
	var prev *hashNode[K]
	for n := m.buckets[b]; n != nil; prev, n = n, n.next {
		if !m.hasher.Equal(n.key, v) {
			continue
		}
		if prev == nil {
			m.buckets[b] = n.next
		} else {
			prev.next = n.next
		}
		m.count--
		return n.id, true
	}
	return -1, false
}

// ForEach calls fn for every key. Iteration order is bucket order.
func (m *HashIndexMap[K]) ForEach(fn func(key K, id int)) {
	for _, n := range m.buckets {
		for ; n != nil; n = n.next {
			fn(n.key, n.id)
		}
	}
}

// Len returns the number of keys currently in the map.
func (m *HashIndexMap[K]) Len() int { return m.count }

// NextID returns the id the next insertion will receive.
func (m *HashIndexMap[K]) NextID() int { return m.nextID }

// HashEntry is the serialized form of one map entry.
type HashEntry[K any] struct {
	Key K
	ID  int
}

// HashSnapshot is the serialized form of a HashIndexMap.
type HashSnapshot[K any] struct {
	NextID  int
	Entries []HashEntry[K]
}

// Export captures the map's keys, ids and id counter.
func (m *HashIndexMap[K]) Export() HashSnapshot[K] {
	s := HashSnapshot[K]{NextID: m.nextID}
	m.ForEach(func(k K, id int) {
		s.Entries = append(s.Entries, HashEntry[K]{Key: k, ID: id})
	})
	return s
}

// Import replaces the map's contents with a snapshot. Entries keep their ids.
func (m *HashIndexMap[K]) Import(s HashSnapshot[K]) {
	m.buckets = [HashMax]*hashNode[K]{}
	m.count = 0
	// Re-prepend in reverse so every chain keeps its original order.
	for i := len(s.Entries) - 1; i >= 0; i-- {
		e := s.Entries[i]
		m.insert(m.bucket(e.Key), e.Key, e.ID)
	}
	m.nextID = s.NextID
}
