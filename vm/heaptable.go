package vm

// ---------------------------------------------------------------------------
// HeapTable: typed slot table with an intrusive free list
// ---------------------------------------------------------------------------

const invalidEntry = -1

type heapEntry[T any] struct {
	next  int
	value T
}

// HeapTable is a growable table of T slots addressed by small integer indices.
//
// Freed slots are threaded onto a free list through their next field and are
// handed out again LIFO. A slot is valid iff its next field equals its own
// index. The table never compacts, so an index stays meaningful until it is
// explicitly freed.
type HeapTable[T any] struct {
	name      string
	increment int
	entries   []heapEntry[T]
	firstFree int
	used      int
	maxEntry  int // high-water mark: slots below it have been handed out at least once
}

// NewHeapTable creates a table with room for initial entries that grows by
// increment entries whenever the free list is empty and capacity is exhausted.
func NewHeapTable[T any](name string, initial, increment int) *HeapTable[T] {
	if increment <= 0 {
		increment = 1
	}
	return &HeapTable[T]{
		name:      name,
		increment: increment,
		entries:   make([]heapEntry[T], initial),
		firstFree: invalidEntry,
	}
}

// Allocate returns a fresh valid index and a pointer to its payload. The
// pointer stays valid until the next Allocate. A recycled payload is the zero
// value of T.
func (t *HeapTable[T]) Allocate() (int, *T) {
	var idx int
	if t.firstFree != invalidEntry {
		idx = t.firstFree
		t.firstFree = t.entries[idx].next
	} else {
		if t.maxEntry == len(t.entries) {
			grown := make([]heapEntry[T], len(t.entries)+t.increment)
			copy(grown, t.entries)
			t.entries = grown
		}
		idx = t.maxEntry
		t.maxEntry++
	}
	t.entries[idx].next = idx
	t.used++
	return idx, &t.entries[idx].value
}

// Free releases idx. Freeing an out-of-range or already free index is an
// integrity violation and leaves the table untouched.
func (t *HeapTable[T]) Free(idx int) error {
	if !t.IsValid(idx) {
		return &IntegrityError{Table: t.name, Index: idx, Op: "free"}
	}
	var zero T
	t.entries[idx].value = zero
	t.entries[idx].next = t.firstFree
	t.firstFree = idx
	t.used--
	return nil
}

// IsValid reports whether idx is currently allocated.
func (t *HeapTable[T]) IsValid(idx int) bool {
	return idx >= 0 && idx < t.maxEntry && t.entries[idx].next == idx
}

// At returns the payload of a valid index.
func (t *HeapTable[T]) At(idx int) (*T, bool) {
	if !t.IsValid(idx) {
		return nil, false
	}
	return &t.entries[idx].value, true
}

// Capacity returns the number of slots backing the table.
func (t *HeapTable[T]) Capacity() int { return len(t.entries) }

// EntriesUsed returns the number of valid slots.
func (t *HeapTable[T]) EntriesUsed() int { return t.used }

// HighWater returns one past the largest index ever handed out.
func (t *HeapTable[T]) HighWater() int { return t.maxEntry }

// ForEachValid calls fn for every valid slot in index order.
func (t *HeapTable[T]) ForEachValid(fn func(idx int, v *T)) {
	for i := 0; i < t.maxEntry; i++ {
		if t.entries[i].next == i {
			fn(i, &t.entries[i].value)
		}
	}
}

// HeapSlot is the serialized form of one table slot.
type HeapSlot[T any] struct {
	Next  int
	Value T
}

// HeapSnapshot is the serialized form of a HeapTable.
type HeapSnapshot[T any] struct {
	Name      string
	Increment int
	Capacity  int
	FirstFree int
	Used      int
	Slots     []HeapSlot[T]
}

// Snapshot captures the table, free list included.
func (t *HeapTable[T]) Snapshot() HeapSnapshot[T] {
	s := HeapSnapshot[T]{
		Name:      t.name,
		Increment: t.increment,
		Capacity:  len(t.entries),
		FirstFree: t.firstFree,
		Used:      t.used,
		Slots:     make([]HeapSlot[T], t.maxEntry),
	}
	for i := 0; i < t.maxEntry; i++ {
		s.Slots[i] = HeapSlot[T]{Next: t.entries[i].next, Value: t.entries[i].value}
	}
	return s
}

// RestoreHeapTable rebuilds a table from a snapshot.
func RestoreHeapTable[T any](s HeapSnapshot[T]) *HeapTable[T] {
	capacity := s.Capacity
	if capacity < len(s.Slots) {
		capacity = len(s.Slots)
	}
	t := &HeapTable[T]{
		name:      s.Name,
		increment: s.Increment,
		entries:   make([]heapEntry[T], capacity),
		firstFree: s.FirstFree,
		used:      s.Used,
		maxEntry:  len(s.Slots),
	}
	if t.increment <= 0 {
		t.increment = 1
	}
	for i, slot := range s.Slots {
		t.entries[i] = heapEntry[T]{next: slot.Next, value: slot.Value}
	}
	return t
}
