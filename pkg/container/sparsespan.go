// Package container provides index-stable containers for renderer registries.
package container

// span is a contiguous free run inside the dense storage.
type span struct {
	Offset int32
	Num    int32
}

// SparseSpanArray is a dense vector with an embedded free-span list.
// Spans of elements are allocated and released in bulk; indices stay
// stable until their span is explicitly removed.
type SparseSpanArray[T any] struct {
	items     []T
	allocated []bool
	// freeSpans is kept sorted by offset so released spans can coalesce.
	freeSpans    []span
	numAllocated int32
}

// Len returns the dense storage length, including free holes.
func (a *SparseSpanArray[T]) Len() int {
	return len(a.items)
}

// NumAllocated returns the number of live elements.
func (a *SparseSpanArray[T]) NumAllocated() int32 {
	return a.numAllocated
}

// IsAllocated reports whether index i holds a live element.
func (a *SparseSpanArray[T]) IsAllocated(i int32) bool {
	return i >= 0 && int(i) < len(a.allocated) && a.allocated[i]
}

// Get returns a pointer to the element at index i.
// The element must be allocated.
func (a *SparseSpanArray[T]) Get(i int32) *T {
	if !a.IsAllocated(i) {
		panic("container: access to unallocated sparse span element")
	}
	return &a.items[i]
}

// AddSpan allocates num contiguous elements and returns the first index.
// Free holes are reused best-fit before the storage grows.
func (a *SparseSpanArray[T]) AddSpan(num int32) int32 {
	if num <= 0 {
		panic("container: AddSpan with non-positive count")
	}

	best := -1
	for i, s := range a.freeSpans {
		if s.Num >= num && (best < 0 || s.Num < a.freeSpans[best].Num) {
			best = i
		}
	}

	var offset int32
	if best >= 0 {
		s := &a.freeSpans[best]
		offset = s.Offset
		s.Offset += num
		s.Num -= num
		if s.Num == 0 {
			a.freeSpans = append(a.freeSpans[:best], a.freeSpans[best+1:]...)
		}
		var zero T
		for i := offset; i < offset+num; i++ {
			a.items[i] = zero
		}
	} else {
		offset = int32(len(a.items))
		a.items = append(a.items, make([]T, num)...)
		a.allocated = append(a.allocated, make([]bool, num)...)
	}

	for i := offset; i < offset+num; i++ {
		a.allocated[i] = true
	}
	a.numAllocated += num
	return offset
}

// RemoveSpan releases num elements starting at offset.
// The span must be fully allocated.
func (a *SparseSpanArray[T]) RemoveSpan(offset, num int32) {
	for i := offset; i < offset+num; i++ {
		if !a.IsAllocated(i) {
			panic("container: RemoveSpan over unallocated element")
		}
		a.allocated[i] = false
	}
	a.numAllocated -= num

	// Insert sorted by offset, then coalesce with neighbors.
	pos := len(a.freeSpans)
	for i, s := range a.freeSpans {
		if s.Offset > offset {
			pos = i
			break
		}
	}
	a.freeSpans = append(a.freeSpans, span{})
	copy(a.freeSpans[pos+1:], a.freeSpans[pos:])
	a.freeSpans[pos] = span{Offset: offset, Num: num}

	if pos+1 < len(a.freeSpans) {
		next := a.freeSpans[pos+1]
		if a.freeSpans[pos].Offset+a.freeSpans[pos].Num == next.Offset {
			a.freeSpans[pos].Num += next.Num
			a.freeSpans = append(a.freeSpans[:pos+1], a.freeSpans[pos+2:]...)
		}
	}
	if pos > 0 {
		prev := &a.freeSpans[pos-1]
		if prev.Offset+prev.Num == a.freeSpans[pos].Offset {
			prev.Num += a.freeSpans[pos].Num
			a.freeSpans = append(a.freeSpans[:pos], a.freeSpans[pos+1:]...)
		}
	}
}

// ForEach calls fn for every allocated element.
func (a *SparseSpanArray[T]) ForEach(fn func(index int32, item *T)) {
	for i := range a.items {
		if a.allocated[i] {
			fn(int32(i), &a.items[i])
		}
	}
}
