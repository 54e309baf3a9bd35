package container

import "testing"

func TestSparseSpanAddRemove(t *testing.T) {
	var a SparseSpanArray[int]

	first := a.AddSpan(4)
	if first != 0 {
		t.Errorf("expected offset 0, got %d", first)
	}
	second := a.AddSpan(2)
	if second != 4 {
		t.Errorf("expected offset 4, got %d", second)
	}
	if a.NumAllocated() != 6 {
		t.Errorf("expected 6 allocated, got %d", a.NumAllocated())
	}

	a.RemoveSpan(first, 4)
	if a.IsAllocated(0) || a.IsAllocated(3) {
		t.Error("expected removed span to be unallocated")
	}
	if !a.IsAllocated(4) {
		t.Error("expected second span to stay allocated")
	}

	// The hole must be reused before the storage grows.
	reused := a.AddSpan(3)
	if reused != 0 {
		t.Errorf("expected reuse at offset 0, got %d", reused)
	}
	if a.Len() != 6 {
		t.Errorf("expected dense length 6, got %d", a.Len())
	}
}

func TestSparseSpanCoalesce(t *testing.T) {
	var a SparseSpanArray[int]

	s1 := a.AddSpan(2)
	s2 := a.AddSpan(2)
	s3 := a.AddSpan(2)

	a.RemoveSpan(s1, 2)
	a.RemoveSpan(s3, 2)
	a.RemoveSpan(s2, 2)

	// All three spans coalesced, so a full-size span fits without growth.
	offset := a.AddSpan(6)
	if offset != 0 {
		t.Errorf("expected offset 0 after coalesce, got %d", offset)
	}
	if a.Len() != 6 {
		t.Errorf("expected dense length 6, got %d", a.Len())
	}
}

func TestSparseSpanZeroesReusedElements(t *testing.T) {
	var a SparseSpanArray[int]

	offset := a.AddSpan(1)
	*a.Get(offset) = 42
	a.RemoveSpan(offset, 1)

	offset = a.AddSpan(1)
	if got := *a.Get(offset); got != 0 {
		t.Errorf("expected reused element zeroed, got %d", got)
	}
}
