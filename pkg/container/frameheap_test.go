package container

import "testing"

func TestFrameHeapOrdering(t *testing.T) {
	h := NewFrameHeap()
	h.Add(30, 0)
	h.Add(10, 1)
	h.Add(20, 2)

	if top := h.Top(); top != 1 {
		t.Errorf("expected id 1 on top, got %d", top)
	}

	h.Update(5, 2)
	if top := h.Pop(); top != 2 {
		t.Errorf("expected id 2 after re-key, got %d", top)
	}
	if top := h.Pop(); top != 1 {
		t.Errorf("expected id 1, got %d", top)
	}
	if top := h.Pop(); top != 0 {
		t.Errorf("expected id 0, got %d", top)
	}
	if h.Len() != 0 {
		t.Errorf("expected empty heap, got %d", h.Len())
	}
}

func TestFrameHeapRemove(t *testing.T) {
	h := NewFrameHeap()
	for i := int32(0); i < 8; i++ {
		h.Add(uint32(100-i), i)
	}
	h.Remove(7)
	if h.Contains(7) {
		t.Error("expected id 7 removed")
	}

	prev := uint32(0)
	for h.Len() > 0 {
		id := h.Pop()
		if key := h.Key(id); key < prev {
			t.Errorf("expected non-decreasing keys, got %d after %d", key, prev)
		} else {
			prev = key
		}
	}
}

func TestFrameHeapUpdateInserts(t *testing.T) {
	h := NewFrameHeap()
	h.Update(7, 3)
	if !h.Contains(3) || h.Key(3) != 7 {
		t.Errorf("expected Update to insert id 3 with key 7")
	}
}
