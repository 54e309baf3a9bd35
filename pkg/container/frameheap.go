package container

// FrameHeap is a binary min-heap of int32 ids keyed by a uint32 frame
// index, with O(log n) re-key of an id already in the heap. Ids are
// expected to be small dense indices (page-table or card indices).
type FrameHeap struct {
	heap []int32  // ids in heap order
	pos  []int32  // id -> position in heap, -1 when absent
	keys []uint32 // id -> key
}

// NewFrameHeap returns an empty heap.
func NewFrameHeap() *FrameHeap {
	return &FrameHeap{}
}

// Len returns the number of ids in the heap.
func (h *FrameHeap) Len() int {
	return len(h.heap)
}

// Contains reports whether id is in the heap.
func (h *FrameHeap) Contains(id int32) bool {
	return id >= 0 && int(id) < len(h.pos) && h.pos[id] >= 0
}

// Key returns the key id was inserted or last updated with.
func (h *FrameHeap) Key(id int32) uint32 {
	return h.keys[id]
}

// Top returns the id with the smallest key. The heap must not be empty.
func (h *FrameHeap) Top() int32 {
	return h.heap[0]
}

// Pop removes and returns the id with the smallest key.
func (h *FrameHeap) Pop() int32 {
	id := h.heap[0]
	h.removeAt(0)
	return id
}

// Add inserts id with the given key. The id must not already be present.
func (h *FrameHeap) Add(key uint32, id int32) {
	h.ensure(id)
	if h.pos[id] >= 0 {
		panic("container: duplicate id in FrameHeap")
	}
	h.keys[id] = key
	h.pos[id] = int32(len(h.heap))
	h.heap = append(h.heap, id)
	h.up(len(h.heap) - 1)
}

// Update re-keys id if present, otherwise inserts it.
func (h *FrameHeap) Update(key uint32, id int32) {
	if h.Contains(id) {
		old := h.keys[id]
		h.keys[id] = key
		i := int(h.pos[id])
		if key < old {
			h.up(i)
		} else {
			h.down(i)
		}
		return
	}
	h.Add(key, id)
}

// Remove drops id from the heap if present.
func (h *FrameHeap) Remove(id int32) {
	if !h.Contains(id) {
		return
	}
	h.removeAt(int(h.pos[id]))
}

func (h *FrameHeap) ensure(id int32) {
	for int(id) >= len(h.pos) {
		h.pos = append(h.pos, -1)
		h.keys = append(h.keys, 0)
	}
}

func (h *FrameHeap) removeAt(i int) {
	last := len(h.heap) - 1
	id := h.heap[i]
	h.swap(i, last)
	h.heap = h.heap[:last]
	h.pos[id] = -1
	if i < last {
		h.down(i)
		h.up(i)
	}
}

func (h *FrameHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.pos[h.heap[i]] = int32(i)
	h.pos[h.heap[j]] = int32(j)
}

func (h *FrameHeap) less(i, j int) bool {
	return h.keys[h.heap[i]] < h.keys[h.heap[j]]
}

func (h *FrameHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *FrameHeap) down(i int) {
	n := len(h.heap)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && h.less(right, left) {
			smallest = right
		}
		if !h.less(smallest, i) {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}
