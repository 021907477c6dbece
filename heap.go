package pointdensity

import "fmt"

// HeapDirection selects min- or max-heap ordering. A single sift
// implementation serves both directions: every key comparison is multiplied
// by the direction, so MaxHeap keeps the largest key at the root and MinHeap
// the smallest.
type HeapDirection int

const (
	MinHeap HeapDirection = -1
	MaxHeap HeapDirection = 1
)

// BoundedHeap is an array-backed binary heap over (float64 key, T value)
// pairs, stored as two parallel slices that grow by doubling. Entries are
// removed only from the root.
//
// A MaxHeap over distances is the candidate set for bounded k-nearest-
// neighbour search: the root holds the worst kept candidate, PeekKey gives
// the pruning bound, and PopReplace evicts the worst candidate for a better
// one without the heap ever exceeding k entries.
type BoundedHeap[T any] struct {
	keys      []float64
	values    []T
	direction float64
}

// NewBoundedHeap returns an empty heap with room for capacity entries before
// the first growth. capacity below 1 is clamped to 1.
func NewBoundedHeap[T any](capacity int, dir HeapDirection) *BoundedHeap[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedHeap[T]{
		keys:      make([]float64, 0, capacity),
		values:    make([]T, 0, capacity),
		direction: float64(dir),
	}
}

// Len returns the number of entries currently held.
func (h *BoundedHeap[T]) Len() int { return len(h.keys) }

// Offer inserts an entry unconditionally, growing the backing arrays if full.
func (h *BoundedHeap[T]) Offer(key float64, value T) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
	h.siftUp(len(h.keys) - 1)
}

// PeekKey returns the root key without removing it.
func (h *BoundedHeap[T]) PeekKey() (float64, error) {
	if len(h.keys) == 0 {
		return 0, fmt.Errorf("pointdensity: PeekKey: %w", ErrEmptyHeap)
	}
	return h.keys[0], nil
}

// Peek returns the root value without removing it.
func (h *BoundedHeap[T]) Peek() (T, error) {
	if len(h.keys) == 0 {
		var zero T
		return zero, fmt.Errorf("pointdensity: Peek: %w", ErrEmptyHeap)
	}
	return h.values[0], nil
}

// Pop removes and returns the root entry.
func (h *BoundedHeap[T]) Pop() (float64, T, error) {
	if len(h.keys) == 0 {
		var zero T
		return 0, zero, fmt.Errorf("pointdensity: Pop: %w", ErrEmptyHeap)
	}
	key, value := h.keys[0], h.values[0]
	last := len(h.keys) - 1
	h.keys[0], h.values[0] = h.keys[last], h.values[last]
	var zero T
	h.values[last] = zero
	h.keys = h.keys[:last]
	h.values = h.values[:last]
	if last > 0 {
		h.siftDown(0)
	}
	return key, value, nil
}

// PopReplace swaps the root for a new entry and re-heapifies in O(log n),
// keeping the entry count constant. Returns the evicted root entry.
func (h *BoundedHeap[T]) PopReplace(key float64, value T) (float64, T, error) {
	if len(h.keys) == 0 {
		var zero T
		return 0, zero, fmt.Errorf("pointdensity: PopReplace: %w", ErrEmptyHeap)
	}
	oldKey, oldValue := h.keys[0], h.values[0]
	h.keys[0], h.values[0] = key, value
	h.siftDown(0)
	return oldKey, oldValue, nil
}

// Visit calls fn for every held entry in unspecified order. fn must not
// mutate the heap.
func (h *BoundedHeap[T]) Visit(fn func(key float64, value T)) {
	for i := range h.keys {
		fn(h.keys[i], h.values[i])
	}
}

func (h *BoundedHeap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if (h.keys[i]-h.keys[parent])*h.direction <= 0 {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *BoundedHeap[T]) siftDown(i int) {
	n := len(h.keys)
	for {
		child := 2*i + 1
		if child >= n {
			return
		}
		if right := child + 1; right < n && (h.keys[right]-h.keys[child])*h.direction > 0 {
			child = right
		}
		if (h.keys[child]-h.keys[i])*h.direction <= 0 {
			return
		}
		h.swap(i, child)
		i = child
	}
}

func (h *BoundedHeap[T]) swap(i, j int) {
	h.keys[i], h.keys[j] = h.keys[j], h.keys[i]
	h.values[i], h.values[j] = h.values[j], h.values[i]
}
