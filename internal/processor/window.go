package processor

import "sync"

// Default capacities. The dedup set evicts in bulk (1000 inserted, evict
// down to the newest 500) so it doesn't churn on every message; the spam
// window evicts one-by-one so it always holds the last N fingerprints.
const (
	dedupCapacity = 1000
	dedupLow      = 500
	spamCapacity  = 500
)

// window is a capped, insertion-ordered string set. Membership is O(1);
// overflow evicts the oldest keys. It bounds memory against unbounded
// message IDs and fingerprints.
type window struct {
	mu    sync.Mutex
	order []string
	set   map[string]struct{}
	cap   int
	low   int // size after an eviction pass
}

func newWindow(capacity, low int) *window {
	if low > capacity {
		low = capacity
	}
	return &window{
		set: make(map[string]struct{}, capacity),
		cap: capacity,
		low: low,
	}
}

// SeenOrAdd reports whether key is already present; if not, it records it,
// evicting oldest entries once the window exceeds capacity.
func (w *window) SeenOrAdd(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.set[key]; ok {
		return true
	}

	w.order = append(w.order, key)
	w.set[key] = struct{}{}

	if len(w.order) > w.cap {
		drop := len(w.order) - w.low
		for _, old := range w.order[:drop] {
			delete(w.set, old)
		}
		w.order = append(w.order[:0], w.order[drop:]...)
	}
	return false
}

// Len returns the number of tracked keys.
func (w *window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}
