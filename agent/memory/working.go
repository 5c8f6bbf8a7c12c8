package memory

import (
	"sync"

	"github.com/BaSui01/mindflow/types"
)

// WorkingContext is the bounded short-term attention window. Admitting an
// item beyond capacity silently evicts the oldest one; admission never
// fails. Items keep insertion order, oldest first.
type WorkingContext struct {
	mu       sync.RWMutex
	capacity int
	items    []types.ContextItem
}

// NewWorkingContext creates a window holding at most capacity items.
// Non-positive capacity falls back to 1.
func NewWorkingContext(capacity int) *WorkingContext {
	if capacity <= 0 {
		capacity = 1
	}
	return &WorkingContext{
		capacity: capacity,
		items:    make([]types.ContextItem, 0, capacity),
	}
}

// Admit appends item, evicting the oldest entry when the window is full.
func (w *WorkingContext) Admit(item types.ContextItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = append(w.items, item)
	if len(w.items) > w.capacity {
		w.items = w.items[1:]
	}
}

// Snapshot returns a copy of the current window, oldest first. Mutating
// the returned slice does not affect the window.
func (w *WorkingContext) Snapshot() []types.ContextItem {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]types.ContextItem, len(w.items))
	copy(out, w.items)
	return out
}

// Len reports the number of items currently held.
func (w *WorkingContext) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Capacity reports the configured maximum window size.
func (w *WorkingContext) Capacity() int {
	return w.capacity
}

// Clear drops all items.
func (w *WorkingContext) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = w.items[:0]
}
