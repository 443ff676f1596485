// Package recents keeps the bounded history of recently posted filenames.
package recents

// History is a bounded FIFO of filenames in posting order (oldest first).
// Pushing past capacity evicts the oldest entry.
//
// History is not safe for concurrent use; the orchestrator owns it.
type History struct {
	capacity int
	items    []string
}

// NewHistory returns an empty history. Capacities below 1 are raised to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{capacity: capacity, items: make([]string, 0, capacity)}
}

// Push appends name, evicting the oldest entry when full.
func (h *History) Push(name string) {
	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, name)
}

func (h *History) Contains(name string) bool {
	for _, it := range h.items {
		if it == name {
			return true
		}
	}
	return false
}

// Items returns a copy of the entries, oldest first.
func (h *History) Items() []string {
	return append([]string(nil), h.items...)
}

func (h *History) Len() int { return len(h.items) }
func (h *History) Cap() int { return h.capacity }
