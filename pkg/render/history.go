package render

import (
	"sync"
	"time"
)

// DefaultHistoryCap bounds the received-image history.
const DefaultHistoryCap = 20

// Image is one annotated frame returned by the service.
type Image struct {
	Data     []byte
	Received time.Time
}

// History keeps the most recent images first and evicts the oldest past its cap.
type History struct {
	mu    sync.Mutex
	cap   int
	items []Image
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &History{cap: capacity, items: make([]Image, 0, capacity)}
}

func (h *History) Add(img Image) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) < h.cap {
		h.items = append(h.items, Image{})
	}
	copy(h.items[1:], h.items[:len(h.items)-1])
	h.items[0] = img
}

// Items returns a snapshot, most recent first.
func (h *History) Items() []Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Image(nil), h.items...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

func (h *History) Cap() int { return h.cap }

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.items[:0]
}
