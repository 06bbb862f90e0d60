package scanner

import (
	"sync"
	"time"
)

// HistorySize is the number of recent scans kept.
const HistorySize = 5

type Scan struct {
	Code      string    `json:"code"`
	ScannedAt time.Time `json:"scanned_at"`
}

// History is a fixed-capacity buffer of recent scans, oldest evicted first.
// The mutex is held only while copying in or out.
type History struct {
	mu    sync.Mutex
	items []Scan
	size  int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = HistorySize
	}
	return &History{items: make([]Scan, 0, size), size: size}
}

func (h *History) Push(s Scan) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == h.size {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, s)
}

// Latest returns the most recent scan, if any.
func (h *History) Latest() (Scan, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return Scan{}, false
	}
	return h.items[len(h.items)-1], true
}

// Snapshot returns the scans newest first.
func (h *History) Snapshot() []Scan {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Scan, len(h.items))
	for i, s := range h.items {
		out[len(h.items)-1-i] = s
	}
	return out
}
