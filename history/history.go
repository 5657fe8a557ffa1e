// Package history keeps the most recent transcriptions in memory.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCapacity = 10
	previewRunes    = 50
)

// Entry is one completed transcription. Entries are never modified after
// they are added.
type Entry struct {
	ID        uuid.UUID
	Text      string
	CreatedAt time.Time
}

// Preview shortens long text for list display.
func (e Entry) Preview() string {
	r := []rune(e.Text)
	if len(r) <= previewRunes {
		return e.Text
	}
	return string(r[:previewRunes]) + "..."
}

// History is a bounded list, newest first. Adding past capacity drops the
// oldest entry.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
	now      func() time.Time
}

func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity, now: time.Now}
}

func (h *History) Add(text string) Entry {
	e := Entry{ID: uuid.New(), Text: text, CreatedAt: h.now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Entry{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = e
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
	return e
}

// Entries returns a copy, newest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.entries...)
}

func (h *History) Latest() (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[0], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}
