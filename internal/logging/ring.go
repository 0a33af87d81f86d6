package logging

import (
	"sync"
	"time"
)

const defaultRingCapacity = 200

// Ring keeps the most recent N entries in memory. Used for payloads that
// are not worth a log line on their own but matter when debugging a live
// stream, e.g. unrecognized server notification methods.
type Ring struct {
	mu      sync.Mutex
	entries []RingEntry
	start   int
	count   int
}

type RingEntry struct {
	Time    time.Time
	Message string
	Fields  []Field
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Ring{entries: make([]RingEntry, capacity)}
}

func (r *Ring) Add(message string, fields ...Field) {
	if r == nil {
		return
	}
	entry := RingEntry{
		Time:    time.Now().UTC(),
		Message: message,
		Fields:  append([]Field{}, fields...),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < len(r.entries) {
		r.entries[(r.start+r.count)%len(r.entries)] = entry
		r.count++
		return
	}
	r.entries[r.start] = entry
	r.start = (r.start + 1) % len(r.entries)
}

// Entries returns the retained entries, oldest first.
func (r *Ring) Entries() []RingEntry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RingEntry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
