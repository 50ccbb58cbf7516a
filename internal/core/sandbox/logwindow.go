package sandbox

import (
	"sync"
	"time"
)

// DefaultMaxEntries bounds a LogWindow when no size is configured.
const DefaultMaxEntries = 500

// LogEntry is one relayed console message.
type LogEntry struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// LogWindow keeps the most recent console entries. Appending beyond the
// bound evicts the oldest entry. LogWindow is safe for concurrent use.
type LogWindow struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
}

// NewLogWindow creates a window holding at most size entries. A non-positive
// size uses DefaultMaxEntries.
func NewLogWindow(size int) *LogWindow {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	return &LogWindow{
		entries: make([]LogEntry, 0, min(size, 64)),
		max:     size,
	}
}

// Append adds e, stamping it with the current time when unset.
func (w *LogWindow) Append(e LogEntry) LogEntry {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == w.max {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:len(w.entries)-1]
	}
	w.entries = append(w.entries, e)
	return e
}

// Entries returns a copy of the window, oldest first.
func (w *LogWindow) Entries() []LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]LogEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *LogWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *LogWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = w.entries[:0]
}
