package session

import (
	"fmt"
	"strings"
	"sync"
)

// TranscriptBuffer is the append-only log of attributed speech segments for
// one session. Recognition callbacks and timer callbacks may both append, so
// all access is mutex-guarded. Entries are never edited or removed.
type TranscriptBuffer struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Append validates and stores an entry. The entry index within the buffer is
// returned so callers can record context ranges without re-reading.
func (b *TranscriptBuffer) Append(e TranscriptEntry) (int, error) {
	if strings.TrimSpace(e.Text) == "" {
		return 0, fmt.Errorf("%w: empty text", ErrInvalidEntry)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return 0, fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidEntry, e.Confidence)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	return len(b.entries) - 1, nil
}

// Tail returns the most recent n entries in chronological order.
func (b *TranscriptBuffer) Tail(n int) []TranscriptEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]TranscriptEntry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// All returns a copy of every entry in insertion order.
func (b *TranscriptBuffer) All() []TranscriptEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]TranscriptEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *TranscriptBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// RenderLines formats entries as "speaker: text" lines, the shape both AI
// calls consume.
func RenderLines(entries []TranscriptEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, string(e.Speaker)+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}
