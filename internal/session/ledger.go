package session

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is one finalized transcript, immutable once created.
type Entry struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"is_final"`
	Text       string  `json:"text"`
}

// Ledger accumulates finalized transcripts in arrival order and tracks the
// current not-yet-final hypothesis separately. Append-only; entries are
// never mutated or removed.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	live    string
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordFinal appends a finalized entry and clears the live transcript.
func (l *Ledger) RecordFinal(confidence float64, text string) Entry {
	entry := Entry{
		ID:         uuid.NewString(),
		Confidence: confidence,
		Final:      true,
		Text:       text,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.live = ""
	l.mu.Unlock()
	return entry
}

// RecordInterim overwrites the live transcript; the ledger is untouched.
func (l *Ledger) RecordInterim(text string) {
	l.mu.Lock()
	l.live = text
	l.mu.Unlock()
}

// Snapshot returns a copy of the entries plus the current live transcript.
func (l *Ledger) Snapshot() ([]Entry, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries, l.live
}

// Last returns the most recently finalized entry, if any.
func (l *Ledger) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
