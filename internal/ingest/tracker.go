package ingest

import "sync"

// Tracker remembers which source files have already been ingested during
// the current session. Identity is the filename, not a content hash: a
// renamed duplicate is reprocessed, which is an accepted tradeoff. A fresh
// tracker is created per live sync session.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// ShouldProcess returns true and marks the identity as seen on the first
// call for that identity. Every later call, including a concurrent one,
// returns false. The check and the mark happen under one lock, so two
// racing callers can never both get true.
func (t *Tracker) ShouldProcess(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[identity]; ok {
		return false
	}
	t.seen[identity] = struct{}{}
	return true
}

// Len returns the number of identities marked so far.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
