package crawler

import (
	"strings"
	"sync"
)

// Canonicalize returns the deduplication key for rawURL: the URL with its
// fragment removed. Nothing else is normalized, so "/a" and "/a/" remain
// distinct pages.
func Canonicalize(rawURL string) string {
	canonical, _, _ := strings.Cut(strings.TrimSpace(rawURL), "#")
	return canonical
}

// Tracker remembers which canonical URLs have been accepted into a crawl.
// It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Seen reports whether canonical has been marked.
func (t *Tracker) Seen(canonical string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[canonical]
	return ok
}

// MarkIfNew marks canonical as seen and reports whether it was new.
// Of several concurrent callers with the same URL exactly one gets true.
func (t *Tracker) MarkIfNew(canonical string) bool {
	return t.markIf(canonical, nil)
}

// markIf marks canonical only if it is new and accept (when non-nil)
// returns true. The check, the predicate and the mark happen under one
// lock acquisition.
func (t *Tracker) markIf(canonical string, accept func() bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[canonical]; ok {
		return false
	}
	if accept != nil && !accept() {
		return false
	}
	t.seen[canonical] = struct{}{}
	return true
}

// Len returns the number of marked URLs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
