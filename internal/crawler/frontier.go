package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/policy"
)

// Frontier is the FIFO queue of crawl targets.
//
// Enqueue gates every URL through the Tracker and the crawl policy, so a
// canonical URL enters the queue at most once and always at the depth it
// was first discovered. FIFO order gives breadth-first visitation: every
// depth-d target is dequeued before any depth-(d+1) target.
//
// A Frontier is safe for concurrent use. Workers use Next and Done; the
// sequential loop uses Dequeue.
type Frontier struct {
	policy  policy.Policy
	tracker *Tracker
	filter  pathFilter
	logger  *slog.Logger

	mu       sync.Mutex
	queue    []model.CrawlTarget
	nextSeq  uint64
	inflight int

	// changed is closed and replaced whenever the queue grows or an
	// in-flight target finishes, waking every blocked Next call.
	changed chan struct{}
}

// NewFrontier creates an empty frontier for a crawl scoped by p.
func NewFrontier(p policy.Policy, tracker *Tracker, logger *slog.Logger) *Frontier {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontier{
		policy:  p,
		tracker: tracker,
		logger:  logger,
		queue:   make([]model.CrawlTarget, 0),
		changed: make(chan struct{}),
	}
}

// withFilter sets additional path patterns.
func (f *Frontier) withFilter(filter pathFilter) *Frontier {
	f.filter = filter
	return f
}

// Enqueue offers rawURL at the given depth. It reports whether the URL was
// accepted. Rejected URLs are not marked as seen.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	canonical := Canonicalize(rawURL)
	if canonical == "" || depth < 0 || depth > f.policy.MaxDepth() {
		return false
	}

	u, err := url.Parse(canonical)
	if err != nil {
		f.logger.Debug("dropping unparseable url", "url", canonical, "error", err)
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	accepted := f.tracker.markIf(canonical, func() bool {
		if !f.policy.Allows(u) {
			f.logger.Debug("url out of scope", "url", canonical)
			return false
		}
		if !f.filter.allows(u) {
			f.logger.Debug("url filtered by pattern", "url", canonical)
			return false
		}
		return true
	})
	if !accepted {
		return false
	}

	f.nextSeq++
	f.queue = append(f.queue, model.CrawlTarget{
		URL:   canonical,
		Depth: depth,
		Seq:   f.nextSeq,
	})
	f.notifyLocked()
	return true
}

// Dequeue pops the front target without blocking.
// The second return value is false when the queue is empty.
func (f *Frontier) Dequeue() (model.CrawlTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.popLocked()
}

// Next pops the front target, blocking while the queue is empty but other
// targets are still being processed, since those may enqueue more work.
// It returns false once the queue is empty and nothing is in flight, or
// when ctx is done. Every target returned by Next must be followed by
// exactly one call to Done.
func (f *Frontier) Next(ctx context.Context) (model.CrawlTarget, bool) {
	for {
		if ctx.Err() != nil {
			return model.CrawlTarget{}, false
		}

		f.mu.Lock()
		if t, ok := f.popLocked(); ok {
			f.inflight++
			f.mu.Unlock()
			return t, true
		}
		if f.inflight == 0 {
			f.mu.Unlock()
			return model.CrawlTarget{}, false
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.CrawlTarget{}, false
		case <-changed:
		}
	}
}

// Done marks a target obtained from Next as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}
	f.notifyLocked()
}

// Len returns the number of queued targets.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Enqueued returns how many targets have been accepted so far.
func (f *Frontier) Enqueued() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextSeq
}

func (f *Frontier) popLocked() (model.CrawlTarget, bool) {
	if len(f.queue) == 0 {
		return model.CrawlTarget{}, false
	}
	t := f.queue[0]
	f.queue[0] = model.CrawlTarget{}
	f.queue = f.queue[1:]
	return t, true
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}
