package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/policy"
)

// Crawl defaults.
const (
	DefaultMaxDepth    = 2
	DefaultIncludePDFs = true
	DefaultIgnoreEPUBs = true
	DefaultWorkers     = 1
)

// State is the lifecycle state of a Spider.
type State int32

const (
	// StateIdle means no crawl has started.
	StateIdle State = iota
	// StateRunning means a crawl is in progress.
	StateRunning
	// StateCompleted means the last crawl finished, fully or after
	// cancellation.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Spider crawls a website breadth-first from a base URL and collects the
// text of every in-scope page.
type Spider struct {
	// fetcher retrieves URLs. It must be safe for concurrent use when
	// workers > 1.
	fetcher Fetcher

	// extractor turns bodies into text and links.
	extractor Extractor

	// maxDepth limits how many links away from the base URL to go.
	// 0 means only the base page, 1 means the base page plus its links, etc.
	maxDepth int

	// includePDFs allows fetching .pdf URLs.
	includePDFs bool

	// ignoreEPUBs rejects .epub URLs.
	ignoreEPUBs bool

	// workers is the number of goroutines processing targets.
	// 1 runs the sequential loop.
	workers int

	// perOrigin caps concurrent requests to one origin. 0 means no cap
	// beyond workers.
	perOrigin int

	// delay is the minimum time between request starts to one origin.
	delay time.Duration

	// ignorePatterns and followPatterns narrow the crawl by URL path.
	ignorePatterns []string
	followPatterns []string

	// ordered sorts documents by discovery order before returning.
	ordered bool

	logger *slog.Logger

	state atomic.Int32
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithIncludePDFs controls whether PDF URLs are fetched.
func WithIncludePDFs(include bool) SpiderOption {
	return func(s *Spider) {
		s.includePDFs = include
	}
}

// WithIgnoreEPUBs controls whether EPUB URLs are skipped.
func WithIgnoreEPUBs(ignore bool) SpiderOption {
	return func(s *Spider) {
		s.ignoreEPUBs = ignore
	}
}

// WithWorkers sets the number of concurrent workers. Values below 1 are
// treated as 1.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithPerOriginLimit caps concurrent requests to a single origin.
func WithPerOriginLimit(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.perOrigin = n
		}
	}
}

// WithDelay sets the minimum interval between request starts to one origin.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.zip").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to URL paths matching at least one
// pattern. An empty slice allows everything in scope.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithOrderedOutput makes Crawl return documents in discovery order even
// when several workers finish out of order.
func WithOrderedOutput(ordered bool) SpiderOption {
	return func(s *Spider) {
		s.ordered = ordered
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e Extractor) SpiderOption {
	return func(s *Spider) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that retrieves pages with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     fetcher,
		extractor:   NewExtractor(),
		maxDepth:    DefaultMaxDepth,
		includePDFs: DefaultIncludePDFs,
		ignoreEPUBs: DefaultIgnoreEPUBs,
		workers:     DefaultWorkers,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// State returns the current lifecycle state.
func (s *Spider) State() State {
	return State(s.state.Load())
}

// MaxDepth returns the configured depth limit.
func (s *Spider) MaxDepth() int {
	return s.maxDepth
}

// crawlRun holds the shared state of one crawl.
type crawlRun struct {
	policy     policy.Policy
	frontier   *Frontier
	aggregator *Aggregator
	limiter    *originLimiter
}

// Crawl crawls from baseURL and returns the collected documents.
//
// An invalid base URL is returned as an error before the crawl starts.
// Fetch and extract failures of individual pages never stop the crawl;
// they are listed in CrawlResult.Failures. If ctx is cancelled the crawl
// stops taking new targets, waits for in-flight ones and returns the
// partial result together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, baseURL string) (*model.CrawlResult, error) {
	if s.fetcher == nil {
		return nil, ErrNilFetcher
	}

	baseURL = strings.TrimSpace(baseURL)
	pol, err := policy.New(baseURL, s.maxDepth, s.includePDFs, s.ignoreEPUBs)
	if err != nil {
		return nil, fmt.Errorf("crawl %q: %w", baseURL, err)
	}

	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) &&
		!s.state.CompareAndSwap(int32(StateCompleted), int32(StateRunning)) {
		return nil, ErrCrawlInProgress
	}
	defer s.state.Store(int32(StateCompleted))

	run := &crawlRun{
		policy: pol,
		frontier: NewFrontier(pol, NewTracker(), s.logger).withFilter(pathFilter{
			ignore: s.ignorePatterns,
			follow: s.followPatterns,
		}),
		aggregator: NewAggregator(baseURL, s.maxDepth),
		limiter:    newOriginLimiter(s.perOrigin, s.delay),
	}

	s.logger.Info("crawl started",
		"base", baseURL,
		"max_depth", s.maxDepth,
		"workers", s.workers,
	)
	startedAt := time.Now()

	if !run.frontier.Enqueue(baseURL, 0) {
		s.logger.Warn("base url rejected by crawl policy", "base", baseURL)
	}

	if s.workers <= 1 {
		s.runSequential(ctx, run)
	} else {
		s.runPool(ctx, run)
	}

	result := run.aggregator.Result(startedAt, time.Now())
	result.ID = uuid.NewString()
	if s.ordered {
		result.SortBySeq()
	}

	s.logger.Info("crawl finished",
		"base", baseURL,
		"documents", len(result.Documents),
		"failures", len(result.Failures),
		"elapsed", result.Duration(),
	)

	return result, ctx.Err()
}

// runSequential is the reference loop: one target at a time, in FIFO order.
func (s *Spider) runSequential(ctx context.Context, run *crawlRun) {
	for ctx.Err() == nil {
		target, ok := run.frontier.Dequeue()
		if !ok {
			return
		}
		s.process(ctx, run, target)
	}
}

// runPool runs s.workers goroutines that share the frontier.
func (s *Spider) runPool(ctx context.Context, run *crawlRun) {
	var g errgroup.Group
	for range s.workers {
		g.Go(func() error {
			for {
				target, ok := run.frontier.Next(ctx)
				if !ok {
					return nil
				}
				s.process(ctx, run, target)
				run.frontier.Done()
			}
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
}

// process fetches, extracts and records one target, then offers its links.
func (s *Spider) process(ctx context.Context, run *crawlRun, target model.CrawlTarget) {
	if ctx.Err() != nil {
		return
	}
	release, err := run.limiter.acquire(ctx, originOf(target.URL))
	if err != nil {
		return
	}
	fetched := s.fetcher.Fetch(ctx, target.URL)
	release()

	if !fetched.OK() {
		if ctx.Err() != nil {
			// Cancelled mid-request; not a failure of the page.
			return
		}
		s.logger.Warn("failed to retrieve page",
			"url", target.URL,
			"depth", target.Depth,
			"reason", fetched.Reason,
		)
		run.aggregator.Fail(target, model.StageFetch, fetched.Reason)
		return
	}

	if err := s.admit(run, fetched); err != nil {
		s.logger.Info("skipped", "url", target.URL, "reason", err)
		run.aggregator.Fail(target, model.StageSkip, err.Error())
		return
	}

	doc := s.extractor.Extract(fetched)
	run.aggregator.Add(target, doc)
	if doc.Err != nil {
		s.logger.Warn("failed to extract page",
			"url", target.URL,
			"kind", doc.Kind,
			"error", doc.Err,
		)
		run.aggregator.Fail(target, model.StageExtract, doc.Err.Error())
	} else {
		s.logger.Info("processed", "url", target.URL, "depth", target.Depth)
	}

	if target.Depth >= run.policy.MaxDepth() {
		return
	}
	for _, link := range doc.OutboundLinks {
		run.frontier.Enqueue(link, target.Depth+1)
	}
}

// admit decides from the response whether a fetched body belongs in the
// corpus. The URL checks at enqueue time cannot see a PDF or a binary
// file served under an extension-less path.
func (s *Spider) admit(run *crawlRun, fetched model.FetchResult) error {
	kind, err := Classify(fetched)
	if err != nil {
		return err
	}
	if kind == model.KindPDF && !run.policy.IncludePDFs() {
		return fmt.Errorf("%w: %s", ErrExcludedContent, fetched.MediaType())
	}
	return nil
}

// originOf returns scheme://host of rawURL, or rawURL if it cannot be parsed.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
