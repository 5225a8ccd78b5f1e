package crawler

import (
	"sync"
	"time"

	"github.com/nao1215/sitecorpus/internal/model"
)

// Aggregator collects documents and failures as targets complete.
// It is safe for concurrent use; documents are kept in the order Add was
// called, each tagged with its target's discovery sequence number.
type Aggregator struct {
	baseURL  string
	maxDepth int

	mu       sync.Mutex
	docs     []model.Document
	failures []model.Failure
}

// NewAggregator creates an Aggregator for a crawl of baseURL.
func NewAggregator(baseURL string, maxDepth int) *Aggregator {
	return &Aggregator{
		baseURL:  baseURL,
		maxDepth: maxDepth,
		docs:     make([]model.Document, 0),
		failures: make([]model.Failure, 0),
	}
}

// Add appends the document extracted from target.
func (a *Aggregator) Add(target model.CrawlTarget, doc model.ExtractedDocument) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs = append(a.docs, model.Document{
		Seq:   target.Seq,
		URL:   target.URL,
		Depth: target.Depth,
		Kind:  doc.Kind,
		Text:  doc.Text,
	})
}

// Fail records that target was skipped at stage.
func (a *Aggregator) Fail(target model.CrawlTarget, stage model.FailureStage, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, model.Failure{
		Seq:    target.Seq,
		URL:    target.URL,
		Depth:  target.Depth,
		Stage:  stage,
		Reason: reason,
	})
}

// Len returns the number of documents collected so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

// Result builds the CrawlResult from what has been collected.
// The returned value does not share slices with the Aggregator.
func (a *Aggregator) Result(startedAt, finishedAt time.Time) *model.CrawlResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	docs := make([]model.Document, len(a.docs))
	copy(docs, a.docs)
	failures := make([]model.Failure, len(a.failures))
	copy(failures, a.failures)

	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		urls = append(urls, doc.URL)
	}

	return &model.CrawlResult{
		BaseURL:       a.baseURL,
		MaxDepth:      a.maxDepth,
		ProcessedURLs: urls,
		Documents:     docs,
		Failures:      failures,
		Text:          model.RenderCorpus(a.baseURL, a.maxDepth, docs),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}
}
