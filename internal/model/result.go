package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FailureStage names the step at which a target was given up on.
type FailureStage string

const (
	// StageFetch means the network retrieval failed.
	StageFetch FailureStage = "fetch"
	// StageExtract means the body was fetched but could not be decoded.
	StageExtract FailureStage = "extract"
	// StageSkip means the body was fetched but is of a type the corpus
	// does not take, such as an image or an archive.
	StageSkip FailureStage = "skip"
)

// Document is one page or file in the final corpus.
type Document struct {
	// Seq is the discovery sequence number of the target this document
	// came from.
	Seq uint64 `json:"seq"`

	// URL is the canonical URL of the document.
	URL string `json:"url"`

	// Depth is the discovery depth of the document.
	Depth int `json:"depth"`

	// Kind is html or pdf.
	Kind DocumentKind `json:"kind"`

	// Text is the extracted plain text.
	Text string `json:"text"`
}

// Failure records a target that could not be fetched or extracted.
// Failures are data: the crawl keeps going after recording one.
type Failure struct {
	Seq    uint64       `json:"seq"`
	URL    string       `json:"url"`
	Depth  int          `json:"depth"`
	Stage  FailureStage `json:"stage"`
	Reason string       `json:"reason"`
}

// CrawlResult is the ordered document set produced by one crawl.
// It should be treated as immutable once Crawl returns.
type CrawlResult struct {
	// ID identifies this crawl session.
	ID string `json:"id"`

	// BaseURL is the URL the crawl started from.
	BaseURL string `json:"base_url"`

	// MaxDepth is the link depth limit the crawl ran with.
	MaxDepth int `json:"max_depth"`

	// ProcessedURLs lists the URL of every appended document, in the
	// same order as Documents.
	ProcessedURLs []string `json:"processed_urls"`

	// Documents holds the extracted documents.
	Documents []Document `json:"documents"`

	// Failures lists targets that were skipped after a fetch or extract
	// error.
	Failures []Failure `json:"failures,omitempty"`

	// Text is the rendered corpus: header followed by one block per
	// document.
	Text string `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SortBySeq reorders Documents and ProcessedURLs by discovery sequence.
// With a single worker documents already arrive in this order; with
// several workers completion order differs and this restores the
// breadth-first order. Text is re-rendered afterwards.
func (r *CrawlResult) SortBySeq() {
	sort.SliceStable(r.Documents, func(i, j int) bool {
		return r.Documents[i].Seq < r.Documents[j].Seq
	})
	sort.SliceStable(r.Failures, func(i, j int) bool {
		return r.Failures[i].Seq < r.Failures[j].Seq
	})

	r.ProcessedURLs = r.ProcessedURLs[:0]
	for _, doc := range r.Documents {
		r.ProcessedURLs = append(r.ProcessedURLs, doc.URL)
	}
	r.Text = RenderCorpus(r.BaseURL, r.MaxDepth, r.Documents)
}

// URLList returns the processed URLs, one per line.
func (r *CrawlResult) URLList() string {
	var b strings.Builder
	for _, u := range r.ProcessedURLs {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return b.String()
}

// Duration returns how long the crawl took.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TextLength returns the total number of bytes of extracted text.
func (r *CrawlResult) TextLength() int {
	n := 0
	for _, doc := range r.Documents {
		n += len(doc.Text)
	}
	return n
}

// CorpusHeader returns the preamble written before the document blocks.
// The format is consumed by downstream tooling and must stay stable.
func CorpusHeader(baseURL string, maxDepth int, urls []string) string {
	var b strings.Builder
	b.WriteString("Generated text from the website: ")
	b.WriteString(baseURL)
	b.WriteString(". This includes content from the base page and all linked pages up to ")
	b.WriteString(strconv.Itoa(maxDepth))
	b.WriteString(" levels deep.\nProcessed URLs:\n")
	b.WriteString(strings.Join(urls, "\n"))
	b.WriteString("\n\n")
	return b.String()
}

// DocumentBlock returns the block written for one document.
func DocumentBlock(url, text string) string {
	return "\n\n# URL: " + url + "\n" + text
}

// RenderCorpus renders the header followed by every document block in
// slice order.
func RenderCorpus(baseURL string, maxDepth int, docs []Document) string {
	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		urls = append(urls, doc.URL)
	}

	var b strings.Builder
	b.WriteString(CorpusHeader(baseURL, maxDepth, urls))
	for _, doc := range docs {
		b.WriteString(DocumentBlock(doc.URL, doc.Text))
	}
	return b.String()
}
