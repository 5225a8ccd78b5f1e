package model

import (
	"mime"
	"strings"
)

// CrawlTarget is a URL waiting to be processed by the crawl loop.
type CrawlTarget struct {
	// URL is the canonical URL (fragment removed).
	URL string `json:"url"`

	// Depth is the number of link hops from the base URL at which this
	// URL was first discovered. The base URL has depth 0.
	Depth int `json:"depth"`

	// Seq is the discovery sequence number assigned when the target was
	// enqueued. Sequence numbers start at 1 and increase monotonically,
	// so sorting by Seq restores breadth-first discovery order.
	Seq uint64 `json:"seq"`
}

// FetchStatus reports whether a fetch succeeded.
type FetchStatus int

const (
	// FetchOK means a 2xx response body was read completely.
	FetchOK FetchStatus = iota
	// FetchFailed means the request could not be completed; see Reason.
	FetchFailed
)

// String returns the status name.
func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of retrieving one URL.
// It is created by a fetcher, consumed once by an extractor, then dropped.
type FetchResult struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL the body was served from after redirects.
	// Empty when it equals URL or is unknown.
	FinalURL string

	// Status is FetchOK or FetchFailed.
	Status FetchStatus

	// Reason describes the failure when Status is FetchFailed.
	Reason string

	// StatusCode is the HTTP status code, or 0 when no response arrived.
	StatusCode int

	// ContentType is the raw Content-Type header value.
	ContentType string

	// Body is the decoded response body.
	Body []byte
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Status == FetchOK
}

// PageURL returns the URL relative links in the body resolve against.
func (r FetchResult) PageURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.URL
}

// MediaType returns the lower-cased media type of ContentType without
// parameters, e.g. "text/html" for "text/html; charset=utf-8".
func (r FetchResult) MediaType() string {
	if r.ContentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		// Fall back to the part before the first parameter.
		mediaType, _, _ = strings.Cut(r.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// DocumentKind identifies which extractor variant produced a document.
type DocumentKind string

const (
	// KindHTML is a document extracted from an HTML page.
	KindHTML DocumentKind = "html"
	// KindPDF is a document extracted from a PDF file.
	KindPDF DocumentKind = "pdf"
)

// ExtractedDocument holds the plain text and outbound links of one body.
type ExtractedDocument struct {
	// URL is the URL the body was fetched from.
	URL string

	// Kind is the extractor variant that produced this document.
	Kind DocumentKind

	// Text is the extracted plain text. Empty when extraction failed.
	Text string

	// OutboundLinks are absolute, fragment-free link URLs in document
	// order. Always empty for PDF documents.
	OutboundLinks []string

	// Err is set when the body could not be decoded. The crawl records it
	// and keeps going.
	Err error
}
