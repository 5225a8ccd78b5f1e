package crawler

import "errors"

var (
	// ErrInvalidProxyAddress is returned when a SOCKS5 proxy address is not
	// in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// configured size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrUnsupportedContent is returned for bodies no extractor can read.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrExcludedContent is returned for PDF bodies served without a .pdf
	// path when PDFs are excluded from the crawl.
	ErrExcludedContent = errors.New("content type excluded by crawl policy")

	// ErrCrossOriginRedirect is returned when a request is redirected to
	// another origin.
	ErrCrossOriginRedirect = errors.New("redirect to another origin")

	// ErrNilFetcher is returned by Crawl when the spider has no fetcher.
	ErrNilFetcher = errors.New("spider has no fetcher")

	// ErrCrawlInProgress is returned by Crawl when the spider is already
	// running a crawl.
	ErrCrawlInProgress = errors.New("crawl already in progress")
)
