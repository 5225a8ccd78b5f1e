package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"

	"github.com/nao1215/sitecorpus/internal/model"
)

// Request header values sent with every fetch.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7"
	acceptLanguageHeader = "en-US,en;q=0.8"
	acceptEncodingHeader = "gzip, deflate, br"
)

// DefaultMaxBodySize is the response body limit used when none is configured.
const DefaultMaxBodySize int64 = 20 * 1024 * 1024

// Fetcher retrieves one URL. Implementations never return a Go error:
// every failure is reported as a FetchResult with Status FetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) model.FetchResult
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) model.FetchResult

// Fetch calls f(ctx, rawURL).
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	return f(ctx, rawURL)
}

// HTTPFetcher fetches URLs over HTTP with a fixed header set.
// It holds no per-crawl state, so one instance may serve many workers.
type HTTPFetcher struct {
	client        *http.Client
	userAgent     string
	maxBodySize   int64
	retries       uint64
	retryInterval time.Duration
	logger        *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the response body limit in bytes.
// Bodies larger than this are reported as failures.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRetries enables up to n retries for transport errors and 5xx
// responses, spaced by exponential backoff. The default is no retries.
func WithRetries(n uint64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.retries = n
	}
}

// WithRetryInterval sets the initial backoff interval between retries.
func WithRetryInterval(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.retryInterval = d
		}
	}
}

// WithFetcherLogger sets the logger used for retry messages.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a fetcher that uses client for all requests.
// A nil client is replaced by one built with default TransportOptions.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client, _ = NewHTTPClient(TransportOptions{Timeout: 30 * time.Second}) //nolint:errcheck // no proxy, cannot fail
	}

	f := &HTTPFetcher{
		client:        client,
		userAgent:     DefaultUserAgent,
		maxBodySize:   DefaultMaxBodySize,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// statusError reports a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// retryable reports whether a failed attempt is worth repeating.
func (e *statusError) retryable() bool {
	return e.code >= http.StatusInternalServerError || e.code == http.StatusTooManyRequests
}

// Fetch performs a GET request for rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	var result model.FetchResult

	op := func() error {
		r, err := f.fetchOnce(ctx, rawURL)
		result = r
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrCrossOriginRedirect) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if f.retries == 0 {
		err = op()
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = f.retryInterval
		b.MaxElapsedTime = 0
		bo := backoff.WithContext(backoff.WithMaxRetries(b, f.retries), ctx)

		err = backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
			f.logger.Debug("retrying fetch",
				"url", rawURL,
				"error", err,
				"wait", wait,
			)
		})
	}

	if err != nil {
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		result.URL = rawURL
		result.Status = model.FetchFailed
		result.Reason = err.Error()
		result.Body = nil
		return result
	}

	result.URL = rawURL
	result.Status = model.FetchOK
	return result
}

// fetchOnce performs exactly one request.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (model.FetchResult, error) {
	result := model.FetchResult{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)
	req.Header.Set("Accept-Encoding", acceptEncodingHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != rawURL {
			result.FinalURL = final
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return result, &statusError{code: resp.StatusCode}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return result, err
	}
	result.Body = body
	return result, nil
}

// readBody decodes the response body according to Content-Encoding and
// enforces the size limit on the decoded bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}
	return body, nil
}
