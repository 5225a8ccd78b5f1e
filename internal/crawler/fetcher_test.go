package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/sitecorpus/internal/model"
)

func newTestFetcher(t *testing.T, opts ...FetcherOption) *HTTPFetcher {
	t.Helper()
	client, err := NewHTTPClient(TransportOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	opts = append([]FetcherOption{WithFetcherLogger(discardLogger())}, opts...)
	return NewHTTPFetcher(client, opts...)
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends identifying headers", func(t *testing.T) {
		t.Parallel()

		var header atomic.Pointer[http.Header]
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Clone()
			header.Store(&h)
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>ok</p>"))
		}))
		defer server.Close()

		result := newTestFetcher(t).Fetch(context.Background(), server.URL)
		if !result.OK() {
			t.Fatalf("expected success, got %q", result.Reason)
		}
		got := *header.Load()
		if string(result.Body) != "<p>ok</p>" {
			t.Errorf("got body %q", result.Body)
		}
		if result.ContentType != "text/html" {
			t.Errorf("got content type %q", result.ContentType)
		}
		if got.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("got User-Agent %q", got.Get("User-Agent"))
		}
		for _, h := range []string{"Accept", "Accept-Language"} {
			if got.Get(h) == "" {
				t.Errorf("expected %s header to be set", h)
			}
		}
		if got.Get("Accept-Encoding") != "gzip, deflate, br" {
			t.Errorf("got Accept-Encoding %q", got.Get("Accept-Encoding"))
		}
	})

	t.Run("custom user agent", func(t *testing.T) {
		t.Parallel()

		var ua atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua.Store(r.UserAgent())
		}))
		defer server.Close()

		newTestFetcher(t, WithUserAgent("corpus-bot/1.0")).Fetch(context.Background(), server.URL)
		if got, _ := ua.Load().(string); got != "corpus-bot/1.0" {
			t.Errorf("got User-Agent %q", got)
		}
	})

	t.Run("non-2xx is a failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		result := newTestFetcher(t).Fetch(context.Background(), server.URL)
		if result.Status != model.FetchFailed {
			t.Fatal("expected failure for 404")
		}
		if result.Reason != "unexpected status 404" {
			t.Errorf("got reason %q", result.Reason)
		}
		if result.StatusCode != http.StatusNotFound {
			t.Errorf("got status code %d", result.StatusCode)
		}
	})

	t.Run("transport error is a failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		result := newTestFetcher(t).Fetch(context.Background(), addr)
		if result.OK() {
			t.Fatal("expected failure for closed server")
		}
		if result.Reason == "" {
			t.Error("expected a failure reason")
		}
	})

	t.Run("body over limit is a failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
		}))
		defer server.Close()

		result := newTestFetcher(t, WithMaxBodySize(1024)).Fetch(context.Background(), server.URL)
		if result.OK() {
			t.Fatal("expected failure for oversized body")
		}
		if !strings.Contains(result.Reason, "exceeds size limit") {
			t.Errorf("got reason %q", result.Reason)
		}
	})

	t.Run("body at limit is accepted", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), 1024))
		}))
		defer server.Close()

		result := newTestFetcher(t, WithMaxBodySize(1024)).Fetch(context.Background(), server.URL)
		if !result.OK() {
			t.Fatalf("expected success, got %q", result.Reason)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("late"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := newTestFetcher(t, WithRetries(3)).Fetch(ctx, server.URL)
		if result.OK() {
			t.Fatal("expected failure for cancelled context")
		}
	})
}

func TestHTTPFetcherDecodesContentEncoding(t *testing.T) {
	t.Parallel()

	const page = "<html><body><p>compressed page</p></body></html>"

	encoders := map[string]func(*bytes.Buffer){
		"gzip": func(b *bytes.Buffer) {
			w := gzip.NewWriter(b)
			_, _ = w.Write([]byte(page))
			_ = w.Close()
		},
		"deflate": func(b *bytes.Buffer) {
			w, _ := flate.NewWriter(b, flate.DefaultCompression)
			_, _ = w.Write([]byte(page))
			_ = w.Close()
		},
		"br": func(b *bytes.Buffer) {
			w := brotli.NewWriter(b)
			_, _ = w.Write([]byte(page))
			_ = w.Close()
		},
	}

	for encoding, encode := range encoders {
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()

			var compressed bytes.Buffer
			encode(&compressed)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write(compressed.Bytes())
			}))
			defer server.Close()

			result := newTestFetcher(t).Fetch(context.Background(), server.URL)
			if !result.OK() {
				t.Fatalf("expected success, got %q", result.Reason)
			}
			if string(result.Body) != page {
				t.Errorf("got body %q, expected decoded page", result.Body)
			}
		})
	}
}

func TestHTTPFetcherRetries(t *testing.T) {
	t.Parallel()

	t.Run("retries server errors until success", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := newTestFetcher(t, WithRetries(3), WithRetryInterval(time.Millisecond))
		result := f.Fetch(context.Background(), server.URL)
		if !result.OK() {
			t.Fatalf("expected success after retries, got %q", result.Reason)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		f := newTestFetcher(t, WithRetries(2), WithRetryInterval(time.Millisecond))
		result := f.Fetch(context.Background(), server.URL)
		if result.OK() {
			t.Fatal("expected failure")
		}
		if result.Reason != "unexpected status 502" {
			t.Errorf("got reason %q", result.Reason)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("expected 1 attempt plus 2 retries, got %d", got)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		f := newTestFetcher(t, WithRetries(5), WithRetryInterval(time.Millisecond))
		result := f.Fetch(context.Background(), server.URL)
		if result.Reason != "unexpected status 403" {
			t.Errorf("got reason %q", result.Reason)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})

	t.Run("no retries by default", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		newTestFetcher(t).Fetch(context.Background(), server.URL)
		if got := calls.Load(); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})
}

func TestHTTPFetcherRedirects(t *testing.T) {
	t.Parallel()

	t.Run("same origin redirect records final url", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/docs" {
				http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>docs</p>"))
		}))
		defer server.Close()

		result := newTestFetcher(t).Fetch(context.Background(), server.URL+"/docs")
		if !result.OK() {
			t.Fatalf("expected success, got %q", result.Reason)
		}
		if result.URL != server.URL+"/docs" {
			t.Errorf("URL = %q, want the requested url", result.URL)
		}
		if result.FinalURL != server.URL+"/docs/" {
			t.Errorf("FinalURL = %q, want %q", result.FinalURL, server.URL+"/docs/")
		}
	})

	t.Run("no redirect leaves final url empty", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		result := newTestFetcher(t).Fetch(context.Background(), server.URL+"/")
		if result.FinalURL != "" {
			t.Errorf("FinalURL = %q, want empty", result.FinalURL)
		}
	})

	t.Run("cross origin redirect fails without retries", func(t *testing.T) {
		t.Parallel()

		var offOrigin atomic.Int32
		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			offOrigin.Add(1)
			_, _ = w.Write([]byte("OFF-ORIGIN CONTENT"))
		}))
		defer other.Close()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Redirect(w, r, other.URL+"/landing", http.StatusFound)
		}))
		defer server.Close()

		f := newTestFetcher(t, WithRetries(3), WithRetryInterval(time.Millisecond))
		result := f.Fetch(context.Background(), server.URL+"/go")
		if result.OK() {
			t.Fatal("expected failure for cross origin redirect")
		}
		if !strings.Contains(result.Reason, ErrCrossOriginRedirect.Error()) {
			t.Errorf("got reason %q", result.Reason)
		}
		if offOrigin.Load() != 0 {
			t.Error("the other origin was requested")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})
}

func TestSpiderOverHTTPRedirects(t *testing.T) {
	t.Parallel()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<p>OFF-ORIGIN CONTENT</p><a href="/deeper">x</a>`))
	}))
	defer other.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs":
			http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
			return
		case "/docs/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<p>index</p><a href="intro">intro</a><a href="/docs/away">away</a>`))
		case "/docs/intro":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<p>introduction</p>`))
		case "/docs/away":
			http.Redirect(w, r, other.URL+"/", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	spider := NewSpider(newTestFetcher(t), WithMaxDepth(2), WithLogger(discardLogger()))
	result, err := spider.Crawl(context.Background(), server.URL+"/docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{server.URL + "/docs", server.URL + "/docs/intro"}
	if len(result.ProcessedURLs) != len(want) || result.ProcessedURLs[0] != want[0] || result.ProcessedURLs[1] != want[1] {
		t.Errorf("ProcessedURLs = %v, want %v", result.ProcessedURLs, want)
	}
	if strings.Contains(result.Text, "OFF-ORIGIN") {
		t.Errorf("content of another origin stored:\n%s", result.Text)
	}
	if len(result.Failures) != 1 || result.Failures[0].URL != server.URL+"/docs/away" || result.Failures[0].Stage != model.StageFetch {
		t.Errorf("unexpected failures %+v", result.Failures)
	}
}
