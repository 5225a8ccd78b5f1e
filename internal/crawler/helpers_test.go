package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/nao1215/sitecorpus/internal/model"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePage is one resource served by fakeSite.
type fakePage struct {
	contentType string
	body        string
	failReason  string
}

// fakeSite is an in-memory Fetcher that records every call.
type fakeSite struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls map[string]int
	order []string

	// onFetch, when set, runs before each fetch is answered.
	onFetch func(url string)
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages: make(map[string]fakePage),
		calls: make(map[string]int),
	}
}

// html registers an HTML page with the given text and links.
func (f *fakeSite) html(url, text string, links ...string) *fakeSite {
	var b strings.Builder
	b.WriteString("<html><head><title>ignored</title></head><body><p>")
	b.WriteString(text)
	b.WriteString("</p>")
	for _, link := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, link)
	}
	b.WriteString("</body></html>")
	f.pages[url] = fakePage{contentType: "text/html; charset=utf-8", body: b.String()}
	return f
}

// raw registers an arbitrary body.
func (f *fakeSite) raw(url, contentType, body string) *fakeSite {
	f.pages[url] = fakePage{contentType: contentType, body: body}
	return f
}

// fail registers a URL that always fails to fetch.
func (f *fakeSite) fail(url, reason string) *fakeSite {
	f.pages[url] = fakePage{failReason: reason}
	return f
}

func (f *fakeSite) Fetch(_ context.Context, url string) model.FetchResult {
	if f.onFetch != nil {
		f.onFetch(url)
	}

	f.mu.Lock()
	f.calls[url]++
	f.order = append(f.order, url)
	page, ok := f.pages[url]
	f.mu.Unlock()

	if !ok {
		return model.FetchResult{URL: url, Status: model.FetchFailed, Reason: "unexpected status 404", StatusCode: 404}
	}
	if page.failReason != "" {
		return model.FetchResult{URL: url, Status: model.FetchFailed, Reason: page.failReason}
	}
	return model.FetchResult{
		URL:         url,
		Status:      model.FetchOK,
		StatusCode:  200,
		ContentType: page.contentType,
		Body:        []byte(page.body),
	}
}

func (f *fakeSite) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeSite) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}
