package policy

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid base", func(t *testing.T) {
		t.Parallel()

		p, err := New("https://example.com/docs/#top", 2, true, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := p.Base().String(); got != "https://example.com/docs/" {
			t.Errorf("Base() = %q, want fragment stripped", got)
		}
		if p.MaxDepth() != 2 || !p.IncludePDFs() || !p.IgnoreEPUBs() {
			t.Errorf("unexpected policy parameters: %+v", p)
		}
	})

	invalid := []string{
		"",
		"example.com/docs",
		"ftp://example.com/",
		"https://",
		"http://[::1",
		"mailto:someone@example.com",
	}
	for _, raw := range invalid {
		t.Run("invalid "+raw, func(t *testing.T) {
			t.Parallel()

			_, err := New(raw, 1, true, true)
			if !errors.Is(err, ErrInvalidBaseURL) {
				t.Errorf("New(%q) error = %v, want ErrInvalidBaseURL", raw, err)
			}
		})
	}

	t.Run("negative depth", func(t *testing.T) {
		t.Parallel()

		_, err := New("https://example.com/", -1, true, true)
		if !errors.Is(err, ErrNegativeDepth) {
			t.Errorf("error = %v, want ErrNegativeDepth", err)
		}
	})

	t.Run("base is copied", func(t *testing.T) {
		t.Parallel()

		p, err := New("https://example.com/docs", 1, true, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p.Base().Path = "/changed"
		if p.Base().Path != "/docs" {
			t.Error("mutating Base() result changed the policy")
		}
	})
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		base      string
		candidate string
		want      bool
	}{
		{name: "same host", base: "https://example.com/", candidate: "https://example.com/a", want: true},
		{name: "host case ignored", base: "https://example.com/", candidate: "https://EXAMPLE.com/a", want: true},
		{name: "different host", base: "https://example.com/", candidate: "https://other.com/a", want: false},
		{name: "subdomain is different", base: "https://example.com/", candidate: "https://www.example.com/", want: false},
		{name: "different scheme", base: "https://example.com/", candidate: "http://example.com/", want: false},
		{name: "different port", base: "http://example.com:8080/", candidate: "http://example.com/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SameOrigin(mustParse(t, tt.base), mustParse(t, tt.candidate))
			if got != tt.want {
				t.Errorf("SameOrigin(%q, %q) = %v, want %v", tt.base, tt.candidate, got, tt.want)
			}
		})
	}

	if SameOrigin(nil, mustParse(t, "https://example.com/")) {
		t.Error("SameOrigin with nil base should be false")
	}
}

func TestWithinDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		base      string
		candidate string
		maxDepth  int
		want      bool
	}{
		{name: "base itself", base: "https://x.test/docs", candidate: "https://x.test/docs", maxDepth: 0, want: true},
		{name: "trailing slash ignored", base: "https://x.test/docs/", candidate: "https://x.test/docs", maxDepth: 0, want: true},
		{name: "one level below", base: "https://x.test/docs", candidate: "https://x.test/docs/a", maxDepth: 1, want: true},
		{name: "too deep", base: "https://x.test/docs", candidate: "https://x.test/docs/a/b", maxDepth: 1, want: false},
		{name: "exactly max depth", base: "https://x.test/docs", candidate: "https://x.test/docs/a/b", maxDepth: 2, want: true},
		{name: "parent is out of scope", base: "https://x.test/docs/a", candidate: "https://x.test/docs", maxDepth: 5, want: false},
		{name: "sibling prefix is out of scope", base: "https://x.test/docs", candidate: "https://x.test/docs2/a", maxDepth: 5, want: false},
		{name: "root base", base: "https://x.test/", candidate: "https://x.test/a/b", maxDepth: 2, want: true},
		{name: "root base too deep", base: "https://x.test", candidate: "https://x.test/a/b/c", maxDepth: 2, want: false},
		{name: "query does not count", base: "https://x.test/docs", candidate: "https://x.test/docs/a?page=2/3", maxDepth: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := WithinDepth(mustParse(t, tt.base), mustParse(t, tt.candidate), tt.maxDepth)
			if got != tt.want {
				t.Errorf("WithinDepth(%q, %q, %d) = %v, want %v",
					tt.base, tt.candidate, tt.maxDepth, got, tt.want)
			}
		})
	}
}

func TestResourceAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		url         string
		includePDFs bool
		ignoreEPUBs bool
		want        bool
	}{
		{name: "html always allowed", url: "https://x.test/a.html", want: true},
		{name: "no extension allowed", url: "https://x.test/a", want: true},
		{name: "pdf excluded", url: "https://x.test/a.pdf", includePDFs: false, want: false},
		{name: "pdf included", url: "https://x.test/a.pdf", includePDFs: true, want: true},
		{name: "upper case pdf", url: "https://x.test/A.PDF", includePDFs: false, want: false},
		{name: "epub ignored", url: "https://x.test/b.epub", ignoreEPUBs: true, want: false},
		{name: "epub allowed", url: "https://x.test/b.epub", ignoreEPUBs: false, want: true},
		{name: "pdf in query is not a pdf", url: "https://x.test/view?file=a.pdf", includePDFs: false, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResourceAllowed(mustParse(t, tt.url), tt.includePDFs, tt.ignoreEPUBs)
			if got != tt.want {
				t.Errorf("ResourceAllowed(%q, %v, %v) = %v, want %v",
					tt.url, tt.includePDFs, tt.ignoreEPUBs, got, tt.want)
			}
		})
	}
}

func TestPolicyAllows(t *testing.T) {
	t.Parallel()

	p, err := New("https://x.test/docs/", 1, false, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		candidate string
		want      bool
	}{
		{candidate: "https://x.test/docs/", want: true},
		{candidate: "https://x.test/docs/intro", want: true},
		{candidate: "https://x.test/docs/intro/more", want: false},
		{candidate: "https://y.test/docs/intro", want: false},
		{candidate: "https://x.test/docs/manual.pdf", want: false},
		{candidate: "https://x.test/docs/book.epub", want: false},
		{candidate: "https://x.test/blog", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			t.Parallel()

			if got := p.Allows(mustParse(t, tt.candidate)); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}
