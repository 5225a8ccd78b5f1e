package model

import (
	"errors"
	"testing"
	"time"
)

// TestNewCorpusReport tests the CorpusReport constructors.
func TestNewCorpusReport(t *testing.T) {
	t.Parallel()

	t.Run("web source", func(t *testing.T) {
		t.Parallel()

		report := NewCorpusReport("https://example.com/docs/")
		if report.Kind != SourceWeb {
			t.Errorf("got kind %q, expected %q", report.Kind, SourceWeb)
		}
		if report.Host() != "example.com" {
			t.Errorf("got host %q, expected example.com", report.Host())
		}
		if time.Since(report.DateStarted) > time.Second {
			t.Error("DateStarted is too old")
		}
	})

	t.Run("local source has no host", func(t *testing.T) {
		t.Parallel()

		report := NewLocalCorpusReport("/src/project")
		if report.Kind != SourceLocal {
			t.Errorf("got kind %q, expected %q", report.Kind, SourceLocal)
		}
		if report.Host() != "" {
			t.Errorf("expected empty host, got %q", report.Host())
		}
	})
}

func TestCorpusReportCounts(t *testing.T) {
	t.Parallel()

	t.Run("web counts come from the crawl result", func(t *testing.T) {
		t.Parallel()

		report := NewCorpusReport("https://example.com/")
		report.Result = &CrawlResult{
			Documents: []Document{{URL: "a"}, {URL: "b"}},
			Failures:  []Failure{{URL: "c", Stage: StageFetch}},
		}
		if got := report.DocumentCount(); got != 2 {
			t.Errorf("DocumentCount() = %d, want 2", got)
		}
		if got := report.FailureCount(); got != 1 {
			t.Errorf("FailureCount() = %d, want 1", got)
		}
	})

	t.Run("local counts come from files", func(t *testing.T) {
		t.Parallel()

		report := NewLocalCorpusReport("/src")
		report.Files = []string{"a.go", "b.md", "c.txt"}
		if got := report.DocumentCount(); got != 3 {
			t.Errorf("DocumentCount() = %d, want 3", got)
		}
		if got := report.FailureCount(); got != 0 {
			t.Errorf("FailureCount() = %d, want 0", got)
		}
	})
}

func TestCorpusReportSetError(t *testing.T) {
	t.Parallel()

	report := NewCorpusReport("https://example.com/")
	errBoom := errors.New("boom")
	report.SetError(errBoom)

	if !errors.Is(report.Error, errBoom) {
		t.Errorf("expected Error to be errBoom, got %v", report.Error)
	}
	if report.ErrorMessage != "boom" {
		t.Errorf("got ErrorMessage %q, expected boom", report.ErrorMessage)
	}
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "root", in: "https://example.com/", want: "example.com"},
		{name: "no path", in: "https://Example.COM", want: "example.com"},
		{name: "base path", in: "https://x.com/docs/", want: "x.com_docs"},
		{name: "trailing slash ignored", in: "https://x.com/docs", want: "x.com_docs"},
		{name: "nested path", in: "https://x.com/docs/guide/", want: "x.com_docs_guide"},
		{name: "port", in: "http://127.0.0.1:8080/", want: "127.0.0.1_8080"},
		{name: "port and path", in: "https://x.com:8443/blog", want: "x.com_8443_blog"},
		{name: "odd characters", in: "https://x.com/a%20b/c+d/", want: "x.com_a_b_c_d"},
		{name: "dot segments dropped", in: "https://x.com/../", want: "x.com"},
		{name: "query ignored", in: "https://x.com/docs?page=2", want: "x.com_docs"},
		{name: "no host", in: "/relative/path", want: ""},
		{name: "unparseable", in: "http://[::1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := OutputName(tt.in); got != tt.want {
				t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorpusReportOutputName(t *testing.T) {
	t.Parallel()

	docs := NewCorpusReport("https://x.com/docs/")
	blog := NewCorpusReport("https://x.com/blog/")
	if docs.OutputName() == blog.OutputName() {
		t.Errorf("two base paths on one host share output name %q", docs.OutputName())
	}
	if got := NewLocalCorpusReport("/src/project").OutputName(); got != "" {
		t.Errorf("local report OutputName() = %q, want empty", got)
	}
}
