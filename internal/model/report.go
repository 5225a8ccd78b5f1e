package model

import (
	"net/url"
	"strings"
	"time"
)

// SourceKind tells which collector produced a corpus.
type SourceKind string

const (
	// SourceWeb is a corpus built by crawling a website.
	SourceWeb SourceKind = "web"
	// SourceLocal is a corpus built by walking a local directory.
	SourceLocal SourceKind = "local"
)

// CorpusReport is the accumulated state of one pipeline run.
// Each pipeline step reads what earlier steps produced and adds its own part.
// Fields of steps that did not run keep their zero value.
type CorpusReport struct {
	// === Basic Information ===

	// Source is the base URL or the directory path the corpus was built from.
	Source string `json:"source"`

	// Kind is web or local.
	Kind SourceKind `json:"kind"`

	// DateStarted is when the pipeline run began.
	DateStarted time.Time `json:"date_started"`

	// === Collected Content ===

	// Result holds the crawl result for web sources.
	Result *CrawlResult `json:"result,omitempty"`

	// Files lists the processed file paths for local sources.
	Files []string `json:"files,omitempty"`

	// Text is the uncompressed corpus.
	Text string `json:"-"`

	// CompressedText is the stopword-free, lower-cased corpus.
	// Empty when compression was not requested.
	CompressedText string `json:"-"`

	// === Statistics ===

	// WordCount is the number of whitespace separated words in Text.
	WordCount int `json:"word_count"`

	// TokenEstimate approximates the token count of Text.
	TokenEstimate int `json:"token_estimate"`

	// CompressedTokenEstimate approximates the token count of CompressedText.
	CompressedTokenEstimate int `json:"compressed_token_estimate,omitempty"`

	// === Run State ===

	// CrawlID is the database row ID once the crawl has been persisted.
	CrawlID int64 `json:"crawl_id,omitempty"`

	// OutputFiles lists files written by the write step.
	OutputFiles []string `json:"output_files,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the run was cut short by cancellation.
	TimedOut bool `json:"timed_out"`

	// Error contains the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewCorpusReport creates a report for a web source.
func NewCorpusReport(baseURL string) *CorpusReport {
	return &CorpusReport{
		Source:      baseURL,
		Kind:        SourceWeb,
		DateStarted: time.Now(),
	}
}

// NewLocalCorpusReport creates a report for a local directory.
func NewLocalCorpusReport(dir string) *CorpusReport {
	return &CorpusReport{
		Source:      dir,
		Kind:        SourceLocal,
		DateStarted: time.Now(),
	}
}

// Host returns the host part of a web source, or "" for local sources
// and unparseable URLs.
func (r *CorpusReport) Host() string {
	if r.Kind != SourceWeb {
		return ""
	}
	u, err := url.Parse(r.Source)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// OutputName returns the directory name the corpus of a web source is
// written to, or "" for local sources. See OutputName.
func (r *CorpusReport) OutputName() string {
	if r.Kind != SourceWeb {
		return ""
	}
	return OutputName(r.Source)
}

// OutputName derives a directory name from a base URL: the lower-cased
// host name, the port when one is given, and the path segments, joined
// with "_". "https://x.com:8080/docs/guide/" becomes "x.com_8080_docs_guide".
// Characters other than letters, digits, '.', and '-' in the path become
// '_'. It returns "" when rawURL has no host.
func OutputName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}

	parts := []string{strings.ToLower(u.Hostname())}
	if port := u.Port(); port != "" {
		parts = append(parts, port)
	}
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg = sanitizeSegment(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "_")
}

func sanitizeSegment(seg string) string {
	return strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, seg), "_.")
}

// DocumentCount returns the number of documents or files in the corpus.
func (r *CorpusReport) DocumentCount() int {
	if r.Result != nil {
		return len(r.Result.Documents)
	}
	return len(r.Files)
}

// FailureCount returns the number of crawl targets that were skipped.
func (r *CorpusReport) FailureCount() int {
	if r.Result == nil {
		return 0
	}
	return len(r.Result.Failures)
}

// SetError records err on the report.
func (r *CorpusReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
