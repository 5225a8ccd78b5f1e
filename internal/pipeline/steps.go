package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/sitecorpus/internal/crawler"
	"github.com/nao1215/sitecorpus/internal/localdir"
	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/textproc"
)

// Output file names written by WriteStep.
const (
	UncompressedFile  = "uncompressed.output.txt"
	CompressedFile    = "compressed.output.txt"
	ProcessedURLsFile = "processed_urls.txt"
	SummaryFile       = "summary.md"
	ResultFile        = "crawl.json"
)

// ErrWrongSourceKind is returned when a step is run on a report of the
// other source kind.
var ErrWrongSourceKind = errors.New("step does not support this source kind")

// CrawlStep crawls the report's base URL and stores the crawl result.
type CrawlStep struct {
	fetcher    crawler.Fetcher
	spiderOpts []crawler.SpiderOption
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxDepth sets the maximum crawl depth.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithMaxDepth(depth))
	}
}

// WithCrawlIncludePDFs controls whether PDF links are fetched.
func WithCrawlIncludePDFs(include bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithIncludePDFs(include))
	}
}

// WithCrawlIgnoreEPUBs controls whether EPUB links are skipped.
func WithCrawlIgnoreEPUBs(ignore bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithIgnoreEPUBs(ignore))
	}
}

// WithCrawlWorkers sets the number of concurrent fetches.
func WithCrawlWorkers(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithWorkers(n))
	}
}

// WithCrawlPerOriginLimit caps concurrent requests to one origin.
func WithCrawlPerOriginLimit(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithPerOriginLimit(n))
	}
}

// WithCrawlDelay sets the delay between requests to one origin.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithDelay(d))
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithIgnorePatterns(patterns))
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithFollowPatterns(patterns))
	}
}

// WithCrawlOrderedOutput keeps documents in discovery order.
func WithCrawlOrderedOutput(ordered bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithOrderedOutput(ordered))
	}
}

// WithCrawlLogger sets a custom logger for the crawl step and its spider.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that retrieves pages with fetcher.
func NewCrawlStep(fetcher crawler.Fetcher, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. A cancelled crawl keeps its partial result.
func (s *CrawlStep) Do(ctx context.Context, report *model.CorpusReport) error {
	if report.Kind != model.SourceWeb {
		return fmt.Errorf("%s: %w", s.Name(), ErrWrongSourceKind)
	}

	opts := append([]crawler.SpiderOption{crawler.WithLogger(s.logger)}, s.spiderOpts...)
	spider := crawler.NewSpider(s.fetcher, opts...)

	result, err := spider.Crawl(ctx, report.Source)
	if result != nil {
		report.Result = result
		report.Text = result.Text
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"source", report.Source,
		"documents", len(result.Documents),
		"failures", len(result.Failures),
	)
	return nil
}

// LocalStep walks the report's directory and stores the file corpus.
type LocalStep struct {
	walker *localdir.Walker
}

// NewLocalStep creates a local directory step.
func NewLocalStep(walker *localdir.Walker) *LocalStep {
	return &LocalStep{walker: walker}
}

// Name returns the step name.
func (s *LocalStep) Name() string {
	return "local"
}

// Do executes the local directory step.
func (s *LocalStep) Do(ctx context.Context, report *model.CorpusReport) error {
	if report.Kind != model.SourceLocal {
		return fmt.Errorf("%s: %w", s.Name(), ErrWrongSourceKind)
	}

	var sb strings.Builder
	files, err := s.walker.Walk(ctx, report.Source, &sb)
	report.Files = files
	report.Text = sb.String()
	return err
}

// CompressStep computes corpus statistics and, when enabled, the
// compressed corpus.
type CompressStep struct {
	compress bool
}

// NewCompressStep creates a compress step. With compress false only the
// statistics are computed.
func NewCompressStep(compress bool) *CompressStep {
	return &CompressStep{compress: compress}
}

// Name returns the step name.
func (s *CompressStep) Name() string {
	return "compress"
}

// Do executes the compress step.
func (s *CompressStep) Do(_ context.Context, report *model.CorpusReport) error {
	report.WordCount = textproc.WordCount(report.Text)
	report.TokenEstimate = textproc.EstimateTokens(report.Text)

	if s.compress && report.Text != "" {
		report.CompressedText = textproc.Compress(report.Text)
		report.CompressedTokenEstimate = textproc.EstimateTokens(report.CompressedText)
	}
	return nil
}

// WriteStep writes the corpus files of a report.
//
// Web corpora go to <dir>/<name> where name is model.OutputName of the
// base URL, local corpora to <dir>. The step writes
// uncompressed.output.txt, processed_urls.txt, summary.md and crawl.json,
// plus compressed.output.txt when the report carries compressed text.
type WriteStep struct {
	dir    string
	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a write step that writes below dir.
func NewWriteStep(dir string, opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// OutputDir returns the directory the files of report are written to.
func (s *WriteStep) OutputDir(report *model.CorpusReport) string {
	if name := report.OutputName(); name != "" {
		return filepath.Join(s.dir, name)
	}
	return s.dir
}

// Do executes the write step. Reports without collected content are
// skipped.
func (s *WriteStep) Do(_ context.Context, report *model.CorpusReport) error {
	if report.Result == nil && report.Files == nil {
		s.logger.Debug("nothing to write", "source", report.Source)
		return nil
	}

	dir := s.OutputDir(report)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name    string
		content func() (string, error)
	}{
		{UncompressedFile, func() (string, error) { return report.Text, nil }},
		{ProcessedURLsFile, func() (string, error) { return processedList(report), nil }},
		{CompressedFile, func() (string, error) { return report.CompressedText, nil }},
		{SummaryFile, func() (string, error) { return renderSummary(report) }},
		{ResultFile, func() (string, error) { return renderJSON(report) }},
	}

	for _, f := range files {
		if f.name == CompressedFile && report.CompressedText == "" {
			continue
		}
		content, err := f.content()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", f.name, err)
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		report.OutputFiles = append(report.OutputFiles, path)
	}

	s.logger.Info("corpus written", "dir", dir, "files", len(report.OutputFiles))
	return nil
}
