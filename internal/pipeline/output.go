package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/sitecorpus/internal/database"
	"github.com/nao1215/sitecorpus/internal/model"
	"github.com/nao1215/sitecorpus/internal/report"
)

// summaryMaxRows limits the document table of summary.md.
const summaryMaxRows = 500

// processedList returns the processed URLs or files, one per line.
func processedList(cr *model.CorpusReport) string {
	if cr.Result != nil {
		return cr.Result.URLList()
	}
	return strings.Join(cr.Files, "\n")
}

func renderSummary(cr *model.CorpusReport) (string, error) {
	var sb strings.Builder
	if _, err := report.NewMarkdownWriter(&sb, report.WithMaxRows(summaryMaxRows)).Write(cr); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderJSON(cr *model.CorpusReport) (string, error) {
	var sb strings.Builder
	if _, err := report.NewJSONWriter(&sb, report.WithPrettyPrint()).Write(cr); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// PersistStep saves finished crawls to the history database.
// Interrupted crawls are not saved, since comparing a partial crawl with
// a full one would report pages as removed.
type PersistStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a persist step writing to db.
func NewPersistStep(db *database.CrawlDB, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, cr *model.CorpusReport) error {
	if cr.Result == nil || cr.TimedOut {
		s.logger.Debug("skipping persist", "source", cr.Source, "timed_out", cr.TimedOut)
		return nil
	}

	id, err := s.db.SaveCrawl(ctx, cr.Result)
	if err != nil {
		return fmt.Errorf("failed to save crawl: %w", err)
	}
	cr.CrawlID = id

	s.logger.Info("crawl saved", "source", cr.Source, "crawl_id", id)
	return nil
}
