package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecorpus/internal/model"
)

// DefaultConcurrency is the number of targets processed at once when
// WithConcurrency is not given.
const DefaultConcurrency = 4

// BatchProcessor runs one pipeline per base URL, several at a time.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each target, which lets
	// per-host settings differ between targets.
	pipelineFactory func(target string) *Pipeline

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline for every target and returns one report
// per target, in the order of targets.
//
// A failed run does not stop the others; its error is recorded in its
// report. Targets not yet started when ctx is cancelled get a report
// marked as timed out. The returned error is ctx.Err() in that case.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.CorpusReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*model.CorpusReport, len(targets))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			report := model.NewCorpusReport(target)
			results[i] = report

			if err := ctx.Err(); err != nil {
				report.TimedOut = true
				report.SetError(err)
				return nil
			}

			bp.logger.Info("processing target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			if err := bp.pipelineFactory(target).Execute(ctx, report); err != nil {
				bp.logger.Warn("target failed",
					"target", target,
					"error", err,
				)
				return nil
			}

			bp.logger.Info("target completed",
				"target", target,
				"documents", report.DocumentCount(),
			)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines record errors in their reports

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return results, ctx.Err()
}
