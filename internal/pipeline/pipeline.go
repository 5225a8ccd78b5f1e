package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitecorpus/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; per-page problems
	// are recorded in the report and do not produce an error.
	Do(ctx context.Context, report *model.CorpusReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Regular steps run in order and stop at cancellation or, unless
// continueOnError is set, at the first error. Final steps run afterwards
// in every case, with cancellation detached from ctx, so that whatever
// was collected before an interruption still reaches the output directory.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps always run after steps.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The error of the failed step is recorded in the
// report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalSteps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalSteps appends steps that run after all regular steps, even when
// one of them failed or ctx was cancelled.
func (p *Pipeline) AddFinalSteps(steps ...Step) {
	p.finalSteps = append(p.finalSteps, steps...)
}

// Execute runs all pipeline steps and then the final steps.
//
// It returns the error that stopped the regular steps (ctx.Err() when
// cancelled). A final step error is returned only if nothing failed before.
func (p *Pipeline) Execute(ctx context.Context, report *model.CorpusReport) error {
	runErr := p.run(ctx, report)

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if err := p.runStep(finalCtx, step, report); err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

func (p *Pipeline) run(ctx context.Context, report *model.CorpusReport) error {
	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			return ctx.Err()
		default:
		}

		if err := p.runStep(ctx, step, report); err != nil {
			if ctx.Err() != nil {
				report.TimedOut = true
				return err
			}
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runStep executes one step and records its outcome on the report.
func (p *Pipeline) runStep(ctx context.Context, step Step, report *model.CorpusReport) error {
	p.logger.Info("executing step",
		"step", step.Name(),
		"source", report.Source,
	)

	err := step.Do(ctx, report)
	report.PerformedSteps = append(report.PerformedSteps, step.Name())
	if err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"source", report.Source,
			"error", err,
		)
		if report.Error == nil {
			report.SetError(err)
		}
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"source", report.Source,
	)
	return nil
}

// StepCount returns the number of steps in the pipeline, final steps
// included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
