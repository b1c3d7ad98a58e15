package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/appscout/internal/model"
)

// DefaultBatchConcurrency is the number of applications explored at once
// when no concurrency is set.
const DefaultBatchConcurrency = 2

// Factory builds the pipeline for one application.
type Factory func(appName string) (*Pipeline, error)

// BatchProcessor explores several applications concurrently.
// Each application gets its own pipeline, browser and run.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline, so that Pipeline stays focused on one run.
type BatchProcessor struct {
	// factory creates a new pipeline for each application.
	factory Factory

	// mode is the run mode of every run in the batch.
	mode model.RunMode

	// concurrency is the maximum number of concurrent runs.
	// Every run drives its own browser, so this stays small.
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
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithMode sets the run mode of the batch. The default is create.
func WithMode(mode model.RunMode) BatchOption {
	return func(b *BatchProcessor) {
		b.mode = mode
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		mode:        model.ModeCreate,
		concurrency: DefaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every application and returns the runs in input order.
// A failed run does not stop the others; its error is recorded in the run.
// The error return is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, apps []string) ([]*model.Run, error) {
	runs := make([]*model.Run, len(apps))
	err := bp.ProcessBatchWithCallback(ctx, apps, func(run *model.Run, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback runs every application and calls callback as each
// run finishes. The callback is called from the goroutine that ran the
// application, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	apps []string,
	callback func(run *model.Run, index int),
) error {
	bp.logger.Info("starting batch",
		"apps", len(apps),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, app := range apps {
		g.Go(func() error {
			run := NewRun(app, bp.mode)
			if err := ctx.Err(); err != nil {
				run.Err = err
				run.ErrorMessage = err.Error()
				callback(run, i)
				return nil
			}

			bp.logger.Info("exploring application",
				"app", app,
				"index", i+1,
				"total", len(apps),
			)

			p, err := bp.factory(app)
			if err == nil {
				err = p.Execute(ctx, run)
			} else {
				run.Err = err
				run.ErrorMessage = err.Error()
				run.FinishedAt = time.Now()
			}

			if err != nil {
				bp.logger.Warn("run failed", "app", app, "error", err)
			} else {
				bp.logger.Info("run completed", "app", app)
			}

			callback(run, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Workers never return an error.

	bp.logger.Info("batch complete",
		"apps", len(apps),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
