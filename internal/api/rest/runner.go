package rest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

// Runner launches pipeline runs in the background and persists their
// results.
type Runner struct {
	pipeline   *pipeline.Pipeline
	store      *store.Store
	logger     *zap.Logger
	onFinished func(*types.Run)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunFinished registers a hook invoked after a run finishes and its
// final state is persisted.
func WithRunFinished(fn func(*types.Run)) RunnerOption {
	return func(r *Runner) {
		r.onFinished = fn
	}
}

// NewRunner creates a run launcher.
func NewRunner(p *pipeline.Pipeline, s *store.Store, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{pipeline: p, store: s, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch persists a fresh run record and executes the pipeline on a
// background goroutine. The returned run is a snapshot in the idle
// state; clients poll the store for progress.
func (r *Runner) Launch(items []types.WorkItem, workers []types.Worker) (*types.Run, error) {
	run := pipeline.NewRun()
	if err := r.store.SaveRun(run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}
	snapshot := *run

	go func() {
		// Runs outlive the request that started them.
		_ = r.pipeline.Run(context.Background(), run, items, workers)
		if err := r.store.SaveRun(run); err != nil {
			r.logger.Error("failed to persist finished run",
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
		}
		if r.onFinished != nil {
			r.onFinished(run)
		}
	}()

	return &snapshot, nil
}
