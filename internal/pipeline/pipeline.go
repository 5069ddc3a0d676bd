// Package pipeline coordinates the four stages of one assignment run:
// issue analysis, worker analysis, assignment and notification drafting.
// Analysis stages fan out with bounded concurrency and record per-record
// outcomes; assignment is atomic over the surviving records.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// defaultConcurrency bounds the analysis fan-out per stage.
const defaultConcurrency = 4

// ItemAnalyzer derives metadata for a single work item.
type ItemAnalyzer interface {
	Analyze(ctx context.Context, item types.WorkItem) (*types.AnalyzedWorkItem, error)
}

// WorkerAnalyzer derives metadata for a single worker.
type WorkerAnalyzer interface {
	Analyze(ctx context.Context, worker types.Worker) (*types.AnalyzedWorker, error)
}

// Assigner produces the assignment batch for analyzed records.
type Assigner interface {
	Assign(ctx context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error)
}

// Composer drafts notifications for a single assignment.
type Composer interface {
	Compose(ctx context.Context, a types.Assignment, item *types.AnalyzedWorkItem) (*types.Notification, error)
}

// Observer is notified as the run advances. Implementations must be fast;
// they run on the orchestration goroutine.
type Observer interface {
	RunStateChanged(runID string, state types.RunState)
}

// Pipeline executes runs. It is safe for concurrent use; each Execute
// call owns its Run exclusively.
type Pipeline struct {
	items       ItemAnalyzer
	workers     WorkerAnalyzer
	assigner    Assigner
	composer    Composer
	logger      *zap.Logger
	concurrency int
	observers   []Observer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds the analysis fan-out. Values below one are
// ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.concurrency = n
		}
	}
}

// WithObserver registers an observer for run state transitions.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, o)
	}
}

// New creates a pipeline over the given stage implementations.
func New(items ItemAnalyzer, workers WorkerAnalyzer, assigner Assigner, composer Composer, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		items:       items,
		workers:     workers,
		assigner:    assigner,
		composer:    composer,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewRun allocates an empty run in the idle state.
func NewRun() *types.Run {
	return &types.Run{
		ID:        uuid.New().String(),
		State:     types.RunIdle,
		CreatedAt: time.Now().UTC(),
	}
}

// Execute runs the full pipeline over the given dataset. The returned Run
// is complete even on failure: it carries every per-record outcome
// produced before the run stopped. The error mirrors Run.Err for callers
// that prefer control flow.
func (p *Pipeline) Execute(ctx context.Context, items []types.WorkItem, workers []types.Worker) (*types.Run, error) {
	run := NewRun()
	err := p.Run(ctx, run, items, workers)
	return run, err
}

// Run executes the pipeline stages over a pre-allocated run. The run is
// mutated in place; the caller owns it exclusively until Run returns.
func (p *Pipeline) Run(ctx context.Context, run *types.Run, items []types.WorkItem, workers []types.Worker) error {
	p.logger.Info("starting run",
		zap.String("run_id", run.ID),
		zap.Int("items", len(items)),
		zap.Int("workers", len(workers)),
	)

	if err := p.execute(ctx, run, items, workers); err != nil {
		p.transition(run, types.RunFailed)
		run.Err = err.Error()
		run.CompletedAt = time.Now().UTC()
		p.logger.Error("run failed",
			zap.String("run_id", run.ID),
			zap.String("state", string(run.State)),
			zap.Error(err),
		)
		return err
	}

	p.transition(run, types.RunDone)
	run.CompletedAt = time.Now().UTC()

	s := run.Summarize()
	p.logger.Info("run complete",
		zap.String("run_id", run.ID),
		zap.Int("items_analyzed", s.ItemsAnalyzed),
		zap.Int("items_failed", s.ItemsFailed),
		zap.Int("assigned", s.Assigned),
		zap.Int("unassignable", s.Unassignable),
	)
	return nil
}

func (p *Pipeline) execute(ctx context.Context, run *types.Run, items []types.WorkItem, workers []types.Worker) error {
	p.transition(run, types.RunAnalyzingIssues)
	run.ItemResults = p.analyzeItems(ctx, items)
	if err := ctx.Err(); err != nil {
		return err
	}

	analyzedItems := make([]*types.AnalyzedWorkItem, 0, len(run.ItemResults))
	for _, r := range run.ItemResults {
		if r.Analyzed != nil {
			analyzedItems = append(analyzedItems, r.Analyzed)
		}
	}
	if len(items) > 0 && len(analyzedItems) == 0 {
		return fmt.Errorf("issue analysis produced no usable records")
	}

	p.transition(run, types.RunAnalyzingWorkers)
	run.WorkerResults = p.analyzeWorkers(ctx, workers)
	if err := ctx.Err(); err != nil {
		return err
	}

	analyzedWorkers := make([]*types.AnalyzedWorker, 0, len(run.WorkerResults))
	for _, r := range run.WorkerResults {
		if r.Analyzed != nil {
			analyzedWorkers = append(analyzedWorkers, r.Analyzed)
		}
	}

	p.transition(run, types.RunAssigning)
	batch, err := p.assigner.Assign(ctx, analyzedItems, analyzedWorkers)
	if err != nil {
		return fmt.Errorf("assignment stage: %w", err)
	}
	run.Assignments = batch

	if p.composer == nil {
		return nil
	}

	p.transition(run, types.RunComposing)
	run.Notifications = p.composeAll(ctx, run.Assignments, analyzedItems)
	return ctx.Err()
}

// analyzeItems fans the issue analysis out over a bounded worker pool and
// joins before returning. Results keep input order.
func (p *Pipeline) analyzeItems(ctx context.Context, items []types.WorkItem) []types.ItemResult {
	results := make([]types.ItemResult, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)
	for i, item := range items {
		wg.Add(1)
		go func(i int, item types.WorkItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = types.ItemResult{ItemID: item.ID}
			analyzed, err := p.items.Analyze(ctx, item)
			if err != nil {
				results[i].Err = err.Error()
				p.logger.Warn("item analysis failed",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				return
			}
			results[i].Analyzed = analyzed
		}(i, item)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) analyzeWorkers(ctx context.Context, workers []types.Worker) []types.WorkerResult {
	results := make([]types.WorkerResult, len(workers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)
	for i, worker := range workers {
		wg.Add(1)
		go func(i int, worker types.Worker) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = types.WorkerResult{WorkerID: worker.ID}
			analyzed, err := p.workers.Analyze(ctx, worker)
			if err != nil {
				results[i].Err = err.Error()
				p.logger.Warn("worker analysis failed",
					zap.String("worker_id", worker.ID),
					zap.Error(err),
				)
				return
			}
			results[i].Analyzed = analyzed
		}(i, worker)
	}
	wg.Wait()

	return results
}

// composeAll drafts notifications sequentially. A failed draft is
// recorded against its own assignment and never fails the run.
func (p *Pipeline) composeAll(ctx context.Context, batch []types.Assignment, items []*types.AnalyzedWorkItem) []types.NotificationResult {
	byID := make(map[string]*types.AnalyzedWorkItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	results := make([]types.NotificationResult, 0, len(batch))
	for _, a := range batch {
		if ctx.Err() != nil {
			break
		}
		res := types.NotificationResult{ItemID: a.ItemID}
		item, ok := byID[a.ItemID]
		if !ok {
			res.Err = fmt.Sprintf("no analyzed item for %s", a.ItemID)
			results = append(results, res)
			continue
		}

		n, err := p.composer.Compose(ctx, a, item)
		if err != nil {
			res.Err = err.Error()
			p.logger.Warn("notification composition failed",
				zap.String("item_id", a.ItemID),
				zap.Error(err),
			)
		} else {
			res.Notification = n
		}
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) transition(run *types.Run, state types.RunState) {
	run.State = state
	for _, o := range p.observers {
		o.RunStateChanged(run.ID, state)
	}
}
