package assign

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// Engine runs a Strategy and validates its output. A batch that fails
// validation is requested once more before the engine gives up; partial
// batches are never returned.
type Engine struct {
	strategy Strategy
	logger   *zap.Logger
}

// NewEngine creates an assignment engine around the given strategy.
func NewEngine(strategy Strategy, logger *zap.Logger) *Engine {
	return &Engine{strategy: strategy, logger: logger}
}

// Assign produces exactly one assignment per item. Items the strategy
// cannot place come back marked unassignable with a reason; no item is
// ever dropped from the result.
func (e *Engine) Assign(ctx context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error) {
	if len(items) == 0 {
		return []types.Assignment{}, nil
	}
	if len(workers) == 0 {
		e.logger.Warn("no workers available, marking all items unassignable",
			zap.Int("items", len(items)))
		return allUnassignable(items, "no workers available"), nil
	}

	batch, err := e.strategy.Assign(ctx, items, workers)
	if err != nil {
		return nil, fmt.Errorf("assignment strategy %s: %w", e.strategy.Name(), err)
	}

	violations := e.validate(batch, items, workers)
	if len(violations) == 0 {
		return batch, nil
	}

	e.logger.Warn("assignment batch failed validation, retrying",
		zap.Strings("violations", violations))

	batch, err = e.strategy.Assign(ctx, items, workers)
	if err != nil {
		return nil, fmt.Errorf("assignment strategy %s: %w", e.strategy.Name(), err)
	}
	if violations = e.validate(batch, items, workers); len(violations) != 0 {
		return nil, &ConsistencyError{
			Strategy:   e.strategy.Name(),
			Violations: violations,
			Batch:      batch,
		}
	}
	return batch, nil
}

// validate checks referential integrity, confidence bounds and coverage.
func (e *Engine) validate(batch []types.Assignment, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) []string {
	knownItems := make(map[string]bool, len(items))
	for _, it := range items {
		knownItems[it.ID] = true
	}
	knownWorkers := make(map[string]bool, len(workers))
	for _, w := range workers {
		knownWorkers[w.ID] = true
	}

	var violations []string
	seen := make(map[string]bool, len(batch))
	for _, a := range batch {
		if !knownItems[a.ItemID] {
			violations = append(violations, fmt.Sprintf("unknown item %q", a.ItemID))
			continue
		}
		if seen[a.ItemID] {
			violations = append(violations, fmt.Sprintf("item %q assigned more than once", a.ItemID))
			continue
		}
		seen[a.ItemID] = true

		if a.Unassignable {
			if a.Confidence != types.MinConfidence {
				violations = append(violations, fmt.Sprintf("unassignable item %q has nonzero confidence %d", a.ItemID, a.Confidence))
			}
			if a.Reason == "" {
				violations = append(violations, fmt.Sprintf("unassignable item %q has no reason", a.ItemID))
			}
			continue
		}

		if !knownWorkers[a.WorkerID] {
			violations = append(violations, fmt.Sprintf("item %q assigned to unknown worker %q", a.ItemID, a.WorkerID))
		}
		if a.Confidence <= types.MinConfidence || a.Confidence > types.MaxConfidence {
			violations = append(violations, fmt.Sprintf("item %q confidence %d out of range", a.ItemID, a.Confidence))
		}
	}

	for _, it := range items {
		if !seen[it.ID] {
			violations = append(violations, fmt.Sprintf("item %q missing from batch", it.ID))
		}
	}
	return violations
}

func allUnassignable(items []*types.AnalyzedWorkItem, reason string) []types.Assignment {
	out := make([]types.Assignment, 0, len(items))
	for _, it := range items {
		out = append(out, types.Assignment{
			ItemID:       it.ID,
			Confidence:   types.MinConfidence,
			Reason:       reason,
			Unassignable: true,
		})
	}
	return out
}
