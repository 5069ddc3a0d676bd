// Package assign matches analyzed work items to analyzed workers. The
// matching itself is delegated to a Strategy; the engine owns batch
// validation so every strategy is held to the same consistency rules.
package assign

import (
	"context"
	"fmt"
	"strings"

	"github.com/clintrovert/sarek/pkg/types"
)

// Strategy produces one assignment batch for the given items and workers.
type Strategy interface {
	Name() string
	Assign(ctx context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error)
}

// ConsistencyError reports an assignment batch that violated the engine's
// consistency rules after the retry was exhausted. The offending batch is
// kept for diagnosis.
type ConsistencyError struct {
	Strategy   string
	Violations []string
	Batch      []types.Assignment
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: inconsistent assignment batch: %s",
		e.Strategy, strings.Join(e.Violations, "; "))
}
