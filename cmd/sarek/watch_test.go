package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

type passItemAnalyzer struct{}

func (passItemAnalyzer) Analyze(_ context.Context, item types.WorkItem) (*types.AnalyzedWorkItem, error) {
	return &types.AnalyzedWorkItem{WorkItem: item, Summary: item.Title}, nil
}

type passWorkerAnalyzer struct{}

func (passWorkerAnalyzer) Analyze(_ context.Context, worker types.Worker) (*types.AnalyzedWorker, error) {
	return &types.AnalyzedWorker{Worker: worker}, nil
}

// stateSpyAssigner reads the persisted run state at the moment the
// assignment stage executes.
type stateSpyAssigner struct {
	store     *store.Store
	seenState types.RunState
}

func (a *stateSpyAssigner) Assign(_ context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error) {
	if runs, err := a.store.ListRuns(1); err == nil && len(runs) == 1 {
		a.seenState = runs[0].State
	}
	out := make([]types.Assignment, 0, len(items))
	for _, item := range items {
		out = append(out, types.Assignment{
			ItemID:     item.ID,
			WorkerID:   workers[0].ID,
			Confidence: 5,
			Reason:     "closest skill match",
		})
	}
	return out, nil
}

func TestRunBatchPersistsRunBeforeExecuting(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "watch.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	spy := &stateSpyAssigner{store: st}
	pipe := pipeline.New(passItemAnalyzer{}, passWorkerAnalyzer{}, spy, nil, zap.NewNop(),
		pipeline.WithObserver(&storeObserver{store: st, logger: zap.NewNop()}),
	)

	items := []types.WorkItem{{ID: "repo#1", Title: "Crash on start"}}
	workers := []types.Worker{{ID: "dev-1", Name: "Alice"}}
	runBatch(context.Background(), st, pipe, items, workers, zap.NewNop())

	// The row existed mid-run, so the observer's update was visible.
	assert.Equal(t, types.RunAssigning, spy.seenState)

	runs, err := st.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got, err := st.GetRun(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunDone, got.State)
	assert.Len(t, got.Assignments, 1)
}
