package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDatasetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	items := []types.WorkItem{{ID: "ISSUE-1", Title: "t", Labels: []string{"bug"}}}
	workers := []types.Worker{{ID: "dev-1", Name: "Alice", Skills: []string{"go"}}}
	require.NoError(t, s.SaveDataset("ds-1", items, workers))

	gotItems, gotWorkers, err := s.GetDataset("ds-1")
	require.NoError(t, err)
	assert.Equal(t, items, gotItems)
	assert.Equal(t, workers, gotWorkers)
}

func TestDatasetOverwrite(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveDataset("ds-1", []types.WorkItem{{ID: "A", Title: "a"}}, nil))
	require.NoError(t, s.SaveDataset("ds-1", []types.WorkItem{{ID: "B", Title: "b"}}, nil))

	items, _, err := s.GetDataset("ds-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].ID)
}

func TestGetDatasetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.GetDataset("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func sampleRun() *types.Run {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Run{
		ID:          "run-1",
		State:       types.RunDone,
		CreatedAt:   now,
		CompletedAt: now.Add(time.Minute),
		ItemResults: []types.ItemResult{
			{ItemID: "ISSUE-1", Analyzed: &types.AnalyzedWorkItem{
				WorkItem: types.WorkItem{ID: "ISSUE-1", Title: "t"},
				Summary:  "s",
			}},
			{ItemID: "ISSUE-2", Err: "model refused"},
		},
		WorkerResults: []types.WorkerResult{
			{WorkerID: "dev-1", Analyzed: &types.AnalyzedWorker{
				Worker: types.Worker{ID: "dev-1", Name: "Alice"},
			}},
		},
		Assignments: []types.Assignment{
			{ItemID: "ISSUE-1", WorkerID: "dev-1", WorkerName: "Alice", Confidence: 7, Reason: "fit"},
		},
		Notifications: []types.NotificationResult{
			{ItemID: "ISSUE-1", Notification: &types.Notification{
				ItemID: "ISSUE-1", WorkerID: "dev-1", TicketTitle: "Assigned", ChatMessage: "msg",
			}},
		},
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)

	assert.Equal(t, types.RunDone, got.State)
	assert.Equal(t, run.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.Equal(t, run.CompletedAt.Unix(), got.CompletedAt.Unix())
	require.Len(t, got.ItemResults, 2)
	assert.Equal(t, "model refused", got.ItemResults[1].Err)
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, "dev-1", got.Assignments[0].WorkerID)
	require.Len(t, got.Notifications, 1)
	require.NotNil(t, got.Notifications[0].Notification)
	assert.Equal(t, "Assigned", got.Notifications[0].Notification.TicketTitle)
}

func TestSaveRunUpsert(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()
	run.State = types.RunAssigning
	run.Assignments = nil
	require.NoError(t, s.SaveRun(run))

	run.State = types.RunDone
	run.Assignments = []types.Assignment{
		{ItemID: "ISSUE-1", WorkerID: "dev-1", Confidence: 5, Reason: "r"},
	}
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunDone, got.State)
	assert.Len(t, got.Assignments, 1)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)

	older := sampleRun()
	older.ID = "run-old"
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SaveRun(older))

	newer := sampleRun()
	newer.ID = "run-new"
	require.NoError(t, s.SaveRun(newer))

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)
	assert.Empty(t, runs[0].Assignments)
}

func TestUpdateRunState(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()
	run.State = types.RunIdle
	require.NoError(t, s.SaveRun(run))

	require.NoError(t, s.UpdateRunState(run.ID, types.RunAssigning))
	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunAssigning, got.State)

	assert.ErrorIs(t, s.UpdateRunState("missing", types.RunDone), ErrNotFound)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateUser("alice", "hash-1", "alice@example.com"))
	assert.Error(t, s.CreateUser("alice", "hash-2", ""))

	hash, err := s.GetUserHash("alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)

	_, err = s.GetUserHash("bob")
	assert.ErrorIs(t, err, ErrNotFound)
}
