package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/auth"
	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

type stubItemAnalyzer struct{}

func (stubItemAnalyzer) Analyze(_ context.Context, item types.WorkItem) (*types.AnalyzedWorkItem, error) {
	return &types.AnalyzedWorkItem{WorkItem: item, Summary: "s", Difficulty: types.DifficultyMedium, Complexity: 5}, nil
}

type stubWorkerAnalyzer struct{}

func (stubWorkerAnalyzer) Analyze(_ context.Context, worker types.Worker) (*types.AnalyzedWorker, error) {
	return &types.AnalyzedWorker{Worker: worker, WorkloadState: types.WorkloadAvailable}, nil
}

type stubAssigner struct{}

func (stubAssigner) Assign(_ context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error) {
	out := make([]types.Assignment, 0, len(items))
	for _, it := range items {
		out = append(out, types.Assignment{
			ItemID: it.ID, WorkerID: workers[0].ID, WorkerName: workers[0].Name,
			Confidence: 6, Reason: "fit",
		})
	}
	return out, nil
}

type stubComposer struct{}

func (stubComposer) Compose(_ context.Context, a types.Assignment, item *types.AnalyzedWorkItem) (*types.Notification, error) {
	return &types.Notification{
		ItemID: a.ItemID, WorkerID: a.WorkerID,
		TicketTitle: "Assigned: " + item.Title, ChatMessage: "msg", StatusUpdate: "done",
	}, nil
}

type stubTicketSender struct {
	sent []string
	err  error
}

func (s *stubTicketSender) Send(n *types.Notification) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, n.ItemID)
	return "PROJ-1", nil
}

type stubChatSender struct {
	sent []string
}

func (s *stubChatSender) Send(n *types.Notification) error {
	s.sent = append(s.sent, n.ItemID)
	return nil
}

type fixture struct {
	handler *Handler
	store   *store.Store
	tickets *stubTicketSender
	chat    *stubChatSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	p := pipeline.New(stubItemAnalyzer{}, stubWorkerAnalyzer{}, stubAssigner{}, stubComposer{}, zap.NewNop())
	runner := NewRunner(p, st, zap.NewNop())
	authSvc := auth.NewService(st, "", "", "", zap.NewNop())

	tickets := &stubTicketSender{}
	chat := &stubChatSender{}
	handler := NewHandler(st, runner, nil, authSvc, tickets, chat, zap.NewNop())
	return &fixture{handler: handler, store: st, tickets: tickets, chat: chat}
}

func (f *fixture) serve(t *testing.T, requireAuth bool, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.NewRouter(requireAuth, prometheus.NewRegistry()).ServeHTTP(rec, req)
	return rec
}

func jsonReq(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleDataset() CreateDatasetRequest {
	return CreateDatasetRequest{
		ID: "ds-1",
		Items: []types.WorkItem{
			{ID: "ISSUE-1", Title: "First"},
			{ID: "ISSUE-2", Title: "Second"},
		},
		Workers: []types.Worker{
			{ID: "dev-1", Name: "Alice", Skills: []string{"go"}},
		},
	}
}

func TestCreateDataset(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/datasets", sampleDataset()))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ds-1", resp.DatasetID)
	assert.Equal(t, 2, resp.Items)
	assert.Equal(t, 1, resp.Workers)

	items, workers, err := f.store.GetDataset("ds-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Len(t, workers, 1)
}

func TestCreateDatasetRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	ds := sampleDataset()
	ds.Items[1].ID = ds.Items[0].ID
	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/datasets", ds))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate item id")
}

func TestImportGitHubNotConfigured(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/datasets/github",
		ImportGitHubRequest{RepoURL: "golang/go"}))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func startRun(t *testing.T, f *fixture) string {
	t.Helper()
	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/datasets", sampleDataset()))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/runs", StartRunRequest{DatasetID: "ds-1"}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp StartRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func waitForRun(t *testing.T, f *fixture, runID string) *types.Run {
	t.Helper()
	var run *types.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = f.store.GetRun(runID)
		if err != nil {
			return false
		}
		return run.State == types.RunDone || run.State == types.RunFailed
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestStartRunAndPoll(t *testing.T) {
	f := newFixture(t)
	runID := startRun(t, f)

	run := waitForRun(t, f, runID)
	assert.Equal(t, types.RunDone, run.State)
	assert.Len(t, run.Assignments, 2)

	rec := f.serve(t, false, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.RunDone, resp.State)
	assert.Equal(t, 2, resp.Summary.ItemsAnalyzed)
	assert.Equal(t, 2, resp.Summary.Assigned)
}

func TestStartRunUnknownDataset(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/runs", StartRunRequest{DatasetID: "missing"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssignments(t *testing.T) {
	f := newFixture(t)
	runID := startRun(t, f)
	waitForRun(t, f, runID)

	rec := f.serve(t, false, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID+"/assignments", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var assignments []types.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignments))
	require.Len(t, assignments, 2)
	assert.Equal(t, "dev-1", assignments[0].WorkerID)
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(t, false, httptest.NewRequest(http.MethodGet, "/api/v1/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	runID := startRun(t, f)
	waitForRun(t, f, runID)

	rec := f.serve(t, false, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []types.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
}

func TestSendNotifications(t *testing.T) {
	f := newFixture(t)
	runID := startRun(t, f)
	waitForRun(t, f, runID)

	rec := f.serve(t, false, httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+runID+"/notifications/send", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var results []DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Empty(t, res.Err)
		assert.Empty(t, res.TicketErr)
		assert.Empty(t, res.ChatErr)
		assert.Equal(t, "PROJ-1", res.TicketKey)
		assert.True(t, res.Chat)
	}
	assert.Len(t, f.tickets.sent, 2)
	assert.Len(t, f.chat.sent, 2)
}

func TestSendNotificationsReportsPerItemFailure(t *testing.T) {
	f := newFixture(t)
	f.tickets.err = errors.New("jira down")

	runID := startRun(t, f)
	waitForRun(t, f, runID)

	rec := f.serve(t, false, httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+runID+"/notifications/send", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var results []DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Contains(t, res.TicketErr, "jira down")
		assert.Empty(t, res.TicketKey)
		assert.True(t, res.Chat, "chat delivery is independent of the ticket channel")
		assert.Empty(t, res.ChatErr)
	}
	assert.Len(t, f.chat.sent, 2)
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, true, jsonReq(t, http.MethodPost, "/api/v1/auth/register",
		RegisterRequest{Username: "alice", Password: "s3cret"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unauthenticated API access is rejected.
	rec = f.serve(t, true, jsonReq(t, http.MethodPost, "/api/v1/datasets", sampleDataset()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Login issues a bearer token.
	rec = f.serve(t, true, jsonReq(t, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: "alice", Password: "s3cret"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	req := jsonReq(t, http.MethodPost, "/api/v1/datasets", sampleDataset())
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = f.serve(t, true, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Health stays open.
	rec = f.serve(t, true, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/auth/register",
		RegisterRequest{Username: "alice", Password: "pw"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.serve(t, false, jsonReq(t, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: "alice", Password: "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(t, false, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
