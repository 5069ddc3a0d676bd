// Package rest exposes the HTTP control surface: dataset management, run
// lifecycle, notification delivery and authentication.
package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/auth"
	"github.com/clintrovert/sarek/internal/ingest"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

// TicketSender files a drafted ticket and returns its key.
type TicketSender interface {
	Send(n *types.Notification) (string, error)
}

// ChatSender posts drafted chat messages.
type ChatSender interface {
	Send(n *types.Notification) error
}

// Handler handles REST API requests.
type Handler struct {
	store   *store.Store
	runner  *Runner
	source  *ingest.GitHubSource
	auth    *auth.Service
	tickets TicketSender
	chat    ChatSender
	logger  *zap.Logger
}

// NewHandler creates a REST handler. source, tickets and chat may be nil
// when the corresponding integration is not configured.
func NewHandler(s *store.Store, runner *Runner, source *ingest.GitHubSource, authSvc *auth.Service, tickets TicketSender, chat ChatSender, logger *zap.Logger) *Handler {
	return &Handler{
		store:   s,
		runner:  runner,
		source:  source,
		auth:    authSvc,
		tickets: tickets,
		chat:    chat,
		logger:  logger,
	}
}

// CreateDatasetRequest carries an inline dataset.
type CreateDatasetRequest struct {
	ID      string           `json:"id,omitempty"`
	Items   []types.WorkItem `json:"items"`
	Workers []types.Worker   `json:"workers"`
}

// DatasetResponse reports a stored dataset.
type DatasetResponse struct {
	DatasetID string `json:"dataset_id"`
	Items     int    `json:"items"`
	Workers   int    `json:"workers"`
}

// CreateDataset handles POST /datasets.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ingest.ValidateItems(req.Items); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ingest.ValidateWorkers(req.Workers); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	if err := h.store.SaveDataset(id, req.Items, req.Workers); err != nil {
		h.logger.Error("failed to save dataset", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, DatasetResponse{
		DatasetID: id,
		Items:     len(req.Items),
		Workers:   len(req.Workers),
	})
}

// ImportGitHubRequest names a repository to build a dataset from.
type ImportGitHubRequest struct {
	ID      string `json:"id,omitempty"`
	RepoURL string `json:"repo_url"`
}

// ImportGitHub handles POST /datasets/github.
func (h *Handler) ImportGitHub(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusNotImplemented, errors.New("github import is not configured"))
		return
	}

	var req ImportGitHubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	owner, repo, err := ingest.ParseRepoURL(req.RepoURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := h.source.FetchItems(r.Context(), owner, repo)
	if err != nil {
		h.logger.Error("github item fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	workers, err := h.source.FetchWorkers(r.Context(), owner, repo)
	if err != nil {
		h.logger.Error("github worker fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	id := req.ID
	if id == "" {
		id = owner + "-" + repo
	}
	if err := h.store.SaveDataset(id, items, workers); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, DatasetResponse{
		DatasetID: id,
		Items:     len(items),
		Workers:   len(workers),
	})
}

// StartRunRequest names the dataset to run over.
type StartRunRequest struct {
	DatasetID string `json:"dataset_id"`
}

// StartRunResponse reports the launched run.
type StartRunResponse struct {
	RunID string         `json:"run_id"`
	State types.RunState `json:"state"`
}

// StartRun handles POST /runs.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items, workers, err := h.store.GetDataset(req.DatasetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("dataset has no items"))
		return
	}

	run, err := h.runner.Launch(items, workers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: run.ID, State: run.State})
}

// RunResponse is a full run plus its stage summary.
type RunResponse struct {
	*types.Run
	Summary types.Summary `json:"summary"`
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Run: run, Summary: run.Summarize()})
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetAssignments handles GET /runs/{id}/assignments.
func (h *Handler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetRun(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	assignments, err := h.store.GetAssignments(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if assignments == nil {
		assignments = []types.Assignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

// DeliveryResult reports one notification delivery attempt. The ticket
// and chat channels are independent; each reports its own outcome.
type DeliveryResult struct {
	ItemID    string `json:"issue_id"`
	TicketKey string `json:"ticket_key,omitempty"`
	TicketErr string `json:"ticket_error,omitempty"`
	Chat      bool   `json:"chat_sent"`
	ChatErr   string `json:"chat_error,omitempty"`
	Err       string `json:"error,omitempty"`
}

// SendNotifications handles POST /runs/{id}/notifications/send. Drafted
// notifications are pushed to every configured channel; delivery
// failures are reported per item, not as a request failure.
func (h *Handler) SendNotifications(w http.ResponseWriter, r *http.Request) {
	if h.tickets == nil && h.chat == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no delivery channel is configured"))
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results := make([]DeliveryResult, 0, len(run.Notifications))
	for _, nr := range run.Notifications {
		res := DeliveryResult{ItemID: nr.ItemID}
		if nr.Notification == nil {
			res.Err = "no draft for this item"
			results = append(results, res)
			continue
		}

		if h.tickets != nil {
			key, err := h.tickets.Send(nr.Notification)
			if err != nil {
				res.TicketErr = err.Error()
			} else {
				res.TicketKey = key
			}
		}
		if h.chat != nil {
			if err := h.chat.Send(nr.Notification); err != nil {
				res.ChatErr = err.Error()
			} else {
				res.Chat = true
			}
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
