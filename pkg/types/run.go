package types

import (
	"time"
)

// RunState is the pipeline state machine. A run moves strictly forward
// through the analysis states; Failed is reachable from any of them.
type RunState string

const (
	RunIdle             RunState = "idle"
	RunAnalyzingIssues  RunState = "analyzing_issues"
	RunAnalyzingWorkers RunState = "analyzing_workers"
	RunAssigning        RunState = "assigning"
	RunComposing        RunState = "composing_notifications"
	RunDone             RunState = "done"
	RunFailed           RunState = "failed"
)

// ItemResult is the per-record outcome of the issue analysis stage.
// Exactly one of Analyzed or Err is set.
type ItemResult struct {
	ItemID   string            `json:"item_id"`
	Analyzed *AnalyzedWorkItem `json:"analyzed,omitempty"`
	Err      string            `json:"error,omitempty"`
}

// WorkerResult is the per-record outcome of the worker analysis stage.
type WorkerResult struct {
	WorkerID string          `json:"worker_id"`
	Analyzed *AnalyzedWorker `json:"analyzed,omitempty"`
	Err      string          `json:"error,omitempty"`
}

// NotificationResult is the per-record outcome of the composition stage.
// A failed composition does not invalidate the assignment it belongs to.
type NotificationResult struct {
	ItemID       string        `json:"item_id"`
	Notification *Notification `json:"notification,omitempty"`
	Err          string        `json:"error,omitempty"`
}

// Run is the full record of one pipeline execution. The orchestrator owns
// every derived record for the duration of the run; nothing here outlives
// the run unless the store chooses to persist it.
type Run struct {
	ID          string    `json:"id"`
	State       RunState  `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	ItemResults   []ItemResult         `json:"item_results,omitempty"`
	WorkerResults []WorkerResult       `json:"worker_results,omitempty"`
	Assignments   []Assignment         `json:"assignments,omitempty"`
	Notifications []NotificationResult `json:"notifications,omitempty"`

	Err string `json:"error,omitempty"`
}

// Summary reports how many records succeeded and failed per stage so
// partial results are labeled as such instead of silently trimmed.
type Summary struct {
	ItemsAnalyzed   int `json:"items_analyzed"`
	ItemsFailed     int `json:"items_failed"`
	WorkersAnalyzed int `json:"workers_analyzed"`
	WorkersFailed   int `json:"workers_failed"`
	Assigned        int `json:"assigned"`
	Unassignable    int `json:"unassignable"`
	Composed        int `json:"composed"`
	ComposeFailed   int `json:"compose_failed"`
}

// Summarize derives the stage counters from a finished run.
func (r *Run) Summarize() Summary {
	var s Summary
	for _, ir := range r.ItemResults {
		if ir.Err != "" {
			s.ItemsFailed++
		} else {
			s.ItemsAnalyzed++
		}
	}
	for _, wr := range r.WorkerResults {
		if wr.Err != "" {
			s.WorkersFailed++
		} else {
			s.WorkersAnalyzed++
		}
	}
	for _, a := range r.Assignments {
		if a.Unassignable {
			s.Unassignable++
		} else {
			s.Assigned++
		}
	}
	for _, n := range r.Notifications {
		if n.Err != "" {
			s.ComposeFailed++
		} else {
			s.Composed++
		}
	}
	return s
}
