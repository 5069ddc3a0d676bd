// Package store persists datasets, runs and users in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the database at path and bootstraps the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id         TEXT PRIMARY KEY,
		items      TEXT NOT NULL,
		workers    TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		state          TEXT NOT NULL,
		created_at     DATETIME NOT NULL,
		completed_at   DATETIME,
		error          TEXT DEFAULT '',
		item_results   TEXT DEFAULT '[]',
		worker_results TEXT DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS assignments (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         TEXT NOT NULL,
		issue_id       TEXT NOT NULL,
		assigned_to    TEXT DEFAULT '',
		developer_name TEXT DEFAULT '',
		confidence     INTEGER NOT NULL,
		reason         TEXT DEFAULT '',
		unassignable   INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_run ON assignments(run_id);

	CREATE TABLE IF NOT EXISTS notifications (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id          TEXT NOT NULL,
		issue_id        TEXT NOT NULL,
		assigned_to     TEXT DEFAULT '',
		ticket_title    TEXT DEFAULT '',
		ticket_body     TEXT DEFAULT '',
		ticket_priority TEXT DEFAULT '',
		chat_message    TEXT DEFAULT '',
		status_update   TEXT DEFAULT '',
		error           TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_run ON notifications(run_id);

	CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		email         TEXT DEFAULT '',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDataset stores a dataset under the given id, replacing any
// previous content.
func (s *Store) SaveDataset(id string, items []types.WorkItem, workers []types.Worker) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	workersJSON, err := json.Marshal(workers)
	if err != nil {
		return fmt.Errorf("failed to marshal workers: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO datasets (id, items, workers) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET items = excluded.items, workers = excluded.workers`,
		id, string(itemsJSON), string(workersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", id, err)
	}

	s.logger.Debug("saved dataset",
		zap.String("dataset_id", id),
		zap.Int("items", len(items)),
		zap.Int("workers", len(workers)),
	)
	return nil
}

// GetDataset loads a dataset by id.
func (s *Store) GetDataset(id string) ([]types.WorkItem, []types.Worker, error) {
	var itemsJSON, workersJSON string
	err := s.db.QueryRow(`SELECT items, workers FROM datasets WHERE id = ?`, id).
		Scan(&itemsJSON, &workersJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}

	var items []types.WorkItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	var workers []types.Worker
	if err := json.Unmarshal([]byte(workersJSON), &workers); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal workers: %w", err)
	}
	return items, workers, nil
}

// SaveRun upserts a run and rewrites its assignments and notifications.
// The whole write is transactional.
func (s *Store) SaveRun(run *types.Run) error {
	itemResults, err := json.Marshal(run.ItemResults)
	if err != nil {
		return fmt.Errorf("failed to marshal item results: %w", err)
	}
	workerResults, err := json.Marshal(run.WorkerResults)
	if err != nil {
		return fmt.Errorf("failed to marshal worker results: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt
	}

	_, err = tx.Exec(
		`INSERT INTO runs (id, state, created_at, completed_at, error, item_results, worker_results)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			completed_at = excluded.completed_at,
			error = excluded.error,
			item_results = excluded.item_results,
			worker_results = excluded.worker_results`,
		run.ID, string(run.State), run.CreatedAt, completedAt, run.Err,
		string(itemResults), string(workerResults),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	if _, err = tx.Exec(`DELETE FROM assignments WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	for _, a := range run.Assignments {
		_, err = tx.Exec(
			`INSERT INTO assignments (run_id, issue_id, assigned_to, developer_name, confidence, reason, unassignable)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, a.ItemID, a.WorkerID, a.WorkerName, a.Confidence, a.Reason, a.Unassignable,
		)
		if err != nil {
			return fmt.Errorf("failed to save assignment for %s: %w", a.ItemID, err)
		}
	}

	if _, err = tx.Exec(`DELETE FROM notifications WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	for _, nr := range run.Notifications {
		n := nr.Notification
		if n == nil {
			n = &types.Notification{ItemID: nr.ItemID}
		}
		_, err = tx.Exec(
			`INSERT INTO notifications (run_id, issue_id, assigned_to, ticket_title, ticket_body, ticket_priority, chat_message, status_update, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, nr.ItemID, n.WorkerID, n.TicketTitle, n.TicketBody,
			n.TicketPriority, n.ChatMessage, n.StatusUpdate, nr.Err,
		)
		if err != nil {
			return fmt.Errorf("failed to save notification for %s: %w", nr.ItemID, err)
		}
	}

	return tx.Commit()
}

// UpdateRunState updates just the state column of an existing run. Used
// by the run state observer so polling clients see progress before the
// final save.
func (s *Store) UpdateRunState(id string, state types.RunState) error {
	res, err := s.db.Exec(`UPDATE runs SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun loads a full run by id.
func (s *Store) GetRun(id string) (*types.Run, error) {
	run := &types.Run{ID: id}
	var completedAt sql.NullTime
	var itemResults, workerResults string

	err := s.db.QueryRow(
		`SELECT state, created_at, completed_at, error, item_results, worker_results
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.State, &run.CreatedAt, &completedAt, &run.Err, &itemResults, &workerResults)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}

	if err := json.Unmarshal([]byte(itemResults), &run.ItemResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item results: %w", err)
	}
	if err := json.Unmarshal([]byte(workerResults), &run.WorkerResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker results: %w", err)
	}

	if run.Assignments, err = s.GetAssignments(id); err != nil {
		return nil, err
	}
	if run.Notifications, err = s.getNotifications(id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without their
// per-record payloads.
func (s *Store) ListRuns(limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, state, created_at, completed_at, error
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var run types.Run
		var completedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.State, &run.CreatedAt, &completedAt, &run.Err); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetAssignments returns the assignment batch of a run.
func (s *Store) GetAssignments(runID string) ([]types.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT issue_id, assigned_to, developer_name, confidence, reason, unassignable
		 FROM assignments WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.Assignment
	for rows.Next() {
		var a types.Assignment
		if err := rows.Scan(&a.ItemID, &a.WorkerID, &a.WorkerName, &a.Confidence, &a.Reason, &a.Unassignable); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) getNotifications(runID string) ([]types.NotificationResult, error) {
	rows, err := s.db.Query(
		`SELECT issue_id, assigned_to, ticket_title, ticket_body, ticket_priority, chat_message, status_update, error
		 FROM notifications WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.NotificationResult
	for rows.Next() {
		var n types.Notification
		var res types.NotificationResult
		if err := rows.Scan(&n.ItemID, &n.WorkerID, &n.TicketTitle, &n.TicketBody,
			&n.TicketPriority, &n.ChatMessage, &n.StatusUpdate, &res.Err); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		res.ItemID = n.ItemID
		if res.Err == "" {
			res.Notification = &n
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// CreateUser stores a local user with a password hash. Usernames are
// unique.
func (s *Store) CreateUser(username, passwordHash, email string) error {
	_, err := s.db.Exec(
		`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
		username, passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return nil
}

// GetUserHash returns the stored password hash for a username.
func (s *Store) GetUserHash(username string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user %s: %w", username, err)
	}
	return hash, nil
}
