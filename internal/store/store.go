// Package store persists the caller-side poll cursor and an audit trail of
// pipeline runs and dropped notifications.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CosmoTheDev/hubwatch/internal/database"
	"github.com/CosmoTheDev/hubwatch/models"
)

// DefaultCursor is the cursor name used by the CLI.
const DefaultCursor = "default"

// Run statuses recorded in pipeline_runs.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDryRun    = "dry_run"
)

// Store wraps a database.DB with typed accessors.
type Store struct {
	db  database.DB
	now func() time.Time
}

// New returns a Store over db. db must already be migrated.
func New(db database.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type cursorRow struct {
	Name      string `db:"name"`
	LastSeen  string `db:"last_seen"`
	UpdatedAt string `db:"updated_at"`
}

// Run is one recorded pipeline run.
type Run struct {
	ID           int64     `json:"-"             yaml:"-"`
	RunID        string    `json:"run_id"        yaml:"run_id"`
	Since        time.Time `json:"since"         yaml:"since"`
	CursorAfter  time.Time `json:"cursor_after"  yaml:"cursor_after"`
	EventCount   int       `json:"event_count"   yaml:"event_count"`
	ItemCount    int       `json:"item_count"    yaml:"item_count"`
	FailureCount int       `json:"failure_count" yaml:"failure_count"`
	Status       string    `json:"status"        yaml:"status"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt  time.Time `json:"completed_at" yaml:"completed_at"`
}

type runRow struct {
	ID           int64  `db:"id"`
	RunID        string `db:"run_id"`
	Since        string `db:"since"`
	CursorAfter  string `db:"cursor_after"`
	EventCount   int    `db:"event_count"`
	ItemCount    int    `db:"item_count"`
	FailureCount int    `db:"failure_count"`
	Status       string `db:"status"`
	ErrorMsg     string `db:"error_msg"`
	StartedAt    string `db:"started_at"`
	CompletedAt  string `db:"completed_at"`
}

// Failure is an audited FailureEntry with the run it belongs to.
type Failure struct {
	models.FailureEntry `yaml:",inline"`

	RunID      string    `json:"run_id"      yaml:"run_id"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

type failureRow struct {
	ID         int64  `db:"id"`
	RunID      string `db:"run_id"`
	EventID    string `db:"event_id"`
	EventType  string `db:"event_type"`
	Kind       string `db:"kind"`
	Reason     string `db:"reason"`
	RecordedAt string `db:"recorded_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Cursor returns the stored cursor for name, or the zero time if none exists.
func (s *Store) Cursor(ctx context.Context, name string) (time.Time, error) {
	var row cursorRow
	err := s.db.Get(ctx, &row, `SELECT name, last_seen, updated_at FROM poll_cursors WHERE name = ?`, name)
	if errors.Is(err, database.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: load cursor %s: %w", name, err)
	}
	return parseTime(row.LastSeen), nil
}

// SaveCursor stores at as the cursor for name.
func (s *Store) SaveCursor(ctx context.Context, name string, at time.Time) error {
	row := cursorRow{Name: name, LastSeen: formatTime(at), UpdatedAt: formatTime(s.now())}
	if err := s.db.Upsert(ctx, "poll_cursors", row, []string{"name"}); err != nil {
		return fmt.Errorf("store: save cursor %s: %w", name, err)
	}
	return nil
}

// ResetCursor deletes the cursor so the next poll starts from the beginning.
func (s *Store) ResetCursor(ctx context.Context, name string) error {
	if err := s.db.Exec(ctx, `DELETE FROM poll_cursors WHERE name = ?`, name); err != nil {
		return fmt.Errorf("store: reset cursor %s: %w", name, err)
	}
	return nil
}

// RecordRun stores run and the failures it produced.
func (s *Store) RecordRun(ctx context.Context, run Run, failures []models.FailureEntry) error {
	row := runRow{
		RunID:        run.RunID,
		Since:        formatTime(run.Since),
		CursorAfter:  formatTime(run.CursorAfter),
		EventCount:   run.EventCount,
		ItemCount:    run.ItemCount,
		FailureCount: run.FailureCount,
		Status:       run.Status,
		ErrorMsg:     run.Error,
		StartedAt:    formatTime(run.StartedAt),
		CompletedAt:  formatTime(run.CompletedAt),
	}
	if _, err := s.db.Insert(ctx, "pipeline_runs", row); err != nil {
		return fmt.Errorf("store: record run %s: %w", run.RunID, err)
	}

	recorded := formatTime(s.now())
	for _, f := range failures {
		fr := failureRow{
			RunID:      run.RunID,
			EventID:    f.EventID,
			EventType:  string(f.Type),
			Kind:       string(f.Kind),
			Reason:     f.Reason,
			RecordedAt: recorded,
		}
		if _, err := s.db.Insert(ctx, "notification_failures", fr); err != nil {
			return fmt.Errorf("store: record failure for %s: %w", f.EventID, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := s.db.Select(ctx, &rows, `SELECT id, run_id, since, cursor_after, event_count, item_count,
		failure_count, status, error_msg, started_at, completed_at
		FROM pipeline_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, Run{
			ID:           r.ID,
			RunID:        r.RunID,
			Since:        parseTime(r.Since),
			CursorAfter:  parseTime(r.CursorAfter),
			EventCount:   r.EventCount,
			ItemCount:    r.ItemCount,
			FailureCount: r.FailureCount,
			Status:       r.Status,
			Error:        r.ErrorMsg,
			StartedAt:    parseTime(r.StartedAt),
			CompletedAt:  parseTime(r.CompletedAt),
		})
	}
	return out, nil
}

// ListFailures returns audited failures, newest first. An empty runID lists
// failures across all runs.
func (s *Store) ListFailures(ctx context.Context, runID string, limit int) ([]Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, run_id, event_id, event_type, kind, reason, recorded_at FROM notification_failures`
	args := []interface{}{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var rows []failureRow
	if err := s.db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("store: list failures: %w", err)
	}
	out := make([]Failure, 0, len(rows))
	for _, r := range rows {
		out = append(out, Failure{
			RunID: r.RunID,
			FailureEntry: models.FailureEntry{
				EventID: r.EventID,
				Type:    models.NotificationType(r.EventType),
				Kind:    models.FailureKind(r.Kind),
				Reason:  r.Reason,
			},
			RecordedAt: parseTime(r.RecordedAt),
		})
	}
	return out, nil
}
