// Package history keeps a queryable log of processing cycles and per-entry
// outcomes in SQLite. It is an audit trail alongside the ledger: the ledger
// decides what to skip, history answers "what happened when".
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Record statuses.
const (
	StatusRegistered = "registered"
	StatusFailed     = "failed"
)

// Cycle summarizes one scan-and-process pass.
type Cycle struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	TotalCount   int        `json:"total_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	StoppedEarly bool       `json:"stopped_early"`
}

// Record is the outcome of one candidate within a cycle.
type Record struct {
	ID          string    `json:"id"`
	CycleID     string    `json:"cycle_id"`
	EntryName   string    `json:"entry_name"`
	EntryPath   string    `json:"entry_path"`
	RecordID    string    `json:"record_id,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Store persists cycles and records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

// BeginCycle inserts a new cycle row and returns its id.
func (s *Store) BeginCycle(ctx context.Context, totalCount int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, total_count) VALUES (?, ?, ?)`,
		id, s.now().UTC().Format(time.RFC3339), totalCount)
	if err != nil {
		return "", fmt.Errorf("begin cycle: %w", err)
	}
	return id, nil
}

// FinishCycle closes out a cycle with its final counters.
func (s *Store) FinishCycle(ctx context.Context, cycleID string, success, failure int, stoppedEarly bool) error {
	stopped := 0
	if stoppedEarly {
		stopped = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cycles SET finished_at = ?, success_count = ?, failure_count = ?, stopped_early = ? WHERE id = ?`,
		s.now().UTC().Format(time.RFC3339), success, failure, stopped, cycleID)
	if err != nil {
		return fmt.Errorf("finish cycle %s: %w", cycleID, err)
	}
	return nil
}

// AddRecord appends one entry outcome to a cycle.
func (s *Store) AddRecord(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, cycle_id, entry_name, entry_path, record_id, task_id, status, error, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CycleID, rec.EntryName, rec.EntryPath,
		nullable(rec.RecordID), nullable(rec.TaskID), rec.Status, nullable(rec.Error),
		rec.ProcessedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add record for %s: %w", rec.EntryName, err)
	}
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total_count, success_count, failure_count, stopped_early
		 FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent cycles: %w", err)
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c        Cycle
			started  string
			finished sql.NullString
			stopped  int
		)
		if err := rows.Scan(&c.ID, &started, &finished, &c.TotalCount, &c.SuccessCount, &c.FailureCount, &stopped); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			t, err := time.Parse(time.RFC3339, finished.String)
			if err == nil {
				c.FinishedAt = &t
			}
		}
		c.StoppedEarly = stopped != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// CycleRecords returns all records of one cycle in processing order.
func (s *Store) CycleRecords(ctx context.Context, cycleID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cycle_id, entry_name, entry_path, record_id, task_id, status, error, processed_at
		 FROM records WHERE cycle_id = ? ORDER BY processed_at ASC`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("cycle records %s: %w", cycleID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// EntryRecords returns every outcome recorded for a given entry name,
// newest first. Useful when an entry failed repeatedly before succeeding.
func (s *Store) EntryRecords(ctx context.Context, entryName string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cycle_id, entry_name, entry_path, record_id, task_id, status, error, processed_at
		 FROM records WHERE entry_name = ? ORDER BY processed_at DESC`, entryName)
	if err != nil {
		return nil, fmt.Errorf("entry records %s: %w", entryName, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Prune deletes cycles (and their records) older than retention.
func (s *Store) Prune(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := s.now().Add(-retention).UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE cycle_id IN (SELECT id FROM cycles WHERE started_at < ?)`, cutoff); err != nil {
		return fmt.Errorf("prune records: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune cycles: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("pruned history", "cycles", n, "cutoff", cutoff)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r                      Record
			recordID, taskID, rerr sql.NullString
			processed              string
		)
		if err := rows.Scan(&r.ID, &r.CycleID, &r.EntryName, &r.EntryPath, &recordID, &taskID, &r.Status, &rerr, &processed); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.RecordID = recordID.String
		r.TaskID = taskID.String
		r.Error = rerr.String
		r.ProcessedAt, _ = time.Parse(time.RFC3339, processed)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
