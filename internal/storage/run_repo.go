package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks github.com/tommyshellberg/personna/internal/storage RunStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// RunRecord is one persisted ingestion run.
type RunRecord struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	Embedded   int       `json:"embedded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunStore defines the interface for ingestion run history.
type RunStore interface {
	// Insert persists a completed run.
	Insert(ctx context.Context, run *RunRecord) error
	// ListRecent returns the most recent runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)
	// LastRun returns the most recent run for a collection.
	// Returns nil and ErrNotFound if the collection has no runs.
	LastRun(ctx context.Context, collection string) (*RunRecord, error)
}

// RunRepo provides methods for run history operations.
// It implements the RunStore interface.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert persists a completed run. A missing ID gets a fresh UUID.
func (r *RunRepo) Insert(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, collection, documents, embedded, skipped, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Collection, run.Documents, run.Embedded, run.Skipped, run.Failed,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// ListRecent returns the most recent runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, collection, documents, embedded, skipped, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// LastRun returns the most recent run for a collection.
// Returns nil and ErrNotFound if the collection has no runs.
func (r *RunRepo) LastRun(ctx context.Context, collection string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, collection, documents, embedded, skipped, failed, started_at, finished_at
		 FROM runs WHERE collection = ? ORDER BY started_at DESC LIMIT 1`, collection)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var run RunRecord
	var startedAt, finishedAt string

	err := scan(&run.ID, &run.Collection, &run.Documents, &run.Embedded, &run.Skipped, &run.Failed, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt, err = parseRunTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.FinishedAt, err = parseRunTime(finishedAt)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func parseRunTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// SQLite might hand back its DATETIME format instead
		t, err = time.Parse("2006-01-02 15:04:05", value)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
	}
	return t, nil
}
