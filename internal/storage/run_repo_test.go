package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() unexpected error: %v", err)
	}
	return db
}

func testRun(collection string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		Collection: collection,
		Documents:  2,
		Embedded:   10,
		Skipped:    3,
		Failed:     1,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Minute),
	}
}

func TestRunRepo_InsertAndLastRun(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepo(newTestDB(t))

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := testRun("reddit_comments", started)

	if err := repo.Insert(ctx, run); err != nil {
		t.Fatalf("Insert() unexpected error: %v", err)
	}
	if run.ID == "" {
		t.Error("Insert() should assign an ID")
	}

	got, err := repo.LastRun(ctx, "reddit_comments")
	if err != nil {
		t.Fatalf("LastRun() unexpected error: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("LastRun() ID = %s, want %s", got.ID, run.ID)
	}
	if got.Embedded != 10 || got.Skipped != 3 || got.Failed != 1 || got.Documents != 2 {
		t.Errorf("LastRun() counts = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("LastRun() StartedAt = %v, want %v", got.StartedAt, started)
	}
}

func TestRunRepo_LastRun_NotFound(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))

	_, err := repo.LastRun(context.Background(), "never_ingested")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LastRun() error = %v, want ErrNotFound", err)
	}
}

func TestRunRepo_ListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepo(newTestDB(t))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := testRun("reddit_comments", base.Add(time.Duration(i)*time.Hour))
		if err := repo.Insert(ctx, run); err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRecent() returned %d runs, want 2", len(runs))
	}
	// Newest first
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("ListRecent() not newest-first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestRunRepo_ListRecent_Empty(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))

	runs, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent() unexpected error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("ListRecent() = %v, want empty", runs)
	}
}
