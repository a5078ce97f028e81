package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"shelfcast/internal/queue"
	"shelfcast/internal/testsupport"
)

func finishedAt(t time.Time) *time.Time { return &t }

func TestRecordAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := queue.JobRecord{
		JobID:      "job-1",
		BookID:     "book-1",
		Title:      "A Book",
		Status:     queue.StatusFailed,
		FilesTotal: 3,
		FilesDone:  1,
		Error:      "book.epub: unexpected HTTP status 404 Not Found",
		CreatedAt:  created,
		FinishedAt: finishedAt(created.Add(90 * time.Second)),
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.BookID != "book-1" || got.Status != queue.StatusFailed || got.FilesDone != 1 || got.Error != rec.Error {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.Duration() != 90*time.Second {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing job: %+v %v", missing, err)
	}
}

func TestRecordUpsertsByJobID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := queue.JobRecord{JobID: "j", BookID: "b", Status: queue.StatusFailed, FilesTotal: 2}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec.Status = queue.StatusCompleted
	rec.FilesDone = 2
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record update: %v", err)
	}
	all, err := store.List(ctx, queue.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || !all[0].Succeeded() || all[0].FilesDone != 2 {
		t.Fatalf("expected single updated record, got %+v", all)
	}
}

func TestRecordRequiresIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Record(context.Background(), queue.JobRecord{BookID: "b"}); err == nil {
		t.Fatal("expected error without job id")
	}
	if err := store.Record(context.Background(), queue.JobRecord{JobID: "j"}); err == nil {
		t.Fatal("expected error without book id")
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t),
		queue.JobRecord{JobID: "1", BookID: "a", Status: queue.StatusCompleted, CreatedAt: base, FinishedAt: finishedAt(base.Add(time.Minute))},
		queue.JobRecord{JobID: "2", BookID: "b", Status: queue.StatusFailed, CreatedAt: base, FinishedAt: finishedAt(base.Add(3 * time.Minute))},
		queue.JobRecord{JobID: "3", BookID: "a", Status: queue.StatusCancelled, CreatedAt: base, FinishedAt: finishedAt(base.Add(2*time.Minute + 500*time.Millisecond))},
	)
	ctx := context.Background()

	all, err := store.List(ctx, queue.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var order []string
	for _, rec := range all {
		order = append(order, rec.JobID)
	}
	if len(order) != 3 || order[0] != "2" || order[1] != "3" || order[2] != "1" {
		t.Fatalf("order = %v, want [2 3 1]", order)
	}

	limited, _ := store.List(ctx, queue.ListOptions{Limit: 1})
	if len(limited) != 1 || limited[0].JobID != "2" {
		t.Fatalf("limit: %+v", limited)
	}
	forBook, _ := store.List(ctx, queue.ListOptions{BookID: "a"})
	if len(forBook) != 2 {
		t.Fatalf("book filter returned %d records", len(forBook))
	}
	failed, _ := store.List(ctx, queue.ListOptions{Status: queue.StatusFailed})
	if len(failed) != 1 || failed[0].BookID != "b" {
		t.Fatalf("status filter: %+v", failed)
	}
	latest, err := store.LatestForBook(ctx, "a")
	if err != nil || latest == nil || latest.JobID != "3" {
		t.Fatalf("latest for book: %+v %v", latest, err)
	}
}

func TestClearPruneAndStats(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t),
		queue.JobRecord{JobID: "old", BookID: "a", Status: queue.StatusCompleted, CreatedAt: old, FinishedAt: finishedAt(old)},
		queue.JobRecord{JobID: "new", BookID: "b", Status: queue.StatusFailed, CreatedAt: recent, FinishedAt: finishedAt(recent)},
	)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusCompleted] != 1 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("stats = %v", stats)
	}

	pruned, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || pruned != 1 {
		t.Fatalf("Prune = %d, %v", pruned, err)
	}
	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear = %d, %v", cleared, err)
	}
	remaining, _ := store.List(ctx, queue.ListOptions{})
	if len(remaining) != 0 {
		t.Fatalf("records remain after clear: %+v", remaining)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.DBPath != filepath.Join(cfg.Paths.StateDir, "queue.db") {
		t.Fatalf("db path = %q", health.DBPath)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 999"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
