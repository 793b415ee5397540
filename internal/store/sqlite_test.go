package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", s.Path(), dbPath)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.CreateRun(ctx, Run{ID: "r1", Scenario: "demo", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := s.RecordSnapshots(ctx, []LayerSnapshot{{RunID: "r1", Tick: 1, Role: "feeling", Neurons: 2}}); err != nil {
		t.Fatalf("RecordSnapshots() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	run, err := reopened.GetRun(ctx, "r1")
	if err != nil || run == nil {
		t.Fatalf("GetRun() after reopen = %v, %v", run, err)
	}
	snaps, err := reopened.Snapshots(ctx, "r1")
	if err != nil || len(snaps) != 1 || snaps[0].Neurons != 2 {
		t.Errorf("Snapshots() after reopen = %+v, %v", snaps, err)
	}
}

func TestSQLiteStore_SnapshotReplacesSameTick(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	s.CreateRun(ctx, Run{ID: "r1", Scenario: "demo", StartedAt: time.Now()})
	s.RecordSnapshots(ctx, []LayerSnapshot{{RunID: "r1", Tick: 4, Layer: 0, Role: "feeling", Neurons: 1}})
	s.RecordSnapshots(ctx, []LayerSnapshot{{RunID: "r1", Tick: 4, Layer: 0, Role: "feeling", Neurons: 9}})

	snaps, _ := s.Snapshots(ctx, "r1")
	if len(snaps) != 1 || snaps[0].Neurons != 9 {
		t.Errorf("expected the later snapshot to replace the earlier, got %+v", snaps)
	}
}
