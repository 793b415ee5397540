package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory, for tests and one-off
// runs that are not kept.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]Run
	order       []string
	snapshots   map[string][]LayerSnapshot
	connections map[string][]Connection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]Run),
		snapshots:   make(map[string][]LayerSnapshot),
		connections: make(map[string][]Connection),
	}
}

// CreateRun adds a run.
func (s *MemoryStore) CreateRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return nil
}

// FinishRun records the end of a run.
func (s *MemoryStore) FinishRun(ctx context.Context, id string, ticks int64, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}
	run.Ticks = ticks
	run.FinishedAt = &finishedAt
	s.runs[id] = run
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns every run, oldest first.
func (s *MemoryStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id])
	}
	return out, nil
}

// RecordSnapshots appends layer snapshots.
func (s *MemoryStore) RecordSnapshots(ctx context.Context, snaps []LayerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		if _, exists := s.runs[snap.RunID]; !exists {
			return fmt.Errorf("run not found: %s", snap.RunID)
		}
	}
	for _, snap := range snaps {
		s.snapshots[snap.RunID] = append(s.snapshots[snap.RunID], snap)
	}
	return nil
}

// Snapshots returns the snapshots of a run ordered by tick then layer.
func (s *MemoryStore) Snapshots(ctx context.Context, runID string) ([]LayerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.snapshots[runID])
	slices.SortStableFunc(out, func(a, b LayerSnapshot) int {
		if a.Tick != b.Tick {
			if a.Tick < b.Tick {
				return -1
			}
			return 1
		}
		return a.Layer - b.Layer
	})
	return out, nil
}

// RecordConnections appends grown connections.
func (s *MemoryStore) RecordConnections(ctx context.Context, conns []Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range conns {
		if _, exists := s.runs[c.RunID]; !exists {
			return fmt.Errorf("run not found: %s", c.RunID)
		}
	}
	for _, c := range conns {
		s.connections[c.RunID] = append(s.connections[c.RunID], c)
	}
	return nil
}

// Connections returns the connections of a run in recording order.
func (s *MemoryStore) Connections(ctx context.Context, runID string) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.connections[runID]), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
