// Package store records simulation runs: per-layer snapshots taken on a
// tick cadence and the connections grown along the way. It observes the
// simulation; nothing in the core reads it back.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/neurogrow/internal/models"
)

// Run describes one simulation run.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	Config     string     `json:"config,omitempty"` // YAML of the effective configuration
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Ticks      int64      `json:"ticks"`
}

// LayerSnapshot is the state of one layer at one tick.
type LayerSnapshot struct {
	RunID       string `json:"run_id"`
	Tick        int64  `json:"tick"`
	Layer       int    `json:"layer"`
	Role        string `json:"role"`
	HalfSide    int    `json:"half_side"`
	Neurons     int    `json:"neurons"`
	Connections int    `json:"connections"`
	Memories    int    `json:"memories"`

	// Run-wide counters at the same tick, repeated on every layer row.
	GrowthBacklog     int   `json:"growth_backlog"`
	SignalsDispatched int64 `json:"signals_dispatched"`
	SignalsDropped    int64 `json:"signals_dropped"`
}

// Connection is a link formed by an arriving growth hop.
type Connection struct {
	RunID    string          `json:"run_id"`
	Tick     int64           `json:"tick"`
	From     models.Position `json:"from"`
	To       models.Position `json:"to"`
	Distance float64         `json:"distance"`
}

// Store persists runs, snapshots and connections.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, ticks int64, finishedAt time.Time) error
	GetRun(ctx context.Context, id string) (*Run, error) // nil, nil when not found
	ListRuns(ctx context.Context) ([]Run, error)

	// Snapshots are returned ordered by tick then layer.
	RecordSnapshots(ctx context.Context, snaps []LayerSnapshot) error
	Snapshots(ctx context.Context, runID string) ([]LayerSnapshot, error)

	// Connections are returned in recording order.
	RecordConnections(ctx context.Context, conns []Connection) error
	Connections(ctx context.Context, runID string) ([]Connection, error)

	Close() error
}

// Backend names accepted by NewStore.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// NewStore creates a store of the given kind. path is only used by the
// sqlite backend.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
