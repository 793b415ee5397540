package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the database at dbPath and makes sure
// the schema is current.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// CreateRun adds a run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, config, started_at, ticks) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Config, formatTime(run.StartedAt), run.Ticks)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the end of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, ticks int64, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ticks = ?, finished_at = ? WHERE id = ?`,
		ticks, formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, config, started_at, finished_at, ticks FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scenario, config, started_at, finished_at, ticks FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		config     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Scenario, &config, &startedAt, &finishedAt, &run.Ticks); err != nil {
		return nil, err
	}
	run.Config = config.String
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// RecordSnapshots inserts layer snapshots in one transaction. A snapshot
// for a (run, tick, layer) already recorded is replaced.
func (s *SQLiteStore) RecordSnapshots(ctx context.Context, snaps []LayerSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO layer_snapshots (
			run_id, tick, layer, role, half_side, neurons, connections, memories,
			growth_backlog, signals_dispatched, signals_dropped
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		if _, err := stmt.ExecContext(ctx,
			snap.RunID, snap.Tick, snap.Layer, snap.Role, snap.HalfSide,
			snap.Neurons, snap.Connections, snap.Memories,
			snap.GrowthBacklog, snap.SignalsDispatched, snap.SignalsDropped,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot (tick %d, layer %d): %w", snap.Tick, snap.Layer, err)
		}
	}
	return tx.Commit()
}

// Snapshots returns the snapshots of a run ordered by tick then layer.
func (s *SQLiteStore) Snapshots(ctx context.Context, runID string) ([]LayerSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tick, layer, role, half_side, neurons, connections, memories,
		       growth_backlog, signals_dispatched, signals_dropped
		FROM layer_snapshots WHERE run_id = ? ORDER BY tick, layer`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []LayerSnapshot
	for rows.Next() {
		var snap LayerSnapshot
		if err := rows.Scan(
			&snap.RunID, &snap.Tick, &snap.Layer, &snap.Role, &snap.HalfSide,
			&snap.Neurons, &snap.Connections, &snap.Memories,
			&snap.GrowthBacklog, &snap.SignalsDispatched, &snap.SignalsDropped,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// RecordConnections inserts connections in one transaction.
func (s *SQLiteStore) RecordConnections(ctx context.Context, conns []Connection) error {
	if len(conns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO connections (run_id, tick, from_x, from_y, from_z, to_x, to_y, to_z, distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare connection insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range conns {
		if _, err := stmt.ExecContext(ctx,
			c.RunID, c.Tick, c.From.X, c.From.Y, c.From.Z, c.To.X, c.To.Y, c.To.Z, c.Distance,
		); err != nil {
			return fmt.Errorf("failed to insert connection %s -> %s: %w", c.From, c.To, err)
		}
	}
	return tx.Commit()
}

// Connections returns the connections of a run in recording order.
func (s *SQLiteStore) Connections(ctx context.Context, runID string) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tick, from_x, from_y, from_z, to_x, to_y, to_z, distance
		FROM connections WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(
			&c.RunID, &c.Tick, &c.From.X, &c.From.Y, &c.From.Z, &c.To.X, &c.To.Y, &c.To.Z, &c.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
