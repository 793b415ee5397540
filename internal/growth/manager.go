// Package growth turns requests to connect an existing neuron to a distant
// position into multi-hop growth processes that advance on a fixed tick.
//
// Each request is routed by the pathfinder. Every hop becomes a Segment
// that gains distance on each tick; when it arrives the network places (or
// reuses) a neuron at the hop target and connects the hop source to it.
// Hops of one process are strictly sequential. Repeating an active request
// only speeds up the hop in flight.
package growth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/logging"
	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/neural"
	"github.com/nvandessel/neurogrow/internal/pathfind"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrManagerStopped is returned when starting a stopped manager.
var ErrManagerStopped = errors.New("growth manager stopped")

// Network is the neuron container growth mutates.
type Network interface {
	NeuronAt(pos models.Position) *neural.Neuron
	ConnectNeuronTo(source *neural.Neuron, target models.Position) *neural.Neuron
}

// Config tunes the growth scheduler.
type Config struct {
	// TickInterval is the period of the scheduler. Default: 50ms.
	TickInterval time.Duration

	// Speed maps a hop's reinforcement count to distance per tick.
	Speed decay.SpeedCurve

	// QueueCapacity bounds new hops waiting for the next tick. Default: 16384.
	QueueCapacity int
}

// DefaultConfig returns the default scheduler parameters.
func DefaultConfig() Config {
	return Config{
		TickInterval:  50 * time.Millisecond,
		Speed:         decay.DefaultSpeedCurve(),
		QueueCapacity: 16384,
	}
}

// ConnectFunc observes a connection formed by an arriving hop.
type ConnectFunc func(from, to *neural.Neuron)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDecisionLogger enables JSONL tracing of growth decisions.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(m *Manager) { m.decisions = dl }
}

// WithOnConnect registers a listener called from the tick goroutine each
// time a hop arrives and connects two neurons.
func WithOnConnect(fn ConnectFunc) Option {
	return func(m *Manager) { m.onConnect = fn }
}

// Stats counts what the manager has done.
type Stats struct {
	Requested       int64 // requests that started a process
	Reinforced      int64 // requests folded into an active process
	Unroutable      int64 // requests with no path
	Dropped         int64 // requests rejected while stopped or with a full queue
	Arrived         int64 // hops that reached their target
	Completed       int64 // processes whose last hop arrived
	Failed          int64 // hops abandoned after a panic
	ActiveProcesses int
	ActiveSegments  int
}

// Manager schedules growth processes. RequestGrowth is safe from any
// goroutine; segment and process state is only advanced by Advance, which
// is serialized.
type Manager struct {
	cfg       Config
	net       Network
	paths     *pathfind.Pathfinder
	rowOffset int
	colOffset int

	logger    *slog.Logger
	decisions *logging.DecisionLogger
	onConnect ConnectFunc

	processes *xsync.MapOf[uuid.UUID, *Process]
	byKey     *xsync.MapOf[requestKey, *Process]
	inFlight  *xsync.MapOf[uuid.UUID, *Segment]
	intake    *xsync.MPMCQueueOf[*Segment]

	tickMu sync.Mutex
	active []*Segment

	stopped atomic.Bool
	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	requested, reinforced, unroutable, dropped, arrived, completed, failed atomic.Int64
}

// NewManager creates a manager growing into net along routes from paths.
// Layer planes are centred on the origin, so grid row r maps to Y = r -
// rows/2 and grid column c to X = c - cols/2.
func NewManager(net Network, paths *pathfind.Pathfinder, cfg Config, opts ...Option) (*Manager, error) {
	if net == nil {
		return nil, errors.New("growth manager needs a network")
	}
	if paths == nil {
		return nil, errors.New("growth manager needs a pathfinder")
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.Speed == (decay.SpeedCurve{}) {
		cfg.Speed = def.Speed
	}
	if cfg.Speed.MaxSpeed < cfg.Speed.BaseSpeed || cfg.Speed.BaseSpeed <= 0 {
		return nil, fmt.Errorf("growth speed curve needs 0 < base (%v) <= max (%v)",
			cfg.Speed.BaseSpeed, cfg.Speed.MaxSpeed)
	}

	m := &Manager{
		cfg:       cfg,
		net:       net,
		paths:     paths,
		rowOffset: paths.Rows() / 2,
		colOffset: paths.Cols() / 2,
		logger:    slog.New(slog.DiscardHandler),
		processes: xsync.NewMapOf[uuid.UUID, *Process](),
		byKey:     xsync.NewMapOf[requestKey, *Process](),
		inFlight:  xsync.NewMapOf[uuid.UUID, *Segment](),
		intake:    xsync.NewMPMCQueueOf[*Segment](cfg.QueueCapacity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ToGrid converts a layer position to pathfinder grid coordinates.
func (m *Manager) ToGrid(pos models.Position) models.Position {
	return models.Position{X: pos.X + m.colOffset, Y: pos.Y + m.rowOffset, Z: pos.Z}
}

// FromGrid converts pathfinder grid coordinates to a layer position.
func (m *Manager) FromGrid(pt models.Position) models.Position {
	return models.Position{X: pt.X - m.colOffset, Y: pt.Y - m.rowOffset, Z: pt.Z}
}

// RequestGrowth asks for source to grow a connection to target. If the same
// request is already in progress, the hop in flight is reinforced instead.
// Unroutable requests are ignored. Completion is observable only through
// the network or the connect listener.
func (m *Manager) RequestGrowth(source *neural.Neuron, target models.Position) {
	if source == nil {
		return
	}
	if m.stopped.Load() {
		m.dropped.Add(1)
		return
	}
	key := requestKey{source: source.Coordinate(), target: target}

	if existing, ok := m.byKey.Load(key); ok {
		m.reinforce(existing)
		return
	}

	route, _, ok := m.paths.FindPath(m.ToGrid(key.source), m.ToGrid(target))
	if !ok || len(route) < 2 {
		m.unroutable.Add(1)
		m.logger.Debug("growth request has no route", "source", key.source.String(), "target", target.String())
		return
	}
	path := make([]models.Position, 0, len(route)-1)
	for _, pt := range route[1:] {
		path = append(path, m.FromGrid(pt))
	}

	proc := newProcess(key, path)
	if existing, loaded := m.byKey.LoadOrStore(key, proc); loaded {
		m.reinforce(existing)
		return
	}
	m.processes.Store(proc.ID, proc)

	if !m.enqueue(proc) {
		m.forget(proc)
		m.dropped.Add(1)
		m.logger.Warn("growth queue full, request dropped", "source", key.source.String(), "target", target.String())
		return
	}
	// Stop may have cleared the maps while this request was registering.
	if m.stopped.Load() {
		m.forget(proc)
		m.dropped.Add(1)
		return
	}
	m.requested.Add(1)
	m.logger.Debug("growth process started", "process", proc.ID.String(), "hops", len(path))
	m.decisions.Log(map[string]any{
		"event":   "growth_requested",
		"process": proc.ID.String(),
		"source":  key.source.String(),
		"target":  target.String(),
		"hops":    len(path),
	})
}

func (m *Manager) reinforce(proc *Process) {
	m.reinforced.Add(1)
	seg, ok := m.inFlight.Load(proc.ID)
	if !ok {
		return
	}
	count := seg.Reinforce()
	m.logger.Log(context.Background(), logging.LevelTrace, "growth reinforced",
		"process", proc.ID.String(), "reinforcement", count)
	m.decisions.Log(map[string]any{
		"event":         "growth_reinforced",
		"process":       proc.ID.String(),
		"reinforcement": count,
		"speed":         seg.Speed(),
	})
}

// enqueue hands the next hop of proc to the scheduler.
func (m *Manager) enqueue(proc *Process) bool {
	if proc.Complete() {
		return false
	}
	seg := newSegment(proc.ID, proc.NextStart(), proc.NextTarget(), m.cfg.Speed)
	m.inFlight.Store(proc.ID, seg)
	if !m.intake.TryEnqueue(seg) {
		m.inFlight.Delete(proc.ID)
		return false
	}
	return true
}

// forget removes all bookkeeping for proc.
func (m *Manager) forget(proc *Process) {
	m.inFlight.Delete(proc.ID)
	m.processes.Delete(proc.ID)
	m.byKey.Delete(proc.key)
}

// Advance runs one scheduler tick: every active hop moves forward, arrived
// hops connect their neurons and schedule the next hop of their process,
// and finished processes are removed. Next hops start moving on the
// following tick. It returns how many hops arrived. A stopped manager does
// nothing.
func (m *Manager) Advance() int {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if m.stopped.Load() {
		return 0
	}

	for {
		seg, ok := m.intake.TryDequeue()
		if !ok {
			break
		}
		m.active = append(m.active, seg)
	}

	var next []*Process
	kept := m.active[:0]
	arrivals := 0
	for _, seg := range m.active {
		arrived, proc, err := m.step(seg)
		switch {
		case err != nil:
			m.failed.Add(1)
			m.logger.Warn("growth segment abandoned", "process", seg.ProcessID.String(), "error", err)
			if p, ok := m.processes.Load(seg.ProcessID); ok {
				m.forget(p)
			}
		case !arrived:
			kept = append(kept, seg)
		default:
			arrivals++
			if proc != nil && !proc.Complete() {
				next = append(next, proc)
			}
		}
	}
	clear(m.active[len(kept):])
	m.active = kept

	for _, proc := range next {
		seg := newSegment(proc.ID, proc.NextStart(), proc.NextTarget(), m.cfg.Speed)
		m.inFlight.Store(proc.ID, seg)
		m.active = append(m.active, seg)
	}
	return arrivals
}

// step advances one segment and handles its arrival. Panics are returned as
// errors so one bad hop cannot stop the tick.
func (m *Manager) step(seg *Segment) (arrived bool, proc *Process, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic advancing segment: %v", r)
		}
	}()
	if !seg.Advance() {
		return false, nil, nil
	}
	m.arrived.Add(1)
	m.inFlight.Delete(seg.ProcessID)

	if src := m.net.NeuronAt(seg.Source); src != nil {
		if dst := m.net.ConnectNeuronTo(src, seg.Target); dst != nil {
			m.logger.Log(context.Background(), logging.LevelTrace, "growth hop connected",
				"from", seg.Source.String(), "to", seg.Target.String())
			if m.onConnect != nil {
				m.onConnect(src, dst)
			}
		} else {
			m.logger.Debug("growth hop target out of bounds", "target", seg.Target.String())
		}
	}

	proc, ok := m.processes.Load(seg.ProcessID)
	if !ok {
		return true, nil, nil
	}
	proc.advance()
	m.decisions.Log(map[string]any{
		"event":   "segment_arrived",
		"process": proc.ID.String(),
		"target":  seg.Target.String(),
		"hop":     proc.Hops(),
	})
	if proc.Complete() {
		m.forget(proc)
		m.completed.Add(1)
		m.logger.Debug("growth process complete", "process", proc.ID.String())
		m.decisions.Log(map[string]any{
			"event":   "growth_completed",
			"process": proc.ID.String(),
			"origin":  proc.Origin.String(),
			"target":  proc.key.target.String(),
		})
	}
	return true, proc, nil
}

// Start launches the tick goroutine. Calling Start twice is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return ErrManagerStopped
	}
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.done != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		_ = m.Run(ctx)
	}()
	return nil
}

// Run ticks every TickInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Advance()
		}
	}
}

// Stop cancels the tick and clears every queue and map. Hops in flight are
// abandoned, not completed. Later requests are dropped.
func (m *Manager) Stop() {
	m.stopped.Store(true)

	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.runMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	for {
		if _, ok := m.intake.TryDequeue(); !ok {
			break
		}
	}
	abandoned := len(m.active)
	m.active = nil
	m.processes.Clear()
	m.byKey.Clear()
	m.inFlight.Clear()
	if abandoned > 0 {
		m.logger.Info("growth stopped with hops in flight", "abandoned", abandoned)
	}
}

// ActiveProcesses returns the number of processes in progress.
func (m *Manager) ActiveProcesses() int {
	return m.processes.Size()
}

// InFlight returns the hop currently growing for process id.
func (m *Manager) InFlight(id uuid.UUID) (*Segment, bool) {
	return m.inFlight.Load(id)
}

// ProcessInfo is a snapshot of a process in progress.
type ProcessInfo struct {
	ID     uuid.UUID
	Origin models.Position
	Target models.Position
	Hops   int
	Length int
}

// Processes returns snapshots of the processes in progress in no
// particular order.
func (m *Manager) Processes() []ProcessInfo {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	out := make([]ProcessInfo, 0, m.processes.Size())
	m.processes.Range(func(_ uuid.UUID, p *Process) bool {
		out = append(out, ProcessInfo{
			ID:     p.ID,
			Origin: p.Origin,
			Target: p.key.target,
			Hops:   p.index,
			Length: len(p.Path),
		})
		return true
	})
	return out
}

// Stats returns the manager counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Requested:       m.requested.Load(),
		Reinforced:      m.reinforced.Load(),
		Unroutable:      m.unroutable.Load(),
		Dropped:         m.dropped.Load(),
		Arrived:         m.arrived.Load(),
		Completed:       m.completed.Load(),
		Failed:          m.failed.Load(),
		ActiveProcesses: m.processes.Size(),
		ActiveSegments:  m.inFlight.Size(),
	}
}
