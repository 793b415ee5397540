package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/neurogrow/internal/config"
	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/growth"
	"github.com/nvandessel/neurogrow/internal/logging"
	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/neural"
	"github.com/nvandessel/neurogrow/internal/pathfind"
	"github.com/nvandessel/neurogrow/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrEngineUsed is returned when Run is called on an engine that already ran.
var ErrEngineUsed = errors.New("simulation engine already ran")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger. Components log under their own
// component name.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDecisionLogger enables JSONL tracing across every component. The
// caller keeps ownership and closes it.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(e *Engine) { e.decisions = dl }
}

// WithStore records the run in s instead of the configured backend. The
// caller keeps ownership of s.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRand injects the uniform source used for forgetting and random seeds.
func WithRand(f func() float64) Option {
	return func(e *Engine) { e.rand = f }
}

// WithRealtime lets growth advance on its own wall-clock tick instead of
// once per simulation tick. The driver then paces simulation ticks to the
// growth tick interval.
func WithRealtime(on bool) Option {
	return func(e *Engine) { e.realtime = on }
}

// Engine wires a network, its signal bus, the growth manager and a run
// store from one configuration, and drives them tick by tick.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	rand      func() float64
	realtime  bool

	net    *neural.Network
	bus    *neural.Transmitter
	growth *growth.Manager
	paths  *pathfind.Pathfinder

	store     store.Store
	ownsStore bool

	runID   string
	tick    atomic.Int64
	used    atomic.Bool
	fired   atomic.Int64
	forgot  atomic.Int64
	grown   atomic.Int64
	lastSet int64 // tick of the last snapshot, -1 before the first

	connMu sync.Mutex
	conns  []store.Connection
}

// NewEngine validates cfg and builds every component from it.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("simulation needs a configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{cfg: cfg, lastSet: -1}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	specs, err := LayerSpecs(cfg)
	if err != nil {
		return nil, err
	}

	e.bus = neural.NewTransmitter(TransmitterConfig(cfg),
		logging.Component(e.logger, "transmitter"), e.decisions)

	netOpts := []neural.Option{
		neural.WithLogger(logging.Component(e.logger, "layer")),
		neural.WithDecisionLogger(e.decisions),
		neural.WithDispatcher(e.bus),
		neural.WithNeuronConfig(NeuronConfig(cfg)),
	}
	if e.rand != nil {
		netOpts = append(netOpts, neural.WithRand(e.rand))
	}
	if e.net, err = neural.NewNetwork(specs, netOpts...); err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}

	if e.paths, err = pathfind.New(cfg.Grid.Layers, cfg.Grid.Rows, cfg.Grid.Cols); err != nil {
		return nil, fmt.Errorf("building pathfinder: %w", err)
	}

	e.growth, err = growth.NewManager(e.net, e.paths, GrowthConfig(cfg),
		growth.WithLogger(logging.Component(e.logger, "growth")),
		growth.WithDecisionLogger(e.decisions),
		growth.WithOnConnect(e.recordConnection),
	)
	if err != nil {
		return nil, fmt.Errorf("building growth manager: %w", err)
	}

	if e.store == nil {
		if e.store, err = store.NewStore(cfg.Store.Backend, cfg.Store.Path); err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.ownsStore = true
	}
	return e, nil
}

// LayerSpecs converts the configured layers.
func LayerSpecs(cfg *config.Config) ([]neural.LayerSpec, error) {
	specs := make([]neural.LayerSpec, 0, len(cfg.Layers))
	for _, l := range cfg.Layers {
		role, err := neural.ParseRole(l.Role)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", l.Index, err)
		}
		specs = append(specs, neural.LayerSpec{
			Index:           l.Index,
			Role:            role,
			InitialHalfSide: l.InitialHalfSide,
			MaxHalfSide:     l.MaxHalfSide,
			GrowthThreshold: l.GrowthThreshold,
			GrowthFactors:   l.GrowthFactors,
		})
	}
	return specs, nil
}

// NeuronConfig converts the configured neuron parameters.
func NeuronConfig(cfg *config.Config) neural.NeuronConfig {
	n := cfg.Neuron
	return neural.NeuronConfig{
		ActiveThreshold:      n.ActiveThreshold,
		ReceiveDecay:         n.ReceiveDecay,
		BucketWidth:          n.BucketWidth,
		LongTermThreshold:    n.LongTermThreshold,
		FixedThreshold:       n.FixedThreshold,
		ShortTermTranslation: n.ShortTermTranslation,
		LongTermTranslation:  n.LongTermTranslation,
		StrengthScale:        n.StrengthScale,
	}
}

// TransmitterConfig converts the configured bus parameters.
func TransmitterConfig(cfg *config.Config) neural.TransmitterConfig {
	t := cfg.Transmission
	return neural.TransmitterConfig{
		DecayRate:       t.DecayRate,
		BatchSize:       t.BatchSize,
		IdleSleep:       t.IdleSleep,
		QueueCapacity:   t.QueueCapacity,
		ShutdownTimeout: t.ShutdownTimeout,
	}
}

// GrowthConfig converts the configured scheduler parameters.
func GrowthConfig(cfg *config.Config) growth.Config {
	g := cfg.Growth
	return growth.Config{
		TickInterval: g.TickInterval,
		Speed: decay.SpeedCurve{
			BaseSpeed:  g.BaseSpeed,
			MaxSpeed:   g.MaxSpeed,
			Steepness:  g.Steepness,
			Midpoint:   g.Midpoint,
			Multiplier: g.Multiplier,
		},
		QueueCapacity: g.QueueCapacity,
	}
}

// Network returns the simulated network.
func (e *Engine) Network() *neural.Network { return e.net }

// Growth returns the growth manager.
func (e *Engine) Growth() *growth.Manager { return e.growth }

// Transmitter returns the signal bus.
func (e *Engine) Transmitter() *neural.Transmitter { return e.bus }

// Store returns the run store.
func (e *Engine) Store() store.Store { return e.store }

// Tick returns the current simulation tick.
func (e *Engine) Tick() int64 { return e.tick.Load() }

// Run plays sc for ticks ticks (sc.Ticks when ticks is not positive) and
// records the run. The signal consumer runs beside the tick driver; each
// tick waits for the bus to settle so that every signal fired at tick t is
// buffered before tick t+1 is processed. An engine runs once.
func (e *Engine) Run(ctx context.Context, sc *Scenario, ticks int64) (*Result, error) {
	if sc == nil {
		return nil, fmt.Errorf("simulation needs a scenario")
	}
	if ticks <= 0 {
		ticks = sc.Ticks
	}
	if ticks <= 0 {
		return nil, fmt.Errorf("scenario %q has no tick count", sc.Name)
	}
	if !e.used.CompareAndSwap(false, true) {
		return nil, ErrEngineUsed
	}

	started := time.Now()
	e.runID = uuid.NewString()
	cfgYAML, err := e.cfg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	if err := e.store.CreateRun(ctx, store.Run{
		ID:        e.runID,
		Scenario:  sc.Name,
		Config:    string(cfgYAML),
		StartedAt: started,
	}); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	e.logger.Info("run started", "run", e.runID, "scenario", sc.Name, "ticks", ticks)

	seeded, err := e.seed(sc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("network seeded", "neurons", seeded)

	g, gctx := errgroup.WithContext(ctx)
	loops, stopLoops := context.WithCancel(gctx)
	g.Go(func() error { return e.bus.Run(loops) })
	if e.realtime {
		g.Go(func() error { return e.growth.Run(loops) })
	}
	g.Go(func() error {
		defer stopLoops()
		return e.drive(gctx, sc, ticks)
	})
	runErr := g.Wait()

	// Record what the run reached even when it was cut short.
	finishCtx := context.WithoutCancel(ctx)
	if err := e.flushConnections(finishCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if e.lastSet != e.Tick() {
		if err := e.snapshot(finishCtx, e.Tick()); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := e.store.FinishRun(finishCtx, e.runID, e.Tick(), time.Now()); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("finishing run: %w", err))
	}

	res := e.result(sc.Name, time.Since(started))
	e.logger.Info("run finished", "run", e.runID, "ticks", res.Ticks,
		"fired", res.Fired, "connections", res.Connections, "elapsed", res.Elapsed)
	return res, runErr
}

// drive runs the tick loop.
func (e *Engine) drive(ctx context.Context, sc *Scenario, ticks int64) error {
	var pace *time.Ticker
	if e.realtime {
		pace = time.NewTicker(e.cfg.Growth.TickInterval)
		defer pace.Stop()
	}
	for i := int64(0); i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(ctx, sc); err != nil {
			return fmt.Errorf("tick %d: %w", e.Tick(), err)
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace.C:
			}
		}
	}
	return nil
}

// step plays one tick: scripted events, summation, bus settle, growth,
// forgetting and snapshots, then every layer moves to the next tick.
func (e *Engine) step(ctx context.Context, sc *Scenario) error {
	now := e.Tick()

	if err := e.applyEvents(sc, now); err != nil {
		return err
	}

	for _, n := range e.net.Neurons() {
		if e.process(n, now) {
			e.fired.Add(1)
		}
	}
	if err := e.settle(ctx); err != nil {
		return err
	}

	if !e.realtime {
		e.growth.Advance()
	}

	if every := int64(e.cfg.Simulation.ForgetEvery); every > 0 && now > 0 && now%every == 0 {
		forgot := 0
		for _, n := range e.net.Neurons() {
			forgot += n.NaturalForget()
		}
		e.forgot.Add(int64(forgot))
	}

	if err := e.flushConnections(ctx); err != nil {
		return err
	}
	if every := int64(e.cfg.Simulation.SnapshotEvery); every > 0 && now%every == 0 {
		if err := e.snapshot(ctx, now); err != nil {
			return err
		}
	}

	e.net.Advance()
	e.tick.Add(1)
	return nil
}

// process lets one neuron summate. A panic is logged and the neuron skipped.
func (e *Engine) process(n *neural.Neuron, now int64) (fired bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("neuron tick failed", "neuron", n.Coordinate().String(), "tick", now, "panic", r)
			fired = false
		}
	}()
	return n.ProcessReceivedSignals(float64(now))
}

// settle waits until the consumer has delivered or skipped every accepted
// event. The driver never dequeues, so the bus keeps a single consumer.
func (e *Engine) settle(ctx context.Context) error {
	poll := max(e.cfg.Transmission.IdleSleep, time.Microsecond)
	timer := time.NewTimer(poll)
	defer timer.Stop()
	for !e.bus.Settled() {
		timer.Reset(poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// seed places the scripted initial neurons and returns how many were asked for.
func (e *Engine) seed(sc *Scenario) (int, error) {
	count := 0
	for i, s := range sc.Seeds {
		if s.At != nil {
			if e.net.Seed(*s.At) == nil {
				return count, fmt.Errorf("seeds[%d]: %s is outside the network", i, s.At)
			}
			count++
			continue
		}
		l, ok := e.net.Layer(s.Layer)
		if !ok {
			return count, fmt.Errorf("seeds[%d]: no layer %d", i, s.Layer)
		}
		positions := l.RandomPositions(s.Random)
		if positions == nil {
			return count, fmt.Errorf("seeds[%d]: cannot place %d neurons in layer %d", i, s.Random, s.Layer)
		}
		for _, pos := range positions {
			l.Seed(pos)
		}
		count += len(positions)
	}
	return count, nil
}

// applyEvents injects the stimuli, growth requests and matches due at now.
func (e *Engine) applyEvents(sc *Scenario, now int64) error {
	for _, st := range sc.Stimuli {
		if !st.Active(now) {
			continue
		}
		if !e.net.Stimulate(st.At, models.NewSignal(st.Excitatory, st.Reward)) {
			e.logger.Debug("stimulus missed, no neuron", "at", st.At.String(), "tick", now)
		}
	}
	for _, g := range sc.Growth {
		if g.Tick != now {
			continue
		}
		e.requestGrowth(g.From, g.To)
	}
	for i, m := range sc.Matches {
		if m.Tick != now {
			continue
		}
		if err := e.match(m); err != nil {
			return fmt.Errorf("matches[%d]: %w", i, err)
		}
	}
	return nil
}

// match assigns growth from every input neuron to the outputs by minimum
// total distance and requests one growth per cover edge.
func (e *Engine) match(m MatchSpec) error {
	inputs := make([]models.Position, len(m.Inputs))
	for i, p := range m.Inputs {
		inputs[i] = e.growth.ToGrid(p)
	}
	outputs := make([]models.Position, len(m.Outputs))
	for i, p := range m.Outputs {
		outputs[i] = e.growth.ToGrid(p)
	}
	edges, total, err := pathfind.MatchPointsByMinCost(inputs, outputs, e.paths.Rows(), e.paths.Cols())
	if err != nil {
		return err
	}
	e.logger.Debug("matched growth", "inputs", len(inputs), "outputs", len(outputs),
		"edges", len(edges), "cost", total)
	for _, edge := range edges {
		e.requestGrowth(m.Inputs[edge.Input], m.Outputs[edge.Output])
	}
	return nil
}

func (e *Engine) requestGrowth(from, to models.Position) {
	source := e.net.NeuronAt(from)
	if source == nil {
		e.logger.Warn("growth request skipped, no neuron at source", "from", from.String(), "to", to.String())
		return
	}
	e.growth.RequestGrowth(source, to)
}

// recordConnection buffers a grown link until the end of the tick.
func (e *Engine) recordConnection(from, to *neural.Neuron) {
	e.grown.Add(1)
	if e.runID == "" {
		return
	}
	c := store.Connection{
		RunID:    e.runID,
		Tick:     e.Tick(),
		From:     from.Coordinate(),
		To:       to.Coordinate(),
		Distance: from.Coordinate().Distance(to.Coordinate()),
	}
	e.connMu.Lock()
	e.conns = append(e.conns, c)
	e.connMu.Unlock()
}

func (e *Engine) flushConnections(ctx context.Context) error {
	e.connMu.Lock()
	conns := e.conns
	e.conns = nil
	e.connMu.Unlock()
	if len(conns) == 0 {
		return nil
	}
	if err := e.store.RecordConnections(ctx, conns); err != nil {
		return fmt.Errorf("recording connections: %w", err)
	}
	return nil
}

// snapshot records one row per layer.
func (e *Engine) snapshot(ctx context.Context, now int64) error {
	backlog := e.growth.ActiveProcesses()
	bus := e.bus.Stats()
	layers := e.net.Stats()
	snaps := make([]store.LayerSnapshot, 0, len(layers))
	for _, l := range layers {
		snaps = append(snaps, store.LayerSnapshot{
			RunID:             e.runID,
			Tick:              now,
			Layer:             l.Index,
			Role:              l.Role.String(),
			HalfSide:          l.HalfSide,
			Neurons:           l.Neurons,
			Connections:       l.Connections,
			Memories:          l.Memories,
			GrowthBacklog:     backlog,
			SignalsDispatched: bus.Dispatched,
			SignalsDropped:    bus.Dropped,
		})
	}
	if err := e.store.RecordSnapshots(ctx, snaps); err != nil {
		return fmt.Errorf("recording snapshots: %w", err)
	}
	e.lastSet = now
	return nil
}

// Close stops the bus and the growth manager and closes a store the engine
// opened itself.
func (e *Engine) Close() error {
	e.growth.Stop()
	err := e.bus.Stop()
	if e.ownsStore {
		err = errors.Join(err, e.store.Close())
	}
	return err
}
