package neural

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrTransmitterStopped is returned when starting a stopped transmitter.
var ErrTransmitterStopped = errors.New("transmitter stopped")

// TransmitterConfig tunes the signal bus.
type TransmitterConfig struct {
	// DecayRate is the k of e^(-k*distance) applied to the excitatory slot. Default: 0.1.
	DecayRate float64

	// BatchSize bounds how many events one cycle delivers. Default: 500.
	BatchSize int

	// IdleSleep is how long the consumer sleeps when the queue is empty. Default: 100us.
	IdleSleep time.Duration

	// QueueCapacity bounds the queue; submissions beyond it are dropped. Default: 65536.
	QueueCapacity int

	// ShutdownTimeout bounds how long Stop waits for the consumer. Default: 5s.
	ShutdownTimeout time.Duration
}

// DefaultTransmitterConfig returns the default bus parameters.
func DefaultTransmitterConfig() TransmitterConfig {
	return TransmitterConfig{
		DecayRate:       decay.DefaultTransmitRate,
		BatchSize:       500,
		IdleSleep:       100 * time.Microsecond,
		QueueCapacity:   65536,
		ShutdownTimeout: 5 * time.Second,
	}
}

// TransmitterStats counts what the bus has done.
type TransmitterStats struct {
	Submitted  int64
	Dispatched int64
	Dropped    int64 // rejected at submit: stopped or queue full
	Failed     int64 // malformed events skipped by the consumer
	Discarded  int64 // still queued at shutdown
	Pending    int64
}

// Transmitter is the process-wide signal bus. Any goroutine may Submit; a
// single consumer decays and delivers events in FIFO batches.
type Transmitter struct {
	cfg       TransmitterConfig
	queue     *xsync.MPMCQueueOf[SignalEvent]
	logger    *slog.Logger
	decisions *logging.DecisionLogger

	// receive hands an event to its target; tests swap it to stall delivery.
	receive func(*Neuron, SignalEvent) bool

	accepting atomic.Bool
	stopped   atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	submitted, dispatched, dropped, failed, discarded, pending atomic.Int64
}

// NewTransmitter creates a bus that accepts events immediately; delivery
// starts with Start or Run.
func NewTransmitter(cfg TransmitterConfig, logger *slog.Logger, decisions *logging.DecisionLogger) *Transmitter {
	def := DefaultTransmitterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = def.IdleSleep
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Transmitter{
		cfg:       cfg,
		queue:     xsync.NewMPMCQueueOf[SignalEvent](cfg.QueueCapacity),
		logger:    logger,
		decisions: decisions,
		receive:   (*Neuron).Receive,
	}
	t.accepting.Store(true)
	return t
}

// Submit enqueues ev without blocking. It returns false when the bus is
// stopped or full.
func (t *Transmitter) Submit(ev SignalEvent) bool {
	if !t.accepting.Load() {
		t.dropped.Add(1)
		return false
	}
	if !t.queue.TryEnqueue(ev) {
		t.dropped.Add(1)
		t.logger.Debug("signal queue full, event dropped", "source", ev.Source.String())
		t.decisions.Log(map[string]any{"event": "signal_dropped", "source": ev.Source.String()})
		return false
	}
	t.submitted.Add(1)
	t.pending.Add(1)
	return true
}

// Start launches the consumer goroutine. Calling Start twice is a no-op.
func (t *Transmitter) Start(ctx context.Context) error {
	if t.stopped.Load() {
		return ErrTransmitterStopped
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		_ = t.Run(ctx)
	}()
	return nil
}

// Run delivers events until ctx is cancelled. It never returns an error for
// a bad event; those are logged and skipped.
func (t *Transmitter) Run(ctx context.Context) error {
	idle := time.NewTimer(t.cfg.IdleSleep)
	defer idle.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if t.ProcessBatch() > 0 {
			continue
		}
		idle.Reset(t.cfg.IdleSleep)
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
		}
	}
}

// ProcessBatch delivers up to BatchSize queued events and returns how many
// it took off the queue.
func (t *Transmitter) ProcessBatch() int {
	taken := 0
	for taken < t.cfg.BatchSize {
		ev, ok := t.queue.TryDequeue()
		if !ok {
			break
		}
		t.pending.Add(-1)
		taken++
		if err := t.deliver(ev); err != nil {
			t.failed.Add(1)
			t.logger.Warn("signal event skipped", "source", ev.Source.String(), "error", err)
			continue
		}
		t.dispatched.Add(1)
	}
	return taken
}

// deliver decays the excitatory slot by the event distance and hands the
// event to its target. Panics are converted to errors.
func (t *Transmitter) deliver(ev SignalEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic delivering signal: %v", r)
		}
	}()
	if ev.Target == nil {
		return errors.New("signal event has no target")
	}
	if err := ev.Signal.Validate(); err != nil {
		return err
	}
	ev.Signal[0] *= decay.Exponential(ev.Distance, t.cfg.DecayRate)
	if !t.receive(ev.Target, ev) {
		return fmt.Errorf("target %s rejected signal", ev.Target.Coordinate())
	}
	return nil
}

// Stop rejects new events, waits up to ShutdownTimeout for the consumer to
// exit, then discards whatever is still queued. A consumer that does not
// exit in time is abandoned and an error is returned.
func (t *Transmitter) Stop() error {
	t.accepting.Store(false)
	t.stopped.Store(true)

	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(t.cfg.ShutdownTimeout):
			err = fmt.Errorf("signal consumer did not stop within %v", t.cfg.ShutdownTimeout)
		}
	}

	cleaned := 0
	for {
		if _, ok := t.queue.TryDequeue(); !ok {
			break
		}
		t.pending.Add(-1)
		cleaned++
	}
	t.discarded.Add(int64(cleaned))
	if cleaned > 0 {
		t.logger.Info("discarded queued signal events at shutdown", "count", cleaned)
	}
	return err
}

// Settled reports whether every accepted event has been delivered or
// skipped. Events taken off the queue count only once their delivery ends.
func (t *Transmitter) Settled() bool {
	return t.dispatched.Load()+t.failed.Load() >= t.submitted.Load()
}

// Stats returns the bus counters.
func (t *Transmitter) Stats() TransmitterStats {
	return TransmitterStats{
		Submitted:  t.submitted.Load(),
		Dispatched: t.dispatched.Load(),
		Dropped:    t.dropped.Load(),
		Failed:     t.failed.Load(),
		Discarded:  t.discarded.Load(),
		Pending:    t.pending.Load(),
	}
}
