package neural

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nvandessel/neurogrow/internal/models"
)

func newTestTransmitter(t *testing.T, cfg TransmitterConfig) *Transmitter {
	t.Helper()
	tr := NewTransmitter(cfg, nil, nil)
	t.Cleanup(func() { _ = tr.Stop() })
	return tr
}

func TestTransmitter_DeliversWithDecay(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(1, 0, 0))
	tr := newTestTransmitter(t, DefaultTransmitterConfig())

	ok := tr.Submit(SignalEvent{
		Source:   models.Pos(0, 0, 0),
		Target:   target,
		Signal:   models.NewSignal(1, 1),
		Distance: 1,
		TimeSeq:  1,
	})
	if !ok {
		t.Fatal("Submit rejected")
	}
	if got := tr.ProcessBatch(); got != 1 {
		t.Fatalf("ProcessBatch() = %d, want 1", got)
	}

	signals := target.inbox.TakeAll(1)
	if len(signals) != 1 {
		t.Fatalf("target received %d signals, want 1", len(signals))
	}
	receive := math.Exp(-0.001)
	if want := math.Exp(-0.1) * receive; math.Abs(signals[0].Excitatory()-want) > 1e-12 {
		t.Errorf("excitatory = %f, want %f", signals[0].Excitatory(), want)
	}
	if math.Abs(signals[0].Reward()-receive) > 1e-12 {
		t.Errorf("reward = %f, want only receive decay %f", signals[0].Reward(), receive)
	}

	st := tr.Stats()
	if st.Submitted != 1 || st.Dispatched != 1 || st.Pending != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestTransmitter_BatchBound(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	cfg := DefaultTransmitterConfig()
	cfg.BatchSize = 10
	tr := newTestTransmitter(t, cfg)

	for range 25 {
		tr.Submit(SignalEvent{Source: target.Coordinate(), Target: target, Signal: models.NewSignal(1, 0)})
	}
	for i, want := range []int{10, 10, 5, 0} {
		if got := tr.ProcessBatch(); got != want {
			t.Errorf("batch %d = %d, want %d", i, got, want)
		}
	}
	if got := target.Pending(0); got != 25 {
		t.Errorf("target pending = %d, want 25", got)
	}
}

func TestTransmitter_SkipsMalformedEvents(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	tr := newTestTransmitter(t, DefaultTransmitterConfig())

	tr.Submit(SignalEvent{Signal: models.NewSignal(1, 0)})
	tr.Submit(SignalEvent{Target: target, Signal: models.Signal{1}})
	tr.Submit(SignalEvent{Target: target, Signal: models.Signal{1, 0, 7}})
	tr.Submit(SignalEvent{Target: target, Signal: models.Signal{1, 0, 0, 0}})
	tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)})

	if got := tr.ProcessBatch(); got != 5 {
		t.Fatalf("ProcessBatch() = %d, want 5", got)
	}
	st := tr.Stats()
	if st.Failed != 4 || st.Dispatched != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if target.Pending(0) != 1 {
		t.Error("valid event after malformed ones was not delivered")
	}
}

func TestTransmitter_QueueFullDrops(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	cfg := DefaultTransmitterConfig()
	cfg.QueueCapacity = 2
	tr := newTestTransmitter(t, cfg)

	accepted := 0
	for range 5 {
		if tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)}) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2", accepted)
	}
	if st := tr.Stats(); st.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", st.Dropped)
	}
}

func TestTransmitter_RunDelivers(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	tr := NewTransmitter(DefaultTransmitterConfig(), nil, nil)

	if err := tr.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for range 50 {
		tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)})
	}

	deadline := time.Now().Add(2 * time.Second)
	for tr.Stats().Dispatched < 50 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 50 events delivered", tr.Stats().Dispatched)
		}
		time.Sleep(time.Millisecond)
	}
	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if target.Pending(0) != 50 {
		t.Errorf("target pending = %d, want 50", target.Pending(0))
	}
}

func TestTransmitter_StopDiscardsAndRejects(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	tr := NewTransmitter(DefaultTransmitterConfig(), nil, nil)

	for range 4 {
		tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)})
	}
	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := tr.Stats()
	if st.Discarded != 4 || st.Pending != 0 {
		t.Errorf("unexpected stats after stop: %+v", st)
	}
	if tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)}) {
		t.Error("Submit accepted after Stop")
	}
	if err := tr.Start(t.Context()); !errors.Is(err, ErrTransmitterStopped) {
		t.Errorf("Start after Stop = %v, want ErrTransmitterStopped", err)
	}
	if target.Pending(0) != 0 {
		t.Error("discarded events reached the target")
	}
}

func TestTransmitter_Settled(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	tr := newTestTransmitter(t, DefaultTransmitterConfig())

	if !tr.Settled() {
		t.Fatal("empty bus should be settled")
	}
	tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0), TimeSeq: 1})
	tr.Submit(SignalEvent{Signal: models.NewSignal(1, 0), TimeSeq: 1})
	if tr.Settled() {
		t.Fatal("bus with queued events should not be settled")
	}
	tr.ProcessBatch()
	if !tr.Settled() {
		t.Errorf("bus should be settled once delivered and skipped events are counted: %+v", tr.Stats())
	}
}

func TestTransmitter_StopAbandonsStuckConsumer(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	target := seed(t, l, models.Pos(0, 0, 0))
	cfg := DefaultTransmitterConfig()
	cfg.ShutdownTimeout = 20 * time.Millisecond
	tr := NewTransmitter(cfg, nil, nil)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	tr.receive = func(n *Neuron, ev SignalEvent) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return n.Receive(ev)
	}

	if err := tr.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)})
	tr.Submit(SignalEvent{Target: target, Signal: models.NewSignal(1, 0)})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never started delivering")
	}

	start := time.Now()
	if err := tr.Stop(); err == nil {
		t.Fatal("Stop() expected timeout error for a stuck consumer")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v, want about the shutdown timeout", elapsed)
	}
	if st := tr.Stats(); st.Discarded != 1 || st.Pending != 0 {
		t.Errorf("unexpected stats after timeout: %+v", st)
	}

	close(release)
	select {
	case <-tr.done:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned consumer did not exit once unblocked")
	}
	if st := tr.Stats(); st.Dispatched != 1 {
		t.Errorf("Dispatched = %d, want the one event in flight", st.Dispatched)
	}
}
