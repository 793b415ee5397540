package neural

import (
	"math"
	"testing"

	"github.com/nvandessel/neurogrow/internal/models"
)

func stimulate(t *testing.T, n *Neuron, excitatory float64) {
	t.Helper()
	ok := n.Receive(SignalEvent{
		Source:  n.Coordinate(),
		Target:  n,
		Signal:  models.NewSignal(excitatory, 0),
		TimeSeq: float64(n.layer.Now()),
	})
	if !ok {
		t.Fatal("Receive rejected a well-formed signal")
	}
}

func TestNeuron_ConnectIgnoresSelf(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	n.Connect(models.Pos(0, 0, 0))
	if n.ConnectionCount() != 0 {
		t.Errorf("self connection recorded")
	}

	n.Connect(models.Pos(0, 2, 0))
	dist, ok := n.ConnectionTo(models.Pos(0, 2, 0))
	if !ok || dist != 2 {
		t.Errorf("ConnectionTo = %f, %v, want 2, true", dist, ok)
	}
}

func TestNeuron_ReceiveDecaysByDistance(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	ok := n.Receive(SignalEvent{
		Source:  models.Pos(0, 0, 10),
		Target:  n,
		Signal:  models.NewSignal(1, 0.5),
		TimeSeq: 0,
	})
	if !ok {
		t.Fatal("Receive rejected signal")
	}
	if got := n.Pending(0); got != 1 {
		t.Fatalf("Pending(0) = %d, want 1", got)
	}

	signals := n.inbox.TakeAll(0)
	want := math.Exp(-0.001 * 10)
	if math.Abs(signals[0].Excitatory()-want) > 1e-12 {
		t.Errorf("excitatory = %f, want %f", signals[0].Excitatory(), want)
	}
	if math.Abs(signals[0].Reward()-0.5*want) > 1e-12 {
		t.Errorf("reward = %f, want %f", signals[0].Reward(), 0.5*want)
	}
}

func TestNeuron_ReceiveRejectsMalformed(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	if n.Receive(SignalEvent{Source: n.Coordinate(), Signal: models.Signal{1}}) {
		t.Error("short signal accepted")
	}
	if n.Receive(SignalEvent{Source: n.Coordinate(), Signal: models.Signal{1, 0, 7}}) {
		t.Error("long signal accepted")
	}
	if n.Pending(0) != 0 {
		t.Error("malformed signal buffered")
	}
}

func TestNeuron_ProcessBelowThreshold(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	if n.ProcessReceivedSignals(0) {
		t.Error("fired with no signals")
	}

	stimulate(t, n, 0.4)
	stimulate(t, n, 0.4)
	if n.ProcessReceivedSignals(0) {
		t.Error("fired at 0.8, threshold is strictly greater")
	}
	if n.MemoryCount() != 0 {
		t.Error("memory recorded without firing")
	}
	if n.Pending(0) != 0 {
		t.Error("bucket not consumed")
	}
}

func TestNeuron_FiringDispatchesToOccupiedTargets(t *testing.T) {
	d := &recordingDispatcher{}
	l := newTestLayer(t, smallSpec(), WithDispatcher(d))
	n := seed(t, l, models.Pos(0, 0, 0))
	occupied := l.ConnectNeuronTo(n, models.Pos(1, 0, 0))
	n.Connect(models.Pos(2, 0, 0))

	stimulate(t, n, 0.5)
	stimulate(t, n, 0.5)
	if !n.ProcessReceivedSignals(0) {
		t.Fatal("expected neuron to fire")
	}

	events := d.Events()
	if len(events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Target != occupied {
		t.Errorf("event targets %v, want %v", ev.Target, occupied)
	}
	if ev.Source != n.Coordinate() || ev.Distance != 1 || ev.TimeSeq != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if want := math.Exp(-0.001); math.Abs(ev.Signal.Excitatory()-want) > 1e-12 {
		t.Errorf("excitatory = %f, want %f", ev.Signal.Excitatory(), want)
	}

	mems := n.Memories()
	if len(mems) != 1 {
		t.Fatalf("memories = %d, want 1", len(mems))
	}
	if len(mems[0].Outputs) != 2 {
		t.Errorf("memory outputs = %d, want one per connection", len(mems[0].Outputs))
	}
	if mems[0].ReinforcementCount != 1 {
		t.Errorf("ReinforcementCount = %d, want 1", mems[0].ReinforcementCount)
	}
}

func TestNeuron_FiringWithoutDispatcher(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))
	l.ConnectNeuronTo(n, models.Pos(1, 0, 0))

	stimulate(t, n, 1)
	if !n.ProcessReceivedSignals(0) {
		t.Fatal("expected neuron to fire")
	}
	if n.MemoryCount() != 1 {
		t.Errorf("MemoryCount() = %d, want 1", n.MemoryCount())
	}
}

func TestNeuron_MemoryPromotion(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	fire := func(times int) {
		for range times {
			stimulate(t, n, 1)
			if !n.ProcessReceivedSignals(0) {
				t.Fatal("expected neuron to fire")
			}
		}
	}

	fire(2)
	if m := n.Memories()[0]; m.LongTerm || m.ReinforcementCount != 2 {
		t.Errorf("after 2 firings: %s", m.String())
	}

	fire(1)
	if m := n.Memories()[0]; !m.LongTerm || m.Fixed {
		t.Errorf("after 3 firings: %s", m.String())
	}

	fire(17)
	if m := n.Memories()[0]; !m.Fixed || m.ReinforcementCount != 20 {
		t.Errorf("after 20 firings: %s", m.String())
	}

	fire(5)
	if m := n.Memories()[0]; m.ReinforcementCount != 20 {
		t.Errorf("fixed memory changed: %s", m.String())
	}
	if n.MemoryCount() != 1 {
		t.Errorf("same-tick firings should share one memory, got %d", n.MemoryCount())
	}
}

func TestNeuron_MemoriesOrderedByRecency(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	for tick := int64(0); tick < 3; tick++ {
		stimulate(t, n, 1)
		if !n.ProcessReceivedSignals(float64(tick)) {
			t.Fatalf("tick %d: expected firing", tick)
		}
		l.Advance()
	}

	mems := n.Memories()
	if len(mems) != 3 {
		t.Fatalf("memories = %d, want 3", len(mems))
	}
	for i, want := range []int64{2, 1, 0} {
		if mems[i].UpdateTime != want {
			t.Errorf("memory %d UpdateTime = %d, want %d", i, mems[i].UpdateTime, want)
		}
	}
}

func TestNeuron_NaturalForget(t *testing.T) {
	tests := []struct {
		name       string
		rand       float64
		fixed      bool
		advance    bool
		wantKept   int
		wantForgot int
	}{
		{name: "certain draw forgets", rand: 0, advance: true, wantKept: 0, wantForgot: 1},
		{name: "high draw retains", rand: 0.999999, advance: true, wantKept: 1, wantForgot: 0},
		{name: "no elapsed time retains", rand: 0, advance: false, wantKept: 1, wantForgot: 0},
		{name: "fixed never forgotten", rand: 0, fixed: true, advance: true, wantKept: 1, wantForgot: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLayer(t, smallSpec(), WithRand(func() float64 { return tt.rand }))
			n := seed(t, l, models.Pos(0, 0, 0))

			firings := 1
			if tt.fixed {
				firings = 20
			}
			for range firings {
				stimulate(t, n, 1)
				n.ProcessReceivedSignals(0)
			}
			if tt.advance {
				l.Advance()
			}

			if got := n.NaturalForget(); got != tt.wantForgot {
				t.Errorf("NaturalForget() = %d, want %d", got, tt.wantForgot)
			}
			if got := n.MemoryCount(); got != tt.wantKept {
				t.Errorf("MemoryCount() = %d, want %d", got, tt.wantKept)
			}
		})
	}
}

func TestNeuron_NaturalForgetEmpty(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))
	if got := n.NaturalForget(); got != 0 {
		t.Errorf("NaturalForget() on empty = %d", got)
	}
}

func TestNeuron_ProcessPrunesStaleBuckets(t *testing.T) {
	l := newTestLayer(t, smallSpec())
	n := seed(t, l, models.Pos(0, 0, 0))

	n.Receive(SignalEvent{Source: n.Coordinate(), Signal: models.NewSignal(1, 0), TimeSeq: 0})
	n.Receive(SignalEvent{Source: n.Coordinate(), Signal: models.NewSignal(1, 0), TimeSeq: 5})

	n.ProcessReceivedSignals(3)
	if n.Pending(0) != 0 {
		t.Error("stale bucket survived processing")
	}
	if n.Pending(5) != 1 {
		t.Error("future bucket should be kept")
	}
}
