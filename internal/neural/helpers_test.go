package neural

import (
	"sync"
	"testing"

	"github.com/nvandessel/neurogrow/internal/models"
)

// recordingDispatcher captures submitted events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []SignalEvent
}

func (d *recordingDispatcher) Submit(ev SignalEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return true
}

func (d *recordingDispatcher) Events() []SignalEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SignalEvent, len(d.events))
	copy(out, d.events)
	return out
}

// newTestLayer builds a layer at index 0 and fails the test on error.
func newTestLayer(t *testing.T, spec LayerSpec, opts ...Option) *Layer {
	t.Helper()
	l, err := NewLayer(spec, opts...)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	return l
}

// smallSpec is a layer with a 5x5 plane that can grow to 9x9.
func smallSpec() LayerSpec {
	return LayerSpec{
		Index:           0,
		Role:            RoleFeeling,
		InitialHalfSide: 2,
		MaxHalfSide:     4,
		GrowthThreshold: 0.5,
		GrowthFactors:   []float64{1.5, 1.2},
	}
}

// seed places a neuron and fails the test when it cannot.
func seed(t *testing.T, l *Layer, pos models.Position) *Neuron {
	t.Helper()
	n := l.Seed(pos)
	if n == nil {
		t.Fatalf("Seed(%s) returned nil", pos)
	}
	return n
}
