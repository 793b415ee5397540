package neural

import "github.com/nvandessel/neurogrow/internal/models"

// SignalEvent is a signal in transit. It is created on firing and discarded
// once delivered.
type SignalEvent struct {
	Source   models.Position
	Target   *Neuron
	Signal   models.Signal
	Distance float64
	TimeSeq  float64
}

// Dispatcher accepts signal events for delivery. Submit reports whether the
// event was accepted.
type Dispatcher interface {
	Submit(ev SignalEvent) bool
}

// Resolver finds the neuron currently occupying a position.
type Resolver interface {
	NeuronAt(pos models.Position) *Neuron
}
