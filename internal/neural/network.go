package neural

import (
	"fmt"
	"slices"

	"github.com/nvandessel/neurogrow/internal/models"
)

// Network is the simulation context: the set of layers, routed by the Z of
// a position. Layers are fixed at construction; their contents are not.
type Network struct {
	layers  map[int]*Layer
	ordered []*Layer
}

// NewNetwork builds one layer per LayerSpec. Every layer resolves connection
// targets through the network so that signals can cross layers.
func NewNetwork(specs []LayerSpec, opts ...Option) (*Network, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("network needs at least one layer")
	}
	net := &Network{layers: make(map[int]*Layer, len(specs))}
	layerOpts := append(slices.Clone(opts), WithResolver(net))
	for _, spec := range specs {
		if _, dup := net.layers[spec.Index]; dup {
			return nil, fmt.Errorf("duplicate layer index %d", spec.Index)
		}
		l, err := NewLayer(spec, layerOpts...)
		if err != nil {
			return nil, fmt.Errorf("building layer: %w", err)
		}
		net.layers[spec.Index] = l
		net.ordered = append(net.ordered, l)
	}
	slices.SortFunc(net.ordered, func(a, b *Layer) int { return a.Index() - b.Index() })
	return net, nil
}

// DefaultLayerSpecs returns count default layer specs indexed from 0.
func DefaultLayerSpecs(count int) []LayerSpec {
	specs := make([]LayerSpec, count)
	for i := range specs {
		specs[i] = DefaultLayerSpec(i)
	}
	return specs
}

// Layer returns the layer at index z.
func (n *Network) Layer(z int) (*Layer, bool) {
	l, ok := n.layers[z]
	return l, ok
}

// Layers returns the layers in depth order.
func (n *Network) Layers() []*Layer {
	return slices.Clone(n.ordered)
}

// NeuronAt returns the neuron at pos, or nil.
func (n *Network) NeuronAt(pos models.Position) *Neuron {
	l, ok := n.layers[pos.Z]
	if !ok {
		return nil
	}
	return l.NeuronAt(pos)
}

// ConnectNeuronTo routes to the layer owning target. It returns nil when no
// layer owns target or target is out of that layer's bounds.
func (n *Network) ConnectNeuronTo(source *Neuron, target models.Position) *Neuron {
	l, ok := n.layers[target.Z]
	if !ok {
		return nil
	}
	return l.ConnectNeuronTo(source, target)
}

// Seed places a neuron at pos if absent.
func (n *Network) Seed(pos models.Position) *Neuron {
	l, ok := n.layers[pos.Z]
	if !ok {
		return nil
	}
	return l.Seed(pos)
}

// Stimulate delivers an external signal to the neuron at pos, stamped with
// its layer's current tick. It reports whether a neuron accepted it.
func (n *Network) Stimulate(pos models.Position, signal models.Signal) bool {
	l, ok := n.layers[pos.Z]
	if !ok {
		return false
	}
	target := l.NeuronAt(pos)
	if target == nil {
		return false
	}
	return target.Receive(SignalEvent{
		Source:  pos,
		Target:  target,
		Signal:  signal.Clone(),
		TimeSeq: float64(l.Now()),
	})
}

// Advance moves every layer to its next tick.
func (n *Network) Advance() {
	for _, l := range n.ordered {
		l.Advance()
	}
}

// Neurons returns every neuron across layers.
func (n *Network) Neurons() []*Neuron {
	var out []*Neuron
	for _, l := range n.ordered {
		out = append(out, l.Neurons()...)
	}
	return out
}

// Stats summarizes every layer in depth order.
func (n *Network) Stats() []LayerStats {
	out := make([]LayerStats, 0, len(n.ordered))
	for _, l := range n.ordered {
		out = append(out, l.Stats())
	}
	return out
}
