package neural

import (
	"fmt"
	"sync"

	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/memlist"
	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/rangestore"
	"github.com/puzpuzpuz/xsync/v3"
)

// Neuron is a positioned entity with outgoing connections, a per-tick
// signal buffer and a recency-ordered memory of its firings.
//
// Connections are only ever added. The coordinate never changes.
type Neuron struct {
	coord       models.Position
	layer       *Layer
	connections *xsync.MapOf[models.Position, float64]
	inbox       *rangestore.Store[models.Signal]

	mu       sync.Mutex
	memories *memlist.List[int64, *Memory]
}

func newNeuron(coord models.Position, layer *Layer) *Neuron {
	// Width is validated when the layer is built.
	inbox, _ := rangestore.New[models.Signal](layer.opts.neuron.BucketWidth)
	return &Neuron{
		coord:       coord,
		layer:       layer,
		connections: xsync.NewMapOf[models.Position, float64](),
		inbox:       inbox,
		memories:    memlist.New[int64, *Memory](),
	}
}

// Coordinate returns the neuron's fixed position.
func (n *Neuron) Coordinate() models.Position {
	return n.coord
}

// Connect records an outgoing connection to pos with its Euclidean
// distance. Connecting to itself is ignored; reconnecting overwrites.
func (n *Neuron) Connect(pos models.Position) {
	if pos == n.coord {
		return
	}
	n.connections.Store(pos, n.coord.Distance(pos))
}

// ConnectionTo returns the recorded distance to pos.
func (n *Neuron) ConnectionTo(pos models.Position) (float64, bool) {
	return n.connections.Load(pos)
}

// Connections returns a copy of the outgoing connections.
func (n *Neuron) Connections() map[models.Position]float64 {
	out := make(map[models.Position]float64, n.connections.Size())
	n.connections.Range(func(pos models.Position, dist float64) bool {
		out[pos] = dist
		return true
	})
	return out
}

// ConnectionCount returns the number of outgoing connections.
func (n *Neuron) ConnectionCount() int {
	return n.connections.Size()
}

// Receive decays an incoming signal by the distance from its source and
// buffers it under the event's time bucket. Malformed payloads are dropped.
func (n *Neuron) Receive(ev SignalEvent) bool {
	if ev.Signal.Validate() != nil {
		return false
	}
	ev.Signal.Scale(decay.Exponential(ev.Source.Distance(n.coord), n.layer.opts.neuron.ReceiveDecay))
	n.inbox.Put(ev.TimeSeq, ev.Signal)
	return true
}

// Pending returns the number of signals buffered in the bucket of tick.
func (n *Neuron) Pending(tick float64) int {
	return n.inbox.Count(tick)
}

// ProcessReceivedSignals takes every signal buffered for tick, sums them and
// fires when the excitatory sum exceeds the active threshold. Buckets older
// than tick are discarded. It reports whether the neuron fired.
func (n *Neuron) ProcessReceivedSignals(tick float64) bool {
	signals := n.inbox.TakeAll(tick)
	n.inbox.Prune(tick)
	if len(signals) == 0 {
		return false
	}

	sum := make(models.Signal, models.SignalLength)
	for _, s := range signals {
		sum.Add(s)
	}
	if sum.Excitatory() <= n.layer.opts.neuron.ActiveThreshold {
		return false
	}
	n.activate(sum)
	return true
}

// activate sends a decayed copy of the triggering signal along every
// connection whose position is occupied, then remembers the outputs.
func (n *Neuron) activate(trigger models.Signal) {
	cfg := n.layer.opts.neuron
	now := n.layer.Now()

	outputs := make(map[models.Position]models.Signal, n.connections.Size())
	distances := make(map[models.Position]float64, n.connections.Size())
	n.connections.Range(func(pos models.Position, dist float64) bool {
		s := trigger.Clone()
		s.Scale(decay.Exponential(dist, cfg.ReceiveDecay))
		outputs[pos] = s
		distances[pos] = dist
		return true
	})

	sent := 0
	if d := n.layer.opts.dispatcher; d != nil {
		for pos, s := range outputs {
			target := n.layer.resolve(pos)
			if target == nil {
				continue
			}
			ev := SignalEvent{
				Source:   n.coord,
				Target:   target,
				Signal:   s.Clone(),
				Distance: distances[pos],
				TimeSeq:  float64(now + 1),
			}
			if d.Submit(ev) {
				sent++
			}
		}
	}

	n.mu.Lock()
	n.memories.PutToHead(now, &Memory{Outputs: outputs, UpdateTime: now})
	if m, ok := n.memories.First(); ok {
		m.reinforce(now, cfg)
	}
	n.mu.Unlock()

	n.layer.opts.decisions.Log(map[string]any{
		"event":      "neuron_fired",
		"neuron":     n.coord.String(),
		"tick":       now,
		"excitatory": trigger.Excitatory(),
		"sent":       sent,
	})
}

// NaturalForget evicts non-fixed memories with probability 1 - retention,
// where retention follows an Ebbinghaus curve over the ticks elapsed since
// the memory formed. It returns how many memories were forgotten.
//
// Nothing inside the neuron calls this; the simulation driver invokes it on
// a fixed cadence.
func (n *Neuron) NaturalForget() int {
	cfg := n.layer.opts.neuron
	now := n.layer.Now()

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.memories.Len() == 0 {
		return 0
	}
	var forget []int64
	for formed, m := range n.memories.All() {
		if m.Fixed {
			continue
		}
		elapsed := float64(now - formed)
		if elapsed <= 0 {
			continue
		}
		r := decay.Retention(elapsed, m.ReinforcementCount, m.translation(cfg), cfg.StrengthScale)
		if n.layer.opts.rand() < decay.ForgetProbability(r) {
			forget = append(forget, formed)
		}
	}
	for _, key := range forget {
		n.memories.Remove(key)
	}
	return len(forget)
}

// Memories returns a snapshot of the memories from most to least recent.
func (n *Neuron) Memories() []Memory {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Memory, 0, n.memories.Len())
	for _, m := range n.memories.All() {
		out = append(out, *m)
	}
	return out
}

// MemoryCount returns the number of retained memories.
func (n *Neuron) MemoryCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.memories.Len()
}

func (n *Neuron) String() string {
	return fmt.Sprintf("Neuron(coordinate=%s, connections=%d, memories=%d)",
		n.coord, n.ConnectionCount(), n.MemoryCount())
}
