package neural

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/puzpuzpuz/xsync/v3"
)

// Role tags what a layer is used for. Roles carry no behaviour.
type Role int

const (
	RoleFeeling Role = iota
	RoleShallow
	RoleDeep
	RoleOutput
	RoleFeedback
)

var roleNames = map[Role]string{
	RoleFeeling:  "feeling",
	RoleShallow:  "shallow",
	RoleDeep:     "deep",
	RoleOutput:   "output",
	RoleFeedback: "feedback",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// MarshalText renders the role by name in JSON and YAML output.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseRole maps a role name to a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if strings.EqualFold(s, name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown layer role: %q", s)
}

// LayerSpec describes the bounds and expansion policy of a layer.
type LayerSpec struct {
	Index           int
	Role            Role
	InitialHalfSide int
	MaxHalfSide     int

	// GrowthThreshold is the occupancy fraction of the current plane
	// that triggers an expansion attempt.
	GrowthThreshold float64

	// GrowthFactors are tried largest first.
	GrowthFactors []float64
}

// DefaultGrowthFactors are the multipliers tried when a layer expands.
var DefaultGrowthFactors = []float64{1.5, 1.4, 1.3, 1.2, 1.1}

// DefaultLayerSpec returns the LayerSpec used for layer index when nothing is
// configured: five roles in depth order, half side 16 growing to 32.
func DefaultLayerSpec(index int) LayerSpec {
	role := Role(index)
	if index < 0 || index > int(RoleFeedback) {
		role = RoleDeep
	}
	return LayerSpec{
		Index:           index,
		Role:            role,
		InitialHalfSide: 16,
		MaxHalfSide:     32,
		GrowthThreshold: 0.85,
		GrowthFactors:   slices.Clone(DefaultGrowthFactors),
	}
}

// Validate checks the layer bounds and growth factors.
func (s LayerSpec) Validate() error {
	if s.InitialHalfSide <= 0 {
		return fmt.Errorf("layer %d: initial half side must be positive, got %d", s.Index, s.InitialHalfSide)
	}
	if s.MaxHalfSide < s.InitialHalfSide {
		return fmt.Errorf("layer %d: max half side %d is below initial %d", s.Index, s.MaxHalfSide, s.InitialHalfSide)
	}
	if s.GrowthThreshold < 0 || s.GrowthThreshold > 1 {
		return fmt.Errorf("layer %d: growth threshold must be between 0 and 1, got %f", s.Index, s.GrowthThreshold)
	}
	if len(s.GrowthFactors) == 0 {
		return fmt.Errorf("layer %d: at least one growth factor is required", s.Index)
	}
	for _, f := range s.GrowthFactors {
		if f <= 1 {
			return fmt.Errorf("layer %d: growth factors must exceed 1, got %f", s.Index, f)
		}
	}
	return nil
}

// Layer is a bounded square plane of neurons at depth Index. Its half side
// only grows, never beyond MaxHalfSide, and each position holds at most one
// neuron. Layer also owns the tick counter its neurons use as a clock.
type Layer struct {
	spec     LayerSpec
	opts     options
	neurons  *xsync.MapOf[models.Position, *Neuron]
	halfSide atomic.Int64
	tick     atomic.Int64
	expandMu sync.Mutex
}

// LayerStats is a point-in-time summary of a layer.
type LayerStats struct {
	Index       int
	Role        Role
	HalfSide    int
	MaxHalfSide int
	Neurons     int
	Connections int
	Memories    int
	Tick        int64
}

// NewLayer builds a layer from its LayerSpec.
func NewLayer(spec LayerSpec, opts ...Option) (*Layer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.neuron.Validate(); err != nil {
		return nil, fmt.Errorf("layer %d: %w", spec.Index, err)
	}

	spec.GrowthFactors = slices.Clone(spec.GrowthFactors)
	slices.SortFunc(spec.GrowthFactors, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})

	l := &Layer{
		spec:    spec,
		opts:    o,
		neurons: xsync.NewMapOf[models.Position, *Neuron](),
	}
	l.halfSide.Store(int64(spec.InitialHalfSide))
	return l, nil
}

// Index returns the layer's depth, the Z of every position it holds.
func (l *Layer) Index() int { return l.spec.Index }

// Role returns the layer's role tag.
func (l *Layer) Role() Role { return l.spec.Role }

// HalfSide returns the current bound on |x| and |y|.
func (l *Layer) HalfSide() int { return int(l.halfSide.Load()) }

// MaxHalfSide returns the ceiling of HalfSide.
func (l *Layer) MaxHalfSide() int { return l.spec.MaxHalfSide }

// Len returns the number of neurons.
func (l *Layer) Len() int { return l.neurons.Size() }

// Now returns the current tick.
func (l *Layer) Now() int64 { return l.tick.Load() }

// Advance increments the tick counter and returns the new tick.
func (l *Layer) Advance() int64 { return l.tick.Add(1) }

// InBounds reports whether pos lies on this layer within the current bound.
func (l *Layer) InBounds(pos models.Position) bool {
	h := l.halfSide.Load()
	return pos.Z == l.spec.Index && abs(int64(pos.X)) <= h && abs(int64(pos.Y)) <= h
}

// Has reports whether a neuron occupies pos.
func (l *Layer) Has(pos models.Position) bool {
	return l.NeuronAt(pos) != nil
}

// NeuronAt returns the neuron at pos, or nil when pos is empty or out of
// bounds.
func (l *Layer) NeuronAt(pos models.Position) *Neuron {
	if !l.InBounds(pos) {
		return nil
	}
	n, _ := l.neurons.Load(pos)
	return n
}

// Seed places a neuron at pos if absent and returns the occupant, or nil
// when pos is out of bounds.
func (l *Layer) Seed(pos models.Position) *Neuron {
	n, _ := l.place(pos)
	return n
}

// ConnectNeuronTo makes sure a neuron occupies newPos, connects source to
// it and returns the occupant. The first writer wins a race for newPos;
// later callers connect to that neuron. An out-of-bounds newPos returns nil
// and changes nothing.
func (l *Layer) ConnectNeuronTo(source *Neuron, newPos models.Position) *Neuron {
	occupant, created := l.place(newPos)
	if occupant == nil {
		return nil
	}
	if source != nil {
		source.Connect(occupant.coord)
	}
	if created {
		l.opts.logger.Debug("neuron grown", "layer", l.spec.Index, "position", newPos.String())
	}
	return occupant
}

// place inserts a neuron at pos if absent and attempts expansion after a
// fresh insert.
func (l *Layer) place(pos models.Position) (*Neuron, bool) {
	if !l.InBounds(pos) {
		return nil, false
	}
	n, loaded := l.neurons.LoadOrCompute(pos, func() *Neuron {
		return newNeuron(pos, l)
	})
	if !loaded && l.needsExpansion() {
		l.tryExpand()
	}
	return n, !loaded
}

// needsExpansion reports whether occupancy of the current plane reached
// the growth threshold while there is still room to grow.
func (l *Layer) needsExpansion() bool {
	h := l.halfSide.Load()
	if h >= int64(l.spec.MaxHalfSide) {
		return false
	}
	side := 2*h + 1
	occupancy := float64(l.neurons.Size()) / float64(side*side)
	return occupancy >= l.spec.GrowthThreshold
}

// tryExpand grows the half side by the largest factor that still increases
// it. Contending callers skip rather than wait, and the winner re-checks
// the condition after acquiring the lock.
func (l *Layer) tryExpand() bool {
	if !l.expandMu.TryLock() {
		return false
	}
	defer l.expandMu.Unlock()

	if !l.needsExpansion() {
		return false
	}
	current := l.halfSide.Load()
	for _, factor := range l.spec.GrowthFactors {
		target := min(int64(float64(current)*factor), int64(l.spec.MaxHalfSide))
		if target <= current {
			continue
		}
		if !l.halfSide.CompareAndSwap(current, target) {
			l.opts.logger.Warn("layer expansion lost race", "layer", l.spec.Index, "observed", current)
			return false
		}
		l.opts.logger.Info("layer expanded",
			"layer", l.spec.Index, "from", current, "to", target, "factor", factor)
		l.opts.decisions.Log(map[string]any{
			"event":  "layer_expanded",
			"layer":  l.spec.Index,
			"from":   current,
			"to":     target,
			"factor": factor,
		})
		return true
	}
	l.opts.logger.Debug("layer expansion found no larger bound", "layer", l.spec.Index, "half_side", current)
	return false
}

// Neurons returns the current neurons in no particular order.
func (l *Layer) Neurons() []*Neuron {
	out := make([]*Neuron, 0, l.neurons.Size())
	l.neurons.Range(func(_ models.Position, n *Neuron) bool {
		out = append(out, n)
		return true
	})
	return out
}

// RandomPositions samples n distinct positions inside the current bound,
// one per equal-width stratum of the row-major index space. It returns nil
// when n is not positive or exceeds the number of positions.
func (l *Layer) RandomPositions(n int) []models.Position {
	h := l.halfSide.Load()
	side := 2*h + 1
	total := side * side
	if n <= 0 || int64(n) > total {
		return nil
	}
	interval := total / int64(n)

	out := make([]models.Position, 0, n)
	for i := int64(0); i < int64(n); i++ {
		start := i * interval
		end := min((i+1)*interval, total)
		idx := start + int64(l.opts.rand()*float64(end-start))
		if idx >= end {
			idx = end - 1
		}
		out = append(out, models.Position{
			X: int(idx/side - h),
			Y: int(idx%side - h),
			Z: l.spec.Index,
		})
	}
	return out
}

// Stats summarizes the layer.
func (l *Layer) Stats() LayerStats {
	st := LayerStats{
		Index:       l.spec.Index,
		Role:        l.spec.Role,
		HalfSide:    l.HalfSide(),
		MaxHalfSide: l.spec.MaxHalfSide,
		Tick:        l.Now(),
	}
	l.neurons.Range(func(_ models.Position, n *Neuron) bool {
		st.Neurons++
		st.Connections += n.ConnectionCount()
		st.Memories += n.MemoryCount()
		return true
	})
	return st
}

func (l *Layer) String() string {
	return fmt.Sprintf("Layer(index=%d, role=%s, halfSide=%d, maxHalfSide=%d, neurons=%d, tick=%d)",
		l.spec.Index, l.spec.Role, l.HalfSide(), l.spec.MaxHalfSide, l.Len(), l.Now())
}

// resolve looks a connection target up through the configured resolver.
func (l *Layer) resolve(pos models.Position) *Neuron {
	if l.opts.resolver != nil {
		return l.opts.resolver.NeuronAt(pos)
	}
	return l.NeuronAt(pos)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
