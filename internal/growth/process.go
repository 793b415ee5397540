package growth

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/nvandessel/neurogrow/internal/models"
)

// requestKey identifies a growth request. Requests with the same key share
// one process.
type requestKey struct {
	source models.Position
	target models.Position
}

// Process is a multi-hop growth from an existing neuron at Origin along
// Path, which excludes Origin and ends at the requested target. Only the
// tick goroutine advances it.
type Process struct {
	ID     uuid.UUID
	Origin models.Position
	Path   []models.Position

	key   requestKey
	index int
}

func newProcess(key requestKey, path []models.Position) *Process {
	return &Process{
		ID:     uuid.New(),
		Origin: key.source,
		Path:   slices.Clone(path),
		key:    key,
	}
}

// Complete reports whether every hop has arrived.
func (p *Process) Complete() bool {
	return p.index >= len(p.Path)
}

// NextStart returns where the next hop grows from.
func (p *Process) NextStart() models.Position {
	if p.index == 0 {
		return p.Origin
	}
	return p.Path[p.index-1]
}

// NextTarget returns where the next hop grows to. It must not be called on
// a complete process.
func (p *Process) NextTarget() models.Position {
	return p.Path[p.index]
}

// Hops returns how many hops have arrived.
func (p *Process) Hops() int {
	return p.index
}

func (p *Process) advance() {
	if !p.Complete() {
		p.index++
	}
}

func (p *Process) String() string {
	return fmt.Sprintf("Process(id=%s, origin=%s, hops=%d/%d)", p.ID, p.Origin, p.index, len(p.Path))
}
