package growth

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/models"
)

// Segment is one hop of a growth process: a connection growing from Source
// to Target. Progress increases by the current speed on every advance and
// the segment has arrived once progress reaches the hop distance.
type Segment struct {
	ProcessID uuid.UUID
	Source    models.Position
	Target    models.Position

	total float64
	curve decay.SpeedCurve

	mu            sync.Mutex
	progress      float64
	reinforcement int
	speed         float64
}

func newSegment(processID uuid.UUID, source, target models.Position, curve decay.SpeedCurve) *Segment {
	s := &Segment{
		ProcessID:     processID,
		Source:        source,
		Target:        target,
		total:         source.Distance(target),
		curve:         curve,
		reinforcement: 1,
	}
	s.speed = curve.Speed(s.reinforcement)
	return s
}

// Reinforce records another request for this hop, raising its speed along
// the logistic curve. It returns the new reinforcement count.
func (s *Segment) Reinforce() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reinforcement++
	s.speed = s.curve.Speed(s.reinforcement)
	return s.reinforcement
}

// Advance moves the segment forward by its speed and reports whether it has
// arrived.
func (s *Segment) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress += s.speed
	return s.progress >= s.total
}

// Progress returns the distance covered so far.
func (s *Segment) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Speed returns the distance covered per tick.
func (s *Segment) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Reinforcements returns the reinforcement count, starting at 1.
func (s *Segment) Reinforcements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reinforcement
}

// TotalDistance returns the hop length.
func (s *Segment) TotalDistance() float64 {
	return s.total
}

func (s *Segment) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("Segment(%s -> %s, progress=%.2f/%.2f, speed=%.2f)",
		s.Source, s.Target, s.progress, s.total, s.speed)
}
