package neural

import (
	"fmt"

	"github.com/nvandessel/neurogrow/internal/models"
)

// Memory records the outputs a neuron produced when it fired. Reinforcement
// promotes it from short-term to long-term and finally to fixed; a fixed
// memory is never modified or forgotten.
type Memory struct {
	Outputs            map[models.Position]models.Signal
	ReinforcementCount int
	LongTerm           bool
	Fixed              bool
	UpdateTime         int64
}

// reinforce bumps the counter and applies the promotion thresholds.
func (m *Memory) reinforce(now int64, cfg NeuronConfig) {
	if m.Fixed {
		return
	}
	m.ReinforcementCount++
	m.UpdateTime = now
	switch {
	case !m.LongTerm && m.ReinforcementCount >= cfg.LongTermThreshold:
		m.LongTerm = true
	case m.LongTerm && m.ReinforcementCount >= cfg.FixedThreshold:
		m.Fixed = true
	}
}

func (m *Memory) translation(cfg NeuronConfig) float64 {
	if m.LongTerm {
		return cfg.LongTermTranslation
	}
	return cfg.ShortTermTranslation
}

func (m *Memory) String() string {
	return fmt.Sprintf("Memory(outputs=%d, longTerm=%t, reinforced=%d, fixed=%t)",
		len(m.Outputs), m.LongTerm, m.ReinforcementCount, m.Fixed)
}
