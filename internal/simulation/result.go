package simulation

import (
	"time"

	"github.com/nvandessel/neurogrow/internal/growth"
	"github.com/nvandessel/neurogrow/internal/neural"
)

// Result summarizes a finished run.
type Result struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Ticks    int64         `json:"ticks"`
	Elapsed  time.Duration `json:"elapsed"`

	Fired       int64 `json:"fired"`       // neuron activations
	Forgotten   int64 `json:"forgotten"`   // memories evicted by forgetting
	Connections int64 `json:"connections"` // links formed by arriving hops

	Layers  []neural.LayerStats     `json:"layers"`
	Signals neural.TransmitterStats `json:"signals"`
	Growth  growth.Stats            `json:"growth"`
}

func (e *Engine) result(scenario string, elapsed time.Duration) *Result {
	return &Result{
		RunID:       e.runID,
		Scenario:    scenario,
		Ticks:       e.Tick(),
		Elapsed:     elapsed,
		Fired:       e.fired.Load(),
		Forgotten:   e.forgot.Load(),
		Connections: e.grown.Load(),
		Layers:      e.net.Stats(),
		Signals:     e.bus.Stats(),
		Growth:      e.growth.Stats(),
	}
}
