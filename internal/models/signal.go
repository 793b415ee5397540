package models

import "fmt"

// Slot layout of a Signal. Payloads are opaque beyond these two slots.
const (
	SignalExcitatory = 0 // excitatory (positive) or inhibitory (negative) magnitude
	SignalReward     = 1 // reward signal
	SignalLength     = 2
)

// Signal is a dense numeric payload carried between neurons.
type Signal []float64

// NewSignal builds a signal from an excitatory magnitude and a reward value.
func NewSignal(excitatory, reward float64) Signal {
	return Signal{excitatory, reward}
}

// Validate reports whether the signal has exactly SignalLength slots.
func (s Signal) Validate() error {
	if len(s) != SignalLength {
		return fmt.Errorf("signal has %d slots, want %d", len(s), SignalLength)
	}
	return nil
}

// Excitatory returns the excitatory slot, or 0 for a malformed signal.
func (s Signal) Excitatory() float64 {
	if len(s) <= SignalExcitatory {
		return 0
	}
	return s[SignalExcitatory]
}

// Reward returns the reward slot, or 0 for a malformed signal.
func (s Signal) Reward() float64 {
	if len(s) <= SignalReward {
		return 0
	}
	return s[SignalReward]
}

// Clone returns an independent copy.
func (s Signal) Clone() Signal {
	if s == nil {
		return nil
	}
	out := make(Signal, len(s))
	copy(out, s)
	return out
}

// Scale multiplies every slot by f in place.
func (s Signal) Scale(f float64) {
	for i := range s {
		s[i] *= f
	}
}

// Add accumulates o into s slot by slot. Extra slots in o are ignored.
func (s Signal) Add(o Signal) {
	for i := range s {
		if i >= len(o) {
			return
		}
		s[i] += o[i]
	}
}
