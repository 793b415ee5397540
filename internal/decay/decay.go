// Package decay holds the scalar curves shared by neurons, the signal bus
// and growth segments: exponential distance decay, Ebbinghaus retention and
// the logistic growth-speed curve.
package decay

import "math"

// DefaultReceiveRate is the k used when a neuron receives a signal.
const DefaultReceiveRate = 0.001

// DefaultTransmitRate is the k used by the signal bus on the excitatory slot.
const DefaultTransmitRate = 0.1

// Exponential returns e^(-k * distance). Negative distances are treated as 0.
func Exponential(distance, k float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return math.Exp(-k * distance)
}

// Retention calculates the probability that a memory survives after elapsed
// ticks. Strength grows linearly with reinforcement:
//
//	R = clamp(e^(-elapsed / (reinforcement * scale)) + translation, 0, 1)
//
// An unreinforced memory has no strength and retains nothing. A non-positive
// elapsed time retains everything.
func Retention(elapsed float64, reinforcement int, translation, scale float64) float64 {
	if reinforcement <= 0 {
		return 0
	}
	if elapsed <= 0 {
		return 1
	}
	r := math.Exp(-elapsed/(float64(reinforcement)*scale)) + translation
	return clamp01(r)
}

// ForgetProbability is 1 - retention, clamped to [0, 1].
func ForgetProbability(retention float64) float64 {
	return clamp01(1 - retention)
}

// SpeedCurve describes a logistic growth speed bounded by MaxSpeed.
type SpeedCurve struct {
	BaseSpeed  float64 // speed with no bonus
	MaxSpeed   float64 // ceiling of base + bonus
	Steepness  float64 // k
	Midpoint   float64 // r0
	Multiplier float64 // scales the reinforcement count before the midpoint shift
}

// DefaultSpeedCurve returns the curve used by growth segments.
func DefaultSpeedCurve() SpeedCurve {
	return SpeedCurve{
		BaseSpeed:  1.0,
		MaxSpeed:   10.0,
		Steepness:  0.5,
		Midpoint:   10.0,
		Multiplier: 1.5,
	}
}

// Speed returns base + (max-base) / (1 + e^(-k*(multiplier*r - r0))).
func (c SpeedCurve) Speed(reinforcement int) float64 {
	bonus := c.MaxSpeed - c.BaseSpeed
	if bonus < 0 {
		bonus = 0
	}
	x := c.Multiplier*float64(reinforcement) - c.Midpoint
	return c.BaseSpeed + bonus/(1+math.Exp(-c.Steepness*x))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
