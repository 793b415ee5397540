package neural

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/neurogrow/internal/decay"
	"github.com/nvandessel/neurogrow/internal/logging"
)

// NeuronConfig holds the firing and memory parameters shared by every
// neuron of a layer.
type NeuronConfig struct {
	// ActiveThreshold is the excitatory sum a neuron must exceed to fire. Default: 0.8.
	ActiveThreshold float64

	// ReceiveDecay is the k of e^(-k*distance) applied on receipt and per
	// outgoing connection. Default: 0.001.
	ReceiveDecay float64

	// BucketWidth is the width of the time buckets incoming signals are
	// grouped by. Default: 1 (one bucket per tick).
	BucketWidth float64

	// LongTermThreshold is the reinforcement count promoting a memory to
	// long-term. Default: 3.
	LongTermThreshold int

	// FixedThreshold is the reinforcement count fixing a long-term memory
	// forever. Default: 20.
	FixedThreshold int

	// ShortTermTranslation and LongTermTranslation shift retention upward.
	// Defaults: 0 and 0.5.
	ShortTermTranslation float64
	LongTermTranslation  float64

	// StrengthScale converts reinforcement count into forgetting-curve
	// strength, in ticks. Default: 1000.
	StrengthScale float64
}

// DefaultNeuronConfig returns the default neuron parameters.
func DefaultNeuronConfig() NeuronConfig {
	return NeuronConfig{
		ActiveThreshold:      0.8,
		ReceiveDecay:         decay.DefaultReceiveRate,
		BucketWidth:          1,
		LongTermThreshold:    3,
		FixedThreshold:       20,
		ShortTermTranslation: 0,
		LongTermTranslation:  0.5,
		StrengthScale:        1000,
	}
}

// Validate checks the neuron parameters.
func (c NeuronConfig) Validate() error {
	if !(c.BucketWidth > 0) {
		return fmt.Errorf("bucket width must be positive, got %v", c.BucketWidth)
	}
	if c.ReceiveDecay < 0 {
		return fmt.Errorf("receive decay must be non-negative, got %v", c.ReceiveDecay)
	}
	if c.LongTermThreshold <= 0 || c.FixedThreshold < c.LongTermThreshold {
		return fmt.Errorf("memory thresholds must satisfy 0 < long-term (%d) <= fixed (%d)",
			c.LongTermThreshold, c.FixedThreshold)
	}
	if !(c.StrengthScale > 0) {
		return fmt.Errorf("strength scale must be positive, got %v", c.StrengthScale)
	}
	return nil
}

// Option configures layers and networks.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	decisions  *logging.DecisionLogger
	dispatcher Dispatcher
	resolver   Resolver
	neuron     NeuronConfig
	rand       func() float64
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.DiscardHandler),
		neuron: DefaultNeuronConfig(),
		rand:   rand.Float64,
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDecisionLogger enables JSONL tracing of expansions and firings.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(o *options) { o.decisions = dl }
}

// WithDispatcher sets where firing neurons submit their signal events.
// Without one, firings are recorded in memory but nothing is sent.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithResolver sets how neurons look up connection targets. A Network sets
// itself; a standalone layer resolves within itself.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithNeuronConfig overrides the neuron parameters.
func WithNeuronConfig(c NeuronConfig) Option {
	return func(o *options) { o.neuron = c }
}

// WithRand injects the uniform [0,1) source used for forgetting and
// position sampling. It must be safe for concurrent use unless the caller
// serializes access.
func WithRand(f func() float64) Option {
	return func(o *options) {
		if f != nil {
			o.rand = f
		}
	}
}
