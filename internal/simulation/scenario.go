package simulation

import (
	"errors"
	"fmt"
	"os"

	"github.com/nvandessel/neurogrow/internal/models"
	"gopkg.in/yaml.v3"
)

// Scenario scripts a run: where neurons start, when they are stimulated and
// which connections are asked to grow.
type Scenario struct {
	Name string `yaml:"name" json:"name"`

	// Ticks is the default run length when the caller does not set one.
	Ticks int64 `yaml:"ticks" json:"ticks"`

	Seeds   []SeedSpec     `yaml:"seeds" json:"seeds"`
	Stimuli []StimulusSpec `yaml:"stimuli" json:"stimuli"`
	Growth  []GrowthSpec   `yaml:"growth" json:"growth"`
	Matches []MatchSpec    `yaml:"matches" json:"matches"`
}

// SeedSpec places initial neurons before the first tick. Either At names a
// single position, or Random scatters that many neurons over Layer.
type SeedSpec struct {
	At     *models.Position `yaml:"at,omitempty" json:"at,omitempty"`
	Layer  int              `yaml:"layer,omitempty" json:"layer,omitempty"`
	Random int              `yaml:"random,omitempty" json:"random,omitempty"`
}

// StimulusSpec injects an external signal. It fires at Tick, then every
// Every ticks until Until (inclusive) when those are set.
type StimulusSpec struct {
	Tick       int64           `yaml:"tick" json:"tick"`
	Every      int64           `yaml:"every,omitempty" json:"every,omitempty"`
	Until      int64           `yaml:"until,omitempty" json:"until,omitempty"`
	At         models.Position `yaml:"at" json:"at"`
	Excitatory float64         `yaml:"excitatory" json:"excitatory"`
	Reward     float64         `yaml:"reward,omitempty" json:"reward,omitempty"`
}

// GrowthSpec requests growth from the neuron at From toward To.
type GrowthSpec struct {
	Tick int64           `yaml:"tick" json:"tick"`
	From models.Position `yaml:"from" json:"from"`
	To   models.Position `yaml:"to" json:"to"`
}

// MatchSpec assigns growth between two point sets by minimum total
// distance. Every edge of the cover becomes a growth request from an input
// neuron to an output position.
type MatchSpec struct {
	Tick    int64             `yaml:"tick" json:"tick"`
	Inputs  []models.Position `yaml:"inputs" json:"inputs"`
	Outputs []models.Position `yaml:"outputs" json:"outputs"`
}

// Active reports whether the stimulus fires at tick.
func (s StimulusSpec) Active(tick int64) bool {
	if tick < s.Tick {
		return false
	}
	if tick == s.Tick {
		return true
	}
	if s.Every <= 0 || (s.Until > 0 && tick > s.Until) {
		return false
	}
	return (tick-s.Tick)%s.Every == 0
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for structural mistakes. Positions are
// checked against the network when the scenario runs.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Ticks < 0 {
		errs = append(errs, fmt.Errorf("ticks must be non-negative, got %d", s.Ticks))
	}
	for i, seed := range s.Seeds {
		switch {
		case seed.At != nil && seed.Random > 0:
			errs = append(errs, fmt.Errorf("seeds[%d]: set either at or random, not both", i))
		case seed.At == nil && seed.Random <= 0:
			errs = append(errs, fmt.Errorf("seeds[%d]: needs at or a positive random count", i))
		}
	}
	for i, st := range s.Stimuli {
		if st.Tick < 0 || st.Every < 0 || st.Until < 0 {
			errs = append(errs, fmt.Errorf("stimuli[%d]: tick, every and until must be non-negative", i))
		}
		if st.Until > 0 && st.Until < st.Tick {
			errs = append(errs, fmt.Errorf("stimuli[%d]: until %d is before tick %d", i, st.Until, st.Tick))
		}
	}
	for i, g := range s.Growth {
		if g.Tick < 0 {
			errs = append(errs, fmt.Errorf("growth[%d]: tick must be non-negative", i))
		}
	}
	for i, m := range s.Matches {
		if m.Tick < 0 {
			errs = append(errs, fmt.Errorf("matches[%d]: tick must be non-negative", i))
		}
		if len(m.Inputs) == 0 || len(m.Outputs) == 0 {
			errs = append(errs, fmt.Errorf("matches[%d]: inputs and outputs must not be empty", i))
		}
	}
	return errors.Join(errs...)
}
