// Package config provides unified configuration loading for neurogrow.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all neurogrow configuration settings.
type Config struct {
	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Layers describes the stacked neuron planes, shallowest first.
	Layers []LayerConfig `json:"layers" yaml:"layers"`

	// Neuron contains firing and memory parameters shared by all neurons.
	Neuron NeuronConfig `json:"neuron" yaml:"neuron"`

	// Transmission tunes the signal bus.
	Transmission TransmissionConfig `json:"transmission" yaml:"transmission"`

	// Growth tunes the growth scheduler.
	Growth GrowthConfig `json:"growth" yaml:"growth"`

	// Grid sizes the pathfinding grid.
	Grid GridConfig `json:"grid" yaml:"grid"`

	// Simulation sets the cadence of the tick driver.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Store selects where run snapshots are recorded.
	Store StoreConfig `json:"store" yaml:"store"`
}

// LoggingConfig configures neurogrow's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <dir>/decisions.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl is written. Defaults to the store directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// LayerConfig describes one layer. Zero fields take the defaults.
type LayerConfig struct {
	Index           int       `json:"index" yaml:"index"`
	Role            string    `json:"role" yaml:"role"`
	InitialHalfSide int       `json:"initial_half_side" yaml:"initial_half_side"`
	MaxHalfSide     int       `json:"max_half_side" yaml:"max_half_side"`
	GrowthThreshold float64   `json:"growth_threshold" yaml:"growth_threshold"`
	GrowthFactors   []float64 `json:"growth_factors" yaml:"growth_factors,flow"`
}

// NeuronConfig holds neuron firing and memory parameters.
type NeuronConfig struct {
	ActiveThreshold      float64 `json:"active_threshold" yaml:"active_threshold"`
	ReceiveDecay         float64 `json:"receive_decay" yaml:"receive_decay"`
	BucketWidth          float64 `json:"bucket_width" yaml:"bucket_width"`
	LongTermThreshold    int     `json:"long_term_threshold" yaml:"long_term_threshold"`
	FixedThreshold       int     `json:"fixed_threshold" yaml:"fixed_threshold"`
	ShortTermTranslation float64 `json:"short_term_translation" yaml:"short_term_translation"`
	LongTermTranslation  float64 `json:"long_term_translation" yaml:"long_term_translation"`
	StrengthScale        float64 `json:"strength_scale" yaml:"strength_scale"`
}

// TransmissionConfig tunes the signal bus.
type TransmissionConfig struct {
	DecayRate       float64       `json:"decay_rate" yaml:"decay_rate"`
	BatchSize       int           `json:"batch_size" yaml:"batch_size"`
	IdleSleep       time.Duration `json:"idle_sleep" yaml:"idle_sleep"`
	QueueCapacity   int           `json:"queue_capacity" yaml:"queue_capacity"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// GrowthConfig tunes the growth scheduler and its speed curve.
type GrowthConfig struct {
	TickInterval  time.Duration `json:"tick_interval" yaml:"tick_interval"`
	BaseSpeed     float64       `json:"base_speed" yaml:"base_speed"`
	MaxSpeed      float64       `json:"max_speed" yaml:"max_speed"`
	Steepness     float64       `json:"steepness" yaml:"steepness"`
	Midpoint      float64       `json:"midpoint" yaml:"midpoint"`
	Multiplier    float64       `json:"multiplier" yaml:"multiplier"`
	QueueCapacity int           `json:"queue_capacity" yaml:"queue_capacity"`
}

// GridConfig sizes the pathfinding grid. The grid is centred on each
// layer's origin, so Rows and Cols should be odd.
type GridConfig struct {
	Layers int `json:"layers" yaml:"layers"`
	Rows   int `json:"rows" yaml:"rows"`
	Cols   int `json:"cols" yaml:"cols"`
}

// SimulationConfig sets how often the driver forgets and snapshots.
type SimulationConfig struct {
	// ForgetEvery runs natural forgetting every N ticks. 0 disables it.
	ForgetEvery int `json:"forget_every" yaml:"forget_every"`

	// SnapshotEvery records layer statistics every N ticks. 0 disables it.
	SnapshotEvery int `json:"snapshot_every" yaml:"snapshot_every"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	// Backend is "memory" (default) or "sqlite".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file. Supports ${VAR} syntax.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LayerRoles names the default layer roles in depth order.
var LayerRoles = []string{"feeling", "shallow", "deep", "output", "feedback"}

// DefaultLayer returns the default configuration for layer index.
func DefaultLayer(index int) LayerConfig {
	role := "deep"
	if index >= 0 && index < len(LayerRoles) {
		role = LayerRoles[index]
	}
	return LayerConfig{
		Index:           index,
		Role:            role,
		InitialHalfSide: 16,
		MaxHalfSide:     32,
		GrowthThreshold: 0.85,
		GrowthFactors:   []float64{1.5, 1.4, 1.3, 1.2, 1.1},
	}
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	layers := make([]LayerConfig, len(LayerRoles))
	for i := range layers {
		layers[i] = DefaultLayer(i)
	}
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Layers: layers,
		Neuron: NeuronConfig{
			ActiveThreshold:      0.8,
			ReceiveDecay:         0.001,
			BucketWidth:          1,
			LongTermThreshold:    3,
			FixedThreshold:       20,
			ShortTermTranslation: 0,
			LongTermTranslation:  0.5,
			StrengthScale:        1000,
		},
		Transmission: TransmissionConfig{
			DecayRate:       0.1,
			BatchSize:       500,
			IdleSleep:       100 * time.Microsecond,
			QueueCapacity:   65536,
			ShutdownTimeout: 5 * time.Second,
		},
		Growth: GrowthConfig{
			TickInterval:  50 * time.Millisecond,
			BaseSpeed:     1,
			MaxSpeed:      10,
			Steepness:     0.5,
			Midpoint:      10,
			Multiplier:    1.5,
			QueueCapacity: 16384,
		},
		Grid: GridConfig{
			Layers: len(LayerRoles),
			Rows:   65,
			Cols:   65,
		},
		Simulation: SimulationConfig{
			ForgetEvery:   1,
			SnapshotEvery: 10,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.neurogrow/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".neurogrow", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads path when it is set, and the default locations otherwise.
// Environment overrides apply either way.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	for i := range config.Layers {
		config.Layers[i] = withLayerDefaults(config.Layers[i])
	}
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return config, nil
}

// withLayerDefaults fills zero fields from DefaultLayer.
func withLayerDefaults(l LayerConfig) LayerConfig {
	def := DefaultLayer(l.Index)
	if l.Role == "" {
		l.Role = def.Role
	}
	if l.InitialHalfSide == 0 {
		l.InitialHalfSide = def.InitialHalfSide
	}
	if l.MaxHalfSide == 0 {
		l.MaxHalfSide = max(def.MaxHalfSide, l.InitialHalfSide)
	}
	if l.GrowthThreshold == 0 {
		l.GrowthThreshold = def.GrowthThreshold
	}
	if len(l.GrowthFactors) == 0 {
		l.GrowthFactors = def.GrowthFactors
	}
	return l
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if len(c.Layers) == 0 {
		return fmt.Errorf("at least one layer is required")
	}
	seen := make(map[int]bool, len(c.Layers))
	for _, l := range c.Layers {
		if seen[l.Index] {
			return fmt.Errorf("duplicate layer index %d", l.Index)
		}
		seen[l.Index] = true
		if l.Index < 0 || l.Index >= c.Grid.Layers {
			return fmt.Errorf("layer index %d outside grid of %d layers", l.Index, c.Grid.Layers)
		}
		if 2*l.MaxHalfSide+1 > min(c.Grid.Rows, c.Grid.Cols) {
			return fmt.Errorf("layer %d: max_half_side %d does not fit a %dx%d grid",
				l.Index, l.MaxHalfSide, c.Grid.Rows, c.Grid.Cols)
		}
	}

	if c.Neuron.ActiveThreshold < 0 {
		return fmt.Errorf("active_threshold must be non-negative, got %f", c.Neuron.ActiveThreshold)
	}
	if c.Transmission.DecayRate < 0 {
		return fmt.Errorf("decay_rate must be non-negative, got %f", c.Transmission.DecayRate)
	}
	if c.Transmission.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Transmission.BatchSize)
	}
	if c.Transmission.QueueCapacity <= 0 {
		return fmt.Errorf("transmission queue_capacity must be positive, got %d", c.Transmission.QueueCapacity)
	}
	if c.Growth.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.Growth.TickInterval)
	}
	if c.Growth.BaseSpeed <= 0 || c.Growth.MaxSpeed < c.Growth.BaseSpeed {
		return fmt.Errorf("growth speeds must satisfy 0 < base_speed (%f) <= max_speed (%f)",
			c.Growth.BaseSpeed, c.Growth.MaxSpeed)
	}
	if c.Growth.QueueCapacity <= 0 {
		return fmt.Errorf("growth queue_capacity must be positive, got %d", c.Growth.QueueCapacity)
	}
	if c.Grid.Layers <= 0 || c.Grid.Rows <= 0 || c.Grid.Cols <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", c.Grid.Layers, c.Grid.Rows, c.Grid.Cols)
	}
	if c.Simulation.ForgetEvery < 0 || c.Simulation.SnapshotEvery < 0 {
		return fmt.Errorf("simulation cadences must be non-negative")
	}

	switch c.Store.Backend {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (valid: memory, sqlite)", c.Store.Backend)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("NEUROGROW_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NEUROGROW_STORE_BACKEND"); v != "" {
		config.Store.Backend = v
	}

	if v := os.Getenv("NEUROGROW_STORE_PATH"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}

	if v := os.Getenv("NEUROGROW_GROWTH_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Growth.TickInterval = d
		}
	}

	if v := os.Getenv("NEUROGROW_FORGET_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.ForgetEvery = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
