// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Seed        int64             `yaml:"seed"`
	Grid        GridConfig        `yaml:"grid"`
	Particles   ParticlesConfig   `yaml:"particles"`
	Physics     PhysicsConfig     `yaml:"physics"`
	Interaction InteractionConfig `yaml:"interaction"`
	Parallel    ParallelConfig    `yaml:"parallel"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Debug       DebugConfig       `yaml:"debug"`
	Scene       SceneConfig       `yaml:"scene"`
	Tune        TuneConfig        `yaml:"tune"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// Vec2Config is a two-component value in world units.
type Vec2Config struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// GridConfig holds the MAC grid dimensions.
type GridConfig struct {
	Cols     int        `yaml:"cols"`
	Rows     int        `yaml:"rows"`
	CellSize Vec2Config `yaml:"cell_size"` // world units per cell
}

// ParticlesConfig holds particle capacity and size.
type ParticlesConfig struct {
	Count  int     `yaml:"count"`
	Radius float64 `yaml:"radius"` // world units
}

// PhysicsConfig holds solver parameters.
type PhysicsConfig struct {
	DT                 float64 `yaml:"dt"`
	Gravity            float64 `yaml:"gravity"`
	OverRelaxation     float64 `yaml:"over_relaxation"`
	PressureIterations int     `yaml:"pressure_iterations"`
	FlipRatio          float64 `yaml:"flip_ratio"` // 0 = pure PIC, 1 = pure FLIP
}

// InteractionConfig holds the static interaction input used when no scene probe is active.
type InteractionConfig struct {
	Type     string  `yaml:"type"` // none, push, destroy_terrain
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Radius   float64 `yaml:"radius"`
	Strength float64 `yaml:"strength"` // reserved
}

// ParallelConfig holds worker pool settings.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`    // 0 = GOMAXPROCS
	GroupSize int `yaml:"group_size"` // dispatch granularity
	Threshold int `yaml:"threshold"`  // below this element count, run inline
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // seconds of simulated time
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DebugConfig toggles precondition assertions in the solver.
type DebugConfig struct {
	AssertPreconditions bool `yaml:"assert_preconditions"`
}

// SceneConfig describes the initial scene.
type SceneConfig struct {
	Walls       bool              `yaml:"walls"` // surround the grid with a ring of stone
	Heightfield HeightfieldConfig `yaml:"heightfield"`
	Solids      []SolidConfig     `yaml:"solids"`
	Emitters    []EmitterConfig   `yaml:"emitters"`
	Probes      []ProbeConfig     `yaml:"probes"`
}

// HeightfieldConfig fills the bottom of the grid with noise-shaped ground.
type HeightfieldConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Type       string  `yaml:"type"`        // terrain or stone
	BaseHeight float64 `yaml:"base_height"` // world units above y = 0
	Amplitude  float64 `yaml:"amplitude"`   // peak deviation from base_height
	Wavelength float64 `yaml:"wavelength"`  // world units of the first octave
	Octaves    int     `yaml:"octaves"`
	Seed       int64   `yaml:"seed"` // 0 = top-level seed
}

// RectConfig is an axis-aligned rectangle in world units.
type RectConfig struct {
	X0 float64 `yaml:"x0"`
	Y0 float64 `yaml:"y0"`
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
}

// SolidConfig rasterises a solid block into the grid.
type SolidConfig struct {
	Rect RectConfig `yaml:",inline"`
	Type string     `yaml:"type"` // terrain or stone
}

// EmitterConfig seeds particles inside a rectangle.
type EmitterConfig struct {
	Rect RectConfig `yaml:",inline"`
	VelX float64    `yaml:"vel_x"`
	VelY float64    `yaml:"vel_y"`
}

// ProbeConfig is a scripted interaction input active over a tick window.
type ProbeConfig struct {
	Type     string  `yaml:"type"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Radius   float64 `yaml:"radius"`
	Strength float64 `yaml:"strength"`
	FromTick int64   `yaml:"from_tick"`
	ToTick   int64   `yaml:"to_tick"` // exclusive; 0 = open ended
}

// TuneConfig holds cmd/tune parameters.
type TuneConfig struct {
	Ticks         int     `yaml:"ticks"`
	MaxEvals      int     `yaml:"max_evals"`
	Population    int     `yaml:"population"` // 0 = auto
	IterationCost float64 `yaml:"iteration_cost"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32       float32 // Physics.DT as float32
	BoundsW32  float32 // Grid.Cols * CellSize.X
	BoundsH32  float32 // Grid.Rows * CellSize.Y
	TotalCells int
	Workers    int // effective worker count
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse builds a configuration from embedded defaults overlaid with data.
// Only fields present in data are overwritten.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.computeDerived()

	return cfg, nil
}

// Clone returns a deep copy with derived values recomputed.
func (c *Config) Clone() *Config {
	out := *c
	out.Scene.Solids = append([]SolidConfig(nil), c.Scene.Solids...)
	out.Scene.Emitters = append([]EmitterConfig(nil), c.Scene.Emitters...)
	out.Scene.Probes = append([]ProbeConfig(nil), c.Scene.Probes...)
	out.computeDerived()
	return &out
}

// Override returns a copy with the seed and worker count replaced where
// they are non-zero.
func (c *Config) Override(seed int64, workers int) *Config {
	out := c.Clone()
	if seed != 0 {
		out.Seed = seed
	}
	if workers > 0 {
		out.Parallel.Workers = workers
	}
	out.computeDerived()
	return out
}

// Validate checks values the solver cannot run with.
func (c *Config) Validate() error {
	if c.Grid.Cols < 3 || c.Grid.Rows < 3 {
		return fmt.Errorf("grid must be at least 3x3, got %dx%d", c.Grid.Cols, c.Grid.Rows)
	}
	if c.Grid.CellSize.X <= 0 || c.Grid.CellSize.Y <= 0 {
		return fmt.Errorf("grid cell_size must be positive, got (%g, %g)", c.Grid.CellSize.X, c.Grid.CellSize.Y)
	}
	if c.Particles.Count < 0 {
		return fmt.Errorf("particles count must not be negative, got %d", c.Particles.Count)
	}
	if c.Particles.Radius < 0 {
		return fmt.Errorf("particles radius must not be negative, got %g", c.Particles.Radius)
	}
	if c.Physics.DT <= 0 {
		return fmt.Errorf("physics dt must be positive, got %g", c.Physics.DT)
	}
	if c.Physics.PressureIterations < 0 {
		return fmt.Errorf("physics pressure_iterations must not be negative, got %d", c.Physics.PressureIterations)
	}
	if c.Physics.FlipRatio < 0 || c.Physics.FlipRatio > 1 {
		return fmt.Errorf("physics flip_ratio must be in [0,1], got %g", c.Physics.FlipRatio)
	}
	if !validProbeType(c.Interaction.Type) {
		return fmt.Errorf("interaction type %q: unknown", c.Interaction.Type)
	}
	for i, s := range c.Scene.Solids {
		if s.Type != "terrain" && s.Type != "stone" {
			return fmt.Errorf("scene solid %d: unknown type %q", i, s.Type)
		}
	}
	if hf := c.Scene.Heightfield; hf.Enabled {
		if hf.Type != "terrain" && hf.Type != "stone" {
			return fmt.Errorf("scene heightfield: unknown type %q", hf.Type)
		}
		if hf.Octaves < 1 || hf.Wavelength <= 0 {
			return fmt.Errorf("scene heightfield: need octaves >= 1 and wavelength > 0, got %d and %g", hf.Octaves, hf.Wavelength)
		}
	}
	for i, p := range c.Scene.Probes {
		if !validProbeType(p.Type) {
			return fmt.Errorf("scene probe %d: unknown type %q", i, p.Type)
		}
	}
	return nil
}

func validProbeType(t string) bool {
	switch t {
	case "", "none", "push", "destroy_terrain":
		return true
	}
	return false
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.BoundsW32 = float32(float64(c.Grid.Cols) * c.Grid.CellSize.X)
	c.Derived.BoundsH32 = float32(float64(c.Grid.Rows) * c.Grid.CellSize.Y)
	c.Derived.TotalCells = c.Grid.Cols * c.Grid.Rows

	workers := c.Parallel.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.Workers = workers
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
