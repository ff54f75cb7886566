package viewshed

import (
	"fmt"
	"math"
	"runtime"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/raster"
)

// Strategy selects how targets are scheduled and decided.
type Strategy int

const (
	// StrategyExact evaluates every target with its own sight profile.
	StrategyExact Strategy = iota
	// StrategySweep decides targets against a running per-sector horizon.
	StrategySweep
)

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategySweep:
		return "sweep"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// NoDataPolicy decides how missing terrain along a sight profile is treated.
type NoDataPolicy int

const (
	// NoDataTransparent lets the sight line pass over missing terrain.
	NoDataTransparent NoDataPolicy = iota
	// NoDataOpaque treats missing terrain as an obstruction.
	NoDataOpaque
)

func (p NoDataPolicy) String() string {
	switch p {
	case NoDataTransparent:
		return config.NoDataTransparent
	case NoDataOpaque:
		return config.NoDataOpaque
	default:
		return fmt.Sprintf("NoDataPolicy(%d)", int(p))
	}
}

// Config controls a viewshed computation. Build one with DefaultConfig or
// ConfigFromTuning and adjust it with the With* setters.
type Config struct {
	Strategy Strategy
	// Sectors is the sweep's angular resolution; zero selects one sector per
	// boundary cell at the maximum grid radius. Counts coarser than that
	// fall back to StrategyExact.
	Sectors int

	SamplesPerCell    float64      // profile samples per cell of Chebyshev distance (default: 1)
	Tolerance         float64      // absolute occlusion tolerance; zero derives it from RelativeTolerance
	RelativeTolerance float64      // tolerance per unit of max |elevation| (default: 1e-9)
	NoData            NoDataPolicy // default: NoDataTransparent
	MarkIndeterminate bool         // encode no-data crossings as NaN (default: true)
	Workers           int          // worker pool size; zero means GOMAXPROCS
}

// DefaultConfig returns the configuration used when the caller supplies none.
func DefaultConfig() *Config {
	cfg, err := ConfigFromTuning(config.EmptyTuningConfig())
	if err != nil {
		// the empty tuning document only yields Get* defaults
		panic(err)
	}
	return cfg
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The observer
// height is not part of Config; read it with GetObserverHeight.
func ConfigFromTuning(t *config.TuningConfig) (*Config, error) {
	exact, sectors, err := config.ParseSectorResolution(t.GetSectorResolution())
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Strategy:          StrategySweep,
		Sectors:           sectors,
		SamplesPerCell:    t.GetSamplesPerCell(),
		Tolerance:         t.GetOcclusionTolerance(),
		RelativeTolerance: t.GetRelativeTolerance(),
		NoData:            NoDataTransparent,
		MarkIndeterminate: t.GetMarkIndeterminate(),
		Workers:           t.GetWorkers(),
	}
	if exact {
		cfg.Strategy = StrategyExact
	}
	if t.GetNoDataPolicy() == config.NoDataOpaque {
		cfg.NoData = NoDataOpaque
	}
	return cfg, cfg.Validate()
}

// Validate checks if the configuration is valid.
// Returns an error if any parameter is out of acceptable range.
func (c *Config) Validate() error {
	if c.Strategy != StrategyExact && c.Strategy != StrategySweep {
		return fmt.Errorf("unknown strategy %v", c.Strategy)
	}
	if c.Sectors < 0 {
		return fmt.Errorf("Sectors must be non-negative, got %d", c.Sectors)
	}
	if math.IsNaN(c.SamplesPerCell) || math.IsInf(c.SamplesPerCell, 0) || c.SamplesPerCell < 1 {
		return fmt.Errorf("SamplesPerCell must be at least 1, got %f", c.SamplesPerCell)
	}
	if math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) || c.Tolerance < 0 {
		return fmt.Errorf("Tolerance must be finite and non-negative, got %g", c.Tolerance)
	}
	if math.IsNaN(c.RelativeTolerance) || math.IsInf(c.RelativeTolerance, 0) || c.RelativeTolerance < 0 {
		return fmt.Errorf("RelativeTolerance must be finite and non-negative, got %g", c.RelativeTolerance)
	}
	if c.NoData != NoDataTransparent && c.NoData != NoDataOpaque {
		return fmt.Errorf("unknown no-data policy %v", c.NoData)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// OcclusionTolerance returns the absolute tolerance used against g.
func (c *Config) OcclusionTolerance(g *raster.Grid) float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	return c.RelativeTolerance * math.Max(1, g.MaxAbsElevation())
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// WithStrategy sets the scheduling strategy.
func (c *Config) WithStrategy(s Strategy) *Config {
	c.Strategy = s
	return c
}

// WithSectors sets the sweep sector count (zero selects automatically).
func (c *Config) WithSectors(n int) *Config {
	c.Sectors = n
	return c
}

// WithSamplesPerCell sets the profile sampling density.
func (c *Config) WithSamplesPerCell(n float64) *Config {
	c.SamplesPerCell = n
	return c
}

// WithTolerance sets an absolute occlusion tolerance in elevation units.
func (c *Config) WithTolerance(tol float64) *Config {
	c.Tolerance = tol
	return c
}

// WithNoDataPolicy sets how missing terrain along a profile is treated.
func (c *Config) WithNoDataPolicy(p NoDataPolicy) *Config {
	c.NoData = p
	return c
}

// WithMarkIndeterminate enables or disables NaN encoding of targets whose
// profile crossed missing terrain.
func (c *Config) WithMarkIndeterminate(enabled bool) *Config {
	c.MarkIndeterminate = enabled
	return c
}

// WithWorkers sets the worker pool size.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}
