package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Sector resolution keywords accepted by sector_resolution besides a
// positive integer sector count.
const (
	SectorResolutionExact = "exact"
	SectorResolutionAuto  = "auto"
)

// No-data policy keywords accepted by nodata_policy.
const (
	NoDataTransparent = "transparent"
	NoDataOpaque      = "opaque"
)

// TuningConfig represents the root configuration for viewshed tuning
// parameters. Every field is optional; the Get* methods supply defaults
// for anything left out of the JSON file.
type TuningConfig struct {
	ObserverHeight     *float64 `json:"observer_height,omitempty"`
	SamplesPerCell     *float64 `json:"samples_per_cell,omitempty"`
	SectorResolution   *string  `json:"sector_resolution,omitempty"` // "exact", "auto" or a sector count like "512"
	OcclusionTolerance *float64 `json:"occlusion_tolerance,omitempty"`
	RelativeTolerance  *float64 `json:"relative_tolerance,omitempty"`
	NoDataPolicy       *string  `json:"nodata_policy,omitempty"` // "transparent" or "opaque"
	MarkIndeterminate  *bool    `json:"mark_indeterminate,omitempty"`
	Workers            *int     `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		ObserverHeight:     ptrFloat64(empty.GetObserverHeight()),
		SamplesPerCell:     ptrFloat64(empty.GetSamplesPerCell()),
		SectorResolution:   ptrString(empty.GetSectorResolution()),
		OcclusionTolerance: ptrFloat64(empty.GetOcclusionTolerance()),
		RelativeTolerance:  ptrFloat64(empty.GetRelativeTolerance()),
		NoDataPolicy:       ptrString(empty.GetNoDataPolicy()),
		MarkIndeterminate:  ptrBool(empty.GetMarkIndeterminate()),
		Workers:            ptrInt(empty.GetWorkers()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ObserverHeight != nil && (*c.ObserverHeight < 0 || !isFinite(*c.ObserverHeight)) {
		return fmt.Errorf("observer_height must be finite and non-negative, got %f", *c.ObserverHeight)
	}

	if c.SamplesPerCell != nil && (*c.SamplesPerCell < 1 || !isFinite(*c.SamplesPerCell)) {
		return fmt.Errorf("samples_per_cell must be at least 1, got %f", *c.SamplesPerCell)
	}

	if c.SectorResolution != nil {
		if _, _, err := ParseSectorResolution(*c.SectorResolution); err != nil {
			return err
		}
	}

	if c.OcclusionTolerance != nil && (*c.OcclusionTolerance < 0 || !isFinite(*c.OcclusionTolerance)) {
		return fmt.Errorf("occlusion_tolerance must be finite and non-negative, got %g", *c.OcclusionTolerance)
	}

	if c.RelativeTolerance != nil && (*c.RelativeTolerance < 0 || *c.RelativeTolerance > 1e-3) {
		return fmt.Errorf("relative_tolerance must be between 0 and 1e-3, got %g", *c.RelativeTolerance)
	}

	if c.NoDataPolicy != nil {
		switch *c.NoDataPolicy {
		case NoDataTransparent, NoDataOpaque:
		default:
			return fmt.Errorf("nodata_policy must be %q or %q, got %q", NoDataTransparent, NoDataOpaque, *c.NoDataPolicy)
		}
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	return nil
}

// ParseSectorResolution interprets a sector_resolution value. exact is true
// for "exact"; sectors is zero for "auto" and the requested count otherwise.
func ParseSectorResolution(s string) (exact bool, sectors int, err error) {
	switch s {
	case "", SectorResolutionAuto:
		return false, 0, nil
	case SectorResolutionExact:
		return true, 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return false, 0, fmt.Errorf("invalid sector_resolution %q: want %q, %q or a positive sector count", s, SectorResolutionExact, SectorResolutionAuto)
	}
	return false, n, nil
}

// GetObserverHeight returns the observer_height value or the default.
func (c *TuningConfig) GetObserverHeight() float64 {
	if c.ObserverHeight == nil {
		return 0
	}
	return *c.ObserverHeight
}

// GetSamplesPerCell returns the samples_per_cell value or the default.
func (c *TuningConfig) GetSamplesPerCell() float64 {
	if c.SamplesPerCell == nil {
		return 1
	}
	return *c.SamplesPerCell
}

// GetSectorResolution returns the sector_resolution value or the default.
func (c *TuningConfig) GetSectorResolution() string {
	if c.SectorResolution == nil || *c.SectorResolution == "" {
		return SectorResolutionExact // default: reference semantics
	}
	return *c.SectorResolution
}

// GetOcclusionTolerance returns the occlusion_tolerance value or the default.
// Zero means the tolerance is derived from relative_tolerance.
func (c *TuningConfig) GetOcclusionTolerance() float64 {
	if c.OcclusionTolerance == nil {
		return 0
	}
	return *c.OcclusionTolerance
}

// GetRelativeTolerance returns the relative_tolerance value or the default.
func (c *TuningConfig) GetRelativeTolerance() float64 {
	if c.RelativeTolerance == nil {
		return 1e-9
	}
	return *c.RelativeTolerance
}

// GetNoDataPolicy returns the nodata_policy value or the default.
func (c *TuningConfig) GetNoDataPolicy() string {
	if c.NoDataPolicy == nil || *c.NoDataPolicy == "" {
		return NoDataTransparent
	}
	return *c.NoDataPolicy
}

// GetMarkIndeterminate returns the mark_indeterminate value or the default.
func (c *TuningConfig) GetMarkIndeterminate() bool {
	if c.MarkIndeterminate == nil {
		return true
	}
	return *c.MarkIndeterminate
}

// GetWorkers returns the workers value or the default. Zero means one
// worker per available CPU.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
