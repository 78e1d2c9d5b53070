// Package config defines the tolerance and strategy configuration passed
// explicitly into each pipeline component. There is no global state; a
// zero value plus Default* constructors give working settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geoforge/pitprep/pkg/model"
)

// BooleanConfig bounds the boolean operation engine.
type BooleanConfig struct {
	// Tolerance is the relative volume error bound for cut results.
	Tolerance float64 `yaml:"tolerance"`
	// SampleResolution is the per-axis cell count for SDF volume sampling.
	SampleResolution int `yaml:"sample_resolution"`
	// MinVolume below which an operand counts as degenerate.
	MinVolume float64 `yaml:"min_volume"`
}

// DefaultBooleanConfig returns the engine defaults.
func DefaultBooleanConfig() BooleanConfig {
	return BooleanConfig{
		Tolerance:        1e-3,
		SampleResolution: 64,
		MinVolume:        1e-9,
	}
}

// TopologyRepairConfig configures hole and overlap detection and repair.
type TopologyRepairConfig struct {
	// WeldTolerance is the distance below which soup vertices are merged.
	WeldTolerance float64 `yaml:"weld_tolerance"`
	// MaxHoleSize is the largest hole area fillHoles will attempt.
	MaxHoleSize float64 `yaml:"max_hole_size"`
	// FillMethod names the strategy recorded on hole_fill repair actions.
	FillMethod string `yaml:"fill_method"`
	// MinElementQuality refuses overlap resolutions that would degrade
	// projected element quality below this bound (0..1).
	MinElementQuality float64 `yaml:"min_element_quality"`
	// MaxLoopComplexity skips holes whose loop irregularity exceeds this.
	MaxLoopComplexity float64 `yaml:"max_loop_complexity"`
}

// DefaultTopologyRepairConfig returns the repair defaults.
func DefaultTopologyRepairConfig() TopologyRepairConfig {
	return TopologyRepairConfig{
		WeldTolerance:     1e-6,
		MaxHoleSize:       100.0,
		FillMethod:        "centroid_fan",
		MinElementQuality: 0.3,
		MaxLoopComplexity: 0.8,
	}
}

// ContinuityRepairConfig configures C0/C1/C2 detection and repair.
type ContinuityRepairConfig struct {
	C0Tolerance   float64 `yaml:"c0_tolerance"` // positional gap, model units
	C1Tolerance   float64 `yaml:"c1_tolerance"` // normal angle, degrees
	C2Tolerance   float64 `yaml:"c2_tolerance"` // curvature jump
	MaxIterations int     `yaml:"max_iterations"`
}

// DefaultContinuityRepairConfig returns the continuity defaults.
func DefaultContinuityRepairConfig() ContinuityRepairConfig {
	return ContinuityRepairConfig{
		C0Tolerance:   1e-3,
		C1Tolerance:   1.0,
		C2Tolerance:   0.5,
		MaxIterations: 3,
	}
}

// QualityConfig gates mesh readiness.
type QualityConfig struct {
	MinContinuityScore float64 `yaml:"min_continuity_score"`
	TargetMeshSize     float64 `yaml:"target_mesh_size"`
}

// DefaultQualityConfig returns the assessment defaults.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinContinuityScore: 0.65,
		TargetMeshSize:     2.0,
	}
}

// PerformanceConfig bounds a modeling run.
type PerformanceConfig struct {
	MaxProcessingTime time.Duration `yaml:"max_processing_time"`
}

// UnmarshalYAML accepts duration strings ("5m", "90s") for the
// processing time bound.
func (p *PerformanceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxProcessingTime string `yaml:"max_processing_time"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxProcessingTime == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.MaxProcessingTime)
	if err != nil {
		return fmt.Errorf("config: max_processing_time: %w", err)
	}
	p.MaxProcessingTime = d
	return nil
}

// DefaultPerformanceConfig returns the run-time defaults.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{MaxProcessingTime: 5 * time.Minute}
}

// ModelingConfig aggregates every component configuration for one run.
type ModelingConfig struct {
	Boolean     BooleanConfig          `yaml:"boolean"`
	Topology    TopologyRepairConfig   `yaml:"topology"`
	Continuity  ContinuityRepairConfig `yaml:"continuity"`
	Quality     QualityConfig          `yaml:"quality"`
	Performance PerformanceConfig      `yaml:"performance"`
	// MeshCells is the marching-cubes resolution for tessellation.
	MeshCells int `yaml:"mesh_cells"`
}

// DefaultModelingConfig returns a complete default configuration.
func DefaultModelingConfig() ModelingConfig {
	return ModelingConfig{
		Boolean:     DefaultBooleanConfig(),
		Topology:    DefaultTopologyRepairConfig(),
		Continuity:  DefaultContinuityRepairConfig(),
		Quality:     DefaultQualityConfig(),
		Performance: DefaultPerformanceConfig(),
		MeshCells:   120,
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c ModelingConfig) Validate() error {
	if c.Boolean.Tolerance <= 0 {
		return fmt.Errorf("config: boolean tolerance must be positive, got %g", c.Boolean.Tolerance)
	}
	if c.Boolean.SampleResolution < 8 {
		return fmt.Errorf("config: sample resolution %d below minimum 8", c.Boolean.SampleResolution)
	}
	if c.Topology.MaxHoleSize < 0 {
		return fmt.Errorf("config: max hole size must not be negative, got %g", c.Topology.MaxHoleSize)
	}
	if c.Continuity.MaxIterations < 1 {
		return fmt.Errorf("config: continuity max iterations must be at least 1, got %d", c.Continuity.MaxIterations)
	}
	if c.Quality.MinContinuityScore < 0 || c.Quality.MinContinuityScore > 1 {
		return fmt.Errorf("config: min continuity score %g outside [0,1]", c.Quality.MinContinuityScore)
	}
	if c.Performance.MaxProcessingTime <= 0 {
		return fmt.Errorf("config: max processing time must be positive")
	}
	return nil
}

// Scenario is a complete modeling input: the engineering parameter structs
// plus the run configuration. Loaded from a YAML file by the CLI.
type Scenario struct {
	Name     string                    `yaml:"name"`
	Geometry model.ExcavationGeometry  `yaml:"geometry"`
	Support  model.SupportStructure    `yaml:"support"`
	Geology  model.GeologicalCondition `yaml:"geology"`
	Config   ModelingConfig            `yaml:"config"`
}

// LoadScenario reads a YAML scenario file, filling unset configuration
// sections with defaults.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading scenario: %w", err)
	}
	sc := &Scenario{Config: DefaultModelingConfig()}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("config: parsing scenario: %w", err)
	}
	if err := sc.Config.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}
