package model

import "fmt"

// StagePhase is the lifecycle state of an excavation stage.
type StagePhase int

const (
	PhasePlanned StagePhase = iota
	PhaseExcavated
	PhaseSupported
	PhaseFinalized
)

func (p StagePhase) String() string {
	switch p {
	case PhasePlanned:
		return "planned"
	case PhaseExcavated:
		return "excavated"
	case PhaseSupported:
		return "supported"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("StagePhase(%d)", int(p))
	}
}

// Stage is one depth-wise sub-excavation in a staged construction sequence.
// Stages are created by the sequencer and immutable once finalized.
type Stage struct {
	ID                  string     `json:"id"`
	Index               int        `json:"index"`
	TopDepth            float64    `json:"top_depth"`    // depth at stage top, positive down
	BottomDepth         float64    `json:"bottom_depth"` // depth at stage bottom
	CumulativeDepth     float64    `json:"cumulative_depth"`
	Volume              float64    `json:"volume"`
	ConstructionMethod  string     `json:"construction_method"`
	SupportInstallation bool       `json:"support_installation"`
	Phase               StagePhase `json:"phase"`

	// Footprint after slope widening, min-corner plan coordinates.
	FootprintLength float64 `json:"footprint_length"`
	FootprintWidth  float64 `json:"footprint_width"`

	Solid *Solid `json:"-"` // stage sub-volume, set on excavation
}

// Thickness returns the vertical extent of the stage.
func (s *Stage) Thickness() float64 {
	return s.BottomDepth - s.TopDepth
}

// Final reports whether the stage has reached its terminal phase.
func (s *Stage) Final() bool {
	return s.Phase == PhaseFinalized
}

// StageTransition is stepped transition geometry generated between two
// consecutive finalized stages.
type StageTransition struct {
	FromStage  string  `json:"from_stage"`
	ToStage    string  `json:"to_stage"`
	StepHeight float64 `json:"step_height"`
	StepWidth  float64 `json:"step_width"`
	AccessRamp bool    `json:"access_ramp"` // true only on the first transition
}
