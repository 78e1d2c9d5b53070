// Package sequence orders depth-wise sub-excavations into a construction
// sequence with temporary supports and stepped transition geometry. Each
// stage runs a guarded lifecycle: Planned -> Excavated -> (Supported) ->
// Finalized. Invalid transition requests are caller errors and are
// rejected before any geometry is generated.
package sequence

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/builder"
	"github.com/geoforge/pitprep/pkg/model"
)

// ErrInvalidTransition marks a lifecycle transition the state machine
// does not permit.
var ErrInvalidTransition = errors.New("invalid stage transition")

// TransitionError carries the rejected transition's context.
type TransitionError struct {
	Stage  string
	From   model.StagePhase
	To     model.StagePhase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("stage %s: %s -> %s: %s: %v", e.Stage, e.From, e.To, e.Reason, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// defaultStepWidth is the bench width of stepped transitions.
const defaultStepWidth = 2.0

// Sequencer owns the stage lifecycle for one excavation geometry.
type Sequencer struct {
	b           *builder.Builder
	geom        model.ExcavationGeometry
	stages      []*model.Stage
	transitions []model.StageTransition
	log         *zap.Logger
}

// New plans the stage sequence from the input geometry. Footprints are
// widened by the slope allowance per stage, each independently of the
// others; cumulative depth accumulates stage thicknesses top-down.
func New(b *builder.Builder, geom model.ExcavationGeometry, log *zap.Logger) (*Sequencer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(geom.Stages) == 0 {
		return nil, fmt.Errorf("sequence: no stages configured")
	}

	slopeRad := geom.Dimensions.SlopeAngle * math.Pi / 180
	var stages []*model.Stage
	top := 0.0
	for i, spec := range geom.Stages {
		if spec.Depth <= 0 {
			return nil, fmt.Errorf("sequence: stage %d depth %g must be positive", i+1, spec.Depth)
		}
		bottom := top + spec.Depth

		// Slope widening: the footprint grows by depth*tan(slope) on each
		// side, measured against the unmodified footprint.
		widen := 0.0
		if slopeRad > 0 {
			widen = bottom * math.Tan(slopeRad)
		}

		stages = append(stages, &model.Stage{
			ID:                  uuid.NewString(),
			Index:               i,
			TopDepth:            top,
			BottomDepth:         bottom,
			CumulativeDepth:     bottom,
			ConstructionMethod:  spec.ConstructionMethod,
			SupportInstallation: spec.SupportInstallation,
			Phase:               model.PhasePlanned,
			FootprintLength:     geom.Dimensions.Length + 2*widen,
			FootprintWidth:      geom.Dimensions.Width + 2*widen,
		})
		top = bottom
	}

	return &Sequencer{b: b, geom: geom, stages: stages, log: log}, nil
}

// Stages returns the stage sequence in construction order.
func (s *Sequencer) Stages() []*model.Stage { return s.stages }

// Transitions returns the stepped transitions generated so far.
func (s *Sequencer) Transitions() []model.StageTransition { return s.transitions }

// stage fetches by index with bounds checking.
func (s *Sequencer) stage(i int) (*model.Stage, error) {
	if i < 0 || i >= len(s.stages) {
		return nil, fmt.Errorf("sequence: no stage %d", i)
	}
	return s.stages[i], nil
}

// Excavate moves stage i from Planned to Excavated and builds its
// sub-volume solid. The previous stage, if any, must be Finalized.
func (s *Sequencer) Excavate(i int) (*model.Solid, error) {
	st, err := s.stage(i)
	if err != nil {
		return nil, err
	}
	if st.Phase != model.PhasePlanned {
		return nil, &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseExcavated,
			Reason: "stage is not planned"}
	}
	if i > 0 && s.stages[i-1].Phase != model.PhaseFinalized {
		return nil, &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseExcavated,
			Reason: fmt.Sprintf("previous stage is %s, not finalized", s.stages[i-1].Phase)}
	}

	solid, err := s.b.StageVolume(s.geom, st)
	if err != nil {
		return nil, fmt.Errorf("sequence: building stage %d volume: %w", i+1, err)
	}
	st.Solid = solid
	st.Volume = solid.Volume
	st.Phase = model.PhaseExcavated
	s.log.Debug("stage excavated",
		zap.Int("stage", i+1),
		zap.Float64("volume", st.Volume),
		zap.Float64("bottom_depth", st.BottomDepth))
	return solid, nil
}

// Support moves stage i from Excavated to Supported. Only permitted when
// the stage requested support installation and is not the final stage.
func (s *Sequencer) Support(i int) error {
	st, err := s.stage(i)
	if err != nil {
		return err
	}
	if st.Phase != model.PhaseExcavated {
		return &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseSupported,
			Reason: "stage is not excavated"}
	}
	if !st.SupportInstallation {
		return &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseSupported,
			Reason: "stage has no support installation configured"}
	}
	if i == len(s.stages)-1 {
		return &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseSupported,
			Reason: "final stage takes no temporary support"}
	}
	st.Phase = model.PhaseSupported
	return nil
}

// Finalize moves stage i to Finalized and, when a previous finalized
// stage exists, generates the stepped transition between the pair. The
// first transition carries the access-ramp flag.
func (s *Sequencer) Finalize(i int) error {
	st, err := s.stage(i)
	if err != nil {
		return err
	}
	if st.Phase != model.PhaseExcavated && st.Phase != model.PhaseSupported {
		return &TransitionError{Stage: st.ID, From: st.Phase, To: model.PhaseFinalized,
			Reason: "stage is not excavated or supported"}
	}
	st.Phase = model.PhaseFinalized

	if i > 0 && s.stages[i-1].Phase == model.PhaseFinalized {
		s.transitions = append(s.transitions, model.StageTransition{
			FromStage:  s.stages[i-1].ID,
			ToStage:    st.ID,
			StepHeight: st.Thickness(),
			StepWidth:  defaultStepWidth,
			AccessRamp: len(s.transitions) == 0,
		})
	}
	return nil
}

// Run executes the whole sequence in order: excavate, optionally support,
// finalize, for every stage. Returns the stage solids in order.
func (s *Sequencer) Run() ([]*model.Solid, error) {
	var solids []*model.Solid
	for i := range s.stages {
		solid, err := s.Excavate(i)
		if err != nil {
			return solids, err
		}
		solids = append(solids, solid)
		if s.stages[i].SupportInstallation && i < len(s.stages)-1 {
			if err := s.Support(i); err != nil {
				return solids, err
			}
		}
		if err := s.Finalize(i); err != nil {
			return solids, err
		}
	}
	return solids, nil
}
