package topo

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// Engine runs topology detection and repair over a mesh set it owns
// exclusively for the duration of one Repair call.
type Engine struct {
	cfg config.TopologyRepairConfig
	log *zap.Logger
}

// NewEngine returns a topology repair engine. The logger may be nil.
func NewEngine(cfg config.TopologyRepairConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Statistics summarizes one repair run.
type Statistics struct {
	HolesDetected    int `json:"holes_detected"`
	HolesFilled      int `json:"holes_filled"`
	OverlapsDetected int `json:"overlaps_detected"`
	OverlapsResolved int `json:"overlaps_resolved"`
	DefectsBefore    int `json:"defects_before"`
	DefectsAfter     int `json:"defects_after"`
}

// Diagnostics carries non-fatal findings out of a repair run.
type Diagnostics struct {
	RemainingIssues []string `json:"remaining_issues,omitempty"`
	Incomplete      bool     `json:"incomplete"`
}

// Result is the outcome of one topology repair run. Defect and action
// records belong to this result and do not outlive it.
type Result struct {
	Statistics        Statistics           `json:"statistics"`
	QualityAssessment float64              `json:"quality_assessment"` // 0..1
	RepairActions     []model.RepairAction `json:"repair_actions"`
	RemainingHoles    []*model.Hole        `json:"remaining_holes,omitempty"`
	RemainingOverlaps []*model.Overlap     `json:"remaining_overlaps,omitempty"`
	RepairedMeshes    []*kernel.Mesh       `json:"-"`
	RepairedIndexed   []*IndexedMesh       `json:"-"`
	Diagnostics       Diagnostics          `json:"diagnostics"`
}

// Detect runs the two detection passes concurrently. The passes share no
// mutable state; their results merge by concatenation and are already
// deterministically sorted within each family.
func (e *Engine) Detect(ctx context.Context, meshes []*IndexedMesh) ([]*model.Hole, []*model.Overlap, error) {
	var holes []*model.Hole
	var overlaps []*model.Overlap

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		holes, err = e.DetectHoles(gctx, meshes)
		return err
	})
	g.Go(func() error {
		var err error
		overlaps, err = e.DetectOverlaps(gctx, meshes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return holes, overlaps, nil
}

// Repair runs detection, then the sequential repair phase, then a second
// detection pass for the statistics. Re-running detection on the
// repaired mesh set never yields more defects than the first pass.
func (e *Engine) Repair(ctx context.Context, meshes []*kernel.Mesh) (*Result, error) {
	indexed := make([]*IndexedMesh, len(meshes))
	for i, m := range meshes {
		indexed[i] = BuildIndexed(m, e.cfg.WeldTolerance)
	}

	holes, overlaps, err := e.Detect(ctx, indexed)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Statistics.HolesDetected = len(holes)
	res.Statistics.OverlapsDetected = len(overlaps)
	res.Statistics.DefectsBefore = len(holes) + len(overlaps)

	e.log.Info("topology defects detected",
		zap.Int("holes", len(holes)),
		zap.Int("overlaps", len(overlaps)))

	// Repairs mutate the shared mesh buffers and must run one at a time.
	incomplete := false
	select {
	case <-ctx.Done():
		incomplete = true
	default:
		fillActions, fillRemaining := e.FillHoles(indexed, holes)
		res.RepairActions = append(res.RepairActions, fillActions...)
		res.Diagnostics.RemainingIssues = append(res.Diagnostics.RemainingIssues, fillRemaining...)
		for _, a := range fillActions {
			if a.Success {
				res.Statistics.HolesFilled++
			}
		}
	}
	if !incomplete {
		select {
		case <-ctx.Done():
			incomplete = true
		default:
			overlapActions, overlapRemaining := e.ResolveOverlaps(indexed, overlaps)
			res.RepairActions = append(res.RepairActions, overlapActions...)
			res.Diagnostics.RemainingIssues = append(res.Diagnostics.RemainingIssues, overlapRemaining...)
			for _, a := range overlapActions {
				if a.Success {
					res.Statistics.OverlapsResolved++
				}
			}
		}
	}
	res.Diagnostics.Incomplete = incomplete

	if !incomplete {
		holesAfter, overlapsAfter, err := e.Detect(ctx, indexed)
		if err != nil {
			res.Diagnostics.Incomplete = true
		} else {
			res.Statistics.DefectsAfter = len(holesAfter) + len(overlapsAfter)
			res.RemainingHoles = holesAfter
			res.RemainingOverlaps = overlapsAfter
		}
	} else {
		res.Statistics.DefectsAfter = res.Statistics.DefectsBefore
		res.RemainingHoles = holes
		res.RemainingOverlaps = overlaps
	}

	if res.Statistics.DefectsBefore > 0 {
		res.QualityAssessment = 1 - float64(res.Statistics.DefectsAfter)/float64(res.Statistics.DefectsBefore)
		if res.QualityAssessment < 0 {
			res.QualityAssessment = 0
		}
	} else {
		res.QualityAssessment = 1
	}

	res.RepairedMeshes = make([]*kernel.Mesh, 0, len(indexed))
	for _, im := range indexed {
		if len(im.Triangles) == 0 {
			continue // removed by an overlap resolution
		}
		res.RepairedMeshes = append(res.RepairedMeshes, im.Export())
		res.RepairedIndexed = append(res.RepairedIndexed, im)
	}

	e.log.Info("topology repair complete",
		zap.Int("filled", res.Statistics.HolesFilled),
		zap.Int("resolved", res.Statistics.OverlapsResolved),
		zap.Int("defects_after", res.Statistics.DefectsAfter),
		zap.Bool("incomplete", res.Diagnostics.Incomplete))
	return res, nil
}
