package continuity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/model"
	"github.com/geoforge/pitprep/pkg/topo"
)

// Engine detects and repairs continuity defects over a set of welded
// meshes.
type Engine struct {
	cfg config.ContinuityRepairConfig
	log *zap.Logger
}

// NewEngine returns an engine with the given tolerances. A nil logger
// is replaced with a no-op logger.
func NewEngine(cfg config.ContinuityRepairConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Statistics counts defects by continuity order before and after repair.
type Statistics struct {
	C0Before int `json:"c0_before"`
	C1Before int `json:"c1_before"`
	C2Before int `json:"c2_before"`
	C0After  int `json:"c0_after"`
	C1After  int `json:"c1_after"`
	C2After  int `json:"c2_after"`
}

// Result aggregates a full detect-and-repair run.
type Result struct {
	Statistics            Statistics                `json:"statistics"`
	ContinuityImprovement float64                   `json:"continuity_improvement"`
	RepairedDefects       []*model.RepairAction     `json:"repaired_defects"`
	FailedRepairs         []*model.RepairAction     `json:"failed_repairs"`
	Remaining             []*model.ContinuityDefect `json:"remaining"`
	RepairedMeshes        []*topo.IndexedMesh       `json:"-"`
	Recommendations       []string                  `json:"recommendations"`
}

// Detect runs the three continuity passes concurrently and returns the
// combined defect list in deterministic order.
func (e *Engine) Detect(ctx context.Context, meshes []*topo.IndexedMesh) ([]*model.ContinuityDefect, error) {
	var c0, c1, c2 []*model.ContinuityDefect

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c0, err = e.detectC0(gctx, meshes)
		return err
	})
	g.Go(func() error {
		var err error
		c1, err = e.detectC1(gctx, meshes)
		return err
	})
	g.Go(func() error {
		var err error
		c2, err = e.detectC2(gctx, meshes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("continuity detection: %w", err)
	}

	all := make([]*model.ContinuityDefect, 0, len(c0)+len(c1)+len(c2))
	all = append(all, c0...)
	all = append(all, c1...)
	all = append(all, c2...)
	sortDefects(all)
	return all, nil
}

// Repair detects continuity defects and repairs them in place over at
// most MaxIterations sequential passes, exiting early when a pass makes
// no progress. The reported improvement averages the C0 and C1 score
// gains, where the score for an order with n open defects is 1/(1+n).
func (e *Engine) Repair(ctx context.Context, meshes []*topo.IndexedMesh) (*Result, error) {
	before, err := e.Detect(ctx, meshes)
	if err != nil {
		return nil, err
	}

	res := &Result{RepairedMeshes: meshes}
	res.Statistics.C0Before, res.Statistics.C1Before, res.Statistics.C2Before = countByOrder(before)

	maxIter := e.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 3
	}

	open := before
	for iter := 0; iter < maxIter && len(open) > 0; iter++ {
		actions, repaired, err := e.repairPass(ctx, meshes, open)
		if err != nil {
			e.partition(res, actions)
			return res, err
		}
		e.partition(res, actions)
		e.log.Debug("continuity repair pass",
			zap.Int("iteration", iter),
			zap.Int("open", len(open)),
			zap.Int("repaired", repaired))
		if repaired == 0 {
			break
		}
		open, err = e.Detect(ctx, meshes)
		if err != nil {
			return res, err
		}
	}

	after, err := e.Detect(ctx, meshes)
	if err != nil {
		return res, err
	}
	res.Remaining = after
	res.Statistics.C0After, res.Statistics.C1After, res.Statistics.C2After = countByOrder(after)

	res.ContinuityImprovement = improvement(res.Statistics)
	res.Recommendations = e.recommend(after)
	return res, nil
}

// Score reports the combined continuity score for a defect list; each
// order contributes 1/(1+count) and the orders average equally.
func Score(defects []*model.ContinuityDefect) float64 {
	c0, c1, c2 := countByOrder(defects)
	return (orderScore(c0) + orderScore(c1) + orderScore(c2)) / 3
}

func orderScore(n int) float64 { return 1 / (1 + float64(n)) }

// improvement averages the C0 and C1 score gains; C2 is advisory and
// excluded so curvature features never mask a torn seam.
func improvement(s Statistics) float64 {
	g0 := orderScore(s.C0After) - orderScore(s.C0Before)
	g1 := orderScore(s.C1After) - orderScore(s.C1Before)
	return (g0 + g1) / 2
}

func countByOrder(defects []*model.ContinuityDefect) (c0, c1, c2 int) {
	for _, d := range defects {
		switch d.Order {
		case 0:
			c0++
		case 1:
			c1++
		default:
			c2++
		}
	}
	return
}

func (e *Engine) partition(res *Result, actions []*model.RepairAction) {
	for _, a := range actions {
		if a.Success {
			res.RepairedDefects = append(res.RepairedDefects, a)
		} else {
			res.FailedRepairs = append(res.FailedRepairs, a)
		}
	}
}

func (e *Engine) recommend(remaining []*model.ContinuityDefect) []string {
	var recs []string
	c0, c1, c2 := countByOrder(remaining)
	if c0 > 0 {
		recs = append(recs, fmt.Sprintf("%d positional gaps remain; consider loosening the weld tolerance or refining the seam", c0))
	}
	if c1 > 0 {
		recs = append(recs, fmt.Sprintf("%d tangent discontinuities remain; local refinement near feature edges is recommended", c1))
	}
	if c2 > 0 {
		recs = append(recs, fmt.Sprintf("%d curvature jumps remain; acceptable for meshing if element sizing accounts for them", c2))
	}
	return recs
}
