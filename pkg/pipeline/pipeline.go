// Package pipeline orchestrates a full excavation modeling run: solid
// construction, sequenced boolean excavation, structure intersection
// resolution, tessellation, topology and continuity repair, and the
// final mesh-readiness assessment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/boolean"
	"github.com/geoforge/pitprep/pkg/builder"
	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/continuity"
	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
	"github.com/geoforge/pitprep/pkg/quality"
	"github.com/geoforge/pitprep/pkg/resolve"
	"github.com/geoforge/pitprep/pkg/sequence"
	"github.com/geoforge/pitprep/pkg/tessellate"
	"github.com/geoforge/pitprep/pkg/topo"
)

// softFillModulusFactor scales the soil modulus for the soft-fill
// interface solids emitted where wall panels replace soil.
const softFillModulusFactor = 0.1

// Pipeline owns the working solid and mesh set for exactly one Model
// call at a time; it is not safe for concurrent runs.
type Pipeline struct {
	k   kernel.Kernel
	cfg config.ModelingConfig
	log *zap.Logger

	engine   *boolean.Engine
	topoEng  *topo.Engine
	contEng  *continuity.Engine
	assessor *quality.Assessor
}

// New wires a pipeline from a kernel and a validated configuration.
func New(k kernel.Kernel, cfg config.ModelingConfig, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	eng, err := boolean.NewEngine(k, cfg.Boolean)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		k:        k,
		cfg:      cfg,
		log:      log,
		engine:   eng,
		topoEng:  topo.NewEngine(cfg.Topology, log.Named("topo")),
		contEng:  continuity.NewEngine(cfg.Continuity, log.Named("continuity")),
		assessor: quality.NewAssessor(cfg.Quality),
	}, nil
}

// OperationRecord summarizes one boolean operation performed by a run.
type OperationRecord struct {
	Operation string        `json:"operation"`
	Target    string        `json:"target"`
	Tool      string        `json:"tool"`
	Success   bool          `json:"success"`
	Fallback  bool          `json:"fallback"`
	Duration  time.Duration `json:"duration"`
}

// ComponentSummary counts the solids a run produced by role and keeps
// the per-stage volumes for reporting.
type ComponentSummary struct {
	Soil         int       `json:"soil"`
	Excavation   int       `json:"excavation"`
	Walls        int       `json:"walls"`
	Anchors      int       `json:"anchors"`
	Struts       int       `json:"struts"`
	Interfaces   int       `json:"interfaces"`
	StageVolumes []float64 `json:"stage_volumes,omitempty"`
	TotalVolume  float64   `json:"total_volume"`
}

// QualityMetrics aggregates the repair outcomes of one run.
type QualityMetrics struct {
	TopologyQuality       float64 `json:"topology_quality"`
	HolesFilled           int     `json:"holes_filled"`
	OverlapsResolved      int     `json:"overlaps_resolved"`
	ContinuityScore       float64 `json:"continuity_score"`
	ContinuityImprovement float64 `json:"continuity_improvement"`
	ConflictSummary       string  `json:"conflict_summary"`
}

// Result is the terminal artifact of one modeling run.
type Result struct {
	Success        bool                  `json:"success"`
	Components     ComponentSummary      `json:"components"`
	Operations     []OperationRecord     `json:"operations"`
	Quality        QualityMetrics        `json:"quality"`
	Readiness      *model.MeshReadiness  `json:"readiness,omitempty"`
	FallbackMode   bool                  `json:"fallback_mode"`
	Conflicts      []model.Conflict      `json:"conflicts,omitempty"`
	Intersections  []model.Intersection  `json:"intersections,omitempty"`
	FailedRepairs  []*model.RepairAction `json:"failed_repairs,omitempty"`
	Diagnostics    []string              `json:"diagnostics,omitempty"`
	Solids         []*model.Solid        `json:"-"`
	RepairedMeshes []*kernel.Mesh        `json:"-"`
}

// Model runs the whole preparation pipeline. The run is bounded by
// PerformanceConfig.MaxProcessingTime; on timeout the partial result is
// returned with an incomplete diagnostic rather than an error. Repair
// failures accumulate in FailedRepairs and never abort the run.
func (p *Pipeline) Model(ctx context.Context, geom model.ExcavationGeometry, support model.SupportStructure, geo model.GeologicalCondition) (*Result, error) {
	if p.cfg.Performance.MaxProcessingTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Performance.MaxProcessingTime)
		defer cancel()
	}

	res := &Result{}

	issues := builder.ValidateInputs(geom, support, geo)
	for _, is := range issues {
		res.Diagnostics = append(res.Diagnostics, is.String())
	}
	if builder.Blocking(issues) {
		return res, fmt.Errorf("pipeline: input validation failed with %d issues", len(issues))
	}

	b := builder.New(p.k)

	soil, err := b.SoilDomain(geom, geo)
	if err != nil {
		return res, err
	}
	layers, err := b.SoilLayers(geom, geo)
	if err != nil {
		return res, err
	}
	excavation, err := b.ExcavationVolume(geom)
	if err != nil {
		return res, err
	}

	// The pit cut is the run's load-bearing boolean; a failure here
	// degrades to the AABB approximation instead of aborting.
	pit := p.cut(ctx, res, soil, excavation)

	structures, err := p.buildSupport(b, geom, support)
	if err != nil {
		return res, err
	}

	// Soft-fill interface solids where wall panels displace soil.
	var interfaces []*model.Solid
	for _, s := range structures {
		if s.Kind != model.KindWall {
			continue
		}
		pit = p.cut(ctx, res, pit, s)
		interfaces = append(interfaces, p.softFill(s))
	}

	seq, err := sequence.New(b, geom, p.log.Named("sequence"))
	if err != nil {
		return res, err
	}
	stageSolids, err := seq.Run()
	if err != nil {
		return res, err
	}
	for _, st := range seq.Stages() {
		res.Components.StageVolumes = append(res.Components.StageVolumes, st.Volume)
	}

	resolver := resolve.New(p.k, p.engine, p.log.Named("resolve"))
	resolution, err := resolver.Resolve(ctx, structures)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Diagnostics = append(res.Diagnostics, "incomplete: deadline during intersection resolution")
			return res, nil
		}
		return res, err
	}
	res.Conflicts = resolution.Conflicts
	res.Intersections = resolution.Intersections
	res.Quality.ConflictSummary = resolution.ConflictSummary

	res.Solids = append(res.Solids, soil, excavation, pit)
	res.Solids = append(res.Solids, layers...)
	res.Solids = append(res.Solids, structures...)
	res.Solids = append(res.Solids, interfaces...)
	res.Solids = append(res.Solids, resolution.Connectors...)
	res.Solids = append(res.Solids, stageSolids...)
	p.summarize(res)

	meshes, err := p.tessellate(ctx, pit, structures, resolution.Connectors)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Diagnostics = append(res.Diagnostics, "incomplete: deadline during tessellation")
			return res, nil
		}
		return res, err
	}

	topoRes, err := p.topoEng.Repair(ctx, meshes)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Diagnostics = append(res.Diagnostics, "incomplete: deadline during topology repair")
			return res, nil
		}
		return res, err
	}
	res.Quality.TopologyQuality = topoRes.QualityAssessment
	res.Quality.HolesFilled = topoRes.Statistics.HolesFilled
	res.Quality.OverlapsResolved = topoRes.Statistics.OverlapsResolved
	for i := range topoRes.RepairActions {
		if !topoRes.RepairActions[i].Success {
			res.FailedRepairs = append(res.FailedRepairs, &topoRes.RepairActions[i])
		}
	}
	if topoRes.Diagnostics.Incomplete {
		res.Diagnostics = append(res.Diagnostics, "incomplete: topology repair interrupted")
	}
	res.Diagnostics = append(res.Diagnostics, topoRes.Diagnostics.RemainingIssues...)

	contRes, err := p.contEng.Repair(ctx, topoRes.RepairedIndexed)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		res.Diagnostics = append(res.Diagnostics, "incomplete: deadline during continuity repair")
	}
	if contRes != nil {
		res.Quality.ContinuityImprovement = contRes.ContinuityImprovement
		res.Quality.ContinuityScore = continuity.Score(contRes.Remaining)
		res.FailedRepairs = append(res.FailedRepairs, contRes.FailedRepairs...)
	}

	readiness := p.assessor.Assess(quality.Inputs{
		Meshes:        topoRes.RepairedIndexed,
		Topology:      topoRes,
		Continuity:    contRes,
		Conflicts:     resolution.Conflicts,
		Intersections: resolution.Intersections,
	})
	res.Readiness = readiness
	res.RepairedMeshes = topoRes.RepairedMeshes
	res.Success = true // a run with surviving issues still succeeds

	p.log.Info("modeling run complete",
		zap.Bool("ready", readiness.Ready),
		zap.Float64("continuity_score", readiness.ContinuityScore),
		zap.Int("unresolved_critical", readiness.UnresolvedCritical),
		zap.Bool("fallback", res.FallbackMode),
		zap.Int("solids", len(res.Solids)))
	return res, nil
}

// cut applies target - tool through the boolean engine, degrading to
// the AABB approximation on failure and recording the operation either
// way.
func (p *Pipeline) cut(ctx context.Context, res *Result, target, tool *model.Solid) *model.Solid {
	start := time.Now()
	out, err := p.engine.Cut(ctx, target, tool)
	rec := OperationRecord{
		Operation: "cut",
		Target:    target.Short(),
		Tool:      tool.Short(),
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		p.log.Warn("boolean cut failed, using approximate fallback",
			zap.String("target", target.Short()),
			zap.String("tool", tool.Short()),
			zap.Error(err))
		out = p.engine.CutApprox(target, tool)
		rec.Fallback = true
		res.FallbackMode = true
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("cut %s - %s degraded to aabb approximation: %v", target.Short(), tool.Short(), err))
	}
	res.Operations = append(res.Operations, rec)
	return out
}

// softFill emits the companion interface solid for a wall panel: the
// displaced soil region refilled with a reduced-modulus material so the
// downstream model keeps a conforming contact zone.
func (p *Pipeline) softFill(wall *model.Solid) *model.Solid {
	s := model.NewSolid(wall.Name+"_softfill", model.KindInterface, wall.Shape, wall.Volume)
	s.Seq = wall.Seq
	s.SetAttribute("modulus_factor", fmt.Sprintf("%g", softFillModulusFactor))
	s.SetAttribute("source_wall", wall.ID)
	return s
}

// buildSupport constructs every configured support structure in a fixed
// order: walls, then anchors, then struts, then waler beams.
func (p *Pipeline) buildSupport(b *builder.Builder, geom model.ExcavationGeometry, support model.SupportStructure) ([]*model.Solid, error) {
	var out []*model.Solid
	if support.DiaphragmWalls.Enabled {
		walls, err := b.DiaphragmWall(geom, support.DiaphragmWalls)
		if err != nil {
			return nil, err
		}
		out = append(out, walls...)
	}
	for i, spec := range support.Anchors {
		a, err := b.Anchor(geom, spec)
		if err != nil {
			return nil, fmt.Errorf("pipeline: anchor %d: %w", i, err)
		}
		out = append(out, a)
	}
	for i, spec := range support.SteelStruts {
		struts, err := b.Struts(geom, spec)
		if err != nil {
			return nil, fmt.Errorf("pipeline: strut level %d: %w", i, err)
		}
		out = append(out, struts...)
	}
	if support.Beams.Enabled {
		beams, err := b.WalerBeams(geom, support.Beams)
		if err != nil {
			return nil, err
		}
		out = append(out, beams...)
	}
	return out, nil
}

// tessellate converts the meshable working set into triangle meshes.
// Stage and layer solids are bookkeeping geometry and are filtered out
// by the tessellator.
func (p *Pipeline) tessellate(ctx context.Context, pit *model.Solid, structures, connectors []*model.Solid) ([]*kernel.Mesh, error) {
	targets := make([]*model.Solid, 0, 1+len(structures)+len(connectors))
	targets = append(targets, pit)
	targets = append(targets, structures...)
	targets = append(targets, connectors...)

	meshes, err := tessellate.Solids(ctx, p.k, targets)
	if err != nil {
		return nil, err
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("pipeline: no solid could be tessellated")
	}
	st := tessellate.Summarize(meshes)
	p.log.Debug("tessellation complete",
		zap.Int("meshes", st.Meshes),
		zap.Int("triangles", st.Triangles),
		zap.Float64("surface_area", st.SurfaceArea))
	return meshes, nil
}

func (p *Pipeline) summarize(res *Result) {
	for _, s := range res.Solids {
		res.Components.TotalVolume += s.Volume
		switch s.Kind {
		case model.KindSoil:
			res.Components.Soil++
		case model.KindExcavation:
			res.Components.Excavation++
		case model.KindWall:
			res.Components.Walls++
		case model.KindAnchor:
			res.Components.Anchors++
		case model.KindStrut:
			res.Components.Struts++
		case model.KindInterface:
			res.Components.Interfaces++
		}
	}
}
