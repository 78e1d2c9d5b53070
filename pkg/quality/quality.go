// Package quality aggregates the outcomes of topology and continuity
// repair into a single mesh-readiness assessment for the downstream
// mesher.
package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/continuity"
	"github.com/geoforge/pitprep/pkg/model"
	"github.com/geoforge/pitprep/pkg/topo"
)

// Assessor turns repair results into a readiness verdict. It performs
// no geometry work of its own.
type Assessor struct {
	cfg config.QualityConfig
}

func NewAssessor(cfg config.QualityConfig) *Assessor {
	return &Assessor{cfg: cfg}
}

// Inputs collects everything the assessment depends on.
type Inputs struct {
	Meshes        []*topo.IndexedMesh
	Topology      *topo.Result
	Continuity    *continuity.Result
	Conflicts     []model.Conflict
	Intersections []model.Intersection
}

// Assess computes the readiness verdict. The model is ready when no
// critical defect survives repair and the continuity score clears the
// configured floor. Critical regions are always reported so the mesher
// can size elements locally even on a ready model.
func (a *Assessor) Assess(in Inputs) *model.MeshReadiness {
	r := &model.MeshReadiness{
		RecommendedMeshSize: a.cfg.TargetMeshSize,
	}
	if r.RecommendedMeshSize <= 0 {
		r.RecommendedMeshSize = 2.0
	}

	if in.Continuity != nil {
		r.ContinuityScore = continuity.Score(in.Continuity.Remaining)
		r.UnresolvedCritical += countCritical(in.Continuity.Remaining)
	} else {
		r.ContinuityScore = 1
	}
	if in.Topology != nil {
		r.UnresolvedCritical += criticalRemaining(in.Topology)
	}

	minScore := a.cfg.MinContinuityScore
	if minScore <= 0 {
		minScore = 0.65
	}
	r.Ready = r.UnresolvedCritical == 0 && r.ContinuityScore >= minScore

	r.CriticalRegions = a.criticalRegions(in)
	r.EstimatedElementCount = a.estimateElements(in.Meshes, r.RecommendedMeshSize)

	if !r.Ready {
		if r.UnresolvedCritical > 0 {
			r.Notes = append(r.Notes, fmt.Sprintf("%d critical defects unresolved after repair", r.UnresolvedCritical))
		}
		if r.ContinuityScore < minScore {
			r.Notes = append(r.Notes, fmt.Sprintf("continuity score %.3f below floor %.2f", r.ContinuityScore, minScore))
		}
	}
	if in.Continuity != nil {
		r.Notes = append(r.Notes, in.Continuity.Recommendations...)
	}
	return r
}

// criticalRegions derives local refinement hints from surviving
// high-severity defects and from support intersections, where stress
// gradients concentrate.
func (a *Assessor) criticalRegions(in Inputs) []model.CriticalRegion {
	var regions []model.CriticalRegion
	local := a.cfg.TargetMeshSize / 2
	if local <= 0 {
		local = 1.0
	}

	if in.Topology != nil {
		for _, h := range in.Topology.RemainingHoles {
			if h.Severity < model.SeverityHigh {
				continue
			}
			regions = append(regions, model.CriticalRegion{
				Center:   h.Center,
				Radius:   math.Sqrt(h.Area),
				Reason:   "unfilled " + h.Type.String(),
				MeshSize: local,
			})
		}
		for _, o := range in.Topology.RemainingOverlaps {
			if o.Severity < model.SeverityHigh {
				continue
			}
			regions = append(regions, model.CriticalRegion{
				Center:   o.Center,
				Radius:   math.Cbrt(o.OverlapVolume),
				Reason:   "unresolved " + o.Type.String(),
				MeshSize: local,
			})
		}
	}
	if in.Continuity != nil {
		for _, d := range in.Continuity.Remaining {
			if d.Severity < model.SeverityHigh {
				continue
			}
			regions = append(regions, model.CriticalRegion{
				Center:   d.Position,
				Radius:   local * 2,
				Reason:   fmt.Sprintf("c%d discontinuity", d.Order),
				MeshSize: local,
			})
		}
	}
	for _, ix := range in.Intersections {
		if ix.Geometry.Empty() {
			continue
		}
		regions = append(regions, model.CriticalRegion{
			Center:   ix.Geometry.Centroid,
			Radius:   math.Cbrt(ix.Geometry.Volume) + local,
			Reason:   "support intersection (" + string(ix.Connector) + ")",
			MeshSize: local,
		})
	}
	for _, c := range in.Conflicts {
		if c.Severity < model.SeverityHigh {
			continue
		}
		regions = append(regions, model.CriticalRegion{
			Center:   c.Location,
			Radius:   local * 2,
			Reason:   string(c.Type),
			MeshSize: local,
		})
	}

	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Reason < regions[j].Reason })
	return regions
}

// estimateElements approximates the tetrahedral element count from the
// total surface area and the target size: surface triangles at the
// target edge length, scaled by a fill factor for the interior.
func (a *Assessor) estimateElements(meshes []*topo.IndexedMesh, size float64) int {
	if size <= 0 {
		return 0
	}
	var area float64
	for _, im := range meshes {
		for t := range im.Triangles {
			area += triangleArea(im, t)
		}
	}
	triArea := math.Sqrt(3) / 4 * size * size
	if triArea <= 0 {
		return 0
	}
	surfaceTris := area / triArea
	// interior tets per surface triangle, empirical for graded meshes
	return int(surfaceTris * 4)
}

func triangleArea(im *topo.IndexedMesh, t int) float64 {
	tri := im.Triangles[t]
	a := im.Positions[tri[0]]
	b := im.Positions[tri[1]]
	c := im.Positions[tri[2]]
	e1 := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float64{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	return 0.5 * math.Sqrt(n[0]*n[0]+n[1]*n[1]+n[2]*n[2])
}

func countCritical(defects []*model.ContinuityDefect) int {
	var n int
	for _, d := range defects {
		if d.Severity == model.SeverityCritical {
			n++
		}
	}
	return n
}

func criticalRemaining(res *topo.Result) int {
	var n int
	for _, h := range res.RemainingHoles {
		if h.Severity == model.SeverityCritical {
			n++
		}
	}
	for _, o := range res.RemainingOverlaps {
		if o.Severity == model.SeverityCritical {
			n++
		}
	}
	return n
}
