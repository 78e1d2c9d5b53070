package topo

import (
	"context"
	"fmt"
	"math"

	"github.com/geoforge/pitprep/pkg/model"
)

// Hole severity steps up with area. The thresholds keep severity a
// monotonic function of the magnitude field.
func holeSeverity(area float64) model.Severity {
	switch {
	case area >= 100:
		return model.SeverityCritical
	case area >= 25:
		return model.SeverityHigh
	case area >= 5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// maxFillableLoop bounds the loop size the centroid fan can handle.
const maxFillableLoop = 64

// DetectHoles runs the hole detection pass over the mesh set. The pass is
// read-only and shares no state with overlap detection, so both may run
// concurrently. Results are ranked severity descending, then area
// descending.
func (e *Engine) DetectHoles(ctx context.Context, meshes []*IndexedMesh) ([]*model.Hole, error) {
	var holes []*model.Hole
	for mi, im := range meshes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		meanEdge := im.MeanEdgeLength()
		bbMin, bbMax := im.BoundingBox()

		for li, loop := range im.BoundaryLoops() {
			if len(loop) < 3 {
				continue
			}
			area, perimeter, center := loopMetrics(im, loop)
			h := &model.Hole{
				ID:        fmt.Sprintf("hole_%d_%d", mi, li),
				Type:      classifyHole(im, loop, perimeter, meanEdge, bbMin, bbMax),
				Severity:  holeSeverity(area),
				Area:      area,
				Perimeter: perimeter,
				Center:    center,
				MeshIndex: mi,
				Loop:      append([]int(nil), loop...),
			}
			h.Repairability = assessRepairability(h, e.cfg.MaxLoopComplexity, e.cfg.FillMethod)
			holes = append(holes, h)
		}
	}

	sortHoles(holes)
	return holes, nil
}

// loopMetrics computes a fan-triangulated area, the perimeter, and the
// centroid of a boundary loop.
func loopMetrics(im *IndexedMesh, loop []int) (area, perimeter float64, center [3]float64) {
	n := len(loop)
	for _, v := range loop {
		p := im.Positions[v]
		center[0] += p[0]
		center[1] += p[1]
		center[2] += p[2]
	}
	center[0] /= float64(n)
	center[1] /= float64(n)
	center[2] /= float64(n)

	for i := 0; i < n; i++ {
		a := im.Positions[loop[i]]
		b := im.Positions[loop[(i+1)%n]]
		perimeter += dist(a, b)
		area += triArea(center, a, b)
	}
	return area, perimeter, center
}

// classifyHole distinguishes hole types:
//   - loops lying on a face of the mesh bounding box are boundary holes
//   - loops short relative to the mean edge length are mesh gaps
//   - interface-labeled meshes yield material voids
//   - everything else is an internal void
func classifyHole(im *IndexedMesh, loop []int, perimeter, meanEdge float64, bbMin, bbMax [3]float64) model.HoleType {
	if meanEdge > 0 && perimeter < 4*meanEdge {
		return model.HoleMeshGap
	}
	if onBoundingFace(im, loop, bbMin, bbMax) {
		return model.HoleBoundary
	}
	if im.Label == "interface" {
		return model.HoleMaterialVoid
	}
	return model.HoleInternalVoid
}

// onBoundingFace reports whether every loop vertex lies on one shared
// face of the bounding box.
func onBoundingFace(im *IndexedMesh, loop []int, bbMin, bbMax [3]float64) bool {
	const eps = 1e-6
	for axis := 0; axis < 3; axis++ {
		for _, bound := range []float64{bbMin[axis], bbMax[axis]} {
			all := true
			for _, v := range loop {
				if math.Abs(im.Positions[v][axis]-bound) > eps {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
	}
	return false
}

// assessRepairability decides whether the centroid fan can close the
// hole. Complexity is the isoperimetric deficit of the loop: 0 for a
// circle, approaching 1 for degenerate slivers.
func assessRepairability(h *model.Hole, maxComplexity float64, fillMethod string) model.Repairability {
	complexity := 0.0
	if h.Perimeter > 0 {
		ratio := 4 * math.Pi * h.Area / (h.Perimeter * h.Perimeter)
		if ratio > 1 {
			ratio = 1
		}
		complexity = 1 - ratio
	}
	return model.Repairability{
		CanAutoFill: len(h.Loop) <= maxFillableLoop && complexity <= maxComplexity,
		Complexity:  complexity,
		FillMethod:  fillMethod,
	}
}

// sortHoles orders severity descending, then area descending, then id.
func sortHoles(holes []*model.Hole) {
	defects := make([]model.Defect, len(holes))
	for i, h := range holes {
		defects[i] = h
	}
	model.SortDefects(defects)
	for i, d := range defects {
		holes[i] = d.(*model.Hole)
	}
}

func triArea(a, b, c [3]float64) float64 {
	e1 := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	cx := e1[1]*e2[2] - e1[2]*e2[1]
	cy := e1[2]*e2[0] - e1[0]*e2[2]
	cz := e1[0]*e2[1] - e1[1]*e2[0]
	return 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
}
