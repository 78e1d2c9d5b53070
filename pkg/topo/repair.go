package topo

import (
	"fmt"
	"math"

	"github.com/geoforge/pitprep/pkg/model"
)

// FillHoles closes auto-fillable holes with a centroid fan. Only holes
// with CanAutoFill and area within MaxHoleSize are processed; the rest
// are reported back as remaining issues. Each attempted fill produces
// one RepairAction.
func (e *Engine) FillHoles(meshes []*IndexedMesh, holes []*model.Hole) ([]model.RepairAction, []string) {
	var actions []model.RepairAction
	var remaining []string

	var totalBoundary int
	for _, h := range holes {
		totalBoundary += len(h.Loop)
	}

	for _, h := range holes {
		if !h.Repairability.CanAutoFill {
			remaining = append(remaining, fmt.Sprintf(
				"hole %s left unrepaired: not auto-fillable (complexity %.2f)", h.ID, h.Repairability.Complexity))
			continue
		}
		if h.Area > e.cfg.MaxHoleSize {
			remaining = append(remaining, fmt.Sprintf(
				"hole %s left unrepaired: area %.2f exceeds max hole size %.2f", h.ID, h.Area, e.cfg.MaxHoleSize))
			continue
		}
		if h.MeshIndex < 0 || h.MeshIndex >= len(meshes) {
			actions = append(actions, model.RepairAction{
				DefectID: h.ID, Type: "hole_fill", Method: h.Repairability.FillMethod,
				Success: false, Reason: "mesh no longer present in working set",
				Alternative: "re-run detection",
			})
			continue
		}

		fillLoop(meshes[h.MeshIndex], h.Loop, h.Center)
		delta := 0.0
		if totalBoundary > 0 {
			delta = float64(len(h.Loop)) / float64(totalBoundary)
		}
		actions = append(actions, model.RepairAction{
			DefectID:     h.ID,
			Type:         "hole_fill",
			Method:       h.Repairability.FillMethod,
			QualityDelta: delta,
			Success:      true,
		})
	}
	return actions, remaining
}

// fillLoop appends a centroid vertex and one triangle per loop edge.
// The fan triangles reverse the boundary direction so their winding
// matches the surrounding surface.
func fillLoop(im *IndexedMesh, loop []int, center [3]float64) {
	ci := len(im.Positions)
	im.Positions = append(im.Positions, center)
	n := len(loop)
	for i := 0; i < n; i++ {
		a := loop[i]
		b := loop[(i+1)%n]
		im.Triangles = append(im.Triangles, [3]int{b, a, ci})
	}
}

// ResolveOverlaps applies each overlap's declared resolution method.
// A resolution is refused when the projected element quality after the
// change would fall below MinElementQuality; the overlap is then
// reported unresolved instead of silently degrading the mesh.
func (e *Engine) ResolveOverlaps(meshes []*IndexedMesh, overlaps []*model.Overlap) ([]model.RepairAction, []string) {
	var actions []model.RepairAction
	var remaining []string

	for _, o := range overlaps {
		if o.MeshA < 0 || o.MeshA >= len(meshes) || o.MeshB < 0 || o.MeshB >= len(meshes) {
			actions = append(actions, model.RepairAction{
				DefectID: o.ID, Type: "overlap_" + string(o.Resolution),
				Success: false, Reason: "participant mesh no longer present",
				Alternative: "re-run detection",
			})
			continue
		}
		a, b := meshes[o.MeshA], meshes[o.MeshB]
		if len(a.Positions) == 0 || len(b.Positions) == 0 {
			continue // already removed by an earlier resolution
		}

		quality := projectedQuality(a, b)
		if quality < e.cfg.MinElementQuality {
			remaining = append(remaining, fmt.Sprintf(
				"overlap %s unresolved: projected element quality %.2f below minimum %.2f",
				o.ID, quality, e.cfg.MinElementQuality))
			actions = append(actions, model.RepairAction{
				DefectID: o.ID, Type: "overlap_" + string(o.Resolution),
				Success:     false,
				Reason:      fmt.Sprintf("projected element quality %.2f below minimum", quality),
				Alternative: string(model.ResolveRemove),
			})
			continue
		}

		switch o.Resolution {
		case model.ResolveMerge:
			mergeMeshes(a, b, e.cfg.WeldTolerance*10)
		case model.ResolveAdjust:
			separate(a, b, 1.0) // move B clear of A
		case model.ResolveSplit:
			separate(a, b, 0.5) // split the correction between both
			separateOther(a, b, 0.5)
		case model.ResolveRemove:
			removeSmaller(a, b)
		default:
			actions = append(actions, model.RepairAction{
				DefectID: o.ID, Type: "overlap_resolve",
				Success: false, Reason: fmt.Sprintf("unknown resolution method %q", o.Resolution),
				Alternative: string(model.ResolveAdjust),
			})
			continue
		}

		actions = append(actions, model.RepairAction{
			DefectID:     o.ID,
			Type:         "overlap_" + string(o.Resolution),
			Method:       string(o.Resolution),
			QualityDelta: quality,
			Success:      true,
		})
	}
	return actions, remaining
}

// projectedQuality estimates how badly separating or merging the pair
// would distort elements: deep interpenetration relative to the smaller
// participant leaves little room for well-shaped elements.
func projectedQuality(a, b *IndexedMesh) float64 {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	var overlapVol float64 = 1
	for axis := 0; axis < 3; axis++ {
		lo := math.Max(minA[axis], minB[axis])
		hi := math.Min(maxA[axis], maxB[axis])
		if hi <= lo {
			return 1
		}
		overlapVol *= hi - lo
	}
	smaller := math.Min(boxVol(minA, maxA), boxVol(minB, maxB))
	if smaller <= 0 {
		return 1
	}
	q := 1 - overlapVol/smaller
	if q < 0 {
		return 0
	}
	return q
}

// mergeMeshes folds b into a, re-welding so near-coincident vertices
// across the pair collapse. b is emptied.
func mergeMeshes(a, b *IndexedMesh, weldTolerance float64) {
	offset := len(a.Positions)
	a.Positions = append(a.Positions, b.Positions...)
	for _, tri := range b.Triangles {
		a.Triangles = append(a.Triangles, [3]int{tri[0] + offset, tri[1] + offset, tri[2] + offset})
	}
	rewelded := BuildIndexed(a.Export(), weldTolerance)
	a.Positions = rewelded.Positions
	a.Triangles = rewelded.Triangles
	b.Positions = nil
	b.Triangles = nil
}

// separate translates b away from a along the axis of minimum
// penetration by fraction of the penetration depth.
func separate(a, b *IndexedMesh, fraction float64) {
	axis, pen, sign := penetrationAxis(a, b)
	if pen <= 0 {
		return
	}
	shift := sign * pen * fraction
	for i := range b.Positions {
		b.Positions[i][axis] += shift
	}
}

// separateOther translates a the opposite way, used by the split method.
func separateOther(a, b *IndexedMesh, fraction float64) {
	axis, pen, sign := penetrationAxis(b, a)
	if pen <= 0 {
		return
	}
	shift := sign * pen * fraction
	for i := range a.Positions {
		a.Positions[i][axis] += shift
	}
}

// penetrationAxis finds the axis of least interpenetration and the
// direction that moves b's bounding box clear of a's.
func penetrationAxis(a, b *IndexedMesh) (axis int, pen, sign float64) {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	pen = math.Inf(1)
	for ax := 0; ax < 3; ax++ {
		lo := math.Max(minA[ax], minB[ax])
		hi := math.Min(maxA[ax], maxB[ax])
		if hi <= lo {
			return ax, 0, 1
		}
		if p := hi - lo; p < pen {
			pen = p
			axis = ax
			// Push b toward the side of its own center.
			if (minB[ax]+maxB[ax])/2 >= (minA[ax]+maxA[ax])/2 {
				sign = 1
			} else {
				sign = -1
			}
		}
	}
	return axis, pen, sign
}

// removeSmaller empties the mesh with the smaller bounding volume.
func removeSmaller(a, b *IndexedMesh) {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	target := b
	if boxVol(minA, maxA) < boxVol(minB, maxB) {
		target = a
	}
	target.Positions = nil
	target.Triangles = nil
}
