package topo

import (
	"context"
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/geoforge/pitprep/pkg/model"
)

// Overlap severity steps with the ratio of overlap volume to the smaller
// participant's bounding volume, monotonic in the magnitude field.
func overlapSeverity(overlapVol, smallerVol float64) model.Severity {
	if smallerVol <= 0 {
		return model.SeverityLow
	}
	ratio := overlapVol / smallerVol
	switch {
	case ratio >= 0.5:
		return model.SeverityCritical
	case ratio >= 0.1:
		return model.SeverityHigh
	case ratio >= 0.01:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// meshEntry adapts an indexed mesh to the R-tree Spatial interface.
type meshEntry struct {
	index int
	rect  rtreego.Rect
}

func (m *meshEntry) Bounds() rtreego.Rect { return m.rect }

// DetectOverlaps runs the overlap detection pass over the mesh set.
// Candidate pairs come from an R-tree over mesh bounding boxes; each
// candidate is classified by its penetration geometry. The pass is
// read-only. Results are ranked severity descending, then overlap volume
// descending.
func (e *Engine) DetectOverlaps(ctx context.Context, meshes []*IndexedMesh) ([]*model.Overlap, error) {
	tree := rtreego.NewTree(3, 2, 8)
	rects := make([]rtreego.Rect, len(meshes))
	for i, im := range meshes {
		if len(im.Positions) == 0 {
			continue
		}
		min, max := im.BoundingBox()
		rect, err := rtreego.NewRect(
			rtreego.Point{min[0], min[1], min[2]},
			[]float64{extent(min[0], max[0]), extent(min[1], max[1]), extent(min[2], max[2])},
		)
		if err != nil {
			return nil, fmt.Errorf("topo: mesh %d bounding rect: %w", i, err)
		}
		rects[i] = rect
		tree.Insert(&meshEntry{index: i, rect: rect})
	}

	seen := make(map[[2]int]bool)
	var overlaps []*model.Overlap
	for i, im := range meshes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if len(im.Positions) == 0 {
			continue
		}
		for _, hit := range tree.SearchIntersect(rects[i]) {
			j := hit.(*meshEntry).index
			if j == i {
				continue
			}
			key := [2]int{minInt(i, j), maxInt(i, j)}
			if seen[key] {
				continue
			}
			seen[key] = true
			if o := e.classifyOverlap(key[0], key[1], meshes[key[0]], meshes[key[1]]); o != nil {
				overlaps = append(overlaps, o)
			}
		}
	}

	sortOverlaps(overlaps)
	return overlaps, nil
}

// classifyOverlap measures the AABB penetration of a candidate pair and
// classifies it:
//   - penetration below the weld tolerance: vertex_merge
//   - thin in two axes: edge_collision
//   - thin in one axis: surface_overlap
//   - substantial in all axes: volume_intersection
func (e *Engine) classifyOverlap(i, j int, a, b *IndexedMesh) *model.Overlap {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()

	var pen [3]float64
	for axis := 0; axis < 3; axis++ {
		lo := math.Max(minA[axis], minB[axis])
		hi := math.Min(maxA[axis], maxB[axis])
		if hi <= lo {
			return nil
		}
		pen[axis] = hi - lo
	}
	overlapVol := pen[0] * pen[1] * pen[2]

	thinAt := math.Max(a.MeanEdgeLength(), b.MeanEdgeLength())
	if thinAt <= 0 {
		thinAt = e.cfg.WeldTolerance
	}
	thinAxes := 0
	minPen := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if pen[axis] < thinAt {
			thinAxes++
		}
		minPen = math.Min(minPen, pen[axis])
	}

	var typ model.OverlapType
	switch {
	case minPen <= e.cfg.WeldTolerance*10:
		typ = model.OverlapVertexMerge
	case thinAxes >= 2:
		typ = model.OverlapEdgeCollision
	case thinAxes == 1:
		typ = model.OverlapSurface
	default:
		typ = model.OverlapVolume
	}

	volA := boxVol(minA, maxA)
	volB := boxVol(minB, maxB)
	smaller := math.Min(volA, volB)

	center := [3]float64{
		(math.Max(minA[0], minB[0]) + math.Min(maxA[0], maxB[0])) / 2,
		(math.Max(minA[1], minB[1]) + math.Min(maxA[1], maxB[1])) / 2,
		(math.Max(minA[2], minB[2]) + math.Min(maxA[2], maxB[2])) / 2,
	}

	return &model.Overlap{
		ID:            fmt.Sprintf("overlap_%d_%d", i, j),
		Type:          typ,
		Severity:      overlapSeverity(overlapVol, smaller),
		OverlapVolume: overlapVol,
		Center:        center,
		SolidA:        a.Label,
		SolidB:        b.Label,
		MeshA:         i,
		MeshB:         j,
		Resolution:    defaultResolution(typ),
	}
}

// defaultResolution declares the strategy resolveOverlaps will apply.
func defaultResolution(t model.OverlapType) model.ResolutionMethod {
	switch t {
	case model.OverlapVertexMerge:
		return model.ResolveMerge
	case model.OverlapSurface:
		return model.ResolveAdjust
	case model.OverlapEdgeCollision:
		return model.ResolveAdjust
	default:
		return model.ResolveSplit
	}
}

func sortOverlaps(overlaps []*model.Overlap) {
	defects := make([]model.Defect, len(overlaps))
	for i, o := range overlaps {
		defects[i] = o
	}
	model.SortDefects(defects)
	for i, d := range defects {
		overlaps[i] = d.(*model.Overlap)
	}
}

// extent pads zero-width axes so flat meshes still form valid rects.
func extent(lo, hi float64) float64 {
	if hi-lo < 1e-9 {
		return 1e-9
	}
	return hi - lo
}

func boxVol(min, max [3]float64) float64 {
	return (max[0] - min[0]) * (max[1] - min[1]) * (max[2] - min[2])
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
