package continuity

import (
	"context"

	"github.com/geoforge/pitprep/pkg/model"
	"github.com/geoforge/pitprep/pkg/topo"
)

// repairDefect dispatches on the continuity order and returns the
// action taken together with the residual value after repair.
func (e *Engine) repairDefect(meshes []*topo.IndexedMesh, d *model.ContinuityDefect) (*model.RepairAction, float64) {
	switch d.Order {
	case 0:
		return e.repairC0(meshes, d)
	case 1:
		return e.repairC1(meshes, d)
	default:
		return e.repairC2(meshes, d)
	}
}

// repairC0 closes a positional gap by snapping both boundary vertices
// to their shared midpoint.
func (e *Engine) repairC0(meshes []*topo.IndexedMesh, d *model.ContinuityDefect) (*model.RepairAction, float64) {
	if d.MeshA >= len(meshes) || d.MeshB >= len(meshes) {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c0_interpolation", Method: "midpoint",
			Success: false, Reason: "mesh index out of range",
		}, d.Value
	}
	ma, mb := meshes[d.MeshA], meshes[d.MeshB]
	if d.VertexA >= len(ma.Positions) || d.VertexB >= len(mb.Positions) {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c0_interpolation", Method: "midpoint",
			Success: false, Reason: "vertex index out of range",
		}, d.Value
	}
	mid := midpoint(ma.Positions[d.VertexA], mb.Positions[d.VertexB])
	ma.Positions[d.VertexA] = mid
	mb.Positions[d.VertexB] = mid
	return &model.RepairAction{
		DefectID:     d.ID,
		Type:         "c0_interpolation",
		Method:       "midpoint",
		QualityDelta: d.Value,
		Success:      true,
	}, 0
}

// repairC1 reduces a normal discontinuity by one Laplacian smoothing
// step over the one-ring of both edge endpoints. Smoothing is damped
// so a single pass cannot invert nearby triangles.
func (e *Engine) repairC1(meshes []*topo.IndexedMesh, d *model.ContinuityDefect) (*model.RepairAction, float64) {
	if d.MeshA >= len(meshes) {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c1_smoothing", Method: "laplacian",
			Success: false, Reason: "mesh index out of range",
		}, d.Value
	}
	im := meshes[d.MeshA]
	before := d.Value
	smoothVertex(im, d.VertexA, 0.5)
	smoothVertex(im, d.VertexB, 0.5)
	after := residualAngle(im, d.VertexA, d.VertexB)
	if after >= before {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c1_smoothing", Method: "laplacian",
			Success: false, Reason: "smoothing did not reduce the normal deviation",
			Alternative: "refine mesh near the feature edge",
		}, before
	}
	return &model.RepairAction{
		DefectID:     d.ID,
		Type:         "c1_smoothing",
		Method:       "laplacian",
		QualityDelta: before - after,
		Success:      true,
	}, after
}

// repairC2 relaxes a curvature jump with a lighter smoothing step
// applied to both endpoints.
func (e *Engine) repairC2(meshes []*topo.IndexedMesh, d *model.ContinuityDefect) (*model.RepairAction, float64) {
	if d.MeshA >= len(meshes) {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c2_smoothing", Method: "curvature_relaxation",
			Success: false, Reason: "mesh index out of range",
		}, d.Value
	}
	im := meshes[d.MeshA]
	smoothVertex(im, d.VertexA, 0.25)
	smoothVertex(im, d.VertexB, 0.25)
	deficits := angleDeficits(im)
	after := abs(deficits[d.VertexA] - deficits[d.VertexB])
	if after >= d.Value {
		return &model.RepairAction{
			DefectID: d.ID, Type: "c2_smoothing", Method: "curvature_relaxation",
			Success: false, Reason: "relaxation did not reduce the curvature jump",
			Alternative: "accept as feature curvature",
		}, d.Value
	}
	return &model.RepairAction{
		DefectID:     d.ID,
		Type:         "c2_smoothing",
		Method:       "curvature_relaxation",
		QualityDelta: d.Value - after,
		Success:      true,
	}, after
}

// smoothVertex moves vertex v a fraction lambda toward the centroid of
// its one-ring neighbors. Boundary vertices are left in place so seams
// closed by C0 repair are not reopened.
func smoothVertex(im *topo.IndexedMesh, v int, lambda float64) {
	if v >= len(im.Positions) {
		return
	}
	boundary := make(map[int]bool)
	for _, loop := range im.BoundaryLoops() {
		for _, bv := range loop {
			boundary[bv] = true
		}
	}
	if boundary[v] {
		return
	}

	var sum [3]float64
	var n int
	seen := make(map[int]bool)
	for _, tri := range im.Triangles {
		for c := 0; c < 3; c++ {
			if tri[c] != v {
				continue
			}
			for _, o := range []int{tri[(c+1)%3], tri[(c+2)%3]} {
				if !seen[o] {
					seen[o] = true
					p := im.Positions[o]
					sum[0] += p[0]
					sum[1] += p[1]
					sum[2] += p[2]
					n++
				}
			}
		}
	}
	if n == 0 {
		return
	}
	c := [3]float64{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
	p := im.Positions[v]
	im.Positions[v] = [3]float64{
		p[0] + lambda*(c[0]-p[0]),
		p[1] + lambda*(c[1]-p[1]),
		p[2] + lambda*(c[2]-p[2]),
	}
}

// residualAngle recomputes the worst dihedral angle on interior edges
// touching either vertex.
func residualAngle(im *topo.IndexedMesh, va, vb int) float64 {
	var worst float64
	for _, ie := range interiorEdges(im) {
		if ie.a != va && ie.b != va && ie.a != vb && ie.b != vb {
			continue
		}
		if a := dihedralAngle(im, ie); a > worst {
			worst = a
		}
	}
	return worst
}

// repairPass runs one sequential pass over the sorted defect list and
// reports how many repairs succeeded.
func (e *Engine) repairPass(ctx context.Context, meshes []*topo.IndexedMesh, defects []*model.ContinuityDefect) (actions []*model.RepairAction, repaired int, err error) {
	for _, d := range defects {
		select {
		case <-ctx.Done():
			return actions, repaired, ctx.Err()
		default:
		}
		if !d.Repairable {
			continue
		}
		action, residual := e.repairDefect(meshes, d)
		actions = append(actions, action)
		if action.Success {
			repaired++
			d.Value = residual
			d.Severity = severityFor(residual, e.toleranceFor(d.Order))
		}
	}
	return actions, repaired, nil
}

func (e *Engine) toleranceFor(order int) float64 {
	switch order {
	case 0:
		return e.cfg.C0Tolerance
	case 1:
		return e.cfg.C1Tolerance
	default:
		return e.cfg.C2Tolerance
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
