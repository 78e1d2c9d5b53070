// Package continuity detects and repairs geometric continuity defects
// across mesh boundaries: C0 (position), C1 (normal/tangent), and C2
// (curvature). Detection passes are independent and run concurrently;
// repair is iterative and strictly sequential over the shared mesh
// buffer.
package continuity

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/geoforge/pitprep/pkg/model"
	"github.com/geoforge/pitprep/pkg/topo"
)

// severityFor maps a magnitude-to-tolerance ratio onto the severity
// scale; monotonic in the magnitude for a fixed tolerance.
func severityFor(magnitude, tolerance float64) model.Severity {
	if tolerance <= 0 {
		return model.SeverityLow
	}
	ratio := magnitude / tolerance
	switch {
	case ratio >= 10:
		return model.SeverityCritical
	case ratio >= 5:
		return model.SeverityHigh
	case ratio >= 2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// c0SearchFactor bounds the neighborhood searched for positional gaps:
// gaps beyond c0Tolerance*c0SearchFactor belong to distinct features,
// not to a torn seam.
const c0SearchFactor = 20.0

// seamVertex adapts one boundary vertex to the R-tree Spatial interface.
type seamVertex struct {
	mesh, vertex int
	pos          [3]float64
	rect         rtreego.Rect
}

func (v *seamVertex) Bounds() rtreego.Rect { return v.rect }

// detectC0 finds boundary vertices of different meshes that sit close
// enough to belong to one seam but farther apart than the tolerance.
// Candidates come from an R-tree over the boundary vertices, so long
// seams avoid a full pairwise scan.
func (e *Engine) detectC0(ctx context.Context, meshes []*topo.IndexedMesh) ([]*model.ContinuityDefect, error) {
	tree := rtreego.NewTree(3, 2, 8)
	var verts []*seamVertex
	for mi, im := range meshes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		seen := make(map[int]bool)
		for _, loop := range im.BoundaryLoops() {
			for _, v := range loop {
				if seen[v] {
					continue
				}
				seen[v] = true
				p := im.Positions[v]
				rect, err := rtreego.NewRect(
					rtreego.Point{p[0], p[1], p[2]},
					[]float64{1e-9, 1e-9, 1e-9},
				)
				if err != nil {
					return nil, fmt.Errorf("continuity: boundary vertex rect: %w", err)
				}
				sv := &seamVertex{mesh: mi, vertex: v, pos: p, rect: rect}
				verts = append(verts, sv)
				tree.Insert(sv)
			}
		}
	}

	searchRadius := e.cfg.C0Tolerance * c0SearchFactor
	var defects []*model.ContinuityDefect
	for _, a := range verts {
		query, err := rtreego.NewRect(
			rtreego.Point{a.pos[0] - searchRadius, a.pos[1] - searchRadius, a.pos[2] - searchRadius},
			[]float64{2 * searchRadius, 2 * searchRadius, 2 * searchRadius},
		)
		if err != nil {
			return nil, fmt.Errorf("continuity: seam query rect: %w", err)
		}
		for _, hit := range tree.SearchIntersect(query) {
			b := hit.(*seamVertex)
			// Cross-mesh pairs only, emitted once with the lower mesh first.
			if b.mesh <= a.mesh {
				continue
			}
			gap := dist(a.pos, b.pos)
			if gap <= e.cfg.C0Tolerance || gap > searchRadius {
				continue
			}
			defects = append(defects, &model.ContinuityDefect{
				ID:       fmt.Sprintf("c0_%d_%d_%d_%d", a.mesh, a.vertex, b.mesh, b.vertex),
				Order:    0,
				Severity: severityFor(gap, e.cfg.C0Tolerance),
				Value:    gap,
				Position: midpoint(a.pos, b.pos),
				MeshA:    a.mesh, VertexA: a.vertex,
				MeshB: b.mesh, VertexB: b.vertex,
				Repairable: true,
			})
		}
	}
	return defects, nil
}

// detectC1 measures the dihedral angle across every interior edge and
// reports edges whose adjacent face normals diverge beyond C1Tolerance
// degrees.
func (e *Engine) detectC1(ctx context.Context, meshes []*topo.IndexedMesh) ([]*model.ContinuityDefect, error) {
	var defects []*model.ContinuityDefect
	for mi, im := range meshes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, ie := range interiorEdges(im) {
			angle := dihedralAngle(im, ie)
			if angle <= e.cfg.C1Tolerance {
				continue
			}
			// Sharp feature edges are expected on engineering solids;
			// only report them as repairable when moderate. Near-right
			// angles are geometry, not defects.
			if angle > 60 {
				continue
			}
			defects = append(defects, &model.ContinuityDefect{
				ID:       fmt.Sprintf("c1_%d_%d_%d", mi, ie.a, ie.b),
				Order:    1,
				Severity: severityFor(angle, e.cfg.C1Tolerance),
				Value:    angle,
				Position: midpoint(im.Positions[ie.a], im.Positions[ie.b]),
				MeshA:    mi, VertexA: ie.a,
				MeshB: mi, VertexB: ie.b,
				Repairable: true,
			})
		}
	}
	return defects, nil
}

// detectC2 compares the angle-deficit curvature proxy of the two
// endpoints of every interior edge; a jump beyond C2Tolerance marks a
// curvature discontinuity.
func (e *Engine) detectC2(ctx context.Context, meshes []*topo.IndexedMesh) ([]*model.ContinuityDefect, error) {
	var defects []*model.ContinuityDefect
	for mi, im := range meshes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		deficits := angleDeficits(im)
		for _, ie := range interiorEdges(im) {
			jump := math.Abs(deficits[ie.a] - deficits[ie.b])
			if jump <= e.cfg.C2Tolerance {
				continue
			}
			defects = append(defects, &model.ContinuityDefect{
				ID:       fmt.Sprintf("c2_%d_%d_%d", mi, ie.a, ie.b),
				Order:    2,
				Severity: severityFor(jump, e.cfg.C2Tolerance),
				Value:    jump,
				Position: midpoint(im.Positions[ie.a], im.Positions[ie.b]),
				MeshA:    mi, VertexA: ie.a,
				MeshB: mi, VertexB: ie.b,
				Repairable: true,
			})
		}
	}
	return defects, nil
}

// interiorEdge is an edge with exactly two incident triangles.
type interiorEdge struct {
	a, b   int
	t1, t2 int
}

// interiorEdges collects interior edges in deterministic triangle order.
func interiorEdges(im *topo.IndexedMesh) []interiorEdge {
	type ek struct{ lo, hi int }
	first := make(map[ek]int)
	var edges []interiorEdge
	counted := make(map[ek]int)

	for ti, tri := range im.Triangles {
		pairs := [3][2]int{{tri[0], tri[1]}, {tri[1], tri[2]}, {tri[2], tri[0]}}
		for _, p := range pairs {
			k := ek{p[0], p[1]}
			if k.lo > k.hi {
				k.lo, k.hi = k.hi, k.lo
			}
			counted[k]++
			switch counted[k] {
			case 1:
				first[k] = ti
			case 2:
				edges = append(edges, interiorEdge{a: k.lo, b: k.hi, t1: first[k], t2: ti})
			}
		}
	}
	return edges
}

// dihedralAngle returns the angle in degrees between the face normals of
// the two triangles sharing the edge.
func dihedralAngle(im *topo.IndexedMesh, ie interiorEdge) float64 {
	n1 := faceNormal(im, ie.t1)
	n2 := faceNormal(im, ie.t2)
	d := n1[0]*n2[0] + n1[1]*n2[1] + n1[2]*n2[2]
	if d > 1 {
		d = 1
	}
	if d < -1 {
		d = -1
	}
	return math.Acos(d) * 180 / math.Pi
}

// angleDeficits computes the 2*pi angle deficit at every vertex, a
// discrete Gaussian curvature proxy.
func angleDeficits(im *topo.IndexedMesh) []float64 {
	deficits := make([]float64, len(im.Positions))
	for i := range deficits {
		deficits[i] = 2 * math.Pi
	}
	for _, tri := range im.Triangles {
		for c := 0; c < 3; c++ {
			v := tri[c]
			p := im.Positions[v]
			q := im.Positions[tri[(c+1)%3]]
			r := im.Positions[tri[(c+2)%3]]
			deficits[v] -= vertexAngle(p, q, r)
		}
	}
	return deficits
}

// vertexAngle is the interior angle at p in triangle (p, q, r).
func vertexAngle(p, q, r [3]float64) float64 {
	u := [3]float64{q[0] - p[0], q[1] - p[1], q[2] - p[2]}
	v := [3]float64{r[0] - p[0], r[1] - p[1], r[2] - p[2]}
	lu := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	lv := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if lu < 1e-12 || lv < 1e-12 {
		return 0
	}
	d := (u[0]*v[0] + u[1]*v[1] + u[2]*v[2]) / (lu * lv)
	if d > 1 {
		d = 1
	}
	if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

func faceNormal(im *topo.IndexedMesh, t int) [3]float64 {
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
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l < 1e-12 {
		return [3]float64{}
	}
	return [3]float64{n[0] / l, n[1] / l, n[2] / l}
}

// sortDefects applies the deterministic severity/magnitude/id ordering.
func sortDefects(defects []*model.ContinuityDefect) {
	sort.SliceStable(defects, func(i, j int) bool {
		if defects[i].Severity != defects[j].Severity {
			return defects[i].Severity > defects[j].Severity
		}
		if defects[i].Value != defects[j].Value {
			return defects[i].Value > defects[j].Value
		}
		return defects[i].ID < defects[j].ID
	})
}

func dist(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func midpoint(a, b [3]float64) [3]float64 {
	return [3]float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2, (a[2] + b[2]) / 2}
}
