package topo

import (
	"context"
	"math"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// cubeSoup builds a triangle soup for an axis-aligned cube of side s
// with its min corner at origin, optionally omitting the top face.
// Soup form (three vertices per triangle) exercises the welding path.
func cubeSoup(origin [3]float64, s float64, omitTop bool) *kernel.Mesh {
	o := origin
	c := [][3]float64{
		{o[0], o[1], o[2]}, {o[0] + s, o[1], o[2]}, {o[0] + s, o[1] + s, o[2]}, {o[0], o[1] + s, o[2]},
		{o[0], o[1], o[2] + s}, {o[0] + s, o[1], o[2] + s}, {o[0] + s, o[1] + s, o[2] + s}, {o[0], o[1] + s, o[2] + s},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{0, 1, 5}, {0, 5, 4}, // front
		{2, 3, 7}, {2, 7, 6}, // back
		{1, 2, 6}, {1, 6, 5}, // right
		{3, 0, 4}, {3, 4, 7}, // left
	}
	if !omitTop {
		faces = append(faces, [3]int{4, 5, 6}, [3]int{4, 6, 7})
	}

	m := &kernel.Mesh{}
	var idx uint32
	for _, f := range faces {
		for _, vi := range f {
			v := c[vi]
			m.Vertices = append(m.Vertices, float32(v[0]), float32(v[1]), float32(v[2]))
			m.Normals = append(m.Normals, 0, 0, 1)
			m.Indices = append(m.Indices, idx)
			idx++
		}
	}
	return m
}

func newTestEngine() *Engine {
	return NewEngine(config.DefaultTopologyRepairConfig(), zap.NewNop())
}

func TestBuildIndexedWeldsSoup(t *testing.T) {
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 10, false), 1e-6)

	if got := len(im.Positions); got != 8 {
		t.Errorf("welded vertex count = %d, want 8", got)
	}
	if got := len(im.Triangles); got != 12 {
		t.Errorf("triangle count = %d, want 12", got)
	}
}

func TestClosedCubeHasNoBoundary(t *testing.T) {
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 10, false), 1e-6)
	if loops := im.BoundaryLoops(); len(loops) != 0 {
		t.Errorf("closed cube boundary loops = %d, want 0", len(loops))
	}
}

func TestOpenCubeHasOneLoop(t *testing.T) {
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)
	loops := im.BoundaryLoops()
	if len(loops) != 1 {
		t.Fatalf("boundary loops = %d, want 1", len(loops))
	}
	if len(loops[0]) != 4 {
		t.Errorf("loop length = %d, want 4", len(loops[0]))
	}
}

func TestBoundaryLoopsDeterministic(t *testing.T) {
	a := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)
	b := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)
	la, lb := a.BoundaryLoops(), b.BoundaryLoops()
	if len(la) != len(lb) {
		t.Fatalf("loop counts differ: %d vs %d", len(la), len(lb))
	}
	for i := range la {
		if len(la[i]) != len(lb[i]) {
			t.Fatalf("loop %d lengths differ", i)
		}
		for j := range la[i] {
			if la[i][j] != lb[i][j] {
				t.Fatalf("loop %d diverges at %d: %d vs %d", i, j, la[i][j], lb[i][j])
			}
		}
	}
}

func TestDetectHolesOnOpenCube(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newTestEngine()
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)

	holes, overlaps, err := e.Detect(context.Background(), []*IndexedMesh{im})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(overlaps) != 0 {
		t.Errorf("overlaps = %d, want 0 for a single mesh", len(overlaps))
	}
	if len(holes) != 1 {
		t.Fatalf("holes = %d, want 1", len(holes))
	}

	h := holes[0]
	if math.Abs(h.Area-36) > 1e-6 {
		t.Errorf("hole area = %g, want 36", h.Area)
	}
	if math.Abs(h.Perimeter-24) > 1e-6 {
		t.Errorf("hole perimeter = %g, want 24", h.Perimeter)
	}
	if h.Severity != model.SeverityHigh {
		t.Errorf("severity = %v, want high for area 36", h.Severity)
	}
	if !h.Repairability.CanAutoFill {
		t.Error("square hole should be auto-fillable")
	}
}

func TestHoleSeverityMonotonic(t *testing.T) {
	areas := []float64{1, 10, 50, 150}
	prev := model.Severity(0)
	for _, a := range areas {
		s := holeSeverity(a)
		if s < prev {
			t.Fatalf("severity decreased at area %g", a)
		}
		prev = s
	}
}

func TestFillHolesClosesOpenCube(t *testing.T) {
	e := newTestEngine()
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)

	holes, err := e.DetectHoles(context.Background(), []*IndexedMesh{im})
	if err != nil {
		t.Fatalf("DetectHoles() error = %v", err)
	}
	actions, remaining := e.FillHoles([]*IndexedMesh{im}, holes)
	if len(remaining) != 0 {
		t.Errorf("remaining issues = %v, want none", remaining)
	}
	if len(actions) != 1 || !actions[0].Success {
		t.Fatalf("actions = %+v, want one successful hole_fill", actions)
	}
	if actions[0].Type != "hole_fill" {
		t.Errorf("action type = %q, want hole_fill", actions[0].Type)
	}

	if loops := im.BoundaryLoops(); len(loops) != 0 {
		t.Errorf("boundary loops after fill = %d, want 0", len(loops))
	}
}

func TestFillHolesSkipsOversize(t *testing.T) {
	cfg := config.DefaultTopologyRepairConfig()
	cfg.MaxHoleSize = 10 // hole area is 36
	e := NewEngine(cfg, zap.NewNop())
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 6, true), 1e-6)

	holes, err := e.DetectHoles(context.Background(), []*IndexedMesh{im})
	if err != nil {
		t.Fatalf("DetectHoles() error = %v", err)
	}
	actions, remaining := e.FillHoles([]*IndexedMesh{im}, holes)
	for _, a := range actions {
		if a.Success {
			t.Errorf("oversize hole was filled: %+v", a)
		}
	}
	if len(remaining) == 0 {
		t.Error("oversize hole should surface in remaining issues")
	}
}

func TestDetectOverlaps(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newTestEngine()
	a := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 10, false), 1e-6)
	a.Label = "wall"
	b := BuildIndexed(cubeSoup([3]float64{8, 0, 0}, 10, false), 1e-6)
	b.Label = "anchor"

	overlaps, err := e.DetectOverlaps(context.Background(), []*IndexedMesh{a, b})
	if err != nil {
		t.Fatalf("DetectOverlaps() error = %v", err)
	}
	if len(overlaps) != 1 {
		t.Fatalf("overlaps = %d, want 1", len(overlaps))
	}

	o := overlaps[0]
	// Penetration 2 x 10 x 10.
	if math.Abs(o.OverlapVolume-200) > 1e-6 {
		t.Errorf("overlap volume = %g, want 200", o.OverlapVolume)
	}
	if o.Severity != model.SeverityHigh {
		t.Errorf("severity = %v, want high for 20%% of the smaller box", o.Severity)
	}
	if o.SolidA != "wall" || o.SolidB != "anchor" {
		t.Errorf("labels = %s/%s, want wall/anchor", o.SolidA, o.SolidB)
	}
	if o.Resolution == "" {
		t.Error("overlap must declare a resolution strategy")
	}
}

func TestDetectOverlapsDisjoint(t *testing.T) {
	e := newTestEngine()
	a := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 10, false), 1e-6)
	b := BuildIndexed(cubeSoup([3]float64{50, 50, 50}, 10, false), 1e-6)

	overlaps, err := e.DetectOverlaps(context.Background(), []*IndexedMesh{a, b})
	if err != nil {
		t.Fatalf("DetectOverlaps() error = %v", err)
	}
	if len(overlaps) != 0 {
		t.Errorf("overlaps = %d, want 0 for disjoint meshes", len(overlaps))
	}
}

func TestRepairNeverIncreasesDefects(t *testing.T) {
	e := newTestEngine()
	meshes := []*kernel.Mesh{
		cubeSoup([3]float64{0, 0, 0}, 6, true),
		cubeSoup([3]float64{20, 0, 0}, 10, false),
	}

	res, err := e.Repair(context.Background(), meshes)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if res.Statistics.DefectsAfter > res.Statistics.DefectsBefore {
		t.Errorf("defects grew: before %d, after %d",
			res.Statistics.DefectsBefore, res.Statistics.DefectsAfter)
	}
	if res.Statistics.HolesDetected != 1 || res.Statistics.HolesFilled != 1 {
		t.Errorf("holes detected/filled = %d/%d, want 1/1",
			res.Statistics.HolesDetected, res.Statistics.HolesFilled)
	}
	if res.QualityAssessment < 1 {
		t.Errorf("quality = %g, want 1 after full repair", res.QualityAssessment)
	}
	if len(res.RepairedMeshes) != 2 {
		t.Errorf("repaired meshes = %d, want 2", len(res.RepairedMeshes))
	}
}

func TestExportRoundTrip(t *testing.T) {
	im := BuildIndexed(cubeSoup([3]float64{0, 0, 0}, 10, false), 1e-6)
	m := im.Export()
	if m.VertexCount() != 8 {
		t.Errorf("exported vertex count = %d, want 8", m.VertexCount())
	}
	if m.TriangleCount() != 12 {
		t.Errorf("exported triangle count = %d, want 12", m.TriangleCount())
	}
	if len(m.Normals) != len(m.Vertices) {
		t.Errorf("normals length %d != vertices length %d", len(m.Normals), len(m.Vertices))
	}
	if vol := m.SignedVolume(); math.Abs(vol-1000) > 1e-6 {
		t.Errorf("signed volume = %g, want 1000", vol)
	}
}
