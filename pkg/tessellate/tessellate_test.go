package tessellate

import (
	"context"
	"errors"
	"testing"

	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// stubSolid is a minimal kernel.Solid for meshing tests.
type stubSolid struct{ min, max [3]float64 }

func (s stubSolid) BoundingBox() (min, max [3]float64) { return s.min, s.max }

// stubKernel meshes every solid into the same single triangle; it fails
// on demand to exercise the batch error path.
type stubKernel struct{ fail bool }

func (k stubKernel) Box(x, y, z float64) kernel.Solid {
	return stubSolid{max: [3]float64{x, y, z}}
}
func (k stubKernel) RoundedBox(x, y, z, round float64) kernel.Solid {
	return stubSolid{max: [3]float64{x, y, z}}
}
func (k stubKernel) Cylinder(h, r float64, segments int) kernel.Solid {
	return stubSolid{min: [3]float64{-r, -r, -h / 2}, max: [3]float64{r, r, h / 2}}
}
func (k stubKernel) Union(a, b kernel.Solid) kernel.Solid                   { return a }
func (k stubKernel) Difference(a, b kernel.Solid) kernel.Solid              { return a }
func (k stubKernel) Intersection(a, b kernel.Solid) kernel.Solid            { return a }
func (k stubKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid { return s }
func (k stubKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid    { return s }
func (k stubKernel) Evaluate(s kernel.Solid, p [3]float64) float64          { return 1 }

func (k stubKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if k.fail {
		return nil, errors.New("tessellation failed")
	}
	return &kernel.Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
	}, nil
}

var _ kernel.Kernel = stubKernel{}

func solidOf(kind model.SolidKind) *model.Solid {
	return model.NewSolid(kind.String(), kind, stubSolid{max: [3]float64{1, 1, 1}}, 1)
}

func cutResult() *model.Solid {
	s := solidOf(model.KindSoil)
	s.AppendProvenance(model.ProvenanceEntry{Operation: "cut_result", Success: true})
	return s
}

func TestMeshable(t *testing.T) {
	tests := []struct {
		name  string
		solid *model.Solid
		want  bool
	}{
		{"wall", solidOf(model.KindWall), true},
		{"anchor", solidOf(model.KindAnchor), true},
		{"strut", solidOf(model.KindStrut), true},
		{"interface", solidOf(model.KindInterface), true},
		{"raw soil domain", solidOf(model.KindSoil), false},
		{"excavation tool", solidOf(model.KindExcavation), false},
		{"pit cut result", cutResult(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Meshable(tt.solid); got != tt.want {
				t.Errorf("Meshable(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMeshableApproxCut(t *testing.T) {
	s := solidOf(model.KindSoil)
	s.AppendProvenance(model.ProvenanceEntry{Operation: "cut_approx", Success: true})
	if !Meshable(s) {
		t.Error("approximate cut results must still be meshed")
	}
}

func TestSolidsFiltersAndLabels(t *testing.T) {
	solids := []*model.Solid{
		cutResult(),
		solidOf(model.KindWall),
		solidOf(model.KindExcavation), // filtered out
		solidOf(model.KindAnchor),
	}

	meshes, err := Solids(context.Background(), stubKernel{}, solids)
	if err != nil {
		t.Fatalf("Solids() error = %v", err)
	}
	if len(meshes) != 3 {
		t.Fatalf("meshes = %d, want 3", len(meshes))
	}
	wantLabels := []string{"soil", "wall", "anchor"}
	for i, m := range meshes {
		if m.Label != wantLabels[i] {
			t.Errorf("mesh %d label = %q, want %q", i, m.Label, wantLabels[i])
		}
	}
}

func TestSolidsEmptyInput(t *testing.T) {
	meshes, err := Solids(context.Background(), stubKernel{}, []*model.Solid{solidOf(model.KindSoil)})
	if err != nil {
		t.Fatalf("Solids() error = %v", err)
	}
	if meshes != nil {
		t.Errorf("meshes = %v, want nil when nothing is meshable", meshes)
	}
}

func TestSolidsFailureFailsBatch(t *testing.T) {
	_, err := Solids(context.Background(), stubKernel{fail: true}, []*model.Solid{solidOf(model.KindWall)})
	if err == nil {
		t.Fatal("Solids() with a failing kernel should error")
	}
}

func TestSummarize(t *testing.T) {
	tri := &kernel.Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
	}
	st := Summarize([]*kernel.Mesh{tri, nil, tri})
	if st.Meshes != 2 {
		t.Errorf("meshes = %d, want 2 (nil skipped)", st.Meshes)
	}
	if st.Triangles != 2 {
		t.Errorf("triangles = %d, want 2", st.Triangles)
	}
	if st.SurfaceArea <= 0.99 || st.SurfaceArea >= 1.01 {
		t.Errorf("surface area = %g, want 1 (two half-unit triangles)", st.SurfaceArea)
	}
}
