package builder

import (
	"math"
	"testing"

	"github.com/geoforge/pitprep/pkg/kernel/sdfx"
	"github.com/geoforge/pitprep/pkg/model"
)

func benchmarkGeometry() model.ExcavationGeometry {
	return model.ExcavationGeometry{
		Dimensions: model.Dimensions{Length: 50, Width: 30, Depth: 10},
		Stages: []model.StageSpec{
			{Depth: 4, ConstructionMethod: "open_cut", SupportInstallation: true},
			{Depth: 3, ConstructionMethod: "open_cut", SupportInstallation: true},
			{Depth: 3, ConstructionMethod: "open_cut"},
		},
		Origin: [3]float64{25, 35, 0},
	}
}

func benchmarkGeology() model.GeologicalCondition {
	return model.GeologicalCondition{
		SoilLayers: []model.SoilLayer{
			{Name: "fill", Thickness: 3, ElasticModulus: 8e6, PoissonRatio: 0.35, Density: 1800},
			{Name: "clay", Thickness: 57, ElasticModulus: 15e6, PoissonRatio: 0.32, Density: 1900},
		},
		GroundwaterLevel: 5,
		DomainMarginXY:   25,
		DomainDepth:      60,
	}
}

func TestSoilDomainVolume(t *testing.T) {
	b := New(sdfx.New())
	s, err := b.SoilDomain(benchmarkGeometry(), benchmarkGeology())
	if err != nil {
		t.Fatalf("SoilDomain() error = %v", err)
	}
	// 50+2*25 by 30+2*25 by 60.
	want := 100.0 * 80.0 * 60.0
	if math.Abs(s.Volume-want) > 1e-9 {
		t.Errorf("soil volume = %g, want %g", s.Volume, want)
	}
	if s.Kind != model.KindSoil {
		t.Errorf("kind = %v, want soil", s.Kind)
	}

	min, max := s.BoundingBox()
	if math.Abs(min[2]+60) > 0.01 || math.Abs(max[2]) > 0.01 {
		t.Errorf("domain z bounds = [%g, %g], want [-60, 0]", min[2], max[2])
	}
}

func TestExcavationVolume(t *testing.T) {
	b := New(sdfx.New())
	s, err := b.ExcavationVolume(benchmarkGeometry())
	if err != nil {
		t.Fatalf("ExcavationVolume() error = %v", err)
	}
	if math.Abs(s.Volume-15000) > 1e-9 {
		t.Errorf("excavation volume = %g, want 15000", s.Volume)
	}
	min, max := s.BoundingBox()
	if math.Abs(min[2]+10) > 0.01 || math.Abs(max[2]) > 0.01 {
		t.Errorf("excavation z bounds = [%g, %g], want [-10, 0]", min[2], max[2])
	}
}

func TestExcavationVolumeRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ExcavationGeometry)
	}{
		{"zero depth", func(g *model.ExcavationGeometry) { g.Dimensions.Depth = 0 }},
		{"negative radius", func(g *model.ExcavationGeometry) { g.Corners.Radius = -1 }},
		{"oversized radius", func(g *model.ExcavationGeometry) { g.Corners.Radius = 20 }},
	}
	b := New(sdfx.New())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := benchmarkGeometry()
			tt.mutate(&g)
			if _, err := b.ExcavationVolume(g); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestExcavationFilletVolumeMatchesShape(t *testing.T) {
	k := sdfx.New()
	b := New(k)
	geom := benchmarkGeometry()
	geom.Dimensions = model.Dimensions{Length: 10, Width: 8, Depth: 4}
	geom.Corners = model.CornerTreatment{Radius: 1, FilletType: "round"}

	s, err := b.ExcavationVolume(geom)
	if err != nil {
		t.Fatalf("ExcavationVolume() error = %v", err)
	}
	if want := roundedBoxVolume(10, 8, 4, 1); math.Abs(s.Volume-want) > 1e-9 {
		t.Fatalf("ledger volume = %g, want closed form %g", s.Volume, want)
	}
	if s.Attributes["fillet_radius"] != "1" {
		t.Errorf("fillet_radius attribute = %q, want 1", s.Attributes["fillet_radius"])
	}

	// Cell-center sampling of the constructed shape has to agree with
	// the ledger; a mismatch means the built solid is not the filleted
	// box the closed form describes.
	min, max := s.BoundingBox()
	const n = 120
	h := (max[0] - min[0]) / n
	var inside int
	for x := min[0] + h/2; x < max[0]; x += h {
		for y := min[1] + h/2; y < max[1]; y += h {
			for z := min[2] + h/2; z < max[2]; z += h {
				if k.Evaluate(s.Shape, [3]float64{x, y, z}) < 0 {
					inside++
				}
			}
		}
	}
	sampled := float64(inside) * h * h * h
	if rel := math.Abs(sampled-s.Volume) / s.Volume; rel > 0.01 {
		t.Errorf("sampled shape volume = %g vs ledger %g, relative error %g", sampled, s.Volume, rel)
	}
}

func TestRoundedBoxVolume(t *testing.T) {
	// With r = 0 the closed form degenerates to the plain box volume.
	if got := roundedBoxVolume(10, 20, 30, 0); math.Abs(got-6000) > 1e-9 {
		t.Errorf("roundedBoxVolume(r=0) = %g, want 6000", got)
	}
	// A rounded box always encloses less than the sharp box.
	sharp := 10.0 * 20.0 * 30.0
	if got := roundedBoxVolume(10, 20, 30, 2); got >= sharp {
		t.Errorf("roundedBoxVolume(r=2) = %g, want < %g", got, sharp)
	}
}

func TestDiaphragmWallPanels(t *testing.T) {
	b := New(sdfx.New())
	spec := model.DiaphragmWallSpec{Enabled: true, Thickness: 0.8, Depth: 18}
	walls, err := b.DiaphragmWall(benchmarkGeometry(), spec)
	if err != nil {
		t.Fatalf("DiaphragmWall() error = %v", err)
	}
	if len(walls) != 4 {
		t.Fatalf("panel count = %d, want 4", len(walls))
	}
	for _, w := range walls {
		if w.Kind != model.KindWall {
			t.Errorf("%s kind = %v, want wall", w.Name, w.Kind)
		}
		if w.Volume <= 0 {
			t.Errorf("%s volume = %g, want positive", w.Name, w.Volume)
		}
		min, max := w.BoundingBox()
		if math.Abs(min[2]+18) > 0.01 || math.Abs(max[2]) > 0.01 {
			t.Errorf("%s z bounds = [%g, %g], want [-18, 0]", w.Name, min[2], max[2])
		}
	}
}

func TestDiaphragmWallDisabled(t *testing.T) {
	b := New(sdfx.New())
	walls, err := b.DiaphragmWall(benchmarkGeometry(), model.DiaphragmWallSpec{})
	if err != nil {
		t.Fatalf("DiaphragmWall() error = %v", err)
	}
	if walls != nil {
		t.Errorf("disabled walls = %v, want nil", walls)
	}
}

func TestAnchorAttributes(t *testing.T) {
	b := New(sdfx.New())
	spec := model.AnchorSpec{
		Level: 1, Depth: 3, Length: 15, Angle: 15,
		Diameter: 0.15, Side: "south", Offset: 10, Prestress: 300,
	}
	a, err := b.Anchor(benchmarkGeometry(), spec)
	if err != nil {
		t.Fatalf("Anchor() error = %v", err)
	}
	if a.Kind != model.KindAnchor {
		t.Errorf("kind = %v, want anchor", a.Kind)
	}
	wantVol := math.Pi * 0.075 * 0.075 * 15
	if math.Abs(a.Volume-wantVol) > 1e-9 {
		t.Errorf("volume = %g, want %g", a.Volume, wantVol)
	}
	if a.Attributes["depth"] != "3" || a.Attributes["angle"] != "15" {
		t.Errorf("attributes = %v, want depth 3 and angle 15", a.Attributes)
	}

	// A south anchor extends away from the pit (toward -y) and downward.
	min, max := a.BoundingBox()
	if max[1] > benchmarkGeometry().Origin[1]+1 {
		t.Errorf("south anchor should extend toward -y, max y = %g", max[1])
	}
	if min[2] > -3 {
		t.Errorf("anchor should descend below its head depth, min z = %g", min[2])
	}
}

func TestAnchorRejections(t *testing.T) {
	tests := []struct {
		name string
		spec model.AnchorSpec
	}{
		{"zero length", model.AnchorSpec{Diameter: 0.15, Angle: 15, Side: "south"}},
		{"steep angle", model.AnchorSpec{Length: 10, Diameter: 0.15, Angle: 90, Side: "south"}},
		{"unknown side", model.AnchorSpec{Length: 10, Diameter: 0.15, Angle: 15, Side: "up"}},
	}
	b := New(sdfx.New())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Anchor(benchmarkGeometry(), tt.spec); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStrutCount(t *testing.T) {
	b := New(sdfx.New())
	spec := model.StrutSpec{Level: 1, Depth: 2, Diameter: 0.6, Spacing: 6}
	struts, err := b.Struts(benchmarkGeometry(), spec)
	if err != nil {
		t.Fatalf("Struts() error = %v", err)
	}
	// 50 / 6 = 8 bays, 7 interior struts.
	if len(struts) != 7 {
		t.Errorf("strut count = %d, want 7", len(struts))
	}
	for _, s := range struts {
		if s.Attributes["level"] != "1" {
			t.Errorf("%s level attribute = %q, want 1", s.Name, s.Attributes["level"])
		}
	}
}

func TestCreationOrderIsMonotonic(t *testing.T) {
	b := New(sdfx.New())
	geom := benchmarkGeometry()
	geo := benchmarkGeology()

	soil, _ := b.SoilDomain(geom, geo)
	exc, _ := b.ExcavationVolume(geom)
	walls, _ := b.DiaphragmWall(geom, model.DiaphragmWallSpec{Enabled: true, Thickness: 0.8, Depth: 18})

	seqs := []int{soil.Seq, exc.Seq}
	for _, w := range walls {
		seqs = append(seqs, w.Seq)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("seq not strictly increasing: %v", seqs)
		}
	}
}

func TestValidateInputs(t *testing.T) {
	geom := benchmarkGeometry()
	support := model.SupportStructure{
		DiaphragmWalls: model.DiaphragmWallSpec{Enabled: true, Thickness: 0.8, Depth: 18},
	}
	geo := benchmarkGeology()

	if issues := ValidateInputs(geom, support, geo); Blocking(issues) {
		t.Fatalf("valid inputs reported blocking issues: %v", issues)
	}

	bad := geom
	bad.Dimensions.Depth = -1
	issues := ValidateInputs(bad, support, geo)
	if !Blocking(issues) {
		t.Error("negative depth must block the run")
	}
}

func TestValidateStageDepthSum(t *testing.T) {
	geom := benchmarkGeometry()
	geom.Stages = []model.StageSpec{{Depth: 6}, {Depth: 6}} // sums to 12, pit is 10
	issues := ValidateInputs(geom, model.SupportStructure{}, benchmarkGeology())
	if len(issues) == 0 {
		t.Error("stage depth overshoot should be reported")
	}
}
