package boolean

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel/sdfx"
	"github.com/geoforge/pitprep/pkg/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(sdfx.New(), config.DefaultBooleanConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// soilAndPit builds the benchmark pair: a 100x100x60 soil domain and a
// 50x30x10 excavation fully inside it.
func soilAndPit(t *testing.T) (*model.Solid, *model.Solid) {
	t.Helper()
	k := sdfx.New()

	soilShape := k.Translate(k.Box(100, 100, 60), 0, 0, -60)
	soil := model.NewSolid("soil", model.KindSoil, soilShape, 100*100*60)

	pitShape := k.Translate(k.Box(50, 30, 10), 25, 35, -10)
	pit := model.NewSolid("excavation", model.KindExcavation, pitShape, 50*30*10)
	return soil, pit
}

func TestCutVolumeConservation(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)

	result, err := e.Cut(context.Background(), soil, pit)
	if err != nil {
		t.Fatalf("Cut() error = %v", err)
	}

	const want = 585000.0
	if rel := math.Abs(result.Volume-want) / want; rel > 1e-3 {
		t.Errorf("result volume = %g, want %g within 1e-3 relative", result.Volume, want)
	}
	if result.Kind != model.KindSoil {
		t.Errorf("result kind = %v, want soil", result.Kind)
	}
	if result.Seq != soil.Seq {
		t.Errorf("result seq = %d, want %d (inherit target ordering)", result.Seq, soil.Seq)
	}
}

func TestCutAppendsProvenanceToBothOperands(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)
	beforeSoil := len(soil.Provenance)
	beforePit := len(pit.Provenance)

	if _, err := e.Cut(context.Background(), soil, pit); err != nil {
		t.Fatalf("Cut() error = %v", err)
	}

	if got := len(soil.Provenance); got != beforeSoil+1 {
		t.Errorf("soil provenance grew by %d, want 1", got-beforeSoil)
	}
	if got := len(pit.Provenance); got != beforePit+1 {
		t.Errorf("pit provenance grew by %d, want 1", got-beforePit)
	}
	last := soil.Provenance[len(soil.Provenance)-1]
	if last.Operation != "cut" || !last.Success {
		t.Errorf("last entry = %+v, want successful cut", last)
	}
}

func TestCutDegenerateInputs(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)
	empty := model.NewSolid("empty", model.KindExcavation, pit.Shape, 0)

	tests := []struct {
		name         string
		target, tool *model.Solid
	}{
		{"zero-volume target", empty, pit},
		{"zero-volume tool", soil, empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Cut(context.Background(), tt.target, tt.tool)
			if !errors.Is(err, ErrDegenerateInput) {
				t.Errorf("error = %v, want ErrDegenerateInput", err)
			}
			var opErr *OpError
			if !errors.As(err, &opErr) || opErr.Op != "cut" {
				t.Errorf("error = %v, want *OpError for cut", err)
			}
		})
	}
}

func TestCutFailureIsAtomic(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)
	empty := model.NewSolid("empty", model.KindExcavation, pit.Shape, 0)

	volBefore := soil.Volume
	provBefore := len(soil.Provenance)

	if _, err := e.Cut(context.Background(), soil, empty); err == nil {
		t.Fatal("expected error for degenerate tool")
	}

	if soil.Volume != volBefore {
		t.Errorf("failed cut changed target volume %g -> %g", volBefore, soil.Volume)
	}
	// The failure itself is recorded; that is the only mutation.
	if got := len(soil.Provenance); got != provBefore+1 {
		t.Errorf("provenance grew by %d, want 1 failure entry", got-provBefore)
	}
	last := soil.Provenance[len(soil.Provenance)-1]
	if last.Success {
		t.Error("failure entry marked successful")
	}
}

func TestCutDisjointOperands(t *testing.T) {
	e := newTestEngine(t)
	k := sdfx.New()

	a := model.NewSolid("a", model.KindSoil, k.Box(10, 10, 10), 1000)
	b := model.NewSolid("b", model.KindWall, k.Translate(k.Box(5, 5, 5), 100, 100, 100), 125)

	result, err := e.Cut(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Cut() error = %v", err)
	}
	if result.Volume != a.Volume {
		t.Errorf("disjoint cut volume = %g, want unchanged %g", result.Volume, a.Volume)
	}
}

func TestIntersectGeometry(t *testing.T) {
	e := newTestEngine(t)
	k := sdfx.New()

	a := model.NewSolid("a", model.KindSoil, k.Box(10, 10, 10), 1000)
	b := model.NewSolid("b", model.KindWall, k.Translate(k.Box(10, 10, 10), 5, 0, 0), 1000)

	g, err := e.Intersect(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Intersect() error = %v", err)
	}
	// Overlap is the 5x10x10 slab from x=5 to x=10.
	if rel := math.Abs(g.Volume-500) / 500; rel > 1e-3 {
		t.Errorf("intersection volume = %g, want 500 within 1e-3", g.Volume)
	}
	if math.Abs(g.Centroid[0]-7.5) > 0.2 {
		t.Errorf("centroid x = %g, want ~7.5", g.Centroid[0])
	}
}

func TestIntersectDisjointIsEmptySuccess(t *testing.T) {
	e := newTestEngine(t)
	k := sdfx.New()

	a := model.NewSolid("a", model.KindSoil, k.Box(10, 10, 10), 1000)
	b := model.NewSolid("b", model.KindWall, k.Translate(k.Box(5, 5, 5), 50, 50, 50), 125)

	g, err := e.Intersect(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Intersect() error = %v", err)
	}
	if !g.Empty() {
		t.Errorf("disjoint intersection = %+v, want empty", g)
	}
}

func TestCutApproxFallback(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)

	result := e.CutApprox(soil, pit)
	if result.Attributes["fallback_mode"] != "true" {
		t.Error("fallback result must carry the fallback_mode attribute")
	}
	if math.Abs(result.Volume-585000) > 1e-6 {
		t.Errorf("approx volume = %g, want 585000 for axis-aligned boxes", result.Volume)
	}
}

func TestCutCancellation(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Cut(ctx, soil, pit)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestIntersectionVolumeMemoized(t *testing.T) {
	e := newTestEngine(t)
	soil, pit := soilAndPit(t)

	v1, _, err := e.intersectionVolume(context.Background(), soil, pit)
	if err != nil {
		t.Fatalf("first sample error = %v", err)
	}
	v2, _, err := e.intersectionVolume(context.Background(), soil, pit)
	if err != nil {
		t.Fatalf("second sample error = %v", err)
	}
	if v1 != v2 {
		t.Errorf("memoized volume differs: %g vs %g", v1, v2)
	}
}
