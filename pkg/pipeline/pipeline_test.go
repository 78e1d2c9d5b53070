package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel/sdfx"
	"github.com/geoforge/pitprep/pkg/model"
)

// testConfig trades accuracy for speed: coarse sampling and a coarse
// marching-cubes grid keep the end-to-end run fast.
func testConfig() config.ModelingConfig {
	cfg := config.DefaultModelingConfig()
	cfg.Boolean.SampleResolution = 16
	cfg.MeshCells = 24
	cfg.Performance.MaxProcessingTime = 2 * time.Minute
	return cfg
}

func testScenario() (model.ExcavationGeometry, model.SupportStructure, model.GeologicalCondition) {
	geom := model.ExcavationGeometry{
		Dimensions: model.Dimensions{Length: 10, Width: 8, Depth: 4},
		Origin:     [3]float64{5, 5, 0},
		Stages: []model.StageSpec{
			{Depth: 2, ConstructionMethod: "open_cut", SupportInstallation: true},
			{Depth: 2, ConstructionMethod: "braced"},
		},
	}
	support := model.SupportStructure{
		DiaphragmWalls: model.DiaphragmWallSpec{Enabled: true, Thickness: 0.3, Depth: 6},
		Anchors: []model.AnchorSpec{
			{Level: 1, Depth: 1.5, Length: 6, Angle: 15, Diameter: 0.15, Side: "south", Offset: 5, Prestress: 300},
		},
	}
	geo := model.GeologicalCondition{
		SoilLayers: []model.SoilLayer{
			{Name: "fill", Thickness: 3, ElasticModulus: 8e6, PoissonRatio: 0.35, Density: 1800},
			{Name: "clay", Thickness: 17, ElasticModulus: 25e6, PoissonRatio: 0.3, Density: 1950},
		},
		GroundwaterLevel: 2,
		DomainMarginXY:   5,
		DomainDepth:      20,
	}
	return geom, support, geo
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(sdfx.NewWithResolution(24), testConfig(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Boolean.Tolerance = 0
	_, err := New(sdfx.New(), cfg, nil)
	assert.Error(t, err)
}

func TestModelRejectsBlockingInput(t *testing.T) {
	p := newTestPipeline(t)
	geom, support, geo := testScenario()
	geom.Dimensions.Depth = -4

	res, err := p.Model(context.Background(), geom, support, geo)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Diagnostics, "blocked runs must report the validation findings")
}

func TestModelEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full modeling run")
	}
	p := newTestPipeline(t)
	geom, support, geo := testScenario()

	res, err := p.Model(context.Background(), geom, support, geo)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Success)
	require.NotNil(t, res.Readiness)
	assert.Positive(t, res.Readiness.EstimatedElementCount)

	// The pit cut plus one cut per wall panel.
	require.Len(t, res.Operations, 5)
	for _, op := range res.Operations {
		assert.Equal(t, "cut", op.Operation)
	}

	assert.Equal(t, 4, res.Components.Walls)
	assert.Equal(t, 1, res.Components.Anchors)
	assert.GreaterOrEqual(t, res.Components.Interfaces, 4, "every wall panel gets a soft-fill companion")
	assert.Positive(t, res.Components.Soil)
	assert.Positive(t, res.Components.TotalVolume)

	require.Len(t, res.Components.StageVolumes, 2)
	for _, v := range res.Components.StageVolumes {
		assert.InDelta(t, 10*8*2, v, 1e-6)
	}

	// The anchor body crosses the south wall panel, so the resolver
	// must find at least that intersection.
	assert.NotEmpty(t, res.Intersections)
	assert.NotEmpty(t, res.Quality.ConflictSummary)

	assert.NotEmpty(t, res.RepairedMeshes)
}

func TestModelTimeoutReturnsPartialResult(t *testing.T) {
	p := newTestPipeline(t)
	geom, support, geo := testScenario()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	res, err := p.Model(ctx, geom, support, geo)
	require.NotNil(t, res)
	if err != nil {
		// The deadline can surface as an engine error before the first
		// checkpoint that converts it to a diagnostic.
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		return
	}
	assert.NotEmpty(t, res.Diagnostics)
}

func TestSoftFill(t *testing.T) {
	p := newTestPipeline(t)
	k := sdfx.New()
	wall := model.NewSolid("wall_south", model.KindWall, k.Box(10, 0.3, 6), 18)
	wall.Seq = 7

	fill := p.softFill(wall)
	assert.Equal(t, model.KindInterface, fill.Kind)
	assert.Equal(t, wall.Volume, fill.Volume)
	assert.Equal(t, wall.Seq, fill.Seq)
	assert.Equal(t, "0.1", fill.Attributes["modulus_factor"])
	assert.Equal(t, wall.ID, fill.Attributes["source_wall"])
}
