// Package boolean implements the tolerance-bounded CSG engine: cut and
// intersect operations between engineering solids, with an analytic
// volume ledger cross-checked against deterministic SDF sampling.
package boolean

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// volumeCacheSize bounds the memoized sampling results per engine.
const volumeCacheSize = 256

// Engine performs boolean operations through a geometry kernel.
// Operations are atomic: a failed operation leaves the target's geometry
// and ledger untouched. Every call appends exactly one provenance entry
// to each operand, success or failure.
type Engine struct {
	k     kernel.Kernel
	cfg   config.BooleanConfig
	cache *lru.Cache[string, float64]
}

// NewEngine returns an Engine with the given kernel and configuration.
func NewEngine(k kernel.Kernel, cfg config.BooleanConfig) (*Engine, error) {
	if cfg.Tolerance <= 0 {
		return nil, fmt.Errorf("boolean: tolerance must be positive, got %g", cfg.Tolerance)
	}
	if cfg.SampleResolution < 8 {
		return nil, fmt.Errorf("boolean: sample resolution %d below minimum 8", cfg.SampleResolution)
	}
	cache, err := lru.New[string, float64](volumeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("boolean: volume cache: %w", err)
	}
	return &Engine{k: k, cfg: cfg, cache: cache}, nil
}

// record appends the provenance entry for one operation to both operands.
func record(op string, a, b *model.Solid, params map[string]string, success bool, start time.Time) {
	entry := model.ProvenanceEntry{
		Operation: op,
		Operands:  []string{a.ID, b.ID},
		Params:    params,
		Success:   success,
		Duration:  time.Since(start),
		At:        start,
	}
	a.AppendProvenance(entry)
	b.AppendProvenance(entry)
}

// Cut removes tool from target, returning a new solid. On success, the
// result volume equals target.Volume minus the intersection volume within
// the configured relative tolerance. target is never mutated beyond its
// provenance log.
func (e *Engine) Cut(ctx context.Context, target, tool *model.Solid) (*model.Solid, error) {
	start := time.Now()
	params := map[string]string{"tolerance": fmt.Sprintf("%g", e.cfg.Tolerance)}

	fail := func(err error) (*model.Solid, error) {
		record("cut", target, tool, params, false, start)
		return nil, &OpError{Op: "cut", Target: target.ID, Tool: tool.ID, Err: err}
	}

	if target.Volume < e.cfg.MinVolume {
		return fail(fmt.Errorf("target volume %g: %w", target.Volume, ErrDegenerateInput))
	}
	if tool.Volume < e.cfg.MinVolume {
		return fail(fmt.Errorf("tool volume %g: %w", tool.Volume, ErrDegenerateInput))
	}

	interVol, _, err := e.intersectionVolume(ctx, target, tool)
	if err != nil {
		return fail(err)
	}
	resultVol := target.Volume - interVol
	if resultVol < -e.cfg.Tolerance*target.Volume {
		return fail(fmt.Errorf("intersection volume %g exceeds target volume %g: %w",
			interVol, target.Volume, ErrToleranceExceeded))
	}
	if resultVol < 0 {
		resultVol = 0
	}

	shape := e.k.Difference(target.Shape, tool.Shape)

	// Closure cross-check: resample the result and compare against the
	// ledger, allowing for the sampling discretization.
	estVol, err := e.sampledVolume(ctx, shape, "")
	if err != nil {
		return fail(err)
	}
	if resultVol > e.cfg.MinVolume && estVol <= 0 {
		return fail(fmt.Errorf("result sampled empty with ledger volume %g: %w", resultVol, ErrNonManifoldResult))
	}
	if residual := abs(estVol - resultVol); residual > e.residualBound(target, resultVol) {
		return fail(fmt.Errorf("sampled volume %g vs ledger %g (residual %g): %w",
			estVol, resultVol, residual, ErrToleranceExceeded))
	}

	record("cut", target, tool, params, true, start)

	result := model.NewSolid(target.Name+"_cut", target.Kind, shape, resultVol)
	result.Seq = target.Seq
	for k, v := range target.Attributes {
		result.SetAttribute(k, v)
	}
	result.AppendProvenance(model.ProvenanceEntry{
		Operation: "cut_result",
		Operands:  []string{target.ID, tool.ID},
		Params:    params,
		Success:   true,
		Duration:  time.Since(start),
		At:        start,
	})
	return result, nil
}

// Intersect computes the shared region of a and b.
// A disjoint pair is a success with empty geometry, not an error.
func (e *Engine) Intersect(ctx context.Context, a, b *model.Solid) (model.IntersectionGeometry, error) {
	start := time.Now()
	params := map[string]string{"tolerance": fmt.Sprintf("%g", e.cfg.Tolerance)}

	fail := func(err error) (model.IntersectionGeometry, error) {
		record("intersect", a, b, params, false, start)
		return model.IntersectionGeometry{}, &OpError{Op: "intersect", Target: a.ID, Tool: b.ID, Err: err}
	}

	if a.Volume < e.cfg.MinVolume {
		return fail(fmt.Errorf("operand a volume %g: %w", a.Volume, ErrDegenerateInput))
	}
	if b.Volume < e.cfg.MinVolume {
		return fail(fmt.Errorf("operand b volume %g: %w", b.Volume, ErrDegenerateInput))
	}

	_, geom, err := e.intersectionVolume(ctx, a, b)
	if err != nil {
		return fail(err)
	}

	record("intersect", a, b, params, true, start)
	return geom, nil
}

// CutApprox is the documented fallback when an exact cut fails: it
// subtracts the AABB overlap volume without SDF sampling. Results are
// lower quality and the provenance entry is flagged accordingly.
func (e *Engine) CutApprox(target, tool *model.Solid) *model.Solid {
	start := time.Now()
	params := map[string]string{"fallback": "true"}

	minA, maxA := target.BoundingBox()
	minB, maxB := tool.BoundingBox()
	oMin, oMax, ok := aabbOverlap(minA, maxA, minB, maxB)
	overlap := 0.0
	if ok {
		overlap = boxVolume(oMin, oMax)
	}
	resultVol := target.Volume - overlap
	if resultVol < 0 {
		resultVol = 0
	}

	shape := e.k.Difference(target.Shape, tool.Shape)
	record("cut_approx", target, tool, params, true, start)

	result := model.NewSolid(target.Name+"_cut", target.Kind, shape, resultVol)
	result.Seq = target.Seq
	result.SetAttribute("fallback_mode", "true")
	result.AppendProvenance(model.ProvenanceEntry{
		Operation: "cut_approx",
		Operands:  []string{target.ID, tool.ID},
		Params:    params,
		Success:   true,
		Duration:  time.Since(start),
	})
	return result
}

// intersectionVolume samples the intersection SDF over the tight AABB
// overlap. Sampling is memoized by operand identity: provenance never
// rewrites a solid's shape, so the identity is a stable cache key.
func (e *Engine) intersectionVolume(ctx context.Context, a, b *model.Solid) (float64, model.IntersectionGeometry, error) {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	oMin, oMax, ok := aabbOverlap(minA, maxA, minB, maxB)
	if !ok {
		return 0, model.IntersectionGeometry{}, nil
	}

	key := fmt.Sprintf("%s|%s|%d", a.ID, b.ID, e.cfg.SampleResolution)
	if vol, hit := e.cache.Get(key); hit {
		geom := model.IntersectionGeometry{Min: oMin, Max: oMax, Volume: vol, Centroid: mid(oMin, oMax)}
		return vol, geom, nil
	}

	shape := e.k.Intersection(a.Shape, b.Shape)
	vol, centroid, err := e.sampleRegion(ctx, shape, oMin, oMax)
	if err != nil {
		return 0, model.IntersectionGeometry{}, err
	}
	e.cache.Add(key, vol)
	geom := model.IntersectionGeometry{Min: oMin, Max: oMax, Volume: vol, Centroid: centroid}
	if vol <= 0 {
		geom = model.IntersectionGeometry{}
	}
	return vol, geom, nil
}

// sampledVolume samples a solid over its own bounding box. A non-empty
// cacheKey memoizes the result.
func (e *Engine) sampledVolume(ctx context.Context, s kernel.Solid, cacheKey string) (float64, error) {
	if cacheKey != "" {
		if vol, hit := e.cache.Get(cacheKey); hit {
			return vol, nil
		}
	}
	min, max := s.BoundingBox()
	vol, _, err := e.sampleRegion(ctx, s, min, max)
	if err != nil {
		return 0, err
	}
	if cacheKey != "" {
		e.cache.Add(cacheKey, vol)
	}
	return vol, nil
}

// sampleRegion estimates the volume of s inside [min, max] by evaluating
// the SDF at cell centers of a fixed uniform grid. Cell-center sampling
// is exact for axis-aligned regions whose boundary falls between sample
// planes, and deterministic everywhere. The context is checked once per
// x-slab so long-running sampling honors cancellation.
func (e *Engine) sampleRegion(ctx context.Context, s kernel.Solid, min, max [3]float64) (float64, [3]float64, error) {
	n := e.cfg.SampleResolution
	hx := (max[0] - min[0]) / float64(n)
	hy := (max[1] - min[1]) / float64(n)
	hz := (max[2] - min[2]) / float64(n)
	if hx <= 0 || hy <= 0 || hz <= 0 {
		return 0, [3]float64{}, nil
	}

	inside := 0
	var cx, cy, cz float64
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return 0, [3]float64{}, ctx.Err()
		default:
		}
		x := min[0] + (float64(i)+0.5)*hx
		for j := 0; j < n; j++ {
			y := min[1] + (float64(j)+0.5)*hy
			for k := 0; k < n; k++ {
				z := min[2] + (float64(k)+0.5)*hz
				if e.k.Evaluate(s, [3]float64{x, y, z}) < 0 {
					inside++
					cx += x
					cy += y
					cz += z
				}
			}
		}
	}
	if inside == 0 {
		return 0, [3]float64{}, nil
	}
	cell := hx * hy * hz
	vol := float64(inside) * cell
	inv := 1.0 / float64(inside)
	return vol, [3]float64{cx * inv, cy * inv, cz * inv}, nil
}

// residualBound is the permitted difference between the ledger and the
// sampled cross-check: the configured relative tolerance or the sampling
// discretization error, whichever is larger.
func (e *Engine) residualBound(target *model.Solid, resultVol float64) float64 {
	min, max := target.BoundingBox()
	bboxVol := boxVolume(min, max)
	discretization := 3 * bboxVol / float64(e.cfg.SampleResolution)
	if tol := e.cfg.Tolerance * target.Volume; tol > discretization {
		return tol
	}
	return discretization
}

func aabbOverlap(minA, maxA, minB, maxB [3]float64) (min, max [3]float64, ok bool) {
	for i := 0; i < 3; i++ {
		min[i] = minA[i]
		if minB[i] > min[i] {
			min[i] = minB[i]
		}
		max[i] = maxA[i]
		if maxB[i] < max[i] {
			max[i] = maxB[i]
		}
		if min[i] >= max[i] {
			return min, max, false
		}
	}
	return min, max, true
}

func boxVolume(min, max [3]float64) float64 {
	return (max[0] - min[0]) * (max[1] - min[1]) * (max[2] - min[2])
}

func mid(min, max [3]float64) [3]float64 {
	return [3]float64{(min[0] + max[0]) / 2, (min[1] + max[1]) / 2, (min[2] + max[2]) / 2}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
