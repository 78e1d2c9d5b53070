// Package tessellate converts engineering solids into triangle meshes
// using a geometry kernel. One mesh is produced per meshable solid.
package tessellate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// Meshable reports whether a solid participates in tessellation. Soil
// layer and stage solids are bookkeeping geometry for region tagging
// and volume reporting; meshing them would duplicate the pit surfaces.
func Meshable(s *model.Solid) bool {
	switch s.Kind {
	case model.KindWall, model.KindAnchor, model.KindStrut, model.KindInterface:
		return true
	case model.KindExcavation, model.KindSoil:
		// Only the result of the pit cut is meshed, not the tooling
		// solids that produced it.
		return isCutResult(s)
	default:
		return false
	}
}

func isCutResult(s *model.Solid) bool {
	for _, e := range s.Provenance {
		if e.Operation == "cut_result" || e.Operation == "cut_approx" {
			return true
		}
	}
	return false
}

// Solids tessellates every meshable solid concurrently and returns the
// meshes in the input order. A per-solid failure fails the whole batch;
// callers that want partial results filter the input first.
func Solids(ctx context.Context, k kernel.Kernel, solids []*model.Solid) ([]*kernel.Mesh, error) {
	var targets []*model.Solid
	for _, s := range solids {
		if Meshable(s) {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	meshes := make([]*kernel.Mesh, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range targets {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			m, err := k.ToMesh(s.Shape)
			if err != nil {
				return fmt.Errorf("tessellate: %s: %w", s.Short(), err)
			}
			m.Label = s.Kind.String()
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// Stats summarizes a mesh batch for run reporting.
type Stats struct {
	Meshes      int     `json:"meshes"`
	Triangles   int     `json:"triangles"`
	SurfaceArea float64 `json:"surface_area"`
}

// Summarize computes batch statistics.
func Summarize(meshes []*kernel.Mesh) Stats {
	var st Stats
	for _, m := range meshes {
		if m == nil {
			continue
		}
		st.Meshes++
		st.Triangles += len(m.Indices) / 3
		st.SurfaceArea += m.SurfaceArea()
	}
	return st
}
