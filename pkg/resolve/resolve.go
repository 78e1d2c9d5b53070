// Package resolve detects and resolves conflicts between independently
// specified support structures: wall/anchor penetrations, anchor/strut
// junctions, anchor/anchor clashes, and strut-level interactions. The
// resolver never mutates its inputs; it emits intersection records,
// recommended adjustments, and auxiliary connector solids for later
// boolean and topology processing.
package resolve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/boolean"
	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// Conflict thresholds between same-class structures. Deterministic by
// design: two runs over the same structure set produce identical records.
const (
	minVerticalSpacing   = 2.0  // below this: spacing_conflict, severity high
	minAngleDifference   = 10.0 // degrees
	minHorizontalSpacing = 1.5  // with small angle difference: angle_conflict
)

// connectorSleeveClearance pads sleeve casings around anchor penetrations.
const connectorSleeveClearance = 0.1

// Resolution is the outcome of one resolver pass.
type Resolution struct {
	Intersections []model.Intersection
	Conflicts     []model.Conflict
	// Connectors are appended to the working solid set by the caller.
	Connectors []*model.Solid
	// Severity summary over all conflicts: none/minor/moderate/severe.
	ConflictSummary string
}

// Resolver detects structure intersections and conflicts.
type Resolver struct {
	k      kernel.Kernel
	engine *boolean.Engine
	log    *zap.Logger
}

// New returns a Resolver. The logger may be zap.NewNop().
func New(k kernel.Kernel, engine *boolean.Engine, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{k: k, engine: engine, log: log}
}

// methodFor maps a conflict type to its resolution method. The mapping is
// a pure function; no other state influences it.
func methodFor(t model.ConflictType) model.AdjustmentMethod {
	switch t {
	case model.ConflictSpacing:
		return model.AdjustIncreaseSpacing
	case model.ConflictAngle:
		return model.AdjustAnchorAngles
	case model.ConflictIntersection:
		return model.AdjustRelocateLowerAnchor
	default:
		return model.AdjustRelocateLowerAnchor
	}
}

// Resolve processes the support-structure solids. Structures are examined
// in creation order (Solid.Seq), which also breaks conflict ties.
func (r *Resolver) Resolve(ctx context.Context, structures []*model.Solid) (*Resolution, error) {
	ordered := make([]*model.Solid, len(structures))
	copy(ordered, structures)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	res := &Resolution{}

	// Pairwise intersection pass across different-kind structures.
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			if a.Kind == b.Kind {
				continue
			}
			geom, err := r.engine.Intersect(ctx, a, b)
			if err != nil {
				return nil, fmt.Errorf("resolve: intersect %s with %s: %w", a.Short(), b.Short(), err)
			}
			if geom.Empty() {
				continue
			}
			inter := model.Intersection{
				ID:              uuid.NewString(),
				SolidA:          a.ID,
				SolidB:          b.ID,
				Geometry:        geom,
				Connector:       connectorKind(a.Kind, b.Kind),
				TransferredLoad: transferredLoad(a, b),
			}
			res.Intersections = append(res.Intersections, inter)
			if c := r.buildConnector(inter, a, b); c != nil {
				res.Connectors = append(res.Connectors, c)
			}
			r.log.Debug("structure intersection",
				zap.String("a", a.Short()),
				zap.String("b", b.Short()),
				zap.Float64("volume", geom.Volume))
		}
	}

	// Same-class conflict pass: anchors against anchors, strut levels
	// against strut levels.
	res.Conflicts = append(res.Conflicts, detectAnchorConflicts(ordered)...)
	res.Conflicts = append(res.Conflicts, detectStrutLevelConflicts(ordered)...)
	res.ConflictSummary = summarize(len(res.Conflicts))

	r.log.Info("resolution complete",
		zap.Int("intersections", len(res.Intersections)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("connectors", len(res.Connectors)),
		zap.String("summary", res.ConflictSummary))
	return res, nil
}

// connectorKind selects the auxiliary geometry type for a structure pair.
func connectorKind(a, b model.SolidKind) model.ConnectorKind {
	switch {
	case pairIs(a, b, model.KindWall, model.KindAnchor):
		return model.ConnectorSleeve
	case pairIs(a, b, model.KindAnchor, model.KindStrut):
		return model.ConnectorWeldedNode
	case a == model.KindStrut && b == model.KindStrut:
		return model.ConnectorColumn
	default:
		return ""
	}
}

func pairIs(a, b, x, y model.SolidKind) bool {
	return (a == x && b == y) || (a == y && b == x)
}

// transferredLoad estimates the load carried across the junction from the
// anchor prestress attribute when present.
func transferredLoad(a, b *model.Solid) float64 {
	for _, s := range []*model.Solid{a, b} {
		if v, ok := s.Attributes["prestress"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// buildConnector creates the auxiliary solid for an intersection: a
// sleeve casing at wall/anchor penetrations, a welded node block at
// anchor/strut junctions, a vertical transfer column between strut levels.
func (r *Resolver) buildConnector(inter model.Intersection, a, b *model.Solid) *model.Solid {
	if inter.Connector == "" {
		return nil
	}
	g := inter.Geometry
	ext := [3]float64{g.Max[0] - g.Min[0], g.Max[1] - g.Min[1], g.Max[2] - g.Min[2]}

	var shape kernel.Solid
	var volume float64
	var name string
	switch inter.Connector {
	case model.ConnectorSleeve:
		// A padded box around the penetration region.
		lx := ext[0] + 2*connectorSleeveClearance
		ly := ext[1] + 2*connectorSleeveClearance
		lz := ext[2] + 2*connectorSleeveClearance
		shape = r.k.Box(lx, ly, lz)
		shape = r.k.Translate(shape,
			g.Min[0]-connectorSleeveClearance,
			g.Min[1]-connectorSleeveClearance,
			g.Min[2]-connectorSleeveClearance)
		volume = lx * ly * lz
		name = "sleeve_casing"
	case model.ConnectorWeldedNode:
		side := math.Max(ext[0], math.Max(ext[1], ext[2]))
		if side <= 0 {
			return nil
		}
		shape = r.k.Box(side, side, side)
		shape = r.k.Translate(shape,
			g.Centroid[0]-side/2, g.Centroid[1]-side/2, g.Centroid[2]-side/2)
		volume = side * side * side
		name = "welded_node"
	case model.ConnectorColumn:
		radius := math.Max(ext[0], ext[1]) / 2
		height := ext[2]
		if radius <= 0 || height <= 0 {
			return nil
		}
		shape = r.k.Cylinder(height, radius, 32)
		shape = r.k.Translate(shape, g.Centroid[0], g.Centroid[1], g.Centroid[2])
		volume = math.Pi * radius * radius * height
		name = "transfer_column"
	default:
		return nil
	}

	c := model.NewSolid(name, model.KindInterface, shape, volume)
	c.SetAttribute("connector", string(inter.Connector))
	c.SetAttribute("solid_a", a.ID)
	c.SetAttribute("solid_b", b.ID)
	return c
}

// summarize maps a total conflict count onto the severity scale used by
// the downstream quality report.
func summarize(total int) string {
	switch {
	case total == 0:
		return "none"
	case total <= 3:
		return "minor"
	case total <= 10:
		return "moderate"
	default:
		return "severe"
	}
}
