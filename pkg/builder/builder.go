// Package builder constructs the primitive engineering solids of an
// excavation model: the soil domain, the excavation volume, and the
// support structures (diaphragm wall panels, anchors, steel struts,
// waler beams). All volumes are recorded analytically at construction
// so the boolean engine can keep an exact ledger.
package builder

import (
	"fmt"
	"math"

	"github.com/geoforge/pitprep/pkg/kernel"
	"github.com/geoforge/pitprep/pkg/model"
)

// Builder creates model solids through a geometry kernel.
// The coordinate convention is: ground surface at z = 0, depth extends
// toward negative z, the pit footprint spans [0,L] x [0,W] in plan before
// the origin offset is applied.
type Builder struct {
	kernel kernel.Kernel
	seq    int
}

// New returns a Builder backed by the given kernel.
func New(k kernel.Kernel) *Builder {
	return &Builder{kernel: k}
}

// nextSeq hands out creation-order sequence numbers. Conflict resolution
// breaks ties by this order.
func (b *Builder) nextSeq() int {
	b.seq++
	return b.seq
}

// emit finalizes a solid with its creation sequence number.
func (b *Builder) emit(s *model.Solid) *model.Solid {
	s.Seq = b.nextSeq()
	return s
}

// SoilDomain builds the soil box surrounding the pit. The domain extends
// DomainMarginXY beyond the footprint on all plan sides and down to
// DomainDepth (or the total layer thickness, whichever is greater).
func (b *Builder) SoilDomain(geom model.ExcavationGeometry, geo model.GeologicalCondition) (*model.Solid, error) {
	d := geom.Dimensions
	if d.Length <= 0 || d.Width <= 0 {
		return nil, fmt.Errorf("builder: soil domain needs a positive footprint, got %gx%g", d.Length, d.Width)
	}
	margin := geo.DomainMarginXY
	if margin < 0 {
		margin = 0
	}
	depth := geo.DomainDepth
	if t := geo.TotalThickness(); t > depth {
		depth = t
	}
	if depth <= 0 {
		return nil, fmt.Errorf("builder: soil domain depth must be positive, got %g", depth)
	}

	lx := d.Length + 2*margin
	ly := d.Width + 2*margin
	shape := b.kernel.Box(lx, ly, depth)
	shape = b.kernel.Translate(shape,
		geom.Origin[0]-margin,
		geom.Origin[1]-margin,
		geom.Origin[2]-depth,
	)

	s := model.NewSolid("soil_domain", model.KindSoil, shape, lx*ly*depth)
	s.SetAttribute("groundwater_level", fmt.Sprintf("%g", geo.GroundwaterLevel))
	return b.emit(s), nil
}

// SoilLayers builds one marker solid per stratum, stacked downward from
// the surface. Layer solids share the soil domain footprint and carry the
// material attributes the mesher needs for region tagging.
func (b *Builder) SoilLayers(geom model.ExcavationGeometry, geo model.GeologicalCondition) ([]*model.Solid, error) {
	if len(geo.SoilLayers) == 0 {
		return nil, nil
	}
	d := geom.Dimensions
	margin := geo.DomainMarginXY
	lx := d.Length + 2*margin
	ly := d.Width + 2*margin

	var out []*model.Solid
	top := 0.0 // depth below surface
	for i, layer := range geo.SoilLayers {
		if layer.Thickness <= 0 {
			return nil, fmt.Errorf("builder: soil layer %d (%s) has non-positive thickness %g", i, layer.Name, layer.Thickness)
		}
		shape := b.kernel.Box(lx, ly, layer.Thickness)
		shape = b.kernel.Translate(shape,
			geom.Origin[0]-margin,
			geom.Origin[1]-margin,
			geom.Origin[2]-(top+layer.Thickness),
		)
		s := model.NewSolid(fmt.Sprintf("soil_layer_%d", i+1), model.KindSoil, shape, lx*ly*layer.Thickness)
		s.SetAttribute("layer_name", layer.Name)
		s.SetAttribute("elastic_modulus", fmt.Sprintf("%g", layer.ElasticModulus))
		s.SetAttribute("poisson_ratio", fmt.Sprintf("%g", layer.PoissonRatio))
		s.SetAttribute("density", fmt.Sprintf("%g", layer.Density))
		out = append(out, b.emit(s))
		top += layer.Thickness
	}
	return out, nil
}

// roundedBoxVolume is the closed-form volume of a box with outer
// dimensions lx x ly x lz whose edges and corners are filleted at radius
// r: the Minkowski sum of the shrunk inner box with a ball, which is
// exactly the shape kernel.RoundedBox produces.
func roundedBoxVolume(lx, ly, lz, r float64) float64 {
	a := lx - 2*r
	bb := ly - 2*r
	c := lz - 2*r
	return a*bb*c +
		2*r*(a*bb+bb*c+c*a) +
		math.Pi*r*r*(a+bb+c) +
		4.0/3.0*math.Pi*r*r*r
}

// ExcavationVolume builds the full excavation solid. A corner radius adds
// a fillet (rounded edges); a chamfer request is approximated by the same
// rounding with the volume adjusted to the chamfer closed form.
func (b *Builder) ExcavationVolume(geom model.ExcavationGeometry) (*model.Solid, error) {
	d := geom.Dimensions
	if d.Length <= 0 || d.Width <= 0 || d.Depth <= 0 {
		return nil, fmt.Errorf("builder: excavation dimensions must be positive, got %gx%gx%g", d.Length, d.Width, d.Depth)
	}
	r := geom.Corners.Radius
	if r < 0 {
		return nil, fmt.Errorf("builder: corner radius must not be negative, got %g", r)
	}
	if 2*r >= math.Min(d.Length, math.Min(d.Width, d.Depth)) {
		return nil, fmt.Errorf("builder: corner radius %g too large for dimensions %gx%gx%g", r, d.Length, d.Width, d.Depth)
	}

	var shape kernel.Solid
	volume := d.Length * d.Width * d.Depth
	if r > 0 {
		shape = b.kernel.RoundedBox(d.Length, d.Width, d.Depth, r)
		volume = roundedBoxVolume(d.Length, d.Width, d.Depth, r)
	} else {
		shape = b.kernel.Box(d.Length, d.Width, d.Depth)
	}

	if geom.Orientation != 0 {
		shape = b.kernel.Rotate(shape, 0, 0, geom.Orientation)
	}
	shape = b.kernel.Translate(shape, geom.Origin[0], geom.Origin[1], geom.Origin[2]-d.Depth)

	s := model.NewSolid("excavation", model.KindExcavation, shape, volume)
	if r > 0 {
		s.SetAttribute("fillet_type", geom.Corners.FilletType)
		s.SetAttribute("fillet_radius", fmt.Sprintf("%g", r))
	}
	return b.emit(s), nil
}

// DiaphragmWall builds the four perimeter wall panels. Panels sit just
// outside the excavation footprint and extend from the surface down to
// the wall embedment depth.
func (b *Builder) DiaphragmWall(geom model.ExcavationGeometry, spec model.DiaphragmWallSpec) ([]*model.Solid, error) {
	if !spec.Enabled {
		return nil, nil
	}
	if spec.Thickness <= 0 || spec.Depth <= 0 {
		return nil, fmt.Errorf("builder: wall thickness and depth must be positive, got %g and %g", spec.Thickness, spec.Depth)
	}
	d := geom.Dimensions
	t := spec.Thickness
	wd := spec.Depth
	ox, oy, oz := geom.Origin[0], geom.Origin[1], geom.Origin[2]

	// Side panels overlap at the corners by construction; the corner
	// doubling surfaces later as a mesh overlap and is resolved there.
	type panel struct {
		name   string
		lx, ly float64
		tx, ty float64
	}
	panels := []panel{
		{"wall_south", d.Length + 2*t, t, -t, -t},
		{"wall_north", d.Length + 2*t, t, -t, d.Width},
		{"wall_west", t, d.Width, -t, 0},
		{"wall_east", t, d.Width, d.Length, 0},
	}

	var out []*model.Solid
	for _, p := range panels {
		shape := b.kernel.Box(p.lx, p.ly, wd)
		shape = b.kernel.Translate(shape, ox+p.tx, oy+p.ty, oz-wd)
		s := model.NewSolid(p.name, model.KindWall, shape, p.lx*p.ly*wd)
		s.SetAttribute("thickness", fmt.Sprintf("%g", t))
		out = append(out, b.emit(s))
	}
	return out, nil
}

// Anchor builds one inclined anchor cylinder. The head sits on the named
// wall side at the given depth and offset; the body extends outward and
// downward at the specified inclination.
func (b *Builder) Anchor(geom model.ExcavationGeometry, spec model.AnchorSpec) (*model.Solid, error) {
	if spec.Length <= 0 || spec.Diameter <= 0 {
		return nil, fmt.Errorf("builder: anchor level %d needs positive length and diameter", spec.Level)
	}
	if spec.Angle < 0 || spec.Angle >= 90 {
		return nil, fmt.Errorf("builder: anchor inclination %g outside [0, 90)", spec.Angle)
	}

	radius := spec.Diameter / 2
	shape := b.kernel.Cylinder(spec.Length, radius, 32)

	// The cylinder axis starts along Z centered at the origin. Tip it to
	// horizontal, add the downward inclination, then yaw to the wall side.
	head, yaw, err := anchorPlacement(geom, spec)
	if err != nil {
		return nil, err
	}
	shape = b.kernel.Rotate(shape, 0, 90+spec.Angle, 0) // horizontal, tipped down
	shape = b.kernel.Rotate(shape, 0, 0, yaw)
	// The kernel cylinder is centered at the origin, so place the body
	// midpoint half a length along the axis direction beyond the head.
	incl := spec.Angle * math.Pi / 180
	yawRad := yaw * math.Pi / 180
	dir := [3]float64{
		math.Cos(incl) * math.Cos(yawRad),
		math.Cos(incl) * math.Sin(yawRad),
		-math.Sin(incl),
	}
	half := spec.Length / 2
	shape = b.kernel.Translate(shape,
		head[0]+dir[0]*half,
		head[1]+dir[1]*half,
		head[2]+dir[2]*half,
	)

	s := model.NewSolid(fmt.Sprintf("anchor_L%d_%s", spec.Level, spec.Side), model.KindAnchor, shape,
		math.Pi*radius*radius*spec.Length)
	s.SetAttribute("level", fmt.Sprintf("%d", spec.Level))
	s.SetAttribute("angle", fmt.Sprintf("%g", spec.Angle))
	s.SetAttribute("depth", fmt.Sprintf("%g", spec.Depth))
	s.SetAttribute("prestress", fmt.Sprintf("%g", spec.Prestress))
	return b.emit(s), nil
}

// anchorPlacement resolves the head position and plan yaw for an anchor
// on the given wall side.
func anchorPlacement(geom model.ExcavationGeometry, spec model.AnchorSpec) (head [3]float64, yaw float64, err error) {
	d := geom.Dimensions
	ox, oy, oz := geom.Origin[0], geom.Origin[1], geom.Origin[2]
	z := oz - spec.Depth
	switch spec.Side {
	case "south":
		return [3]float64{ox + spec.Offset, oy, z}, 270, nil
	case "north":
		return [3]float64{ox + spec.Offset, oy + d.Width, z}, 90, nil
	case "west":
		return [3]float64{ox, oy + spec.Offset, z}, 180, nil
	case "east":
		return [3]float64{ox + d.Length, oy + spec.Offset, z}, 0, nil
	default:
		return head, 0, fmt.Errorf("builder: unknown anchor side %q", spec.Side)
	}
}

// Struts builds the horizontal steel struts for one level, spanning the
// pit width at the configured spacing along the length.
func (b *Builder) Struts(geom model.ExcavationGeometry, spec model.StrutSpec) ([]*model.Solid, error) {
	if spec.Diameter <= 0 || spec.Spacing <= 0 {
		return nil, fmt.Errorf("builder: strut level %d needs positive diameter and spacing", spec.Level)
	}
	d := geom.Dimensions
	radius := spec.Diameter / 2
	count := int(d.Length/spec.Spacing) - 1
	if count < 1 {
		count = 1
	}

	var out []*model.Solid
	for i := 1; i <= count; i++ {
		x := geom.Origin[0] + float64(i)*spec.Spacing
		shape := b.kernel.Cylinder(d.Width, radius, 32)
		shape = b.kernel.Rotate(shape, 90, 0, 0) // axis along Y
		shape = b.kernel.Translate(shape, x, geom.Origin[1]+d.Width/2, geom.Origin[2]-spec.Depth)
		s := model.NewSolid(fmt.Sprintf("strut_L%d_%d", spec.Level, i), model.KindStrut, shape,
			math.Pi*radius*radius*d.Width)
		s.SetAttribute("level", fmt.Sprintf("%d", spec.Level))
		s.SetAttribute("depth", fmt.Sprintf("%g", spec.Depth))
		out = append(out, b.emit(s))
	}
	return out, nil
}

// WalerBeams builds crest beams along the wall top on the two long sides.
func (b *Builder) WalerBeams(geom model.ExcavationGeometry, spec model.BeamSpec) ([]*model.Solid, error) {
	if !spec.Enabled {
		return nil, nil
	}
	if spec.Height <= 0 || spec.Width <= 0 {
		return nil, fmt.Errorf("builder: beam height and width must be positive")
	}
	d := geom.Dimensions
	ox, oy, oz := geom.Origin[0], geom.Origin[1], geom.Origin[2]

	var out []*model.Solid
	for i, ty := range []float64{-spec.Width, d.Width} {
		shape := b.kernel.Box(d.Length, spec.Width, spec.Height)
		shape = b.kernel.Translate(shape, ox, oy+ty, oz-spec.Height)
		s := model.NewSolid(fmt.Sprintf("waler_beam_%d", i+1), model.KindStrut, shape,
			d.Length*spec.Width*spec.Height)
		out = append(out, b.emit(s))
	}
	return out, nil
}

// StageVolume builds the sub-excavation solid for one stage, already
// widened by the slope allowance.
func (b *Builder) StageVolume(geom model.ExcavationGeometry, st *model.Stage) (*model.Solid, error) {
	if st.Thickness() <= 0 {
		return nil, fmt.Errorf("builder: stage %s has non-positive thickness", st.ID)
	}
	if st.FootprintLength <= 0 || st.FootprintWidth <= 0 {
		return nil, fmt.Errorf("builder: stage %s has empty footprint", st.ID)
	}
	// Widening is symmetric about the nominal footprint.
	dx := (st.FootprintLength - geom.Dimensions.Length) / 2
	dy := (st.FootprintWidth - geom.Dimensions.Width) / 2

	shape := b.kernel.Box(st.FootprintLength, st.FootprintWidth, st.Thickness())
	shape = b.kernel.Translate(shape,
		geom.Origin[0]-dx,
		geom.Origin[1]-dy,
		geom.Origin[2]-st.BottomDepth,
	)
	vol := st.FootprintLength * st.FootprintWidth * st.Thickness()
	s := model.NewSolid(fmt.Sprintf("stage_%d", st.Index+1), model.KindExcavation, shape, vol)
	s.SetAttribute("construction_method", st.ConstructionMethod)
	return b.emit(s), nil
}
