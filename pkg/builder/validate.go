package builder

import (
	"fmt"

	"github.com/geoforge/pitprep/pkg/model"
)

// Issue is a single input validation finding. Error-severity issues block
// the run; lower severities are advisory.
type Issue struct {
	Field    string
	Message  string
	Severity model.Severity
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Field, i.Message)
}

// Blocking reports whether any issue should stop the pipeline.
func Blocking(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity >= model.SeverityHigh {
			return true
		}
	}
	return false
}

// ValidateInputs runs all parameter checks before any geometry is built.
// It is read-only and never mutates its arguments.
func ValidateInputs(geom model.ExcavationGeometry, support model.SupportStructure, geo model.GeologicalCondition) []Issue {
	var issues []Issue
	issues = append(issues, validateDimensions(geom)...)
	issues = append(issues, validateStages(geom)...)
	issues = append(issues, validateSupport(geom, support)...)
	issues = append(issues, validateGeology(geom, geo)...)
	return issues
}

func validateDimensions(geom model.ExcavationGeometry) []Issue {
	var issues []Issue
	d := geom.Dimensions
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"dimensions.length", d.Length},
		{"dimensions.width", d.Width},
		{"dimensions.depth", d.Depth},
	} {
		if c.value <= 0 {
			issues = append(issues, Issue{
				Field:    c.name,
				Message:  fmt.Sprintf("is %.4f, must be positive", c.value),
				Severity: model.SeverityHigh,
			})
		}
	}
	if d.SlopeAngle < 0 || d.SlopeAngle >= 60 {
		issues = append(issues, Issue{
			Field:    "dimensions.slope_angle",
			Message:  fmt.Sprintf("%.1f degrees outside the workable range [0, 60)", d.SlopeAngle),
			Severity: model.SeverityHigh,
		})
	}
	if r := geom.Corners.Radius; r < 0 {
		issues = append(issues, Issue{
			Field:    "corners.radius",
			Message:  fmt.Sprintf("is %.4f, must not be negative", r),
			Severity: model.SeverityHigh,
		})
	}
	return issues
}

func validateStages(geom model.ExcavationGeometry) []Issue {
	var issues []Issue
	var total float64
	for i, st := range geom.Stages {
		if st.Depth <= 0 {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("stages[%d].depth", i),
				Message:  fmt.Sprintf("is %.4f, must be positive", st.Depth),
				Severity: model.SeverityHigh,
			})
		}
		total += st.Depth
	}
	if len(geom.Stages) > 0 && total > geom.Dimensions.Depth+1e-9 {
		issues = append(issues, Issue{
			Field:    "stages",
			Message:  fmt.Sprintf("stage depths sum to %.2f, exceeding total depth %.2f", total, geom.Dimensions.Depth),
			Severity: model.SeverityHigh,
		})
	}
	return issues
}

func validateSupport(geom model.ExcavationGeometry, support model.SupportStructure) []Issue {
	var issues []Issue
	if w := support.DiaphragmWalls; w.Enabled {
		if w.Thickness <= 0 {
			issues = append(issues, Issue{
				Field:    "support.diaphragm_walls.thickness",
				Message:  fmt.Sprintf("is %.4f, must be positive", w.Thickness),
				Severity: model.SeverityHigh,
			})
		}
		if w.Depth < geom.Dimensions.Depth {
			issues = append(issues, Issue{
				Field:    "support.diaphragm_walls.depth",
				Message:  fmt.Sprintf("embedment %.2f is shallower than the excavation depth %.2f", w.Depth, geom.Dimensions.Depth),
				Severity: model.SeverityMedium,
			})
		}
	}
	sides := map[string]bool{"north": true, "south": true, "east": true, "west": true}
	for i, a := range support.Anchors {
		if !sides[a.Side] {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("support.anchors[%d].side", i),
				Message:  fmt.Sprintf("unknown wall side %q", a.Side),
				Severity: model.SeverityHigh,
			})
		}
		if a.Depth > geom.Dimensions.Depth {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("support.anchors[%d].depth", i),
				Message:  fmt.Sprintf("head depth %.2f is below the pit bottom %.2f", a.Depth, geom.Dimensions.Depth),
				Severity: model.SeverityMedium,
			})
		}
	}
	for i, s := range support.SteelStruts {
		if s.Depth > geom.Dimensions.Depth {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("support.steel_struts[%d].depth", i),
				Message:  fmt.Sprintf("level depth %.2f is below the pit bottom %.2f", s.Depth, geom.Dimensions.Depth),
				Severity: model.SeverityHigh,
			})
		}
	}
	return issues
}

func validateGeology(geom model.ExcavationGeometry, geo model.GeologicalCondition) []Issue {
	var issues []Issue
	depth := geo.DomainDepth
	if t := geo.TotalThickness(); t > depth {
		depth = t
	}
	if depth < geom.Dimensions.Depth {
		issues = append(issues, Issue{
			Field:    "geology.domain_depth",
			Message:  fmt.Sprintf("soil domain depth %.2f is shallower than the excavation %.2f", depth, geom.Dimensions.Depth),
			Severity: model.SeverityHigh,
		})
	}
	if geo.GroundwaterLevel < 0 {
		issues = append(issues, Issue{
			Field:    "geology.groundwater_level",
			Message:  fmt.Sprintf("is %.2f, must be a depth below the surface (non-negative)", geo.GroundwaterLevel),
			Severity: model.SeverityHigh,
		})
	}
	return issues
}
