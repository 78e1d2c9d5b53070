package resolve

import (
	"fmt"
	"math"
	"strconv"

	"github.com/geoforge/pitprep/pkg/model"
)

// attrFloat reads a numeric attribute off a solid, defaulting to zero.
func attrFloat(s *model.Solid, key string) float64 {
	if v, ok := s.Attributes[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// detectAnchorConflicts checks every anchor pair for spacing and angle
// clashes. The input slice is already in creation order, so emitted
// conflicts are deterministic and ties resolve toward the earlier anchor.
func detectAnchorConflicts(ordered []*model.Solid) []model.Conflict {
	var anchors []*model.Solid
	for _, s := range ordered {
		if s.Kind == model.KindAnchor {
			anchors = append(anchors, s)
		}
	}

	var out []model.Conflict
	for i := 0; i < len(anchors); i++ {
		for j := i + 1; j < len(anchors); j++ {
			a, b := anchors[i], anchors[j]
			if c, ok := anchorPairConflict(a, b); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// anchorPairConflict applies the checks to one anchor pair: a physical
// crossing first, then vertical spacing, then the angle check. Spacing
// below minVerticalSpacing wins over the angle check.
func anchorPairConflict(a, b *model.Solid) (model.Conflict, bool) {
	if vol, center, ok := bodiesCross(a, b); ok {
		t := model.ConflictIntersection
		return model.Conflict{
			Type:     t,
			Severity: model.SeverityHigh,
			SolidA:   a.ID,
			SolidB:   b.ID,
			Measure:  vol,
			Location: center,
			Method:   methodFor(t),
			Suggested: fmt.Sprintf("anchors %s and %s physically cross, relocate the lower anchor",
				a.Short(), b.Short()),
		}, true
	}

	depthA := attrFloat(a, "depth")
	depthB := attrFloat(b, "depth")
	vertical := math.Abs(depthA - depthB)

	if vertical < minVerticalSpacing {
		t := model.ConflictSpacing
		return model.Conflict{
			Type:     t,
			Severity: model.SeverityHigh,
			SolidA:   a.ID,
			SolidB:   b.ID,
			Measure:  vertical,
			Location: pairMidpoint(a, b),
			Method:   methodFor(t),
			Suggested: fmt.Sprintf("increase vertical spacing between %s and %s from %.2f to at least %.2f",
				a.Short(), b.Short(), vertical, minVerticalSpacing),
		}, true
	}

	angleDiff := math.Abs(attrFloat(a, "angle") - attrFloat(b, "angle"))
	horizontal := horizontalSpacing(a, b)
	if angleDiff < minAngleDifference && horizontal < minHorizontalSpacing {
		t := model.ConflictAngle
		return model.Conflict{
			Type:     t,
			Severity: model.SeverityMedium,
			SolidA:   a.ID,
			SolidB:   b.ID,
			Measure:  angleDiff,
			Location: pairMidpoint(a, b),
			Method:   methodFor(t),
			Suggested: fmt.Sprintf("adjust inclination of %s or %s apart by at least %.0f degrees",
				a.Short(), b.Short(), minAngleDifference),
		}, true
	}

	return model.Conflict{}, false
}

// bodiesCross reports whether the bounding boxes of two structure bodies
// penetrate on all three axes, returning the penetration volume and its
// center. Bounding boxes keep the check deterministic and kernel-free;
// inclined bodies may over-report, which errs toward flagging.
func bodiesCross(a, b *model.Solid) (vol float64, center [3]float64, ok bool) {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	vol = 1
	for i := 0; i < 3; i++ {
		lo := math.Max(minA[i], minB[i])
		hi := math.Min(maxA[i], maxB[i])
		if hi <= lo {
			return 0, center, false
		}
		vol *= hi - lo
		center[i] = (lo + hi) / 2
	}
	return vol, center, true
}

// pairMidpoint is the midpoint of the two bounding box centers.
func pairMidpoint(a, b *model.Solid) [3]float64 {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	var mid [3]float64
	for i := 0; i < 3; i++ {
		ca := (minA[i] + maxA[i]) / 2
		cb := (minB[i] + maxB[i]) / 2
		mid[i] = (ca + cb) / 2
	}
	return mid
}

// horizontalSpacing measures plan-view distance between two structure
// bounding box centers.
func horizontalSpacing(a, b *model.Solid) float64 {
	minA, maxA := a.BoundingBox()
	minB, maxB := b.BoundingBox()
	ax := (minA[0] + maxA[0]) / 2
	ay := (minA[1] + maxA[1]) / 2
	bx := (minB[0] + maxB[0]) / 2
	by := (minB[1] + maxB[1]) / 2
	return math.Hypot(ax-bx, ay-by)
}

// detectStrutLevelConflicts checks consecutive strut levels for vertical
// spacing clashes using the same threshold as anchors.
func detectStrutLevelConflicts(ordered []*model.Solid) []model.Conflict {
	// One representative strut per level, first by creation order.
	levelRep := make(map[int]*model.Solid)
	var levels []int
	for _, s := range ordered {
		if s.Kind != model.KindStrut {
			continue
		}
		lvl := int(attrFloat(s, "level"))
		if _, seen := levelRep[lvl]; !seen {
			levelRep[lvl] = s
			levels = append(levels, lvl)
		}
	}

	var out []model.Conflict
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			a := levelRep[levels[i]]
			b := levelRep[levels[j]]
			if vol, center, ok := bodiesCross(a, b); ok {
				t := model.ConflictIntersection
				out = append(out, model.Conflict{
					Type:     t,
					Severity: model.SeverityHigh,
					SolidA:   a.ID,
					SolidB:   b.ID,
					Measure:  vol,
					Location: center,
					Method:   methodFor(t),
					Suggested: fmt.Sprintf("strut levels %d and %d physically cross, relocate the lower level",
						levels[i], levels[j]),
				})
				continue
			}
			vertical := math.Abs(attrFloat(a, "depth") - attrFloat(b, "depth"))
			if vertical >= minVerticalSpacing {
				continue
			}
			t := model.ConflictSpacing
			out = append(out, model.Conflict{
				Type:     t,
				Severity: model.SeverityHigh,
				SolidA:   a.ID,
				SolidB:   b.ID,
				Measure:  vertical,
				Location: pairMidpoint(a, b),
				Method:   methodFor(t),
				Suggested: fmt.Sprintf("strut levels %d and %d are %.2f apart, need %.2f",
					levels[i], levels[j], vertical, minVerticalSpacing),
			})
		}
	}
	return out
}
