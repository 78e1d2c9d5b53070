package model

import (
	"fmt"
	"sort"
)

// Severity ranks how badly a defect compromises mesh readiness.
// Values are ordered so that numeric comparison matches urgency.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// DefectClass distinguishes the three defect families.
type DefectClass int

const (
	ClassHole DefectClass = iota
	ClassOverlap
	ClassContinuity
)

func (c DefectClass) String() string {
	switch c {
	case ClassHole:
		return "hole"
	case ClassOverlap:
		return "overlap"
	case ClassContinuity:
		return "continuity"
	default:
		return "unknown"
	}
}

// Defect is the tagged-variant interface over hole, overlap, and
// continuity defects. Severity must be a monotonic function of Magnitude
// within each concrete type.
type Defect interface {
	DefectID() string
	Class() DefectClass
	DefectSeverity() Severity
	Magnitude() float64
	Location() [3]float64
}

// HoleType classifies detected holes.
type HoleType int

const (
	HoleBoundary HoleType = iota
	HoleInternalVoid
	HoleMeshGap
	HoleMaterialVoid
)

func (t HoleType) String() string {
	switch t {
	case HoleBoundary:
		return "boundary_hole"
	case HoleInternalVoid:
		return "internal_void"
	case HoleMeshGap:
		return "mesh_gap"
	case HoleMaterialVoid:
		return "material_void"
	default:
		return "unknown"
	}
}

// Repairability describes whether and how a hole can be machine-filled.
type Repairability struct {
	CanAutoFill bool    `json:"can_auto_fill"`
	Complexity  float64 `json:"complexity"` // 0..1, loop irregularity
	FillMethod  string  `json:"fill_method"`
}

// Hole is a boundary loop in the mesh where a watertight surface is missing.
type Hole struct {
	ID            string        `json:"id"`
	Type          HoleType      `json:"type"`
	Severity      Severity      `json:"severity"`
	Area          float64       `json:"area"`
	Perimeter     float64       `json:"perimeter"`
	Center        [3]float64    `json:"center"`
	MeshIndex     int           `json:"mesh_index"` // which mesh in the working set
	Loop          []int         `json:"loop"`       // welded vertex indices around the hole
	Repairability Repairability `json:"repairability"`
}

func (h *Hole) DefectID() string         { return h.ID }
func (h *Hole) Class() DefectClass       { return ClassHole }
func (h *Hole) DefectSeverity() Severity { return h.Severity }
func (h *Hole) Magnitude() float64       { return h.Area }
func (h *Hole) Location() [3]float64     { return h.Center }

// OverlapType classifies detected overlaps.
type OverlapType int

const (
	OverlapSurface OverlapType = iota
	OverlapVolume
	OverlapEdgeCollision
	OverlapVertexMerge
)

func (t OverlapType) String() string {
	switch t {
	case OverlapSurface:
		return "surface_overlap"
	case OverlapVolume:
		return "volume_intersection"
	case OverlapEdgeCollision:
		return "edge_collision"
	case OverlapVertexMerge:
		return "vertex_merge"
	default:
		return "unknown"
	}
}

// ResolutionMethod is the declared strategy for resolving an overlap.
type ResolutionMethod string

const (
	ResolveMerge  ResolutionMethod = "merge"
	ResolveSplit  ResolutionMethod = "split"
	ResolveAdjust ResolutionMethod = "adjust"
	ResolveRemove ResolutionMethod = "remove"
)

// Overlap is a detected interpenetration between two solids or meshes.
type Overlap struct {
	ID            string           `json:"id"`
	Type          OverlapType      `json:"type"`
	Severity      Severity         `json:"severity"`
	OverlapVolume float64          `json:"overlap_volume"`
	Center        [3]float64       `json:"center"`
	SolidA        string           `json:"solid_a"`
	SolidB        string           `json:"solid_b"`
	MeshA         int              `json:"mesh_a"` // working-set mesh indices
	MeshB         int              `json:"mesh_b"`
	Resolution    ResolutionMethod `json:"resolution"`
}

func (o *Overlap) DefectID() string         { return o.ID }
func (o *Overlap) Class() DefectClass       { return ClassOverlap }
func (o *Overlap) DefectSeverity() Severity { return o.Severity }
func (o *Overlap) Magnitude() float64       { return o.OverlapVolume }
func (o *Overlap) Location() [3]float64     { return o.Center }

// ContinuityDefect is a C0/C1/C2 discontinuity across mesh boundaries.
// Order 0 magnitude is a gap distance, order 1 a normal angle in degrees,
// order 2 a curvature jump.
type ContinuityDefect struct {
	ID         string     `json:"id"`
	Order      int        `json:"order"` // 0, 1 or 2
	Severity   Severity   `json:"severity"`
	Value      float64    `json:"magnitude"`
	Position   [3]float64 `json:"position"`
	MeshA      int        `json:"mesh_a"` // working-set mesh indices
	MeshB      int        `json:"mesh_b"`
	VertexA    int        `json:"vertex_a"`
	VertexB    int        `json:"vertex_b"`
	Repairable bool       `json:"repairable"`
}

func (c *ContinuityDefect) DefectID() string         { return c.ID }
func (c *ContinuityDefect) Class() DefectClass       { return ClassContinuity }
func (c *ContinuityDefect) DefectSeverity() Severity { return c.Severity }
func (c *ContinuityDefect) Magnitude() float64       { return c.Value }
func (c *ContinuityDefect) Location() [3]float64     { return c.Position }

// SortDefects orders defects by severity descending, then magnitude
// descending, then id ascending. The id tiebreak keeps repeated runs on
// identical input byte-identical.
func SortDefects(defects []Defect) {
	sort.SliceStable(defects, func(i, j int) bool {
		if defects[i].DefectSeverity() != defects[j].DefectSeverity() {
			return defects[i].DefectSeverity() > defects[j].DefectSeverity()
		}
		if defects[i].Magnitude() != defects[j].Magnitude() {
			return defects[i].Magnitude() > defects[j].Magnitude()
		}
		return defects[i].DefectID() < defects[j].DefectID()
	})
}

// RepairAction records one attempted fix. Actions are owned by the repair
// result of a single run and do not outlive it.
type RepairAction struct {
	DefectID     string  `json:"defect_id"`
	Type         string  `json:"type"`   // e.g. "hole_fill", "overlap_merge"
	Method       string  `json:"method"` // strategy used
	QualityDelta float64 `json:"quality_delta"`
	Success      bool    `json:"success"`
	Reason       string  `json:"reason,omitempty"` // failure explanation
	Alternative  string  `json:"alternative,omitempty"`
}
