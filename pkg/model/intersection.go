package model

// IntersectionGeometry describes the shared region of two solids.
type IntersectionGeometry struct {
	Min      [3]float64 `json:"min"`
	Max      [3]float64 `json:"max"`
	Volume   float64    `json:"volume"`
	Centroid [3]float64 `json:"centroid"`
}

// Empty reports whether the intersection region carries no volume.
func (g IntersectionGeometry) Empty() bool {
	return g.Volume <= 0
}

// ConnectorKind is the auxiliary geometry generated where two support
// structures meet.
type ConnectorKind string

const (
	ConnectorSleeve     ConnectorKind = "sleeve_casing"   // wall/anchor penetration
	ConnectorWeldedNode ConnectorKind = "welded_node"     // anchor/strut junction
	ConnectorColumn     ConnectorKind = "transfer_column" // strut-level to strut-level
)

// Intersection is the resolved relation between two structure solids:
// its overlap geometry plus the engineering attributes the downstream
// interface generator needs.
type Intersection struct {
	ID              string               `json:"id"`
	SolidA          string               `json:"solid_a"`
	SolidB          string               `json:"solid_b"`
	Geometry        IntersectionGeometry `json:"geometry"`
	Connector       ConnectorKind        `json:"connector,omitempty"`
	TransferredLoad float64              `json:"transferred_load"` // kN, estimated
}

// ConflictType classifies conflicts between same-class structures.
type ConflictType string

const (
	ConflictSpacing      ConflictType = "spacing_conflict"
	ConflictAngle        ConflictType = "angle_conflict"
	ConflictIntersection ConflictType = "intersection"
)

// AdjustmentMethod recommends how a conflict should be resolved. The
// mapping from conflict type to method is fixed (see resolve.methodFor).
type AdjustmentMethod string

const (
	AdjustIncreaseSpacing     AdjustmentMethod = "increase_vertical_spacing"
	AdjustAnchorAngles        AdjustmentMethod = "adjust_anchor_angles"
	AdjustRelocateLowerAnchor AdjustmentMethod = "relocate_lower_anchor"
)

// Conflict is a detected clash between two independently specified
// structures. The resolver never mutates the structures; it only emits
// the recommended adjustment.
type Conflict struct {
	Type      ConflictType     `json:"type"`
	Severity  Severity         `json:"severity"`
	SolidA    string           `json:"solid_a"`
	SolidB    string           `json:"solid_b"`
	Measure   float64          `json:"measure"`  // spacing or angle difference
	Location  [3]float64       `json:"location"` // midpoint between the pair
	Method    AdjustmentMethod `json:"method"`
	Suggested string           `json:"suggested,omitempty"` // human-readable adjustment
}
