// Package model defines the core data structures shared by the excavation
// modeling pipeline: solids with provenance, excavation stages, structure
// intersections, mesh defects, and repair records.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/geoforge/pitprep/pkg/kernel"
)

// SolidKind classifies a solid by its engineering role.
type SolidKind int

const (
	KindSoil SolidKind = iota
	KindExcavation
	KindWall
	KindAnchor
	KindStrut
	KindInterface // soft-fill / connector geometry between structures
)

func (k SolidKind) String() string {
	switch k {
	case KindSoil:
		return "soil"
	case KindExcavation:
		return "excavation"
	case KindWall:
		return "wall"
	case KindAnchor:
		return "anchor"
	case KindStrut:
		return "strut"
	case KindInterface:
		return "interface"
	default:
		return "unknown"
	}
}

// ProvenanceEntry records one operation applied to a solid. The provenance
// log is append-only and chronological; entries are never rewritten.
type ProvenanceEntry struct {
	Operation string            `json:"operation"`
	Operands  []string          `json:"operands,omitempty"` // ids of other solids involved
	Params    map[string]string `json:"params,omitempty"`
	Success   bool              `json:"success"`
	Duration  time.Duration     `json:"duration"`
	At        time.Time         `json:"at"`
}

// Solid is an abstract engineering solid: a kernel shape handle, an
// analytic volume ledger, and the history of operations that produced it.
type Solid struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Kind       SolidKind         `json:"kind"`
	Shape      kernel.Solid      `json:"-"`
	Volume     float64           `json:"volume"` // always >= 0
	Attributes map[string]string `json:"attributes,omitempty"`
	Provenance []ProvenanceEntry `json:"provenance,omitempty"`

	// Seq is the creation order within one modeling run. Conflict ties
	// between structures are broken by Seq, keeping resolution deterministic.
	Seq int `json:"seq"`
}

// NewSolid creates a solid with a fresh identity and an initial
// provenance entry for its construction.
func NewSolid(name string, kind SolidKind, shape kernel.Solid, volume float64) *Solid {
	if volume < 0 {
		volume = 0
	}
	s := &Solid{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
		Shape:  shape,
		Volume: volume,
	}
	s.AppendProvenance(ProvenanceEntry{
		Operation: "construct",
		Params:    map[string]string{"kind": kind.String()},
		Success:   true,
		At:        time.Now(),
	})
	return s
}

// AppendProvenance appends one entry to the provenance log. The log order
// reflects wall-clock operation order; callers must not reorder entries.
func (s *Solid) AppendProvenance(e ProvenanceEntry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.Provenance = append(s.Provenance, e)
}

// SetAttribute records an engineering attribute on the solid.
func (s *Solid) SetAttribute(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

// Short returns an abbreviated identity for log and error messages.
func (s *Solid) Short() string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if s.Name != "" {
		return fmt.Sprintf("%s(%s)", s.Name, id)
	}
	return id
}

// BoundingBox returns the axis-aligned bounding box of the solid's shape.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	return s.Shape.BoundingBox()
}
