package model

// Input parameter structs. These are produced by the external UI/config
// collaborator (parameter forms, DXF import) and consumed by the builder
// and pipeline. YAML tags allow scenario files to populate them directly.

// Dimensions is the plan and depth extent of the excavation.
type Dimensions struct {
	Length     float64 `yaml:"length" json:"length"`
	Width      float64 `yaml:"width" json:"width"`
	Depth      float64 `yaml:"depth" json:"depth"`
	SlopeAngle float64 `yaml:"slope_angle" json:"slope_angle"` // degrees, 0 = vertical cut
}

// CornerTreatment configures edge treatment at excavation corners.
type CornerTreatment struct {
	Radius     float64 `yaml:"radius" json:"radius"`
	FilletType string  `yaml:"fillet_type" json:"fillet_type"` // "round" or "chamfer"
}

// StageSpec is one depth-wise sub-excavation in the input configuration.
type StageSpec struct {
	Depth               float64 `yaml:"depth" json:"depth"` // thickness of this stage
	ConstructionMethod  string  `yaml:"construction_method" json:"construction_method"`
	SupportInstallation bool    `yaml:"support_installation" json:"support_installation"`
}

// ExcavationGeometry is the complete excavation volume specification.
type ExcavationGeometry struct {
	Dimensions  Dimensions      `yaml:"dimensions" json:"dimensions"`
	Corners     CornerTreatment `yaml:"corners" json:"corners"`
	Stages      []StageSpec     `yaml:"stages" json:"stages"`
	Origin      [3]float64      `yaml:"origin" json:"origin"`
	Orientation float64         `yaml:"orientation" json:"orientation"` // plan rotation, degrees
}

// DiaphragmWallSpec describes the perimeter diaphragm wall.
type DiaphragmWallSpec struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Thickness float64 `yaml:"thickness" json:"thickness"`
	Depth     float64 `yaml:"depth" json:"depth"` // embedment below surface
}

// AnchorSpec describes one anchor level.
type AnchorSpec struct {
	Level     int     `yaml:"level" json:"level"`
	Depth     float64 `yaml:"depth" json:"depth"` // head depth below surface
	Length    float64 `yaml:"length" json:"length"`
	Angle     float64 `yaml:"angle" json:"angle"` // inclination below horizontal, degrees
	Diameter  float64 `yaml:"diameter" json:"diameter"`
	Side      string  `yaml:"side" json:"side"`           // wall side: north/south/east/west
	Offset    float64 `yaml:"offset" json:"offset"`       // horizontal position along the wall
	Prestress float64 `yaml:"prestress" json:"prestress"` // kN
}

// StrutSpec describes one horizontal steel strut level.
type StrutSpec struct {
	Level    int     `yaml:"level" json:"level"`
	Depth    float64 `yaml:"depth" json:"depth"`
	Diameter float64 `yaml:"diameter" json:"diameter"`
	Spacing  float64 `yaml:"spacing" json:"spacing"` // center-to-center along the wall
}

// BeamSpec describes waler beams along the wall crest.
type BeamSpec struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Height  float64 `yaml:"height" json:"height"`
	Width   float64 `yaml:"width" json:"width"`
}

// SupportStructure bundles all support system specifications.
type SupportStructure struct {
	DiaphragmWalls DiaphragmWallSpec `yaml:"diaphragm_walls" json:"diaphragm_walls"`
	Anchors        []AnchorSpec      `yaml:"anchors" json:"anchors"`
	SteelStruts    []StrutSpec       `yaml:"steel_struts" json:"steel_struts"`
	Beams          BeamSpec          `yaml:"beams" json:"beams"`
}

// SoilLayer is one horizontal stratum in the geological model.
type SoilLayer struct {
	Name           string  `yaml:"name" json:"name"`
	Thickness      float64 `yaml:"thickness" json:"thickness"`
	ElasticModulus float64 `yaml:"elastic_modulus" json:"elastic_modulus"` // Pa
	PoissonRatio   float64 `yaml:"poisson_ratio" json:"poisson_ratio"`
	Density        float64 `yaml:"density" json:"density"` // kg/m3
}

// GeologicalCondition is the soil domain specification.
type GeologicalCondition struct {
	SoilLayers       []SoilLayer `yaml:"soil_layers" json:"soil_layers"`
	GroundwaterLevel float64     `yaml:"groundwater_level" json:"groundwater_level"` // depth below surface
	DomainMarginXY   float64     `yaml:"domain_margin_xy" json:"domain_margin_xy"`   // soil box margin around the pit
	DomainDepth      float64     `yaml:"domain_depth" json:"domain_depth"`
}

// TotalThickness sums the layer thicknesses.
func (g GeologicalCondition) TotalThickness() float64 {
	var t float64
	for _, l := range g.SoilLayers {
		t += l.Thickness
	}
	return t
}
