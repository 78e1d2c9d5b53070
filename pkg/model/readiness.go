package model

// CriticalRegion marks a location that needs finer mesh sizing downstream.
type CriticalRegion struct {
	Center   [3]float64 `json:"center"`
	Radius   float64    `json:"radius"`
	Reason   string     `json:"reason"`
	MeshSize float64    `json:"mesh_size"` // recommended local element size
}

// MeshReadiness is the terminal artifact handed to the external mesher:
// whether the model is fit for mesh generation and with what sizing.
type MeshReadiness struct {
	Ready                 bool             `json:"ready"`
	EstimatedElementCount int              `json:"estimated_element_count"`
	RecommendedMeshSize   float64          `json:"recommended_mesh_size"`
	CriticalRegions       []CriticalRegion `json:"critical_regions"`
	ContinuityScore       float64          `json:"continuity_score"`
	UnresolvedCritical    int              `json:"unresolved_critical"`
	Notes                 []string         `json:"notes,omitempty"`
}
