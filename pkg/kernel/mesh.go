package kernel

import "math"

// Mesh is a triangle mesh handed to the repair engines and the downstream
// mesher. All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Label    string    `json:"label"`    // which solid this mesh came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns the position of vertex i.
func (m *Mesh) Vertex(i int) [3]float64 {
	return [3]float64{
		float64(m.Vertices[i*3]),
		float64(m.Vertices[i*3+1]),
		float64(m.Vertices[i*3+2]),
	}
}

// SetVertex overwrites the position of vertex i.
func (m *Mesh) SetVertex(i int, p [3]float64) {
	m.Vertices[i*3] = float32(p[0])
	m.Vertices[i*3+1] = float32(p[1])
	m.Vertices[i*3+2] = float32(p[2])
}

// Triangle returns the three vertex indices of triangle t.
func (m *Mesh) Triangle(t int) (uint32, uint32, uint32) {
	return m.Indices[t*3], m.Indices[t*3+1], m.Indices[t*3+2]
}

// BoundingGeometry returns the axis-aligned bounding box of the mesh.
// Returns zero boxes for empty meshes.
func (m *Mesh) BoundingGeometry() (min, max [3]float64) {
	if m.IsEmpty() {
		return min, max
	}
	min = m.Vertex(0)
	max = min
	for i := 1; i < m.VertexCount(); i++ {
		v := m.Vertex(i)
		for a := 0; a < 3; a++ {
			if v[a] < min[a] {
				min[a] = v[a]
			}
			if v[a] > max[a] {
				max[a] = v[a]
			}
		}
	}
	return min, max
}

// SignedVolume computes the enclosed volume via the divergence theorem
// (sum of signed tetrahedra against the origin). Only meaningful for
// closed, consistently wound meshes; open meshes yield an approximation.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for t := 0; t < m.TriangleCount(); t++ {
		i0, i1, i2 := m.Triangle(t)
		a := m.Vertex(int(i0))
		b := m.Vertex(int(i1))
		c := m.Vertex(int(i2))
		vol += a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	return vol / 6.0
}

// SurfaceArea sums the areas of all triangles.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for t := 0; t < m.TriangleCount(); t++ {
		i0, i1, i2 := m.Triangle(t)
		area += TriangleArea(m.Vertex(int(i0)), m.Vertex(int(i1)), m.Vertex(int(i2)))
	}
	return area
}

// TriangleArea returns the area of the triangle (a, b, c).
func TriangleArea(a, b, c [3]float64) float64 {
	e1 := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	cx := e1[1]*e2[2] - e1[2]*e2[1]
	cy := e1[2]*e2[0] - e1[0]*e2[2]
	cz := e1[0]*e2[1] - e1[1]*e2[0]
	return 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
}

// FaceNormal returns the unit normal of triangle t, or the zero vector
// for degenerate triangles.
func (m *Mesh) FaceNormal(t int) [3]float64 {
	i0, i1, i2 := m.Triangle(t)
	a := m.Vertex(int(i0))
	b := m.Vertex(int(i1))
	c := m.Vertex(int(i2))
	e1 := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float64{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length < 1e-12 {
		return [3]float64{}
	}
	return [3]float64{n[0] / length, n[1] / length, n[2] / length}
}

// Clone returns a deep copy of the mesh. Repair engines operate on a
// clone so the caller's mesh survives a failed repair run intact.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices: make([]float32, len(m.Vertices)),
		Normals:  make([]float32, len(m.Normals)),
		Indices:  make([]uint32, len(m.Indices)),
		Label:    m.Label,
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Normals, m.Normals)
	copy(c.Indices, m.Indices)
	return c
}
