// Package topo detects and repairs topological defects in meshed solids:
// boundary holes, internal voids, mesh gaps, and overlapping geometry.
// Detection passes are independent and read-only; repairs run
// sequentially over an exclusively owned mesh buffer.
package topo

import (
	"math"
	"sort"

	"github.com/geoforge/pitprep/pkg/kernel"
)

// IndexedMesh is a welded, index-addressed view of a triangle soup.
// Kernel tessellation emits three vertices per triangle; welding merges
// coincident vertices so edge adjacency becomes meaningful.
type IndexedMesh struct {
	Positions [][3]float64
	Triangles [][3]int
	Label     string
}

// edgeKey is an undirected edge between two welded vertex indices.
type edgeKey struct {
	lo, hi int
}

func makeEdgeKey(a, b int) edgeKey {
	if a < b {
		return edgeKey{a, b}
	}
	return edgeKey{b, a}
}

// BuildIndexed welds a triangle soup into an indexed mesh. Vertices
// closer than weldTolerance collapse onto one index; degenerate
// triangles (repeated indices after welding) are dropped.
func BuildIndexed(m *kernel.Mesh, weldTolerance float64) *IndexedMesh {
	if weldTolerance <= 0 {
		weldTolerance = 1e-9
	}
	inv := 1.0 / weldTolerance

	type cell struct{ x, y, z int64 }
	lookup := make(map[cell]int)
	im := &IndexedMesh{Label: m.Label}

	indexOf := func(p [3]float64) int {
		c := cell{
			int64(math.Round(p[0] * inv)),
			int64(math.Round(p[1] * inv)),
			int64(math.Round(p[2] * inv)),
		}
		if idx, ok := lookup[c]; ok {
			return idx
		}
		idx := len(im.Positions)
		im.Positions = append(im.Positions, p)
		lookup[c] = idx
		return idx
	}

	for t := 0; t < m.TriangleCount(); t++ {
		i0, i1, i2 := m.Triangle(t)
		a := indexOf(m.Vertex(int(i0)))
		b := indexOf(m.Vertex(int(i1)))
		c := indexOf(m.Vertex(int(i2)))
		if a == b || b == c || a == c {
			continue // collapsed by welding
		}
		im.Triangles = append(im.Triangles, [3]int{a, b, c})
	}
	return im
}

// EdgeUse counts triangle incidences per undirected edge.
func (im *IndexedMesh) EdgeUse() map[edgeKey]int {
	use := make(map[edgeKey]int, len(im.Triangles)*3/2)
	for _, tri := range im.Triangles {
		use[makeEdgeKey(tri[0], tri[1])]++
		use[makeEdgeKey(tri[1], tri[2])]++
		use[makeEdgeKey(tri[2], tri[0])]++
	}
	return use
}

// BoundaryLoops extracts closed vertex loops along edges used by exactly
// one triangle. Loop discovery is deterministic: directed boundary edges
// are collected in triangle order and loops start from the lowest
// unvisited vertex.
func (im *IndexedMesh) BoundaryLoops() [][]int {
	use := im.EdgeUse()

	// Directed boundary edges keep the winding of their owning triangle,
	// so following them walks each loop consistently.
	next := make(map[int]int)
	var starts []int
	for _, tri := range im.Triangles {
		edges := [3][2]int{{tri[0], tri[1]}, {tri[1], tri[2]}, {tri[2], tri[0]}}
		for _, e := range edges {
			if use[makeEdgeKey(e[0], e[1])] == 1 {
				next[e[0]] = e[1]
				starts = append(starts, e[0])
			}
		}
	}
	sort.Ints(starts)

	visited := make(map[int]bool)
	var loops [][]int
	for _, start := range starts {
		if visited[start] {
			continue
		}
		var loop []int
		v := start
		for {
			if visited[v] {
				break
			}
			visited[v] = true
			loop = append(loop, v)
			n, ok := next[v]
			if !ok {
				break
			}
			v = n
			if v == start {
				loops = append(loops, loop)
				break
			}
		}
	}
	return loops
}

// MeanEdgeLength averages all triangle edge lengths.
func (im *IndexedMesh) MeanEdgeLength() float64 {
	if len(im.Triangles) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, tri := range im.Triangles {
		sum += dist(im.Positions[tri[0]], im.Positions[tri[1]])
		sum += dist(im.Positions[tri[1]], im.Positions[tri[2]])
		sum += dist(im.Positions[tri[2]], im.Positions[tri[0]])
		n += 3
	}
	return sum / float64(n)
}

// BoundingBox of all welded positions.
func (im *IndexedMesh) BoundingBox() (min, max [3]float64) {
	if len(im.Positions) == 0 {
		return min, max
	}
	min = im.Positions[0]
	max = min
	for _, p := range im.Positions[1:] {
		for a := 0; a < 3; a++ {
			if p[a] < min[a] {
				min[a] = p[a]
			}
			if p[a] > max[a] {
				max[a] = p[a]
			}
		}
	}
	return min, max
}

// Export serializes the indexed mesh back into the flat kernel layout,
// with per-vertex normals averaged from incident face normals.
func (im *IndexedMesh) Export() *kernel.Mesh {
	out := &kernel.Mesh{
		Vertices: make([]float32, 0, len(im.Positions)*3),
		Indices:  make([]uint32, 0, len(im.Triangles)*3),
		Label:    im.Label,
	}
	for _, p := range im.Positions {
		out.Vertices = append(out.Vertices, float32(p[0]), float32(p[1]), float32(p[2]))
	}
	for _, tri := range im.Triangles {
		out.Indices = append(out.Indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}
	out.Normals = averagedNormals(out.Vertices, out.Indices)
	return out
}

// averagedNormals generates per-vertex normals by accumulating the face
// normals of all triangles incident on each vertex, then normalizing.
func averagedNormals(vertices []float32, indices []uint32) []float32 {
	numVerts := len(vertices) / 3
	normals := make([]float32, numVerts*3)

	numTris := len(indices) / 3
	for t := 0; t < numTris; t++ {
		i0 := indices[t*3+0]
		i1 := indices[t*3+1]
		i2 := indices[t*3+2]

		ax, ay, az := float64(vertices[i0*3]), float64(vertices[i0*3+1]), float64(vertices[i0*3+2])
		bx, by, bz := float64(vertices[i1*3]), float64(vertices[i1*3+1]), float64(vertices[i1*3+2])
		cx, cy, cz := float64(vertices[i2*3]), float64(vertices[i2*3+1]), float64(vertices[i2*3+2])

		e1x, e1y, e1z := bx-ax, by-ay, bz-az
		e2x, e2y, e2z := cx-ax, cy-ay, cz-az

		nx := float32(e1y*e2z - e1z*e2y)
		ny := float32(e1z*e2x - e1x*e2z)
		nz := float32(e1x*e2y - e1y*e2x)

		for _, idx := range []uint32{i0, i1, i2} {
			normals[idx*3+0] += nx
			normals[idx*3+1] += ny
			normals[idx*3+2] += nz
		}
	}

	for i := 0; i < numVerts; i++ {
		nx := float64(normals[i*3+0])
		ny := float64(normals[i*3+1])
		nz := float64(normals[i*3+2])
		length := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if length > 1e-12 {
			normals[i*3+0] = float32(nx / length)
			normals[i*3+1] = float32(ny / length)
			normals[i*3+2] = float32(nz / length)
		}
	}
	return normals
}

func dist(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
