// Package mesh defines the indexed triangle mesh produced by reconstruction, together with the
// topology queries post-processing and reporting rely on.
package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/spatialmath"
)

// Mesh is an indexed triangle mesh. Colors and Normals are per vertex and nil when absent.
// Triangles wind counter-clockwise when seen from the side their normal points to.
type Mesh struct {
	Vertices  []r3.Vector
	Colors    []colorful.Color
	Normals   []r3.Vector
	Triangles [][3]int
}

// New returns a mesh over the given vertices and triangles without attributes.
func New(vertices []r3.Vector, triangles [][3]int) *Mesh {
	return &Mesh{Vertices: vertices, Triangles: triangles}
}

// Validate checks that every triangle references an existing vertex and that the attribute
// slices match the vertex count.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if m.Colors != nil && len(m.Colors) != n {
		return errors.Errorf("mesh has %d vertices but %d colors", n, len(m.Colors))
	}
	if m.Normals != nil && len(m.Normals) != n {
		return errors.Errorf("mesh has %d vertices but %d normals", n, len(m.Normals))
	}
	for i, tri := range m.Triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= n {
				return errors.Errorf("triangle %d references vertex %d of %d", i, idx, n)
			}
		}
	}
	return nil
}

// HasColors reports whether the mesh carries per-vertex colors.
func (m *Mesh) HasColors() bool {
	return m.Colors != nil
}

// HasNormals reports whether the mesh carries per-vertex normals.
func (m *Mesh) HasNormals() bool {
	return m.Normals != nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:  append([]r3.Vector(nil), m.Vertices...),
		Triangles: append([][3]int(nil), m.Triangles...),
	}
	if m.Colors != nil {
		out.Colors = append([]colorful.Color(nil), m.Colors...)
	}
	if m.Normals != nil {
		out.Normals = append([]r3.Vector(nil), m.Normals...)
	}
	return out
}

// Triangle returns the geometry of the i-th triangle.
func (m *Mesh) Triangle(i int) *spatialmath.Triangle {
	tri := m.Triangles[i]
	return spatialmath.NewTriangle(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
}

// Bounds returns the bounding box of all vertices, referenced or not.
func (m *Mesh) Bounds() spatialmath.AABB {
	return spatialmath.NewAABB(m.Vertices)
}

// Area returns the summed triangle area.
func (m *Mesh) Area() float64 {
	var area float64
	for i := range m.Triangles {
		area += m.Triangle(i).Area()
	}
	return area
}

// Translate returns a copy of the mesh with every vertex moved by offset.
func (m *Mesh) Translate(offset r3.Vector) *Mesh {
	out := m.Clone()
	for i := range out.Vertices {
		out.Vertices[i] = out.Vertices[i].Add(offset)
	}
	return out
}

// SelectTriangles returns a mesh keeping only the triangles for which keep is true. Vertices are
// left untouched; see Compact.
func (m *Mesh) SelectTriangles(keep func(i int, tri [3]int) bool) *Mesh {
	out := &Mesh{Vertices: m.Vertices, Colors: m.Colors, Normals: m.Normals}
	out.Triangles = make([][3]int, 0, len(m.Triangles))
	for i, tri := range m.Triangles {
		if keep(i, tri) {
			out.Triangles = append(out.Triangles, tri)
		}
	}
	return out
}

// Compact drops vertices no triangle references. Kept vertices retain their relative order.
// remap[old] is the new index of a kept vertex or -1.
func (m *Mesh) Compact() (out *Mesh, remap []int) {
	used := make([]bool, len(m.Vertices))
	for _, tri := range m.Triangles {
		used[tri[0]], used[tri[1]], used[tri[2]] = true, true, true
	}
	return m.keepVertices(used)
}

func (m *Mesh) keepVertices(keep []bool) (*Mesh, []int) {
	remap := make([]int, len(m.Vertices))
	out := &Mesh{}
	if m.Colors != nil {
		out.Colors = make([]colorful.Color, 0, len(m.Vertices))
	}
	if m.Normals != nil {
		out.Normals = make([]r3.Vector, 0, len(m.Vertices))
	}
	for i, v := range m.Vertices {
		if !keep[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(out.Vertices)
		out.Vertices = append(out.Vertices, v)
		if m.Colors != nil {
			out.Colors = append(out.Colors, m.Colors[i])
		}
		if m.Normals != nil {
			out.Normals = append(out.Normals, m.Normals[i])
		}
	}
	out.Triangles = make([][3]int, 0, len(m.Triangles))
	for _, tri := range m.Triangles {
		if remap[tri[0]] < 0 || remap[tri[1]] < 0 || remap[tri[2]] < 0 {
			continue
		}
		out.Triangles = append(out.Triangles, [3]int{remap[tri[0]], remap[tri[1]], remap[tri[2]]})
	}
	return out, remap
}

// ComputeVertexNormals returns a copy whose vertex normals are the area weighted average of the
// adjacent face normals.
func (m *Mesh) ComputeVertexNormals() *Mesh {
	out := m.Clone()
	out.Normals = make([]r3.Vector, len(m.Vertices))
	for _, tri := range m.Triangles {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		// cross product length is twice the area, which is the weighting we want
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range tri {
			out.Normals[idx] = out.Normals[idx].Add(n)
		}
	}
	for i, n := range out.Normals {
		if norm := n.Norm(); norm > 0 {
			out.Normals[i] = n.Mul(1 / norm)
		}
	}
	return out
}
