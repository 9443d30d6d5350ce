package postprocess

import (
	"github.com/golang/geo/r3"

	"github.com/splatmesh/splatmesh/mesh"
)

// smallComponentFraction is the share of the largest component's triangles below which a
// component is discarded.
const smallComponentFraction = 0.01

// degenerateTolerance bounds the area of a degenerate triangle relative to its longest edge.
const degenerateTolerance = 1e-12

// CleanupStats counts what cleanup removed.
type CleanupStats struct {
	MergedVertices       int
	DegenerateTriangles  int
	DuplicateTriangles   int
	SmallComponents      int
	UnreferencedVertices int
}

// cleanup merges vertices at identical positions, drops degenerate and duplicated triangles,
// drops components much smaller than the largest one and finally drops unreferenced vertices.
// A merged vertex keeps the attributes of its first occurrence.
func cleanup(m *mesh.Mesh) (*mesh.Mesh, CleanupStats) {
	var stats CleanupStats

	first := make(map[r3.Vector]int, len(m.Vertices))
	canonical := make([]int, len(m.Vertices))
	for i, v := range m.Vertices {
		if j, ok := first[v]; ok {
			canonical[i] = j
			stats.MergedVertices++
			continue
		}
		first[v] = i
		canonical[i] = i
	}

	seen := make(map[[3]int]struct{}, len(m.Triangles))
	out := &mesh.Mesh{Vertices: m.Vertices, Colors: m.Colors, Normals: m.Normals}
	for _, tri := range m.Triangles {
		tri = [3]int{canonical[tri[0]], canonical[tri[1]], canonical[tri[2]]}
		if isDegenerate(m.Vertices, tri) {
			stats.DegenerateTriangles++
			continue
		}
		key := mesh.TriangleKey(tri)
		if _, dup := seen[key]; dup {
			stats.DuplicateTriangles++
			continue
		}
		seen[key] = struct{}{}
		out.Triangles = append(out.Triangles, tri)
	}

	if components := out.Components(); len(components) > 1 {
		minSize := smallComponentFraction * float64(len(components[0]))
		drop := make(map[int]bool)
		for _, c := range components[1:] {
			if float64(len(c)) < minSize {
				stats.SmallComponents++
				for _, t := range c {
					drop[t] = true
				}
			}
		}
		if len(drop) > 0 {
			out = out.SelectTriangles(func(i int, _ [3]int) bool { return !drop[i] })
		}
	}

	before := len(out.Vertices) - stats.MergedVertices
	out, _ = out.Compact()
	stats.UnreferencedVertices = before - len(out.Vertices)
	return out, stats
}

func isDegenerate(vertices []r3.Vector, tri [3]int) bool {
	if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
		return true
	}
	a, b, c := vertices[tri[0]], vertices[tri[1]], vertices[tri[2]]
	ab, ac, bc := b.Sub(a), c.Sub(a), c.Sub(b)
	longest := max(ab.Norm2(), ac.Norm2(), bc.Norm2())
	return ab.Cross(ac).Norm() <= degenerateTolerance*longest
}
