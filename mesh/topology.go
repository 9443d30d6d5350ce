package mesh

import (
	"sort"
)

// Edge is an undirected edge with A < B.
type Edge struct {
	A, B int
}

// NewEdge returns the undirected edge between a and b.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// TriangleKey returns the vertices of tri in ascending order, so triangles over the same vertices
// share a key whatever their winding.
func TriangleKey(tri [3]int) [3]int {
	if tri[0] > tri[1] {
		tri[0], tri[1] = tri[1], tri[0]
	}
	if tri[1] > tri[2] {
		tri[1], tri[2] = tri[2], tri[1]
	}
	if tri[0] > tri[1] {
		tri[0], tri[1] = tri[1], tri[0]
	}
	return tri
}

// DirectedEdge is a half edge from From to To.
type DirectedEdge struct {
	From, To int
}

// TriangleEdges returns the three directed edges of a triangle in winding order.
func TriangleEdges(tri [3]int) [3]DirectedEdge {
	return [3]DirectedEdge{{tri[0], tri[1]}, {tri[1], tri[2]}, {tri[2], tri[0]}}
}

// EdgeTriangles maps every undirected edge to the triangles using it.
func (m *Mesh) EdgeTriangles() map[Edge][]int {
	edges := make(map[Edge][]int, len(m.Triangles)*3/2)
	for i, tri := range m.Triangles {
		for _, e := range TriangleEdges(tri) {
			key := NewEdge(e.From, e.To)
			edges[key] = append(edges[key], i)
		}
	}
	return edges
}

// VertexTriangles returns, for every vertex, the triangles referencing it.
func (m *Mesh) VertexTriangles() [][]int {
	adj := make([][]int, len(m.Vertices))
	for i, tri := range m.Triangles {
		for _, v := range tri {
			adj[v] = append(adj[v], i)
		}
	}
	return adj
}

// BoundaryEdges returns the directed edges that belong to exactly one triangle, oriented as in
// that triangle, sorted for determinism.
func (m *Mesh) BoundaryEdges() []DirectedEdge {
	counts := make(map[Edge]int, len(m.Triangles)*3/2)
	for _, tri := range m.Triangles {
		for _, e := range TriangleEdges(tri) {
			counts[NewEdge(e.From, e.To)]++
		}
	}
	var boundary []DirectedEdge
	for _, tri := range m.Triangles {
		for _, e := range TriangleEdges(tri) {
			if counts[NewEdge(e.From, e.To)] == 1 {
				boundary = append(boundary, e)
			}
		}
	}
	sort.Slice(boundary, func(i, j int) bool {
		if boundary[i].From == boundary[j].From {
			return boundary[i].To < boundary[j].To
		}
		return boundary[i].From < boundary[j].From
	})
	return boundary
}

// BoundaryLoops chains boundary edges into closed loops of vertex indices. Each loop follows the
// winding of the triangles along it. Edges that cannot be closed into a loop are dropped.
func (m *Mesh) BoundaryLoops() [][]int {
	boundary := m.BoundaryEdges()
	next := make(map[int][]int, len(boundary))
	for _, e := range boundary {
		next[e.From] = append(next[e.From], e.To)
	}
	used := make(map[DirectedEdge]bool, len(boundary))

	var loops [][]int
	for _, start := range boundary {
		if used[start] {
			continue
		}
		loop := []int{start.From}
		used[start] = true
		cur := start.To
		closed := false
		for steps := 0; steps <= len(boundary); steps++ {
			if cur == start.From {
				closed = true
				break
			}
			loop = append(loop, cur)
			advanced := false
			for _, to := range next[cur] {
				e := DirectedEdge{cur, to}
				if !used[e] {
					used[e] = true
					cur = to
					advanced = true
					break
				}
			}
			if !advanced {
				break
			}
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// IsEdgeManifold reports whether no edge is shared by more than two triangles.
func (m *Mesh) IsEdgeManifold() bool {
	for _, tris := range m.EdgeTriangles() {
		if len(tris) > 2 {
			return false
		}
	}
	return true
}

// IsWatertight reports whether the mesh is a closed, consistently oriented surface: it has
// triangles and every edge is shared by exactly two triangles traversing it in opposite
// directions.
func (m *Mesh) IsWatertight() bool {
	if len(m.Triangles) == 0 {
		return false
	}
	directed := make(map[DirectedEdge]int, len(m.Triangles)*3)
	for _, tri := range m.Triangles {
		for _, e := range TriangleEdges(tri) {
			directed[e]++
		}
	}
	for e, count := range directed {
		if count != 1 || directed[DirectedEdge{e.To, e.From}] != 1 {
			return false
		}
	}
	return true
}

// Components groups triangles into connected components, where triangles sharing a vertex are
// connected. Components are returned largest first.
func (m *Mesh) Components() [][]int {
	parent := make([]int, len(m.Vertices))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, tri := range m.Triangles {
		union(tri[0], tri[1])
		union(tri[1], tri[2])
	}

	byRoot := make(map[int][]int)
	var roots []int
	for i, tri := range m.Triangles {
		root := find(tri[0])
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}
	components := make([][]int, 0, len(roots))
	for _, root := range roots {
		components = append(components, byRoot[root])
	}
	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})
	return components
}

// Stats summarizes a mesh.
type Stats struct {
	Vertices      int
	Triangles     int
	BoundaryEdges int
	BoundaryLoops int
	Components    int
	Watertight    bool
	HasColors     bool
	Area          float64
}

// ComputeStats returns a summary of the mesh.
func (m *Mesh) ComputeStats() Stats {
	return Stats{
		Vertices:      len(m.Vertices),
		Triangles:     len(m.Triangles),
		BoundaryEdges: len(m.BoundaryEdges()),
		BoundaryLoops: len(m.BoundaryLoops()),
		Components:    len(m.Components()),
		Watertight:    m.IsWatertight(),
		HasColors:     m.HasColors(),
		Area:          m.Area(),
	}
}
