package reconstruct

import (
	"github.com/splatmesh/splatmesh/mesh"
)

// triangleSet accumulates triangles while keeping the result edge manifold: an undirected edge
// joins at most two triangles and, when oriented is set, a directed edge is used only once so
// neighbors wind consistently.
type triangleSet struct {
	oriented  bool
	triangles [][3]int
	edges     map[mesh.Edge]int
	directed  map[mesh.DirectedEdge]struct{}
	faces     map[[3]int]struct{}
	// per vertex: incident triangles and incident edges with a single triangle
	incident []int
	boundary []int
}

func newTriangleSet(numVertices int, oriented bool) *triangleSet {
	return &triangleSet{
		oriented: oriented,
		edges:    map[mesh.Edge]int{},
		directed: map[mesh.DirectedEdge]struct{}{},
		faces:    map[[3]int]struct{}{},
		incident: make([]int, numVertices),
		boundary: make([]int, numVertices),
	}
}

// add appends tri when doing so keeps the set manifold and reports whether it did.
func (s *triangleSet) add(tri [3]int) bool {
	if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
		return false
	}
	key := mesh.TriangleKey(tri)
	if _, dup := s.faces[key]; dup {
		return false
	}
	directed := mesh.TriangleEdges(tri)
	for _, de := range directed {
		if s.edges[mesh.NewEdge(de.From, de.To)] >= 2 {
			return false
		}
		if _, used := s.directed[de]; used && s.oriented {
			return false
		}
	}
	for _, de := range directed {
		e := mesh.NewEdge(de.From, de.To)
		s.edges[e]++
		switch s.edges[e] {
		case 1:
			s.boundary[de.From]++
			s.boundary[de.To]++
		case 2:
			s.boundary[de.From]--
			s.boundary[de.To]--
		}
		s.directed[de] = struct{}{}
	}
	for _, v := range tri {
		s.incident[v]++
	}
	s.faces[key] = struct{}{}
	s.triangles = append(s.triangles, tri)
	return true
}

// open reports whether vertex v is unused or lies on the boundary of the set.
func (s *triangleSet) open(v int) bool {
	return s.incident[v] == 0 || s.boundary[v] > 0
}
