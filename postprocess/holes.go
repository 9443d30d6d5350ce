package postprocess

import (
	"math"

	"github.com/splatmesh/splatmesh/mesh"
)

// maxHoleVertices bounds the loops the cubic triangulation is attempted on.
const maxHoleVertices = 512

// HoleStats counts the boundary loops seen by hole filling.
type HoleStats struct {
	Filled         int
	TooLarge       int
	NonSimple      int
	AddedTriangles int
}

// fillHoles closes every simple boundary loop whose perimeter is at most maxPerimeter with the
// triangulation of least total area over the loop's own vertices. New triangles wind against the
// loop so they continue the orientation of the surrounding surface.
func fillHoles(m *mesh.Mesh, maxPerimeter float64) (*mesh.Mesh, HoleStats) {
	var stats HoleStats
	out := m.Clone()
	for _, loop := range m.BoundaryLoops() {
		if !simpleLoop(loop) {
			stats.NonSimple++
			continue
		}
		if len(loop) > maxHoleVertices || loopPerimeter(m, loop) > maxPerimeter {
			stats.TooLarge++
			continue
		}
		tris := minAreaTriangulation(m, loop)
		out.Triangles = append(out.Triangles, tris...)
		stats.Filled++
		stats.AddedTriangles += len(tris)
	}
	return out, stats
}

func simpleLoop(loop []int) bool {
	seen := make(map[int]struct{}, len(loop))
	for _, v := range loop {
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

func loopPerimeter(m *mesh.Mesh, loop []int) float64 {
	var perimeter float64
	for i, v := range loop {
		perimeter += m.Vertices[v].Distance(m.Vertices[loop[(i+1)%len(loop)]])
	}
	return perimeter
}

// minAreaTriangulation triangulates the polygon by dynamic programming over its sub-chains,
// as in Liepa's hole filling with an area-only weight.
func minAreaTriangulation(m *mesh.Mesh, loop []int) [][3]int {
	n := len(loop)
	area := func(i, k, j int) float64 {
		a, b, c := m.Vertices[loop[i]], m.Vertices[loop[k]], m.Vertices[loop[j]]
		return b.Sub(a).Cross(c.Sub(a)).Norm() / 2
	}
	cost := make([][]float64, n)
	split := make([][]int, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		split[i] = make([]int, n)
	}
	for span := 2; span < n; span++ {
		for i := 0; i+span < n; i++ {
			j := i + span
			cost[i][j] = math.Inf(1)
			for k := i + 1; k < j; k++ {
				if c := cost[i][k] + cost[k][j] + area(i, k, j); c < cost[i][j] {
					cost[i][j] = c
					split[i][j] = k
				}
			}
		}
	}

	tris := make([][3]int, 0, n-2)
	var emit func(i, j int)
	emit = func(i, j int) {
		if j-i < 2 {
			return
		}
		k := split[i][j]
		tris = append(tris, [3]int{loop[i], loop[j], loop[k]})
		emit(i, k)
		emit(k, j)
	}
	emit(0, n-1)
	return tris
}
