package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// MakeTestGrid returns a flat, open mesh over an nx by ny vertex grid in the z = 0 plane with
// 2*(nx-1)*(ny-1) triangles facing +Z and a color gradient along x.
func MakeTestGrid(nx, ny int, spacing float64) *Mesh {
	m := &Mesh{}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.Vertices = append(m.Vertices, r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing})
			m.Colors = append(m.Colors, colorful.Color{R: float64(i) / float64(max(nx-1, 1)), G: 0.5, B: 0.5})
		}
	}
	at := func(i, j int) int { return j*nx + i }
	for j := 0; j+1 < ny; j++ {
		for i := 0; i+1 < nx; i++ {
			m.Triangles = append(m.Triangles,
				[3]int{at(i, j), at(i+1, j), at(i+1, j+1)},
				[3]int{at(i, j), at(i+1, j+1), at(i, j+1)},
			)
		}
	}
	return m
}

// MakeTestCube returns a closed, outward facing unit cube with 8 vertices and 12 triangles whose
// minimum corner is min.
func MakeTestCube(min r3.Vector) *Mesh {
	m := &Mesh{}
	for _, c := range []r3.Vector{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	} {
		m.Vertices = append(m.Vertices, min.Add(c))
	}
	m.Triangles = [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{1, 2, 6}, {1, 6, 5}, // right
		{2, 3, 7}, {2, 7, 6}, // back
		{3, 0, 4}, {3, 4, 7}, // left
	}
	return m
}
