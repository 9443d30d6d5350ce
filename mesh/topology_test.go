package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestWatertight(t *testing.T) {
	cube := MakeTestCube(r3.Vector{})
	test.That(t, cube.IsWatertight(), test.ShouldBeTrue)
	test.That(t, cube.IsEdgeManifold(), test.ShouldBeTrue)
	test.That(t, cube.BoundaryEdges(), test.ShouldBeEmpty)
	test.That(t, cube.BoundaryLoops(), test.ShouldBeEmpty)

	open := cube.SelectTriangles(func(i int, tri [3]int) bool { return i != 0 })
	test.That(t, open.IsWatertight(), test.ShouldBeFalse)
	test.That(t, len(open.BoundaryEdges()), test.ShouldEqual, 3)
	loops := open.BoundaryLoops()
	test.That(t, len(loops), test.ShouldEqual, 1)
	test.That(t, len(loops[0]), test.ShouldEqual, 3)

	flipped := cube.Clone()
	flipped.Triangles[0] = [3]int{0, 1, 2}
	test.That(t, flipped.IsWatertight(), test.ShouldBeFalse)

	test.That(t, (&Mesh{}).IsWatertight(), test.ShouldBeFalse)
}

func TestGridBoundary(t *testing.T) {
	grid := MakeTestGrid(4, 3, 1)
	test.That(t, len(grid.Triangles), test.ShouldEqual, 12)
	test.That(t, len(grid.BoundaryEdges()), test.ShouldEqual, 10)
	loops := grid.BoundaryLoops()
	test.That(t, len(loops), test.ShouldEqual, 1)
	test.That(t, len(loops[0]), test.ShouldEqual, 10)

	stats := grid.ComputeStats()
	test.That(t, stats.Vertices, test.ShouldEqual, 12)
	test.That(t, stats.Triangles, test.ShouldEqual, 12)
	test.That(t, stats.BoundaryLoops, test.ShouldEqual, 1)
	test.That(t, stats.Components, test.ShouldEqual, 1)
	test.That(t, stats.Watertight, test.ShouldBeFalse)
	test.That(t, stats.HasColors, test.ShouldBeTrue)
	test.That(t, stats.Area, test.ShouldAlmostEqual, 6.)
}

func TestComponents(t *testing.T) {
	a := MakeTestCube(r3.Vector{})
	b := MakeTestGrid(2, 2, 1)
	merged := &Mesh{Vertices: append(append([]r3.Vector{}, b.Vertices...), a.Vertices...)}
	merged.Triangles = append(merged.Triangles, b.Triangles...)
	for _, tri := range a.Triangles {
		merged.Triangles = append(merged.Triangles, [3]int{tri[0] + 4, tri[1] + 4, tri[2] + 4})
	}
	components := merged.Components()
	test.That(t, len(components), test.ShouldEqual, 2)
	test.That(t, len(components[0]), test.ShouldEqual, 12)
	test.That(t, len(components[1]), test.ShouldEqual, 2)

	edges := merged.EdgeTriangles()
	test.That(t, len(edges[NewEdge(1, 0)]), test.ShouldEqual, 1)
	test.That(t, len(edges[NewEdge(4, 6)]), test.ShouldEqual, 2)
}

func TestTriangleKey(t *testing.T) {
	want := [3]int{1, 4, 9}
	for _, tri := range [][3]int{{1, 4, 9}, {4, 9, 1}, {9, 1, 4}, {9, 4, 1}, {4, 1, 9}, {1, 9, 4}} {
		test.That(t, TriangleKey(tri), test.ShouldResemble, want)
	}
	test.That(t, TriangleKey([3]int{2, 2, 0}), test.ShouldResemble, [3]int{0, 2, 2})
	test.That(t, NewEdge(7, 3), test.ShouldResemble, Edge{A: 3, B: 7})
}
