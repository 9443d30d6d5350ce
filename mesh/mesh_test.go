package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"
)

func TestValidate(t *testing.T) {
	m := MakeTestGrid(3, 3, 1)
	test.That(t, m.Validate(), test.ShouldBeNil)

	bad := m.Clone()
	bad.Triangles = append(bad.Triangles, [3]int{0, 1, 9})
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = m.Clone()
	bad.Colors = bad.Colors[:2]
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = m.Clone()
	bad.Normals = []r3.Vector{{}}
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
}

func TestCloneIsDeep(t *testing.T) {
	m := MakeTestGrid(2, 2, 1)
	c := m.Clone()
	c.Vertices[0] = r3.Vector{X: 9}
	c.Colors[0] = colorful.Color{R: 1}
	c.Triangles[0] = [3]int{3, 2, 1}
	test.That(t, m.Vertices[0], test.ShouldResemble, r3.Vector{})
	test.That(t, m.Colors[0], test.ShouldNotResemble, colorful.Color{R: 1})
	test.That(t, m.Triangles[0], test.ShouldResemble, [3]int{0, 1, 3})
}

func TestCompactKeepsAttributesAligned(t *testing.T) {
	m := &Mesh{
		Vertices:  []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 5, Y: 5, Z: 5}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		Colors:    []colorful.Color{{R: 1}, {G: 1}, {B: 1}, {R: 1, G: 1}},
		Triangles: [][3]int{{0, 2, 3}},
	}
	out, remap := m.Compact()
	test.That(t, remap, test.ShouldResemble, []int{0, -1, 1, 2})
	test.That(t, out.Vertices, test.ShouldResemble, []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}})
	test.That(t, out.Colors, test.ShouldResemble, []colorful.Color{{R: 1}, {B: 1}, {R: 1, G: 1}})
	test.That(t, out.Triangles, test.ShouldResemble, [][3]int{{0, 1, 2}})
	test.That(t, out.Normals, test.ShouldBeNil)
}

func TestTranslateAndBounds(t *testing.T) {
	cube := MakeTestCube(r3.Vector{X: 2, Y: -3, Z: 1})
	bounds := cube.Bounds()
	test.That(t, bounds.Min, test.ShouldResemble, r3.Vector{X: 2, Y: -3, Z: 1})
	moved := cube.Translate(bounds.Min.Mul(-1))
	test.That(t, moved.Bounds().Min, test.ShouldResemble, r3.Vector{})
	test.That(t, cube.Bounds().Min, test.ShouldResemble, r3.Vector{X: 2, Y: -3, Z: 1})
	test.That(t, cube.Area(), test.ShouldAlmostEqual, 6.)
}

func TestComputeVertexNormals(t *testing.T) {
	grid := MakeTestGrid(3, 3, 1).ComputeVertexNormals()
	for _, n := range grid.Normals {
		test.That(t, n.Z, test.ShouldAlmostEqual, 1.)
	}
	cube := MakeTestCube(r3.Vector{X: -0.5, Y: -0.5, Z: -0.5}).ComputeVertexNormals()
	for i, n := range cube.Normals {
		test.That(t, n.Dot(cube.Vertices[i]), test.ShouldBeGreaterThan, 0)
	}
}
