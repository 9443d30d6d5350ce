package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestKDTreeQueries(t *testing.T) {
	grid := MakeTestGrid(10, 10, 1)
	tree := ToKDTree(grid)
	test.That(t, tree.Size(), test.ShouldEqual, 100)

	nearest, ok := tree.Nearest(r3.Vector{X: 3.2, Y: 4.9, Z: 0.1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, nearest.Index, test.ShouldEqual, 5*10+3)
	test.That(t, nearest.Position, test.ShouldResemble, r3.Vector{X: 3, Y: 5})

	center := r3.Vector{X: 5, Y: 5}
	knn := tree.KNearestNeighbors(center, 5, true)
	test.That(t, len(knn), test.ShouldEqual, 5)
	test.That(t, knn[0].Index, test.ShouldEqual, 55)
	test.That(t, knn[0].Distance, test.ShouldEqual, 0.)
	for _, n := range knn[1:] {
		test.That(t, n.Distance, test.ShouldAlmostEqual, 1.)
	}

	withoutSelf := tree.KNearestNeighbors(center, 4, false)
	test.That(t, len(withoutSelf), test.ShouldEqual, 4)
	for _, n := range withoutSelf {
		test.That(t, n.Index, test.ShouldNotEqual, 55)
	}

	radius := tree.RadiusNeighbors(center, 1.5, true)
	test.That(t, len(radius), test.ShouldEqual, 9)
	for i := 1; i < len(radius); i++ {
		test.That(t, radius[i].Distance, test.ShouldBeGreaterThanOrEqualTo, radius[i-1].Distance)
	}

	test.That(t, tree.AnyWithin(center, 0.5), test.ShouldBeTrue)
	test.That(t, tree.AnyWithin(center, 0.5, 55), test.ShouldBeFalse)
	test.That(t, tree.AnyWithin(r3.Vector{X: 5.5, Y: 5.5}, 0.70), test.ShouldBeFalse)
}

func TestKDTreeFewerPointsThanK(t *testing.T) {
	tree := NewKDTree([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}})
	test.That(t, len(tree.KNearestNeighbors(r3.Vector{}, 10, true)), test.ShouldEqual, 2)

	empty := NewKDTree(nil)
	_, ok := empty.Nearest(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, empty.KNearestNeighbors(r3.Vector{}, 3, true), test.ShouldBeEmpty)
	test.That(t, empty.RadiusNeighbors(r3.Vector{}, 3, true), test.ShouldBeEmpty)
}
