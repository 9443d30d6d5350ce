package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Neighbor is a point returned by a KDTree query.
type Neighbor struct {
	Index    int
	Position r3.Vector
	Distance float64
}

// KDTree answers nearest neighbor queries over a fixed set of points. Indices in results refer to
// the slice the tree was built from. Queries are safe for concurrent use.
type KDTree struct {
	tree *kdtree.Tree
	size int
}

// NewKDTree builds a tree over points. The input slice is not modified.
func NewKDTree(points []r3.Vector) *KDTree {
	kdPts := make(kdPoints, len(points))
	for i, p := range points {
		kdPts[i] = kdPoint{Vector: p, idx: i}
	}
	var tree *kdtree.Tree
	if len(kdPts) > 0 {
		tree = kdtree.New(kdPts, false)
	}
	return &KDTree{tree: tree, size: len(points)}
}

// ToKDTree builds a tree over the positions of a cloud.
func ToKDTree(cloud *PointCloud) *KDTree {
	return NewKDTree(cloud.Positions())
}

// Size returns the number of points in the tree.
func (kd *KDTree) Size() int {
	return kd.size
}

// Nearest returns the point closest to p. ok is false for an empty tree.
func (kd *KDTree) Nearest(p r3.Vector) (Neighbor, bool) {
	if kd.tree == nil {
		return Neighbor{}, false
	}
	c, distSq := kd.tree.Nearest(kdPoint{Vector: p})
	if c == nil {
		return Neighbor{}, false
	}
	found := c.(kdPoint)
	return Neighbor{Index: found.idx, Position: found.Vector, Distance: math.Sqrt(distSq)}, true
}

// KNearestNeighbors returns up to k points closest to p ordered by increasing distance. A point
// located exactly at p is included when includeSelf is true.
func (kd *KDTree) KNearestNeighbors(p r3.Vector, k int, includeSelf bool) []Neighbor {
	if kd.tree == nil || k <= 0 {
		return nil
	}
	want := k
	if !includeSelf {
		want++
	}
	keeper := kdtree.NewNKeeper(want)
	kd.tree.NearestSet(keeper, kdPoint{Vector: p})
	results := collectNeighbors(keeper.Heap, p, includeSelf)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// RadiusNeighbors returns every point within radius of p ordered by increasing distance.
func (kd *KDTree) RadiusNeighbors(p r3.Vector, radius float64, includeSelf bool) []Neighbor {
	if kd.tree == nil || radius < 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	kd.tree.NearestSet(keeper, kdPoint{Vector: p})
	return collectNeighbors(keeper.Heap, p, includeSelf)
}

// AnyWithin reports whether a point other than the excluded indices lies strictly within radius
// of p.
func (kd *KDTree) AnyWithin(p r3.Vector, radius float64, exclude ...int) bool {
	for _, n := range kd.RadiusNeighbors(p, radius, true) {
		if n.Distance >= radius {
			continue
		}
		excluded := false
		for _, e := range exclude {
			if n.Index == e {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

func collectNeighbors(heap kdtree.Heap, p r3.Vector, includeSelf bool) []Neighbor {
	results := make([]Neighbor, 0, len(heap))
	for _, cd := range heap {
		if cd.Comparable == nil {
			continue
		}
		found := cd.Comparable.(kdPoint)
		if !includeSelf && found.Vector == p {
			continue
		}
		results = append(results, Neighbor{Index: found.idx, Position: found.Vector, Distance: math.Sqrt(cd.Dist)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].Index < results[j].Index
		}
		return results[i].Distance < results[j].Distance
	})
	return results
}

// kdPoint is a position that remembers its index in the source slice.
type kdPoint struct {
	r3.Vector
	idx int
}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		return p.Z - q.Z
	}
}

func (p kdPoint) Dims() int { return 3 }

// Distance is the squared euclidean distance, as the kdtree package expects.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	return p.Sub(c.(kdPoint).Vector).Norm2()
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p kdPoints) Len() int                              { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int                { return kdPlane{kdPoints: p, Dim: d}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].Compare(p.kdPoints[j], p.Dim) < 0
}

func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}
