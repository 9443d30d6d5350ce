package pointcloud

import (
	"context"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"github.com/splatmesh/splatmesh/utils"
)

// DefaultNormalNeighbors is the neighborhood size used to fit tangent planes.
const DefaultNormalNeighbors = 30

// orientationNeighbors is the neighborhood size of the graph normals are propagated over.
const orientationNeighbors = 10

// EstimateNormals fits a plane to the k nearest neighbors of every point and returns the plane
// normals. The normals are unit length but their sign is arbitrary; see OrientNormals.
func EstimateNormals(ctx context.Context, cloud *PointCloud, tree *KDTree, k int) ([]r3.Vector, error) {
	if k < 3 {
		k = 3
	}
	normals := make([]r3.Vector, cloud.Size())
	err := utils.ParallelForEach(ctx, cloud.Size(), func(i int) {
		neighbors := tree.KNearestNeighbors(cloud.Position(i), k, true)
		normals[i] = fitPlaneNormal(neighbors)
	})
	if err != nil {
		return nil, err
	}
	return normals, nil
}

// fitPlaneNormal returns the eigenvector of the smallest eigenvalue of the neighborhood's
// covariance. Degenerate neighborhoods get +Z.
func fitPlaneNormal(neighbors []Neighbor) r3.Vector {
	up := r3.Vector{Z: 1}
	if len(neighbors) < 3 {
		return up
	}
	var mean r3.Vector
	for _, n := range neighbors {
		mean = mean.Add(n.Position)
	}
	mean = mean.Mul(1 / float64(len(neighbors)))

	var cov [6]float64 // xx xy xz yy yz zz
	for _, n := range neighbors {
		d := n.Position.Sub(mean)
		cov[0] += d.X * d.X
		cov[1] += d.X * d.Y
		cov[2] += d.X * d.Z
		cov[3] += d.Y * d.Y
		cov[4] += d.Y * d.Z
		cov[5] += d.Z * d.Z
	}
	sym := mat.NewSymDense(3, []float64{
		cov[0], cov[1], cov[2],
		cov[1], cov[3], cov[4],
		cov[2], cov[4], cov[5],
	})
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return up
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// eigenvalues are in ascending order, the first column is the plane normal
	normal := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	if norm := normal.Norm(); norm > 0 && !math.IsNaN(norm) {
		return normal.Mul(1 / norm)
	}
	return up
}

// OrientNormals flips normals so neighboring normals agree. Orientation is propagated along a
// minimum spanning tree of the k-nearest-neighbor graph weighted by 1 - |ni . nj|, starting in
// every connected component from its highest point, whose normal is made to point towards +Z.
// The input slice is not modified.
func OrientNormals(cloud *PointCloud, tree *KDTree, normals []r3.Vector) ([]r3.Vector, error) {
	n := cloud.Size()
	if len(normals) != n {
		return nil, errors.Errorf("expected %d normals but got %d", n, len(normals))
	}
	oriented := make([]r3.Vector, n)
	copy(oriented, normals)
	if n == 0 {
		return oriented, nil
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for _, nb := range tree.KNearestNeighbors(cloud.Position(i), orientationNeighbors, true) {
			if nb.Index == i {
				continue
			}
			w := 1 - math.Abs(normals[i].Dot(normals[nb.Index]))
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(nb.Index), w))
		}
	}
	mst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Prim(mst, g)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cloud.Position(order[a]).Z > cloud.Position(order[b]).Z
	})

	visited := make([]bool, n)
	queue := make([]int, 0, n)
	for _, seed := range order {
		if visited[seed] {
			continue
		}
		if oriented[seed].Z < 0 {
			oriented[seed] = oriented[seed].Mul(-1)
		}
		visited[seed] = true
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if mst.Node(int64(cur)) == nil {
				continue
			}
			it := mst.From(int64(cur))
			for it.Next() {
				next := int(it.Node().ID())
				if visited[next] {
					continue
				}
				visited[next] = true
				if oriented[next].Dot(oriented[cur]) < 0 {
					oriented[next] = oriented[next].Mul(-1)
				}
				queue = append(queue, next)
			}
		}
	}
	return oriented, nil
}

// EnsureNormals returns the cloud unchanged when every point has a usable normal, or a copy with
// estimated and consistently oriented normals otherwise. A zero-length normal counts as missing.
func EnsureNormals(ctx context.Context, cloud *PointCloud, tree *KDTree, k int) (*PointCloud, error) {
	if HasUsableNormals(cloud) {
		return cloud, nil
	}
	normals, err := EstimateNormals(ctx, cloud, tree, k)
	if err != nil {
		return nil, err
	}
	normals, err = OrientNormals(cloud, tree, normals)
	if err != nil {
		return nil, err
	}
	return cloud.WithNormals(normals)
}

// HasUsableNormals reports whether the cloud has a non-zero normal for every point.
func HasUsableNormals(cloud *PointCloud) bool {
	if !cloud.MetaData().HasNormals {
		return false
	}
	for _, n := range cloud.Normals() {
		if n.Norm2() == 0 || math.IsNaN(n.Norm2()) {
			return false
		}
	}
	return true
}

// MeanSpacing returns the mean distance from each point to its nearest distinct neighbor.
func MeanSpacing(cloud *PointCloud, tree *KDTree) (float64, error) {
	dists := make([]float64, 0, cloud.Size())
	for _, p := range cloud.Positions() {
		nb := tree.KNearestNeighbors(p, 1, false)
		if len(nb) == 0 {
			continue
		}
		dists = append(dists, nb[0].Distance)
	}
	if len(dists) == 0 {
		return 0, errors.New("cannot compute spacing of a cloud with fewer than two distinct points")
	}
	return stats.Mean(dists)
}
