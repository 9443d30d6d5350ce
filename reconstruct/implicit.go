package reconstruct

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"

	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

// pointSurface is a signed distance estimate of the surface an oriented cloud samples. At every
// query point it blends the distances to the tangent planes of the nearest points with Gaussian
// weights. It is negative inside and positive on the side the normals point to.
type pointSurface struct {
	positions []r3.Vector
	normals   []r3.Vector
	tree      *pointcloud.KDTree
	k         int
	twoSigma2 float64
	bounds    sdf.Box3
}

var _ sdf.SDF3 = (*pointSurface)(nil)

func newPointSurface(cloud *pointcloud.PointCloud, tree *pointcloud.KDTree, k int, sigma float64, bounds spatialmath.AABB) *pointSurface {
	normals := make([]r3.Vector, cloud.Size())
	for i, n := range cloud.Normals() {
		if norm := n.Norm(); norm > 0 {
			normals[i] = n.Mul(1 / norm)
		}
	}
	return &pointSurface{
		positions: cloud.Positions(),
		normals:   normals,
		tree:      tree,
		k:         k,
		twoSigma2: 2 * sigma * sigma,
		bounds:    toBox3(bounds),
	}
}

func (s *pointSurface) Evaluate(p v3.Vec) float64 {
	q := r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
	neighbors := s.tree.KNearestNeighbors(q, s.k, true)
	if len(neighbors) == 0 {
		return 0
	}
	// weights are relative to the nearest point so far samples do not underflow
	d0 := neighbors[0].Distance * neighbors[0].Distance
	var sum, weights float64
	for _, nb := range neighbors {
		w := math.Exp(-(nb.Distance*nb.Distance - d0) / s.twoSigma2)
		sum += w * s.normals[nb.Index].Dot(q.Sub(nb.Position))
		weights += w
	}
	return sum / weights
}

func (s *pointSurface) BoundingBox() sdf.Box3 {
	return s.bounds
}

func toBox3(b spatialmath.AABB) sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		Max: v3.Vec{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
