package reconstruct

import (
	"context"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

// ballShrink keeps points lying exactly on a ball's surface from counting as inside it.
const ballShrink = 1 - 1e-9

type candidate struct {
	tri    [3]int
	radius float64
}

func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].radius < cands[j].radius
	})
}

// buildBallPivot rolls balls of increasing radius over the oriented cloud. A triangle is kept
// when a ball resting on its three corners, on the side the point normals face, holds no other
// point. Passes after the first only seed from vertices that are still unused or on a boundary.
// The mesh vertices are exactly the input points, in order.
func buildBallPivot(
	ctx context.Context,
	cloud *pointcloud.PointCloud,
	tree *pointcloud.KDTree,
	params Params,
	logger logging.Logger,
) (*mesh.Mesh, error) {
	cloud, err := pointcloud.EnsureNormals(ctx, cloud, tree, params.NormalNeighbors)
	if err != nil {
		return nil, errors.Wrap(err, "cannot estimate normals")
	}
	radii := append([]float64(nil), params.BPA.Radii...)
	if len(radii) == 0 {
		spacing, err := pointcloud.MeanSpacing(cloud, tree)
		if err != nil {
			return nil, err
		}
		for _, f := range params.BPA.RadiusFactors {
			radii = append(radii, f*spacing)
		}
	}
	sort.Float64s(radii)

	n := cloud.Size()
	set := newTriangleSet(n, true)
	eligible := make([]bool, n)
	for pass, r := range radii {
		for i := range eligible {
			eligible[i] = pass == 0 || set.open(i)
		}
		before := len(set.triangles)
		for i := 0; i < n; i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if !eligible[i] {
				continue
			}
			for _, c := range ballCandidates(cloud, tree, i, r, eligible, params.BPA.MaxCandidates) {
				set.add(c.tri)
			}
		}
		logger.Debugw("ball pivoting pass", "radius", r, "added", len(set.triangles)-before)
	}

	return &mesh.Mesh{
		Vertices:  append([]r3.Vector(nil), cloud.Positions()...),
		Normals:   append([]r3.Vector(nil), cloud.Normals()...),
		Triangles: set.triangles,
	}, nil
}

// ballCandidates returns the triangles seeded at vertex i whose ball of radius r is empty,
// smallest circumradius first. A triangle is only produced by its lowest eligible vertex.
func ballCandidates(
	cloud *pointcloud.PointCloud,
	tree *pointcloud.KDTree,
	i int,
	r float64,
	eligible []bool,
	maxCandidates int,
) []candidate {
	p := cloud.Position(i)
	neighbors := tree.RadiusNeighbors(p, 2*r, false)
	if len(neighbors) > maxCandidates {
		neighbors = neighbors[:maxCandidates]
	}
	var cands []candidate
	for a, na := range neighbors {
		j := na.Index
		if eligible[j] && j < i {
			continue
		}
		for _, nb := range neighbors[a+1:] {
			k := nb.Index
			if eligible[k] && k < i {
				continue
			}
			if na.Position.Distance(nb.Position) > 2*r {
				continue
			}
			tri := [3]int{i, j, k}
			t := spatialmath.NewTriangle(p, na.Position, nb.Position)
			facing := cloud.Normal(i).Add(cloud.Normal(j)).Add(cloud.Normal(k))
			if t.Normal().Dot(facing) < 0 {
				tri = [3]int{i, k, j}
				t = spatialmath.NewTriangle(p, nb.Position, na.Position)
			}
			center, ok := t.BallCenter(r)
			if !ok || tree.AnyWithin(center, r*ballShrink, i, j, k) {
				continue
			}
			_, rho, _ := t.Circumcircle()
			cands = append(cands, candidate{tri: tri, radius: rho})
		}
	}
	sortCandidates(cands)
	return cands
}
