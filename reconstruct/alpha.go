package reconstruct

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/markus-wa/quickhull-go/v2"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

// buildAlpha keeps every triangle whose circumradius is at most alpha and which can be touched
// by an empty ball of radius alpha from at least one side. Triangles face the empty ball.
// Unreferenced points are dropped. An alpha at least as long as the cloud's diagonal selects the
// convex hull.
func buildAlpha(
	ctx context.Context,
	cloud *pointcloud.PointCloud,
	tree *pointcloud.KDTree,
	params Params,
	logger logging.Logger,
) (*mesh.Mesh, error) {
	alpha := params.Alpha.Alpha
	if alpha == 0 {
		spacing, err := pointcloud.MeanSpacing(cloud, tree)
		if err != nil {
			return nil, err
		}
		alpha = params.Alpha.AlphaFactor * spacing
	}
	if diag := cloud.MetaData().Bounds.Diagonal(); alpha >= diag {
		logger.Debugw("alpha exceeds the cloud diagonal, using the convex hull", "alpha", alpha, "diagonal", diag)
		return convexHull(cloud)
	}
	logger.Debugw("computing alpha shape", "alpha", alpha)

	n := cloud.Size()
	hasNormals := pointcloud.HasUsableNormals(cloud)
	set := newTriangleSet(n, false)
	for i := 0; i < n; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p := cloud.Position(i)
		neighbors := tree.RadiusNeighbors(p, 2*alpha, false)
		if len(neighbors) > params.Alpha.MaxCandidates {
			neighbors = neighbors[:params.Alpha.MaxCandidates]
		}
		var cands []candidate
		for a, na := range neighbors {
			j := na.Index
			if j < i {
				continue
			}
			for _, nb := range neighbors[a+1:] {
				k := nb.Index
				if k < i || na.Position.Distance(nb.Position) > 2*alpha {
					continue
				}
				t := spatialmath.NewTriangle(p, na.Position, nb.Position)
				center, rho, ok := t.Circumcircle()
				if !ok || rho > alpha {
					continue
				}
				h := math.Sqrt(alpha*alpha - rho*rho)
				normal := t.Normal()
				frontEmpty := !tree.AnyWithin(center.Add(normal.Mul(h)), alpha*ballShrink, i, j, k)
				backEmpty := !tree.AnyWithin(center.Sub(normal.Mul(h)), alpha*ballShrink, i, j, k)
				if !frontEmpty && !backEmpty {
					continue
				}
				flip := !frontEmpty
				if frontEmpty && backEmpty && hasNormals {
					facing := cloud.Normal(i).Add(cloud.Normal(j)).Add(cloud.Normal(k))
					flip = normal.Dot(facing) < 0
				}
				tri := [3]int{i, j, k}
				if flip {
					tri = [3]int{i, k, j}
				}
				cands = append(cands, candidate{tri: tri, radius: rho})
			}
		}
		sortCandidates(cands)
		for _, c := range cands {
			set.add(c.tri)
		}
	}

	m := mesh.New(cloud.Positions(), set.triangles)
	if hasNormals {
		m.Normals = cloud.Normals()
	}
	out, _ := m.Compact()
	if !hasNormals {
		out = out.ComputeVertexNormals()
	}
	return out, nil
}

// convexHull returns the outward facing convex hull of the cloud.
func convexHull(cloud *pointcloud.PointCloud) (m *mesh.Mesh, err error) {
	defer func() {
		// quickhull panics on inputs it cannot span
		if r := recover(); r != nil {
			m, err = nil, errors.Errorf("convex hull failed: %v", r)
		}
	}()
	points := append([]r3.Vector(nil), cloud.Positions()...)
	eps := cloud.MetaData().Bounds.Diagonal() * 1e-9
	hull := new(quickhull.QuickHull).ConvexHull(points, true, false, eps)

	m = &mesh.Mesh{}
	index := map[r3.Vector]int{}
	weld := func(p r3.Vector) int {
		idx, ok := index[p]
		if !ok {
			idx = len(m.Vertices)
			m.Vertices = append(m.Vertices, p)
			index[p] = idx
		}
		return idx
	}
	for i := 0; i+2 < len(hull.Indices); i += 3 {
		tri := [3]int{
			weld(hull.Vertices[hull.Indices[i]]),
			weld(hull.Vertices[hull.Indices[i+1]]),
			weld(hull.Vertices[hull.Indices[i+2]]),
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		m.Triangles = append(m.Triangles, tri)
	}
	var center r3.Vector
	for _, v := range m.Vertices {
		center = center.Add(v)
	}
	if len(m.Vertices) > 0 {
		center = center.Mul(1 / float64(len(m.Vertices)))
	}
	for i, tri := range m.Triangles {
		t := m.Triangle(i)
		if t.Normal().Dot(t.Centroid().Sub(center)) < 0 {
			m.Triangles[i] = [3]int{tri[0], tri[2], tri[1]}
		}
	}
	return m.ComputeVertexNormals(), nil
}
