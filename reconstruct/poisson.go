package reconstruct

import (
	"context"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
)

const (
	// cellsPerSpacing sizes a grid cell relative to the mean point spacing.
	cellsPerSpacing = 1.5
	// gridPadding is the number of cells added around the cloud on every side.
	gridPadding = 2
)

// buildPoisson extracts the zero set of a smooth signed distance estimate of the oriented cloud
// and crops it to the cloud's bounding box grown by one cell, which removes the sheets the
// estimate extrapolates away from the data.
func buildPoisson(
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
	spacing, err := pointcloud.MeanSpacing(cloud, tree)
	if err != nil {
		return nil, err
	}
	bounds := cloud.MetaData().Bounds
	size := bounds.Size()
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	cell := math.Max(cellsPerSpacing*spacing, longest/float64(params.Poisson.Cells))
	logger.Debugw("sampling implicit surface", "spacing", spacing, "cell", cell, "neighbors", params.Poisson.Neighbors)

	surface := newPointSurface(cloud, tree, params.Poisson.Neighbors, 2*spacing, bounds.Expand(gridPadding*cell))
	grid, err := sample(ctx, surface, cell)
	if err != nil {
		return nil, err
	}
	raw, err := marchTetrahedra(ctx, grid)
	if err != nil {
		return nil, err
	}

	crop := bounds.Expand(cell)
	cropped := raw.SelectTriangles(func(_ int, tri [3]int) bool {
		return crop.Contains(raw.Vertices[tri[0]]) && crop.Contains(raw.Vertices[tri[1]]) && crop.Contains(raw.Vertices[tri[2]])
	})
	out, _ := cropped.Compact()
	logger.Debugw("extracted level set", "raw_triangles", len(raw.Triangles), "cropped_triangles", len(out.Triangles))
	return out.ComputeVertexNormals(), nil
}

func toVec(p r3.Vector) v3.Vec {
	return v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}
