package reconstruct

import (
	"context"
	"time"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

// minPoints is the smallest cloud any strategy accepts.
const minPoints = 4

// collinearTolerance is relative to the spread of the cloud.
const collinearTolerance = 1e-9

type builder func(ctx context.Context, cloud *pointcloud.PointCloud, tree *pointcloud.KDTree,
	params Params, logger logging.Logger) (*mesh.Mesh, error)

var builders = map[Method]builder{
	Poisson:   buildPoisson,
	BallPivot: buildBallPivot,
	Alpha:     buildAlpha,
}

// Build reconstructs a surface from the cloud with the given strategy. Every failure, including
// a degenerate cloud or a strategy that yields no triangles, is a *ReconstructionError. The cloud
// is not modified.
func Build(
	ctx context.Context,
	cloud *pointcloud.PointCloud,
	method Method,
	params Params,
	logger logging.Logger,
) (*mesh.Mesh, error) {
	fail := func(reason string, err error) error {
		return &ReconstructionError{Method: method, Points: cloud.Size(), Reason: reason, Err: err}
	}
	build, ok := builders[method]
	if !ok {
		return nil, fail("unknown method", nil)
	}
	if err := params.Validate(); err != nil {
		return nil, fail("invalid parameters", err)
	}
	switch {
	case cloud.Size() < minPoints:
		return nil, fail("at least 4 points are required", nil)
	case !cloud.Distinct():
		return nil, fail("all points are coincident", nil)
	case spatialmath.Collinear(cloud.Positions(), collinearTolerance):
		return nil, fail("all points are collinear", nil)
	}

	start := time.Now()
	tree := pointcloud.ToKDTree(cloud)
	m, err := build(ctx, cloud, tree, params.withDefaults(), logger)
	if err != nil {
		return nil, fail("strategy failed", err)
	}
	if len(m.Triangles) == 0 {
		return nil, fail("no triangles were produced", nil)
	}
	logger.Infow("reconstructed surface",
		"method", method,
		"points", cloud.Size(),
		"vertices", len(m.Vertices),
		"triangles", len(m.Triangles),
		"duration", time.Since(start),
	)
	return m, nil
}

