package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// Step names a stage of the pipeline.
type Step string

// The pipeline stages, in the order they run.
const (
	StepLoad        = Step("load")
	StepResolve     = Step("resolve-colors")
	StepReconstruct = Step("reconstruct")
	StepTransfer    = Step("transfer-colors")
	StepPostProcess = Step("post-process")
	StepWrite       = Step("write")
)

// Steps lists every stage in execution order.
var Steps = []Step{StepLoad, StepResolve, StepReconstruct, StepTransfer, StepPostProcess, StepWrite}

// Observer is notified as a request moves through the stages.
type Observer interface {
	StepStarted(step Step)
	StepFinished(step Step, err error)
}

type nopObserver struct{}

func (nopObserver) StepStarted(Step)         {}
func (nopObserver) StepFinished(Step, error) {}

// Result is the outcome of a successful run.
type Result struct {
	Mesh     *mesh.Mesh
	Cloud    *pointcloud.PointCloud
	HasColor bool
	Report   postprocess.Report
	Duration time.Duration
}

// Generate runs every stage except writing and returns the mesh.
func Generate(ctx context.Context, req Request, logger logging.Logger, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid meshing request")
	}
	start := time.Now()
	logger = logging.ForRequest(logger, req.ID)

	cloud := req.Cloud
	err := run(obs, StepLoad, func() (err error) {
		if cloud != nil {
			return nil
		}
		cloud, err = pointcloud.NewFromFile(req.InputPath, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	var hasColor bool
	runInfallible(obs, StepResolve, func() {
		cloud, hasColor = pointcloud.ResolveColors(cloud)
		if !hasColor {
			logger.Infow("point cloud has no color, the mesh will be uncolored")
		}
	})

	var m *mesh.Mesh
	err = run(obs, StepReconstruct, func() (err error) {
		m, err = reconstruct.Build(ctx, cloud, req.Method, req.Params, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	runInfallible(obs, StepTransfer, func() {
		m = TransferColor(cloud, m, req.Method, logger)
	})

	var report postprocess.Report
	runInfallible(obs, StepPostProcess, func() {
		m, report = postprocess.Process(ctx, m, req.PostProcess, logger)
	})

	return &Result{
		Mesh:     m,
		Cloud:    cloud,
		HasColor: hasColor,
		Report:   report,
		Duration: time.Since(start),
	}, nil
}

// Build runs the whole pipeline and writes the mesh to dst in the request's format. Nothing is
// written when an earlier stage fails.
func Build(ctx context.Context, req Request, dst string, logger logging.Logger, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	res, err := Generate(ctx, req, logger, obs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = run(obs, StepWrite, func() error {
		return meshio.Write(dst, req.Format, res.Mesh)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("mesh written",
		"path", dst,
		"method", req.Method,
		"format", req.Format,
		"vertices", len(res.Mesh.Vertices),
		"triangles", len(res.Mesh.Triangles),
		"color", res.Mesh.Colors != nil,
	)
	return res, nil
}

func run(obs Observer, step Step, fn func() error) error {
	obs.StepStarted(step)
	err := fn()
	obs.StepFinished(step, err)
	return err
}

func runInfallible(obs Observer, step Step, fn func()) {
	obs.StepStarted(step)
	fn()
	obs.StepFinished(step, nil)
}
