package cli

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/gate"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pipeline"
	"github.com/splatmesh/splatmesh/utils"
)

// MeshAction builds one mesh.
func MeshAction(c *cli.Context) (err error) {
	rt, err := newCmdEnv(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, rt.close()) }()

	req, err := rt.meshRequest(c, c.String(flagInput))
	if err != nil {
		return err
	}
	if c.IsSet(flagOutput) {
		req.OutputPath = utils.ReplaceExt(c.String(flagOutput), req.Format.Extension())
	} else if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
			return errors.Wrapf(err, "cannot create %q", req.OutputDir)
		}
	}

	progress := newMeshProgress(
		fmt.Sprintf("Meshing %s with %s", c.String(flagInput), req.Method),
		WithProgressWriter(c.App.Writer),
		WithProgressOutput(!c.Bool(flagQuiet)),
	)
	g := gate.New(rt.logger, gate.WithObserver(progress))
	progress.begin()
	art, err := g.Ensure(c.Context, req)
	if err != nil {
		progress.end("", err)
		return err
	}
	if !art.Rebuilt {
		progress.end(fmt.Sprintf("%s is up to date", art.Path), nil)
		return nil
	}
	progress.end(fmt.Sprintf("Wrote %s (%s)", art.Path, describeArtifact(art)), nil)
	reportResult(c, req, art.Result)
	return nil
}

// meshRequest builds a request for input from the flags and the config.
func (rt *cmdEnv) meshRequest(c *cli.Context, input string) (pipeline.Request, error) {
	req := pipeline.NewRequest(input)
	var err error
	if req.Method, err = rt.method(c); err != nil {
		return req, err
	}
	if req.Format, err = rt.format(c, meshio.FormatOBJ); err != nil {
		return req, err
	}
	if req.PostProcess, err = postProcess(c, rt.cfg.PostProcess()); err != nil {
		return req, err
	}
	req.Params = rt.cfg.Params()
	req.OutputDir = rt.cfg.Meshing.OutputDir
	req.Force = c.Bool(flagForce)
	return req, req.Validate()
}

func describeArtifact(art gate.Artifact) string {
	desc := ""
	if art.Result != nil {
		desc = fmt.Sprintf("%d vertices, %d triangles, ", len(art.Result.Mesh.Vertices), len(art.Result.Mesh.Triangles))
	}
	if info, err := os.Stat(art.Path); err == nil {
		desc += units.HumanSize(float64(info.Size())) + ", "
	}
	return desc + units.HumanDuration(art.Duration)
}

func reportResult(c *cli.Context, req pipeline.Request, res *pipeline.Result) {
	if res == nil {
		return
	}
	w := c.App.ErrWriter
	if !res.HasColor {
		warningf(w, "the point cloud has no colors, the mesh is uncolored")
	} else if writer, err := meshio.WriterFor(req.Format); err == nil && !writer.SupportsVertexColor() {
		warningf(w, "%s does not store vertex colors, they were dropped", req.Format)
	}
	for _, skipped := range res.Report.Skipped {
		warningf(w, "%v", skipped)
	}
	if holes := res.Report.Holes; holes.TooLarge+holes.NonSimple > 0 {
		infof(w, "%d holes filled, %d left open", holes.Filled, holes.TooLarge+holes.NonSimple)
	}
	if req.PostProcess.Simplify && res.Report.SimplifiedTo > req.PostProcess.SimplifyTarget {
		infof(w, "simplification stopped at %d triangles", res.Report.SimplifiedTo)
	}
}
