package postprocess

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
)

// Report describes what Process did.
type Report struct {
	Cleanup        CleanupStats
	TrianglesIn    int
	TrianglesOut   int
	SimplifiedFrom int
	SimplifiedTo   int
	Holes          HoleStats
	// Offset is the translation applied by origin adjustment.
	Offset r3.Vector
	// Skipped lists the steps that failed; their input was kept.
	Skipped []*PostProcessError
}

// Process runs the requested steps in order: cleanup, simplification, hole filling and origin
// adjustment. The input mesh is not modified. Failing steps are skipped and reported, so the
// returned mesh is always usable.
func Process(ctx context.Context, m *mesh.Mesh, opts Options, logger logging.Logger) (*mesh.Mesh, Report) {
	report := Report{TrianglesIn: len(m.Triangles)}
	if err := opts.Validate(); err != nil {
		report.Skipped = append(report.Skipped, &PostProcessError{Step: "options", Err: err})
		report.TrianglesOut = len(m.Triangles)
		return m, report
	}

	// run applies fn to the current mesh. accept is called only when the result validates, so
	// the report never describes a step whose output was thrown away.
	run := func(step string, fn func(in *mesh.Mesh) (*mesh.Mesh, func(), error)) {
		start := time.Now()
		out, accept, err := runStep(fn, m)
		if err == nil {
			err = out.Validate()
		}
		if err != nil {
			perr := &PostProcessError{Step: step, Err: err}
			report.Skipped = append(report.Skipped, perr)
			logger.Warnw("post-processing step skipped", "step", step, "error", err)
			return
		}
		logger.Debugw("post-processing step done", "step", step,
			"triangles", len(out.Triangles), "duration", time.Since(start))
		if accept != nil {
			accept()
		}
		m = out
	}

	if opts.Cleanup {
		run(StepCleanup, func(in *mesh.Mesh) (*mesh.Mesh, func(), error) {
			out, stats := cleanup(in)
			return out, func() { report.Cleanup = stats }, nil
		})
	}
	if opts.Simplify {
		method, _ := ParseSimplifyMethod(string(opts.SimplifyMethod))
		run(StepSimplify, func(in *mesh.Mesh) (*mesh.Mesh, func(), error) {
			out, err := simplify(ctx, in, opts.SimplifyTarget, method)
			if err != nil {
				return nil, nil, err
			}
			accept := func() {
				report.SimplifiedFrom, report.SimplifiedTo = len(in.Triangles), len(out.Triangles)
			}
			return out, accept, nil
		})
	}
	if opts.FillHolesSize > 0 {
		run(StepFillHoles, func(in *mesh.Mesh) (*mesh.Mesh, func(), error) {
			out, stats := fillHoles(in, opts.FillHolesSize)
			return out, func() { report.Holes = stats }, nil
		})
	}
	if origin, _ := ParseOrigin(string(opts.Origin)); origin == OriginBottomLeft {
		run(StepOrigin, func(in *mesh.Mesh) (*mesh.Mesh, func(), error) {
			bounds := in.Bounds()
			if bounds.Empty() {
				return nil, nil, errors.New("mesh has no vertices")
			}
			offset := bounds.Min.Mul(-1)
			return in.Translate(offset), func() { report.Offset = offset }, nil
		})
	}

	report.TrianglesOut = len(m.Triangles)
	logger.Infow("post-processed mesh",
		"triangles_in", report.TrianglesIn,
		"triangles_out", report.TrianglesOut,
		"skipped", len(report.Skipped),
	)
	return m, report
}

// runStep turns a panicking step into an error.
func runStep(
	fn func(in *mesh.Mesh) (*mesh.Mesh, func(), error),
	in *mesh.Mesh,
) (out *mesh.Mesh, accept func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			out, accept, err = nil, nil, errors.Errorf("panic: %v", r)
		}
	}()
	return fn(in)
}
