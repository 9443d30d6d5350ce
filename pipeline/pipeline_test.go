package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
)

type recordingObserver struct {
	started  []Step
	finished []Step
	failed   map[Step]error
}

func (o *recordingObserver) StepStarted(step Step) {
	o.started = append(o.started, step)
}

func (o *recordingObserver) StepFinished(step Step, err error) {
	o.finished = append(o.finished, step)
	if err != nil {
		if o.failed == nil {
			o.failed = map[Step]error{}
		}
		o.failed[step] = err
	}
}

func TestArtifactPath(t *testing.T) {
	req := NewRequest(filepath.Join("scans", "room.ply"))
	req.Method = reconstruct.BallPivot
	req.Format = meshio.FormatGLB

	path, err := req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join("scans", "room_bpa.glb"))

	req.OutputDir = "meshes"
	path, err = req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join("meshes", "room_bpa.glb"))

	req.OutputPath = "explicit.glb"
	path, err = req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, "explicit.glb")

	inMemory := NewCloudRequest(pointcloud.MakeTestSphere(10, 1, false, false), "")
	_, err = inMemory.ArtifactPath()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, inMemory.Validate(), test.ShouldNotBeNil)
}

func TestValidateRequest(t *testing.T) {
	req := NewRequest("in.ply")
	test.That(t, req.Validate(), test.ShouldBeNil)
	test.That(t, req.ID, test.ShouldNotEqual, NewRequest("in.ply").ID)

	req.Method = "marching"
	test.That(t, req.Validate(), test.ShouldNotBeNil)

	req = NewRequest("in.ply")
	req.Format = "fbx"
	test.That(t, req.Validate(), test.ShouldNotBeNil)

	req = NewRequest("in.ply")
	req.Cloud = pointcloud.MakeTestSphere(10, 1, false, false)
	test.That(t, req.Validate(), test.ShouldNotBeNil)
}

func TestTransferColorBallPivotIsExact(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud := pointcloud.MakeTestSphere(1000, 1, true, true)
	m, err := reconstruct.Build(context.Background(), cloud, reconstruct.BallPivot, reconstruct.Params{}, logger)
	test.That(t, err, test.ShouldBeNil)

	colored := TransferColor(cloud, m, reconstruct.BallPivot, logger)
	test.That(t, colored.Colors, test.ShouldHaveLength, cloud.Size())
	for i, c := range colored.Colors {
		test.That(t, c, test.ShouldResemble, cloud.Color(i))
	}
	test.That(t, m.Colors, test.ShouldBeNil)
}

func TestTransferColorNearestNeighbor(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud := pointcloud.MakeTestSphere(2000, 1, true, false)
	for _, method := range []reconstruct.Method{reconstruct.Poisson, reconstruct.Alpha} {
		t.Run(string(method), func(t *testing.T) {
			m, err := reconstruct.Build(context.Background(), cloud, method, reconstruct.Params{}, logger)
			test.That(t, err, test.ShouldBeNil)
			colored := TransferColor(cloud, m, method, logger)
			test.That(t, colored.Colors, test.ShouldHaveLength, len(m.Vertices))

			for i := 0; i < len(m.Vertices); i += 17 {
				v := m.Vertices[i]
				best := math.Inf(1)
				for _, p := range cloud.Positions() {
					best = math.Min(best, v.Distance(p))
				}
				// the chosen color belongs to a point at the minimum distance
				found := false
				for j, p := range cloud.Positions() {
					if cloud.Color(j) == colored.Colors[i] && v.Distance(p) <= best+1e-12 {
						found = true
						break
					}
				}
				test.That(t, found, test.ShouldBeTrue)
			}
		})
	}
}

func TestTransferColorWithoutSourceColor(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud := pointcloud.MakeTestSphere(500, 1, false, true)
	m, err := reconstruct.Build(context.Background(), cloud, reconstruct.Alpha, reconstruct.Params{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, TransferColor(cloud, m, reconstruct.Alpha, logger).Colors, test.ShouldBeNil)
}

func TestTransferColorFallsBackOnCountMismatch(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	cloud := pointcloud.MakeTestSphere(1000, 1, true, true)
	m, err := reconstruct.Build(context.Background(), cloud, reconstruct.Alpha, reconstruct.Params{}, logger)
	test.That(t, err, test.ShouldBeNil)
	m.Vertices = m.Vertices[:len(m.Vertices)-1]

	colored := TransferColor(cloud, m, reconstruct.BallPivot, logger)
	test.That(t, colored.Colors, test.ShouldHaveLength, len(m.Vertices))
	test.That(t, logs.FilterMessageSnippet("nearest neighbor").Len(), test.ShouldEqual, 1)
}

func TestBuildFromFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "sphere.ply")
	test.That(t, pointcloud.WriteToFile(pointcloud.MakeTestSphere(2000, 1, true, true), input), test.ShouldBeNil)

	req := NewRequest(input)
	req.Method = reconstruct.BallPivot
	req.Format = meshio.FormatPLY
	req.OutputDir = filepath.Join(dir, "meshes")
	test.That(t, os.Mkdir(req.OutputDir, 0o755), test.ShouldBeNil)
	dst, err := req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)

	obs := &recordingObserver{}
	res, err := Build(context.Background(), req, dst, logger, obs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.HasColor, test.ShouldBeTrue)
	test.That(t, obs.started, test.ShouldResemble, Steps)
	test.That(t, obs.finished, test.ShouldResemble, Steps)
	test.That(t, obs.failed, test.ShouldBeNil)

	written, err := meshio.Read(filepath.Join(dir, "meshes", "sphere_bpa.ply"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.Triangles, test.ShouldHaveLength, len(res.Mesh.Triangles))
	test.That(t, written.Colors, test.ShouldHaveLength, len(written.Vertices))
}

func TestBuildSHOnlyCloud(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sphere := pointcloud.MakeTestSphere(1500, 1, false, false)
	cloud, err := pointcloud.New(sphere.Positions(), pointcloud.Attributes{SH: make([]pointcloud.SH, sphere.Size())})
	test.That(t, err, test.ShouldBeNil)

	dst := filepath.Join(t.TempDir(), "splat.obj")
	res, err := Build(context.Background(), NewCloudRequest(cloud, dst), dst, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.HasColor, test.ShouldBeTrue)

	written, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.Colors, test.ShouldHaveLength, len(written.Vertices))
	for _, c := range written.Colors {
		test.That(t, c.R, test.ShouldAlmostEqual, 0.5)
		test.That(t, c.G, test.ShouldAlmostEqual, 0.5)
		test.That(t, c.B, test.ShouldAlmostEqual, 0.5)
	}
}

func TestBuildBinarySplatFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "trained.ply")
	f, err := os.Create(input)
	test.That(t, err, test.ShouldBeNil)
	sphere := pointcloud.MakeTestSphere(2000, 1, false, false)
	test.That(t, pointcloud.WriteTestSplat(f, sphere.Positions(), pointcloud.SH{}, binary.LittleEndian), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	req := NewRequest(input)
	dst, err := req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)
	res, err := Build(context.Background(), req, dst, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.HasColor, test.ShouldBeTrue)
	// the zero normals of the splat were replaced, so the surface closes
	test.That(t, res.Mesh.IsWatertight(), test.ShouldBeTrue)
	for _, v := range res.Mesh.Vertices {
		test.That(t, math.Abs(v.Norm()-1), test.ShouldBeLessThan, 0.1)
	}

	written, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.Colors, test.ShouldHaveLength, len(written.Vertices))
	for _, c := range written.Colors {
		test.That(t, c.R, test.ShouldAlmostEqual, 0.5)
		test.That(t, c.G, test.ShouldAlmostEqual, 0.5)
		test.That(t, c.B, test.ShouldAlmostEqual, 0.5)
	}
}

func TestBuildUncoloredSTL(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dst := filepath.Join(t.TempDir(), "plain.stl")
	req := NewCloudRequest(pointcloud.MakeTestSphere(1500, 1, false, false), dst)
	req.Format = meshio.FormatSTL
	req.PostProcess.Simplify, req.PostProcess.SimplifyTarget = true, 500

	res, err := Build(context.Background(), req, dst, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.HasColor, test.ShouldBeFalse)
	test.That(t, res.Mesh.Colors, test.ShouldBeNil)
	test.That(t, len(res.Mesh.Triangles), test.ShouldBeLessThanOrEqualTo, 500)
	test.That(t, res.Report.SimplifiedTo, test.ShouldEqual, len(res.Mesh.Triangles))

	written, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.Triangles, test.ShouldHaveLength, len(res.Mesh.Triangles))
}

func TestBuildDegenerateWritesNothing(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud, err := pointcloud.New([]r3.Vector{{X: 0}, {X: 1}, {X: 2}}, pointcloud.Attributes{})
	test.That(t, err, test.ShouldBeNil)

	dst := filepath.Join(t.TempDir(), "line.obj")
	obs := &recordingObserver{}
	_, err = Build(context.Background(), NewCloudRequest(cloud, dst), dst, logger, obs)
	var recErr *reconstruct.ReconstructionError
	test.That(t, errors.As(err, &recErr), test.ShouldBeTrue)
	test.That(t, recErr.Points, test.ShouldEqual, 3)
	test.That(t, obs.failed[StepReconstruct], test.ShouldNotBeNil)
	test.That(t, obs.started, test.ShouldNotContain, StepWrite)

	_, err = os.Stat(dst)
	test.That(t, errors.Is(err, os.ErrNotExist), test.ShouldBeTrue)
}

func TestBuildMissingInput(t *testing.T) {
	logger := logging.NewTestLogger(t)
	req := NewRequest(filepath.Join(t.TempDir(), "missing.ply"))
	dst, err := req.ArtifactPath()
	test.That(t, err, test.ShouldBeNil)

	_, err = Build(context.Background(), req, dst, logger, nil)
	var loadErr *pointcloud.LoadError
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
}

func TestGenerateBottomLeftOrigin(t *testing.T) {
	logger := logging.NewTestLogger(t)
	req := NewCloudRequest(pointcloud.MakeTestSphere(1500, 2, true, false), "unused.obj")
	req.PostProcess.Origin = postprocess.OriginBottomLeft

	res, err := Generate(context.Background(), req, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	bounds := res.Mesh.Bounds()
	test.That(t, bounds.Min.X, test.ShouldAlmostEqual, 0)
	test.That(t, bounds.Min.Y, test.ShouldAlmostEqual, 0)
	test.That(t, bounds.Min.Z, test.ShouldAlmostEqual, 0)
	test.That(t, res.Report.Offset.Norm(), test.ShouldBeGreaterThan, 1)
}
