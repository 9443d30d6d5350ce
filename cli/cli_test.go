package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/reconstruct"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(context.Background(), append([]string{"splatmesh"}, args...))
	return out.String(), errOut.String(), err
}

func writeCloud(t *testing.T, path string, cloud *pointcloud.PointCloud) string {
	t.Helper()
	test.That(t, pointcloud.WriteToFile(cloud, path), test.ShouldBeNil)
	return path
}

func lineCloud(t *testing.T) *pointcloud.PointCloud {
	t.Helper()
	cloud, err := pointcloud.New([]r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}, pointcloud.Attributes{})
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestExitCode(t *testing.T) {
	test.That(t, ExitCode(nil), test.ShouldEqual, ExitOK)
	test.That(t, ExitCode(errors.New("x")), test.ShouldEqual, ExitFailure)
	test.That(t, ExitCode(&pointcloud.LoadError{Path: "a"}), test.ShouldEqual, ExitLoad)
	test.That(t, ExitCode(errors.Wrap(&reconstruct.ReconstructionError{Method: reconstruct.Alpha}, "ctx")),
		test.ShouldEqual, ExitReconstruction)
	test.That(t, ExitCode(&meshio.WriteError{Path: "a"}), test.ShouldEqual, ExitWrite)
}

func TestMeshCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(1500, 1, true, false))
	test.That(t, os.Mkdir(filepath.Join(dir, "out"), 0o755), test.ShouldBeNil)

	_, _, err := runApp(t, "mesh", "--input", input, "--output", filepath.Join(dir, "out", "ball.mesh"),
		"--format", "glb", "--method", "alpha", "--simplify", "800", "--quiet")
	test.That(t, err, test.ShouldBeNil)

	dst := filepath.Join(dir, "out", "ball.glb")
	m, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(m.Triangles), test.ShouldBeLessThanOrEqualTo, 800)
	test.That(t, m.Colors, test.ShouldHaveLength, len(m.Vertices))

	before, err := os.Stat(dst)
	test.That(t, err, test.ShouldBeNil)
	out, _, err := runApp(t, "mesh", "--input", input, "--output", dst, "--format", "glb", "--method", "alpha",
		"--simplify", "800")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "up to date")
	after, err := os.Stat(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after.ModTime(), test.ShouldEqual, before.ModTime())
}

func TestMeshCommandExplicitOutputFollowsSettings(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(1500, 1, true, true))
	dst := filepath.Join(dir, "ball.obj")
	mesh := func(args ...string) string {
		t.Helper()
		out, _, err := runApp(t, append([]string{"mesh", "--input", input, "--output", dst}, args...)...)
		test.That(t, err, test.ShouldBeNil)
		return out
	}

	test.That(t, mesh(), test.ShouldContainSubstring, "Wrote")
	full, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh(), test.ShouldContainSubstring, "up to date")

	// ball pivoting keeps every input point
	test.That(t, mesh("--method", "bpa"), test.ShouldContainSubstring, "Wrote")
	bpa, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bpa.Vertices, test.ShouldHaveLength, 1500)

	test.That(t, mesh("--method", "bpa", "--simplify", "100"), test.ShouldContainSubstring, "Wrote")
	small, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(small.Triangles), test.ShouldBeLessThan, len(bpa.Triangles))
	test.That(t, mesh("--method", "bpa", "--simplify", "100"), test.ShouldContainSubstring, "up to date")

	test.That(t, mesh(), test.ShouldContainSubstring, "Wrote")
	again, err := meshio.Read(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Triangles, test.ShouldHaveLength, len(full.Triangles))
}

func TestMeshCommandDefaultsAndWarnings(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "plain.ply"), pointcloud.MakeTestSphere(1000, 1, false, false))

	out, errOut, err := runApp(t, "mesh", "--input", input, "--format", "stl")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Wrote")
	test.That(t, errOut, test.ShouldContainSubstring, "no colors")
	_, err = os.Stat(filepath.Join(dir, "plain_poisson.stl"))
	test.That(t, err, test.ShouldBeNil)
}

func TestMeshCommandFailures(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runApp(t, "mesh", "--input", filepath.Join(dir, "missing.ply"), "--quiet")
	test.That(t, ExitCode(err), test.ShouldEqual, ExitLoad)

	line := writeCloud(t, filepath.Join(dir, "line.ply"), lineCloud(t))
	_, _, err = runApp(t, "mesh", "--input", line, "--quiet")
	test.That(t, ExitCode(err), test.ShouldEqual, ExitReconstruction)
	_, statErr := os.Stat(filepath.Join(dir, "line_poisson.obj"))
	test.That(t, errors.Is(statErr, os.ErrNotExist), test.ShouldBeTrue)

	ball := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(500, 1, true, false))
	_, _, err = runApp(t, "mesh", "--input", ball, "--method", "alpha", "--quiet",
		"--output", filepath.Join(dir, "no", "such", "dir", "ball.obj"))
	test.That(t, ExitCode(err), test.ShouldEqual, ExitWrite)

	_, _, err = runApp(t, "mesh", "--input", ball, "--method", "marching", "--quiet")
	test.That(t, ExitCode(err), test.ShouldEqual, ExitFailure)
}

func TestMeshCommandUsesConfig(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(1000, 1, true, true))
	cfgPath := filepath.Join(dir, "splatmesh.json")
	test.That(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`{
		"meshing": {"method": "bpa", "format": "ply", "output_dir": %q},
		"log": {"file": %q}
	}`, filepath.Join(dir, "meshes"), filepath.Join(dir, "splatmesh.log"))), 0o600), test.ShouldBeNil)

	_, _, err := runApp(t, "--config", cfgPath, "--debug", "mesh", "--input", input, "--quiet")
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dir, "meshes", "ball_bpa.ply"))
	test.That(t, err, test.ShouldBeNil)

	//nolint:gosec
	logs, err := os.ReadFile(filepath.Join(dir, "splatmesh.log"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logs), test.ShouldContainSubstring, "reconstructed surface")
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	inputs := filepath.Join(dir, "clouds")
	test.That(t, os.Mkdir(inputs, 0o755), test.ShouldBeNil)
	writeCloud(t, filepath.Join(inputs, "a.ply"), pointcloud.MakeTestSphere(800, 1, true, false))
	writeCloud(t, filepath.Join(inputs, "b.pcd"), pointcloud.MakeTestSphere(900, 2, true, false))
	test.That(t, os.WriteFile(filepath.Join(inputs, "notes.txt"), []byte("skip me"), 0o600), test.ShouldBeNil)

	outputs := filepath.Join(dir, "meshes")
	out, _, err := runApp(t, "batch", "--input-dir", inputs, "--output-dir", outputs, "--method", "alpha", "--jobs", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Meshing 2 inputs (2 jobs")
	test.That(t, strings.Count(out, "built"), test.ShouldBeGreaterThanOrEqualTo, 2)
	for _, name := range []string{"a_alpha.obj", "b_alpha.obj"} {
		_, err := os.Stat(filepath.Join(outputs, name))
		test.That(t, err, test.ShouldBeNil)
	}

	out, _, err = runApp(t, "batch", "--input-dir", inputs, "--output-dir", outputs, "--method", "alpha")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "cached")
}

func TestBatchCommandAllCombinations(t *testing.T) {
	dir := t.TempDir()
	inputs := filepath.Join(dir, "clouds")
	test.That(t, os.Mkdir(inputs, 0o755), test.ShouldBeNil)
	writeCloud(t, filepath.Join(inputs, "ball.ply"), pointcloud.MakeTestSphere(600, 1, true, true))

	outputs := filepath.Join(dir, "meshes")
	_, _, err := runApp(t, "batch", "--input-dir", inputs, "--output-dir", outputs, "--all")
	test.That(t, err, test.ShouldBeNil)
	for _, method := range reconstruct.Methods {
		for _, format := range meshio.Formats {
			_, err := os.Stat(filepath.Join(outputs, "ball_"+string(method)+format.Extension()))
			test.That(t, err, test.ShouldBeNil)
		}
	}
}

func TestBatchCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(600, 1, true, false))
	writeCloud(t, filepath.Join(dir, "line.ply"), lineCloud(t))

	outputs := filepath.Join(dir, "meshes")
	out, errOut, err := runApp(t, "batch", "--input-dir", dir, "--output-dir", outputs, "--method", "alpha")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "1 of 2 jobs failed")
	test.That(t, ExitCode(err), test.ShouldEqual, ExitReconstruction)
	test.That(t, errOut, test.ShouldContainSubstring, "line_alpha.obj")
	test.That(t, out, test.ShouldContainSubstring, "failed")
	_, err = os.Stat(filepath.Join(outputs, "ball_alpha.obj"))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = runApp(t, "batch", "--input-dir", outputs, "--output-dir", dir)
	test.That(t, err, test.ShouldNotBeNil)
}

const splatPLY = `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property float f_dc_0
property float f_dc_1
property float f_dc_2
end_header
0 0 0 0 0 0
1 0 0 -10 -10 -10
0 1 0 10 10 10
`

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "splat.ply")
	test.That(t, os.WriteFile(in, []byte(splatPLY), 0o600), test.ShouldBeNil)
	out := filepath.Join(dir, "rgb.ply")

	stdout, _, err := runApp(t, "convert", in, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "Converted SH coefficients of 3 points")

	cloud, err := pointcloud.NewFromFile(out, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
	r, g, b := pointcloud.RGB255(cloud.Color(0))
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{128, 128, 128})
	r, _, _ = pointcloud.RGB255(cloud.Color(1))
	test.That(t, r, test.ShouldEqual, 0)
	r, _, _ = pointcloud.RGB255(cloud.Color(2))
	test.That(t, r, test.ShouldEqual, 255)

	_, _, err = runApp(t, "convert", in)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(1000, 1, true, false))

	out, _, err := runApp(t, "info", input)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "point cloud")
	test.That(t, out, test.ShouldContainSubstring, "1000")
	test.That(t, out, test.ShouldContainSubstring, "Mean spacing")

	_, _, err = runApp(t, "mesh", "--input", input, "--quiet")
	test.That(t, err, test.ShouldBeNil)
	out, _, err = runApp(t, "info", filepath.Join(dir, "ball_poisson.obj"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Watertight")
	test.That(t, out, test.ShouldContainSubstring, "Surface area")

	_, _, err = runApp(t, "info", filepath.Join(dir, "missing.pcd"))
	test.That(t, ExitCode(err), test.ShouldEqual, ExitLoad)
}

func TestViewCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeCloud(t, filepath.Join(dir, "ball.ply"), pointcloud.MakeTestSphere(800, 1, true, false))
	snapshot := filepath.Join(dir, "view.png")

	out, _, err := runApp(t, "view", "--input", input, "--mesh-dir", filepath.Join(dir, "meshes"),
		"--method", "alpha", "--format", "obj", "--background", "black", "--simplify", "400",
		"--snapshot", snapshot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Point cloud: 800 points")
	test.That(t, out, test.ShouldContainSubstring, "Dimensions:")
	_, err = os.Stat(snapshot)
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dir, "meshes", "ball_alpha.obj"))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = runApp(t, "view", "--input", input, "--background", "plaid")
	test.That(t, err, test.ShouldNotBeNil)
}
