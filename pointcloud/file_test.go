package pointcloud

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/splatmesh/splatmesh/logging"
)

const asciiSplatPLY = `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property float f_dc_0
property float f_dc_1
property float f_dc_2
property float opacity
end_header
0 0 0 0 0 0 1
1 0 0 -10 -10 -10 1
0 1 0 10 10 10 1
`

func TestReadPLYWithSH(t *testing.T) {
	cloud, err := ReadPLY(bytes.NewBufferString(asciiSplatPLY))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 3)
	test.That(t, cloud.MetaData().HasSH, test.ShouldBeTrue)
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeFalse)
	test.That(t, cloud.SH()[1], test.ShouldResemble, SH{-10, -10, -10})
	test.That(t, cloud.Position(2), test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 0})

	resolved, hasColor := ResolveColors(cloud)
	test.That(t, hasColor, test.ShouldBeTrue)
	test.That(t, resolved.Color(0), test.ShouldResemble, colorful.Color{R: 0.5, G: 0.5, B: 0.5})
	test.That(t, resolved.Color(1), test.ShouldResemble, colorful.Color{})
	test.That(t, resolved.Color(2), test.ShouldResemble, colorful.Color{R: 1, G: 1, B: 1})
}

func TestPLYRoundTrip(t *testing.T) {
	grid := MakeTestGrid(4, 3, 0.5)
	faces := [][3]int{{0, 1, 4}, {1, 5, 4}}
	var buf bytes.Buffer
	test.That(t, WritePLY(&buf, grid, faces), test.ShouldBeNil)

	cloud, readFaces, err := DecodePLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, grid.Size())
	test.That(t, readFaces, test.ShouldResemble, faces)
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
	test.That(t, cloud.MetaData().HasNormals, test.ShouldBeTrue)
	for i := 0; i < grid.Size(); i++ {
		test.That(t, cloud.Position(i).Distance(grid.Position(i)), test.ShouldBeLessThan, 1e-6)
		test.That(t, cloud.Normal(i), test.ShouldResemble, r3.Vector{Z: 1})
		wantR, wantG, wantB := RGB255(grid.Color(i))
		gotR, gotG, gotB := RGB255(cloud.Color(i))
		test.That(t, []uint8{gotR, gotG, gotB}, test.ShouldResemble, []uint8{wantR, wantG, wantB})
	}
}

func TestReadPLYMalformed(t *testing.T) {
	for _, data := range []string{
		"not a ply file at all",
		"ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\n",
		"ply\nformat binary_little_endian 1.0\nelement vertex 2\nproperty float x\nproperty float y\n" +
			"property float z\nend_header\n\x00\x00",
		"ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty quad x\nend_header\n",
		"ply\nformat utf16 1.0\nelement vertex 1\nproperty float x\nend_header\n",
		"ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nend_header\n",
	} {
		_, err := ReadPLY(bytes.NewBufferString(data))
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestReadBinarySplat(t *testing.T) {
	positions := MakeTestSphere(50, 2, false, false).Positions()
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			var buf bytes.Buffer
			test.That(t, WriteTestSplat(&buf, positions, SH{DC0: 0, DC1: -10, DC2: 10}, order), test.ShouldBeNil)

			cloud, err := ReadPLY(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, cloud.Size(), test.ShouldEqual, len(positions))
			meta := cloud.MetaData()
			test.That(t, meta.HasSH, test.ShouldBeTrue)
			test.That(t, meta.HasColor, test.ShouldBeFalse)
			// all-zero normals carry no orientation
			test.That(t, meta.HasNormals, test.ShouldBeFalse)
			for i, p := range positions {
				test.That(t, cloud.Position(i).Distance(p), test.ShouldBeLessThan, 1e-6)
			}

			resolved, hasColor := ResolveColors(cloud)
			test.That(t, hasColor, test.ShouldBeTrue)
			r, g, b := RGB255(resolved.Color(7))
			test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{128, 0, 255})
		})
	}
}

func TestReadBinaryPLYMixedTypes(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_big_endian 1.0\ncomment mixed\nelement vertex 3\n" +
		"property double x\nproperty double y\nproperty double z\nproperty float red\n" +
		"property float green\nproperty float blue\nelement face 1\n" +
		"property list uchar int vertex_indices\nproperty uchar flags\nend_header\n")
	for _, v := range [][6]float64{{0, 0, 0, 1, 0, 0}, {1, 0, 0, 0, 1, 0}, {0, 1, 0, 0, 0, 1}} {
		test.That(t, binary.Write(&buf, binary.BigEndian, v[:3]), test.ShouldBeNil)
		color := []float32{float32(v[3]), float32(v[4]), float32(v[5])}
		test.That(t, binary.Write(&buf, binary.BigEndian, color), test.ShouldBeNil)
	}
	buf.WriteByte(3)
	test.That(t, binary.Write(&buf, binary.BigEndian, []int32{0, 1, 2}), test.ShouldBeNil)
	buf.WriteByte(7)

	cloud, faces, err := DecodePLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Position(1), test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, cloud.Color(2), test.ShouldResemble, colorful.Color{B: 1})
	test.That(t, faces, test.ShouldResemble, [][3]int{{0, 1, 2}})
}

func TestPCDRoundTrip(t *testing.T) {
	grid := MakeTestGrid(3, 3, 0.125)
	for _, kind := range []PCDType{PCDAscii, PCDBinary} {
		var buf bytes.Buffer
		test.That(t, ToPCD(grid, &buf, kind), test.ShouldBeNil)
		cloud, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, grid.Size())
		test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
		for i := 0; i < grid.Size(); i++ {
			test.That(t, cloud.Position(i).Distance(grid.Position(i)), test.ShouldBeLessThan, 1e-5)
			wantR, _, _ := RGB255(grid.Color(i))
			gotR, _, _ := RGB255(cloud.Color(i))
			test.That(t, gotR, test.ShouldEqual, wantR)
		}
	}

	var buf bytes.Buffer
	test.That(t, ToPCD(grid, &buf, PCDCompressed), test.ShouldNotBeNil)
}

func TestFileRoundTripAndLoadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	grid := MakeTestGrid(4, 4, 1)

	for _, ext := range []string{".ply", ".pcd", ".las"} {
		path := filepath.Join(dir, "grid"+ext)
		test.That(t, WriteToFile(grid, path), test.ShouldBeNil)
		cloud, err := NewFromFile(path, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, grid.Size())
		test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
		for i := 0; i < grid.Size(); i++ {
			test.That(t, cloud.Position(i).Distance(grid.Position(i)), test.ShouldBeLessThan, 1e-2)
		}
	}

	test.That(t, WriteToFile(grid, filepath.Join(dir, "grid.xyz")), test.ShouldNotBeNil)

	var loadErr *LoadError
	_, err := NewFromFile(filepath.Join(dir, "missing.ply"), logger)
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
	test.That(t, loadErr.Path, test.ShouldEqual, filepath.Join(dir, "missing.ply"))

	_, err = NewFromFile(filepath.Join(dir, "cloud.obj"), logger)
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported")

	empty := filepath.Join(dir, "empty.pcd")
	emptyPCD := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 0\nHEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 0\nDATA ascii\n"
	test.That(t, os.WriteFile(empty, []byte(emptyPCD), 0o600), test.ShouldBeNil)
	_, err = NewFromFile(empty, logger)
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "empty")

	corrupt := filepath.Join(dir, "corrupt.pcd")
	test.That(t, os.WriteFile(corrupt, []byte("VERSION .7\nFIELDS a b\n"), 0o600), test.ShouldBeNil)
	_, err = NewFromFile(corrupt, logger)
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
}
