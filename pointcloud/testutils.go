package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// MakeTestSphere returns n points spread evenly over a sphere of the given radius centered at
// the origin using a Fibonacci lattice. When colored is set, every point gets a color derived
// from its position so nearest neighbor lookups can be checked. Normals point outwards when
// withNormals is set.
func MakeTestSphere(n int, radius float64, colored, withNormals bool) *PointCloud {
	positions := make([]r3.Vector, n)
	var attrs Attributes
	if colored {
		attrs.Colors = make([]colorful.Color, n)
	}
	if withNormals {
		attrs.Normals = make([]r3.Vector, n)
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		unit := r3.Vector{X: math.Cos(theta) * r, Y: y, Z: math.Sin(theta) * r}
		positions[i] = unit.Mul(radius)
		if colored {
			attrs.Colors[i] = colorful.Color{R: (unit.X + 1) / 2, G: (unit.Y + 1) / 2, B: (unit.Z + 1) / 2}
		}
		if withNormals {
			attrs.Normals[i] = unit
		}
	}
	cloud, err := New(positions, attrs)
	if err != nil {
		panic(err)
	}
	return cloud
}

// MakeTestGrid returns an nx by ny grid of points in the z = 0 plane with the given spacing,
// ordered row by row, with +Z normals and a color gradient along x.
func MakeTestGrid(nx, ny int, spacing float64) *PointCloud {
	positions := make([]r3.Vector, 0, nx*ny)
	colors := make([]colorful.Color, 0, nx*ny)
	normals := make([]r3.Vector, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			positions = append(positions, r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing})
			colors = append(colors, colorful.Color{R: float64(i) / float64(max(nx-1, 1)), G: 0.5, B: 0.25})
			normals = append(normals, r3.Vector{Z: 1})
		}
	}
	cloud, err := New(positions, Attributes{Colors: colors, Normals: normals})
	if err != nil {
		panic(err)
	}
	return cloud
}

// splatRestCoefficients is the number of higher order SH coefficients in a degree 3 splat.
const splatRestCoefficients = 45

// WriteTestSplat writes positions as a binary Gaussian Splatting PLY in the given byte order.
// Every point gets the same DC coefficients and zero normals, as splat trainers write them.
func WriteTestSplat(out io.Writer, positions []r3.Vector, dc SH, order binary.ByteOrder) error {
	format := "binary_little_endian"
	if order == binary.BigEndian {
		format = "binary_big_endian"
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "ply\nformat %s 1.0\nelement vertex %d\n", format, len(positions))
	props := []string{"x", "y", "z", "nx", "ny", "nz", "f_dc_0", "f_dc_1", "f_dc_2"}
	for i := 0; i < splatRestCoefficients; i++ {
		props = append(props, fmt.Sprintf("f_rest_%d", i))
	}
	props = append(props, "opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3")
	for _, prop := range props {
		fmt.Fprintf(w, "property float %s\n", prop)
	}
	fmt.Fprint(w, "end_header\n")

	record := make([]float32, len(props))
	for _, p := range positions {
		clear(record)
		record[0], record[1], record[2] = float32(p.X), float32(p.Y), float32(p.Z)
		record[6], record[7], record[8] = float32(dc.DC0), float32(dc.DC1), float32(dc.DC2)
		record[len(record)-4] = 1
		if err := binary.Write(w, order, record); err != nil {
			return err
		}
	}
	return w.Flush()
}
