package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
)

// STL has no vertex attributes, so colors and normals never reach the file.
type stlWriter struct{}

func (stlWriter) Format() Format            { return FormatSTL }
func (stlWriter) SupportsVertexColor() bool { return false }

func (stlWriter) Write(path string, m *mesh.Mesh) error {
	return render.SaveSTL(path, toSDFTriangles(m))
}

func toSDFTriangles(m *mesh.Mesh) []*sdf.Triangle3 {
	vec := func(p r3.Vector) v3.Vec {
		return v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	}
	tris := make([]*sdf.Triangle3, 0, len(m.Triangles))
	for _, tri := range m.Triangles {
		tris = append(tris, &sdf.Triangle3{
			vec(m.Vertices[tri[0]]),
			vec(m.Vertices[tri[1]]),
			vec(m.Vertices[tri[2]]),
		})
	}
	return tris
}

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// ReadSTL reads a binary or ascii STL file. Corners with identical coordinates are welded into
// a single vertex so the result is an indexed mesh.
func ReadSTL(in io.Reader) (*mesh.Mesh, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	if len(data) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if uint64(len(data)) == stlHeaderSize+4+uint64(n)*stlTriangleSize {
			return readSTLBinary(data[stlHeaderSize+4:], int(n))
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return readSTLASCII(data)
	}
	return nil, errors.New("not a binary or ascii STL file")
}

type stlWelder struct {
	index map[[3]float32]int
	m     *mesh.Mesh
}

func newSTLWelder() *stlWelder {
	return &stlWelder{index: map[[3]float32]int{}, m: &mesh.Mesh{}}
}

func (w *stlWelder) vertex(v [3]float32) int {
	idx, ok := w.index[v]
	if !ok {
		idx = len(w.m.Vertices)
		w.m.Vertices = append(w.m.Vertices, r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])})
		w.index[v] = idx
	}
	return idx
}

func readSTLBinary(data []byte, n int) (*mesh.Mesh, error) {
	w := newSTLWelder()
	w.m.Triangles = make([][3]int, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*stlTriangleSize:]
		var tri [3]int
		for v := range tri {
			var vert [3]float32
			for c := range vert {
				const start = 3 * 4 // skip the facet normal
				vert[c] = math.Float32frombits(binary.LittleEndian.Uint32(rec[start+12*v+4*c:]))
			}
			tri[v] = w.vertex(vert)
		}
		w.m.Triangles = append(w.m.Triangles, tri)
	}
	return w.m, nil
}

func readSTLASCII(data []byte) (*mesh.Mesh, error) {
	w := newSTLWelder()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var corners []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "outer":
			corners = corners[:0]
		case "vertex":
			vals, err := parseFloats(fields[1:])
			if err != nil || len(vals) != 3 {
				return nil, errors.Errorf("line %d: bad vertex %q", lineNo, scanner.Text())
			}
			corners = append(corners, w.vertex([3]float32{float32(vals[0]), float32(vals[1]), float32(vals[2])}))
		case "endloop":
			if len(corners) != 3 {
				return nil, errors.Errorf("line %d: facet has %d vertices", lineNo, len(corners))
			}
			w.m.Triangles = append(w.m.Triangles, [3]int{corners[0], corners[1], corners[2]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return w.m, nil
}

func readSTLFile(path string) (*mesh.Mesh, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadSTL(bytes.NewReader(data))
}
