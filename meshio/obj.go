package meshio

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/splatmesh/splatmesh/mesh"
)

type objWriter struct{}

func (objWriter) Format() Format            { return FormatOBJ }
func (objWriter) SupportsVertexColor() bool { return true }

func (objWriter) Write(path string, m *mesh.Mesh) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteOBJ(f, m)
}

// WriteOBJ writes the mesh as Wavefront OBJ. Vertex colors use the common "v x y z r g b"
// extension with channels in [0, 1].
func WriteOBJ(out io.Writer, m *mesh.Mesh) error {
	w := bufio.NewWriter(out)
	ff := func(f float64) string {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if _, err := w.WriteString("# splatmesh\n"); err != nil {
		return err
	}
	for i, v := range m.Vertices {
		line := "v " + ff(v.X) + " " + ff(v.Y) + " " + ff(v.Z)
		if m.HasColors() {
			c := m.Colors[i]
			line += " " + ff(c.R) + " " + ff(c.G) + " " + ff(c.B)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	for _, n := range m.Normals {
		if _, err := w.WriteString("vn " + ff(n.X) + " " + ff(n.Y) + " " + ff(n.Z) + "\n"); err != nil {
			return err
		}
	}
	for _, tri := range m.Triangles {
		var line string
		if m.HasNormals() {
			line = "f " + objCorner(tri[0], true) + " " + objCorner(tri[1], true) + " " + objCorner(tri[2], true)
		} else {
			line = "f " + objCorner(tri[0], false) + " " + objCorner(tri[1], false) + " " + objCorner(tri[2], false)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

func objCorner(idx int, withNormal bool) string {
	s := strconv.Itoa(idx + 1)
	if withNormal {
		return s + "//" + s
	}
	return s
}

// ReadOBJ reads vertices, optional vertex colors and normals, and faces from a Wavefront OBJ
// stream. Polygons are fan triangulated. Normals are kept only when there is one per vertex.
func ReadOBJ(in io.Reader) (*mesh.Mesh, error) {
	var (
		verts   []r3.Vector
		colors  []colorful.Color
		normals []r3.Vector
		tris    [][3]int
	)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			vals, err := parseFloats(fields[1:])
			if err != nil || (len(vals) != 3 && len(vals) != 4 && len(vals) != 6 && len(vals) != 7) {
				return nil, errors.Errorf("line %d: bad vertex %q", lineNo, scanner.Text())
			}
			verts = append(verts, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
			if len(vals) >= 6 {
				rgb := vals[len(vals)-3:]
				colors = append(colors, colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]})
			}
		case "vn":
			vals, err := parseFloats(fields[1:])
			if err != nil || len(vals) != 3 {
				return nil, errors.Errorf("line %d: bad normal %q", lineNo, scanner.Text())
			}
			normals = append(normals, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
		case "f":
			if len(fields) < 4 {
				return nil, errors.Errorf("line %d: face needs at least 3 corners", lineNo)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, c := range fields[1:] {
				idx, err := objIndex(c, len(verts))
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
				corners = append(corners, idx)
			}
			for i := 1; i+1 < len(corners); i++ {
				tris = append(tris, [3]int{corners[0], corners[i], corners[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	m := mesh.New(verts, tris)
	if len(colors) == len(verts) && len(colors) > 0 {
		m.Colors = colors
	}
	if len(normals) == len(verts) && len(normals) > 0 {
		m.Normals = normals
	}
	return m, m.Validate()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// objIndex resolves the vertex part of a face corner ("7", "7/2", "7//3", "-1") to a 0-based index.
func objIndex(corner string, numVerts int) (int, error) {
	if slash := strings.IndexByte(corner, '/'); slash >= 0 {
		corner = corner[:slash]
	}
	idx, err := strconv.Atoi(corner)
	if err != nil {
		return 0, errors.Wrapf(err, "bad face index %q", corner)
	}
	switch {
	case idx > 0:
		idx--
	case idx < 0:
		idx += numVerts
	default:
		return 0, errors.New("face index 0 is invalid")
	}
	if idx < 0 || idx >= numVerts {
		return 0, errors.Errorf("face index %s out of range", corner)
	}
	return idx, nil
}

func readOBJFile(path string) (*mesh.Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadOBJ(f)
}
