package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ReadPLY reads a point cloud from PLY data. Faces, if any, are ignored.
func ReadPLY(in io.Reader) (*PointCloud, error) {
	cloud, _, err := DecodePLY(in)
	return cloud, err
}

type plyProperty struct {
	name string
	typ  string
	// countType is set for list properties.
	countType string
}

func (p plyProperty) isList() bool {
	return p.countType != ""
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	elements []plyElement
}

func (h plyHeader) element(name string) (plyElement, bool) {
	for _, e := range h.elements {
		if e.name == name {
			return e, true
		}
	}
	return plyElement{}, false
}

// plyVertices holds the scalar vertex properties of a PLY file, one row per vertex.
type plyVertices struct {
	props []plyProperty
	rows  [][]float64
}

func (v plyVertices) column(name string) int {
	for i, p := range v.props {
		if p.name == name {
			return i
		}
	}
	return -1
}

// DecodePLY reads the vertex element of PLY data into a point cloud, with colors from
// red/green/blue, normals from nx/ny/nz and SH coefficients from f_dc_0..2 when present. It also
// returns the triangles of the face element; polygons with more than three corners are fanned.
// ASCII bodies are parsed by goply; binary bodies of either byte order are decoded directly.
func DecodePLY(in io.Reader) (*PointCloud, [][3]int, error) {
	r := bufio.NewReader(in)
	header, raw, err := readPLYHeader(r)
	if err != nil {
		return nil, nil, err
	}
	vertexElem, ok := header.element("vertex")
	if !ok || vertexElem.count == 0 {
		return nil, nil, errors.New("ply data has no vertices")
	}

	var (
		vertices plyVertices
		faces    [][3]int
	)
	switch header.format {
	case "ascii":
		vertices, faces, err = decodeASCIIPLY(io.MultiReader(strings.NewReader(raw), r), vertexElem)
	case "binary_little_endian":
		vertices, faces, err = decodeBinaryPLY(r, header, binary.LittleEndian)
	case "binary_big_endian":
		vertices, faces, err = decodeBinaryPLY(r, header, binary.BigEndian)
	default:
		err = errors.Errorf("unsupported ply format %q", header.format)
	}
	if err != nil {
		return nil, nil, err
	}
	cloud, err := plyCloud(vertices)
	if err != nil {
		return nil, nil, err
	}
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= cloud.Size() {
				return nil, nil, errors.Errorf("face %d references missing vertex %d", i, idx)
			}
		}
	}
	return cloud, faces, nil
}

// readPLYHeader parses the header and also returns its raw text, so an ASCII body can be handed
// to a parser that expects the whole file.
func readPLYHeader(r *bufio.Reader) (plyHeader, string, error) {
	var (
		header plyHeader
		raw    strings.Builder
	)
	for lineNum := 0; ; lineNum++ {
		line, err := r.ReadString('\n')
		raw.WriteString(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return header, "", errors.New("malformed ply data: header has no end_header")
			}
			return header, "", err
		}
		fields := strings.Fields(line)
		if lineNum == 0 {
			if len(fields) != 1 || fields[0] != "ply" {
				return header, "", errors.New("malformed ply data: missing ply magic")
			}
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return header, "", errors.Errorf("malformed ply format line %q", strings.TrimSpace(line))
			}
			header.format = fields[1]
		case "element":
			if len(fields) != 3 {
				return header, "", errors.Errorf("malformed ply element line %q", strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return header, "", errors.Errorf("invalid ply element count %q", fields[2])
			}
			header.elements = append(header.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(header.elements) == 0 {
				return header, "", errors.New("malformed ply data: property before element")
			}
			var prop plyProperty
			switch {
			case len(fields) == 5 && fields[1] == "list":
				prop = plyProperty{countType: fields[2], typ: fields[3], name: fields[4]}
				if plyTypeSize(prop.countType) == 0 {
					return header, "", errors.Errorf("unknown ply type %q", prop.countType)
				}
			case len(fields) == 3:
				prop = plyProperty{typ: fields[1], name: fields[2]}
			default:
				return header, "", errors.Errorf("malformed ply property line %q", strings.TrimSpace(line))
			}
			if plyTypeSize(prop.typ) == 0 {
				return header, "", errors.Errorf("unknown ply type %q", prop.typ)
			}
			last := &header.elements[len(header.elements)-1]
			last.props = append(last.props, prop)
		case "end_header":
			if header.format == "" {
				return header, "", errors.New("malformed ply data: missing format line")
			}
			return header, raw.String(), nil
		}
	}
}

func plyTypeSize(typ string) int {
	switch typ {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}

func plyIsFloat(typ string) bool {
	switch typ {
	case "float", "float32", "double", "float64":
		return true
	default:
		return false
	}
}

// plyScalar decodes one value of the given type from the front of b.
func plyScalar(b []byte, typ string, order binary.ByteOrder) float64 {
	switch typ {
	case "char", "int8":
		return float64(int8(b[0]))
	case "uchar", "uint8":
		return float64(b[0])
	case "short", "int16":
		return float64(int16(order.Uint16(b)))
	case "ushort", "uint16":
		return float64(order.Uint16(b))
	case "int", "int32":
		return float64(int32(order.Uint32(b)))
	case "uint", "uint32":
		return float64(order.Uint32(b))
	case "float", "float32":
		return float64(math.Float32frombits(order.Uint32(b)))
	default:
		return math.Float64frombits(order.Uint64(b))
	}
}

func decodeBinaryPLY(r io.Reader, header plyHeader, order binary.ByteOrder) (plyVertices, [][3]int, error) {
	var (
		vertices plyVertices
		faces    [][3]int
		buf      [8]byte
	)
	readScalar := func(typ string) (float64, error) {
		b := buf[:plyTypeSize(typ)]
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, err
		}
		return plyScalar(b, typ, order), nil
	}

	for _, elem := range header.elements {
		isVertex, isFace := elem.name == "vertex", elem.name == "face"
		if isVertex {
			vertices.props = scalarProps(elem)
			vertices.rows = make([][]float64, elem.count)
		}
		for i := 0; i < elem.count; i++ {
			var row []float64
			if isVertex {
				row = make([]float64, 0, len(vertices.props))
			}
			for _, prop := range elem.props {
				if !prop.isList() {
					v, err := readScalar(prop.typ)
					if err != nil {
						return vertices, nil, errors.Wrapf(err, "truncated ply %s %d", elem.name, i)
					}
					if isVertex {
						row = append(row, v)
					}
					continue
				}
				n, err := readScalar(prop.countType)
				if err != nil {
					return vertices, nil, errors.Wrapf(err, "truncated ply %s %d", elem.name, i)
				}
				if n < 0 {
					return vertices, nil, errors.Errorf("negative list length in ply %s %d", elem.name, i)
				}
				idxs := make([]int, int(n))
				for j := range idxs {
					v, err := readScalar(prop.typ)
					if err != nil {
						return vertices, nil, errors.Wrapf(err, "truncated ply %s %d", elem.name, i)
					}
					idxs[j] = int(v)
				}
				if isFace && isIndexList(prop.name) {
					faces = appendFan(faces, idxs)
				}
			}
			if isVertex {
				vertices.rows[i] = row
			}
		}
	}
	return vertices, faces, nil
}

func decodeASCIIPLY(in io.Reader, vertexElem plyElement) (vertices plyVertices, faces [][3]int, err error) {
	defer func() {
		// goply reports malformed input by panicking
		if r := recover(); r != nil {
			vertices, faces, err = plyVertices{}, nil, errors.Errorf("malformed ply data: %v", r)
		}
	}()
	ply := goply.New(bufio.NewReader(in))
	vertices.props = scalarProps(vertexElem)
	elems := ply.Elements("vertex")
	vertices.rows = make([][]float64, len(elems))
	for i, v := range elems {
		row := make([]float64, len(vertices.props))
		for j, prop := range vertices.props {
			f, err := cast.ToFloat64E(v[prop.name])
			if err != nil {
				return plyVertices{}, nil, errors.Wrapf(err, "vertex %d property %q", i, prop.name)
			}
			row[j] = f
		}
		vertices.rows[i] = row
	}

	for i, face := range ply.Elements("face") {
		raw, ok := face["vertex_indices"]
		if !ok {
			raw, ok = face["vertex_index"]
		}
		if !ok {
			return plyVertices{}, nil, errors.Errorf("face %d has no vertex_indices", i)
		}
		idxs, err := cast.ToIntSliceE(raw)
		if err != nil {
			return plyVertices{}, nil, errors.Wrapf(err, "face %d", i)
		}
		faces = appendFan(faces, idxs)
	}
	return vertices, faces, nil
}

func scalarProps(elem plyElement) []plyProperty {
	var props []plyProperty
	for _, p := range elem.props {
		if !p.isList() {
			props = append(props, p)
		}
	}
	return props
}

func isIndexList(name string) bool {
	return name == "vertex_indices" || name == "vertex_index"
}

func appendFan(faces [][3]int, idxs []int) [][3]int {
	for j := 1; j+1 < len(idxs); j++ {
		faces = append(faces, [3]int{idxs[0], idxs[j], idxs[j+1]})
	}
	return faces
}

// plyCloud assembles a cloud from decoded vertex rows. Normals that are all zero, as written by
// splat trainers that do not track them, are dropped.
func plyCloud(vertices plyVertices) (*PointCloud, error) {
	cols := func(names ...string) ([]int, bool) {
		idx := make([]int, len(names))
		for i, name := range names {
			if idx[i] = vertices.column(name); idx[i] < 0 {
				return nil, false
			}
		}
		return idx, true
	}
	xyz, ok := cols("x", "y", "z")
	if !ok {
		return nil, errors.New("ply vertices need x, y and z properties")
	}
	rgb, hasColor := cols("red", "green", "blue")
	nrm, hasNormals := cols("nx", "ny", "nz")
	dc, hasSH := cols("f_dc_0", "f_dc_1", "f_dc_2")
	floatColor := hasColor && plyIsFloat(vertices.props[rgb[0]].typ)

	n := len(vertices.rows)
	positions := make([]r3.Vector, n)
	var attrs Attributes
	if hasColor {
		attrs.Colors = make([]colorful.Color, n)
	}
	if hasNormals {
		attrs.Normals = make([]r3.Vector, n)
	}
	if hasSH {
		attrs.SH = make([]SH, n)
	}
	anyNormal := false
	for i, row := range vertices.rows {
		positions[i] = r3.Vector{X: row[xyz[0]], Y: row[xyz[1]], Z: row[xyz[2]]}
		if hasColor {
			attrs.Colors[i] = plyColor(floatColor, row[rgb[0]], row[rgb[1]], row[rgb[2]])
		}
		if hasNormals {
			attrs.Normals[i] = r3.Vector{X: row[nrm[0]], Y: row[nrm[1]], Z: row[nrm[2]]}
			anyNormal = anyNormal || attrs.Normals[i].Norm2() > 0
		}
		if hasSH {
			attrs.SH[i] = SH{DC0: row[dc[0]], DC1: row[dc[1]], DC2: row[dc[2]]}
		}
	}
	if hasNormals && !anyNormal {
		attrs.Normals = nil
	}
	return New(positions, attrs)
}

// plyColor interprets integer channels as 8-bit and floating point channels as [0, 1]. Floating
// point channels above 1 are taken to be 8-bit as well.
func plyColor(floatChannels bool, r, g, b float64) colorful.Color {
	if floatChannels && r <= 1 && g <= 1 && b <= 1 {
		return colorful.Color{R: r, G: g, B: b}.Clamped()
	}
	return colorful.Color{R: r / 255, G: g / 255, B: b / 255}.Clamped()
}

// WritePLY writes the cloud, and optionally triangles over its points, as binary little endian
// PLY. Colors are written as 8-bit channels.
func WritePLY(out io.Writer, cloud *PointCloud, faces [][3]int) error {
	meta := cloud.MetaData()
	var header strings.Builder
	header.WriteString("ply\nformat binary_little_endian 1.0\ncomment written by splatmesh\n")
	fmt.Fprintf(&header, "element vertex %d\n", cloud.Size())
	header.WriteString("property float x\nproperty float y\nproperty float z\n")
	if meta.HasNormals {
		header.WriteString("property float nx\nproperty float ny\nproperty float nz\n")
	}
	if meta.HasColor {
		header.WriteString("property uchar red\nproperty uchar green\nproperty uchar blue\n")
	}
	if faces != nil {
		fmt.Fprintf(&header, "element face %d\n", len(faces))
		header.WriteString("property list uchar int vertex_indices\n")
	}
	header.WriteString("end_header\n")

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(header.String()); err != nil {
		return err
	}
	buf := make([]byte, 0, 27)
	putFloat := func(f float64) {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(f)))
	}
	for i, p := range cloud.Positions() {
		buf = buf[:0]
		putFloat(p.X)
		putFloat(p.Y)
		putFloat(p.Z)
		if meta.HasNormals {
			n := cloud.Normal(i)
			putFloat(n.X)
			putFloat(n.Y)
			putFloat(n.Z)
		}
		if meta.HasColor {
			r, g, b := RGB255(cloud.Color(i))
			buf = append(buf, r, g, b)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	for _, f := range faces {
		buf = append(buf[:0], 3)
		for _, idx := range f {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(idx)))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
