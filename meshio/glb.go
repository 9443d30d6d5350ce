package meshio

import (
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
)

type glbWriter struct{}

func (glbWriter) Format() Format            { return FormatGLB }
func (glbWriter) SupportsVertexColor() bool { return true }

// Write stores the mesh as a single primitive of a binary glTF document. Colors go to COLOR_0
// as normalized unsigned bytes.
func (glbWriter) Write(path string, m *mesh.Mesh) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "splatmesh"

	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
	}
	indices := make([]uint32, 0, 3*len(m.Triangles))
	for _, tri := range m.Triangles {
		indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}

	attributes := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(doc, positions),
	}
	if m.HasNormals() {
		normals := make([][3]float32, len(m.Normals))
		for i, n := range m.Normals {
			n = n.Normalize()
			normals[i] = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		}
		attributes[gltf.NORMAL] = modeler.WriteNormal(doc, normals)
	}
	if m.HasColors() {
		colors := make([][4]uint8, len(m.Colors))
		for i, c := range m.Colors {
			r, g, b := pointcloud.RGB255(c)
			colors[i] = [4]uint8{r, g, b, 255}
		}
		attributes[gltf.COLOR_0] = modeler.WriteColor(doc, colors)
	}

	prim := &gltf.Primitive{
		Attributes: attributes,
		Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
		Material:   gltf.Index(0),
	}
	doc.Materials = []*gltf.Material{{
		Name: "vertex-color",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode:   gltf.AlphaOpaque,
		DoubleSided: true,
	}}
	doc.Meshes = []*gltf.Mesh{{Name: "mesh", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return gltf.SaveBinary(doc, path)
}

// readGLBFile merges the triangle primitives of every mesh in a glTF document. Node transforms
// are not applied.
func readGLBFile(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	out := &mesh.Mesh{}
	allColored, allNormals := true, true
	var colors []colorful.Color
	var normals []r3.Vector
	for _, gm := range doc.Meshes {
		for _, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				return nil, errors.Errorf("mesh %q has a primitive without positions", gm.Name)
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, err
			}
			base := len(out.Vertices)
			for _, p := range positions {
				out.Vertices = append(out.Vertices, r3.Vector{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
			}

			if colIdx, ok := prim.Attributes[gltf.COLOR_0]; ok && allColored {
				rgba, err := modeler.ReadColor(doc, doc.Accessors[colIdx], nil)
				if err != nil {
					return nil, err
				}
				for _, c := range rgba {
					colors = append(colors, pointcloud.ColorFromRGB255(c[0], c[1], c[2]))
				}
			} else {
				allColored = false
			}
			if nIdx, ok := prim.Attributes[gltf.NORMAL]; ok && allNormals {
				ns, err := modeler.ReadNormal(doc, doc.Accessors[nIdx], nil)
				if err != nil {
					return nil, err
				}
				for _, n := range ns {
					normals = append(normals, r3.Vector{X: float64(n[0]), Y: float64(n[1]), Z: float64(n[2])})
				}
			} else {
				allNormals = false
			}

			if prim.Indices == nil {
				for i := 0; i+2 < len(positions); i += 3 {
					out.Triangles = append(out.Triangles, [3]int{base + i, base + i + 1, base + i + 2})
				}
				continue
			}
			indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, err
			}
			for i := 0; i+2 < len(indices); i += 3 {
				out.Triangles = append(out.Triangles,
					[3]int{base + int(indices[i]), base + int(indices[i+1]), base + int(indices[i+2])})
			}
		}
	}
	if allColored && len(colors) == len(out.Vertices) && len(colors) > 0 {
		out.Colors = colors
	}
	if allNormals && len(normals) == len(out.Vertices) && len(normals) > 0 {
		out.Normals = normals
	}
	return out, out.Validate()
}
