package meshio

import (
	"os"

	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
)

type plyWriter struct{}

func (plyWriter) Format() Format            { return FormatPLY }
func (plyWriter) SupportsVertexColor() bool { return true }

func (plyWriter) Write(path string, m *mesh.Mesh) (err error) {
	cloud, err := pointcloud.New(m.Vertices, pointcloud.Attributes{Colors: m.Colors, Normals: m.Normals})
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	faces := m.Triangles
	if faces == nil {
		faces = [][3]int{}
	}
	return pointcloud.WritePLY(f, cloud, faces)
}

func readPLYFile(path string) (*mesh.Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cloud, faces, err := pointcloud.DecodePLY(f)
	if err != nil {
		return nil, err
	}
	m := mesh.New(cloud.Positions(), faces)
	m.Colors = cloud.Colors()
	m.Normals = cloud.Normals()
	return m, m.Validate()
}
