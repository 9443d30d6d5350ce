package meshio

import (
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
)

// Read loads a mesh file, choosing the parser from the file extension.
func Read(path string) (*mesh.Mesh, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	var m *mesh.Mesh
	switch f {
	case FormatOBJ:
		m, err = readOBJFile(path)
	case FormatGLB:
		m, err = readGLBFile(path)
	case FormatSTL:
		m, err = readSTLFile(path)
	case FormatPLY:
		m, err = readPLYFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s mesh %q", f, path)
	}
	return m, nil
}
