package pipeline

import (
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/samber/lo"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// TransferColor returns a copy of m with vertex colors taken from source. Methods that keep the
// input points as vertices get an exact copy by index; the others take, for every vertex, the
// color of the nearest source point. Without source colors the mesh is returned uncolored.
func TransferColor(source *pointcloud.PointCloud, m *mesh.Mesh, method reconstruct.Method, logger logging.Logger) *mesh.Mesh {
	out := *m
	out.Colors = nil
	if !source.MetaData().HasColor {
		return &out
	}

	if method.PreservesPointIdentity() {
		if len(m.Vertices) == source.Size() {
			out.Colors = append([]colorful.Color(nil), source.Colors()...)
			return &out
		}
		logger.Warnw("mesh vertices do not match the cloud, falling back to nearest neighbor colors",
			"method", method, "vertices", len(m.Vertices), "points", source.Size())
	}

	tree := pointcloud.ToKDTree(source)
	out.Colors = lo.Map(m.Vertices, func(v r3.Vector, _ int) colorful.Color {
		nearest, _ := tree.Nearest(v)
		return source.Color(nearest.Index)
	})
	return &out
}
