package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

// InfoAction prints statistics of a point cloud or mesh. PLY files with faces are meshes.
func InfoAction(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("info needs exactly one file")
	}
	rt, err := newCmdEnv(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, rt.close()) }()

	path := c.Args().First()
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetStyle(table.StyleLight)
	t.SetTitle(filepath.Base(path))

	ext := strings.ToLower(filepath.Ext(path))
	if _, ferr := meshio.FormatFromPath(path); ferr == nil {
		m, err := meshio.Read(path)
		if err != nil && ext != ".ply" {
			return err
		}
		if err == nil && len(m.Triangles) > 0 {
			meshInfo(t, m)
			t.Render()
			return nil
		}
	}
	if err := cloudInfo(t, path, rt.logger); err != nil {
		return err
	}
	t.Render()
	return nil
}

func boundsRows(t table.Writer, b spatialmath.AABB) {
	size := b.Size()
	t.AppendRow(table.Row{"Min", fmt.Sprintf("%.4f %.4f %.4f", b.Min.X, b.Min.Y, b.Min.Z)})
	t.AppendRow(table.Row{"Max", fmt.Sprintf("%.4f %.4f %.4f", b.Max.X, b.Max.Y, b.Max.Z)})
	t.AppendRow(table.Row{"Dimensions", fmt.Sprintf("%.4f x %.4f x %.4f", size.X, size.Y, size.Z)})
}

func meshInfo(t table.Writer, m *mesh.Mesh) {
	stats := m.ComputeStats()
	t.AppendRow(table.Row{"Kind", "mesh"})
	t.AppendRow(table.Row{"Vertices", stats.Vertices})
	t.AppendRow(table.Row{"Triangles", stats.Triangles})
	t.AppendRow(table.Row{"Vertex colors", stats.HasColors})
	t.AppendRow(table.Row{"Vertex normals", m.Normals != nil})
	t.AppendRow(table.Row{"Surface area", fmt.Sprintf("%.4f", stats.Area)})
	t.AppendRow(table.Row{"Watertight", stats.Watertight})
	t.AppendRow(table.Row{"Boundary edges", stats.BoundaryEdges})
	t.AppendRow(table.Row{"Boundary loops", stats.BoundaryLoops})
	t.AppendRow(table.Row{"Components", stats.Components})
	boundsRows(t, m.Bounds())
}

func cloudInfo(t table.Writer, path string, logger logging.Logger) error {
	cloud, err := pointcloud.NewFromFile(path, logger)
	if err != nil {
		return err
	}
	meta := cloud.MetaData()
	t.AppendRow(table.Row{"Kind", "point cloud"})
	t.AppendRow(table.Row{"Points", cloud.Size()})
	t.AppendRow(table.Row{"Colors", meta.HasColor})
	t.AppendRow(table.Row{"Normals", meta.HasNormals})
	t.AppendRow(table.Row{"SH coefficients", meta.HasSH})
	if spacing, err := pointcloud.MeanSpacing(cloud, pointcloud.ToKDTree(cloud)); err == nil {
		t.AppendRow(table.Row{"Mean spacing", fmt.Sprintf("%.5f", spacing)})
	}
	boundsRows(t, meta.Bounds)
	return nil
}
