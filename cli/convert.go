package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/pointcloud"
)

// ConvertAction writes a point cloud with its colors resolved from SH coefficients when needed.
func ConvertAction(c *cli.Context) (err error) {
	if c.NArg() != 2 {
		return errors.New("convert needs an input and an output path")
	}
	rt, err := newCmdEnv(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, rt.close()) }()

	in, out := c.Args().Get(0), c.Args().Get(1)
	cloud, err := pointcloud.NewFromFile(in, rt.logger)
	if err != nil {
		return err
	}
	fromSH := !cloud.MetaData().HasColor && cloud.MetaData().HasSH
	resolved, hasColor := pointcloud.ResolveColors(cloud)
	if err := pointcloud.WriteToFile(resolved, out); err != nil {
		return errors.Wrapf(err, "cannot write %q", out)
	}
	switch {
	case fromSH:
		printf(c.App.Writer, "Converted SH coefficients of %d points to RGB, wrote %s", resolved.Size(), out)
	case hasColor:
		printf(c.App.Writer, "Point cloud already has colors, wrote %s", out)
	default:
		warningf(c.App.ErrWriter, "point cloud has neither colors nor SH coefficients")
		printf(c.App.Writer, "Wrote %s", out)
	}
	return nil
}
