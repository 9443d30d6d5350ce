package cli

import (
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/viewer"
)

const watchPollInterval = 250 * time.Millisecond

// viewerConfig merges the viewer defaults, the config file and the flags.
func (rt *cmdEnv) viewerConfig(c *cli.Context) (viewer.Config, error) {
	cfg := viewer.DefaultConfig(c.String(flagInput))
	file := rt.cfg.Viewer
	if file.MeshDir != "" {
		cfg.MeshDir = file.MeshDir
	}
	if file.Width > 0 {
		cfg.Width = file.Width
	}
	if file.Height > 0 {
		cfg.Height = file.Height
	}
	if file.SimplifyTarget > 0 {
		cfg.PostProcess.SimplifyTarget = file.SimplifyTarget
	}
	if file.DebounceMillis > 0 {
		cfg.Debounce = time.Duration(file.DebounceMillis) * time.Millisecond
	}
	background := file.Background
	if c.IsSet(flagBackground) {
		background = c.String(flagBackground)
	}
	var err error
	if cfg.Background, err = viewer.ParseBackground(background); err != nil {
		return cfg, err
	}
	if c.IsSet(flagMeshDir) {
		cfg.MeshDir = c.String(flagMeshDir)
	}
	if c.IsSet(flagMethod) || rt.cfg.Meshing.Method != "" {
		if cfg.Method, err = rt.method(c); err != nil {
			return cfg, err
		}
	}
	if cfg.Format, err = rt.format(c, meshio.FormatGLB); err != nil {
		return cfg, err
	}
	if cfg.PostProcess, err = postProcess(c, cfg.PostProcess); err != nil {
		return cfg, err
	}
	cfg.Params = rt.cfg.Params()
	return cfg, cfg.Validate()
}

// ViewAction runs a headless viewer session.
func ViewAction(c *cli.Context) (err error) {
	rt, err := newCmdEnv(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, rt.close()) }()

	cfg, err := rt.viewerConfig(c)
	if err != nil {
		return err
	}
	session, err := viewer.NewSession(cfg, rt.logger)
	if err != nil {
		return err
	}
	defer session.Close()
	if err := session.SetScale(c.Float64(flagScale)); err != nil {
		return err
	}

	printf(c.App.Writer, "Point cloud: %d points", session.Cloud().Size())
	session.Select(cfg.Method, cfg.Format)
	status, err := session.Wait(c.Context)
	if err != nil {
		return err
	}
	if err := presentStatus(c, session, status); err != nil && !c.Bool(flagWatch) {
		return err
	}
	if !c.Bool(flagWatch) {
		return nil
	}

	if err := session.Watch(); err != nil {
		return err
	}
	infof(c.App.Writer, "watching %s, interrupt to stop", cfg.InputPath)
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	last := status.Seq
	for {
		select {
		case <-c.Context.Done():
			return nil
		case <-ticker.C:
		}
		status := session.Status()
		if status.Seq == last || status.State == viewer.StateBuilding {
			continue
		}
		last = status.Seq
		//nolint:errcheck
		presentStatus(c, session, status)
	}
}

// presentStatus prints the outcome of a build and refreshes the snapshot.
func presentStatus(c *cli.Context, session *viewer.Session, status viewer.Status) error {
	if status.State == viewer.StateFailed {
		Errorf(c.App.ErrWriter, "mesh build failed: %s", status.Message)
	} else if view := session.Current(); view != nil {
		x, y, z, _ := session.Dimensions()
		source := "cached"
		if view.Artifact.Rebuilt {
			source = "built"
		}
		printf(c.App.Writer, "Mesh (%s %s, %s): %s", view.Method, view.Format, source, status.Message)
		printf(c.App.Writer, "Dimensions: %.3f x %.3f x %.3f", x, y, z)
	}
	if path := c.String(flagSnapshot); path != "" {
		if err := session.Snapshot(path); err != nil {
			return err
		}
		printf(c.App.Writer, "Snapshot written to %s", path)
	}
	return status.Err
}
