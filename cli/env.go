package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/config"
	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// cmdEnv is what every command needs: the merged configuration and a logger.
type cmdEnv struct {
	cfg     *config.Config
	logger  logging.Logger
	closers []func() error
}

func newCmdEnv(c *cli.Context) (*cmdEnv, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &cmdEnv{cfg: cfg}
	rt.logger = logging.NewCLILogger("splatmesh", c.App.ErrWriter, logging.CLILevel(cfg.Log.Level, c.Bool(flagDebug)))

	logFile := cfg.Log.File
	if c.IsSet(flagLogFile) {
		logFile = c.String(flagLogFile)
	}
	if logFile != "" {
		appender := logging.NewFileAppender(logFile, cfg.Log.MaxSizeMB)
		rt.logger.AddAppender(appender)
		rt.closers = append(rt.closers, appender.Close)
	}
	return rt, nil
}

func (rt *cmdEnv) close() error {
	var err error
	for _, closer := range rt.closers {
		err = multierr.Combine(err, closer())
	}
	return err
}

// method returns the method flag, falling back to the config.
func (rt *cmdEnv) method(c *cli.Context) (reconstruct.Method, error) {
	if c.IsSet(flagMethod) {
		return reconstruct.ParseMethod(c.String(flagMethod))
	}
	return rt.cfg.Method(), nil
}

// format returns the format flag, falling back to the config and then to def.
func (rt *cmdEnv) format(c *cli.Context, def meshio.Format) (meshio.Format, error) {
	if c.IsSet(flagFormat) {
		return meshio.ParseFormat(c.String(flagFormat))
	}
	if rt.cfg.Meshing.Format != "" {
		return rt.cfg.Format(), nil
	}
	return def, nil
}

// postProcess applies the post-processing flags on top of base.
func postProcess(c *cli.Context, base postprocess.Options) (postprocess.Options, error) {
	opts := base
	if c.Bool(flagNoCleanup) {
		opts.Cleanup = false
	}
	if c.IsSet(flagSimplify) {
		opts.Simplify, opts.SimplifyTarget = true, c.Int(flagSimplify)
	}
	if c.IsSet(flagFillHoles) {
		opts.FillHolesSize = c.Float64(flagFillHoles)
	}
	var err error
	if c.IsSet(flagSimplifyMethod) {
		if opts.SimplifyMethod, err = postprocess.ParseSimplifyMethod(c.String(flagSimplifyMethod)); err != nil {
			return opts, err
		}
	}
	if c.IsSet(flagOrigin) {
		if opts.Origin, err = postprocess.ParseOrigin(c.String(flagOrigin)); err != nil {
			return opts, err
		}
	}
	return opts, errors.Wrap(opts.Validate(), "invalid post-processing options")
}
