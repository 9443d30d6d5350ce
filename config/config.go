// Package config defines the splatmesh configuration file. Values set in the file are defaults;
// command line flags override them.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// Config is the whole configuration file.
type Config struct {
	ConfigFilePath string `json:"-"`

	Meshing Meshing `json:"meshing"`
	// Reconstruction holds the strategy attributes decoded into reconstruct.Params.
	Reconstruction map[string]interface{} `json:"reconstruction,omitempty"`
	Viewer         Viewer                 `json:"viewer"`
	Log            Log                    `json:"log"`

	params reconstruct.Params
}

// Meshing holds the defaults for mesh and batch runs.
type Meshing struct {
	Method    string      `json:"method,omitempty"`
	Format    string      `json:"format,omitempty"`
	OutputDir string      `json:"output_dir,omitempty"`
	Jobs      int         `json:"jobs,omitempty"`
	Post      PostProcess `json:"post_process"`
}

// PostProcess mirrors postprocess.Options with every field optional. Setting simplify_target
// turns simplification on.
type PostProcess struct {
	Cleanup        *bool    `json:"cleanup,omitempty"`
	SimplifyTarget *int     `json:"simplify_target,omitempty"`
	SimplifyMethod string   `json:"simplify_method,omitempty"`
	FillHolesSize  *float64 `json:"fill_holes_size,omitempty"`
	Origin         string   `json:"origin,omitempty"`
}

// Viewer holds the viewer defaults.
type Viewer struct {
	Background     string `json:"background,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	MeshDir        string `json:"mesh_dir,omitempty"`
	SimplifyTarget int    `json:"simplify_target,omitempty"`
	DebounceMillis int    `json:"debounce_ms,omitempty"`
}

// Log configures logging.
type Log struct {
	Level     *logging.Level `json:"level,omitempty"`
	File      string         `json:"file,omitempty"`
	MaxSizeMB int            `json:"max_size_mb,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{}
}

// Validate checks every section and decodes the reconstruction attributes.
func (c *Config) Validate() error {
	if err := c.Meshing.Validate("meshing"); err != nil {
		return err
	}
	if err := c.Viewer.Validate("viewer"); err != nil {
		return err
	}
	if c.Log.MaxSizeMB < 0 {
		return utils.NewConfigValidationError("log", errors.New("max_size_mb must not be negative"))
	}
	params, err := reconstruct.DecodeParams(c.Reconstruction)
	if err != nil {
		return utils.NewConfigValidationError("reconstruction", err)
	}
	c.params = params
	return nil
}

// Validate checks the meshing defaults.
func (m Meshing) Validate(path string) error {
	if _, err := reconstruct.ParseMethod(m.Method); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if m.Format != "" {
		if _, err := meshio.ParseFormat(m.Format); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if m.Jobs < 0 {
		return utils.NewConfigValidationError(path, errors.New("jobs must not be negative"))
	}
	if _, err := m.Post.Options(); err != nil {
		return utils.NewConfigValidationError(path+".post_process", err)
	}
	return nil
}

// Validate checks the viewer defaults.
func (v Viewer) Validate(path string) error {
	if v.Width < 0 || v.Height < 0 {
		return utils.NewConfigValidationError(path, errors.New("image size must not be negative"))
	}
	if v.DebounceMillis < 0 {
		return utils.NewConfigValidationError(path, errors.New("debounce_ms must not be negative"))
	}
	return nil
}

// Options applies the section on top of postprocess.DefaultOptions.
func (p PostProcess) Options() (postprocess.Options, error) {
	opts := postprocess.DefaultOptions()
	if p.Cleanup != nil {
		opts.Cleanup = *p.Cleanup
	}
	if p.SimplifyTarget != nil {
		opts.Simplify, opts.SimplifyTarget = true, *p.SimplifyTarget
	}
	if p.FillHolesSize != nil {
		opts.FillHolesSize = *p.FillHolesSize
	}
	var err error
	if opts.SimplifyMethod, err = postprocess.ParseSimplifyMethod(p.SimplifyMethod); err != nil {
		return opts, err
	}
	if opts.Origin, err = postprocess.ParseOrigin(p.Origin); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// Method returns the configured reconstruction method.
func (c *Config) Method() reconstruct.Method {
	method, err := reconstruct.ParseMethod(c.Meshing.Method)
	if err != nil {
		return reconstruct.Poisson
	}
	return method
}

// Format returns the configured output format, OBJ when unset.
func (c *Config) Format() meshio.Format {
	if c.Meshing.Format == "" {
		return meshio.FormatOBJ
	}
	format, err := meshio.ParseFormat(c.Meshing.Format)
	if err != nil {
		return meshio.FormatOBJ
	}
	return format
}

// Params returns the decoded reconstruction parameters. Validate must have succeeded.
func (c *Config) Params() reconstruct.Params {
	return c.params
}

// PostProcess returns the configured post-processing options.
func (c *Config) PostProcess() postprocess.Options {
	opts, err := c.Meshing.Post.Options()
	if err != nil {
		return postprocess.DefaultOptions()
	}
	return opts
}
