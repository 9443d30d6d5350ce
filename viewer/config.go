// Package viewer is a headless stand-in for an interactive mesh viewer. A Session holds a point
// cloud and the mesh currently shown next to it, builds meshes on demand through the artifact
// gate, renders side-by-side snapshots and can follow changes to the input file.
package viewer

import (
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// Background is a named background color preset.
type Background string

// The background presets.
const (
	BackgroundIce       = Background("Ice")
	BackgroundWhite     = Background("White")
	BackgroundLightGray = Background("Light Gray")
	BackgroundDarkGray  = Background("Dark Gray")
	BackgroundBlack     = Background("Black")
)

// Backgrounds lists the presets in display order.
var Backgrounds = []Background{
	BackgroundIce, BackgroundWhite, BackgroundLightGray, BackgroundDarkGray, BackgroundBlack,
}

var backgroundColors = map[Background]colorful.Color{
	BackgroundIce:       {R: 0.94, G: 0.97, B: 0.98},
	BackgroundWhite:     {R: 1, G: 1, B: 1},
	BackgroundLightGray: {R: 0.9, G: 0.9, B: 0.9},
	BackgroundDarkGray:  {R: 0.2, G: 0.2, B: 0.2},
	BackgroundBlack:     {},
}

func backgroundKey(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(s))
}

// ParseBackground finds a preset by name, ignoring case, spaces, dashes and underscores. The
// empty string selects Ice.
func ParseBackground(s string) (Background, error) {
	if s == "" {
		return BackgroundIce, nil
	}
	for _, b := range Backgrounds {
		if backgroundKey(string(b)) == backgroundKey(s) {
			return b, nil
		}
	}
	return "", errors.Errorf("unknown background %q", s)
}

// Color returns the preset's color. Unknown presets are Ice.
func (b Background) Color() colorful.Color {
	if c, ok := backgroundColors[b]; ok {
		return c
	}
	return backgroundColors[BackgroundIce]
}

// Config describes a session. It is copied into the session; later changes have no effect.
type Config struct {
	InputPath string
	// MeshDir is where generated meshes are cached.
	MeshDir string
	Method  reconstruct.Method
	Format  meshio.Format
	Params  reconstruct.Params
	// PostProcess is used for on-demand generation; Remesh replaces it.
	PostProcess postprocess.Options

	Background    Background
	Width, Height int
	// Debounce coalesces bursts of input file changes.
	Debounce time.Duration
}

// DefaultSimplifyTarget is the triangle budget of meshes generated for viewing.
const DefaultSimplifyTarget = 100000

// DefaultConfig returns the viewer defaults for the given input.
func DefaultConfig(inputPath string) Config {
	return Config{
		InputPath: inputPath,
		MeshDir:   "meshes",
		Method:    reconstruct.Poisson,
		Format:    meshio.FormatGLB,
		PostProcess: postprocess.Options{
			Cleanup:        true,
			Simplify:       true,
			SimplifyTarget: DefaultSimplifyTarget,
			SimplifyMethod: postprocess.SimplifyUniform,
			Origin:         postprocess.OriginBottomLeft,
		},
		Background: BackgroundIce,
		Width:      1600,
		Height:     800,
		Debounce:   500 * time.Millisecond,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("viewer needs an input point cloud")
	}
	if c.MeshDir == "" {
		return errors.New("viewer needs a mesh directory")
	}
	if _, err := reconstruct.ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if _, err := meshio.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if _, err := ParseBackground(string(c.Background)); err != nil {
		return err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid image size %dx%d", c.Width, c.Height)
	}
	return c.PostProcess.Validate()
}
