// Package cli contains the splatmesh command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig  = "config"
	flagDebug   = "debug"
	flagLogFile = "log-file"

	flagInput          = "input"
	flagOutput         = "output"
	flagFormat         = "format"
	flagMethod         = "method"
	flagNoCleanup      = "no-cleanup"
	flagSimplify       = "simplify"
	flagSimplifyMethod = "simplify-method"
	flagFillHoles      = "fill-holes"
	flagOrigin         = "origin"
	flagForce          = "force"
	flagQuiet          = "quiet"

	flagInputDir  = "input-dir"
	flagOutputDir = "output-dir"
	flagJobs      = "jobs"
	flagAll       = "all"

	flagMeshDir    = "mesh-dir"
	flagSnapshot   = "snapshot"
	flagWatch      = "watch"
	flagBackground = "background"
	flagScale      = "scale"
)

var postProcessFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  flagNoCleanup,
		Usage: "skip removal of duplicate, degenerate and tiny pieces",
	},
	&cli.IntFlag{
		Name:  flagSimplify,
		Usage: "simplify to about `N` triangles (0 for as few as possible)",
	},
	&cli.StringFlag{
		Name:  flagSimplifyMethod,
		Usage: "simplification method: uniform or adaptive",
	},
	&cli.Float64Flag{
		Name:  flagFillHoles,
		Usage: "close holes whose perimeter is at most `SIZE`",
	},
	&cli.StringFlag{
		Name:  flagOrigin,
		Usage: "origin handling: preserve or bottom-left",
	},
}

var app = &cli.App{
	Name:            "splatmesh",
	Usage:           "turn point clouds and gaussian splats into colored meshes",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagLogFile,
			Usage: "also write logs to `FILE`",
		},
	},
	// errors are mapped to exit codes by the caller
	ExitErrHandler: func(*cli.Context, error) {},
	Commands: []*cli.Command{
		{
			Name:      "mesh",
			Usage:     "reconstruct a mesh from a point cloud",
			UsageText: "splatmesh mesh --input cloud.ply [--output mesh.obj] [options]",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     flagInput,
					Aliases:  []string{"i"},
					Usage:    "input point cloud (.ply, .pcd or .las)",
					Required: true,
				},
				&cli.StringFlag{
					Name:    flagOutput,
					Aliases: []string{"o"},
					Usage:   "output mesh; its extension is replaced by the format's",
				},
				&cli.StringFlag{
					Name:    flagFormat,
					Aliases: []string{"f"},
					Usage:   "output format: obj, glb, stl or ply",
				},
				&cli.StringFlag{
					Name:    flagMethod,
					Aliases: []string{"m"},
					Usage:   "reconstruction method: poisson, bpa or alpha",
				},
				&cli.BoolFlag{
					Name:  flagForce,
					Usage: "rebuild even when the output is up to date",
				},
				&cli.BoolFlag{
					Name:  flagQuiet,
					Usage: "do not show progress",
				},
			}, postProcessFlags...),
			Action: MeshAction,
		},
		{
			Name:      "batch",
			Usage:     "mesh every point cloud in a directory",
			UsageText: "splatmesh batch --input-dir clouds --output-dir meshes [options]",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     flagInputDir,
					Usage:    "directory of point clouds",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagOutputDir,
					Usage:    "directory for the meshes",
					Required: true,
				},
				&cli.StringFlag{
					Name:  flagFormat,
					Usage: "output format: obj, glb, stl or ply",
				},
				&cli.StringFlag{
					Name:  flagMethod,
					Usage: "reconstruction method: poisson, bpa or alpha",
				},
				&cli.BoolFlag{
					Name:  flagAll,
					Usage: "build every method and format combination",
				},
				&cli.IntFlag{
					Name:  flagJobs,
					Usage: "number of meshes built at once",
				},
				&cli.BoolFlag{
					Name:  flagForce,
					Usage: "rebuild even when an output is up to date",
				},
			}, postProcessFlags...),
			Action: BatchAction,
		},
		{
			Name:      "convert",
			Usage:     "convert a gaussian splat to an RGB point cloud",
			UsageText: "splatmesh convert <input> <output>",
			Action:    ConvertAction,
		},
		{
			Name:      "info",
			Usage:     "print statistics of a point cloud or mesh",
			UsageText: "splatmesh info <file>",
			Action:    InfoAction,
		},
		{
			Name:      "view",
			Usage:     "headless viewer: build meshes on demand, render snapshots and follow input changes",
			UsageText: "splatmesh view --input cloud.ply [--snapshot view.png] [--watch]",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     flagInput,
					Aliases:  []string{"i"},
					Usage:    "input point cloud",
					Required: true,
				},
				&cli.StringFlag{
					Name:  flagMeshDir,
					Usage: "directory for cached meshes",
				},
				&cli.StringFlag{
					Name:  flagMethod,
					Usage: "reconstruction method: poisson, bpa or alpha",
				},
				&cli.StringFlag{
					Name:  flagFormat,
					Usage: "mesh format: obj, glb, stl or ply",
				},
				&cli.StringFlag{
					Name:  flagSnapshot,
					Usage: "write a side by side PNG to `FILE`",
				},
				&cli.StringFlag{
					Name:  flagBackground,
					Usage: "background: ice, white, light gray, dark gray or black",
				},
				&cli.Float64Flag{
					Name:  flagScale,
					Usage: "display scale of the mesh",
					Value: 1,
				},
				&cli.BoolFlag{
					Name:  flagWatch,
					Usage: "rebuild when the input changes until interrupted",
				},
			}, postProcessFlags...),
			Action: ViewAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
