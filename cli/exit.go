package cli

import (
	"errors"

	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/reconstruct"
)

// Process exit codes per failure class.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitLoad           = 2
	ExitReconstruction = 3
	ExitWrite          = 4
)

// ExitCode maps an error returned by the app to the process exit code.
func ExitCode(err error) int {
	var (
		loadErr  *pointcloud.LoadError
		recErr   *reconstruct.ReconstructionError
		writeErr *meshio.WriteError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &loadErr):
		return ExitLoad
	case errors.As(err, &recErr):
		return ExitReconstruction
	case errors.As(err, &writeErr):
		return ExitWrite
	default:
		return ExitFailure
	}
}
