package pointcloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/splatmesh/splatmesh/logging"
	rutils "github.com/splatmesh/splatmesh/utils"
)

// LoadError is returned when an input point cloud cannot be read or holds no points.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load point cloud %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SupportedExtensions lists the file extensions NewFromFile can read.
var SupportedExtensions = []string{".ply", ".pcd", ".las"}

// NewFromFile returns a pointcloud read in from the given file. Every failure, including an empty
// cloud, is a *LoadError.
func NewFromFile(fn string, logger logging.Logger) (*PointCloud, error) {
	cloud, err := newFromFile(fn, logger)
	if err != nil {
		return nil, &LoadError{Path: fn, Err: err}
	}
	if cloud.Size() == 0 {
		return nil, &LoadError{Path: fn, Err: errors.New("point cloud is empty")}
	}
	logger.Debugw("loaded point cloud", "path", fn, "points", cloud.Size(),
		"color", cloud.MetaData().HasColor, "normals", cloud.MetaData().HasNormals, "sh", cloud.MetaData().HasSH)
	return cloud, nil
}

func newFromFile(fn string, logger logging.Logger) (*PointCloud, error) {
	ext := strings.ToLower(filepath.Ext(fn))
	switch ext {
	case ".las":
		return NewFromLASFile(fn, logger)
	case ".ply", ".pcd":
	default:
		return nil, rutils.NewUnsupportedExtensionError("point cloud", ext)
	}

	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if ext == ".pcd" {
		return ReadPCD(f)
	}
	return ReadPLY(f)
}

// WriteToFile writes the cloud in the format implied by the file extension. PCD files are
// written in binary.
func WriteToFile(cloud *PointCloud, fn string) (err error) {
	ext := strings.ToLower(filepath.Ext(fn))
	switch ext {
	case ".las":
		return WriteToLASFile(cloud, fn)
	case ".ply", ".pcd":
	default:
		return rutils.NewUnsupportedExtensionError("point cloud", ext)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
		if err != nil {
			rutils.RemoveFileNoError(fn)
		}
	}()
	if ext == ".pcd" {
		return ToPCD(cloud, f, PCDBinary)
	}
	return WritePLY(f, cloud, nil)
}
