// Package pipeline turns a meshing request into a mesh on disk: it loads the cloud, resolves its
// colors, reconstructs a surface, transfers colors onto it, post-processes it and writes it.
package pipeline

import (
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
	"github.com/splatmesh/splatmesh/utils"
)

// Request describes one meshing job. It is a value: build a new one per invocation.
type Request struct {
	ID uuid.UUID

	// Exactly one of InputPath and Cloud is set.
	InputPath string
	Cloud     *pointcloud.PointCloud

	Method      reconstruct.Method
	Format      meshio.Format
	Params      reconstruct.Params
	PostProcess postprocess.Options

	// OutputPath names the artifact explicitly. Otherwise it is <base>_<method>.<format> inside
	// OutputDir, or next to the input when OutputDir is empty.
	OutputDir  string
	OutputPath string

	// Force rebuilds the artifact even when it is fresh.
	Force bool
}

// NewRequest returns a request for the file at inputPath with the default method, format and
// post-processing.
func NewRequest(inputPath string) Request {
	return Request{
		ID:          uuid.New(),
		InputPath:   inputPath,
		Method:      reconstruct.Poisson,
		Format:      meshio.FormatOBJ,
		PostProcess: postprocess.DefaultOptions(),
	}
}

// NewCloudRequest returns a request for an in-memory cloud written to outputPath.
func NewCloudRequest(cloud *pointcloud.PointCloud, outputPath string) Request {
	req := NewRequest("")
	req.Cloud = cloud
	req.OutputPath = outputPath
	return req
}

// Validate checks that the request names exactly one input, known modes and a destination.
func (r Request) Validate() error {
	if (r.InputPath == "") == (r.Cloud == nil) {
		return errors.New("request needs exactly one of an input path or an in-memory cloud")
	}
	if _, err := reconstruct.ParseMethod(string(r.Method)); err != nil {
		return err
	}
	if _, err := meshio.ParseFormat(string(r.Format)); err != nil {
		return err
	}
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if err := r.PostProcess.Validate(); err != nil {
		return err
	}
	_, err := r.ArtifactPath()
	return err
}

// ArtifactName returns the file name of the artifact built from input with the given method and
// format: <input base name>_<method>.<format>.
func ArtifactName(input string, method reconstruct.Method, format meshio.Format) string {
	return utils.BaseName(input) + "_" + string(method) + format.Extension()
}

// ArtifactPath returns where the request's mesh is written.
func (r Request) ArtifactPath() (string, error) {
	if r.OutputPath != "" {
		return r.OutputPath, nil
	}
	if r.InputPath == "" {
		return "", errors.New("an in-memory cloud needs an explicit output path")
	}
	dir := r.OutputDir
	if dir == "" {
		dir = filepath.Dir(r.InputPath)
	}
	return utils.SafeJoinDir(dir, ArtifactName(r.InputPath, r.Method, r.Format))
}
