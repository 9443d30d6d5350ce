package gate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pipeline"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
	"github.com/splatmesh/splatmesh/utils"
)

// fingerprint is everything besides the input's contents that decides what an artifact holds.
// It is stored next to the artifact so a request with different settings for the same path is
// never served the old mesh.
type fingerprint struct {
	Input       string              `json:"input"`
	Method      reconstruct.Method  `json:"method"`
	Format      meshio.Format       `json:"format"`
	Params      reconstruct.Params  `json:"params"`
	PostProcess postprocess.Options `json:"post_process"`
}

// SidecarPath returns where the fingerprint of the artifact at path is kept.
func SidecarPath(path string) string {
	return path + ".json"
}

func encodeFingerprint(req pipeline.Request) ([]byte, error) {
	input, err := filepath.Abs(req.InputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %q", req.InputPath)
	}
	data, err := json.MarshalIndent(fingerprint{
		Input:       input,
		Method:      req.Method,
		Format:      req.Format,
		Params:      req.Params,
		PostProcess: req.PostProcess,
	}, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode artifact fingerprint")
	}
	return append(data, '\n'), nil
}

// matchesFingerprint reports whether the sidecar of dst was written for req. A missing sidecar
// never matches.
func matchesFingerprint(req pipeline.Request, dst string) (bool, error) {
	want, err := encodeFingerprint(req)
	if err != nil {
		return false, err
	}
	//nolint:gosec
	got, err := os.ReadFile(SidecarPath(dst))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrap(err, "cannot read artifact fingerprint")
	}
	return bytes.Equal(got, want), nil
}

// writeFingerprint records req as the origin of dst, replacing the sidecar atomically.
func writeFingerprint(req pipeline.Request, dst string) error {
	data, err := encodeFingerprint(req)
	if err != nil {
		return err
	}
	sidecar := SidecarPath(dst)
	tmp := utils.TempSibling(sidecar)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "cannot write artifact fingerprint")
	}
	if err := utils.RenameIntoPlace(tmp, sidecar); err != nil {
		utils.RemoveFileNoError(tmp)
		return err
	}
	return nil
}
