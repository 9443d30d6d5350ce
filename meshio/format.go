// Package meshio writes and reads triangle meshes in the output formats the pipeline produces.
package meshio

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format names a mesh file format. Its string value is also the file extension without the dot.
type Format string

// The supported mesh formats.
const (
	FormatOBJ = Format("obj")
	FormatGLB = Format("glb")
	FormatSTL = Format("stl")
	FormatPLY = Format("ply")
)

// Formats lists every supported format, default first.
var Formats = []Format{FormatOBJ, FormatGLB, FormatSTL, FormatPLY}

// ParseFormat returns the format named by s. Case and a leading dot are ignored.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Errorf("unknown mesh format %q, expected one of %v", s, Formats)
}

// FormatFromPath returns the format implied by the file extension of path.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) String() string {
	return string(f)
}
