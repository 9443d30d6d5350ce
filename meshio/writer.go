package meshio

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
)

// WriteError is returned when a mesh cannot be written to its destination.
type WriteError struct {
	Path   string
	Format Format
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cannot write %s mesh %q: %v", e.Format, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// A Writer serializes meshes in a single format.
type Writer interface {
	Format() Format
	// SupportsVertexColor reports whether per-vertex colors survive a write.
	SupportsVertexColor() bool
	Write(path string, m *mesh.Mesh) error
}

// WriterFor returns the writer for the given format.
func WriterFor(f Format) (Writer, error) {
	switch f {
	case FormatOBJ:
		return objWriter{}, nil
	case FormatGLB:
		return glbWriter{}, nil
	case FormatSTL:
		return stlWriter{}, nil
	case FormatPLY:
		return plyWriter{}, nil
	default:
		return nil, errors.Errorf("no writer for mesh format %q", f)
	}
}

// Write validates the mesh and writes it to path in the given format. Colors are dropped silently
// for formats that cannot carry them. Every failure is a *WriteError.
func Write(path string, f Format, m *mesh.Mesh) error {
	w, err := WriterFor(f)
	if err != nil {
		return &WriteError{Path: path, Format: f, Err: err}
	}
	if err := m.Validate(); err != nil {
		return &WriteError{Path: path, Format: f, Err: err}
	}
	if m.HasColors() && !w.SupportsVertexColor() {
		stripped := *m
		stripped.Colors = nil
		m = &stripped
	}
	if err := w.Write(path, m); err != nil {
		return &WriteError{Path: path, Format: f, Err: err}
	}
	return nil
}
