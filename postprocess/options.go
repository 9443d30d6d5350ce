// Package postprocess cleans, simplifies, repairs and re-anchors reconstructed meshes. Every step
// is best effort: a failing step is skipped and reported, and the mesh from before it is kept.
package postprocess

import (
	"strings"

	"github.com/pkg/errors"
)

// SimplifyMethod selects how decimation ranks edge collapses.
type SimplifyMethod string

// The available simplification methods.
const (
	// SimplifyUniform ranks collapses by plain quadric error.
	SimplifyUniform = SimplifyMethod("uniform")
	// SimplifyAdaptive scales the quadric error by how sharply the surface bends around the edge,
	// so flat regions are reduced first.
	SimplifyAdaptive = SimplifyMethod("adaptive")
)

// Origin selects where the processed mesh is anchored.
type Origin string

// The available origin modes.
const (
	// OriginPreserve keeps the mesh in the frame of its point cloud.
	OriginPreserve = Origin("preserve")
	// OriginBottomLeft moves the minimum corner of the bounding box to the origin.
	OriginBottomLeft = Origin("bottom-left")
)

// Options selects the post-processing steps.
type Options struct {
	Cleanup bool `json:"cleanup"`
	// Simplify turns on decimation toward SimplifyTarget triangles. A zero target asks for as
	// few triangles as decimation can reach without removing a component.
	Simplify       bool           `json:"simplify"`
	SimplifyTarget int            `json:"simplify_target"`
	SimplifyMethod SimplifyMethod `json:"simplify_method"`
	// FillHolesSize is the largest boundary loop perimeter that gets closed. Zero skips the step.
	FillHolesSize float64 `json:"fill_holes_size"`
	Origin        Origin  `json:"origin"`
}

// DefaultOptions cleans the mesh and leaves everything else alone.
func DefaultOptions() Options {
	return Options{
		Cleanup:        true,
		SimplifyMethod: SimplifyUniform,
		Origin:         OriginPreserve,
	}
}

// ParseSimplifyMethod returns the method named by s; the empty string selects uniform.
func ParseSimplifyMethod(s string) (SimplifyMethod, error) {
	switch m := SimplifyMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SimplifyUniform, nil
	case SimplifyUniform, SimplifyAdaptive:
		return m, nil
	default:
		return "", errors.Errorf("unknown simplification method %q, expected uniform or adaptive", s)
	}
}

// ParseOrigin returns the origin mode named by s; the empty string selects preserve.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OriginPreserve, nil
	case OriginPreserve, OriginBottomLeft:
		return o, nil
	case "bottom_left", "bottomleft":
		return OriginBottomLeft, nil
	default:
		return "", errors.Errorf("unknown origin mode %q, expected preserve or bottom-left", s)
	}
}

// Validate rejects unknown modes, negative sizes and negative targets.
func (o Options) Validate() error {
	if _, err := ParseSimplifyMethod(string(o.SimplifyMethod)); err != nil {
		return err
	}
	if _, err := ParseOrigin(string(o.Origin)); err != nil {
		return err
	}
	if o.Simplify && o.SimplifyTarget < 0 {
		return errors.Errorf("simplification target %d is negative", o.SimplifyTarget)
	}
	if o.FillHolesSize < 0 {
		return errors.New("fill holes size must not be negative")
	}
	return nil
}
