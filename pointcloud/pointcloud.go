// Package pointcloud defines an ordered point cloud with optional per-point colors, normals and
// spherical-harmonic color coefficients, together with the readers, writers and spatial queries
// built on it.
//
// Point order is significant: every attribute slice is index-aligned with the positions and
// downstream consumers (ball pivoting in particular) rely on index i naming the same point
// everywhere. A PointCloud is never mutated after construction.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/spatialmath"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor   bool
	HasNormals bool
	HasSH      bool

	Bounds spatialmath.AABB
}

// Merge folds the point at position p into the metadata bounds.
func (meta *MetaData) Merge(p r3.Vector) {
	meta.Bounds = meta.Bounds.Extend(p)
}

// Attributes are the optional per-point attributes of a cloud. A nil slice means the attribute is
// absent; a non-nil slice must have exactly one entry per point.
type Attributes struct {
	Colors  []colorful.Color
	Normals []r3.Vector
	SH      []SH
}

// PointCloud is an ordered, immutable collection of points.
type PointCloud struct {
	positions []r3.Vector
	colors    []colorful.Color
	normals   []r3.Vector
	sh        []SH

	meta MetaData
}

// New returns a cloud over positions with the given attributes. The slices are retained, not
// copied; callers must not modify them afterwards.
func New(positions []r3.Vector, attrs Attributes) (*PointCloud, error) {
	n := len(positions)
	if attrs.Colors != nil && len(attrs.Colors) != n {
		return nil, errors.Errorf("expected %d colors but got %d", n, len(attrs.Colors))
	}
	if attrs.Normals != nil && len(attrs.Normals) != n {
		return nil, errors.Errorf("expected %d normals but got %d", n, len(attrs.Normals))
	}
	if attrs.SH != nil && len(attrs.SH) != n {
		return nil, errors.Errorf("expected %d SH coefficients but got %d", n, len(attrs.SH))
	}
	meta := MetaData{
		HasColor:   attrs.Colors != nil,
		HasNormals: attrs.Normals != nil,
		HasSH:      attrs.SH != nil,
	}
	for i, p := range positions {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) ||
			math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsInf(p.Z, 0) {
			return nil, errors.Errorf("point %d has a non-finite coordinate: %v", i, p)
		}
		meta.Merge(p)
	}
	return &PointCloud{
		positions: positions,
		colors:    attrs.Colors,
		normals:   attrs.Normals,
		sh:        attrs.SH,
		meta:      meta,
	}, nil
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.positions)
}

// MetaData returns meta data.
func (pc *PointCloud) MetaData() MetaData {
	return pc.meta
}

// Position returns the i-th point.
func (pc *PointCloud) Position(i int) r3.Vector {
	return pc.positions[i]
}

// Positions returns the backing position slice. It must be treated as read only.
func (pc *PointCloud) Positions() []r3.Vector {
	return pc.positions
}

// Color returns the i-th color. It panics when the cloud has no color.
func (pc *PointCloud) Color(i int) colorful.Color {
	return pc.colors[i]
}

// Colors returns the backing color slice, nil when absent. It must be treated as read only.
func (pc *PointCloud) Colors() []colorful.Color {
	return pc.colors
}

// Normal returns the i-th normal. It panics when the cloud has no normals.
func (pc *PointCloud) Normal(i int) r3.Vector {
	return pc.normals[i]
}

// Normals returns the backing normal slice, nil when absent. It must be treated as read only.
func (pc *PointCloud) Normals() []r3.Vector {
	return pc.normals
}

// SH returns the backing SH coefficient slice, nil when absent. It must be treated as read only.
func (pc *PointCloud) SH() []SH {
	return pc.sh
}

// Attributes returns the cloud's optional attributes.
func (pc *PointCloud) Attributes() Attributes {
	return Attributes{Colors: pc.colors, Normals: pc.normals, SH: pc.sh}
}

// WithColors returns a cloud sharing this cloud's positions and other attributes but with the
// given colors.
func (pc *PointCloud) WithColors(colors []colorful.Color) (*PointCloud, error) {
	attrs := pc.Attributes()
	attrs.Colors = colors
	return pc.with(attrs)
}

// WithNormals returns a cloud sharing this cloud's positions and other attributes but with the
// given normals.
func (pc *PointCloud) WithNormals(normals []r3.Vector) (*PointCloud, error) {
	attrs := pc.Attributes()
	attrs.Normals = normals
	return pc.with(attrs)
}

func (pc *PointCloud) with(attrs Attributes) (*PointCloud, error) {
	n := pc.Size()
	if (attrs.Colors != nil && len(attrs.Colors) != n) || (attrs.Normals != nil && len(attrs.Normals) != n) {
		return nil, errors.Errorf("attribute length does not match the %d points of the cloud", n)
	}
	meta := pc.meta
	meta.HasColor = attrs.Colors != nil
	meta.HasNormals = attrs.Normals != nil
	return &PointCloud{positions: pc.positions, colors: attrs.Colors, normals: attrs.Normals, sh: attrs.SH, meta: meta}, nil
}

// Iterate calls fn for every point in order until fn returns false.
func (pc *PointCloud) Iterate(fn func(i int, p r3.Vector) bool) {
	for i, p := range pc.positions {
		if !fn(i, p) {
			return
		}
	}
}

// Distinct reports whether the cloud holds at least two different positions.
func (pc *PointCloud) Distinct() bool {
	for _, p := range pc.positions[min(1, len(pc.positions)):] {
		if p != pc.positions[0] {
			return true
		}
	}
	return false
}
