package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Ordered list of unit box corners, scaled by the half size when a box is expanded.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The 12 edges of a box, as pairs of vertex indices (vertices differing in exactly one coordinate).
var boxEdgeIndices = [12][2]int{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// AABB is an axis aligned bounding box. The zero value is empty.
type AABB struct {
	Min, Max r3.Vector
	nonEmpty bool
}

// NewAABB returns the tightest box around points.
func NewAABB(points []r3.Vector) AABB {
	var box AABB
	for _, p := range points {
		box = box.Extend(p)
	}
	return box
}

// Empty reports whether the box contains no point.
func (b AABB) Empty() bool {
	return !b.nonEmpty
}

// Extend returns the box grown to contain p.
func (b AABB) Extend(p r3.Vector) AABB {
	if !b.nonEmpty {
		return AABB{Min: p, Max: p, nonEmpty: true}
	}
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(other AABB) AABB {
	if other.Empty() {
		return b
	}
	return b.Extend(other.Min).Extend(other.Max)
}

// Expand returns the box grown by margin on every side.
func (b AABB) Expand(margin float64) AABB {
	if b.Empty() {
		return b
	}
	m := r3.Vector{X: margin, Y: margin, Z: margin}
	b.Min = b.Min.Sub(m)
	b.Max = b.Max.Add(m)
	return b
}

// Size returns the extent along each axis.
func (b AABB) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Diagonal returns the length of the box diagonal.
func (b AABB) Diagonal() float64 {
	return b.Size().Norm()
}

// Center returns the middle of the box.
func (b AABB) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains reports whether p lies in the closed box.
func (b AABB) Contains(p r3.Vector) bool {
	return b.nonEmpty &&
		p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Vertices returns the eight corners of the box.
func (b AABB) Vertices() []r3.Vector {
	half := b.Size().Mul(0.5)
	center := b.Center()
	verts := make([]r3.Vector, 0, len(boxVertices))
	for _, v := range boxVertices {
		verts = append(verts, center.Add(r3.Vector{X: v.X * half.X, Y: v.Y * half.Y, Z: v.Z * half.Z}))
	}
	return verts
}

// Edges returns the twelve box edges as pairs of corners.
func (b AABB) Edges() [][2]r3.Vector {
	verts := b.Vertices()
	edges := make([][2]r3.Vector, 0, len(boxEdgeIndices))
	for _, e := range boxEdgeIndices {
		edges = append(edges, [2]r3.Vector{verts[e[0]], verts[e[1]]})
	}
	return edges
}
