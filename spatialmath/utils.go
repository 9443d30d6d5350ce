// Package spatialmath holds the small geometric primitives shared by reconstruction and
// post-processing: triangles, bounding boxes and a few closed-form helpers.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-12

// PlaneNormal returns the unit normal of the plane through p0, p1 and p2 following the right-hand
// rule. The zero vector is returned when the points are collinear.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	norm := n.Norm()
	if norm <= floatEpsilon {
		return r3.Vector{}
	}
	return n.Mul(1 / norm)
}

// ClosestPointSegmentPoint takes a line segment defined by two points and a third point, and
// returns the closest point on the segment to the third point.
func ClosestPointSegmentPoint(segStart, segEnd, pt r3.Vector) r3.Vector {
	segVec := segEnd.Sub(segStart)
	lenSq := segVec.Norm2()
	if lenSq == 0 {
		return segStart
	}
	t := pt.Sub(segStart).Dot(segVec) / lenSq
	t = math.Max(0, math.Min(1, t))
	return segStart.Add(segVec.Mul(t))
}

// Collinear reports whether every point lies on a single line within tol, which is relative to
// the spread of the points. A set with fewer than three distinct points is collinear.
func Collinear(points []r3.Vector, tol float64) bool {
	if len(points) < 3 {
		return true
	}
	origin := points[0]
	var dir r3.Vector
	var spread float64
	for _, p := range points[1:] {
		if d := p.Sub(origin); d.Norm() > spread {
			spread = d.Norm()
			dir = d
		}
	}
	if spread == 0 {
		return true
	}
	dir = dir.Normalize()
	for _, p := range points {
		d := p.Sub(origin)
		if d.Sub(dir.Mul(d.Dot(dir))).Norm() > tol*spread {
			return false
		}
	}
	return true
}
