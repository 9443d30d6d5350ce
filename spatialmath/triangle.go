package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is a triangle in 3D space with a cached unit normal.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle builds a triangle. The normal follows the right-hand rule over p0, p1, p2 and is the
// zero vector for degenerate triangles.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// Points returns the three corners in construction order.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal, or the zero vector if the triangle is degenerate.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Centroid returns the mean of the three corners.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// Perimeter returns the summed edge lengths.
func (t *Triangle) Perimeter() float64 {
	return t.p0.Distance(t.p1) + t.p1.Distance(t.p2) + t.p2.Distance(t.p0)
}

// Circumcircle returns the center and radius of the circle through the three corners. ok is false
// for degenerate (collinear) triangles.
func (t *Triangle) Circumcircle() (center r3.Vector, radius float64, ok bool) {
	a := t.p0.Sub(t.p2)
	b := t.p1.Sub(t.p2)
	axb := a.Cross(b)
	denom := 2 * axb.Norm2()
	if denom <= floatEpsilon*floatEpsilon {
		return r3.Vector{}, 0, false
	}
	// c = p2 + ((|a|^2 b - |b|^2 a) x (a x b)) / (2 |a x b|^2)
	num := b.Mul(a.Norm2()).Sub(a.Mul(b.Norm2())).Cross(axb)
	center = t.p2.Add(num.Mul(1 / denom))
	return center, center.Distance(t.p0), true
}

// BallCenter returns the center of the sphere of radius r that passes through the three corners
// and lies on the side the triangle normal points to. ok is false when the triangle is degenerate
// or its circumradius exceeds r.
func (t *Triangle) BallCenter(r float64) (r3.Vector, bool) {
	center, rho, ok := t.Circumcircle()
	if !ok || rho > r {
		return r3.Vector{}, false
	}
	h := math.Sqrt(math.Max(0, r*r-rho*rho))
	return center.Add(t.normal.Mul(h)), true
}

// ClosestPointToPoint takes a point, and returns the closest point on the triangle to the given point.
func (t *Triangle) ClosestPointToPoint(point r3.Vector) r3.Vector {
	closestPtInside, inside := t.ClosestInsidePoint(point)
	if inside {
		return closestPtInside
	}

	// If the closest point is outside the triangle, it must be on an edge, so we
	// check each triangle edge for a closest point to the point pt.
	closestPt := ClosestPointSegmentPoint(t.p0, t.p1, point)
	bestDist := point.Sub(closestPt).Norm2()

	newPt := ClosestPointSegmentPoint(t.p1, t.p2, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		closestPt = newPt
		bestDist = newDist
	}

	newPt = ClosestPointSegmentPoint(t.p2, t.p0, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		return newPt
	}
	return closestPt
}

// ClosestInsidePoint returns the closest point on a triangle IF AND ONLY IF the query point's
// projection overlaps the triangle. Otherwise it returns the projection and false.
func (t *Triangle) ClosestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	eps := 1e-6

	// Parametrize the triangle s.t. a point inside the triangle is
	// Q = p0 + u * e0 + v * e1, when 0 <= u <= 1, 0 <= v <= 1, and
	// 0 <= u + v <= 1. Let e0 = (p1 - p0) and e1 = (p2 - p0).
	// We analytically minimize the distance between the point pt and Q.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	det := (a*c - b*b)
	if det == 0 {
		return point, false
	}
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+eps) && (u <= 1+eps) && (0 <= v+eps) && (v <= 1+eps) && (u+v <= 1+eps)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}
