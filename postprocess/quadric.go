package postprocess

import (
	"github.com/golang/geo/r3"
)

// quadric is a symmetric 4x4 matrix stored as its upper triangle:
// aa ab ac ad bb bc bd cc cd dd.
type quadric [10]float64

// planeQuadric returns the quadric measuring squared distance to the plane n.x + d = 0, where n
// is unit length.
func planeQuadric(n r3.Vector, d float64) quadric {
	return quadric{
		n.X * n.X, n.X * n.Y, n.X * n.Z, n.X * d,
		n.Y * n.Y, n.Y * n.Z, n.Y * d,
		n.Z * n.Z, n.Z * d,
		d * d,
	}
}

func (q quadric) add(o quadric) quadric {
	for i := range q {
		q[i] += o[i]
	}
	return q
}

func (q quadric) scale(s float64) quadric {
	for i := range q {
		q[i] *= s
	}
	return q
}

// eval returns v^T Q v for the homogeneous point (v, 1).
func (q quadric) eval(v r3.Vector) float64 {
	x, y, z := v.X, v.Y, v.Z
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}
