// Package reconstruct turns oriented or unoriented point clouds into triangle meshes. Three
// strategies are available: an implicit surface extraction (poisson), ball pivoting (bpa) and
// alpha shapes (alpha).
package reconstruct

import (
	"strings"

	"github.com/pkg/errors"
)

// Method names a reconstruction strategy.
type Method string

// The available strategies.
const (
	Poisson   = Method("poisson")
	BallPivot = Method("bpa")
	Alpha     = Method("alpha")
)

// Methods lists every strategy, default first.
var Methods = []Method{Poisson, BallPivot, Alpha}

// ParseMethod returns the method named by s. The empty string selects Poisson.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return Poisson, nil
	}
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Errorf("unknown reconstruction method %q, expected one of %v", s, Methods)
}

// PreservesPointIdentity reports whether the mesh vertices produced by the method are exactly the
// input points in input order. Only ball pivoting does this.
func (m Method) PreservesPointIdentity() bool {
	return m == BallPivot
}

func (m Method) String() string {
	return string(m)
}
