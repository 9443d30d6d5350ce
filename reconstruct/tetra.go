package reconstruct

import (
	"context"
	"math"

	"github.com/deadsy/sdfx/sdf"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/utils"
)

// maxGridSamples bounds the memory used by the sample grid.
const maxGridSamples = 1 << 26

// latticeOffset shifts the lattice by a fraction of a cell so that axis aligned input does not
// put samples exactly on the level set.
const latticeOffset = 0.1357

// cubeTetrahedra splits a grid cube into six tetrahedra around the diagonal from corner 0 to
// corner 7. Corner c sits at offset (c&1, c>>1&1, c>>2&1). Neighboring cubes split their shared
// faces along the same diagonal, so the extracted surface has no cracks.
var cubeTetrahedra = [6][4]int{
	{0, 7, 1, 3},
	{0, 7, 3, 2},
	{0, 7, 2, 6},
	{0, 7, 6, 4},
	{0, 7, 4, 5},
	{0, 7, 5, 1},
}

// sampleGrid holds the values of a field on a regular lattice.
type sampleGrid struct {
	origin     r3.Vector
	cell       float64
	nx, ny, nz int
	values     []float64
}

func (g *sampleGrid) index(i, j, k int) int {
	return (k*g.ny+j)*g.nx + i
}

func (g *sampleGrid) point(idx int) r3.Vector {
	i := idx % g.nx
	j := (idx / g.nx) % g.ny
	k := idx / (g.nx * g.ny)
	return g.origin.Add(r3.Vector{X: float64(i), Y: float64(j), Z: float64(k)}.Mul(g.cell))
}

// sample evaluates s on a lattice with the given spacing covering its bounding box.
func sample(ctx context.Context, s sdf.SDF3, cell float64) (*sampleGrid, error) {
	bb := s.BoundingBox()
	size := bb.Max.Sub(bb.Min)
	shift := latticeOffset * cell
	g := &sampleGrid{
		origin: r3.Vector{X: bb.Min.X - shift, Y: bb.Min.Y - shift, Z: bb.Min.Z - shift},
		cell:   cell,
		nx:     int(math.Ceil((size.X+shift)/cell)) + 1,
		ny:     int(math.Ceil((size.Y+shift)/cell)) + 1,
		nz:     int(math.Ceil((size.Z+shift)/cell)) + 1,
	}
	if g.nx < 2 || g.ny < 2 || g.nz < 2 {
		return nil, errors.New("sample grid needs at least two samples per axis")
	}
	if g.nx*g.ny*g.nz > maxGridSamples {
		return nil, errors.Errorf("sample grid of %dx%dx%d is too large", g.nx, g.ny, g.nz)
	}
	g.values = make([]float64, g.nx*g.ny*g.nz)
	err := utils.ParallelForEach(ctx, g.nz, func(k int) {
		for j := 0; j < g.ny; j++ {
			for i := 0; i < g.nx; i++ {
				idx := g.index(i, j, k)
				p := g.point(idx)
				g.values[idx] = s.Evaluate(toVec(p))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// marchTetrahedra extracts the zero level set of a sampled field. Negative values are inside.
// Vertices on a lattice edge are shared by every triangle touching that edge and triangles face
// the positive side, so a closed level set yields a watertight, consistently wound mesh.
func marchTetrahedra(ctx context.Context, g *sampleGrid) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	edgeVertex := map[[2]int]int{}
	vertexOn := func(in, out int) int {
		key := [2]int{min(in, out), max(in, out)}
		if idx, ok := edgeVertex[key]; ok {
			return idx
		}
		vIn, vOut := g.values[in], g.values[out]
		t := vIn / (vIn - vOut)
		pIn, pOut := g.point(in), g.point(out)
		idx := len(m.Vertices)
		m.Vertices = append(m.Vertices, pIn.Add(pOut.Sub(pIn).Mul(t)))
		edgeVertex[key] = idx
		return idx
	}
	emit := func(tri [3]int, towardsOutside r3.Vector) {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		if b.Sub(a).Cross(c.Sub(a)).Dot(towardsOutside) < 0 {
			tri[1], tri[2] = tri[2], tri[1]
		}
		m.Triangles = append(m.Triangles, tri)
	}

	var corners [8]int
	for k := 0; k+1 < g.nz; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j+1 < g.ny; j++ {
			for i := 0; i+1 < g.nx; i++ {
				for c := range corners {
					corners[c] = g.index(i+c&1, j+(c>>1)&1, k+(c>>2)&1)
				}
				for _, tet := range cubeTetrahedra {
					var ids [4]int
					for v, c := range tet {
						ids[v] = corners[c]
					}
					polygonizeTetrahedron(g, ids, vertexOn, emit)
				}
			}
		}
	}
	return m, nil
}

func polygonizeTetrahedron(
	g *sampleGrid,
	ids [4]int,
	vertexOn func(in, out int) int,
	emit func(tri [3]int, towardsOutside r3.Vector),
) {
	var inside, outside []int
	var inCenter, outCenter r3.Vector
	for _, id := range ids {
		if g.values[id] < 0 {
			inside = append(inside, id)
			inCenter = inCenter.Add(g.point(id))
		} else {
			outside = append(outside, id)
			outCenter = outCenter.Add(g.point(id))
		}
	}
	if len(inside) == 0 || len(outside) == 0 {
		return
	}
	dir := outCenter.Mul(1 / float64(len(outside))).Sub(inCenter.Mul(1 / float64(len(inside))))
	switch len(inside) {
	case 1:
		a := inside[0]
		emit([3]int{vertexOn(a, outside[0]), vertexOn(a, outside[1]), vertexOn(a, outside[2])}, dir)
	case 3:
		o := outside[0]
		emit([3]int{vertexOn(inside[0], o), vertexOn(inside[1], o), vertexOn(inside[2], o)}, dir)
	case 2:
		a, b := inside[0], inside[1]
		c, d := outside[0], outside[1]
		ac, ad, bd, bc := vertexOn(a, c), vertexOn(a, d), vertexOn(b, d), vertexOn(b, c)
		emit([3]int{ac, ad, bd}, dir)
		emit([3]int{ac, bd, bc}, dir)
	}
}
