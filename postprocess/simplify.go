package postprocess

import (
	"container/heap"
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/spatialmath"
)

const (
	// boundaryWeight scales the quadrics that pin open borders in place.
	boundaryWeight = 100
	// featureStrength scales how much a bent neighborhood raises collapse costs in adaptive mode.
	featureStrength = 10
	// edgeLengthBias breaks ties between equally cheap collapses in favor of short edges.
	edgeLengthBias = 1e-3
)

// decimator collapses edges of a mesh onto one of their endpoints in order of increasing quadric
// error until a target triangle count is reached or no collapse keeps the surface valid.
// Vertices are never moved, so positions and colors of the result are a subset of the input.
type decimator struct {
	vertices  []r3.Vector
	triangles [][3]int
	alive     []bool
	live      int
	vertTris  [][]int
	quadrics  []quadric
	weights   []float64
	removed   []bool
	version   []int
	queue     collapseQueue
}

type collapse struct {
	keep, drop int
	cost       float64
	keepVer    int
	dropVer    int
}

type collapseQueue []collapse

func (q collapseQueue) Len() int            { return len(q) }
func (q collapseQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q collapseQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *collapseQueue) Push(x interface{}) { *q = append(*q, x.(collapse)) }
func (q *collapseQueue) Pop() interface{} {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}

// simplify decimates m toward target triangles. A target at or above the current count returns
// the input unchanged.
func simplify(ctx context.Context, m *mesh.Mesh, target int, method SimplifyMethod) (*mesh.Mesh, error) {
	if target < 0 {
		return nil, errors.Errorf("simplification target %d is negative", target)
	}
	if target >= len(m.Triangles) {
		return m, nil
	}
	d := newDecimator(m, method == SimplifyAdaptive)
	for iter := 0; d.live > target && d.queue.Len() > 0; iter++ {
		if iter%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := heap.Pop(&d.queue).(collapse)
		if d.removed[c.keep] || d.removed[c.drop] ||
			d.version[c.keep] != c.keepVer || d.version[c.drop] != c.dropVer {
			continue
		}
		if !d.canCollapse(c.keep, c.drop) {
			continue
		}
		d.apply(c.keep, c.drop)
	}
	return d.result(m), nil
}

func newDecimator(m *mesh.Mesh, adaptive bool) *decimator {
	n := len(m.Vertices)
	d := &decimator{
		vertices:  m.Vertices,
		triangles: append([][3]int(nil), m.Triangles...),
		alive:     make([]bool, len(m.Triangles)),
		live:      len(m.Triangles),
		vertTris:  make([][]int, n),
		quadrics:  make([]quadric, n),
		weights:   make([]float64, n),
		removed:   make([]bool, n),
		version:   make([]int, n),
	}
	for t, tri := range d.triangles {
		d.alive[t] = true
		for _, v := range tri {
			d.vertTris[v] = append(d.vertTris[v], t)
		}
		normal, offset, ok := d.plane(tri)
		if !ok {
			continue
		}
		q := planeQuadric(normal, offset)
		for _, v := range tri {
			d.quadrics[v] = d.quadrics[v].add(q)
		}
	}

	// pin open borders with planes through each border edge, perpendicular to its triangle
	for _, e := range m.BoundaryEdges() {
		a, b := d.vertices[e.From], d.vertices[e.To]
		for _, t := range d.vertTris[e.From] {
			if !containsVertex(d.triangles[t], e.To) {
				continue
			}
			normal, _, ok := d.plane(d.triangles[t])
			if !ok {
				continue
			}
			side := b.Sub(a).Cross(normal)
			if side.Norm() == 0 {
				continue
			}
			side = side.Normalize()
			q := planeQuadric(side, -side.Dot(a)).scale(boundaryWeight)
			d.quadrics[e.From] = d.quadrics[e.From].add(q)
			d.quadrics[e.To] = d.quadrics[e.To].add(q)
		}
	}

	for v := range d.weights {
		d.weights[v] = 1
		if adaptive {
			d.weights[v] = 1 + featureStrength*d.bend(v)
		}
	}
	for v := range d.vertices {
		d.pushEdges(v)
	}
	return d
}

// plane returns the unit normal and offset of a triangle's supporting plane.
func (d *decimator) plane(tri [3]int) (r3.Vector, float64, bool) {
	a := d.vertices[tri[0]]
	n := spatialmath.PlaneNormal(a, d.vertices[tri[1]], d.vertices[tri[2]])
	if n == (r3.Vector{}) {
		return n, 0, false
	}
	return n, -n.Dot(a), true
}

// bend is 1 minus the smallest agreement between a face normal around v and their mean: 0 on a
// flat patch, up to 2 at a fold.
func (d *decimator) bend(v int) float64 {
	var normals []r3.Vector
	var mean r3.Vector
	for _, t := range d.vertTris[v] {
		if n, _, ok := d.plane(d.triangles[t]); ok {
			normals = append(normals, n)
			mean = mean.Add(n)
		}
	}
	if len(normals) < 2 || mean.Norm() == 0 {
		return 0
	}
	mean = mean.Normalize()
	minDot := 1.0
	for _, n := range normals {
		minDot = math.Min(minDot, n.Dot(mean))
	}
	return 1 - minDot
}

func (d *decimator) neighbors(v int) map[int]struct{} {
	out := map[int]struct{}{}
	for _, t := range d.vertTris[v] {
		for _, u := range d.triangles[t] {
			if u != v {
				out[u] = struct{}{}
			}
		}
	}
	return out
}

// edgeTriangles returns the live triangles sharing edge a-b.
func (d *decimator) edgeTriangles(a, b int) []int {
	var out []int
	for _, t := range d.vertTris[a] {
		if containsVertex(d.triangles[t], b) {
			out = append(out, t)
		}
	}
	return out
}

func (d *decimator) onBoundary(v int) bool {
	for u := range d.neighbors(v) {
		if len(d.edgeTriangles(v, u)) == 1 {
			return true
		}
	}
	return false
}

// pushEdges queues the cheapest collapse direction for every edge around v.
func (d *decimator) pushEdges(v int) {
	for u := range d.neighbors(v) {
		d.pushEdge(v, u)
	}
}

func (d *decimator) pushEdge(a, b int) {
	q := d.quadrics[a].add(d.quadrics[b])
	weight := math.Max(d.weights[a], d.weights[b])
	bias := edgeLengthBias * d.vertices[a].Sub(d.vertices[b]).Norm2()
	costA := weight * (q.eval(d.vertices[a]) + bias)
	costB := weight * (q.eval(d.vertices[b]) + bias)
	keep, drop, cost := a, b, costA
	if costB < costA {
		keep, drop, cost = b, a, costB
	}
	if d.onBoundary(drop) && !d.onBoundary(keep) {
		keep, drop = drop, keep
		cost = weight * (q.eval(d.vertices[keep]) + bias)
	}
	heap.Push(&d.queue, collapse{
		keep: keep, drop: drop, cost: cost,
		keepVer: d.version[keep], dropVer: d.version[drop],
	})
}

// canCollapse checks that merging drop into keep keeps the mesh manifold, creates no duplicate
// triangle, flips no triangle and leaves keep with at least one triangle, so no component
// collapses away entirely.
func (d *decimator) canCollapse(keep, drop int) bool {
	shared := d.edgeTriangles(keep, drop)
	if len(shared) == 0 {
		return false
	}
	if len(d.vertTris[keep])+len(d.vertTris[drop])-2*len(shared) <= 0 {
		return false
	}
	// a border vertex may only slide along its own border edge
	dropBorder, keepBorder := d.onBoundary(drop), d.onBoundary(keep)
	if dropBorder && !keepBorder {
		return false
	}
	if dropBorder && keepBorder && len(shared) != 1 {
		return false
	}

	// link condition: the only common neighbors are the apexes of the shared triangles
	keepNbrs := d.neighbors(keep)
	common := 0
	for u := range d.neighbors(drop) {
		if _, ok := keepNbrs[u]; ok {
			common++
		}
	}
	if common != len(shared) {
		return false
	}

	existing := map[[3]int]struct{}{}
	for _, t := range d.vertTris[keep] {
		existing[mesh.TriangleKey(d.triangles[t])] = struct{}{}
	}
	for _, t := range d.vertTris[drop] {
		tri := d.triangles[t]
		if containsVertex(tri, keep) {
			continue
		}
		before, _, ok := d.plane(tri)
		moved := replaceVertex(tri, drop, keep)
		after, _, okAfter := d.plane(moved)
		if !okAfter || (ok && before.Dot(after) <= 0) {
			return false
		}
		if _, dup := existing[mesh.TriangleKey(moved)]; dup {
			return false
		}
	}
	return true
}

func (d *decimator) apply(keep, drop int) {
	for _, t := range d.vertTris[drop] {
		tri := d.triangles[t]
		if containsVertex(tri, keep) {
			d.alive[t] = false
			d.live--
			for _, v := range tri {
				if v != drop {
					d.vertTris[v] = removeTriangle(d.vertTris[v], t)
				}
			}
			continue
		}
		d.triangles[t] = replaceVertex(tri, drop, keep)
		d.vertTris[keep] = append(d.vertTris[keep], t)
	}
	d.vertTris[drop] = nil
	d.removed[drop] = true
	d.quadrics[keep] = d.quadrics[keep].add(d.quadrics[drop])
	d.weights[keep] = math.Max(d.weights[keep], d.weights[drop])
	d.version[keep]++
	for u := range d.neighbors(keep) {
		d.version[u]++
	}
	for u := range d.neighbors(keep) {
		d.pushEdges(u)
	}
}

func (d *decimator) result(m *mesh.Mesh) *mesh.Mesh {
	out := &mesh.Mesh{Vertices: m.Vertices, Colors: m.Colors, Normals: m.Normals}
	for t, tri := range d.triangles {
		if d.alive[t] {
			out.Triangles = append(out.Triangles, tri)
		}
	}
	out, _ = out.Compact()
	if out.HasNormals() {
		out = out.ComputeVertexNormals()
	}
	return out
}

func containsVertex(tri [3]int, v int) bool {
	return tri[0] == v || tri[1] == v || tri[2] == v
}

func replaceVertex(tri [3]int, from, to int) [3]int {
	for i, v := range tri {
		if v == from {
			tri[i] = to
		}
	}
	return tri
}

func removeTriangle(tris []int, t int) []int {
	for i, u := range tris {
		if u == t {
			return append(tris[:i], tris[i+1:]...)
		}
	}
	return tris
}
