package trim

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

type edgeKey [2]int

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

func (k edgeKey) less(o edgeKey) bool {
	return k[0] < o[0] || (k[0] == o[0] && k[1] < o[1])
}

// topology indexes the triangles of a domain by their undirected edges.
// An edge used by one triangle lies on the face boundary and is never
// split or flipped.
type topology struct {
	d     *Domain
	edges map[edgeKey][]int
}

func newTopology(d *Domain) *topology {
	tp := &topology{d: d, edges: make(map[edgeKey][]int)}
	for i := range d.Tris {
		tp.link(i)
	}
	return tp
}

func (tp *topology) link(t int) {
	tri := tp.d.Tris[t]
	for i := range 3 {
		k := keyOf(tri[i], tri[(i+1)%3])
		tp.edges[k] = append(tp.edges[k], t)
	}
}

func (tp *topology) unlink(t int) {
	tri := tp.d.Tris[t]
	for i := range 3 {
		k := keyOf(tri[i], tri[(i+1)%3])
		ts := tp.edges[k]
		if j := slices.Index(ts, t); j >= 0 {
			ts = slices.Delete(ts, j, j+1)
		}
		if len(ts) == 0 {
			delete(tp.edges, k)
		} else {
			tp.edges[k] = ts
		}
	}
}

// interior reports whether k separates exactly two triangles.
func (tp *topology) interior(k edgeKey) bool {
	return len(tp.edges[k]) == 2
}

// across returns the triangle on the other side of k from t.
func (tp *topology) across(t int, k edgeKey) (int, bool) {
	ts := tp.edges[k]
	switch {
	case len(ts) != 2:
		return -1, false
	case ts[0] == t:
		return ts[1], true
	case ts[1] == t:
		return ts[0], true
	}
	return -1, false
}

// rotateTo rotates tri so that its first two vertices are the ends of k,
// keeping the winding.
func rotateTo(tri [3]int, k edgeKey) ([3]int, bool) {
	for range 3 {
		if keyOf(tri[0], tri[1]) == k {
			return tri, true
		}
		tri = [3]int{tri[1], tri[2], tri[0]}
	}
	return tri, false
}

// refiner splits triangles whose chords stray from the surface by
// longest-edge propagation: an edge is only bisected once it is the
// longest edge of the triangles on both sides, so children keep the
// parent's shape and no vertex is left hanging on a neighbour's edge.
type refiner struct {
	*topology
	opts  Options
	queue []int
}

// refine bisects interior edges until every triangle is within tolerance
// of the surface. It reports false when the triangle cap stopped it early.
func refine(d *Domain, opts Options) bool {
	r := &refiner{topology: newTopology(d), opts: opts}
	for i := range d.Tris {
		r.queue = append(r.queue, i)
	}
	for len(r.queue) > 0 {
		if len(d.Tris) >= opts.MaxTriangles {
			return false
		}
		t := r.queue[len(r.queue)-1]
		r.queue = r.queue[:len(r.queue)-1]
		if r.chordError(t) > opts.Tolerance {
			r.split(t)
		}
	}
	return true
}

// split bisects along the propagation path from t until t itself has
// been bisected. A triangle whose longest edge is on the boundary is
// left as it is: its chords are no longer than that boundary chord,
// which was sampled to tolerance.
func (r *refiner) split(t int) {
	for len(r.d.Tris) < r.opts.MaxTriangles {
		k, ok := r.terminal(t)
		if !ok {
			return
		}
		touched, ok := r.bisect(k)
		if !ok || slices.Contains(touched, t) {
			return
		}
	}
}

// terminal walks from t across longest edges to the first edge that is
// longest on both sides. When the walk reaches a triangle whose longest
// edge is on the boundary, the edge it arrived through is used instead.
func (r *refiner) terminal(t int) (edgeKey, bool) {
	k := r.longest(t)
	if !r.interior(k) || r.length(k) <= r.opts.Tolerance {
		return k, false
	}
	for range len(r.d.Tris) {
		n, ok := r.across(t, k)
		if !ok {
			return k, false
		}
		nk := r.longest(n)
		if nk == k || !r.interior(nk) {
			return k, true
		}
		t, k = n, nk
	}
	return k, false
}

// bisect splits edge k at its parameter midpoint together with both
// triangles that use it. Nothing changes when a child would not be
// counter-clockwise.
func (r *refiner) bisect(k edgeKey) ([]int, bool) {
	ts := slices.Clone(r.edges[k])
	mid := r2.Scale(0.5, r2.Add(r.d.Points[k[0]].UV, r.d.Points[k[1]].UV))
	tris := make([][3]int, len(ts))
	for i, t := range ts {
		tri, ok := rotateTo(r.d.Tris[t], k)
		if !ok {
			return nil, false
		}
		p, q, o := r.d.Points[tri[0]].UV, r.d.Points[tri[1]].UV, r.d.Points[tri[2]].UV
		if orient(p, mid, o) <= 0 || orient(mid, q, o) <= 0 {
			return nil, false
		}
		tris[i] = tri
	}

	m := r.point(mid)
	for i, t := range ts {
		p, q, o := tris[i][0], tris[i][1], tris[i][2]
		r.unlink(t)
		r.d.Tris[t] = [3]int{p, m, o}
		r.link(t)
		r.d.Tris = append(r.d.Tris, [3]int{m, q, o})
		n := len(r.d.Tris) - 1
		r.link(n)
		r.queue = append(r.queue, t, n)
	}
	return ts, true
}

func (r *refiner) point(uv r2.Vec) int {
	r.d.Points = append(r.d.Points, Point{UV: uv, P: r.d.Surface.Eval(uv.X, uv.Y)})
	return len(r.d.Points) - 1
}

// length is the first-order arc length of an edge on the surface. Chord
// length would be zero for an edge joining the two sides of a seam.
func (r *refiner) length(k edgeKey) float64 {
	a, b := r.d.Points[k[0]].UV, r.d.Points[k[1]].UV
	mid := r2.Scale(0.5, r2.Add(a, b))
	du := r2.Sub(b, a)
	su, sv := r.d.Surface.Derivs(mid.X, mid.Y)
	return r3.Norm(r3.Add(r3.Scale(du.X, su), r3.Scale(du.Y, sv)))
}

// longest returns the longest edge of t, ties broken by vertex index.
func (r *refiner) longest(t int) edgeKey {
	tri := r.d.Tris[t]
	best := keyOf(tri[0], tri[1])
	bestLen := r.length(best)
	for i := 1; i < 3; i++ {
		k := keyOf(tri[i], tri[(i+1)%3])
		if l := r.length(k); l > bestLen || (l == bestLen && k.less(best)) {
			best, bestLen = k, l
		}
	}
	return best
}

func (r *refiner) deviation(a, b int) float64 {
	pa, pb := r.d.Points[a], r.d.Points[b]
	mid := r2.Scale(0.5, r2.Add(pa.UV, pb.UV))
	chord := r3.Scale(0.5, r3.Add(pa.P, pb.P))
	return r3.Norm(r3.Sub(r.d.Surface.Eval(mid.X, mid.Y), chord))
}

// chordError is the largest distance between the flat triangle and the
// surface at its centroid and its interior edge midpoints.
func (r *refiner) chordError(t int) float64 {
	tri := r.d.Tris[t]
	p := [3]Point{r.d.Points[tri[0]], r.d.Points[tri[1]], r.d.Points[tri[2]]}
	uv := r2.Scale(1.0/3, r2.Add(r2.Add(p[0].UV, p[1].UV), p[2].UV))
	flat := r3.Scale(1.0/3, r3.Add(r3.Add(p[0].P, p[1].P), p[2].P))
	worst := r3.Norm(r3.Sub(r.d.Surface.Eval(uv.X, uv.Y), flat))
	for i := range 3 {
		a, b := tri[i], tri[(i+1)%3]
		if !r.interior(keyOf(a, b)) {
			continue
		}
		worst = math.Max(worst, r.deviation(a, b))
	}
	return worst
}
