package trim

import (
	"math"

	"github.com/chazu/facet/pkg/brep"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// delaunay flips interior edges until every pair of triangles is locally
// Delaunay in the parameter plane scaled by scale. The ear clipper fans
// out from whatever vertex it reaches first; on a curved surface a fan
// triangle spanning a long stretch of u cuts through the solid.
func delaunay(d *Domain, scale r2.Vec) {
	tp := newTopology(d)
	at := func(i int) r2.Vec {
		uv := d.Points[i].UV
		return r2.Vec{X: uv.X * scale.X, Y: uv.Y * scale.Y}
	}

	var stack []edgeKey
	for _, tri := range d.Tris {
		for i := range 3 {
			stack = append(stack, keyOf(tri[i], tri[(i+1)%3]))
		}
	}
	for budget := 4*len(stack) + len(d.Tris)*len(d.Tris); len(stack) > 0 && budget > 0; budget-- {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !tp.interior(k) {
			continue
		}
		i, j := tp.edges[k][0], tp.edges[k][1]
		t1, ok1 := rotateTo(d.Tris[i], k)
		t2, ok2 := rotateTo(d.Tris[j], k)
		if !ok1 || !ok2 {
			continue
		}
		a, b, c := t1[0], t1[1], t1[2]
		if t2[0] != b || t2[1] != a {
			continue
		}
		e := t2[2]
		if c == e {
			continue
		}
		if _, exists := tp.edges[keyOf(c, e)]; exists {
			continue
		}
		if !inCircumcircle(at(a), at(b), at(c), at(e)) {
			continue
		}
		pa, pb, pc, pe := d.Points[a].UV, d.Points[b].UV, d.Points[c].UV, d.Points[e].UV
		if orient(pa, pe, pc) <= 0 || orient(pe, pb, pc) <= 0 {
			continue
		}

		tp.unlink(i)
		tp.unlink(j)
		d.Tris[i] = [3]int{a, e, c}
		d.Tris[j] = [3]int{e, b, c}
		tp.link(i)
		tp.link(j)
		stack = append(stack, keyOf(a, e), keyOf(e, b), keyOf(b, c), keyOf(c, a))
	}
}

// inCircumcircle reports whether p lies strictly inside the circle through
// the counter-clockwise triangle abc. Cocircular points are outside.
func inCircumcircle(a, b, c, p r2.Vec) bool {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	den := 2 * (bx*cy - by*cx)
	if den <= 0 {
		return false
	}
	b2, c2 := bx*bx+by*by, cx*cx+cy*cy
	ux := (cy*b2 - by*c2) / den
	uy := (bx*c2 - cx*b2) / den
	dx, dy := p.X-a.X-ux, p.Y-a.Y-uy
	return dx*dx+dy*dy < (ux*ux+uy*uy)*(1-1e-9)
}

// metricScale returns the surface speeds along u and v at the parameter
// centroid of pts, so circumcircles are judged close to the surface
// metric. Degenerate speeds fall back to the plain parameter plane.
func metricScale(surf brep.Parametric, pts []Point) r2.Vec {
	if len(pts) == 0 {
		return r2.Vec{X: 1, Y: 1}
	}
	var c r2.Vec
	for _, p := range pts {
		c = r2.Add(c, p.UV)
	}
	c = r2.Scale(1/float64(len(pts)), c)
	su, sv := surf.Derivs(c.X, c.Y)
	x, y := r3.Norm(su), r3.Norm(sv)
	if !(x > 1e-12) || !(y > 1e-12) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return r2.Vec{X: 1, Y: 1}
	}
	return r2.Vec{X: x, Y: y}
}
