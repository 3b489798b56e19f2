package analyse

import (
	"github.com/chazu/facet/pkg/trim"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// rule is a Gauss–Legendre rule on [0,1].
type rule struct {
	x, w []float64
}

func newRule(n int) rule {
	r := rule{x: make([]float64, n), w: make([]float64, n)}
	quad.Legendre{}.FixedLocations(r.x, r.w, 0, 1)
	return r
}

// moments are the surface integrals of one face.
type moments struct {
	area  float64
	first r3.Vec  // ∫ p dA
	vol   float64 // (1/3) ∫ p·n dA
	vol2  r3.Vec  // (1/2) ∫ (x² nx, y² ny, z² nz) dA
}

func (m *moments) add(o moments) {
	m.area += o.area
	m.first = r3.Add(m.first, o.first)
	m.vol += o.vol
	m.vol2 = r3.Add(m.vol2, o.vol2)
}

// integrate sums the moments over every parameter triangle of d. Each
// triangle is pulled back to the unit square by the collapsed map
// p(s,t) = a + s((b−a) + t(c−b)), whose Jacobian is s·2A, and the
// integrand |Su×Sv| is evaluated at the tensor Gauss nodes. sign orients
// the normal along the face.
func integrate(d *trim.Domain, q rule, sign float64) moments {
	var total moments
	for _, tri := range d.Tris {
		a, b, c := d.Points[tri[0]].UV, d.Points[tri[1]].UV, d.Points[tri[2]].UV
		ab, bc := r2.Sub(b, a), r2.Sub(c, b)
		twiceArea := r2.Cross(ab, r2.Sub(c, a))
		if twiceArea <= 0 {
			continue
		}
		for i, s := range q.x {
			for j, t := range q.x {
				uv := r2.Add(a, r2.Scale(s, r2.Add(ab, r2.Scale(t, bc))))
				w := q.w[i] * q.w[j] * s * twiceArea
				p := d.Surface.Eval(uv.X, uv.Y)
				su, sv := d.Surface.Derivs(uv.X, uv.Y)
				n := r3.Scale(sign, r3.Cross(su, sv))
				dA := r3.Norm(n) * w
				total.area += dA
				total.first = r3.Add(total.first, r3.Scale(dA, p))
				total.vol += r3.Dot(p, n) * w / 3
				total.vol2 = r3.Add(total.vol2, r3.Scale(w/2, r3.Vec{X: p.X * p.X * n.X, Y: p.Y * p.Y * n.Y, Z: p.Z * p.Z * n.Z}))
			}
		}
	}
	return total
}
