package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// BSplineCurve is a (possibly rational) B-spline curve. Knots are the
// fully expanded knot vector: len(Knots) == len(Control)+Degree+1.
// Weights is nil for a non-rational curve.
type BSplineCurve struct {
	Degree  int
	Control []r3.Vec
	Weights []float64
	Knots   []float64
}

// BSplineSurface is a tensor-product (possibly rational) B-spline surface.
// Control is indexed [i][j] with i along u.
type BSplineSurface struct {
	DegreeU, DegreeV int
	Control          [][]r3.Vec
	Weights          [][]float64
	KnotsU, KnotsV   []float64
}

// findSpan returns the knot span index containing t (The NURBS Book A2.1).
func findSpan(n, p int, t float64, knots []float64) int {
	if t >= knots[n+1] {
		return n
	}
	if t <= knots[p] {
		return p
	}
	lo, hi := p, n+1
	mid := (lo + hi) / 2
	for t < knots[mid] || t >= knots[mid+1] {
		if t < knots[mid] {
			hi = mid
		} else {
			lo = mid
		}
		mid = (lo + hi) / 2
	}
	return mid
}

// basisFuns computes the p+1 non-zero basis functions at t (A2.2).
func basisFuns(span int, t float64, p int, knots []float64) []float64 {
	n := make([]float64, p+1)
	left := make([]float64, p+1)
	right := make([]float64, p+1)
	n[0] = 1
	for j := 1; j <= p; j++ {
		left[j] = t - knots[span+1-j]
		right[j] = knots[span+j] - t
		saved := 0.0
		for r := 0; r < j; r++ {
			d := right[r+1] + left[j-r]
			temp := 0.0
			if d != 0 {
				temp = n[r] / d
			}
			n[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		n[j] = saved
	}
	return n
}

// basisDers returns the basis functions and their first derivatives.
func basisDers(span int, t float64, p int, knots []float64) (n, dn []float64) {
	n = basisFuns(span, t, p, knots)
	dn = make([]float64, p+1)
	if p == 0 {
		return n, dn
	}
	lower := basisFuns(span, t, p-1, knots)
	for j := 0; j <= p; j++ {
		i := span - p + j
		var a, b float64
		if j >= 1 {
			if d := knots[i+p] - knots[i]; d != 0 {
				a = lower[j-1] / d
			}
		}
		if j <= p-1 {
			if d := knots[i+p+1] - knots[i+1]; d != 0 {
				b = lower[j] / d
			}
		}
		dn[j] = float64(p) * (a - b)
	}
	return n, dn
}

func (c *BSplineCurve) weight(i int) float64 {
	if c.Weights == nil {
		return 1
	}
	return c.Weights[i]
}

// Range is the valid parameter interval.
func (c *BSplineCurve) Range() (float64, float64) {
	return c.Knots[c.Degree], c.Knots[len(c.Control)]
}

func (c *BSplineCurve) eval(t float64) (pt, d r3.Vec) {
	p := c.Degree
	span := findSpan(len(c.Control)-1, p, t, c.Knots)
	n, dn := basisDers(span, t, p, c.Knots)
	var a, da r3.Vec
	var w, dw float64
	for j := 0; j <= p; j++ {
		i := span - p + j
		wi := c.weight(i)
		a = r3.Add(a, r3.Scale(n[j]*wi, c.Control[i]))
		da = r3.Add(da, r3.Scale(dn[j]*wi, c.Control[i]))
		w += n[j] * wi
		dw += dn[j] * wi
	}
	if w == 0 {
		return a, da
	}
	pt = r3.Scale(1/w, a)
	d = r3.Scale(1/w, r3.Sub(da, r3.Scale(dw, pt)))
	return pt, d
}

func (c *BSplineCurve) Eval(t float64) r3.Vec {
	p, _ := c.eval(t)
	return p
}

func (c *BSplineCurve) Deriv(t float64) r3.Vec {
	_, d := c.eval(t)
	return d
}

// Period is zero: closed B-spline curves are handled as open ones whose
// ends coincide.
func (c *BSplineCurve) Period() float64 { return 0 }

// Project finds the parameter of the curve point closest to p by a coarse
// scan followed by Newton refinement. hint breaks ties between equidistant
// candidates such as the two ends of a closed curve.
func (c *BSplineCurve) Project(p r3.Vec, hint float64) float64 {
	t0, t1 := c.Range()
	samples := 8 * (len(c.Control) + c.Degree)
	best, bestD := t0, math.Inf(1)
	for i := 0; i <= samples; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(samples)
		d := r3.Norm2(r3.Sub(c.Eval(t), p))
		if d < bestD-1e-18 || (math.Abs(d-bestD) <= 1e-18 && math.Abs(t-hint) < math.Abs(best-hint)) {
			best, bestD = t, d
		}
	}
	return newton1(best, t0, t1, func(t float64) (float64, float64) {
		pt, d := c.eval(t)
		diff := r3.Sub(pt, p)
		return r3.Dot(diff, d), r3.Dot(d, d)
	})
}

// newton1 refines a root of f by Newton steps clamped to [lo, hi]. f
// returns the residual and an approximation of its derivative.
func newton1(t, lo, hi float64, f func(float64) (float64, float64)) float64 {
	for range 20 {
		g, h := f(t)
		if h == 0 {
			break
		}
		step := g / h
		t = math.Max(lo, math.Min(hi, t-step))
		if math.Abs(step) < 1e-14*math.Max(1, math.Abs(t)) {
			break
		}
	}
	return t
}

func (s *BSplineSurface) weight(i, j int) float64 {
	if s.Weights == nil {
		return 1
	}
	return s.Weights[i][j]
}

func (s *BSplineSurface) eval(u, v float64) (pt, su, sv r3.Vec) {
	p, q := s.DegreeU, s.DegreeV
	nu, nv := len(s.Control), len(s.Control[0])
	spanU := findSpan(nu-1, p, u, s.KnotsU)
	spanV := findSpan(nv-1, q, v, s.KnotsV)
	bu, dbu := basisDers(spanU, u, p, s.KnotsU)
	bv, dbv := basisDers(spanV, v, q, s.KnotsV)

	var a, au, av r3.Vec
	var w, wu, wv float64
	for k := 0; k <= p; k++ {
		i := spanU - p + k
		for l := 0; l <= q; l++ {
			j := spanV - q + l
			wij := s.weight(i, j)
			cp := s.Control[i][j]
			a = r3.Add(a, r3.Scale(bu[k]*bv[l]*wij, cp))
			au = r3.Add(au, r3.Scale(dbu[k]*bv[l]*wij, cp))
			av = r3.Add(av, r3.Scale(bu[k]*dbv[l]*wij, cp))
			w += bu[k] * bv[l] * wij
			wu += dbu[k] * bv[l] * wij
			wv += bu[k] * dbv[l] * wij
		}
	}
	if w == 0 {
		return a, au, av
	}
	pt = r3.Scale(1/w, a)
	su = r3.Scale(1/w, r3.Sub(au, r3.Scale(wu, pt)))
	sv = r3.Scale(1/w, r3.Sub(av, r3.Scale(wv, pt)))
	return pt, su, sv
}

func (s *BSplineSurface) Eval(u, v float64) r3.Vec {
	p, _, _ := s.eval(u, v)
	return p
}

func (s *BSplineSurface) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	_, su, sv := s.eval(u, v)
	return su, sv
}

func (s *BSplineSurface) Domain() Domain {
	nu, nv := len(s.Control), len(s.Control[0])
	return Domain{
		UMin: s.KnotsU[s.DegreeU], UMax: s.KnotsU[nu],
		VMin: s.KnotsV[s.DegreeV], VMax: s.KnotsV[nv],
	}
}

// Project inverts Eval by grid search and a 2D Newton iteration. Among
// equally close grid points the one nearest hint wins, so a boundary walk
// stays on one side of a closed patch's seam.
func (s *BSplineSurface) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	d := s.Domain()
	nu := 4 * (len(s.Control) + s.DegreeU)
	nv := 4 * (len(s.Control[0]) + s.DegreeV)
	best := r2.Vec{X: d.UMin, Y: d.VMin}
	bestD := math.Inf(1)
	scale := 1e-10 * (1 + r3.Norm2(p))
	for i := 0; i <= nu; i++ {
		u := d.UMin + (d.UMax-d.UMin)*float64(i)/float64(nu)
		for j := 0; j <= nv; j++ {
			v := d.VMin + (d.VMax-d.VMin)*float64(j)/float64(nv)
			dd := r3.Norm2(r3.Sub(s.Eval(u, v), p))
			cand := r2.Vec{X: u, Y: v}
			if dd < bestD-scale || (math.Abs(dd-bestD) <= scale && r2.Norm2(r2.Sub(cand, hint)) < r2.Norm2(r2.Sub(best, hint))) {
				best, bestD = cand, dd
			}
		}
	}

	uv := best
	for range 25 {
		pt, su, sv := s.eval(uv.X, uv.Y)
		r := r3.Sub(pt, p)
		// Gauss-Newton on |S(u,v) - p|^2.
		a11, a12, a22 := r3.Dot(su, su), r3.Dot(su, sv), r3.Dot(sv, sv)
		b1, b2 := -r3.Dot(r, su), -r3.Dot(r, sv)
		det := a11*a22 - a12*a12
		if math.Abs(det) < 1e-30 {
			break
		}
		du := (b1*a22 - b2*a12) / det
		dv := (a11*b2 - a12*b1) / det
		uv.X = math.Max(d.UMin, math.Min(d.UMax, uv.X+du))
		uv.Y = math.Max(d.VMin, math.Min(d.VMax, uv.Y+dv))
		if math.Abs(du)+math.Abs(dv) < 1e-13 {
			break
		}
	}
	return uv, true
}

// ExpandKnots turns the STEP (knot, multiplicity) pairs into a full knot
// vector.
func ExpandKnots(knots []float64, mults []int) []float64 {
	var out []float64
	for i, k := range knots {
		m := 1
		if i < len(mults) {
			m = mults[i]
		}
		for range m {
			out = append(out, k)
		}
	}
	return out
}
