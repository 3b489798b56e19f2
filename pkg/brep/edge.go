package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultAngularTolerance bounds the turning angle between consecutive
// edge samples, so small chord tolerances on large arcs still give round
// circles.
const DefaultAngularTolerance = 0.35

// Closed reports whether the edge starts and ends on the same vertex.
func (e *Edge) Closed() bool {
	return e.Start == e.End || r3.Norm(r3.Sub(e.Start.Point, e.End.Point)) < 1e-12
}

// Params returns the curve parameters of the start and end vertices,
// ordered in the direction of travel. For periodic curves the end is
// shifted by whole periods so that the travelled span is positive when
// Forward and negative otherwise; a closed edge spans one full period.
// ok is false when the curve has no evaluator.
func (e *Edge) Params() (c ParamCurve, t0, t1 float64, ok bool) {
	c = Evaluator(e.Curve)
	if c == nil {
		return nil, 0, 0, false
	}
	lo, hi := c.Range()
	hint := 0.0
	if !math.IsInf(lo, 0) {
		hint = lo
	}
	if !e.Forward && !math.IsInf(hi, 0) && c.Period() == 0 {
		hint = hi
	}
	t0 = c.Project(e.Start.Point, hint)
	t1 = c.Project(e.End.Point, t0)

	period := c.Period()
	const eps = 1e-9
	switch {
	case period > 0 && e.Closed():
		if e.Forward {
			t1 = t0 + period
		} else {
			t1 = t0 - period
		}
	case period > 0 && e.Forward:
		for t1 <= t0+eps {
			t1 += period
		}
		for t1 > t0+period+eps {
			t1 -= period
		}
	case period > 0:
		for t1 >= t0-eps {
			t1 -= period
		}
		for t1 < t0-period-eps {
			t1 += period
		}
	case e.Closed() && !math.IsInf(lo, 0) && !math.IsInf(hi, 0):
		t0, t1 = lo, hi
		if !e.Forward {
			t0, t1 = hi, lo
		}
	}
	return c, t0, t1, true
}

// Sample discretises the edge from Start to End so that no chord deviates
// from the curve by more than tol and consecutive tangents turn by at most
// angTol. The first and last samples are exactly the vertex points, which
// keeps neighbouring faces watertight at shared edges.
func (e *Edge) Sample(tol, angTol float64) []r3.Vec {
	if angTol <= 0 {
		angTol = DefaultAngularTolerance
	}
	c, t0, t1, ok := e.Params()
	if !ok {
		return []r3.Vec{e.Start.Point, e.End.Point}
	}

	var ts []float64
	switch c := c.(type) {
	case *Line:
		ts = []float64{t0, t1}
	case *Circle:
		ts = uniformParams(t0, t1, arcSegments(math.Abs(t1-t0), c.Radius, tol, angTol))
	case *Ellipse:
		r := math.Max(c.SemiAxis[0], c.SemiAxis[1])
		ts = uniformParams(t0, t1, arcSegments(math.Abs(t1-t0), r, tol, angTol))
	default:
		ts = adaptiveParams(c, t0, t1, tol, angTol)
	}

	pts := make([]r3.Vec, len(ts))
	for i, t := range ts {
		pts[i] = c.Eval(t)
	}
	pts[0] = e.Start.Point
	pts[len(pts)-1] = e.End.Point
	return pts
}

// arcSegments is the number of equal segments that keep the sagitta of an
// arc of radius r under tol.
func arcSegments(span, r, tol, angTol float64) int {
	n := int(math.Ceil(span / angTol))
	if r > tol && tol > 0 {
		step := 2 * math.Acos(1-tol/r)
		if step > 0 {
			n = max(n, int(math.Ceil(span/step)))
		}
	}
	return max(n, 1)
}

func uniformParams(t0, t1 float64, n int) []float64 {
	ts := make([]float64, n+1)
	for i := range ts {
		ts[i] = t0 + (t1-t0)*float64(i)/float64(n)
	}
	return ts
}

// adaptiveParams subdivides [t0, t1] until every chord is within tol of
// the curve midpoint and the tangent turns by less than angTol.
func adaptiveParams(c ParamCurve, t0, t1, tol, angTol float64) []float64 {
	const seed = 8
	const maxDepth = 14
	out := []float64{t0}
	var split func(a, b float64, pa, pb r3.Vec, depth int)
	split = func(a, b float64, pa, pb r3.Vec, depth int) {
		m := (a + b) / 2
		pm := c.Eval(m)
		chordMid := r3.Scale(0.5, r3.Add(pa, pb))
		dev := r3.Norm(r3.Sub(pm, chordMid))
		turn := angleBetween(c.Deriv(a), c.Deriv(b))
		if depth < maxDepth && (dev > tol || turn > angTol) {
			split(a, m, pa, pm, depth+1)
			split(m, b, pm, pb, depth+1)
			return
		}
		out = append(out, b)
	}
	prev := t0
	pPrev := c.Eval(t0)
	for i := 1; i <= seed; i++ {
		t := t0 + (t1-t0)*float64(i)/seed
		p := c.Eval(t)
		split(prev, t, pPrev, p, 0)
		prev, pPrev = t, p
	}
	return mergeCollinear(c, out, tol)
}

// mergeCollinear drops interior parameters whose removal keeps the chord
// within tol, so straight B-spline spans do not keep the seed samples.
func mergeCollinear(c ParamCurve, ts []float64, tol float64) []float64 {
	if len(ts) <= 2 {
		return ts
	}
	out := []float64{ts[0]}
	for i := 1; i < len(ts)-1; i++ {
		a := c.Eval(out[len(out)-1])
		b := c.Eval(ts[i+1])
		ok := true
		for _, t := range []float64{ts[i], (out[len(out)-1] + ts[i]) / 2, (ts[i] + ts[i+1]) / 2} {
			if pointSegmentDistance(c.Eval(t), a, b) > tol/4 {
				ok = false
				break
			}
		}
		if !ok {
			out = append(out, ts[i])
		}
	}
	return append(out, ts[len(ts)-1])
}

func angleBetween(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := r3.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

func pointSegmentDistance(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return r3.Norm(r3.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, a), ab)/l2))
	return r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}

// Length is the polyline length of the edge at the given tolerance.
func (e *Edge) Length(tol float64) float64 {
	pts := e.Sample(tol, DefaultAngularTolerance)
	l := 0.0
	for i := 1; i < len(pts); i++ {
		l += r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	return l
}

// Points returns the samples of an oriented edge in traversal order.
func (oe OrientedEdge) Points(samples []r3.Vec) []r3.Vec {
	if !oe.Reversed {
		return samples
	}
	out := make([]r3.Vec, len(samples))
	for i, p := range samples {
		out[len(samples)-1-i] = p
	}
	return out
}
