package trim

import (
	"math"
	"sort"

	"github.com/chazu/facet/pkg/brep"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// wrapping is a projected loop whose walk does not return to its start in
// parameter space: it goes once around a periodic direction.
type wrapping struct {
	poly   polygon
	turns  int // signed number of periods travelled
	vAxis  bool
	period float64
}

// paramLoops projects each 3D ring into the parameter plane. Loops that
// close directly are returned as they are; loops that wind around a
// periodic direction are paired with an opposite winding loop or closed
// through a pole.
func paramLoops(surf brep.Parametric, rings []polygon, sameSense bool, opts Options) ([]polygon, error) {
	dom := surf.Domain()
	var closed []polygon
	var wraps []wrapping
	for _, r := range rings {
		if len(r.pts) < 2 {
			continue
		}
		w, err := project(surf, dom, r)
		if err != nil {
			return nil, err
		}
		if w.turns == 0 {
			closed = append(closed, w.poly)
			continue
		}
		wraps = append(wraps, w)
	}

	var uWraps, vWraps []wrapping
	for _, w := range wraps {
		if w.vAxis {
			vWraps = append(vWraps, w)
		} else {
			uWraps = append(uWraps, w)
		}
	}
	if len(uWraps) > 0 {
		p, err := resolveWraps(surf, uWraps, sameSense, opts)
		if err != nil {
			return nil, err
		}
		closed = append(closed, p...)
	}
	if len(vWraps) > 0 {
		if len(vWraps) != 2 || vWraps[0].turns != -vWraps[1].turns {
			return nil, degenerate("%d unpaired loops wind around v", len(vWraps))
		}
		swapped := swapSurface{surf}
		for i := range vWraps {
			vWraps[i].poly = swapUV(vWraps[i].poly)
		}
		p := stitch(swapped, vWraps[0], vWraps[1], opts)
		closed = append(closed, swapUV(p))
	}
	return closed, nil
}

// project walks a ring, choosing for each point the periodic
// representative nearest the previous one.
func project(surf brep.Parametric, dom brep.Domain, r polygon) (wrapping, error) {
	n := len(r.pts)
	singular := make([]bool, n)
	start := -1
	for i, p := range r.pts {
		_, ok := surf.Project(p.P, dom.Center())
		singular[i] = !ok
		if ok && start < 0 {
			start = i
		}
	}
	if start < 0 {
		return wrapping{}, degenerate("every boundary point lies on a surface singularity")
	}
	pts := append(append([]Point(nil), r.pts[start:]...), r.pts[:start]...)
	singular = append(append([]bool(nil), singular[start:]...), singular[:start]...)

	hint := dom.Center()
	for i := range pts {
		pts[i].UV, _ = surf.Project(pts[i].P, hint)
		hint = pts[i].UV
	}
	back, _ := surf.Project(pts[0].P, hint)
	mis := r2.Sub(back, pts[0].UV)

	uPeriod, vPeriod := dom.UMax-dom.UMin, dom.VMax-dom.VMin
	ku, kv := 0, 0
	if dom.UPeriodic {
		ku = int(math.Round(mis.X / uPeriod))
	}
	if dom.VPeriodic {
		kv = int(math.Round(mis.Y / vPeriod))
	}

	// A walk through a pole loses its u; reinsert the jump at the pole.
	if ku != 0 {
		s := -1
		for i := n - 1; i >= 0; i-- {
			if singular[i] {
				s = i
				break
			}
		}
		if s >= 0 {
			shift := float64(ku) * uPeriod
			for i := s + 1; i < n; i++ {
				pts[i].UV.X -= shift
			}
			nextU := pts[0].UV.X
			if s+1 < n {
				nextU = pts[s+1].UV.X
			}
			dup := Point{UV: r2.Vec{X: nextU, Y: pts[s].UV.Y}, P: pts[s].P}
			pts = append(pts[:s+1], append([]Point{dup}, pts[s+1:]...)...)
			ku = 0
		}
	}

	w := wrapping{poly: polygon{pts: pts, outer: r.outer}}
	switch {
	case ku != 0 && kv != 0:
		return wrapping{}, degenerate("loop winds around both periodic directions")
	case ku != 0:
		w.turns, w.period = ku, uPeriod
	case kv != 0:
		w.turns, w.period, w.vAxis = kv, vPeriod, true
	}
	return w, nil
}

// resolveWraps closes loops that wind around u.
func resolveWraps(surf brep.Parametric, ws []wrapping, sameSense bool, opts Options) ([]polygon, error) {
	switch {
	case len(ws) == 2 && ws[0].turns == -ws[1].turns && abs(ws[0].turns) == 1:
		return []polygon{stitch(surf, ws[0], ws[1], opts)}, nil
	case len(ws) == 1 && abs(ws[0].turns) == 1:
		p, err := closeAtPole(surf, ws[0], sameSense, opts)
		if err != nil {
			return nil, err
		}
		return []polygon{p}, nil
	}
	return nil, degenerate("%d loops wind around u", len(ws))
}

// closeAtPole closes a single winding loop through the pole on the side
// where the face lies: left of travel in (u,v), mirrored when the face
// normal opposes the surface normal.
func closeAtPole(surf brep.Parametric, w wrapping, sameSense bool, opts Options) (polygon, error) {
	poled, ok := surf.(brep.Poled)
	if !ok {
		return polygon{}, degenerate("loop winds around a surface without poles")
	}
	pts := w.poly.pts
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo, hi = math.Min(lo, p.UV.Y), math.Max(hi, p.UV.Y)
	}
	up := w.turns > 0
	if !sameSense {
		up = !up
	}
	const eps = 1e-9
	pole, found := 0.0, false
	for _, v := range poled.Poles() {
		if up && v >= hi-eps && (!found || v < pole) {
			pole, found = v, true
		}
		if !up && v <= lo+eps && (!found || v > pole) {
			pole, found = v, true
		}
	}
	if !found {
		return polygon{}, degenerate("no pole on the face side of a winding loop")
	}

	u0 := pts[0].UV.X
	u1 := u0 + float64(w.turns)*w.period
	first := Point{UV: r2.Vec{X: u1, Y: pts[0].UV.Y}, P: pts[0].P}
	apex := surf.Eval(u0, pole)
	out := append([]Point(nil), pts...)
	out = append(out, first)
	out = append(out, isoSegment(surf, first.UV, r2.Vec{X: u1, Y: pole}, 1, opts)...)
	out = append(out, Point{UV: r2.Vec{X: u1, Y: pole}, P: apex})
	out = append(out, isoSegment(surf, r2.Vec{X: u1, Y: pole}, r2.Vec{X: u0, Y: pole}, minSegments(w.period, opts), opts)...)
	out = append(out, Point{UV: r2.Vec{X: u0, Y: pole}, P: apex})
	out = append(out, isoSegment(surf, r2.Vec{X: u0, Y: pole}, pts[0].UV, 1, opts)...)
	for i := range out {
		if out[i].UV.Y == pole {
			out[i].P = apex
		}
	}
	return polygon{pts: out, outer: w.poly.outer}, nil
}

// stitch joins two loops winding in opposite directions around u into one
// band polygon: a then the cut-open b, joined along a seam at a's start.
func stitch(surf brep.Parametric, a, b wrapping, opts Options) polygon {
	if a.turns < 0 {
		a, b = b, a
	}
	period := a.period
	c := a.poly.pts[0].UV.X
	top := c + period
	bp := b.poly.pts
	m := len(bp)

	// Walk b (decreasing u overall) to find where it crosses c mod period.
	at := func(i int) Point {
		p := bp[i%m]
		p.UV.X -= float64(i/m) * period
		return p
	}
	cut, frac, cv := 0, 0.0, 0.0
	for j := range m {
		p, q := at(j), at(j+1)
		k := math.Ceil((q.UV.X - c) / period)
		v := c + k*period
		if v <= p.UV.X && p.UV.X != q.UV.X {
			cut, cv = j, v
			frac = (p.UV.X - v) / (p.UV.X - q.UV.X)
			break
		}
	}
	p, q := at(cut), at(cut+1)
	x := Point{
		UV: r2.Add(p.UV, r2.Scale(frac, r2.Sub(q.UV, p.UV))),
		P:  r3.Add(p.P, r3.Scale(frac, r3.Sub(q.P, p.P))),
	}
	shift := top - cv

	band := append([]Point(nil), a.poly.pts...)
	aEnd := Point{UV: r2.Vec{X: top, Y: a.poly.pts[0].UV.Y}, P: a.poly.pts[0].P}
	xTop := Point{UV: r2.Vec{X: top, Y: x.UV.Y}, P: x.P}
	band = append(band, aEnd)
	band = append(band, isoSegment(surf, aEnd.UV, xTop.UV, 1, opts)...)
	band = append(band, xTop)
	for i := cut + 1; i <= cut+m; i++ {
		pt := at(i)
		pt.UV.X += shift
		if r3.Norm(r3.Sub(pt.P, x.P)) < 1e-12 && math.Abs(pt.UV.X-c) < 1e-9 {
			continue
		}
		band = append(band, pt)
	}
	xBottom := Point{UV: r2.Vec{X: c, Y: x.UV.Y}, P: x.P}
	band = append(band, xBottom)
	band = append(band, isoSegment(surf, xBottom.UV, a.poly.pts[0].UV, 1, opts)...)
	return dedupe(polygon{pts: band, outer: a.poly.outer || b.poly.outer})
}

// dedupe drops consecutive points that coincide in parameter space.
func dedupe(p polygon) polygon {
	out := p.pts[:0:0]
	for i, q := range p.pts {
		if i > 0 && r2.Norm(r2.Sub(q.UV, out[len(out)-1].UV)) < 1e-12 {
			continue
		}
		out = append(out, q)
	}
	if n := len(out); n > 1 && r2.Norm(r2.Sub(out[0].UV, out[n-1].UV)) < 1e-12 {
		out = out[:n-1]
	}
	return polygon{pts: out, outer: p.outer}
}

// naturalBoundary is the rectangle of a bounded domain, sampled to the
// chord tolerance. On periodic directions the closing side is evaluated
// at the opening parameter so seam points coincide exactly.
func naturalBoundary(surf brep.Parametric, opts Options) (polygon, error) {
	d := surf.Domain()
	if !d.Bounded() {
		return polygon{}, degenerate("face has no boundary on an unbounded surface")
	}
	corners := []r2.Vec{
		{X: d.UMin, Y: d.VMin},
		{X: d.UMax, Y: d.VMin},
		{X: d.UMax, Y: d.VMax},
		{X: d.UMin, Y: d.VMax},
	}
	eval := func(uv r2.Vec) r3.Vec {
		if d.UPeriodic && uv.X == d.UMax {
			uv.X = d.UMin
		}
		if d.VPeriodic && uv.Y == d.VMax {
			uv.Y = d.VMin
		}
		return surf.Eval(uv.X, uv.Y)
	}
	var pts []Point
	for i, a := range corners {
		b := corners[(i+1)%4]
		span := d.UMax - d.UMin
		if i%2 == 1 {
			span = d.VMax - d.VMin
		}
		pts = append(pts, Point{UV: a, P: eval(a)})
		for _, p := range isoSegment(surf, a, b, minSegments(span, opts), opts) {
			p.P = eval(p.UV)
			pts = append(pts, p)
		}
	}
	return polygon{pts: pts, outer: true}, nil
}

func minSegments(span float64, opts Options) int {
	return max(1, int(math.Ceil(math.Abs(span)/opts.AngularTolerance)))
}

// isoSegment returns the interior points of a straight parameter segment
// from a to b, spaced so each chord is within tolerance of the surface.
func isoSegment(surf brep.Parametric, a, b r2.Vec, minSeg int, opts Options) []Point {
	at := func(t float64) r2.Vec { return r2.Add(a, r2.Scale(t, r2.Sub(b, a))) }
	n := max(1, minSeg)
	for n < 1024 {
		ok := true
		for i := range n {
			t0, t1 := float64(i)/float64(n), float64(i+1)/float64(n)
			p0, p1 := at(t0), at(t1)
			mid := surf.Eval((p0.X+p1.X)/2, (p0.Y+p1.Y)/2)
			chord := r3.Scale(0.5, r3.Add(surf.Eval(p0.X, p0.Y), surf.Eval(p1.X, p1.Y)))
			if r3.Norm(r3.Sub(mid, chord)) > opts.Tolerance {
				ok = false
				break
			}
		}
		if ok {
			break
		}
		n *= 2
	}
	out := make([]Point, 0, n-1)
	for i := 1; i < n; i++ {
		uv := at(float64(i) / float64(n))
		out = append(out, Point{UV: uv, P: surf.Eval(uv.X, uv.Y)})
	}
	return out
}

// swapSurface exchanges u and v so v-winding loops reuse the u logic.
type swapSurface struct {
	brep.Parametric
}

func (s swapSurface) Eval(u, v float64) r3.Vec { return s.Parametric.Eval(v, u) }

func (s swapSurface) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	su, sv := s.Parametric.Derivs(v, u)
	return sv, su
}

func (s swapSurface) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	uv, ok := s.Parametric.Project(p, r2.Vec{X: hint.Y, Y: hint.X})
	return r2.Vec{X: uv.Y, Y: uv.X}, ok
}

func (s swapSurface) Domain() brep.Domain {
	d := s.Parametric.Domain()
	return brep.Domain{
		UMin: d.VMin, UMax: d.VMax, VMin: d.UMin, VMax: d.UMax,
		UPeriodic: d.VPeriodic, VPeriodic: d.UPeriodic,
	}
}

func swapUV(p polygon) polygon {
	out := make([]Point, len(p.pts))
	for i, q := range p.pts {
		out[i] = Point{UV: r2.Vec{X: q.UV.Y, Y: q.UV.X}, P: q.P}
	}
	return polygon{pts: out, outer: p.outer}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// sortByMaxU orders hole indices by their largest u, descending.
func sortByMaxU(pts []Point, holes [][]int) {
	maxU := func(h []int) float64 {
		m := math.Inf(-1)
		for _, i := range h {
			m = math.Max(m, pts[i].UV.X)
		}
		return m
	}
	sort.SliceStable(holes, func(i, j int) bool { return maxU(holes[i]) > maxU(holes[j]) })
}
