package trim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

// crosses reports whether segments pq and ab intersect at a point interior
// to both.
func crosses(p, q, a, b r2.Vec) bool {
	d1, d2 := orient(p, q, a), orient(p, q, b)
	d3, d4 := orient(a, b, p), orient(a, b, q)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// inside is an even-odd point in polygon test.
func inside(pts []Point, ring []int, p r2.Vec) bool {
	in := false
	n := len(ring)
	for i := range n {
		a, b := pts[ring[i]].UV, pts[ring[(i+1)%n]].UV
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

// bridgeHoles merges holes into the outer ring by cutting a two-way bridge
// from each hole's rightmost vertex to the nearest visible ring vertex.
// The result is a single weakly simple ring ready for ear clipping.
func bridgeHoles(pts []Point, ring []int, holes [][]int) []int {
	if len(holes) == 0 {
		return ring
	}
	holes = append([][]int(nil), holes...)
	sortByMaxU(pts, holes)

	for hi, hole := range holes {
		if len(hole) < 3 {
			continue
		}
		m := 0
		for i, id := range hole {
			if pts[id].UV.X > pts[hole[m]].UV.X {
				m = i
			}
		}
		mp := pts[hole[m]].UV

		order := make([]int, len(ring))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return r2.Norm2(r2.Sub(pts[ring[order[i]]].UV, mp)) < r2.Norm2(r2.Sub(pts[ring[order[j]]].UV, mp))
		})

		pending := holes[hi:]
		best := order[0]
		for _, vi := range order {
			if visible(pts, ring, pending, mp, pts[ring[vi]].UV) {
				best = vi
				break
			}
		}

		spliced := make([]int, 0, len(ring)+len(hole)+2)
		spliced = append(spliced, ring[:best+1]...)
		for i := range len(hole) + 1 {
			spliced = append(spliced, hole[(m+i)%len(hole)])
		}
		spliced = append(spliced, ring[best])
		spliced = append(spliced, ring[best+1:]...)
		ring = spliced
	}
	return ring
}

// visible reports whether the bridge m-v stays inside the face: it must not
// cross any boundary edge, and its midpoint must be inside the ring and
// outside every hole still to be bridged.
func visible(pts []Point, ring []int, holes [][]int, m, v r2.Vec) bool {
	if m == v {
		return true
	}
	blocked := func(r []int) bool {
		for i := range r {
			a, b := pts[r[i]].UV, pts[r[(i+1)%len(r)]].UV
			if crosses(m, v, a, b) {
				return true
			}
		}
		return false
	}
	if blocked(ring) {
		return false
	}
	for _, h := range holes {
		if blocked(h) {
			return false
		}
	}
	mid := r2.Scale(0.5, r2.Add(m, v))
	if !inside(pts, ring, mid) {
		return false
	}
	for _, h := range holes {
		if inside(pts, h, mid) {
			return false
		}
	}
	return true
}

// earClip triangulates a counter-clockwise ring. Ears with no area in
// parameter space are dropped unless the clipper is stuck on them.
func earClip(pts []Point, ring []int) [][3]int {
	n := len(ring)
	if n < 3 {
		return nil
	}
	uv := func(i int) r2.Vec { return pts[ring[i]].UV }

	lo, hi := uv(0), uv(0)
	for i := range n {
		p := uv(i)
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	scale := r2.Norm(r2.Sub(hi, lo))
	eps := 1e-14 * scale * scale

	prev, next := make([]int, n), make([]int, n)
	for i := range n {
		prev[i], next[i] = (i+n-1)%n, (i+1)%n
	}

	var tris [][3]int
	emit := func(a, b, c int) {
		if orient(uv(a), uv(b), uv(c)) > eps {
			tris = append(tris, [3]int{ring[a], ring[b], ring[c]})
		}
	}
	remove := func(i int) {
		next[prev[i]] = next[i]
		prev[next[i]] = prev[i]
	}
	isEar := func(b int) bool {
		a, c := prev[b], next[b]
		pa, pb, pc := uv(a), uv(b), uv(c)
		if orient(pa, pb, pc) <= eps {
			return false
		}
		for j := next[c]; j != a; j = next[j] {
			p := uv(j)
			if p == pa || p == pb || p == pc {
				continue
			}
			if orient(pa, pb, p) > eps && orient(pb, pc, p) > eps && orient(pc, pa, p) >= -eps {
				return false
			}
		}
		return true
	}

	cur, left, stall := 0, n, 0
	for left > 3 {
		if isEar(cur) {
			a, c := prev[cur], next[cur]
			emit(a, cur, c)
			remove(cur)
			left--
			cur, stall = c, 0
			continue
		}
		cur = next[cur]
		if stall++; stall < left {
			continue
		}

		// No ear found in a full pass: drop a flat vertex, or clip the most
		// convex one.
		stall = 0
		pick, bestArea := -1, math.Inf(-1)
		for i, k := cur, 0; k < left; i, k = next[i], k+1 {
			o := orient(uv(prev[i]), uv(i), uv(next[i]))
			if math.Abs(o) <= eps {
				pick = i
				break
			}
			if o > bestArea {
				pick, bestArea = i, o
			}
		}
		if math.Abs(orient(uv(prev[pick]), uv(pick), uv(next[pick]))) <= eps {
			// Keep the flat vertex in the mesh: on a curved seam it is not
			// flat in space.
			tris = append(tris, [3]int{ring[prev[pick]], ring[pick], ring[next[pick]]})
		} else {
			emit(prev[pick], pick, next[pick])
		}
		cur = next[pick]
		remove(pick)
		left--
	}
	emit(prev[cur], cur, next[cur])
	return tris
}
