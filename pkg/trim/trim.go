// Package trim triangulates the trimmed parameter domain of a B-rep face.
//
// Boundary loops are built from shared edge samples and projected into the
// surface's (u,v) plane, walking across periodic seams and poles. The
// resulting polygon-with-holes is ear clipped, flipped to a Delaunay
// triangulation and optionally refined by longest-edge propagation
// bisection of interior edges until the chord error against the surface
// is within tolerance. Boundary edges are never split, so two faces that
// share an edge share exactly the same boundary vertices.
package trim

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/brep"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options control discretisation.
type Options struct {
	// Tolerance is the maximum chord error in model units.
	Tolerance float64
	// AngularTolerance bounds the turning angle between edge samples.
	AngularTolerance float64
	// MaxTriangles caps refinement of a single face.
	MaxTriangles int
	// Refine bisects interior edges until the chord error is within
	// Tolerance. Without it only boundary points are used, which is
	// enough for integration but not for display.
	Refine bool
}

// DefaultOptions returns the options used when a caller passes zeros.
func DefaultOptions() Options {
	return Options{
		Tolerance:        0.01,
		AngularTolerance: brep.DefaultAngularTolerance,
		MaxTriangles:     200000,
		Refine:           true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.AngularTolerance <= 0 {
		o.AngularTolerance = d.AngularTolerance
	}
	if o.MaxTriangles <= 0 {
		o.MaxTriangles = d.MaxTriangles
	}
	return o
}

// Point is a domain vertex: its parameter and its position in space.
type Point struct {
	UV r2.Vec
	P  r3.Vec
}

// Domain is the triangulated parameter domain of one face. Triangles are
// counter-clockwise in (u,v), so their 3D winding follows Su×Sv.
type Domain struct {
	Surface brep.Parametric
	Points  []Point
	Tris    [][3]int
	// Fallback is set when the face surface has no evaluator and a plane
	// fitted to the boundary stands in for it.
	Fallback bool
	// Capped is set when refinement stopped at MaxTriangles.
	Capped bool
}

// DegenerateError reports a face whose domain cannot be triangulated.
type DegenerateError struct {
	Reason string
}

func (e *DegenerateError) Error() string { return "degenerate face: " + e.Reason }

// IsDegenerate reports whether err is a DegenerateError.
func IsDegenerate(err error) bool {
	var d *DegenerateError
	return errors.As(err, &d)
}

func degenerate(format string, args ...any) error {
	return &DegenerateError{Reason: fmt.Sprintf(format, args...)}
}

// Samples caches the discretisation of every edge so that each edge is
// sampled exactly once and shared by the faces on both sides.
type Samples map[*brep.Edge][]r3.Vec

// SampleEdges discretises every edge of the model.
func SampleEdges(m *brep.Model, opts Options) Samples {
	opts = opts.withDefaults()
	s := make(Samples)
	for _, e := range m.Edges() {
		s[e] = e.Sample(opts.Tolerance, opts.AngularTolerance)
	}
	return s
}

func (s Samples) of(e *brep.Edge, opts Options) []r3.Vec {
	if pts, ok := s[e]; ok {
		return pts
	}
	return e.Sample(opts.Tolerance, opts.AngularTolerance)
}

// Triangulate builds the parameter-domain triangulation of f: ear clipped,
// flipped to Delaunay, then refined when opts.Refine is set. samples may
// be nil, in which case edges are sampled on demand.
func Triangulate(f *brep.Face, samples Samples, opts Options) (*Domain, error) {
	opts = opts.withDefaults()

	var rings []polygon
	for _, l := range f.Loops {
		if len(l.Edges) == 0 {
			continue
		}
		rings = append(rings, polygon{pts: loopPoints(l, samples, opts), outer: l.Outer})
	}

	surf, fallback, err := parametric(f.Surface, rings)
	if err != nil {
		return nil, err
	}
	d := &Domain{Surface: surf, Fallback: fallback}

	var polys []polygon
	if len(rings) == 0 {
		p, err := naturalBoundary(surf, opts)
		if err != nil {
			return nil, err
		}
		polys = []polygon{p}
	} else {
		polys, err = paramLoops(surf, rings, f.SameSense, opts)
		if err != nil {
			return nil, err
		}
	}

	outer, holes, err := classify(polys)
	if err != nil {
		return nil, err
	}

	ring := outer.ids(d)
	var holeRings [][]int
	for _, h := range holes {
		holeRings = append(holeRings, h.ids(d))
	}
	ring = bridgeHoles(d.Points, ring, holeRings)
	d.Tris = earClip(d.Points, ring)
	if len(d.Tris) == 0 {
		return nil, degenerate("ear clipping produced no triangles")
	}
	delaunay(d, metricScale(surf, outer.pts))
	if opts.Refine && !fallback {
		d.Capped = !refine(d, opts)
	}
	return d, nil
}

// loopPoints concatenates the oriented edge samples of a loop, dropping
// the duplicated joint vertices and the closing point.
func loopPoints(l brep.Loop, samples Samples, opts Options) []Point {
	var out []Point
	for i, oe := range l.Edges {
		pts := oe.Points(samples.of(oe.Edge, opts))
		if i > 0 && len(pts) > 0 {
			pts = pts[1:]
		}
		for _, p := range pts {
			out = append(out, Point{P: p})
		}
	}
	if n := len(out); n > 1 && r3.Norm(r3.Sub(out[0].P, out[n-1].P)) < 1e-12 {
		out = out[:n-1]
	}
	return out
}

// parametric resolves the face surface to an evaluator, fitting a plane
// to the boundary when the surface type has none.
func parametric(s brep.Surface, rings []polygon) (brep.Parametric, bool, error) {
	if p, ok := s.(brep.Parametric); ok {
		return p, false, nil
	}
	var all []r3.Vec
	for _, r := range rings {
		for _, p := range r.pts {
			all = append(all, p.P)
		}
	}
	if len(all) < 3 {
		return nil, false, degenerate("surface has no evaluator and no usable boundary")
	}
	n, c := NewellPlane(all)
	if r3.Norm(n) < 1e-15 {
		return nil, false, degenerate("boundary of unevaluable surface is collinear")
	}
	return &brep.Plane{Frame: brep.NewFrame(c, n, r3.Sub(all[1], all[0]))}, true, nil
}

// NewellPlane returns the area-weighted normal (length = 2·area of the
// projected polygon) and the vertex centroid of a closed polygon.
func NewellPlane(pts []r3.Vec) (normal, centroid r3.Vec) {
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		normal.X += (p.Y - q.Y) * (p.Z + q.Z)
		normal.Y += (p.Z - q.Z) * (p.X + q.X)
		normal.Z += (p.X - q.X) * (p.Y + q.Y)
		centroid = r3.Add(centroid, p)
	}
	if len(pts) > 0 {
		centroid = r3.Scale(1/float64(len(pts)), centroid)
	}
	return normal, centroid
}

// polygon is a closed ring in parameter space.
type polygon struct {
	pts   []Point
	outer bool // declared outer by the source
}

func (p polygon) signedArea() float64 {
	a := 0.0
	for i := range p.pts {
		u := p.pts[i].UV
		v := p.pts[(i+1)%len(p.pts)].UV
		a += r2.Cross(u, v)
	}
	return a / 2
}

func (p polygon) reversed() polygon {
	out := make([]Point, len(p.pts))
	for i, q := range p.pts {
		out[len(p.pts)-1-i] = q
	}
	return polygon{pts: out, outer: p.outer}
}

// ids appends the ring's points to d and returns their indices.
func (p polygon) ids(d *Domain) []int {
	ids := make([]int, len(p.pts))
	for i, q := range p.pts {
		ids[i] = len(d.Points)
		d.Points = append(d.Points, q)
	}
	return ids
}

// classify picks the outer ring and orients it counter-clockwise and the
// holes clockwise. A ring declared outer wins; otherwise the largest.
func classify(polys []polygon) (polygon, []polygon, error) {
	outerIdx := -1
	declared := 0
	for i, p := range polys {
		if p.outer {
			declared++
			outerIdx = i
		}
	}
	if declared != 1 {
		outerIdx = -1
		best := -1.0
		for i, p := range polys {
			if a := math.Abs(p.signedArea()); a > best {
				best, outerIdx = a, i
			}
		}
	}
	if outerIdx < 0 {
		return polygon{}, nil, degenerate("face has no boundary")
	}
	outer := polys[outerIdx]
	area := outer.signedArea()
	if math.Abs(area) < 1e-14*paramScale(outer)*paramScale(outer) {
		return polygon{}, nil, degenerate("outer loop encloses no area in parameter space")
	}
	if area < 0 {
		outer = outer.reversed()
	}
	var holes []polygon
	for i, p := range polys {
		if i == outerIdx || len(p.pts) < 3 {
			continue
		}
		if p.signedArea() > 0 {
			p = p.reversed()
		}
		holes = append(holes, p)
	}
	return outer, holes, nil
}

func paramScale(p polygon) float64 {
	if len(p.pts) == 0 {
		return 0
	}
	lo, hi := p.pts[0].UV, p.pts[0].UV
	for _, q := range p.pts {
		lo.X, lo.Y = math.Min(lo.X, q.UV.X), math.Min(lo.Y, q.UV.Y)
		hi.X, hi.Y = math.Max(hi.X, q.UV.X), math.Max(hi.Y, q.UV.Y)
	}
	return r2.Norm(r2.Sub(hi, lo))
}
