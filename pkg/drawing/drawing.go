// Package drawing projects the edges of a B-rep model into three
// orthographic views (top, front, side) for technical drawings.
//
// Hidden-line removal is a heuristic. An edge is kept in a view when one
// of its faces turns towards the viewer (or it bounds a single face) and
// a ray from its most front-facing point towards the viewer does not hit
// the tessellated mesh. Every other edge is listed in View.Dropped with
// the reason it was removed.
package drawing

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Reasons an edge is dropped from a view.
const (
	ReasonBackFacing = "back-facing"
	ReasonOccluded   = "occluded"
	ReasonEdgeOn     = "projects to a point"
)

// ViewSpec fixes a view: Dir points towards the viewer and U, V span the
// drawing plane with U×V = Dir.
type ViewSpec struct {
	Name      string
	Dir, U, V r3.Vec
}

// StandardViews are the three drawing views, in output order.
var StandardViews = []ViewSpec{
	{Name: "top", Dir: r3.Vec{Z: 1}, U: r3.Vec{X: 1}, V: r3.Vec{Y: 1}},
	{Name: "front", Dir: r3.Vec{Y: 1}, U: r3.Vec{X: -1}, V: r3.Vec{Z: 1}},
	{Name: "side", Dir: r3.Vec{X: 1}, U: r3.Vec{Y: 1}, V: r3.Vec{Z: 1}},
}

func (s ViewSpec) project(p r3.Vec) r2.Vec { return r2.Vec{X: r3.Dot(p, s.U), Y: r3.Dot(p, s.V)} }

// Dropped records an edge left out of a view.
type Dropped struct {
	Edge   int    `json:"edge"`
	Reason string `json:"reason"`
}

// View is one projected view.
type View struct {
	Spec       ViewSpec
	Primitives []Primitive
	Dropped    []Dropped
}

// Projection is the result of Project: views in StandardViews order.
type Projection struct {
	Views []*View
	// Edges is the number of model edges considered per view.
	Edges int
}

// Options control projection.
type Options struct {
	// Tolerance is the chord tolerance for curve sampling.
	Tolerance        float64
	AngularTolerance float64
	Logger           *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = 0.01
	}
	if o.AngularTolerance <= 0 {
		o.AngularTolerance = brep.DefaultAngularTolerance
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Project builds the three views. mesh is the tessellation used for the
// occlusion test; when nil only the facing test is applied.
func Project(ctx context.Context, m *brep.Model, mesh *kernel.Mesh, opts Options) (*Projection, error) {
	if m == nil {
		return nil, &geomerr.ProjectionError{Msg: "no model"}
	}
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("component", "drawing"))

	edges := m.Edges()
	if len(edges) == 0 {
		return nil, &geomerr.ProjectionError{Msg: "model has no edges"}
	}
	adj := m.EdgeFaces()
	samples := make([][]r3.Vec, len(edges))
	for i, e := range edges {
		samples[i] = e.Sample(opts.Tolerance, opts.AngularTolerance)
	}

	proj := &Projection{Edges: len(edges)}
	for _, spec := range StandardViews {
		var occ *occluder
		if !mesh.IsEmpty() {
			occ = newOccluder(mesh, spec, opts.Tolerance)
		}
		v := &View{Spec: spec}
		for i, e := range edges {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("drawing: %s view: edge %d: %w", spec.Name, i, err)
			}
			if reason := visible(spec, adj[e], samples[i], occ); reason != "" {
				v.Dropped = append(v.Dropped, Dropped{Edge: i, Reason: reason})
				continue
			}
			p := projectEdge(spec, i, e, samples[i], opts.Tolerance)
			if p == nil {
				v.Dropped = append(v.Dropped, Dropped{Edge: i, Reason: ReasonEdgeOn})
				continue
			}
			v.Primitives = append(v.Primitives, p)
		}
		log.Debug("view projected",
			zap.String("view", spec.Name),
			zap.Int("primitives", len(v.Primitives)),
			zap.Int("dropped", len(v.Dropped)))
		proj.Views = append(proj.Views, v)
	}
	return proj, nil
}

// projectEdge maps one edge into the view plane, or returns nil when it
// collapses to a point.
func projectEdge(spec ViewSpec, index int, e *brep.Edge, samples []r3.Vec, tol float64) Primitive {
	pts := make([]r2.Vec, len(samples))
	for i, p := range samples {
		pts[i] = spec.project(p)
	}
	if extent(pts) <= tol*1e-3 {
		return nil
	}

	switch c := e.Curve.(type) {
	case *brep.Line:
		return &Segment{A: pts[0], B: pts[len(pts)-1], Edge: index}
	case *brep.Circle:
		if p := projectCircle(spec, index, e, c, pts); p != nil {
			return p
		}
	}
	return &Polyline{Vertices: pts, Edge: index}
}

func extent(pts []r2.Vec) float64 {
	d := 0.0
	for _, p := range pts[1:] {
		d = math.Max(d, r2.Norm(r2.Sub(p, pts[0])))
	}
	return d
}

const parallelTol = 1e-9

// projectCircle turns a circle into an arc when its axis is parallel to
// the view direction, a segment when perpendicular and an elliptical arc
// otherwise.
func projectCircle(spec ViewSpec, index int, e *brep.Edge, c *brep.Circle, pts []r2.Vec) Primitive {
	_, t0, t1, ok := e.Params()
	if !ok {
		return nil
	}
	centre := spec.project(c.Frame.Origin)
	cosA := r3.Dot(c.Frame.Z, spec.Dir)
	full := e.Closed()

	switch {
	case math.Abs(math.Abs(cosA)-1) < parallelTol:
		a := &Arc{Centre: centre, Radius: c.Radius, Start: 0, End: 360, Edge: index}
		if full {
			return a
		}
		s := angleDeg(r2.Sub(pts[0], centre))
		f := angleDeg(r2.Sub(pts[len(pts)-1], centre))
		// The curve turns counter-clockwise in the view when its axis
		// faces the viewer and it is traversed with increasing t.
		if (cosA > 0) != (t1 > t0) {
			s, f = f, s
		}
		if f <= s {
			f += 360
		}
		a.Start, a.End = s, f
		return a

	case math.Abs(cosA) < parallelTol:
		dir := spec.project(c.Frame.X)
		if y := spec.project(c.Frame.Y); r2.Norm(y) > r2.Norm(dir) {
			dir = y
		}
		dir = r2.Unit(dir)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range pts {
			d := r2.Dot(r2.Sub(p, centre), dir)
			lo, hi = math.Min(lo, d), math.Max(hi, d)
		}
		return &Segment{A: r2.Add(centre, r2.Scale(lo, dir)), B: r2.Add(centre, r2.Scale(hi, dir)), Edge: index}
	}

	// Conjugate semi-diameters of the projected circle.
	px := r2.Scale(c.Radius, spec.project(c.Frame.X))
	py := r2.Scale(c.Radius, spec.project(c.Frame.Y))
	ts := 0.5 * math.Atan2(2*r2.Dot(px, py), r2.Dot(px, px)-r2.Dot(py, py))
	sn, cs := math.Sincos(ts)
	major := r2.Add(r2.Scale(cs, px), r2.Scale(sn, py))
	minor := r2.Add(r2.Scale(-sn, px), r2.Scale(cs, py))
	el := &Ellipse{
		Centre: centre,
		Major:  major,
		Ratio:  r2.Norm(minor) / r2.Norm(major),
		Start:  0,
		End:    2 * math.Pi,
		Edge:   index,
	}
	if full {
		return el
	}
	sigma := 1.0
	if r2.Cross(major, minor) < 0 {
		sigma = -1
	}
	s0, s1 := sigma*(t0-ts), sigma*(t1-ts)
	if s1 < s0 {
		s0, s1 = s1, s0
	}
	start := math.Mod(s0, 2*math.Pi)
	if start < 0 {
		start += 2 * math.Pi
	}
	el.Start, el.End = start, start+(s1-s0)
	return el
}

func angleDeg(v r2.Vec) float64 {
	a := math.Atan2(v.Y, v.X) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return a
}
