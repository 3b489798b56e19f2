package step

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/geomerr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxDepth bounds reference chains between curve entities.
const maxDepth = 32

// Options control model building.
type Options struct {
	Logger *zap.Logger
}

// Read parses r and builds its model.
func Read(r io.Reader, path string, opts Options) (*brep.Model, error) {
	f, err := Parse(r, path)
	if err != nil {
		return nil, err
	}
	return Build(f, path, opts)
}

// Build resolves every solid and shell-based surface model in f into a
// brep.Model, in file order. Faces that fail to resolve are skipped with
// a warning; a file without any face is a *geomerr.GeometryLoadError.
//
// Length units and assembly placements are not applied. Plane angles use
// the file's declared angle unit.
func Build(f *File, path string, opts Options) (*brep.Model, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := &builder{
		f:        f,
		log:      log.With(zap.String("component", "step"), zap.String("path", path)),
		angle:    angleUnit(f),
		vertices: make(map[int]*brep.Vertex),
		edges:    make(map[int]*brep.Edge),
		curves:   make(map[int]brep.Curve),
		surfaces: make(map[int]brep.Surface),
	}
	fail := func(err error) error {
		return &geomerr.GeometryLoadError{Path: path, Stage: "step", Err: err}
	}

	m := &brep.Model{}
	roots := 0
	for _, id := range f.Order {
		in := f.Instances[id]
		var obj *brep.Object
		var err error
		switch in.Type() {
		case "MANIFOLD_SOLID_BREP", "FACETED_BREP":
			obj, err = b.solid(in, nil)
		case "BREP_WITH_VOIDS":
			fs := b.fields(in.Records[0])
			obj, err = b.solid(in, fs.refs(2))
		case "SHELL_BASED_SURFACE_MODEL":
			obj, err = b.surfaceModel(in)
		default:
			continue
		}
		roots++
		if err != nil {
			return nil, fail(err)
		}
		if obj.Name == "" {
			obj.Name = fmt.Sprintf("Solid%d", roots)
		}
		m.Objects = append(m.Objects, obj)
	}

	if roots == 0 {
		return nil, fail(errors.New("no solid or shell-based surface model"))
	}
	if m.FaceCount() == 0 {
		return nil, fail(errors.New("no face could be built"))
	}
	b.log.Debug("model built",
		zap.Int("objects", len(m.Objects)),
		zap.Int("faces", m.FaceCount()),
		zap.Int("skipped_faces", b.skipped))
	return m, nil
}

type builder struct {
	f     *File
	log   *zap.Logger
	angle float64

	vertices map[int]*brep.Vertex
	edges    map[int]*brep.Edge
	curves   map[int]brep.Curve
	surfaces map[int]brep.Surface
	skipped  int
}

// angleUnit returns the radians per plane-angle unit the file declares.
func angleUnit(f *File) float64 {
	for _, id := range f.Order {
		in := f.Instances[id]
		if _, ok := in.Part("PLANE_ANGLE_UNIT"); !ok {
			continue
		}
		if c, ok := in.Part("CONVERSION_BASED_UNIT"); ok && len(c.Params) > 0 {
			if strings.Contains(strings.ToUpper(c.Params[0].Str), "DEG") {
				return math.Pi / 180
			}
		}
	}
	return 1
}

func (b *builder) instance(ref int) (*Instance, error) {
	in, ok := b.f.Instances[ref]
	if !ok {
		return nil, fmt.Errorf("reference to missing instance #%d", ref)
	}
	return in, nil
}

// simple returns the only record of a simple instance of one of types.
func (b *builder) simple(ref int, types ...string) (*fields, error) {
	in, err := b.instance(ref)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(types, in.Type()) {
		return nil, fmt.Errorf("#%d: expected %s, found %s", ref, strings.Join(types, " or "), describe(in))
	}
	return b.fields(in.Records[0]), nil
}

func describe(in *Instance) string {
	if !in.Complex {
		return in.Type()
	}
	names := make([]string, len(in.Records))
	for i, r := range in.Records {
		names[i] = r.Type
	}
	return "(" + strings.Join(names, " ") + ")"
}

func (b *builder) solid(in *Instance, voids []int) (*brep.Object, error) {
	fs := b.fields(in.Records[0])
	name, outer := fs.str(0), fs.ref(1)
	if err := fs.err; err != nil {
		return nil, fmt.Errorf("#%d: %w", in.ID, err)
	}
	obj := &brep.Object{Name: name, Closed: true}
	faces, err := b.shell(outer)
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", in.ID, err)
	}
	obj.Faces = faces
	for _, v := range voids {
		faces, err := b.shell(v)
		if err != nil {
			return nil, fmt.Errorf("#%d: void: %w", in.ID, err)
		}
		obj.Faces = append(obj.Faces, faces...)
	}
	return obj, nil
}

func (b *builder) surfaceModel(in *Instance) (*brep.Object, error) {
	fs := b.fields(in.Records[0])
	name, shells := fs.str(0), fs.refs(1)
	if err := fs.err; err != nil {
		return nil, fmt.Errorf("#%d: %w", in.ID, err)
	}
	obj := &brep.Object{Name: name}
	for _, s := range shells {
		faces, err := b.shell(s)
		if err != nil {
			return nil, fmt.Errorf("#%d: %w", in.ID, err)
		}
		obj.Faces = append(obj.Faces, faces...)
	}
	return obj, nil
}

// shell resolves a closed, open or oriented shell into faces. A reversed
// oriented shell flips every face.
func (b *builder) shell(ref int) ([]*brep.Face, error) {
	in, err := b.instance(ref)
	if err != nil {
		return nil, err
	}
	fs := b.fields(in.Records[0])
	switch in.Type() {
	case "CLOSED_SHELL", "OPEN_SHELL", "CONNECTED_FACE_SET":
		refs := fs.refs(1)
		if fs.err != nil {
			return nil, fmt.Errorf("#%d: %w", ref, fs.err)
		}
		var faces []*brep.Face
		for _, fr := range refs {
			f, err := b.face(fr)
			if err != nil {
				b.skipped++
				b.log.Warn("skipping face", zap.Int("face", fr), zap.Error(err))
				continue
			}
			faces = append(faces, f)
		}
		return faces, nil
	case "ORIENTED_CLOSED_SHELL", "ORIENTED_OPEN_SHELL":
		inner, forward := fs.ref(2), fs.flag(3)
		if fs.err != nil {
			return nil, fmt.Errorf("#%d: %w", ref, fs.err)
		}
		faces, err := b.shell(inner)
		if err != nil || forward {
			return faces, err
		}
		flipped := make([]*brep.Face, len(faces))
		for i, f := range faces {
			g := *f
			g.SameSense = !f.SameSense
			flipped[i] = &g
		}
		return flipped, nil
	}
	return nil, fmt.Errorf("#%d: expected a shell, found %s", ref, describe(in))
}

func (b *builder) face(ref int) (*brep.Face, error) {
	fs, err := b.simple(ref, "ADVANCED_FACE", "FACE_SURFACE")
	if err != nil {
		return nil, err
	}
	bounds, sref, same := fs.refs(1), fs.ref(2), fs.flag(3)
	if fs.err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	s, err := b.surface(sref)
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	f := &brep.Face{Surface: s, SameSense: same}
	for _, br := range bounds {
		l, err := b.bound(br)
		if err != nil {
			return nil, fmt.Errorf("#%d: %w", ref, err)
		}
		f.Loops = append(f.Loops, l)
	}
	return f, nil
}

func (b *builder) bound(ref int) (brep.Loop, error) {
	in, err := b.instance(ref)
	if err != nil {
		return brep.Loop{}, err
	}
	typ := in.Type()
	if typ != "FACE_BOUND" && typ != "FACE_OUTER_BOUND" {
		return brep.Loop{}, fmt.Errorf("#%d: expected a face bound, found %s", ref, describe(in))
	}
	fs := b.fields(in.Records[0])
	lref, orientation := fs.ref(1), fs.flag(2)
	if fs.err != nil {
		return brep.Loop{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	l, err := b.loop(lref)
	if err != nil {
		return brep.Loop{}, err
	}
	l.Outer = typ == "FACE_OUTER_BOUND"
	if !orientation {
		slices.Reverse(l.Edges)
		for i := range l.Edges {
			l.Edges[i].Reversed = !l.Edges[i].Reversed
		}
	}
	return l, nil
}

func (b *builder) loop(ref int) (brep.Loop, error) {
	in, err := b.instance(ref)
	if err != nil {
		return brep.Loop{}, err
	}
	fs := b.fields(in.Records[0])
	switch in.Type() {
	case "EDGE_LOOP":
		refs := fs.refs(1)
		if fs.err != nil {
			return brep.Loop{}, fmt.Errorf("#%d: %w", ref, fs.err)
		}
		var l brep.Loop
		for _, r := range refs {
			oe, err := b.orientedEdge(r)
			if err != nil {
				return brep.Loop{}, fmt.Errorf("#%d: %w", ref, err)
			}
			l.Edges = append(l.Edges, oe)
		}
		return l, nil
	case "VERTEX_LOOP":
		v, err := b.vertex(fs.ref(1))
		if err == nil {
			err = fs.err
		}
		if err != nil {
			return brep.Loop{}, fmt.Errorf("#%d: %w", ref, err)
		}
		return brep.Loop{Vertex: v}, nil
	case "POLY_LOOP":
		refs := fs.refs(1)
		if fs.err != nil {
			return brep.Loop{}, fmt.Errorf("#%d: %w", ref, fs.err)
		}
		verts := make([]*brep.Vertex, len(refs))
		for i, r := range refs {
			p, err := b.point(r)
			if err != nil {
				return brep.Loop{}, fmt.Errorf("#%d: %w", ref, err)
			}
			verts[i] = &brep.Vertex{Point: p}
		}
		var l brep.Loop
		for i, v := range verts {
			w := verts[(i+1)%len(verts)]
			l.Edges = append(l.Edges, brep.OrientedEdge{Edge: &brep.Edge{
				Curve:   &brep.Line{Origin: v.Point, Dir: r3.Sub(w.Point, v.Point)},
				Start:   v,
				End:     w,
				Forward: true,
			}})
		}
		return l, nil
	}
	return brep.Loop{}, fmt.Errorf("#%d: expected a loop, found %s", ref, describe(in))
}

func (b *builder) orientedEdge(ref int) (brep.OrientedEdge, error) {
	fs, err := b.simple(ref, "ORIENTED_EDGE")
	if err != nil {
		return brep.OrientedEdge{}, err
	}
	eref, orientation := fs.ref(3), fs.flag(4)
	if fs.err != nil {
		return brep.OrientedEdge{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	e, err := b.edge(eref)
	if err != nil {
		return brep.OrientedEdge{}, err
	}
	return brep.OrientedEdge{Edge: e, Reversed: !orientation}, nil
}

// edge resolves an EDGE_CURVE once so that faces share it.
func (b *builder) edge(ref int) (*brep.Edge, error) {
	if e, ok := b.edges[ref]; ok {
		return e, nil
	}
	fs, err := b.simple(ref, "EDGE_CURVE")
	if err != nil {
		return nil, err
	}
	v1, v2, cref, same := fs.ref(1), fs.ref(2), fs.ref(3), fs.flag(4)
	if fs.err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	start, err := b.vertex(v1)
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	end, err := b.vertex(v2)
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	c, err := b.curve(cref, 0)
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	e := &brep.Edge{Curve: c, Start: start, End: end, Forward: same}
	b.edges[ref] = e
	return e, nil
}

func (b *builder) vertex(ref int) (*brep.Vertex, error) {
	if v, ok := b.vertices[ref]; ok {
		return v, nil
	}
	fs, err := b.simple(ref, "VERTEX_POINT")
	if err != nil {
		return nil, err
	}
	pref := fs.ref(1)
	if fs.err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	p, err := b.point(pref)
	if err != nil {
		return nil, err
	}
	v := &brep.Vertex{Point: p}
	b.vertices[ref] = v
	return v, nil
}

func (b *builder) point(ref int) (r3.Vec, error) {
	fs, err := b.simple(ref, "CARTESIAN_POINT")
	if err != nil {
		return r3.Vec{}, err
	}
	c := fs.nums(1)
	if fs.err == nil && (len(c) < 2 || len(c) > 3) {
		fs.err = fmt.Errorf("%d coordinates", len(c))
	}
	if fs.err != nil {
		return r3.Vec{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	p := r3.Vec{X: c[0], Y: c[1]}
	if len(c) == 3 {
		p.Z = c[2]
	}
	return p, nil
}

func (b *builder) direction(ref int) (r3.Vec, error) {
	fs, err := b.simple(ref, "DIRECTION")
	if err != nil {
		return r3.Vec{}, err
	}
	c := fs.nums(1)
	if fs.err == nil && (len(c) < 2 || len(c) > 3) {
		fs.err = fmt.Errorf("%d direction ratios", len(c))
	}
	if fs.err != nil {
		return r3.Vec{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	d := r3.Vec{X: c[0], Y: c[1]}
	if len(c) == 3 {
		d.Z = c[2]
	}
	return d, nil
}

func (b *builder) vector(ref int) (r3.Vec, error) {
	fs, err := b.simple(ref, "VECTOR")
	if err != nil {
		return r3.Vec{}, err
	}
	dref, mag := fs.ref(1), fs.num(2)
	if fs.err != nil {
		return r3.Vec{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	d, err := b.direction(dref)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Scale(mag, r3.Unit(d)), nil
}

// placement resolves an AXIS2_PLACEMENT_3D. Missing axis and reference
// directions default to +Z and +X.
func (b *builder) placement(ref int) (brep.Frame, error) {
	fs, err := b.simple(ref, "AXIS2_PLACEMENT_3D")
	if err != nil {
		return brep.Frame{}, err
	}
	loc := fs.ref(1)
	axisRef, hasAxis := fs.optRef(2)
	refRef, hasRef := fs.optRef(3)
	if fs.err != nil {
		return brep.Frame{}, fmt.Errorf("#%d: %w", ref, fs.err)
	}
	origin, err := b.point(loc)
	if err != nil {
		return brep.Frame{}, err
	}
	axis, refDir := r3.Vec{Z: 1}, r3.Vec{X: 1}
	if hasAxis {
		if axis, err = b.direction(axisRef); err != nil {
			return brep.Frame{}, err
		}
	}
	if hasRef {
		if refDir, err = b.direction(refRef); err != nil {
			return brep.Frame{}, err
		}
	}
	return brep.NewFrame(origin, axis, refDir), nil
}

// curve resolves edge geometry. Unknown curve types become OtherCurve so
// the edge still exists as a chord between its vertices.
func (b *builder) curve(ref, depth int) (brep.Curve, error) {
	if c, ok := b.curves[ref]; ok {
		return c, nil
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("#%d: curve references nest too deeply", ref)
	}
	in, err := b.instance(ref)
	if err != nil {
		return nil, err
	}
	var c brep.Curve
	if in.Complex {
		c, err = b.complexCurve(in)
	} else {
		c, err = b.simpleCurve(in, depth)
	}
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	b.curves[ref] = c
	return c, nil
}

func (b *builder) simpleCurve(in *Instance, depth int) (brep.Curve, error) {
	fs := b.fields(in.Records[0])
	switch typ := in.Type(); typ {
	case "LINE":
		pref, vref := fs.ref(1), fs.ref(2)
		if fs.err != nil {
			return nil, fs.err
		}
		p, err := b.point(pref)
		if err != nil {
			return nil, err
		}
		d, err := b.vector(vref)
		if err != nil {
			return nil, err
		}
		return &brep.Line{Origin: p, Dir: d}, nil

	case "CIRCLE":
		pref, r := fs.ref(1), fs.num(2)
		if fs.err != nil {
			return nil, fs.err
		}
		frame, err := b.placement(pref)
		if err != nil {
			return nil, err
		}
		return &brep.Circle{Frame: frame, Radius: r}, nil

	case "ELLIPSE":
		pref, a, c := fs.ref(1), fs.num(2), fs.num(3)
		if fs.err != nil {
			return nil, fs.err
		}
		frame, err := b.placement(pref)
		if err != nil {
			return nil, err
		}
		return &brep.OtherCurve{TypeName: typ, Shape: &brep.Ellipse{Frame: frame, SemiAxis: [2]float64{a, c}}}, nil

	case "B_SPLINE_CURVE_WITH_KNOTS":
		return b.bsplineCurve(fs.num(1), fs.refs(2), fs.ints(6), fs.nums(7), nil, fs)

	case "SURFACE_CURVE", "SEAM_CURVE", "INTERSECTION_CURVE", "TRIMMED_CURVE":
		basis := fs.ref(1)
		if fs.err != nil {
			return nil, fs.err
		}
		return b.curve(basis, depth+1)

	default:
		return &brep.OtherCurve{TypeName: typ}, nil
	}
}

// complexCurve handles the rational B-spline complex instance, the only
// complex curve form exporters write.
func (b *builder) complexCurve(in *Instance) (brep.Curve, error) {
	base, ok1 := in.Part("B_SPLINE_CURVE")
	knots, ok2 := in.Part("B_SPLINE_CURVE_WITH_KNOTS")
	if !ok1 || !ok2 {
		return &brep.OtherCurve{TypeName: describe(in)}, nil
	}
	bf, kf := b.fields(base), b.fields(knots)
	var weights []float64
	if rat, ok := in.Part("RATIONAL_B_SPLINE_CURVE"); ok {
		rf := b.fields(rat)
		weights = rf.nums(0)
		if rf.err != nil {
			return nil, rf.err
		}
	}
	c, err := b.bsplineCurve(bf.num(0), bf.refs(1), kf.ints(0), kf.nums(1), weights, bf)
	if err == nil && kf.err != nil {
		err = kf.err
	}
	return c, err
}

func (b *builder) bsplineCurve(degree float64, ctrl, mults []int, knots, weights []float64, fs *fields) (brep.Curve, error) {
	if fs.err != nil {
		return nil, fs.err
	}
	c := &brep.BSplineCurve{Degree: int(degree), Weights: weights}
	for _, r := range ctrl {
		p, err := b.point(r)
		if err != nil {
			return nil, err
		}
		c.Control = append(c.Control, p)
	}
	if len(mults) != len(knots) {
		return nil, fmt.Errorf("%d multiplicities for %d knots", len(mults), len(knots))
	}
	c.Knots = brep.ExpandKnots(knots, mults)
	if len(c.Knots) != len(c.Control)+c.Degree+1 {
		return nil, fmt.Errorf("b-spline curve: %d knots for %d poles of degree %d", len(c.Knots), len(c.Control), c.Degree)
	}
	if weights != nil && len(weights) != len(c.Control) {
		return nil, fmt.Errorf("b-spline curve: %d weights for %d poles", len(weights), len(c.Control))
	}
	return c, nil
}

// surface resolves face geometry. Unknown surface types become
// OtherSurface.
func (b *builder) surface(ref int) (brep.Surface, error) {
	if s, ok := b.surfaces[ref]; ok {
		return s, nil
	}
	in, err := b.instance(ref)
	if err != nil {
		return nil, err
	}
	var s brep.Surface
	if in.Complex {
		s, err = b.complexSurface(in)
	} else {
		s, err = b.simpleSurface(in)
	}
	if err != nil {
		return nil, fmt.Errorf("#%d: %w", ref, err)
	}
	b.surfaces[ref] = s
	return s, nil
}

func (b *builder) simpleSurface(in *Instance) (brep.Surface, error) {
	fs := b.fields(in.Records[0])
	typ := in.Type()
	if typ == "B_SPLINE_SURFACE_WITH_KNOTS" {
		return b.bsplineSurface(fs.num(1), fs.num(2), fs.grid(3), fs.ints(8), fs.ints(9), fs.nums(10), fs.nums(11), nil, fs)
	}

	var frame brep.Frame
	switch typ {
	case "PLANE", "CYLINDRICAL_SURFACE", "CONICAL_SURFACE", "SPHERICAL_SURFACE", "TOROIDAL_SURFACE":
		pref := fs.ref(1)
		if fs.err != nil {
			return nil, fs.err
		}
		var err error
		if frame, err = b.placement(pref); err != nil {
			return nil, err
		}
	default:
		return &brep.OtherSurface{TypeName: typ}, nil
	}

	var s brep.Surface
	switch typ {
	case "PLANE":
		s = &brep.Plane{Frame: frame}
	case "CYLINDRICAL_SURFACE":
		s = &brep.Cylinder{Frame: frame, Radius: fs.num(2)}
	case "CONICAL_SURFACE":
		s = &brep.Cone{Frame: frame, Radius: fs.num(2), SemiAngle: fs.num(3) * b.angle}
	case "SPHERICAL_SURFACE":
		s = &brep.Sphere{Frame: frame, Radius: fs.num(2)}
	case "TOROIDAL_SURFACE":
		s = &brep.Torus{Frame: frame, MajorRadius: fs.num(2), MinorRadius: fs.num(3)}
	}
	return s, fs.err
}

func (b *builder) complexSurface(in *Instance) (brep.Surface, error) {
	base, ok1 := in.Part("B_SPLINE_SURFACE")
	knots, ok2 := in.Part("B_SPLINE_SURFACE_WITH_KNOTS")
	if !ok1 || !ok2 {
		return &brep.OtherSurface{TypeName: describe(in)}, nil
	}
	bf, kf := b.fields(base), b.fields(knots)
	var weights [][]float64
	if rat, ok := in.Part("RATIONAL_B_SPLINE_SURFACE"); ok {
		rf := b.fields(rat)
		weights = rf.numGrid(0)
		if rf.err != nil {
			return nil, rf.err
		}
	}
	s, err := b.bsplineSurface(bf.num(0), bf.num(1), bf.grid(2), kf.ints(0), kf.ints(1), kf.nums(2), kf.nums(3), weights, bf)
	if err == nil && kf.err != nil {
		err = kf.err
	}
	return s, err
}

func (b *builder) bsplineSurface(du, dv float64, ctrl [][]int, multsU, multsV []int, knotsU, knotsV []float64, weights [][]float64, fs *fields) (brep.Surface, error) {
	if fs.err != nil {
		return nil, fs.err
	}
	s := &brep.BSplineSurface{DegreeU: int(du), DegreeV: int(dv), Weights: weights}
	for _, row := range ctrl {
		pts := make([]r3.Vec, len(row))
		for j, r := range row {
			p, err := b.point(r)
			if err != nil {
				return nil, err
			}
			pts[j] = p
		}
		s.Control = append(s.Control, pts)
	}
	if len(s.Control) == 0 {
		return nil, errors.New("b-spline surface has no poles")
	}
	if len(multsU) != len(knotsU) || len(multsV) != len(knotsV) {
		return nil, errors.New("b-spline surface: knot and multiplicity counts differ")
	}
	s.KnotsU = brep.ExpandKnots(knotsU, multsU)
	s.KnotsV = brep.ExpandKnots(knotsV, multsV)
	nu, nv := len(s.Control), len(s.Control[0])
	if len(s.KnotsU) != nu+s.DegreeU+1 || len(s.KnotsV) != nv+s.DegreeV+1 {
		return nil, fmt.Errorf("b-spline surface: knot vectors do not match %dx%d poles", nu, nv)
	}
	for _, row := range s.Control {
		if len(row) != nv {
			return nil, errors.New("b-spline surface: ragged pole grid")
		}
	}
	if weights != nil && (len(weights) != nu || len(weights[0]) != nv) {
		return nil, errors.New("b-spline surface: weight grid does not match poles")
	}
	return s, nil
}
