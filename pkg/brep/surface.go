package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// SurfaceKind is the classification tag reported by the analyser.
type SurfaceKind int

const (
	SurfacePlane SurfaceKind = iota
	SurfaceCylinder
	SurfaceCone
	SurfaceSphere
	SurfaceTorus
	SurfaceBSpline
	SurfaceOther
)

// String returns a human-readable name for the surface kind.
func (k SurfaceKind) String() string {
	switch k {
	case SurfacePlane:
		return "Plane"
	case SurfaceCylinder:
		return "Cylinder"
	case SurfaceCone:
		return "Cone"
	case SurfaceSphere:
		return "Sphere"
	case SurfaceTorus:
		return "Torus"
	case SurfaceBSpline:
		return "BSplineSurface"
	case SurfaceOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Surface is the closed set of face geometries. Concrete types are Plane,
// Cylinder, Cone, Sphere, Torus, BSplineSurface and OtherSurface.
type Surface interface {
	surface()
}

func (*Plane) surface()          {}
func (*Cylinder) surface()       {}
func (*Cone) surface()           {}
func (*Sphere) surface()         {}
func (*Torus) surface()          {}
func (*BSplineSurface) surface() {}
func (*OtherSurface) surface()   {}

// KindOf classifies s by its variant, never by its shape.
func KindOf(s Surface) SurfaceKind {
	switch s.(type) {
	case *Plane:
		return SurfacePlane
	case *Cylinder:
		return SurfaceCylinder
	case *Cone:
		return SurfaceCone
	case *Sphere:
		return SurfaceSphere
	case *Torus:
		return SurfaceTorus
	case *BSplineSurface:
		return SurfaceBSpline
	default:
		return SurfaceOther
	}
}

// Domain is the natural parameter rectangle of a surface. Infinite bounds
// mark unbounded directions; a periodic direction has period Max-Min.
type Domain struct {
	UMin, UMax float64
	VMin, VMax float64
	UPeriodic  bool
	VPeriodic  bool
}

// Bounded reports whether the rectangle is finite in both directions.
func (d Domain) Bounded() bool {
	return !math.IsInf(d.UMin, 0) && !math.IsInf(d.UMax, 0) &&
		!math.IsInf(d.VMin, 0) && !math.IsInf(d.VMax, 0)
}

// Center is the midpoint of the rectangle, with unbounded directions at 0.
func (d Domain) Center() r2.Vec {
	mid := func(a, b float64) float64 {
		if math.IsInf(a, 0) || math.IsInf(b, 0) {
			return 0
		}
		return (a + b) / 2
	}
	return r2.Vec{X: mid(d.UMin, d.UMax), Y: mid(d.VMin, d.VMax)}
}

// Parametric is implemented by every surface with an evaluator.
//
// Project inverts Eval for a point on the surface. For periodic directions
// it returns the representative nearest to hint, which is how callers walk
// a boundary without jumping across a seam. ok is false when the point
// sits on a singularity (sphere pole, cone apex) where u is undefined; u
// is then hint.X.
type Parametric interface {
	Surface
	Eval(u, v float64) r3.Vec
	Derivs(u, v float64) (su, sv r3.Vec)
	Project(p r3.Vec, hint r2.Vec) (uv r2.Vec, ok bool)
	Domain() Domain
}

// Poled is implemented by surfaces with a singular iso-line in v where
// every u maps to the same point.
type Poled interface {
	Poles() []float64
}

var inf = math.Inf(1)

// Plane: O + uX + vY.
type Plane struct {
	Frame Frame
}

func (s *Plane) Eval(u, v float64) r3.Vec {
	return s.Frame.ToWorld(r3.Vec{X: u, Y: v})
}

func (s *Plane) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	return s.Frame.X, s.Frame.Y
}

func (s *Plane) Project(p r3.Vec, _ r2.Vec) (r2.Vec, bool) {
	l := s.Frame.ToLocal(p)
	return r2.Vec{X: l.X, Y: l.Y}, true
}

func (s *Plane) Domain() Domain {
	return Domain{UMin: -inf, UMax: inf, VMin: -inf, VMax: inf}
}

// Cylinder: O + R(cos u X + sin u Y) + vZ.
type Cylinder struct {
	Frame  Frame
	Radius float64
}

func (s *Cylinder) Eval(u, v float64) r3.Vec {
	return r3.Add(r3.Add(s.Frame.Origin, r3.Scale(s.Radius, s.Frame.radial(u))), r3.Scale(v, s.Frame.Z))
}

func (s *Cylinder) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	return r3.Scale(s.Radius, s.Frame.tangential(u)), s.Frame.Z
}

func (s *Cylinder) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	l := s.Frame.ToLocal(p)
	return r2.Vec{X: nearestAngle(math.Atan2(l.Y, l.X), hint.X), Y: l.Z}, true
}

func (s *Cylinder) Domain() Domain {
	return Domain{UMin: 0, UMax: 2 * math.Pi, VMin: -inf, VMax: inf, UPeriodic: true}
}

// Cone: O + (R + v tanα)(cos u X + sin u Y) + vZ, with R the radius at
// v = 0 and α the semi-angle.
type Cone struct {
	Frame     Frame
	Radius    float64
	SemiAngle float64
}

func (s *Cone) radiusAt(v float64) float64 {
	return s.Radius + v*math.Tan(s.SemiAngle)
}

func (s *Cone) Eval(u, v float64) r3.Vec {
	return r3.Add(r3.Add(s.Frame.Origin, r3.Scale(s.radiusAt(v), s.Frame.radial(u))), r3.Scale(v, s.Frame.Z))
}

func (s *Cone) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	su := r3.Scale(s.radiusAt(v), s.Frame.tangential(u))
	sv := r3.Add(r3.Scale(math.Tan(s.SemiAngle), s.Frame.radial(u)), s.Frame.Z)
	return su, sv
}

func (s *Cone) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	l := s.Frame.ToLocal(p)
	rho := math.Hypot(l.X, l.Y)
	if rho < singularTol*math.Max(1, math.Abs(s.Radius)) {
		return r2.Vec{X: hint.X, Y: l.Z}, false
	}
	return r2.Vec{X: nearestAngle(math.Atan2(l.Y, l.X), hint.X), Y: l.Z}, true
}

func (s *Cone) Domain() Domain {
	return Domain{UMin: 0, UMax: 2 * math.Pi, VMin: -inf, VMax: inf, UPeriodic: true}
}

// Poles returns the apex parameter.
func (s *Cone) Poles() []float64 {
	t := math.Tan(s.SemiAngle)
	if t == 0 {
		return nil
	}
	return []float64{-s.Radius / t}
}

// Sphere: O + R cos v (cos u X + sin u Y) + R sin v Z.
type Sphere struct {
	Frame  Frame
	Radius float64
}

func (s *Sphere) Eval(u, v float64) r3.Vec {
	sv, cv := math.Sincos(v)
	p := r3.Add(s.Frame.Origin, r3.Scale(s.Radius*cv, s.Frame.radial(u)))
	return r3.Add(p, r3.Scale(s.Radius*sv, s.Frame.Z))
}

func (s *Sphere) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	sv, cv := math.Sincos(v)
	su := r3.Scale(s.Radius*cv, s.Frame.tangential(u))
	dv := r3.Add(r3.Scale(-s.Radius*sv, s.Frame.radial(u)), r3.Scale(s.Radius*cv, s.Frame.Z))
	return su, dv
}

func (s *Sphere) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	l := s.Frame.ToLocal(p)
	rho := math.Hypot(l.X, l.Y)
	v := math.Atan2(l.Z, rho)
	if rho < singularTol*s.Radius {
		return r2.Vec{X: hint.X, Y: v}, false
	}
	return r2.Vec{X: nearestAngle(math.Atan2(l.Y, l.X), hint.X), Y: v}, true
}

func (s *Sphere) Domain() Domain {
	return Domain{UMin: 0, UMax: 2 * math.Pi, VMin: -math.Pi / 2, VMax: math.Pi / 2, UPeriodic: true}
}

func (s *Sphere) Poles() []float64 { return []float64{-math.Pi / 2, math.Pi / 2} }

// Torus: O + (R + r cos v)(cos u X + sin u Y) + r sin v Z.
type Torus struct {
	Frame       Frame
	MajorRadius float64
	MinorRadius float64
}

func (s *Torus) Eval(u, v float64) r3.Vec {
	sv, cv := math.Sincos(v)
	p := r3.Add(s.Frame.Origin, r3.Scale(s.MajorRadius+s.MinorRadius*cv, s.Frame.radial(u)))
	return r3.Add(p, r3.Scale(s.MinorRadius*sv, s.Frame.Z))
}

func (s *Torus) Derivs(u, v float64) (r3.Vec, r3.Vec) {
	sv, cv := math.Sincos(v)
	su := r3.Scale(s.MajorRadius+s.MinorRadius*cv, s.Frame.tangential(u))
	dv := r3.Add(r3.Scale(-s.MinorRadius*sv, s.Frame.radial(u)), r3.Scale(s.MinorRadius*cv, s.Frame.Z))
	return su, dv
}

func (s *Torus) Project(p r3.Vec, hint r2.Vec) (r2.Vec, bool) {
	l := s.Frame.ToLocal(p)
	rho := math.Hypot(l.X, l.Y)
	u := nearestAngle(math.Atan2(l.Y, l.X), hint.X)
	v := nearestAngle(math.Atan2(l.Z, rho-s.MajorRadius), hint.Y)
	return r2.Vec{X: u, Y: v}, true
}

func (s *Torus) Domain() Domain {
	return Domain{UMin: 0, UMax: 2 * math.Pi, VMin: 0, VMax: 2 * math.Pi, UPeriodic: true, VPeriodic: true}
}

// OtherSurface is a surface type the loader recognised but cannot
// evaluate (offset surfaces, surfaces of revolution, ...). It keeps the
// source type name for reporting.
type OtherSurface struct {
	TypeName string
}

// singularTol is the relative radial distance under which a point is
// treated as lying on an axis singularity.
const singularTol = 1e-9

var (
	_ Parametric = (*Plane)(nil)
	_ Parametric = (*Cylinder)(nil)
	_ Parametric = (*Cone)(nil)
	_ Parametric = (*Sphere)(nil)
	_ Parametric = (*Torus)(nil)
	_ Parametric = (*BSplineSurface)(nil)
)
