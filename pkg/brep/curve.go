package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CurveKind is the classification tag of an edge curve.
type CurveKind int

const (
	CurveLine CurveKind = iota
	CurveCircle
	CurveBSpline
	CurveOther
)

// String returns a human-readable name for the curve kind.
func (k CurveKind) String() string {
	switch k {
	case CurveLine:
		return "Line"
	case CurveCircle:
		return "Circle"
	case CurveBSpline:
		return "BSplineCurve"
	case CurveOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Curve is the closed set of edge geometries: Line, Circle, BSplineCurve
// and OtherCurve.
type Curve interface {
	curve()
}

func (*Line) curve()         {}
func (*Circle) curve()       {}
func (*BSplineCurve) curve() {}
func (*OtherCurve) curve()   {}

// CurveKindOf classifies c by its variant.
func CurveKindOf(c Curve) CurveKind {
	switch c.(type) {
	case *Line:
		return CurveLine
	case *Circle:
		return CurveCircle
	case *BSplineCurve:
		return CurveBSpline
	default:
		return CurveOther
	}
}

// ParamCurve is a curve with an evaluator. Period is 0 for open curves.
type ParamCurve interface {
	Eval(t float64) r3.Vec
	Deriv(t float64) r3.Vec
	Project(p r3.Vec, hint float64) float64
	Range() (float64, float64)
	Period() float64
}

// Line: Origin + t·Dir. Dir carries the STEP vector magnitude.
type Line struct {
	Origin r3.Vec
	Dir    r3.Vec
}

func (c *Line) Eval(t float64) r3.Vec { return r3.Add(c.Origin, r3.Scale(t, c.Dir)) }
func (c *Line) Deriv(float64) r3.Vec { return c.Dir }
func (c *Line) Period() float64 { return 0 }
func (c *Line) Range() (float64, float64) { return math.Inf(-1), math.Inf(1) }

func (c *Line) Project(p r3.Vec, _ float64) float64 {
	n2 := r3.Norm2(c.Dir)
	if n2 == 0 {
		return 0
	}
	return r3.Dot(r3.Sub(p, c.Origin), c.Dir) / n2
}

// Circle: O + R(cos t X + sin t Y).
type Circle struct {
	Frame  Frame
	Radius float64
}

func (c *Circle) Eval(t float64) r3.Vec {
	return r3.Add(c.Frame.Origin, r3.Scale(c.Radius, c.Frame.radial(t)))
}

func (c *Circle) Deriv(t float64) r3.Vec { return r3.Scale(c.Radius, c.Frame.tangential(t)) }
func (c *Circle) Period() float64 { return 2 * math.Pi }
func (c *Circle) Range() (float64, float64) { return 0, 2 * math.Pi }

func (c *Circle) Project(p r3.Vec, hint float64) float64 {
	l := c.Frame.ToLocal(p)
	return nearestAngle(math.Atan2(l.Y, l.X), hint)
}

// Ellipse: O + A cos t X + B sin t Y. It is not a classification variant;
// the loader wraps it in OtherCurve so edges can still be sampled.
type Ellipse struct {
	Frame    Frame
	SemiAxis [2]float64
}

func (c *Ellipse) Eval(t float64) r3.Vec {
	s, co := math.Sincos(t)
	p := r3.Add(c.Frame.Origin, r3.Scale(c.SemiAxis[0]*co, c.Frame.X))
	return r3.Add(p, r3.Scale(c.SemiAxis[1]*s, c.Frame.Y))
}

func (c *Ellipse) Deriv(t float64) r3.Vec {
	s, co := math.Sincos(t)
	return r3.Add(r3.Scale(-c.SemiAxis[0]*s, c.Frame.X), r3.Scale(c.SemiAxis[1]*co, c.Frame.Y))
}

func (c *Ellipse) Period() float64 { return 2 * math.Pi }
func (c *Ellipse) Range() (float64, float64) { return 0, 2 * math.Pi }

func (c *Ellipse) Project(p r3.Vec, hint float64) float64 {
	l := c.Frame.ToLocal(p)
	if c.SemiAxis[0] == 0 || c.SemiAxis[1] == 0 {
		return hint
	}
	return nearestAngle(math.Atan2(l.Y/c.SemiAxis[1], l.X/c.SemiAxis[0]), hint)
}

// OtherCurve is an edge geometry outside the classification set. Shape is
// an optional evaluator; without one the edge is a straight chord between
// its vertices.
type OtherCurve struct {
	TypeName string
	Shape    ParamCurve
}

// Evaluator returns the ParamCurve behind c, or nil.
func Evaluator(c Curve) ParamCurve {
	switch c := c.(type) {
	case *Line:
		return c
	case *Circle:
		return c
	case *BSplineCurve:
		return c
	case *OtherCurve:
		return c.Shape
	}
	return nil
}

var (
	_ ParamCurve = (*Line)(nil)
	_ ParamCurve = (*Circle)(nil)
	_ ParamCurve = (*BSplineCurve)(nil)
	_ ParamCurve = (*Ellipse)(nil)
)
