package brep

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is a right-handed orthonormal placement: an origin and three unit
// axes. It is the STEP AXIS2_PLACEMENT_3D after normalisation.
type Frame struct {
	Origin  r3.Vec
	X, Y, Z r3.Vec
}

// WorldFrame is the identity placement.
var WorldFrame = Frame{
	X: r3.Vec{X: 1},
	Y: r3.Vec{Y: 1},
	Z: r3.Vec{Z: 1},
}

// NewFrame builds a frame from an axis and a reference direction. The
// reference direction is orthogonalised against the axis; when it is
// missing or parallel to the axis an arbitrary perpendicular is used.
func NewFrame(origin, axis, ref r3.Vec) Frame {
	z := unitOr(axis, r3.Vec{Z: 1})
	x := r3.Sub(ref, r3.Scale(r3.Dot(ref, z), z))
	if r3.Norm(x) < 1e-12 {
		x = perpendicular(z)
	}
	x = r3.Unit(x)
	return Frame{Origin: origin, X: x, Y: r3.Cross(z, x), Z: z}
}

// ToWorld maps local coordinates to world coordinates.
func (f Frame) ToWorld(l r3.Vec) r3.Vec {
	p := f.Origin
	p = r3.Add(p, r3.Scale(l.X, f.X))
	p = r3.Add(p, r3.Scale(l.Y, f.Y))
	return r3.Add(p, r3.Scale(l.Z, f.Z))
}

// ToLocal maps a world point into the frame.
func (f Frame) ToLocal(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Origin)
	return r3.Vec{X: r3.Dot(d, f.X), Y: r3.Dot(d, f.Y), Z: r3.Dot(d, f.Z)}
}

// Translate returns the frame moved by d.
func (f Frame) Translate(d r3.Vec) Frame {
	f.Origin = r3.Add(f.Origin, d)
	return f
}

// radial is cos(u)X + sin(u)Y.
func (f Frame) radial(u float64) r3.Vec {
	s, c := math.Sincos(u)
	return r3.Add(r3.Scale(c, f.X), r3.Scale(s, f.Y))
}

// tangential is d/du radial(u).
func (f Frame) tangential(u float64) r3.Vec {
	s, c := math.Sincos(u)
	return r3.Add(r3.Scale(-s, f.X), r3.Scale(c, f.Y))
}

func unitOr(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-15 || math.IsNaN(n) {
		return fallback
	}
	return r3.Scale(1/n, v)
}

func perpendicular(z r3.Vec) r3.Vec {
	a := r3.Vec{X: 1}
	if math.Abs(z.X) > 0.9 {
		a = r3.Vec{Y: 1}
	}
	return r3.Sub(a, r3.Scale(r3.Dot(a, z), z))
}

// nearestAngle returns the representative of a (mod 2π) closest to ref.
func nearestAngle(a, ref float64) float64 {
	return a + 2*math.Pi*math.Round((ref-a)/(2*math.Pi))
}
