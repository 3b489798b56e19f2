package drawing

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Primitive is one 2D drawing entity. The set is closed.
type Primitive interface {
	primitive()
	// Source is the index of the model edge it was projected from.
	Source() int
	// Points approximates the primitive with at least n+1 points.
	Points(n int) []r2.Vec
}

// Segment is a straight line.
type Segment struct {
	A, B r2.Vec
	Edge int
}

// Arc is a circular arc running counter-clockwise from Start to End,
// angles in degrees. A full circle has Start 0 and End 360.
type Arc struct {
	Centre     r2.Vec
	Radius     float64
	Start, End float64
	Edge       int
}

// Ellipse is an elliptical arc. Major is the semi-major axis vector, the
// semi-minor axis is Major rotated a quarter turn counter-clockwise and
// scaled by Ratio. Start and End are eccentric-anomaly parameters in
// radians, counter-clockwise.
type Ellipse struct {
	Centre     r2.Vec
	Major      r2.Vec
	Ratio      float64
	Start, End float64
	Edge       int
}

// Polyline is an open chain of points.
type Polyline struct {
	Vertices []r2.Vec
	Edge     int
}

func (*Segment) primitive()  {}
func (*Arc) primitive()      {}
func (*Ellipse) primitive()  {}
func (*Polyline) primitive() {}

func (s *Segment) Source() int  { return s.Edge }
func (a *Arc) Source() int      { return a.Edge }
func (e *Ellipse) Source() int  { return e.Edge }
func (p *Polyline) Source() int { return p.Edge }

func (s *Segment) Points(int) []r2.Vec { return []r2.Vec{s.A, s.B} }

func (a *Arc) Points(n int) []r2.Vec {
	n = max(n, 1)
	start, end := a.Start*math.Pi/180, a.End*math.Pi/180
	pts := make([]r2.Vec, n+1)
	for i := range pts {
		t := start + (end-start)*float64(i)/float64(n)
		s, c := math.Sincos(t)
		pts[i] = r2.Add(a.Centre, r2.Vec{X: a.Radius * c, Y: a.Radius * s})
	}
	return pts
}

func (e *Ellipse) Points(n int) []r2.Vec {
	n = max(n, 1)
	minor := r2.Scale(e.Ratio, r2.Vec{X: -e.Major.Y, Y: e.Major.X})
	pts := make([]r2.Vec, n+1)
	for i := range pts {
		t := e.Start + (e.End-e.Start)*float64(i)/float64(n)
		s, c := math.Sincos(t)
		pts[i] = r2.Add(e.Centre, r2.Add(r2.Scale(c, e.Major), r2.Scale(s, minor)))
	}
	return pts
}

func (p *Polyline) Points(int) []r2.Vec { return p.Vertices }
