// Package brep holds the boundary-representation model the pipeline
// consumes: objects own faces, faces own a surface and trimming loops,
// loops reference shared edges, and edges own a curve between two
// vertices. The model is built once by a loader and never mutated.
package brep

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Model is a loaded B-rep: an ordered list of objects.
type Model struct {
	Objects []*Object
}

// Object is one solid or sheet body.
type Object struct {
	Name   string
	Faces  []*Face
	Closed bool
}

// Face is a trimmed region of a surface. SameSense is false when the
// face normal opposes the surface normal Su×Sv.
type Face struct {
	Surface   Surface
	Loops     []Loop
	SameSense bool
}

// Loop is a closed boundary. A loop with a Vertex and no edges is a
// degenerate point loop (cone apex, sphere pole). Outer marks a bound
// the source declared as the outer one.
type Loop struct {
	Edges  []OrientedEdge
	Vertex *Vertex
	Outer  bool
}

// OrientedEdge is an edge traversed forward or reversed.
type OrientedEdge struct {
	Edge     *Edge
	Reversed bool
}

// Edge is a bounded piece of a curve. Forward is false when the edge runs
// against the curve's parametrisation.
type Edge struct {
	Curve   Curve
	Start   *Vertex
	End     *Vertex
	Forward bool
}

// Vertex is a topological point.
type Vertex struct {
	Point r3.Vec
}

// FaceCount returns the total number of faces across all objects.
func (m *Model) FaceCount() int {
	n := 0
	for _, o := range m.Objects {
		n += len(o.Faces)
	}
	return n
}

// Faces returns every face in native order: objects in order, faces in
// object order. The position in this slice is the global face index.
func (m *Model) Faces() []*Face {
	out := make([]*Face, 0, m.FaceCount())
	for _, o := range m.Objects {
		out = append(out, o.Faces...)
	}
	return out
}

// Edges returns the distinct edges of the model in first-use order.
func (m *Model) Edges() []*Edge {
	var out []*Edge
	seen := make(map[*Edge]bool)
	for _, o := range m.Objects {
		for _, e := range o.Edges() {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Edges returns the distinct edges of the object in first-use order.
func (o *Object) Edges() []*Edge {
	var out []*Edge
	seen := make(map[*Edge]bool)
	for _, f := range o.Faces {
		for _, l := range f.Loops {
			for _, oe := range l.Edges {
				if !seen[oe.Edge] {
					seen[oe.Edge] = true
					out = append(out, oe.Edge)
				}
			}
		}
	}
	return out
}

// Vertices returns the distinct vertices of the object in first-use order.
func (o *Object) Vertices() []*Vertex {
	var out []*Vertex
	seen := make(map[*Vertex]bool)
	add := func(v *Vertex) {
		if v != nil && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, f := range o.Faces {
		for _, l := range f.Loops {
			add(l.Vertex)
			for _, oe := range l.Edges {
				add(oe.Edge.Start)
				add(oe.Edge.End)
			}
		}
	}
	return out
}

// LoopCount returns the number of loops over all faces of the object.
func (o *Object) LoopCount() int {
	n := 0
	for _, f := range o.Faces {
		n += len(f.Loops)
	}
	return n
}

// EdgeFaces maps each edge to the faces that use it, in face order.
func (m *Model) EdgeFaces() map[*Edge][]*Face {
	out := make(map[*Edge][]*Face)
	for _, f := range m.Faces() {
		for _, l := range f.Loops {
			for _, oe := range l.Edges {
				fs := out[oe.Edge]
				if len(fs) == 0 || fs[len(fs)-1] != f {
					out[oe.Edge] = append(fs, f)
				}
			}
		}
	}
	return out
}

// Bounds returns the bounding box of all vertices and edge samples at the
// given tolerance. ok is false for a model without geometry.
func (m *Model) Bounds(tol float64) (box r3.Box, ok bool) {
	first := true
	grow := func(p r3.Vec) {
		if first {
			box = r3.Box{Min: p, Max: p}
			first = false
			return
		}
		box.Min = r3.Vec{X: min(box.Min.X, p.X), Y: min(box.Min.Y, p.Y), Z: min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: max(box.Max.X, p.X), Y: max(box.Max.Y, p.Y), Z: max(box.Max.Z, p.Z)}
	}
	for _, e := range m.Edges() {
		for _, p := range e.Sample(tol, DefaultAngularTolerance) {
			grow(p)
		}
	}
	for _, f := range m.Faces() {
		if s, isSphere := f.Surface.(*Sphere); isSphere && len(f.Loops) == 0 {
			r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
			grow(r3.Sub(s.Frame.Origin, r))
			grow(r3.Add(s.Frame.Origin, r))
		}
		if s, isTorus := f.Surface.(*Torus); isTorus && len(f.Loops) == 0 {
			rr := s.MajorRadius + s.MinorRadius
			r := r3.Vec{X: rr, Y: rr, Z: rr}
			grow(r3.Sub(s.Frame.Origin, r))
			grow(r3.Add(s.Frame.Origin, r))
		}
	}
	return box, !first
}
