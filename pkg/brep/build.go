package brep

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Box builds an axis-aligned box solid with its minimum corner at min.
// Faces are ordered -Z, +Z, -Y, +Y, -X, +X; all are planes whose frame Z
// is the outward normal.
func Box(name string, min, size r3.Vec) *Object {
	verts := make([]*Vertex, 8)
	for i := range verts {
		off := r3.Vec{
			X: float64(i&1) * size.X,
			Y: float64(i>>1&1) * size.Y,
			Z: float64(i>>2&1) * size.Z,
		}
		verts[i] = &Vertex{Point: r3.Add(min, off)}
	}
	idx := func(x, y, z int) int { return x | y<<1 | z<<2 }

	// Counter-clockwise seen from outside.
	quads := [6][4]int{
		{idx(0, 0, 0), idx(0, 1, 0), idx(1, 1, 0), idx(1, 0, 0)},
		{idx(0, 0, 1), idx(1, 0, 1), idx(1, 1, 1), idx(0, 1, 1)},
		{idx(0, 0, 0), idx(1, 0, 0), idx(1, 0, 1), idx(0, 0, 1)},
		{idx(0, 1, 0), idx(0, 1, 1), idx(1, 1, 1), idx(1, 1, 0)},
		{idx(0, 0, 0), idx(0, 0, 1), idx(0, 1, 1), idx(0, 1, 0)},
		{idx(1, 0, 0), idx(1, 1, 0), idx(1, 1, 1), idx(1, 0, 1)},
	}

	edges := make(map[[2]int]*Edge)
	edgeOf := func(a, b int) OrientedEdge {
		key, rev := [2]int{a, b}, false
		if a > b {
			key, rev = [2]int{b, a}, true
		}
		e, ok := edges[key]
		if !ok {
			p, q := verts[key[0]].Point, verts[key[1]].Point
			e = &Edge{
				Curve:   &Line{Origin: p, Dir: r3.Sub(q, p)},
				Start:   verts[key[0]],
				End:     verts[key[1]],
				Forward: true,
			}
			edges[key] = e
		}
		return OrientedEdge{Edge: e, Reversed: rev}
	}

	obj := &Object{Name: name, Closed: true}
	for _, q := range quads {
		a, b, c := verts[q[0]].Point, verts[q[1]].Point, verts[q[2]].Point
		normal := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		loop := Loop{Outer: true}
		for i := range 4 {
			loop.Edges = append(loop.Edges, edgeOf(q[i], q[(i+1)%4]))
		}
		obj.Faces = append(obj.Faces, &Face{
			Surface:   &Plane{Frame: NewFrame(a, normal, r3.Sub(b, a))},
			Loops:     []Loop{loop},
			SameSense: true,
		})
	}
	return obj
}

// CylinderSolid builds a closed cylinder standing on base along +Z. Faces
// are bottom cap, top cap, lateral; the lateral face is bounded by both
// circles and a seam line at angle 0.
func CylinderSolid(name string, base r3.Vec, radius, height float64) *Object {
	axis := r3.Vec{Z: 1}
	ref := r3.Vec{X: 1}
	topCentre := r3.Add(base, r3.Scale(height, axis))

	vb := &Vertex{Point: r3.Add(base, r3.Scale(radius, ref))}
	vt := &Vertex{Point: r3.Add(topCentre, r3.Scale(radius, ref))}

	bottom := &Edge{Curve: &Circle{Frame: NewFrame(base, axis, ref), Radius: radius}, Start: vb, End: vb, Forward: true}
	top := &Edge{Curve: &Circle{Frame: NewFrame(topCentre, axis, ref), Radius: radius}, Start: vt, End: vt, Forward: true}
	seam := &Edge{Curve: &Line{Origin: vb.Point, Dir: r3.Scale(height, axis)}, Start: vb, End: vt, Forward: true}

	bottomFace := &Face{
		Surface:   &Plane{Frame: NewFrame(base, r3.Scale(-1, axis), ref)},
		Loops:     []Loop{{Edges: []OrientedEdge{{Edge: bottom, Reversed: true}}, Outer: true}},
		SameSense: true,
	}
	topFace := &Face{
		Surface:   &Plane{Frame: NewFrame(topCentre, axis, ref)},
		Loops:     []Loop{{Edges: []OrientedEdge{{Edge: top}}, Outer: true}},
		SameSense: true,
	}
	lateral := &Face{
		Surface: &Cylinder{Frame: NewFrame(base, axis, ref), Radius: radius},
		Loops: []Loop{{
			Edges: []OrientedEdge{
				{Edge: bottom},
				{Edge: seam},
				{Edge: top, Reversed: true},
				{Edge: seam, Reversed: true},
			},
			Outer: true,
		}},
		SameSense: true,
	}
	return &Object{Name: name, Faces: []*Face{bottomFace, topFace, lateral}, Closed: true}
}

// SphereSolid builds a sphere as a single untrimmed face.
func SphereSolid(name string, centre r3.Vec, radius float64) *Object {
	return &Object{
		Name: name,
		Faces: []*Face{{
			Surface:   &Sphere{Frame: NewFrame(centre, r3.Vec{Z: 1}, r3.Vec{X: 1}), Radius: radius},
			SameSense: true,
		}},
		Closed: true,
	}
}
