package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Triangles are counter-clockwise seen
// from outside the solid.
type Mesh struct {
	Vertices  []r3.Vec    `json:"vertices"`
	Triangles [][3]uint32 `json:"triangles"`
	// FaceIDs holds, per triangle, the global index of the B-rep face it
	// came from. It is nil for meshes loaded without topology.
	FaceIDs  []int  `json:"faceIds,omitempty"`
	PartName string `json:"partName,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Triangles) == 0
}

// Triangle returns the corner positions of triangle i.
func (m *Mesh) Triangle(i int) r3.Triangle {
	t := m.Triangles[i]
	return r3.Triangle{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
}

// Normal is the unit normal of triangle i, or the zero vector when the
// triangle has no area.
func (m *Mesh) Normal(i int) r3.Vec {
	t := m.Triangle(i)
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Area is the total surface area.
func (m *Mesh) Area() float64 {
	a := 0.0
	for i := range m.Triangles {
		a += m.Triangle(i).Area()
	}
	return a
}

// NonDegenerate counts triangles with positive area.
func (m *Mesh) NonDegenerate() int {
	n := 0
	for i := range m.Triangles {
		if m.Triangle(i).Area() > 0 {
			n++
		}
	}
	return n
}

// Bounds returns the axis-aligned box of the referenced vertices. ok is
// false for an empty mesh.
func (m *Mesh) Bounds() (box r3.Box, ok bool) {
	if m.IsEmpty() {
		return r3.Box{}, false
	}
	inf := math.Inf(1)
	box = r3.Box{Min: r3.Vec{X: inf, Y: inf, Z: inf}, Max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, t := range m.Triangles {
		for _, i := range t {
			v := m.Vertices[i]
			box.Min = r3.Vec{X: math.Min(box.Min.X, v.X), Y: math.Min(box.Min.Y, v.Y), Z: math.Min(box.Min.Z, v.Z)}
			box.Max = r3.Vec{X: math.Max(box.Max.X, v.X), Y: math.Max(box.Max.Y, v.Y), Z: math.Max(box.Max.Z, v.Z)}
		}
	}
	return box, true
}

// Append adds other's triangles to m, offsetting its indices.
func (m *Mesh) Append(other *Mesh) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, t := range other.Triangles {
		m.Triangles = append(m.Triangles, [3]uint32{t[0] + base, t[1] + base, t[2] + base})
	}
	if other.FaceIDs != nil || m.FaceIDs != nil {
		for len(m.FaceIDs) < len(m.Triangles)-len(other.Triangles) {
			m.FaceIDs = append(m.FaceIDs, -1)
		}
		if other.FaceIDs != nil {
			m.FaceIDs = append(m.FaceIDs, other.FaceIDs...)
		} else {
			for range other.Triangles {
				m.FaceIDs = append(m.FaceIDs, -1)
			}
		}
	}
}
