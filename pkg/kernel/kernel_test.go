package kernel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// unitSquare is two triangles covering [0,1]² in the z=0 plane.
func unitSquare() *Mesh {
	return &Mesh{
		Vertices:  []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		Triangles: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
	}
}

// --- Mesh helper method tests ---

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		mesh      *Mesh
		verts     int
		triangles int
		empty     bool
	}{
		{"empty", &Mesh{}, 0, 0, true},
		{"vertices only", &Mesh{Vertices: []r3.Vec{{X: 1}}}, 1, 0, true},
		{"square", unitSquare(), 4, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.VertexCount(); got != tt.verts {
				t.Errorf("VertexCount() = %d, want %d", got, tt.verts)
			}
			if got := tt.mesh.TriangleCount(); got != tt.triangles {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.triangles)
			}
			if got := tt.mesh.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestMeshAreaAndNormal(t *testing.T) {
	m := unitSquare()
	if got := m.Area(); math.Abs(got-1) > 1e-12 {
		t.Errorf("Area() = %g, want 1", got)
	}
	for i := range m.Triangles {
		if n := m.Normal(i); n != (r3.Vec{Z: 1}) {
			t.Errorf("Normal(%d) = %v, want +Z", i, n)
		}
	}

	m.Triangles = append(m.Triangles, [3]uint32{0, 1, 1})
	if got := m.NonDegenerate(); got != 2 {
		t.Errorf("NonDegenerate() = %d, want 2", got)
	}
	if n := m.Normal(2); n != (r3.Vec{}) {
		t.Errorf("degenerate Normal = %v, want zero", n)
	}
}

func TestMeshBounds(t *testing.T) {
	if _, ok := (&Mesh{}).Bounds(); ok {
		t.Fatal("Bounds() ok for empty mesh")
	}
	m := unitSquare()
	m.Vertices = append(m.Vertices, r3.Vec{X: 50, Y: 50, Z: 50}) // unreferenced
	box, ok := m.Bounds()
	if !ok {
		t.Fatal("Bounds() not ok")
	}
	if box.Min != (r3.Vec{}) || box.Max != (r3.Vec{X: 1, Y: 1}) {
		t.Errorf("Bounds() = %v, want [0,0,0]-[1,1,0]", box)
	}
}

func TestMeshAppend(t *testing.T) {
	a := unitSquare()
	a.FaceIDs = []int{0, 0}
	b := unitSquare()
	a.Append(b)
	if a.TriangleCount() != 4 || a.VertexCount() != 8 {
		t.Fatalf("after Append: %d triangles, %d vertices", a.TriangleCount(), a.VertexCount())
	}
	if a.Triangles[2] != [3]uint32{4, 5, 6} {
		t.Errorf("appended triangle = %v, want offset indices", a.Triangles[2])
	}
	want := []int{0, 0, -1, -1}
	for i, id := range want {
		if a.FaceIDs[i] != id {
			t.Errorf("FaceIDs[%d] = %d, want %d", i, a.FaceIDs[i], id)
		}
	}
}

func TestGrid(t *testing.T) {
	if _, err := NewGrid(r3.Vec{}, 0, [3]int{2, 2, 2}, 0); err == nil {
		t.Error("NewGrid accepted zero cell size")
	}
	g, err := NewGrid(r3.Vec{X: -1}, 0.5, [3]int{3, 4, 5}, 1)
	if err != nil {
		t.Fatalf("NewGrid() error = %v", err)
	}
	g.Set(2, 3, 4, -7)
	if got := g.Values[len(g.Values)-1]; got != -7 {
		t.Errorf("last value = %g, want -7", got)
	}
	if got := g.At(0, 0, 0); got != 1 {
		t.Errorf("At(0,0,0) = %g, want fill 1", got)
	}
	if c := g.Centre(2, 3, 4); c != (r3.Vec{X: 0, Y: 1.5, Z: 2}) {
		t.Errorf("Centre = %v", c)
	}
}

// --- Compile-time interface check with a stub kernel ---

type stubSolid struct {
	box r3.Box
}

func (s *stubSolid) Bounds() r3.Box { return s.box }

// stubKernel proves the interface is satisfiable.
type stubKernel struct{}

func (k *stubKernel) Volume(g *Grid) (Solid, error) {
	return &stubSolid{box: g.Bounds()}, nil
}

func (k *stubKernel) ToMesh(_ Solid, _ int) (*Mesh, error) {
	return &Mesh{}, nil
}

var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelVolume(t *testing.T) {
	var k Kernel = &stubKernel{}
	g, _ := NewGrid(r3.Vec{}, 1, [3]int{2, 3, 4}, 0)
	s, err := k.Volume(g)
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if got := s.Bounds().Max; got != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Bounds().Max = %v, want [1 2 3]", got)
	}
	m, err := k.ToMesh(s, 10)
	if err != nil || !m.IsEmpty() {
		t.Errorf("stub ToMesh() = %v, %v", m, err)
	}
}
