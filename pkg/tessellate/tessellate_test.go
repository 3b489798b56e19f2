package tessellate_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/tessellate"
	"gonum.org/v1/gonum/spatial/r3"
)

func model(objs ...*brep.Object) *brep.Model {
	return &brep.Model{Objects: objs}
}

// signedVolume is the divergence-theorem volume of a closed mesh.
func signedVolume(m *kernel.Mesh) float64 {
	v := 0.0
	for i := range m.Triangles {
		t := m.Triangle(i)
		v += r3.Dot(t[0], r3.Cross(t[1], t[2])) / 6
	}
	return v
}

// openEdges counts undirected edges not used by exactly two triangles.
func openEdges(m *kernel.Mesh) int {
	uses := make(map[[2]uint32]int)
	for _, t := range m.Triangles {
		for j := 0; j < 3; j++ {
			a, b := t[j], t[(j+1)%3]
			if a > b {
				a, b = b, a
			}
			uses[[2]uint32{a, b}]++
		}
	}
	n := 0
	for _, c := range uses {
		if c != 2 {
			n++
		}
	}
	return n
}

func TestCube(t *testing.T) {
	m := model(brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}))
	mesh, warns, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if mesh.VertexCount() != 8 {
		t.Errorf("vertex count = %d, want 8", mesh.VertexCount())
	}
	if mesh.TriangleCount() != 12 {
		t.Errorf("triangle count = %d, want 12", mesh.TriangleCount())
	}
	if n := openEdges(mesh); n != 0 {
		t.Errorf("%d edges are not shared by two triangles", n)
	}
	if a := mesh.Area(); math.Abs(a-6) > 1e-12 {
		t.Errorf("area = %g, want 6", a)
	}
	if v := signedVolume(mesh); math.Abs(v-1) > 1e-12 {
		t.Errorf("volume = %g, want 1 (winding must be outward)", v)
	}
	if len(mesh.FaceIDs) != 12 || mesh.FaceIDs[0] != 0 || mesh.FaceIDs[11] != 5 {
		t.Errorf("face ids = %v, want two per face in order", mesh.FaceIDs)
	}
}

func TestCylinderIsCrackFree(t *testing.T) {
	m := model(brep.CylinderSolid("cyl", r3.Vec{X: 5}, 2, 3))
	mesh, warns, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{Tolerance: 0.005})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if n := openEdges(mesh); n != 0 {
		t.Errorf("%d edges are not shared by two triangles", n)
	}
	wantArea := 2*math.Pi*4 + 2*math.Pi*2*3
	if a := mesh.Area(); math.Abs(a-wantArea)/wantArea > 0.01 {
		t.Errorf("area = %g, want about %g", a, wantArea)
	}
	wantVol := math.Pi * 4 * 3
	if v := signedVolume(mesh); math.Abs(v-wantVol)/wantVol > 0.01 {
		t.Errorf("volume = %g, want about %g", v, wantVol)
	}
}

func TestSphere(t *testing.T) {
	centre := r3.Vec{Y: -1}
	m := model(brep.SphereSolid("ball", centre, 1.5))
	mesh, warns, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{Tolerance: 0.01})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
	if n := openEdges(mesh); n != 0 {
		t.Errorf("%d edges are not shared by two triangles", n)
	}
	if n := mesh.TriangleCount(); n > 20000 {
		t.Errorf("triangle count = %d, refinement did not converge", n)
	}
	for i, v := range mesh.Vertices {
		if d := math.Abs(r3.Norm(r3.Sub(v, centre)) - 1.5); d > 1e-9 {
			t.Fatalf("vertex %d is %g off the sphere", i, d)
		}
	}
	want := 4 * math.Pi * 1.5 * 1.5
	if a := mesh.Area(); a > want || (want-a)/want > 0.02 {
		t.Errorf("area = %g, want about %g", a, want)
	}
	if v := signedVolume(mesh); v <= 0 {
		t.Errorf("volume = %g, want positive (outward winding)", v)
	}
}

func TestOppositeSenseFlipsWinding(t *testing.T) {
	verts := []*brep.Vertex{{Point: r3.Vec{}}, {Point: r3.Vec{X: 1}}, {Point: r3.Vec{X: 1, Y: 1}}}
	var loop brep.Loop
	for i := range verts {
		a, b := verts[i], verts[(i+1)%3]
		e := &brep.Edge{Curve: &brep.Line{Origin: a.Point, Dir: r3.Sub(b.Point, a.Point)}, Start: a, End: b, Forward: true}
		loop.Edges = append(loop.Edges, brep.OrientedEdge{Edge: e})
	}
	loop.Outer = true

	tests := []struct {
		name      string
		sameSense bool
		wantZ     float64
	}{
		{"same sense", true, 1},
		{"opposite sense", false, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &brep.Face{Surface: &brep.Plane{Frame: brep.WorldFrame}, Loops: []brep.Loop{loop}, SameSense: tt.sameSense}
			m := model(&brep.Object{Name: "tri", Faces: []*brep.Face{f}})
			mesh, _, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{})
			if err != nil {
				t.Fatalf("Tessellate failed: %v", err)
			}
			if mesh.TriangleCount() != 1 {
				t.Fatalf("triangle count = %d, want 1", mesh.TriangleCount())
			}
			if z := mesh.Normal(0).Z; z != tt.wantZ {
				t.Errorf("normal z = %g, want %g", z, tt.wantZ)
			}
		})
	}
}

func TestDegenerateFaceIsSkippedWithWarning(t *testing.T) {
	cube := brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	a, b := &brep.Vertex{Point: r3.Vec{Z: 5}}, &brep.Vertex{Point: r3.Vec{X: 1, Z: 5}}
	e := &brep.Edge{Curve: &brep.Line{Origin: a.Point, Dir: r3.Vec{X: 1}}, Start: a, End: b, Forward: true}
	sliver := &brep.Face{
		Surface:   &brep.Plane{Frame: brep.WorldFrame.Translate(r3.Vec{Z: 5})},
		Loops:     []brep.Loop{{Edges: []brep.OrientedEdge{{Edge: e}, {Edge: e, Reversed: true}}, Outer: true}},
		SameSense: true,
	}
	bad := &brep.Object{Name: "bad", Faces: []*brep.Face{sliver}}

	mesh, warns, err := tessellate.Tessellate(context.Background(), model(cube, bad), tessellate.Options{})
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if mesh.TriangleCount() != 12 {
		t.Errorf("triangle count = %d, want the cube's 12", mesh.TriangleCount())
	}
	if len(warns) != 1 {
		t.Fatalf("warnings = %v, want one", warns)
	}
	if w := warns[0]; w.Face != 6 || w.Object != "bad" || !w.Skipped {
		t.Errorf("warning = %+v, want face 6 of object bad skipped", w)
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	m := model(
		brep.CylinderSolid("a", r3.Vec{}, 1, 2),
		brep.Box("b", r3.Vec{X: 3}, r3.Vec{X: 1, Y: 2, Z: 3}),
		brep.SphereSolid("c", r3.Vec{Z: 4}, 1),
	)
	one, _, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	many, _, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if one.VertexCount() != many.VertexCount() || one.TriangleCount() != many.TriangleCount() {
		t.Fatalf("worker count changed the mesh: %d/%d vs %d/%d",
			one.VertexCount(), one.TriangleCount(), many.VertexCount(), many.TriangleCount())
	}
	for i := range one.Triangles {
		if one.Triangles[i] != many.Triangles[i] {
			t.Fatalf("triangle %d differs: %v vs %v", i, one.Triangles[i], many.Triangles[i])
		}
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := model(brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}))
	mesh, _, err := tessellate.Tessellate(ctx, m, tessellate.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if mesh != nil {
		t.Error("partial mesh returned on cancellation")
	}
}

func TestNilModel(t *testing.T) {
	mesh, warns, err := tessellate.Tessellate(context.Background(), nil, tessellate.Options{})
	if err != nil || len(warns) != 0 || !mesh.IsEmpty() {
		t.Errorf("Tessellate(nil) = %v, %v, %v", mesh, warns, err)
	}
}
