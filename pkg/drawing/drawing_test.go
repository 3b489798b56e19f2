package drawing

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func meshOf(t *testing.T, m *brep.Model) *kernel.Mesh {
	t.Helper()
	mesh, _, err := tessellate.Tessellate(context.Background(), m, tessellate.Options{Tolerance: 0.01})
	require.NoError(t, err)
	return mesh
}

func viewByName(t *testing.T, p *Projection, name string) *View {
	t.Helper()
	for _, v := range p.Views {
		if v.Spec.Name == name {
			return v
		}
	}
	t.Fatalf("no %s view", name)
	return nil
}

func TestStandardViewsAreRightHanded(t *testing.T) {
	for _, s := range StandardViews {
		assert.Equal(t, s.Dir, r3.Cross(s.U, s.V), s.Name)
	}
}

func TestCubeViews(t *testing.T) {
	m := &brep.Model{Objects: []*brep.Object{brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})}}
	p, err := Project(context.Background(), m, meshOf(t, m), Options{})
	require.NoError(t, err)
	require.Len(t, p.Views, 3)
	assert.Equal(t, 12, p.Edges)

	for _, v := range p.Views {
		assert.Len(t, v.Primitives, 4, v.Spec.Name)
		assert.Len(t, v.Dropped, 8, v.Spec.Name)
		for _, prim := range v.Primitives {
			s, ok := prim.(*Segment)
			require.True(t, ok)
			assert.InDelta(t, 1.0, r2.Norm(r2.Sub(s.B, s.A)), 1e-12)
		}
		for _, d := range v.Dropped {
			assert.Equal(t, ReasonBackFacing, d.Reason)
		}
	}

	// The top view outlines the unit square.
	for _, prim := range viewByName(t, p, "top").Primitives {
		for _, q := range prim.Points(1) {
			assert.True(t, q.X == 0 || q.X == 1 || q.Y == 0 || q.Y == 1)
			assert.GreaterOrEqual(t, q.X, 0.0)
			assert.LessOrEqual(t, q.Y, 1.0)
		}
	}
}

func TestCylinderViews(t *testing.T) {
	m := &brep.Model{Objects: []*brep.Object{brep.CylinderSolid("cyl", r3.Vec{}, 2, 3)}}
	p, err := Project(context.Background(), m, meshOf(t, m), Options{})
	require.NoError(t, err)

	top := viewByName(t, p, "top")
	var arcs []*Arc
	for _, prim := range top.Primitives {
		if a, ok := prim.(*Arc); ok {
			arcs = append(arcs, a)
		}
	}
	require.Len(t, arcs, 1)
	assert.InDelta(t, 2.0, arcs[0].Radius, 1e-12)
	assert.Equal(t, 0.0, arcs[0].Start)
	assert.Equal(t, 360.0, arcs[0].End)

	front := viewByName(t, p, "front")
	require.Len(t, front.Primitives, 3)
	var lengths []float64
	for _, prim := range front.Primitives {
		s, ok := prim.(*Segment)
		require.True(t, ok, "front view of a cylinder is made of segments")
		lengths = append(lengths, r2.Norm(r2.Sub(s.B, s.A)))
	}
	assert.InDeltaSlice(t, []float64{4, 4, 3}, lengths, 0.01)
}

func TestOccludedEdgeIsDropped(t *testing.T) {
	// A small box hidden under a large one in the top view.
	big := brep.Box("big", r3.Vec{X: -2, Y: -2, Z: 2}, r3.Vec{X: 4, Y: 4, Z: 1})
	small := brep.Box("small", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	m := &brep.Model{Objects: []*brep.Object{big, small}}
	p, err := Project(context.Background(), m, meshOf(t, m), Options{})
	require.NoError(t, err)

	top := viewByName(t, p, "top")
	occluded := 0
	for _, d := range top.Dropped {
		if d.Reason == ReasonOccluded {
			occluded++
			assert.GreaterOrEqual(t, d.Edge, 12, "only edges of the small box are hidden")
		}
	}
	assert.Equal(t, 4, occluded)
	assert.Len(t, top.Primitives, 4)

	// Without a mesh only the facing test applies.
	p, err = Project(context.Background(), m, nil, Options{})
	require.NoError(t, err)
	assert.Len(t, viewByName(t, p, "top").Primitives, 8)
}

// discFace is a planar face bounded by one full circle.
func discFace(centre, axis r3.Vec, r float64) *brep.Model {
	frame := brep.NewFrame(centre, axis, r3.Vec{X: 1})
	v := &brep.Vertex{Point: frame.ToWorld(r3.Vec{X: r})}
	e := &brep.Edge{Curve: &brep.Circle{Frame: frame, Radius: r}, Start: v, End: v, Forward: true}
	f := &brep.Face{
		Surface:   &brep.Plane{Frame: frame},
		Loops:     []brep.Loop{{Edges: []brep.OrientedEdge{{Edge: e}}, Outer: true}},
		SameSense: true,
	}
	return &brep.Model{Objects: []*brep.Object{{Name: "disc", Faces: []*brep.Face{f}}}}
}

func TestObliqueCircleBecomesEllipse(t *testing.T) {
	m := discFace(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{Y: 1, Z: 1}, 2)
	p, err := Project(context.Background(), m, nil, Options{})
	require.NoError(t, err)

	top := viewByName(t, p, "top")
	require.Len(t, top.Primitives, 1)
	el, ok := top.Primitives[0].(*Ellipse)
	require.True(t, ok)
	assert.InDelta(t, 2.0, r2.Norm(el.Major), 1e-9)
	assert.InDelta(t, math.Sqrt2/2, el.Ratio, 1e-9)
	assert.Equal(t, r2.Vec{X: 1, Y: 2}, el.Centre)
	assert.InDelta(t, 2*math.Pi, el.End-el.Start, 1e-12)

	// Every point of the projected ellipse is the projection of a circle point.
	for _, q := range el.Points(16) {
		d := r2.Sub(q, el.Centre)
		assert.InDelta(t, 1.0, d.X*d.X/4+d.Y*d.Y/2, 1e-9)
	}
}

func TestPartialArcDirection(t *testing.T) {
	frame := brep.NewFrame(r3.Vec{}, r3.Vec{Z: 1}, r3.Vec{X: 1})
	a := &brep.Vertex{Point: r3.Vec{X: 1}}
	b := &brep.Vertex{Point: r3.Vec{Y: 1}}
	tests := []struct {
		name       string
		forward    bool
		start, end float64
	}{
		{"forward quarter", true, 0, 90},
		{"reversed three quarters", false, 90, 360},
	}
	top := StandardViews[0]
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &brep.Edge{Curve: &brep.Circle{Frame: frame, Radius: 1}, Start: a, End: b, Forward: tt.forward}
			prim := projectEdge(top, 0, e, e.Sample(0.01, 0.35), 0.01)
			arc, ok := prim.(*Arc)
			require.True(t, ok)
			assert.InDelta(t, tt.start, arc.Start, 1e-9)
			assert.InDelta(t, tt.end, arc.End, 1e-9)
		})
	}

	e := &brep.Edge{Curve: &brep.Circle{Frame: frame, Radius: 1}, Start: a, End: b, Forward: true}
	seg, ok := projectEdge(StandardViews[1], 0, e, e.Sample(0.01, 0.35), 0.01).(*Segment)
	require.True(t, ok, "circle seen edge-on is a segment")
	assert.InDelta(t, 1.0, r2.Norm(r2.Sub(seg.B, seg.A)), 1e-3)
}

func TestNoEdges(t *testing.T) {
	for _, m := range []*brep.Model{nil, {}, discFace(r3.Vec{}, r3.Vec{Z: 1}, 1)} {
		if m != nil && len(m.Objects) > 0 {
			m.Objects[0].Faces[0].Loops = nil
		}
		_, err := Project(context.Background(), m, nil, Options{})
		var pe *geomerr.ProjectionError
		require.ErrorAs(t, err, &pe)
		assert.True(t, geomerr.IsGeometry(err))
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &brep.Model{Objects: []*brep.Object{brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})}}
	_, err := Project(ctx, m, nil, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRayTriangle(t *testing.T) {
	tri := r3.Triangle{{X: -1, Y: -1, Z: 2}, {X: 1, Y: -1, Z: 2}, {Y: 1, Z: 2}}
	d, ok := rayTriangle(r3.Vec{}, r3.Vec{Z: 1}, tri)
	require.True(t, ok)
	assert.InDelta(t, 2.0, d, 1e-12)

	_, ok = rayTriangle(r3.Vec{X: 3}, r3.Vec{Z: 1}, tri)
	assert.False(t, ok)
	_, ok = rayTriangle(r3.Vec{}, r3.Vec{X: 1}, tri)
	assert.False(t, ok)
}

func TestWriteOutputs(t *testing.T) {
	m := &brep.Model{Objects: []*brep.Object{brep.CylinderSolid("cyl", r3.Vec{}, 1, 2)}}
	m.Objects = append(m.Objects, discFace(r3.Vec{X: 4}, r3.Vec{X: 1, Z: 1}, 1).Objects...)
	p, err := Project(context.Background(), m, meshOf(t, m), Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WriteDXF(dir, p)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "top_view.dxf"),
		filepath.Join(dir, "front_view.dxf"),
		filepath.Join(dir, "side_view.dxf"),
	}, paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		text := string(data)
		assert.Contains(t, text, LayerVisible)
		assert.True(t, strings.Contains(text, "LINE") || strings.Contains(text, "CIRCLE"))
	}

	for _, v := range p.Views {
		var buf bytes.Buffer
		require.NoError(t, WritePreview(&buf, v))
		_, err := png.Decode(&buf)
		assert.NoError(t, err)
	}
}
