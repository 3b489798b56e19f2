package analyse

import (
	"context"
	"math"
	"testing"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/trim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"pgregory.net/rapid"
)

func unitCube() *brep.Model {
	return &brep.Model{Objects: []*brep.Object{brep.Box("cube", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})}}
}

func TestUnitCube(t *testing.T) {
	rep, err := Analyse(context.Background(), unitCube(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 6, rep.TotalSurfaces)
	assert.InDelta(t, 6.0, rep.TotalArea, 1e-12)
	assert.Equal(t, map[string]int{"Plane": 6}, rep.SurfaceTypeCounts)
	assert.Empty(t, rep.Warnings)

	for i, r := range rep.Surfaces {
		assert.Equal(t, i, r.FaceIndex)
		assert.Equal(t, "cube", r.ObjectName)
		assert.InDelta(t, 1.0, r.Area, 1e-12)
	}
	bottom := rep.Surfaces[0].CenterOfMass
	assert.InDelta(t, 0.5, bottom.X, 1e-12)
	assert.InDelta(t, 0.5, bottom.Y, 1e-12)
	assert.InDelta(t, 0.0, bottom.Z, 1e-12)

	require.Len(t, rep.Objects, 1)
	obj := rep.Objects[0]
	assert.InDelta(t, 1.0, obj.Volume, 1e-12)
	assert.Equal(t, Topology{Faces: 6, Edges: 12, Vertices: 8, Loops: 6}, obj.Topology)
	assert.Equal(t, map[string]int{"Line": 12}, obj.EdgeTypeCounts)
	require.NotNil(t, rep.CenterOfMass)
	assert.InDelta(t, 0.5, rep.CenterOfMass.Z, 1e-12)

	require.NotNil(t, rep.Dimensions)
	assert.InDelta(t, math.Sqrt(3), rep.Dimensions.Diagonal, 1e-12)
	require.NotNil(t, rep.EdgeStatistics)
	assert.InDelta(t, 12.0, rep.EdgeStatistics.TotalLength, 1e-12)
	assert.Equal(t, 12, rep.Complexity.StraightEdges)
	assert.Equal(t, 0.0, rep.Complexity.SurfaceDiversity)
}

func TestCylinderIntegratesTrimmedDomain(t *testing.T) {
	m := &brep.Model{Objects: []*brep.Object{brep.CylinderSolid("cyl", r3.Vec{X: 2}, 1, 2)}}
	rep, err := Analyse(context.Background(), m, Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Plane": 2, "Cylinder": 1}, rep.SurfaceTypeCounts)
	lateral := rep.Surfaces[2]
	assert.Equal(t, "Cylinder", lateral.SurfaceType)
	assert.InEpsilon(t, 4*math.Pi, lateral.Area, 1e-3)
	assert.InDelta(t, 2.0, lateral.CenterOfMass.X, 1e-6)
	assert.InDelta(t, 1.0, lateral.CenterOfMass.Z, 1e-6)

	assert.InEpsilon(t, 2*math.Pi, rep.Objects[0].Volume, 1e-3)
	assert.Equal(t, 2, rep.Complexity.UniqueSurfaceTypes)
	assert.Equal(t, 2, rep.Complexity.CurvedEdges)
	assert.Equal(t, 1, rep.Complexity.StraightEdges)
	assert.InDelta(t, 0.9183, rep.Complexity.SurfaceDiversity, 1e-3)
}

func TestSphere(t *testing.T) {
	centre := r3.Vec{X: 1, Y: -2, Z: 3}
	m := &brep.Model{Objects: []*brep.Object{brep.SphereSolid("ball", centre, 2)}}
	rep, err := Analyse(context.Background(), m, Options{})
	require.NoError(t, err)

	assert.InEpsilon(t, 16*math.Pi, rep.TotalArea, 1e-4)
	assert.InEpsilon(t, 32*math.Pi/3, rep.TotalVolume, 1e-4)
	c := rep.Surfaces[0].CenterOfMass
	assert.InDelta(t, centre.X, c.X, 1e-6)
	assert.InDelta(t, centre.Y, c.Y, 1e-6)
	assert.InDelta(t, centre.Z, c.Z, 1e-6)
}

func TestQuadratureNeedsNoRefinement(t *testing.T) {
	m := &brep.Model{Objects: []*brep.Object{brep.SphereSolid("ball", r3.Vec{}, 2)}}
	face := m.Objects[0].Faces[0]
	q := newRule(Options{}.withDefaults().QuadratureOrder)

	coarse := trim.Options{Tolerance: 0.05}
	d, err := trim.Triangulate(face, trim.SampleEdges(m, coarse), coarse)
	require.NoError(t, err)
	assert.Less(t, len(d.Tris), 500)
	mom := integrate(d, q, 1)
	assert.InEpsilon(t, 16*math.Pi, mom.area, 1e-6)
	assert.InEpsilon(t, 32*math.Pi/3, mom.vol, 1e-6)

	fine := trim.Options{Tolerance: 0.01, Refine: true}
	rd, err := trim.Triangulate(face, trim.SampleEdges(m, fine), fine)
	require.NoError(t, err)
	assert.Greater(t, len(rd.Tris), len(d.Tris))
	assert.InEpsilon(t, mom.area, integrate(rd, q, 1).area, 1e-6)
}

func TestUnevaluableSurfaceUsesBoundaryArea(t *testing.T) {
	verts := []*brep.Vertex{{Point: r3.Vec{}}, {Point: r3.Vec{X: 3}}, {Point: r3.Vec{X: 3, Z: 2}}, {Point: r3.Vec{Z: 2}}}
	var loop brep.Loop
	for i := range verts {
		a, b := verts[i], verts[(i+1)%len(verts)]
		e := &brep.Edge{Curve: &brep.Line{Origin: a.Point, Dir: r3.Sub(b.Point, a.Point)}, Start: a, End: b, Forward: true}
		loop.Edges = append(loop.Edges, brep.OrientedEdge{Edge: e})
	}
	loop.Outer = true
	f := &brep.Face{Surface: &brep.OtherSurface{TypeName: "SURFACE_OF_REVOLUTION"}, Loops: []brep.Loop{loop}, SameSense: true}
	m := &brep.Model{Objects: []*brep.Object{{Name: "sheet", Faces: []*brep.Face{f}}}}

	rep, err := Analyse(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Other": 1}, rep.SurfaceTypeCounts)
	assert.InDelta(t, 6.0, rep.TotalArea, 1e-9)
	assert.InDelta(t, 1.5, rep.Surfaces[0].CenterOfMass.X, 1e-9)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, 0, rep.Warnings[0].Face)
}

func TestDegenerateFaceIsReportedWithZeroArea(t *testing.T) {
	a, b := &brep.Vertex{Point: r3.Vec{}}, &brep.Vertex{Point: r3.Vec{X: 1}}
	e := &brep.Edge{Curve: &brep.Line{Origin: a.Point, Dir: r3.Vec{X: 1}}, Start: a, End: b, Forward: true}
	f := &brep.Face{
		Surface:   &brep.Plane{Frame: brep.WorldFrame},
		Loops:     []brep.Loop{{Edges: []brep.OrientedEdge{{Edge: e}, {Edge: e, Reversed: true}}, Outer: true}},
		SameSense: true,
	}
	m := unitCube()
	m.Objects = append(m.Objects, &brep.Object{Name: "sliver", Faces: []*brep.Face{f}})

	rep, err := Analyse(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, rep.TotalSurfaces)
	assert.Equal(t, 0.0, rep.Surfaces[6].Area)
	assert.Equal(t, 6, rep.Surfaces[6].FaceIndex)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "sliver", rep.Warnings[0].Object)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyse(ctx, unitCube(), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTotalAreaIsSumOfRecords(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "objects")
		m := &brep.Model{}
		for range n {
			at := r3.Vec{
				X: rapid.Float64Range(-10, 10).Draw(rt, "x"),
				Y: rapid.Float64Range(-10, 10).Draw(rt, "y"),
				Z: rapid.Float64Range(-10, 10).Draw(rt, "z"),
			}
			size := rapid.Float64Range(0.1, 5).Draw(rt, "size")
			switch rapid.IntRange(0, 2).Draw(rt, "kind") {
			case 0:
				m.Objects = append(m.Objects, brep.Box("box", at, r3.Vec{X: size, Y: size * 0.5, Z: size * 2}))
			case 1:
				m.Objects = append(m.Objects, brep.CylinderSolid("cyl", at, size, size*1.5))
			default:
				m.Objects = append(m.Objects, brep.SphereSolid("ball", at, size))
			}
		}
		rep, err := Analyse(context.Background(), m, Options{Tolerance: 0.05, QuadratureOrder: 3})
		if err != nil {
			rt.Fatal(err)
		}
		sum := 0.0
		for _, r := range rep.Surfaces {
			sum += r.Area
		}
		if rep.TotalArea != sum {
			rt.Fatalf("TotalArea %v != sum of records %v", rep.TotalArea, sum)
		}
		if rep.TotalSurfaces != m.FaceCount() {
			rt.Fatalf("TotalSurfaces %d != face count %d", rep.TotalSurfaces, m.FaceCount())
		}
	})
}
