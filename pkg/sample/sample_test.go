package sample

import (
	"testing"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"pgregory.net/rapid"
)

// strip is the rectangle [0,2]×[0,1] split into one large and two small
// triangles, so a per-triangle uniform draw would be visibly biased.
func strip() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []r3.Vec{{}, {X: 2}, {X: 2, Y: 1}, {Y: 1}, {X: 0.5, Y: 1}},
		Triangles: [][3]uint32{
			{0, 1, 2},
			{0, 2, 4},
			{0, 4, 3},
		},
	}
}

func TestExactCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 3000).Draw(rt, "k")
		pc, err := Sample(strip(), k, Options{Seed: rapid.Uint64().Draw(rt, "seed")})
		if err != nil {
			rt.Fatal(err)
		}
		if pc.Len() != k || len(pc.Triangles) != k || len(pc.Normals) != k {
			rt.Fatalf("got %d points for k=%d", pc.Len(), k)
		}
	})
}

func TestDefaultCount(t *testing.T) {
	pc, err := Sample(strip(), 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCount, pc.Len())
}

func TestPointsLieOnSourceTriangle(t *testing.T) {
	m := strip()
	pc, err := Sample(m, 2000, Options{Seed: 7})
	require.NoError(t, err)
	for i, p := range pc.Points {
		tri := m.Triangle(pc.Triangles[i])
		// Barycentric areas of p against the triangle sum to its area.
		a := r3.Triangle{p, tri[1], tri[2]}.Area() + r3.Triangle{tri[0], p, tri[2]}.Area() + r3.Triangle{tri[0], tri[1], p}.Area()
		assert.InDelta(t, tri.Area(), a, 1e-9, "point %d outside its triangle", i)
		assert.Equal(t, 0.0, p.Z)
		assert.Equal(t, r3.Vec{Z: 1}, pc.Normals[i])
	}
}

func TestUniformDensity(t *testing.T) {
	pc, err := Sample(strip(), DefaultCount, Options{Seed: 42})
	require.NoError(t, err)

	// Eight equal cells of 0.5 × 0.5.
	obs := make([]float64, 8)
	for _, p := range pc.Points {
		cx := min(int(p.X/0.5), 3)
		cy := min(int(p.Y/0.5), 1)
		obs[cy*4+cx]++
	}
	exp := make([]float64, 8)
	for i := range exp {
		exp[i] = float64(DefaultCount) / 8
	}
	// Critical value of χ² with 7 degrees of freedom at p = 0.001.
	assert.Less(t, stat.ChiSquare(obs, exp), 24.32)
}

func TestDeterministicForSeed(t *testing.T) {
	a, err := Sample(strip(), 500, Options{Seed: 3})
	require.NoError(t, err)
	b, err := Sample(strip(), 500, Options{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, a.Points, b.Points)

	c, err := Sample(strip(), 500, Options{Seed: 4})
	require.NoError(t, err)
	assert.NotEqual(t, a.Points, c.Points)
}

func TestEmptyMesh(t *testing.T) {
	tests := []struct {
		name string
		mesh *kernel.Mesh
	}{
		{"nil", nil},
		{"no triangles", &kernel.Mesh{Vertices: []r3.Vec{{}}}},
		{"degenerate only", &kernel.Mesh{
			Vertices:  []r3.Vec{{}, {X: 1}, {X: 2}},
			Triangles: [][3]uint32{{0, 1, 2}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(tt.mesh, 10, Options{})
			var em *geomerr.EmptyMeshError
			require.ErrorAs(t, err, &em)
			assert.Equal(t, "sample", em.Stage)
		})
	}
}

func TestResample(t *testing.T) {
	pts := []r3.Vec{{X: 1}, {X: 2}, {X: 3}}
	up, err := Resample(pts, 10, Options{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, up.Len())
	for i, p := range up.Points {
		assert.Contains(t, pts, p)
		assert.Equal(t, -1, up.Triangles[i])
	}

	down, err := Resample(pts, 2, Options{Seed: 1})
	require.NoError(t, err)
	require.Equal(t, 2, down.Len())
	assert.NotEqual(t, down.Points[0], down.Points[1])

	_, err = Resample(nil, 2, Options{})
	assert.Error(t, err)
}
