package voxel

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"testing"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"pgregory.net/rapid"
)

func unitCube() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []r3.Vec{
			{}, {X: 1}, {X: 1, Y: 1}, {Y: 1},
			{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1},
		},
		Triangles: [][3]uint32{
			{0, 2, 1}, {0, 3, 2}, // bottom
			{4, 5, 6}, {4, 6, 7}, // top
			{0, 1, 5}, {0, 5, 4}, // front
			{2, 3, 7}, {2, 7, 6}, // back
			{1, 2, 6}, {1, 6, 5}, // right
			{3, 0, 4}, {3, 4, 7}, // left
		},
	}
}

func TestUnitCubeShell(t *testing.T) {
	g, err := Voxelize(context.Background(), unitCube(), 8, Options{})
	require.NoError(t, err)
	require.Len(t, g.Occupied, 512)
	assert.InDelta(t, 1.1/8, g.CellSize, 1e-12)
	assert.InDelta(t, -0.05, g.Origin.X, 1e-12)

	onShell := func(i int) bool { return i == 0 || i == 7 }
	for k := range 8 {
		for j := range 8 {
			for i := range 8 {
				shell := onShell(i) || onShell(j) || onShell(k)
				assert.Equal(t, shell, g.At(i, j, k), "cell (%d,%d,%d)", i, j, k)
			}
		}
	}
	for k := 3; k <= 4; k++ {
		for j := 3; j <= 4; j++ {
			for i := 3; i <= 4; i++ {
				assert.False(t, g.At(i, j, k))
			}
		}
	}
}

func TestInvalidResolution(t *testing.T) {
	for _, r := range []int{0, -3} {
		_, err := Voxelize(context.Background(), unitCube(), r, Options{})
		var ir *geomerr.InvalidResolutionError
		require.ErrorAs(t, err, &ir)
		assert.Equal(t, r, ir.Resolution)
		assert.True(t, geomerr.IsInput(err))
	}
}

func TestEmptyMeshGivesEmptyGrid(t *testing.T) {
	g, err := Voxelize(context.Background(), &kernel.Mesh{}, 5, Options{})
	require.NoError(t, err)
	assert.Len(t, g.Occupied, 125)
	assert.Zero(t, g.Count())
}

func TestGridSizeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := rapid.IntRange(1, 12).Draw(rt, "r")
		scale := rapid.Float64Range(0.01, 100).Draw(rt, "scale")
		m := unitCube()
		for i := range m.Vertices {
			m.Vertices[i] = r3.Scale(scale, m.Vertices[i])
		}
		g, err := Voxelize(context.Background(), m, r, Options{})
		if err != nil {
			rt.Fatal(err)
		}
		if len(g.Occupied) != r*r*r {
			rt.Fatalf("grid has %d cells, want %d", len(g.Occupied), r*r*r)
		}
		if g.Count() == 0 {
			rt.Fatal("no cell occupied")
		}
	})
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Voxelize(ctx, unitCube(), 4, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOverlaps(t *testing.T) {
	tri := r3.Triangle{{X: -1, Y: -1}, {X: 1, Y: -1}, {Y: 1}}
	tests := []struct {
		name   string
		centre r3.Vec
		want   bool
	}{
		{"through plane", r3.Vec{}, true},
		{"above", r3.Vec{Z: 0.6}, false},
		{"touching", r3.Vec{Z: 0.5}, true},
		{"beside hypotenuse", r3.Vec{X: 1.2, Y: 0.8}, false},
		{"corner", r3.Vec{X: 1.4, Y: -1.4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlaps(tt.centre, 0.5, tri))
		})
	}
}

func TestSparseAndPacked(t *testing.T) {
	g, err := Voxelize(context.Background(), unitCube(), 6, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.WriteJSON(&buf))
	var s Sparse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	assert.Equal(t, "1.0", s.FormatVersion)
	assert.Equal(t, [3]int{6, 6, 6}, s.Shape)
	assert.Len(t, s.Indices, g.Count())

	back, err := FromSparse(s)
	require.NoError(t, err)
	assert.Equal(t, g.Occupied, back.Occupied)
	assert.InDelta(t, g.CellSize, back.CellSize, 1e-12)

	packed := g.Packed()
	assert.Len(t, packed, 27)
	assert.Equal(t, byte(1), packed[0]&1, "cell (0,0,0) is bit 0 of byte 0")
	un, err := Unpack(6, packed)
	require.NoError(t, err)
	assert.Equal(t, g.Occupied, un.Occupied)

	_, err = Unpack(6, packed[:5])
	assert.Error(t, err)
}

func TestPackedBitOrder(t *testing.T) {
	g := newGrid(2, r3.Vec{}, 1)
	g.Occupied[g.Index(1, 0, 0)] = true
	g.Occupied[g.Index(0, 0, 1)] = true
	assert.Equal(t, []byte{0b0001_0010}, g.Packed())
}

func TestPreviewAndSlicePlot(t *testing.T) {
	g, err := Voxelize(context.Background(), unitCube(), 6, Options{})
	require.NoError(t, err)

	m, err := g.Preview(sdfx.New())
	require.NoError(t, err)
	require.False(t, m.IsEmpty())
	box, ok := m.Bounds()
	require.True(t, ok)
	assert.Greater(t, box.Max.X-box.Min.X, 0.8)

	counts := g.SliceCounts()
	assert.Equal(t, 36, counts[0])
	assert.Equal(t, 20, counts[2])

	var buf bytes.Buffer
	require.NoError(t, g.WriteSlicePlot(&buf))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)
}
