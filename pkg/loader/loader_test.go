package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/sample"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// octahedron has 6 vertices and 8 outward triangles.
func octahedron() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []r3.Vec{
			{X: 1.5}, {X: -1.5}, {Y: 1.5}, {Y: -1.5}, {Z: 1.5}, {Z: -1.5},
		},
		Triangles: [][3]uint32{
			{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
			{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
		},
	}
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"part.step", FormatSTEP},
		{"PART.STP", FormatSTEP},
		{"a/b/c.Jt", FormatJT},
		{"m.obj", FormatOBJ},
		{"m.stl", FormatSTL},
		{"m.ply", FormatPLY},
		{"bracket.zy", FormatScript},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, FormatSTEP.IsBrep())
	assert.False(t, FormatSTL.IsBrep())
	assert.Contains(t, Extensions(), ".stp")
}

func TestUnsupportedBeforeOpen(t *testing.T) {
	for _, path := range []string{"does/not/exist.iges", "noext", "archive.tar.gz"} {
		_, err := Load(context.Background(), path, Options{})
		var ue *geomerr.UnsupportedFormatError
		require.ErrorAs(t, err, &ue, path)
		assert.Equal(t, path, ue.Path)
		assert.True(t, geomerr.IsInput(err))
	}
}

func TestOBJ(t *testing.T) {
	src := `# a unit square and a triangle
o square
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
f 1/1/1 2/1/1 3/1/1 4/1/1
v 0 0 1
f -5//1 -4//1 -1//1
`
	m, err := Decode(context.Background(), strings.NewReader(src), "square.obj", Options{})
	require.NoError(t, err)
	require.NotNil(t, m.Mesh)
	assert.Equal(t, "square", m.Mesh.PartName)
	assert.Equal(t, 5, m.Mesh.VertexCount())
	assert.Equal(t, [][3]uint32{{0, 1, 2}, {0, 2, 3}, {0, 1, 4}}, m.Mesh.Triangles)
	assert.InDelta(t, 1.5, m.Mesh.Area(), 1e-12)
}

func TestOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n", 4},
		{"bad coordinate", "v 0 0 0\nv 1 zero 0\n", 2},
		{"short face", "v 0 0 0\nv 1 0 0\n\nf 1 2\n", 4},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(context.Background(), strings.NewReader(tt.src), "bad.obj", Options{})
			var pe *geomerr.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}

	_, err := Decode(context.Background(), strings.NewReader("v 0 0 0\n"), "points.obj", Options{})
	var ge *geomerr.GeometryLoadError
	require.ErrorAs(t, err, &ge)
}

func TestSTLRoundTrip(t *testing.T) {
	cyl := &brep.Model{Objects: []*brep.Object{brep.CylinderSolid("cyl", r3.Vec{}, 1, 2)}}
	tess, _, err := tessellate.Tessellate(context.Background(), cyl, tessellate.Options{Tolerance: 0.01})
	require.NoError(t, err)

	for _, mesh := range []*kernel.Mesh{octahedron(), tess} {
		for _, binaryForm := range []bool{true, false} {
			var buf bytes.Buffer
			require.NoError(t, WriteSTL(&buf, mesh, binaryForm))
			if binaryForm {
				assert.Equal(t, 84+50*mesh.TriangleCount(), buf.Len())
			} else {
				assert.True(t, strings.HasPrefix(buf.String(), "solid "))
			}
			path := writeTemp(t, "mesh.stl", buf.Bytes())
			got, err := Load(context.Background(), path, Options{})
			require.NoError(t, err)
			assert.Equal(t, mesh.TriangleCount(), got.Mesh.TriangleCount())
			assert.InEpsilon(t, mesh.Area(), got.Mesh.Area(), 1e-5)
			assert.Equal(t, "mesh", got.Mesh.PartName)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, octahedron(), true))
	got, err := Decode(context.Background(), &buf, "o.stl", Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, got.Mesh.VertexCount(), "corners are welded")
}

func TestSTLBinaryHeaderStartingWithSolid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, octahedron(), true))
	data := buf.Bytes()
	copy(data, "solid but actually binary")
	m, err := Decode(context.Background(), bytes.NewReader(data), "tricky.stl", Options{})
	require.NoError(t, err)
	assert.Equal(t, 8, m.Mesh.TriangleCount())
}

func TestSTLErrors(t *testing.T) {
	_, err := Decode(context.Background(), strings.NewReader("\x00\x01"), "short.stl", Options{})
	var pe *geomerr.ParseError
	require.ErrorAs(t, err, &pe)

	data := make([]byte, 84+49)
	binary.LittleEndian.PutUint32(data[80:], 1)
	_, err = Decode(context.Background(), bytes.NewReader(data), "cut.stl", Options{})
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "does not match")

	ascii := "solid x\n facet normal 0 0 1\n  outer loop\n   vertex 0 0 0\n   vertex 1 0 0\n  endloop\n endfacet\nendsolid x\n"
	_, err = Decode(context.Background(), strings.NewReader(ascii), "two.stl", Options{})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 6, pe.Line)
}

func TestPLYRoundTrip(t *testing.T) {
	for _, binaryForm := range []bool{true, false} {
		var buf bytes.Buffer
		require.NoError(t, WritePLY(&buf, octahedron(), binaryForm))
		got, err := Decode(context.Background(), &buf, "octa.ply", Options{})
		require.NoError(t, err)
		require.NotNil(t, got.Mesh)
		assert.Equal(t, 6, got.Mesh.VertexCount())
		assert.Equal(t, octahedron().Triangles, got.Mesh.Triangles)
		assert.InEpsilon(t, octahedron().Area(), got.Mesh.Area(), 1e-6)
	}
}

func TestPointCloudPLY(t *testing.T) {
	pc, err := sample.Sample(octahedron(), 100, sample.Options{Seed: 3})
	require.NoError(t, err)
	for _, binaryForm := range []bool{true, false} {
		var buf bytes.Buffer
		require.NoError(t, WritePointCloudPLY(&buf, pc, binaryForm))
		got, err := Decode(context.Background(), &buf, "cloud.ply", Options{})
		require.NoError(t, err)
		assert.Nil(t, got.Mesh)
		require.NotNil(t, got.Points)
		assert.Equal(t, 100, got.Points.Len())
		assert.Len(t, got.Points.Normals, 100)
		for _, tri := range got.Points.Triangles {
			assert.Equal(t, -1, tri)
		}
		assert.InDelta(t, pc.Points[7].X, got.Points.Points[7].X, 1e-6)
	}
}

func TestPLYExtraElementsAndTypes(t *testing.T) {
	src := `ply
format ascii 1.0
comment made by hand
element vertex 3
property double x
property double y
property double z
property uchar red
element face 1
property list uchar uint vertex_index
element edge 1
property int vertex1
property int vertex2
end_header
0 0 0 255
2 0 0 0
0 2 0 0
3 0 1 2
0 1
`
	m, err := Decode(context.Background(), strings.NewReader(src), "tri.ply", Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, m.Mesh.Area(), 1e-12)
}

func TestPLYErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"signature", "plx\nend_header\n", 1},
		{"big endian", "ply\nformat binary_big_endian 1.0\nend_header\n", 2},
		{"no z", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n0 0\n", 6},
		{"bad index", "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n0 0 0\n1 0 0\n0 1 0\n3 0 1 5\n", 13},
		{"truncated", "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n1 0\n", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(context.Background(), strings.NewReader(tt.src), "bad.ply", Options{})
			var pe *geomerr.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line, pe.Error())
		})
	}
}

func jtFile(version string, order byte, toc uint32) []byte {
	data := make([]byte, 80+1+4+4+16)
	copy(data, "Version "+version+" JT")
	for i := len("Version " + version + " JT"); i < 80; i++ {
		data[i] = ' '
	}
	data[80] = order
	binary.LittleEndian.PutUint32(data[85:], toc)
	return data
}

func TestJT(t *testing.T) {
	h, err := ReadJTHeader(bytes.NewReader(jtFile("9.5", 0, 200)), "p.jt")
	require.NoError(t, err)
	assert.Equal(t, JTHeader{Version: "9.5", TOCOffset: 200}, h)

	_, err = Decode(context.Background(), bytes.NewReader(jtFile("8.1", 0, 200)), "p.jt", Options{})
	var ge *geomerr.GeometryLoadError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "jt", ge.Stage)
	assert.Contains(t, err.Error(), "8.1")

	tests := []struct {
		name string
		data []byte
	}{
		{"not jt", []byte(strings.Repeat("x", 120))},
		{"byte order", jtFile("9.5", 7, 200)},
		{"toc inside header", jtFile("9.5", 0, 10)},
		{"truncated", []byte("Version 9.5 JT")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(context.Background(), bytes.NewReader(tt.data), "bad.jt", Options{})
			var pe *geomerr.ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestSTEP(t *testing.T) {
	m, err := Load(context.Background(), "../step/testdata/cube.step", Options{})
	require.NoError(t, err)
	require.NotNil(t, m.Brep)
	assert.Equal(t, FormatSTEP, m.Format)
	assert.Equal(t, 6, m.Brep.FaceCount())
	assert.Equal(t, "cube", m.Name())
}

func TestScript(t *testing.T) {
	src := `(box :size (vec3 1 2 3) :name "block")
(cylinder :radius 0.5 :height 2 :at (vec3 5 0 0))`
	m, err := Decode(context.Background(), strings.NewReader(src), "part.zy", Options{})
	require.NoError(t, err)
	require.Len(t, m.Brep.Objects, 2)
	assert.Equal(t, "block", m.Brep.Objects[0].Name)
	assert.Equal(t, 9, m.Brep.FaceCount())

	_, err = Decode(context.Background(), strings.NewReader("(box :size"), "broken.zy", Options{})
	var pe *geomerr.ParseError
	require.ErrorAs(t, err, &pe)

	_, err = Decode(context.Background(), strings.NewReader("(def x 1)"), "empty.zy", Options{})
	var ge *geomerr.GeometryLoadError
	require.ErrorAs(t, err, &ge)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, strings.NewReader("v 0 0 0\n"), "a.obj", Options{})
	require.ErrorIs(t, err, context.Canceled)
}
