package brep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestValidateCleanSolids(t *testing.T) {
	m := &Model{Objects: []*Object{
		Box("box", r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 3}),
		CylinderSolid("cyl", r3.Vec{X: 5}, 1, 2),
		SphereSolid("ball", r3.Vec{Y: 5}, 1),
	}}
	assert.Empty(t, Validate(m, 1e-6))
}

func TestValidateFindings(t *testing.T) {
	open := Box("open", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	open.Faces = open.Faces[1:]

	broken := Box("broken", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	broken.Closed = false
	broken.Faces[2].Loops[0].Edges = broken.Faces[2].Loops[0].Edges[:3]
	broken.Faces[3].Surface = nil

	tests := []struct {
		name  string
		model *Model
		codes []string
		face  int
	}{
		{"empty object", &Model{Objects: []*Object{{Name: "void"}}}, []string{CodeEmptyObject}, -1},
		{"missing face", &Model{Objects: []*Object{open}}, []string{CodeOpenShell}, -1},
		{"open loop and missing surface", &Model{Objects: []*Object{broken}}, []string{CodeOpenLoop, CodeMissingSurface}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(tt.model, 1e-6)
			require.Len(t, issues, len(tt.codes))
			for i, code := range tt.codes {
				assert.Equal(t, code, issues[i].Code)
			}
			assert.Equal(t, tt.face, issues[0].Face)
		})
	}
}

func TestValidateToleratesNearbyVertices(t *testing.T) {
	b := Box("b", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	e := b.Faces[0].Loops[0].Edges[0].Edge
	e.End = &Vertex{Point: r3.Add(e.End.Point, r3.Vec{X: 1e-9})}

	assert.Empty(t, Validate(&Model{Objects: []*Object{b}}, 1e-6))
	issues := Validate(&Model{Objects: []*Object{b}}, 1e-12)
	require.NotEmpty(t, issues)
	assert.Equal(t, CodeOpenLoop, issues[0].Code)
	assert.Contains(t, issues[0].Error(), "error OPEN_LOOP")
}
