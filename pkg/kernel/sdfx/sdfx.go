// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"errors"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes resolution when the caller
// passes zero.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// Bounds returns the axis-aligned bounding box.
func (s *sdfxSolid) Bounds() r3.Box {
	bb := s.s.BoundingBox()
	return r3.Box{Min: fromV3(bb.Min), Max: fromV3(bb.Max)}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) (sdf.SDF3, error) {
	w, ok := s.(*sdfxSolid)
	if !ok {
		return nil, errors.New("sdfx: solid was not created by this kernel")
	}
	return w.s, nil
}

func toV3(v r3.Vec) v3.Vec   { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
func fromV3(v v3.Vec) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Volume wraps a sampled field as an SDF by trilinear interpolation.
func (k *SdfxKernel) Volume(g *kernel.Grid) (kernel.Solid, error) {
	if g == nil || len(g.Values) != g.N[0]*g.N[1]*g.N[2] || len(g.Values) == 0 {
		return nil, errors.New("sdfx: grid has no samples")
	}
	return &sdfxSolid{s: &gridSDF{g: g}}, nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes and
// welds the shared corners.
func (k *SdfxKernel) ToMesh(s kernel.Solid, cells int) (*kernel.Mesh, error) {
	sdf3, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if cells <= 0 {
		cells = DefaultMeshCells
	}

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)

	mesh := &kernel.Mesh{}
	index := make(map[v3.Vec]uint32)
	for _, tri := range triangles {
		var t [3]uint32
		for j := 0; j < 3; j++ {
			v := tri[j]
			id, ok := index[v]
			if !ok {
				id = uint32(len(mesh.Vertices))
				index[v] = id
				mesh.Vertices = append(mesh.Vertices, fromV3(v))
			}
			t[j] = id
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			continue
		}
		mesh.Triangles = append(mesh.Triangles, t)
	}
	return mesh, nil
}

// gridSDF evaluates a kernel.Grid between its samples. Outside the grid
// the value grows with the distance to it, so surfaces touching the grid
// boundary are still closed.
type gridSDF struct {
	g *kernel.Grid
}

func (s *gridSDF) BoundingBox() sdf.Box3 {
	b := s.g.Bounds()
	pad := r3.Vec{X: s.g.Cell, Y: s.g.Cell, Z: s.g.Cell}
	return sdf.Box3{Min: toV3(r3.Sub(b.Min, pad)), Max: toV3(r3.Add(b.Max, pad))}
}

func (s *gridSDF) Evaluate(p v3.Vec) float64 {
	g := s.g
	local := r3.Scale(1/g.Cell, r3.Sub(fromV3(p), g.Origin))
	f := [3]float64{local.X, local.Y, local.Z}

	outside := 0.0
	var i0 [3]int
	var t [3]float64
	for a := range 3 {
		hi := float64(g.N[a] - 1)
		c := math.Max(0, math.Min(hi, f[a]))
		d := (f[a] - c) * g.Cell
		outside += d * d
		if g.N[a] == 1 {
			continue
		}
		i0[a] = min(int(math.Floor(c)), g.N[a]-2)
		t[a] = c - float64(i0[a])
	}

	at := func(dx, dy, dz int) float64 {
		i, j, k := i0[0]+dx, i0[1]+dy, i0[2]+dz
		i, j, k = min(i, g.N[0]-1), min(j, g.N[1]-1), min(k, g.N[2]-1)
		return g.At(i, j, k)
	}
	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	c00 := lerp(at(0, 0, 0), at(1, 0, 0), t[0])
	c10 := lerp(at(0, 1, 0), at(1, 1, 0), t[0])
	c01 := lerp(at(0, 0, 1), at(1, 0, 1), t[0])
	c11 := lerp(at(0, 1, 1), at(1, 1, 1), t[0])
	v := lerp(lerp(c00, c10, t[1]), lerp(c01, c11, t[1]), t[2])

	if outside > 0 {
		return math.Max(v, 0) + math.Sqrt(outside)
	}
	return v
}
