// Package kernel defines the mesh type shared by the pipeline and the
// abstract volume kernel that turns sampled fields back into surfaces.
// The voxel preview and the embedding reconstruction both go through the
// Kernel interface, so the iso-surfacing backend can be swapped without
// touching either.
package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// Bounds returns the axis-aligned bounding box.
	Bounds() r3.Box
}

// Kernel is the abstract volume kernel.
type Kernel interface {
	// Volume wraps a sampled signed field; the solid is where it is negative.
	Volume(g *Grid) (Solid, error)

	// ToMesh extracts the boundary surface with the given number of cells
	// along the longest axis.
	ToMesh(s Solid, cells int) (*Mesh, error)
}

// Grid is a scalar field sampled at cell centres, X varying fastest.
type Grid struct {
	// Origin is the centre of cell (0,0,0).
	Origin r3.Vec
	Cell   float64
	N      [3]int
	Values []float64
}

// NewGrid allocates a grid filled with fill.
func NewGrid(origin r3.Vec, cell float64, n [3]int, fill float64) (*Grid, error) {
	if cell <= 0 || n[0] <= 0 || n[1] <= 0 || n[2] <= 0 {
		return nil, fmt.Errorf("kernel: invalid grid %v with cell %g", n, cell)
	}
	g := &Grid{Origin: origin, Cell: cell, N: n, Values: make([]float64, n[0]*n[1]*n[2])}
	for i := range g.Values {
		g.Values[i] = fill
	}
	return g, nil
}

func (g *Grid) index(i, j, k int) int { return i + g.N[0]*(j+g.N[1]*k) }

// At returns the value of cell (i,j,k).
func (g *Grid) At(i, j, k int) float64 { return g.Values[g.index(i, j, k)] }

// Set stores the value of cell (i,j,k).
func (g *Grid) Set(i, j, k int, v float64) { g.Values[g.index(i, j, k)] = v }

// Centre is the position of cell (i,j,k).
func (g *Grid) Centre(i, j, k int) r3.Vec {
	return r3.Add(g.Origin, r3.Vec{X: float64(i) * g.Cell, Y: float64(j) * g.Cell, Z: float64(k) * g.Cell})
}

// Bounds is the box spanned by the cell centres.
func (g *Grid) Bounds() r3.Box {
	return r3.Box{Min: g.Origin, Max: g.Centre(g.N[0]-1, g.N[1]-1, g.N[2]-1)}
}
