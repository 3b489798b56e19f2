// Package voxel converts a triangle mesh into a cubic surface-occupancy
// grid. Only cells crossed by the surface are occupied; the interior of a
// closed part stays empty.
package voxel

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultPadding is the margin added on each side, as a fraction of the
// largest extent of the mesh.
const DefaultPadding = 0.05

// Options control voxelization.
type Options struct {
	// Padding is the margin per side; zero selects DefaultPadding and a
	// negative value disables padding.
	Padding float64
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	switch {
	case o.Padding == 0:
		o.Padding = DefaultPadding
	case o.Padding < 0:
		o.Padding = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Grid is an R×R×R occupancy mask. Cell (i,j,k) spans
// Origin + (i,j,k)·CellSize to Origin + (i+1,j+1,k+1)·CellSize.
type Grid struct {
	Resolution int
	Origin     r3.Vec
	CellSize   float64
	// Occupied is indexed with X varying fastest.
	Occupied []bool
}

func newGrid(r int, origin r3.Vec, cell float64) *Grid {
	return &Grid{Resolution: r, Origin: origin, CellSize: cell, Occupied: make([]bool, r*r*r)}
}

// Index returns the flat index of cell (i,j,k).
func (g *Grid) Index(i, j, k int) int { return i + g.Resolution*(j+g.Resolution*k) }

// At reports whether cell (i,j,k) is occupied.
func (g *Grid) At(i, j, k int) bool { return g.Occupied[g.Index(i, j, k)] }

// Count returns the number of occupied cells.
func (g *Grid) Count() int {
	n := 0
	for _, o := range g.Occupied {
		if o {
			n++
		}
	}
	return n
}

// Centre returns the centre of cell (i,j,k).
func (g *Grid) Centre(i, j, k int) r3.Vec {
	return r3.Add(g.Origin, r3.Scale(g.CellSize, r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}))
}

// Voxelize marks every cell of an r³ grid that a triangle of mesh
// touches. The grid is centred on the mesh bounds and sized so the padded
// largest extent fits exactly.
func Voxelize(ctx context.Context, mesh *kernel.Mesh, r int, opts Options) (*Grid, error) {
	if r <= 0 {
		return nil, &geomerr.InvalidResolutionError{Resolution: r}
	}
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("component", "voxel"))

	box, ok := mesh.Bounds()
	if !ok {
		cell := 1 / float64(r)
		return newGrid(r, r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, cell), nil
	}
	size := r3.Sub(box.Max, box.Min)
	extent := math.Max(size.X, math.Max(size.Y, size.Z))
	if extent == 0 {
		extent = 1
	}
	side := extent * (1 + 2*opts.Padding)
	cell := side / float64(r)
	centre := r3.Scale(0.5, r3.Add(box.Min, box.Max))
	g := newGrid(r, r3.Sub(centre, r3.Vec{X: side / 2, Y: side / 2, Z: side / 2}), cell)

	half := cell / 2
	for t := range mesh.Triangles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("voxel: triangle %d: %w", t, err)
		}
		tri := mesh.Triangle(t)
		lo, hi := g.cellRange(tri)
		for k := lo[2]; k <= hi[2]; k++ {
			for j := lo[1]; j <= hi[1]; j++ {
				for i := lo[0]; i <= hi[0]; i++ {
					idx := g.Index(i, j, k)
					if g.Occupied[idx] {
						continue
					}
					if overlaps(g.Centre(i, j, k), half, tri) {
						g.Occupied[idx] = true
					}
				}
			}
		}
	}
	log.Debug("voxelized",
		zap.Int("resolution", r),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Int("occupied", g.Count()))
	return g, nil
}

// cellRange returns the inclusive index range of cells the triangle's box
// can touch.
func (g *Grid) cellRange(tri r3.Triangle) (lo, hi [3]int) {
	for a := range 3 {
		mn, mx := math.Inf(1), math.Inf(-1)
		for _, p := range tri {
			c := axis(r3.Sub(p, g.Origin), a) / g.CellSize
			mn, mx = math.Min(mn, c), math.Max(mx, c)
		}
		lo[a] = clamp(int(math.Floor(mn))-1, g.Resolution)
		hi[a] = clamp(int(math.Floor(mx))+1, g.Resolution)
	}
	return lo, hi
}

func clamp(i, r int) int { return max(0, min(r-1, i)) }

func axis(v r3.Vec, a int) float64 {
	switch a {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// overlaps is the separating-axis test between a triangle and the cube of
// half side h centred at c: the three box normals, the triangle normal and
// the nine edge cross products.
func overlaps(c r3.Vec, h float64, tri r3.Triangle) bool {
	v := [3]r3.Vec{r3.Sub(tri[0], c), r3.Sub(tri[1], c), r3.Sub(tri[2], c)}
	separated := func(ax r3.Vec) bool {
		p0, p1, p2 := r3.Dot(ax, v[0]), r3.Dot(ax, v[1]), r3.Dot(ax, v[2])
		rad := h * (math.Abs(ax.X) + math.Abs(ax.Y) + math.Abs(ax.Z))
		return math.Min(p0, math.Min(p1, p2)) > rad || math.Max(p0, math.Max(p1, p2)) < -rad
	}

	units := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for _, u := range units {
		if separated(u) {
			return false
		}
	}
	edges := [3]r3.Vec{r3.Sub(v[1], v[0]), r3.Sub(v[2], v[1]), r3.Sub(v[0], v[2])}
	if separated(r3.Cross(edges[0], edges[1])) {
		return false
	}
	for _, e := range edges {
		for _, u := range units {
			if separated(r3.Cross(u, e)) {
				return false
			}
		}
	}
	return true
}
