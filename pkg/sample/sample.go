// Package sample draws area-weighted point clouds from triangle meshes.
package sample

import (
	"math"
	"math/rand/v2"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultCount is the point count the embedding encoder expects.
const DefaultCount = 8192

// Options control sampling.
type Options struct {
	// Seed makes the draw reproducible.
	Seed uint64
}

func (o Options) rng() *rand.Rand {
	return rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
}

// PointCloud is an ordered set of surface points. Triangles holds the
// source triangle of each point, or -1 when the point did not come from
// a mesh.
type PointCloud struct {
	Points    []r3.Vec
	Normals   []r3.Vec
	Triangles []int
}

// Len returns the number of points.
func (pc *PointCloud) Len() int { return len(pc.Points) }

// Bounds returns the axis-aligned box of the points.
func (pc *PointCloud) Bounds() (r3.Box, bool) {
	if pc.Len() == 0 {
		return r3.Box{}, false
	}
	b := r3.Box{Min: pc.Points[0], Max: pc.Points[0]}
	for _, p := range pc.Points[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b, true
}

// Sample draws exactly k points (DefaultCount when k <= 0) uniformly by
// area: a triangle is chosen with probability proportional to its area,
// then a point inside it with the square-root barycentric rule.
func Sample(mesh *kernel.Mesh, k int, opts Options) (*PointCloud, error) {
	if k <= 0 {
		k = DefaultCount
	}
	if mesh.IsEmpty() {
		return nil, &geomerr.EmptyMeshError{Stage: "sample"}
	}
	weights := make([]float64, mesh.TriangleCount())
	total := 0.0
	for i := range weights {
		weights[i] = mesh.Triangle(i).Area()
		total += weights[i]
	}
	if !(total > 0) {
		return nil, &geomerr.EmptyMeshError{Stage: "sample", Triangles: mesh.TriangleCount()}
	}

	rng := opts.rng()
	pick := distuv.NewCategorical(weights, rng)
	pc := &PointCloud{
		Points:    make([]r3.Vec, k),
		Normals:   make([]r3.Vec, k),
		Triangles: make([]int, k),
	}
	for i := range k {
		ti := int(pick.Rand())
		t := mesh.Triangle(ti)
		s := math.Sqrt(rng.Float64())
		r := rng.Float64()
		p := r3.Scale(1-s, t[0])
		p = r3.Add(p, r3.Scale(s*(1-r), t[1]))
		p = r3.Add(p, r3.Scale(s*r, t[2]))
		pc.Points[i] = p
		pc.Normals[i] = mesh.Normal(ti)
		pc.Triangles[i] = ti
	}
	return pc, nil
}

// Resample brings a bare point set to exactly k points: a random subset
// when there are more, a draw with replacement when there are fewer.
func Resample(points []r3.Vec, k int, opts Options) (*PointCloud, error) {
	if k <= 0 {
		k = DefaultCount
	}
	if len(points) == 0 {
		return nil, &geomerr.EmptyMeshError{Stage: "resample"}
	}
	rng := opts.rng()
	pc := &PointCloud{Points: make([]r3.Vec, k), Triangles: make([]int, k)}
	if len(points) >= k {
		for i, j := range rng.Perm(len(points))[:k] {
			pc.Points[i] = points[j]
		}
	} else {
		for i := range k {
			pc.Points[i] = points[rng.IntN(len(points))]
		}
	}
	for i := range pc.Triangles {
		pc.Triangles[i] = -1
	}
	return pc, nil
}
