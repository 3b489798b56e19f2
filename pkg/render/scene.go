package render

import (
	"cmp"
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"

	"github.com/chazu/facet/pkg/kernel"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	baseColour = r3.Vec{X: 153, Y: 153, Z: 166}
	edgeColour = color.RGBA{R: 25, G: 25, B: 25, A: 255}
)

const edgeWidth = 1.5

type meshEdge struct {
	a, b uint32
	tris []int
}

// scene holds the per-mesh data shared by every view.
type scene struct {
	mesh       *kernel.Mesh
	normals    []r3.Vec
	edges      []meshEdge
	featureCos float64
	raster     *vector.Rasterizer
}

func newScene(mesh *kernel.Mesh, featureAngle float64) *scene {
	s := &scene{
		mesh:       mesh,
		normals:    make([]r3.Vec, mesh.TriangleCount()),
		featureCos: math.Cos(featureAngle * math.Pi / 180),
		raster:     vector.NewRasterizer(1, 1),
	}
	for i := range s.normals {
		s.normals[i] = mesh.Normal(i)
	}

	index := make(map[[2]uint32]int)
	for ti, t := range mesh.Triangles {
		for k := range 3 {
			a, b := t[k], t[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]uint32{a, b}
			ei, ok := index[key]
			if !ok {
				ei = len(s.edges)
				index[key] = ei
				s.edges = append(s.edges, meshEdge{a: a, b: b})
			}
			s.edges[ei].tris = append(s.edges[ei].tris, ti)
		}
	}
	return s
}

// feature reports boundary, non-manifold and sharp edges.
func (s *scene) feature(e meshEdge) bool {
	if len(e.tris) != 2 {
		return true
	}
	return r3.Dot(s.normals[e.tris[0]], s.normals[e.tris[1]]) < s.featureCos
}

// silhouette reports edges between a front and a back facing triangle,
// plus boundary edges.
func (s *scene) silhouette(e meshEdge, forward r3.Vec) bool {
	if len(e.tris) < 2 {
		return true
	}
	front, back := false, false
	for _, t := range e.tris {
		d := r3.Dot(s.normals[t], forward)
		front = front || d < -0.01
		back = back || d > 0.01
	}
	return front && back
}

func (s *scene) draw(ctx context.Context, cam *camera, opts Options) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	if opts.Mode != ModeWireframe {
		if err := s.shade(ctx, img, cam); err != nil {
			return nil, err
		}
	}
	for _, e := range s.edges {
		var keep bool
		if opts.Mode == ModeShaded {
			keep = s.silhouette(e, cam.forward)
		} else {
			keep = s.feature(e)
		}
		if keep {
			s.stroke(img, cam, s.mesh.Vertices[e.a], s.mesh.Vertices[e.b])
		}
	}
	return img, nil
}

type projected struct {
	tri   int
	pts   [3][2]float64
	depth float64
}

// shade paints triangles back to front with a headlight.
func (s *scene) shade(ctx context.Context, img *image.RGBA, cam *camera) error {
	list := make([]projected, 0, len(s.mesh.Triangles))
outer:
	for ti := range s.mesh.Triangles {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := s.mesh.Triangle(ti)
		p := projected{tri: ti}
		for k, v := range t {
			x, y, d, ok := cam.project(v)
			if !ok {
				continue outer
			}
			p.pts[k] = [2]float64{x, y}
			p.depth += d / 3
		}
		list = append(list, p)
	}
	slices.SortStableFunc(list, func(a, b projected) int { return cmp.Compare(b.depth, a.depth) })

	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		light := 0.25 + 0.75*math.Abs(r3.Dot(s.normals[p.tri], cam.forward))
		c := r3.Scale(light, baseColour)
		s.fill(img, p.pts[:], color.RGBA{R: uint8(c.X), G: uint8(c.Y), B: uint8(c.Z), A: 255})
	}
	return nil
}

// stroke draws a segment as a thin quad.
func (s *scene) stroke(img *image.RGBA, cam *camera, a, b r3.Vec) {
	ax, ay, _, ok1 := cam.project(a)
	bx, by, _, ok2 := cam.project(b)
	if !ok1 || !ok2 {
		return
	}
	dx, dy := bx-ax, by-ay
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*edgeWidth/2, dx/l*edgeWidth/2
	s.fill(img, [][2]float64{
		{ax + nx, ay + ny}, {bx + nx, by + ny},
		{bx - nx, by - ny}, {ax - nx, ay - ny},
	}, edgeColour)
}

// fill rasterises a convex polygon into the part of img it covers.
func (s *scene) fill(img *image.RGBA, pts [][2]float64, c color.RGBA) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	r := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}

	s.raster.Reset(r.Dx(), r.Dy())
	s.raster.DrawOp = draw.Over
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	s.raster.MoveTo(float32(pts[0][0]-ox), float32(pts[0][1]-oy))
	for _, p := range pts[1:] {
		s.raster.LineTo(float32(p[0]-ox), float32(p[1]-oy))
	}
	s.raster.ClosePath()
	s.raster.Draw(img, r, image.NewUniform(c), image.Point{})
}
