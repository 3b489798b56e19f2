package drawing

import (
	"math"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"
)

const facingEps = 1e-6

// visible returns "" when the edge should be drawn in the view, or the
// reason it is dropped.
func visible(spec ViewSpec, faces []*brep.Face, samples []r3.Vec, occ *occluder) string {
	at, score := facingPoint(spec, faces, samples)
	if len(faces) > 1 && score <= facingEps {
		return ReasonBackFacing
	}
	if occ != nil && occ.hidden(at) {
		return ReasonOccluded
	}
	return ""
}

// facingPoint picks the point of the edge where an adjacent face turns
// most towards the viewer, and that face's n·Dir. Straight two-point
// edges are tested at their midpoint.
func facingPoint(spec ViewSpec, faces []*brep.Face, samples []r3.Vec) (r3.Vec, float64) {
	var candidates []r3.Vec
	if len(samples) <= 2 {
		candidates = []r3.Vec{r3.Scale(0.5, r3.Add(samples[0], samples[len(samples)-1]))}
	} else {
		candidates = samples[1 : len(samples)-1]
	}

	best, bestScore := candidates[len(candidates)/2], math.Inf(-1)
	for _, p := range candidates {
		for _, f := range faces {
			n, ok := faceNormal(f, p)
			s := 1.0
			if ok {
				s = r3.Dot(n, spec.Dir)
			}
			if s > bestScore+1e-12 {
				best, bestScore = p, s
			}
		}
	}
	return best, bestScore
}

// faceNormal is the outward unit normal of f at the surface point nearest
// p. ok is false for surfaces without an evaluator and at singular points.
func faceNormal(f *brep.Face, p r3.Vec) (r3.Vec, bool) {
	s, isParam := f.Surface.(brep.Parametric)
	if !isParam {
		return r3.Vec{}, false
	}
	uv, ok := s.Project(p, s.Domain().Center())
	if !ok {
		return r3.Vec{}, false
	}
	su, sv := s.Derivs(uv.X, uv.Y)
	n := r3.Cross(su, sv)
	l := r3.Norm(n)
	if l < 1e-15 || math.IsNaN(l) {
		return r3.Vec{}, false
	}
	if !f.SameSense {
		l = -l
	}
	return r3.Scale(1/l, n), true
}

// occluder answers ray queries towards the viewer against a mesh. The
// triangles are indexed by their projected box in the view plane.
type occluder struct {
	mesh *kernel.Mesh
	dir  r3.Vec
	spec ViewSpec
	tree *rtreego.Rtree
	eps  float64
}

type triBox struct {
	index int
	rect  rtreego.Rect
}

func (t *triBox) Bounds() rtreego.Rect { return t.rect }

func newOccluder(mesh *kernel.Mesh, spec ViewSpec, tol float64) *occluder {
	box, _ := mesh.Bounds()
	diag := r3.Norm(r3.Sub(box.Max, box.Min))
	o := &occluder{
		mesh: mesh,
		dir:  spec.Dir,
		spec: spec,
		eps:  math.Max(10*tol, 1e-9*diag),
	}
	objs := make([]rtreego.Spatial, 0, mesh.TriangleCount())
	for i := range mesh.Triangles {
		t := mesh.Triangle(i)
		lo := spec.project(t[0])
		hi := lo
		for _, p := range t[1:] {
			q := spec.project(p)
			lo.X, lo.Y = math.Min(lo.X, q.X), math.Min(lo.Y, q.Y)
			hi.X, hi.Y = math.Max(hi.X, q.X), math.Max(hi.Y, q.Y)
		}
		// Zero-width boxes are valid rectangles for the tree.
		rect, err := rtreego.NewRectFromPoints(rtreego.Point{lo.X, lo.Y}, rtreego.Point{hi.X, hi.Y})
		if err != nil {
			continue
		}
		objs = append(objs, &triBox{index: i, rect: rect})
	}
	o.tree = rtreego.NewTree(2, 4, 16, objs...)
	return o
}

// hidden reports whether the ray p + t·Dir, t > eps, hits a triangle.
func (o *occluder) hidden(p r3.Vec) bool {
	q := o.spec.project(p)
	query := rtreego.Point{q.X, q.Y}.ToRect(o.eps * 1e-3)
	for _, s := range o.tree.SearchIntersect(query) {
		t := o.mesh.Triangle(s.(*triBox).index)
		if d, ok := rayTriangle(p, o.dir, t); ok && d > o.eps {
			return true
		}
	}
	return false
}

// rayTriangle is the Möller–Trumbore intersection; it returns the ray
// parameter of the hit.
func rayTriangle(orig, dir r3.Vec, t r3.Triangle) (float64, bool) {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	pv := r3.Cross(dir, e2)
	det := r3.Dot(e1, pv)
	if math.Abs(det) < 1e-14 {
		return 0, false
	}
	inv := 1 / det
	tv := r3.Sub(orig, t[0])
	u := r3.Dot(tv, pv) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qv := r3.Cross(tv, e1)
	v := r3.Dot(dir, qv) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	return r3.Dot(e2, qv) * inv, true
}
