// Package tessellate turns a B-rep model into one welded triangle mesh.
// Edges are discretised once and shared by the faces on both sides, each
// face is triangulated in its parameter domain by pkg/trim, and the
// per-face results are merged in face order so the output does not
// depend on scheduling.
package tessellate

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/trim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options control tessellation.
type Options struct {
	// Tolerance is the maximum chord error in model units.
	Tolerance float64
	// AngularTolerance bounds the turning angle between edge samples.
	AngularTolerance float64
	// Workers bounds the number of faces triangulated at once.
	Workers int
	// MaxTrianglesPerFace caps refinement of a single face.
	MaxTrianglesPerFace int
	Logger              *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = trim.DefaultOptions().Tolerance
	}
	if o.AngularTolerance <= 0 {
		o.AngularTolerance = brep.DefaultAngularTolerance
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Warning reports a face that was skipped or approximated. Face is the
// global face index.
type Warning struct {
	Face    int    `json:"face"`
	Object  string `json:"object"`
	Reason  string `json:"reason"`
	Skipped bool   `json:"skipped"`
}

func (w Warning) String() string {
	return fmt.Sprintf("face %d (%s): %s", w.Face, w.Object, w.Reason)
}

// faceResult is the private output buffer of one worker.
type faceResult struct {
	points []r3.Vec
	tris   [][3]int
	warns  []Warning
}

// Tessellate triangulates every face of m. Faces that cannot be
// triangulated are skipped and reported as warnings. On cancellation the
// partial mesh is discarded.
func Tessellate(ctx context.Context, m *brep.Model, opts Options) (*kernel.Mesh, []Warning, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("component", "tessellate"))
	if m == nil {
		return &kernel.Mesh{}, nil, nil
	}

	tOpts := trim.Options{
		Tolerance:        opts.Tolerance,
		AngularTolerance: opts.AngularTolerance,
		MaxTriangles:     opts.MaxTrianglesPerFace,
		Refine:           true,
	}
	samples := trim.SampleEdges(m, tOpts)

	type job struct {
		face   *brep.Face
		object string
	}
	var jobs []job
	for _, obj := range m.Objects {
		for _, f := range obj.Faces {
			jobs = append(jobs, job{face: f, object: obj.Name})
		}
	}

	results := make([]faceResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = tessellateFace(i, j.object, j.face, samples, tOpts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("tessellate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("tessellate: %w", err)
	}

	mesh, warns := merge(m, results)
	for _, w := range warns {
		log.Warn("face approximated or skipped",
			zap.Int("face", w.Face),
			zap.String("object", w.Object),
			zap.Bool("skipped", w.Skipped),
			zap.String("reason", w.Reason))
	}
	log.Debug("tessellated",
		zap.Int("faces", len(jobs)),
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()))
	return mesh, warns, nil
}

// tessellateFace triangulates one face and orients its triangles along
// the face normal. Panics from malformed geometry become warnings.
func tessellateFace(idx int, object string, f *brep.Face, samples trim.Samples, opts trim.Options) (res faceResult) {
	warn := func(reason string, skipped bool) {
		res.warns = append(res.warns, Warning{Face: idx, Object: object, Reason: reason, Skipped: skipped})
	}
	defer func() {
		if r := recover(); r != nil {
			res = faceResult{}
			warn(fmt.Sprintf("panic during triangulation: %v", r), true)
		}
	}()

	d, err := trim.Triangulate(f, samples, opts)
	if err != nil {
		warn(err.Error(), true)
		return res
	}
	if d.Fallback {
		warn(fmt.Sprintf("surface %s has no evaluator; boundary plane used", brep.KindOf(f.Surface)), false)
	}
	if d.Capped {
		warn(fmt.Sprintf("refinement stopped at %d triangles", len(d.Tris)), false)
	}

	flip := !f.SameSense && !d.Fallback
	res.points = make([]r3.Vec, len(d.Points))
	for i, p := range d.Points {
		res.points[i] = p.P
	}
	res.tris = make([][3]int, len(d.Tris))
	for i, t := range d.Tris {
		if flip {
			t[1], t[2] = t[2], t[1]
		}
		res.tris[i] = t
	}
	return res
}

// merge welds the per-face buffers in face order. Triangles that collapse
// under welding are dropped.
func merge(m *brep.Model, results []faceResult) (*kernel.Mesh, []Warning) {
	q := weldStep(m)
	mesh := &kernel.Mesh{}
	index := make(map[[3]int64]uint32)
	var warns []Warning
	for fi, r := range results {
		warns = append(warns, r.warns...)
		ids := make([]uint32, len(r.points))
		for i, p := range r.points {
			key := [3]int64{int64(math.Round(p.X / q)), int64(math.Round(p.Y / q)), int64(math.Round(p.Z / q))}
			id, ok := index[key]
			if !ok {
				id = uint32(len(mesh.Vertices))
				index[key] = id
				mesh.Vertices = append(mesh.Vertices, p)
			}
			ids[i] = id
		}
		for _, t := range r.tris {
			a, b, c := ids[t[0]], ids[t[1]], ids[t[2]]
			if a == b || b == c || a == c {
				continue
			}
			mesh.Triangles = append(mesh.Triangles, [3]uint32{a, b, c})
			mesh.FaceIDs = append(mesh.FaceIDs, fi)
		}
	}
	return mesh, warns
}

// weldStep is the quantisation step for vertex welding, relative to the
// model size.
func weldStep(m *brep.Model) float64 {
	const rel = 1e-9
	box, ok := m.Bounds(math.Inf(1))
	if !ok {
		return rel
	}
	diag := r3.Norm(r3.Sub(box.Max, box.Min))
	return math.Max(diag*rel, 1e-12)
}
