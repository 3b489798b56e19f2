// Package analyse classifies the faces of a B-rep model and integrates
// their area and centroid over the trimmed parameter domain.
//
// Faces are visited in the model's native order and numbered with a
// global running index. A face whose domain cannot be triangulated is
// still reported, with zero area and a warning.
package analyse

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/trim"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options control the analysis.
type Options struct {
	// Tolerance is the chord tolerance used to discretise trimming loops.
	Tolerance float64
	// QuadratureOrder is the number of Gauss–Legendre nodes per axis.
	QuadratureOrder int
	Logger          *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-3
	}
	if o.QuadratureOrder <= 0 {
		o.QuadratureOrder = 8
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Point is a JSON friendly position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func point(v r3.Vec) Point { return Point{X: v.X, Y: v.Y, Z: v.Z} }

// SurfaceRecord describes one face.
type SurfaceRecord struct {
	ObjectName   string  `json:"object_name"`
	FaceIndex    int     `json:"face_index"`
	SurfaceType  string  `json:"surface_type"`
	Area         float64 `json:"area"`
	CenterOfMass Point   `json:"center_of_mass"`
}

// Warning reports a face whose result is approximate or empty.
type Warning struct {
	Face   int    `json:"face"`
	Object string `json:"object"`
	Reason string `json:"reason"`
}

// Report is the result of Analyse.
type Report struct {
	TotalSurfaces     int             `json:"total_surfaces"`
	TotalArea         float64         `json:"total_area"`
	SurfaceTypeCounts map[string]int  `json:"surface_type_counts"`
	Surfaces          []SurfaceRecord `json:"surfaces"`

	Objects        []ObjectStats `json:"objects"`
	TotalVolume    float64       `json:"total_volume"`
	BoundingBox    *BoundingBox  `json:"bounding_box,omitempty"`
	Dimensions     *Dimensions   `json:"dimensions,omitempty"`
	CenterOfMass   *Point        `json:"center_of_mass,omitempty"`
	EdgeStatistics *EdgeStats    `json:"edge_statistics,omitempty"`
	Complexity     Complexity    `json:"complexity"`
	Metrics        Metrics       `json:"complexity_metrics"`
	Warnings       []Warning     `json:"warnings,omitempty"`
}

// Analyse walks every face of m. Only cancellation and a missing model
// are errors; everything else degrades to warnings.
func Analyse(ctx context.Context, m *brep.Model, opts Options) (*Report, error) {
	if m == nil {
		return nil, errors.New("analyse: nil model")
	}
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("component", "analyse"))

	// Quadrature integrates the exact surface over each parameter
	// triangle, so boundary points are all the domain needs.
	tOpts := trim.Options{Tolerance: opts.Tolerance}
	samples := trim.SampleEdges(m, tOpts)
	q := newRule(opts.QuadratureOrder)

	rep := &Report{
		SurfaceTypeCounts: make(map[string]int),
		Surfaces:          []SurfaceRecord{},
	}
	var allEdges []edgeInfo
	var massVol float64
	var massFirst r3.Vec
	index := 0
	for _, obj := range m.Objects {
		var objMoments moments
		for _, f := range obj.Faces {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("analyse: face %d: %w", index, err)
			}
			rec, mom, warn := analyseFace(obj.Name, index, f, samples, tOpts, q)
			if warn != nil {
				log.Warn("face analysis degraded",
					zap.Int("face", warn.Face),
					zap.String("object", warn.Object),
					zap.String("reason", warn.Reason))
				rep.Warnings = append(rep.Warnings, *warn)
			}
			rep.Surfaces = append(rep.Surfaces, rec)
			rep.SurfaceTypeCounts[rec.SurfaceType]++
			objMoments.add(mom)
			index++
		}

		stats := objectStats(obj, objMoments, opts.Tolerance)
		rep.Objects = append(rep.Objects, stats.ObjectStats)
		allEdges = append(allEdges, stats.edges...)
		if c := stats.CenterOfMass; c != nil {
			massVol += stats.Volume
			massFirst = r3.Add(massFirst, r3.Scale(stats.Volume, r3.Vec{X: c.X, Y: c.Y, Z: c.Z}))
		}
	}

	rep.TotalSurfaces = len(rep.Surfaces)
	for _, r := range rep.Surfaces {
		rep.TotalArea += r.Area
	}
	for _, o := range rep.Objects {
		rep.TotalVolume += o.Volume
	}
	if box, ok := m.Bounds(opts.Tolerance); ok {
		rep.BoundingBox, rep.Dimensions = boxStats(box)
	}
	if massVol > 0 {
		c := point(r3.Scale(1/massVol, massFirst))
		rep.CenterOfMass = &c
	}
	rep.EdgeStatistics = edgeStats(allEdges)
	rep.Complexity = complexity(rep.SurfaceTypeCounts, allEdges)
	rep.Metrics = complexityMetrics(rep)

	log.Debug("analysed",
		zap.Int("faces", rep.TotalSurfaces),
		zap.Float64("area", rep.TotalArea),
		zap.String("complexity", rep.Metrics.Class),
		zap.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

// analyseFace integrates one face. Triangulation failures and panics from
// malformed geometry give a zero-area record and a warning.
func analyseFace(object string, index int, f *brep.Face, samples trim.Samples, opts trim.Options, q rule) (rec SurfaceRecord, mom moments, warn *Warning) {
	rec = SurfaceRecord{
		ObjectName:  object,
		FaceIndex:   index,
		SurfaceType: brep.KindOf(f.Surface).String(),
	}
	fail := func(reason string) {
		warn = &Warning{Face: index, Object: object, Reason: reason}
	}
	defer func() {
		if r := recover(); r != nil {
			rec.Area, rec.CenterOfMass, mom = 0, Point{}, moments{}
			fail(fmt.Sprintf("panic during integration: %v", r))
		}
	}()

	d, err := trim.Triangulate(f, samples, opts)
	if err != nil {
		fail(err.Error())
		return rec, mom, warn
	}
	sign := 1.0
	if d.Fallback {
		fail(fmt.Sprintf("%s surface has no evaluator; planar boundary area used", rec.SurfaceType))
	} else if !f.SameSense {
		sign = -1
	}

	mom = integrate(d, q, sign)
	rec.Area = mom.area
	if mom.area > 0 {
		rec.CenterOfMass = point(r3.Scale(1/mom.area, mom.first))
	}
	if math.IsNaN(rec.Area) {
		rec.Area, rec.CenterOfMass, mom = 0, Point{}, moments{}
		fail("integration produced NaN")
	}
	return rec, mom, warn
}
