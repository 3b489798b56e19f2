package main

import (
	"context"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// colorPalette assigns distinct colours to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is one part flattened for a WebGL viewer.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is an evaluation error or warning. Line is 0 when the
// message is not tied to the source.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the response of /evaluate.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// Evaluator turns part-script source into preview meshes, one per object.
type Evaluator struct {
	engine *engine.Engine
	cfg    config.PipelineConfig
	logger *zap.Logger
}

// NewEvaluator creates an evaluator with its own script engine.
func NewEvaluator(cfg config.PipelineConfig, logger *zap.Logger) *Evaluator {
	return &Evaluator{engine: engine.NewEngine(), cfg: cfg, logger: logger.With(zap.String("component", "evaluate"))}
}

// Evaluate runs source and tessellates every object it built.
func (e *Evaluator) Evaluate(ctx context.Context, source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	model, evalErrs, err := e.engine.Evaluate(source)
	if err != nil {
		e.logger.Warn("evaluation failed", zap.Error(err))
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, ee := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: ee.Line, Col: ee.Col, Message: ee.Message})
		}
		return result
	}

	for _, issue := range brep.Validate(model, e.cfg.Tolerance) {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: issue.Error()})
	}

	for i, obj := range model.Objects {
		mesh, warns, err := tessellate.Tessellate(ctx, &brep.Model{Objects: []*brep.Object{obj}}, tessellate.Options{
			Tolerance:        e.cfg.Tolerance,
			AngularTolerance: e.cfg.AngularTolerance,
			Workers:          e.cfg.Workers,
			Logger:           e.logger,
		})
		if err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
			return result
		}
		for _, w := range warns {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: w.String()})
		}
		if mesh.IsEmpty() {
			continue
		}
		mesh.PartName = obj.Name
		result.Meshes = append(result.Meshes, meshData(mesh, colorPalette[i%len(colorPalette)]))
	}
	return result
}

// meshData flattens m with area-weighted vertex normals.
func meshData(m *kernel.Mesh, color string) MeshData {
	normals := make([]r3.Vec, len(m.Vertices))
	for i, t := range m.Triangles {
		tri := m.Triangle(i)
		n := r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0]))
		for _, v := range t {
			normals[v] = r3.Add(normals[v], n)
		}
	}

	d := MeshData{
		Vertices: make([]float32, 0, 3*len(m.Vertices)),
		Normals:  make([]float32, 0, 3*len(m.Vertices)),
		Indices:  make([]uint32, 0, 3*len(m.Triangles)),
		PartName: m.PartName,
		Color:    color,
	}
	for i, v := range m.Vertices {
		n := normals[i]
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		d.Vertices = append(d.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
		d.Normals = append(d.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	for _, t := range m.Triangles {
		d.Indices = append(d.Indices, t[0], t[1], t[2])
	}
	return d
}

// handleEvaluate takes the script as the raw request body.
func (s *Server) handleEvaluate(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()
	return c.JSON(s.evaluator.Evaluate(ctx, string(c.Body())))
}
