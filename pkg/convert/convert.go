// Package convert runs one conversion: it loads an input file once and
// fans the requested targets out over the loaded model, writing each
// target's artefacts into an output directory.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/facet/pkg/analyse"
	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/embed"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/loader"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/chazu/facet/pkg/sample"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Target names one family of artefacts.
type Target string

const (
	TargetSTL       Target = "stl"
	TargetPLY       Target = "ply"
	TargetVoxel     Target = "voxel"
	TargetMultiview Target = "multiview"
	TargetDrawing   Target = "drawing"
	TargetAnalyse   Target = "analyse"
	TargetVecset    Target = "vecset"
)

// Targets lists every target in output order.
var Targets = []Target{TargetSTL, TargetPLY, TargetVoxel, TargetMultiview, TargetDrawing, TargetAnalyse, TargetVecset}

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &geomerr.UnsupportedTargetError{Target: s}
}

// needsBrep reports targets that read the B-rep rather than a mesh.
func (t Target) needsBrep() bool { return t == TargetAnalyse || t == TargetDrawing }

// Options configure a Pipeline.
type Options struct {
	Pipeline config.PipelineConfig
	// Embed enables the vecset target; nil disables it.
	Embed *embed.Handle
	// Reconstruct also writes the decoded surface for vecset.
	Reconstruct bool
	// Engine evaluates part-script inputs.
	Engine *engine.Engine
	// Kernel extracts voxel preview meshes; sdfx when nil.
	Kernel  kernel.Kernel
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Pipeline is safe for concurrent use; every Run is independent.
type Pipeline struct {
	cfg         config.PipelineConfig
	embed       *embed.Handle
	reconstruct bool
	engine      *engine.Engine
	kernel      kernel.Kernel
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// New builds a pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Kernel == nil {
		opts.Kernel = sdfx.New()
	}
	if opts.Engine == nil {
		opts.Engine = engine.NewEngine()
	}
	return &Pipeline{
		cfg:         opts.Pipeline,
		embed:       opts.Embed,
		reconstruct: opts.Reconstruct,
		engine:      opts.Engine,
		kernel:      opts.Kernel,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With(zap.String("component", "convert")),
	}
}

// Request is one conversion. Zero parameters fall back to the pipeline
// configuration.
type Request struct {
	Input   string
	OutDir  string
	Targets []Target

	Resolution int
	Views      int
	Mode       string
}

// Result lists what a conversion produced.
type Result struct {
	ID     string
	Name   string
	Format loader.Format
	// Files are the written artefacts, grouped by target in request order.
	Files    []string
	Report   *analyse.Report
	Warnings []string
}

// run carries the state shared by the branches of one conversion.
type run struct {
	p     *Pipeline
	req   Request
	model *loader.Model
	log   *zap.Logger

	mesh   func() (*kernel.Mesh, error)
	points func() (*sample.PointCloud, error)

	mu       sync.Mutex
	warnings []string
	report   *analyse.Report
}

func (r *run) warn(format string, args ...any) {
	r.mu.Lock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// path names an artefact after the model.
func (r *run) path(suffix string) string {
	return filepath.Join(r.req.OutDir, r.model.Name()+suffix)
}

// Run loads req.Input and produces every requested target. On failure
// the output directory may hold artefacts of targets that finished.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Targets) == 0 {
		return nil, errors.New("convert: no targets")
	}
	if p.embed == nil {
		for _, t := range req.Targets {
			if t == TargetVecset {
				return nil, fmt.Errorf("convert: vecset: %w", ErrNoEncoder)
			}
		}
	}
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	id := uuid.NewString()
	log := p.logger.With(zap.String("id", id), zap.String("input", filepath.Base(req.Input)))
	start := time.Now()

	m, err := loader.Load(ctx, req.Input, loader.Options{Logger: p.logger, Engine: p.engine})
	if err != nil {
		p.record(req.Targets, err, start)
		return nil, err
	}
	for _, t := range req.Targets {
		if t.needsBrep() && m.Brep == nil {
			err := &geomerr.UnsupportedTargetError{Target: string(t), Format: string(m.Format)}
			p.record(req.Targets, err, start)
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	r := &run{p: p, req: req, model: m, log: log}
	r.mesh = sync.OnceValues(func() (*kernel.Mesh, error) { return r.loadMesh(gctx) })
	r.points = sync.OnceValues(func() (*sample.PointCloud, error) { return r.sample(p.cfg.PointCount) })
	if m.Brep != nil {
		for _, issue := range brep.Validate(m.Brep, p.cfg.Tolerance) {
			r.warn("validate: %s", issue)
		}
	}

	files := make([][]string, len(req.Targets))
	for i, t := range req.Targets {
		g.Go(func() error {
			tstart := time.Now()
			out, err := r.target(gctx, t)
			p.metrics.RecordConversion(string(t), Class(err), time.Since(tstart))
			if err != nil {
				return fmt.Errorf("convert: %s: %w", t, err)
			}
			files[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("conversion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	res := &Result{ID: id, Name: m.Name(), Format: m.Format, Report: r.report, Warnings: r.warnings}
	for _, f := range files {
		res.Files = append(res.Files, f...)
	}
	log.Info("conversion done",
		zap.Int("files", len(res.Files)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// record counts a conversion that failed before any target started.
func (p *Pipeline) record(targets []Target, err error, start time.Time) {
	for _, t := range targets {
		p.metrics.RecordConversion(string(t), Class(err), time.Since(start))
	}
}

func (r *run) target(ctx context.Context, t Target) ([]string, error) {
	switch t {
	case TargetSTL:
		return r.stl()
	case TargetPLY:
		return r.ply()
	case TargetVoxel:
		return r.voxel(ctx)
	case TargetMultiview:
		return r.multiview(ctx)
	case TargetDrawing:
		return r.drawing(ctx)
	case TargetAnalyse:
		return r.analyse(ctx)
	case TargetVecset:
		return r.vecset(ctx)
	}
	return nil, &geomerr.UnsupportedTargetError{Target: string(t)}
}

// loadMesh returns the input mesh or tessellates the B-rep.
func (r *run) loadMesh(ctx context.Context) (*kernel.Mesh, error) {
	m := r.model
	if m.Mesh != nil {
		return m.Mesh, nil
	}
	if m.Brep == nil {
		return nil, &geomerr.EmptyMeshError{Stage: "tessellate"}
	}
	cfg := r.p.cfg
	mesh, warns, err := tessellate.Tessellate(ctx, m.Brep, tessellate.Options{
		Tolerance:        cfg.Tolerance,
		AngularTolerance: cfg.AngularTolerance,
		Workers:          cfg.Workers,
		Logger:           r.log,
	})
	if err != nil {
		return nil, err
	}
	skipped := 0
	for _, w := range warns {
		if w.Skipped {
			skipped++
		}
		r.warn("tessellate: %s", w)
	}
	r.p.metrics.RecordSkippedFaces("tessellate", skipped)
	if mesh.IsEmpty() {
		return nil, &geomerr.EmptyMeshError{Stage: "tessellate"}
	}
	mesh.PartName = m.Name()
	return mesh, nil
}

// sample draws k points from the mesh, or resamples a point-cloud input.
func (r *run) sample(k int) (*sample.PointCloud, error) {
	opts := sample.Options{Seed: r.p.cfg.Seed}
	if pc := r.model.Points; pc != nil {
		return sample.Resample(pc.Points, k, opts)
	}
	mesh, err := r.mesh()
	if err != nil {
		return nil, err
	}
	return sample.Sample(mesh, k, opts)
}

// writeFile creates path and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
