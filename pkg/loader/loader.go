// Package loader reads CAD and mesh files into the model the pipeline
// consumes. The format is chosen from the file extension before any byte
// is read; B-rep formats (STEP, JT, part scripts) yield a brep.Model and
// mesh formats (OBJ, STL, PLY) yield a kernel.Mesh, or a point cloud for
// a PLY file without faces.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chazu/facet/pkg/brep"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/sample"
	"github.com/chazu/facet/pkg/step"
	"go.uber.org/zap"
)

// Format identifies an input format.
type Format string

const (
	FormatSTEP   Format = "step"
	FormatJT     Format = "jt"
	FormatOBJ    Format = "obj"
	FormatSTL    Format = "stl"
	FormatPLY    Format = "ply"
	FormatScript Format = "zy"
)

var extensions = map[string]Format{
	".step": FormatSTEP,
	".stp":  FormatSTEP,
	".jt":   FormatJT,
	".obj":  FormatOBJ,
	".stl":  FormatSTL,
	".ply":  FormatPLY,
	".zy":   FormatScript,
}

// Extensions returns the accepted file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// FormatOf maps a path to its format by lower-cased extension.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := extensions[ext]
	if !ok {
		return "", &geomerr.UnsupportedFormatError{Path: path, Ext: ext}
	}
	return f, nil
}

// IsBrep reports whether the format carries B-rep topology.
func (f Format) IsBrep() bool {
	return f == FormatSTEP || f == FormatJT || f == FormatScript
}

// Model is a loaded file. Exactly one of Brep, Mesh and Points is set.
type Model struct {
	Path   string
	Format Format
	Brep   *brep.Model
	Mesh   *kernel.Mesh
	// Points is set for PLY files that carry vertices only.
	Points *sample.PointCloud
}

// Name is the file's base name without extension.
func (m *Model) Name() string {
	base := filepath.Base(m.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Options control loading.
type Options struct {
	Logger *zap.Logger
	// Engine evaluates part scripts. A fresh engine is used when nil.
	Engine *engine.Engine
}

// Load opens path and decodes it. The file is only read.
func Load(ctx context.Context, path string, opts Options) (*Model, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()
	return Decode(ctx, f, path, opts)
}

// Decode reads a model from r; name supplies the extension and is used in
// errors.
func Decode(ctx context.Context, r io.Reader, name string, opts Options) (*Model, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "loader"), zap.String("path", name))
	start := time.Now()

	m := &Model{Path: name, Format: format}
	switch format {
	case FormatSTEP:
		m.Brep, err = step.Read(r, name, step.Options{Logger: log})
	case FormatJT:
		err = readJT(r, name)
	case FormatScript:
		m.Brep, err = readScript(r, name, opts.Engine)
	case FormatOBJ:
		m.Mesh, err = readOBJ(ctx, r, name)
	case FormatSTL:
		m.Mesh, err = readSTL(r, name)
	case FormatPLY:
		m.Mesh, m.Points, err = readPLY(ctx, r, name)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case m.Mesh != nil:
		if m.Mesh.IsEmpty() {
			return nil, &geomerr.GeometryLoadError{Path: name, Stage: string(format), Err: errors.New("no triangles")}
		}
		m.Mesh.PartName = m.Name()
		log.Debug("mesh loaded",
			zap.Int("vertices", m.Mesh.VertexCount()),
			zap.Int("triangles", m.Mesh.TriangleCount()),
			zap.Duration("elapsed", time.Since(start)))
	case m.Points != nil:
		log.Debug("point cloud loaded", zap.Int("points", m.Points.Len()), zap.Duration("elapsed", time.Since(start)))
	case m.Brep != nil:
		log.Debug("b-rep loaded",
			zap.Int("objects", len(m.Brep.Objects)),
			zap.Int("faces", m.Brep.FaceCount()),
			zap.Duration("elapsed", time.Since(start)))
	}
	return m, nil
}

// readScript evaluates a part script. Script errors carry the line and
// column the interpreter reported.
func readScript(r io.Reader, path string, e *engine.Engine) (*brep.Model, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "zy", Err: err}
	}
	if e == nil {
		e = engine.NewEngine()
	}
	m, evalErrs, err := e.Evaluate(string(src))
	if err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "zy", Err: err}
	}
	if len(evalErrs) > 0 {
		first := evalErrs[0]
		return nil, &geomerr.ParseError{Path: path, Format: "zy", Line: first.Line, Msg: first.Message}
	}
	if m.FaceCount() == 0 {
		return nil, &geomerr.GeometryLoadError{Path: path, Stage: "script", Err: errors.New("script built no solids")}
	}
	return m, nil
}
