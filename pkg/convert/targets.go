package convert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"

	"github.com/chazu/facet/pkg/analyse"
	"github.com/chazu/facet/pkg/drawing"
	"github.com/chazu/facet/pkg/embed"
	"github.com/chazu/facet/pkg/loader"
	"github.com/chazu/facet/pkg/render"
	"github.com/chazu/facet/pkg/voxel"
	"go.uber.org/zap"
)

// ErrNoEncoder is returned for vecset when no embedding handle is configured.
var ErrNoEncoder = errors.New("no embedding encoder configured")

func (r *run) stl() ([]string, error) {
	mesh, err := r.mesh()
	if err != nil {
		return nil, err
	}
	path := r.path(".stl")
	if err := writeFile(path, func(w io.Writer) error { return loader.WriteSTL(w, mesh, true) }); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// ply writes the sampled point cloud with normals.
func (r *run) ply() ([]string, error) {
	pc, err := r.points()
	if err != nil {
		return nil, err
	}
	path := r.path(".ply")
	if err := writeFile(path, func(w io.Writer) error { return loader.WritePointCloudPLY(w, pc, true) }); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (r *run) voxel(ctx context.Context) ([]string, error) {
	mesh, err := r.mesh()
	if err != nil {
		return nil, err
	}
	res := r.req.Resolution
	if res == 0 {
		res = r.p.cfg.VoxelResolution
	}
	g, err := voxel.Voxelize(ctx, mesh, res, voxel.Options{Padding: r.p.cfg.VoxelPadding, Logger: r.log})
	if err != nil {
		return nil, err
	}

	jsonPath := r.path("_voxels.json")
	binPath := r.path("_voxels.bin")
	plotPath := r.path("_voxel_slices.png")
	if err := writeFile(jsonPath, g.WriteJSON); err != nil {
		return nil, err
	}
	if err := writeFile(binPath, func(w io.Writer) error {
		_, err := w.Write(g.Packed())
		return err
	}); err != nil {
		return nil, err
	}
	if err := writeFile(plotPath, g.WriteSlicePlot); err != nil {
		return nil, err
	}
	files := []string{jsonPath, binPath, plotPath}

	if g.Count() == 0 {
		r.warn("voxel: no occupied cells, preview skipped")
		return files, nil
	}
	preview, err := g.Preview(r.p.kernel)
	if err != nil {
		return nil, err
	}
	previewPath := r.path("_voxels.stl")
	if err := writeFile(previewPath, func(w io.Writer) error { return loader.WriteSTL(w, preview, true) }); err != nil {
		return nil, err
	}
	return append(files, previewPath), nil
}

func (r *run) multiview(ctx context.Context) ([]string, error) {
	mesh, err := r.mesh()
	if err != nil {
		return nil, err
	}
	cfg := r.p.cfg
	views := r.req.Views
	if views == 0 {
		views = cfg.Views
	}
	modeName := r.req.Mode
	if modeName == "" {
		modeName = cfg.RenderMode
	}
	mode, err := render.ParseMode(modeName)
	if err != nil {
		return nil, &badParameterError{err}
	}
	out, err := render.Render(ctx, mesh, views, render.Options{
		Width:  cfg.RenderWidth,
		Height: cfg.RenderHeight,
		Mode:   mode,
		Logger: r.log,
	})
	if err != nil {
		return nil, err
	}
	return render.WriteViews(r.req.OutDir, r.model.Name()+"_", out)
}

func (r *run) drawing(ctx context.Context) ([]string, error) {
	mesh, err := r.mesh()
	if err != nil {
		// Hidden-line removal needs the mesh; the facing test does not.
		r.warn("drawing: no mesh for occlusion, facing test only: %v", err)
		mesh = nil
	}
	proj, err := drawing.Project(ctx, r.model.Brep, mesh, drawing.Options{
		Tolerance:        r.p.cfg.Tolerance,
		AngularTolerance: r.p.cfg.AngularTolerance,
		Logger:           r.log,
	})
	if err != nil {
		return nil, err
	}
	files, err := drawing.WriteDXF(r.req.OutDir, proj)
	if err != nil {
		return nil, err
	}
	for _, v := range proj.Views {
		path := filepath.Join(r.req.OutDir, v.Spec.Name+"_view.png")
		if err := writeFile(path, func(w io.Writer) error { return drawing.WritePreview(w, v) }); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func (r *run) analyse(ctx context.Context) ([]string, error) {
	rep, err := analyse.Analyse(ctx, r.model.Brep, analyse.Options{Tolerance: r.p.cfg.Tolerance, Logger: r.log})
	if err != nil {
		return nil, err
	}
	for _, w := range rep.Warnings {
		r.warn("analyse: face %d (%s): %s", w.Face, w.Object, w.Reason)
	}
	r.p.metrics.RecordSkippedFaces("analyse", len(rep.Warnings))

	r.mu.Lock()
	r.report = rep
	r.mu.Unlock()

	path := r.path("_analysis.json")
	if err := writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (r *run) vecset(ctx context.Context) ([]string, error) {
	pc, err := r.points()
	if err != nil {
		return nil, err
	}
	if pc.Len() != embed.PointCount {
		if pc, err = r.sample(embed.PointCount); err != nil {
			return nil, err
		}
	}
	lat, err := r.p.embed.Encode(ctx, pc)
	if err != nil {
		return nil, err
	}
	path := r.path(".npy")
	if err := writeFile(path, func(w io.Writer) error { return embed.WriteNPY(w, lat) }); err != nil {
		return nil, err
	}
	files := []string{path}

	if !r.p.reconstruct {
		return files, nil
	}
	if !r.p.embed.CanReconstruct() {
		r.warn("vecset: encoder cannot decode, reconstruction skipped")
		return files, nil
	}
	mesh, err := r.p.embed.Reconstruct(ctx, lat)
	if err != nil {
		// The latent is the product; a failed reconstruction only warns.
		r.log.Warn("reconstruction failed", zap.Error(err))
		r.warn("vecset: reconstruction failed: %v", err)
		return files, nil
	}
	mesh.PartName = r.model.Name() + "_reconstruction"
	recon := r.path("_reconstruction.stl")
	if err := writeFile(recon, func(w io.Writer) error { return loader.WriteSTL(w, mesh, true) }); err != nil {
		return nil, err
	}
	return append(files, recon), nil
}

// badParameterError marks a request parameter the caller got wrong.
type badParameterError struct{ err error }

func (e *badParameterError) Error() string { return e.err.Error() }
func (e *badParameterError) Unwrap() error { return e.err }

// BadParameter wraps err so that Class reports it as an input error.
func BadParameter(err error) error { return &badParameterError{err} }
