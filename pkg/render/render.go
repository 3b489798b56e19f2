// Package render produces multiview images of a mesh from cameras spread
// evenly over a sphere around it.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode selects what is drawn. It never changes camera placement.
type Mode string

const (
	ModeShaded          Mode = "shaded"
	ModeWireframe       Mode = "wireframe"
	ModeShadedWithEdges Mode = "shaded_with_edges"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeShaded, ModeWireframe, ModeShadedWithEdges:
		return m, nil
	case "":
		return ModeShadedWithEdges, nil
	}
	return "", fmt.Errorf("render: unknown mode %q", s)
}

// Options control rendering.
type Options struct {
	Width, Height int
	Mode          Mode
	// FovY is the vertical field of view in radians.
	FovY float64
	// FeatureAngle is the dihedral angle in degrees above which a mesh
	// edge is drawn.
	FeatureAngle float64
	Background   color.RGBA
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 512
	}
	if o.Height <= 0 {
		o.Height = 512
	}
	if o.Mode == "" {
		o.Mode = ModeShadedWithEdges
	}
	if o.FovY <= 0 {
		o.FovY = math.Pi / 4
	}
	if o.FeatureAngle <= 0 {
		o.FeatureAngle = 30
	}
	if o.Background == (color.RGBA{}) {
		o.Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// CameraView is one rendered image with its pose.
type CameraView struct {
	Name  string
	Image *image.RGBA
	Pose  Pose
}

// Render draws mesh from n cameras on a golden spiral around its
// bounding sphere.
func Render(ctx context.Context, mesh *kernel.Mesh, n int, opts Options) ([]CameraView, error) {
	dirs, err := Directions(n)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	log := opts.Logger.With(zap.String("component", "render"))
	if mesh.IsEmpty() {
		return nil, &geomerr.EmptyMeshError{Stage: "render"}
	}

	target, radius := boundingSphere(mesh)
	dist := fitDistance(radius, opts)
	sc := newScene(mesh, opts.FeatureAngle)

	views := make([]CameraView, 0, n)
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("render: view %d: %w", d.Index, err)
		}
		start := time.Now()
		cam, err := newCamera(d, target, dist, radius, opts)
		if err != nil {
			return nil, err
		}
		img, err := sc.draw(ctx, cam, opts)
		if err != nil {
			return nil, fmt.Errorf("render: view %d: %w", d.Index, err)
		}
		views = append(views, CameraView{Name: d.Name(), Image: img, Pose: cam.pose})
		log.Debug("view rendered",
			zap.String("view", d.Name()),
			zap.Duration("elapsed", time.Since(start)))
	}
	return views, nil
}

// boundingSphere is centred on the bounding box with the radius of the
// farthest referenced vertex.
func boundingSphere(mesh *kernel.Mesh) (r3.Vec, float64) {
	box, _ := mesh.Bounds()
	c := r3.Scale(0.5, r3.Add(box.Min, box.Max))
	r := 0.0
	for _, t := range mesh.Triangles {
		for _, i := range t {
			r = math.Max(r, r3.Norm(r3.Sub(mesh.Vertices[i], c)))
		}
	}
	if r == 0 {
		r = 1
	}
	return c, r
}
