// Package embed adapts an external shape encoder. A Handle is created once
// at start-up and shared read-only by every conversion: it normalises a
// sampled point cloud, asks the encoder for the 1024×32 latent and, when
// the encoder can also decode, rebuilds a surface from the latent.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/sample"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// PointCount is the exact cloud size the encoder accepts.
	PointCount = 8192
	// Tokens and Width are the latent shape.
	Tokens = 1024
	Width  = 32
	// DefaultDensity is the decode lattice resolution per axis.
	DefaultDensity = 256
)

// ErrNoDecoder is returned by Reconstruct when the encoder cannot decode.
var ErrNoDecoder = errors.New("embed: encoder has no decoder")

// Latent is a Tokens×Width matrix stored row-major.
type Latent struct {
	Data []float32
}

// At returns element (token, col).
func (l *Latent) At(token, col int) float32 { return l.Data[token*Width+col] }

func (l *Latent) validate() error {
	if l == nil || len(l.Data) != Tokens*Width {
		n := 0
		if l != nil {
			n = len(l.Data)
		}
		return fmt.Errorf("embed: latent has %d values, want %d×%d", n, Tokens, Width)
	}
	return nil
}

// Occupancy is a decoded field over the cube [-1,1]³ sampled on a
// (Density+1)³ lattice, X varying fastest. Positive logits are inside.
type Occupancy struct {
	Density int
	Logits  []float32
}

// Encoder turns a normalised cloud of exactly PointCount points into a latent.
type Encoder interface {
	Encode(ctx context.Context, points []r3.Vec) (*Latent, error)
}

// Decoder evaluates a latent on the lattice of the given density.
type Decoder interface {
	Decode(ctx context.Context, l *Latent, density int) (*Occupancy, error)
}

// Options configure a Handle.
type Options struct {
	// Density of the reconstruction lattice; DefaultDensity when zero.
	Density int
	// Kernel extracts the reconstruction surface. Required for Reconstruct.
	Kernel kernel.Kernel
	Logger *zap.Logger
}

// Handle is the shared embedding model.
type Handle struct {
	enc     Encoder
	density int
	kernel  kernel.Kernel
	logger  *zap.Logger
}

// New wraps enc.
func New(enc Encoder, opts Options) *Handle {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Density <= 0 {
		opts.Density = DefaultDensity
	}
	return &Handle{
		enc:     enc,
		density: opts.Density,
		kernel:  opts.Kernel,
		logger:  opts.Logger.With(zap.String("component", "embed")),
	}
}

// CanReconstruct reports whether Reconstruct is available.
func (h *Handle) CanReconstruct() bool {
	_, ok := h.enc.(Decoder)
	return ok && h.kernel != nil
}

// Encode normalises pc and returns its latent.
func (h *Handle) Encode(ctx context.Context, pc *sample.PointCloud) (*Latent, error) {
	if pc == nil || pc.Len() != PointCount {
		n := 0
		if pc != nil {
			n = pc.Len()
		}
		return nil, fmt.Errorf("embed: point cloud has %d points, want %d", n, PointCount)
	}
	pts, err := Normalise(pc.Points)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	l, err := h.enc.Encode(ctx, pts)
	if err != nil {
		return nil, fmt.Errorf("embed: encode: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	h.logger.Debug("encoded point cloud", zap.Duration("elapsed", time.Since(start)))
	return l, nil
}

// Reconstruct decodes l and extracts the zero level set as a mesh in the
// normalised frame.
func (h *Handle) Reconstruct(ctx context.Context, l *Latent) (*kernel.Mesh, error) {
	dec, ok := h.enc.(Decoder)
	if !ok || h.kernel == nil {
		return nil, ErrNoDecoder
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	occ, err := dec.Decode(ctx, l, h.density)
	if err != nil {
		return nil, fmt.Errorf("embed: decode: %w", err)
	}
	g, err := occ.Field()
	if err != nil {
		return nil, err
	}
	s, err := h.kernel.Volume(g)
	if err != nil {
		return nil, fmt.Errorf("embed: reconstruct: %w", err)
	}
	m, err := h.kernel.ToMesh(s, occ.Density)
	if err != nil {
		return nil, fmt.Errorf("embed: reconstruct: %w", err)
	}
	if m.IsEmpty() {
		return nil, &geomerr.EmptyMeshError{Stage: "reconstruct"}
	}
	h.logger.Debug("reconstructed surface", zap.Int("triangles", m.TriangleCount()))
	return m, nil
}

// Field converts the logits into a kernel grid, negative inside.
func (o *Occupancy) Field() (*kernel.Grid, error) {
	n := o.Density + 1
	if o.Density <= 0 || len(o.Logits) != n*n*n {
		return nil, fmt.Errorf("embed: occupancy has %d values for density %d", len(o.Logits), o.Density)
	}
	g, err := kernel.NewGrid(r3.Vec{X: -1, Y: -1, Z: -1}, 2/float64(o.Density), [3]int{n, n, n}, 0)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	for i, v := range o.Logits {
		g.Values[i] = -float64(v)
	}
	return g, nil
}

// Normalise centres points on their bounding-box centre and scales them
// so the farthest point lies on the unit sphere.
func Normalise(points []r3.Vec) ([]r3.Vec, error) {
	if len(points) == 0 {
		return nil, errors.New("embed: no points")
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	centre := r3.Scale(0.5, r3.Add(lo, hi))

	out := make([]r3.Vec, len(points))
	far := 0.0
	for i, p := range points {
		out[i] = r3.Sub(p, centre)
		far = math.Max(far, r3.Norm(out[i]))
	}
	if far == 0 {
		return nil, errors.New("embed: all points coincide")
	}
	for i := range out {
		out[i] = r3.Scale(1/far, out[i])
	}
	return out, nil
}
