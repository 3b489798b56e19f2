package voxel

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chazu/facet/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// FormatVersion is written into every sparse document.
const FormatVersion = "1.0"

// Sparse is the JSON form of a grid: only occupied cells are listed.
type Sparse struct {
	FormatVersion string     `json:"format_version"`
	Resolution    int        `json:"resolution"`
	Shape         [3]int     `json:"shape"`
	Origin        [3]float64 `json:"origin"`
	CellSize      float64    `json:"cell_size"`
	Indices       [][3]int   `json:"indices"`
}

// Sparse lists the occupied cells in storage order.
func (g *Grid) Sparse() Sparse {
	r := g.Resolution
	s := Sparse{
		FormatVersion: FormatVersion,
		Resolution:    r,
		Shape:         [3]int{r, r, r},
		Origin:        [3]float64{g.Origin.X, g.Origin.Y, g.Origin.Z},
		CellSize:      g.CellSize,
		Indices:       [][3]int{},
	}
	for idx, o := range g.Occupied {
		if o {
			s.Indices = append(s.Indices, [3]int{idx % r, (idx / r) % r, idx / (r * r)})
		}
	}
	return s
}

// WriteJSON writes the sparse form.
func (g *Grid) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g.Sparse()); err != nil {
		return fmt.Errorf("voxel: encode sparse grid: %w", err)
	}
	return nil
}

// FromSparse rebuilds a grid from its sparse form.
func FromSparse(s Sparse) (*Grid, error) {
	if s.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("voxel: unsupported format version %q", s.FormatVersion)
	}
	r := s.Resolution
	if r <= 0 {
		return nil, fmt.Errorf("voxel: invalid resolution %d", r)
	}
	g := newGrid(r, r3.Vec{X: s.Origin[0], Y: s.Origin[1], Z: s.Origin[2]}, s.CellSize)
	for _, ijk := range s.Indices {
		for _, c := range ijk {
			if c < 0 || c >= r {
				return nil, fmt.Errorf("voxel: index %v outside %d³ grid", ijk, r)
			}
		}
		g.Occupied[g.Index(ijk[0], ijk[1], ijk[2])] = true
	}
	return g, nil
}

// Packed returns the occupancy as a bit buffer: cell n is bit n%8 of
// byte n/8, with X varying fastest.
func (g *Grid) Packed() []byte {
	buf := make([]byte, (len(g.Occupied)+7)/8)
	for n, o := range g.Occupied {
		if o {
			buf[n/8] |= 1 << (n % 8)
		}
	}
	return buf
}

// Unpack is the inverse of Packed. Geometry fields are left zero.
func Unpack(r int, buf []byte) (*Grid, error) {
	if r <= 0 {
		return nil, fmt.Errorf("voxel: invalid resolution %d", r)
	}
	want := (r*r*r + 7) / 8
	if len(buf) != want {
		return nil, fmt.Errorf("voxel: packed buffer has %d bytes, want %d", len(buf), want)
	}
	g := newGrid(r, r3.Vec{}, 0)
	for n := range g.Occupied {
		g.Occupied[n] = buf[n/8]&(1<<(n%8)) != 0
	}
	return g, nil
}

// Field converts the mask into a signed field sampled at cell centres,
// negative inside occupied cells, with one empty cell of margin so the
// extracted surface is closed.
func (g *Grid) Field() (*kernel.Grid, error) {
	r := g.Resolution
	origin := r3.Sub(g.Centre(0, 0, 0), r3.Vec{X: g.CellSize, Y: g.CellSize, Z: g.CellSize})
	f, err := kernel.NewGrid(origin, g.CellSize, [3]int{r + 2, r + 2, r + 2}, g.CellSize/2)
	if err != nil {
		return nil, fmt.Errorf("voxel: %w", err)
	}
	for k := range r {
		for j := range r {
			for i := range r {
				if g.At(i, j, k) {
					f.Set(i+1, j+1, k+1, -g.CellSize/2)
				}
			}
		}
	}
	return f, nil
}

// Preview extracts a mesh of the occupied cells with the given kernel.
func (g *Grid) Preview(k kernel.Kernel) (*kernel.Mesh, error) {
	f, err := g.Field()
	if err != nil {
		return nil, err
	}
	s, err := k.Volume(f)
	if err != nil {
		return nil, fmt.Errorf("voxel: preview: %w", err)
	}
	m, err := k.ToMesh(s, 2*(g.Resolution+2))
	if err != nil {
		return nil, fmt.Errorf("voxel: preview: %w", err)
	}
	return m, nil
}

// SliceCounts returns the number of occupied cells per Z layer.
func (g *Grid) SliceCounts() []int {
	r := g.Resolution
	counts := make([]int, r)
	for n, o := range g.Occupied {
		if o {
			counts[n/(r*r)]++
		}
	}
	return counts
}

// WriteSlicePlot renders SliceCounts as a PNG line chart.
func (g *Grid) WriteSlicePlot(w io.Writer) error {
	counts := g.SliceCounts()
	xys := make(plotter.XYs, len(counts))
	for k, c := range counts {
		xys[k].X = float64(k)
		xys[k].Y = float64(c)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy per slice (%d³)", g.Resolution)
	p.X.Label.Text = "z layer"
	p.Y.Label.Text = "occupied cells"
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("voxel: slice plot: %w", err)
	}
	p.Add(line, plotter.NewGrid())

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("voxel: slice plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("voxel: slice plot: %w", err)
	}
	return nil
}
