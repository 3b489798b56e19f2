package drawing

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"github.com/yofu/dxf"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// LayerVisible holds every kept primitive.
const LayerVisible = "VISIBLE"

// curveSegments is the number of lines used for ellipses and previews.
const curveSegments = 64

// FileName is the DXF name of a view.
func FileName(view string) string { return view + "_view.dxf" }

// WriteDXF writes one DXF per view into dir and returns the paths.
func WriteDXF(dir string, p *Projection) ([]string, error) {
	paths := make([]string, 0, len(p.Views))
	for _, v := range p.Views {
		path := filepath.Join(dir, FileName(v.Spec.Name))
		if err := writeViewDXF(path, v); err != nil {
			return nil, fmt.Errorf("drawing: %s view: %w", v.Spec.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeViewDXF(path string, v *View) error {
	d := dxf.NewDrawing()
	if _, err := d.AddLayer(LayerVisible, dxf.DefaultColor, dxf.DefaultLineType, false); err != nil {
		return err
	}
	if err := d.ChangeLayer(LayerVisible); err != nil {
		return err
	}

	polyline := func(pts []r2.Vec) error {
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			if _, err := d.Line(a.X, a.Y, 0, b.X, b.Y, 0); err != nil {
				return err
			}
		}
		return nil
	}
	for _, prim := range v.Primitives {
		var err error
		switch p := prim.(type) {
		case *Segment:
			_, err = d.Line(p.A.X, p.A.Y, 0, p.B.X, p.B.Y, 0)
		case *Arc:
			if p.End-p.Start >= 360 {
				_, err = d.Circle(p.Centre.X, p.Centre.Y, 0, p.Radius)
			} else {
				_, err = d.Arc(p.Centre.X, p.Centre.Y, 0, p.Radius, p.Start, p.End)
			}
		case *Ellipse:
			err = polyline(p.Points(curveSegments))
		case *Polyline:
			err = polyline(p.Vertices)
		}
		if err != nil {
			return err
		}
	}
	return d.SaveAs(path)
}

// WritePreview renders a view as a PNG line drawing.
func WritePreview(w io.Writer, v *View) error {
	p := plot.New()
	p.Title.Text = v.Spec.Name + " view"
	p.HideAxes()

	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, prim := range v.Primitives {
		pts := prim.Points(curveSegments)
		xys := make(plotter.XYs, len(pts))
		for i, q := range pts {
			xys[i].X, xys[i].Y = q.X, q.Y
			lo.X, lo.Y = math.Min(lo.X, q.X), math.Min(lo.Y, q.Y)
			hi.X, hi.Y = math.Max(hi.X, q.X), math.Max(hi.Y, q.Y)
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("drawing: preview: %w", err)
		}
		l.Color = color.Black
		p.Add(l)
	}

	// Equal scale on both axes.
	if len(v.Primitives) > 0 {
		span := math.Max(hi.X-lo.X, hi.Y-lo.Y) * 0.55
		mid := r2.Scale(0.5, r2.Add(lo, hi))
		p.X.Min, p.X.Max = mid.X-span, mid.X+span
		p.Y.Min, p.Y.Max = mid.Y-span, mid.Y+span
	}

	wt, err := p.WriterTo(5*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("drawing: preview: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("drawing: preview: %w", err)
	}
	return nil
}
