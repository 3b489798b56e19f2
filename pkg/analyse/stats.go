package analyse

import (
	"math"

	"github.com/chazu/facet/pkg/brep"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
	ZMin float64 `json:"z_min"`
	ZMax float64 `json:"z_max"`
}

// Dimensions are the box extents.
type Dimensions struct {
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Diagonal float64 `json:"diagonal"`
}

// Topology counts the entities of one object.
type Topology struct {
	Faces    int `json:"num_faces"`
	Edges    int `json:"num_edges"`
	Vertices int `json:"num_vertices"`
	Loops    int `json:"num_loops"`
}

// EdgeStats summarises edge lengths.
type EdgeStats struct {
	Count       int     `json:"count"`
	MinLength   float64 `json:"min_length"`
	MaxLength   float64 `json:"max_length"`
	AvgLength   float64 `json:"avg_length"`
	TotalLength float64 `json:"total_edge_length"`
}

// Complexity holds counts that characterise how hard a part is to make.
type Complexity struct {
	UniqueSurfaceTypes int `json:"num_unique_surface_types"`
	UniqueEdgeTypes    int `json:"num_unique_edge_types"`
	BSplineSurfaces    int `json:"num_bspline_surfaces"`
	BSplineEdges       int `json:"num_bspline_edges"`
	CurvedEdges        int `json:"num_curved_edges"`
	StraightEdges      int `json:"num_straight_edges"`
	// SurfaceDiversity is the Shannon entropy of the surface type
	// histogram normalised to [0,1].
	SurfaceDiversity float64 `json:"surface_diversity"`
}

// ObjectStats are the per-object supplements of a report.
type ObjectStats struct {
	Name           string         `json:"name"`
	Closed         bool           `json:"is_closed"`
	Volume         float64        `json:"volume"`
	SurfaceArea    float64        `json:"surface_area"`
	BoundingBox    *BoundingBox   `json:"bounding_box,omitempty"`
	Dimensions     *Dimensions    `json:"dimensions,omitempty"`
	CenterOfMass   *Point         `json:"center_of_mass,omitempty"`
	Topology       Topology       `json:"topology"`
	EdgeTypeCounts map[string]int `json:"edge_type_counts"`
	EdgeStatistics *EdgeStats     `json:"edge_statistics,omitempty"`
}

type edgeInfo struct {
	kind   string
	length float64
}

type objectResult struct {
	ObjectStats
	edges []edgeInfo
}

func objectStats(obj *brep.Object, mom moments, tol float64) objectResult {
	res := objectResult{ObjectStats: ObjectStats{
		Name:           obj.Name,
		Closed:         obj.Closed,
		SurfaceArea:    mom.area,
		EdgeTypeCounts: make(map[string]int),
		Topology: Topology{
			Faces:    len(obj.Faces),
			Edges:    len(obj.Edges()),
			Vertices: len(obj.Vertices()),
			Loops:    obj.LoopCount(),
		},
	}}
	if obj.Closed && mom.vol != 0 {
		res.Volume = math.Abs(mom.vol)
		c := point(r3.Scale(1/mom.vol, mom.vol2))
		res.CenterOfMass = &c
	}
	single := &brep.Model{Objects: []*brep.Object{obj}}
	if box, ok := single.Bounds(tol); ok {
		res.BoundingBox, res.Dimensions = boxStats(box)
	}
	for _, e := range obj.Edges() {
		info := edgeInfo{kind: edgeType(e.Curve), length: e.Length(tol)}
		res.EdgeTypeCounts[info.kind]++
		res.edges = append(res.edges, info)
	}
	res.EdgeStatistics = edgeStats(res.edges)
	return res
}

// edgeType names the curve of an edge. Ellipses are carried as Other
// curves but keep their own name here.
func edgeType(c brep.Curve) string {
	if o, ok := c.(*brep.OtherCurve); ok {
		if _, isEllipse := o.Shape.(*brep.Ellipse); isEllipse {
			return "Ellipse"
		}
	}
	return brep.CurveKindOf(c).String()
}

func boxStats(b r3.Box) (*BoundingBox, *Dimensions) {
	size := r3.Sub(b.Max, b.Min)
	return &BoundingBox{
			XMin: b.Min.X, XMax: b.Max.X,
			YMin: b.Min.Y, YMax: b.Max.Y,
			ZMin: b.Min.Z, ZMax: b.Max.Z,
		}, &Dimensions{
			Length:   size.X,
			Width:    size.Y,
			Height:   size.Z,
			Diagonal: r3.Norm(size),
		}
}

func edgeStats(edges []edgeInfo) *EdgeStats {
	if len(edges) == 0 {
		return nil
	}
	s := &EdgeStats{Count: len(edges), MinLength: math.Inf(1), MaxLength: math.Inf(-1)}
	for _, e := range edges {
		s.MinLength = math.Min(s.MinLength, e.length)
		s.MaxLength = math.Max(s.MaxLength, e.length)
		s.TotalLength += e.length
	}
	s.AvgLength = s.TotalLength / float64(len(edges))
	return s
}

func complexity(surfaces map[string]int, edges []edgeInfo) Complexity {
	edgeCounts := make(map[string]int)
	for _, e := range edges {
		edgeCounts[e.kind]++
	}
	c := Complexity{
		UniqueSurfaceTypes: len(surfaces),
		UniqueEdgeTypes:    len(edgeCounts),
		BSplineSurfaces:    surfaces[brep.SurfaceBSpline.String()],
		BSplineEdges:       edgeCounts[brep.CurveBSpline.String()],
		StraightEdges:      edgeCounts[brep.CurveLine.String()],
		CurvedEdges: edgeCounts[brep.CurveCircle.String()] +
			edgeCounts[brep.CurveBSpline.String()] +
			edgeCounts["Ellipse"],
	}

	total := 0
	for _, n := range surfaces {
		total += n
	}
	if len(surfaces) > 1 {
		p := make([]float64, 0, len(surfaces))
		for _, n := range surfaces {
			p = append(p, float64(n)/float64(total))
		}
		c.SurfaceDiversity = stat.Entropy(p) / math.Log(float64(len(surfaces)))
	}
	return c
}
