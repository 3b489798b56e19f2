package analyse

import "math"

// Metrics are manufacturing complexity indices derived from a report.
// Lengths are read as millimetres; volumes are scaled to cm³ and areas
// to cm² before they enter the indices.
type Metrics struct {
	FeatureCount     float64 `json:"feature_count_index"`
	SurfaceDiversity float64 `json:"surface_diversity_index"`
	Curvature        float64 `json:"curvature_complexity_index"`
	Freeform         float64 `json:"freeform_surface_factor"`
	EdgeComplexity   float64 `json:"edge_complexity_index"`
	FaceDensity      float64 `json:"face_density_index"`
	Geometric        float64 `json:"geometric_complexity_score"`

	EnvelopeVolume  float64 `json:"envelope_volume"`
	VolumeRatio     float64 `json:"volume_ratio"`
	MaterialRemoval float64 `json:"material_removal_factor"`
	Compactness     float64 `json:"compactness_factor"`
	FeatureSize     float64 `json:"feature_size_ratio"`
	Size            float64 `json:"size_complexity_score"`

	EulerCharacteristic int     `json:"euler_characteristic"`
	Topological         float64 `json:"topological_complexity_index"`
	Connectivity        float64 `json:"connectivity_index"`

	AxisRequirement float64 `json:"axis_requirement_score"`
	Setup           float64 `json:"setup_complexity_score"`
	ToolVariety     float64 `json:"tool_variety_index"`
	Tolerance       float64 `json:"tolerance_complexity_factor"`
	Machining       float64 `json:"machining_complexity_score"`

	Overall       float64 `json:"overall_complexity_index"`
	Class         string  `json:"classification"`
	MachiningTime string  `json:"machining_time_category"`
}

// totals are the model-wide counts the indices are built from.
type totals struct {
	faces, edges, vertices    int
	solids, shells, wires     int
	volume, area              float64
	length, width, height     float64
	minEdge, maxEdge, avgEdge float64
}

func reportTotals(rep *Report) totals {
	t := totals{
		faces:  rep.TotalSurfaces,
		volume: rep.TotalVolume,
		area:   rep.TotalArea,
		// Lengths used when a model has no edges.
		minEdge: 0, maxEdge: 1, avgEdge: 1,
	}
	for _, o := range rep.Objects {
		t.edges += o.Topology.Edges
		t.vertices += o.Topology.Vertices
		t.wires += o.Topology.Loops
		if o.Topology.Faces > 0 {
			t.shells++
		}
		if o.Closed {
			t.solids++
		}
	}
	if d := rep.Dimensions; d != nil {
		t.length, t.width, t.height = d.Length, d.Width, d.Height
	}
	if s := rep.EdgeStatistics; s != nil {
		t.minEdge, t.maxEdge, t.avgEdge = s.MinLength, s.MaxLength, s.AvgLength
	}
	return t
}

func complexityMetrics(rep *Report) Metrics {
	t := reportTotals(rep)
	c := rep.Complexity
	var m Metrics

	m.FeatureCount = float64(t.faces) + 0.3*float64(t.edges) + 0.1*float64(t.vertices)
	m.SurfaceDiversity = c.SurfaceDiversity * float64(c.UniqueSurfaceTypes) * 10
	if n := c.CurvedEdges + c.StraightEdges; n > 0 {
		m.Curvature = math.Pow(float64(c.CurvedEdges)/float64(n), 0.7) * 100
	}
	m.Freeform = 20*float64(c.BSplineSurfaces) + 5*float64(c.BSplineEdges) +
		2*float64(rep.SurfaceTypeCounts["Cylinder"])
	if t.maxEdge > 0 && t.avgEdge > 0 {
		spread := 100.0
		if t.minEdge > 0 {
			spread = t.maxEdge / t.minEdge
		}
		m.EdgeComplexity = math.Log10(spread) * 10
	}
	if t.area > 0 {
		m.FaceDensity = float64(t.faces) / (t.area / 100) * 100
	}
	m.Geometric = 0.15*m.FeatureCount + 0.20*m.SurfaceDiversity + 0.25*m.Curvature +
		0.20*m.Freeform + 0.10*m.EdgeComplexity + 0.10*m.FaceDensity

	m.EnvelopeVolume = t.length * t.width * t.height / 1000
	volCM := t.volume / 1000
	if m.EnvelopeVolume > 0 {
		m.VolumeRatio = volCM / m.EnvelopeVolume
		m.MaterialRemoval = math.Max(m.EnvelopeVolume-volCM, 0) / 100
	}
	if t.volume > 0 && t.area > 0 {
		if cf := math.Pow(t.volume, 2.0/3) / t.area; cf < 1 {
			m.Compactness = (1 - cf) * 100
		}
	}
	if maxDim := math.Max(t.length, math.Max(t.width, t.height)); t.minEdge > 0 && maxDim > 0 {
		if r := maxDim / t.minEdge; r > 1 {
			m.FeatureSize = math.Log10(r) * 20
		}
	}
	m.Size = math.Log10(m.EnvelopeVolume+1)*20 + 0.3*m.MaterialRemoval + 0.5*m.Compactness

	m.EulerCharacteristic = t.vertices - t.edges + t.faces
	m.Topological = 10*float64(t.solids) + 5*float64(t.shells) + 2*float64(t.wires) +
		float64(t.faces) + 0.5*float64(t.edges) + 0.2*float64(t.vertices)
	if t.vertices > 0 {
		m.Connectivity = float64(t.edges) / float64(t.vertices) * 10
	}

	m.AxisRequirement = math.Min(math.Min(2*float64(t.faces), 30)+
		3*float64(c.CurvedEdges)+20*float64(c.BSplineSurfaces), 100)
	m.Setup = 5*float64(c.UniqueSurfaceTypes) + 0.5*float64(t.faces)
	ratio := 1.0
	if t.minEdge > 0 && t.maxEdge > 0 {
		ratio = t.maxEdge / t.minEdge
	}
	m.ToolVariety = 5*float64(c.UniqueEdgeTypes) + 3*float64(c.UniqueSurfaceTypes) + 2*math.Log10(ratio)
	factor := 1.0
	switch {
	case t.minEdge < 10:
		factor = 2
	case t.minEdge < 20:
		factor = 1.5
	}
	m.Tolerance = float64(t.faces) * factor
	m.Machining = 0.35*m.AxisRequirement + 0.25*m.Setup + 0.20*m.ToolVariety + 0.20*m.Tolerance

	m.Overall = 0.40*m.Geometric + 0.35*m.Machining + 0.15*m.Size + 0.10*m.Topological
	m.Class, m.MachiningTime = classify(m.Overall)
	return m
}

var complexityBands = []struct {
	below       float64
	class, time string
}{
	{50, "VERY SIMPLE", "< 30 min (3-axis standard)"},
	{100, "SIMPLE", "30-60 min (3-axis)"},
	{200, "MEDIUM", "1-3 hours (3/4-axis)"},
	{400, "COMPLEX", "3-8 hours (4/5-axis)"},
	{700, "VERY COMPLEX", "8-24 hours (5-axis)"},
}

// classify maps an overall index to a class and a machining time estimate.
func classify(overall float64) (class, time string) {
	for _, b := range complexityBands {
		if overall < b.below {
			return b.class, b.time
		}
	}
	return "EXTREMELY COMPLEX", "> 24 hours (5-axis, multiple setups)"
}
