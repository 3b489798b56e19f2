package brep

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Severity says whether an issue makes part of the model unusable.
type Severity int

const (
	SeverityError   Severity = iota // some faces will not mesh or measure
	SeverityWarning                 // the model is usable as-is
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue codes reported by Validate.
const (
	CodeEmptyObject     = "EMPTY_OBJECT"
	CodeMissingSurface  = "MISSING_SURFACE"
	CodeOpenLoop        = "OPEN_LOOP"
	CodeOpenShell       = "OPEN_SHELL"
	CodeNonManifoldEdge = "NONMANIFOLD_EDGE"
)

// Issue is one topology finding. Face is the global face index, or -1.
type Issue struct {
	Severity Severity
	Code     string
	Object   string
	Face     int
	Message  string
}

func (i Issue) Error() string {
	where := fmt.Sprintf(" (object: %s)", i.Object)
	if i.Face >= 0 {
		where = fmt.Sprintf(" (object: %s, face: %d)", i.Object, i.Face)
	}
	return fmt.Sprintf("%s %s: %s%s", i.Severity, i.Code, i.Message, where)
}

// Validate checks the topology of m. Loop vertices match when they are the
// same vertex or lie within tol of each other.
func Validate(m *Model, tol float64) []Issue {
	var issues []Issue
	face := 0
	for _, o := range m.Objects {
		if len(o.Faces) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     CodeEmptyObject,
				Object:   o.Name,
				Face:     -1,
				Message:  "object has no faces",
			})
			continue
		}
		for _, f := range o.Faces {
			issues = append(issues, validateFace(o, f, face, tol)...)
			face++
		}
		if o.Closed {
			issues = append(issues, validateShell(o)...)
		}
	}
	return issues
}

func validateFace(o *Object, f *Face, index int, tol float64) []Issue {
	var issues []Issue
	if f.Surface == nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeMissingSurface,
			Object:   o.Name,
			Face:     index,
			Message:  "face has no surface",
		})
	}
	for li, l := range f.Loops {
		if gap, ok := loopGap(l, tol); !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeOpenLoop,
				Object:   o.Name,
				Face:     index,
				Message:  fmt.Sprintf("loop %d does not close: gap %.4g", li, gap),
			})
		}
	}
	return issues
}

// loopGap returns the widest break between consecutive edges of l.
func loopGap(l Loop, tol float64) (float64, bool) {
	n := len(l.Edges)
	worst := 0.0
	for i, oe := range l.Edges {
		next := l.Edges[(i+1)%n]
		end, start := oe.end(), next.start()
		if end == nil || start == nil || end == start {
			continue
		}
		worst = max(worst, r3.Norm(r3.Sub(end.Point, start.Point)))
	}
	return worst, worst <= tol
}

func (oe OrientedEdge) start() *Vertex {
	if oe.Reversed {
		return oe.Edge.End
	}
	return oe.Edge.Start
}

func (oe OrientedEdge) end() *Vertex {
	if oe.Reversed {
		return oe.Edge.Start
	}
	return oe.Edge.End
}

// validateShell checks that every edge of a closed object is used exactly
// twice. A seam counts twice within one face.
func validateShell(o *Object) []Issue {
	uses := make(map[*Edge]int)
	for _, f := range o.Faces {
		for _, l := range f.Loops {
			for _, oe := range l.Edges {
				uses[oe.Edge]++
			}
		}
	}
	var open, nonManifold int
	for _, n := range uses {
		switch {
		case n < 2:
			open++
		case n > 2:
			nonManifold++
		}
	}
	var issues []Issue
	if open > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeOpenShell,
			Object:   o.Name,
			Face:     -1,
			Message:  fmt.Sprintf("closed object has %d free edges", open),
		})
	}
	if nonManifold > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeNonManifoldEdge,
			Object:   o.Name,
			Face:     -1,
			Message:  fmt.Sprintf("%d edges are shared by more than two face sides", nonManifold),
		})
	}
	return issues
}
