// Package geomerr defines the typed failures surfaced by the conversion
// pipeline. Callers branch on them with errors.As; every type names the
// stage it came from so a failure can be diagnosed without re-running.
package geomerr

import (
	"errors"
	"fmt"
)

// UnsupportedFormatError is returned when an input path has an extension
// no loader handles. It is raised before the file is opened.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported format: %s has no extension", e.Path)
	}
	return fmt.Sprintf("unsupported format %q: %s", e.Ext, e.Path)
}

// ParseError reports malformed input. Line is 1-based when known; Offset
// is a byte offset for binary formats.
type ParseError struct {
	Path   string
	Format string
	Line   int
	Offset int64
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	loc := ""
	switch {
	case e.Line > 0:
		loc = fmt.Sprintf(" line %d", e.Line)
	case e.Offset > 0:
		loc = fmt.Sprintf(" offset %d", e.Offset)
	}
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	return fmt.Sprintf("parse %s%s: %s: %s", e.Format, loc, e.Path, msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GeometryLoadError means the input parsed but did not yield a usable
// model (no faces, unresolved references, unsupported payload).
type GeometryLoadError struct {
	Path  string
	Stage string
	Err   error
}

func (e *GeometryLoadError) Error() string {
	return fmt.Sprintf("load geometry %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *GeometryLoadError) Unwrap() error { return e.Err }

// EmptyMeshError is returned by stages that need at least one
// non-degenerate triangle.
type EmptyMeshError struct {
	Stage     string
	Triangles int
}

func (e *EmptyMeshError) Error() string {
	return fmt.Sprintf("%s: mesh has no non-degenerate triangles (%d total)", e.Stage, e.Triangles)
}

// InvalidResolutionError rejects a voxel resolution below 1.
type InvalidResolutionError struct {
	Resolution int
}

func (e *InvalidResolutionError) Error() string {
	return fmt.Sprintf("voxel: resolution must be positive, got %d", e.Resolution)
}

// InvalidViewCountError rejects a multiview request for fewer than one view.
type InvalidViewCountError struct {
	Count int
}

func (e *InvalidViewCountError) Error() string {
	return fmt.Sprintf("render: view count must be at least 1, got %d", e.Count)
}

// ProjectionError reports geometry that cannot be projected at all.
type ProjectionError struct {
	View string
	Msg  string
}

func (e *ProjectionError) Error() string {
	if e.View == "" {
		return "drawing: " + e.Msg
	}
	return fmt.Sprintf("drawing: %s view: %s", e.View, e.Msg)
}

// UnsupportedTargetError rejects an unknown output target, or one the
// loaded input cannot feed (analysis and drawings need a B-rep).
type UnsupportedTargetError struct {
	Target string
	// Format is the input format when the target is known but unusable.
	Format string
}

func (e *UnsupportedTargetError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("unsupported target %q", e.Target)
	}
	return fmt.Sprintf("target %s needs a B-rep input, got %s", e.Target, e.Format)
}

// IsInput reports whether err is the caller's fault: a bad file or a bad
// parameter. The service maps these to 4xx responses.
func IsInput(err error) bool {
	var (
		uf *UnsupportedFormatError
		pe *ParseError
		ir *InvalidResolutionError
		iv *InvalidViewCountError
		ut *UnsupportedTargetError
	)
	return errors.As(err, &uf) || errors.As(err, &pe) || errors.As(err, &ir) ||
		errors.As(err, &iv) || errors.As(err, &ut)
}

// IsGeometry reports whether err came from unusable geometry.
func IsGeometry(err error) bool {
	var (
		gl *GeometryLoadError
		em *EmptyMeshError
		pr *ProjectionError
	)
	return errors.As(err, &gl) || errors.As(err, &em) || errors.As(err, &pr)
}
