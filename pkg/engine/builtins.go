package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/facet/pkg/brep"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source into something zygomys accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with script variables.
//  2. kebab-case identifiers become snake_case; zygomys reads a hyphen
//     as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied through untouched.
func preprocessSource(source string) string {
	out := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	for i := 0; i < len(b); {
		switch c := b[i]; {
		case c == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' {
				if b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or size vector.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSolid is the handle returned by the solid builtins.
type sexpSolid struct {
	obj *brep.Object
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(solid %q :faces %d)", s.obj.Name, len(s.obj.Faces))
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports the keyword name of a preprocessed keyword string.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			// Trailing keyword with no value.
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// only rejects keywords outside allowed.
func (a kwArgs) only(fn string, allowed ...string) error {
	var unknown []string
	for k := range a.kw {
		if !contains(allowed, k) {
			unknown = append(unknown, ":"+k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%s: unknown keyword %s", fn, strings.Join(unknown, ", "))
	}
	if len(a.positional) > 0 {
		return fmt.Errorf("%s: unexpected positional argument %s", fn, a.positional[0].SexpString(nil))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// positive reads a required keyword as a number greater than zero.
func positive(fn string, a kwArgs, key string) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return 0, fmt.Errorf("%s: :%s is required", fn, key)
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	if !(f > 0) {
		return 0, fmt.Errorf("%s: %s must be positive, got %g", fn, key, f)
	}
	return f, nil
}

// placement reads the optional :at and :name keywords shared by all solids.
func placement(fn string, a kwArgs, model *brep.Model) (r3.Vec, string, error) {
	var at r3.Vec
	if v, ok := a.kw["at"]; ok {
		p, err := toVec3(v)
		if err != nil {
			return r3.Vec{}, "", fmt.Errorf("%s: at: %w", fn, err)
		}
		at = p
	}
	name := fmt.Sprintf("%s%d", fn, len(model.Objects)+1)
	if v, ok := a.kw["name"]; ok {
		s, err := toString(v)
		if err != nil {
			return r3.Vec{}, "", fmt.Errorf("%s: name: %w", fn, err)
		}
		name = s
	}
	return at, name, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the part-script builtins into env. Every solid
// builtin appends one object to model and returns a handle to it.
//
// Source must be preprocessed with preprocessSource before evaluation so
// that :keyword tokens arrive as recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, model *brep.Model) {

	// -----------------------------------------------------------------------
	// (vec3 x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: argument %d: %w", i+1, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 x y z) :at (vec3 ...) :name "...")
	// :at is the minimum corner.
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("box", "size", "at", "name"); err != nil {
			return zygo.SexpNull, err
		}
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box: :size is required")
		}
		size, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
			return zygo.SexpNull, fmt.Errorf("box: size must be positive on every axis, got %g %g %g", size.X, size.Y, size.Z)
		}
		at, objName, err := placement("box", pa, model)
		if err != nil {
			return zygo.SexpNull, err
		}
		obj := brep.Box(objName, at, size)
		model.Objects = append(model.Objects, obj)
		return &sexpSolid{obj: obj}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :radius r :height h :at (vec3 ...) :name "...")
	// :at is the centre of the bottom cap; the axis is +Z.
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("cylinder", "radius", "height", "at", "name"); err != nil {
			return zygo.SexpNull, err
		}
		radius, err := positive("cylinder", pa, "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		height, err := positive("cylinder", pa, "height")
		if err != nil {
			return zygo.SexpNull, err
		}
		at, objName, err := placement("cylinder", pa, model)
		if err != nil {
			return zygo.SexpNull, err
		}
		obj := brep.CylinderSolid(objName, at, radius, height)
		model.Objects = append(model.Objects, obj)
		return &sexpSolid{obj: obj}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere :radius r :at (vec3 ...) :name "...")
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("sphere", "radius", "at", "name"); err != nil {
			return zygo.SexpNull, err
		}
		radius, err := positive("sphere", pa, "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		at, objName, err := placement("sphere", pa, model)
		if err != nil {
			return zygo.SexpNull, err
		}
		obj := brep.SphereSolid(objName, at, radius)
		model.Objects = append(model.Objects, obj)
		return &sexpSolid{obj: obj}, nil
	})
}
