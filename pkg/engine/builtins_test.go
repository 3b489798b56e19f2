package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/facet/pkg/brep"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(sphere :radius 2)`,
			expect: `(sphere "__kw_radius" 2)`,
		},
		{
			name:   "multiple keywords",
			input:  `(cylinder :radius 1 :height 4)`,
			expect: `(cylinder "__kw_radius" 1 "__kw_height" 4)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(hole-depth :bolt-dia ref)`,
			expect: `(hole_depth "__kw_bolt-dia" ref)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -1 0 -2.5)`,
			expect: `(vec3 -1 0 -2.5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "unterminated string copied",
			input:  `"open :k`,
			expect: `"open :k`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Solid builtins
// ---------------------------------------------------------------------------

func evalOK(t *testing.T, source string) *brep.Model {
	t.Helper()
	m, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if m == nil {
		t.Fatal("expected non-nil model")
	}
	return m
}

func TestBox(t *testing.T) {
	m := evalOK(t, `(box :size (vec3 2 3 4) :at (vec3 1 1 1) :name "block")`)
	if len(m.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(m.Objects))
	}
	obj := m.Objects[0]
	if obj.Name != "block" {
		t.Errorf("name = %q, want block", obj.Name)
	}
	if len(obj.Faces) != 6 {
		t.Errorf("expected 6 faces, got %d", len(obj.Faces))
	}
	if !obj.Closed {
		t.Error("expected a closed solid")
	}
	box, ok := m.Bounds(1e-6)
	if !ok {
		t.Fatal("expected bounds")
	}
	if box.Min.X != 1 || box.Min.Y != 1 || box.Min.Z != 1 {
		t.Errorf("min = %v, want (1,1,1)", box.Min)
	}
	if math.Abs(box.Max.X-3) > 1e-9 || math.Abs(box.Max.Y-4) > 1e-9 || math.Abs(box.Max.Z-5) > 1e-9 {
		t.Errorf("max = %v, want (3,4,5)", box.Max)
	}
}

func TestDefaultNames(t *testing.T) {
	m := evalOK(t, `
(box :size (vec3 1 1 1))
(sphere :radius 1 :at (vec3 5 0 0))
(cylinder :radius 1 :height 2)
`)
	want := []string{"box1", "sphere2", "cylinder3"}
	if len(m.Objects) != len(want) {
		t.Fatalf("expected %d objects, got %d", len(want), len(m.Objects))
	}
	for i, name := range want {
		if m.Objects[i].Name != name {
			t.Errorf("object %d name = %q, want %q", i, m.Objects[i].Name, name)
		}
	}
	if got := m.FaceCount(); got != 6+1+3 {
		t.Errorf("face count = %d, want 10", got)
	}
}

func TestCylinderAndSphereSurfaces(t *testing.T) {
	m := evalOK(t, `
(cylinder :radius 0.5 :height 2 :at (vec3 5 0 0))
(sphere :radius 2.5)
`)
	cyl := m.Objects[0]
	lateral, ok := cyl.Faces[2].Surface.(*brep.Cylinder)
	if !ok {
		t.Fatalf("expected cylindrical lateral face, got %T", cyl.Faces[2].Surface)
	}
	if lateral.Radius != 0.5 {
		t.Errorf("radius = %g, want 0.5", lateral.Radius)
	}
	if lateral.Frame.Origin.X != 5 {
		t.Errorf("origin = %v, want x=5", lateral.Frame.Origin)
	}

	sph, ok := m.Objects[1].Faces[0].Surface.(*brep.Sphere)
	if !ok {
		t.Fatalf("expected sphere, got %T", m.Objects[1].Faces[0].Surface)
	}
	if sph.Radius != 2.5 {
		t.Errorf("radius = %g, want 2.5", sph.Radius)
	}
}

func TestVariableReference(t *testing.T) {
	m := evalOK(t, `
(def corner (vec3 10 20 30))
(def r 3)
(sphere :radius (* r 2) :at corner :name "ball")
`)
	sph := m.Objects[0].Faces[0].Surface.(*brep.Sphere)
	if sph.Radius != 6 {
		t.Errorf("radius = %g, want 6", sph.Radius)
	}
	if sph.Frame.Origin.X != 10 || sph.Frame.Origin.Y != 20 || sph.Frame.Origin.Z != 30 {
		t.Errorf("centre = %v, want (10,20,30)", sph.Frame.Origin)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"missing size", `(box :at (vec3 0 0 0))`, ":size is required"},
		{"flat box", `(box :size (vec3 1 0 1))`, "must be positive"},
		{"size not vec3", `(box :size 3)`, "expected vec3"},
		{"zero radius", `(sphere :radius 0)`, "must be positive"},
		{"missing height", `(cylinder :radius 1)`, ":height is required"},
		{"unknown keyword", `(sphere :radius 1 :colour "red")`, "unknown keyword :colour"},
		{"positional argument", `(sphere 1)`, "unexpected positional argument"},
		{"bad name", `(sphere :radius 1 :name 7)`, "expected string"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3 arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if m != nil {
				t.Fatal("expected nil model")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestCommentsAndKebabCase(t *testing.T) {
	m := evalOK(t, `
;; a bracket
(def plate-width 40)
(box :size (vec3 plate-width 20 5) :name "plate") ; base plate
`)
	if len(m.Objects) != 1 || m.Objects[0].Name != "plate" {
		t.Fatalf("unexpected objects: %+v", m.Objects)
	}
}
