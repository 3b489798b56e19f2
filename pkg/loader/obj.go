package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ctxEvery is how many lines or records pass between cancellation checks.
const ctxEvery = 4096

// readOBJ reads vertices and faces of a Wavefront OBJ file. Polygons are
// fan-triangulated; texture and normal indices are ignored. Negative
// indices count back from the last vertex read.
func readOBJ(ctx context.Context, r io.Reader, path string) (*kernel.Mesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	m := &kernel.Mesh{}
	line := 0
	fail := func(format string, args ...any) error {
		return &geomerr.ParseError{Path: path, Format: "OBJ", Line: line, Msg: fmt.Sprintf(format, args...)}
	}

	var poly []uint32
	for sc.Scan() {
		line++
		if line%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("loader: obj: %w", err)
			}
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fail("vertex needs 3 coordinates, has %d", len(fields)-1)
			}
			var c [3]float64
			for i := range c {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fail("bad coordinate %q", fields[i+1])
				}
				c[i] = v
			}
			m.Vertices = append(m.Vertices, r3.Vec{X: c[0], Y: c[1], Z: c[2]})

		case "f":
			if len(fields) < 4 {
				return nil, fail("face needs 3 vertices, has %d", len(fields)-1)
			}
			poly = poly[:0]
			for _, ref := range fields[1:] {
				idx, err := objIndex(ref, len(m.Vertices))
				if err != nil {
					return nil, fail("%v", err)
				}
				poly = append(poly, idx)
			}
			for i := 1; i+1 < len(poly); i++ {
				m.Triangles = append(m.Triangles, [3]uint32{poly[0], poly[i], poly[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "OBJ", Line: line + 1, Err: err}
	}
	return m, nil
}

// objIndex resolves one "v", "v/t", "v//n" or "v/t/n" face reference to
// a zero-based vertex index.
func objIndex(ref string, count int) (uint32, error) {
	v, _, _ := strings.Cut(ref, "/")
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("bad vertex reference %q", ref)
	}
	switch {
	case i > 0 && i <= count:
		return uint32(i - 1), nil
	case i < 0 && -i <= count:
		return uint32(count + i), nil
	}
	return 0, fmt.Errorf("vertex reference %d out of range (%d vertices)", i, count)
}
