package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 50
)

// welder merges vertices with identical coordinates.
type welder struct {
	m     *kernel.Mesh
	index map[r3.Vec]uint32
}

func newWelder() *welder {
	return &welder{m: &kernel.Mesh{}, index: make(map[r3.Vec]uint32)}
}

func (w *welder) add(p r3.Vec) uint32 {
	if i, ok := w.index[p]; ok {
		return i
	}
	i := uint32(len(w.m.Vertices))
	w.m.Vertices = append(w.m.Vertices, p)
	w.index[p] = i
	return i
}

func (w *welder) triangle(a, b, c r3.Vec) {
	w.m.Triangles = append(w.m.Triangles, [3]uint32{w.add(a), w.add(b), w.add(c)})
}

// readSTL reads binary or ASCII STL. A file is binary when its size
// matches the triangle count in its header; otherwise it must start with
// "solid".
func readSTL(r io.Reader, path string) (*kernel.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "STL", Err: err}
	}
	if len(data) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if int64(len(data)) == stlHeaderSize+4+int64(n)*stlRecordSize {
			return readBinarySTL(data, int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return readASCIISTL(data, path)
	}
	if len(data) < stlHeaderSize+4 {
		return nil, &geomerr.ParseError{Path: path, Format: "STL", Offset: int64(len(data)), Msg: "truncated binary header"}
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return nil, &geomerr.ParseError{
		Path:   path,
		Format: "STL",
		Offset: int64(len(data)),
		Msg:    fmt.Sprintf("binary size %d does not match %d triangles", len(data), n),
	}
}

func readBinarySTL(data []byte, n int) *kernel.Mesh {
	w := newWelder()
	off := stlHeaderSize + 4
	vec := func(at int) r3.Vec {
		f := func(k int) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[at+4*k:])))
		}
		return r3.Vec{X: f(0), Y: f(1), Z: f(2)}
	}
	for range n {
		// The stored normal is ignored; winding defines orientation.
		w.triangle(vec(off+12), vec(off+24), vec(off+36))
		off += stlRecordSize
	}
	return w.m
}

func readASCIISTL(data []byte, path string) (*kernel.Mesh, error) {
	w := newWelder()
	line := 0
	fail := func(format string, args ...any) error {
		return &geomerr.ParseError{Path: path, Format: "STL", Line: line, Msg: fmt.Sprintf(format, args...)}
	}
	var corners []r3.Vec
	inLoop := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid", "endsolid", "facet":
		case "outer":
			inLoop, corners = true, corners[:0]
		case "vertex":
			if !inLoop {
				return nil, fail("vertex outside a loop")
			}
			if len(fields) != 4 {
				return nil, fail("vertex needs 3 coordinates")
			}
			var c [3]float64
			for i := range c {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fail("bad coordinate %q", fields[i+1])
				}
				c[i] = v
			}
			corners = append(corners, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
		case "endloop":
			if len(corners) != 3 {
				return nil, fail("facet has %d vertices, want 3", len(corners))
			}
			w.triangle(corners[0], corners[1], corners[2])
			inLoop = false
		case "endfacet":
		default:
			return nil, fail("unexpected keyword %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "STL", Line: line + 1, Err: err}
	}
	if inLoop {
		return nil, fail("unterminated facet")
	}
	return w.m, nil
}

// WriteSTL writes mesh as binary or ASCII STL. Coordinates are stored as
// float32 in both forms so that either reloads to the same vertices.
func WriteSTL(w io.Writer, mesh *kernel.Mesh, binaryForm bool) error {
	bw := bufio.NewWriter(w)
	var err error
	if binaryForm {
		err = writeBinarySTL(bw, mesh)
	} else {
		err = writeASCIISTL(bw, mesh)
	}
	if err != nil {
		return fmt.Errorf("loader: write stl: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("loader: write stl: %w", err)
	}
	return nil
}

func writeBinarySTL(w io.Writer, mesh *kernel.Mesh) error {
	header := make([]byte, stlHeaderSize+4)
	copy(header, "facet binary STL "+mesh.PartName)
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(mesh.TriangleCount()))
	if _, err := w.Write(header); err != nil {
		return err
	}
	var rec [stlRecordSize]byte
	put := func(at int, v r3.Vec) {
		binary.LittleEndian.PutUint32(rec[at:], math.Float32bits(float32(v.X)))
		binary.LittleEndian.PutUint32(rec[at+4:], math.Float32bits(float32(v.Y)))
		binary.LittleEndian.PutUint32(rec[at+8:], math.Float32bits(float32(v.Z)))
	}
	for i := range mesh.Triangles {
		t := mesh.Triangle(i)
		put(0, mesh.Normal(i))
		put(12, t[0])
		put(24, t[1])
		put(36, t[2])
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeASCIISTL(w io.Writer, mesh *kernel.Mesh) error {
	name := mesh.PartName
	if name == "" {
		name = "facet"
	}
	ew := &errWriter{w: w}
	ew.printf("solid %s\n", name)
	for i := range mesh.Triangles {
		t := mesh.Triangle(i)
		ew.printf("  facet normal %s\n    outer loop\n", vec32(mesh.Normal(i)))
		for _, p := range t {
			ew.printf("      vertex %s\n", vec32(p))
		}
		ew.printf("    endloop\n  endfacet\n")
	}
	ew.printf("endsolid %s\n", name)
	return ew.err
}

// vec32 formats v with the shortest text that reads back to the same
// float32 values.
func vec32(v r3.Vec) string {
	f := func(x float64) string { return strconv.FormatFloat(float64(float32(x)), 'e', -1, 32) }
	return f(v.X) + " " + f(v.Y) + " " + f(v.Z)
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
