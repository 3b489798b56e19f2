package loader

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/facet/pkg/geomerr"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/sample"
	"gonum.org/v1/gonum/spatial/r3"
)

type plyProperty struct {
	name string
	typ  string
	// list properties carry a count type; typ is then the item type.
	countTyp string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	binary   bool
	elements []plyElement
	lines    int
	size     int64
}

var plySizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4, "float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

func readPLYHeader(br *bufio.Reader, path string) (*plyHeader, error) {
	h := &plyHeader{}
	fail := func(format string, args ...any) error {
		return &geomerr.ParseError{Path: path, Format: "PLY", Line: h.lines, Msg: fmt.Sprintf(format, args...)}
	}
	for {
		text, err := br.ReadString('\n')
		h.lines++
		h.size += int64(len(text))
		if err != nil && (err != io.EOF || text == "") {
			return nil, fail("header ends before end_header")
		}
		fields := strings.Fields(text)
		if h.lines == 1 {
			if len(fields) != 1 || fields[0] != "ply" {
				return nil, fail("missing ply signature")
			}
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fail("format line needs a type")
			}
			switch fields[1] {
			case "ascii":
			case "binary_little_endian":
				h.binary = true
			default:
				return nil, fail("unsupported format %q", fields[1])
			}
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return nil, fail("element line needs a name and a count")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fail("bad element count %q", fields[2])
			}
			h.elements = append(h.elements, plyElement{name: fields[1], count: n})
		case "property":
			if len(h.elements) == 0 {
				return nil, fail("property before any element")
			}
			el := &h.elements[len(h.elements)-1]
			var p plyProperty
			switch {
			case len(fields) == 5 && fields[1] == "list":
				p = plyProperty{countTyp: fields[2], typ: fields[3], name: fields[4]}
				if plySizes[p.countTyp] == 0 {
					return nil, fail("unknown type %q", p.countTyp)
				}
			case len(fields) == 3:
				p = plyProperty{typ: fields[1], name: fields[2]}
			default:
				return nil, fail("malformed property line")
			}
			if plySizes[p.typ] == 0 {
				return nil, fail("unknown type %q", p.typ)
			}
			el.props = append(el.props, p)
		case "end_header":
			return h, nil
		default:
			return nil, fail("unexpected header keyword %q", fields[0])
		}
	}
}

// plyValues yields scalar values from the body in file order.
type plyValues interface {
	next(typ string) (float64, error)
	// where locates the last value for error reports.
	where() (line int, offset int64)
}

type asciiValues struct {
	br     *bufio.Reader
	fields []string
	line   int
}

func (a *asciiValues) next(string) (float64, error) {
	for len(a.fields) == 0 {
		text, err := a.br.ReadString('\n')
		if text == "" && err != nil {
			return 0, io.ErrUnexpectedEOF
		}
		a.line++
		a.fields = strings.Fields(text)
	}
	tok := a.fields[0]
	a.fields = a.fields[1:]
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", tok)
	}
	return v, nil
}

func (a *asciiValues) where() (int, int64) { return a.line, 0 }

type binaryValues struct {
	r   io.Reader
	buf [8]byte
	off int64
}

func (b *binaryValues) next(typ string) (float64, error) {
	n := plySizes[typ]
	if _, err := io.ReadFull(b.r, b.buf[:n]); err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	b.off += int64(n)
	le := binary.LittleEndian
	switch typ {
	case "char", "int8":
		return float64(int8(b.buf[0])), nil
	case "uchar", "uint8":
		return float64(b.buf[0]), nil
	case "short", "int16":
		return float64(int16(le.Uint16(b.buf[:]))), nil
	case "ushort", "uint16":
		return float64(le.Uint16(b.buf[:])), nil
	case "int", "int32":
		return float64(int32(le.Uint32(b.buf[:]))), nil
	case "uint", "uint32":
		return float64(le.Uint32(b.buf[:])), nil
	case "float", "float32":
		return float64(math.Float32frombits(le.Uint32(b.buf[:]))), nil
	default:
		return math.Float64frombits(le.Uint64(b.buf[:])), nil
	}
}

func (b *binaryValues) where() (int, int64) { return 0, b.off }

// readPLY reads the vertex and face elements. Other elements are read and
// discarded. A file without faces becomes a point cloud whose points have
// no source triangle.
func readPLY(ctx context.Context, r io.Reader, path string) (*kernel.Mesh, *sample.PointCloud, error) {
	br := bufio.NewReader(r)
	h, err := readPLYHeader(br, path)
	if err != nil {
		return nil, nil, err
	}
	var vals plyValues
	if h.binary {
		vals = &binaryValues{r: br, off: h.size}
	} else {
		vals = &asciiValues{br: br, line: h.lines}
	}
	fail := func(msg string, err error) error {
		line, off := vals.where()
		return &geomerr.ParseError{Path: path, Format: "PLY", Line: line, Offset: off, Msg: msg, Err: err}
	}

	m := &kernel.Mesh{}
	var normals []r3.Vec
	hasFaces := false
	for _, el := range h.elements {
		var props map[string]int
		if el.name == "vertex" {
			props = make(map[string]int)
			for i, p := range el.props {
				props[p.name] = i
			}
			for _, axis := range []string{"x", "y", "z"} {
				if _, ok := props[axis]; !ok {
					return nil, nil, fail("vertex element has no "+axis+" property", nil)
				}
			}
		}
		_, hasNormal := props["nx"]
		row := make([]float64, len(el.props))
		for i := range el.count {
			if i%ctxEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, nil, fmt.Errorf("loader: ply: %w", err)
				}
			}
			var face []uint32
			for j, p := range el.props {
				if p.countTyp == "" {
					v, err := vals.next(p.typ)
					if err != nil {
						return nil, nil, fail(fmt.Sprintf("%s %d", el.name, i), err)
					}
					row[j] = v
					continue
				}
				n, err := vals.next(p.countTyp)
				if err != nil {
					return nil, nil, fail(fmt.Sprintf("%s %d", el.name, i), err)
				}
				isIndex := el.name == "face" && (p.name == "vertex_indices" || p.name == "vertex_index")
				for range int(n) {
					v, err := vals.next(p.typ)
					if err != nil {
						return nil, nil, fail(fmt.Sprintf("%s %d", el.name, i), err)
					}
					if isIndex {
						if v < 0 || int(v) >= len(m.Vertices) {
							return nil, nil, fail(fmt.Sprintf("face %d", i), fmt.Errorf("index %d out of range", int(v)))
						}
						face = append(face, uint32(v))
					}
				}
			}
			switch el.name {
			case "vertex":
				m.Vertices = append(m.Vertices, r3.Vec{X: row[props["x"]], Y: row[props["y"]], Z: row[props["z"]]})
				if hasNormal {
					normals = append(normals, r3.Vec{X: row[props["nx"]], Y: row[props["ny"]], Z: row[props["nz"]]})
				}
			case "face":
				hasFaces = true
				if len(face) < 3 {
					return nil, nil, fail(fmt.Sprintf("face %d", i), errors.New("fewer than 3 vertices"))
				}
				for k := 1; k+1 < len(face); k++ {
					m.Triangles = append(m.Triangles, [3]uint32{face[0], face[k], face[k+1]})
				}
			}
		}
	}

	if hasFaces || len(m.Vertices) == 0 {
		return m, nil, nil
	}
	pc := &sample.PointCloud{Points: m.Vertices, Normals: normals, Triangles: make([]int, len(m.Vertices))}
	for i := range pc.Triangles {
		pc.Triangles[i] = -1
	}
	return nil, pc, nil
}

// WritePLY writes mesh vertices and, when present, triangles as ASCII or
// binary little-endian PLY.
func WritePLY(w io.Writer, mesh *kernel.Mesh, binaryForm bool) error {
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}
	writePLYHeader(ew, binaryForm, mesh.VertexCount(), false, mesh.TriangleCount())
	for _, v := range mesh.Vertices {
		writePLYRow(ew, binaryForm, v)
	}
	for _, t := range mesh.Triangles {
		if binaryForm {
			var rec [13]byte
			rec[0] = 3
			for k, idx := range t {
				binary.LittleEndian.PutUint32(rec[1+4*k:], idx)
			}
			ew.write(rec[:])
		} else {
			ew.printf("3 %d %d %d\n", t[0], t[1], t[2])
		}
	}
	if ew.err == nil {
		ew.err = bw.Flush()
	}
	if ew.err != nil {
		return fmt.Errorf("loader: write ply: %w", ew.err)
	}
	return nil
}

// WritePointCloudPLY writes a point cloud with its normals, when it has
// them, as vertex-only PLY.
func WritePointCloudPLY(w io.Writer, pc *sample.PointCloud, binaryForm bool) error {
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}
	withNormals := len(pc.Normals) == len(pc.Points) && len(pc.Points) > 0
	writePLYHeader(ew, binaryForm, pc.Len(), withNormals, 0)
	for i, p := range pc.Points {
		if withNormals {
			writePLYRow(ew, binaryForm, p, pc.Normals[i])
		} else {
			writePLYRow(ew, binaryForm, p)
		}
	}
	if ew.err == nil {
		ew.err = bw.Flush()
	}
	if ew.err != nil {
		return fmt.Errorf("loader: write ply: %w", ew.err)
	}
	return nil
}

func writePLYHeader(ew *errWriter, binaryForm bool, vertices int, normals bool, faces int) {
	format := "ascii"
	if binaryForm {
		format = "binary_little_endian"
	}
	ew.printf("ply\nformat %s 1.0\ncomment facet\nelement vertex %d\n", format, vertices)
	ew.printf("property float x\nproperty float y\nproperty float z\n")
	if normals {
		ew.printf("property float nx\nproperty float ny\nproperty float nz\n")
	}
	if faces > 0 {
		ew.printf("element face %d\nproperty list uchar int vertex_indices\n", faces)
	}
	ew.printf("end_header\n")
}

func writePLYRow(ew *errWriter, binaryForm bool, vs ...r3.Vec) {
	if binaryForm {
		rec := make([]byte, 0, 12*len(vs))
		for _, v := range vs {
			for _, x := range [3]float64{v.X, v.Y, v.Z} {
				rec = binary.LittleEndian.AppendUint32(rec, math.Float32bits(float32(x)))
			}
		}
		ew.write(rec)
		return
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = vec32(v)
	}
	ew.printf("%s\n", strings.Join(parts, " "))
}

func (e *errWriter) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}
