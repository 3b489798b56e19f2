// Package step reads ISO 10303-21 (STEP Part 21) exchange files and
// builds the B-rep model of their solids and shells.
//
// Parsing and model building are separate passes: Parse produces the
// untyped instance graph, Build resolves the geometric and topological
// entities it needs from it.
package step

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/facet/pkg/geomerr"
)

// Kind tags a parameter value.
type Kind int

const (
	KindNull    Kind = iota // $
	KindDerived             // *
	KindInt
	KindReal
	KindString
	KindEnum
	KindRef
	KindList
	KindTyped
	KindBinary
)

// Value is one parameter of a record.
type Value struct {
	Kind Kind
	Num  float64
	Str  string // string, enum, binary and typed-parameter type name
	Ref  int
	List []Value // list items, or the single argument of a typed parameter
}

// Record is an entity name with its parameters.
type Record struct {
	Type   string
	Params []Value
}

// Instance is one numbered DATA entry. Simple instances have a single
// record; complex instances list one record per partial type.
type Instance struct {
	ID      int
	Line    int
	Records []Record
	Complex bool
}

// Type is the entity name of a simple instance, empty for complex ones.
func (in *Instance) Type() string {
	if in.Complex || len(in.Records) == 0 {
		return ""
	}
	return in.Records[0].Type
}

// Part returns the record of the named partial type.
func (in *Instance) Part(name string) (Record, bool) {
	for _, r := range in.Records {
		if r.Type == name {
			return r, true
		}
	}
	return Record{}, false
}

// File is a parsed exchange structure.
type File struct {
	Header    []Record
	Instances map[int]*Instance
	// Order lists instance ids as they appear in the file.
	Order []int
}

// Schema returns the first FILE_SCHEMA identifier, if any.
func (f *File) Schema() string {
	for _, h := range f.Header {
		if h.Type != "FILE_SCHEMA" || len(h.Params) == 0 {
			continue
		}
		if l := h.Params[0]; l.Kind == KindList && len(l.List) > 0 {
			return l.List[0].Str
		}
	}
	return ""
}

type parser struct {
	data []byte
	pos  int
	line int
	path string
}

// Parse reads a Part 21 file. Syntax errors are *geomerr.ParseError with
// the line of the offending token.
func Parse(r io.Reader, path string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &geomerr.ParseError{Path: path, Format: "STEP", Err: err}
	}
	p := &parser{data: data, line: 1, path: path}
	return p.file()
}

func (p *parser) errorf(format string, args ...any) error {
	return &geomerr.ParseError{Path: p.path, Format: "STEP", Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) file() (*File, error) {
	if kw := p.keyword(); kw != "ISO-10303-21" {
		return nil, p.errorf("expected ISO-10303-21, found %q", kw)
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	if kw := p.keyword(); kw != "HEADER" {
		return nil, p.errorf("expected HEADER section, found %q", kw)
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}

	f := &File{Instances: make(map[int]*Instance)}
	for !p.atKeyword("ENDSEC") {
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		f.Header = append(f.Header, rec)
		if err := p.expect(';'); err != nil {
			return nil, err
		}
	}
	p.keyword()
	if err := p.expect(';'); err != nil {
		return nil, err
	}

	for {
		switch kw := p.keyword(); kw {
		case "DATA":
			if p.peek() == '(' {
				if _, err := p.list(); err != nil {
					return nil, err
				}
			}
			if err := p.expect(';'); err != nil {
				return nil, err
			}
			if err := p.data_(f); err != nil {
				return nil, err
			}
		case "END-ISO-10303-21":
			if err := p.expect(';'); err != nil {
				return nil, err
			}
			return f, nil
		case "":
			return nil, p.errorf("unexpected end of file, missing END-ISO-10303-21")
		default:
			return nil, p.errorf("unexpected section %q", kw)
		}
	}
}

func (p *parser) data_(f *File) error {
	for {
		if p.atKeyword("ENDSEC") {
			p.keyword()
			return p.expect(';')
		}
		in, err := p.instance()
		if err != nil {
			return err
		}
		if _, dup := f.Instances[in.ID]; dup {
			return p.errorf("duplicate instance #%d", in.ID)
		}
		f.Instances[in.ID] = in
		f.Order = append(f.Order, in.ID)
	}
}

func (p *parser) instance() (*Instance, error) {
	if err := p.expect('#'); err != nil {
		return nil, err
	}
	in := &Instance{Line: p.line}
	id, err := p.integer()
	if err != nil {
		return nil, err
	}
	in.ID = id
	if err := p.expect('='); err != nil {
		return nil, err
	}

	if p.peek() == '(' {
		in.Complex = true
		p.pos++
		for p.peek() != ')' {
			rec, err := p.record()
			if err != nil {
				return nil, err
			}
			in.Records = append(in.Records, rec)
		}
		p.pos++
		if len(in.Records) == 0 {
			return nil, p.errorf("empty complex instance #%d", id)
		}
	} else {
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		in.Records = []Record{rec}
	}
	return in, p.expect(';')
}

func (p *parser) record() (Record, error) {
	name := p.keyword()
	if name == "" {
		return Record{}, p.errorf("expected entity name, found %q", p.current())
	}
	params, err := p.list()
	if err != nil {
		return Record{}, err
	}
	return Record{Type: strings.ToUpper(name), Params: params}, nil
}

func (p *parser) list() ([]Value, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []Value
	if p.peek() == ')' {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')', found %q", p.current())
		}
	}
}

func (p *parser) value() (Value, error) {
	c := p.peek()
	switch {
	case c == '#':
		p.pos++
		id, err := p.integer()
		return Value{Kind: KindRef, Ref: id}, err
	case c == '\'':
		s, err := p.str()
		return Value{Kind: KindString, Str: s}, err
	case c == '.':
		p.pos++
		name := p.keyword()
		if err := p.expect('.'); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindEnum, Str: strings.ToUpper(name)}, nil
	case c == '*':
		p.pos++
		return Value{Kind: KindDerived}, nil
	case c == '$':
		p.pos++
		return Value{Kind: KindNull}, nil
	case c == '(':
		l, err := p.list()
		return Value{Kind: KindList, List: l}, err
	case c == '"':
		end := bytes.IndexByte(p.data[p.pos+1:], '"')
		if end < 0 {
			return Value{}, p.errorf("unterminated binary value")
		}
		v := Value{Kind: KindBinary, Str: string(p.data[p.pos+1 : p.pos+1+end])}
		p.pos += end + 2
		return v, nil
	case c == '-' || c == '+' || isDigit(c):
		return p.number()
	case isLetter(c):
		name := p.keyword()
		args, err := p.list()
		return Value{Kind: KindTyped, Str: strings.ToUpper(name), List: args}, err
	case c == 0:
		return Value{}, p.errorf("unexpected end of file")
	}
	return Value{}, p.errorf("unexpected character %q", c)
}

func (p *parser) number() (Value, error) {
	start := p.pos
	isReal := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '.' || c == 'E' || c == 'e' {
			isReal = true
		} else if !isDigit(c) && c != '-' && c != '+' {
			break
		}
		p.pos++
	}
	text := string(p.data[start:p.pos])
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, p.errorf("invalid number %q", text)
	}
	if isReal {
		return Value{Kind: KindReal, Num: n}, nil
	}
	return Value{Kind: KindInt, Num: n}, nil
}

func (p *parser) integer() (int, error) {
	start := p.pos
	for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected instance number, found %q", p.current())
	}
	return strconv.Atoi(string(p.data[start:p.pos]))
}

// str reads a quoted string; a doubled quote is a literal quote.
func (p *parser) str() (string, error) {
	var b strings.Builder
	p.pos++
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch {
		case c == '\'' && p.pos < len(p.data) && p.data[p.pos] == '\'':
			b.WriteByte('\'')
			p.pos++
		case c == '\'':
			return b.String(), nil
		default:
			if c == '\n' {
				p.line++
			}
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '*':
			end := bytes.Index(p.data[p.pos+2:], []byte("*/"))
			if end < 0 {
				p.pos = len(p.data)
				return
			}
			p.line += bytes.Count(p.data[p.pos:p.pos+2+end], []byte("\n"))
			p.pos += end + 4
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.data) {
		return 0
	}
	return p.data[p.pos]
}

func (p *parser) current() string {
	if p.peek() == 0 {
		return "EOF"
	}
	end := min(p.pos+12, len(p.data))
	return string(p.data[p.pos:end])
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q, found %q", c, p.current())
	}
	p.pos++
	return nil
}

// keyword reads letters, digits, '_' and '-'. It returns "" when the next
// token is not a keyword.
func (p *parser) keyword() string {
	if !isLetter(p.peek()) {
		return ""
	}
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if !isLetter(c) && !isDigit(c) && c != '_' && c != '-' {
			break
		}
		p.pos++
	}
	return string(p.data[start:p.pos])
}

func (p *parser) atKeyword(kw string) bool {
	p.skipSpace()
	if !bytes.HasPrefix(p.data[p.pos:], []byte(kw)) {
		return false
	}
	next := p.pos + len(kw)
	return next >= len(p.data) || !(isLetter(p.data[next]) || isDigit(p.data[next]) || p.data[next] == '_')
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' }
