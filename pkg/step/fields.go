package step

import "fmt"

// fields reads typed parameters from a record. The first failure is kept
// in err and later reads return zero values.
type fields struct {
	r   Record
	err error
}

func (b *builder) fields(r Record) *fields { return &fields{r: r} }

func (f *fields) param(i int) (Value, bool) {
	if f.err != nil {
		return Value{}, false
	}
	if i >= len(f.r.Params) {
		f.err = fmt.Errorf("%s: missing parameter %d", f.r.Type, i)
		return Value{}, false
	}
	return f.r.Params[i], true
}

func (f *fields) fail(i int, want string, v Value) {
	f.err = fmt.Errorf("%s: parameter %d: expected %s, found %s", f.r.Type, i, want, kindName(v.Kind))
}

func (f *fields) str(i int) string {
	v, ok := f.param(i)
	if !ok {
		return ""
	}
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNull, KindDerived:
		return ""
	}
	f.fail(i, "string", v)
	return ""
}

func (f *fields) ref(i int) int {
	v, ok := f.param(i)
	if !ok {
		return 0
	}
	if v.Kind != KindRef {
		f.fail(i, "reference", v)
		return 0
	}
	return v.Ref
}

// optRef reads a reference that may be unset.
func (f *fields) optRef(i int) (int, bool) {
	v, ok := f.param(i)
	if !ok || v.Kind == KindNull {
		return 0, false
	}
	if v.Kind != KindRef {
		f.fail(i, "reference", v)
		return 0, false
	}
	return v.Ref, true
}

func (f *fields) num(i int) float64 {
	v, ok := f.param(i)
	if !ok {
		return 0
	}
	n, ok := number(v)
	if !ok {
		f.fail(i, "number", v)
	}
	return n
}

// number accepts plain and typed numbers such as LENGTH_MEASURE(2.).
func number(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt, KindReal:
		return v.Num, true
	case KindTyped:
		if len(v.List) == 1 {
			return number(v.List[0])
		}
	}
	return 0, false
}

// flag reads a .T./.F. logical; .U. reads as true.
func (f *fields) flag(i int) bool {
	v, ok := f.param(i)
	if !ok {
		return true
	}
	if v.Kind != KindEnum {
		f.fail(i, "logical", v)
		return true
	}
	return v.Str != "F"
}

func (f *fields) list(i int) []Value {
	v, ok := f.param(i)
	if !ok {
		return nil
	}
	if v.Kind != KindList {
		f.fail(i, "list", v)
		return nil
	}
	return v.List
}

func (f *fields) refs(i int) []int {
	l := f.list(i)
	out := make([]int, 0, len(l))
	for _, v := range l {
		if v.Kind != KindRef {
			f.fail(i, "list of references", v)
			return nil
		}
		out = append(out, v.Ref)
	}
	return out
}

func (f *fields) nums(i int) []float64 {
	l := f.list(i)
	out := make([]float64, 0, len(l))
	for _, v := range l {
		n, ok := number(v)
		if !ok {
			f.fail(i, "list of numbers", v)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (f *fields) ints(i int) []int {
	ns := f.nums(i)
	out := make([]int, len(ns))
	for j, n := range ns {
		out[j] = int(n)
	}
	return out
}

func (f *fields) grid(i int) [][]int {
	l := f.list(i)
	out := make([][]int, 0, len(l))
	for _, row := range l {
		if row.Kind != KindList {
			f.fail(i, "list of lists", row)
			return nil
		}
		refs := make([]int, 0, len(row.List))
		for _, v := range row.List {
			if v.Kind != KindRef {
				f.fail(i, "list of reference lists", v)
				return nil
			}
			refs = append(refs, v.Ref)
		}
		out = append(out, refs)
	}
	return out
}

func (f *fields) numGrid(i int) [][]float64 {
	l := f.list(i)
	out := make([][]float64, 0, len(l))
	for _, row := range l {
		if row.Kind != KindList {
			f.fail(i, "list of lists", row)
			return nil
		}
		ns := make([]float64, 0, len(row.List))
		for _, v := range row.List {
			n, ok := number(v)
			if !ok {
				f.fail(i, "list of number lists", v)
				return nil
			}
			ns = append(ns, n)
		}
		out = append(out, ns)
	}
	return out
}

func kindName(k Kind) string {
	switch k {
	case KindNull:
		return "$"
	case KindDerived:
		return "*"
	case KindInt:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindEnum:
		return "enumeration"
	case KindRef:
		return "reference"
	case KindList:
		return "list"
	case KindTyped:
		return "typed value"
	case KindBinary:
		return "binary"
	}
	return "unknown"
}
