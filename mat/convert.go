package mat

import (
	"fmt"
	"sort"
)

// FromGo converts a native Go value into codec form. Codec values
// ([Array], [Text], [Struct], [Cell], [Ref]) pass through unchanged, so
// callers needing exact control over element kinds or shapes can build
// them directly.
func FromGo(v any, opts Options) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Empty(), nil
	case Array, Text, Cell, Ref:
		return val.(Value), nil
	case Struct:
		return val, nil
	case *Struct:
		return *val, nil

	case bool:
		return boolArray([]bool{val}, []int{1, 1}), nil
	case string:
		return Text(val), nil

	case float64:
		return Scalar(val), nil
	case float32:
		return Array{Kind: Single, Dims: []int{1, 1}, Real: []float64{float64(val)}}, nil
	case complex128:
		return Array{Kind: Double, Dims: []int{1, 1}, Real: []float64{real(val)}, Imag: []float64{imag(val)}}, nil
	case complex64:
		return Array{Kind: Double, Dims: []int{1, 1}, Real: []float64{float64(real(val))}, Imag: []float64{float64(imag(val))}}, nil

	case int:
		return intScalar(float64(val), Int64, opts), nil
	case int8:
		return intScalar(float64(val), Int8, opts), nil
	case int16:
		return intScalar(float64(val), Int16, opts), nil
	case int32:
		return intScalar(float64(val), Int32, opts), nil
	case int64:
		return intScalar(float64(val), Int64, opts), nil
	case uint:
		return intScalar(float64(val), Uint64, opts), nil
	case uint8:
		return intScalar(float64(val), Uint8, opts), nil
	case uint16:
		return intScalar(float64(val), Uint16, opts), nil
	case uint32:
		return intScalar(float64(val), Uint32, opts), nil
	case uint64:
		return intScalar(float64(val), Uint64, opts), nil

	case []float64:
		return vector(val, Double, opts), nil
	case []float32:
		return vector(toFloats(val, func(v float32) float64 { return float64(v) }), Single, opts), nil
	case []int:
		return intVector(toFloats(val, func(v int) float64 { return float64(v) }), Int64, opts), nil
	case []int32:
		return intVector(toFloats(val, func(v int32) float64 { return float64(v) }), Int32, opts), nil
	case []int64:
		return intVector(toFloats(val, func(v int64) float64 { return float64(v) }), Int64, opts), nil
	case []byte:
		return intVector(toFloats(val, func(v byte) float64 { return float64(v) }), Uint8, opts), nil
	case []bool:
		return boolArray(val, vecDims(len(val), opts)), nil
	case []complex128:
		re := make([]float64, len(val))
		im := make([]float64, len(val))
		for i, c := range val {
			re[i] = real(c)
			im[i] = imag(c)
		}
		a := vector(re, Double, opts)
		a.Imag = im
		return a, nil

	case [][]float64:
		return matrix(val)

	case []string:
		out := make(Cell, len(val))
		for i, s := range val {
			out[i] = Text(s)
		}
		return out, nil

	case []any:
		out := make(Cell, len(val))
		for i, e := range val {
			cv, err := FromGo(e, opts)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil

	case map[string]any:
		// Go maps are unordered; sort names for a deterministic
		// container. Use Struct directly when field order matters.
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		var s Struct
		for _, name := range names {
			fv, err := FromGo(val[name], opts)
			if err != nil {
				return nil, err
			}
			s.Set(name, fv)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: host type %T", ErrUnsupported, v)
	}
}

func toFloats[T any](in []T, conv func(T) float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}

func vecDims(n int, opts Options) []int {
	if n == 0 {
		return []int{0, 0}
	}
	if opts.OnedAs == Column {
		return []int{n, 1}
	}
	return []int{1, n}
}

func vector(elems []float64, kind Kind, opts Options) Array {
	return Array{Kind: kind, Dims: vecDims(len(elems), opts), Real: elems}
}

func intScalar(v float64, kind Kind, opts Options) Array {
	if opts.ConvertToFloat {
		kind = Double
	}
	return Array{Kind: kind, Dims: []int{1, 1}, Real: []float64{v}}
}

func intVector(elems []float64, kind Kind, opts Options) Array {
	if opts.ConvertToFloat {
		kind = Double
	}
	return vector(elems, kind, opts)
}

func boolArray(elems []bool, dims []int) Array {
	data := make([]float64, len(elems))
	for i, b := range elems {
		if b {
			data[i] = 1
		}
	}
	return Array{Kind: Uint8, Dims: dims, Real: data, Logical: true}
}

// matrix converts a rectangular row-major [][]float64 into a 2-D array.
func matrix(rows [][]float64) (Value, error) {
	if len(rows) == 0 {
		return Empty(), nil
	}
	cols := len(rows[0])
	for _, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: ragged matrix rows", ErrUnsupported)
		}
	}
	data := make([]float64, len(rows)*cols)
	for c := 0; c < cols; c++ {
		for r := 0; r < len(rows); r++ {
			data[c*len(rows)+r] = rows[r][c]
		}
	}
	return Array{Kind: Double, Dims: []int{len(rows), cols}, Real: data}, nil
}

// RecordField is one entry of a Record.
type RecordField struct {
	Name  string
	Value any
}

// Record is the host form of a decoded struct: an ordered list of
// name/value pairs with already-converted values.
type Record []RecordField

// Get returns the named entry's value.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// ToGo converts a codec value into a native Go value:
//
//   - Text becomes string
//   - Cell becomes []any
//   - Struct becomes Record
//   - Ref passes through as the raw reference token
//   - empty arrays become nil
//   - scalar arrays become float64, complex128, or bool
//   - vectors become []float64, []complex128, or []bool
//   - 2-D real arrays become row-major [][]float64
//   - anything else (N-D, complex matrices) stays an Array
func ToGo(v Value) any {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Ref:
		return val
	case Cell:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToGo(e)
		}
		return out
	case Struct:
		out := make(Record, 0, len(val.Fields))
		for _, f := range val.Fields {
			out = append(out, RecordField{Name: f.Name, Value: ToGo(f.Value)})
		}
		return out
	case *Struct:
		return ToGo(*val)
	case Array:
		return arrayToGo(val)
	}
	return v
}

func arrayToGo(a Array) any {
	n := a.NumElem()
	if n == 0 || len(a.Real) == 0 {
		return nil
	}

	if a.Logical {
		if a.IsScalar() {
			return a.Real[0] != 0
		}
		if a.IsVector() {
			out := make([]bool, len(a.Real))
			for i, v := range a.Real {
				out[i] = v != 0
			}
			return out
		}
		return a
	}

	if a.Imag != nil {
		if a.IsScalar() {
			return complex(a.Real[0], a.Imag[0])
		}
		if a.IsVector() {
			out := make([]complex128, len(a.Real))
			for i := range a.Real {
				out[i] = complex(a.Real[i], a.Imag[i])
			}
			return out
		}
		return a
	}

	if a.IsScalar() {
		return a.Real[0]
	}
	if a.IsVector() {
		out := make([]float64, len(a.Real))
		copy(out, a.Real)
		return out
	}
	if len(a.Dims) == 2 {
		rows, cols := a.Dims[0], a.Dims[1]
		out := make([][]float64, rows)
		for r := 0; r < rows; r++ {
			out[r] = make([]float64, cols)
			for c := 0; c < cols; c++ {
				out[r][c] = a.Real[c*rows+r]
			}
		}
		return out
	}
	return a
}
