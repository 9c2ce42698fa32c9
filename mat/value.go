package mat

// Kind identifies the element type of a numeric Array.
type Kind int

// Element kinds, mirroring the MAT 5 numeric array classes.
const (
	Double Kind = iota
	Single
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
)

// String returns the Octave name for the kind.
func (k Kind) String() string {
	switch k {
	case Double:
		return "double"
	case Single:
		return "single"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	}
	return "unknown"
}

// integer reports whether the kind is an integer class.
func (k Kind) integer() bool {
	return k != Double && k != Single
}

// Value is the codec's intermediate representation for marshalled data.
// The concrete types are [Array], [Text], [Struct], [Cell], and [Ref].
type Value interface {
	isValue()
}

// Array is a numeric N-dimensional array. Real (and Imag, when the array
// is complex) hold the elements in column-major order, the order they
// appear in the container. Logical marks a boolean array; logical arrays
// use Kind Uint8 storage with zero/one elements.
type Array struct {
	Kind    Kind
	Dims    []int
	Real    []float64
	Imag    []float64
	Logical bool
}

func (Array) isValue() {}

// Scalar returns a 1x1 double array holding v.
func Scalar(v float64) Array {
	return Array{Kind: Double, Dims: []int{1, 1}, Real: []float64{v}}
}

// Empty returns a 0x0 double array, the container's null value.
func Empty() Array {
	return Array{Kind: Double, Dims: []int{0, 0}}
}

// NumElem returns the total element count implied by Dims.
func (a Array) NumElem() int {
	if len(a.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// IsScalar reports whether the array holds exactly one element.
func (a Array) IsScalar() bool {
	return a.NumElem() == 1
}

// IsVector reports whether the array is two-dimensional with a singleton
// dimension (1xN or Nx1).
func (a Array) IsVector() bool {
	return len(a.Dims) == 2 && (a.Dims[0] == 1 || a.Dims[1] == 1)
}

// Text is character data.
type Text string

func (Text) isValue() {}

// Field is one name/value pair of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered record of named values. Field order is preserved
// through encode and decode.
type Struct struct {
	Fields []Field
}

func (Struct) isValue() {}

// Set appends or replaces the named field.
func (s *Struct) Set(name string, v Value) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			s.Fields[i].Value = v
			return
		}
	}
	s.Fields = append(s.Fields, Field{Name: name, Value: v})
}

// Get returns the named field's value.
func (s *Struct) Get(name string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (s *Struct) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Cell is an ordered heterogeneous sequence of values.
type Cell []Value

func (Cell) isValue() {}

// Ref is an opaque reference to a remote object: the runtime class name
// plus an address token naming the object in the remote workspace. The
// address is never dereferenced locally.
//
// On the wire a Ref is a struct with the two marker fields below; decoding
// such a struct yields a Ref token. Wrapping the token into a usable proxy
// is the caller's concern, not the codec's.
type Ref struct {
	Class   string
	Address string
}

func (Ref) isValue() {}

// Marker field names identifying a reference record on the wire.
const (
	refClassField   = "class__"
	refAddressField = "address__"
)

// NamedValue is one top-level variable of a container file.
type NamedValue struct {
	Name  string
	Value Value
}
