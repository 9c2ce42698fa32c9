package mat

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"

	"golang.org/x/text/encoding/unicode"
)

// Read decodes all top-level variables of the MAT 5 container at path.
// Variables are returned in file order. Malformed or truncated input
// fails with a *DecodeError matching ErrDecode.
func Read(path string) ([]NamedValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Message: "read container", Err: err}
	}
	return Decode(data)
}

// Decode decodes the top-level variables of an in-memory MAT 5 container.
func Decode(data []byte) ([]NamedValue, error) {
	if len(data) < headerLen {
		return nil, &DecodeError{Offset: len(data), Message: "truncated header"}
	}
	if data[126] != 'I' || data[127] != 'M' {
		return nil, &DecodeError{Offset: 126, Message: "not a little-endian MAT 5 file"}
	}

	p := &parser{data: data, off: headerLen}
	var vars []NamedValue
	for p.off < len(p.data) {
		miType, payload, err := p.element()
		if err != nil {
			return nil, err
		}

		if miType == miCOMPRESSED {
			inflated, err := inflate(payload)
			if err != nil {
				return nil, &DecodeError{Offset: p.off, Message: "inflate compressed element", Err: err}
			}
			inner := &parser{data: inflated}
			miType, payload, err = inner.element()
			if err != nil {
				return nil, err
			}
			if miType != miMATRIX {
				return nil, &DecodeError{Offset: p.off, Message: "compressed element is not a matrix"}
			}
			name, v, err := parseMatrix(&parser{data: payload})
			if err != nil {
				return nil, err
			}
			vars = append(vars, NamedValue{Name: name, Value: v})
			continue
		}

		if miType != miMATRIX {
			return nil, &DecodeError{Offset: p.off, Message: "unexpected top-level element type"}
		}
		name, v, err := parseMatrix(&parser{data: payload})
		if err != nil {
			return nil, err
		}
		vars = append(vars, NamedValue{Name: name, Value: v})
	}
	return vars, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// parser walks the data elements of a container or matrix body.
type parser struct {
	data []byte
	off  int
}

func (p *parser) fail(msg string) error {
	return &DecodeError{Offset: p.off, Message: msg}
}

// element reads one data element, handling both normal and small-format
// tags, and advances past the trailing padding.
func (p *parser) element() (miType uint32, payload []byte, err error) {
	if p.off+8 > len(p.data) {
		return 0, nil, p.fail("truncated element tag")
	}
	word := binary.LittleEndian.Uint32(p.data[p.off:])

	// Small data element: type in the low 16 bits, size in the high 16,
	// payload packed into the remaining 4 tag bytes.
	if word>>16 != 0 {
		miType = word & 0xFFFF
		size := int(word >> 16)
		if size > 4 {
			return 0, nil, p.fail("small element size exceeds 4 bytes")
		}
		payload = p.data[p.off+4 : p.off+4+size]
		p.off += 8
		return miType, payload, nil
	}

	miType = word
	size := int(binary.LittleEndian.Uint32(p.data[p.off+4:]))
	start := p.off + 8
	if size < 0 || start+size > len(p.data) {
		return 0, nil, p.fail("element payload exceeds container")
	}
	payload = p.data[start : start+size]

	p.off = start + size
	if r := (8 - size%8) % 8; r != 0 && miType != miCOMPRESSED {
		p.off += r
		if p.off > len(p.data) {
			p.off = len(p.data)
		}
	}
	return miType, payload, nil
}

// parseMatrix decodes a miMATRIX body into a named value.
func parseMatrix(p *parser) (string, Value, error) {
	miType, flagsData, err := p.element()
	if err != nil {
		return "", nil, err
	}
	if miType != miUINT32 || len(flagsData) < 4 {
		return "", nil, p.fail("missing array flags")
	}
	word := binary.LittleEndian.Uint32(flagsData)
	class := uint8(word & 0xFF)
	logical := word&flagLogical != 0
	complexFlag := word&flagComplex != 0

	miType, dimData, err := p.element()
	if err != nil {
		return "", nil, err
	}
	if miType != miINT32 {
		return "", nil, p.fail("missing dimensions")
	}
	dims := make([]int, len(dimData)/4)
	for i := range dims {
		dims[i] = int(int32(binary.LittleEndian.Uint32(dimData[4*i:])))
	}

	_, nameData, err := p.element()
	if err != nil {
		return "", nil, err
	}
	name := string(bytes.TrimRight(nameData, "\x00"))

	switch class {
	case mxCHAR:
		v, err := parseChar(p, dims)
		return name, v, err
	case mxCELL:
		v, err := parseCell(p, dims)
		return name, v, err
	case mxSTRUCT:
		v, err := parseStruct(p, dims)
		return name, v, err
	case mxSPARSE:
		return "", nil, p.fail("sparse matrices are not supported")
	case mxOBJECT:
		return "", nil, p.fail("legacy object matrices are not supported")
	default:
		v, err := parseNumeric(p, class, dims, logical, complexFlag)
		return name, v, err
	}
}

func parseNumeric(p *parser, class uint8, dims []int, logical, complexFlag bool) (Value, error) {
	kind, ok := kindFor(class)
	if !ok {
		return nil, p.fail("unknown array class")
	}

	real, err := parseNumericData(p)
	if err != nil {
		return nil, err
	}
	a := Array{Kind: kind, Dims: dims, Real: real, Logical: logical}
	if complexFlag {
		imag, err := parseNumericData(p)
		if err != nil {
			return nil, err
		}
		a.Imag = imag
	}
	return a, nil
}

// parseNumericData reads one real or imaginary part. The stored element
// type may be narrower than the array class.
func parseNumericData(p *parser) ([]float64, error) {
	miType, data, err := p.element()
	if err != nil {
		return nil, err
	}
	w := elemWidth(miType)
	if w == 0 {
		return nil, p.fail("unknown numeric element type")
	}
	n := len(data) / w
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch miType {
		case miINT8:
			out[i] = float64(int8(data[i]))
		case miUINT8, miUTF8:
			out[i] = float64(data[i])
		case miINT16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(data[2*i:])))
		case miUINT16, miUTF16:
			out[i] = float64(binary.LittleEndian.Uint16(data[2*i:]))
		case miINT32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[4*i:])))
		case miUINT32:
			out[i] = float64(binary.LittleEndian.Uint32(data[4*i:]))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
		case miINT64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(data[8*i:])))
		case miUINT64:
			out[i] = float64(binary.LittleEndian.Uint64(data[8*i:]))
		case miDOUBLE:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
	}
	return out, nil
}

func parseChar(p *parser, dims []int) (Value, error) {
	miType, data, err := p.element()
	if err != nil {
		return nil, err
	}

	var s string
	switch miType {
	case miUINT16, miUTF16:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		decoded, err := dec.Bytes(data)
		if err != nil {
			return nil, p.fail("invalid UTF-16 character data")
		}
		s = string(decoded)
	case miUTF8, miINT8, miUINT8:
		s = string(data)
	default:
		return nil, p.fail("unsupported character element type")
	}

	// Multi-row char matrices hold one string per row, stored
	// column-major; surface them as a cell of rows.
	if len(dims) == 2 && dims[0] > 1 {
		rows, cols := dims[0], dims[1]
		runes := []rune(s)
		if len(runes) == rows*cols {
			out := make(Cell, rows)
			for r := 0; r < rows; r++ {
				line := make([]rune, cols)
				for c := 0; c < cols; c++ {
					line[c] = runes[c*rows+r]
				}
				out[r] = Text(bytes.TrimRight([]byte(string(line)), " "))
			}
			return out, nil
		}
	}
	return Text(s), nil
}

func parseCell(p *parser, dims []int) (Value, error) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	out := make(Cell, 0, n)
	for i := 0; i < n; i++ {
		miType, payload, err := p.element()
		if err != nil {
			return nil, err
		}
		if miType != miMATRIX {
			return nil, p.fail("cell element is not a matrix")
		}
		_, v, err := parseMatrix(&parser{data: payload})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseStruct(p *parser, dims []int) (Value, error) {
	miType, lenData, err := p.element()
	if err != nil {
		return nil, err
	}
	if miType != miINT32 || len(lenData) < 4 {
		return nil, p.fail("missing struct field name length")
	}
	nameLen := int(int32(binary.LittleEndian.Uint32(lenData)))
	if nameLen <= 0 || nameLen > maxFieldName {
		return nil, p.fail("invalid struct field name length")
	}

	_, nameData, err := p.element()
	if err != nil {
		return nil, err
	}
	numFields := len(nameData) / nameLen
	names := make([]string, numFields)
	for i := range names {
		names[i] = string(bytes.TrimRight(nameData[i*nameLen:(i+1)*nameLen], "\x00"))
	}

	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != 1 {
		// The protocol only ever produces scalar structs; anything else
		// is a protocol bug and must not be silently reshaped.
		return nil, p.fail("struct arrays are not supported")
	}

	var s Struct
	for i := 0; i < numFields; i++ {
		miType, payload, err := p.element()
		if err != nil {
			return nil, err
		}
		if miType != miMATRIX {
			return nil, p.fail("struct field is not a matrix")
		}
		_, v, err := parseMatrix(&parser{data: payload})
		if err != nil {
			return nil, err
		}
		s.Set(names[i], v)
	}

	if ref, ok := asRef(&s); ok {
		return ref, nil
	}
	return s, nil
}

// asRef recognizes the reference record shape: exactly the two marker
// fields, both text.
func asRef(s *Struct) (Ref, bool) {
	if len(s.Fields) != 2 {
		return Ref{}, false
	}
	class, ok := s.Get(refClassField)
	if !ok {
		return Ref{}, false
	}
	addr, ok := s.Get(refAddressField)
	if !ok {
		return Ref{}, false
	}
	ct, ok := class.(Text)
	if !ok {
		return Ref{}, false
	}
	at, ok := addr.(Text)
	if !ok {
		return Ref{}, false
	}
	return Ref{Class: string(ct), Address: string(at)}, true
}
