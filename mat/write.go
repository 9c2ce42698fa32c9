package mat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"golang.org/x/text/encoding/unicode"
)

// headerText is the description field of the file header.
const headerText = "MATLAB 5.0 MAT-file, written by octexec"

// Write encodes vars as top-level variables of a MAT 5 container at path.
// The file is overwritten if it exists. Values must already be in codec
// form; use [FromGo] to convert host values first.
func Write(path string, vars []NamedValue, opts Options) error {
	var buf bytes.Buffer
	writeHeader(&buf)

	for _, nv := range vars {
		if err := writeMatrix(&buf, nv.Name, nv.Value); err != nil {
			return fmt.Errorf("mat: encode %q: %w", nv.Name, err)
		}
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeHeader(buf *bytes.Buffer) {
	desc := make([]byte, 116)
	for i := range desc {
		desc[i] = ' '
	}
	copy(desc, headerText)
	buf.Write(desc)
	buf.Write(make([]byte, 8)) // subsystem data offset, unused
	_ = binary.Write(buf, binary.LittleEndian, uint16(0x0100))
	buf.WriteString("IM") // endian indicator, little-endian
}

// writeTag emits a normal-format element tag.
func writeTag(buf *bytes.Buffer, miType uint32, numBytes int) {
	_ = binary.Write(buf, binary.LittleEndian, miType)
	_ = binary.Write(buf, binary.LittleEndian, uint32(numBytes))
}

// pad8 pads buf with zero bytes to an 8-byte boundary.
func pad8(buf *bytes.Buffer) {
	if r := buf.Len() % 8; r != 0 {
		buf.Write(make([]byte, 8-r))
	}
}

// writeElement emits a complete data element with padding.
func writeElement(buf *bytes.Buffer, miType uint32, data []byte) {
	writeTag(buf, miType, len(data))
	buf.Write(data)
	pad8(buf)
}

// writeMatrix emits one miMATRIX element holding v.
func writeMatrix(buf *bytes.Buffer, name string, v Value) error {
	var inner bytes.Buffer

	var err error
	switch val := v.(type) {
	case nil:
		err = writeNumeric(&inner, name, Empty())
	case Array:
		err = writeNumeric(&inner, name, val)
	case Text:
		err = writeChar(&inner, name, string(val))
	case Struct:
		err = writeStruct(&inner, name, val)
	case *Struct:
		err = writeStruct(&inner, name, *val)
	case Cell:
		err = writeCell(&inner, name, val)
	case Ref:
		var s Struct
		s.Set(refClassField, Text(val.Class))
		s.Set(refAddressField, Text(val.Address))
		err = writeStruct(&inner, name, s)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
	if err != nil {
		return err
	}

	writeElement(buf, miMATRIX, inner.Bytes())
	return nil
}

// writeFlags emits the array-flags and dimensions subelements plus the
// array name.
func writeFlags(buf *bytes.Buffer, name string, class uint8, flags uint32, dims []int) {
	word := uint32(class) | flags
	var data [8]byte
	binary.LittleEndian.PutUint32(data[0:], word)
	writeElement(buf, miUINT32, data[:])

	dimData := make([]byte, 4*len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint32(dimData[4*i:], uint32(int32(d)))
	}
	writeElement(buf, miINT32, dimData)

	writeElement(buf, miINT8, []byte(name))
}

func writeNumeric(buf *bytes.Buffer, name string, a Array) error {
	dims := a.Dims
	if len(dims) < 2 {
		dims = []int{0, 0}
	}
	if n := a.NumElem(); n != len(a.Real) {
		return fmt.Errorf("%w: array has %d elements for dims %v", ErrUnsupported, len(a.Real), dims)
	}

	class := classFor(a.Kind)
	var flags uint32
	if a.Logical {
		class = mxUINT8
		flags |= flagLogical
	}
	if a.Imag != nil {
		flags |= flagComplex
	}
	writeFlags(buf, name, class, flags, dims)

	dataType := dataTypeFor(a.Kind)
	if a.Logical {
		dataType = miUINT8
	}
	writeElement(buf, dataType, packNumeric(dataType, a.Real))
	if a.Imag != nil {
		if len(a.Imag) != len(a.Real) {
			return fmt.Errorf("%w: imaginary part has %d elements, real has %d", ErrUnsupported, len(a.Imag), len(a.Real))
		}
		writeElement(buf, dataType, packNumeric(dataType, a.Imag))
	}
	return nil
}

// packNumeric converts elements to the on-disk representation of miType.
func packNumeric(miType uint32, elems []float64) []byte {
	w := elemWidth(miType)
	out := make([]byte, w*len(elems))
	for i, v := range elems {
		switch miType {
		case miINT8:
			out[i] = byte(int8(v))
		case miUINT8:
			out[i] = byte(uint8(v))
		case miINT16:
			binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
		case miUINT16:
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		case miINT32:
			binary.LittleEndian.PutUint32(out[4*i:], uint32(int32(v)))
		case miUINT32:
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		case miSINGLE:
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v)))
		case miINT64:
			binary.LittleEndian.PutUint64(out[8*i:], uint64(int64(v)))
		case miUINT64:
			binary.LittleEndian.PutUint64(out[8*i:], uint64(v))
		default:
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
	}
	return out
}

func writeChar(buf *bytes.Buffer, name, s string) error {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	data, err := enc.Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("%w: text is not valid UTF-8: %v", ErrUnsupported, err)
	}

	units := len(data) / 2
	dims := []int{1, units}
	if units == 0 {
		dims = []int{0, 0}
	}
	writeFlags(buf, name, mxCHAR, 0, dims)
	writeElement(buf, miUINT16, data)
	return nil
}

func writeStruct(buf *bytes.Buffer, name string, s Struct) error {
	nameLen := 1
	for _, f := range s.Fields {
		if len(f.Name)+1 > maxFieldName {
			return fmt.Errorf("%w: field name %q too long", ErrUnsupported, f.Name)
		}
		if len(f.Name)+1 > nameLen {
			nameLen = len(f.Name) + 1
		}
	}

	writeFlags(buf, name, mxSTRUCT, 0, []int{1, 1})

	var lenData [4]byte
	binary.LittleEndian.PutUint32(lenData[:], uint32(int32(nameLen)))
	writeElement(buf, miINT32, lenData[:])

	names := make([]byte, nameLen*len(s.Fields))
	for i, f := range s.Fields {
		copy(names[i*nameLen:], f.Name)
	}
	writeElement(buf, miINT8, names)

	for _, f := range s.Fields {
		if err := writeMatrix(buf, "", f.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeCell(buf *bytes.Buffer, name string, c Cell) error {
	dims := []int{1, len(c)}
	if len(c) == 0 {
		dims = []int{0, 0}
	}
	writeFlags(buf, name, mxCELL, 0, dims)
	for _, v := range c {
		if err := writeMatrix(buf, "", v); err != nil {
			return err
		}
	}
	return nil
}
