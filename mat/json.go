package mat

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON renders the array as nested row-major JSON arrays, or a
// bare number for scalars. Complex arrays render as {"real": ..., "imag": ...}.
func (a Array) MarshalJSON() ([]byte, error) {
	if a.Imag != nil {
		re := a
		re.Imag = nil
		im := Array{Kind: a.Kind, Dims: a.Dims, Real: a.Imag}
		return json.Marshal(map[string]Array{"real": re, "imag": im})
	}
	return json.Marshal(arrayToGo(a))
}

// MarshalJSON renders the struct as a JSON object preserving field order.
func (s Struct) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the reference as {"class": ..., "address": ...}.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"class":   r.Class,
		"address": r.Address,
	})
}

// MarshalJSON renders the record as a JSON object preserving entry order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
