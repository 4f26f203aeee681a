package form

import (
	"bytes"
	"encoding/json"
	"math"
)

// Response is a player's answer to a custom form. Values are positional, one
// per form element. A nil *Response means the player closed the form.
//
// Clients are not trusted to send well-formed answers: every accessor takes a
// fallback that is returned for a missing slot, a JSON null or a value of the
// wrong type.
type Response struct {
	values []json.RawMessage
	form   *Custom
}

// ParseResponse decodes the raw answer array. Empty input and JSON null are a
// cancellation and yield nil. Anything that is not an array yields an answer
// with no values, so every field falls back to its default.
func ParseResponse(data []byte) *Response {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return &Response{}
	}
	return &Response{values: values}
}

// NewResponse builds an answer from Go values. Values that fail to marshal are
// stored as JSON null.
func NewResponse(values ...interface{}) *Response {
	r := &Response{values: make([]json.RawMessage, len(values))}
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte("null")
		}
		r.values[i] = b
	}
	return r
}

// Len returns the number of answer slots present.
func (r *Response) Len() int {
	return len(r.values)
}

// MarshalJSON encodes the answer back to its array form.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.values)
}

func (r *Response) raw(i int) (json.RawMessage, bool) {
	if i < 0 || i >= len(r.values) {
		return nil, false
	}
	v := bytes.TrimSpace(r.values[i])
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, false
	}
	return v, true
}

// String returns slot i as text.
func (r *Response) String(i int, def string) string {
	raw, ok := r.raw(i)
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	return s
}

// Int returns slot i as an integer. Fractional numbers fall back to def.
func (r *Response) Int(i int, def int) int {
	raw, ok := r.raw(i)
	if !ok {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return def
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(f)
}

// Bool returns slot i as a boolean.
func (r *Response) Bool(i int, def bool) bool {
	raw, ok := r.raw(i)
	if !ok {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return def
	}
	return b
}

// Choice returns slot i as a dropdown index. When the answer is attached to
// its form and element i is a Dropdown, indexes outside the options fall back
// to def.
func (r *Response) Choice(i int, def int) int {
	v := r.Int(i, def)
	if r.form == nil || i >= len(r.form.Elements) {
		return v
	}
	if d, ok := r.form.Elements[i].(Dropdown); ok && (v < 0 || v >= len(d.Options)) {
		return def
	}
	return v
}

// Set replaces the answer in slot i. Out of range slots are ignored.
func (r *Response) Set(i int, v interface{}) {
	if r == nil || i < 0 || i >= len(r.values) {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("null")
	}
	r.values[i] = b
}
