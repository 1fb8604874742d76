package openfloor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Structure is a JSON object that preserves key insertion order, explicit
// nulls and the textual form of numbers. It is the interchange form between
// the typed model and the wire: every model type converts to and from a
// Structure, and unrecognized keys are carried through one untouched.
//
// Decoded values are one of: nil, bool, string, json.Number, *Structure or
// []any. Values set programmatically may be any JSON-marshalable Go value.
type Structure struct {
	keys   []string
	values map[string]any
}

// NewStructure returns an empty Structure.
func NewStructure() *Structure {
	return &Structure{values: make(map[string]any)}
}

// Set stores value under key. Setting an existing key replaces its value but
// keeps its position. Returns the Structure for chaining.
func (s *Structure) Set(key string, value any) *Structure {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	return s
}

// Get returns the value stored under key. The second result reports whether
// the key is present; a present key may hold an explicit nil (JSON null).
func (s *Structure) Get(key string) (any, bool) {
	if s == nil || s.values == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Structure) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key and returns whether it was present.
func (s *Structure) Delete(key string) bool {
	if s == nil || s.values == nil {
		return false
	}
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of keys.
func (s *Structure) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the keys in insertion order.
func (s *Structure) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Range calls fn for each key/value pair in insertion order until fn
// returns false.
func (s *Structure) Range(fn func(key string, value any) bool) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy. Nested Structures and slices are copied;
// primitive values are shared.
func (s *Structure) Clone() *Structure {
	if s == nil {
		return nil
	}
	out := NewStructure()
	for _, k := range s.keys {
		out.Set(k, cloneValue(s.values[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Structure:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports deep equality with other. Object key order is not
// significant (JSON object semantics); array order is.
func (s *Structure) Equal(other *Structure) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s == nil || other == nil {
		return s.Len() == other.Len()
	}
	for _, k := range s.keys {
		ov, ok := other.values[k]
		if !ok || !equalValue(s.values[k], ov) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch at := a.(type) {
	case *Structure:
		bt, ok := b.(*Structure)
		return ok && at.Equal(bt)
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !equalValue(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// MarshalJSON emits the object with keys in insertion order.
func (s *Structure) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := encodeValue(&buf, s.values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case *Structure:
		b, err := t.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// UnmarshalJSON replaces the Structure with the decoded object. Nested
// objects decode to *Structure, arrays to []any and numbers to json.Number.
func (s *Structure) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	parsed, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// DecodeStructure parses JSON text into a Structure. The top-level value
// must be an object.
func DecodeStructure(data []byte) (*Structure, error) {
	s := NewStructure()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeObject consumes an object body; the opening '{' has already been read.
func decodeObject(dec *json.Decoder) (*Structure, error) {
	s := NewStructure()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return s, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValueToken(dec)
		if err != nil {
			return nil, err
		}
		s.Set(key, val)
	}
}

// decodeArray consumes an array body; the opening '[' has already been read.
func decodeArray(dec *json.Decoder) ([]any, error) {
	out := []any{}
	for {
		if !dec.More() {
			// Consume the closing ']'.
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		}
		val, err := decodeValueToken(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
}

func decodeValueToken(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		// string, bool, json.Number or nil.
		return tok, nil
	}
}
