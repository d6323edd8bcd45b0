package tracefile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one key/value pair of an Ordered mapping.
type Field[T any] struct {
	Key   string
	Value T
}

// Ordered is a JSON object decoded with its key order preserved.
// Go maps drop declaration order, which container slots and frame listings depend on.
type Ordered[T any] []Field[T]

// UnmarshalJSON decodes a JSON object (or null) keeping keys in document order.
func (o *Ordered[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	out := Ordered[T]{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out = append(out, Field[T]{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// MarshalJSON encodes the mapping as a JSON object in stored order.
func (o Ordered[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (o Ordered[T]) Get(key string) (T, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	var zero T
	return zero, false
}

// Has reports whether key is present.
func (o Ordered[T]) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the keys in stored order.
func (o Ordered[T]) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}
