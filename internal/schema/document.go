package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a record of unknown shape.
type Document map[string]any

// Key is a dictionary key or matrix coordinate taken from a document field.
// It holds the compact JSON encoding of the field value, and encodes to JSON
// as that value. Keys order by their JSON text, so numbers order as text.
type Key string

// NullKey is the key of a missing field.
const NullKey Key = "null"

// KeyOf returns the key for a field value.
func KeyOf(v any) (Key, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	return Key(data), nil
}

// MarshalJSON implements json.Marshaler.
func (k Key) MarshalJSON() ([]byte, error) {
	if k == "" {
		return []byte(NullKey), nil
	}
	return []byte(k), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *Key) UnmarshalJSON(data []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*k = Key(buf.String())
	return nil
}

// field returns a key extractor for one document field.
func field(name string) func(Document) Key {
	return func(d Document) Key {
		v, ok := d[name]
		if !ok {
			return NullKey
		}
		k, err := KeyOf(v)
		if err != nil {
			return NullKey
		}
		return k
	}
}
