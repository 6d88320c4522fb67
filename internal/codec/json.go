package codec

import (
	"encoding/json"
	"fmt"
)

// JSON is the default payload codec backed by encoding/json.
type JSON struct{}

// Name implements Codec.
func (JSON) Name() string { return "json" }

// Marshal implements Codec.
func (JSON) Marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// Unmarshal implements Codec.
func (JSON) Unmarshal(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
