package codec

import (
	"fmt"
	"strings"
)

// Codec turns values into single-line text payloads and back.
type Codec interface {
	// Name identifies the codec in configuration files.
	Name() string

	// Marshal serializes v. The result never contains a newline.
	Marshal(v any) (string, error)

	// Unmarshal parses data into v, which must be a non-nil pointer.
	Unmarshal(data string, v any) error
}

// Names lists the registered codec names in lookup order.
var Names = []string{"json", "canonical"}

// ByName returns the codec registered under name.
// An empty name selects the JSON codec.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "canonical":
		return Canonical{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q: must be one of %s", name, strings.Join(Names, ", "))
	}
}
