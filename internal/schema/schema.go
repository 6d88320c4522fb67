// Package schema describes a journal and its containers in a file, so that
// tools can replay a journal without the application's compiled record
// types.
//
// A schema file is YAML (.yaml, .yml) or CUE (.cue) with the same fields:
//
//	journal: ./data/app.journal   # relative to the schema file
//	backend: file                 # file | sqlite | memory
//	codec: json                   # json | canonical
//	sync: true
//	transactions: app             # registers "app.transaction"
//	containers:
//	  - {name: orders, kind: vector}
//	  - {name: users,  kind: dictionary, key: id}
//	  - {name: links,  kind: matrix, row: from, col: to}
//
// Records are opened as Documents, and dictionary keys and matrix
// coordinates are taken from the named document fields.
package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Kind is a container shape.
type Kind string

const (
	KindVector     Kind = "vector"
	KindDictionary Kind = "dictionary"
	KindMatrix     Kind = "matrix"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Container declares one container.
type Container struct {
	// Name is the hook prefix: entries are "<name>.<op>".
	Name string `yaml:"name" json:"name"`

	// Kind selects vector, dictionary or matrix.
	Kind Kind `yaml:"kind" json:"kind"`

	// Key is the document field holding a dictionary key.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// Row and Col are the document fields holding matrix coordinates.
	Row string `yaml:"row,omitempty" json:"row,omitempty"`
	Col string `yaml:"col,omitempty" json:"col,omitempty"`
}

// Schema is a parsed schema file.
type Schema struct {
	Journal      string      `yaml:"journal" json:"journal"`
	Backend      string      `yaml:"backend,omitempty" json:"backend,omitempty"`
	Codec        string      `yaml:"codec,omitempty" json:"codec,omitempty"`
	Sync         *bool       `yaml:"sync,omitempty" json:"sync,omitempty"`
	Transactions string      `yaml:"transactions,omitempty" json:"transactions,omitempty"`
	Containers   []Container `yaml:"containers" json:"containers"`

	// dir is the directory relative journal paths resolve against.
	dir string
}

// Load reads, parses and validates a schema file.
func Load(path string) (*Schema, error) {
	s, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}
	return s, nil
}

// Parse reads a schema file without validating it. The format follows
// the file extension.
func Parse(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var s *Schema
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		s, err = parseYAML(data)
	case ".cue":
		s, err = parseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported schema file extension %q: want .yaml, .yml or .cue", ext)
	}
	if err != nil {
		return nil, err
	}

	s.dir = filepath.Dir(path)
	s.applyDefaults()
	return s, nil
}

func parseYAML(data []byte) (*Schema, error) {
	var s Schema
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &s, nil
}

func parseCUE(path string, data []byte) (*Schema, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %w", err)
	}

	var s Schema
	if err := value.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &s, nil
}

func (s *Schema) applyDefaults() {
	if s.Backend == "" {
		s.Backend = BackendFile
	}
	if s.Codec == "" {
		s.Codec = "json"
	}
	for i := range s.Containers {
		s.Containers[i].Kind = Kind(strings.ToLower(string(s.Containers[i].Kind)))
	}
}

// SyncEnabled reports whether appends are fsynced. The default is true.
func (s *Schema) SyncEnabled() bool {
	return s.Sync == nil || *s.Sync
}

// JournalPath returns the journal path, resolved against the directory of
// the schema file when relative.
func (s *Schema) JournalPath() string {
	if s.Journal == "" || filepath.IsAbs(s.Journal) {
		return s.Journal
	}
	return filepath.Join(s.dir, s.Journal)
}

// SetJournal overrides the journal path. A relative path is used as given.
func (s *Schema) SetJournal(path string) {
	s.Journal = path
	s.dir = ""
}
