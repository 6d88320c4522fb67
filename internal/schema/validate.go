package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sompylasar/Current/internal/codec"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// FieldError is one problem found by Check.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate returns all problems found by Check joined into one error, or
// nil.
func (s *Schema) Validate() error {
	problems := s.Check()
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = p
	}
	return errors.Join(errs...)
}

// Check lists every problem in the schema, in field order.
func (s *Schema) Check() []*FieldError {
	var problems []*FieldError
	add := func(field, format string, args ...any) {
		problems = append(problems, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Backend {
	case BackendFile, BackendSQLite:
		if s.Journal == "" {
			add("journal", "required for backend %q", s.Backend)
		}
	case BackendMemory:
	default:
		add("backend", "unknown backend %q: must be one of file, sqlite, memory", s.Backend)
	}

	if _, err := codec.ByName(s.Codec); err != nil {
		add("codec", "%v", err)
	}

	if s.Transactions != "" && !namePattern.MatchString(s.Transactions) {
		add("transactions", "invalid name %q", s.Transactions)
	}

	if len(s.Containers) == 0 {
		add("containers", "at least one container is required")
	}

	seen := make(map[string]int)
	for i, c := range s.Containers {
		field := fmt.Sprintf("containers[%d]", i)
		switch {
		case c.Name == "":
			add(field+".name", "required")
		case !namePattern.MatchString(c.Name):
			add(field+".name", "invalid name %q: use letters, digits, '_' and '-'", c.Name)
		default:
			if j, ok := seen[c.Name]; ok {
				add(field+".name", "duplicate of containers[%d]", j)
			} else {
				seen[c.Name] = i
			}
		}

		switch c.Kind {
		case KindVector:
			if c.Key != "" || c.Row != "" || c.Col != "" {
				add(field, "vector takes no key, row or col")
			}
		case KindDictionary:
			if c.Key == "" {
				add(field+".key", "required for dictionary")
			}
			if c.Row != "" || c.Col != "" {
				add(field, "dictionary takes no row or col")
			}
		case KindMatrix:
			if c.Row == "" {
				add(field+".row", "required for matrix")
			}
			if c.Col == "" {
				add(field+".col", "required for matrix")
			}
			if c.Key != "" {
				add(field, "matrix takes no key")
			}
		case "":
			add(field+".kind", "required")
		default:
			add(field+".kind", "unknown kind %q: must be one of vector, dictionary, matrix", c.Kind)
		}
	}

	return problems
}
