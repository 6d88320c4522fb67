package journal

import (
	"slices"
	"strings"
)

// Hook applies one operation's payload to in-memory state.
type Hook func(payload string) error

// Registry maps hook names to hooks. Insertion is checked: a name can be
// registered only once.
type Registry struct {
	hooks map[string]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Register adds hook under name.
func (r *Registry) Register(name string, hook Hook) error {
	if name == "" || strings.ContainsAny(name, "\t\r\n") {
		return &Error{Code: CodeMalformedLine, Message: "invalid hook name", Hook: name}
	}
	if hook == nil {
		return &Error{Code: CodeBadPayload, Message: "nil hook", Hook: name}
	}
	if _, ok := r.hooks[name]; ok {
		return &Error{Code: CodeDuplicateHook, Message: "hook already registered", Hook: name}
	}
	r.hooks[name] = hook
	return nil
}

// Lookup returns the hook registered under name.
func (r *Registry) Lookup(name string) (Hook, bool) {
	h, ok := r.hooks[name]
	return h, ok
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	return len(r.hooks)
}

// Names returns the registered hook names in ascending order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
