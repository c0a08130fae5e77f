package endpoint

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Validation errors reported at registration time.
var (
	errExecutorShape    = errors.New("exactly one of BuildRequest and Execute must be set")
	errQueryInvalidates = errors.New("query endpoints must not declare Invalidates")
	errMutationProvides = errors.New("mutation endpoints must not declare Provides")

	// ErrDuplicateEndpoint is returned when a name is registered twice.
	ErrDuplicateEndpoint = errors.New("endpoint: duplicate endpoint name")
)

// Registry holds the endpoint definitions of one API surface together
// with the closed set of tag types those endpoints may reference.
// Registration validates each definition structurally; lookups afterwards
// are read-only and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	tagTypes map[string]struct{}
}

// NewRegistry creates a registry with the given registered tag types.
func NewRegistry(tagTypes ...string) *Registry {
	types := make(map[string]struct{}, len(tagTypes))
	for _, t := range tagTypes {
		types[t] = struct{}{}
	}
	return &Registry{
		defs:     make(map[string]Definition),
		tagTypes: types,
	}
}

// Register validates and adds one or more definitions.
func (r *Registry) Register(defs ...Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("endpoint %q: %w", def.Name, err)
		}
		if _, exists := r.defs[def.Name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateEndpoint, def.Name)
		}
		r.defs[def.Name] = def
	}
	return nil
}

// MustRegister is Register that panics on error. Intended for package
// level endpoint declarations where a bad definition is a programming
// error.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// HasTagType reports whether a tag type belongs to the registered set.
func (r *Registry) HasTagType(tagType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tagTypes[tagType]
	return ok
}

// Names returns the registered endpoint names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
