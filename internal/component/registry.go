package component

import (
	"sort"
	"sync"
)

// Registry holds component definitions keyed by tag. Definitions register
// once at startup; instances only read them.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates and adds a definition. Re-registering a tag replaces
// the previous definition; live instances keep the one they were built with.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Tag] = def
	return nil
}

// Get looks a definition up by tag.
func (r *Registry) Get(tag string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[tag]
	return def, ok
}

// Deregister removes a definition.
func (r *Registry) Deregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, tag)
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.defs))
	for tag := range r.defs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Len reports the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
