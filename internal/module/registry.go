package module

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries per-instance settings from the pipeline definition into a
// module factory. The runtime treats it as opaque.
type Config map[string]any

// Factory builds a module instance from its pipeline config.
type Factory func(Config) (Module, error)

// Registry maps module IDs to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given ID. IDs are claimed once; a
// second registration is an error rather than a silent replacement.
func (r *Registry) Register(id string, factory Factory) error {
	switch {
	case id == "":
		return fmt.Errorf("module: cannot register an empty id")
	case factory == nil:
		return fmt.Errorf("module: nil factory for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.factories[id]; taken {
		return fmt.Errorf("module: %s is already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister is Register for init-time wiring, where a clash is a bug.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve builds a module by ID and validates its Info before handing it
// to the caller.
func (r *Registry) Resolve(id string, cfg Config) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module: no factory registered for %s", id)
	}
	mod, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("module: building %s: %w", id, err)
	}
	if err := mod.Info().Validate(); err != nil {
		return nil, err
	}
	return mod, nil
}

// IDs lists registered module identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
