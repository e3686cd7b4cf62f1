// Package schema holds the registry of indexable object types and their fields.
//
// The registry is filled once at start-up and frozen; afterwards it is read-only and safe
// for concurrent use. Changing the schema requires a restart and an index rebuild.
package schema

import (
	"sort"
	"sync"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

// Registry maps type keys to object types.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]ObjectType
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ObjectType)}
}

// Register validates and adds an object type. Duplicate keys, invalid field specs and
// registration after Freeze fail with a ConfigError.
func (r *Registry) Register(key string, fields []FieldSpec) error {
	ot, err := NewObjectType(key, fields)
	if err != nil {
		return domain.NewConfigError("schema", "%v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return domain.NewConfigError("schema", "registry is frozen, cannot register %q", key)
	}
	if _, dup := r.types[key]; dup {
		return domain.NewConfigError("schema", "duplicate type key %q", key)
	}
	r.types[key] = ot
	r.order = append(r.order, key)
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Type returns the object type for key.
func (r *Registry) Type(key string) (ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ot, ok := r.types[key]
	if !ok {
		return ObjectType{}, domain.NewConfigError("schema", "unknown object type %q", key)
	}
	return ot, nil
}

// SpecsFor returns the field specs of an object type.
func (r *Registry) SpecsFor(key string) ([]FieldSpec, error) {
	ot, err := r.Type(key)
	if err != nil {
		return nil, err
	}
	return ot.Fields(), nil
}

// Types returns all object types in registration order.
func (r *Registry) Types() []ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ObjectType, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.types[k])
	}
	return out
}

// Keys returns the registered type keys sorted alphabetically.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
