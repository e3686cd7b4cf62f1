package backend

import (
	"sort"
	"sync"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// Types is a concurrency-safe set of object types known to a backend.
type Types struct {
	mu    sync.RWMutex
	types map[string]schema.ObjectType
}

// NewTypes creates an empty Types.
func NewTypes() *Types {
	return &Types{types: make(map[string]schema.ObjectType)}
}

// Add records the given types.
func (t *Types) Add(types ...schema.ObjectType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ot := range types {
		t.types[ot.Key()] = ot
	}
}

// Remove forgets a type. Later calls for it fail with a ConfigError.
func (t *Types) Remove(key string) {
	t.mu.Lock()
	delete(t.types, key)
	t.mu.Unlock()
}

// Get returns the type for key or a ConfigError.
func (t *Types) Get(key string) (schema.ObjectType, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ot, ok := t.types[key]
	if !ok {
		return schema.ObjectType{}, domain.NewConfigError("backend", "unknown object type %q", key)
	}
	return ot, nil
}

// Keys returns the known type keys sorted alphabetically.
func (t *Types) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.types))
	for k := range t.types {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Prepare plans q with limits and validates it against objectType.
func (t *Types) Prepare(objectType string, q query.Node, limits query.Limits) (query.Plan, schema.ObjectType, error) {
	ot, err := t.Get(objectType)
	if err != nil {
		return query.Plan{}, schema.ObjectType{}, err
	}
	plan, err := query.NewPlan(q, limits)
	if err != nil {
		return query.Plan{}, schema.ObjectType{}, err
	}
	plan, err = query.Validate(plan, ot)
	if err != nil {
		return query.Plan{}, schema.ObjectType{}, err
	}
	return plan, ot, nil
}
