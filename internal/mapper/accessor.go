package mapper

import (
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// DefaultKeyField is the map key MapAccessor reads primary keys from.
const DefaultKeyField = "id"

// Accessor reads identity and field values from an application object.
type Accessor interface {
	PrimaryKey(instance any) (string, error)
	Value(instance any, field string) (any, error)
}

// MapAccessor serves instances represented as map[string]any. Missing keys read as nil.
type MapAccessor struct {
	KeyField string
}

// PrimaryKey returns the instance's key field as a string.
func (a MapAccessor) PrimaryKey(instance any) (string, error) {
	m, err := asMap(instance)
	if err != nil {
		return "", err
	}
	key := a.KeyField
	if key == "" {
		key = DefaultKeyField
	}
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("primary key %q missing", key)
	}
	s, err := schema.CoerceScalar(schema.String, v)
	if err != nil {
		return "", fmt.Errorf("primary key %q: %w", key, err)
	}
	return s.(string), nil
}

// Value returns the raw value stored under field.
func (a MapAccessor) Value(instance any, field string) (any, error) {
	m, err := asMap(instance)
	if err != nil {
		return nil, err
	}
	return m[field], nil
}

func asMap(instance any) (map[string]any, error) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("instance is %T, want map[string]any", instance)
	}
	return m, nil
}
