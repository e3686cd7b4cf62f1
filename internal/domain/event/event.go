// Package event describes changes to source-of-truth objects.
package event

import (
	"fmt"
)

// Kind is the type of change.
type Kind string

// Change kinds.
const (
	Created Kind = "created"
	Updated Kind = "updated"
	Deleted Kind = "deleted"
)

// IsValid reports whether the kind is supported.
func (k Kind) IsValid() bool {
	switch k {
	case Created, Updated, Deleted:
		return true
	}
	return false
}

// Event reports that one object changed. Instance carries the new state of created and
// updated objects; when nil, consumers load it from the object store.
type Event struct {
	Kind       Kind           `json:"kind"`
	ObjectType string         `json:"object_type"`
	PrimaryKey string         `json:"primary_key,omitempty"`
	Instance   map[string]any `json:"instance,omitempty"`
}

// Validate checks the event shape. Deletes and instance-less events need a primary key.
func (e Event) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid event kind %q", e.Kind)
	}
	if e.ObjectType == "" {
		return fmt.Errorf("object_type is required")
	}
	if e.PrimaryKey == "" && (e.Kind == Deleted || e.Instance == nil) {
		return fmt.Errorf("primary_key is required for %s events without an instance", e.Kind)
	}
	return nil
}

// WithoutInstance returns a copy that carries identity only.
func (e Event) WithoutInstance() Event {
	e.Instance = nil
	return e
}
