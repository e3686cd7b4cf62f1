package objects

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// Repository stores source-of-truth objects.
type Repository interface {
	Put(ctx context.Context, objectType string, obj map[string]any) (pk string, created bool, err error)
	Get(ctx context.Context, objectType, pk string) (map[string]any, error)
	Delete(ctx context.Context, objectType, pk string) error
}

// Notifier receives change events after a successful store write.
type Notifier interface {
	OnObjectChanged(ctx context.Context, ev event.Event) error
}

// TypeSource resolves registered object types.
type TypeSource interface {
	Type(key string) (schema.ObjectType, error)
}
