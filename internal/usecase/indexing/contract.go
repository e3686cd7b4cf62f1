package indexing

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
)

// Mapper projects object instances into documents.
type Mapper interface {
	Map(objectType string, instance any) (document.Document, error)
}

// Index is the write side of the search backend.
type Index interface {
	PutDocument(ctx context.Context, doc document.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// ObjectLoader reads the current state of an object. Missing objects return ErrNotFound.
type ObjectLoader interface {
	Get(ctx context.Context, objectType, pk string) (map[string]any, error)
}

// ReconcileTrigger asks for a type's index to be rebuilt after a write was lost.
type ReconcileTrigger interface {
	RequestReconcile(ctx context.Context, objectType string) error
}
