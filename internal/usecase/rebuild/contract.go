package rebuild

import (
	"context"
	"iter"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// TypeSource lists registered object types.
type TypeSource interface {
	Types() []schema.ObjectType
	Type(key string) (schema.ObjectType, error)
}

// ObjectSource streams every stored instance of a type.
type ObjectSource interface {
	All(ctx context.Context, objectType string) iter.Seq2[map[string]any, error]
}

// Mapper projects object instances into documents.
type Mapper interface {
	Map(objectType string, instance any) (document.Document, error)
}

// Index replaces a type's documents.
type Index interface {
	BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error
}
