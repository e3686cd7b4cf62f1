package search

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
)

// Searcher runs a query against the index of one object type.
type Searcher interface {
	Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error)
}

// ObjectStore loads objects for hydration. Missing primary keys are absent from the map.
type ObjectStore interface {
	GetMany(ctx context.Context, objectType string, pks []string) (map[string]map[string]any, error)
}

// TypeSource resolves registered object types.
type TypeSource interface {
	Type(key string) (schema.ObjectType, error)
}
