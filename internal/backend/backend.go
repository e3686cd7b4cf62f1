// Package backend defines the search engine contract every index implementation fulfils.
package backend

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Backend is a search engine holding one index per object type.
//
// Errors are ErrBackendUnavailable for transient engine failures, ErrQuery for queries the
// engine cannot express, ErrConfig for unknown object types and ErrRebuildInProgress for
// overlapping rebuilds.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Ping(ctx context.Context) error
	// EnsureSchema prepares indexes for the given types. Must be called before any write.
	EnsureSchema(ctx context.Context, types []schema.ObjectType) error
	// PutDocument upserts doc by id. Visible after the next refresh point.
	PutDocument(ctx context.Context, doc document.Document) error
	// DeleteDocument removes a document by id. Absent ids are a no-op.
	DeleteDocument(ctx context.Context, id string) error
	// BulkRebuild atomically replaces every document of objectType with docs.
	BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error
	Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error)
	// Refresh makes buffered writes to objectType visible to Search.
	Refresh(ctx context.Context, objectType string) error
	Close() error
}

// StatusReporter is implemented by backends that expose index lifecycle state.
type StatusReporter interface {
	States() []lifecycle.Status
}

// Dropper is implemented by backends that can delete a type's index for good.
type Dropper interface {
	Drop(ctx context.Context, objectType string) error
}
