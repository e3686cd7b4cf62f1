package backend

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
)

type mockBackend struct {
	name             string
	pingFn           func(ctx context.Context) error
	ensureSchemaFn   func(ctx context.Context, types []schema.ObjectType) error
	putDocumentFn    func(ctx context.Context, doc document.Document) error
	deleteDocumentFn func(ctx context.Context, id string) error
	bulkRebuildFn    func(ctx context.Context, objectType string, docs document.Stream) error
	searchFn         func(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error)
	refreshFn        func(ctx context.Context, objectType string) error
	closed           bool
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockBackend) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	if m.ensureSchemaFn != nil {
		return m.ensureSchemaFn(ctx, types)
	}
	return nil
}

func (m *mockBackend) PutDocument(ctx context.Context, doc document.Document) error {
	if m.putDocumentFn != nil {
		return m.putDocumentFn(ctx, doc)
	}
	return nil
}

func (m *mockBackend) DeleteDocument(ctx context.Context, id string) error {
	if m.deleteDocumentFn != nil {
		return m.deleteDocumentFn(ctx, id)
	}
	return nil
}

func (m *mockBackend) BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error {
	if m.bulkRebuildFn != nil {
		return m.bulkRebuildFn(ctx, objectType, docs)
	}
	return nil
}

func (m *mockBackend) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, objectType, q)
	}
	return result.Empty(0), nil
}

func (m *mockBackend) Refresh(ctx context.Context, objectType string) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, objectType)
	}
	return nil
}

func (m *mockBackend) Close() error {
	m.closed = true
	return nil
}
