package searchcore

import (
	"context"
	"fmt"
)

// TypedIndex is a generic, schema-first handle on one object type.
// The schema is inferred from T's struct tags at construction time.
type TypedIndex[T any] struct {
	key    string
	client *Client
	meta   *schemaMeta
}

// BatchResult is the outcome of one item of PutBatch.
type BatchResult struct {
	PrimaryKey string
	Created    bool
	Err        error
}

// NewIndex creates a typed index handle for the object type key. T must be a struct
// with search tags, and key must have been declared with Declare when client was built.
func NewIndex[T any](client *Client, key string) (*TypedIndex[T], error) {
	meta, err := schemaFor[T]()
	if err != nil {
		return nil, fmt.Errorf("new index %q: %w", key, err)
	}
	if client != nil {
		if _, err := client.objectType(key); err != nil {
			return nil, fmt.Errorf("new index %q: %w", key, err)
		}
	}
	return &TypedIndex[T]{key: key, client: client, meta: meta}, nil
}

// Key returns the object type key.
func (idx *TypedIndex[T]) Key() string { return idx.key }

// Put stores item and propagates the change to the index. Returns true if created.
func (idx *TypedIndex[T]) Put(ctx context.Context, item T) (bool, error) {
	obj, err := idx.meta.toObject(item)
	if err != nil {
		return false, fmt.Errorf("put %s: %w", idx.key, err)
	}
	_, created, err := idx.client.app.Objects.Put(ctx, idx.key, obj)
	if err != nil {
		return false, fmt.Errorf("put %s: %w", idx.key, err)
	}
	return created, nil
}

// PutBatch stores items one by one. A failed item does not stop the batch.
func (idx *TypedIndex[T]) PutBatch(ctx context.Context, items []T) []BatchResult {
	out := make([]BatchResult, len(items))
	for i, item := range items {
		obj, err := idx.meta.toObject(item)
		if err != nil {
			out[i].Err = err
			continue
		}
		out[i].PrimaryKey, out[i].Created, out[i].Err = idx.client.app.Objects.Put(ctx, idx.key, obj)
	}
	return out
}

// Get retrieves a typed item by primary key.
func (idx *TypedIndex[T]) Get(ctx context.Context, pk string) (T, error) {
	obj, err := idx.client.app.Objects.Get(ctx, idx.key, pk)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s: %w", idx.key, err)
	}
	return fromObject[T](idx.meta, obj)
}

// Delete removes an item by primary key and drops it from the index.
func (idx *TypedIndex[T]) Delete(ctx context.Context, pk string) error {
	if err := idx.client.app.Objects.Delete(ctx, idx.key, pk); err != nil {
		return fmt.Errorf("delete %s: %w", idx.key, err)
	}
	return nil
}

// Rebuild reindexes every stored item of this type.
func (idx *TypedIndex[T]) Rebuild(ctx context.Context) (RebuildReport, error) {
	return idx.client.Rebuild(ctx, idx.key)
}

// Search returns a fluent search builder for this index.
func (idx *TypedIndex[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{idx: idx}
}
