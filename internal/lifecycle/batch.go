package lifecycle

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
)

// DefaultBatchSize is the number of documents per bulk write.
const DefaultBatchSize = 500

// Batches drains docs in chunks of size and calls fn for each chunk. It stops at the first
// stream error, fn error or context cancellation.
func Batches(ctx context.Context, docs document.Stream, size int, fn func([]document.Document) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batch := make([]document.Document, 0, size)
	for doc, err := range docs {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, doc)
		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]document.Document, 0, size)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
