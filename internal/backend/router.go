package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Router dispatches each object type to the backend of its index group.
type Router struct {
	byType   map[string]Backend
	backends []Backend
}

// NewRouter creates a Router from a type key → backend assignment.
// Every backend appears once in Ping, Close and EnsureSchema fan-out.
func NewRouter(assign map[string]Backend) *Router {
	r := &Router{byType: make(map[string]Backend, len(assign))}
	seen := make(map[Backend]bool)
	for key, b := range assign {
		r.byType[key] = b
		if !seen[b] {
			seen[b] = true
			r.backends = append(r.backends, b)
		}
	}
	return r
}

// Name returns "router".
func (r *Router) Name() string { return "router" }

// Backends returns the distinct routed backends.
func (r *Router) Backends() []Backend { return r.backends }

// For returns the backend serving objectType.
func (r *Router) For(objectType string) (Backend, error) {
	b, ok := r.byType[objectType]
	if !ok {
		return nil, domain.NewConfigError("router", "no index group serves object type %q", objectType)
	}
	return b, nil
}

// Ping pings every backend.
func (r *Router) Ping(ctx context.Context) error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// EnsureSchema hands every backend the types routed to it.
func (r *Router) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	grouped := make(map[Backend][]schema.ObjectType)
	for _, ot := range types {
		b, err := r.For(ot.Key())
		if err != nil {
			return err
		}
		grouped[b] = append(grouped[b], ot)
	}
	for _, b := range r.backends {
		if len(grouped[b]) == 0 {
			continue
		}
		if err := b.EnsureSchema(ctx, grouped[b]); err != nil {
			return fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	return nil
}

// PutDocument routes by document type.
func (r *Router) PutDocument(ctx context.Context, doc document.Document) error {
	b, err := r.For(doc.Type())
	if err != nil {
		return err
	}
	return b.PutDocument(ctx, doc)
}

// DeleteDocument routes by the type encoded in id.
func (r *Router) DeleteDocument(ctx context.Context, id string) error {
	objectType, _, err := document.ParseID(id)
	if err != nil {
		return domain.NewConfigError("router", "%v", err)
	}
	b, err := r.For(objectType)
	if err != nil {
		return err
	}
	return b.DeleteDocument(ctx, id)
}

// BulkRebuild routes to the type's backend.
func (r *Router) BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error {
	b, err := r.For(objectType)
	if err != nil {
		return err
	}
	return b.BulkRebuild(ctx, objectType, docs)
}

// Search routes to the type's backend.
func (r *Router) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	b, err := r.For(objectType)
	if err != nil {
		return result.SearchResult{}, err
	}
	return b.Search(ctx, objectType, q)
}

// Refresh routes to the type's backend.
func (r *Router) Refresh(ctx context.Context, objectType string) error {
	b, err := r.For(objectType)
	if err != nil {
		return err
	}
	return b.Refresh(ctx, objectType)
}

// Drop deletes the type's index when its backend supports it.
func (r *Router) Drop(ctx context.Context, objectType string) error {
	b, err := r.For(objectType)
	if err != nil {
		return err
	}
	d, ok := b.(Dropper)
	if !ok {
		return domain.NewConfigError("router", "backend %s cannot drop indexes", b.Name())
	}
	return d.Drop(ctx, objectType)
}

// Close closes every backend.
func (r *Router) Close() error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// States collects lifecycle state from every backend that reports it.
func (r *Router) States() []lifecycle.Status {
	var out []lifecycle.Status
	for _, b := range r.backends {
		if sr, ok := b.(StatusReporter); ok {
			out = append(out, sr.States()...)
		}
	}
	return out
}
