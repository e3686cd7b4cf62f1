package backend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// DefaultTimeout bounds single-document and search calls when the caller sets no deadline.
const DefaultTimeout = 10 * time.Second

// Instrumented wraps a Backend with a default timeout, timeout classification, logging
// and metrics. BulkRebuild runs under the caller's context only.
type Instrumented struct {
	inner   Backend
	timeout time.Duration
	logger  *zap.Logger
}

// NewInstrumented wraps inner. timeout <= 0 selects DefaultTimeout.
func NewInstrumented(inner Backend, timeout time.Duration, logger *zap.Logger) *Instrumented {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{inner: inner, timeout: timeout, logger: logger.With(zap.String("backend", inner.Name()))}
}

// Name returns the wrapped backend's name.
func (b *Instrumented) Name() string { return b.inner.Name() }

// Unwrap returns the wrapped backend.
func (b *Instrumented) Unwrap() Backend { return b.inner }

// Ping checks engine connectivity.
func (b *Instrumented) Ping(ctx context.Context) error {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.observe(ctx, "ping", "", func() error { return b.inner.Ping(ctx) })
}

// EnsureSchema prepares indexes.
func (b *Instrumented) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	return b.observe(ctx, "ensure_schema", "", func() error { return b.inner.EnsureSchema(ctx, types) })
}

// PutDocument upserts a document.
func (b *Instrumented) PutDocument(ctx context.Context, doc document.Document) error {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.observe(ctx, "put", doc.Type(), func() error { return b.inner.PutDocument(ctx, doc) })
}

// DeleteDocument removes a document.
func (b *Instrumented) DeleteDocument(ctx context.Context, id string) error {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	objectType, _, _ := document.ParseID(id)
	return b.observe(ctx, "delete", objectType, func() error { return b.inner.DeleteDocument(ctx, id) })
}

// BulkRebuild replaces a type's documents.
func (b *Instrumented) BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error {
	return b.observe(ctx, "bulk_rebuild", objectType, func() error { return b.inner.BulkRebuild(ctx, objectType, docs) })
}

// Search runs a query.
func (b *Instrumented) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	var res result.SearchResult
	err := b.observe(ctx, "search", objectType, func() error {
		var err error
		res, err = b.inner.Search(ctx, objectType, q)
		return err
	})
	return res, err
}

// Refresh makes writes visible.
func (b *Instrumented) Refresh(ctx context.Context, objectType string) error {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.observe(ctx, "refresh", objectType, func() error { return b.inner.Refresh(ctx, objectType) })
}

// Drop deletes a type's index when the wrapped backend supports it.
func (b *Instrumented) Drop(ctx context.Context, objectType string) error {
	d, ok := b.inner.(Dropper)
	if !ok {
		return domain.NewConfigError(b.inner.Name(), "drop is not supported")
	}
	return b.observe(ctx, "drop", objectType, func() error { return d.Drop(ctx, objectType) })
}

// Close releases the backend.
func (b *Instrumented) Close() error { return b.inner.Close() }

// States forwards lifecycle state when the wrapped backend reports it.
func (b *Instrumented) States() []lifecycle.Status {
	if sr, ok := b.inner.(StatusReporter); ok {
		return sr.States()
	}
	return nil
}

func (b *Instrumented) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Instrumented) observe(ctx context.Context, op, objectType string, fn func() error) error {
	start := time.Now()
	err := classify(ctx, b.inner.Name(), op, fn())
	duration := time.Since(start)

	status := Status(err)
	metrics.BackendRequestsTotal.WithLabelValues(b.inner.Name(), op, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(b.inner.Name(), op).Observe(duration.Seconds())

	switch status {
	case "ok":
		b.logger.Debug("Backend call",
			zap.String("op", op),
			zap.String("object_type", objectType),
			zap.Duration("duration", duration),
		)
	case "query_error", "rejected", "config_error":
		b.logger.Info("Backend call rejected",
			zap.String("op", op),
			zap.String("object_type", objectType),
			zap.Error(err),
		)
	default:
		b.logger.Error("Backend call failed",
			zap.String("op", op),
			zap.String("object_type", objectType),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
	return err
}

// classify turns deadline and cancellation failures into BackendUnavailable.
func classify(ctx context.Context, backend, op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrBackendUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Unavailable(backend, op, err)
	}
	return err
}

// Status maps an error to a metrics label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrQuery):
		return "query_error"
	case errors.Is(err, domain.ErrRebuildInProgress):
		return "rejected"
	case errors.Is(err, domain.ErrConfig):
		return "config_error"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
