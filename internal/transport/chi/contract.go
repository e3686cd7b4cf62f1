package chi

import (
	"context"

	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
	healthuc "github.com/kailas-cloud/searchcore/internal/usecase/health"
	"github.com/kailas-cloud/searchcore/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/searchcore/internal/usecase/search"
)

// EventSink accepts object change events.
type EventSink interface {
	OnObjectChanged(ctx context.Context, ev event.Event) error
}

// ObjectService reads and writes source objects.
type ObjectService interface {
	Put(ctx context.Context, objectType string, obj map[string]any) (string, bool, error)
	Get(ctx context.Context, objectType, pk string) (map[string]any, error)
	Delete(ctx context.Context, objectType, pk string) error
}

// SearchService runs searches.
type SearchService interface {
	Search(ctx context.Context, objectType string, q query.Node) (searchuc.Page, error)
	SearchText(ctx context.Context, objectType, text string, offset, limit int) (searchuc.Page, error)
}

// RebuildService rebuilds indexes.
type RebuildService interface {
	Rebuild(ctx context.Context, objectType string) (rebuild.Report, error)
	RebuildAll(ctx context.Context) ([]rebuild.Report, error)
}

// IndexAdmin reports and removes indexes.
type IndexAdmin interface {
	States() []lifecycle.Status
	Drop(ctx context.Context, objectType string) error
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
