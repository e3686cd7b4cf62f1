// Package factory builds search backends from index group configuration.
package factory

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/backend/cluster"
	"github.com/kailas-cloud/searchcore/internal/backend/database"
	"github.com/kailas-cloud/searchcore/internal/backend/embedded"
	"github.com/kailas-cloud/searchcore/internal/config"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Open builds the backend of one index group.
func Open(name string, g config.IndexGroupConfig, search config.SearchConfig, guard *lifecycle.Guard, logger *zap.Logger) (backend.Backend, error) {
	limits := query.Limits{DefaultLimit: search.DefaultPageSize, MaxLimit: search.MaxPageSize}
	logger = logger.With(zap.String("index_group", name))

	switch g.Backend {
	case config.BackendDatabase:
		return database.New(database.Config{
			Path:      g.Database.Path,
			MaxConns:  g.Database.MaxConns,
			BatchSize: search.BulkBatchSize,
			Limits:    limits,
		}, guard, logger)
	case config.BackendEmbedded:
		return embedded.New(embedded.Config{
			Dir:       g.Embedded.Dir,
			BatchSize: search.BulkBatchSize,
			Limits:    limits,
		}, guard, logger), nil
	case config.BackendElasticsearch7, config.BackendElasticsearch8, config.BackendOpenSearch2:
		c := g.Cluster
		return cluster.New(cluster.Config{
			Addresses:       c.Addresses,
			Username:        c.Username,
			Password:        c.Password,
			APIKey:          c.APIKey,
			Dialect:         g.Backend,
			IndexPrefix:     c.IndexPrefix,
			Shards:          c.Shards,
			Replicas:        c.Replicas,
			RefreshInterval: c.RefreshInterval,
			MaxResultWindow: c.MaxResultWindow,
			BulkBatchSize:   search.BulkBatchSize,
			BulkRatePerSec:  c.BulkRatePerSec,
			MaxRetries:      c.MaxRetries,
			Limits:          limits,
		}, guard, logger)
	}
	return nil, domain.NewConfigError("index_groups."+name, "unknown backend %q", g.Backend)
}

// Build opens every index group, wraps each backend with Instrumented and routes the
// group's object types to it. Backends opened before a failure are closed.
func Build(cfg config.Config, logger *zap.Logger) (*backend.Router, error) {
	guard := lifecycle.NewGuard()
	timeout := time.Duration(cfg.Search.BackendTimeoutMs) * time.Millisecond

	assign := make(map[string]backend.Backend)
	var opened []backend.Backend
	for _, name := range cfg.GroupNames() {
		g := cfg.IndexGroups[name]
		b, err := Open(name, g, cfg.Search, guard, logger)
		if err != nil {
			var errs []error
			for _, o := range opened {
				errs = append(errs, o.Close())
			}
			return nil, errors.Join(fmt.Errorf("index group %s: %w", name, err), errors.Join(errs...))
		}
		wrapped := backend.NewInstrumented(b, timeout, logger)
		opened = append(opened, wrapped)
		for _, key := range g.Types {
			assign[key] = wrapped
		}
		logger.Info("Search backend ready",
			zap.String("index_group", name),
			zap.String("backend", b.Name()),
			zap.Strings("types", g.Types),
		)
	}
	return backend.NewRouter(assign), nil
}
