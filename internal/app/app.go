// Package app assembles the search service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/backend/factory"
	"github.com/kailas-cloud/searchcore/internal/config"
	dbRedis "github.com/kailas-cloud/searchcore/internal/db/redis"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/mapper"
	"github.com/kailas-cloud/searchcore/internal/queue"
	"github.com/kailas-cloud/searchcore/internal/repository/records"
	healthuc "github.com/kailas-cloud/searchcore/internal/usecase/health"
	"github.com/kailas-cloud/searchcore/internal/usecase/indexing"
	objectsuc "github.com/kailas-cloud/searchcore/internal/usecase/objects"
	"github.com/kailas-cloud/searchcore/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/searchcore/internal/usecase/search"
)

// EventSink accepts object change events.
type EventSink interface {
	OnObjectChanged(ctx context.Context, ev event.Event) error
}

// App holds the wired components.
type App struct {
	Registry  *schema.Registry
	Store     *dbRedis.Store
	Records   *records.Repo
	Backends  *backend.Router
	Indexing  *indexing.Service
	Publisher *queue.Publisher
	Worker    *queue.Worker
	// Events is Indexing in sync mode and Publisher in async mode.
	Events  EventSink
	Objects *objectsuc.Service
	Search  *searchuc.Service
	Rebuild *rebuild.Service
	Health  *healthuc.Service

	logger *zap.Logger
}

// New connects to Redis and every index group, declares the schema on the backends and
// wires the services.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	popTimeout := time.Duration(cfg.Indexing.PopTimeoutSec) * time.Second
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Redis.Addrs,
		Username:   cfg.Redis.Username,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxBlock:   popTimeout,
		CacheBytes: cfg.Redis.CacheSizeMB << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to object store", zap.Strings("addrs", cfg.Redis.Addrs))

	router, err := factory.Build(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := router.EnsureSchema(ctx, reg.Types()); err != nil {
		store.Close()
		return nil, errors.Join(fmt.Errorf("ensure schema: %w", err), router.Close())
	}

	// the worker's loader and rebuild streams must see the latest write; only hydration
	// may read through the client cache
	objects := records.New(store, cfg.Redis.KeyPrefix)
	hydration := objects
	if cfg.Redis.CacheSizeMB > 0 {
		hydration = objects.Cached(time.Duration(cfg.Redis.CacheTTLSec) * time.Second)
	}
	m := mapper.New(reg, mapper.MapAccessor{}, logger)

	pub := queue.NewPublisher(store, store, cfg.Redis.KeyPrefix, cfg.Indexing.QueueKey, logger)
	idx := indexing.New(reg, m, router, logger).
		WithLoader(objects).
		WithReconcileTrigger(pub)
	rb := rebuild.New(reg, objects, m, router, logger)
	worker := queue.NewWorker(store, idx, rb, pub, queue.WorkerConfig{
		Prefix:     cfg.Redis.KeyPrefix,
		QueueKey:   cfg.Indexing.QueueKey,
		Workers:    cfg.Indexing.Workers,
		PopTimeout: popTimeout,
	}, logger)

	var events EventSink = idx
	if cfg.Indexing.Mode == config.ModeAsync {
		events = pub
	}

	checks := make([]healthuc.Backend, 0, len(router.Backends()))
	for _, b := range router.Backends() {
		checks = append(checks, b)
	}

	return &App{
		Registry:  reg,
		Store:     store,
		Records:   objects,
		Backends:  router,
		Indexing:  idx,
		Publisher: pub,
		Worker:    worker,
		Events:    events,
		Objects:   objectsuc.New(objects, reg, events),
		Search: searchuc.New(reg, router, hydration, query.Limits{
			DefaultLimit: cfg.Search.DefaultPageSize,
			MaxLimit:     cfg.Search.MaxPageSize,
		}, logger),
		Rebuild: rb,
		Health:  healthuc.New(store, checks...),
		logger:  logger,
	}, nil
}

// Close releases backends and the Redis connection.
func (a *App) Close() error {
	err := a.Backends.Close()
	a.Store.Close()
	if err != nil {
		a.logger.Error("Error closing backends", zap.Error(err))
	}
	return err
}
