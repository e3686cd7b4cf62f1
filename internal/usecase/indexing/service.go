// Package indexing propagates object changes to the search index.
//
// Index writes never fail the caller: a backend error is logged, counted and turned into
// a reconcile request, because the object store stays authoritative and a rebuild
// restores the index.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/logger"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// TypeSource resolves registered object types.
type TypeSource interface {
	Type(key string) (schema.ObjectType, error)
}

// Service applies object change events to the index synchronously.
type Service struct {
	types   TypeSource
	mapper  Mapper
	index   Index
	loader  ObjectLoader
	trigger ReconcileTrigger
	logger  *zap.Logger
}

// New creates an indexing service.
func New(types TypeSource, m Mapper, index Index, l *zap.Logger) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{types: types, mapper: m, index: index, logger: l}
}

// WithLoader lets events without an instance load it from the object store.
func (s *Service) WithLoader(l ObjectLoader) *Service {
	s.loader = l
	return s
}

// WithReconcileTrigger sets where failed writes request a rebuild.
func (s *Service) WithReconcileTrigger(t ReconcileTrigger) *Service {
	s.trigger = t
	return s
}

// OnObjectChanged applies ev to the index. Malformed events and unknown object types are
// returned as errors; index failures are swallowed.
func (s *Service) OnObjectChanged(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMapping, err)
	}
	if _, err := s.types.Type(ev.ObjectType); err != nil {
		return err
	}

	if ev.Kind == event.Deleted {
		s.remove(ctx, ev, ev.PrimaryKey)
		return nil
	}

	instance := ev.Instance
	if instance == nil {
		if s.loader == nil {
			return fmt.Errorf("%w: %s event for %s:%s has no instance", domain.ErrMapping, ev.Kind, ev.ObjectType, ev.PrimaryKey)
		}
		obj, err := s.loader.Get(ctx, ev.ObjectType, ev.PrimaryKey)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// deleted before we got to it
			s.remove(ctx, ev, ev.PrimaryKey)
			return nil
		case err != nil:
			return fmt.Errorf("load %s:%s: %w", ev.ObjectType, ev.PrimaryKey, err)
		}
		instance = obj
	}

	doc, err := s.mapper.Map(ev.ObjectType, instance)
	if err != nil {
		return fmt.Errorf("map %s event: %w", ev.Kind, err)
	}
	if ev.PrimaryKey != "" && doc.PrimaryKey() != ev.PrimaryKey {
		return fmt.Errorf("%w: event key %q does not match instance key %q",
			domain.ErrMapping, ev.PrimaryKey, doc.PrimaryKey())
	}
	if err := s.index.PutDocument(ctx, doc); err != nil {
		s.failed(ctx, ev, doc.ID(), err)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, ev event.Event, pk string) {
	id := document.ID(ev.ObjectType, pk)
	if err := s.index.DeleteDocument(ctx, id); err != nil {
		s.failed(ctx, ev, id, err)
	}
}

func (s *Service) failed(ctx context.Context, ev event.Event, id string, err error) {
	metrics.IndexingFailuresTotal.WithLabelValues(ev.ObjectType, string(ev.Kind)).Inc()
	log := logger.FromContextOr(ctx, s.logger)
	log.Error("Index write failed, object left for reconcile",
		zap.String("object_type", ev.ObjectType),
		zap.String("kind", string(ev.Kind)),
		zap.String("doc_id", id),
		zap.Error(err),
	)
	if s.trigger == nil {
		return
	}
	if terr := s.trigger.RequestReconcile(ctx, ev.ObjectType); terr != nil {
		log.Error("Reconcile request failed",
			zap.String("object_type", ev.ObjectType),
			zap.Error(terr),
		)
	}
}
