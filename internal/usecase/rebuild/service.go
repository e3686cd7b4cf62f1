// Package rebuild repopulates indexes from the object store.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/logger"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// Report summarises one rebuild.
type Report struct {
	ObjectType string        `json:"object_type"`
	Documents  int           `json:"documents"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// Service rebuilds indexes.
type Service struct {
	types   TypeSource
	objects ObjectSource
	mapper  Mapper
	index   Index
	logger  *zap.Logger
}

// New creates a rebuild service.
func New(types TypeSource, objects ObjectSource, m Mapper, index Index, l *zap.Logger) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{types: types, objects: objects, mapper: m, index: index, logger: l}
}

// Rebuild streams every stored object of objectType into a fresh index and swaps it in.
// Objects that cannot be mapped are skipped. A concurrent rebuild of the same type fails
// with ErrRebuildInProgress.
func (s *Service) Rebuild(ctx context.Context, objectType string) (Report, error) {
	if _, err := s.types.Type(objectType); err != nil {
		return Report{ObjectType: objectType}, err
	}
	log := logger.ForObjectType(logger.FromContextOr(ctx, s.logger), objectType)

	rep := Report{ObjectType: objectType}
	start := time.Now()
	err := s.index.BulkRebuild(ctx, objectType, s.stream(ctx, objectType, &rep, log))
	rep.Duration = time.Since(start)

	switch {
	case err == nil:
		metrics.RebuildsTotal.WithLabelValues(objectType, "ok").Inc()
		log.Info("Rebuild complete",
			zap.Int("documents", rep.Documents),
			zap.Int("skipped", rep.Skipped),
			zap.Duration("duration", rep.Duration),
		)
		return rep, nil
	case errors.Is(err, domain.ErrRebuildInProgress):
		metrics.RebuildsTotal.WithLabelValues(objectType, "rejected").Inc()
	default:
		metrics.RebuildsTotal.WithLabelValues(objectType, "failed").Inc()
		log.Error("Rebuild failed, previous index kept", zap.Error(err))
	}
	rep.Error = err.Error()
	return rep, fmt.Errorf("rebuild %s: %w", objectType, err)
}

// RebuildAll rebuilds every registered type in registration order. A failing type does
// not stop the others; the joined errors are returned with every report.
func (s *Service) RebuildAll(ctx context.Context) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, ot := range s.types.Types() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := s.Rebuild(ctx, ot.Key())
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Reconcile rebuilds objectType on request. A rebuild already in flight covers the request.
func (s *Service) Reconcile(ctx context.Context, objectType string) error {
	_, err := s.Rebuild(ctx, objectType)
	if errors.Is(err, domain.ErrRebuildInProgress) {
		return nil
	}
	return err
}

func (s *Service) stream(ctx context.Context, objectType string, rep *Report, log *zap.Logger) document.Stream {
	return func(yield func(document.Document, error) bool) {
		for obj, err := range s.objects.All(ctx, objectType) {
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			doc, err := s.mapper.Map(objectType, obj)
			if err != nil {
				rep.Skipped++
				log.Warn("Object skipped in rebuild", zap.Any("id", obj["id"]), zap.Error(err))
				continue
			}
			rep.Documents++
			if !yield(doc, nil) {
				return
			}
		}
	}
}
