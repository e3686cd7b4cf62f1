package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/searchcore/internal/db"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

const (
	defaultPopTimeout = 5 * time.Second
	depthInterval     = 5 * time.Second
	errorBackoff      = time.Second
)

// Consumer pops from a list and releases reconcile claims.
type Consumer interface {
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
}

// EventHandler applies a change event to the index.
type EventHandler interface {
	OnObjectChanged(ctx context.Context, ev event.Event) error
}

// Reconciler rebuilds one object type.
type Reconciler interface {
	Reconcile(ctx context.Context, objectType string) error
}

// ReconcileTrigger requests a rebuild.
type ReconcileTrigger interface {
	RequestReconcile(ctx context.Context, objectType string) error
}

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	Prefix     string
	QueueKey   string
	Workers    int
	PopTimeout time.Duration
}

// Worker drains the queue with a fixed pool of consumers.
type Worker struct {
	list       Consumer
	events     EventHandler
	reconciler Reconciler
	trigger    ReconcileTrigger
	cfg        WorkerConfig
	logger     *zap.Logger
}

// NewWorker creates a worker pool. trigger may be nil.
func NewWorker(list Consumer, events EventHandler, reconciler Reconciler, trigger ReconcileTrigger,
	cfg WorkerConfig, l *zap.Logger,
) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Worker{
		list:       list,
		events:     events,
		reconciler: reconciler,
		trigger:    trigger,
		cfg:        cfg,
		logger:     l.Named("queue"),
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Queue workers started",
		zap.Int("workers", w.cfg.Workers),
		zap.String("key", w.key()),
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range w.cfg.Workers {
		g.Go(func() error {
			w.consume(gctx, w.logger.With(zap.Int("worker", i)))
			return nil
		})
	}
	g.Go(func() error {
		w.trackDepth(gctx)
		return nil
	})
	err := g.Wait()
	w.logger.Info("Queue workers stopped")
	return err
}

func (w *Worker) key() string { return w.cfg.Prefix + w.cfg.QueueKey }

func (w *Worker) consume(ctx context.Context, log *zap.Logger) {
	for ctx.Err() == nil {
		raw, err := w.list.BRPop(ctx, w.key(), w.cfg.PopTimeout)
		switch {
		case errors.Is(err, db.ErrKeyNotFound):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Warn("Queue pop failed", zap.Error(err))
			sleep(ctx, errorBackoff)
			continue
		}
		w.handle(ctx, raw, log)
	}
}

// handle processes one message. Messages are never requeued: a lost event leaves the
// index stale until the next reconcile.
func (w *Worker) handle(ctx context.Context, raw string, log *zap.Logger) {
	msg, err := decode(raw)
	if err != nil {
		log.Error("Dropping malformed message", zap.Error(err))
		return
	}

	switch msg.Kind {
	case KindEvent:
		ev := *msg.Event
		err := w.events.OnObjectChanged(ctx, ev)
		if err == nil {
			return
		}
		log.Error("Event not applied",
			zap.String("object_type", ev.ObjectType),
			zap.String("kind", string(ev.Kind)),
			zap.String("pk", ev.PrimaryKey),
			zap.Error(err),
		)
		if permanent(err) || w.trigger == nil {
			return
		}
		if terr := w.trigger.RequestReconcile(ctx, ev.ObjectType); terr != nil {
			log.Error("Reconcile request failed", zap.String("object_type", ev.ObjectType), zap.Error(terr))
		}

	case KindReconcile:
		// release the claim first so failures seen during the rebuild can queue another
		if err := w.list.Del(ctx, reconcileKey(w.cfg.Prefix, msg.ObjectType)); err != nil {
			log.Warn("Reconcile claim not released", zap.String("object_type", msg.ObjectType), zap.Error(err))
		}
		if err := w.reconciler.Reconcile(ctx, msg.ObjectType); err != nil {
			log.Error("Reconcile failed", zap.String("object_type", msg.ObjectType), zap.Error(err))
		}
	}
}

func (w *Worker) trackDepth(ctx context.Context) {
	t := time.NewTicker(depthInterval)
	defer t.Stop()
	for {
		if n, err := w.list.LLen(ctx, w.key()); err == nil {
			metrics.QueueDepth.Set(float64(n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrMapping) || errors.Is(err, domain.ErrConfig)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
