package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/logger"
)

// DefaultDebounce is how long a pending reconcile request absorbs new ones.
const DefaultDebounce = 30 * time.Second

// Pusher appends to a list.
type Pusher interface {
	LPush(ctx context.Context, key string, values ...string) error
}

// Locker claims a key for a while.
type Locker interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// Publisher enqueues change events and reconcile requests.
type Publisher struct {
	list     Pusher
	locks    Locker
	key      string
	prefix   string
	debounce time.Duration
	logger   *zap.Logger
}

// NewPublisher creates a publisher writing to the list at prefix+queueKey.
func NewPublisher(list Pusher, locks Locker, prefix, queueKey string, l *zap.Logger) *Publisher {
	if l == nil {
		l = zap.NewNop()
	}
	return &Publisher{
		list:     list,
		locks:    locks,
		key:      prefix + queueKey,
		prefix:   prefix,
		debounce: DefaultDebounce,
		logger:   l,
	}
}

// WithDebounce overrides DefaultDebounce.
func (p *Publisher) WithDebounce(d time.Duration) *Publisher {
	p.debounce = d
	return p
}

// OnObjectChanged enqueues ev. Malformed events are rejected before they reach the queue.
func (p *Publisher) OnObjectChanged(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMapping, err)
	}
	raw, err := encode(Message{Kind: KindEvent, Event: &ev})
	if err != nil {
		return err
	}
	if err := p.list.LPush(ctx, p.key, raw); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	return nil
}

// RequestReconcile enqueues a rebuild of objectType unless one is already pending.
func (p *Publisher) RequestReconcile(ctx context.Context, objectType string) error {
	if p.locks != nil {
		ok, err := p.locks.SetNX(ctx, reconcileKey(p.prefix, objectType), "1", p.debounce)
		if err != nil {
			return fmt.Errorf("claim reconcile of %s: %w", objectType, err)
		}
		if !ok {
			logger.FromContextOr(ctx, p.logger).Debug("Reconcile already pending",
				zap.String("object_type", objectType))
			return nil
		}
	}
	raw, err := encode(Message{Kind: KindReconcile, ObjectType: objectType})
	if err != nil {
		return err
	}
	if err := p.list.LPush(ctx, p.key, raw); err != nil {
		return fmt.Errorf("enqueue reconcile: %w", err)
	}
	logger.FromContextOr(ctx, p.logger).Info("Reconcile requested", zap.String("object_type", objectType))
	return nil
}

func reconcileKey(prefix, objectType string) string {
	return prefix + "reconcile:" + objectType
}
