// Package searchcore embeds the search subsystem in a Go program: objects are stored in
// Redis, indexed into one search backend and queried through typed indexes.
package searchcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/app"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	healthuc "github.com/kailas-cloud/searchcore/internal/usecase/health"
)

// Client is the searchcore SDK entry point.
type Client struct {
	app    *app.App
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New connects to Redis and the configured backend, declares every type registered
// with Declare and starts the queue workers.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, o := range opts {
		o(cc)
	}
	if len(cc.cfg.Redis.Addrs) == 0 {
		return nil, errors.New("searchcore: redis address required (use WithRedis)")
	}
	cfg, err := cc.build()
	if err != nil {
		return nil, fmt.Errorf("searchcore: %w", err)
	}

	a, err := app.New(ctx, cfg, cc.logger)
	if err != nil {
		return nil, fmt.Errorf("searchcore: %w", err)
	}
	return start(a, cc.logger), nil
}

func start(a *app.App, logger *zap.Logger) *Client {
	workerCtx, cancel := context.WithCancel(context.Background())
	c := &Client{app: a, logger: logger, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		if err := a.Worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Queue workers failed", zap.Error(err))
		}
	}()
	return c
}

// Close stops the workers and releases every connection.
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return c.app.Close()
}

// Ping checks the object store and the backend.
func (c *Client) Ping(ctx context.Context) error {
	rep := c.app.Health.Check(ctx)
	var errs []error
	for name, res := range rep.Checks {
		if res != healthuc.CheckOK {
			errs = append(errs, fmt.Errorf("ping %s: %w", name, ErrBackendUnavailable))
		}
	}
	return errors.Join(errs...)
}

// Types returns the declared object type keys in declaration order.
func (c *Client) Types() []string {
	types := c.app.Registry.Types()
	keys := make([]string, len(types))
	for i, ot := range types {
		keys[i] = ot.Key()
	}
	return keys
}

func (c *Client) objectType(key string) (schema.ObjectType, error) {
	return c.app.Registry.Type(key)
}
