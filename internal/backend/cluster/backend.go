// Package cluster implements the search backend on Elasticsearch 7, Elasticsearch 8 and
// OpenSearch 2 over the product-agnostic Elastic HTTP transport.
//
// Each object type is served through an alias pointing at one generation-numbered index;
// rebuilds go through the lifecycle manager. Dialect differences are confined to the
// dialect table and the query compiler.
package cluster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Name is the backend family name used in errors.
const Name = "cluster"

// Defaults.
const (
	DefaultIndexPrefix     = "searchcore_"
	DefaultRefreshInterval = "1s"
	DefaultMaxResultWindow = 10000
)

// Config configures a cluster backend.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Dialect   string

	IndexPrefix     string
	Shards          int
	Replicas        int
	RefreshInterval string
	MaxResultWindow int

	BulkBatchSize  int
	BulkRatePerSec float64
	MaxRetries     int
	Limits         query.Limits

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

func (c *Config) applyDefaults() {
	if c.IndexPrefix == "" {
		c.IndexPrefix = DefaultIndexPrefix
	}
	if c.Shards <= 0 {
		c.Shards = 1
	}
	if c.RefreshInterval == "" {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.MaxResultWindow <= 0 {
		c.MaxResultWindow = DefaultMaxResultWindow
	}
	if c.Limits.MaxLimit == 0 {
		c.Limits = query.DefaultLimits()
	}
}

// Backend is a cluster search backend.
type Backend struct {
	cfg     Config
	dialect Dialect
	client  *client
	types   *backend.Types
	manager *lifecycle.Manager
	limiter *rate.Limiter
	logger  *zap.Logger
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ lifecycle.Generations = (*Backend)(nil)
)

// New creates a cluster backend. guard may be shared across backends.
func New(cfg Config, guard *lifecycle.Guard, logger *zap.Logger) (*Backend, error) {
	cfg.applyDefaults()
	dialect, err := LookupDialect(cfg.Dialect)
	if err != nil {
		return nil, domain.NewConfigError("cluster", "%v", err)
	}
	c, err := newClient(cfg)
	if err != nil {
		return nil, domain.NewConfigError("cluster", "%v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.BulkRatePerSec > 0 {
		limit = rate.Limit(cfg.BulkRatePerSec)
	}

	b := &Backend{
		cfg:     cfg,
		dialect: dialect,
		client:  c,
		types:   backend.NewTypes(),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(zap.String("dialect", dialect.Name)),
	}
	b.manager = lifecycle.NewManager(b, guard, cfg.BulkBatchSize, b.logger)
	return b, nil
}

// Name returns the dialect name.
func (b *Backend) Name() string { return b.dialect.Name }

// Dialect returns the configured dialect.
func (b *Backend) Dialect() Dialect { return b.dialect }

// Ping checks connectivity and warns when the cluster is not the configured product.
func (b *Backend) Ping(ctx context.Context) error {
	var info rootInfo
	if err := b.client.do(ctx, "ping", http.MethodGet, "/", nil, nil, &info); err != nil {
		return err
	}
	detected, err := detect(info)
	if err != nil {
		b.logger.Warn("Cannot determine cluster dialect", zap.Error(err))
		return nil
	}
	if detected.Name != b.dialect.Name {
		b.logger.Warn("Cluster does not match configured dialect",
			zap.String("configured", b.dialect.Name),
			zap.String("detected", detected.Name),
			zap.String("version", info.Version.Number),
		)
	}
	return nil
}

// EnsureSchema discovers or creates the index of each type.
func (b *Backend) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	for _, ot := range types {
		b.types.Add(ot)
		if err := b.manager.Init(ctx, ot); err != nil {
			return err
		}
	}
	return nil
}

// PutDocument indexes doc into the live generation and, during a rebuild, the building one.
func (b *Backend) PutDocument(ctx context.Context, doc document.Document) error {
	if _, err := b.types.Get(doc.Type()); err != nil {
		return err
	}
	return b.manager.Write(doc.Type(), func(targets []int) error {
		var bb bulkBuilder
		for _, gen := range targets {
			if err := bb.index(b.generationIndex(doc.Type(), gen), doc); err != nil {
				return err
			}
		}
		return b.bulk(ctx, "put", &bb)
	})
}

// DeleteDocument removes id from every write target. Absent ids are a no-op.
func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	objectType, _, err := document.ParseID(id)
	if err != nil {
		return domain.NewConfigError(Name, "%v", err)
	}
	if _, err := b.types.Get(objectType); err != nil {
		return err
	}
	return b.manager.Write(objectType, func(targets []int) error {
		var bb bulkBuilder
		for _, gen := range targets {
			if err := bb.delete(b.generationIndex(objectType, gen), id); err != nil {
				return err
			}
		}
		return b.bulk(ctx, "delete", &bb)
	})
}

// BulkRebuild fills a new generation from docs and swaps the alias to it.
func (b *Backend) BulkRebuild(ctx context.Context, objectType string, docs document.Stream) error {
	ot, err := b.types.Get(objectType)
	if err != nil {
		return err
	}
	return b.manager.Rebuild(ctx, ot, docs)
}

// Drop deletes the alias and all generations of objectType.
func (b *Backend) Drop(ctx context.Context, objectType string) error {
	return b.manager.Drop(ctx, objectType)
}

type searchReply struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID    string   `json:"_id"`
			Score *float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search queries the alias of objectType. Requests never reach past max_result_window:
// deeper pages only report the total.
func (b *Backend) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	plan, ot, err := b.types.Prepare(objectType, q, b.cfg.Limits)
	if err != nil {
		return result.SearchResult{}, err
	}

	from, size := plan.Offset, plan.Limit
	window := b.cfg.MaxResultWindow
	switch {
	case from >= window:
		from, size = 0, 0
	case from+size > window:
		size = window - from
	}

	body, err := compiler{dialect: b.dialect, ot: ot}.searchBody(plan, from, size)
	if err != nil {
		return result.SearchResult{}, err
	}

	var reply searchReply
	err = b.client.do(ctx, "search", http.MethodPost, "/"+b.alias(objectType)+"/_search", nil, body, &reply)
	if IsNotFound(err) {
		return result.Empty(0), nil
	}
	if err != nil {
		return result.SearchResult{}, rejected(plan.Root.Name(), err)
	}

	total := reply.Hits.Total.Value
	if size == 0 || plan.Offset >= total {
		return result.Empty(total), nil
	}
	hits := make([]result.Hit, 0, len(reply.Hits.Hits))
	for _, h := range reply.Hits.Hits {
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, result.Hit{ID: h.ID, Score: score})
	}
	return result.SearchResult{Hits: hits, Total: total}, nil
}

// Refresh makes writes to the live generation visible.
func (b *Backend) Refresh(ctx context.Context, objectType string) error {
	if _, err := b.types.Get(objectType); err != nil {
		return err
	}
	err := b.client.do(ctx, "refresh", http.MethodPost, "/"+b.alias(objectType)+"/_refresh", nil, nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Close is a no-op; the transport holds no resources beyond idle connections.
func (b *Backend) Close() error { return nil }

// States reports lifecycle state per type.
func (b *Backend) States() []lifecycle.Status { return b.manager.States() }

func (b *Backend) bulk(ctx context.Context, op string, bb *bulkBuilder) error {
	if bb.n == 0 {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var reply bulkReply
	if err := b.client.do(ctx, op, http.MethodPost, "/_bulk", url.Values{"refresh": {"false"}}, bb.bytes(), &reply); err != nil {
		return err
	}
	return reply.err(op)
}
