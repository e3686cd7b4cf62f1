// Package embedded implements the search backend in-process on bleve.
//
// Each object type is served through a bleve index alias pointing at one generation-numbered
// index, kept in memory or under Config.Dir. Rebuilds go through the lifecycle manager;
// with a directory the live generation survives restarts through a pointer file.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Name is the backend name.
const Name = "embedded"

// Config configures the embedded backend.
type Config struct {
	// Dir holds one directory per object type; empty keeps indexes in memory.
	Dir       string
	BatchSize int
	Limits    query.Limits
}

// Backend is the bleve search backend.
type Backend struct {
	cfg     Config
	types   *backend.Types
	manager *lifecycle.Manager
	logger  *zap.Logger

	mu      sync.RWMutex
	indexes map[string]map[int]bleve.Index
	aliases map[string]bleve.IndexAlias
	current map[string]int
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ lifecycle.Generations = (*Backend)(nil)
)

// New creates an embedded backend. guard may be shared across backends.
func New(cfg Config, guard *lifecycle.Guard, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limits.MaxLimit == 0 {
		cfg.Limits = query.DefaultLimits()
	}
	b := &Backend{
		cfg:     cfg,
		types:   backend.NewTypes(),
		logger:  logger,
		indexes: make(map[string]map[int]bleve.Index),
		aliases: make(map[string]bleve.IndexAlias),
		current: make(map[string]int),
	}
	b.manager = lifecycle.NewManager(b, guard, cfg.BatchSize, logger)
	return b
}

// Name returns "embedded".
func (b *Backend) Name() string { return Name }

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error { return nil }

// EnsureSchema discovers or creates the index of each type and attaches the live
// generation to its alias.
func (b *Backend) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	for _, ot := range types {
		b.types.Add(ot)
		if err := b.manager.Init(ctx, ot); err != nil {
			return domain.Unavailable(Name, "ensure_schema", err)
		}
		if err := b.attach(ot.Key(), b.manager.Live(ot.Key())); err != nil {
			return domain.Unavailable(Name, "ensure_schema", err)
		}
	}
	return nil
}

// attach points the alias at gen when discovery found an existing live generation.
func (b *Backend) attach(objectType string, gen int) error {
	b.mu.RLock()
	attached := b.current[objectType] == gen
	b.mu.RUnlock()
	if gen == 0 || attached {
		return nil
	}
	idx, err := b.index(objectType, gen)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aliasLocked(objectType).Swap([]bleve.Index{idx}, nil)
	b.current[objectType] = gen
	return nil
}

// PutDocument indexes doc into the live generation and, during a rebuild, the building one.
func (b *Backend) PutDocument(ctx context.Context, doc document.Document) error {
	if _, err := b.types.Get(doc.Type()); err != nil {
		return err
	}
	return b.manager.Write(doc.Type(), func(targets []int) error {
		for _, gen := range targets {
			idx, err := b.index(doc.Type(), gen)
			if err != nil {
				return domain.Unavailable(Name, "put", err)
			}
			if err := idx.Index(doc.ID(), source(doc)); err != nil {
				return domain.Unavailable(Name, "put", fmt.Errorf("index %s: %w", doc.ID(), err))
			}
		}
		return nil
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
		for _, gen := range targets {
			idx, err := b.index(objectType, gen)
			if err != nil {
				return domain.Unavailable(Name, "delete", err)
			}
			if err := idx.Delete(id); err != nil {
				return domain.Unavailable(Name, "delete", fmt.Errorf("delete %s: %w", id, err))
			}
		}
		return nil
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

// Drop deletes every generation of objectType.
func (b *Backend) Drop(ctx context.Context, objectType string) error {
	return b.manager.Drop(ctx, objectType)
}

// Search runs q against the live generation of objectType.
func (b *Backend) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	plan, ot, err := b.types.Prepare(objectType, q, b.cfg.Limits)
	if err != nil {
		return result.SearchResult{}, err
	}
	req, err := compiler{ot: ot}.request(plan)
	if err != nil {
		return result.SearchResult{}, err
	}

	b.mu.RLock()
	alias, ok := b.aliases[objectType]
	live := b.current[objectType]
	b.mu.RUnlock()
	if !ok || live == 0 {
		return result.Empty(0), nil
	}

	res, err := alias.SearchInContext(ctx, req)
	if errors.Is(err, bleve.ErrorAliasEmpty) {
		return result.Empty(0), nil
	}
	if err != nil {
		return result.SearchResult{}, domain.Unavailable(Name, "search", err)
	}

	total := int(res.Total)
	if plan.Offset >= total {
		return result.Empty(total), nil
	}
	hits := make([]result.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, result.Hit{ID: h.ID, Score: h.Score})
	}
	return result.SearchResult{Hits: hits, Total: total}, nil
}

// Refresh is a no-op: indexed batches are searchable on return.
func (b *Backend) Refresh(_ context.Context, objectType string) error {
	_, err := b.types.Get(objectType)
	return err
}

// Close closes every open generation.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for key, gens := range b.indexes {
		for gen, idx := range gens {
			if err := idx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s generation %d: %w", key, gen, err))
			}
		}
	}
	b.indexes = make(map[string]map[int]bleve.Index)
	b.aliases = make(map[string]bleve.IndexAlias)
	b.current = make(map[string]int)
	return errors.Join(errs...)
}

// States reports lifecycle state per type.
func (b *Backend) States() []lifecycle.Status { return b.manager.States() }
