// Package records is the Redis-backed object store: the source of truth search hits are
// hydrated from and rebuilds stream from.
package records

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kailas-cloud/searchcore/internal/db"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/mapper"
)

// Object is one stored instance: field name to value, primary key under "id".
type Object = map[string]any

const scanPageSize = 200

// store is the consumer interface for objects (ISP).
type store interface {
	ReplaceHash(ctx context.Context, key string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HGetAllCached(ctx context.Context, key string, ttl time.Duration) (map[string]string, error)
	HGetAllMultiCached(ctx context.Context, keys []string, ttl time.Duration) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	ScanPage(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}

// Repo stores objects as hashes under <prefix>obj:<type>:<pk>.
type Repo struct {
	store    store
	prefix   string
	cacheTTL time.Duration
}

// New creates an object repository that always reads from the server.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Cached returns a view of r whose Get and GetMany go through the Redis client-side
// cache, which the server invalidates on every write from any client. All always reads
// from the server. A non-positive ttl returns r unchanged.
func (r *Repo) Cached(ttl time.Duration) *Repo {
	if ttl <= 0 {
		return r
	}
	c := *r
	c.cacheTTL = ttl
	return &c
}

// Put stores obj under its "id" value, replacing any previous version atomically.
// Returns the primary key and whether the object was created.
func (r *Repo) Put(ctx context.Context, objectType string, obj Object) (string, bool, error) {
	pk, err := mapper.MapAccessor{}.PrimaryKey(obj)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrMapping, err)
	}
	fields, err := encodeFields(obj)
	if err != nil {
		return "", false, fmt.Errorf("encode %s:%s: %w", objectType, pk, err)
	}
	key := r.key(objectType, pk)

	existed, err := r.store.ReplaceHash(ctx, key, fields)
	if err != nil {
		return "", false, fmt.Errorf("replace %s: %w", key, err)
	}
	return pk, !existed, nil
}

// Get returns one object or ErrNotFound.
func (r *Repo) Get(ctx context.Context, objectType, pk string) (Object, error) {
	key := r.key(objectType, pk)
	var (
		m   map[string]string
		err error
	)
	if r.cacheTTL > 0 {
		m, err = r.store.HGetAllCached(ctx, key, r.cacheTTL)
	} else {
		m, err = r.store.HGetAll(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%s:%s: %w", objectType, pk, domain.ErrNotFound)
	}
	return decodeFields(m), nil
}

// GetMany returns the objects that exist among pks, keyed by primary key.
func (r *Repo) GetMany(ctx context.Context, objectType string, pks []string) (map[string]Object, error) {
	out := make(map[string]Object, len(pks))
	if len(pks) == 0 {
		return out, nil
	}
	keys := make([]string, len(pks))
	for i, pk := range pks {
		keys[i] = r.key(objectType, pk)
	}

	var (
		maps []map[string]string
		err  error
	)
	if r.cacheTTL > 0 {
		maps, err = r.store.HGetAllMultiCached(ctx, keys, r.cacheTTL)
	} else {
		maps, err = r.store.HGetAllMulti(ctx, keys)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s objects: %w", objectType, err)
	}
	for i, m := range maps {
		if len(m) > 0 {
			out[pks[i]] = decodeFields(m)
		}
	}
	return out, nil
}

// Delete removes an object. Absent objects are a no-op.
func (r *Repo) Delete(ctx context.Context, objectType, pk string) error {
	key := r.key(objectType, pk)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// All lazily iterates every stored object of a type, one SCAN page at a time.
// Objects deleted between the scan and the fetch are skipped.
func (r *Repo) All(ctx context.Context, objectType string) iter.Seq2[Object, error] {
	pattern := r.key(objectType, "*")
	return func(yield func(Object, error) bool) {
		var cursor uint64
		for {
			keys, next, err := r.store.ScanPage(ctx, cursor, pattern, scanPageSize)
			if err != nil {
				yield(nil, fmt.Errorf("scan %s: %w", objectType, err))
				return
			}
			if len(keys) > 0 {
				maps, err := r.store.HGetAllMulti(ctx, keys)
				if err != nil {
					yield(nil, fmt.Errorf("get %s objects: %w", objectType, err))
					return
				}
				for _, m := range maps {
					if len(m) == 0 {
						continue
					}
					if !yield(decodeFields(m), nil) {
						return
					}
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

func (r *Repo) key(objectType, pk string) string {
	var b strings.Builder
	b.Grow(len(r.prefix) + len(objectType) + len(pk) + 5)
	b.WriteString(r.prefix)
	b.WriteString("obj:")
	b.WriteString(objectType)
	b.WriteByte(':')
	b.WriteString(pk)
	return b.String()
}

var _ store = (db.Store)(nil)
