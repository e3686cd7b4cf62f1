package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchcore/internal/db"
)

// ReplaceHash runs DEL and HSET inside MULTI/EXEC so readers never see the key missing
// or half written. fields must not be empty.
func (s *Store) ReplaceHash(ctx context.Context, key string, fields map[string]string) (bool, error) {
	hset := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		hset = hset.FieldValue(k, v)
	}
	res := s.client.DoMulti(ctx,
		s.b().Multi().Build(),
		s.b().Del().Key(key).Build(),
		hset.Build(),
		s.b().Exec().Build(),
	)
	for _, r := range res[:len(res)-1] {
		if err := r.Error(); err != nil {
			return false, &db.Error{Op: db.OpExec, Err: err}
		}
	}
	replies, err := res[len(res)-1].ToArray()
	if err != nil {
		return false, &db.Error{Op: db.OpExec, Err: err}
	}
	if len(replies) != 2 {
		return false, &db.Error{Op: db.OpExec, Err: errUnexpectedReply}
	}
	deleted, err := replies[0].AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpDel, Err: err}
	}
	if err := replies[1].Error(); err != nil {
		return false, &db.Error{Op: db.OpExec, Err: err}
	}
	return deleted > 0, nil
}

// HGetAll returns all fields of a hash.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches many hashes, results aligned with keys.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	// one round-trip; a missing key comes back as an empty map
	return strMaps(keys, s.client.DoMulti(ctx, cmds...))
}

func strMaps(keys []string, results []rueidis.RedisResult) ([]map[string]string, error) {
	out := make([]map[string]string, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// HGetAllCached is HGetAll served from the client-side cache when possible.
func (s *Store) HGetAllCached(ctx context.Context, key string, ttl time.Duration) (map[string]string, error) {
	m, err := s.client.DoCache(ctx, s.b().Hgetall().Key(key).Cache(), ttl).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMultiCached is HGetAllMulti served from the client-side cache when possible.
func (s *Store) HGetAllMultiCached(ctx context.Context, keys []string, ttl time.Duration) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.CacheableTTL, len(keys))
	for i, key := range keys {
		cmds[i] = rueidis.CT(s.b().Hgetall().Key(key).Cache(), ttl)
	}
	return strMaps(keys, s.client.DoMultiCache(ctx, cmds...))
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// ScanPage returns one SCAN page and the cursor of the next. A zero cursor ends the scan.
func (s *Store) ScanPage(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(count).Build()
	res, err := s.do(ctx, cmd).AsScanEntry()
	if err != nil {
		return nil, 0, &db.Error{Op: db.OpScan, Err: err}
	}
	return res.Elements, res.Cursor, nil
}
