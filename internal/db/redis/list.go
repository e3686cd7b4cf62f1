package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchcore/internal/db"
)

var errUnexpectedReply = errors.New("unexpected reply shape")

// LPush prepends values to a list.
func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	cmd := s.b().Lpush().Key(key).Element(values...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// BRPop blocks until the list has a tail element or timeout passes.
func (s *Store) BRPop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	cmd := s.b().Brpop().Key(key).Timeout(timeout.Seconds()).Build()
	kv, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", db.ErrKeyNotFound
		}
		return "", &db.Error{Op: db.OpBRPop, Err: err}
	}
	// reply is [key, element]
	if len(kv) != 2 {
		return "", &db.Error{Op: db.OpBRPop, Err: errUnexpectedReply}
	}
	return kv[1], nil
}

// LLen returns the list length; zero for a missing key.
func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Llen().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpLLen, Err: err}
	}
	return n, nil
}
