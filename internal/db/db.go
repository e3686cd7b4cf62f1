// Package db defines the key-value store facade behind the object store and the event queue.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	ListStore
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	// ReplaceHash swaps all fields of key for fields in one transaction and reports
	// whether key existed before.
	ReplaceHash(ctx context.Context, key string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	// HGetAllCached reads through the server-assisted client cache. An entry lives at most
	// ttl and is invalidated as soon as any client writes the key.
	HGetAllCached(ctx context.Context, key string, ttl time.Duration) (map[string]string, error)
	HGetAllMultiCached(ctx context.Context, keys []string, ttl time.Duration) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	ScanPage(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}

// ListStore provides the list operations a FIFO queue needs.
type ListStore interface {
	LPush(ctx context.Context, key string, values ...string) error
	// BRPop blocks up to timeout for the tail element. ErrKeyNotFound when none arrived.
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}
