package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("invalid key")
	ErrClosed      = errors.New("cache is closed")
)

// Cache is a string key/value store with per-key expiry. A ttl of zero means
// the key never expires.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TTL reports the time left before key expires, zero for a key that
	// never does, and ErrKeyNotFound for a missing key.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}
