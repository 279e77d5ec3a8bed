// Package cache keeps read-mostly views such as the unreconciled candidate
// pools. Entries carry tags so a mutation can drop every view it affects
// without flushing unrelated ones.
package cache

import (
	"context"
	"fmt"
	"time"
)

const DefaultTTL = 5 * time.Minute

type Cache interface {
	// Get decodes the entry into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, tags ...string) error
	InvalidateTags(ctx context.Context, tags ...string) error

	// Version snapshots the invalidation counters of tags. Take it before
	// loading a value and pass it to SetIfUnchanged.
	Version(ctx context.Context, tags ...string) (Version, error)
	// SetIfUnchanged stores value like Set unless one of tags was invalidated
	// after v was taken, and reports whether it stored.
	SetIfUnchanged(ctx context.Context, key string, value interface{}, v Version, tags ...string) (bool, error)
}

// Version holds one invalidation counter per tag, in tag order.
type Version []int64

func (v Version) matches(current Version) bool {
	if len(v) != len(current) {
		return false
	}
	for i := range v {
		if v[i] != current[i] {
			return false
		}
	}
	return true
}

type Config struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
	Password  string
	DB        int
	KeyPrefix string
}

// New builds the cache backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Cache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(ttl), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.Password, cfg.DB, cfg.KeyPrefix, ttl)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
