package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared between server instances. Each tag is a Redis set
// holding the keys stored under it.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if prefix == "" {
		prefix = "recon"
	}
	return &Redis{client: client, keyPrefix: prefix, ttl: ttl}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	return r.keyPrefix + ":v:" + key
}

func (r *Redis) tagKey(tag string) string {
	return r.keyPrefix + ":tag:" + tag
}

func (r *Redis) genKey(tag string) string {
	return r.keyPrefix + ":gen:" + tag
}

func (r *Redis) genKeys(tags []string) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = r.genKey(tag)
	}
	return keys
}

func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.fill(ctx, pipe, key, data, tags)
		return nil
	})
	return err
}

func (r *Redis) fill(ctx context.Context, pipe redis.Pipeliner, key string, data []byte, tags []string) {
	full := r.key(key)
	pipe.Set(ctx, full, data, r.ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, r.tagKey(tag), full)
		// tag sets outlive their entries so invalidation still finds them
		pipe.Expire(ctx, r.tagKey(tag), 2*r.ttl)
	}
}

func (r *Redis) Version(ctx context.Context, tags ...string) (Version, error) {
	return readVersion(ctx, r.client, r.genKeys(tags))
}

var errStale = errors.New("tags invalidated during load")

// SetIfUnchanged watches the tags' counters so an invalidation landing
// between the comparison and the write aborts the transaction.
func (r *Redis) SetIfUnchanged(ctx context.Context, key string, value interface{}, v Version, tags ...string) (bool, error) {
	if len(tags) == 0 {
		return true, r.Set(ctx, key, value)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	gens := r.genKeys(tags)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, gens)
		if err != nil {
			return err
		}
		if !v.matches(current) {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.fill(ctx, pipe, key, data, tags)
			return nil
		})
		return err
	}, gens...)
	if errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readVersion(ctx context.Context, c multiGetter, keys []string) (Version, error) {
	v := make(Version, len(keys))
	if len(keys) == 0 {
		return v, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tag counter %s: %w", keys[i], err)
		}
		v[i] = n
	}
	return v, nil
}

// InvalidateTags bumps the tags' counters before dropping their entries, so
// a fill that loaded before the bump can no longer be stored.
func (r *Redis) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, tag := range tags {
			pipe.Incr(ctx, r.genKey(tag))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, tag := range tags {
		tk := r.tagKey(tag)
		keys, err := r.client.SMembers(ctx, tk).Result()
		if err != nil {
			return err
		}
		if err := r.client.Del(ctx, append(keys, tk)...).Err(); err != nil {
			return err
		}
	}
	return nil
}
