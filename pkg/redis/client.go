// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling. It carries the set-oriented operations backing the note index
// (postings sets, note values, key scans, batched fetches) alongside the
// TTL-based cache operations used by the search cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitter-badger/ashaw-notes/pkg/config"
	apperrors "github.com/gitter-badger/ashaw-notes/pkg/errors"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, apperrors.Newf(apperrors.ErrBackendUnavailable, 503, "redis ping failed: %v", err)
	}
	return &Client{rdb: rdb}, nil
}

// AddToSet adds member to the set at key. Adding an existing member is a
// no-op.
func (c *Client) AddToSet(ctx context.Context, key, member string) error {
	if err := c.rdb.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("adding %s to set %s: %w", member, key, err)
	}
	return nil
}

// RemoveFromSet removes member from the set at key. Removing a non-member is
// a no-op.
func (c *Client) RemoveFromSet(ctx context.Context, key, member string) error {
	if err := c.rdb.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("removing %s from set %s: %w", member, key, err)
	}
	return nil
}

// Intersect returns the members common to all given sets. At least one key
// is required.
func (c *Client) Intersect(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("intersect: %w: at least one key required", apperrors.ErrInvalidInput)
	}
	members, err := c.rdb.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("intersecting %d sets: %w", len(keys), err)
	}
	return members, nil
}

// Union returns the members present in any of the given sets. At least one
// key is required.
func (c *Client) Union(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("union: %w: at least one key required", apperrors.ErrInvalidInput)
	}
	members, err := c.rdb.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("unioning %d sets: %w", len(keys), err)
	}
	return members, nil
}

// KeysMatching returns all keys matching the glob pattern using incremental
// SCAN rather than the blocking KEYS command.
func (c *Client) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return keys, nil
}

// GetValue returns the string value stored at key, or ErrKeyNotFound if the
// key does not exist.
func (c *Client) GetValue(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", apperrors.ErrKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return val, nil
}

// SetValue stores a value at key with no expiry.
func (c *Client) SetValue(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return n > 0, nil
}

// MultiGet fetches the values for all keys in one MGET call. The returned
// slice is positionally aligned with keys; a nil entry marks a missing key.
func (c *Client) MultiGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return []*string{}, nil
	}
	raw, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching %d keys: %w", len(keys), err)
	}
	values := make([]*string, len(raw))
	for i, v := range raw {
		switch s := v.(type) {
		case nil:
		case string:
			values[i] = &s
		default:
			return nil, fmt.Errorf("%w: key %s holds %T", apperrors.ErrValueCorrupt, keys[i], v)
		}
	}
	return values, nil
}

// TxPipelined queues the commands issued by fn and executes them as one
// atomic transaction.
func (c *Client) TxPipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	if _, err := c.rdb.TxPipelined(ctx, fn); err != nil {
		return fmt.Errorf("executing pipeline: %w", err)
	}
	return nil
}

// Get returns the string value for the given key. Missing keys surface the
// raw go-redis nil error; see IsNilError.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a value with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return err == redis.Nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
