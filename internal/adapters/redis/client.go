package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"svmengine/internal/adapters/config"
	"svmengine/pkg/errors"
)

// Client wraps Redis client
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis at %s", cfg.Addr())
	}

	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// versionKey holds a counter bumped on every model write
func versionKey(key string) string {
	return key + ":version"
}

// GetModel returns the model text stored under key
func (c *Client) GetModel(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "model key %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get model %s", key)
	}
	return data, nil
}

// PutModel stores model text under key and bumps its version in one
// transaction. It returns the new version.
func (c *Client) PutModel(ctx context.Context, key string, text []byte) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, text, 0)
		incr = pipe.Incr(ctx, versionKey(key))
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "put model %s", key)
	}
	return incr.Val(), nil
}

// ModelVersion returns the version counter of key, zero when never written
func (c *Client) ModelVersion(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get model version %s", key)
	}
	return v, nil
}

// DeleteModel removes the model text and its version counter
func (c *Client) DeleteModel(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key, versionKey(key)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "lock:"+key, "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, "lock:"+key).Err()
}
