package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
)

var client *Client

// Client wraps a redis connection with JSON helpers.
type Client struct {
	rdb *redis.Client
}

// New wraps an existing redis client.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// SetupCache connects to the cache server and installs the process-wide client.
// A failed ping is logged only; callers treat cache errors as misses.
func SetupCache(cfg config.Cache) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if pong, err := rdb.Ping(ctx).Result(); err != nil {
		log.Warnf("[Cache] could not connect to %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("[Cache] connected to %s: %s", cfg.Addr(), pong)
	}

	client = New(rdb)
	return client
}

// GetClient returns the process-wide client, or nil before SetupCache.
func GetClient() *Client {
	return client
}

// Redis exposes the underlying connection.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// GetJSON decodes the value at key into dst. A missing key returns false without error.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v as JSON at key with the given expiration.
func (c *Client) SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, expiration).Err()
}

// Delete removes the given keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
