package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopassist/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// tokenBucket refills at ARGV[2] tokens per second up to ARGV[1] and takes
// one token per call. Returns {allowed, remaining, retry_after_seconds}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'updated_at')
local tokens = tonumber(bucket[1])
local updated_at = tonumber(bucket[2])
if tokens == nil or updated_at == nil then
    tokens = capacity
    updated_at = now
end

tokens = math.min(capacity, tokens + math.max(0, now - updated_at) * rate)

local allowed = 0
local retry_after = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
else
    retry_after = (1 - tokens) / rate
end

redis.call('HSET', key, 'tokens', tokens, 'updated_at', now)
redis.call('EXPIRE', key, math.ceil(capacity / rate) + 1)
return {allowed, math.floor(tokens), math.ceil(retry_after)}
`)

// Allow takes one token from the bucket stored at key.
func (c *Client) Allow(ctx context.Context, key string, qps, burst int) (allowed bool, remaining int, retryAfter time.Duration, err error) {
	if c == nil || c.inner == nil {
		return false, 0, 0, errors.New("redis client not initialized")
	}
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := tokenBucket.Run(ctx, c.inner, []string{key}, burst, qps, now).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) < 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit reply: %v", res)
	}
	return res[0] == 1, int(res[1]), time.Duration(res[2]) * time.Second, nil
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
