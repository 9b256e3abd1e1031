package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"

	"shopassist/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAllowExhaustsBucket(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "shopassist:test:rate:" + strconv.Itoa(os.Getpid())
	defer client.Del(ctx, key)

	for i := 0; i < 3; i++ {
		ok, _, _, err := client.Allow(ctx, key, 1, 3)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, _, retry, err := client.Allow(ctx, key, 1, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok || retry <= 0 {
		t.Fatalf("expected the bucket to be empty, ok=%v retry=%v", ok, retry)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, _, _, err := c.Allow(context.Background(), "k", 1, 1); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func TestNewRedisClientRequiresConfig(t *testing.T) {
	if _, err := NewRedisClient(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
