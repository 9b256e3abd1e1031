package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"shopassist/internal/observability"
	"shopassist/internal/redis"
)

const requestIDHeader = "X-Request-ID"

// RequestContext tags each request with an id, then logs and records it.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := observability.WithRequestID(c.Request.Context(), reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, reqID)

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		observability.RecordRequest(c.Request.Method, endpoint, status, elapsed)
		observability.LoggerFromContext(ctx).Info("http request",
			"method", c.Request.Method,
			"path", endpoint,
			"status", status,
			"elapsed", elapsed,
			"client_ip", c.ClientIP(),
		)
	}
}

// Limiter decides whether the client behind key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit rejects clients that exceed the limiter. Limiter errors let the
// request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), "rate_limit:"+c.ClientIP())
		if err != nil {
			observability.LoggerFromContext(c.Request.Context()).Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}
		if !allowed {
			secs := int(retryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please slow down"})
			return
		}
		c.Next()
	}
}

// RedisLimiter keeps one token bucket per key in redis so several instances
// share the budget.
type RedisLimiter struct {
	client *redis.Client
	qps    int
	burst  int
}

func NewRedisLimiter(client *redis.Client, qps int) *RedisLimiter {
	return &RedisLimiter{client: client, qps: qps, burst: 2 * qps}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	allowed, _, retryAfter, err := l.client.Allow(ctx, key, l.qps, l.burst)
	return allowed, retryAfter, err
}

// LocalLimiter keeps token buckets in process memory.
type LocalLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*localEntry
	idle     time.Duration
	lastGC   time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(qps int) *LocalLimiter {
	return &LocalLimiter{
		limit:    rate.Limit(qps),
		burst:    2 * qps,
		limiters: make(map[string]*localEntry),
		idle:     10 * time.Minute,
		lastGC:   time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.idle {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}
