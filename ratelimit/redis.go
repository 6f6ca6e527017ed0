package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis commands used by RedisLimiter.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type Client interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// fixedWindowScript counts one message and sets the window expiry in the same
// call. A counter found without a TTL gets one too, so a window can never
// outlive its duration.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local windowMs = tonumber(ARGV[2])

	local current = redis.call('INCR', key)
	if current == 1 or redis.call('PTTL', key) < 0 then
		redis.call('PEXPIRE', key, windowMs)
	end
	if current > limit then
		return 0
	end
	return 1
`)

// RedisLimiter is a fixed-window limiter shared by every process using the
// same Redis key. Each window counts messages with INCR; the first message of
// a window sets the key's expiry.
//
// Fixed windows can admit up to twice the limit around a window boundary.
// Redis errors fail open: the message is allowed and the error is logged.
type RedisLimiter struct {
	client Client
	key    string
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRedisLimiter creates a limiter admitting limit messages per window.
func NewRedisLimiter(client Client, key string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		key:    "wamp:ratelimit:" + key,
		limit:  limit,
		window: window,
		logger: slog.Default().With("component", "ratelimit>redis", "key", key),
	}
}

// Allow counts one message and reports whether it is within the limit.
func (r *RedisLimiter) Allow(ctx context.Context) bool {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{r.key},
		r.limit,
		r.window.Milliseconds(),
	).Int()
	if err != nil {
		r.logger.Warn("rate limit check failed, allowing", "error", err)
		return true
	}
	return result == 1
}

// Wait polls Allow until it succeeds or ctx is done.
func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Allow(ctx) {
			return nil
		}

		timer := time.NewTimer(r.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reserve is Allow with the polling interval as delay when refused.
func (r *RedisLimiter) Reserve(ctx context.Context) Reservation {
	allowed := r.Allow(ctx)
	var delay time.Duration
	if !allowed {
		delay = r.interval()
	}
	return &redisReservation{ok: allowed, delay: delay}
}

func (r *RedisLimiter) interval() time.Duration {
	if r.limit <= 0 {
		return r.window
	}
	return r.window / time.Duration(r.limit)
}

// Remaining returns how many messages the current window still admits.
func (r *RedisLimiter) Remaining(ctx context.Context) (int, error) {
	val, err := r.client.Get(ctx, r.key).Int()
	if errors.Is(err, redis.Nil) {
		return r.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return max(r.limit-val, 0), nil
}

// Reset deletes the window counter.
func (r *RedisLimiter) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

type redisReservation struct {
	ok    bool
	delay time.Duration
}

func (r *redisReservation) OK() bool             { return r.ok }
func (r *redisReservation) Delay() time.Duration { return r.delay }
func (r *redisReservation) Cancel()              {}

// Compile-time checks
var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Client  = (*redis.Client)(nil)
)
