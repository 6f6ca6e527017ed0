package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlidingClient is the subset of go-redis commands used by SlidingWindowLimiter.
type SlidingClient interface {
	redis.Scripter
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// slidingScript trims the window, counts it and records the new entry in one
// round trip.
var slidingScript = redis.NewScript(`
	local key = KEYS[1]
	local windowStart = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local now = ARGV[3]
	local windowMs = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)
	if redis.call('ZCARD', key) >= limit then
		return 0
	end
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, windowMs)
	return 1
`)

// SlidingWindowLimiter admits at most limit messages in any window-long
// interval, tracking each admitted message in a Redis sorted set. Unlike
// RedisLimiter it has no burst at window boundaries, at the cost of one set
// member per admitted message.
//
// Redis errors fail open.
//
//	limiter := ratelimit.NewSlidingWindowLimiter(rdb, "realm:com.example", 100, time.Second)
//	peer = transport.RateLimit(peer, limiter)
type SlidingWindowLimiter struct {
	client SlidingClient
	key    string
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewSlidingWindowLimiter creates a sliding window limiter.
func NewSlidingWindowLimiter(client SlidingClient, key string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		key:    "wamp:ratelimit:sliding:" + key,
		limit:  limit,
		window: window,
		logger: slog.Default().With("component", "ratelimit>sliding", "key", key),
	}
}

// Allow records one message if the window has room.
func (s *SlidingWindowLimiter) Allow(ctx context.Context) bool {
	now := time.Now()
	result, err := slidingScript.Run(ctx, s.client, []string{s.key},
		now.Add(-s.window).UnixMicro(),
		s.limit,
		strconv.FormatInt(now.UnixMicro(), 10),
		s.window.Milliseconds(),
		uuid.NewString(),
	).Int()
	if err != nil {
		s.logger.Warn("rate limit check failed, allowing", "error", err)
		return true
	}
	return result == 1
}

// Wait retries Allow with doubling backoff, capped at window/limit, until it
// succeeds or ctx is done.
func (s *SlidingWindowLimiter) Wait(ctx context.Context) error {
	backoff := 10 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Allow(ctx) {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, s.interval())
	}
}

// Reserve is Allow with window/limit as delay when refused.
func (s *SlidingWindowLimiter) Reserve(ctx context.Context) Reservation {
	allowed := s.Allow(ctx)
	var delay time.Duration
	if !allowed {
		delay = s.interval()
	}
	return &redisReservation{ok: allowed, delay: delay}
}

func (s *SlidingWindowLimiter) interval() time.Duration {
	if s.limit <= 0 {
		return s.window
	}
	return s.window / time.Duration(s.limit)
}

// Count returns the number of messages in the current window.
func (s *SlidingWindowLimiter) Count(ctx context.Context) (int64, error) {
	windowStart := strconv.FormatInt(time.Now().Add(-s.window).UnixMicro(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", windowStart).Err(); err != nil {
		return 0, err
	}
	return s.client.ZCard(ctx, s.key).Result()
}

// Remaining returns how many messages the current window still admits.
func (s *SlidingWindowLimiter) Remaining(ctx context.Context) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	return max(s.limit-int(count), 0), nil
}

// Reset deletes the window.
func (s *SlidingWindowLimiter) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Compile-time checks
var (
	_ Limiter       = (*SlidingWindowLimiter)(nil)
	_ SlidingClient = (*redis.Client)(nil)
)
