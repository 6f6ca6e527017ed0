// Package ratelimit throttles inbound WAMP traffic.
//
// A router wraps each accepted peer with transport.RateLimit so that a
// single client cannot flood the broker or dealer. Limits can be local to
// the router process or shared across router instances through Redis:
//
//	// 50 messages/second per peer, bursts of 20
//	peers := ratelimit.NewKeyed(func(string) ratelimit.Limiter {
//	    return ratelimit.NewTokenBucket(50, 20)
//	})
//	peer = transport.RateLimit(peer, peers.For(peer.ID()))
//
//	// 10000 messages/minute for a whole realm across all routers
//	realm := ratelimit.NewRedisLimiter(rdb, "realm:realm1", 10000, time.Minute)
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the interface for rate limiters.
//
// All implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether one message may pass right now.
	Allow(ctx context.Context) bool

	// Wait blocks until one message may pass or ctx is done.
	Wait(ctx context.Context) error

	// Reserve claims a future slot. Check Delay() to know when it opens.
	Reserve(ctx context.Context) Reservation
}

// Reservation represents a claimed slot.
type Reservation interface {
	// OK returns whether the reservation was successful.
	OK() bool

	// Delay returns how long to wait before the slot opens.
	Delay() time.Duration

	// Cancel gives the slot back if the message will not be processed.
	Cancel()
}

// TokenBucket is an in-process limiter backed by golang.org/x/time/rate.
// Tokens refill at rps per second up to burst.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow consumes one token if available.
func (t *TokenBucket) Allow(ctx context.Context) bool {
	return t.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Reserve returns a reservation for the next token.
func (t *TokenBucket) Reserve(ctx context.Context) Reservation {
	return &tokenBucketReservation{r: t.limiter.Reserve()}
}

// SetLimit updates the refill rate.
func (t *TokenBucket) SetLimit(rps float64) {
	t.limiter.SetLimit(rate.Limit(rps))
}

// Limit returns the refill rate (tokens per second).
func (t *TokenBucket) Limit() float64 {
	return float64(t.limiter.Limit())
}

// Burst returns the bucket size.
func (t *TokenBucket) Burst() int {
	return t.limiter.Burst()
}

type tokenBucketReservation struct {
	r *rate.Reservation
}

func (r *tokenBucketReservation) OK() bool             { return r.r.OK() }
func (r *tokenBucketReservation) Delay() time.Duration { return r.r.Delay() }
func (r *tokenBucketReservation) Cancel()              { r.r.Cancel() }

// Keyed hands out one limiter per key, typically a peer or session ID.
// Limiters are created on first use.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]Limiter
	factory  func(key string) Limiter
}

// NewKeyed creates a keyed limiter set. factory builds the limiter for a new key.
func NewKeyed(factory func(key string) Limiter) *Keyed {
	return &Keyed{
		limiters: make(map[string]Limiter),
		factory:  factory,
	}
}

// For returns the limiter for key, creating it if needed.
func (k *Keyed) For(key string) Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = k.factory(key)
		k.limiters[key] = l
	}
	return l
}

// Forget drops the limiter for key. Call it when the peer disconnects.
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.limiters, key)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Compile-time check
var _ Limiter = (*TokenBucket)(nil)
