package redis

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/wamp/transport/codec"
)

// Option configures the Redis peer
type Option func(*Peer)

// WithCodec sets the codec for message serialization
func WithCodec(c codec.Codec) Option {
	return func(p *Peer) {
		if c != nil {
			p.codec = c
		}
	}
}

// WithMaxLen sets the max length for the outbound stream (MAXLEN)
func WithMaxLen(n int64) Option {
	return func(p *Peer) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

// WithMaxAge sets the max age for frames in the outbound stream (MINID-based trimming).
// Frames older than this duration are trimmed on each send.
//
// Set to 0 (default) for unlimited retention.
func WithMaxAge(d time.Duration) Option {
	return func(p *Peer) {
		if d > 0 {
			p.maxAge = d
		}
	}
}

// WithBlockTime sets how long a single XREAD blocks
func WithBlockTime(d time.Duration) Option {
	return func(p *Peer) {
		if d > 0 {
			p.blockTime = d
		}
	}
}

// WithStartID sets the inbound stream ID to read after.
// Defaults to "0-0", which delivers every frame already in the stream,
// including frames from earlier sessions.
func WithStartID(id string) Option {
	return func(p *Peer) {
		if id != "" {
			p.lastID = id
		}
	}
}

// WithBatchSize sets how many frames one XREAD fetches
func WithBatchSize(n int64) Option {
	return func(p *Peer) {
		if n > 0 {
			p.count = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithErrorHandler sets the error handler callback.
// Called for failed sends and failed stream reads.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Peer) {
		if fn != nil {
			p.onError = fn
		}
	}
}
