package kafka

import (
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/rbaliyan/wamp/transport/codec"
)

// Option configures the Kafka peer
type Option func(*Peer)

// WithCodec sets the codec for message serialization
func WithCodec(c codec.Codec) Option {
	return func(p *Peer) {
		if c != nil {
			p.codec = c
		}
	}
}

// WithPartition sets the inbound partition to consume. Defaults to 0.
func WithPartition(n int32) Option {
	return func(p *Peer) {
		if n >= 0 {
			p.partition = n
		}
	}
}

// WithOffset sets where the inbound partition consumer starts.
// Accepts sarama.OffsetOldest, sarama.OffsetNewest (default) or an absolute offset.
func WithOffset(offset int64) Option {
	return func(p *Peer) {
		p.offset = offset
	}
}

// WithKey sets the record key for outbound frames.
// Frames sharing a key land on the same partition and keep their order.
func WithKey(key string) Option {
	return func(p *Peer) {
		p.key = key
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
// Called for failed sends and partition consumer errors.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Peer) {
		if fn != nil {
			p.onError = fn
		}
	}
}

func defaultOffset() int64 {
	return sarama.OffsetNewest
}
