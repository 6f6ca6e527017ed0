package nats

import (
	"log/slog"

	"github.com/rbaliyan/wamp/transport"
)

// DefaultBufferSize is the inbound channel size handed to ChanSubscribe.
var DefaultBufferSize = 256

type options struct {
	codec      transport.Codec
	logger     *slog.Logger
	onError    func(error)
	bufferSize int
}

// Option configures a NATS peer
type Option func(*options)

// WithCodec sets the codec for message serialization
func WithCodec(c transport.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithErrorHandler sets the error handler callback.
// Called when a publish fails.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithBufferSize sets the inbound channel size.
// NATS drops messages for a slow consumer once this buffer is full.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		codec:      transport.DefaultCodec(),
		logger:     transport.Logger("transport>nats"),
		onError:    func(error) {},
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
