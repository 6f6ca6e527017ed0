package channel

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/wamp/transport"
)

// DefaultBufferSize is the number of frames each direction holds before
// Send blocks.
var DefaultBufferSize uint = 100

// options holds configuration for a pipe (unexported)
type options struct {
	bufferSize uint
	timeout    time.Duration
	codec      transport.Codec
	onError    func(error)
	logger     *slog.Logger
}

// Option configures the channel pipe
type Option func(*options)

// WithBufferSize sets the number of frames buffered per direction.
// Set to 0 for an unbuffered pipe where Send waits for the remote Recv.
func WithBufferSize(size uint) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithTimeout sets how long Send waits for buffer space.
// A frame that does not fit in time is dropped. Set to 0 to wait until the
// context is done.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithCodec sets the codec used to encode frames. Defaults to JSON.
func WithCodec(c transport.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithErrorHandler sets the error handler callback.
// Called when a frame is dropped on send timeout.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithLogger sets the logger for both peers
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// newOptions creates options with defaults and applies provided options
func newOptions(opts ...Option) *options {
	o := &options{
		bufferSize: DefaultBufferSize,
		codec:      transport.DefaultCodec(),
		onError:    func(error) {},
		logger:     transport.Logger("transport>channel"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
