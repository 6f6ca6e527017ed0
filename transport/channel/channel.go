// Package channel provides an in-memory peer pair connected by Go channels.
//
// Pipe returns two connected peers: whatever one sends, the other receives.
// Frames still go through the configured codec, so both ends see exactly what
// a network peer would see.
//
// IMPORTANT: channel peers do NOT provide delivery guarantees:
//
//   - Frames are lost on process crash or restart
//   - Frames are dropped if WithTimeout is set and the receiver is slow
//
// The channel pipe is ideal for tests, embedded routers and in-process
// clients.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/wamp/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Peer is one end of an in-memory pipe. It implements transport.Peer.
type Peer struct {
	id      string
	status  int32
	inbox   chan []byte
	closed  chan struct{}
	once    sync.Once
	remote  *Peer
	codec   transport.Codec
	timeout time.Duration
	logger  *slog.Logger
	onError func(error)

	droppedCounter metric.Int64Counter
}

// Pipe creates two connected peers.
func Pipe(opts ...Option) (*Peer, *Peer) {
	o := newOptions(opts...)

	meter := otel.Meter("wamp.transport.channel")
	droppedCounter, _ := meter.Int64Counter("wamp.transport.channel.dropped",
		metric.WithDescription("Number of frames dropped by channel peers"),
		metric.WithUnit("{frame}"),
	)

	a := newPeer(o, droppedCounter)
	b := newPeer(o, droppedCounter)
	a.remote, b.remote = b, a

	a.logger.Debug("pipe opened", "peer", a.id, "remote", b.id)
	return a, b
}

func newPeer(o *options, dropped metric.Int64Counter) *Peer {
	id := transport.NewID()
	return &Peer{
		id:             id,
		status:         1,
		inbox:          make(chan []byte, o.bufferSize),
		closed:         make(chan struct{}),
		codec:          o.codec,
		timeout:        o.timeout,
		logger:         o.logger.With("peer", id),
		onError:        o.onError,
		droppedCounter: dropped,
	}
}

// ID returns the peer identifier
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) isOpen() bool {
	return atomic.LoadInt32(&p.status) == 1
}

// Send encodes msg and hands the frame to the remote peer.
func (p *Peer) Send(ctx context.Context, msg transport.Message) error {
	if !p.isOpen() {
		return transport.ErrTransportClosed
	}
	select {
	case <-p.remote.closed:
		return transport.ErrPeerClosed
	default:
	}

	data, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	select {
	case <-p.remote.closed:
		return transport.ErrPeerClosed
	case <-p.closed:
		return transport.ErrTransportClosed
	case p.remote.inbox <- data:
		return nil
	case <-ctx.Done():
		if p.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.drop(ctx, msg)
			return transport.ErrSendTimeout
		}
		return ctx.Err()
	}
}

func (p *Peer) drop(ctx context.Context, msg transport.Message) {
	p.logger.Debug("frame dropped due to timeout (remote too slow)",
		"remote", p.remote.id,
		"type", msg.Type().String())
	if p.droppedCounter != nil {
		p.droppedCounter.Add(context.WithoutCancel(ctx), 1,
			metric.WithAttributes(
				attribute.String("peer", p.id),
				attribute.String("type", msg.Type().String()),
				attribute.String("reason", "timeout"),
			))
	}
	p.onError(transport.ErrSendTimeout)
}

// Recv returns the next message sent by the remote peer. Frames already
// buffered are still delivered after the remote closes.
func (p *Peer) Recv(ctx context.Context) (transport.Message, error) {
	if !p.isOpen() {
		return nil, transport.ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, transport.ErrTransportClosed
	case data := <-p.inbox:
		return transport.Decode(p.codec, p.id, "", data)
	case <-p.remote.closed:
		select {
		case data := <-p.inbox:
			return transport.Decode(p.codec, p.id, "", data)
		default:
			return nil, transport.ErrPeerClosed
		}
	}
}

// Close shuts this end down. The remote sees ErrPeerClosed once it has
// drained what was already sent.
func (p *Peer) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.status, 1, 0) {
		return nil
	}
	p.once.Do(func() { close(p.closed) })
	p.logger.Debug("peer closed")
	return nil
}

// Health reports whether both ends of the pipe are open.
func (p *Peer) Health(ctx context.Context) *transport.HealthCheckResult {
	start := time.Now()
	result := &transport.HealthCheckResult{
		CheckedAt: start,
		Details: map[string]any{
			"type":     "channel",
			"codec":    p.codec.Name(),
			"buffered": len(p.inbox),
			"capacity": cap(p.inbox),
		},
	}

	switch {
	case !p.isOpen():
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "peer is closed"
	case !p.remote.isOpen():
		result.Status = transport.HealthStatusDegraded
		result.Message = "remote peer is closed"
	default:
		result.Status = transport.HealthStatusHealthy
		result.Message = "channel peer is healthy"
	}
	result.Latency = time.Since(start)
	return result
}

// Compile-time interface checks
var _ transport.Peer = (*Peer)(nil)
var _ transport.HealthChecker = (*Peer)(nil)
