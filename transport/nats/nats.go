// Package nats provides a WAMP peer over NATS Core subjects.
//
// Each peer publishes outbound frames on one subject and receives on
// another, so a client/router pair uses mirrored subjects:
//
//	client, _ := nats.New(conn, "wamp.s1.in", "wamp.s1.out")
//	router, _ := nats.New(conn, "wamp.s1.out", "wamp.s1.in")
//
// NATS Core delivers at most once. Frames published before the remote has
// subscribed are lost, and a slow receiver drops frames once its buffer is
// full.
package nats

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rbaliyan/wamp/transport"
)

// Errors
var (
	ErrConnRequired    = errors.New("nats connection is required")
	ErrSubjectRequired = errors.New("nats subject is required")
)

// Conn is the subset of *nats.Conn used by the peer.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	ChanSubscribe(subj string, ch chan *nats.Msg) (*nats.Subscription, error)
}

// Peer implements transport.Peer over two NATS subjects.
type Peer struct {
	id       string
	status   int32
	conn     Conn
	outbound string
	inbound  string
	ch       chan *nats.Msg
	sub      *nats.Subscription
	closedCh chan struct{}
	codec    transport.Codec
	logger   *slog.Logger
	onError  func(error)
}

// New subscribes to inbound and returns a peer that publishes to outbound.
func New(conn Conn, outbound, inbound string, opts ...Option) (*Peer, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if outbound == "" || inbound == "" {
		return nil, ErrSubjectRequired
	}

	o := newOptions(opts...)
	p := &Peer{
		id:       transport.NewID(),
		status:   1,
		conn:     conn,
		outbound: outbound,
		inbound:  inbound,
		ch:       make(chan *nats.Msg, o.bufferSize),
		closedCh: make(chan struct{}),
		codec:    o.codec,
		onError:  o.onError,
	}
	p.logger = o.logger.With("peer", p.id)

	sub, err := conn.ChanSubscribe(inbound, p.ch)
	if err != nil {
		return nil, err
	}
	p.sub = sub

	p.logger.Debug("subscribed", "inbound", inbound, "outbound", outbound)
	return p, nil
}

// ID returns the peer identifier
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) isOpen() bool {
	return atomic.LoadInt32(&p.status) == 1
}

// Send encodes msg and publishes it on the outbound subject.
func (p *Peer) Send(ctx context.Context, msg transport.Message) error {
	if !p.isOpen() {
		return transport.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}

	out := nats.NewMsg(p.outbound)
	out.Data = data
	out.Header.Set(transport.HeaderSerializer, p.codec.Name())

	if err := p.conn.PublishMsg(out); err != nil {
		p.onError(err)
		return err
	}

	p.logger.Debug("sent", "type", msg.Type().String(), "subject", p.outbound)
	return nil
}

// Recv returns the next message published on the inbound subject.
func (p *Peer) Recv(ctx context.Context) (transport.Message, error) {
	if !p.isOpen() {
		return nil, transport.ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closedCh:
		return nil, transport.ErrTransportClosed
	case msg := <-p.ch:
		name := msg.Header.Get(transport.HeaderSerializer)
		return transport.DecodeNamed(p.codec, name, p.id, msg.Header.Get(nats.MsgIdHdr), msg.Data)
	}
}

// Close unsubscribes from the inbound subject. The connection is owned by
// the caller and stays open.
func (p *Peer) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.status, 1, 0) {
		return nil
	}
	close(p.closedCh)

	if p.sub != nil {
		if err := p.sub.Unsubscribe(); err != nil {
			p.logger.Warn("unsubscribe failed", "subject", p.inbound, "error", err)
		}
	}

	p.logger.Debug("peer closed")
	return nil
}

// Health reports the peer state and, for a *nats.Conn, the connection status.
func (p *Peer) Health(ctx context.Context) *transport.HealthCheckResult {
	start := time.Now()

	result := &transport.HealthCheckResult{
		CheckedAt: start,
		Details: map[string]any{
			"type":     "nats",
			"inbound":  p.inbound,
			"outbound": p.outbound,
			"pending":  len(p.ch),
		},
	}

	if !p.isOpen() {
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "peer is closed"
		result.Latency = time.Since(start)
		return result
	}

	if nc, ok := p.conn.(interface{ Status() nats.Status }); ok {
		status := nc.Status()
		result.Details["connection_status"] = status.String()
		if status != nats.CONNECTED {
			result.Status = transport.HealthStatusUnhealthy
			result.Message = "nats connection not healthy"
			result.Latency = time.Since(start)
			return result
		}
	}

	result.Status = transport.HealthStatusHealthy
	result.Message = "nats peer is healthy"
	result.Latency = time.Since(start)
	return result
}

// Compile-time checks
var (
	_ Conn                    = (*nats.Conn)(nil)
	_ transport.Peer          = (*Peer)(nil)
	_ transport.HealthChecker = (*Peer)(nil)
)
