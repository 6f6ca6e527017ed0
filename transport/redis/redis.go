// Package redis provides a WAMP peer over a pair of Redis Streams.
//
// Outbound frames are appended with XADD; inbound frames are read with a
// blocking XREAD that remembers the last delivered entry ID. Streams keep
// frames until trimmed, so a peer that connects late still receives what was
// sent before it started reading.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
	"github.com/redis/go-redis/v9"
)

// Client defines the interface for Redis client operations.
// Supports *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Errors
var (
	ErrClientRequired = errors.New("redis client is required")
	ErrStreamRequired = errors.New("redis stream is required")
	ErrInvalidEntry   = errors.New("stream entry has no frame data")
)

// Defaults
var (
	DefaultBlockTime = 5 * time.Second
	DefaultBatchSize = int64(10)
)

// Stream entry fields
const (
	fieldData  = "data"
	fieldCodec = "codec"
)

// Peer implements transport.Peer over Redis Streams
type Peer struct {
	id       string
	status   int32
	client   Client
	outbound string
	inbound  string
	codec    codec.Codec
	logger   *slog.Logger
	onError  func(error)

	maxLen    int64
	maxAge    time.Duration
	blockTime time.Duration
	count     int64

	done   context.Context
	cancel context.CancelFunc

	// recvMu serializes Recv; pending and lastID belong to it
	recvMu  sync.Mutex
	pending []redis.XMessage
	lastID  string
}

// New creates a peer that appends to the outbound stream and reads the
// inbound stream.
//
// By default the peer reads the inbound stream from its first entry, so frames
// left by an earlier session on the same stream (a stale HELLO or GOODBYE,
// say) are delivered before new ones. Use one stream pair per session, or pass
// WithStartID with the stream's last ID to skip the backlog.
func New(client Client, outbound, inbound string, opts ...Option) (*Peer, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if outbound == "" || inbound == "" {
		return nil, ErrStreamRequired
	}

	p := &Peer{
		id:        transport.NewID(),
		status:    1,
		client:    client,
		outbound:  outbound,
		inbound:   inbound,
		codec:     codec.Default(),
		logger:    transport.Logger("transport>redis"),
		onError:   func(error) {},
		blockTime: DefaultBlockTime,
		count:     DefaultBatchSize,
		lastID:    "0-0",
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("peer", p.id)
	p.done, p.cancel = context.WithCancel(context.Background())

	return p, nil
}

// ID returns the peer identifier
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) isOpen() bool {
	return atomic.LoadInt32(&p.status) == 1
}

// Send appends one frame to the outbound stream.
func (p *Peer) Send(ctx context.Context, msg transport.Message) error {
	if !p.isOpen() {
		return transport.ErrTransportClosed
	}

	data, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.outbound,
		Values: map[string]any{
			fieldData:  data,
			fieldCodec: p.codec.Name(),
		},
	}

	// Apply count-based trimming (MAXLEN)
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	// Apply time-based trimming (MINID)
	if p.maxAge > 0 {
		minTime := time.Now().Add(-p.maxAge).UnixMilli()
		args.MinID = fmt.Sprintf("%d-0", minTime)
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		p.onError(err)
		return err
	}

	p.logger.Debug("sent", "type", msg.Type().String(), "stream", p.outbound, "id", id)
	return nil
}

// Recv returns the next frame from the inbound stream. Read errors other than
// cancellation are retried with jittered exponential backoff.
func (p *Peer) Recv(ctx context.Context) (transport.Message, error) {
	if !p.isOpen() {
		return nil, transport.ErrTransportClosed
	}

	p.recvMu.Lock()
	defer p.recvMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.done, cancel)
	defer stop()

	readBackoff := 100 * time.Millisecond
	maxReadBackoff := 30 * time.Second

	for {
		if len(p.pending) > 0 {
			entry := p.pending[0]
			p.pending = p.pending[1:]
			return p.decode(entry)
		}

		streams, err := p.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{p.inbound, p.lastID},
			Count:   p.count,
			Block:   p.blockTime,
		}).Result()

		if err != nil {
			if !p.isOpen() {
				return nil, transport.ErrTransportClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				readBackoff = 100 * time.Millisecond
				continue
			}

			p.onError(err)
			jitteredBackoff := transport.Jitter(readBackoff, 0.3)
			p.logger.Error("read error, retrying with backoff", "error", err, "backoff", jitteredBackoff)

			select {
			case <-ctx.Done():
				if !p.isOpen() {
					return nil, transport.ErrTransportClosed
				}
				return nil, ctx.Err()
			case <-time.After(jitteredBackoff):
			}

			readBackoff *= 2
			if readBackoff > maxReadBackoff {
				readBackoff = maxReadBackoff
			}
			continue
		}

		readBackoff = 100 * time.Millisecond
		for _, stream := range streams {
			if len(stream.Messages) == 0 {
				continue
			}
			p.pending = append(p.pending, stream.Messages...)
			p.lastID = stream.Messages[len(stream.Messages)-1].ID
		}
	}
}

func (p *Peer) decode(entry redis.XMessage) (transport.Message, error) {
	var data []byte
	switch v := entry.Values[fieldData].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		p.logger.Error("invalid entry format", "id", entry.ID)
		return nil, &transport.DecodeError{
			PeerID: p.id,
			Codec:  p.codec.Name(),
			MsgID:  entry.ID,
			Err:    ErrInvalidEntry,
		}
	}

	name, _ := entry.Values[fieldCodec].(string)
	msg, err := transport.DecodeNamed(p.codec, name, p.id, entry.ID, data)
	if err != nil {
		p.logger.Error("failed to decode frame", "error", err, "id", entry.ID)
		return nil, err
	}
	return msg, nil
}

// Close stops the peer. A blocked Recv returns ErrTransportClosed.
// The client is owned by the caller and stays open.
func (p *Peer) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.status, 1, 0) {
		return nil
	}
	p.cancel()
	p.logger.Debug("peer closed")
	return nil
}

// Health performs a health check on the Redis peer
func (p *Peer) Health(ctx context.Context) *transport.HealthCheckResult {
	start := time.Now()

	result := &transport.HealthCheckResult{
		CheckedAt: start,
		Details: map[string]any{
			"type":     "redis",
			"inbound":  p.inbound,
			"outbound": p.outbound,
		},
	}

	if !p.isOpen() {
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "peer is closed"
		result.Latency = time.Since(start)
		return result
	}

	if err := p.client.Ping(ctx).Err(); err != nil {
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "redis ping failed: " + err.Error()
		result.Latency = time.Since(start)
		return result
	}

	if n, err := p.client.XLen(ctx, p.inbound).Result(); err == nil {
		result.Details["inbound_length"] = n
	}

	result.Status = transport.HealthStatusHealthy
	result.Message = "redis peer is healthy"
	result.Latency = time.Since(start)
	return result
}

// Compile-time checks
var (
	_ Client                  = (*redis.Client)(nil)
	_ transport.Peer          = (*Peer)(nil)
	_ transport.HealthChecker = (*Peer)(nil)
)
