package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
)

// ErrNoDecodeError is returned by Manager.Store when given a nil error
var ErrNoDecodeError = errors.New("dlq: decode error is required")

// Handler receives a frame that decoded successfully on replay
type Handler func(ctx context.Context, msg message.Message) error

// Manager quarantines decode errors and replays them.
//
// Example:
//
//	manager := dlq.NewManager(dlq.NewRedisStore(rdb))
//	peer := manager.Capture(rawPeer)
//
//	// after a fix is deployed
//	replayed, err := manager.Replay(ctx, dlq.Filter{ExcludeRetried: true}, handler)
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a new DLQ manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		logger: transport.Logger("dlq.manager"),
	}
}

// WithLogger sets a custom logger.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	m.logger = l
	return m
}

// Classify maps a decode error to one of the Kind* constants.
func Classify(err error) string {
	switch {
	case errors.Is(err, codec.ErrUnknownCodec):
		return KindUnknownCodec
	case errors.Is(err, codec.ErrUnknownType):
		return KindUnknownType
	case errors.Is(err, message.ErrTypeMismatch):
		return KindTypeMismatch
	case errors.Is(err, message.ErrInvalidLength):
		return KindInvalidLength
	case errors.Is(err, message.ErrInvalidField):
		return KindInvalidField
	case errors.Is(err, message.ErrInvalidConstruction):
		return KindInvalidConstruction
	default:
		return KindMalformed
	}
}

// Store quarantines the frame carried by de.
func (m *Manager) Store(ctx context.Context, de *transport.DecodeError) error {
	if de == nil {
		return ErrNoDecodeError
	}

	msg := &Message{
		ID:        uuid.New().String(),
		PeerID:    de.PeerID,
		Codec:     de.Codec,
		MsgID:     de.MsgID,
		Frame:     de.RawData,
		Kind:      Classify(de.Err),
		CreatedAt: time.Now(),
	}
	if de.Err != nil {
		msg.Error = de.Err.Error()
	}

	if err := m.store.Store(ctx, msg); err != nil {
		m.logger.Error("failed to store DLQ message",
			"peer", de.PeerID,
			"codec", de.Codec,
			"error", err)
		return fmt.Errorf("store dlq message: %w", err)
	}

	m.logger.Info("quarantined undecodable frame",
		"id", msg.ID,
		"peer", msg.PeerID,
		"codec", msg.Codec,
		"kind", msg.Kind,
		"size", len(msg.Frame))
	return nil
}

// Capture wraps p so that every *transport.DecodeError returned by Recv is
// stored before it reaches the caller. The error is still returned.
func (m *Manager) Capture(p transport.Peer) transport.Peer {
	return &capturedPeer{Peer: p, manager: m}
}

type capturedPeer struct {
	transport.Peer
	manager *Manager
}

func (c *capturedPeer) Recv(ctx context.Context) (transport.Message, error) {
	msg, err := c.Peer.Recv(ctx)
	if de, ok := transport.AsDecodeError(err); ok {
		// the store error is already logged; the caller still gets the decode error
		_ = c.manager.Store(context.WithoutCancel(ctx), de)
	}
	return msg, err
}

// Health delegates to the wrapped peer when it reports health
func (c *capturedPeer) Health(ctx context.Context) *transport.HealthCheckResult {
	return transport.CheckHealth(ctx, c.Peer)
}

// Get retrieves a single DLQ message
func (m *Manager) Get(ctx context.Context, id string) (*Message, error) {
	return m.store.Get(ctx, id)
}

// List returns DLQ messages matching the filter
func (m *Manager) List(ctx context.Context, filter Filter) ([]*Message, error) {
	return m.store.List(ctx, filter)
}

// Count returns the number of messages matching the filter
func (m *Manager) Count(ctx context.Context, filter Filter) (int64, error) {
	return m.store.Count(ctx, filter)
}

// Decode decodes a stored frame with the codec recorded when it was captured.
func Decode(msg *Message) (message.Message, error) {
	c, err := codec.ByName(msg.Codec)
	if err != nil {
		return nil, err
	}
	return c.Decode(msg.Frame)
}

// Replay decodes every message matching the filter again and passes the ones
// that now decode to handler. Messages the handler accepts are marked as
// retried. Frames that still fail, or that the handler rejects, are logged
// and left in place.
//
// Returns the number of successfully replayed messages.
func (m *Manager) Replay(ctx context.Context, filter Filter, handler Handler) (int, error) {
	messages, err := m.store.List(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}

	replayed := 0
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}

		if err := m.replayMessage(ctx, msg, handler); err != nil {
			m.logger.Error("failed to replay message",
				"id", msg.ID,
				"codec", msg.Codec,
				"error", err)
			continue
		}

		if err := m.store.MarkRetried(ctx, msg.ID); err != nil {
			m.logger.Error("failed to mark message as retried",
				"id", msg.ID,
				"error", err)
		}
		replayed++
	}

	m.logger.Info("replayed DLQ messages",
		"total", len(messages),
		"replayed", replayed)

	return replayed, nil
}

// ReplaySingle replays a single DLQ message by ID
func (m *Manager) ReplaySingle(ctx context.Context, id string, handler Handler) error {
	msg, err := m.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if err := m.replayMessage(ctx, msg, handler); err != nil {
		return fmt.Errorf("replay message: %w", err)
	}
	if err := m.store.MarkRetried(ctx, id); err != nil {
		return fmt.Errorf("mark retried: %w", err)
	}

	m.logger.Info("replayed single DLQ message", "id", id, "codec", msg.Codec)
	return nil
}

func (m *Manager) replayMessage(ctx context.Context, msg *Message, handler Handler) error {
	decoded, err := Decode(msg)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return handler(ctx, decoded)
}

// Delete removes a message from the DLQ
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Cleanup removes messages older than the specified age
func (m *Manager) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	deleted, err := m.store.DeleteOlderThan(ctx, age)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		m.logger.Info("cleaned up old DLQ messages",
			"deleted", deleted,
			"older_than", age)
	}
	return deleted, nil
}

// Stats returns DLQ statistics. Stores that do not implement StatsProvider
// are summarized by listing every message.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if sp, ok := m.store.(StatsProvider); ok {
		return sp.Stats(ctx)
	}

	messages, err := m.store.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	stats := newStats()
	for _, msg := range messages {
		stats.add(msg)
	}
	return stats, nil
}

// Compile-time interface checks
var _ transport.Peer = (*capturedPeer)(nil)
var _ transport.HealthChecker = (*capturedPeer)(nil)
