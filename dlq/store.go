// Package dlq quarantines inbound WAMP frames that could not be decoded.
//
// A peer that receives a malformed frame returns a *transport.DecodeError and
// keeps going. The Manager stores those errors together with the raw frame and
// the name of the codec that rejected it, so the frames can be inspected and
// replayed later, for example after a codec is registered or a validation bug
// is fixed.
//
// # Basic Usage
//
//	store := dlq.NewPostgresStore(db)
//	manager := dlq.NewManager(store)
//
//	// Quarantine every frame the peer fails to decode
//	peer := manager.Capture(rawPeer)
//	for {
//	    msg, err := peer.Recv(ctx)
//	    if _, ok := transport.AsDecodeError(err); ok {
//	        continue
//	    }
//	    ...
//	}
//
//	// Later: decode the stored frames again and hand them to a handler
//	replayed, err := manager.Replay(ctx, dlq.Filter{
//	    Codec:          "msgpack",
//	    ExcludeRetried: true,
//	}, func(ctx context.Context, msg message.Message) error {
//	    return router.Dispatch(ctx, msg)
//	})
//
// # Cleanup
//
//	// Remove frames older than 7 days
//	deleted, err := manager.Cleanup(ctx, 7*24*time.Hour)
package dlq

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a stored frame does not exist
var ErrNotFound = errors.New("dlq message not found")

// Message is one quarantined frame.
type Message struct {
	ID        string     // Unique DLQ message ID (generated)
	PeerID    string     // Peer that received the frame
	Codec     string     // Codec that rejected the frame (e.g., "json")
	MsgID     string     // Transport frame ID, if the transport has one
	Frame     []byte     // Raw frame bytes
	Kind      string     // Error classification, see Kind* constants
	Error     string     // Decode error text
	CreatedAt time.Time  // When the frame was quarantined
	RetriedAt *time.Time // When the frame was last replayed (nil if never)
}

// Error classifications stored in Message.Kind
const (
	KindUnknownCodec        = "unknown_codec"
	KindUnknownType         = "unknown_type"
	KindTypeMismatch        = "type_mismatch"
	KindInvalidLength       = "invalid_length"
	KindInvalidField        = "invalid_field"
	KindInvalidConstruction = "invalid_construction"
	KindMalformed           = "malformed"
)

// Filter specifies criteria for listing quarantined frames.
//
// All fields are optional. Empty filter returns all messages.
type Filter struct {
	PeerID         string    // Filter by receiving peer (empty = all)
	Codec          string    // Filter by codec name (empty = all)
	Kind           string    // Filter by error classification (empty = all)
	StartTime      time.Time // Messages created at or after this time
	EndTime        time.Time // Messages created at or before this time
	Error          string    // Filter by error text (contains match)
	ExcludeRetried bool      // Exclude already replayed messages
	Limit          int       // Maximum results (0 = no limit)
	Offset         int       // Offset for pagination
}

// Store persists quarantined frames. Implementations must be safe for
// concurrent use.
type Store interface {
	// Store adds a message. The message ID must be pre-generated.
	Store(ctx context.Context, msg *Message) error

	// Get retrieves a single message by ID.
	// Returns an error wrapping ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Message, error)

	// List returns messages matching the filter, oldest first.
	List(ctx context.Context, filter Filter) ([]*Message, error)

	// Count returns the number of messages matching the filter.
	// Limit and Offset are ignored.
	Count(ctx context.Context, filter Filter) (int64, error)

	// MarkRetried sets RetriedAt to the current time.
	MarkRetried(ctx context.Context, id string) error

	// Delete removes a message.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes messages older than age and returns how many
	// were removed.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Stats summarizes the quarantine.
type Stats struct {
	TotalMessages   int64            // Total messages stored
	MessagesByCodec map[string]int64 // Count per codec
	MessagesByKind  map[string]int64 // Count per error classification
	OldestMessage   *time.Time       // Timestamp of oldest message
	NewestMessage   *time.Time       // Timestamp of newest message
	RetriedMessages int64            // Messages that have been replayed
	PendingMessages int64            // Messages awaiting replay
}

// StatsProvider is an optional interface for stores that compute Stats
// themselves.
type StatsProvider interface {
	Stats(ctx context.Context) (*Stats, error)
}

// matches reports whether msg passes every criterion of f except paging.
func (f Filter) matches(msg *Message) bool {
	switch {
	case f.PeerID != "" && msg.PeerID != f.PeerID:
		return false
	case f.Codec != "" && msg.Codec != f.Codec:
		return false
	case f.Kind != "" && msg.Kind != f.Kind:
		return false
	case !f.StartTime.IsZero() && msg.CreatedAt.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && msg.CreatedAt.After(f.EndTime):
		return false
	case f.Error != "" && !containsFold(msg.Error, f.Error):
		return false
	case f.ExcludeRetried && msg.RetriedAt != nil:
		return false
	}
	return true
}

// page applies Offset and Limit to an already filtered slice.
func (f Filter) page(messages []*Message) []*Message {
	if f.Offset >= len(messages) {
		return nil
	}
	messages = messages[f.Offset:]
	if f.Limit > 0 && len(messages) > f.Limit {
		messages = messages[:f.Limit]
	}
	return messages
}
