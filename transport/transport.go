// Package transport provides the peer abstraction that carries WAMP messages
// between a client and a router.
//
// A Peer owns one bidirectional, message-oriented connection. Outbound
// messages are encoded with a codec.Codec and sent as single frames; inbound
// frames are decoded through codec.Unmarshal. Implementations live in the
// sub-packages (channel, redis, nats, kafka).
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport/codec"
)

// Transport errors
var (
	ErrTransportClosed = errors.New("transport closed")
	ErrSendTimeout     = errors.New("send timeout")
	ErrPeerClosed      = errors.New("remote peer closed")
)

// Message is the message interface from the message package
type Message = message.Message

// Codec is the codec interface from the codec package
type Codec = codec.Codec

// DefaultCodec returns the default codec used by transports (JSON)
func DefaultCodec() Codec {
	return codec.Default()
}

// Peer is one end of a WAMP connection.
//
// Send and Recv may be called from different goroutines. Recv returns a
// *DecodeError for a frame that cannot be decoded; the peer stays usable and
// the next Recv continues with the following frame. After Close, both Send
// and Recv return ErrTransportClosed.
type Peer interface {
	// ID returns the unique peer identifier
	ID() string

	// Send encodes msg and delivers it as one frame
	Send(ctx context.Context, msg Message) error

	// Recv blocks until the next message arrives or ctx is done
	Recv(ctx context.Context) (Message, error)

	// Close releases the connection
	Close(ctx context.Context) error
}

// DecodeError represents an inbound frame that failed to decode.
// It carries the raw frame so it can be captured to a dead letter queue and
// replayed later.
type DecodeError struct {
	PeerID  string // Peer that received the frame
	Codec   string // Codec name used to decode (e.g., "json")
	MsgID   string // Transport-specific frame ID (e.g., Redis stream ID)
	RawData []byte // The raw frame that failed to decode
	Err     error  // The decode error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error from peer %s (%s): %v", e.PeerID, e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes one frame, wrapping failures in a *DecodeError.
func Decode(c Codec, peerID, msgID string, data []byte) (Message, error) {
	msg, err := c.Decode(data)
	if err != nil {
		raw := make([]byte, len(data))
		copy(raw, data)
		return nil, &DecodeError{
			PeerID:  peerID,
			Codec:   c.Name(),
			MsgID:   msgID,
			RawData: raw,
			Err:     err,
		}
	}
	return msg, nil
}

// DecodeNamed decodes one frame with the codec registered under name, falling
// back to c when name is empty. Peers use it when the sender labels each frame
// with its serializer.
func DecodeNamed(c Codec, name, peerID, msgID string, data []byte) (Message, error) {
	if name != "" && name != c.Name() {
		named, err := codec.ByName(name)
		if err != nil {
			raw := make([]byte, len(data))
			copy(raw, data)
			return nil, &DecodeError{PeerID: peerID, Codec: name, MsgID: msgID, RawData: raw, Err: err}
		}
		c = named
	}
	return Decode(c, peerID, msgID, data)
}

// HeaderSerializer names the frame header carrying the codec name.
const HeaderSerializer = "Wamp-Serializer"

// AsDecodeError reports whether err carries a *DecodeError.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HealthStatus represents the health state of a peer connection
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult contains detailed health information
type HealthCheckResult struct {
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Latency   time.Duration  `json:"latency,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// IsHealthy returns true if the status is healthy
func (h *HealthCheckResult) IsHealthy() bool {
	return h.Status == HealthStatusHealthy
}

// HealthChecker is an optional interface that peers can implement
// to provide health check capabilities for monitoring and readiness probes.
type HealthChecker interface {
	Health(ctx context.Context) *HealthCheckResult
}

// CheckHealth asks p for its health when it implements HealthChecker.
// Peers that do not report health are assumed healthy.
func CheckHealth(ctx context.Context, p Peer) *HealthCheckResult {
	if hc, ok := p.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return &HealthCheckResult{
		Status:    HealthStatusHealthy,
		Message:   "peer does not report health",
		CheckedAt: time.Now(),
	}
}

// ID generation
var counter uint64

// NewID generates a new unique ID
func NewID() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return strconv.FormatUint(atomic.AddUint64(&counter, 1), 10)
}

// Logger returns a logger with the given component name
func Logger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// Jitter adds randomness to a duration to prevent thundering herd.
// Returns a duration between d*(1-factor) and d*(1+factor).
// Factor should be between 0 and 1 (e.g., 0.3 for +/-30% jitter).
func Jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || factor > 1 {
		return d
	}
	jitter := (rand.Float64()*2 - 1) * factor
	return time.Duration(float64(d) * (1 + jitter))
}
