package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
	"github.com/redis/go-redis/v9"
)

// mockRedisClient implements Client for testing
type mockRedisClient struct {
	mu       sync.Mutex
	streams  map[string][]redis.XMessage
	adds     []*redis.XAddArgs
	msgID    int
	xaddErr  error
	xreadErr error
	pingErr  error
	reads    int
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{
		streams: make(map[string][]redis.XMessage),
	}
}

func (m *mockRedisClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStringCmd(ctx)
	if m.xaddErr != nil {
		cmd.SetErr(m.xaddErr)
		return cmd
	}

	m.msgID++
	msgID := fmt.Sprintf("%d-0", m.msgID)

	values := make(map[string]any)
	if v, ok := a.Values.(map[string]any); ok {
		for k, val := range v {
			// Redis hands every field back as a string
			switch x := val.(type) {
			case []byte:
				values[k] = string(x)
			default:
				values[k] = x
			}
		}
	}

	m.adds = append(m.adds, a)
	m.streams[a.Stream] = append(m.streams[a.Stream], redis.XMessage{ID: msgID, Values: values})
	cmd.SetVal(msgID)
	return cmd
}

func (m *mockRedisClient) XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd {
	cmd := redis.NewXStreamSliceCmd(ctx)

	m.mu.Lock()
	m.reads++
	if m.xreadErr != nil {
		err := m.xreadErr
		m.mu.Unlock()
		cmd.SetErr(err)
		return cmd
	}

	stream, after := a.Streams[0], seq(a.Streams[1])
	var out []redis.XMessage
	for _, msg := range m.streams[stream] {
		if seq(msg.ID) > after {
			out = append(out, msg)
		}
		if a.Count > 0 && int64(len(out)) == a.Count {
			break
		}
	}
	m.mu.Unlock()

	if len(out) == 0 {
		// Emulate a short block before the nil reply
		select {
		case <-ctx.Done():
			cmd.SetErr(ctx.Err())
		case <-time.After(time.Millisecond):
			cmd.SetErr(redis.Nil)
		}
		return cmd
	}

	cmd.SetVal([]redis.XStream{{Stream: stream, Messages: out}})
	return cmd
}

func (m *mockRedisClient) XLen(ctx context.Context, stream string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(m.streams[stream])))
	return cmd
}

func (m *mockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.pingErr != nil {
		cmd.SetErr(m.pingErr)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockRedisClient) append(stream string, values map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgID++
	m.streams[stream] = append(m.streams[stream], redis.XMessage{ID: fmt.Sprintf("%d-0", m.msgID), Values: values})
}

func seq(id string) int {
	n, _ := strconv.Atoi(strings.SplitN(id, "-", 2)[0])
	return n
}

func newPair(t *testing.T, client *mockRedisClient, opts ...Option) (*Peer, *Peer) {
	t.Helper()
	a, err := New(client, "wamp:s1:in", "wamp:s1:out", opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New(client, "wamp:s1:out", "wamp:s1:in", opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		a.Close(context.Background())
		b.Close(context.Background())
	})
	return a, b
}

func TestNew(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		if _, err := New(nil, "a", "b"); !errors.Is(err, ErrClientRequired) {
			t.Errorf("expected ErrClientRequired, got %v", err)
		}
	})

	t.Run("missing stream", func(t *testing.T) {
		if _, err := New(newMockRedisClient(), "a", ""); !errors.Is(err, ErrStreamRequired) {
			t.Errorf("expected ErrStreamRequired, got %v", err)
		}
	})

	t.Run("options", func(t *testing.T) {
		p, err := New(newMockRedisClient(), "a", "b",
			WithCodec(codec.MsgPack{}),
			WithMaxLen(1000),
			WithMaxAge(time.Hour),
			WithBlockTime(time.Second),
			WithStartID("42-0"),
			WithBatchSize(5),
		)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if p.codec.Name() != "msgpack" || p.maxLen != 1000 || p.maxAge != time.Hour ||
			p.blockTime != time.Second || p.lastID != "42-0" || p.count != 5 {
			t.Errorf("options not applied: %+v", p)
		}
	})
}

func TestSendRecv(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	a, b := newPair(t, client)

	sent := []message.Message{
		message.NewSubscribe(1, nil, "com.myapp.topic"),
		message.NewSubscribed(1, 77),
		message.NewEvent(77, 5, nil, message.List{"hello"}, nil),
	}

	if err := a.Send(ctx, sent[0]); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := b.Send(ctx, sent[1]); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := b.Send(ctx, sent[2]); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if diff := cmp.Diff(sent[0], got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	for _, want := range sent[1:] {
		got, err := a.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}

	if a.lastID != "3-0" {
		t.Errorf("expected lastID 3-0, got %s", a.lastID)
	}
}

func TestRecvBacklog(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()

	stale, err := New(client, "wamp:s2:in", "wamp:s2:out")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := stale.Send(ctx, message.NewGoodbye(nil, "wamp.close.normal")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	stale.Close(ctx)

	t.Run("default start replays earlier frames", func(t *testing.T) {
		p, err := New(client, "wamp:s2:x", "wamp:s2:in")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer p.Close(ctx)

		got, err := p.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if got.Type() != message.GOODBYE {
			t.Errorf("expected the stale GOODBYE, got %s", got.Type())
		}
	})

	t.Run("start ID skips the backlog", func(t *testing.T) {
		p, err := New(client, "wamp:s2:x", "wamp:s2:in", WithStartID("1-0"))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer p.Close(ctx)

		recvCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if msg, err := p.Recv(recvCtx); err == nil {
			t.Errorf("expected no frame, got %v", msg)
		}
	})
}

func TestSendTrimming(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	p, err := New(client, "out", "in", WithMaxLen(100), WithMaxAge(time.Minute))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)

	if err := p.Send(ctx, message.NewUnsubscribed(1)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	args := client.adds[0]
	if args.MaxLen != 100 || !args.Approx {
		t.Errorf("expected approximate MAXLEN 100, got %d approx=%v", args.MaxLen, args.Approx)
	}
	if args.MinID == "" {
		t.Error("expected MINID to be set")
	}
	values := args.Values.(map[string]any)
	if values[fieldCodec] != "json" {
		t.Errorf("expected codec field json, got %v", values[fieldCodec])
	}
}

func TestSendError(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	client.xaddErr = errors.New("OOM command not allowed")

	var handled error
	p, _ := New(client, "out", "in", WithErrorHandler(func(err error) { handled = err }))
	defer p.Close(ctx)

	if err := p.Send(ctx, message.NewUnsubscribed(1)); err == nil {
		t.Error("expected error")
	}
	if handled == nil {
		t.Error("expected error handler to be called")
	}
}

func TestRecvDecodeErrors(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	_, b := newPair(t, client)

	client.append("wamp:s1:in", map[string]any{"other": "x"})
	client.append("wamp:s1:in", map[string]any{fieldData: "[1, \"realm1\", {}]"})
	client.append("wamp:s1:in", map[string]any{fieldData: "[35, 9]", fieldCodec: "json"})

	_, err := b.Recv(ctx)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}

	_, err = b.Recv(ctx)
	de, ok := transport.AsDecodeError(err)
	if !ok {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.MsgID != "2-0" {
		t.Errorf("expected msg id 2-0, got %s", de.MsgID)
	}
	if !errors.Is(err, message.ErrInvalidDetails) {
		t.Errorf("expected ErrInvalidDetails, got %v", err)
	}

	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got.(message.Unsubscribed).RequestID != 9 {
		t.Errorf("unexpected message %v", got)
	}
}

func TestRecvCancellation(t *testing.T) {
	client := newMockRedisClient()
	_, b := newPair(t, client)

	t.Run("context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := b.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("close", func(t *testing.T) {
		errCh := make(chan error, 1)
		go func() {
			_, err := b.Recv(context.Background())
			errCh <- err
		}()
		time.Sleep(10 * time.Millisecond)
		b.Close(context.Background())

		select {
		case err := <-errCh:
			if !errors.Is(err, transport.ErrTransportClosed) {
				t.Errorf("expected ErrTransportClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Recv did not return after Close")
		}
	})
}

func TestRecvRetriesReadErrors(t *testing.T) {
	client := newMockRedisClient()
	client.xreadErr = errors.New("LOADING Redis is loading the dataset in memory")

	var errs int
	var mu sync.Mutex
	p, _ := New(client, "out", "in", WithErrorHandler(func(error) {
		mu.Lock()
		errs++
		mu.Unlock()
	}))
	defer p.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if errs == 0 {
		t.Error("expected read errors to be reported")
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	a, b := newPair(t, client)

	a.Send(ctx, message.NewUnsubscribed(1))

	h := b.Health(ctx)
	if !h.IsHealthy() {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}
	if h.Details["inbound_length"] != int64(1) {
		t.Errorf("expected inbound_length 1, got %v", h.Details["inbound_length"])
	}

	client.pingErr = errors.New("connection refused")
	if h := b.Health(ctx); h.Status != transport.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", h.Status)
	}
}
