package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go"
	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
)

// mockConn routes published messages to channel subscribers in-process.
type mockConn struct {
	mu         sync.Mutex
	subs       map[string][]chan *nats.Msg
	published  []*nats.Msg
	publishErr error
	subErr     error
}

func newMockConn() *mockConn {
	return &mockConn{subs: make(map[string][]chan *nats.Msg)}
}

func (m *mockConn) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, msg)
	for _, ch := range m.subs[msg.Subject] {
		ch <- msg
	}
	return nil
}

func (m *mockConn) ChanSubscribe(subj string, ch chan *nats.Msg) (*nats.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return nil, m.subErr
	}
	m.subs[subj] = append(m.subs[subj], ch)
	return nil, nil
}

func (m *mockConn) inject(subj string, msg *nats.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Subject = subj
	for _, ch := range m.subs[subj] {
		ch <- msg
	}
}

func newPair(t *testing.T, conn *mockConn, opts ...Option) (*Peer, *Peer) {
	t.Helper()
	client, err := New(conn, "wamp.in", "wamp.out", opts...)
	if err != nil {
		t.Fatalf("New client failed: %v", err)
	}
	router, err := New(conn, "wamp.out", "wamp.in", opts...)
	if err != nil {
		t.Fatalf("New router failed: %v", err)
	}
	t.Cleanup(func() {
		client.Close(context.Background())
		router.Close(context.Background())
	})
	return client, router
}

func TestNew(t *testing.T) {
	t.Run("nil connection", func(t *testing.T) {
		if _, err := New(nil, "a", "b"); !errors.Is(err, ErrConnRequired) {
			t.Errorf("expected ErrConnRequired, got %v", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		if _, err := New(newMockConn(), "", "b"); !errors.Is(err, ErrSubjectRequired) {
			t.Errorf("expected ErrSubjectRequired, got %v", err)
		}
	})

	t.Run("subscribe failure", func(t *testing.T) {
		conn := newMockConn()
		conn.subErr = errors.New("permissions violation")
		if _, err := New(conn, "a", "b"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("options", func(t *testing.T) {
		p, err := New(newMockConn(), "a", "b", WithBufferSize(3), WithCodec(codec.MsgPack{}))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if cap(p.ch) != 3 {
			t.Errorf("expected buffer 3, got %d", cap(p.ch))
		}
		if p.codec.Name() != "msgpack" {
			t.Errorf("expected msgpack, got %s", p.codec.Name())
		}
	})
}

func TestSendRecv(t *testing.T) {
	ctx := context.Background()
	conn := newMockConn()
	client, router := newPair(t, conn)

	call := message.NewCall(1, nil, "com.myapp.add", message.List{int64(2), int64(3)}, nil)
	if err := client.Send(ctx, call); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(conn.published) != 1 {
		t.Fatalf("expected 1 published frame, got %d", len(conn.published))
	}
	if got := conn.published[0].Subject; got != "wamp.in" {
		t.Errorf("expected subject wamp.in, got %s", got)
	}
	if got := conn.published[0].Header.Get(transport.HeaderSerializer); got != "json" {
		t.Errorf("expected serializer header json, got %q", got)
	}

	got, err := router.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if diff := cmp.Diff(message.Message(call), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRecvUsesSenderCodec(t *testing.T) {
	ctx := context.Background()
	conn := newMockConn()

	client, err := New(conn, "wamp.in", "wamp.out", WithCodec(codec.MsgPack{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close(ctx)
	router, err := New(conn, "wamp.out", "wamp.in")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer router.Close(ctx)

	if err := client.Send(ctx, message.NewRegistered(5, 6)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := router.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if diff := cmp.Diff(message.Message(message.NewRegistered(5, 6)), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRecvDecodeError(t *testing.T) {
	ctx := context.Background()
	conn := newMockConn()
	_, router := newPair(t, conn)

	t.Run("bad frame", func(t *testing.T) {
		msg := nats.NewMsg("")
		msg.Data = []byte("garbage")
		msg.Header.Set(nats.MsgIdHdr, "m-1")
		conn.inject("wamp.in", msg)

		_, err := router.Recv(ctx)
		de, ok := transport.AsDecodeError(err)
		if !ok {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if de.MsgID != "m-1" || de.PeerID != router.ID() {
			t.Errorf("unexpected decode error %+v", de)
		}
	})

	t.Run("unknown serializer", func(t *testing.T) {
		msg := nats.NewMsg("")
		msg.Data = []byte(`[35, 1]`)
		msg.Header.Set(transport.HeaderSerializer, "cbor")
		conn.inject("wamp.in", msg)

		_, err := router.Recv(ctx)
		if !errors.Is(err, codec.ErrUnknownCodec) {
			t.Errorf("expected ErrUnknownCodec, got %v", err)
		}
	})

	t.Run("frame without headers", func(t *testing.T) {
		conn.inject("wamp.in", &nats.Msg{Data: []byte(`[35, 1]`)})

		got, err := router.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if got.Type() != message.UNSUBSCRIBED {
			t.Errorf("expected UNSUBSCRIBED, got %s", got.Type())
		}
	})
}

func TestPublishError(t *testing.T) {
	ctx := context.Background()
	conn := newMockConn()

	var handled error
	client, _ := newPair(t, conn, WithErrorHandler(func(err error) { handled = err }))

	conn.publishErr = nats.ErrConnectionClosed
	err := client.Send(ctx, message.NewUnsubscribed(1))
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if !errors.Is(handled, nats.ErrConnectionClosed) {
		t.Errorf("expected error handler to be called, got %v", handled)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	conn := newMockConn()
	client, _ := newPair(t, conn)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Recv(ctx)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := client.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, transport.ErrTransportClosed) {
			t.Errorf("expected ErrTransportClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}

	if err := client.Send(ctx, message.NewUnsubscribed(1)); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	if h := client.Health(ctx); h.Status != transport.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", h.Status)
	}
}

func TestHealth(t *testing.T) {
	client, _ := newPair(t, newMockConn())
	h := client.Health(context.Background())
	if !h.IsHealthy() {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}
	if h.Details["inbound"] != "wamp.out" {
		t.Errorf("expected inbound wamp.out, got %v", h.Details["inbound"])
	}
}
