package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/channel"
	"github.com/rbaliyan/wamp/transport/codec"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestDecode(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		msg, err := transport.Decode(codec.JSON{}, "peer-1", "", []byte(`[35, 85346237]`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if msg.(message.Unsubscribed).RequestID != 85346237 {
			t.Errorf("unexpected message %v", msg)
		}
	})

	t.Run("invalid frame", func(t *testing.T) {
		data := []byte(`{"not": "an array"}`)
		_, err := transport.Decode(codec.JSON{}, "peer-1", "1-0", data)

		de, ok := transport.AsDecodeError(err)
		if !ok {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if de.PeerID != "peer-1" || de.Codec != "json" || de.MsgID != "1-0" {
			t.Errorf("unexpected decode error fields %+v", de)
		}
		if !errors.Is(err, codec.ErrDecodeFailure) {
			t.Errorf("expected ErrDecodeFailure, got %v", err)
		}

		// RawData is a copy
		data[0] = '!'
		if de.RawData[0] != '{' {
			t.Error("expected RawData to be independent of the input")
		}
	})

	t.Run("not a decode error", func(t *testing.T) {
		if _, ok := transport.AsDecodeError(transport.ErrTransportClosed); ok {
			t.Error("expected false for a plain error")
		}
	})
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := transport.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestJitter(t *testing.T) {
	d := 100 * time.Millisecond
	for range 50 {
		j := transport.Jitter(d, 0.3)
		if j < 70*time.Millisecond || j > 130*time.Millisecond {
			t.Fatalf("jitter %v out of range", j)
		}
	}
	if transport.Jitter(d, 0) != d {
		t.Error("expected no jitter for factor 0")
	}
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	a, b := channel.Pipe()
	defer a.Close(ctx)
	defer b.Close(ctx)

	ia := transport.Instrument(a,
		transport.WithMeterProvider(noop.NewMeterProvider()),
		transport.WithTracerProvider(tracenoop.NewTracerProvider()))
	ib := transport.Instrument(b)

	if ia.ID() != a.ID() {
		t.Errorf("expected ID %s, got %s", a.ID(), ia.ID())
	}

	if err := ia.Send(ctx, message.NewPublished(1, 2)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := ib.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got.Type() != message.PUBLISHED {
		t.Errorf("expected PUBLISHED, got %s", got.Type())
	}

	a.Close(ctx)
	if err := ia.Send(ctx, message.NewPublished(1, 2)); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
}

func TestWrappersReportHealth(t *testing.T) {
	ctx := context.Background()
	a, b := channel.Pipe()
	defer b.Close(ctx)

	wrapped := map[string]transport.Peer{
		"instrument": transport.Instrument(a),
		"rate limit": transport.RateLimit(a, waiterFunc(func(context.Context) error { return nil })),
		"both":       transport.RateLimit(transport.Instrument(a), waiterFunc(func(context.Context) error { return nil })),
	}
	for name, p := range wrapped {
		t.Run(name, func(t *testing.T) {
			if _, ok := p.(transport.HealthChecker); !ok {
				t.Fatal("expected wrapper to implement HealthChecker")
			}
			if got := transport.CheckHealth(ctx, p); got.Status != transport.HealthStatusHealthy || got.Details["type"] != "channel" {
				t.Errorf("expected the channel peer's health, got %+v", got)
			}
		})
	}

	a.Close(ctx)
	if got := transport.CheckHealth(ctx, wrapped["both"]); got.Status != transport.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy after close, got %s", got.Status)
	}
}

type waiterFunc func(ctx context.Context) error

func (f waiterFunc) Wait(ctx context.Context) error { return f(ctx) }

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	a, b := channel.Pipe()
	defer a.Close(ctx)
	defer b.Close(ctx)

	var waits int
	limited := transport.RateLimit(b, waiterFunc(func(ctx context.Context) error {
		waits++
		return nil
	}))

	for i := range 3 {
		if err := a.Send(ctx, message.NewUnsubscribed(message.ID(i))); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if _, err := limited.Recv(ctx); err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
	}
	if waits != 3 {
		t.Errorf("expected 3 waits, got %d", waits)
	}

	refused := transport.RateLimit(b, waiterFunc(func(ctx context.Context) error {
		return errors.New("burst exceeded")
	}))
	if _, err := refused.Recv(ctx); !errors.Is(err, transport.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	ctxLimited := transport.RateLimit(b, waiterFunc(func(ctx context.Context) error {
		return ctx.Err()
	}))
	if _, err := ctxLimited.Recv(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
}
