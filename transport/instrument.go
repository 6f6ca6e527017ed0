package transport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/wamp/transport"

// Span attribute keys
const (
	spanKeyPeerID      = "wamp.peer.id"
	spanKeyMessageType = "wamp.message.type"
)

type instrumentOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// InstrumentOption configures Instrument
type InstrumentOption func(*instrumentOptions)

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(o *instrumentOptions) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(o *instrumentOptions) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

type instrumentedPeer struct {
	Peer
	tracer       trace.Tracer
	sent         metric.Int64Counter
	received     metric.Int64Counter
	decodeErrors metric.Int64Counter
}

// Instrument wraps a peer with OpenTelemetry spans and counters around Send
// and Recv. Messages are counted per message type.
func Instrument(p Peer, opts ...InstrumentOption) Peer {
	o := &instrumentOptions{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	sent, _ := meter.Int64Counter("wamp.transport.sent",
		metric.WithDescription("Number of messages sent"),
		metric.WithUnit("{message}"),
	)
	received, _ := meter.Int64Counter("wamp.transport.received",
		metric.WithDescription("Number of messages received"),
		metric.WithUnit("{message}"),
	)
	decodeErrors, _ := meter.Int64Counter("wamp.transport.decode_errors",
		metric.WithDescription("Number of inbound frames that failed to decode"),
		metric.WithUnit("{frame}"),
	)

	return &instrumentedPeer{
		Peer:         p,
		tracer:       o.tracerProvider.Tracer(instrumentationName),
		sent:         sent,
		received:     received,
		decodeErrors: decodeErrors,
	}
}

func (p *instrumentedPeer) Send(ctx context.Context, msg Message) error {
	ctx, span := p.tracer.Start(ctx, "wamp.send",
		trace.WithAttributes(
			attribute.String(spanKeyPeerID, p.ID()),
			attribute.String(spanKeyMessageType, msg.Type().String())),
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := p.Peer.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("peer", p.ID()),
		attribute.String("type", msg.Type().String()),
	))
	return nil
}

func (p *instrumentedPeer) Recv(ctx context.Context) (Message, error) {
	msg, err := p.Peer.Recv(ctx)
	if err != nil {
		if de, ok := AsDecodeError(err); ok {
			p.decodeErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("peer", p.ID()),
				attribute.String("codec", de.Codec),
			))
		}
		return nil, err
	}

	_, span := p.tracer.Start(ctx, "wamp.recv",
		trace.WithAttributes(
			attribute.String(spanKeyPeerID, p.ID()),
			attribute.String(spanKeyMessageType, msg.Type().String())),
		trace.WithSpanKind(trace.SpanKindConsumer))
	span.End()

	p.received.Add(ctx, 1, metric.WithAttributes(
		attribute.String("peer", p.ID()),
		attribute.String("type", msg.Type().String()),
	))
	return msg, nil
}

func (p *instrumentedPeer) Health(ctx context.Context) *HealthCheckResult {
	return CheckHealth(ctx, p.Peer)
}

// Waiter blocks until an operation is permitted. ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

type limitedPeer struct {
	Peer
	limiter Waiter
}

// RateLimit wraps a peer so that Recv waits on limiter before taking each
// inbound message.
func RateLimit(p Peer, limiter Waiter) Peer {
	return &limitedPeer{Peer: p, limiter: limiter}
}

func (p *limitedPeer) Recv(ctx context.Context) (Message, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Join(ErrRateLimited, err)
	}
	return p.Peer.Recv(ctx)
}

func (p *limitedPeer) Health(ctx context.Context) *HealthCheckResult {
	return CheckHealth(ctx, p.Peer)
}

// Compile-time checks
var (
	_ HealthChecker = (*instrumentedPeer)(nil)
	_ HealthChecker = (*limitedPeer)(nil)
)

// ErrRateLimited is returned by a rate limited peer when the limiter refuses
// to wait.
var ErrRateLimited = errors.New("rate limited")
