package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/wamp/message"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
)

func testConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	return config
}

func encode(t *testing.T, c codec.Codec, m message.Message) []byte {
	t.Helper()
	data, err := c.Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func TestNew(t *testing.T) {
	config := testConfig()

	t.Run("missing dependencies", func(t *testing.T) {
		consumer := mocks.NewConsumer(t, config)
		producer := mocks.NewSyncProducer(t, config)
		defer producer.Close()

		if _, err := New(nil, consumer, "a", "b"); !errors.Is(err, ErrProducerRequired) {
			t.Errorf("expected ErrProducerRequired, got %v", err)
		}
		if _, err := New(producer, nil, "a", "b"); !errors.Is(err, ErrConsumerRequired) {
			t.Errorf("expected ErrConsumerRequired, got %v", err)
		}
		if _, err := New(producer, consumer, "", "b"); !errors.Is(err, ErrTopicRequired) {
			t.Errorf("expected ErrTopicRequired, got %v", err)
		}
	})

	t.Run("partition already consumed", func(t *testing.T) {
		consumer := mocks.NewConsumer(t, config)
		producer := mocks.NewSyncProducer(t, config)
		defer producer.Close()

		consumer.ExpectConsumePartition("wamp.in", 2, sarama.OffsetOldest)

		p, err := New(producer, consumer, "wamp.out", "wamp.in", WithPartition(2), WithOffset(sarama.OffsetOldest))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer p.Close(context.Background())

		if _, err := New(producer, consumer, "wamp.out", "wamp.in", WithPartition(2), WithOffset(sarama.OffsetOldest)); err == nil {
			t.Error("expected error consuming the same partition twice")
		}
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	config := testConfig()

	consumer := mocks.NewConsumer(t, config)
	consumer.ExpectConsumePartition("wamp.in", 0, sarama.OffsetNewest)
	producer := mocks.NewSyncProducer(t, config)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(record *sarama.ProducerMessage) error {
		if record.Topic != "wamp.out" {
			return errors.New("unexpected topic " + record.Topic)
		}
		key, _ := record.Key.Encode()
		if string(key) != "session-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(record.Headers) != 1 || string(record.Headers[0].Value) != "msgpack" {
			return errors.New("missing serializer header")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	var handled error
	p, err := New(producer, consumer, "wamp.out", "wamp.in",
		WithCodec(codec.MsgPack{}),
		WithKey("session-1"),
		WithErrorHandler(func(err error) { handled = err }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)

	if err := p.Send(ctx, message.NewRegister(1, nil, "com.myapp.add")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := p.Send(ctx, message.NewRegister(2, nil, "com.myapp.sub")); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
	if !errors.Is(handled, sarama.ErrOutOfBrokers) {
		t.Errorf("expected error handler to be called, got %v", handled)
	}

	if err := producer.Close(); err != nil {
		t.Errorf("producer Close failed: %v", err)
	}
}

func TestRecv(t *testing.T) {
	ctx := context.Background()
	config := testConfig()

	consumer := mocks.NewConsumer(t, config)
	pc := consumer.ExpectConsumePartition("wamp.in", 0, sarama.OffsetNewest)
	producer := mocks.NewSyncProducer(t, config)
	defer producer.Close()

	result := message.NewResult(7, nil, message.List{"ok"}, nil)
	pc.YieldError(sarama.ErrNotLeaderForPartition)
	pc.YieldMessage(&sarama.ConsumerMessage{Value: []byte("not a frame")})
	pc.YieldMessage(&sarama.ConsumerMessage{
		Value: encode(t, codec.MsgPack{}, result),
		Headers: []*sarama.RecordHeader{
			{Key: []byte(transport.HeaderSerializer), Value: []byte("msgpack")},
		},
	})

	var consumerErrs int
	p, err := New(producer, consumer, "wamp.out", "wamp.in",
		WithErrorHandler(func(err error) {
			var cerr *sarama.ConsumerError
			if errors.As(err, &cerr) {
				consumerErrs++
			}
		}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	// The consumer error and the bad frame may arrive in either order
	var got message.Message
	var decodeErr *transport.DecodeError
	for got == nil {
		msg, err := p.Recv(recvCtx)
		if err != nil {
			de, ok := transport.AsDecodeError(err)
			if !ok {
				t.Fatalf("Recv failed: %v", err)
			}
			decodeErr = de
			continue
		}
		got = msg
	}

	if decodeErr == nil {
		t.Fatal("expected a decode error for the bad frame")
	}
	if !strings.HasPrefix(decodeErr.MsgID, "wamp.in/0/") {
		t.Errorf("unexpected msg id %s", decodeErr.MsgID)
	}
	if diff := cmp.Diff(message.Message(result), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if consumerErrs > 1 {
		t.Errorf("expected at most 1 consumer error, got %d", consumerErrs)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	config := testConfig()

	consumer := mocks.NewConsumer(t, config)
	consumer.ExpectConsumePartition("wamp.in", 0, sarama.OffsetNewest)
	producer := mocks.NewSyncProducer(t, config)
	defer producer.Close()

	p, err := New(producer, consumer, "wamp.out", "wamp.in")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if h := p.Health(ctx); !h.IsHealthy() {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Recv(ctx)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := p.Close(ctx); err != nil {
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

	if err := p.Send(ctx, message.NewUnsubscribed(1)); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	if h := p.Health(ctx); h.Status != transport.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", h.Status)
	}
}
