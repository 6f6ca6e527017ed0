// Package kafka provides a WAMP peer over a pair of Kafka topics.
//
// Outbound frames are produced with a sarama.SyncProducer; inbound frames are
// read from a single partition of the inbound topic. Kafka keeps frames
// in order per partition, so a session should keep each direction on one
// partition (see WithKey and WithPartition).
//
// Recommended sarama.Config settings:
//
//	config := sarama.NewConfig()
//	config.Producer.Return.Successes = true // REQUIRED by SyncProducer
//	config.Producer.RequiredAcks = sarama.WaitForAll
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rbaliyan/wamp/transport"
	"github.com/rbaliyan/wamp/transport/codec"
)

// Errors
var (
	ErrProducerRequired = errors.New("kafka producer is required")
	ErrConsumerRequired = errors.New("kafka consumer is required")
	ErrTopicRequired    = errors.New("kafka topic is required")
)

// Peer implements transport.Peer over Kafka topics
type Peer struct {
	id        string
	status    int32
	producer  sarama.SyncProducer
	pc        sarama.PartitionConsumer
	outbound  string
	inbound   string
	partition int32
	offset    int64
	key       string
	codec     codec.Codec
	closedCh  chan struct{}
	logger    *slog.Logger
	onError   func(error)
}

// New starts consuming the inbound topic and returns a peer that produces to
// the outbound topic. The producer and consumer are owned by the caller.
func New(producer sarama.SyncProducer, consumer sarama.Consumer, outbound, inbound string, opts ...Option) (*Peer, error) {
	if producer == nil {
		return nil, ErrProducerRequired
	}
	if consumer == nil {
		return nil, ErrConsumerRequired
	}
	if outbound == "" || inbound == "" {
		return nil, ErrTopicRequired
	}

	p := &Peer{
		id:       transport.NewID(),
		status:   1,
		producer: producer,
		outbound: outbound,
		inbound:  inbound,
		offset:   defaultOffset(),
		codec:    codec.Default(),
		closedCh: make(chan struct{}),
		logger:   transport.Logger("transport>kafka"),
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("peer", p.id)

	pc, err := consumer.ConsumePartition(inbound, p.partition, p.offset)
	if err != nil {
		return nil, fmt.Errorf("consume %s/%d: %w", inbound, p.partition, err)
	}
	p.pc = pc

	p.logger.Debug("consuming", "topic", inbound, "partition", p.partition, "offset", p.offset)
	return p, nil
}

// ID returns the peer identifier
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) isOpen() bool {
	return atomic.LoadInt32(&p.status) == 1
}

// Send produces one frame to the outbound topic.
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

	record := &sarama.ProducerMessage{
		Topic: p.outbound,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(transport.HeaderSerializer), Value: []byte(p.codec.Name())},
		},
	}
	if p.key != "" {
		record.Key = sarama.StringEncoder(p.key)
	}

	partition, offset, err := p.producer.SendMessage(record)
	if err != nil {
		p.onError(err)
		return err
	}

	p.logger.Debug("sent", "type", msg.Type().String(), "topic", p.outbound, "partition", partition, "offset", offset)
	return nil
}

// Recv returns the next frame from the inbound partition. Consumer errors are
// reported to the error handler and skipped.
func (p *Peer) Recv(ctx context.Context) (transport.Message, error) {
	for {
		if !p.isOpen() {
			return nil, transport.ErrTransportClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.closedCh:
			return nil, transport.ErrTransportClosed
		case cerr, ok := <-p.pc.Errors():
			if !ok {
				continue
			}
			p.logger.Error("partition consumer error", "topic", cerr.Topic, "partition", cerr.Partition, "error", cerr.Err)
			p.onError(cerr)
		case record, ok := <-p.pc.Messages():
			if !ok {
				if !p.isOpen() {
					return nil, transport.ErrTransportClosed
				}
				return nil, transport.ErrPeerClosed
			}
			return p.decode(record)
		}
	}
}

func (p *Peer) decode(record *sarama.ConsumerMessage) (transport.Message, error) {
	var name string
	for _, h := range record.Headers {
		if h != nil && string(h.Key) == transport.HeaderSerializer {
			name = string(h.Value)
		}
	}
	msgID := fmt.Sprintf("%s/%d/%d", record.Topic, record.Partition, record.Offset)

	msg, err := transport.DecodeNamed(p.codec, name, p.id, msgID, record.Value)
	if err != nil {
		p.logger.Error("failed to decode frame", "error", err, "id", msgID)
		return nil, err
	}
	return msg, nil
}

// Close stops the partition consumer.
func (p *Peer) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.status, 1, 0) {
		return nil
	}
	close(p.closedCh)

	if err := p.pc.Close(); err != nil {
		p.logger.Warn("partition consumer closed with errors", "error", err)
	}
	p.logger.Debug("peer closed")
	return nil
}

// Health reports the peer state and the consumer's high water mark.
func (p *Peer) Health(ctx context.Context) *transport.HealthCheckResult {
	start := time.Now()

	result := &transport.HealthCheckResult{
		CheckedAt: start,
		Details: map[string]any{
			"type":      "kafka",
			"inbound":   p.inbound,
			"outbound":  p.outbound,
			"partition": p.partition,
		},
	}

	if !p.isOpen() {
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "peer is closed"
		result.Latency = time.Since(start)
		return result
	}

	result.Details["high_water_mark"] = p.pc.HighWaterMarkOffset()
	result.Status = transport.HealthStatusHealthy
	result.Message = "kafka peer is healthy"
	result.Latency = time.Since(start)
	return result
}

// Compile-time checks
var (
	_ transport.Peer          = (*Peer)(nil)
	_ transport.HealthChecker = (*Peer)(nil)
)
