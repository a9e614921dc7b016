package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces events to a Kafka topic keyed by subject so events
// for one aggregate stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the given brokers. The caller owns Close.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	// Async produce; delivery failures surface through the callback only.
	// Events are informational, so we do not block the operation on acks.
	p.client.Produce(ctx, record, nil)
	return nil
}

// Flush waits for buffered records to be delivered, bounded by ctx.
func (p *KafkaPublisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close flushes and releases the underlying client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
