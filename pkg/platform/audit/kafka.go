package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultTopic is the audit topic unless configuration overrides it.
const DefaultTopic = "concur.consent.audit"

// Producer is the transport seam the Kafka publisher writes through.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher serializes events to JSON and produces them keyed by the
// (principal, fiduciary) pair so one pair's trail stays ordered within a
// partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher constructs a publisher for the given topic. An empty
// topic falls back to DefaultTopic.
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := []byte(event.PrincipalID + "|" + event.FiduciaryID)
	if err := p.producer.Produce(ctx, p.topic, key, value); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
