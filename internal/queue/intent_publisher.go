package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// IntentPublisher publishes call intents to Kafka.
type IntentPublisher struct {
	writer *kafka.Writer
}

// NewIntentPublisher constructs a publisher for the given topic.
func NewIntentPublisher(k *Kafka, topic string) *IntentPublisher {
	return &IntentPublisher{writer: k.NewWriter(topic)}
}

// Launch writes the intent keyed by device so a device's intents stay ordered.
func (p *IntentPublisher) Launch(ctx context.Context, msg IntentMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("intent publisher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   []byte(msg.DeviceID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("intent publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *IntentPublisher) Close() error {
	return p.writer.Close()
}
