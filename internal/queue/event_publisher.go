package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventPublisher emits outcome and receipt events.
type EventPublisher struct {
	outcomes *kafka.Writer
	receipts *kafka.Writer
}

// NewEventPublisher constructs a publisher; an empty topic disables that stream.
func NewEventPublisher(k *Kafka, outcomeTopic, receiptTopic string) *EventPublisher {
	p := &EventPublisher{}
	if outcomeTopic != "" {
		p.outcomes = k.NewWriter(outcomeTopic)
	}
	if receiptTopic != "" {
		p.receipts = k.NewWriter(receiptTopic)
	}
	return p
}

// PublishOutcome emits a resolved ticket.
func (p *EventPublisher) PublishOutcome(ctx context.Context, msg OutcomeMessage) error {
	if p.outcomes == nil {
		return nil
	}
	return write(ctx, p.outcomes, msg.DeviceID, msg, "outcome")
}

// PublishReceipt emits a provider launch receipt.
func (p *EventPublisher) PublishReceipt(ctx context.Context, msg ReceiptMessage) error {
	if p.receipts == nil {
		return nil
	}
	return write(ctx, p.receipts, msg.DeviceID, msg, "receipt")
}

// Close closes both writers.
func (p *EventPublisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.outcomes, p.receipts} {
		if w == nil {
			continue
		}
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func write(ctx context.Context, w *kafka.Writer, key string, msg any, kind string) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("event publisher: marshal %s: %w", kind, err)
	}
	record := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := w.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("event publisher: write %s: %w", kind, err)
	}
	return nil
}
