package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"paysync/internal/payment"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a writer that waits for all in-sync replicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Kafka publishes notifications as JSON keyed by order, so every event of
// one order lands on the same partition.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Notify(ctx context.Context, n payment.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := kafka.Message{
		Topic: k.topic,
		Key:   []byte(n.OrderShortID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(n.Type)},
		},
	}
	if err := k.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", n.Type, err)
	}
	return nil
}
