package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventcircle/internal/config"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes v as JSON to topic. Messages sharing a key land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, v any) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.Logger.LogKafka("PUBLISH", topic, "key "+key)
	return nil
}

// PublishBookingConfirmed is keyed by event so that per-event consumers see bookings in order.
func (p *Producer) PublishBookingConfirmed(ctx context.Context, msg models.BookingConfirmed) error {
	return p.Publish(ctx, p.Topics.BookingConfirmed, msg.EventID, msg)
}

func (p *Producer) PublishWithdrawalCompleted(ctx context.Context, msg models.WithdrawalPaid) error {
	return p.Publish(ctx, p.Topics.WithdrawalCompleted, msg.UserID, msg)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
