package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventcircle/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. A returned error makes the consumer retry
// the same message; later offsets are not read until it succeeds.
type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
	// NewBackOff paces retries of a failing message. Nil means exponential
	// backoff capped at 30s with no overall limit.
	NewBackOff func() backoff.BackOff
}

// NewConsumer creates a consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// Run feeds messages to handler until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	c.Logger.LogKafka("CONSUME", "", "consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return err
		}

		if err := c.handle(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.Warn("KAFKA", fmt.Sprintf("Commit failed for %s@%d: %v", msg.Topic, msg.Offset, err))
		}
	}
}

// handle runs handler until it accepts msg or ctx ends.
func (c *Consumer) handle(ctx context.Context, handler Handler, msg kafka.Message) error {
	attempt := 0
	op := func() error {
		attempt++
		err := handler(ctx, msg)
		if err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s/%d@%d (attempt %d): %v", msg.Topic, msg.Partition, msg.Offset, attempt, err))
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(c.backOff(), ctx))
}

func (c *Consumer) backOff() backoff.BackOff {
	if c.NewBackOff != nil {
		return c.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Close gracefully shuts down the reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
