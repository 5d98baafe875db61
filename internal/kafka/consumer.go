package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
)

// Handler processes one decoded lifecycle event.
type Handler func(ctx context.Context, evt models.LifecycleEvent) error

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Run consumes until ctx is cancelled. Undecodable messages and handler
// failures are logged and committed so one bad record cannot wedge the group.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.LogKafka("START", c.reader.Config().Topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		if err := Dispatch(ctx, msg, handle); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping message at offset %d: %v", msg.Offset, err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
		}
	}
}

// Dispatch decodes a message and hands it to handle.
func Dispatch(ctx context.Context, msg kafka.Message, handle Handler) error {
	var evt models.LifecycleEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if evt.Type == "" {
		return fmt.Errorf("message without event type")
	}
	return handle(ctx, evt)
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
