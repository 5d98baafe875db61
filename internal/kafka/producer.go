package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes ticket lifecycle events. Ticket state changes go to the
// tickets topic and door activity to the check-ins topic, keyed by ticket id
// so one ticket's events stay ordered within a partition.
type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) Publish(ctx context.Context, evt models.LifecycleEvent) error {
	msg, err := p.message(evt)
	if err != nil {
		return err
	}

	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", evt.Type, err)
	}
	p.Logger.LogKafka("PUBLISH", msg.Topic, fmt.Sprintf("%s %s", evt.Type, evt.TicketID))
	return nil
}

func (p *Producer) message(evt models.LifecycleEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka encode %s: %w", evt.Type, err)
	}

	key := evt.TicketID
	if key == "" {
		key = string(evt.Type)
	}

	return kafka.Message{
		Topic: p.topicFor(evt.Type),
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
		Time: evt.OccurredAt,
	}, nil
}

func (p *Producer) topicFor(t models.LifecycleEventType) string {
	switch t {
	case models.LifecycleTicketCheckedIn, models.LifecycleLedgerReset:
		return p.Topics.CheckinEvents
	default:
		return p.Topics.TicketEvents
	}
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
