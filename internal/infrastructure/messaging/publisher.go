package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/infrastructure/tracing"
)

// EventRelationshipWritten is emitted after a relationship row is written
const EventRelationshipWritten = "relationship.written"

// RelationshipEvent describes a relationship write
type RelationshipEvent struct {
	EventType     string    `json:"event_type"`
	Source        string    `json:"source"` // api, sync or reconcile
	ID            int64     `json:"id"`
	CompanyPostID int64     `json:"company_post_id"`
	HeadingPostID int64     `json:"heading_post_id"`
	CompanyID     string    `json:"company_id"`
	HeadingID     string    `json:"heading_id"`
	Ranking       int       `json:"ranking"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRelationshipEvent builds the event for a stored relationship
func NewRelationshipEvent(source string, rel *entities.Relationship) *RelationshipEvent {
	return &RelationshipEvent{
		EventType:     EventRelationshipWritten,
		Source:        source,
		ID:            rel.ID,
		CompanyPostID: rel.CompanyPostID,
		HeadingPostID: rel.HeadingPostID,
		CompanyID:     rel.CompanyID,
		HeadingID:     rel.HeadingID,
		Ranking:       rel.Ranking,
	}
}

// Publisher emits relationship events
type Publisher interface {
	PublishRelationshipEvent(ctx context.Context, event *RelationshipEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes relationship events to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewPublisher returns a Kafka publisher, or a no-op publisher when no
// brokers are configured.
func NewPublisher(cfg config.MessagingConfig, logger *zap.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// PublishRelationshipEvent publishes a relationship event keyed by its pair,
// so every write for one pair lands on the same partition in order.
func (p *KafkaPublisher) PublishRelationshipEvent(ctx context.Context, event *RelationshipEvent) error {
	ctx, span := tracing.StartSpan(ctx, "messaging.KafkaPublisher.PublishRelationshipEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship event: %w", err)
	}

	pair := entities.Pair{CompanyPostID: event.CompanyPostID, HeadingPostID: event.HeadingPostID}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(pair.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "relationship_id", Value: []byte(strconv.FormatInt(event.ID, 10))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish relationship event: %w", err)
	}

	logging.WithContext(ctx, p.logger).Debug("Published relationship event",
		zap.String("pair", pair.String()),
		zap.String("source", event.Source),
	)

	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards every event
type NoopPublisher struct{}

// PublishRelationshipEvent does nothing
func (NoopPublisher) PublishRelationshipEvent(context.Context, *RelationshipEvent) error {
	return nil
}

// Close does nothing
func (NoopPublisher) Close() error {
	return nil
}
