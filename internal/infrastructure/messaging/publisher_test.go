package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/config"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishRelationshipEvent(t *testing.T) {
	writer := &fakeWriter{}
	pub := newKafkaPublisher(writer, "nichesite.relationships", zap.NewNop())

	rel := &entities.Relationship{ID: 3, CompanyPostID: 12, HeadingPostID: 34, CompanyID: "C-1", HeadingID: "H-9", Ranking: 5}
	require.NoError(t, pub.PublishRelationshipEvent(context.Background(), NewRelationshipEvent("api", rel)))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "nichesite.relationships", msg.Topic)
	assert.Equal(t, "12:34", string(msg.Key))

	var got RelationshipEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, EventRelationshipWritten, got.EventType)
	assert.Equal(t, "api", got.Source)
	assert.Equal(t, 5, got.Ranking)
	assert.False(t, got.Timestamp.IsZero())

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "3", headers["relationship_id"])

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	pub := newKafkaPublisher(writer, "t", zap.NewNop())

	err := pub.PublishRelationshipEvent(context.Background(), &RelationshipEvent{EventType: EventRelationshipWritten})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewPublisher_NoBrokers(t *testing.T) {
	pub := NewPublisher(config.MessagingConfig{Topic: "t"}, zap.NewNop())
	assert.IsType(t, NoopPublisher{}, pub)
	assert.NoError(t, pub.PublishRelationshipEvent(context.Background(), &RelationshipEvent{}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisher_WithBrokers(t *testing.T) {
	pub := NewPublisher(config.MessagingConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, zap.NewNop())
	assert.IsType(t, &KafkaPublisher{}, pub)
	assert.NoError(t, pub.Close())
}
