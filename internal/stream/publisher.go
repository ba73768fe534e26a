// Package stream publishes newly ingested items to Kafka for downstream
// analytics consumers. Publishing is optional and best effort.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/akudrin/epiwatch/backend/internal/models"
)

// ItemEvent is the envelope written to the topic, one per item.
type ItemEvent struct {
	EventID   string          `json:"event_id"`
	City      string          `json:"city"`
	Disease   string          `json:"disease"`
	Origin    string          `json:"origin"` // "external" or "synthetic"
	EmittedAt time.Time       `json:"emitted_at"`
	Item      models.NewsItem `json:"item"`
}

// Publisher writes item events to one Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewPublisher builds a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.LeastBytes{},
		MaxAttempts: 3,
	})
	return &Publisher{writer: writer, log: log}
}

// PublishItems emits one event per item, keyed by item id so duplicates of
// the same item land in the same partition.
func (p *Publisher) PublishItems(ctx context.Context, city, disease, origin string, items []models.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(items))
	for _, item := range items {
		event := ItemEvent{
			EventID:   uuid.NewString(),
			City:      city,
			Disease:   disease,
			Origin:    origin,
			EmittedAt: now,
			Item:      item,
		}
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal item event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(item.ID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "origin", Value: []byte(origin)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write item events: %w", err)
	}

	p.log.Debug("published item events",
		slog.String("city", city),
		slog.String("disease", disease),
		slog.Int("count", len(msgs)),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
