// Package events feeds the downstream message stream. Publishing is
// fire-and-forget after the message is durably stored; a broker outage
// never fails a send.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

func (p *Publisher) PublishMessageSent(ctx context.Context, m *models.Message) error {
	value, err := json.Marshal(map[string]interface{}{
		"event":   "message.sent",
		"message": m,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ConversationID.Hex()),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error { return p.writer.Close() }
