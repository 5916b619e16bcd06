package service

import (
	"context"
	"encoding/json"
	"time"

	"course_studio_backend/pkg/logger"
	"course_studio_backend/pkg/messaging"

	"go.uber.org/zap"
)

const EventCertificateIssued = "certificate.issued"

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type eventEnvelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// QueuePublisher 通过 RabbitMQ 投递领域事件
type QueuePublisher struct {
	Client *messaging.RabbitMQClient
	Queue  string
}

func NewQueuePublisher(client *messaging.RabbitMQClient, queue string) *QueuePublisher {
	return &QueuePublisher{Client: client, Queue: queue}
}

func (p *QueuePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(eventEnvelope{Type: eventType, OccurredAt: time.Now().UTC(), Data: payload})
	if err != nil {
		return err
	}
	return p.Client.Publish(ctx, p.Queue, body)
}

// NoopPublisher 未启用消息队列时使用
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	logger.Log.Debug("Event dropped, messaging disabled", zap.String("event", eventType))
	return nil
}
