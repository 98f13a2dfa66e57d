package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// ErrNotEnvelope возвращается DecodeEnvelope для сообщений, записанных не OutboxTopicPublisher.
var ErrNotEnvelope = errors.New("kafka message is not an outbox envelope")

// OutboxEnvelope — формат сообщения, которое уходит в topic событий заказов.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// DecodeEnvelope разбирает значение Kafka-сообщения. Конверт без payload считается чужим.
func DecodeEnvelope(value []byte) (OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return OutboxEnvelope{}, fmt.Errorf("%w: %v", ErrNotEnvelope, err)
	}
	if len(envelope.Payload) == 0 {
		return OutboxEnvelope{}, fmt.Errorf("%w: payload is empty", ErrNotEnvelope)
	}
	return envelope, nil
}

// PublisherOption настраивает OutboxTopicPublisher.
type PublisherOption func(*OutboxTopicPublisher)

// WithSourceTopic помечает сообщения заголовком x-original-topic; используется для DLQ.
func WithSourceTopic(topic string) PublisherOption {
	return func(p *OutboxTopicPublisher) { p.sourceTopic = topic }
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer    *Producer
	topic       string
	sourceTopic string
	now         func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox. Пустой topic
// означает topic событий заказов.
func NewOutboxPublisher(producer *Producer, topic string, opts ...PublisherOption) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	p := &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic возвращает topic назначения.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

// Publish отправляет сообщение. Ключ партиционирования — ID заказа, без него ID события.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.PublishEvent(ctx, p.topic, key, p.envelope(event), p.headers(event))
}

func (p *OutboxTopicPublisher) envelope(event domain.OutboxMessage) OutboxEnvelope {
	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   p.now().UTC(),
	}
}

func (p *OutboxTopicPublisher) headers(event domain.OutboxMessage) map[string]string {
	headers := map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
		HeaderOutboxID:      event.ID,
	}
	if p.sourceTopic != "" {
		headers[HeaderOriginalTopic] = p.sourceTopic
	}
	return headers
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
