// Package kafka публикует события заказов витрины в Kafka.
package kafka

// Topics витрины.
const (
	// TopicOrderEvents — события заказов для уведомлений и счетов.
	TopicOrderEvents = "bakery.order.events"
	// TopicDeadLetterQueue — события, которые outbox не смог доставить.
	TopicDeadLetterQueue = "bakery.dlq"
)

// Заголовки сообщений: потребитель маршрутизирует событие, не разбирая payload.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderOriginalTopic = "x-original-topic"
)
