package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateTypeOrder — тип агрегата для outbox-сообщений о заказах.
const AggregateTypeOrder = "order"

const (
	// EventOrderSubmitted — покупатель оформил заказ через WhatsApp.
	EventOrderSubmitted = "order.submitted"
	// EventOrderStatusChanged — админка сменила статус заказа.
	EventOrderStatusChanged = "order.status_changed"
	// EventOrderDeleted — заказ удалён из админки.
	EventOrderDeleted = "order.deleted"
)

// Статусы строки transactional outbox.
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OrderEvent — полезная нагрузка outbox-сообщения о заказе.
type OrderEvent struct {
	OrderID        string          `json:"order_id"`
	Ticket         string          `json:"ticket"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Reason         string          `json:"reason,omitempty"`
	Occurred       time.Time       `json:"occurred"`
}

// NewOrderOutboxMessage собирает outbox-сообщение для события заказа.
func NewOrderOutboxMessage(eventType string, event OrderEvent) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   event.OrderID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
