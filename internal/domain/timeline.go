package domain

import "time"

// TimelineEvent фиксирует смену статуса заказа для экрана отслеживания.
// Previous пуст для первого события заказа.
type TimelineEvent struct {
	OrderID  string      `json:"order_id"`
	Previous OrderStatus `json:"previous_status,omitempty"`
	Status   OrderStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Occurred time.Time   `json:"occurred"`
}
