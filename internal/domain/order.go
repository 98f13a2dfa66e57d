package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа пекарни.
type OrderStatus string

const (
	// OrderStatusPending — заказ отправлен через WhatsApp и ждёт подтверждения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — пекарня подтвердила заказ.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// KnownStatuses перечисляет статусы в порядке отображения на дашборде.
var KnownStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition проверяет допустимость перехода from -> to.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusConfirmed || to == OrderStatusCancelled
	case OrderStatusConfirmed:
		return to == OrderStatusDelivered || to == OrderStatusCancelled
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

// Subtotal возвращает стоимость позиции.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID           string          `json:"id"`
	Ticket       string          `json:"ticket"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address,omitempty"`
	Note         string          `json:"note,omitempty"`
	Locale       Locale          `json:"locale"`
	Status       OrderStatus     `json:"status"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.CustomerName) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if NormalizePhone(o.Phone) == "" {
		errs = append(errs, ErrPhoneRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.Subtotal())
	}
	if !calc.Equal(o.Total) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// NormalizePhone оставляет только цифры и приводит международный формат +880 к локальному 0XXXXXXXXXX.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "880") && len(digits) > 3 {
		digits = "0" + strings.TrimPrefix(digits[3:], "0")
	}
	return digits
}

// ListFilter ограничивает выборку заказов для админки.
type ListFilter struct {
	Status OrderStatus
	Limit  int
}
