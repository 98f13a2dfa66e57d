package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:           "order-1",
		Ticket:       "BK-00000001",
		CustomerName: "Rahim",
		Phone:        "+880 1712-345678",
		Status:       domain.OrderStatusPending,
		Total:        decimal.NewFromInt(900),
		Items: []domain.OrderItem{
			{
				ID:        "item-1",
				ProductID: "chocolate-cake",
				Name:      "Chocolate Cake",
				UnitPrice: decimal.NewFromInt(450),
				Qty:       2,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerName = "  "
			},
		},
		{
			name: "no phone digits",
			mut: func(o *domain.Order) {
				o.Phone = "call me"
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
				o.Total = decimal.Zero
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPrice = decimal.NewFromInt(-5)
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.Total = decimal.NewFromInt(999)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			order.Items = append([]domain.OrderItem(nil), order.Items...)
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusDelivered, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusDelivered, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusPending, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"01712345678":       "01712345678",
		"+880 1712-345678":  "01712345678",
		"8801712345678":     "01712345678",
		"+880 01712 345678": "01712345678",
		"(017) 12 34 56 78": "01712345678",
		"":                  "",
	}
	for in, want := range cases {
		if got := domain.NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalizedTextFallback(t *testing.T) {
	text := domain.LocalizedText{domain.LocaleEN: "Bread", domain.LocaleBN: "পাউরুটি"}
	if got := text.In(domain.LocaleBN); got != "পাউরুটি" {
		t.Fatalf("unexpected bn text: %s", got)
	}

	onlyEN := domain.LocalizedText{domain.LocaleEN: "Cookie"}
	if got := onlyEN.In(domain.LocaleBN); got != "Cookie" {
		t.Fatalf("expected english fallback, got %s", got)
	}

	if got := domain.ParseLocale(" BN "); got != domain.LocaleBN {
		t.Fatalf("expected bn locale, got %s", got)
	}
	if got := domain.ParseLocale("fr"); got != domain.LocaleEN {
		t.Fatalf("expected en fallback, got %s", got)
	}
}
