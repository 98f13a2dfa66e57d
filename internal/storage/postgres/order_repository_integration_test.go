package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := newMigratedStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "BK-00000001", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "BK-00000002", now.Add(-time.Minute))
	order2.Status = domain.OrderStatusConfirmed

	if err := repo.Create(ctx, order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(ctx, order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.Phone != order1.Phone || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if !got.Total.Equal(order1.Total) {
		t.Fatalf("unexpected total: got=%s want=%s", got.Total, order1.Total)
	}
	if len(got.Items) != len(order1.Items) || got.Items[0].ProductID != "sourdough" || got.Items[1].ProductID != "croissant" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	byTicket, err := repo.GetByTicket(ctx, "bk-00000001")
	if err != nil {
		t.Fatalf("get by ticket: %v", err)
	}
	if byTicket.ID != order1.ID {
		t.Fatalf("unexpected order by ticket: %s", byTicket.ID)
	}

	listed, err := repo.List(ctx, domain.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	pending, err := repo.List(ctx, domain.ListFilter{Status: domain.OrderStatusPending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != order1.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	got.Status = domain.OrderStatusConfirmed
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}

	if err := repo.Delete(ctx, order1.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := repo.Get(ctx, order1.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := newMigratedStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", "BK-0000000E", now)

	if _, err := repo.Get(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Save(ctx, base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(ctx, base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(ctx, base); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists on duplicate create, got %v", err)
	}

	sameTicket := sampleOrder("order-other", "BK-0000000E", now)
	if err := repo.Create(ctx, sameTicket); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists on duplicate ticket, got %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusConfirmed
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(ctx, stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}

	if err := repo.Delete(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on delete missing, got %v", err)
	}
}

func TestOrderRepository_PostgresListAttachesItemsPerOrder(t *testing.T) {
	store := newMigratedStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	withItems := sampleOrder("order-items", "BK-000000A1", now.Add(-time.Minute))
	bare := sampleOrder("order-bare", "BK-000000A2", now)
	bare.Items = nil

	for _, order := range []domain.Order{withItems, bare} {
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create %s: %v", order.ID, err)
		}
	}

	listed, err := repo.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != bare.ID || listed[1].ID != withItems.ID {
		t.Fatalf("unexpected order sequence: %+v", listed)
	}
	if listed[0].Items == nil || len(listed[0].Items) != 0 {
		t.Fatalf("order without items must get an empty slice, got %#v", listed[0].Items)
	}
	if len(listed[1].Items) != 2 || !listed[1].Items[0].UnitPrice.Equal(decimal.RequireFromString("150.50")) {
		t.Fatalf("unexpected items of %s: %+v", withItems.ID, listed[1].Items)
	}
}

func TestOrderRepository_PostgresCreateRollsBackOnItemFailure(t *testing.T) {
	store := newMigratedStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	order := sampleOrder("order-broken", "BK-000000B1", time.Now().UTC())
	order.Items[1].Qty = 0

	if err := repo.Create(ctx, order); err == nil {
		t.Fatal("item violating qty check must fail the create")
	}
	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("failed create must leave no order row, got %v", err)
	}
	if _, err := repo.GetByTicket(ctx, order.Ticket); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("ticket must stay free after rollback, got %v", err)
	}
}

func TestOrderRepository_PostgresCreateWithEventsIsAtomic(t *testing.T) {
	store := newMigratedStore(t)
	repo := NewOrderRepository(store).(domain.OrderEventWriter)
	outbox := NewOutboxRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-evt", "BK-000000C1", now)
	event := domain.OutboxMessage{AggregateID: order.ID, EventType: domain.EventOrderSubmitted, Payload: []byte(`{"order_id":"order-evt"}`)}

	if err := repo.CreateWithEvents(ctx, order, event); err != nil {
		t.Fatalf("create with events: %v", err)
	}
	pending, err := outbox.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].AggregateID != order.ID || pending[0].AggregateType != domain.AggregateTypeOrder {
		t.Fatalf("expected the submitted event in outbox, got %+v", pending)
	}

	clash := sampleOrder("order-evt-2", order.Ticket, now)
	event.AggregateID = clash.ID
	if err := repo.CreateWithEvents(ctx, clash, event); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}
	stats, err := outbox.Stats(ctx)
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("rejected order must not leave its event behind, pending %d", stats.PendingCount)
	}

	orphan := sampleOrder("order-evt-3", "BK-000000C3", now)
	duplicate := domain.OutboxMessage{ID: pending[0].ID, AggregateID: orphan.ID, EventType: domain.EventOrderSubmitted}
	if err := repo.CreateWithEvents(ctx, orphan, duplicate); err == nil {
		t.Fatal("duplicate event id must fail the create")
	}
	if _, err := NewOrderRepository(store).Get(ctx, orphan.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order must be rolled back with its failed event, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(id, ticket string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{ID: id + "-item-1", ProductID: "sourdough", Name: "Sourdough", Qty: 2, UnitPrice: decimal.RequireFromString("150.50")},
		{ID: id + "-item-2", ProductID: "croissant", Name: "Croissant", Qty: 1, UnitPrice: decimal.NewFromInt(80)},
	}

	return domain.Order{
		ID:           id,
		Ticket:       ticket,
		CustomerName: "Nusrat",
		Phone:        "01812345678",
		Address:      "Dhanmondi 27",
		Locale:       domain.LocaleBN,
		Status:       domain.OrderStatusPending,
		Total:        decimal.RequireFromString("381"),
		Items:        items,
		Version:      0,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}
