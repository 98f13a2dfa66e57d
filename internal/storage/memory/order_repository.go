package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// orderRepositoryInMemory держит заказы в map и индекс тикетов рядом.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	byTicket map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders:   make(map[string]domain.Order),
		byTicket: make(map[string]string),
	}
}

// Create сохраняет копию заказа. Занятый ID или тикет — ErrOrderExists.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	ticket := normalizeTicket(order.Ticket)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	if _, taken := r.byTicket[ticket]; taken && ticket != "" {
		return domain.ErrOrderExists
	}

	order.Ticket = ticket
	r.orders[order.ID] = cloneOrder(order)
	if ticket != "" {
		r.byTicket[ticket] = order.ID
	}
	return nil
}

func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

// GetByTicket ищет заказ по тикету без учёта регистра и пробелов.
func (r *orderRepositoryInMemory) GetByTicket(_ context.Context, ticket string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTicket[normalizeTicket(ticket)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.lookup(id)
}

// List возвращает заказы от новых к старым; при равном времени больший ID идёт первым.
func (r *orderRepositoryInMemory) List(_ context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status == "" || order.Status == filter.Status {
			result = append(result, cloneOrder(order))
		}
	}

	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Save обновляет шапку заказа при совпадении версии и увеличивает версию.
// Тикет, позиции и время создания после Create не меняются.
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	switch {
	case !ok:
		return domain.ErrOrderNotFound
	case current.Version != order.Version:
		return domain.ErrOrderVersionConflict
	}

	order.Ticket = current.Ticket
	order.Items = current.Items
	order.CreatedAt = current.CreatedAt
	order.Version = current.Version + 1
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// Delete удаляет заказ вместе с индексом тикета.
func (r *orderRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.byTicket, order.Ticket)
	delete(r.orders, id)
	return nil
}

// lookup вызывается под блокировкой.
func (r *orderRepositoryInMemory) lookup(id string) (domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func normalizeTicket(ticket string) string {
	return strings.ToUpper(strings.TrimSpace(ticket))
}

// cloneOrder копирует позиции; у заказа без позиций Items — пустой срез, как у postgres.
func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append(make([]domain.OrderItem, 0, len(src.Items)), src.Items...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
