package domain

import (
	"context"
	"time"
)

// KVStore — синхронное хранилище "ключ → сериализованное значение" для снимков корзины.
type KVStore interface {
	// Get возвращает значение или ErrKeyNotFound, если ключа нет.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set полностью перезаписывает значение ключа.
	Set(ctx context.Context, key string, value []byte) error
	// Delete удаляет ключ; отсутствие ключа не считается ошибкой.
	Delete(ctx context.Context, key string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists, если ID или тикет заняты.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// GetByTicket ищет заказ по тикету отслеживания.
	GetByTicket(ctx context.Context, ticket string) (Order, error)
	// List возвращает заказы от новых к старым с учётом фильтра.
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(ctx context.Context, id string) error
}

// ProductRepository хранит каталог товаров.
type ProductRepository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) error
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id string) error
}

// OrderEventWriter создаёт заказ вместе с его outbox-событиями атомарно.
// Реализуется хранилищем, где заказы и outbox живут в одной базе.
type OrderEventWriter interface {
	CreateWithEvents(ctx context.Context, order Order, events ...OutboxMessage) error
}

// TimelineRepository хранит историю статусов заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
	// Purge удаляет историю удалённого заказа. Отсутствие истории не ошибка.
	Purge(ctx context.Context, orderID string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
