// Package cart хранит корзину покупателя и синхронно сохраняет её снимок после каждой мутации.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// DefaultKey — ключ снимка, если вызывающий не задал свой.
const DefaultKey = "bakery-cart"

const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update"
	opClear  = "clear"
)

// Recorder получает события корзины для метрик.
type Recorder interface {
	RecordCartMutation(op string)
	RecordCartRestoreFailure()
}

type noopRecorder struct{}

func (noopRecorder) RecordCartMutation(string) {}
func (noopRecorder) RecordCartRestoreFailure() {}

// Option настраивает Engine.
type Option func(*Engine)

// WithKey задаёт ключ снимка в хранилище.
func WithKey(key string) Option {
	return func(e *Engine) {
		if key != "" {
			e.key = key
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// Engine — корзина одного покупателя.
// Позиции уникальны по ID товара и идут в порядке добавления.
type Engine struct {
	mu       sync.Mutex
	store    domain.KVStore
	key      string
	items    []domain.CartItem
	logger   *log.Entry
	recorder Recorder
}

// Load восстанавливает корзину из хранилища.
// Отсутствующий или повреждённый снимок даёт пустую корзину: ошибка логируется и не возвращается.
func Load(ctx context.Context, store domain.KVStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		key:      DefaultKey,
		logger:   log.WithField("component", "cart"),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("cart_key", e.key)

	data, err := store.Get(ctx, e.key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			e.logger.WithError(err).Warn("failed to read cart snapshot, starting with empty cart")
			e.recorder.RecordCartRestoreFailure()
		}
		return e
	}

	items, dropped, err := decodeSnapshot(data)
	if err != nil {
		e.logger.WithError(err).Warn("cart snapshot is corrupted, starting with empty cart")
		e.recorder.RecordCartRestoreFailure()
		return e
	}
	if dropped > 0 {
		e.logger.WithField("dropped", dropped).Debug("normalized restored cart entries")
	}
	e.items = items
	return e
}

// Key возвращает ключ снимка.
func (e *Engine) Key() string {
	return e.key
}

// AddItem добавляет товар. Если товар уже есть, количество складывается, а не перезаписывается.
// quantity < 1 игнорируется.
func (e *Engine) AddItem(ctx context.Context, product domain.ProductRef, quantity int) error {
	if quantity < 1 || product.ID == "" {
		return nil
	}

	return e.mutate(ctx, opAdd, func(items []domain.CartItem) []domain.CartItem {
		if i := indexOf(items, product.ID); i >= 0 {
			items[i].Quantity += quantity
			return items
		}
		return append(items, domain.CartItem{Product: product, Quantity: quantity})
	})
}

// RemoveItem удаляет позицию; отсутствие товара — не ошибка.
func (e *Engine) RemoveItem(ctx context.Context, productID string) error {
	return e.mutate(ctx, opRemove, func(items []domain.CartItem) []domain.CartItem {
		return removeAt(items, indexOf(items, productID))
	})
}

// UpdateQuantity выставляет абсолютное количество. quantity <= 0 работает как RemoveItem,
// неизвестный товар не создаёт новую позицию.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveItem(ctx, productID)
	}

	return e.mutate(ctx, opUpdate, func(items []domain.CartItem) []domain.CartItem {
		if i := indexOf(items, productID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})
}

// Clear очищает корзину.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, opClear, func([]domain.CartItem) []domain.CartItem {
		return []domain.CartItem{}
	})
}

// Total возвращает Σ(цена × количество); для пустой корзины — 0.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, item := range e.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount возвращает Σ количества.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, item := range e.items {
		count += item.Quantity
	}
	return count
}

// Quantity возвращает количество конкретного товара (0, если его нет).
func (e *Engine) Quantity(productID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := indexOf(e.items, productID); i >= 0 {
		return e.items[i].Quantity
	}
	return 0
}

// Items возвращает копию позиций в порядке добавления.
func (e *Engine) Items() []domain.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	return cloneItems(e.items)
}

// Len возвращает число различных товаров.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.items)
}

// mutate применяет изменение к копии, синхронно сохраняет снимок и только потом публикует новое состояние.
func (e *Engine) mutate(ctx context.Context, op string, apply func([]domain.CartItem) []domain.CartItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := apply(cloneItems(e.items))

	data, err := encodeSnapshot(next)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCartPersist, err)
	}
	if err := e.store.Set(ctx, e.key, data); err != nil {
		e.logger.WithError(err).WithField("op", op).Error("failed to persist cart snapshot")
		return fmt.Errorf("%w: %w", domain.ErrCartPersist, err)
	}

	e.items = next
	e.recorder.RecordCartMutation(op)
	return nil
}

func indexOf(items []domain.CartItem, productID string) int {
	for i := range items {
		if items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func removeAt(items []domain.CartItem, i int) []domain.CartItem {
	if i < 0 {
		return items
	}
	return append(items[:i], items[i+1:]...)
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
