package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

type kvEntry struct {
	value     []byte
	updatedAt time.Time
}

// KVStore — KV-хранилище снимков корзины в памяти процесса.
// Снимки не истекают сами: старые записи снимает DeleteExpired.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]kvEntry
	now    func() time.Time
}

// NewKVStore возвращает in-memory реализацию KVStore.
func NewKVStore() *KVStore {
	return &KVStore{
		values: make(map[string]kvEntry),
		now:    time.Now,
	}
}

// Get возвращает копию значения или ErrKeyNotFound.
func (s *KVStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.values[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

// Set сохраняет копию значения, чтобы вызывающий мог переиспользовать буфер.
func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = kvEntry{
		value:     append(make([]byte, 0, len(value)), value...),
		updatedAt: s.now(),
	}
	return nil
}

// Delete удаляет ключ.
func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// DeleteExpired удаляет не более limit записей, которые не менялись с момента before.
func (s *KVStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.values {
		if deleted >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if entry.updatedAt.After(before) {
			continue
		}
		delete(s.values, key)
		deleted++
	}
	return deleted, nil
}

// Len возвращает число хранимых снимков.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

var _ domain.KVStore = (*KVStore)(nil)
