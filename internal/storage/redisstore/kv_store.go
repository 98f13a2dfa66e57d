// Package redisstore хранит снимки корзины в Redis: одно значение на ключ с необязательным TTL.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// KVStore — реализация domain.KVStore поверх go-redis.
type KVStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewKVStore возвращает хранилище. ttl == 0 означает хранение без срока.
func NewKVStore(client redis.UniversalClient, ttl time.Duration) *KVStore {
	if ttl < 0 {
		ttl = 0
	}
	return &KVStore{client: client, ttl: ttl}
}

// Open подключается к Redis по адресу и проверяет соединение.
func Open(ctx context.Context, addr string, ttl time.Duration) (*KVStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewKVStore(client, ttl), nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set перезаписывает значение и продлевает TTL: активная корзина не истекает.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis для health-check.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *KVStore) Close() error {
	return s.client.Close()
}

var _ domain.KVStore = (*KVStore)(nil)
