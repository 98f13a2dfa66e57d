// Package file хранит снимки корзины в файлах: один ключ — один файл в каталоге.
package file

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const fileExt = ".json"

// KVStore — файловая реализация domain.KVStore.
// Запись атомарна: данные пишутся во временный файл, синхронизируются и переименовываются.
type KVStore struct {
	dir string
	mu  sync.Mutex
}

// NewKVStore создаёт каталог dir (если нужно) и возвращает хранилище.
func NewKVStore(dir string) (*KVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file kv store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file kv store: create dir: %w", err)
	}
	return &KVStore{dir: dir}, nil
}

// Dir возвращает каталог хранилища.
func (s *KVStore) Dir() string {
	return s.dir
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("file kv store: read %q: %w", key, err)
	}
	return data, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file kv store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file kv store: write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file kv store: sync %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file kv store: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("file kv store: rename %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file kv store: delete %q: %w", key, err)
	}
	return nil
}

// DeleteExpired удаляет не более limit снимков, которые не менялись с момента before.
// Возвращает число удалённых файлов.
func (s *KVStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("file kv store: read dir: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if deleted >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("file kv store: stat %q: %w", name, err)
		}
		if info.ModTime().After(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("file kv store: remove %q: %w", name, err)
		}
		deleted++
	}
	return deleted, nil
}

// path кодирует ключ, чтобы ':' и '/' из ключа не попадали в путь.
func (s *KVStore) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileExt)
}

var _ domain.KVStore = (*KVStore)(nil)
