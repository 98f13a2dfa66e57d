// Package catalog загружает каталог пекарни, фильтрует и сортирует товары для витрины.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type fileDTO struct {
	Products []productDTO `yaml:"products"`
}

// productDTO держит цену строкой, чтобы decimal разобрал её без потерь.
type productDTO struct {
	ID          string            `yaml:"id"`
	Category    string            `yaml:"category"`
	Name        map[string]string `yaml:"name"`
	Description map[string]string `yaml:"description"`
	Price       string            `yaml:"price"`
	ImageURL    string            `yaml:"image_url"`
	InStock     *bool             `yaml:"in_stock"`
	Featured    bool              `yaml:"featured"`
	CreatedAt   time.Time         `yaml:"created_at"`
}

// Default возвращает встроенный каталог.
func Default() ([]domain.Product, error) {
	return Parse(defaultCatalog)
}

// LoadFile читает каталог с диска.
func LoadFile(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	products, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return products, nil
}

// Parse разбирает YAML-каталог и проверяет товары: уникальные непустые ID,
// английское название, неотрицательная цена.
func Parse(data []byte) ([]domain.Product, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: payload is empty")
	}

	var file fileDTO
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Products))
	products := make([]domain.Product, 0, len(file.Products))
	var errs []error
	for i, dto := range file.Products {
		product, err := dto.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("product #%d (%s): %w", i+1, dto.ID, err))
			continue
		}
		if _, dup := seen[product.ID]; dup {
			errs = append(errs, fmt.Errorf("product #%d: duplicate id %q", i+1, product.ID))
			continue
		}
		seen[product.ID] = struct{}{}
		products = append(products, product)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return products, nil
}

func (dto productDTO) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(dto.Price))
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: price %q: %v", domain.ErrProductInvalid, dto.Price, err)
	}

	product := domain.Product{
		ID:          strings.TrimSpace(dto.ID),
		Category:    strings.ToLower(strings.TrimSpace(dto.Category)),
		Name:        toLocalized(dto.Name),
		Description: toLocalized(dto.Description),
		Price:       price,
		ImageURL:    strings.TrimSpace(dto.ImageURL),
		InStock:     dto.InStock == nil || *dto.InStock,
		Featured:    dto.Featured,
		CreatedAt:   dto.CreatedAt.UTC(),
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	return product, nil
}

func toLocalized(raw map[string]string) domain.LocalizedText {
	if len(raw) == 0 {
		return nil
	}
	out := make(domain.LocalizedText, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[domain.Locale(strings.ToLower(strings.TrimSpace(k)))] = v
	}
	return out
}
