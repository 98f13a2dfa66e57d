package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// Service — каталог поверх ProductRepository.
type Service struct {
	repo   domain.ProductRepository
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(repo domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Seed заполняет репозиторий, только если он пуст. Возвращает число добавленных товаров.
func (s *Service) Seed(ctx context.Context, products []domain.Product) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products before seed: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	added := 0
	for _, p := range products {
		if err := s.repo.Create(ctx, p); err != nil {
			if errors.Is(err, domain.ErrProductExists) {
				continue
			}
			return added, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		added++
	}
	s.logger.WithField("products", added).Info("catalog seeded")
	return added, nil
}

// List возвращает товары витрины по запросу.
func (s *Service) List(ctx context.Context, q Query) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return Apply(products, q), nil
}

// Categories возвращает категории каталога.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return Categories(products), nil
}

// Get возвращает товар или ErrProductNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, strings.TrimSpace(id))
}

// Create добавляет товар из админки.
func (s *Service) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	product = normalize(product)
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = s.now()
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithField("product_id", product.ID).Info("product created")
	return product, nil
}

// Update перезаписывает товар; дата создания сохраняется.
func (s *Service) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	product = normalize(product)
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	current, err := s.repo.Get(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithField("product_id", product.ID).Info("product updated")
	return product, nil
}

// Delete удаляет товар. Корзины хранят товар по значению, поэтому уже добавленные позиции не ломаются.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

func normalize(p domain.Product) domain.Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	return p
}
