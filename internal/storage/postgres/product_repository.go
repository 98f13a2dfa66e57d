package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const productColumns = `id, category, name, description, price, image_url, in_stock, featured, created_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
// Локализованные поля хранятся в JSONB.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	name, description, err := marshalTexts(product)
	if err != nil {
		return err
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, product.Category, name, description, product.Price,
		product.ImageURL, product.InStock, product.Featured, product.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductExists
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	name, description, err := marshalTexts(product)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET category = $2,
		    name = $3,
		    description = $4,
		    price = $5,
		    image_url = $6,
		    in_stock = $7,
		    featured = $8
		WHERE id = $1
	`,
		product.ID, product.Category, name, description, product.Price,
		product.ImageURL, product.InStock, product.Featured,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product     domain.Product
		name        []byte
		description []byte
	)
	if err := row.Scan(
		&product.ID, &product.Category, &name, &description, &product.Price,
		&product.ImageURL, &product.InStock, &product.Featured, &product.CreatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(name, &product.Name); err != nil {
		return domain.Product{}, fmt.Errorf("decode product name: %w", err)
	}
	if len(description) > 0 {
		if err := json.Unmarshal(description, &product.Description); err != nil {
			return domain.Product{}, fmt.Errorf("decode product description: %w", err)
		}
	}
	return product, nil
}

func marshalTexts(product domain.Product) (string, string, error) {
	name, err := json.Marshal(product.Name)
	if err != nil {
		return "", "", fmt.Errorf("encode product name: %w", err)
	}
	description := product.Description
	if description == nil {
		description = domain.LocalizedText{}
	}
	descJSON, err := json.Marshal(description)
	if err != nil {
		return "", "", fmt.Errorf("encode product description: %w", err)
	}
	return string(name), string(descJSON), nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
