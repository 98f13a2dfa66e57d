package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const orderColumns = `id, ticket, customer_name, phone, address, note, locale, status, total, version, created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, position, product_id, name, unit_price, qty)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`

	// Позиции заказа неизменяемы: обновляются только поля самой шапки.
	updateOrderSQL = `UPDATE orders
		SET customer_name = $1, phone = $2, address = $3, note = $4,
		    status = $5, total = $6, version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9
		RETURNING version`

	selectItemsSQL = `SELECT order_id, id, product_id, name, unit_price, qty
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position, id`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create вставляет заказ и его позиции одной транзакцией. Занятый ID или тикет — ErrOrderExists.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.CreateWithEvents(ctx, order)
}

// CreateWithEvents вставляет заказ, позиции и outbox-события одной транзакцией:
// заказ без своих событий не фиксируется.
func (r *orderRepository) CreateWithEvents(ctx context.Context, order domain.Order, events ...domain.OutboxMessage) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertOrderSQL,
			order.ID, normalizeTicket(order.Ticket), order.CustomerName, order.Phone,
			order.Address, order.Note, string(order.Locale), string(order.Status),
			order.Total, order.Version, order.CreatedAt, order.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for position, item := range order.Items {
			_, err := tx.ExecContext(ctx, insertOrderItemSQL,
				item.ID, order.ID, position, item.ProductID, item.Name, item.UnitPrice, item.Qty)
			if err != nil {
				return fmt.Errorf("insert item %d of order %s: %w", position, order.ID, err)
			}
		}

		now := time.Now().UTC()
		for _, event := range events {
			if _, err := insertOutbox(ctx, tx, event, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getOne(ctx, "id", id)
}

// GetByTicket ищет заказ по тикету без учёта регистра и пробелов.
func (r *orderRepository) GetByTicket(ctx context.Context, ticket string) (domain.Order, error) {
	return r.getOne(ctx, "ticket", normalizeTicket(ticket))
}

// List возвращает заказы от новых к старым. Позиции всех заказов читаются одним запросом.
func (r *orderRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&query, " WHERE status = $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Save обновляет заказ при совпадении версии. Несовпадение — ErrOrderVersionConflict,
// отсутствие заказа — ErrOrderNotFound.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var version int64
	err := r.db.QueryRowContext(ctx, updateOrderSQL,
		order.CustomerName, order.Phone, order.Address, order.Note,
		string(order.Status), order.Total, order.UpdatedAt,
		order.ID, order.Version,
	).Scan(&version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	exists, err := r.exists(ctx, order.ID)
	switch {
	case err != nil:
		return err
	case !exists:
		return domain.ErrOrderNotFound
	default:
		return domain.ErrOrderVersionConflict
	}
}

// Delete удаляет заказ; позиции удаляются каскадно.
func (r *orderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// getOne читает заказ по уникальной колонке column.
func (r *orderRepository) getOne(ctx context.Context, column, value string) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order by %s: %w", column, err)
	}

	orders := []domain.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// attachItems заполняет Items у каждого заказа. У заказа без позиций остаётся пустой срез.
func (r *orderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = make([]domain.OrderItem, 0)
	}

	rows, err := r.db.QueryContext(ctx, selectItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Qty); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

func (r *orderRepository) exists(ctx context.Context, id string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&found); err != nil {
		return false, fmt.Errorf("check order %s exists: %w", id, err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		locale string
		status string
	)
	if err := row.Scan(
		&order.ID, &order.Ticket, &order.CustomerName, &order.Phone,
		&order.Address, &order.Note, &locale, &status,
		&order.Total, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Locale = domain.Locale(locale)
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func normalizeTicket(ticket string) string {
	return strings.ToUpper(strings.TrimSpace(ticket))
}

// inTx выполняет fn в транзакции: коммит при nil, иначе откат.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var (
	_ domain.OrderRepository  = (*orderRepository)(nil)
	_ domain.OrderEventWriter = (*orderRepository)(nil)
)
