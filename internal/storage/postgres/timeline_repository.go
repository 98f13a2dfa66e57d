package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const timelineColumns = "order_id, previous_status, status, reason, occurred"

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (`+timelineColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		event.OrderID, string(event.Previous), string(event.Status), event.Reason, event.Occurred.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append status event for order %s: %w", event.OrderID, err)
	}
	return nil
}

// List возвращает историю по времени; id BIGSERIAL разводит события с одинаковым временем.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+timelineColumns+` FROM timeline_events WHERE order_id = $1 ORDER BY occurred, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list status events for order %s: %w", orderID, err)
	}
	defer rows.Close()

	history := []domain.TimelineEvent{}
	for rows.Next() {
		var (
			event            domain.TimelineEvent
			previous, status string
		)
		if err := rows.Scan(&event.OrderID, &previous, &status, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		event.Previous = domain.OrderStatus(previous)
		event.Status = domain.OrderStatus(status)
		history = append(history, event)
	}
	return history, rows.Err()
}

// Purge удаляет историю заказа. Строки заказа из orders обычно уже снял ON DELETE CASCADE.
func (r *timelineRepository) Purge(ctx context.Context, orderID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM timeline_events WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("purge status events for order %s: %w", orderID, err)
	}
	return nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
