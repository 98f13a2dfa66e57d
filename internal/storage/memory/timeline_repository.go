package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// timelineRepository хранит историю статусов заказов по order_id.
type timelineRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepository{byOrder: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет событие по времени; события с одинаковым временем остаются в порядке записи.
func (r *timelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.byOrder[event.OrderID]
	at := sort.Search(len(events), func(i int) bool {
		return events[i].Occurred.After(event.Occurred)
	})
	events = append(events, domain.TimelineEvent{})
	copy(events[at+1:], events[at:])
	events[at] = event
	r.byOrder[event.OrderID] = events
	return nil
}

func (r *timelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

func (r *timelineRepository) Purge(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byOrder, orderID)
	return nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
