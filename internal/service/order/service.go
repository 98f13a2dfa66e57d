// Package order реализует оформление, отслеживание и админское сопровождение заказов пекарни.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/analytics"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const (
	ticketPrefix      = "BK-"
	maxTicketAttempts = 5
)

// Cart — часть корзины, которая нужна для оформления заказа.
type Cart interface {
	Items() []domain.CartItem
	Total() decimal.Decimal
	Clear(ctx context.Context) error
}

// Recorder получает события заказов для метрик.
type Recorder interface {
	RecordOrderSubmitted(total decimal.Decimal)
	RecordStatusChange(status domain.OrderStatus)
	RecordDashboard(summary analytics.Summary, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordOrderSubmitted(decimal.Decimal)             {}
func (noopRecorder) RecordStatusChange(domain.OrderStatus)            {}
func (noopRecorder) RecordDashboard(analytics.Summary, time.Duration) {}

// CheckoutRequest — данные покупателя с формы оформления.
type CheckoutRequest struct {
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Note         string `json:"note"`
	Locale       string `json:"locale"`
}

// CheckoutResult — созданный заказ и готовая ссылка для отправки в WhatsApp.
type CheckoutResult struct {
	Order           domain.Order `json:"order"`
	WhatsAppMessage string       `json:"whatsapp_message"`
	WhatsAppURL     string       `json:"whatsapp_url"`
}

// Tracking — заказ вместе с историей статусов.
type Tracking struct {
	Order   domain.Order           `json:"order"`
	History []domain.TimelineEvent `json:"history"`
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithLocation задаёт часовой пояс пекарни для дашборда.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithWhatsAppNumber задаёт номер пекарни для ссылок wa.me.
func WithWhatsAppNumber(number string) Option {
	return func(s *Service) {
		s.whatsAppNumber = strings.TrimSpace(number)
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOutbox включает запись событий в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithTicketGenerator подменяет генератор тикетов.
func WithTicketGenerator(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.nextTicket = next
		}
	}
}

// Service управляет заказами поверх репозиториев.
type Service struct {
	repo           domain.OrderRepository
	timeline       domain.TimelineRepository
	outbox         domain.OutboxRepository
	logger         *log.Entry
	recorder       Recorder
	location       *time.Location
	whatsAppNumber string
	now            func() time.Time
	nextTicket     func() string
}

// NewService создаёт сервис заказов. timeline может быть nil.
func NewService(repo domain.OrderRepository, timeline domain.TimelineRepository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		timeline:   timeline,
		logger:     log.WithField("component", "order-service"),
		recorder:   noopRecorder{},
		location:   time.UTC,
		now:        time.Now,
		nextTicket: NewTicket,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTicket возвращает код отслеживания вида BK-1A2B3C4D.
func NewTicket() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ticketPrefix + strings.ToUpper(raw[:8])
}

// Checkout превращает корзину в заказ со статусом pending и очищает корзину.
func (s *Service) Checkout(ctx context.Context, cart Cart, req CheckoutRequest) (CheckoutResult, error) {
	items := cart.Items()
	if len(items) == 0 {
		return CheckoutResult{}, domain.ErrCartEmpty
	}

	locale := domain.ParseLocale(req.Locale)
	now := s.now().UTC()
	order := domain.Order{
		ID:           uuid.NewString(),
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        domain.NormalizePhone(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Note:         strings.TrimSpace(req.Note),
		Locale:       locale,
		Status:       domain.OrderStatusPending,
		Items:        make([]domain.OrderItem, 0, len(items)),
		Total:        cart.Total(),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, item := range items {
		name := item.Product.Name.In(locale)
		if name == "" {
			name = item.Product.ID
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			ProductID: item.Product.ID,
			Name:      name,
			UnitPrice: item.Product.UnitPrice,
			Qty:       item.Quantity,
		})
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return CheckoutResult{}, fmt.Errorf("%w: %w", domain.ErrOrderInvalid, errors.Join(errs...))
	}

	if err := s.createWithTicket(ctx, &order); err != nil {
		return CheckoutResult{}, err
	}

	s.appendTimeline(ctx, order.ID, "", order.Status, "submitted via whatsapp", now)
	s.recorder.RecordOrderSubmitted(order.Total)

	if err := cart.Clear(ctx); err != nil {
		// Заказ уже создан, поэтому ошибка очистки не отменяет оформление.
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to clear cart after checkout")
	}

	message := BuildWhatsAppMessage(order)
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"ticket":   order.Ticket,
		"total":    order.Total.String(),
	}).Info("order submitted")

	return CheckoutResult{
		Order:           order,
		WhatsAppMessage: message,
		WhatsAppURL:     BuildWhatsAppURL(s.whatsAppNumber, message),
	}, nil
}

// Track ищет заказ по тикету и телефону. Несовпадение телефона неотличимо от отсутствия заказа.
func (s *Service) Track(ctx context.Context, phone, ticket string) (Tracking, error) {
	normalized := domain.NormalizePhone(phone)
	ticket = strings.ToUpper(strings.TrimSpace(ticket))
	if normalized == "" || ticket == "" {
		return Tracking{}, domain.ErrOrderNotFound
	}

	order, err := s.repo.GetByTicket(ctx, ticket)
	if err != nil {
		return Tracking{}, err
	}
	if order.Phone != normalized {
		return Tracking{}, domain.ErrOrderNotFound
	}

	return Tracking{Order: order, History: s.history(ctx, order.ID)}, nil
}

// Get возвращает заказ по ID.
func (s *Service) Get(ctx context.Context, id string) (Tracking, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tracking{}, err
	}
	return Tracking{Order: order, History: s.history(ctx, order.ID)}, nil
}

// List возвращает заказы для админки.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrStatusUnknown, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// UpdateStatus переводит заказ в новый статус. Повторная установка текущего статуса ничего не меняет.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrStatusUnknown, status)
	}

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == status {
		return order, nil
	}
	if !domain.CanTransition(order.Status, status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrStatusTransition, order.Status, status)
	}

	previous := order.Status
	now := s.now().UTC()
	order.Status = status
	order.UpdatedAt = now
	if err := s.repo.Save(ctx, order); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	s.appendTimeline(ctx, order.ID, previous, status, reason, now)
	s.enqueue(ctx, domain.EventOrderStatusChanged, domain.OrderEvent{
		OrderID:        order.ID,
		Ticket:         order.Ticket,
		Status:         status,
		PreviousStatus: previous,
		Total:          order.Total,
		Reason:         reason,
		Occurred:       now,
	})
	s.recorder.RecordStatusChange(status)

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       status,
	}).Info("order status changed")
	return order, nil
}

// Delete удаляет заказ.
func (s *Service) Delete(ctx context.Context, id string) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.timeline != nil {
		if err := s.timeline.Purge(ctx, id); err != nil {
			s.logger.WithError(err).WithField("order_id", id).Warn("failed to purge status timeline")
		}
	}
	s.enqueue(ctx, domain.EventOrderDeleted, domain.OrderEvent{
		OrderID:  order.ID,
		Ticket:   order.Ticket,
		Status:   order.Status,
		Total:    order.Total,
		Occurred: s.now().UTC(),
	})
	return nil
}

// Dashboard сворачивает все заказы в сводку в часовом поясе пекарни.
func (s *Service) Dashboard(ctx context.Context) (analytics.Summary, error) {
	started := time.Now()
	orders, err := s.repo.List(ctx, domain.ListFilter{})
	if err != nil {
		return analytics.Summary{}, fmt.Errorf("list orders for dashboard: %w", err)
	}

	summary := analytics.Aggregate(analytics.RecordsFromOrders(orders), s.now().In(s.location))
	s.recorder.RecordDashboard(summary, time.Since(started))
	return summary, nil
}

// createWithTicket подбирает свободный тикет и сохраняет заказ вместе с событием order.submitted.
func (s *Service) createWithTicket(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 0; attempt < maxTicketAttempts; attempt++ {
		order.Ticket = s.nextTicket()
		err = s.createSubmitted(ctx, *order)
		if !errors.Is(err, domain.ErrOrderExists) {
			return err
		}
		s.logger.WithField("ticket", order.Ticket).Debug("ticket collision, retrying")
	}
	return fmt.Errorf("allocate ticket after %d attempts: %w", maxTicketAttempts, err)
}

// createSubmitted пишет заказ и событие в одной транзакции, если хранилище это умеет.
// Иначе событие ставится в outbox отдельной записью после заказа.
func (s *Service) createSubmitted(ctx context.Context, order domain.Order) error {
	event := domain.OrderEvent{
		OrderID:  order.ID,
		Ticket:   order.Ticket,
		Status:   order.Status,
		Total:    order.Total,
		Occurred: order.CreatedAt,
	}

	if writer, ok := s.repo.(domain.OrderEventWriter); ok && s.outbox != nil {
		msg, err := domain.NewOrderOutboxMessage(domain.EventOrderSubmitted, event)
		if err != nil {
			return fmt.Errorf("build %s event: %w", domain.EventOrderSubmitted, err)
		}
		return writer.CreateWithEvents(ctx, order, msg)
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return err
	}
	s.enqueue(ctx, domain.EventOrderSubmitted, event)
	return nil
}

func (s *Service) history(ctx context.Context, orderID string) []domain.TimelineEvent {
	if s.timeline == nil {
		return []domain.TimelineEvent{}
	}
	events, err := s.timeline.List(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to list timeline events")
		return []domain.TimelineEvent{}
	}
	return events
}

func (s *Service) appendTimeline(ctx context.Context, orderID string, previous, status domain.OrderStatus, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Previous: previous,
		Status:   status,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append status timeline")
	}
}

func (s *Service) enqueue(ctx context.Context, eventType string, event domain.OrderEvent) {
	if s.outbox == nil {
		return
	}
	msg, err := domain.NewOrderOutboxMessage(eventType, event)
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, msg)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": eventType,
		}).Warn("failed to enqueue outbox event")
	}
}
