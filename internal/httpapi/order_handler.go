package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
	"github.com/vladislavdragonenkov/bakery/internal/service/order"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// UpdateStatusRequest — тело PATCH /api/admin/orders/{orderID}/status.
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
	Reason string             `json:"reason"`
}

// Checkout оформляет корзину текущей сессии.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Locale == "" {
		req.Locale = string(requestLocale(r))
	}

	engine, _ := h.loadCart(w, r)
	result, err := h.orders.Checkout(r.Context(), engine, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// TrackOrder ищет заказ по phone и ticket.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	tracking, err := h.orders.Track(r.Context(), params.Get("phone"), params.Get("ticket"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tracking)
}

// Dashboard отдаёт сводку выручки и статусов.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orders.Dashboard(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ListOrders отдаёт заказы от новых к старым; фильтры status и limit.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit := defaultListLimit
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	orders, err := h.orders.List(r.Context(), domain.ListFilter{
		Status: domain.OrderStatus(params.Get("status")),
		Limit:  limit,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder отдаёт заказ с историей статусов.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tracking, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tracking)
}

// DeleteOrder удаляет заказ.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateOrderStatus меняет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
