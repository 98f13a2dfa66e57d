// Package httpapi — JSON API витрины и админки пекарни.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/cart"
	"github.com/vladislavdragonenkov/bakery/internal/catalog"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
	"github.com/vladislavdragonenkov/bakery/internal/service/order"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20
)

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCartOptions передаёт опции каждой загружаемой корзине (logger, recorder).
func WithCartOptions(opts ...cart.Option) Option {
	return func(h *Handler) {
		h.cartOpts = append(h.cartOpts, opts...)
	}
}

// WithRequestTimeout ограничивает время обработки запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// Handler обслуживает HTTP API.
type Handler struct {
	catalog  *catalog.Service
	orders   *order.Service
	carts    domain.KVStore
	cartOpts []cart.Option
	logger   *log.Entry
	timeout  time.Duration
}

// NewHandler создаёт обработчики API.
func NewHandler(catalogService *catalog.Service, orders *order.Service, carts domain.KVStore, opts ...Option) *Handler {
	h := &Handler{
		catalog: catalogService,
		orders:  orders,
		carts:   carts,
		logger:  log.WithField("component", "http-api"),
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter собирает chi-router со всеми маршрутами.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/categories", h.ListCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productID}", h.UpdateCartItem)
			r.Delete("/items/{productID}", h.RemoveCartItem)
		})

		r.Post("/checkout", h.Checkout)
		r.Get("/orders/track", h.TrackOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/dashboard", h.Dashboard)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Delete("/orders/{orderID}", h.DeleteOrder)
			r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{productID}", h.UpdateProduct)
			r.Delete("/products/{productID}", h.DeleteProduct)
		})
	})

	return r
}

func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("http request")
				return
			}
			entry.Debug("http request")
		})
	}
}
