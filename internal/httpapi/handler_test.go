package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bakery/internal/analytics"
	"github.com/vladislavdragonenkov/bakery/internal/catalog"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
	"github.com/vladislavdragonenkov/bakery/internal/service/order"
	"github.com/vladislavdragonenkov/bakery/internal/storage/memory"
)

type testAPI struct {
	router http.Handler
	carts  domain.KVStore
	orders domain.OrderRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	entry := logger.WithField("component", "http-test")

	products := memory.NewProductRepository()
	catalogService := catalog.NewService(products, entry)
	_, err := catalogService.Seed(ctx, []domain.Product{
		{
			ID:       "sourdough-loaf",
			Category: "bread",
			Name:     domain.LocalizedText{domain.LocaleEN: "Sourdough Loaf", domain.LocaleBN: "সাওয়ারডো রুটি"},
			Price:    decimal.NewFromInt(100),
			InStock:  true,
			Featured: true,
		},
		{
			ID:       "butter-croissant",
			Category: "pastry",
			Name:     domain.LocalizedText{domain.LocaleEN: "Butter Croissant"},
			Price:    decimal.NewFromInt(50),
			InStock:  true,
		},
		{
			ID:       "red-velvet-cupcake",
			Category: "cake",
			Name:     domain.LocalizedText{domain.LocaleEN: "Red Velvet Cupcake"},
			Price:    decimal.NewFromInt(80),
			InStock:  false,
		},
	})
	require.NoError(t, err)

	api := &testAPI{
		carts:  memory.NewKVStore(),
		orders: memory.NewOrderRepository(),
	}
	orders := order.NewService(api.orders, memory.NewTimelineRepository(),
		order.WithLogger(entry),
		order.WithWhatsAppNumber("8801700000000"),
	)
	api.router = NewRouter(NewHandler(catalogService, orders, api.carts, WithLogger(entry)))
	return api
}

func (api *testAPI) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const session = "session-0001"

func TestListProducts(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/products?lang=bn", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]ProductView](t, rec)
	require.Len(t, products, 3)
	assert.Equal(t, "sourdough-loaf", products[0].ID)
	assert.Equal(t, "সাওয়ারডো রুটি", products[0].Name)

	rec = api.do(t, http.MethodGet, "/api/products?in_stock=true&sort=price_asc&max_price=100", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products = decode[[]ProductView](t, rec)
	require.Len(t, products, 2)
	assert.Equal(t, "butter-croissant", products[0].ID)

	rec = api.do(t, http.MethodGet, "/api/products?min_price=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, rec).Code)
}

func TestGetProductAndCategories(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/products/butter-croissant", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Butter Croissant", decode[ProductView](t, rec).Name)

	rec = api.do(t, http.MethodGet, "/api/products/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bread", "pastry", "cake"}, decode[[]string](t, rec))
}

func TestCartFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "sourdough-loaf", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session, rec.Header().Get(SessionHeader))

	rec = api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "butter-croissant"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[CartView](t, rec)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(250)), "total = %s", view.Total)
	assert.Equal(t, 3, view.ItemCount)

	rec = api.do(t, http.MethodPut, "/api/cart/items/sourdough-loaf", session, map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[CartView](t, rec)
	assert.Equal(t, 5, view.Items[0].Quantity)

	rec = api.do(t, http.MethodDelete, "/api/cart/items/butter-croissant", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/cart/items/butter-croissant", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/cart", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[CartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(500)))

	stored, err := api.carts.Get(context.Background(), cartKeyPrefix+session)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "sourdough-loaf")

	rec = api.do(t, http.MethodDelete, "/api/cart", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[CartView](t, rec).Items)
}

func TestCart_SessionIsGeneratedWhenMissing(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	generated := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, decode[CartView](t, rec).Session)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, generated, cookies[0].Value)

	bad := api.do(t, http.MethodGet, "/api/cart", "bad session!", nil)
	assert.NotEqual(t, "bad session!", bad.Header().Get(SessionHeader))
}

func TestCart_Rejections(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{name: "missing product", body: map[string]any{"quantity": 1}, status: http.StatusBadRequest, code: CodeInvalidRequest},
		{name: "unknown product", body: map[string]any{"product_id": "nope"}, status: http.StatusNotFound, code: CodeNotFound},
		{name: "out of stock", body: map[string]any{"product_id": "red-velvet-cupcake"}, status: http.StatusUnprocessableEntity, code: CodeProductUnavailable},
		{name: "too many", body: map[string]any{"product_id": "sourdough-loaf", "quantity": 100}, status: http.StatusBadRequest, code: CodeInvalidRequest},
		{name: "unknown field", body: map[string]any{"product_id": "sourdough-loaf", "qty": 1}, status: http.StatusBadRequest, code: CodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/cart/items", session, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCart_QuantityLimitCoversExistingItems(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "sourdough-loaf", "quantity": 99})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "sourdough-loaf", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/cart", session, nil)
	view := decode[CartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 99, view.Items[0].Quantity, "rejected add must leave the cart untouched")

	rec = api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "butter-croissant", "quantity": 99})
	require.Equal(t, http.StatusOK, rec.Code, "limit applies per product")
}

func TestCheckoutAndTrack(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/checkout", session, map[string]any{"customer_name": "Rahim", "phone": "01712345678"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeCartEmpty, decode[ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "sourdough-loaf", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/checkout", session, map[string]any{"customer_name": "", "phone": "01712345678"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/checkout", session, map[string]any{
		"customer_name": "Rahim",
		"phone":         "+880 1712-345678",
		"address":       "Dhanmondi",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[order.CheckoutResult](t, rec)
	assert.Equal(t, domain.OrderStatusPending, result.Order.Status)
	assert.Contains(t, result.WhatsAppURL, "https://wa.me/8801700000000?text=")

	rec = api.do(t, http.MethodGet, "/api/cart", session, nil)
	assert.Empty(t, decode[CartView](t, rec).Items)

	rec = api.do(t, http.MethodGet, "/api/orders/track?phone=01712345678&ticket="+result.Order.Ticket, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tracking := decode[order.Tracking](t, rec)
	assert.Equal(t, result.Order.ID, tracking.Order.ID)
	assert.Len(t, tracking.History, 1)

	rec = api.do(t, http.MethodGet, "/api/orders/track?phone=01999999999&ticket="+result.Order.Ticket, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOrders(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{"product_id": "butter-croissant", "quantity": 4})
	rec := api.do(t, http.MethodPost, "/api/checkout", session, map[string]any{"customer_name": "Karim", "phone": "01812345678"})
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[order.CheckoutResult](t, rec).Order
	statusPath := fmt.Sprintf("/api/admin/orders/%s/status", placed.ID)

	rec = api.do(t, http.MethodGet, "/api/admin/orders?status=pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Order](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/api/admin/orders?limit=zero", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/admin/orders?status=baking", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, statusPath, "", map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidTransition, decode[ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodPatch, statusPath, "", map[string]any{"status": "confirmed", "reason": "paid on call"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusConfirmed, decode[domain.Order](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/api/admin/orders/"+placed.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[order.Tracking](t, rec).History, 2)

	rec = api.do(t, http.MethodGet, "/api/admin/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[analytics.Summary](t, rec)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(200)), "total = %s", summary.TotalRevenue)
	assert.Len(t, summary.DailySeries, analytics.SeriesDays)
	assert.Equal(t, 1, summary.CountFor(domain.OrderStatusConfirmed))

	rec = api.do(t, http.MethodDelete, "/api/admin/orders/"+placed.ID, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/admin/orders/"+placed.ID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminProducts(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/admin/products", "", map[string]any{
		"id":       "cinnamon-roll",
		"category": "Pastry",
		"name":     map[string]string{"en": "Cinnamon Roll", "bn": "দারুচিনি রোল"},
		"price":    "60",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Product](t, rec)
	assert.Equal(t, "pastry", created.Category)
	assert.True(t, created.InStock)

	rec = api.do(t, http.MethodPost, "/api/admin/products", "", map[string]any{
		"id":    "cinnamon-roll",
		"name":  map[string]string{"en": "Again"},
		"price": "60",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/admin/products", "", map[string]any{"id": "nameless", "price": "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/admin/products/cinnamon-roll", "", map[string]any{
		"name":     map[string]string{"en": "Cinnamon Roll"},
		"price":    "65.50",
		"in_stock": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Product](t, rec)
	assert.False(t, updated.InStock)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("65.50")))
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	rec = api.do(t, http.MethodPut, "/api/admin/products/cinnamon-roll", "", map[string]any{"id": "other", "name": map[string]string{"en": "x"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/admin/products/cinnamon-roll", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/products/cinnamon-roll", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrOrderNotFound, http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("save: %w", domain.ErrOrderVersionConflict), http.StatusConflict, CodeVersionConflict},
		{fmt.Errorf("%w: disk full", domain.ErrCartPersist), http.StatusServiceUnavailable, CodeCartUnavailable},
		{domain.ErrProductExists, http.StatusConflict, CodeAlreadyExists},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRequestLocale(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Accept-Language", "bn-BD,bn;q=0.9,en;q=0.8")
	assert.Equal(t, domain.LocaleBN, requestLocale(req))

	req = httptest.NewRequest(http.MethodGet, "/api/products?lang=en", nil)
	req.Header.Set("Accept-Language", "bn")
	assert.Equal(t, domain.LocaleEN, requestLocale(req))
}

type failingKV struct {
	domain.KVStore
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("redis: connection refused")
}

func TestCart_PersistFailureIsServiceUnavailable(t *testing.T) {
	handler := NewRouter(NewHandler(
		catalog.NewService(seededProducts(t), nil),
		order.NewService(memory.NewOrderRepository(), nil),
		failingKV{memory.NewKVStore()},
		WithRequestTimeout(time.Second),
	))

	raw, _ := json.Marshal(map[string]any{"product_id": "sourdough-loaf"})
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, CodeCartUnavailable, decode[ErrorResponse](t, rec).Code)
}

func seededProducts(t *testing.T) domain.ProductRepository {
	t.Helper()
	repo := memory.NewProductRepository()
	require.NoError(t, repo.Create(context.Background(), domain.Product{
		ID:      "sourdough-loaf",
		Name:    domain.LocalizedText{domain.LocaleEN: "Sourdough Loaf"},
		Price:   decimal.NewFromInt(100),
		InStock: true,
	}))
	return repo
}
