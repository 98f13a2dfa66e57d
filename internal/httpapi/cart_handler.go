package httpapi

import (
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/cart"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const (
	// SessionHeader передаёт идентификатор корзины от клиента.
	SessionHeader = "X-Cart-Session"
	// SessionCookie — cookie с идентификатором корзины для браузера.
	SessionCookie = "cart_session"

	cartKeyPrefix   = "cart:"
	sessionLifetime = 30 * 24 * time.Hour
	maxQuantity     = 99
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// CartItemView — позиция корзины в ответе.
type CartItemView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView — корзина в ответе.
type CartView struct {
	Session   string          `json:"session"`
	Items     []CartItemView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// AddCartItemRequest — тело POST /api/cart/items. Отсутствующее количество означает 1.
type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// UpdateCartItemRequest — тело PUT /api/cart/items/{productID}.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// sessionID берёт идентификатор из заголовка или cookie, а при отсутствии выдаёт новый.
// Идентификатор всегда возвращается клиенту в заголовке и cookie.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			id = cookie.Value
		}
	}
	if !sessionPattern.MatchString(id) {
		id = uuid.NewString()
	}

	w.Header().Set(SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Engine, string) {
	session := sessionID(w, r)
	opts := append([]cart.Option{cart.WithKey(cartKeyPrefix + session)}, h.cartOpts...)
	return cart.Load(r.Context(), h.carts, opts...), session
}

func viewCart(engine *cart.Engine, session string, locale domain.Locale) CartView {
	items := engine.Items()
	view := CartView{
		Session:   session,
		Items:     make([]CartItemView, 0, len(items)),
		Total:     decimal.Zero,
		ItemCount: 0,
	}
	for _, item := range items {
		name := item.Product.Name.In(locale)
		if name == "" {
			name = item.Product.ID
		}
		subtotal := item.Subtotal()
		view.Items = append(view.Items, CartItemView{
			ProductID: item.Product.ID,
			Name:      name,
			ImageURL:  item.Product.ImageURL,
			UnitPrice: item.Product.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  subtotal,
		})
		view.Total = view.Total.Add(subtotal)
		view.ItemCount += item.Quantity
	}
	return view
}

// GetCart отдаёт корзину текущей сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	engine, session := h.loadCart(w, r)
	respondJSON(w, http.StatusOK, viewCart(engine, session, requestLocale(r)))
}

// AddCartItem добавляет товар каталога; количество складывается с уже лежащим в корзине.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "product_id is required")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "cart quantity of a product must not exceed 99")
		return
	}

	product, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !product.InStock {
		h.respondServiceError(w, r, domain.ErrProductUnavailable)
		return
	}

	engine, session := h.loadCart(w, r)
	if engine.Quantity(product.ID)+quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "cart quantity of a product must not exceed 99")
		return
	}
	if err := engine.AddItem(r.Context(), product.Ref(), quantity); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewCart(engine, session, requestLocale(r)))
}

// UpdateCartItem выставляет абсолютное количество; 0 и меньше удаляют позицию.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "cart quantity of a product must not exceed 99")
		return
	}

	engine, session := h.loadCart(w, r)
	if err := engine.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewCart(engine, session, requestLocale(r)))
}

// RemoveCartItem удаляет позицию; отсутствие позиции не ошибка.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	engine, session := h.loadCart(w, r)
	if err := engine.RemoveItem(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewCart(engine, session, requestLocale(r)))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine, session := h.loadCart(w, r)
	if err := engine.Clear(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewCart(engine, session, requestLocale(r)))
}
