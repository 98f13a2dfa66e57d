package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/catalog"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// ProductView — товар витрины на языке запроса.
type ProductView struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	InStock     bool            `json:"in_stock"`
	Featured    bool            `json:"featured"`
}

// ProductRequest — тело админских запросов на создание и изменение товара.
type ProductRequest struct {
	ID          string               `json:"id"`
	Category    string               `json:"category"`
	Name        domain.LocalizedText `json:"name"`
	Description domain.LocalizedText `json:"description"`
	Price       decimal.Decimal      `json:"price"`
	ImageURL    string               `json:"image_url"`
	InStock     *bool                `json:"in_stock"`
	Featured    bool                 `json:"featured"`
}

func (req ProductRequest) toDomain() domain.Product {
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}
	return domain.Product{
		ID:          req.ID,
		Category:    req.Category,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		InStock:     inStock,
		Featured:    req.Featured,
	}
}

func viewProduct(p domain.Product, locale domain.Locale) ProductView {
	return ProductView{
		ID:          p.ID,
		Category:    p.Category,
		Name:        p.Name.In(locale),
		Description: p.Description.In(locale),
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		InStock:     p.InStock,
		Featured:    p.Featured,
	}
}

func requestLocale(r *http.Request) domain.Locale {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return domain.ParseLocale(lang)
	}
	// "bn-BD,bn;q=0.9,en;q=0.8" -> bn
	accept := r.Header.Get("Accept-Language")
	if i := strings.IndexAny(accept, ",;-"); i >= 0 {
		accept = accept[:i]
	}
	return domain.ParseLocale(accept)
}

func parsePrice(raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(value), nil
}

// ListProducts отдаёт каталог с фильтрами category, q, min_price, max_price, in_stock, sort, lang.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	locale := requestLocale(r)

	minPrice, err := parsePrice(params.Get("min_price"))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "min_price must be a number")
		return
	}
	maxPrice, err := parsePrice(params.Get("max_price"))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "max_price must be a number")
		return
	}
	inStockOnly := false
	if raw := params.Get("in_stock"); raw != "" {
		if inStockOnly, err = strconv.ParseBool(raw); err != nil {
			respondError(w, http.StatusBadRequest, CodeInvalidRequest, "in_stock must be a boolean")
			return
		}
	}

	products, err := h.catalog.List(r.Context(), catalog.Query{
		Category:    params.Get("category"),
		Search:      params.Get("q"),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		InStockOnly: inStockOnly,
		Sort:        catalog.ParseSort(params.Get("sort")),
		Locale:      locale,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, viewProduct(p, locale))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetProduct отдаёт один товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewProduct(product, requestLocale(r)))
}

// ListCategories отдаёт категории в порядке каталога.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// CreateProduct добавляет товар.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	product, err := h.catalog.Create(r.Context(), req.toDomain())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// UpdateProduct перезаписывает товар; ID берётся из пути.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "productID")
	if req.ID != "" && req.ID != id {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "id in body does not match path")
		return
	}
	req.ID = id

	product, err := h.catalog.Update(r.Context(), req.toDomain())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DeleteProduct удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
