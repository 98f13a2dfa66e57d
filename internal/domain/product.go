package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Locale — язык витрины.
type Locale string

const (
	// LocaleEN — английский, используется как запасной вариант.
	LocaleEN Locale = "en"
	// LocaleBN — бенгальский.
	LocaleBN Locale = "bn"
)

// ParseLocale нормализует код языка; неизвестные значения сводятся к английскому.
func ParseLocale(raw string) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(raw))) {
	case LocaleBN:
		return LocaleBN
	default:
		return LocaleEN
	}
}

// LocalizedText хранит варианты строки по языкам.
type LocalizedText map[Locale]string

// In возвращает текст на нужном языке, затем английский, затем любой непустой вариант.
func (t LocalizedText) In(locale Locale) string {
	if v := t[locale]; v != "" {
		return v
	}
	if v := t[LocaleEN]; v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

// Clone возвращает независимую копию.
func (t LocalizedText) Clone() LocalizedText {
	if t == nil {
		return nil
	}
	out := make(LocalizedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Product — товар каталога пекарни со всеми полями для витрины.
type Product struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Name        LocalizedText   `json:"name"`
	Description LocalizedText   `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	InStock     bool            `json:"in_stock"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate проверяет минимальные требования к товару.
func (p Product) Validate() []error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, ErrProductInvalid)
	}
	if strings.TrimSpace(p.Name[LocaleEN]) == "" {
		errs = append(errs, ErrProductInvalid)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrItemPriceInvalid)
	}
	return errs
}

// Ref возвращает ссылку на товар, которую корзина хранит по значению.
func (p Product) Ref() ProductRef {
	return ProductRef{
		ID:        p.ID,
		Name:      p.Name.Clone(),
		UnitPrice: p.Price,
		ImageURL:  p.ImageURL,
	}
}

// ProductRef — неизменяемый снимок товара внутри корзины.
type ProductRef struct {
	ID        string          `json:"id"`
	Name      LocalizedText   `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// CartItem — позиция корзины; Quantity всегда >= 1.
type CartItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
}

// Subtotal возвращает цену позиции: цена за единицу × количество.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
