package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// SortOrder задаёт порядок выдачи каталога.
type SortOrder string

const (
	SortFeatured  SortOrder = "featured"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortName      SortOrder = "name"
	SortNewest    SortOrder = "newest"
)

// ParseSort сводит неизвестные значения к SortFeatured.
func ParseSort(raw string) SortOrder {
	switch s := SortOrder(strings.ToLower(strings.TrimSpace(raw))); s {
	case SortPriceAsc, SortPriceDesc, SortName, SortNewest:
		return s
	default:
		return SortFeatured
	}
}

// Query — фильтр витрины. Пустые поля не ограничивают выборку.
type Query struct {
	Category    string
	Search      string
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal
	InStockOnly bool
	Sort        SortOrder
	Locale      domain.Locale
}

// Apply возвращает новый отфильтрованный и отсортированный список; входной срез не меняется.
func Apply(products []domain.Product, q Query) []domain.Product {
	category := strings.ToLower(strings.TrimSpace(q.Category))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	locale := q.Locale
	if locale == "" {
		locale = domain.LocaleEN
	}

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if q.InStockOnly && !p.InStock {
			continue
		}
		if q.MinPrice.Valid && p.Price.LessThan(q.MinPrice.Decimal) {
			continue
		}
		if q.MaxPrice.Valid && p.Price.GreaterThan(q.MaxPrice.Decimal) {
			continue
		}
		if search != "" && !matches(p, search, locale) {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, ParseSort(string(q.Sort)), locale)
	return out
}

// Categories возвращает категории в порядке первого появления.
func Categories(products []domain.Product) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func matches(p domain.Product, search string, locale domain.Locale) bool {
	fields := []string{
		p.Name[locale], p.Name[domain.LocaleEN],
		p.Description[locale], p.Description[domain.LocaleEN],
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func sortProducts(products []domain.Product, order SortOrder, locale domain.Locale) {
	byName := func(a, b domain.Product) bool {
		na, nb := strings.ToLower(a.Name.In(locale)), strings.ToLower(b.Name.In(locale))
		if na != nb {
			return na < nb
		}
		return a.ID < b.ID
	}

	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch order {
		case SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case SortNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case SortName:
		default:
			if a.Featured != b.Featured {
				return a.Featured
			}
		}
		return byName(a, b)
	})
}
