// Package analytics сворачивает заказы в сводку для дашборда админки.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// WeekStart — первый день недели для окна RevenueWeek.
const WeekStart = time.Sunday

// SeriesDays — длина дневного ряда выручки, включая сегодня.
const SeriesDays = 7

// DateLayout — формат ключа дневного бакета.
const DateLayout = "2006-01-02"

// OrderRecord — минимальный срез заказа, который нужен агрегатору.
// Невалидный Amount считается нулём, нулевой CreatedAt означает отсутствие даты.
type OrderRecord struct {
	ID        string
	Amount    decimal.NullDecimal
	CreatedAt time.Time
	Status    domain.OrderStatus
}

// DailyRevenue — выручка за один календарный день.
type DailyRevenue struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// StatusCount — число заказов в статусе, включая отменённые.
type StatusCount struct {
	Status domain.OrderStatus `json:"status"`
	Count  int                `json:"count"`
}

// Summary — результат агрегации.
type Summary struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	RevenueToday decimal.Decimal `json:"revenue_today"`
	RevenueWeek  decimal.Decimal `json:"revenue_week"`
	RevenueMonth decimal.Decimal `json:"revenue_month"`
	RevenueYear  decimal.Decimal `json:"revenue_year"`
	DailySeries  []DailyRevenue  `json:"daily_series"`
	StatusCounts []StatusCount   `json:"status_counts"`
	OrderCount   int             `json:"order_count"`
}

// CountFor возвращает счётчик статуса или 0.
func (s Summary) CountFor(status domain.OrderStatus) int {
	for _, sc := range s.StatusCounts {
		if sc.Status == status {
			return sc.Count
		}
	}
	return 0
}

// SeriesTotal возвращает сумму дневного ряда.
func (s Summary) SeriesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, day := range s.DailySeries {
		total = total.Add(day.Amount)
	}
	return total
}

// Cutoffs — начала окон выручки в зоне наблюдателя.
type Cutoffs struct {
	Today time.Time
	Week  time.Time
	Month time.Time
	Year  time.Time
}

// CutoffsAt считает границы окон для момента now в now.Location().
func CutoffsAt(now time.Time) Cutoffs {
	loc := now.Location()
	y, m, d := now.Date()
	back := (int(now.Weekday()) - int(WeekStart) + 7) % 7

	return Cutoffs{
		Today: time.Date(y, m, d, 0, 0, 0, 0, loc),
		Week:  time.Date(y, m, d-back, 0, 0, 0, 0, loc),
		Month: time.Date(y, m, 1, 0, 0, 0, 0, loc),
		Year:  time.Date(y, time.January, 1, 0, 0, 0, 0, loc),
	}
}

// Aggregate сворачивает заказы за один проход. Функция не падает на битых данных:
// отсутствующее поле пропускается только для своей части сводки.
func Aggregate(orders []OrderRecord, now time.Time) Summary {
	loc := now.Location()
	cut := CutoffsAt(now)

	summary := Summary{
		TotalRevenue: decimal.Zero,
		RevenueToday: decimal.Zero,
		RevenueWeek:  decimal.Zero,
		RevenueMonth: decimal.Zero,
		RevenueYear:  decimal.Zero,
		DailySeries:  make([]DailyRevenue, 0, SeriesDays),
		StatusCounts: make([]StatusCount, 0, len(domain.KnownStatuses)),
		OrderCount:   len(orders),
	}

	y, m, d := now.Date()
	dayIndex := make(map[string]int, SeriesDays)
	for i := SeriesDays - 1; i >= 0; i-- {
		key := time.Date(y, m, d-i, 0, 0, 0, 0, loc).Format(DateLayout)
		dayIndex[key] = len(summary.DailySeries)
		summary.DailySeries = append(summary.DailySeries, DailyRevenue{Date: key, Amount: decimal.Zero})
	}

	statusIndex := make(map[domain.OrderStatus]int, len(domain.KnownStatuses))
	for _, status := range domain.KnownStatuses {
		statusIndex[status] = len(summary.StatusCounts)
		summary.StatusCounts = append(summary.StatusCounts, StatusCount{Status: status})
	}

	for _, order := range orders {
		if order.Status != "" {
			i, ok := statusIndex[order.Status]
			if !ok {
				i = len(summary.StatusCounts)
				statusIndex[order.Status] = i
				summary.StatusCounts = append(summary.StatusCounts, StatusCount{Status: order.Status})
			}
			summary.StatusCounts[i].Count++
		}

		if order.Status == domain.OrderStatusCancelled {
			continue
		}

		amount := decimal.Zero
		if order.Amount.Valid {
			amount = order.Amount.Decimal
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(amount)

		if order.CreatedAt.IsZero() {
			continue
		}
		created := order.CreatedAt.In(loc)
		if !created.Before(cut.Today) {
			summary.RevenueToday = summary.RevenueToday.Add(amount)
		}
		if !created.Before(cut.Week) {
			summary.RevenueWeek = summary.RevenueWeek.Add(amount)
		}
		if !created.Before(cut.Month) {
			summary.RevenueMonth = summary.RevenueMonth.Add(amount)
		}
		if !created.Before(cut.Year) {
			summary.RevenueYear = summary.RevenueYear.Add(amount)
		}
		if i, ok := dayIndex[created.Format(DateLayout)]; ok {
			summary.DailySeries[i].Amount = summary.DailySeries[i].Amount.Add(amount)
		}
	}

	return summary
}

// RecordsFromOrders переводит сохранённые заказы в записи агрегатора.
func RecordsFromOrders(orders []domain.Order) []OrderRecord {
	records := make([]OrderRecord, 0, len(orders))
	for _, o := range orders {
		records = append(records, OrderRecord{
			ID:        o.ID,
			Amount:    decimal.NewNullDecimal(o.Total),
			CreatedAt: o.CreatedAt,
			Status:    o.Status,
		})
	}
	return records
}
