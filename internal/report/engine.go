package report

import (
	"math"
	"sort"
	"time"

	"bizdash/backend/internal/domain"
)

// The engine is a set of pure functions over records the caller has already
// loaded. Nothing here touches the store, so every computation is testable
// without a database and reports stay "best effort as of query time".

// ProfitMargin returns profit as a percentage of the selling price.
// A non-positive price yields 0 rather than a division fault.
func ProfitMargin(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	return (price - cost) / price * 100
}

// NeedsRestock reports whether stock has fallen below the restock threshold.
// Stock exactly at the threshold does not trigger a restock.
func NeedsRestock(stockQuantity, minStock int) bool {
	return stockQuantity < minStock
}

// SubtotalSum sums the stored per-line subtotals. The stored subtotal is
// authoritative: it preserves the price at sale time even if the product has
// been re-priced since.
func SubtotalSum(items []domain.SaleItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Subtotal
	}
	return sum
}

// SaleTotal derives a sale total from its lines, discount and tax. It is a
// derivation only; the persisted Sale.TotalAmount set at creation time remains
// the figure reports are built on.
func SaleTotal(items []domain.SaleItem, discount, tax float64) float64 {
	return SubtotalSum(items) - discount + tax
}

// Profit computes the profit of a sale against current product costs. Lines
// whose product can no longer be resolved are excluded from the cost side and
// counted in missing so callers can surface a partial-result warning.
// Because costs are current, re-costing a product changes historical profit.
func Profit(sale domain.Sale, costOf func(productID int64) (float64, bool)) (profit float64, missing int) {
	var totalCost float64
	for _, item := range sale.Items {
		cost, ok := costOf(item.ProductID)
		if !ok {
			missing++
			continue
		}
		totalCost += float64(item.Quantity) * cost
	}
	return sale.TotalAmount - totalCost, missing
}

// PercentageChange returns the relative change from previous to current,
// rounded to two decimals. A zero base maps to 100 for any growth and 0
// otherwise.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return math.Round((current-previous)/previous*100*100) / 100
}

// GroupSalesByDay buckets sales by calendar date in loc, summing the stored
// total per date. The window is inclusive on both ends and the result is a
// sparse ascending series: days without sales are absent.
func GroupSalesByDay(sales []domain.Sale, start, end time.Time, loc *time.Location) []domain.DailyTotal {
	startDay := dateOf(start, loc)
	endDay := dateOf(end, loc)

	totals := make(map[string]float64, len(sales))
	for _, sale := range sales {
		day := dateOf(sale.SaleDate, loc)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		totals[day.Format("2006-01-02")] += sale.TotalAmount
	}

	series := make([]domain.DailyTotal, 0, len(totals))
	for date, total := range totals {
		series = append(series, domain.DailyTotal{Date: date, Total: total})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

// GroupSalesByMonth buckets sales by calendar month over a trailing window of
// monthsBack months ending at now. Sparse ascending series keyed "2006-01".
func GroupSalesByMonth(sales []domain.Sale, monthsBack int, now time.Time, loc *time.Location) []domain.MonthlyTotal {
	if monthsBack < 1 {
		monthsBack = 6
	}
	local := now.In(loc)
	windowStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(monthsBack - 1), 0)

	totals := make(map[string]float64, monthsBack)
	for _, sale := range sales {
		at := sale.SaleDate.In(loc)
		if at.Before(windowStart) || at.After(local) {
			continue
		}
		totals[at.Format("2006-01")] += sale.TotalAmount
	}

	series := make([]domain.MonthlyTotal, 0, len(totals))
	for month, total := range totals {
		series = append(series, domain.MonthlyTotal{Month: month, Total: total})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

// TopProductsByRevenue groups sold lines by product, sums quantity and
// revenue, and returns the top n by revenue. Ties keep the first-seen input
// order (stable sort), so the ranking is deterministic for a given input.
func TopProductsByRevenue(items []domain.SoldItem, n int) []domain.ProductSales {
	type bucket struct {
		name     string
		quantity int
		revenue  float64
	}

	order := make([]int64, 0, len(items))
	buckets := make(map[int64]*bucket, len(items))
	for _, item := range items {
		b, seen := buckets[item.ProductID]
		if !seen {
			b = &bucket{name: item.ProductName}
			buckets[item.ProductID] = b
			order = append(order, item.ProductID)
		}
		b.quantity += item.Quantity
		b.revenue += item.Subtotal
	}

	ranked := make([]domain.ProductSales, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		ranked = append(ranked, domain.ProductSales{Name: b.name, Quantity: b.quantity, Revenue: b.revenue})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Revenue > ranked[j].Revenue })

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// CustomerAnalytics inner-joins customers to their sales: customers with no
// purchases are excluded. Sorted descending by total spent.
func CustomerAnalytics(customers []domain.Customer, sales []domain.Sale) []domain.CustomerStats {
	type bucket struct {
		count int
		spent float64
		last  time.Time
	}

	byCustomer := make(map[int64]*bucket, len(customers))
	for _, sale := range sales {
		if sale.CustomerID == nil {
			continue
		}
		b := byCustomer[*sale.CustomerID]
		if b == nil {
			b = &bucket{}
			byCustomer[*sale.CustomerID] = b
		}
		b.count++
		b.spent += sale.TotalAmount
		if sale.SaleDate.After(b.last) {
			b.last = sale.SaleDate
		}
	}

	stats := make([]domain.CustomerStats, 0, len(byCustomer))
	for _, customer := range customers {
		b, ok := byCustomer[customer.ID]
		if !ok {
			continue
		}
		stats = append(stats, domain.CustomerStats{
			Name:          customer.Name,
			PurchaseCount: b.count,
			TotalSpent:    b.spent,
			LastPurchase:  b.last,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].TotalSpent > stats[j].TotalSpent })
	return stats
}

// dateOf truncates t to its calendar date in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
