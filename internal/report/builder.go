package report

import (
	"time"

	"bizdash/backend/internal/domain"
)

// topProductsInReport is the ranking depth of the date-range report; the
// 30-day dashboard lookback uses its own limit at the call site.
const topProductsInReport = 5

// BuildSalesReport assembles the date-range report from already-loaded sales.
// Sales outside the inclusive [start, end] calendar window are ignored, so
// callers may pass a coarser preload. A window with no sales yields a
// zero-valued report with empty (non-nil) slices.
func BuildSalesReport(sales []domain.Sale, start, end time.Time, loc *time.Location) domain.SalesReport {
	startDay := dateOf(start, loc)
	endDay := dateOf(end, loc)

	inWindow := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		day := dateOf(sale.SaleDate, loc)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		inWindow = append(inWindow, sale)
	}

	var total float64
	soldItems := make([]domain.SoldItem, 0, len(inWindow))
	for _, sale := range inWindow {
		total += sale.TotalAmount
		for _, item := range sale.Items {
			soldItems = append(soldItems, domain.SoldItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Subtotal:    item.Subtotal,
			})
		}
	}

	average := 0.0
	if len(inWindow) > 0 {
		average = total / float64(len(inWindow))
	}

	return domain.SalesReport{
		Start:              startDay.Format("2006-01-02"),
		End:                endDay.Format("2006-01-02"),
		TotalSales:         total,
		TransactionCount:   len(inWindow),
		AverageTransaction: average,
		DailyBreakdown:     GroupSalesByDay(inWindow, start, end, loc),
		TopProducts:        TopProductsByRevenue(soldItems, topProductsInReport),
	}
}
