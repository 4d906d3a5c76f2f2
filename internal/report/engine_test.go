package report

import (
	"math"
	"testing"
	"time"

	"bizdash/backend/internal/domain"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestProfitMargin(t *testing.T) {
	cases := []struct {
		price, cost, want float64
	}{
		{100, 60, 40},
		{100, 0, 100},
		{80, 80, 0},
		{0, 50, 0},
		{-10, 5, 0},
	}
	for _, tc := range cases {
		if got := ProfitMargin(tc.price, tc.cost); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ProfitMargin(%v, %v) = %v, want %v", tc.price, tc.cost, got, tc.want)
		}
	}
}

func TestNeedsRestockBoundary(t *testing.T) {
	if NeedsRestock(10, 10) {
		t.Fatalf("stock equal to threshold must not flag restock")
	}
	if !NeedsRestock(9, 10) {
		t.Fatalf("stock below threshold must flag restock")
	}
	if NeedsRestock(11, 10) {
		t.Fatalf("stock above threshold must not flag restock")
	}
}

func TestSaleTotalUsesStoredSubtotals(t *testing.T) {
	items := []domain.SaleItem{
		{Quantity: 1, UnitPrice: 999, Subtotal: 200},
		{Quantity: 4, UnitPrice: 1, Subtotal: 200},
	}
	if got := SaleTotal(items, 50, 100); got != 450 {
		t.Fatalf("SaleTotal = %v, want 450", got)
	}
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		current, previous, want float64
	}{
		{0, 0, 0},
		{100, 0, 100},
		{150, 100, 50},
		{50, 100, -50},
		{1, 3, -66.67},
	}
	for _, tc := range cases {
		if got := PercentageChange(tc.current, tc.previous); got != tc.want {
			t.Fatalf("PercentageChange(%v, %v) = %v, want %v", tc.current, tc.previous, got, tc.want)
		}
	}
}

func TestProfitExcludesMissingProducts(t *testing.T) {
	sale := domain.Sale{
		TotalAmount: 500,
		Items: []domain.SaleItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
	}
	costs := map[int64]float64{1: 100}
	profit, missing := Profit(sale, func(id int64) (float64, bool) {
		cost, ok := costs[id]
		return cost, ok
	})
	if profit != 300 {
		t.Fatalf("profit = %v, want 300", profit)
	}
	if missing != 1 {
		t.Fatalf("missing = %d, want 1", missing)
	}
}

func TestGroupSalesByDayIsSparse(t *testing.T) {
	sales := []domain.Sale{
		{SaleDate: day("2024-03-01").Add(9 * time.Hour), TotalAmount: 1000},
		{SaleDate: day("2024-03-01").Add(17 * time.Hour), TotalAmount: 0},
		{SaleDate: day("2024-03-03").Add(12 * time.Hour), TotalAmount: 500},
	}

	series := GroupSalesByDay(sales, day("2024-03-01"), day("2024-03-03"), time.UTC)
	if len(series) != 2 {
		t.Fatalf("expected 2 entries (no synthetic zero-days), got %d: %+v", len(series), series)
	}
	if series[0].Date != "2024-03-01" || series[0].Total != 1000 {
		t.Fatalf("unexpected first entry: %+v", series[0])
	}
	if series[1].Date != "2024-03-03" || series[1].Total != 500 {
		t.Fatalf("unexpected second entry: %+v", series[1])
	}
}

func TestGroupSalesByDayEmptyInput(t *testing.T) {
	series := GroupSalesByDay(nil, day("2024-03-01"), day("2024-03-31"), time.UTC)
	if len(series) != 0 {
		t.Fatalf("expected empty series, got %+v", series)
	}
}

func TestGroupSalesByDayWindowIsInclusive(t *testing.T) {
	sales := []domain.Sale{
		{SaleDate: day("2024-03-01"), TotalAmount: 10},
		{SaleDate: day("2024-03-05").Add(23 * time.Hour), TotalAmount: 20},
		{SaleDate: day("2024-02-29"), TotalAmount: 99},
		{SaleDate: day("2024-03-06"), TotalAmount: 99},
	}
	series := GroupSalesByDay(sales, day("2024-03-01"), day("2024-03-05"), time.UTC)
	if len(series) != 2 {
		t.Fatalf("expected both boundary days only, got %+v", series)
	}
}

func TestGroupSalesByDayUsesBusinessTimezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 23:30 UTC on March 1st is already March 2nd in UTC+7.
	sales := []domain.Sale{
		{SaleDate: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC), TotalAmount: 100},
	}
	series := GroupSalesByDay(sales, day("2024-03-02"), day("2024-03-02"), jakarta)
	if len(series) != 1 || series[0].Date != "2024-03-02" {
		t.Fatalf("expected sale bucketed on local date 2024-03-02, got %+v", series)
	}
}

func TestGroupSalesByMonth(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{SaleDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), TotalAmount: 100},
		{SaleDate: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), TotalAmount: 200},
		{SaleDate: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), TotalAmount: 50},
		{SaleDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), TotalAmount: 999},
	}
	series := GroupSalesByMonth(sales, 6, now, time.UTC)
	if len(series) != 2 {
		t.Fatalf("expected sparse 2-month series, got %+v", series)
	}
	if series[0].Month != "2024-01" || series[0].Total != 100 {
		t.Fatalf("unexpected first month: %+v", series[0])
	}
	if series[1].Month != "2024-04" || series[1].Total != 250 {
		t.Fatalf("unexpected second month: %+v", series[1])
	}
}

func TestTopProductsByRevenueTieBreakIsStable(t *testing.T) {
	items := []domain.SoldItem{
		{ProductID: 1, ProductName: "A", Quantity: 3, Subtotal: 300},
		{ProductID: 2, ProductName: "B", Quantity: 5, Subtotal: 500},
		{ProductID: 3, ProductName: "C", Quantity: 2, Subtotal: 500},
	}

	top := TopProductsByRevenue(items, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	// B and C tie on revenue; B was seen first so it ranks first.
	if top[0].Name != "B" || top[1].Name != "C" {
		t.Fatalf("expected stable tie-break [B C], got [%s %s]", top[0].Name, top[1].Name)
	}
	if top[0].Revenue != 500 || top[1].Revenue != 500 {
		t.Fatalf("expected both revenues 500, got %+v", top)
	}
}

func TestTopProductsByRevenueAggregatesLines(t *testing.T) {
	items := []domain.SoldItem{
		{ProductID: 7, ProductName: "Widget", Quantity: 1, Subtotal: 40},
		{ProductID: 7, ProductName: "Widget", Quantity: 2, Subtotal: 80},
		{ProductID: 8, ProductName: "Gadget", Quantity: 1, Subtotal: 30},
	}
	top := TopProductsByRevenue(items, 10)
	if top[0].Name != "Widget" || top[0].Quantity != 3 || top[0].Revenue != 120 {
		t.Fatalf("unexpected aggregation: %+v", top[0])
	}
}

func TestBuildSalesReportEmptyWindow(t *testing.T) {
	report := BuildSalesReport(nil, day("2024-03-01"), day("2024-03-31"), time.UTC)

	if report.Start != "2024-03-01" || report.End != "2024-03-31" {
		t.Fatalf("unexpected window %s..%s", report.Start, report.End)
	}
	if report.TotalSales != 0 || report.TransactionCount != 0 || report.AverageTransaction != 0 {
		t.Fatalf("expected zero totals, got %+v", report)
	}
	if report.DailyBreakdown == nil || len(report.DailyBreakdown) != 0 {
		t.Fatalf("expected empty non-nil daily breakdown, got %#v", report.DailyBreakdown)
	}
	if report.TopProducts == nil || len(report.TopProducts) != 0 {
		t.Fatalf("expected empty non-nil top products, got %#v", report.TopProducts)
	}
}

func TestBuildSalesReportIgnoresOutOfWindowSales(t *testing.T) {
	sales := []domain.Sale{
		{SaleDate: day("2024-03-05"), TotalAmount: 100, Items: []domain.SaleItem{
			{ProductID: 1, ProductName: "Widget", Quantity: 2, Subtotal: 100},
		}},
		{SaleDate: day("2024-04-01"), TotalAmount: 999},
	}
	report := BuildSalesReport(sales, day("2024-03-01"), day("2024-03-31"), time.UTC)

	if report.TransactionCount != 1 || report.TotalSales != 100 || report.AverageTransaction != 100 {
		t.Fatalf("unexpected summary: %+v", report)
	}
	if len(report.TopProducts) != 1 || report.TopProducts[0].Name != "Widget" {
		t.Fatalf("unexpected top products: %+v", report.TopProducts)
	}
}

func TestCustomerAnalyticsExcludesCustomersWithoutSales(t *testing.T) {
	alice, bob := int64(1), int64(2)
	customers := []domain.Customer{
		{ID: alice, Name: "Alice"},
		{ID: bob, Name: "Bob"},
		{ID: 3, Name: "Carol"},
	}
	sales := []domain.Sale{
		{CustomerID: &alice, TotalAmount: 100, SaleDate: day("2024-01-01")},
		{CustomerID: &bob, TotalAmount: 300, SaleDate: day("2024-02-01")},
		{CustomerID: &alice, TotalAmount: 50, SaleDate: day("2024-03-01")},
		{CustomerID: nil, TotalAmount: 999, SaleDate: day("2024-03-02")},
	}

	stats := CustomerAnalytics(customers, sales)
	if len(stats) != 2 {
		t.Fatalf("expected 2 customers with purchases, got %+v", stats)
	}
	if stats[0].Name != "Bob" || stats[0].TotalSpent != 300 {
		t.Fatalf("expected Bob first by spend, got %+v", stats[0])
	}
	if stats[1].PurchaseCount != 2 || stats[1].TotalSpent != 150 {
		t.Fatalf("unexpected Alice stats: %+v", stats[1])
	}
	if !stats[1].LastPurchase.Equal(day("2024-03-01")) {
		t.Fatalf("expected last purchase 2024-03-01, got %v", stats[1].LastPurchase)
	}
}
