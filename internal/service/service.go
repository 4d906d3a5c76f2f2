package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bizdash/backend/internal/cache"
	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/invoice"
	"bizdash/backend/internal/report"
	"bizdash/backend/internal/store"
)

// ErrForbidden is returned when the acting user's role does not allow the
// operation.
var ErrForbidden = errors.New("forbidden")

const invoiceRetryAttempts = 3

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	cache    cache.ReportCache
	loc      *time.Location
	cacheTTL time.Duration

	now func() time.Time
}

func New(repo store.Repository, reportCache cache.ReportCache, loc *time.Location, cacheTTL time.Duration) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &Service{
		repo:     repo,
		cache:    reportCache,
		loc:      loc,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidInput)
	}
	if req.Price <= 0 || req.Cost < 0 || req.StockQuantity < 0 || req.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must be positive, cost/stock/min_stock non-negative", store.ErrInvalidInput)
	}
	if req.MinStock == 0 {
		req.MinStock = 10
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		Category:      req.Category,
		Price:         req.Price,
		Cost:          req.Cost,
		StockQuantity: req.StockQuantity,
		MinStock:      req.MinStock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
		}
		updated.Price = *req.Price
	}
	if req.Cost != nil {
		if *req.Cost < 0 {
			return domain.Product{}, fmt.Errorf("%w: cost must be non-negative", store.ErrInvalidInput)
		}
		updated.Cost = *req.Cost
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return domain.Product{}, fmt.Errorf("%w: stock must be non-negative", store.ErrInvalidInput)
		}
		updated.StockQuantity = *req.StockQuantity
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, fmt.Errorf("%w: min_stock must be non-negative", store.ErrInvalidInput)
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

// InventorySummary folds the whole catalog: stock valued at cost, plus
// low-stock and out-of-stock counters.
func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventorySummary{}, err
	}

	var summary domain.InventorySummary
	for _, p := range products {
		summary.TotalStockValue += float64(p.StockQuantity) * p.Cost
		if report.NeedsRestock(p.StockQuantity, p.MinStock) {
			summary.LowStockCount++
		}
		if p.StockQuantity == 0 {
			summary.OutOfStockCount++
		}
	}
	return summary, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name required", store.ErrInvalidInput)
	}
	customerType, err := normalizeCustomerType(req.Type)
	if err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Type:    customerType,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("%w: customer name required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Type != nil {
		customerType, err := normalizeCustomerType(*req.Type)
		if err != nil {
			return domain.Customer{}, err
		}
		updated.Type = customerType
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// CreateSale validates the cart, snapshots unit prices from the catalog where
// the request leaves them unset, derives the total and persists everything in
// one store transaction. An invoice-number collision is retried with a
// disambiguated number.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: sale needs at least one item", store.ErrInvalidInput)
	}
	if req.Discount < 0 || req.Tax < 0 {
		return domain.Sale{}, fmt.Errorf("%w: discount and tax must be non-negative", store.ErrInvalidInput)
	}

	saleDate := s.now().In(s.loc)
	if req.SaleDate != "" {
		parsed, err := parseDate(req.SaleDate, s.loc)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("%w: sale_date must be YYYY-MM-DD or RFC3339", store.ErrInvalidInput)
		}
		saleDate = parsed
	}

	if req.CustomerID != nil {
		if _, err := s.repo.GetCustomer(ctx, *req.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: item quantity must be at least 1", store.ErrInvalidInput)
		}

		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}

		unitPrice := product.Price
		if line.UnitPrice != nil {
			if *line.UnitPrice < 0 {
				return domain.Sale{}, fmt.Errorf("%w: unit price must be non-negative", store.ErrInvalidInput)
			}
			unitPrice = *line.UnitPrice
		}

		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    float64(line.Quantity) * unitPrice,
		})
	}

	sale := domain.Sale{
		CustomerID:    req.CustomerID,
		SaleDate:      saleDate,
		TotalAmount:   report.SaleTotal(items, req.Discount, req.Tax),
		Discount:      req.Discount,
		Tax:           req.Tax,
		PaymentMethod: defaultString(strings.TrimSpace(req.PaymentMethod), "cash"),
		Notes:         strings.TrimSpace(req.Notes),
		Items:         items,
	}

	number := invoice.Number(s.now().In(s.loc))
	for attempt := 0; attempt < invoiceRetryAttempts; attempt++ {
		sale.InvoiceNumber = number
		created, err := s.repo.CreateSale(ctx, sale)
		if err == nil {
			return *created, nil
		}
		if !errors.Is(err, store.ErrDuplicateInvoice) {
			return domain.Sale{}, err
		}
		number = invoice.Disambiguate(sale.InvoiceNumber)
	}
	return domain.Sale{}, store.ErrDuplicateInvoice
}

func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	return s.repo.DeleteSale(ctx, id)
}

func (s *Service) ListExpenses(ctx context.Context, category string, limit int) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, strings.TrimSpace(category), limit)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense category required", store.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return domain.Expense{}, fmt.Errorf("%w: expense amount must be positive", store.ErrInvalidInput)
	}

	expenseDate := s.now().In(s.loc)
	if req.ExpenseDate != "" {
		parsed, err := parseDate(req.ExpenseDate, s.loc)
		if err != nil {
			return domain.Expense{}, fmt.Errorf("%w: expense_date must be YYYY-MM-DD or RFC3339", store.ErrInvalidInput)
		}
		expenseDate = parsed
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Category:      req.Category,
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		ExpenseDate:   expenseDate,
		PaymentMethod: defaultString(strings.TrimSpace(req.PaymentMethod), "cash"),
		ReceiptNumber: strings.TrimSpace(req.ReceiptNumber),
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return *created, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	return s.repo.DeleteExpense(ctx, id)
}

// ExpenseSummary totals expenses per category over an inclusive calendar-day
// window. The raw dates are interpreted in the business timezone.
func (s *Service) ExpenseSummary(ctx context.Context, startRaw, endRaw string) (domain.ExpenseSummary, error) {
	start, end, err := s.parseDateRange(startRaw, endRaw)
	if err != nil {
		return domain.ExpenseSummary{}, err
	}

	from := dayStart(start, s.loc)
	to := dayStart(end, s.loc).AddDate(0, 0, 1)

	totals, err := s.repo.ExpenseTotalsByCategory(ctx, from, to)
	if err != nil {
		return domain.ExpenseSummary{}, err
	}

	summary := domain.ExpenseSummary{
		Start:      from.Format("2006-01-02"),
		End:        end.In(s.loc).Format("2006-01-02"),
		ByCategory: totals,
	}
	for _, t := range totals {
		summary.Total += t.Total
	}
	return summary, nil
}

// DashboardStats is always computed on demand so the numbers move as soon as
// a sale is recorded. Day boundaries are taken in the business timezone.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	now := s.now().In(s.loc)
	todayStart := dayStart(now, s.loc)
	tomorrowStart := todayStart.AddDate(0, 0, 1)
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	todaySales, err := s.repo.SumSalesBetween(ctx, todayStart, tomorrowStart)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	yesterdaySales, err := s.repo.SumSalesBetween(ctx, yesterdayStart, todayStart)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	monthSales, err := s.repo.SumSalesBetween(ctx, monthStart, tomorrowStart)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	lowStock, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	totalCustomers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	return domain.DashboardStats{
		TodaySales:     todaySales,
		YesterdaySales: yesterdaySales,
		MonthSales:     monthSales,
		LowStockCount:  len(lowStock),
		TotalCustomers: totalCustomers,
		SalesChange:    report.PercentageChange(todaySales, yesterdaySales),
	}, nil
}

// MonthlySeries returns parallel month/total arrays for the trailing
// monthsBack calendar months, zero-filled for months without sales. The
// result is cached for the configured TTL.
func (s *Service) MonthlySeries(ctx context.Context, monthsBack int) (domain.MonthlySeries, error) {
	if monthsBack < 1 {
		monthsBack = 6
	}

	now := s.now().In(s.loc)
	key := fmt.Sprintf("reports:monthly:%d", monthsBack)
	var series domain.MonthlySeries
	if s.cacheGet(ctx, key, &series) {
		return series, nil
	}

	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -(monthsBack - 1), 0)
	sales, err := s.repo.ListSalesBetween(ctx, windowStart, now.AddDate(0, 0, 1))
	if err != nil {
		return domain.MonthlySeries{}, err
	}

	sparse := report.GroupSalesByMonth(sales, monthsBack, now, s.loc)
	totals := make(map[string]float64, len(sparse))
	for _, entry := range sparse {
		totals[entry.Month] = entry.Total
	}

	series = domain.MonthlySeries{
		Months: make([]string, 0, monthsBack),
		Totals: make([]float64, 0, monthsBack),
	}
	for i := monthsBack - 1; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -i, 0).Format("2006-01")
		series.Months = append(series.Months, month)
		series.Totals = append(series.Totals, totals[month])
	}

	s.cacheSet(ctx, key, series)
	return series, nil
}

// SalesReport builds the date-range report. The raw dates are interpreted in
// the business timezone so the window matches the business's calendar days.
func (s *Service) SalesReport(ctx context.Context, startRaw, endRaw string) (domain.SalesReport, error) {
	start, end, err := s.parseDateRange(startRaw, endRaw)
	if err != nil {
		return domain.SalesReport{}, err
	}

	from := dayStart(start, s.loc)
	to := dayStart(end, s.loc).AddDate(0, 0, 1)

	sales, err := s.repo.ListSalesBetween(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return report.BuildSalesReport(sales, start, end, s.loc), nil
}

// TopSellingProducts ranks products by revenue over a trailing window of
// days. Cached for the configured TTL.
func (s *Service) TopSellingProducts(ctx context.Context, days, limit int) ([]domain.TopProduct, error) {
	if days < 1 {
		days = 30
	}
	if limit < 1 {
		limit = 10
	}

	key := fmt.Sprintf("reports:top-products:%d:%d", days, limit)
	var top []domain.TopProduct
	if s.cacheGet(ctx, key, &top) {
		return top, nil
	}

	now := s.now().In(s.loc)
	items, err := s.repo.ListSoldItemsBetween(ctx, now.AddDate(0, 0, -days), now.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	ranked := report.TopProductsByRevenue(items, limit)
	top = make([]domain.TopProduct, 0, len(ranked))
	for _, p := range ranked {
		top = append(top, domain.TopProduct{
			Name:          p.Name,
			TotalQuantity: p.Quantity,
			TotalSales:    p.Revenue,
		})
	}

	s.cacheSet(ctx, key, top)
	return top, nil
}

func (s *Service) CustomerAnalytics(ctx context.Context) ([]domain.CustomerStats, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSalesBetween(ctx, time.Unix(0, 0).UTC(), s.now().AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return report.CustomerAnalytics(customers, sales), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.Role.CanManageUsers() {
		return nil, ErrForbidden
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	payload, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("[service] WARN: report cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("[service] WARN: report cache encode %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", key, err)
	}
}

func normalizeCustomerType(raw string) (string, error) {
	customerType := strings.ToLower(strings.TrimSpace(raw))
	if customerType == "" {
		return domain.CustomerTypeRetail, nil
	}
	switch customerType {
	case domain.CustomerTypeRetail, domain.CustomerTypeWholesale, domain.CustomerTypeBusiness:
		return customerType, nil
	default:
		return "", fmt.Errorf("%w: unknown customer type %q", store.ErrInvalidInput, raw)
	}
}

func (s *Service) parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := parseDate(startRaw, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be YYYY-MM-DD or RFC3339", store.ErrInvalidInput)
	}
	end, err := parseDate(endRaw, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be YYYY-MM-DD or RFC3339", store.ErrInvalidInput)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end before start", store.ErrInvalidInput)
	}
	return start, end, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
