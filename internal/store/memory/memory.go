package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	customers       map[int64]domain.Customer
	sales           map[int64]domain.Sale
	expenses        map[int64]domain.Expense
	usersByUsername map[string]domain.UserAccount

	productSeq  int64
	customerSeq int64
	saleSeq     int64
	saleItemSeq int64
	expenseSeq  int64
	userSeq     int64
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		customers:       make(map[int64]domain.Customer),
		sales:           make(map[int64]domain.Sale),
		expenses:        make(map[int64]domain.Expense),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_STAFF_PASSWORD. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() (map[string]domain.UserAccount, int64) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	var seq int64
	for _, u := range []struct {
		username string
		email    string
		password string
		role     domain.Role
	}{
		{"admin", "admin@example.com", adminPwd, domain.RoleAdmin},
		{"manager", "manager@example.com", managerPwd, domain.RoleManager},
		{"staff", "staff@example.com", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		seq++
		users[u.username] = domain.UserAccount{
			ID:           seq,
			Username:     u.username,
			Email:        u.email,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users, seq
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{Name: "Arabica Coffee Beans 1kg", Category: "beverage", Price: 24.50, Cost: 14.00, StockQuantity: 40, MinStock: 10},
		{Name: "Green Tea Box", Category: "beverage", Price: 8.90, Cost: 4.20, StockQuantity: 25, MinStock: 10},
		{Name: "Whole Wheat Bread", Category: "bakery", Price: 3.50, Cost: 1.60, StockQuantity: 8, MinStock: 12},
		{Name: "Organic Honey 500g", Category: "grocery", Price: 12.00, Cost: 7.50, StockQuantity: 18, MinStock: 5},
		{Name: "Olive Oil 1L", Category: "grocery", Price: 15.75, Cost: 9.80, StockQuantity: 0, MinStock: 6},
		{Name: "Dish Soap", Category: "household", Price: 2.80, Cost: 1.10, StockQuantity: 55, MinStock: 15},
	}
	for _, p := range products {
		s.productSeq++
		p.ID = s.productSeq
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	customers := []domain.Customer{
		{Name: "Aisyah Putri", Email: "aisyah@example.com", Phone: "0812-1111-2222", Type: domain.CustomerTypeRetail},
		{Name: "Budi Santoso", Email: "budi@example.com", Phone: "0813-3333-4444", Type: domain.CustomerTypeWholesale},
		{Name: "Warung Citra", Email: "citra@example.com", Phone: "0815-5555-6666", Type: domain.CustomerTypeBusiness},
	}
	for _, c := range customers {
		s.customerSeq++
		c.ID = s.customerSeq
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	s.usersByUsername, s.userSeq = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.productSeq++
	product.ID = s.productSeq
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return store.ErrProductInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.StockQuantity < p.MinStock {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customerSeq++
	customer.ID = s.customerSeq
	customer.CreatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

// DeleteCustomer removes the customer and detaches their sales so the sales
// history survives as walk-in transactions.
func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	for saleID, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			sale.CustomerID = nil
			s.sales[saleID] = sale
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CountCustomers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sales {
		if existing.InvoiceNumber == sale.InvoiceNumber {
			return nil, store.ErrDuplicateInvoice
		}
	}
	for _, item := range sale.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.StockQuantity < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	s.saleSeq++
	sale.ID = s.saleSeq
	for i := range sale.Items {
		s.saleItemSeq++
		sale.Items[i].ID = s.saleItemSeq
		sale.Items[i].SaleID = sale.ID

		product := s.products[sale.Items[i].ProductID]
		sale.Items[i].ProductName = product.Name
		product.StockQuantity -= sale.Items[i].Quantity
		product.UpdatedAt = time.Now().UTC()
		s.products[product.ID] = product
	}
	s.sales[sale.ID] = sale
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.SaleDate.Compare(a.SaleDate)
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

// ListSalesBetween returns sales with from <= SaleDate < to, ascending.
func (s *Store) ListSalesBetween(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return a.SaleDate.Compare(b.SaleDate)
	})
	return sales, nil
}

func (s *Store) DeleteSale(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return store.ErrNotFound
	}
	for _, item := range sale.Items {
		product, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		product.StockQuantity += item.Quantity
		product.UpdatedAt = time.Now().UTC()
		s.products[product.ID] = product
	}
	delete(s.sales, id)
	return nil
}

func (s *Store) SumSalesBetween(_ context.Context, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, sale := range s.sales {
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		total += sale.TotalAmount
	}
	return total, nil
}

func (s *Store) ListSoldItemsBetween(_ context.Context, from, to time.Time) ([]domain.SoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SoldItem, 0)
	saleIDs := make([]int64, 0, len(s.sales))
	for id := range s.sales {
		saleIDs = append(saleIDs, id)
	}
	slices.Sort(saleIDs)
	for _, id := range saleIDs {
		sale := s.sales[id]
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		for _, item := range sale.Items {
			items = append(items, domain.SoldItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Subtotal:    item.Subtotal,
			})
		}
	}
	return items, nil
}

func (s *Store) ListExpenses(_ context.Context, category string, limit int) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if category != "" && e.Category != category {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return b.ExpenseDate.Compare(a.ExpenseDate)
	})
	if limit > 0 && len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenseSeq++
	expense.ID = s.expenseSeq
	expense.CreatedAt = time.Now().UTC()
	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expenses[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ExpenseTotalsByCategory(_ context.Context, from, to time.Time) ([]domain.ExpenseCategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory := make(map[string]float64)
	for _, e := range s.expenses {
		if e.ExpenseDate.Before(from) || !e.ExpenseDate.Before(to) {
			continue
		}
		byCategory[e.Category] += e.Amount
	}
	totals := make([]domain.ExpenseCategoryTotal, 0, len(byCategory))
	for category, total := range byCategory {
		totals = append(totals, domain.ExpenseCategoryTotal{Category: category, Total: total})
	}
	slices.SortFunc(totals, func(a, b domain.ExpenseCategoryTotal) int {
		if a.Total == b.Total {
			return strings.Compare(a.Category, b.Category)
		}
		if a.Total > b.Total {
			return -1
		}
		return 1
	})
	return totals, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.usersByUsername {
		if user.Email != "" && existing.Email == user.Email {
			return nil, store.ErrInvalidInput
		}
	}
	s.userSeq++
	user.ID = s.userSeq
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	loginAt := at
	user.LastLogin = &loginAt
	s.usersByUsername[username] = user
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	copySale := sale
	if sale.CustomerID != nil {
		id := *sale.CustomerID
		copySale.CustomerID = &id
	}
	copySale.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copySale.Items, sale.Items)
	return copySale
}
