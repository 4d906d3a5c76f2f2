package domain

import "time"

// Role is the closed set of user roles. Authorization checks go through the
// capability methods rather than raw string comparison.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	default:
		return false
	}
}

// CanManageUsers covers user account creation and listing.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin
}

// CanManageBusiness covers catalog, customer, expense and report management.
func (r Role) CanManageBusiness() bool {
	return r == RoleAdmin || r == RoleManager
}

type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Price         float64   `json:"price"`
	Cost          float64   `json:"cost"`
	StockQuantity int       `json:"stock_quantity"`
	MinStock      int       `json:"min_stock"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	Cost          float64 `json:"cost"`
	StockQuantity int     `json:"stock_quantity"`
	MinStock      int     `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Category      *string  `json:"category,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Cost          *float64 `json:"cost,omitempty"`
	StockQuantity *int     `json:"stock_quantity,omitempty"`
	MinStock      *int     `json:"min_stock,omitempty"`
}

const (
	CustomerTypeRetail    = "retail"
	CustomerTypeWholesale = "wholesale"
	CustomerTypeBusiness  = "business"
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Type      string    `json:"customer_type"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Type    string `json:"customer_type"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Type    *string `json:"customer_type,omitempty"`
}

// Sale is a completed transaction. TotalAmount is fixed at creation time and
// is the authoritative figure for all reporting; it is never recomputed from
// the items afterwards.
type Sale struct {
	ID            int64      `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	CustomerID    *int64     `json:"customer_id,omitempty"`
	SaleDate      time.Time  `json:"sale_date"`
	TotalAmount   float64    `json:"total_amount"`
	Discount      float64    `json:"discount"`
	Tax           float64    `json:"tax"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Items         []SaleItem `json:"items,omitempty"`
}

// SaleItem is one line of a Sale. Subtotal is quantity x unit price at
// creation time and stays fixed even if the product is later re-priced.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type SaleLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	// UnitPrice overrides the current product price when set (e.g. a
	// negotiated wholesale price). Nil means "use the product's price".
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

type SaleCreateRequest struct {
	CustomerID    *int64            `json:"customer_id,omitempty"`
	SaleDate      string            `json:"sale_date,omitempty"`
	Discount      float64           `json:"discount"`
	Tax           float64           `json:"tax"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	Items         []SaleLineRequest `json:"items"`
}

type Expense struct {
	ID            int64     `json:"id"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	ExpenseDate   time.Time `json:"expense_date"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	ExpenseDate   string  `json:"expense_date"`
	PaymentMethod string  `json:"payment_method"`
	ReceiptNumber string  `json:"receipt_number"`
}

type ExpenseCategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type ExpenseSummary struct {
	Start      string                 `json:"start"`
	End        string                 `json:"end"`
	Total      float64                `json:"total"`
	ByCategory []ExpenseCategoryTotal `json:"by_category"`
}

// UserAccount is the persistence model for login credentials.
type UserAccount struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor identifies the authenticated user on a request context.
type Actor struct {
	Username string
	Role     Role
}

// DailyTotal is one entry of a sparse per-day sales series.
type DailyTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// MonthlyTotal is one entry of a sparse per-month sales series.
type MonthlyTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// SoldItem is a sale line joined through its parent sale's date window,
// the input shape for product ranking.
type SoldItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Subtotal    float64
}

// ProductSales is an aggregated row of the top-products ranking.
type ProductSales struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// TopProduct is the boundary shape of the top-selling-products endpoint.
type TopProduct struct {
	Name          string  `json:"name"`
	TotalQuantity int     `json:"total_quantity"`
	TotalSales    float64 `json:"total_sales"`
}

type CustomerStats struct {
	Name          string    `json:"name"`
	PurchaseCount int       `json:"purchase_count"`
	TotalSpent    float64   `json:"total_spent"`
	LastPurchase  time.Time `json:"last_purchase"`
}

type SalesReport struct {
	Start              string         `json:"start"`
	End                string         `json:"end"`
	TotalSales         float64        `json:"total_sales"`
	TransactionCount   int            `json:"total_transactions"`
	AverageTransaction float64        `json:"average_transaction"`
	DailyBreakdown     []DailyTotal   `json:"sales_by_day"`
	TopProducts        []ProductSales `json:"top_products"`
}

type DashboardStats struct {
	TodaySales     float64 `json:"today_sales"`
	YesterdaySales float64 `json:"yesterday_sales"`
	MonthSales     float64 `json:"month_sales"`
	LowStockCount  int     `json:"low_stock_count"`
	TotalCustomers int     `json:"total_customers"`
	SalesChange    float64 `json:"sales_change"`
}

type MonthlySeries struct {
	Months []string  `json:"months"`
	Totals []float64 `json:"totals"`
}

type InventorySummary struct {
	TotalStockValue float64 `json:"total_stock_value"`
	LowStockCount   int     `json:"low_stock_count"`
	OutOfStockCount int     `json:"out_of_stock_count"`
}
