package store

import (
	"context"
	"errors"
	"time"

	"bizdash/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateInvoice signals a unique-index collision on the invoice
	// number; the service retries with a disambiguated number.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")
	// ErrProductInUse is returned when deleting a product that historical
	// sale lines still reference.
	ErrProductInUse = errors.New("product referenced by sales")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CountCustomers(ctx context.Context) (int, error)

	// CreateSale persists the sale and its items and decrements product
	// stock in one transaction. An invoice-number collision yields
	// ErrDuplicateInvoice with nothing persisted.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error)
	// DeleteSale removes the sale with its items and restores the stock
	// the sale consumed.
	DeleteSale(ctx context.Context, id int64) error
	SumSalesBetween(ctx context.Context, from, to time.Time) (float64, error)
	ListSoldItemsBetween(ctx context.Context, from, to time.Time) ([]domain.SoldItem, error)

	ListExpenses(ctx context.Context, category string, limit int) ([]domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ExpenseTotalsByCategory(ctx context.Context, from, to time.Time) ([]domain.ExpenseCategoryTotal, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
}
