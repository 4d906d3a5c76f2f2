package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

// Requires a disposable database. Migrations are applied on start so the
// schema is always current.
func TestSaleLifecycleAdjustsStock(t *testing.T) {
	databaseURL := os.Getenv("BIZDASH_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BIZDASH_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	product, err := s.CreateProduct(ctx, domain.Product{
		Name:          fmt.Sprintf("it-widget-%d", stamp),
		Category:      "integration",
		Price:         10,
		Cost:          4,
		StockQuantity: 10,
		MinStock:      2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	sale, err := s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: fmt.Sprintf("INV-IT-%d", stamp),
		SaleDate:      time.Now().UTC(),
		TotalAmount:   20,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Quantity: 2, UnitPrice: 10, Subtotal: 20},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, sale.ID)
	})

	afterSale, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if afterSale.StockQuantity != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", afterSale.StockQuantity)
	}

	// A second sale under the same invoice number must not go through.
	_, err = s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: sale.InvoiceNumber,
		SaleDate:      time.Now().UTC(),
		TotalAmount:   10,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Quantity: 1, UnitPrice: 10, Subtotal: 10},
		},
	})
	if !errors.Is(err, store.ErrDuplicateInvoice) {
		t.Fatalf("expected duplicate invoice error, got %v", err)
	}

	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	restored, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if restored.StockQuantity != 10 {
		t.Fatalf("expected stock 10 after deleting sale, got %d", restored.StockQuantity)
	}
}
