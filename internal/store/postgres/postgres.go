package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, price, cost, stock_quantity, min_stock, created_at, updated_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, price, cost, stock_quantity, min_stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Cost, &p.StockQuantity, &p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, category, price, cost, stock_quantity, min_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING id, created_at, updated_at
	`, product.Name, product.Description, product.Category, product.Price, product.Cost, product.StockQuantity, product.MinStock).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, price = $5, cost = $6,
		    stock_quantity = $7, min_stock = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, product.ID, product.Name, product.Description, product.Category, product.Price, product.Cost, product.StockQuantity, product.MinStock).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrProductInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, price, cost, stock_quantity, min_stock, created_at, updated_at
		FROM products
		WHERE stock_quantity < min_stock
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address, customer_type, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, customer_type, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Type, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, address, customer_type, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING id, created_at
	`, customer.Name, customer.Email, customer.Phone, customer.Address, customer.Type).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, customer_type = $6
		WHERE id = $1
		RETURNING created_at
	`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address, customer.Type).
		Scan(&customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := customer
	return &updated, nil
}

// DeleteCustomer removes the customer; sales.customer_id is set to NULL by
// the foreign key so the sales history survives.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)::int FROM customers`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (invoice_number, customer_id, sale_date, total_amount, discount, tax, payment_method, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, sale.InvoiceNumber, sale.CustomerID, sale.SaleDate, sale.TotalAmount, sale.Discount, sale.Tax, sale.PaymentMethod, sale.Notes).
		Scan(&sale.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateInvoice
		}
		return nil, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID

		var name string
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT name, stock_quantity
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, item.ProductID).Scan(&name, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		item.ProductName = name

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&item.ID); err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1
		`, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, customer_id, sale_date, total_amount, discount, tax, payment_method, notes
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.SaleDate, &sale.TotalAmount, &sale.Discount, &sale.Tax, &sale.PaymentMethod, &sale.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	itemsBySale, err := s.loadItems(ctx, []int64{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemsBySale[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_number, customer_id, sale_date, total_amount, discount, tax, payment_method, notes
		FROM sales
		ORDER BY sale_date DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectSales(ctx, rows)
}

// ListSalesBetween returns sales with from <= sale_date < to, ascending.
func (s *Store) ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_number, customer_id, sale_date, total_amount, discount, tax, payment_method, notes
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2
		ORDER BY sale_date ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectSales(ctx, rows)
}

func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock_quantity = p.stock_quantity + si.quantity, updated_at = now()
		FROM sale_items si
		WHERE si.sale_id = $1 AND si.product_id = p.id
	`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) SumSalesBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount),0)::double precision
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2
	`, from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListSoldItemsBetween(ctx context.Context, from, to time.Time) ([]domain.SoldItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, COALESCE(p.name,''), si.quantity, si.subtotal
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		LEFT JOIN products p ON p.id = si.product_id
		WHERE s.sale_date >= $1 AND s.sale_date < $2
		ORDER BY si.id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SoldItem, 0, 128)
	for rows.Next() {
		var item domain.SoldItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListExpenses(ctx context.Context, category string, limit int) ([]domain.Expense, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, description, amount, expense_date, payment_method, receipt_number, created_at
		FROM expenses
		WHERE ($1 = '' OR category = $1)
		ORDER BY expense_date DESC, id DESC
		LIMIT $2
	`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, limit)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.ExpenseDate, &e.PaymentMethod, &e.ReceiptNumber, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (category, description, amount, expense_date, payment_method, receipt_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		RETURNING id, created_at
	`, expense.Category, expense.Description, expense.Amount, expense.ExpenseDate, expense.PaymentMethod, expense.ReceiptNumber).
		Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := expense
	return &created, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ExpenseTotalsByCategory(ctx context.Context, from, to time.Time) ([]domain.ExpenseCategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount),0)::double precision
		FROM expenses
		WHERE expense_date >= $1 AND expense_date < $2
		GROUP BY category
		ORDER BY 2 DESC, category
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]domain.ExpenseCategoryTotal, 0, 16)
	for rows.Next() {
		var t domain.ExpenseCategoryTotal
		if err := rows.Scan(&t.Category, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING id, created_at
	`, user.Username, user.Email, user.PasswordHash, string(user.Role), user.Active).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, active, created_at, last_login
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.Active, &user.CreatedAt, &user.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, role, active, created_at, last_login
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		var role string
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &role, &user.Active, &user.CreatedAt, &user.LastLogin); err != nil {
			return nil, err
		}
		user.Role = domain.Role(role)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = $2 WHERE username = $1
	`, username, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) collectSales(ctx context.Context, rows *sql.Rows) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 64)
	saleIDs := make([]int64, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.SaleDate, &sale.TotalAmount, &sale.Discount, &sale.Tax, &sale.PaymentMethod, &sale.Notes); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsBySale, err := s.loadItems(ctx, saleIDs)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadItems(ctx context.Context, saleIDs []int64) (map[int64][]domain.SaleItem, error) {
	itemsBySale := make(map[int64][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return itemsBySale, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, COALESCE(p.name,''), si.quantity, si.unit_price, si.subtotal
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.id ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return itemsBySale, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Cost, &p.StockQuantity, &p.MinStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
