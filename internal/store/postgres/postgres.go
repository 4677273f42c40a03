package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

//go:embed schema.sql
var schema string

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

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateShopAccount(ctx context.Context, shop domain.Shop, owner domain.UserAccount) error {
	email := strings.ToLower(strings.TrimSpace(owner.Email))
	if shop.ID == "" || owner.ID == "" || email == "" || strings.TrimSpace(owner.Password) == "" {
		return store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shops (id, name, address, gst_number, bank_name, bank_account_number, bank_ifsc, owner_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, shop.ID, shop.Name, shop.Address, shop.GSTNumber, shop.BankName, shop.BankAccountNumber, shop.BankIFSC, owner.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, shop_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,true,now())
	`, owner.ID, owner.Name, email, owner.Password, shop.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}

	return tx.Commit()
}

const shopColumns = `id, name, address, gst_number, bank_name, bank_account_number, bank_ifsc, owner_id, created_at`

func scanShop(row interface{ Scan(...any) error }) (domain.Shop, error) {
	var shop domain.Shop
	err := row.Scan(&shop.ID, &shop.Name, &shop.Address, &shop.GSTNumber, &shop.BankName, &shop.BankAccountNumber, &shop.BankIFSC, &shop.OwnerID, &shop.CreatedAt)
	shop.CreatedAt = shop.CreatedAt.UTC()
	return shop, err
}

func (s *Store) GetShop(ctx context.Context, shopID string) (*domain.Shop, error) {
	shop, err := scanShop(s.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &shop, nil
}

func (s *Store) ListShops(ctx context.Context) ([]domain.Shop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := make([]domain.Shop, 0, 16)
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shops, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, shop_id, active, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.ShopID, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID string, password string) error {
	if strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE id = $1`, userID, password)
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

const productColumns = `id, name, hsn_code, category, unit, gst_rate, selling_price, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.HSNCode, &p.Category, &p.Unit, &p.GSTRate, &p.SellingPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" {
		return nil, store.ErrValidation
	}

	created, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, hsn_code, category, unit, gst_rate, selling_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true,now(),now())
		RETURNING `+productColumns,
		product.ID, product.Name, product.HSNCode, product.Category, product.Unit, product.GSTRate, product.SellingPrice))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name = $1
		ORDER BY created_at
		LIMIT 1
	`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListCatalog(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true OR $1
		ORDER BY category, name
	`, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProductPricing(ctx context.Context, id string, price decimal.Decimal, gstRate int) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET selling_price = $2, gst_rate = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, price, gstRate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) SetProductActive(ctx context.Context, id string, active bool) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

const inventoryColumns = `shop_id, product_id, current_stock, selling_price, last_updated`

func scanInventory(row interface{ Scan(...any) error }) (domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(&inv.ShopID, &inv.ProductID, &inv.CurrentStock, &inv.SellingPrice, &inv.LastUpdated)
	inv.LastUpdated = inv.LastUpdated.UTC()
	return inv, err
}

func (s *Store) GetInventory(ctx context.Context, scope domain.ShopScope, productID string) (*domain.Inventory, error) {
	inv, err := scanInventory(s.db.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE shop_id = $1 AND product_id = $2
	`, scope.ShopID, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Store) ListInventory(ctx context.Context, scope domain.ShopScope) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.shop_id, i.product_id, i.current_stock, i.selling_price, i.last_updated,
			p.id, p.name, p.hsn_code, p.category, p.unit, p.gst_rate, p.selling_price, p.active, p.created_at, p.updated_at
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.shop_id = $1
		ORDER BY p.name, p.id
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		var item domain.InventoryItem
		inv := &item.Inventory
		p := &item.Product
		if err := rows.Scan(
			&inv.ShopID, &inv.ProductID, &inv.CurrentStock, &inv.SellingPrice, &inv.LastUpdated,
			&p.ID, &p.Name, &p.HSNCode, &p.Category, &p.Unit, &p.GSTRate, &p.SellingPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		inv.LastUpdated = inv.LastUpdated.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ReceiveStock(ctx context.Context, scope domain.ShopScope, productID string, qty int, priceOverride decimal.Decimal, defaultPrice decimal.Decimal) (*domain.Inventory, error) {
	if qty < 1 {
		return nil, store.ErrValidation
	}
	price := defaultPrice
	if priceOverride.IsPositive() {
		price = priceOverride
	}

	inv, err := scanInventory(s.db.QueryRowContext(ctx, `
		INSERT INTO inventory (shop_id, product_id, current_stock, selling_price, last_updated)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (shop_id, product_id)
		DO UPDATE SET
			current_stock = inventory.current_stock + EXCLUDED.current_stock,
			selling_price = CASE WHEN $5 THEN EXCLUDED.selling_price ELSE inventory.selling_price END,
			last_updated = now()
		RETURNING `+inventoryColumns,
		scope.ShopID, productID, qty, price, priceOverride.IsPositive()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Store) DecrementStock(ctx context.Context, scope domain.ShopScope, productID string, qty int) (*domain.Inventory, error) {
	if qty < 1 {
		return nil, store.ErrValidation
	}
	inv, err := scanInventory(s.db.QueryRowContext(ctx, `
		UPDATE inventory
		SET current_stock = current_stock - $3, last_updated = now()
		WHERE shop_id = $1 AND product_id = $2 AND current_stock >= $3
		RETURNING `+inventoryColumns,
		scope.ShopID, productID, qty))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInsufficientStock
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Store) SetInventoryPrice(ctx context.Context, scope domain.ShopScope, productID string, price decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET selling_price = $3, last_updated = now()
		WHERE shop_id = $1 AND product_id = $2
	`, scope.ShopID, productID, price)
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

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ID == "" || purchase.ShopID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = purchase.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, shop_id, supplier_name, invoice_number, purchase_date, total_amount, total_gst, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.ShopID, purchase.SupplierName, purchase.InvoiceNumber, purchase.PurchaseDate, purchase.TotalAmount, purchase.TotalGST, purchase.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i, line := range purchase.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_items (purchase_id, line_no, product_id, product_name, quantity, purchase_price, gst_rate)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, purchase.ID, i+1, line.ProductID, line.ProductName, line.Quantity, line.PurchasePrice, line.GSTRate)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, supplier_name, invoice_number, purchase_date, total_amount, total_gst, created_at
		FROM purchases
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR purchase_date >= $2)
			AND ($3::timestamptz IS NULL OR purchase_date < $3)
		ORDER BY created_at DESC, seq DESC
	`, scope.ShopID, nullBound(from), nullBound(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ShopID, &p.SupplierName, &p.InvoiceNumber, &p.PurchaseDate, &p.TotalAmount, &p.TotalGST, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.PurchaseDate = p.PurchaseDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		purchases = append(purchases, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return purchases, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT purchase_id, product_id, product_name, quantity, purchase_price, gst_rate
		FROM purchase_items
		WHERE purchase_id = ANY($1)
		ORDER BY purchase_id, line_no
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	lines := make(map[string][]domain.PurchaseLine, len(ids))
	for itemRows.Next() {
		var purchaseID string
		var line domain.PurchaseLine
		if err := itemRows.Scan(&purchaseID, &line.ProductID, &line.ProductName, &line.Quantity, &line.PurchasePrice, &line.GSTRate); err != nil {
			return nil, err
		}
		lines[purchaseID] = append(lines[purchaseID], line)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Items = lines[purchases[i].ID]
	}
	return purchases, nil
}

func (s *Store) SummarizePurchases(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.PurchaseTotals, error) {
	var totals domain.PurchaseTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(total_gst), 0)
		FROM purchases
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR purchase_date >= $2)
			AND ($3::timestamptz IS NULL OR purchase_date < $3)
	`, scope.ShopID, nullBound(from), nullBound(to)).Scan(&totals.Count, &totals.TotalAmount, &totals.TotalGST)
	return totals, err
}

func (s *Store) PurchaseTrend(ctx context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error) {
	return s.trend(ctx, `
		SELECT to_char(created_at AT TIME ZONE $2, 'YYYY-MM-DD') AS day, COALESCE(SUM(total_amount), 0)
		FROM purchases
		WHERE shop_id = $1
		GROUP BY day
		ORDER BY day
	`, scope.ShopID, zoneName(loc))
}

func (s *Store) trend(ctx context.Context, query string, args ...any) ([]domain.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.TrendPoint, 0, 64)
	for rows.Next() {
		var point domain.TrendPoint
		if err := rows.Scan(&point.Date, &point.Total); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.ShopID == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = sale.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, shop_id, customer_name, customer_phone, customer_address, customer_tax_id,
			subtotal, total_gst, grand_total, amount_received, pending_amount, payment_status,
			sale_date, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.ShopID, sale.CustomerName, sale.CustomerPhone, sale.CustomerAddress, sale.CustomerTaxID,
		sale.Subtotal, sale.TotalGST, sale.GrandTotal, sale.AmountReceived, sale.PendingAmount, string(sale.PaymentStatus),
		sale.SaleDate, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i, line := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, product_name, hsn_code, quantity, selling_price, gst_rate)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sale.ID, i+1, line.ProductID, line.ProductName, line.HSNCode, line.Quantity, line.SellingPrice, line.GSTRate)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

const saleColumns = `id, shop_id, customer_name, customer_phone, customer_address, customer_tax_id,
	subtotal, total_gst, grand_total, amount_received, pending_amount, payment_status, sale_date, created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var status string
	err := row.Scan(
		&sale.ID, &sale.ShopID, &sale.CustomerName, &sale.CustomerPhone, &sale.CustomerAddress, &sale.CustomerTaxID,
		&sale.Subtotal, &sale.TotalGST, &sale.GrandTotal, &sale.AmountReceived, &sale.PendingAmount, &status,
		&sale.SaleDate, &sale.CreatedAt,
	)
	sale.PaymentStatus = domain.PaymentStatus(status)
	sale.SaleDate = sale.SaleDate.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, scope domain.ShopScope, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1 AND shop_id = $2
	`, id, scope.ShopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lines, err := s.loadSaleLines(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = lines[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, scope domain.ShopScope, query store.SaleQuery) ([]domain.Sale, error) {
	order := "DESC"
	if query.OldestFirst {
		order = "ASC"
	}
	limit := query.Limit
	if limit < 1 {
		limit = 10000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE shop_id = $1
			AND ($2 = '' OR customer_phone = $2)
			AND ($3::timestamptz IS NULL OR sale_date >= $3)
			AND ($4::timestamptz IS NULL OR sale_date < $4)
			AND (NOT $5 OR pending_amount > 0)
		ORDER BY created_at `+order+`, seq `+order+`
		LIMIT $6
	`, scope.ShopID, query.CustomerPhone, nullBound(query.From), nullBound(query.To), query.PendingOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	lines, err := s.loadSaleLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, hsn_code, quantity, selling_price, gst_rate
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make(map[string][]domain.SaleLine, len(saleIDs))
	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.HSNCode, &line.Quantity, &line.SellingPrice, &line.GSTRate); err != nil {
			return nil, err
		}
		lines[saleID] = append(lines[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) ApplySalePayment(ctx context.Context, scope domain.ShopScope, saleID string, amount decimal.Decimal) (decimal.Decimal, *domain.Sale, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil, store.ErrValidation
	}

	var applied decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		WITH target AS (
			SELECT id, LEAST(pending_amount, $3::numeric) AS pay
			FROM sales
			WHERE id = $1 AND shop_id = $2 AND pending_amount > 0
			FOR UPDATE
		)
		UPDATE sales
		SET amount_received = sales.amount_received + target.pay,
			pending_amount = sales.pending_amount - target.pay,
			payment_status = CASE WHEN sales.pending_amount - target.pay = 0 THEN 'PAID' ELSE 'PARTIAL' END
		FROM target
		WHERE sales.id = target.id
		RETURNING target.pay
	`, saleID, scope.ShopID, amount).Scan(&applied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil, store.ErrNotFound
		}
		return decimal.Zero, nil, err
	}

	sale, err := s.GetSale(ctx, scope, saleID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return applied, sale, nil
}

func (s *Store) SummarizeSales(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.SalesTotals, error) {
	var totals domain.SalesTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(subtotal), 0), COALESCE(SUM(total_gst), 0), COALESCE(SUM(grand_total), 0),
			COALESCE(SUM(amount_received), 0), COALESCE(SUM(pending_amount), 0)
		FROM sales
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR sale_date >= $2)
			AND ($3::timestamptz IS NULL OR sale_date < $3)
	`, scope.ShopID, nullBound(from), nullBound(to)).Scan(
		&totals.Count, &totals.Subtotal, &totals.TotalGST, &totals.GrandTotal, &totals.AmountReceived, &totals.PendingAmount,
	)
	return totals, err
}

func (s *Store) SalesTrend(ctx context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error) {
	return s.trend(ctx, `
		SELECT to_char(created_at AT TIME ZONE $2, 'YYYY-MM-DD') AS day, COALESCE(SUM(grand_total), 0)
		FROM sales
		WHERE shop_id = $1
		GROUP BY day
		ORDER BY day
	`, scope.ShopID, zoneName(loc))
}

func (s *Store) DailySales(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(sale_date AT TIME ZONE $4, 'YYYY-MM-DD') AS day,
			COUNT(*),
			COALESCE(SUM(subtotal), 0), COALESCE(SUM(total_gst), 0), COALESCE(SUM(grand_total), 0),
			COALESCE(SUM(amount_received), 0), COALESCE(SUM(pending_amount), 0)
		FROM sales
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR sale_date >= $2)
			AND ($3::timestamptz IS NULL OR sale_date < $3)
		GROUP BY day
		ORDER BY day
	`, scope.ShopID, nullBound(from), nullBound(to), zoneName(loc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.DailySalesRow, 0, 31)
	for rows.Next() {
		var row domain.DailySalesRow
		if err := rows.Scan(&row.Date, &row.Sales, &row.Subtotal, &row.TotalGST, &row.GrandTotal, &row.Received, &row.Pending); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SoldQuantities(ctx context.Context, scope domain.ShopScope, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, COALESCE(SUM(si.quantity), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.shop_id = $1 AND s.created_at >= $2
		GROUP BY si.product_id
	`, scope.ShopID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sold := make(map[string]int)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		sold[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *Store) OutstandingByCustomer(ctx context.Context, scope domain.ShopScope) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_phone, SUM(pending_amount)
		FROM sales
		WHERE shop_id = $1 AND pending_amount > 0 AND customer_phone <> ''
		GROUP BY customer_phone
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outstanding := make(map[string]decimal.Decimal)
	for rows.Next() {
		var phone string
		var pending decimal.Decimal
		if err := rows.Scan(&phone, &pending); err != nil {
			return nil, err
		}
		outstanding[phone] = pending
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outstanding, nil
}

const customerColumns = `shop_id, phone, name, address, tax_id, total_visits, total_spent, total_received, total_pending,
	first_purchase_at, last_purchase_at, last_payment_at, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var c domain.Customer
	var first, last, paid sql.NullTime
	err := row.Scan(&c.ShopID, &c.Phone, &c.Name, &c.Address, &c.TaxID, &c.TotalVisits, &c.TotalSpent, &c.TotalReceived, &c.TotalPending,
		&first, &last, &paid, &c.CreatedAt)
	c.FirstPurchaseAt = timePtr(first)
	c.LastPurchaseAt = timePtr(last)
	c.LastPaymentAt = timePtr(paid)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

func (s *Store) UpsertCustomerSale(ctx context.Context, scope domain.ShopScope, entry domain.CustomerSaleEntry) (*domain.Customer, error) {
	if entry.Phone == "" {
		return nil, store.ErrValidation
	}
	var paidAt *time.Time
	if entry.Received.IsPositive() {
		paidAt = &entry.At
	}

	customer, err := scanCustomer(s.db.QueryRowContext(ctx, `
		INSERT INTO customers (
			shop_id, phone, name, address, tax_id, total_visits, total_spent, total_received, total_pending,
			first_purchase_at, last_purchase_at, last_payment_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,1,$6,$7,$8,$9,$9,$10,$9)
		ON CONFLICT (shop_id, phone)
		DO UPDATE SET
			total_visits = customers.total_visits + 1,
			total_spent = customers.total_spent + EXCLUDED.total_spent,
			total_received = customers.total_received + EXCLUDED.total_received,
			total_pending = customers.total_pending + EXCLUDED.total_pending,
			last_purchase_at = EXCLUDED.last_purchase_at,
			last_payment_at = COALESCE(EXCLUDED.last_payment_at, customers.last_payment_at)
		RETURNING `+customerColumns,
		scope.ShopID, entry.Phone, entry.Name, entry.Address, entry.TaxID,
		entry.GrandTotal, entry.Received, entry.Pending, entry.At, nullTime(paidAt)))
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ApplyCustomerPayment(ctx context.Context, scope domain.ShopScope, phone string, amount decimal.Decimal, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET total_received = total_received + $3,
			total_pending = GREATEST(0, total_pending - $3),
			last_payment_at = $4
		WHERE shop_id = $1 AND phone = $2
	`, scope.ShopID, phone, amount, at)
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

func (s *Store) GetCustomer(ctx context.Context, scope domain.ShopScope, phone string) (*domain.Customer, error) {
	customer, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE shop_id = $1 AND phone = $2
	`, scope.ShopID, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, scope domain.ShopScope) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE shop_id = $1
		ORDER BY name, phone
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CustomerLedgerTotals(ctx context.Context, scope domain.ShopScope) (map[string]domain.LedgerTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_phone,
			COALESCE(SUM(grand_total), 0),
			COALESCE(SUM(COALESCE(amount_received, grand_total)), 0),
			COALESCE(SUM(COALESCE(pending_amount, 0)), 0)
		FROM sales
		WHERE shop_id = $1 AND customer_phone <> ''
		GROUP BY customer_phone
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]domain.LedgerTotals)
	for rows.Next() {
		var phone string
		var entry domain.LedgerTotals
		if err := rows.Scan(&phone, &entry.TotalSpent, &entry.TotalReceived, &entry.TotalPending); err != nil {
			return nil, err
		}
		totals[phone] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, shop_id, actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ShopID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, scope.ShopID, nullBound(from), nullBound(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
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

// nullBound maps an open (zero) window bound to SQL NULL.
func nullBound(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}
