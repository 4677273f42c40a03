package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

type saleRecord struct {
	sale domain.Sale
	seq  int64
}

type purchaseRecord struct {
	purchase domain.Purchase
	seq      int64
}

type Store struct {
	mu           sync.RWMutex
	seq          int64
	shops        map[string]domain.Shop
	usersByEmail map[string]domain.UserAccount
	products     map[string]domain.Product
	inventory    map[string]map[string]domain.Inventory
	purchases    map[string]purchaseRecord
	sales        map[string]saleRecord
	customers    map[string]map[string]domain.Customer
	auditLogs    []domain.AuditLog
}

func New() *Store {
	return &Store{
		shops:        make(map[string]domain.Shop),
		usersByEmail: make(map[string]domain.UserAccount),
		products:     make(map[string]domain.Product),
		inventory:    make(map[string]map[string]domain.Inventory),
		purchases:    make(map[string]purchaseRecord),
		sales:        make(map[string]saleRecord),
		customers:    make(map[string]map[string]domain.Customer),
		auditLogs:    make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded builds a store holding one demo shop with a stocked catalog, for
// dev mode. The owner password comes from SEED_OWNER_PASSWORD; a dev default
// is used with a warning when it is unset.
func NewSeeded() *Store {
	s := New()

	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" {
		zap.S().Warn("[memory-store] using default dev credentials, set SEED_OWNER_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(ownerPwd), bcrypt.DefaultCost)
	if err != nil {
		zap.S().Fatalf("[memory-store] failed to hash seed password: %v", err)
	}

	now := time.Now().UTC()
	shop := domain.Shop{
		ID:                "shop-demo",
		Name:              "Demo Kirana Store",
		Address:           "12 MG Road, Pune",
		GSTNumber:         "27ABCDE1234F1Z5",
		BankName:          "State Bank of India",
		BankAccountNumber: "00000012345678",
		BankIFSC:          "SBIN0000001",
		OwnerID:           "usr-demo",
		CreatedAt:         now,
	}
	owner := domain.UserAccount{
		ID:        "usr-demo",
		Name:      "Demo Owner",
		Email:     envOr("SEED_OWNER_EMAIL", "owner@example.com"),
		Password:  string(hash),
		ShopID:    shop.ID,
		Active:    true,
		CreatedAt: now,
	}
	_ = s.CreateShopAccount(context.Background(), shop, owner)

	seed := []struct {
		product domain.Product
		stock   int
	}{
		{domain.Product{Name: "Basmati Rice 5kg", HSNCode: "1006", Category: "grocery", Unit: "bag", GSTRate: 5, SellingPrice: decimal.NewFromInt(650)}, 40},
		{domain.Product{Name: "Toor Dal 1kg", HSNCode: "0713", Category: "grocery", Unit: "kg", GSTRate: 0, SellingPrice: decimal.NewFromInt(160)}, 25},
		{domain.Product{Name: "Sunflower Oil 1L", HSNCode: "1512", Category: "grocery", Unit: "bottle", GSTRate: 5, SellingPrice: decimal.NewFromInt(145)}, 8},
		{domain.Product{Name: "Bath Soap", HSNCode: "3401", Category: "household", Unit: "pcs", GSTRate: 18, SellingPrice: decimal.NewFromInt(42)}, 60},
		{domain.Product{Name: "Instant Coffee 100g", HSNCode: "2101", Category: "beverage", Unit: "jar", GSTRate: 18, SellingPrice: decimal.NewFromInt(310)}, 12},
		{domain.Product{Name: "Aerated Drink 750ml", HSNCode: "2202", Category: "beverage", Unit: "bottle", GSTRate: 28, SellingPrice: decimal.NewFromInt(40)}, 5},
	}
	scope := domain.ShopScope{ShopID: shop.ID, UserID: owner.ID}
	for _, item := range seed {
		item.product.ID = xid.New("prd")
		created, err := s.CreateProduct(context.Background(), item.product)
		if err != nil {
			continue
		}
		_, _ = s.ReceiveStock(context.Background(), scope, created.ID, item.stock, decimal.Zero, created.SellingPrice)
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) CreateShopAccount(_ context.Context, shop domain.Shop, owner domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(owner.Email))
	if shop.ID == "" || owner.ID == "" || email == "" || strings.TrimSpace(owner.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByEmail[email]; exists {
		return store.ErrConflict
	}
	if _, exists := s.shops[shop.ID]; exists {
		return store.ErrConflict
	}

	now := time.Now().UTC()
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = now
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = now
	}
	owner.Email = email
	owner.ShopID = shop.ID
	shop.OwnerID = owner.ID

	s.shops[shop.ID] = shop
	s.usersByEmail[email] = owner
	return nil
}

func (s *Store) GetShop(_ context.Context, shopID string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop, ok := s.shops[shopID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shop, nil
}

func (s *Store) ListShops(_ context.Context) ([]domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shops := make([]domain.Shop, 0, len(s.shops))
	for _, shop := range s.shops {
		shops = append(shops, shop)
	}
	slices.SortFunc(shops, func(a, b domain.Shop) int {
		return cmpString(a.ID, b.ID)
	})
	return shops, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, userID string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	for email, user := range s.usersByEmail {
		if user.ID != userID {
			continue
		}
		user.Password = password
		s.usersByEmail[email] = user
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}

	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Product
	for _, product := range s.products {
		if product.Name != name {
			continue
		}
		if found == nil || product.CreatedAt.Before(found.CreatedAt) {
			match := product
			found = &match
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListCatalog(_ context.Context, includeArchived bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !includeArchived {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) UpdateProductPricing(_ context.Context, id string, price decimal.Decimal, gstRate int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.SellingPrice = price
	product.GSTRate = gstRate
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) SetProductActive(_ context.Context, id string, active bool) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Active = active
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetInventory(_ context.Context, scope domain.ShopScope, productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.inventory[scope.ShopID][productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) ListInventory(_ context.Context, scope domain.ShopScope) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.inventory[scope.ShopID]
	items := make([]domain.InventoryItem, 0, len(rows))
	for productID, inv := range rows {
		product, ok := s.products[productID]
		if !ok {
			continue
		}
		items = append(items, domain.InventoryItem{Inventory: inv, Product: product})
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Product.Name == b.Product.Name {
			return cmpString(a.Product.ID, b.Product.ID)
		}
		return cmpString(a.Product.Name, b.Product.Name)
	})
	return items, nil
}

func (s *Store) ReceiveStock(_ context.Context, scope domain.ShopScope, productID string, qty int, priceOverride decimal.Decimal, defaultPrice decimal.Decimal) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 {
		return nil, store.ErrValidation
	}
	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	rows := s.inventory[scope.ShopID]
	if rows == nil {
		rows = make(map[string]domain.Inventory)
		s.inventory[scope.ShopID] = rows
	}

	now := time.Now().UTC()
	inv, exists := rows[productID]
	if exists {
		inv.CurrentStock += qty
		if priceOverride.IsPositive() {
			inv.SellingPrice = priceOverride
		}
	} else {
		price := defaultPrice
		if priceOverride.IsPositive() {
			price = priceOverride
		}
		inv = domain.Inventory{
			ShopID:       scope.ShopID,
			ProductID:    productID,
			CurrentStock: qty,
			SellingPrice: price,
		}
	}
	inv.LastUpdated = now
	rows[productID] = inv
	updated := inv
	return &updated, nil
}

func (s *Store) DecrementStock(_ context.Context, scope domain.ShopScope, productID string, qty int) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 {
		return nil, store.ErrValidation
	}
	inv, ok := s.inventory[scope.ShopID][productID]
	if !ok || inv.CurrentStock < qty {
		return nil, store.ErrInsufficientStock
	}
	inv.CurrentStock -= qty
	inv.LastUpdated = time.Now().UTC()
	s.inventory[scope.ShopID][productID] = inv
	updated := inv
	return &updated, nil
}

func (s *Store) SetInventoryPrice(_ context.Context, scope domain.ShopScope, productID string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.inventory[scope.ShopID][productID]
	if !ok {
		return store.ErrNotFound
	}
	inv.SellingPrice = price
	inv.LastUpdated = time.Now().UTC()
	s.inventory[scope.ShopID][productID] = inv
	return nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" || purchase.ShopID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.purchases[purchase.ID]; exists {
		return nil, store.ErrConflict
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = purchase.CreatedAt
	}
	purchase = clonePurchase(purchase)
	s.purchases[purchase.ID] = purchaseRecord{purchase: purchase, seq: s.nextSeq()}
	created := clonePurchase(purchase)
	return &created, nil
}

func (s *Store) ListPurchases(_ context.Context, scope domain.ShopScope, from time.Time, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]purchaseRecord, 0, 32)
	for _, rec := range s.purchases {
		if rec.purchase.ShopID != scope.ShopID || !inWindow(rec.purchase.PurchaseDate, from, to) {
			continue
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b purchaseRecord) int {
		return -compareCreated(a.purchase.CreatedAt, a.seq, b.purchase.CreatedAt, b.seq)
	})

	result := make([]domain.Purchase, 0, len(records))
	for _, rec := range records {
		result = append(result, clonePurchase(rec.purchase))
	}
	return result, nil
}

func (s *Store) SummarizePurchases(_ context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.PurchaseTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.PurchaseTotals{}
	for _, rec := range s.purchases {
		p := rec.purchase
		if p.ShopID != scope.ShopID || !inWindow(p.PurchaseDate, from, to) {
			continue
		}
		totals.Count++
		totals.TotalAmount = totals.TotalAmount.Add(p.TotalAmount)
		totals.TotalGST = totals.TotalGST.Add(p.TotalGST)
	}
	return totals, nil
}

func (s *Store) PurchaseTrend(_ context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[string]decimal.Decimal)
	for _, rec := range s.purchases {
		if rec.purchase.ShopID != scope.ShopID {
			continue
		}
		day := rec.purchase.CreatedAt.In(loc).Format(time.DateOnly)
		buckets[day] = buckets[day].Add(rec.purchase.TotalAmount)
	}
	return trendFromBuckets(buckets), nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || sale.ShopID == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.sales[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = sale.CreatedAt
	}
	sale = cloneSale(sale)
	s.sales[sale.ID] = saleRecord{sale: sale, seq: s.nextSeq()}
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, scope domain.ShopScope, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sales[id]
	if !ok || rec.sale.ShopID != scope.ShopID {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(rec.sale)
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, scope domain.ShopScope, query store.SaleQuery) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]saleRecord, 0, 64)
	for _, rec := range s.sales {
		sale := rec.sale
		if sale.ShopID != scope.ShopID {
			continue
		}
		if query.CustomerPhone != "" && sale.CustomerPhone != query.CustomerPhone {
			continue
		}
		if query.PendingOnly && !sale.PendingAmount.IsPositive() {
			continue
		}
		if !inWindow(sale.SaleDate, query.From, query.To) {
			continue
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b saleRecord) int {
		cmp := compareCreated(a.sale.CreatedAt, a.seq, b.sale.CreatedAt, b.seq)
		if query.OldestFirst {
			return cmp
		}
		return -cmp
	})
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}

	result := make([]domain.Sale, 0, len(records))
	for _, rec := range records {
		result = append(result, cloneSale(rec.sale))
	}
	return result, nil
}

func (s *Store) ApplySalePayment(_ context.Context, scope domain.ShopScope, saleID string, amount decimal.Decimal) (decimal.Decimal, *domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !amount.IsPositive() {
		return decimal.Zero, nil, store.ErrValidation
	}
	rec, ok := s.sales[saleID]
	if !ok || rec.sale.ShopID != scope.ShopID || !rec.sale.PendingAmount.IsPositive() {
		return decimal.Zero, nil, store.ErrNotFound
	}

	pay := decimal.Min(rec.sale.PendingAmount, amount)
	rec.sale.AmountReceived = rec.sale.AmountReceived.Add(pay)
	rec.sale.PendingAmount = rec.sale.PendingAmount.Sub(pay)
	if rec.sale.PendingAmount.IsZero() {
		rec.sale.PaymentStatus = domain.PaymentPaid
	} else {
		rec.sale.PaymentStatus = domain.PaymentPartial
	}
	s.sales[saleID] = rec

	updated := cloneSale(rec.sale)
	return pay, &updated, nil
}

func (s *Store) SummarizeSales(_ context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.SalesTotals{}
	for _, rec := range s.sales {
		sale := rec.sale
		if sale.ShopID != scope.ShopID || !inWindow(sale.SaleDate, from, to) {
			continue
		}
		totals.Count++
		totals.Subtotal = totals.Subtotal.Add(sale.Subtotal)
		totals.TotalGST = totals.TotalGST.Add(sale.TotalGST)
		totals.GrandTotal = totals.GrandTotal.Add(sale.GrandTotal)
		totals.AmountReceived = totals.AmountReceived.Add(sale.AmountReceived)
		totals.PendingAmount = totals.PendingAmount.Add(sale.PendingAmount)
	}
	return totals, nil
}

func (s *Store) SalesTrend(_ context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[string]decimal.Decimal)
	for _, rec := range s.sales {
		if rec.sale.ShopID != scope.ShopID {
			continue
		}
		day := rec.sale.CreatedAt.In(loc).Format(time.DateOnly)
		buckets[day] = buckets[day].Add(rec.sale.GrandTotal)
	}
	return trendFromBuckets(buckets), nil
}

func (s *Store) DailySales(_ context.Context, scope domain.ShopScope, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]*domain.DailySalesRow)
	for _, rec := range s.sales {
		sale := rec.sale
		if sale.ShopID != scope.ShopID || !inWindow(sale.SaleDate, from, to) {
			continue
		}
		day := sale.SaleDate.In(loc).Format(time.DateOnly)
		row := byDay[day]
		if row == nil {
			row = &domain.DailySalesRow{Date: day}
			byDay[day] = row
		}
		row.Sales++
		row.Subtotal = row.Subtotal.Add(sale.Subtotal)
		row.TotalGST = row.TotalGST.Add(sale.TotalGST)
		row.GrandTotal = row.GrandTotal.Add(sale.GrandTotal)
		row.Received = row.Received.Add(sale.AmountReceived)
		row.Pending = row.Pending.Add(sale.PendingAmount)
	}

	rows := make([]domain.DailySalesRow, 0, len(byDay))
	for _, row := range byDay {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.DailySalesRow) int {
		return cmpString(a.Date, b.Date)
	})
	return rows, nil
}

func (s *Store) SoldQuantities(_ context.Context, scope domain.ShopScope, since time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[string]int)
	for _, rec := range s.sales {
		if rec.sale.ShopID != scope.ShopID || rec.sale.CreatedAt.Before(since) {
			continue
		}
		for _, line := range rec.sale.Items {
			sold[line.ProductID] += line.Quantity
		}
	}
	return sold, nil
}

func (s *Store) OutstandingByCustomer(_ context.Context, scope domain.ShopScope) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outstanding := make(map[string]decimal.Decimal)
	for _, rec := range s.sales {
		// Walk-in sales have no ledger to collect against.
		if rec.sale.ShopID != scope.ShopID || rec.sale.CustomerPhone == "" || !rec.sale.PendingAmount.IsPositive() {
			continue
		}
		phone := rec.sale.CustomerPhone
		outstanding[phone] = outstanding[phone].Add(rec.sale.PendingAmount)
	}
	return outstanding, nil
}

func (s *Store) UpsertCustomerSale(_ context.Context, scope domain.ShopScope, entry domain.CustomerSaleEntry) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Phone == "" {
		return nil, store.ErrValidation
	}
	rows := s.customers[scope.ShopID]
	if rows == nil {
		rows = make(map[string]domain.Customer)
		s.customers[scope.ShopID] = rows
	}

	at := entry.At
	customer, exists := rows[entry.Phone]
	if !exists {
		customer = domain.Customer{
			ShopID:          scope.ShopID,
			Phone:           entry.Phone,
			Name:            entry.Name,
			Address:         entry.Address,
			TaxID:           entry.TaxID,
			FirstPurchaseAt: &at,
			CreatedAt:       at,
		}
	}
	customer.TotalVisits++
	customer.TotalSpent = customer.TotalSpent.Add(entry.GrandTotal)
	customer.TotalReceived = customer.TotalReceived.Add(entry.Received)
	customer.TotalPending = customer.TotalPending.Add(entry.Pending)
	customer.LastPurchaseAt = &at
	if entry.Received.IsPositive() {
		customer.LastPaymentAt = &at
	}
	rows[entry.Phone] = customer

	updated := customer
	return &updated, nil
}

func (s *Store) ApplyCustomerPayment(_ context.Context, scope domain.ShopScope, phone string, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[scope.ShopID][phone]
	if !ok {
		return store.ErrNotFound
	}
	customer.TotalReceived = customer.TotalReceived.Add(amount)
	customer.TotalPending = decimal.Max(decimal.Zero, customer.TotalPending.Sub(amount))
	customer.LastPaymentAt = &at
	s.customers[scope.ShopID][phone] = customer
	return nil
}

func (s *Store) GetCustomer(_ context.Context, scope domain.ShopScope, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[scope.ShopID][phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, scope domain.ShopScope) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.customers[scope.ShopID]
	customers := make([]domain.Customer, 0, len(rows))
	for _, customer := range rows {
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.Name == b.Name {
			return cmpString(a.Phone, b.Phone)
		}
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CustomerLedgerTotals(_ context.Context, scope domain.ShopScope) (map[string]domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]domain.LedgerTotals)
	for _, rec := range s.sales {
		sale := rec.sale
		if sale.ShopID != scope.ShopID || sale.CustomerPhone == "" {
			continue
		}
		entry := totals[sale.CustomerPhone]
		entry.TotalSpent = entry.TotalSpent.Add(sale.GrandTotal)
		entry.TotalReceived = entry.TotalReceived.Add(sale.AmountReceived)
		entry.TotalPending = entry.TotalPending.Add(sale.PendingAmount)
		totals[sale.CustomerPhone] = entry
	}
	return totals, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, scope domain.ShopScope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.ShopID != scope.ShopID || !inWindow(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// inWindow reports whether t lies in [from, to); zero bounds are open.
func inWindow(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func compareCreated(aAt time.Time, aSeq int64, bAt time.Time, bSeq int64) int {
	if c := aAt.Compare(bAt); c != 0 {
		return c
	}
	switch {
	case aSeq < bSeq:
		return -1
	case aSeq > bSeq:
		return 1
	default:
		return 0
	}
}

func trendFromBuckets(buckets map[string]decimal.Decimal) []domain.TrendPoint {
	points := make([]domain.TrendPoint, 0, len(buckets))
	for day, total := range buckets {
		points = append(points, domain.TrendPoint{Date: day, Total: total})
	}
	slices.SortFunc(points, func(a, b domain.TrendPoint) int {
		return cmpString(a.Date, b.Date)
	})
	return points
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.Items = make([]domain.SaleLine, len(src.Items))
	copy(dup.Items, src.Items)
	return dup
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dup := src
	dup.Items = make([]domain.PurchaseLine, len(src.Items))
	copy(dup.Items, src.Items)
	return dup
}
