package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, domain.ShopScope) {
	t.Helper()
	repo := memory.New()
	scope := domain.ShopScope{ShopID: "shop-test", UserID: "usr-test"}
	err := repo.CreateShopAccount(context.Background(),
		domain.Shop{ID: scope.ShopID, Name: "Test Kirana", Address: "1 Test Road", GSTNumber: "27TEST"},
		domain.UserAccount{ID: scope.UserID, Name: "Owner", Email: "owner@test.local", Password: "hash"},
	)
	if err != nil {
		t.Fatalf("create shop account: %v", err)
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return New(repo, Options{Location: loc}), repo, scope
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func mustCreateProduct(t *testing.T, svc *Service, scope domain.ShopScope, name string, gst int, price int64) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), scope, domain.ProductCreateRequest{
		Name:         name,
		HSNCode:      "1006",
		Category:     "grocery",
		GSTRate:      intPtr(gst),
		SellingPrice: dec(price),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func mustStock(t *testing.T, svc *Service, scope domain.ShopScope, productID string, qty int, price int64, gst int) {
	t.Helper()
	_, err := svc.CreatePurchase(context.Background(), scope, domain.PurchaseCreateRequest{
		SupplierName: "Wholesale Traders",
		Items: []domain.PurchaseItemInput{
			{ProductID: productID, Quantity: qty, PurchasePrice: dec(price), GSTRate: gst},
		},
	})
	if err != nil {
		t.Fatalf("purchase %s: %v", productID, err)
	}
}

func stockOf(t *testing.T, repo *memory.Store, scope domain.ShopScope, productID string) int {
	t.Helper()
	inv, err := repo.GetInventory(context.Background(), scope, productID)
	if err != nil {
		t.Fatalf("get inventory %s: %v", productID, err)
	}
	return inv.CurrentStock
}

func TestCreateSaleTotalsAndPaymentStatus(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	rice := mustCreateProduct(t, svc, scope, "Rice", 5, 200)
	soap := mustCreateProduct(t, svc, scope, "Soap", 18, 50)
	mustStock(t, svc, scope, rice.ID, 50, 150, 5)
	mustStock(t, svc, scope, soap.ID, 50, 30, 18)

	// grand total: 2*200*1.05 + 3*50*1.18 = 420 + 177 = 597
	cases := []struct {
		name     string
		received *decimal.Decimal
		status   domain.PaymentStatus
	}{
		{name: "nothing received", received: nil, status: domain.PaymentPending},
		{name: "part received", received: decPtr(300), status: domain.PaymentPartial},
		{name: "fully received", received: decPtr(597), status: domain.PaymentPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sale, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
				CustomerName:   "Asha",
				CustomerPhone:  "9000000001",
				Items:          []domain.SaleItemInput{{ProductID: rice.ID, Quantity: 2}, {ProductID: soap.ID, Quantity: 3}},
				AmountReceived: tc.received,
			})
			if err != nil {
				t.Fatalf("create sale: %v", err)
			}
			if !sale.GrandTotal.Equal(sale.Subtotal.Add(sale.TotalGST)) {
				t.Fatalf("grand total %s != subtotal %s + gst %s", sale.GrandTotal, sale.Subtotal, sale.TotalGST)
			}
			if !sale.GrandTotal.Equal(dec(597)) {
				t.Fatalf("expected grand total 597, got %s", sale.GrandTotal)
			}
			if !sale.PendingAmount.Equal(sale.GrandTotal.Sub(sale.AmountReceived)) {
				t.Fatalf("pending %s != grand %s - received %s", sale.PendingAmount, sale.GrandTotal, sale.AmountReceived)
			}
			if sale.PaymentStatus != tc.status {
				t.Fatalf("expected status %s, got %s", tc.status, sale.PaymentStatus)
			}
		})
	}
}

func TestCreateSaleRoundsTotalsToPaise(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	biscuit, err := svc.CreateProduct(ctx, scope, domain.ProductCreateRequest{
		Name:         "Biscuit Tin",
		HSNCode:      "1905",
		Category:     "snacks",
		GSTRate:      intPtr(18),
		SellingPrice: decimal.RequireFromString("99.99"),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	mustStock(t, svc, scope, biscuit.ID, 10, 60, 18)

	printed := decimal.RequireFromString("117.99")
	paid, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:   "Kavya",
		CustomerPhone:  "9000000010",
		Items:          []domain.SaleItemInput{{ProductID: biscuit.ID, Quantity: 1}},
		AmountReceived: &printed,
	})
	if err != nil {
		t.Fatalf("paying the printed total at checkout: %v", err)
	}
	if !paid.GrandTotal.Equal(printed) || !paid.TotalGST.Equal(dec(18)) {
		t.Fatalf("expected grand 117.99 with gst 18, got grand %s gst %s", paid.GrandTotal, paid.TotalGST)
	}
	if paid.PaymentStatus != domain.PaymentPaid || !paid.PendingAmount.IsZero() {
		t.Fatalf("expected PAID with nothing pending, got %s pending %s", paid.PaymentStatus, paid.PendingAmount)
	}

	credit, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:  "Kavya",
		CustomerPhone: "9000000010",
		Items:         []domain.SaleItemInput{{ProductID: biscuit.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create credit sale: %v", err)
	}
	resp, err := svc.ReceivePayment(ctx, scope, "9000000010", domain.PaymentRequest{Amount: printed})
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if len(resp.Allocations) != 1 || resp.Allocations[0].SaleID != credit.ID {
		t.Fatalf("expected one allocation to %s, got %+v", credit.ID, resp.Allocations)
	}
	if resp.Allocations[0].PaymentStatus != domain.PaymentPaid || !resp.Allocations[0].PendingAmount.IsZero() || !resp.Unallocated.IsZero() {
		t.Fatalf("expected credit sale settled exactly, got %+v", resp)
	}
}

func TestCreateSaleKeepsEarlierDecrementsWhenStockRunsShort(t *testing.T) {
	svc, repo, scope := newTestService(t)
	ctx := context.Background()

	dal := mustCreateProduct(t, svc, scope, "Dal", 0, 120)
	oil := mustCreateProduct(t, svc, scope, "Oil", 5, 150)
	mustStock(t, svc, scope, dal.ID, 10, 90, 0)
	mustStock(t, svc, scope, oil.ID, 2, 110, 5)

	_, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:  "Ravi",
		CustomerPhone: "9000000002",
		Items: []domain.SaleItemInput{
			{ProductID: dal.ID, Quantity: 4},
			{ProductID: oil.ID, Quantity: 5},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected insufficient stock to be a validation error")
	}

	if got := stockOf(t, repo, scope, dal.ID); got != 6 {
		t.Fatalf("expected earlier item to stay decremented to 6, got %d", got)
	}
	if got := stockOf(t, repo, scope, oil.ID); got != 2 {
		t.Fatalf("expected failing item untouched at 2, got %d", got)
	}

	sales, err := svc.ListSales(ctx, scope)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale persisted, got %d", len(sales))
	}
}

func TestCreateSaleWithoutInventoryRowIsInsufficient(t *testing.T) {
	svc, _, scope := newTestService(t)

	ghee := mustCreateProduct(t, svc, scope, "Ghee", 12, 550)
	_, err := svc.CreateSale(context.Background(), scope, domain.SaleCreateRequest{
		CustomerName: "Walk-in",
		Items:        []domain.SaleItemInput{{ProductID: ghee.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestCreateSaleRejectsBadInput(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	tea := mustCreateProduct(t, svc, scope, "Tea", 5, 100)
	mustStock(t, svc, scope, tea.ID, 5, 70, 5)

	cases := []struct {
		name string
		req  domain.SaleCreateRequest
		want error
	}{
		{name: "missing customer", req: domain.SaleCreateRequest{Items: []domain.SaleItemInput{{ProductID: tea.ID, Quantity: 1}}}, want: store.ErrValidation},
		{name: "no items", req: domain.SaleCreateRequest{CustomerName: "A"}, want: store.ErrValidation},
		{name: "zero quantity", req: domain.SaleCreateRequest{CustomerName: "A", Items: []domain.SaleItemInput{{ProductID: tea.ID}}}, want: store.ErrValidation},
		{name: "negative received", req: domain.SaleCreateRequest{CustomerName: "A", Items: []domain.SaleItemInput{{ProductID: tea.ID, Quantity: 1}}, AmountReceived: decPtr(-1)}, want: store.ErrValidation},
		{name: "overpaid", req: domain.SaleCreateRequest{CustomerName: "A", Items: []domain.SaleItemInput{{ProductID: tea.ID, Quantity: 1}}, AmountReceived: decPtr(1000)}, want: store.ErrValidation},
		{name: "unknown product", req: domain.SaleCreateRequest{CustomerName: "A", Items: []domain.SaleItemInput{{ProductID: "prd-missing", Quantity: 1}}}, want: store.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, scope, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestWalkInSaleSkipsCustomerLedger(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	salt := mustCreateProduct(t, svc, scope, "Salt", 0, 25)
	mustStock(t, svc, scope, salt.ID, 10, 15, 0)

	if _, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName: "Counter",
		Items:        []domain.SaleItemInput{{ProductID: salt.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	customers, err := svc.ListCustomers(ctx, scope)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("expected no customers for walk-in sale, got %d", len(customers))
	}
}

func TestWalkInDuesStayOutOfPaymentRisk(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	oil := mustCreateProduct(t, svc, scope, "Mustard Oil", 5, 200)
	mustStock(t, svc, scope, oil.ID, 10, 150, 5)

	if _, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName: "Counter",
		Items:        []domain.SaleItemInput{{ProductID: oil.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create walk-in sale: %v", err)
	}

	got, err := svc.Insights(ctx, scope)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	risk := got.CustomerPaymentRisk
	if risk.CustomersWithDues != 0 || !risk.TotalPendingAmount.IsZero() || risk.RiskLevel != domain.RiskNone {
		t.Fatalf("expected walk-in dues excluded from payment risk, got %+v", risk)
	}
}

func TestReceivePaymentAllocatesOldestSaleFirst(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	flour := mustCreateProduct(t, svc, scope, "Flour", 0, 50)
	mustStock(t, svc, scope, flour.ID, 20, 30, 0)

	older, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:  "Meena",
		CustomerPhone: "9000000003",
		Items:         []domain.SaleItemInput{{ProductID: flour.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create older sale: %v", err)
	}
	newer, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:  "Meena",
		CustomerPhone: "9000000003",
		Items:         []domain.SaleItemInput{{ProductID: flour.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create newer sale: %v", err)
	}

	resp, err := svc.ReceivePayment(ctx, scope, "9000000003", domain.PaymentRequest{Amount: dec(120)})
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if !resp.Allocated.Equal(dec(120)) || !resp.Unallocated.IsZero() {
		t.Fatalf("expected 120 allocated and none left, got %s / %s", resp.Allocated, resp.Unallocated)
	}

	a, err := svc.GetSale(ctx, scope, older.ID)
	if err != nil {
		t.Fatalf("get older sale: %v", err)
	}
	b, err := svc.GetSale(ctx, scope, newer.ID)
	if err != nil {
		t.Fatalf("get newer sale: %v", err)
	}
	if !a.PendingAmount.IsZero() || a.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("expected older sale settled, got pending=%s status=%s", a.PendingAmount, a.PaymentStatus)
	}
	if !b.PendingAmount.Equal(dec(30)) || b.PaymentStatus != domain.PaymentPartial {
		t.Fatalf("expected newer sale pending 30 PARTIAL, got %s %s", b.PendingAmount, b.PaymentStatus)
	}

	customers, err := svc.ListCustomers(ctx, scope)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 || !customers[0].TotalPending.Equal(dec(30)) || !customers[0].TotalReceived.Equal(dec(120)) {
		t.Fatalf("unexpected customer totals: %+v", customers)
	}
}

func TestReceivePaymentNeverDrivesPendingBelowZero(t *testing.T) {
	svc, repo, scope := newTestService(t)
	ctx := context.Background()

	sugar := mustCreateProduct(t, svc, scope, "Sugar", 0, 40)
	mustStock(t, svc, scope, sugar.ID, 10, 30, 0)
	sale, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:   "Kiran",
		CustomerPhone:  "9000000004",
		Items:          []domain.SaleItemInput{{ProductID: sugar.ID, Quantity: 2}},
		AmountReceived: decPtr(20),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	resp, err := svc.ReceivePayment(ctx, scope, "9000000004", domain.PaymentRequest{Amount: dec(500)})
	if err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	if !resp.Allocated.Equal(dec(60)) || !resp.Unallocated.Equal(dec(440)) {
		t.Fatalf("expected 60 allocated / 440 unallocated, got %s / %s", resp.Allocated, resp.Unallocated)
	}

	settled, err := svc.GetSale(ctx, scope, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !settled.PendingAmount.IsZero() || !settled.AmountReceived.Equal(dec(80)) {
		t.Fatalf("expected settled sale, got pending=%s received=%s", settled.PendingAmount, settled.AmountReceived)
	}

	customer, err := repo.GetCustomer(ctx, scope, "9000000004")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if !customer.TotalPending.IsZero() || customer.LastPaymentAt == nil {
		t.Fatalf("expected customer aggregate settled, got pending=%s", customer.TotalPending)
	}

	again, err := svc.ReceivePayment(ctx, scope, "9000000004", domain.PaymentRequest{Amount: dec(10)})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !again.Allocated.IsZero() || len(again.Allocations) != 0 {
		t.Fatalf("expected nothing allocated when no dues, got %+v", again)
	}
}

func TestReceivePaymentValidation(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ReceivePayment(ctx, scope, "9000000005", domain.PaymentRequest{Amount: dec(0)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
	if _, err := svc.ReceivePayment(ctx, scope, "9000000005", domain.PaymentRequest{Amount: dec(10)}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestArchiveHidesProductAndLowStockFilter(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	low := mustCreateProduct(t, svc, scope, "Cardamom", 5, 90)
	edge := mustCreateProduct(t, svc, scope, "Cumin", 5, 60)
	normal := mustCreateProduct(t, svc, scope, "Turmeric", 5, 40)
	high := mustCreateProduct(t, svc, scope, "Chilli", 5, 30)
	mustStock(t, svc, scope, low.ID, 3, 50, 5)
	mustStock(t, svc, scope, edge.ID, 10, 40, 5)
	mustStock(t, svc, scope, normal.ID, 30, 20, 5)
	mustStock(t, svc, scope, high.ID, 31, 10, 5)

	lowOnly, err := svc.ListProducts(ctx, scope, FilterLowStock)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(lowOnly) != 2 {
		t.Fatalf("expected 2 low stock items, got %d", len(lowOnly))
	}
	for _, item := range lowOnly {
		if item.Stock > 10 || item.Status != domain.StockLow {
			t.Fatalf("unexpected low stock item %+v", item)
		}
	}

	all, err := svc.ListProducts(ctx, scope, "")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	statuses := map[string]domain.StockStatus{}
	for _, item := range all {
		statuses[item.ID] = item.Status
	}
	if statuses[normal.ID] != domain.StockNormal || statuses[high.ID] != domain.StockHigh {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	if _, err := svc.ArchiveProduct(ctx, scope, low.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	all, err = svc.ListProducts(ctx, scope, "")
	if err != nil {
		t.Fatalf("list products after archive: %v", err)
	}
	for _, item := range all {
		if item.ID == low.ID {
			t.Fatalf("archived product still listed")
		}
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 active products, got %d", len(all))
	}

	catalog, err := svc.ListCatalog(ctx, true)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(catalog) != 4 {
		t.Fatalf("expected archived product kept in catalog, got %d", len(catalog))
	}

	if _, err := svc.ArchiveProduct(ctx, scope, "prd-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found archiving unknown product, got %v", err)
	}
}

func TestUpdateProductPricingSetsShopPrice(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	biscuit := mustCreateProduct(t, svc, scope, "Biscuit", 18, 20)
	mustStock(t, svc, scope, biscuit.ID, 40, 12, 18)

	if _, err := svc.UpdateProductPricing(ctx, scope, biscuit.ID, domain.ProductPricingRequest{SellingPrice: decPtr(25), GSTRate: intPtr(7)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected invalid slab rejected, got %v", err)
	}
	if _, err := svc.UpdateProductPricing(ctx, scope, biscuit.ID, domain.ProductPricingRequest{SellingPrice: decPtr(0), GSTRate: intPtr(18)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected zero price rejected, got %v", err)
	}
	if _, err := svc.UpdateProductPricing(ctx, scope, "prd-missing", domain.ProductPricingRequest{SellingPrice: decPtr(25), GSTRate: intPtr(18)}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	updated, err := svc.UpdateProductPricing(ctx, scope, biscuit.ID, domain.ProductPricingRequest{SellingPrice: decPtr(25), GSTRate: intPtr(12)})
	if err != nil {
		t.Fatalf("update pricing: %v", err)
	}
	if !updated.SellingPrice.Equal(dec(25)) || updated.GSTRate != 12 {
		t.Fatalf("unexpected product after update %+v", updated)
	}

	sale, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName: "Counter",
		Items:        []domain.SaleItemInput{{ProductID: biscuit.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Subtotal.Equal(dec(100)) || !sale.TotalGST.Equal(dec(12)) {
		t.Fatalf("expected repriced sale 100 + 12, got %s + %s", sale.Subtotal, sale.TotalGST)
	}
}

func TestCreatePurchaseValidatesAllItemsBeforeWriting(t *testing.T) {
	svc, repo, scope := newTestService(t)
	ctx := context.Background()

	jam := mustCreateProduct(t, svc, scope, "Jam", 12, 120)
	_, err := svc.CreatePurchase(ctx, scope, domain.PurchaseCreateRequest{
		SupplierName: "Agro Foods",
		Items: []domain.PurchaseItemInput{
			{ProductID: jam.ID, Quantity: 5, PurchasePrice: dec(80), GSTRate: 12},
			{ProductID: jam.ID, Quantity: 5, PurchasePrice: dec(80), GSTRate: 15},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := repo.GetInventory(ctx, scope, jam.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no inventory written, got %v", err)
	}

	_, err = svc.CreatePurchase(ctx, scope, domain.PurchaseCreateRequest{
		SupplierName: "Agro Foods",
		Items: []domain.PurchaseItemInput{
			{ProductID: jam.ID, NewProduct: &domain.NewProduct{Name: "Jam"}, Quantity: 1, PurchasePrice: dec(80), GSTRate: 12},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ambiguous item rejected, got %v", err)
	}
}

func TestCreatePurchaseFindsOrCreatesNewProduct(t *testing.T) {
	svc, repo, scope := newTestService(t)
	ctx := context.Background()

	newLine := domain.PurchaseItemInput{
		NewProduct: &domain.NewProduct{Name: " Paneer 200g ", HSNCode: "0406", Category: "dairy", GSTRate: 5, SellingPrice: dec(90)},
		Quantity:   12,
		GSTRate:    5,
	}
	newLine.PurchasePrice = dec(70)

	first, err := svc.CreatePurchase(ctx, scope, domain.PurchaseCreateRequest{SupplierName: "Dairy Co", InvoiceNumber: "INV-1", Items: []domain.PurchaseItemInput{newLine}})
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := svc.CreatePurchase(ctx, scope, domain.PurchaseCreateRequest{SupplierName: "Dairy Co", InvoiceNumber: "INV-2", Items: []domain.PurchaseItemInput{newLine}})
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}

	productID := first.Items[0].ProductID
	if second.Items[0].ProductID != productID {
		t.Fatalf("expected product reused by name, got %s and %s", productID, second.Items[0].ProductID)
	}
	if got := stockOf(t, repo, scope, productID); got != 24 {
		t.Fatalf("expected stock 24, got %d", got)
	}
	if !first.TotalAmount.Equal(dec(840)) || !first.TotalGST.Equal(dec(42)) {
		t.Fatalf("expected totals 840 / 42, got %s / %s", first.TotalAmount, first.TotalGST)
	}

	purchases, err := svc.ListPurchases(ctx, scope)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(purchases) != 2 || purchases[0].ID != second.ID {
		t.Fatalf("expected newest purchase first")
	}
}

func TestInsightsFlagsDeadStock(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	idle := mustCreateProduct(t, svc, scope, "Idle Pickle", 12, 150)
	moving := mustCreateProduct(t, svc, scope, "Moving Bread", 0, 40)
	mustStock(t, svc, scope, idle.ID, 20, 100, 12)
	mustStock(t, svc, scope, moving.ID, 20, 25, 0)

	if _, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName: "Counter",
		Items:        []domain.SaleItemInput{{ProductID: moving.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	got, err := svc.Insights(ctx, scope)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if got.DeadStockCount != 1 || got.DeadStock[0] != idle.Name {
		t.Fatalf("expected only %s as dead stock, got %v", idle.Name, got.DeadStock)
	}
	if got.CashHealth != domain.CashStressed {
		t.Fatalf("expected stressed cash health, got %s", got.CashHealth)
	}
}

func TestInsightsIgnoresSalesOutsideWindow(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	stale := mustCreateProduct(t, svc, scope, "Stale Jam", 12, 120)
	recent := mustCreateProduct(t, svc, scope, "Fresh Paneer", 5, 90)
	mustStock(t, svc, scope, stale.ID, 20, 80, 12)
	mustStock(t, svc, scope, recent.ID, 20, 60, 5)

	sellAt := func(productID string, at time.Time) {
		t.Helper()
		svc.now = func() time.Time { return at }
		defer func() { svc.now = time.Now }()
		if _, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
			CustomerName: "Counter",
			Items:        []domain.SaleItemInput{{ProductID: productID, Quantity: 1}},
		}); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}
	sellAt(stale.ID, time.Now().AddDate(0, 0, -31))
	sellAt(recent.ID, time.Now().AddDate(0, 0, -29))

	got, err := svc.Insights(ctx, scope)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if got.DeadStockCount != 1 || got.DeadStock[0] != stale.Name {
		t.Fatalf("expected only %s as dead stock, got %v", stale.Name, got.DeadStock)
	}
}

func TestEndToEndPurchaseSaleAndPayment(t *testing.T) {
	svc, repo, scope := newTestService(t)
	ctx := context.Background()

	p := mustCreateProduct(t, svc, scope, "Product P", 18, 100)
	mustStock(t, svc, scope, p.ID, 10, 80, 18)
	if got := stockOf(t, repo, scope, p.ID); got != 10 {
		t.Fatalf("expected stock 10 after purchase, got %d", got)
	}

	sale, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName:  "Sunil",
		CustomerPhone: "9000000006",
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Subtotal.Equal(dec(300)) || !sale.TotalGST.Equal(dec(54)) || !sale.GrandTotal.Equal(dec(354)) {
		t.Fatalf("unexpected totals %s / %s / %s", sale.Subtotal, sale.TotalGST, sale.GrandTotal)
	}
	if got := stockOf(t, repo, scope, p.ID); got != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", got)
	}

	if _, err := svc.ReceivePayment(ctx, scope, "9000000006", domain.PaymentRequest{Amount: dec(200)}); err != nil {
		t.Fatalf("receive payment: %v", err)
	}
	paid, err := svc.GetSale(ctx, scope, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !paid.AmountReceived.Equal(dec(200)) || !paid.PendingAmount.Equal(dec(154)) || paid.PaymentStatus != domain.PaymentPartial {
		t.Fatalf("unexpected sale after payment: received=%s pending=%s status=%s", paid.AmountReceived, paid.PendingAmount, paid.PaymentStatus)
	}

	history, err := svc.CustomerHistory(ctx, scope, "9000000006")
	if err != nil {
		t.Fatalf("customer history: %v", err)
	}
	if len(history) != 1 || history[0].ID != sale.ID {
		t.Fatalf("unexpected history %+v", history)
	}

	logs, err := svc.ListAuditLogs(ctx, scope, "", 50)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) < 4 {
		t.Fatalf("expected audit entries for product, purchase, sale and payment, got %d", len(logs))
	}
}

func TestDashboardAndGSTSummary(t *testing.T) {
	svc, _, scope := newTestService(t)
	ctx := context.Background()

	p := mustCreateProduct(t, svc, scope, "Notebook", 12, 50)
	mustStock(t, svc, scope, p.ID, 8, 30, 12)
	if _, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		CustomerName: "Counter",
		Items:        []domain.SaleItemInput{{ProductID: p.ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	dash, err := svc.Dashboard(ctx, scope)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	// sale: 100 + 12 gst; purchase: 240 + 28.8 gst
	if !dash.KPIs.TodaySales.Equal(dec(112)) {
		t.Fatalf("expected today sales 112, got %s", dash.KPIs.TodaySales)
	}
	if !dash.KPIs.GSTOutput.Equal(dec(12)) || !dash.KPIs.GSTInput.Equal(decimal.RequireFromString("28.8")) {
		t.Fatalf("unexpected gst kpis %s / %s", dash.KPIs.GSTOutput, dash.KPIs.GSTInput)
	}
	if dash.KPIs.LowStockCount != 1 {
		t.Fatalf("expected one low stock item, got %d", dash.KPIs.LowStockCount)
	}
	if len(dash.Charts.SalesTrend) != 1 || len(dash.Charts.PurchaseTrend) != 1 {
		t.Fatalf("expected one trend bucket each, got %d / %d", len(dash.Charts.SalesTrend), len(dash.Charts.PurchaseTrend))
	}

	now := time.Now().UTC()
	summary, err := svc.GSTSummary(ctx, scope, int(now.Month()), now.Year())
	if err != nil {
		t.Fatalf("gst summary: %v", err)
	}
	if !summary.NetGSTPayable.Equal(decimal.RequireFromString("-16.8")) {
		t.Fatalf("expected net gst -16.8, got %s", summary.NetGSTPayable)
	}

	if _, err := svc.GSTSummary(ctx, scope, 13, now.Year()); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected invalid month rejected, got %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, scope := newTestService(t)

	cases := []domain.ProductCreateRequest{
		{HSNCode: "1", Category: "c", GSTRate: intPtr(5), SellingPrice: dec(10)},
		{Name: "n", Category: "c", GSTRate: intPtr(5), SellingPrice: dec(10)},
		{Name: "n", HSNCode: "1", Category: "c", SellingPrice: dec(10)},
		{Name: "n", HSNCode: "1", Category: "c", GSTRate: intPtr(10), SellingPrice: dec(10)},
		{Name: "n", HSNCode: "1", Category: "c", GSTRate: intPtr(5)},
	}
	for i, req := range cases {
		if _, err := svc.CreateProduct(context.Background(), scope, req); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}
