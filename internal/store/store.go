package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")

	// ErrInsufficientStock is a validation failure; errors.Is matches both.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)
)

// ValidationError names the offending input. It unwraps to ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Invalid(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// SaleQuery filters sales of one shop. Zero values mean "no constraint".
type SaleQuery struct {
	CustomerPhone string
	From          time.Time
	To            time.Time
	PendingOnly   bool
	OldestFirst   bool
	Limit         int
}

type Repository interface {
	CreateShopAccount(ctx context.Context, shop domain.Shop, owner domain.UserAccount) error
	GetShop(ctx context.Context, shopID string) (*domain.Shop, error)
	ListShops(ctx context.Context) ([]domain.Shop, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, password string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListCatalog(ctx context.Context, includeArchived bool) ([]domain.Product, error)
	UpdateProductPricing(ctx context.Context, id string, price decimal.Decimal, gstRate int) (*domain.Product, error)
	SetProductActive(ctx context.Context, id string, active bool) (*domain.Product, error)

	GetInventory(ctx context.Context, scope domain.ShopScope, productID string) (*domain.Inventory, error)
	ListInventory(ctx context.Context, scope domain.ShopScope) ([]domain.InventoryItem, error)
	// ReceiveStock adds qty to the (shop, product) row, creating it when absent.
	// A positive priceOverride replaces the shop price; a new row without one
	// starts at defaultPrice.
	ReceiveStock(ctx context.Context, scope domain.ShopScope, productID string, qty int, priceOverride decimal.Decimal, defaultPrice decimal.Decimal) (*domain.Inventory, error)
	// DecrementStock removes qty only when enough is on hand, otherwise it
	// returns ErrInsufficientStock and leaves the row untouched.
	DecrementStock(ctx context.Context, scope domain.ShopScope, productID string, qty int) (*domain.Inventory, error)
	SetInventoryPrice(ctx context.Context, scope domain.ShopScope, productID string, price decimal.Decimal) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) ([]domain.Purchase, error)
	SummarizePurchases(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.PurchaseTotals, error)
	PurchaseTrend(ctx context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, scope domain.ShopScope, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, scope domain.ShopScope, query SaleQuery) ([]domain.Sale, error)
	// ApplySalePayment applies min(pending, amount) to one sale and reports
	// how much was applied. A settled or unknown sale yields ErrNotFound.
	ApplySalePayment(ctx context.Context, scope domain.ShopScope, saleID string, amount decimal.Decimal) (decimal.Decimal, *domain.Sale, error)
	SummarizeSales(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) (domain.SalesTotals, error)
	SalesTrend(ctx context.Context, scope domain.ShopScope, loc *time.Location) ([]domain.TrendPoint, error)
	DailySales(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySalesRow, error)
	SoldQuantities(ctx context.Context, scope domain.ShopScope, since time.Time) (map[string]int, error)
	// OutstandingByCustomer sums pending amounts per phone. Walk-in sales are excluded.
	OutstandingByCustomer(ctx context.Context, scope domain.ShopScope) (map[string]decimal.Decimal, error)

	UpsertCustomerSale(ctx context.Context, scope domain.ShopScope, entry domain.CustomerSaleEntry) (*domain.Customer, error)
	ApplyCustomerPayment(ctx context.Context, scope domain.ShopScope, phone string, amount decimal.Decimal, at time.Time) error
	GetCustomer(ctx context.Context, scope domain.ShopScope, phone string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, scope domain.ShopScope) ([]domain.Customer, error)
	CustomerLedgerTotals(ctx context.Context, scope domain.ShopScope) (map[string]domain.LedgerTotals, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
