package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShopScope identifies the tenant a call operates on. It is resolved from the
// caller's credentials and passed explicitly to every scoped operation.
type ShopScope struct {
	ShopID string
	UserID string
}

type Shop struct {
	ID                string    `json:"id"`
	Name              string    `json:"shop_name"`
	Address           string    `json:"shop_address"`
	GSTNumber         string    `json:"gst_number"`
	BankName          string    `json:"bank_name"`
	BankAccountNumber string    `json:"bank_account_number"`
	BankIFSC          string    `json:"bank_ifsc"`
	OwnerID           string    `json:"owner_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Name      string
	Email     string
	Password  string
	ShopID    string
	Active    bool
	CreatedAt time.Time
}

type Principal struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	ShopID   string `json:"shop_id"`
	ShopName string `json:"shop_name"`
}

func (p Principal) Scope() ShopScope {
	return ShopScope{ShopID: p.ShopID, UserID: p.UserID}
}

type RegisterRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	ShopName          string `json:"shop_name"`
	ShopAddress       string `json:"shop_address"`
	GSTNumber         string `json:"gst_number"`
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankIFSC          string `json:"bank_ifsc"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   string    `json:"expires_at"`
	User        Principal `json:"user"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	HSNCode      string          `json:"hsn_code"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit,omitempty"`
	GSTRate      int             `json:"gst_rate"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	HSNCode      string          `json:"hsn_code"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit,omitempty"`
	GSTRate      *int            `json:"gst_rate"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type ProductPricingRequest struct {
	SellingPrice *decimal.Decimal `json:"selling_price"`
	GSTRate      *int             `json:"gst_rate"`
}

type Inventory struct {
	ShopID       string          `json:"shop_id"`
	ProductID    string          `json:"product_id"`
	CurrentStock int             `json:"current_stock"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// InventoryItem is an inventory row joined with its catalog product.
type InventoryItem struct {
	Inventory Inventory
	Product   Product
}

type StockStatus string

const (
	StockLow    StockStatus = "LOW"
	StockNormal StockStatus = "NORMAL"
	StockHigh   StockStatus = "HIGH"
)

type ProductStockView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	HSNCode  string          `json:"hsn_code"`
	Category string          `json:"category"`
	GSTRate  int             `json:"gst_rate"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Status   StockStatus     `json:"status"`
}

type Purchase struct {
	ID            string          `json:"id"`
	ShopID        string          `json:"shop_id"`
	SupplierName  string          `json:"supplier_name"`
	InvoiceNumber string          `json:"invoice_number"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	Items         []PurchaseLine  `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PurchaseLine struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	GSTRate       int             `json:"gst_rate"`
}

type PurchaseCreateRequest struct {
	SupplierName  string              `json:"supplier_name"`
	InvoiceNumber string              `json:"invoice_number"`
	PurchaseDate  *time.Time          `json:"purchase_date,omitempty"`
	Items         []PurchaseItemInput `json:"items"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

type Sale struct {
	ID              string          `json:"id"`
	ShopID          string          `json:"shop_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address,omitempty"`
	CustomerTaxID   string          `json:"customer_tax_id,omitempty"`
	Items           []SaleLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalGST        decimal.Decimal `json:"total_gst"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	AmountReceived  decimal.Decimal `json:"amount_received"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	SaleDate        time.Time       `json:"sale_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SaleLine is a snapshot of catalog and inventory values at the time of sale.
type SaleLine struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	HSNCode      string          `json:"hsn_code"`
	Quantity     int             `json:"quantity"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	GSTRate      int             `json:"gst_rate"`
}

func (l SaleLine) Amount() decimal.Decimal {
	return RoundMoney(decimal.NewFromInt(int64(l.Quantity)).Mul(l.SellingPrice))
}

func (l SaleLine) GST() decimal.Decimal {
	return LineGST(l.Amount(), l.GSTRate)
}

type SaleItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleCreateRequest struct {
	CustomerName    string           `json:"customer_name"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	CustomerTaxID   string           `json:"customer_tax_id"`
	Items           []SaleItemInput  `json:"items"`
	AmountReceived  *decimal.Decimal `json:"amount_received,omitempty"`
}

type Customer struct {
	ShopID          string          `json:"shop_id"`
	Phone           string          `json:"phone"`
	Name            string          `json:"name"`
	Address         string          `json:"address,omitempty"`
	TaxID           string          `json:"tax_id,omitempty"`
	TotalVisits     int             `json:"total_visits"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	TotalReceived   decimal.Decimal `json:"total_received"`
	TotalPending    decimal.Decimal `json:"total_pending"`
	FirstPurchaseAt *time.Time      `json:"first_purchase_at,omitempty"`
	LastPurchaseAt  *time.Time      `json:"last_purchase_at,omitempty"`
	LastPaymentAt   *time.Time      `json:"last_payment_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CustomerSaleEntry carries one sale's contribution to a customer's ledger.
type CustomerSaleEntry struct {
	Phone      string
	Name       string
	Address    string
	TaxID      string
	GrandTotal decimal.Decimal
	Received   decimal.Decimal
	Pending    decimal.Decimal
	At         time.Time
}

// LedgerTotals are customer totals derived from sales at read time.
type LedgerTotals struct {
	TotalSpent    decimal.Decimal `json:"total_spent"`
	TotalReceived decimal.Decimal `json:"total_received"`
	TotalPending  decimal.Decimal `json:"total_pending"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PaymentAllocation struct {
	SaleID        string          `json:"sale_id"`
	Applied       decimal.Decimal `json:"applied"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
}

type PaymentResponse struct {
	Phone       string              `json:"phone"`
	Allocated   decimal.Decimal     `json:"allocated"`
	Unallocated decimal.Decimal     `json:"unallocated"`
	Allocations []PaymentAllocation `json:"allocations"`
}

type SalesTotals struct {
	Count          int64           `json:"count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalGST       decimal.Decimal `json:"total_gst"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
}

type PurchaseTotals struct {
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalGST    decimal.Decimal `json:"total_gst"`
}

type TrendPoint struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type DashboardKPIs struct {
	TodaySales       decimal.Decimal `json:"today_sales"`
	MonthlySales     decimal.Decimal `json:"monthly_sales"`
	MonthlyPurchases decimal.Decimal `json:"monthly_purchases"`
	GSTInput         decimal.Decimal `json:"gst_input"`
	GSTOutput        decimal.Decimal `json:"gst_output"`
	LowStockCount    int             `json:"low_stock_count"`
}

type DashboardCharts struct {
	SalesTrend    []TrendPoint `json:"sales_trend"`
	PurchaseTrend []TrendPoint `json:"purchase_trend"`
}

type Dashboard struct {
	KPIs        DashboardKPIs   `json:"kpis"`
	Charts      DashboardCharts `json:"charts"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type GSTSummary struct {
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	TotalInputGST  decimal.Decimal `json:"total_input_gst"`
	TotalOutputGST decimal.Decimal `json:"total_output_gst"`
	NetGSTPayable  decimal.Decimal `json:"net_gst_payable"`
}

type CashHealth string

const (
	CashHealthy  CashHealth = "Healthy"
	CashStressed CashHealth = "Stressed"
)

type RiskLevel string

const (
	RiskNone   RiskLevel = "None"
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type ReorderSuggestion struct {
	ProductID    string `json:"product_id"`
	Product      string `json:"product"`
	CurrentStock int    `json:"current_stock"`
	Qty          int    `json:"qty"`
}

type PaymentRisk struct {
	TotalPendingAmount decimal.Decimal `json:"total_pending_amount"`
	CustomersWithDues  int             `json:"customers_with_dues"`
	RiskLevel          RiskLevel       `json:"risk_level"`
}

type Insights struct {
	BusinessScore       int                 `json:"business_score"`
	CashHealth          CashHealth          `json:"cash_health"`
	LowStockCount       int                 `json:"low_stock_count"`
	DeadStockCount      int                 `json:"dead_stock_count"`
	DeadStock           []string            `json:"dead_stock"`
	ReorderSuggestions  []ReorderSuggestion `json:"reorder_suggestions"`
	CustomerPaymentRisk PaymentRisk         `json:"customer_payment_risk"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

type DailySalesRow struct {
	Date       string
	Sales      int64
	Subtotal   decimal.Decimal
	TotalGST   decimal.Decimal
	GrandTotal decimal.Decimal
	Received   decimal.Decimal
	Pending    decimal.Decimal
}

type AuditLog struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
