package insights

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vyapaar/backend/internal/cache"
	"vyapaar/backend/internal/domain"
)

// WindowDays is the trailing sales window used for dead stock and reorder
// suggestions.
const WindowDays = 30

// Snapshot is the raw shop data insights are derived from.
type Snapshot struct {
	Inventory      []domain.InventoryItem
	SoldInWindow   map[string]int
	TotalSales     decimal.Decimal
	TotalPurchases decimal.Decimal
	Outstanding    map[string]decimal.Decimal
}

// Loader reads a fresh Snapshot for one shop.
type Loader func(ctx context.Context) (Snapshot, error)

type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Insights serves cached insights for the shop when present and otherwise
// computes them from load.
func (e *Engine) Insights(ctx context.Context, shopID string, load Loader) (domain.Insights, error) {
	var cached domain.Insights
	if ok, err := e.cache.Get(ctx, cache.ReportKey(shopID, cache.KindInsights), &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		zap.S().Warnf("[insights] cache read failed for shop %s: %v", shopID, err)
	}
	return e.Refresh(ctx, shopID, load)
}

// Refresh recomputes insights and overwrites the cached copy.
func (e *Engine) Refresh(ctx context.Context, shopID string, load Loader) (domain.Insights, error) {
	snap, err := load(ctx)
	if err != nil {
		return domain.Insights{}, err
	}

	result := Compute(snap, e.now().UTC())
	if err := e.cache.Set(ctx, cache.ReportKey(shopID, cache.KindInsights), result, e.cacheTTL); err != nil {
		zap.S().Warnf("[insights] cache write failed for shop %s: %v", shopID, err)
	}
	return result, nil
}

func Compute(snap Snapshot, at time.Time) domain.Insights {
	deadStock := make([]string, 0, 8)
	reorder := make([]domain.ReorderSuggestion, 0, 8)
	lowStock := 0

	for _, item := range snap.Inventory {
		stock := item.Inventory.CurrentStock
		sold := snap.SoldInWindow[item.Product.ID]

		if sold == 0 && stock > 0 {
			deadStock = append(deadStock, item.Product.Name)
		}
		if domain.StockStatusFor(stock) == domain.StockLow {
			lowStock++
		}
		if qty := domain.ReorderQty(sold, WindowDays, stock); qty > 0 {
			reorder = append(reorder, domain.ReorderSuggestion{
				ProductID:    item.Product.ID,
				Product:      item.Product.Name,
				CurrentStock: stock,
				Qty:          qty,
			})
		}
	}
	slices.SortStableFunc(reorder, func(a, b domain.ReorderSuggestion) int {
		return b.Qty - a.Qty
	})

	totalPending := decimal.Zero
	withDues := 0
	for _, pending := range snap.Outstanding {
		if !pending.IsPositive() {
			continue
		}
		totalPending = totalPending.Add(pending)
		withDues++
	}

	cashHealth := domain.CashHealthFor(snap.TotalSales, snap.TotalPurchases)
	risk := domain.RiskLevelFor(totalPending)

	return domain.Insights{
		BusinessScore:      domain.BusinessScore(lowStock, len(deadStock), risk, cashHealth),
		CashHealth:         cashHealth,
		LowStockCount:      lowStock,
		DeadStockCount:     len(deadStock),
		DeadStock:          deadStock,
		ReorderSuggestions: reorder,
		CustomerPaymentRisk: domain.PaymentRisk{
			TotalPendingAmount: totalPending,
			CustomersWithDues:  withDues,
			RiskLevel:          risk,
		},
		GeneratedAt: at,
	}
}
