package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vyapaar/backend/internal/cache"
	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/insights"
	"vyapaar/backend/internal/store"
)

func (s *Service) Dashboard(ctx context.Context, scope domain.ShopScope) (domain.Dashboard, error) {
	key := cache.ReportKey(scope.ShopID, cache.KindDashboard)
	var cached domain.Dashboard
	if ok, err := s.reports.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		zap.S().Warnf("[service] dashboard cache read failed shop=%s: %v", scope.ShopID, err)
	}

	todayFrom, todayTo := s.todayWindow()
	monthFrom, monthTo := s.monthToDateWindow()

	today, err := s.repo.SummarizeSales(ctx, scope, todayFrom, todayTo)
	if err != nil {
		return domain.Dashboard{}, err
	}
	monthSales, err := s.repo.SummarizeSales(ctx, scope, monthFrom, monthTo)
	if err != nil {
		return domain.Dashboard{}, err
	}
	monthPurchases, err := s.repo.SummarizePurchases(ctx, scope, monthFrom, monthTo)
	if err != nil {
		return domain.Dashboard{}, err
	}
	allSales, err := s.repo.SummarizeSales(ctx, scope, time.Time{}, time.Time{})
	if err != nil {
		return domain.Dashboard{}, err
	}
	allPurchases, err := s.repo.SummarizePurchases(ctx, scope, time.Time{}, time.Time{})
	if err != nil {
		return domain.Dashboard{}, err
	}
	inventory, err := s.repo.ListInventory(ctx, scope)
	if err != nil {
		return domain.Dashboard{}, err
	}
	salesTrend, err := s.repo.SalesTrend(ctx, scope, s.loc)
	if err != nil {
		return domain.Dashboard{}, err
	}
	purchaseTrend, err := s.repo.PurchaseTrend(ctx, scope, s.loc)
	if err != nil {
		return domain.Dashboard{}, err
	}

	lowStock := 0
	for _, item := range inventory {
		if domain.StockStatusFor(item.Inventory.CurrentStock) == domain.StockLow {
			lowStock++
		}
	}

	dashboard := domain.Dashboard{
		KPIs: domain.DashboardKPIs{
			TodaySales:       today.GrandTotal,
			MonthlySales:     monthSales.GrandTotal,
			MonthlyPurchases: monthPurchases.TotalAmount,
			GSTInput:         allPurchases.TotalGST,
			GSTOutput:        allSales.TotalGST,
			LowStockCount:    lowStock,
		},
		Charts: domain.DashboardCharts{
			SalesTrend:    salesTrend,
			PurchaseTrend: purchaseTrend,
		},
		GeneratedAt: s.now().UTC(),
	}

	if err := s.reports.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
		zap.S().Warnf("[service] dashboard cache write failed shop=%s: %v", scope.ShopID, err)
	}
	return dashboard, nil
}

// GSTSummary nets output GST from sales against input GST from purchases
// for one calendar month, bounded in UTC.
func (s *Service) GSTSummary(ctx context.Context, scope domain.ShopScope, month int, year int) (domain.GSTSummary, error) {
	if month < 1 || month > 12 {
		return domain.GSTSummary{}, store.Invalid("month", "must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return domain.GSTSummary{}, store.Invalid("year", "out of range")
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	purchases, err := s.repo.SummarizePurchases(ctx, scope, from, to)
	if err != nil {
		return domain.GSTSummary{}, err
	}
	sales, err := s.repo.SummarizeSales(ctx, scope, from, to)
	if err != nil {
		return domain.GSTSummary{}, err
	}

	return domain.GSTSummary{
		Month:          month,
		Year:           year,
		TotalInputGST:  purchases.TotalGST,
		TotalOutputGST: sales.TotalGST,
		NetGSTPayable:  sales.TotalGST.Sub(purchases.TotalGST),
	}, nil
}

func (s *Service) Insights(ctx context.Context, scope domain.ShopScope) (domain.Insights, error) {
	return s.insights.Insights(ctx, scope.ShopID, s.insightsLoader(scope))
}

// RefreshInsights recomputes a shop's insights regardless of the cache.
func (s *Service) RefreshInsights(ctx context.Context, scope domain.ShopScope) (domain.Insights, error) {
	return s.insights.Refresh(ctx, scope.ShopID, s.insightsLoader(scope))
}

func (s *Service) insightsLoader(scope domain.ShopScope) insights.Loader {
	return func(ctx context.Context) (insights.Snapshot, error) {
		endOfDay := s.startOfDay(s.now()).AddDate(0, 0, 1)
		since := endOfDay.Add(-insights.WindowDays * 24 * time.Hour)

		inventory, err := s.repo.ListInventory(ctx, scope)
		if err != nil {
			return insights.Snapshot{}, err
		}
		sold, err := s.repo.SoldQuantities(ctx, scope, since)
		if err != nil {
			return insights.Snapshot{}, err
		}
		sales, err := s.repo.SummarizeSales(ctx, scope, time.Time{}, time.Time{})
		if err != nil {
			return insights.Snapshot{}, err
		}
		purchases, err := s.repo.SummarizePurchases(ctx, scope, time.Time{}, time.Time{})
		if err != nil {
			return insights.Snapshot{}, err
		}
		outstanding, err := s.repo.OutstandingByCustomer(ctx, scope)
		if err != nil {
			return insights.Snapshot{}, err
		}

		return insights.Snapshot{
			Inventory:      inventory,
			SoldInWindow:   sold,
			TotalSales:     sales.GrandTotal,
			TotalPurchases: purchases.TotalAmount,
			Outstanding:    outstanding,
		}, nil
	}
}

// TodaySales lists sales of the current local day, oldest first.
func (s *Service) TodaySales(ctx context.Context, scope domain.ShopScope) ([]domain.Sale, error) {
	from, to := s.todayWindow()
	return s.SalesBetween(ctx, scope, from, to)
}

type MonthReport struct {
	From      time.Time
	To        time.Time
	Sales     []domain.Sale
	Purchases []domain.Purchase
}

func (s *Service) MonthToDate(ctx context.Context, scope domain.ShopScope) (MonthReport, error) {
	from, to := s.monthToDateWindow()
	sales, err := s.SalesBetween(ctx, scope, from, to)
	if err != nil {
		return MonthReport{}, err
	}
	purchases, err := s.repo.ListPurchases(ctx, scope, from, to)
	if err != nil {
		return MonthReport{}, err
	}
	return MonthReport{From: from, To: to, Sales: sales, Purchases: purchases}, nil
}

// DailySummary returns per-day sales totals in the local zone. Zero bounds
// default to the current month to date.
func (s *Service) DailySummary(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) ([]domain.DailySalesRow, error) {
	if from.IsZero() || to.IsZero() {
		from, to = s.monthToDateWindow()
	}
	if !to.After(from) {
		return nil, store.Invalid("to", "must be after from")
	}
	return s.repo.DailySales(ctx, scope, from, to, s.loc)
}
