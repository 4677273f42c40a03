package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	LowStockThreshold    = 10
	NormalStockThreshold = 30

	riskLowLimit    = 5000
	riskMediumLimit = 20000
)

var gstSlabs = [...]int{0, 5, 12, 18, 28}

func GSTSlabs() []int {
	return gstSlabs[:]
}

func IsValidGSTSlab(rate int) bool {
	for _, slab := range gstSlabs {
		if slab == rate {
			return true
		}
	}
	return false
}

// MoneyPlaces is the paise precision every stored amount is rounded to.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to whole paise.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// LineGST is amount × rate / 100 rounded per line to paise, so totals add up
// to what the invoice prints.
func LineGST(amount decimal.Decimal, rate int) decimal.Decimal {
	return RoundMoney(amount.Mul(decimal.NewFromInt(int64(rate))).Div(decimal.NewFromInt(100)))
}

func DerivePaymentStatus(received decimal.Decimal, pending decimal.Decimal) PaymentStatus {
	switch {
	case pending.IsZero():
		return PaymentPaid
	case received.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

func StockStatusFor(stock int) StockStatus {
	switch {
	case stock <= LowStockThreshold:
		return StockLow
	case stock <= NormalStockThreshold:
		return StockNormal
	default:
		return StockHigh
	}
}

func CashHealthFor(totalSales decimal.Decimal, totalPurchases decimal.Decimal) CashHealth {
	if totalSales.GreaterThanOrEqual(totalPurchases) {
		return CashHealthy
	}
	return CashStressed
}

func RiskLevelFor(totalPending decimal.Decimal) RiskLevel {
	switch {
	case totalPending.IsZero():
		return RiskNone
	case totalPending.LessThan(decimal.NewFromInt(riskLowLimit)):
		return RiskLow
	case totalPending.LessThan(decimal.NewFromInt(riskMediumLimit)):
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ReorderQty suggests enough stock for a week of average daily sales over
// a window of windowDays. Zero means no reorder is needed.
func ReorderQty(soldInWindow int, windowDays int, currentStock int) int {
	if windowDays < 1 {
		return 0
	}
	avgDaily := float64(soldInWindow) / float64(windowDays)
	qty := int(math.Ceil(avgDaily*7 - float64(currentStock)))
	if qty < 0 {
		return 0
	}
	return qty
}

func BusinessScore(lowStock int, deadStock int, risk RiskLevel, cash CashHealth) int {
	score := 100.0
	score -= float64(lowStock) * 5
	score -= float64(deadStock) * 10
	switch risk {
	case RiskMedium:
		score -= 10
	case RiskHigh:
		score -= 20
	}
	if cash == CashStressed {
		score -= 20
	}
	return int(math.Max(0, math.Round(score)))
}
