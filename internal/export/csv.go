package export

import (
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/xid"
)

type SaleRow struct {
	InvoiceNo     string `csv:"invoice_no"`
	Date          string `csv:"date"`
	CustomerName  string `csv:"customer_name"`
	CustomerPhone string `csv:"customer_phone"`
	Quantity      int    `csv:"quantity"`
	Subtotal      string `csv:"subtotal"`
	TotalGST      string `csv:"total_gst"`
	GrandTotal    string `csv:"grand_total"`
	Received      string `csv:"amount_received"`
	Pending       string `csv:"pending_amount"`
	Status        string `csv:"payment_status"`
}

type DailySummaryRow struct {
	Date       string `csv:"date"`
	Sales      int64  `csv:"sales"`
	Subtotal   string `csv:"subtotal"`
	TotalGST   string `csv:"total_gst"`
	GrandTotal string `csv:"grand_total"`
	Received   string `csv:"amount_received"`
	Pending    string `csv:"pending_amount"`
}

func SaleRows(sales []domain.Sale, loc *time.Location) []*SaleRow {
	rows := make([]*SaleRow, 0, len(sales))
	for _, sale := range sales {
		qty := 0
		for _, line := range sale.Items {
			qty += line.Quantity
		}
		rows = append(rows, &SaleRow{
			InvoiceNo:     xid.Short(sale.ID),
			Date:          sale.SaleDate.In(loc).Format("2006-01-02 15:04"),
			CustomerName:  safeCell(sale.CustomerName),
			CustomerPhone: safeCell(sale.CustomerPhone),
			Quantity:      qty,
			Subtotal:      money(sale.Subtotal),
			TotalGST:      money(sale.TotalGST),
			GrandTotal:    money(sale.GrandTotal),
			Received:      money(sale.AmountReceived),
			Pending:       money(sale.PendingAmount),
			Status:        string(sale.PaymentStatus),
		})
	}
	return rows
}

func WriteSalesCSV(w io.Writer, sales []domain.Sale, loc *time.Location) error {
	return gocsv.Marshal(SaleRows(sales, loc), w)
}

func WriteDailySummaryCSV(w io.Writer, days []domain.DailySalesRow) error {
	rows := make([]*DailySummaryRow, 0, len(days))
	for _, day := range days {
		rows = append(rows, &DailySummaryRow{
			Date:       day.Date,
			Sales:      day.Sales,
			Subtotal:   money(day.Subtotal),
			TotalGST:   money(day.TotalGST),
			GrandTotal: money(day.GrandTotal),
			Received:   money(day.Received),
			Pending:    money(day.Pending),
		})
	}
	return gocsv.Marshal(rows, w)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// safeCell quotes free text that a spreadsheet would otherwise evaluate as a
// formula.
func safeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
