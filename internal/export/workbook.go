package export

import (
	"fmt"
	"io"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/xid"
)

var (
	salesHeader    = []string{"Invoice No", "Date", "Customer", "Phone", "Subtotal", "GST", "Grand Total", "Received", "Pending", "Status"}
	purchaseHeader = []string{"Date", "Supplier", "Invoice No", "Lines", "Total Amount", "Total GST"}
)

// WriteMonthlyWorkbook writes a workbook with a Sales sheet and a Purchases
// sheet.
func WriteMonthlyWorkbook(w io.Writer, sales []domain.Sale, purchases []domain.Purchase, loc *time.Location) error {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Sales")
	writeRow(f, "Sales", 1, toCells(salesHeader))
	for i, sale := range sales {
		writeRow(f, "Sales", i+2, []any{
			xid.Short(sale.ID),
			sale.SaleDate.In(loc).Format("2006-01-02 15:04"),
			sale.CustomerName,
			sale.CustomerPhone,
			sale.Subtotal.InexactFloat64(),
			sale.TotalGST.InexactFloat64(),
			sale.GrandTotal.InexactFloat64(),
			sale.AmountReceived.InexactFloat64(),
			sale.PendingAmount.InexactFloat64(),
			string(sale.PaymentStatus),
		})
	}

	f.NewSheet("Purchases")
	writeRow(f, "Purchases", 1, toCells(purchaseHeader))
	for i, p := range purchases {
		writeRow(f, "Purchases", i+2, []any{
			p.PurchaseDate.In(loc).Format("2006-01-02"),
			p.SupplierName,
			p.InvoiceNumber,
			len(p.Items),
			p.TotalAmount.InexactFloat64(),
			p.TotalGST.InexactFloat64(),
		})
	}

	f.SetActiveSheet(1)
	return f.Write(w)
}

func WriteGSTWorkbook(w io.Writer, shop domain.Shop, summary domain.GSTSummary) error {
	const sheet = "GST Summary"
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheet)

	rows := [][]any{
		{"Shop", shop.Name},
		{"GSTIN", shop.GSTNumber},
		{"Period", fmt.Sprintf("%02d/%d", summary.Month, summary.Year)},
		{},
		{"Input GST (purchases)", summary.TotalInputGST.InexactFloat64()},
		{"Output GST (sales)", summary.TotalOutputGST.InexactFloat64()},
		{"Net GST payable", summary.NetGSTPayable.InexactFloat64()},
	}
	for i, row := range rows {
		writeRow(f, sheet, i+1, row)
	}
	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, value := range values {
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", columnName(col), row), value)
	}
}

// columnName maps a zero-based index to a spreadsheet column (0 -> A, 26 -> AA).
func columnName(idx int) string {
	name := ""
	for idx >= 0 {
		name = string(rune('A'+idx%26)) + name
		idx = idx/26 - 1
	}
	return name
}

func toCells(header []string) []any {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	return cells
}
