package invoice

import (
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/xid"
)

type line struct {
	Sr      int
	Name    string
	HSN     string
	Qty     int
	Rate    string
	GSTRate int
	GSTAmt  string
	Amount  string
}

type view struct {
	Shop       domain.Shop
	Sale       domain.Sale
	Number     string
	Date       string
	Lines      []line
	Subtotal   string
	TotalGST   string
	GrandTotal string
	Received   string
	Pending    string
}

var page = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; margin: 24px; }
h1 { text-align: center; font-size: 18px; margin: 0; }
.box { border: 1px solid #000; padding: 8px; margin-top: 10px; }
.row { display: flex; justify-content: space-between; }
table { width: 100%; border-collapse: collapse; margin-top: 10px; }
th, td { border: 1px solid #000; padding: 4px 6px; text-align: left; }
th { background: #eee; }
.num { text-align: right; }
.totals { margin-top: 10px; text-align: right; font-weight: bold; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>TAX INVOICE</h1>
<div class="box row">
  <div>
    <strong>{{.Shop.Name}}</strong><br>
    Address: {{.Shop.Address}}<br>
    GSTIN: {{.Shop.GSTNumber}}
  </div>
  <div>
    Invoice Date: {{.Date}}<br>
    Invoice No: {{.Number}}
  </div>
</div>
<div class="box">
  <strong>Billing Details</strong><br>
  Name: {{.Sale.CustomerName}}<br>
  Address: {{orDash .Sale.CustomerAddress}}<br>
  Phone: {{orDash .Sale.CustomerPhone}}<br>
  GST/Aadhaar: {{orDash .Sale.CustomerTaxID}}
</div>
<table>
  <thead>
    <tr><th>Sr</th><th>Item</th><th>HSN</th><th>Qty</th><th>Rate</th><th>GST %</th><th>GST Amt</th><th>Amount</th></tr>
  </thead>
  <tbody>
  {{- range .Lines}}
    <tr><td>{{.Sr}}</td><td>{{.Name}}</td><td>{{orDash .HSN}}</td><td class="num">{{.Qty}}</td><td class="num">{{.Rate}}</td><td class="num">{{.GSTRate}}%</td><td class="num">{{.GSTAmt}}</td><td class="num">{{.Amount}}</td></tr>
  {{- end}}
  </tbody>
</table>
<div class="totals">
  Subtotal: Rs. {{.Subtotal}} /-<br>
  Total GST: Rs. {{.TotalGST}} /-<br>
  Grand Total: Rs. {{.GrandTotal}} /-<br>
  Received: Rs. {{.Received}} /-<br>
  Pending: Rs. {{.Pending}} /-
</div>
<div class="row">
  <div class="box">
    <strong>Terms &amp; Conditions</strong><br>
    1. Goods once sold will not be taken back.<br>
    2. Payment due upon receipt.
  </div>
  <div class="box">
    <strong>Bank Details</strong><br>
    Bank: {{.Shop.BankName}}<br>
    A/C: {{.Shop.BankAccountNumber}}<br>
    IFSC: {{.Shop.BankIFSC}}
  </div>
</div>
</body>
</html>
`))

// Number is the printable invoice number of a sale.
func Number(sale domain.Sale) string {
	return xid.Short(sale.ID)
}

// Render writes a print-ready HTML tax invoice. Dates are shown in loc.
func Render(w io.Writer, shop domain.Shop, sale domain.Sale, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	v := view{
		Shop:       shop,
		Sale:       sale,
		Number:     Number(sale),
		Date:       sale.SaleDate.In(loc).Format("02 Jan 2006"),
		Lines:      make([]line, 0, len(sale.Items)),
		Subtotal:   fixed(sale.Subtotal),
		TotalGST:   fixed(sale.TotalGST),
		GrandTotal: fixed(sale.GrandTotal),
		Received:   fixed(sale.AmountReceived),
		Pending:    fixed(sale.PendingAmount),
	}
	for i, item := range sale.Items {
		amount := item.Amount()
		gst := item.GST()
		v.Lines = append(v.Lines, line{
			Sr:      i + 1,
			Name:    item.ProductName,
			HSN:     item.HSNCode,
			Qty:     item.Quantity,
			Rate:    fixed(item.SellingPrice),
			GSTRate: item.GSTRate,
			GSTAmt:  fixed(gst),
			Amount:  fixed(amount.Add(gst)),
		})
	}

	return page.Execute(w, v)
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}
