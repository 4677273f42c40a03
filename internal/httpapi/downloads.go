package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/export"
	"vyapaar/backend/internal/invoice"
	"vyapaar/backend/internal/store"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeHTML = "text/html; charset=utf-8"
)

func (a *API) serveInvoice(w http.ResponseWriter, r *http.Request, p domain.Principal, saleID string) {
	sale, err := a.service.GetSale(r.Context(), p.Scope(), saleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	shop, err := a.service.GetShop(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := invoice.Render(&buf, shop, sale, a.service.Location()); err != nil {
		writeServiceError(w, err)
		return
	}

	disposition := "attachment"
	if preview, _ := strconv.ParseBool(r.URL.Query().Get("preview")); preview {
		disposition = "inline"
	}
	filename := fmt.Sprintf("invoice-%s.html", invoice.Number(sale))
	writeDownload(w, contentTypeHTML, disposition, filename, buf.Bytes())
}

// handleGSTSummary defaults to the current local month when month or year is
// omitted.
func (a *API) handleGSTSummary(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	now := time.Now().In(a.service.Location())
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	summary, err := a.service.GSTSummary(r.Context(), p.Scope(), month, year)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	shop, err := a.service.GetShop(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteGSTWorkbook(&buf, shop, summary); err != nil {
		writeServiceError(w, err)
		return
	}
	writeDownload(w, contentTypeXLSX, "attachment", fmt.Sprintf("gst-summary-%d-%02d.xlsx", year, month), buf.Bytes())
}

func (a *API) handleTodayReport(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sales, err := a.service.TodaySales(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSalesCSV(&buf, sales, a.service.Location()); err != nil {
		writeServiceError(w, err)
		return
	}
	day := time.Now().In(a.service.Location()).Format(time.DateOnly)
	writeDownload(w, contentTypeCSV, "attachment", fmt.Sprintf("sales-%s.csv", day), buf.Bytes())
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	report, err := a.service.MonthToDate(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	loc := a.service.Location()
	period := report.From.In(loc).Format("2006-01")

	var buf bytes.Buffer
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		if err := export.WriteMonthlyWorkbook(&buf, report.Sales, report.Purchases, loc); err != nil {
			writeServiceError(w, err)
			return
		}
		writeDownload(w, contentTypeXLSX, "attachment", fmt.Sprintf("monthly-%s.xlsx", period), buf.Bytes())
		return
	}

	if err := export.WriteSalesCSV(&buf, report.Sales, loc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeDownload(w, contentTypeCSV, "attachment", fmt.Sprintf("monthly-%s.csv", period), buf.Bytes())
}

// handleSalesSummary serves per-day totals. from and to are inclusive local
// dates; both default to the month to date.
func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	loc := a.service.Location()
	from, err := queryDate(r, "from", loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	to, err := queryDate(r, "to", loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	days, err := a.service.DailySummary(r.Context(), p.Scope(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, map[string]any{"days": days})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDailySummaryCSV(&buf, days); err != nil {
		writeServiceError(w, err)
		return
	}
	writeDownload(w, contentTypeCSV, "attachment", "sales-summary.csv", buf.Bytes())
}

func writeDownload(w http.ResponseWriter, contentType string, disposition string, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, store.Invalid(key, "must be a number")
	}
	return n, nil
}

func queryDate(r *http.Request, key string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, store.Invalid(key, "expected YYYY-MM-DD")
	}
	return t, nil
}
