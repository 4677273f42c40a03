package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/service"
	"vyapaar/backend/internal/store"
)

const apiPrefix = "/api/v1"

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	authLimiter   *attemptLimiter
	csrfSecret    []byte
}

// principalHandler receives the caller resolved from the bearer token.
type principalHandler func(w http.ResponseWriter, r *http.Request, p domain.Principal)

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		zap.S().Fatalf("[httpapi] failed to generate csrf secret: %v", err)
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		authLimiter:   newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour is the hex HMAC of an hour bucket (unix seconds).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc(apiPrefix+"/auth/register", a.handleRegister)
	mux.HandleFunc(apiPrefix+"/auth/login", a.handleLogin)
	mux.HandleFunc(apiPrefix+"/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc(apiPrefix+"/auth/me", a.requireAuth(a.handleMe))

	mux.HandleFunc(apiPrefix+"/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc(apiPrefix+"/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc(apiPrefix+"/catalog", a.requireAuth(a.handleCatalog))
	mux.HandleFunc(apiPrefix+"/purchases", a.requireAuth(a.handlePurchases))
	mux.HandleFunc(apiPrefix+"/sales", a.requireAuth(a.handleSales))
	mux.HandleFunc(apiPrefix+"/sales/", a.requireAuth(a.handleSaleActions))
	mux.HandleFunc(apiPrefix+"/customers", a.requireAuth(a.handleCustomers))
	mux.HandleFunc(apiPrefix+"/customers/", a.requireAuth(a.handleCustomerActions))

	mux.HandleFunc(apiPrefix+"/dashboard", a.requireAuth(a.handleDashboard))
	mux.HandleFunc(apiPrefix+"/gst/summary", a.requireAuth(a.handleGSTSummary))
	mux.HandleFunc(apiPrefix+"/insights", a.requireAuth(a.handleInsights))
	mux.HandleFunc(apiPrefix+"/reports/today", a.requireAuth(a.handleTodayReport))
	mux.HandleFunc(apiPrefix+"/reports/monthly", a.requireAuth(a.handleMonthlyReport))
	mux.HandleFunc(apiPrefix+"/reports/sales-summary", a.requireAuth(a.handleSalesSummary))
	mux.HandleFunc(apiPrefix+"/audit-logs", a.requireAuth(a.handleAuditLogs))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next principalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		principal, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r, principal)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.authLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.authLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a token for the X-CSRF-Token header of mutating
// requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	shop, err := a.service.GetShop(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": p, "shop": shop})
}

// Register and login are called before a client can fetch a token.
var csrfExemptPaths = []string{
	apiPrefix + "/auth/register",
	apiPrefix + "/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), p.Scope(), r.URL.Query().Get("filter"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), p.Scope(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleProductActions serves /products/{id}/pricing and /products/{id}/archive.
func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, action := splitResource(r.URL.Path, apiPrefix+"/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch action {
	case "pricing":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.ProductPricingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProductPricing(r.Context(), p.Scope(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case "archive":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		product, err := a.service.ArchiveProduct(r.Context(), p.Scope(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown product action"))
	}
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	products, err := a.service.ListCatalog(r.Context(), includeArchived)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	switch r.Method {
	case http.MethodGet:
		purchases, err := a.service.ListPurchases(r.Context(), p.Scope())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), p.Scope(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), p.Scope())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), p.Scope(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleSaleActions serves /sales/{id} and /sales/{id}/invoice.
func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id, action := splitResource(r.URL.Path, apiPrefix+"/sales/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	switch action {
	case "":
		sale, err := a.service.GetSale(r.Context(), p.Scope(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case "invoice":
		a.serveInvoice(w, r, p, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown sale action"))
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	customers, err := a.service.ListCustomers(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

// handleCustomerActions serves /customers/{phone}/history and
// /customers/{phone}/payments.
func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	phone, action := splitResource(r.URL.Path, apiPrefix+"/customers/")
	if phone == "" {
		writeError(w, http.StatusBadRequest, errors.New("customer phone required"))
		return
	}

	switch action {
	case "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		sales, err := a.service.CustomerHistory(r.Context(), p.Scope(), phone)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "sales": sales})
	case "payments":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.PaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.ReceivePayment(r.Context(), p.Scope(), phone, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown customer action"))
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	dashboard, err := a.service.Dashboard(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleInsights(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	insights, err := a.service.Insights(r.Context(), p.Scope())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), p.Scope(), date, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.S().Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(startedAt),
		)
	})
}

// splitResource turns "/prefix/{id}/{action}" into its id and action parts.
func splitResource(path string, prefix string) (string, string) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, action, _ := strings.Cut(tail, "/")
	return strings.TrimSpace(id), strings.Trim(action, "/")
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps store sentinels onto HTTP statuses. Insufficient stock also
// matches ErrValidation, so it is checked first.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the cause of 5xx responses from clients and logs it.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		zap.S().Errorw("internal error", "status", status, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
