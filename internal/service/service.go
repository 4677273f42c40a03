package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"vyapaar/backend/internal/cache"
	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/insights"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

const (
	auditProductCreate  = "product_create"
	auditProductPricing = "product_pricing"
	auditProductArchive = "product_archive"
	auditPurchase       = "purchase_create"
	auditSale           = "sale_create"
	auditPayment        = "payment_receive"
)

type Options struct {
	Insights *insights.Engine
	Cache    cache.ReportCache
	CacheTTL time.Duration
	// Location is the shop-local zone used for day and month windows.
	Location *time.Location
}

type Service struct {
	repo     store.Repository
	insights *insights.Engine
	reports  cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 60 * time.Second
	}
	if opts.Insights == nil {
		opts.Insights = insights.NewEngine(opts.Cache, opts.CacheTTL)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		repo:     repo,
		insights: opts.Insights,
		reports:  opts.Cache,
		cacheTTL: opts.CacheTTL,
		loc:      opts.Location,
		now:      time.Now,
	}
}

// Location is the zone reports are bucketed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) GetShop(ctx context.Context, scope domain.ShopScope) (domain.Shop, error) {
	shop, err := s.repo.GetShop(ctx, scope.ShopID)
	if err != nil {
		return domain.Shop{}, err
	}
	return *shop, nil
}

func (s *Service) ListShops(ctx context.Context) ([]domain.Shop, error) {
	return s.repo.ListShops(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, scope domain.ShopScope, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	// Without a date the last 24 hours are returned, up to now.
	if strings.TrimSpace(date) == "" {
		return s.repo.ListAuditLogs(ctx, scope, s.now().UTC().Add(-24*time.Hour), time.Time{}, limit)
	}

	parsed, err := time.ParseInLocation(time.DateOnly, date, s.loc)
	if err != nil {
		return nil, store.Invalid("date", "expected YYYY-MM-DD")
	}
	from := parsed.UTC()
	to := parsed.AddDate(0, 0, 1).UTC()

	return s.repo.ListAuditLogs(ctx, scope, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, scope domain.ShopScope, action string, entityType string, entityID string, detail string) {
	actor := scope.UserID
	if actor == "" {
		actor = "system"
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ShopID:     scope.ShopID,
		ActorID:    actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		zap.S().Warnf("[audit] failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// invalidateReports drops the shop's cached dashboard and insights after a
// mutation.
func (s *Service) invalidateReports(ctx context.Context, scope domain.ShopScope) {
	if err := s.reports.Delete(ctx, cache.ShopKeys(scope.ShopID)...); err != nil {
		zap.S().Warnf("[service] failed to invalidate report cache shop=%s: %v", scope.ShopID, err)
	}
}

func (s *Service) startOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) startOfMonth(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
}

// todayWindow is [start of the local day, start of the next local day).
func (s *Service) todayWindow() (time.Time, time.Time) {
	start := s.startOfDay(s.now())
	return start, start.AddDate(0, 0, 1)
}

// monthToDateWindow runs from the first of the local month to the end of
// the local day.
func (s *Service) monthToDateWindow() (time.Time, time.Time) {
	now := s.now()
	return s.startOfMonth(now), s.startOfDay(now).AddDate(0, 0, 1)
}
