package cache

import (
	"context"
	"time"
)

// ReportCache stores computed report payloads as JSON. Get reports whether
// the key was present; a miss is not an error.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	KindDashboard = "dashboard"
	KindInsights  = "insights"
)

func ReportKey(shopID string, kind string) string {
	return "vyapaar:report:" + shopID + ":" + kind
}

// ShopKeys lists every report key held for a shop.
func ShopKeys(shopID string) []string {
	return []string{
		ReportKey(shopID, KindDashboard),
		ReportKey(shopID, KindInsights),
	}
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
