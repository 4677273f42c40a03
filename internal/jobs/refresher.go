package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vyapaar/backend/internal/domain"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// InsightsSource is the part of the service the refresher drives.
type InsightsSource interface {
	ListShops(ctx context.Context) ([]domain.Shop, error)
	RefreshInsights(ctx context.Context, scope domain.ShopScope) (domain.Insights, error)
}

type Result struct {
	Shops     int
	Refreshed int
	Failed    int
}

// Refresher periodically recomputes every shop's insights so dashboards are
// served warm from the report cache.
type Refresher struct {
	source  InsightsSource
	spec    string
	timeout time.Duration
	pool    *ants.Pool
	sched   *cron.Cron
	running atomic.Bool
}

func NewRefresher(source InsightsSource, spec string, workers int, loc *time.Location) (*Refresher, error) {
	if workers < 1 {
		workers = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	return &Refresher{
		source:  source,
		spec:    spec,
		timeout: 2 * time.Minute,
		pool:    pool,
		sched:   cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
	}, nil
}

// Start registers the refresh job and starts the scheduler. An empty spec
// leaves the scheduler idle.
func (r *Refresher) Start() error {
	if r.spec == "" {
		zap.S().Info("[jobs] insights refresh disabled")
		return nil
	}

	_, err := r.sched.AddFunc(r.spec, func() {
		// Skip a tick while the previous run is still in flight.
		if !r.running.CompareAndSwap(false, true) {
			zap.S().Warn("[jobs] insights refresh still running, skipping tick")
			return
		}
		defer r.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			zap.S().Errorf("[jobs] insights refresh failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	r.sched.Start()
	zap.S().Infof("[jobs] insights refresh scheduled spec=%q", r.spec)
	return nil
}

// Stop waits for a running job to finish and releases the worker pool.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.sched.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	r.pool.Release()
	return ctx.Err()
}

// RunOnce refreshes insights for every shop, fanned out over the pool.
func (r *Refresher) RunOnce(ctx context.Context) (Result, error) {
	shops, err := r.source.ListShops(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		wg        sync.WaitGroup
		refreshed atomic.Int64
		failed    atomic.Int64
	)
	for _, shop := range shops {
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			if r.refreshShop(ctx, shop) {
				refreshed.Add(1)
			} else {
				failed.Add(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			zap.S().Errorf("[jobs] submit refresh shop=%s: %v", shop.ID, submitErr)
		}
	}
	wg.Wait()

	result := Result{
		Shops:     len(shops),
		Refreshed: int(refreshed.Load()),
		Failed:    int(failed.Load()),
	}
	zap.S().Infof("[jobs] insights refreshed shops=%d ok=%d failed=%d", result.Shops, result.Refreshed, result.Failed)
	return result, nil
}

func (r *Refresher) refreshShop(ctx context.Context, shop domain.Shop) bool {
	insights, err := r.source.RefreshInsights(ctx, domain.ShopScope{ShopID: shop.ID})
	if err != nil {
		zap.S().Errorf("[jobs] refresh insights shop=%s: %v", shop.ID, err)
		return false
	}

	if insights.LowStockCount > 0 || insights.DeadStockCount > 0 {
		zap.S().Infow("shop needs stock attention",
			"shop", shop.ID,
			"low_stock", insights.LowStockCount,
			"dead_stock", insights.DeadStockCount,
			"score", insights.BusinessScore,
		)
	}
	return true
}
