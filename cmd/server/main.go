package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"vyapaar/backend/internal/cache"
	"vyapaar/backend/internal/config"
	"vyapaar/backend/internal/httpapi"
	"vyapaar/backend/internal/insights"
	"vyapaar/backend/internal/jobs"
	"vyapaar/backend/internal/logging"
	"vyapaar/backend/internal/service"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/store/memory"
	pgstore "vyapaar/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Setup(cfg.LogMode, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := zap.S()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("database migration failed: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnf("redis unavailable (%v), using noop cache", err)
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	engine := insights.NewEngine(reportCache, cfg.ReportCacheTTL())
	svc := service.New(repo, service.Options{
		Insights: engine,
		Cache:    reportCache,
		CacheTTL: cfg.ReportCacheTTL(),
		Location: loc,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	refresher, err := jobs.NewRefresher(svc, cfg.InsightsRefreshSpec, cfg.RefreshWorkers, loc)
	if err != nil {
		log.Fatalf("insights refresher: %v", err)
	}
	if err := refresher.Start(); err != nil {
		log.Fatalf("insights refresher: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("vyapaar backend listening on %s (tz=%s)", cfg.Address(), loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
	if err := refresher.Stop(shutdownCtx); err != nil {
		log.Warnf("refresher stop: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Errorf("close error: %v", err)
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
