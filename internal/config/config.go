package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	AutoMigrate           bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	Timezone              string
	LogMode               string
	LogFile               string
	InsightsRefreshSpec   string
	RefreshWorkers        int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL := positiveInt("REPORT_CACHE_TTL_SECONDS", 60)
	tokenTTL := positiveInt("ACCESS_TOKEN_TTL_MINUTES", 7*24*60)
	workers := positiveInt("REFRESH_WORKERS", 4)

	autoMigrate, err := strconv.ParseBool(getEnv("AUTO_MIGRATE", "true"))
	if err != nil {
		autoMigrate = true
	}

	// An explicitly empty refresh spec disables the job.
	refreshSpec, ok := os.LookupEnv("INSIGHTS_REFRESH_SPEC")
	if !ok {
		refreshSpec = "@every 30m"
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         os.Getenv("ALLOWED_ORIGIN"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		AutoMigrate:           autoMigrate,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: cacheTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		Timezone:              getEnv("TIMEZONE", "Asia/Kolkata"),
		LogMode:               os.Getenv("LOG_MODE"),
		LogFile:               os.Getenv("LOG_FILE"),
		InsightsRefreshSpec:   strings.TrimSpace(refreshSpec),
		RefreshWorkers:        workers,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
