// Package config loads the process configuration from the environment,
// with an optional YAML overlay for symbol lists and scoring weights.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Config is built once at process start; every component receives its
// sub-struct and never reads the environment itself.
type Config struct {
	Symbols  []model.Symbol
	Fetch    FetchConfig
	Backfill BackfillConfig
	Stream   StreamConfig
	Store    StoreConfig
	Cache    CacheConfig
	Ops      OpsConfig
}

// FetchConfig tunes the adapters and the race fetcher.
type FetchConfig struct {
	Timeout time.Duration // per-adapter HTTP timeout
}

// BackfillConfig tunes the historical ingestion grid.
type BackfillConfig struct {
	Years      int
	Intervals  []model.Interval
	BaseDelay  time.Duration // first backoff step on 429/5xx
	MaxDelay   time.Duration // backoff cap
	MaxRetries int
	PageDelay  time.Duration // pause between paged requests to one provider
	MarkerPath string
}

// StreamConfig tunes the live stream fallback chain.
type StreamConfig struct {
	FallbackTimeout time.Duration // quiet period before forced demotion
	MaxErrors       int           // disconnects before demotion
	RESTPollEvery   time.Duration
	MonitorEvery    time.Duration
}

// StoreConfig carries the candle store DSN.
type StoreConfig struct {
	DatabaseURL  string
	QueryTimeout time.Duration
}

// CacheConfig carries the optional Redis warm tier. Empty Addr disables it.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpsConfig carries the operational HTTP surface.
type OpsConfig struct {
	ListenAddr string
}

// Load reads the environment and applies defaults from the option table.
func Load() (*Config, error) {
	symbols, err := model.ParseSymbols(getEnv("SYMBOLS", "BTC/USDT,ETH/USDT"))
	if err != nil {
		return nil, fmt.Errorf("SYMBOLS: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS: empty symbol list")
	}

	intervals, err := parseIntervals(getEnv("BACKFILL_INTERVALS", "1d,4h,1h"))
	if err != nil {
		return nil, fmt.Errorf("BACKFILL_INTERVALS: %w", err)
	}

	cfg := &Config{
		Symbols: symbols,
		Fetch: FetchConfig{
			Timeout: secondsEnv("FETCH_TIMEOUT_SEC", 10),
		},
		Backfill: BackfillConfig{
			Years:      intEnv("BACKFILL_CRYPTO_YEARS", 10),
			Intervals:  intervals,
			BaseDelay:  secondsEnv("RATE_LIMIT_BASE_DELAY_SEC", 5),
			MaxDelay:   secondsEnv("RATE_LIMIT_MAX_DELAY_SEC", 60),
			MaxRetries: intEnv("RATE_LIMIT_MAX_RETRIES", 3),
			PageDelay:  500 * time.Millisecond,
			MarkerPath: getEnv("BACKFILL_MARKER_PATH", ".backfill_done"),
		},
		Stream: StreamConfig{
			FallbackTimeout: secondsEnv("STREAM_FALLBACK_TIMEOUT_SEC", 30),
			MaxErrors:       intEnv("STREAM_MAX_ERRORS_BEFORE_FALLBACK", 3),
			RESTPollEvery:   secondsEnv("STREAM_REST_POLL_INTERVAL_SEC", 60),
			MonitorEvery:    10 * time.Second,
		},
		Store: StoreConfig{
			DatabaseURL:  getEnv("DATABASE_URL", ""),
			QueryTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intEnv("REDIS_DB", 0),
		},
		Ops: OpsConfig{
			ListenAddr: getEnv("OPS_LISTEN_ADDR", ":8099"),
		},
	}
	return cfg, nil
}

func parseIntervals(csv string) ([]model.Interval, error) {
	var out []model.Interval
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		iv, err := model.ParseInterval(part)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty interval list")
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func secondsEnv(key string, fallback int) time.Duration {
	return time.Duration(intEnv(key, fallback)) * time.Second
}
