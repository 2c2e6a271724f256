package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SYMBOLS", "BACKFILL_INTERVALS", "FETCH_TIMEOUT_SEC", "RATE_LIMIT_MAX_RETRIES"} {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []model.Symbol{"BTC/USDT", "ETH/USDT"}, cfg.Symbols)
	assert.Equal(t, []model.Interval{model.Interval1d, model.Interval4h, model.Interval1h}, cfg.Backfill.Intervals)
	assert.Equal(t, 10, cfg.Backfill.Years)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Backfill.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Backfill.MaxDelay)
	assert.Equal(t, 3, cfg.Backfill.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Stream.FallbackTimeout)
	assert.Equal(t, 3, cfg.Stream.MaxErrors)
	assert.Equal(t, 60*time.Second, cfg.Stream.RESTPollEvery)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "sol/usdt")
	t.Setenv("BACKFILL_INTERVALS", "1h")
	t.Setenv("BACKFILL_CRYPTO_YEARS", "2")
	t.Setenv("STREAM_REST_POLL_INTERVAL_SEC", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []model.Symbol{"SOL/USDT"}, cfg.Symbols)
	assert.Equal(t, []model.Interval{model.Interval1h}, cfg.Backfill.Intervals)
	assert.Equal(t, 2, cfg.Backfill.Years)
	assert.Equal(t, 15*time.Second, cfg.Stream.RESTPollEvery)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	t.Setenv("BACKFILL_INTERVALS", "1d,7h")
	_, err := Load()
	assert.Error(t, err)
}

func TestApplyOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols: [\"btc/usdt\", \"ada/usdt\"]\nweights:\n  technical: 0.4\n  patterns: 0.1\n"), 0o644))

	cfg := &Config{Symbols: []model.Symbol{"BTC/USDT"}}
	weights, err := ApplyOverlay(cfg, path)
	require.NoError(t, err)

	assert.Equal(t, []model.Symbol{"BTC/USDT", "ADA/USDT"}, cfg.Symbols)
	assert.Equal(t, 0.4, weights["technical"])
}

func TestApplyOverlayMissingFile(t *testing.T) {
	cfg := &Config{}
	weights, err := ApplyOverlay(cfg, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
	assert.Nil(t, weights)
}
