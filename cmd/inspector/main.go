package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/cache"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/config"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange/breaker"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/fetch"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/store/postgres"
)

const (
	appName = "inspector"
	version = "v1.0.0"
)

var overlayPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Crypto market intelligence: backfill, live streams, composite scoring",
		Version: version,
		Long: `inspector ingests multi-venue candle history, keeps live streams up
through a websocket fallback chain, and publishes composite market scores
built from technicals, chart patterns, cycle phase, and external feeds.`,
	}
	rootCmd.PersistentFlags().StringVar(&overlayPath, "config", "inspector.yaml", "Optional YAML overlay (symbols, scoring weights)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the full engine: backfill check, live streams, scoring, ops HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().Bool("force-backfill", false, "Re-run backfill even when the completion marker exists")
	serveCmd.Flags().String("stream-interval", "1m", "Live stream bar interval")
	serveCmd.Flags().Duration("score-every", time.Hour, "Scoring pass period")

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run the historical backfill grid and exit",
		RunE:  runBackfill,
	}
	backfillCmd.Flags().Bool("force", false, "Ignore the completion marker")

	gapsCmd := &cobra.Command{
		Use:   "gaps",
		Short: "Detect (and optionally fill) holes in stored history",
		RunE:  runGaps,
	}
	gapsCmd.Flags().String("symbol", "BTC/USDT", "Symbol to inspect")
	gapsCmd.Flags().String("interval", "1h", "Interval to inspect")
	gapsCmd.Flags().Bool("fill", false, "Fetch and persist the missing bars")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Run one scoring pass and print the composite as JSON",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("symbol", "", "Score a single symbol (default: all configured)")

	rootCmd.AddCommand(serveCmd, backfillCmd, gapsCmd, scoreCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// app bundles the shared collaborators the subcommands wire up.
type app struct {
	cfg     *config.Config
	weights map[string]float64
	racer   *fetch.Racer
	cache   *cache.ResultCache
	store   *postgres.CandleStore
}

func loadApp(needStore bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	weights, err := config.ApplyOverlay(cfg, overlayPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, weights: weights}
	if cfg.Cache.Addr != "" {
		a.cache = cache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	}

	adapters := breaker.WrapAll(exchange.All(cfg.Fetch.Timeout), breaker.DefaultSettings())
	a.racer = fetch.NewRacer(adapters, fetch.WithCache(a.cache))

	if needStore {
		if cfg.Store.DatabaseURL == "" {
			a.close()
			return nil, fmt.Errorf("DATABASE_URL is required for this command")
		}
		a.store, err = postgres.Open(cfg.Store.DatabaseURL, cfg.Store.QueryTimeout)
		if err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.racer != nil {
		if err := a.racer.Close(); err != nil {
			log.Warn().Err(err).Msg("adapter close failed")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("cache close failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}
}
