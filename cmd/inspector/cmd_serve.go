package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/analytics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/feeds"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/ops"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/pipeline"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/publish"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/stream"
)

func runServe(cmd *cobra.Command, _ []string) error {
	forceBackfill, _ := cmd.Flags().GetBool("force-backfill")
	streamIvRaw, _ := cmd.Flags().GetString("stream-interval")
	scoreEvery, _ := cmd.Flags().GetDuration("score-every")

	streamInterval, err := model.ParseInterval(streamIvRaw)
	if err != nil {
		return err
	}

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}

	publisher := publish.NewLogPublisher()

	orch := newOrchestrator(a)

	// Backfill runs in the background; streaming and scoring start on
	// whatever history is already there.
	go func() {
		if err := orch.CheckAndBackfill(ctx, forceBackfill); err != nil {
			log.Error().Err(err).Msg("backfill incomplete; live duties continue")
		}
	}()

	manager := stream.NewManager(stream.Config{
		Interval:        streamInterval,
		FallbackTimeout: a.cfg.Stream.FallbackTimeout,
		MaxErrors:       a.cfg.Stream.MaxErrors,
		RESTPollEvery:   a.cfg.Stream.RESTPollEvery,
		MonitorEvery:    a.cfg.Stream.MonitorEvery,
	}, a.cfg.Symbols, a.racer, stream.Callbacks{
		OnCandle: func(symbol model.Symbol, c model.Candle, closed bool, source stream.Source) {
			publisher.PublishLiveCandle(symbol, c, closed, source)
		},
		OnSourceChange: func(symbol model.Symbol, from, to stream.Source) {
			log.Warn().Stringer("symbol", symbol).Str("from", string(from)).Str("to", string(to)).Msg("stream source changed")
		},
	}, nil)
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	analyzer := pipeline.NewAnalyzer(
		a.racer,
		feeds.NewDerivativesFeed(15*time.Second),
		feeds.NewFearGreedFeed(15*time.Second),
		feeds.NewOnChainFeed(),
		analytics.NewScorer(a.weights),
		publisher,
	)

	go func() {
		analyzer.AnalyzeAll(ctx, a.cfg.Symbols)
		ticker := time.NewTicker(scoreEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				analyzer.AnalyzeAll(ctx, a.cfg.Symbols)
			}
		}
	}()

	opsSrv := ops.NewServer(a.cfg.Ops.ListenAddr, orch, manager)
	go func() {
		if err := opsSrv.Start(); err != nil {
			log.Error().Err(err).Msg("ops server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := opsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Msg("ops shutdown dirty")
	}
	return nil
}
