package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/backfill"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/publish"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/store"
)

func newOrchestrator(a *app) *backfill.Orchestrator {
	return backfill.New(backfill.Config{
		Years:      a.cfg.Backfill.Years,
		Intervals:  a.cfg.Backfill.Intervals,
		PageDelay:  a.cfg.Backfill.PageDelay,
		BaseDelay:  a.cfg.Backfill.BaseDelay,
		MaxDelay:   a.cfg.Backfill.MaxDelay,
		MaxRetries: a.cfg.Backfill.MaxRetries,
	}, a.cfg.Symbols, a.racer, a.store, store.NewMarker(a.cfg.Backfill.MarkerPath), publish.NewLogPublisher())
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

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

	orch := newOrchestrator(a)
	if err := orch.CheckAndBackfill(ctx, force); err != nil {
		var bErr *model.BackfillError
		if errors.As(err, &bErr) {
			for _, key := range bErr.Failed {
				log.Error().Str("cell", key.String()).Msg("cell failed")
			}
		}
		return err
	}
	log.Info().Msg("backfill complete")
	return nil
}

func runGaps(cmd *cobra.Command, _ []string) error {
	symbolRaw, _ := cmd.Flags().GetString("symbol")
	intervalRaw, _ := cmd.Flags().GetString("interval")
	fill, _ := cmd.Flags().GetBool("fill")

	symbol, err := model.ParseSymbol(symbolRaw)
	if err != nil {
		return err
	}
	interval, err := model.ParseInterval(intervalRaw)
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

	orch := newOrchestrator(a)
	gaps, err := orch.DetectGaps(ctx, symbol, interval)
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		log.Info().Str("cell", model.CellKey{Symbol: symbol, Interval: interval}.String()).Msg("no gaps")
		return nil
	}
	for _, g := range gaps {
		fmt.Printf("gap: [%d, %d)\n", g.Start, g.End)
	}
	if !fill {
		return nil
	}

	rows, err := orch.FillGaps(ctx, symbol, interval, gaps)
	if err != nil {
		return err
	}
	log.Info().Int64("rows", rows).Int("gaps", len(gaps)).Msg("gaps filled")
	return nil
}
