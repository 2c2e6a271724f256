package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/analytics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/feeds"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/pipeline"
)

func runScore(cmd *cobra.Command, _ []string) error {
	symbolRaw, _ := cmd.Flags().GetString("symbol")

	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	symbols := a.cfg.Symbols
	if symbolRaw != "" {
		symbol, err := model.ParseSymbol(symbolRaw)
		if err != nil {
			return err
		}
		symbols = []model.Symbol{symbol}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer := pipeline.NewAnalyzer(
		a.racer,
		feeds.NewDerivativesFeed(15*time.Second),
		feeds.NewFearGreedFeed(15*time.Second),
		feeds.NewOnChainFeed(),
		analytics.NewScorer(a.weights),
		nil,
	)

	for _, symbol := range symbols {
		score, err := analyzer.AnalyzeSymbol(ctx, symbol)
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(score, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
	}
	return nil
}
