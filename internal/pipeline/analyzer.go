// Package pipeline runs the scoring pass: pull recent history through the
// race fetcher, compute indicators, patterns, and cycle phase, mix in the
// optional external feeds, and publish the composite.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/analytics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/publish"
)

// Fetcher is the slice of the race fetcher the analyzer reads through.
type Fetcher interface {
	Fetch(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, error)
}

// DerivativesSource supplies perp-market inputs; errors inside the feed
// surface as nil fields.
type DerivativesSource interface {
	Fetch(ctx context.Context, symbol model.Symbol) model.DerivativesInput
}

// FearGreedSource supplies the sentiment index.
type FearGreedSource interface {
	Fetch(ctx context.Context) (*int, error)
}

// OnChainSource supplies the optional valuation inputs.
type OnChainSource interface {
	Fetch(ctx context.Context, symbol model.Symbol) model.OnChainInput
}

const (
	defaultHistoryBars = 400
	defaultTimeframe   = model.Interval1d
)

// Analyzer computes and publishes composite scores. The feed sources may
// be nil; their components then score neutral.
type Analyzer struct {
	fetcher   Fetcher
	deriv     DerivativesSource
	fearGreed FearGreedSource
	onChain   OnChainSource
	scorer    *analytics.Scorer
	publisher publish.SensorPublisher

	timeframe model.Interval
	history   int
	now       func() time.Time
}

func NewAnalyzer(fetcher Fetcher, deriv DerivativesSource, fearGreed FearGreedSource, onChain OnChainSource, scorer *analytics.Scorer, publisher publish.SensorPublisher) *Analyzer {
	return &Analyzer{
		fetcher:   fetcher,
		deriv:     deriv,
		fearGreed: fearGreed,
		onChain:   onChain,
		scorer:    scorer,
		publisher: publisher,
		timeframe: defaultTimeframe,
		history:   defaultHistoryBars,
		now:       time.Now,
	}
}

// AnalyzeSymbol runs one full scoring pass for a symbol and publishes the
// indicator bundle, the cycle info, and the composite.
func (a *Analyzer) AnalyzeSymbol(ctx context.Context, symbol model.Symbol) (model.CompositeScore, error) {
	res, err := a.fetcher.Fetch(ctx, exchange.FetchRequest{
		Symbol:   symbol,
		Interval: a.timeframe,
		Limit:    a.history,
	})
	if err != nil {
		return model.CompositeScore{}, fmt.Errorf("fetch %s history: %w", symbol, err)
	}
	candles := res.Candles
	if len(candles) == 0 {
		return model.CompositeScore{}, fmt.Errorf("fetch %s history: %w", symbol, model.ErrAllExchangesFailed)
	}

	ti := analytics.ComputeIndicators(symbol, a.timeframe, candles)
	summary, _ := analytics.DetectPatterns(candles)

	ath, atl := priceExtremes(candles)
	cycle := analytics.AnalyzeCycle(ti.Price, ath, atl, ti.RSI, a.now())

	inputs := analytics.ScoreInputs{
		Symbol:    symbol,
		Timestamp: ti.Timestamp,
		Technical: &ti,
		Patterns:  &summary,
		Cycle:     &cycle,
	}
	if a.deriv != nil {
		d := a.deriv.Fetch(ctx, symbol)
		inputs.Derivatives = &d
	}
	if a.fearGreed != nil {
		if v, err := a.fearGreed.Fetch(ctx); err != nil {
			log.Warn().Err(err).Msg("fear & greed unavailable")
		} else {
			inputs.FearGreed = v
		}
	}
	if a.onChain != nil {
		oc := a.onChain.Fetch(ctx, symbol)
		inputs.OnChain = &oc
	}

	score := a.scorer.Compute(inputs)

	if a.publisher != nil {
		a.publisher.PublishIndicatorBundle(symbol, a.timeframe, ti)
		a.publisher.PublishCycle(cycle)
		a.publisher.PublishComposite(symbol, score)
	}
	return score, nil
}

// AnalyzeAll scores every symbol, logging failures and carrying on.
func (a *Analyzer) AnalyzeAll(ctx context.Context, symbols []model.Symbol) {
	for _, symbol := range symbols {
		score, err := a.AnalyzeSymbol(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Stringer("symbol", symbol).Msg("scoring pass failed")
			continue
		}
		log.Info().
			Stringer("symbol", symbol).
			Float64("total", score.TotalScore).
			Str("signal", string(score.Signal)).
			Str("action", string(score.Action)).
			Msg("composite published")
	}
}

// priceExtremes scans the window for the high and low water marks. The
// window is the best ATH/ATL approximation available without a full
// history store read.
func priceExtremes(candles []model.Candle) (ath, atl float64) {
	for i, c := range candles {
		h, _ := c.High.Float64()
		l, _ := c.Low.Float64()
		if i == 0 || h > ath {
			ath = h
		}
		if i == 0 || l < atl {
			atl = l
		}
	}
	return ath, atl
}
