// Package publish defines the sensor publisher boundary: the consumer of
// composite scores, indicator bundles, cycle info, live candles, and
// backfill progress. No transport is assumed; the default implementation
// emits structured log events that downstream shippers can pick up.
package publish

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/stream"
)

// SensorPublisher receives every externally visible analytic artifact.
// Implementations must tolerate concurrent calls.
type SensorPublisher interface {
	PublishComposite(symbol model.Symbol, score model.CompositeScore)
	PublishIndicatorBundle(symbol model.Symbol, timeframe model.Interval, ti model.TechnicalIndicators)
	PublishCycle(info model.CycleInfo)
	PublishLiveCandle(symbol model.Symbol, c model.Candle, isClosed bool, source stream.Source)
	PublishBackfillProgress(p model.BackfillProgress)
}

// LogPublisher writes each artifact as one structured log event with the
// full JSON payload attached. Absent values serialize as explicit nulls.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: log.With().Str("component", "sensor").Logger()}
}

func (p *LogPublisher) emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("event", event).Msg("payload not serializable")
		return
	}
	p.logger.Info().Str("event", event).RawJSON("payload", raw).Msg(event)
}

func (p *LogPublisher) PublishComposite(symbol model.Symbol, score model.CompositeScore) {
	p.emit("composite_score", score)
}

func (p *LogPublisher) PublishIndicatorBundle(symbol model.Symbol, timeframe model.Interval, ti model.TechnicalIndicators) {
	p.emit("indicator_bundle", ti)
}

func (p *LogPublisher) PublishCycle(info model.CycleInfo) {
	p.emit("cycle_info", info)
}

func (p *LogPublisher) PublishLiveCandle(symbol model.Symbol, c model.Candle, isClosed bool, source stream.Source) {
	p.emit("live_candle", struct {
		Symbol   model.Symbol  `json:"symbol"`
		Candle   model.Candle  `json:"candle"`
		IsClosed bool          `json:"is_closed"`
		Source   stream.Source `json:"source"`
	}{symbol, c, isClosed, source})
}

func (p *LogPublisher) PublishBackfillProgress(progress model.BackfillProgress) {
	p.emit("backfill_progress", progress)
}
