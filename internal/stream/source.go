// Package stream maintains per-symbol live candle streams with a
// three-tier fallback chain: primary websocket, secondary websocket, REST
// polling through the race fetcher. Consumers see one logical candle event
// stream per symbol, tagged with the active source.
package stream

import "github.com/Mesteriis/crypto-inspector-sub001/internal/model"

// Source identifies the tier currently feeding a symbol.
type Source string

const (
	SourcePrimaryWS   Source = "primary_ws"
	SourceSecondaryWS Source = "secondary_ws"
	SourceREST        Source = "rest"
)

// next returns the demotion target. REST is terminal.
func (s Source) next() (Source, bool) {
	switch s {
	case SourcePrimaryWS:
		return SourceSecondaryWS, true
	case SourceSecondaryWS:
		return SourceREST, true
	default:
		return SourceREST, false
	}
}

// CandleStream is one live per-symbol connection. Start dials and begins
// delivering events to the handler; Stop tears the connection down and is
// idempotent.
type CandleStream interface {
	Start() error
	Stop()
}

// StreamHandler receives events from a CandleStream.
type StreamHandler interface {
	OnCandle(c model.Candle, closed bool)
	OnDisconnect(err error)
}

// StreamFactory builds the venue stream for a (source, symbol, interval)
// triple. Swappable in tests. An error means the source cannot serve the
// pair at all and the manager demotes immediately.
type StreamFactory func(source Source, symbol model.Symbol, interval model.Interval, handler StreamHandler) (CandleStream, error)

// Callbacks is the consumer surface of the manager. OnSourceChange fires
// before the first candle from the new source.
type Callbacks struct {
	OnCandle       func(symbol model.Symbol, c model.Candle, closed bool, source Source)
	OnSourceChange func(symbol model.Symbol, from, to Source)
}
