// Package breaker wraps an exchange adapter in a per-venue circuit breaker
// so a dead venue stops consuming race slots and outbound requests.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Settings tunes one venue breaker.
type Settings struct {
	MaxFailures uint32        // consecutive failures before the breaker opens
	OpenFor     time.Duration // how long the breaker stays open
}

// DefaultSettings opens after 5 consecutive failures for 30 seconds.
func DefaultSettings() Settings {
	return Settings{MaxFailures: 5, OpenFor: 30 * time.Second}
}

// Exchange decorates an adapter with a gobreaker.CircuitBreaker. An open
// breaker converts Fetch into an immediate transport error, which the race
// fetcher treats like any other adapter failure.
type Exchange struct {
	inner exchange.Exchange
	cb    *gobreaker.CircuitBreaker
}

// Wrap decorates one adapter.
func Wrap(inner exchange.Exchange, s Settings) *Exchange {
	settings := gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("exchange", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &Exchange{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// WrapAll decorates a full adapter set.
func WrapAll(adapters []exchange.Exchange, s Settings) []exchange.Exchange {
	out := make([]exchange.Exchange, len(adapters))
	for i, a := range adapters {
		out[i] = Wrap(a, s)
	}
	return out
}

func (e *Exchange) Name() string { return e.inner.Name() }

func (e *Exchange) Close() error { return e.inner.Close() }

func (e *Exchange) Fetch(ctx context.Context, req exchange.FetchRequest) ([]model.Candle, error) {
	out, err := e.cb.Execute(func() (any, error) {
		candles, err := e.inner.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return candles, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %s circuit open", model.ErrTransport, e.inner.Name())
		}
		return nil, err
	}
	return out.([]model.Candle), nil
}
