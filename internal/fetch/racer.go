// Package fetch implements the race fetcher: one logical candle fetch is
// fanned out across every venue adapter concurrently and the first
// sufficient reply wins. Losing tasks are cancelled cooperatively and
// drained before the racer returns.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/metrics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// ResultCache is the optional warm tier for limit-only fetches. Ranged
// (historical) requests bypass it.
type ResultCache interface {
	Get(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, bool)
	Set(ctx context.Context, req exchange.FetchRequest, res *model.FetchResult)
}

// drainDeadline bounds how long the racer waits for cancelled tasks to
// acknowledge after a winner is found.
const drainDeadline = 2 * time.Second

// Racer races a set of venue adapters. It owns the adapters: Close
// releases all of them.
type Racer struct {
	adapters []exchange.Exchange
	cache    ResultCache
}

// Option configures a Racer.
type Option func(*Racer)

// WithCache attaches a warm result cache.
func WithCache(c ResultCache) Option {
	return func(r *Racer) { r.cache = c }
}

// NewRacer builds a racer over the given adapters. The slice order carries
// no preference; the winner is whichever venue answers first.
func NewRacer(adapters []exchange.Exchange, opts ...Option) *Racer {
	r := &Racer{adapters: adapters}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases every adapter, including those whose last race tasks were
// cancelled.
func (r *Racer) Close() error {
	var firstErr error
	for _, a := range r.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Fetch returns the first non-empty adapter result.
func (r *Racer) Fetch(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, error) {
	return r.race(ctx, req, 1)
}

// FetchWithMinimum keeps collecting until an adapter returns at least
// minRequired candles. If none reaches the threshold, the largest result
// seen is returned; only a fully failed or fully empty race errors.
func (r *Racer) FetchWithMinimum(ctx context.Context, req exchange.FetchRequest, minRequired int) (*model.FetchResult, error) {
	if minRequired < 1 {
		minRequired = 1
	}
	return r.race(ctx, req, minRequired)
}

type raceReply struct {
	name    string
	candles []model.Candle
	err     error
}

func (r *Racer) race(ctx context.Context, req exchange.FetchRequest, minRequired int) (*model.FetchResult, error) {
	if len(r.adapters) == 0 {
		return nil, fmt.Errorf("%w: no adapters configured", model.ErrAllExchangesFailed)
	}

	cacheable := r.cache != nil && req.Start == nil && req.End == nil
	if cacheable {
		if res, ok := r.cache.Get(ctx, req); ok && res.Len() >= minRequired {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return res, nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	started := time.Now()
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan raceReply, len(r.adapters))
	for _, adapter := range r.adapters {
		go func(a exchange.Exchange) {
			candles, err := a.Fetch(raceCtx, req)
			replies <- raceReply{name: a.Name(), candles: candles, err: err}
		}(adapter)
	}

	var (
		best    *model.FetchResult
		failures = make(model.ExchangeErrors)
	)
	pending := len(r.adapters)

	for pending > 0 {
		select {
		case <-ctx.Done():
			cancel()
			drain(replies, pending)
			return nil, ctx.Err()
		case reply := <-replies:
			pending--
			if reply.err != nil {
				failures[reply.name] = reply.err
				metrics.AdapterErrors.WithLabelValues(reply.name, metrics.ErrorKind(reply.err)).Inc()
				continue
			}
			if len(reply.candles) == 0 {
				// Emptiness loses the race but is not an error.
				continue
			}
			result := &model.FetchResult{
				Candles:  reply.candles,
				Exchange: reply.name,
				Symbol:   req.Symbol,
				Interval: req.Interval,
				Elapsed:  time.Since(started).Milliseconds(),
			}
			if len(reply.candles) >= minRequired {
				cancel()
				drain(replies, pending)
				log.Debug().
					Str("exchange", reply.name).
					Stringer("symbol", req.Symbol).
					Stringer("interval", req.Interval).
					Int("candles", len(reply.candles)).
					Int64("elapsed_ms", result.Elapsed).
					Msg("race won")
				metrics.RaceOutcomes.WithLabelValues("won").Inc()
				metrics.RaceWins.WithLabelValues(reply.name).Inc()
				if cacheable {
					r.cache.Set(ctx, req, result)
				}
				return result, nil
			}
			if best == nil || len(reply.candles) > best.Len() {
				best = result
			}
		}
	}

	if best != nil {
		best.Elapsed = time.Since(started).Milliseconds()
		log.Debug().
			Str("exchange", best.Exchange).
			Stringer("symbol", req.Symbol).
			Int("candles", best.Len()).
			Int("min_required", minRequired).
			Msg("race settled below threshold, returning best result")
		metrics.RaceOutcomes.WithLabelValues("best_effort").Inc()
		metrics.RaceWins.WithLabelValues(best.Exchange).Inc()
		return best, nil
	}

	metrics.RaceOutcomes.WithLabelValues("failed").Inc()
	if len(failures) > 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrAllExchangesFailed, failures.Error())
	}
	return nil, fmt.Errorf("%w: every adapter returned empty", model.ErrAllExchangesFailed)
}

// drain waits for cancelled tasks to acknowledge, bounded by drainDeadline.
// Replies use a buffered channel, so even an abandoned task cannot leak its
// goroutine past the send.
func drain(replies <-chan raceReply, pending int) {
	deadline := time.NewTimer(drainDeadline)
	defer deadline.Stop()
	for pending > 0 {
		select {
		case <-replies:
			pending--
		case <-deadline.C:
			return
		}
	}
}
