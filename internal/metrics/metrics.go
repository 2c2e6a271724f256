// Package metrics registers the Prometheus instruments for the fetch
// fabric, the backfiller, and the stream manager. Everything lives on the
// default registry and is exposed through the ops HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RaceOutcomes counts finished races by outcome: won, best_effort, failed.
	RaceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_fetch_races_total",
		Help: "Finished fetch races by outcome",
	}, []string{"outcome"})

	// RaceWins counts race wins per venue.
	RaceWins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_fetch_race_wins_total",
		Help: "Race wins per exchange",
	}, []string{"exchange"})

	// AdapterErrors counts adapter failures by venue and error kind.
	AdapterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_adapter_errors_total",
		Help: "Adapter errors by exchange and kind",
	}, []string{"exchange", "kind"})

	// BackfillRows counts rows upserted into the candle store.
	BackfillRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_backfill_rows_total",
		Help: "Candle rows upserted by the backfiller",
	}, []string{"symbol", "interval"})

	// BackfillCellFailures counts grid cells that ended in error.
	BackfillCellFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspector_backfill_cell_failures_total",
		Help: "Backfill grid cells that failed strict completion",
	})

	// StreamTransitions counts per-symbol source demotions and promotions.
	StreamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_stream_transitions_total",
		Help: "Stream source transitions",
	}, []string{"symbol", "from", "to"})

	// StreamCandles counts live candles delivered to the callback.
	StreamCandles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_stream_candles_total",
		Help: "Live candles delivered per symbol and source",
	}, []string{"symbol", "source"})

	// CacheHits counts warm-tier cache hits and misses.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_cache_requests_total",
		Help: "Warm cache requests by result",
	}, []string{"result"})
)

// ErrorKind maps an adapter error to a label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	default:
		return classify(err)
	}
}
