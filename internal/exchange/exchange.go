// Package exchange contains the venue adapters: one REST kline translator
// per exchange behind a single Exchange interface. Adapters are stateless
// apart from a pooled HTTP client and normalize every venue quirk (ordering,
// duplicates, time conventions) before returning candles.
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// FetchRequest is the internal request an adapter translates to wire form.
// Start/End are an optional half-open [Start, End) range in epoch millis.
type FetchRequest struct {
	Symbol   model.Symbol
	Interval model.Interval
	Limit    int
	Start    *int64
	End      *int64
}

// Exchange is one venue adapter. Fetch returns candles sorted strictly
// ascending with no duplicate timestamps; an empty slice means "no data for
// range" and is not an error. Limit is clamped to the venue maximum; paging
// past it is the caller's job. Close releases the adapter's network
// resources; the adapter must not be used afterwards.
type Exchange interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error)
	Close() error
}

// DefaultTimeout is the per-request HTTP timeout when the caller passes 0.
const DefaultTimeout = 10 * time.Second

// All constructs every supported venue adapter with one shared timeout.
// Order carries no preference; the race fetcher treats them as peers.
func All(timeout time.Duration) []Exchange {
	return []Exchange{
		NewBinance(timeout),
		NewOKX(timeout),
		NewBybit(timeout),
		NewCoinbase(timeout),
		NewKraken(timeout),
		NewKucoin(timeout),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
