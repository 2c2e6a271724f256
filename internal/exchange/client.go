package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// getJSON performs one GET and classifies the failure modes the fetch
// fabric distinguishes: 429 → ErrRateLimited, network/5xx → ErrTransport.
// Non-429 4xx responses surface as ErrTransport too; venues use them for
// transient symbol maintenance as often as for real client errors.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", model.ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: http 429", model.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: http %d: %s", model.ErrTransport, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// parseDec converts a venue price/volume string into an exact decimal.
func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad decimal %q", model.ErrParse, s)
	}
	return d, nil
}

// inRange filters candles to the half-open [start, end) request window.
// Venues that only support "since" or "before" cursors over-fetch; the
// adapter trims here so every venue honors the same convention.
func inRange(candles []model.Candle, start, end *int64) []model.Candle {
	if start == nil && end == nil {
		return candles
	}
	out := candles[:0]
	for _, c := range candles {
		if start != nil && c.Timestamp < *start {
			continue
		}
		if end != nil && c.Timestamp >= *end {
			continue
		}
		out = append(out, c)
	}
	return out
}
