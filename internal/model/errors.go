package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared across the fetch fabric. Adapters wrap these so the
// race fetcher and the backfiller can classify failures with errors.Is.
var (
	// ErrUnsupportedInterval marks a granularity the venue does not offer.
	ErrUnsupportedInterval = errors.New("unsupported interval")

	// ErrRateLimited marks HTTP 429 or a venue-specific throttle message.
	// Callers retry with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport marks network failures and 5xx responses. Retryable.
	ErrTransport = errors.New("transport error")

	// ErrParse marks a malformed venue payload. Not retryable.
	ErrParse = errors.New("parse error")

	// ErrAllExchangesFailed is returned by the race fetcher when every
	// adapter errored or came back empty.
	ErrAllExchangesFailed = errors.New("all exchanges failed")
)

// CellKey identifies one backfill grid cell.
type CellKey struct {
	Symbol   Symbol   `json:"symbol"`
	Interval Interval `json:"interval"`
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s@%s", k.Symbol, k.Interval)
}

// BackfillError is the strict-mode aggregate failure: at least one grid cell
// ended with zero rows or an error after all cells were attempted.
type BackfillError struct {
	Failed []CellKey
	Causes map[CellKey]error
}

func (e *BackfillError) Error() string {
	keys := make([]string, len(e.Failed))
	for i, k := range e.Failed {
		keys[i] = k.String()
	}
	return fmt.Sprintf("backfill failed for %d cell(s): %s", len(e.Failed), strings.Join(keys, ", "))
}

// ExchangeErrors aggregates per-adapter failures from one race.
type ExchangeErrors map[string]error

func (m ExchangeErrors) Error() string {
	parts := make([]string, 0, len(m))
	for name, err := range m {
		parts = append(parts, name+": "+err.Error())
	}
	return strings.Join(parts, "; ")
}
