package model

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a candlestick granularity. The set is closed; every value
// carries its bar duration and is translated to provider-specific wire
// tokens by the exchange adapters.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval3d:  72 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	// Calendar months vary; 30 days is the alignment unit used for paging
	// and gap math, matching how the venues bucket monthly bars.
	Interval1M: 30 * 24 * time.Hour,
}

// AllIntervals lists every supported granularity in ascending duration order.
func AllIntervals() []Interval {
	return []Interval{
		Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
		Interval1h, Interval2h, Interval4h, Interval6h, Interval8h,
		Interval12h, Interval1d, Interval3d, Interval1w, Interval1M,
	}
}

// ParseInterval validates a wire token like "4h" into an Interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.TrimSpace(s))
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	return iv, nil
}

// Duration returns the bar length.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Millis returns the bar length in milliseconds.
func (i Interval) Millis() int64 {
	return intervalDurations[i].Milliseconds()
}

// Valid reports whether the interval is one of the closed set.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

// AlignDown truncates a millisecond timestamp to the open time of the bar
// that contains it.
func (i Interval) AlignDown(ts int64) int64 {
	ms := i.Millis()
	if ms == 0 {
		return ts
	}
	return ts - (ts % ms)
}

// AlignUp rounds a millisecond timestamp up to the next bar boundary.
// Timestamps already on a boundary are returned unchanged.
func (i Interval) AlignUp(ts int64) int64 {
	down := i.AlignDown(ts)
	if down == ts {
		return ts
	}
	return down + i.Millis()
}

func (i Interval) String() string { return string(i) }
