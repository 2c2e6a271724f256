package backfill

import (
	"context"
	"math/rand"
	"time"
)

// sleepBackoff blocks for base × 2^attempt plus up to one second of
// uniform jitter, capped at max. The sleep is a cancellable suspension
// point.
func sleepBackoff(ctx context.Context, base, max time.Duration, attempt int) error {
	delay := base << attempt
	if delay > max || delay <= 0 {
		delay = max
	}
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > max {
		delay = max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
