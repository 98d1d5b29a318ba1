package sweep

import (
	"context"
	"time"
)

// pollSlice bounds how long a wait can go without looking at the context.
const pollSlice = 100 * time.Millisecond

// wait blocks for d or until ctx is done. onTick, if set, is called with the
// remaining time once per tick (rounded up to whole ticks) before the first
// slice and after every tick boundary. It returns ctx.Err() when interrupted.
func wait(ctx context.Context, d time.Duration, tick time.Duration, onTick func(remaining time.Duration)) error {
	if d <= 0 {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	slice := pollSlice
	if tick > 0 && tick < slice {
		slice = tick
	}
	ticker := time.NewTicker(slice)
	defer ticker.Stop()

	lastReported := time.Duration(-1)
	report := func() {
		if onTick == nil || tick <= 0 {
			return
		}
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		rounded := ((remaining + tick - 1) / tick) * tick
		if rounded != lastReported {
			lastReported = rounded
			onTick(rounded)
		}
	}
	report()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			report()
		}
	}
}
