package sweep

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a run is scheduled.
type Mode int

const (
	// ModeSingle runs one worker over the whole space and stops after one
	// pass.
	ModeSingle Mode = iota

	// ModeMulti runs PartitionCount workers that keep rescanning until the
	// run is cancelled.
	ModeMulti
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMulti:
		return "multi"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "single"/"1" and "multi"/"2".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "1":
		return ModeSingle, nil
	case "multi", "2":
		return ModeMulti, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

const (
	// DefaultDelay is the cooldown between two dispatches of one worker.
	DefaultDelay = 4 * time.Second

	// DefaultSingleRateLimitWait is the backoff after a rate limit in single mode.
	DefaultSingleRateLimitWait = 60 * time.Second

	// DefaultMultiRateLimitWait is the backoff after a rate limit in multi mode.
	DefaultMultiRateLimitWait = 300 * time.Second

	// DefaultStatusInterval is how often the coordinator reports status.
	DefaultStatusInterval = 10 * time.Second

	// DefaultIdlePause is how long a continuous worker waits after a pass
	// that found nothing to do.
	DefaultIdlePause = 30 * time.Second
)

// RateLimitWaitFor returns the default rate-limit backoff for a mode.
func RateLimitWaitFor(m Mode) time.Duration {
	if m == ModeMulti {
		return DefaultMultiRateLimitWait
	}
	return DefaultSingleRateLimitWait
}

// Config describes one run.
type Config struct {
	// Mode is single (one worker, one pass) or multi (continuous)
	Mode Mode

	// PartitionCount is the number of parallel workers. Worker i owns the
	// candidates whose numeric value is congruent to i modulo PartitionCount.
	// Zero means 1.
	PartitionCount int

	// Delay is the cooldown after each dispatch. Zero disables it.
	Delay time.Duration

	// IdlePause is the wait after a continuous pass that dispatched
	// nothing. Zero means DefaultIdlePause.
	IdlePause time.Duration

	// MaxWidth caps the candidate width, for sweeping a prefix of the
	// space. Zero means the full space.
	MaxWidth int
}

// normalize fills defaults and validates.
func (c Config) normalize() (Config, error) {
	if c.PartitionCount == 0 {
		c.PartitionCount = 1
	}
	if c.PartitionCount < 0 {
		return c, fmt.Errorf("%w: partition count %d", ErrInvalidConfig, c.PartitionCount)
	}
	if c.Mode == ModeSingle && c.PartitionCount != 1 {
		return c, fmt.Errorf("%w: single mode runs exactly one worker, got %d", ErrInvalidConfig, c.PartitionCount)
	}
	if c.Mode != ModeSingle && c.Mode != ModeMulti {
		return c, fmt.Errorf("%w: %v", ErrInvalidConfig, c.Mode)
	}
	if c.Delay < 0 {
		return c, fmt.Errorf("%w: negative delay %v", ErrInvalidConfig, c.Delay)
	}
	if c.IdlePause <= 0 {
		c.IdlePause = DefaultIdlePause
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = MaxWidth
	}
	if c.MaxWidth < 1 || c.MaxWidth > MaxWidth {
		return c, fmt.Errorf("%w: max width %d outside 1-%d", ErrInvalidConfig, c.MaxWidth, MaxWidth)
	}
	return c, nil
}

// Option is a functional option for configuring a Coordinator.
type Option interface {
	apply(*Coordinator)
}

type optionFunc func(*Coordinator)

func (f optionFunc) apply(c *Coordinator) {
	f(c)
}

// WithObserver sets the observer notified about run, dispatch, store and
// pass events.
func WithObserver(o Observer) Option {
	return optionFunc(func(c *Coordinator) {
		c.observer = o
	})
}

// WithStatusReporter sets where periodic status snapshots go.
func WithStatusReporter(r StatusReporter) Option {
	return optionFunc(func(c *Coordinator) {
		c.reporter = r
	})
}

// WithStatusInterval sets how often the status is reported.
// Default is DefaultStatusInterval.
func WithStatusInterval(d time.Duration) Option {
	return optionFunc(func(c *Coordinator) {
		c.statusInterval = d
	})
}
