package sweep

import (
	"context"
	"log/slog"
)

// SlogObserver implements Observer using Go's structured logging (log/slog).
// This emits structured logs for all sweep events.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	observer := sweep.NewSlogObserver(logger, slog.LevelInfo)
//	coord := sweep.NewCoordinator(store, client, sweep.WithObserver(observer))
type SlogObserver struct {
	logger   *slog.Logger
	minLevel slog.Level
}

// NewSlogObserver creates an observer that logs to the given slog.Logger.
// Only events at or above minLevel will be logged.
func NewSlogObserver(logger *slog.Logger, minLevel slog.Level) *SlogObserver {
	return &SlogObserver{
		logger:   logger,
		minLevel: minLevel,
	}
}

func (o *SlogObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "sweep started",
			slog.String("run_id", event.RunID),
			slog.String("mode", event.Mode.String()),
			slog.Int("workers", event.PartitionCount),
		)
	}
}

func (o *SlogObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	if event.Error != nil {
		if o.minLevel <= slog.LevelError {
			o.logger.ErrorContext(ctx, "sweep failed",
				slog.String("run_id", event.RunID),
				slog.Duration("duration", event.Duration),
				slog.Int("dispatched", event.Dispatched),
				slog.String("error", event.Error.Error()),
			)
		}
		return
	}
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "sweep stopped",
			slog.String("run_id", event.RunID),
			slog.Duration("duration", event.Duration),
			slog.Int("dispatched", event.Dispatched),
			slog.Bool("interrupted", event.Interrupted),
		)
	}
}

func (o *SlogObserver) OnDispatch(ctx context.Context, event *DispatchEvent) {
	level := slog.LevelInfo
	if event.Record.Outcome == OutcomeError {
		level = slog.LevelWarn
	}
	if o.minLevel <= level {
		o.logger.Log(ctx, level, "candidate verified",
			slog.Int("worker", event.WorkerID),
			slog.String("candidate", event.Record.Candidate),
			slog.String("outcome", event.Record.Outcome.String()),
			slog.Any("messages", event.Record.Messages),
			slog.Duration("duration", event.Duration),
			slog.Int("processed", event.Processed),
		)
	}
}

func (o *SlogObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {
	if o.minLevel <= slog.LevelWarn {
		o.logger.WarnContext(ctx, "rate limited",
			slog.Int("worker", event.WorkerID),
			slog.String("candidate", event.Candidate),
			slog.Int("attempt", event.Attempt),
			slog.Duration("wait", event.Wait),
		)
	}
}

func (o *SlogObserver) OnStoreOp(ctx context.Context, event *StoreEvent) {
	if event.Error != nil {
		if o.minLevel <= slog.LevelError {
			o.logger.ErrorContext(ctx, "store operation failed",
				slog.Int("worker", event.WorkerID),
				slog.String("op", event.Op),
				slog.String("resource", event.Resource),
				slog.String("error", event.Error.Error()),
			)
		}
		return
	}
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "store operation",
			slog.Int("worker", event.WorkerID),
			slog.String("op", event.Op),
			slog.String("resource", event.Resource),
			slog.Int("records", event.Records),
			slog.Duration("latency", event.Latency),
		)
	}
}

func (o *SlogObserver) OnPassComplete(ctx context.Context, event *PassEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "pass complete",
			slog.Int("worker", event.WorkerID),
			slog.Int("pass", event.Pass),
			slog.Int("dispatched", event.Dispatched),
			slog.Uint64("known", event.Known),
			slog.Duration("duration", event.Duration),
		)
	}
}
