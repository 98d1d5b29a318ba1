package sweep

import (
	"context"

	"go.uber.org/zap"
)

// ZapObserver implements Observer on a zap logger. The CLI uses it so
// engine events share the process logger's encoder and level.
type ZapObserver struct {
	logger *zap.Logger
}

// NewZapObserver creates an observer logging to logger.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	o.logger.Info("sweep started",
		zap.String("run_id", event.RunID),
		zap.Stringer("mode", event.Mode),
		zap.Int("workers", event.PartitionCount),
	)
}

func (o *ZapObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	if event.Error != nil {
		o.logger.Error("sweep failed",
			zap.String("run_id", event.RunID),
			zap.Duration("duration", event.Duration),
			zap.Int("dispatched", event.Dispatched),
			zap.Error(event.Error),
		)
		return
	}
	o.logger.Info("sweep stopped",
		zap.String("run_id", event.RunID),
		zap.Duration("duration", event.Duration),
		zap.Int("dispatched", event.Dispatched),
		zap.Bool("interrupted", event.Interrupted),
	)
}

func (o *ZapObserver) OnDispatch(ctx context.Context, event *DispatchEvent) {
	fields := []zap.Field{
		zap.Int("worker", event.WorkerID),
		zap.String("candidate", event.Record.Candidate),
		zap.Stringer("outcome", event.Record.Outcome),
		zap.Strings("messages", event.Record.Messages),
		zap.Duration("duration", event.Duration),
		zap.Int("processed", event.Processed),
	}
	if event.Record.Outcome == OutcomeError {
		o.logger.Warn("candidate verification failed", fields...)
		return
	}
	o.logger.Info("candidate verified", fields...)
}

func (o *ZapObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {
	o.logger.Warn("rate limited",
		zap.Int("worker", event.WorkerID),
		zap.String("candidate", event.Candidate),
		zap.Int("attempt", event.Attempt),
		zap.Duration("wait", event.Wait),
	)
}

func (o *ZapObserver) OnStoreOp(ctx context.Context, event *StoreEvent) {
	if event.Error != nil {
		o.logger.Error("store operation failed",
			zap.Int("worker", event.WorkerID),
			zap.String("op", event.Op),
			zap.String("resource", event.Resource),
			zap.Error(event.Error),
		)
		return
	}
	o.logger.Debug("store operation",
		zap.Int("worker", event.WorkerID),
		zap.String("op", event.Op),
		zap.String("resource", event.Resource),
		zap.Int("records", event.Records),
		zap.Duration("latency", event.Latency),
	)
}

func (o *ZapObserver) OnPassComplete(ctx context.Context, event *PassEvent) {
	o.logger.Info("pass complete",
		zap.Int("worker", event.WorkerID),
		zap.Int("pass", event.Pass),
		zap.Int("dispatched", event.Dispatched),
		zap.Uint64("known", event.Known),
		zap.Duration("duration", event.Duration),
	)
}
