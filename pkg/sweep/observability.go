package sweep

import (
	"context"
	"time"
)

// Observer is the interface for observing sweep events.
// Implementations can emit metrics, logs, or traces to their observability backend.
//
// All Observer methods are called synchronously from worker goroutines, so
// implementations must be safe for concurrent use and should be fast.
//
// Implementations in this package:
//   - SlogObserver (log/slog)
//   - ZapObserver (go.uber.org/zap)
//   - PrometheusObserver
//   - OTelObserver
type Observer interface {
	// OnRunStart is called when the coordinator starts its workers.
	OnRunStart(ctx context.Context, event *RunStartEvent)

	// OnRunEnd is called after every worker has returned.
	OnRunEnd(ctx context.Context, event *RunEndEvent)

	// OnDispatch is called after a candidate's result has been persisted.
	OnDispatch(ctx context.Context, event *DispatchEvent)

	// OnRateLimited is called when the oracle rate-limits a candidate,
	// before the backoff wait starts.
	OnRateLimited(ctx context.Context, event *RateLimitEvent)

	// OnStoreOp is called after every store load, save or merge.
	OnStoreOp(ctx context.Context, event *StoreEvent)

	// OnPassComplete is called when a worker exhausts the generator.
	OnPassComplete(ctx context.Context, event *PassEvent)
}

// RunStartEvent is emitted when a run begins.
type RunStartEvent struct {
	RunID          string
	Mode           Mode
	PartitionCount int
	StartTime      time.Time
}

// RunEndEvent is emitted when a run completes.
type RunEndEvent struct {
	RunID       string
	Duration    time.Duration
	Dispatched  int
	Interrupted bool
	Error       error // nil unless a store failure stopped the run
}

// DispatchEvent is emitted once per oracle result that reached the store.
type DispatchEvent struct {
	RunID     string
	WorkerID  int
	Record    ResultRecord
	Duration  time.Duration // oracle call including any rate-limit waits
	Processed int           // this worker's running count
}

// RateLimitEvent is emitted when the oracle answers with a rate limit.
type RateLimitEvent struct {
	WorkerID  int
	Candidate string
	Attempt   int           // 1 for the first rate limit on this candidate
	Wait      time.Duration // how long the client waits before retrying
}

// StoreEvent is emitted for each store operation.
type StoreEvent struct {
	WorkerID int
	Op       string // "load", "save", "merge"
	Resource string
	Records  int
	Latency  time.Duration
	Error    error
}

// PassEvent is emitted when a worker finishes one traversal of the generator.
type PassEvent struct {
	RunID      string
	WorkerID   int
	Pass       int
	Dispatched int
	Known      uint64 // owned candidates skipped because already stored
	Duration   time.Duration
}

// NoOpObserver is a no-op implementation of Observer.
// Useful as a base for partial implementations.
type NoOpObserver struct{}

func (NoOpObserver) OnRunStart(ctx context.Context, event *RunStartEvent)     {}
func (NoOpObserver) OnRunEnd(ctx context.Context, event *RunEndEvent)         {}
func (NoOpObserver) OnDispatch(ctx context.Context, event *DispatchEvent)     {}
func (NoOpObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {}
func (NoOpObserver) OnStoreOp(ctx context.Context, event *StoreEvent)         {}
func (NoOpObserver) OnPassComplete(ctx context.Context, event *PassEvent)     {}

// MultiObserver combines multiple observers into one.
// Events are sent to all observers in order.
type MultiObserver struct {
	Observers []Observer
}

func (m *MultiObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	for _, obs := range m.Observers {
		obs.OnRunStart(ctx, event)
	}
}

func (m *MultiObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	for _, obs := range m.Observers {
		obs.OnRunEnd(ctx, event)
	}
}

func (m *MultiObserver) OnDispatch(ctx context.Context, event *DispatchEvent) {
	for _, obs := range m.Observers {
		obs.OnDispatch(ctx, event)
	}
}

func (m *MultiObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {
	for _, obs := range m.Observers {
		obs.OnRateLimited(ctx, event)
	}
}

func (m *MultiObserver) OnStoreOp(ctx context.Context, event *StoreEvent) {
	for _, obs := range m.Observers {
		obs.OnStoreOp(ctx, event)
	}
}

func (m *MultiObserver) OnPassComplete(ctx context.Context, event *PassEvent) {
	for _, obs := range m.Observers {
		obs.OnPassComplete(ctx, event)
	}
}

type workerIDKey struct{}

func withWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerIDKey{}, id)
}

// WorkerID returns the ID of the worker running the current call, or -1
// outside a worker.
func WorkerID(ctx context.Context) int {
	if id, ok := ctx.Value(workerIDKey{}).(int); ok {
		return id
	}
	return -1
}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return NoOpObserver{}
	}
	return o
}
