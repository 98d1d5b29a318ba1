package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Coordinator runs a set of workers over disjoint partitions of the
// candidate space and reports their status.
//
// Thread Safety: a Coordinator may be reused for several sequential runs;
// Run must not be called concurrently on the same Coordinator.
type Coordinator struct {
	store          Store
	client         *Client
	observer       Observer
	reporter       StatusReporter
	statusInterval time.Duration

	mu    sync.Mutex
	board *StatusBoard
}

// NewCoordinator creates a coordinator writing to store and verifying
// through client.
func NewCoordinator(store Store, client *Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		client:         client,
		statusInterval: DefaultStatusInterval,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	c.observer = observerOrNoop(c.observer)
	return c
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Mode        Mode
	Workers     int
	Dispatched  int
	ByOutcome   map[Outcome]int
	Duration    time.Duration
	Interrupted bool
}

// Status returns the current board of the active (or last) run.
func (c *Coordinator) Status() StatusSnapshot {
	c.mu.Lock()
	board := c.board
	c.mu.Unlock()
	if board == nil {
		return StatusSnapshot{Taken: time.Now()}
	}
	return board.Snapshot()
}

// Run launches cfg.PartitionCount workers and blocks until all of them have
// returned. Cancelling ctx is the graceful stop: every worker observes it at
// its next check or wait slice, finishes any save already in progress, and
// exits. The first store failure stops all workers and is returned; a
// *CorruptStoreError in the chain means the persisted state needs manual
// repair.
func (c *Coordinator) Run(ctx context.Context, cfg Config) (*Summary, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if c.store == nil || c.client == nil {
		return nil, fmt.Errorf("%w: store and client are required", ErrInvalidConfig)
	}

	runID := uuid.NewString()
	start := time.Now()
	board := NewStatusBoard(cfg.PartitionCount)
	c.mu.Lock()
	c.board = board
	c.mu.Unlock()

	c.observer.OnRunStart(ctx, &RunStartEvent{
		RunID:          runID,
		Mode:           cfg.Mode,
		PartitionCount: cfg.PartitionCount,
		StartTime:      start,
	})

	workers := make([]*worker, cfg.PartitionCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		w := newWorker(i, cfg, runID, c.store, c.client, board, c.observer)
		workers[i] = w
		g.Go(func() error {
			if err := w.run(gctx); err != nil {
				return &WorkerError{WorkerID: w.id, Cause: err}
			}
			return nil
		})
	}

	stopReporting := c.startReporting(ctx, board)
	runErr := g.Wait()
	stopReporting()

	summary := &Summary{
		RunID:       runID,
		Mode:        cfg.Mode,
		Workers:     cfg.PartitionCount,
		ByOutcome:   make(map[Outcome]int, 3),
		Duration:    time.Since(start),
		Interrupted: ctx.Err() != nil,
	}
	for _, w := range workers {
		summary.Dispatched += w.processed
		for o, n := range w.byOutcome {
			summary.ByOutcome[o] += n
		}
	}

	c.observer.OnRunEnd(ctx, &RunEndEvent{
		RunID:       runID,
		Duration:    summary.Duration,
		Dispatched:  summary.Dispatched,
		Interrupted: summary.Interrupted,
		Error:       runErr,
	})

	return summary, runErr
}

// startReporting sends a snapshot every statusInterval until the returned
// stop function is called; stop sends one final snapshot and waits for the
// reporting goroutine to exit.
func (c *Coordinator) startReporting(ctx context.Context, board *StatusBoard) (stop func()) {
	if c.reporter == nil || c.statusInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.reporter.Report(ctx, board.Snapshot())
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			c.reporter.Report(context.WithoutCancel(ctx), board.Snapshot())
		})
	}
}
