package sweep

import (
	"context"
	"time"
)

// worker scans one partition of the candidate space.
//
// It never keeps a long-lived cache: the store is reloaded at the start of
// every pass and before every write, so work done by other workers or other
// processes is picked up. Membership in the store is the only resume
// mechanism; a candidate with any stored outcome, ERROR included, is never
// dispatched again.
type worker struct {
	id       int
	cfg      Config
	runID    string
	store    Store
	client   *Client
	board    *StatusBoard
	observer Observer

	processed int
	byOutcome map[Outcome]int
}

func newWorker(id int, cfg Config, runID string, store Store, client *Client, board *StatusBoard, observer Observer) *worker {
	return &worker{
		id:        id,
		cfg:       cfg,
		runID:     runID,
		store:     store,
		client:    client,
		board:     board,
		observer:  observer,
		byOutcome: make(map[Outcome]int, 3),
	}
}

// run executes passes until the context is cancelled, the single pass is
// done, or a store operation fails. Cancellation is not an error.
func (w *worker) run(ctx context.Context) error {
	ctx = withWorkerID(ctx, w.id)
	defer w.setState(StateStopped)

	for pass := 1; ; pass++ {
		if ctx.Err() != nil {
			return nil
		}
		w.board.Update(w.id, func(s *WorkerStatus) {
			s.State = StateScanning
			s.Pass = pass
		})

		snapshot, err := w.load(ctx)
		if err != nil {
			if ctx.Err() != nil && !IsCorrupt(err) {
				return nil
			}
			return err
		}

		start := time.Now()
		dispatched, known, err := w.scan(ctx, snapshot)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		w.observer.OnPassComplete(ctx, &PassEvent{
			RunID:      w.runID,
			WorkerID:   w.id,
			Pass:       pass,
			Dispatched: dispatched,
			Known:      known,
			Duration:   time.Since(start),
		})

		if w.cfg.Mode == ModeSingle {
			return nil
		}
		if dispatched == 0 {
			w.setState(StateIdle)
			if wait(ctx, w.cfg.IdlePause, 0, nil) != nil {
				return nil
			}
		}
	}
}

// scan walks the generator once. It returns early, without error, when the
// context is cancelled.
func (w *worker) scan(ctx context.Context, snapshot Records) (dispatched int, known uint64, err error) {
	done := ctx.Done()
	for c := range CandidatesUpTo(w.cfg.MaxWidth) {
		select {
		case <-done:
			return dispatched, known, nil
		default:
		}

		if !Owns(c, w.id, w.cfg.PartitionCount) {
			continue
		}
		key := c.String()
		if snapshot.Has(key) {
			known++
			continue
		}

		w.setState(StateDispatching)
		start := time.Now()
		rec := w.client.Call(ctx, key)
		took := time.Since(start)
		if ctx.Err() != nil {
			// The answer may be an artifact of the cancellation; the
			// candidate stays unrecorded and is retried next run.
			return dispatched, known, nil
		}

		// A started write always completes, so shutdown never abandons a
		// save half way.
		fresh, err := w.merge(context.WithoutCancel(ctx), rec)
		if err != nil {
			return dispatched, known, err
		}
		if fresh != nil {
			snapshot = fresh
		} else {
			snapshot.Put(rec)
		}

		dispatched++
		w.processed++
		w.byOutcome[rec.Outcome]++
		w.board.Update(w.id, func(s *WorkerStatus) {
			s.LastCandidate = key
			s.Processed = w.processed
			s.State = StateCooldown
		})
		w.observer.OnDispatch(ctx, &DispatchEvent{
			RunID:     w.runID,
			WorkerID:  w.id,
			Record:    rec,
			Duration:  took,
			Processed: w.processed,
		})

		if wait(ctx, w.cfg.Delay, 0, nil) != nil {
			return dispatched, known, nil
		}
		w.setState(StateScanning)
	}
	return dispatched, known, nil
}

func (w *worker) load(ctx context.Context) (Records, error) {
	start := time.Now()
	records, err := w.store.Load(ctx)
	w.observer.OnStoreOp(ctx, &StoreEvent{
		WorkerID: w.id,
		Op:       "load",
		Resource: w.store.Identity(),
		Records:  len(records),
		Latency:  time.Since(start),
		Error:    err,
	})
	return records, err
}

func (w *worker) merge(ctx context.Context, rec ResultRecord) (Records, error) {
	start := time.Now()
	fresh, err := Merge(ctx, w.store, rec)
	op := "merge"
	if fresh != nil {
		op = "save"
	}
	w.observer.OnStoreOp(ctx, &StoreEvent{
		WorkerID: w.id,
		Op:       op,
		Resource: w.store.Identity(),
		Records:  len(fresh),
		Latency:  time.Since(start),
		Error:    err,
	})
	return fresh, err
}

func (w *worker) setState(state WorkerState) {
	w.board.Update(w.id, func(s *WorkerStatus) {
		s.State = state
	})
}
