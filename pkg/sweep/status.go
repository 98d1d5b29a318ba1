package sweep

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// WorkerState is the coarse activity of one worker.
type WorkerState string

const (
	StateStarting    WorkerState = "starting"
	StateScanning    WorkerState = "scanning"
	StateDispatching WorkerState = "dispatching"
	StateCooldown    WorkerState = "cooldown"
	StateIdle        WorkerState = "idle"
	StateStopped     WorkerState = "stopped"
)

// WorkerStatus is one worker's entry on the status board.
type WorkerStatus struct {
	WorkerID      int
	State         WorkerState
	LastCandidate string
	Processed     int
	Pass          int
	UpdatedAt     time.Time
}

func (s WorkerStatus) String() string {
	if s.LastCandidate == "" {
		return fmt.Sprintf("Worker %d: %s", s.WorkerID, titleState(s.State))
	}
	return fmt.Sprintf("Worker %d: %s (%d processed, pass %d, %s)",
		s.WorkerID, s.LastCandidate, s.Processed, s.Pass, s.State)
}

func titleState(s WorkerState) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:]) + "..."
}

// StatusBoard holds the latest status of every worker. Each worker writes
// only its own entry; readers take copies.
type StatusBoard struct {
	mu      sync.RWMutex
	entries map[int]WorkerStatus
}

// NewStatusBoard creates a board with n workers in the starting state.
func NewStatusBoard(n int) *StatusBoard {
	b := &StatusBoard{entries: make(map[int]WorkerStatus, n)}
	now := time.Now()
	for i := range n {
		b.entries[i] = WorkerStatus{WorkerID: i, State: StateStarting, UpdatedAt: now}
	}
	return b
}

// Update applies fn to the worker's entry under the board lock.
func (b *StatusBoard) Update(workerID int, fn func(*WorkerStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.entries[workerID]
	st.WorkerID = workerID
	fn(&st)
	st.UpdatedAt = time.Now()
	b.entries[workerID] = st
}

// Get returns one worker's entry.
func (b *StatusBoard) Get(workerID int) (WorkerStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.entries[workerID]
	return st, ok
}

// Snapshot copies every entry, ordered by worker ID.
func (b *StatusBoard) Snapshot() StatusSnapshot {
	b.mu.RLock()
	workers := make([]WorkerStatus, 0, len(b.entries))
	for _, st := range b.entries {
		workers = append(workers, st)
	}
	b.mu.RUnlock()

	sort.Slice(workers, func(i, j int) bool {
		return workers[i].WorkerID < workers[j].WorkerID
	})
	return StatusSnapshot{Taken: time.Now(), Workers: workers}
}

// StatusSnapshot is a point-in-time copy of the board.
type StatusSnapshot struct {
	Taken   time.Time
	Workers []WorkerStatus
}

// Processed sums every worker's running count.
func (s StatusSnapshot) Processed() int {
	total := 0
	for _, w := range s.Workers {
		total += w.Processed
	}
	return total
}

// String renders the board:
//
//	=== STATUS BOARD ===
//	Worker 0: 0000012 (3 processed, pass 1, cooldown)
//	Worker 1: Starting...
//	====================
func (s StatusSnapshot) String() string {
	var b strings.Builder
	b.WriteString("=== STATUS BOARD ===\n")
	for _, w := range s.Workers {
		b.WriteString(w.String())
		b.WriteByte('\n')
	}
	b.WriteString("====================")
	return b.String()
}

// StatusReporter receives periodic snapshots from the coordinator.
type StatusReporter interface {
	Report(ctx context.Context, snapshot StatusSnapshot)
}

// StatusReporterFunc adapts a function to StatusReporter.
type StatusReporterFunc func(ctx context.Context, snapshot StatusSnapshot)

func (f StatusReporterFunc) Report(ctx context.Context, snapshot StatusSnapshot) {
	f(ctx, snapshot)
}

// WriterReporter prints each snapshot to w, framed by blank lines.
func WriterReporter(w io.Writer) StatusReporter {
	var mu sync.Mutex
	return StatusReporterFunc(func(ctx context.Context, snapshot StatusSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\n%s\n\n", snapshot)
	})
}
