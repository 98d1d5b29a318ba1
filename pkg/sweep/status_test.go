package sweep

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusBoard_SnapshotIsSortedCopy(t *testing.T) {
	board := NewStatusBoard(3)
	board.Update(2, func(s *WorkerStatus) {
		s.LastCandidate = "05"
		s.Processed = 4
		s.Pass = 1
		s.State = StateCooldown
	})

	snap := board.Snapshot()
	assert.Len(t, snap.Workers, 3)
	for i, w := range snap.Workers {
		assert.Equal(t, i, w.WorkerID)
	}
	assert.Equal(t, 4, snap.Processed())

	snap.Workers[2].Processed = 100
	got, ok := board.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 4, got.Processed)
}

func TestStatusBoard_ConcurrentWriters(t *testing.T) {
	board := NewStatusBoard(8)
	var wg sync.WaitGroup
	for id := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				board.Update(id, func(s *WorkerStatus) { s.Processed = i + 1 })
				_ = board.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, board.Snapshot().Processed())
}

func TestStatusSnapshot_String(t *testing.T) {
	board := NewStatusBoard(2)
	board.Update(0, func(s *WorkerStatus) {
		s.LastCandidate = "0000012"
		s.Processed = 3
		s.Pass = 1
		s.State = StateCooldown
	})

	want := "=== STATUS BOARD ===\n" +
		"Worker 0: 0000012 (3 processed, pass 1, cooldown)\n" +
		"Worker 1: Starting...\n" +
		"===================="
	assert.Equal(t, want, board.Snapshot().String())
}

func TestWriterReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := WriterReporter(&buf)
	reporter.Report(context.Background(), NewStatusBoard(1).Snapshot())

	assert.Equal(t, "\n=== STATUS BOARD ===\nWorker 0: Starting...\n====================\n\n", buf.String())
}
