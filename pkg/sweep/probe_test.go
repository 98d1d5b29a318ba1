package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_ReturnsStoredResultWithoutCalling(t *testing.T) {
	stored := ResultRecord{Candidate: "0042", Outcome: OutcomeCorrect, Messages: []string{"known"}}
	store := NewInMemoryStore(stored)
	oracle := newScriptedOracle()

	res, err := Probe(context.Background(), store, NewClient(oracle), "0042", false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, stored, res.Record)
	assert.Empty(t, oracle.Calls())
}

func TestProbe_ForceRequeries(t *testing.T) {
	store := NewInMemoryStore(NewErrorRecord("7", assert.AnError))
	oracle := newScriptedOracle()
	oracle.script["7"] = []Response{{Verified: true, Messages: []string{"found"}}}

	res, err := Probe(context.Background(), store, NewClient(oracle), "7", true)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, OutcomeCorrect, res.Record.Outcome)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Record, records["7"])
}

func TestProbe_StoresNewResultInDocument(t *testing.T) {
	store := NewFileStore(tempDocument(t))
	oracle := newScriptedOracle()

	res, err := Probe(context.Background(), store, NewClient(oracle), "0", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, res.Record.Outcome)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, records.Has("0"))
	assert.Equal(t, []string{"0"}, oracle.Calls())
}

func TestProbe_InvalidValue(t *testing.T) {
	_, err := Probe(context.Background(), NewInMemoryStore(), NewClient(newScriptedOracle()), "12ab", false)
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestProbe_CancelledDuringBackoffStoresNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	oracle := newScriptedOracle()
	oracle.script["9"] = []Response{{RateLimited: true}}
	obs := &countingObserver{onLimit: func(*RateLimitEvent) { cancel() }}
	store := NewInMemoryStore()

	_, err := Probe(ctx, store, NewClient(oracle, WithRateLimitWait(time.Hour), WithClientObserver(obs)), "9", false)
	require.ErrorIs(t, err, context.Canceled)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
