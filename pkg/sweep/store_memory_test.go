package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_IsolatesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(ResultRecord{Candidate: "1", Outcome: OutcomeCorrect, Messages: []string{"a"}})

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	snap["1"].Messages[0] = "mutated"
	snap.Put(ResultRecord{Candidate: "2"})

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
	assert.Equal(t, "a", again["1"].Messages[0])
}

func TestInMemoryStore_SaveAndMerge(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	fresh, err := Merge(ctx, store, ResultRecord{Candidate: "5", Outcome: OutcomeIncorrect})
	require.NoError(t, err)
	assert.Nil(t, fresh, "merger stores do not return a snapshot")
	assert.Zero(t, store.Saves())

	records := Records{}
	records.Put(ResultRecord{Candidate: "9", Outcome: OutcomeCorrect})
	require.NoError(t, store.Save(ctx, records))
	assert.Equal(t, 1, store.Saves())

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, got.SortedKeys(), "save replaces the whole mapping")
	assert.Equal(t, "memory", store.Identity())
}
