package matching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreProfiles(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	p, err := store.GetProfile(ctx, 1)
	require.NoError(t, err)
	p.WorkoutTypes[0] = "Mutated"

	again, err := store.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Yoga", again.WorkoutTypes[0], "callers get copies")

	_, err = store.GetProfile(ctx, 42)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	candidates, err := store.ListCandidates(ctx, 1, CandidateFilter{ExcludeIDs: []int64{3}})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(2), candidates[0].UserID)

	candidates, err = store.ListCandidates(ctx, 3, CandidateFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(1), candidates[0].UserID)

	assert.ErrorIs(t, store.UpdateMetrics(ctx, 42, func(*ProfileMetrics) {}), ErrProfileNotFound)
	assert.ErrorIs(t, store.TouchLastActive(ctx, 42, time.Now()), ErrProfileNotFound)
}

func TestMemoryStoreSavePreferencesCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := NewPreferenceVector(1)
	require.NoError(t, store.SavePreferences(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	stale := NewPreferenceVector(1)
	assert.ErrorIs(t, store.SavePreferences(ctx, stale), ErrVersionConflict)

	loaded, err := store.GetPreferences(ctx, 1)
	require.NoError(t, err)
	loaded.EngagementScore = 1
	require.NoError(t, store.SavePreferences(ctx, loaded))

	first.EngagementScore = 2
	assert.ErrorIs(t, store.SavePreferences(ctx, first), ErrVersionConflict)

	final, err := store.GetPreferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, final.EngagementScore)
	assert.Equal(t, int64(2), final.Version)
}

func TestMemoryStoreCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := int64(5), int64(9)
			if i%2 == 0 {
				a, b = b, a
			}
			m, ok, err := store.CreateIfAbsent(ctx, a, b, testNow)
			assert.NoError(t, err)
			assert.Equal(t, int64(5), m.UserA)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	_, _, err := store.CreateIfAbsent(ctx, 5, 7, testNow.Add(time.Minute))
	require.NoError(t, err)

	matches, err := store.ListMatches(ctx, 5, true)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(7), matches[0].Other(5), "newest first")
}
