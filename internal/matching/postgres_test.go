package matching

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/fitmatch-backend/internal/common/database"
)

// These tests need live services and are skipped unless TEST_DATABASE_URL or
// TEST_REDIS_URL point at disposable instances.

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgresDBFromURL(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE workout_profiles, preference_vectors, workout_matches RESTART IDENTITY`)
	require.NoError(t, err)
	return db
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	client, err := database.NewRedisClientFromURL(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPostgresProfileRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresProfileRepository(db)

	near := &Profile{
		UserID:          1,
		DisplayName:     "Ada",
		WorkoutTypes:    []string{"Yoga", "Running"},
		ExperienceLevel: Intermediate,
		PreferredTime:   "Morning",
		Location:        &Location{Lat: 40.0, Lng: -73.0},
		Images:          []string{"a.jpg"},
	}
	require.NoError(t, repo.UpsertProfile(ctx, near))
	require.NoError(t, repo.UpsertProfile(ctx, &Profile{UserID: 2, Location: &Location{Lat: 40.1, Lng: -73.0}}))
	require.NoError(t, repo.UpsertProfile(ctx, &Profile{UserID: 3, Location: &Location{Lat: 45.0, Lng: -73.0}}))
	require.NoError(t, repo.UpsertProfile(ctx, &Profile{UserID: 4}))

	got, err := repo.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, near.WorkoutTypes, got.WorkoutTypes)
	assert.Equal(t, Intermediate, got.ExperienceLevel)
	assert.Nil(t, got.Metrics)
	require.NotNil(t, got.Location)
	assert.InDelta(t, 40.0, got.Location.Lat, 1e-9)

	_, err = repo.GetProfile(ctx, 99)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	candidates, err := repo.ListCandidates(ctx, 1, CandidateFilter{Center: near.Location, RadiusMiles: 50})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(2), candidates[0].UserID)

	candidates, err = repo.ListCandidates(ctx, 1, CandidateFilter{ExcludeIDs: []int64{2}})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.UpdateMetrics(ctx, 2, func(m *ProfileMetrics) { m.Likes++ }))
		}()
	}
	wg.Wait()

	updated, err := repo.GetProfile(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, updated.Metrics)
	assert.Equal(t, 10, updated.Metrics.Likes)
	assert.Equal(t, 50.0, updated.Metrics.PopularityScore)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLastActive(ctx, 2, now))
	updated, err = repo.GetProfile(ctx, 2)
	require.NoError(t, err)
	assert.True(t, now.Equal(*updated.LastActive))
	assert.ErrorIs(t, repo.TouchLastActive(ctx, 99, now), ErrProfileNotFound)
}

func testPreferenceRepository(t *testing.T, repo PreferenceRepository) {
	ctx := context.Background()

	_, err := repo.GetPreferences(ctx, 1)
	require.ErrorIs(t, err, ErrPreferencesNotFound)

	p := NewPreferenceVector(1)
	p.ApplyLike(&Profile{UserID: 5, WorkoutTypes: []string{"Yoga"}, ExperienceLevel: Beginner}, 9000)
	p.Normalize()
	require.NoError(t, repo.SavePreferences(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	assert.ErrorIs(t, repo.SavePreferences(ctx, NewPreferenceVector(1)), ErrVersionConflict)

	loaded, err := repo.GetPreferences(ctx, 1)
	require.NoError(t, err)
	assert.True(t, loaded.HasLiked(5))
	assert.InDelta(t, 1, loaded.WorkoutTypePreferences["Yoga"], 1e-9)
	assert.InDelta(t, 0.1, loaded.EngagementScore, 1e-9)
	assert.Equal(t, int64(1), loaded.Version)

	loaded.ApplyDislike(&Profile{UserID: 6})
	require.NoError(t, repo.SavePreferences(ctx, loaded))
	assert.ErrorIs(t, repo.SavePreferences(ctx, p), ErrVersionConflict, "stale version")

	final, err := repo.GetPreferences(ctx, 1)
	require.NoError(t, err)
	assert.True(t, final.DislikedProfiles.Has(6))
	assert.Equal(t, int64(2), final.Version)
}

func TestPostgresPreferenceRepository(t *testing.T) {
	testPreferenceRepository(t, NewPostgresPreferenceRepository(testDB(t)))
}

func TestRedisPreferenceRepository(t *testing.T) {
	client := testRedis(t)
	require.NoError(t, client.Del(context.Background(), preferenceKey(1)).Err())
	testPreferenceRepository(t, NewRedisPreferenceRepository(client))
}

func TestPostgresMatchRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresMatchRepository(db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := int64(3), int64(8)
			if i%2 == 1 {
				a, b = b, a
			}
			_, ok, err := repo.CreateIfAbsent(ctx, a, b, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	matches, err := repo.ListMatches(ctx, 8, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(3), matches[0].UserA)
	assert.Equal(t, int64(8), matches[0].UserB)
}
