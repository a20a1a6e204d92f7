package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineMiles(t *testing.T) {
	assert.InDelta(t, 0, HaversineMiles(10, 20, 10, 20), 1e-9)

	// 0.1 degree of longitude on the equator.
	assert.InDelta(t, 6.9094, HaversineMiles(0, 0, 0, 0.1), 0.001)

	// New York to Los Angeles.
	assert.InDelta(t, 2445, HaversineMiles(40.7128, -74.0060, 34.0522, -118.2437), 5)

	assert.InDelta(t,
		HaversineMiles(51.5, -0.12, 48.85, 2.35),
		HaversineMiles(48.85, 2.35, 51.5, -0.12),
		1e-9,
	)
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := &Location{Lat: 45, Lng: 10}
	minLat, maxLat, minLng, maxLng := BoundingBox(center, 50)

	// Points at exactly 50 miles due north/east must fall inside the box.
	north := 50.0 / earthRadiusMiles * 180 / math.Pi
	assert.Less(t, center.Lat+north, maxLat)
	assert.Greater(t, center.Lat-north, minLat)

	east := &Location{Lat: 45, Lng: maxLng}
	assert.Greater(t, DistanceMiles(center, east), 50.0)
	assert.Less(t, minLng, center.Lng)

	t.Run("near pole uses full longitude range", func(t *testing.T) {
		_, _, minLng, maxLng := BoundingBox(&Location{Lat: 90, Lng: 0}, 10)
		assert.Equal(t, -180.0, minLng)
		assert.Equal(t, 180.0, maxLng)
	})

	t.Run("antimeridian uses full longitude range", func(t *testing.T) {
		_, _, minLng, maxLng := BoundingBox(&Location{Lat: 0, Lng: 179.9}, 50)
		assert.Equal(t, -180.0, minLng)
		assert.Equal(t, 180.0, maxLng)
	})
}

func TestCompatibilityExampleScenario(t *testing.T) {
	a := &Profile{
		UserID:          1,
		WorkoutTypes:    []string{"Yoga", "Running"},
		ExperienceLevel: Intermediate,
		PreferredTime:   "Morning",
		Location:        &Location{Lat: 0, Lng: 0},
	}
	b := &Profile{
		UserID:          2,
		WorkoutTypes:    []string{"Yoga"},
		ExperienceLevel: Intermediate,
		PreferredTime:   "Morning",
		Location:        &Location{Lat: 0, Lng: 0.1},
	}

	f := CompatibilityFactors(a, b)
	assert.InDelta(t, 0.5, f.WorkoutType, 1e-9)
	assert.InDelta(t, 1, f.Experience, 1e-9)
	assert.InDelta(t, 1, f.Schedule, 1e-9)
	assert.InDelta(t, 0.862, f.Location, 0.001)

	// 0.5*30 + 1*20 + 1*25 + 0.8618*25
	assert.InDelta(t, 81.55, Compatibility(a, b), 0.01)
}

func TestCompatibilityBounds(t *testing.T) {
	full := &Profile{
		WorkoutTypes:    []string{"Lifting", "Running"},
		ExperienceLevel: Advanced,
		PreferredTime:   "Evening",
		Location:        &Location{Lat: 37.77, Lng: -122.42},
	}
	assert.InDelta(t, 100, Compatibility(full, full.Clone()), 1e-9)

	// Only the schedule fallback contributes for bare profiles.
	empty := &Profile{}
	assert.InDelta(t, 6.25, Compatibility(empty, empty), 1e-9)

	far := full.Clone()
	far.Location = &Location{Lat: -33.86, Lng: 151.2}
	far.ExperienceLevel = Beginner
	far.WorkoutTypes = []string{"Swimming"}
	far.PreferredTime = "Weekends Only"
	score := Compatibility(full, far)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestWorkoutTypeScore(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"Yoga", "HIIT"}, []string{"HIIT", "Yoga"}, 1},
		{"disjoint", []string{"Yoga"}, []string{"Boxing"}, 0},
		{"partial", []string{"Yoga", "Running", "Cycling"}, []string{"Running", "Cycling", "Boxing"}, 0.5},
		{"empty side", nil, []string{"Yoga"}, 0},
		{"duplicates collapse", []string{"Yoga", "Yoga"}, []string{"Yoga"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, workoutTypeScore(tt.a, tt.b), 1e-9)
			assert.InDelta(t, workoutTypeScore(tt.a, tt.b), workoutTypeScore(tt.b, tt.a), 1e-9)
		})
	}
}

func TestExperienceScore(t *testing.T) {
	assert.Equal(t, 0.0, experienceScore(Beginner, Advanced))
	assert.Equal(t, 0.5, experienceScore(Beginner, Intermediate))
	assert.Equal(t, 0.5, experienceScore(Advanced, Intermediate))
	assert.Equal(t, 1.0, experienceScore(Advanced, Advanced))
	assert.Equal(t, 0.0, experienceScore("Elite", Advanced))
}

func TestScheduleScore(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Flexible", "Late Night", 1},
		{"", "Flexible", 1},
		{"Morning", "Morning", 1},
		{"Morning", "Afternoon", 0.75},
		{"Evening", "Morning", 0.75},
		{"Evening", "Late Night", 0.75},
		{"Morning", "Late Night", 0.25},
		{"Weekends Only", "Morning", 0.25},
		{"", "Morning", 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduleScore(tt.a, tt.b))
			assert.Equal(t, tt.want, scheduleScore(tt.b, tt.a))
		})
	}
}

func TestLocationScore(t *testing.T) {
	origin := &Location{Lat: 0, Lng: 0}

	assert.InDelta(t, 1, locationScore(origin, &Location{Lat: 0, Lng: 0}), 1e-9)
	assert.Equal(t, 0.0, locationScore(origin, nil))
	assert.Equal(t, 0.0, locationScore(origin, &Location{Lat: math.NaN(), Lng: 0}))

	// One degree of latitude is ~69 miles, beyond the 50 mile radius.
	assert.Equal(t, 0.0, locationScore(origin, &Location{Lat: 1, Lng: 0}))

	half := 25.0 / earthRadiusMiles * 180 / math.Pi
	assert.InDelta(t, 0.5, locationScore(origin, &Location{Lat: half, Lng: 0}), 1e-6)
}

func TestFactorsTotalIsWeightedAverage(t *testing.T) {
	f := Factors{WorkoutType: 1, Experience: 1, Schedule: 1, Location: 1}
	require.InDelta(t, 100, f.Total(), 1e-9)

	f = Factors{WorkoutType: 1}
	assert.InDelta(t, 30, f.Total(), 1e-9)
}
