package matching

import "math"

// Sub-score weights. They sum to 100 and the total is a weighted average,
// so Compatibility stays in [0,100].
const (
	workoutTypeWeight = 30.0
	experienceWeight  = 20.0
	scheduleWeight    = 25.0
	locationWeight    = 25.0

	// locationScoreRadiusMiles is fixed and independent of the caller's
	// recommendation filter radius.
	locationScoreRadiusMiles = 50.0
)

// scheduleBuckets are checked in order; the first bucket holding both
// times wins.
var scheduleBuckets = [][]string{
	{"Morning", "Afternoon", "Evening"},
	{"Evening", "Late Night"},
	{"Weekends Only"},
}

// Factors holds the four normalized sub-scores behind a compatibility score.
type Factors struct {
	WorkoutType float64 `json:"workout_type"`
	Experience  float64 `json:"experience"`
	Schedule    float64 `json:"schedule"`
	Location    float64 `json:"location"`
}

// Total combines the factors into a 0-100 score.
func (f Factors) Total() float64 {
	sum := f.WorkoutType*workoutTypeWeight +
		f.Experience*experienceWeight +
		f.Schedule*scheduleWeight +
		f.Location*locationWeight

	return sum / (workoutTypeWeight + experienceWeight + scheduleWeight + locationWeight) * 100
}

// Compatibility scores how well b fits a as a workout partner, in [0,100].
func Compatibility(a, b *Profile) float64 {
	return CompatibilityFactors(a, b).Total()
}

// CompatibilityFactors computes the individual sub-scores for a pair.
func CompatibilityFactors(a, b *Profile) Factors {
	return Factors{
		WorkoutType: workoutTypeScore(a.WorkoutTypes, b.WorkoutTypes),
		Experience:  experienceScore(a.ExperienceLevel, b.ExperienceLevel),
		Schedule:    scheduleScore(a.PreferredTime, b.PreferredTime),
		Location:    locationScore(a.Location, b.Location),
	}
}

// workoutTypeScore is the Jaccard similarity of the two tag sets.
func workoutTypeScore(tags1, tags2 []string) float64 {
	if len(tags1) == 0 || len(tags2) == 0 {
		return 0
	}

	set1 := make(map[string]struct{}, len(tags1))
	for _, tag := range tags1 {
		set1[tag] = struct{}{}
	}
	set2 := make(map[string]struct{}, len(tags2))
	for _, tag := range tags2 {
		set2[tag] = struct{}{}
	}

	intersection := 0
	for tag := range set2 {
		if _, ok := set1[tag]; ok {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func experienceScore(a, b ExperienceLevel) float64 {
	i, j := a.Index(), b.Index()
	if i < 0 || j < 0 {
		return 0
	}
	if i == j {
		return 1
	}
	return 1 - math.Abs(float64(i-j))/2
}

func scheduleScore(a, b string) float64 {
	if a == FlexibleTime || b == FlexibleTime {
		return 1
	}
	if a == "" || b == "" {
		return 0.25
	}
	if a == b {
		return 1
	}

	for _, bucket := range scheduleBuckets {
		if containsString(bucket, a) && containsString(bucket, b) {
			return 0.75
		}
	}
	return 0.25
}

func locationScore(a, b *Location) float64 {
	if !a.Valid() || !b.Valid() {
		return 0
	}
	return math.Max(0, 1-DistanceMiles(a, b)/locationScoreRadiusMiles)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
