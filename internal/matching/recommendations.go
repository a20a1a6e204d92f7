package matching

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	DefaultLimit               = 20
	DefaultDiversityFactor     = 0.2
	DefaultActivityWeight      = 0.15
	DefaultQualityWeight       = 0.15
	DefaultCompatibilityWeight = 0.70
	DefaultMaxDistanceMiles    = 50.0

	// Diversification only kicks in above this many scored candidates.
	minDiversifyCandidates = 10
)

// Options tunes a single recommendation call. Nil fields take the defaults,
// so an explicit zero needs Float(0) or Int(0).
type Options struct {
	Limit                *int
	DiversityFactor      *float64
	ActivityWeight       *float64
	ProfileQualityWeight *float64
	CompatibilityWeight  *float64
	MaxDistance          *float64
}

type resolvedOptions struct {
	limit               int
	diversityFactor     float64
	activityWeight      float64
	qualityWeight       float64
	compatibilityWeight float64
	maxDistance         float64
}

func (o Options) withDefaults() resolvedOptions {
	return resolvedOptions{
		limit:               derefLimit(o.Limit),
		diversityFactor:     clamp01(derefFloat64(o.DiversityFactor, DefaultDiversityFactor)),
		activityWeight:      derefFloat64(o.ActivityWeight, DefaultActivityWeight),
		qualityWeight:       derefFloat64(o.ProfileQualityWeight, DefaultQualityWeight),
		compatibilityWeight: derefFloat64(o.CompatibilityWeight, DefaultCompatibilityWeight),
		maxDistance:         derefFloat64(o.MaxDistance, DefaultMaxDistanceMiles),
	}
}

// RecommendationEngine ranks a candidate pool for one user. It is safe for
// concurrent use.
type RecommendationEngine struct {
	activity *ActivityScorer

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecommendationEngine seeds diversity sampling from src. Pass a fixed
// source for reproducible output.
func NewRecommendationEngine(src rand.Source, now func() time.Time) *RecommendationEngine {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &RecommendationEngine{
		activity: NewActivityScorer(now),
		rng:      rand.New(src),
	}
}

// Recommend filters candidates by distance, scores and sorts them, mixes in
// a random slice of the tail and truncates to the limit. It returns either
// the whole list or an error, never a partial result.
func (e *RecommendationEngine) Recommend(ctx context.Context, user *Profile, candidates []*Profile, opts Options) ([]*RankedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := opts.withDefaults()

	if !user.Location.Valid() {
		return []*RankedCandidate{}, nil
	}

	ranked := make([]*RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.UserID == user.UserID || !c.Location.Valid() {
			continue
		}

		distance := DistanceMiles(user.Location, c.Location)
		if distance > o.maxDistance {
			continue
		}

		compatibility := Compatibility(user, c) / 100
		quality := ProfileQualityScore(c)
		activity := e.activity.Score(c)

		ranked = append(ranked, &RankedCandidate{
			Profile:            c,
			CompatibilityScore: compatibility,
			MatchScore:         int(math.Round(compatibility * 100)),
			DistanceMiles:      distance,
			Distance:           roundTo(distance, 1),
			FinalScore: compatibility*o.compatibilityWeight +
				quality*o.qualityWeight +
				activity*o.activityWeight,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	ranked = e.diversify(ranked, o.diversityFactor)

	if len(ranked) > o.limit {
		ranked = ranked[:o.limit]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ranked, nil
}

// diversify keeps the top floor(n*(1-f)) entries and appends up to
// ceil(n*f) picks drawn at random from the rest.
func (e *RecommendationEngine) diversify(sorted []*RankedCandidate, factor float64) []*RankedCandidate {
	n := len(sorted)
	if factor <= 0 || n <= minDiversifyCandidates {
		return sorted
	}

	top := int(math.Floor(float64(n) * (1 - factor)))
	rest := make([]*RankedCandidate, n-top)
	copy(rest, sorted[top:])

	k := int(math.Ceil(float64(n) * factor))
	if k > len(rest) {
		k = len(rest)
	}

	e.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + e.rng.Intn(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
	}
	e.mu.Unlock()

	out := make([]*RankedCandidate, 0, top+k)
	out = append(out, sorted[:top]...)
	return append(out, rest[:k]...)
}

// Int returns a pointer to v for use in Options.
func Int(v int) *int { return &v }

// Float returns a pointer to v for use in Options.
func Float(v float64) *float64 { return &v }

// derefLimit treats a negative limit like an unset one.
func derefLimit(i *int) int {
	if i == nil || *i < 0 {
		return DefaultLimit
	}
	return *i
}

// derefFloat64 also falls back to the default for NaN and infinities.
func derefFloat64(f *float64, defaultValue float64) float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return defaultValue
	}
	return *f
}
