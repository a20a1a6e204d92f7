package matching

import (
	"math"
	"time"
	"unicode/utf16"
)

const (
	idealImageCount = 6
	idealBioLength  = 200
	minBioLength    = 20
	idealTagCount   = 4
	activityWindow  = 30 * 24 * time.Hour
	unknownActivity = 0.5
)

// ProfileQualityScore rates how complete a profile is, in [0,1]. Only the
// factors the profile actually has data for are averaged.
func ProfileQualityScore(p *Profile) float64 {
	var total float64
	factors := 0

	if n := len(p.Images); n > 0 {
		total += math.Min(1, float64(n)/idealImageCount)
		factors++
	}
	if n := len(utf16.Encode([]rune(p.Bio))); n >= minBioLength {
		total += math.Min(1, float64(n)/idealBioLength)
		factors++
	}
	if n := len(p.WorkoutTypes); n > 0 {
		total += math.Min(1, float64(n)/idealTagCount)
		factors++
	}
	if p.Location.Valid() {
		total++
		factors++
	}

	if factors == 0 {
		return 0
	}
	return total / float64(factors)
}

// ActivityScorer rates how recently a profile was active.
type ActivityScorer struct {
	now func() time.Time
}

func NewActivityScorer(now func() time.Time) *ActivityScorer {
	if now == nil {
		now = time.Now
	}
	return &ActivityScorer{now: now}
}

// Score decays linearly from 1 to 0 over 30 days. A profile with no
// timestamps at all gets 0.5, which is distinct from "certainly inactive".
func (s *ActivityScorer) Score(p *Profile) float64 {
	last := lastSeen(p)
	if last == nil {
		return unknownActivity
	}

	since := s.now().Sub(*last)
	return clamp01(1 - float64(since)/float64(activityWindow))
}

func lastSeen(p *Profile) *time.Time {
	switch {
	case p.LastActive != nil:
		return p.LastActive
	case p.UpdatedAt != nil:
		return p.UpdatedAt
	default:
		return p.CreatedAt
	}
}
