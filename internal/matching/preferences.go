package matching

import (
	"math"
	"time"
)

const (
	initialPreferenceWeight = 1.0
	likeIncrement           = 0.1
	dislikeDecrement        = 0.05
	minPreferenceWeight     = 0.1
	engagementIncrement     = 0.1
	engagedViewMs           = 5000
)

// NewPreferenceVector returns an empty, never-stored vector for userID.
func NewPreferenceVector(userID int64) *PreferenceVector {
	return &PreferenceVector{
		UserID:                     userID,
		WorkoutTypePreferences:     map[string]float64{},
		ExperienceLevelPreferences: map[string]float64{},
		LikedProfiles:              IDSet{},
		DislikedProfiles:           IDSet{},
	}
}

// Clone returns a deep copy of the vector.
func (p *PreferenceVector) Clone() *PreferenceVector {
	c := *p
	c.WorkoutTypePreferences = copyWeights(p.WorkoutTypePreferences)
	c.ExperienceLevelPreferences = copyWeights(p.ExperienceLevelPreferences)
	c.LikedProfiles = NewIDSet(p.LikedProfiles.Slice()...)
	c.DislikedProfiles = NewIDSet(p.DislikedProfiles.Slice()...)
	return &c
}

// HasLiked reports whether the owner of the vector has liked userID.
func (p *PreferenceVector) HasLiked(userID int64) bool {
	return p.LikedProfiles.Has(userID)
}

// ApplyLike strengthens the target's workout tags and experience level and
// records the like. Long views also raise the engagement score.
func (p *PreferenceVector) ApplyLike(target *Profile, viewDurationMs int64) {
	p.ensureMaps()

	for _, tag := range uniqueStrings(target.WorkoutTypes) {
		bumpWeight(p.WorkoutTypePreferences, tag)
	}
	if target.ExperienceLevel != "" {
		bumpWeight(p.ExperienceLevelPreferences, string(target.ExperienceLevel))
	}

	p.LikedProfiles[target.UserID] = struct{}{}

	if viewDurationMs > engagedViewMs {
		p.EngagementScore += engagementIncrement
	}
}

// ApplyDislike weakens the target's workout tags, never below 0.1, and
// records the dislike. Tags the user has no weight for are left alone.
func (p *PreferenceVector) ApplyDislike(target *Profile) {
	p.ensureMaps()

	for _, tag := range uniqueStrings(target.WorkoutTypes) {
		if w, ok := p.WorkoutTypePreferences[tag]; ok {
			p.WorkoutTypePreferences[tag] = math.Max(minPreferenceWeight, w-dislikeDecrement)
		}
	}

	p.DislikedProfiles[target.UserID] = struct{}{}
}

// Normalize scales both weight maps so each sums to 1.
func (p *PreferenceVector) Normalize() {
	normalizeWeights(p.WorkoutTypePreferences)
	normalizeWeights(p.ExperienceLevelPreferences)
}

// Apply runs a feedback event against the vector, normalizes it and stamps
// the update time.
func (p *PreferenceVector) Apply(ev FeedbackEvent, target *Profile, now time.Time) {
	switch ev.Interaction {
	case InteractionLike:
		p.ApplyLike(target, ev.ViewDurationMs)
	case InteractionDislike:
		p.ApplyDislike(target)
	}
	p.Normalize()
	p.UpdatedAt = now
}

func (p *PreferenceVector) ensureMaps() {
	if p.WorkoutTypePreferences == nil {
		p.WorkoutTypePreferences = map[string]float64{}
	}
	if p.ExperienceLevelPreferences == nil {
		p.ExperienceLevelPreferences = map[string]float64{}
	}
	if p.LikedProfiles == nil {
		p.LikedProfiles = IDSet{}
	}
	if p.DislikedProfiles == nil {
		p.DislikedProfiles = IDSet{}
	}
}

func bumpWeight(weights map[string]float64, key string) {
	if w, ok := weights[key]; ok {
		weights[key] = w + likeIncrement
		return
	}
	weights[key] = initialPreferenceWeight
}

// normalizeWeights skips empty or zero-sum maps to avoid dividing by zero.
func normalizeWeights(weights map[string]float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return
	}
	for k, w := range weights {
		weights[k] = w / sum
	}
}

func copyWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
