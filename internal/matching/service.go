package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
)

type Service interface {
	// Recommend ranks candidates for userID, leaving out anyone the user
	// has already liked or disliked.
	Recommend(ctx context.Context, userID int64, opts Options) ([]*RankedCandidate, error)
	ProcessFeedback(ctx context.Context, ev FeedbackEvent) (bool, error)
	Compatibility(ctx context.Context, userID, otherID int64) (float64, Factors, error)
	GetMatches(ctx context.Context, userID int64) ([]*MatchRecord, error)
}

type service struct {
	profiles    ProfileRepository
	preferences PreferenceRepository
	matches     MatchRepository
	engine      *RecommendationEngine
	feedback    *FeedbackProcessor
	defaults    Options
}

// NewService wires the engine and feedback processor over the given stores.
// defaults fill in any option a request leaves unset.
func NewService(profiles ProfileRepository, preferences PreferenceRepository, matches MatchRepository, engine *RecommendationEngine, feedback *FeedbackProcessor, defaults Options) Service {
	return &service{
		profiles:    profiles,
		preferences: preferences,
		matches:     matches,
		engine:      engine,
		feedback:    feedback,
		defaults:    defaults,
	}
}

func (s *service) Recommend(ctx context.Context, userID int64, opts Options) ([]*RankedCandidate, error) {
	start := time.Now()
	defer func() { RecordResponseTime("recommend", time.Since(start)) }()

	user, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user profile: %w", err)
	}

	exclude, err := s.seenProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := mergeOptions(opts, s.defaults)
	resolved := merged.withDefaults()

	candidates, err := s.profiles.ListCandidates(ctx, userID, CandidateFilter{
		ExcludeIDs:  exclude,
		Center:      user.Location,
		RadiusMiles: resolved.maxDistance,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ranked, err := s.engine.Recommend(ctx, user, candidates, merged)
	if err != nil {
		return nil, err
	}

	RecordRecommendationSize(len(ranked))
	logging.Ctx(ctx).Debug().
		Int64("user_id", userID).
		Int("pool", len(candidates)).
		Int("returned", len(ranked)).
		Msg("Recommendations generated")

	return ranked, nil
}

// seenProfiles lists every user already liked or disliked by userID.
func (s *service) seenProfiles(ctx context.Context, userID int64) ([]int64, error) {
	prefs, err := s.preferences.GetPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	seen := NewIDSet(prefs.LikedProfiles.Slice()...)
	for id := range prefs.DislikedProfiles {
		seen[id] = struct{}{}
	}
	return seen.Slice(), nil
}

func (s *service) ProcessFeedback(ctx context.Context, ev FeedbackEvent) (bool, error) {
	processed, err := s.feedback.Process(ctx, ev)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Int64("source_user_id", ev.SourceUserID).
			Int64("target_user_id", ev.TargetUserID).
			Msg("Failed to process feedback")
	}
	return processed, err
}

func (s *service) Compatibility(ctx context.Context, userID, otherID int64) (float64, Factors, error) {
	user, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, Factors{}, fmt.Errorf("load user profile: %w", err)
	}
	other, err := s.profiles.GetProfile(ctx, otherID)
	if err != nil {
		return 0, Factors{}, fmt.Errorf("load other profile: %w", err)
	}

	factors := CompatibilityFactors(user, other)
	score := factors.Total()
	RecordCompatibilityScore(score)
	return score, factors, nil
}

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*MatchRecord, error) {
	return s.matches.ListMatches(ctx, userID, true)
}

// mergeOptions takes each field from opts, falling back to defaults.
func mergeOptions(opts, defaults Options) Options {
	pick := func(v, d *float64) *float64 {
		if v != nil {
			return v
		}
		return d
	}
	merged := Options{
		Limit:                opts.Limit,
		DiversityFactor:      pick(opts.DiversityFactor, defaults.DiversityFactor),
		ActivityWeight:       pick(opts.ActivityWeight, defaults.ActivityWeight),
		ProfileQualityWeight: pick(opts.ProfileQualityWeight, defaults.ProfileQualityWeight),
		CompatibilityWeight:  pick(opts.CompatibilityWeight, defaults.CompatibilityWeight),
		MaxDistance:          pick(opts.MaxDistance, defaults.MaxDistance),
	}
	if merged.Limit == nil {
		merged.Limit = defaults.Limit
	}
	return merged
}
