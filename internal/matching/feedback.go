package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
)

const (
	defaultConflictRetries = 3
	likePopularityGain     = 2
	dislikePopularityLoss  = 1
	maxPopularity          = 100
)

// MatchNotifier is told about every newly created match. Delivery is best
// effort; it must not block feedback processing.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, match *MatchRecord)
}

type FeedbackConfig struct {
	// MaxConflictRetries bounds attempts at an optimistic preference update.
	MaxConflictRetries int
	Now                func() time.Time
	Notifier           MatchNotifier
}

// FeedbackProcessor turns swipe and view events into preference, popularity
// and match updates.
type FeedbackProcessor struct {
	profiles    ProfileRepository
	preferences PreferenceRepository
	matches     MatchRepository
	notifier    MatchNotifier
	now         func() time.Time
	maxRetries  int
}

func NewFeedbackProcessor(profiles ProfileRepository, preferences PreferenceRepository, matches MatchRepository, cfg FeedbackConfig) *FeedbackProcessor {
	if cfg.MaxConflictRetries < 1 {
		cfg.MaxConflictRetries = defaultConflictRetries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &FeedbackProcessor{
		profiles:    profiles,
		preferences: preferences,
		matches:     matches,
		notifier:    cfg.Notifier,
		now:         cfg.Now,
		maxRetries:  cfg.MaxConflictRetries,
	}
}

// Process applies one feedback event. It returns false with a nil error when
// the target profile does not exist; nothing is mutated in that case. Each
// step commits on its own, so a failure part way leaves earlier steps in
// place and the whole event can be retried.
func (f *FeedbackProcessor) Process(ctx context.Context, ev FeedbackEvent) (processed bool, err error) {
	start := time.Now()
	defer func() {
		outcome := "processed"
		switch {
		case err != nil:
			outcome = "failed"
		case !processed:
			outcome = "skipped"
		}
		RecordFeedback(ev.Interaction, outcome)
		RecordResponseTime("feedback", time.Since(start))
	}()

	if !ev.Interaction.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidInteraction, ev.Interaction)
	}
	if ev.SourceUserID == ev.TargetUserID {
		return false, ErrSelfInteraction
	}

	logger := logging.Ctx(ctx).With().
		Int64("source_user_id", ev.SourceUserID).
		Int64("target_user_id", ev.TargetUserID).
		Str("interaction", string(ev.Interaction)).
		Logger()

	target, err := f.profiles.GetProfile(ctx, ev.TargetUserID)
	if errors.Is(err, ErrProfileNotFound) {
		logger.Warn().Msg("Feedback target profile not found, skipping event")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load target profile: %w", err)
	}

	now := f.now()

	if err := f.updatePreferences(ctx, ev.SourceUserID, func(p *PreferenceVector) {
		p.Apply(ev, target, now)
	}); err != nil {
		return false, fmt.Errorf("update preferences: %w", err)
	}

	if err := f.profiles.UpdateMetrics(ctx, target.UserID, func(m *ProfileMetrics) {
		applyPopularity(m, ev.Interaction)
	}); err != nil {
		return false, fmt.Errorf("update target metrics: %w", err)
	}

	if ev.Interaction == InteractionLike {
		if err := f.detectMatch(ctx, ev.SourceUserID, target.UserID, now); err != nil {
			return false, fmt.Errorf("match detection: %w", err)
		}
	}

	for _, id := range []int64{ev.SourceUserID, target.UserID} {
		err := f.profiles.TouchLastActive(ctx, id, now)
		if errors.Is(err, ErrProfileNotFound) {
			logger.Warn().Int64("user_id", id).Msg("Cannot touch last active, profile missing")
			continue
		}
		if err != nil {
			return false, fmt.Errorf("touch last active: %w", err)
		}
	}

	logger.Debug().Msg("Feedback processed")
	return true, nil
}

// updatePreferences runs a read-modify-write on one user's vector, retrying
// lost optimistic races up to maxRetries times.
func (f *FeedbackProcessor) updatePreferences(ctx context.Context, userID int64, mutate func(p *PreferenceVector)) error {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := f.preferences.GetPreferences(ctx, userID)
		if errors.Is(err, ErrPreferencesNotFound) {
			p = NewPreferenceVector(userID)
		} else if err != nil {
			return err
		}

		mutate(p)

		lastErr = f.preferences.SavePreferences(ctx, p)
		if !errors.Is(lastErr, ErrVersionConflict) {
			return lastErr
		}
		RecordPreferenceConflict()
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v", ErrPersistence, f.maxRetries, lastErr)
}

// detectMatch creates the match if the target already liked the source.
// The source vector is committed before this runs, so of two concurrent
// mutual likes at least one sees the other; the pair-keyed insert keeps
// the match unique when both do.
func (f *FeedbackProcessor) detectMatch(ctx context.Context, sourceID, targetID int64, now time.Time) error {
	counterpart, err := f.preferences.GetPreferences(ctx, targetID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !counterpart.HasLiked(sourceID) {
		return nil
	}

	match, created, err := f.matches.CreateIfAbsent(ctx, sourceID, targetID, now)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	for _, id := range []int64{match.UserA, match.UserB} {
		err := f.profiles.UpdateMetrics(ctx, id, func(m *ProfileMetrics) { m.Matches++ })
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			return err
		}
	}

	RecordMatch()
	logging.Ctx(ctx).Info().
		Int64("match_id", match.ID).
		Int64("user_a", match.UserA).
		Int64("user_b", match.UserB).
		Msg("Mutual match created")

	if f.notifier != nil {
		f.notifier.NotifyMatch(ctx, match)
	}
	return nil
}

func applyPopularity(m *ProfileMetrics, interaction InteractionType) {
	switch interaction {
	case InteractionView:
		m.Views++
	case InteractionLike:
		m.Likes++
		m.PopularityScore = math.Min(maxPopularity, m.PopularityScore+likePopularityGain)
	case InteractionDislike:
		m.Dislikes++
		m.PopularityScore = math.Max(0, m.PopularityScore-dislikePopularityLoss)
	}
}
