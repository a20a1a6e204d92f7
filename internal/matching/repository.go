package matching

import (
	"context"
	"time"
)

// CandidateFilter narrows the pool handed to the recommendation engine.
// Center and RadiusMiles allow a store to pre-filter with a bounding box;
// the engine still applies the exact distance check.
type CandidateFilter struct {
	ExcludeIDs  []int64
	Center      *Location
	RadiusMiles float64
	Limit       int
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	ListCandidates(ctx context.Context, userID int64, filter CandidateFilter) ([]*Profile, error)

	// UpdateMetrics applies fn to the stored metrics atomically. Absent
	// metrics are initialized with DefaultMetrics before fn runs.
	UpdateMetrics(ctx context.Context, userID int64, fn func(m *ProfileMetrics)) error
	TouchLastActive(ctx context.Context, userID int64, at time.Time) error
}

type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID int64) (*PreferenceVector, error)

	// SavePreferences stores p if the stored version still equals p.Version
	// (zero meaning "not stored yet") and then advances p.Version. A lost
	// race returns ErrVersionConflict.
	SavePreferences(ctx context.Context, p *PreferenceVector) error
}

type MatchRepository interface {
	// CreateIfAbsent inserts the match for the unordered pair unless one
	// exists. created is false when another writer got there first.
	CreateIfAbsent(ctx context.Context, userA, userB int64, at time.Time) (match *MatchRecord, created bool, err error)
	ListMatches(ctx context.Context, userID int64, activeOnly bool) ([]*MatchRecord, error)
}
