package matching

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

type ExperienceLevel string

const (
	Beginner     ExperienceLevel = "Beginner"
	Intermediate ExperienceLevel = "Intermediate"
	Advanced     ExperienceLevel = "Advanced"
)

// Index returns the ordinal position of the level, or -1 if it is unknown.
func (l ExperienceLevel) Index() int {
	switch l {
	case Beginner:
		return 0
	case Intermediate:
		return 1
	case Advanced:
		return 2
	default:
		return -1
	}
}

// FlexibleTime is the preferred time that fits any schedule.
const FlexibleTime = "Flexible"

type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionDislike InteractionType = "dislike"
	InteractionView    InteractionType = "view"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionLike, InteractionDislike, InteractionView:
		return true
	}
	return false
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the location is present and holds finite coordinates.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	for _, v := range []float64{l.Lat, l.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type ProfileMetrics struct {
	Views           int     `json:"views"`
	Likes           int     `json:"likes"`
	Dislikes        int     `json:"dislikes"`
	Matches         int     `json:"matches"`
	PopularityScore float64 `json:"popularity_score"`
}

// DefaultMetrics is what a profile starts with before it receives any feedback.
func DefaultMetrics() ProfileMetrics {
	return ProfileMetrics{PopularityScore: 50}
}

// Profile is the read model of a workout partner profile. Only Metrics and
// LastActive are ever written by this package.
type Profile struct {
	UserID          int64           `json:"user_id"`
	DisplayName     string          `json:"display_name,omitempty"`
	WorkoutTypes    []string        `json:"workout_types"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	PreferredTime   string          `json:"preferred_time"`
	Location        *Location       `json:"location,omitempty"`
	Bio             string          `json:"bio,omitempty"`
	Images          []string        `json:"images,omitempty"`
	LastActive      *time.Time      `json:"last_active,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
	Metrics         *ProfileMetrics `json:"metrics,omitempty"`
}

// Clone returns a deep copy so stored profiles are never aliased by callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.WorkoutTypes = append([]string(nil), p.WorkoutTypes...)
	c.Images = append([]string(nil), p.Images...)
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.Metrics != nil {
		m := *p.Metrics
		c.Metrics = &m
	}
	c.LastActive = cloneTime(p.LastActive)
	c.CreatedAt = cloneTime(p.CreatedAt)
	c.UpdatedAt = cloneTime(p.UpdatedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// IDSet is a set of user IDs. It serializes as a sorted JSON array.
type IDSet map[int64]struct{}

func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in ascending order.
func (s IDSet) Slice() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// PreferenceVector is the learned state of one user. Version is the
// optimistic concurrency token: zero means the vector has never been stored.
type PreferenceVector struct {
	UserID                     int64              `json:"user_id"`
	WorkoutTypePreferences     map[string]float64 `json:"workout_type_preferences"`
	ExperienceLevelPreferences map[string]float64 `json:"experience_level_preferences"`
	LikedProfiles              IDSet              `json:"liked_profiles"`
	DislikedProfiles           IDSet              `json:"disliked_profiles"`
	EngagementScore            float64            `json:"engagement_score"`
	Version                    int64              `json:"version"`
	UpdatedAt                  time.Time          `json:"updated_at"`
}

type FeedbackEvent struct {
	SourceUserID   int64           `json:"source_user_id"`
	TargetUserID   int64           `json:"target_user_id"`
	Interaction    InteractionType `json:"interaction_type"`
	ViewDurationMs int64           `json:"view_duration_ms"`
}

// MatchRecord links two users who liked each other. UserA < UserB always.
type MatchRecord struct {
	ID        int64     `json:"id" db:"id"`
	UserA     int64     `json:"user_a" db:"user_a"`
	UserB     int64     `json:"user_b" db:"user_b"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Active    bool      `json:"active" db:"active"`
}

// PairKey orders two user IDs the way match records store them.
func PairKey(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Other returns the counterpart of userID in the match.
func (m *MatchRecord) Other(userID int64) int64 {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

type RankedCandidate struct {
	Profile            *Profile `json:"profile"`
	CompatibilityScore float64  `json:"compatibility_score"`
	MatchScore         int      `json:"match_score"`
	DistanceMiles      float64  `json:"-"`
	Distance           float64  `json:"distance"`
	FinalScore         float64  `json:"final_score"`
}
