package matching

import "time"

// DTOs for API requests/responses

type FeedbackRequest struct {
	TargetUserID    int64  `json:"target_user_id" validate:"required,gt=0"`
	InteractionType string `json:"interaction_type" validate:"required,oneof=like dislike view"`
	ViewDurationMs  int64  `json:"view_duration_ms" validate:"min=0"`
}

type FeedbackResponse struct {
	Processed bool `json:"processed"`
}

// RecommendationParams are the optional query parameters of the
// recommendations endpoint.
type RecommendationParams struct {
	Limit       *int     `validate:"omitempty,min=1,max=100"`
	Diversity   *float64 `validate:"omitempty,min=0,max=1"`
	MaxDistance *float64 `validate:"omitempty,gt=0,max=500"`
}

func (p RecommendationParams) Options() Options {
	return Options{
		Limit:           p.Limit,
		DiversityFactor: p.Diversity,
		MaxDistance:     p.MaxDistance,
	}
}

type RecommendationsResponse struct {
	Candidates []*RankedCandidate `json:"candidates"`
	Count      int                `json:"count"`
}

type CompatibilityResponse struct {
	UserID     int64   `json:"user_id"`
	Score      float64 `json:"score"`
	MatchScore int     `json:"match_score"`
	Factors    Factors `json:"factors"`
}

type MatchDTO struct {
	ID        int64     `json:"id"`
	PartnerID int64     `json:"partner_id"`
	CreatedAt time.Time `json:"created_at"`
}
