package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/fitmatch-backend/internal/auth"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	params, err := parseRecommendationParams(r)
	if err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(params); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	candidates, err := h.service.Recommend(r.Context(), userID, params.Options())
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("Failed to build recommendations")
		utils.ErrorResponse(w, "Failed to get recommendations", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, RecommendationsResponse{
		Candidates: candidates,
		Count:      len(candidates),
	}, http.StatusOK)
}

// SubmitFeedback records a swipe or view. Storage failures are logged and
// reported as processed=false rather than as an error status.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	processed, err := h.service.ProcessFeedback(r.Context(), FeedbackEvent{
		SourceUserID:   userID,
		TargetUserID:   req.TargetUserID,
		Interaction:    InteractionType(req.InteractionType),
		ViewDurationMs: req.ViewDurationMs,
	})
	if errors.Is(err, ErrSelfInteraction) || errors.Is(err, ErrInvalidInteraction) {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.SuccessResponse(w, FeedbackResponse{Processed: processed}, http.StatusOK)
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	otherID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || otherID <= 0 {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	score, factors, err := h.service.Compatibility(r.Context(), userID, otherID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("Failed to compute compatibility")
		utils.ErrorResponse(w, "Failed to compute compatibility", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, CompatibilityResponse{
		UserID:     otherID,
		Score:      roundTo(score, 2),
		MatchScore: int(roundTo(score, 0)),
		Factors:    factors,
	}, http.StatusOK)
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matches, err := h.service.GetMatches(r.Context(), userID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("Failed to list matches")
		utils.ErrorResponse(w, "Failed to get matches", http.StatusInternalServerError)
		return
	}

	out := make([]MatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchDTO{ID: m.ID, PartnerID: m.Other(userID), CreatedAt: m.CreatedAt})
	}
	utils.SuccessResponse(w, out, http.StatusOK)
}

func parseRecommendationParams(r *http.Request) (RecommendationParams, error) {
	var params RecommendationParams
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, errors.New("limit must be an integer")
		}
		params.Limit = &n
	}
	if v := q.Get("diversity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, errors.New("diversity must be a number")
		}
		params.Diversity = &f
	}
	if v := q.Get("max_distance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, errors.New("max_distance must be a number")
		}
		params.MaxDistance = &f
	}
	return params, nil
}
