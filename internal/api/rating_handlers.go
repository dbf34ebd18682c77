package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/fixmate/technician-scheduling/internal/rating"
)

func createRatingHandler(rc *rating.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRatingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		technicianID, err := uuid.Parse(req.TechnicianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_technician_id", "technician_id must be a valid UUID")
			return
		}

		rt, err := rc.CreateRating(r.Context(), clientID, technicianID, req.Score, req.Comment)
		if err != nil {
			handleRatingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ratingToResponse(rt))
	}
}

func updateRatingHandler(rc *rating.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateRatingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rt, err := rc.UpdateRating(r.Context(), id, req.Score, req.Comment)
		if err != nil {
			handleRatingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ratingToResponse(rt))
	}
}

func deleteRatingHandler(rc *rating.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := rc.DeleteRating(r.Context(), id); err != nil {
			handleRatingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ratingSummaryHandler(rc *rating.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		s, err := rc.GetSummary(r.Context(), technicianID)
		if err != nil {
			handleRatingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, RatingSummaryResponse{
			TechnicianID:     s.TechnicianID,
			AverageScore:     s.AverageScore,
			TotalRatings:     s.TotalRatings,
			SatisfiedCount:   s.SatisfiedCount,
			UnsatisfiedCount: s.UnsatisfiedCount,
		})
	}
}

func ratingToResponse(rt *rating.Rating) RatingResponse {
	return RatingResponse{
		ID:           rt.ID,
		ClientID:     rt.ClientID,
		TechnicianID: rt.TechnicianID,
		Score:        rt.Score,
		Comment:      rt.Comment,
		CreatedAt:    rt.CreatedAt,
		UpdatedAt:    rt.UpdatedAt,
	}
}

func handleRatingError(w http.ResponseWriter, err error) {
	var validationErr *rating.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, rating.ErrIneligible):
		writeError(w, http.StatusConflict, "rating_ineligible", err.Error())
	case errors.Is(err, rating.ErrDuplicate):
		writeError(w, http.StatusConflict, "rating_exists", err.Error())
	case errors.Is(err, rating.ErrRatingNotFound):
		writeError(w, http.StatusNotFound, "rating_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
