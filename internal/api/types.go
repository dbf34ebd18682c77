package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fixmate/technician-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	ClientID        string           `json:"client_id"`
	TechnicianID    string           `json:"technician_id"`
	NeedID          *string          `json:"need_id,omitempty"`
	ScheduledStart  time.Time        `json:"scheduled_start"`
	DurationMinutes int              `json:"duration_minutes"`
	Location        *LocationPayload `json:"location,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

type LocationPayload struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RescheduleRequest struct {
	ActorID         string    `json:"actor_id"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	DurationMinutes int       `json:"duration_minutes"`
}

type TransitionRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

type CancelRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type CreateRatingRequest struct {
	ClientID     string `json:"client_id"`
	TechnicianID string `json:"technician_id"`
	Score        int    `json:"score"`
	Comment      string `json:"comment,omitempty"`
}

type UpdateRatingRequest struct {
	Score   *int    `json:"score,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID        `json:"id"`
	ClientID           uuid.UUID        `json:"client_id"`
	TechnicianID       uuid.UUID        `json:"technician_id"`
	NeedID             *uuid.UUID       `json:"need_id,omitempty"`
	ScheduledStart     time.Time        `json:"scheduled_start"`
	DurationMinutes    int              `json:"duration_minutes"`
	Location           *LocationPayload `json:"location,omitempty"`
	Status             string           `json:"status"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	DistanceKm         *float64         `json:"distance_km,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type RatingResponse struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RatingSummaryResponse struct {
	TechnicianID     uuid.UUID `json:"technician_id"`
	AverageScore     float64   `json:"average_score"`
	TotalRatings     int       `json:"total_ratings"`
	SatisfiedCount   int       `json:"satisfied_count"`
	UnsatisfiedCount int       `json:"unsatisfied_count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func appointmentToResponse(a *schedule.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		ClientID:           a.ClientID,
		TechnicianID:       a.TechnicianID,
		NeedID:             a.NeedID,
		ScheduledStart:     a.Slot.Start,
		DurationMinutes:    a.Slot.DurationMinutes,
		Status:             string(a.Status),
		CancellationReason: a.CancellationReason,
		Notes:              a.Notes,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.Location != nil {
		resp.Location = &LocationPayload{
			Address:   a.Location.Address,
			Latitude:  a.Location.Latitude,
			Longitude: a.Location.Longitude,
		}
	}
	return resp
}
