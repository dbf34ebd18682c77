package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRatingNotFound = errors.New("rating not found")
	// ErrIneligible means the pair has no completed appointment between them.
	ErrIneligible = errors.New("no completed appointment between client and technician")
	// ErrDuplicate means the pair already has a rating; update it instead.
	ErrDuplicate = errors.New("rating already exists for this client and technician")
)

// ValidationError mirrors the scheduling package's shape for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Repository is the rating store boundary.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Rating, error)
	GetByPair(ctx context.Context, clientID, technicianID uuid.UUID) (*Rating, error)
	ListByTechnician(ctx context.Context, technicianID uuid.UUID) ([]Rating, error)

	// Insert fails with ErrDuplicate when the pair already has a rating.
	Insert(ctx context.Context, r *Rating) error
	Update(ctx context.Context, r *Rating) error
	// Delete returns the removed rating so callers know which technician to
	// recompute.
	Delete(ctx context.Context, id uuid.UUID) (*Rating, error)

	// UpsertSummary replaces the technician's summary row in one statement.
	UpsertSummary(ctx context.Context, s Summary) error
	GetSummary(ctx context.Context, technicianID uuid.UUID) (*Summary, error)
}

// CompletionChecker is the slice of the appointment store the reconciler
// needs for the eligibility rule.
type CompletionChecker interface {
	HasCompletedBetween(ctx context.Context, clientID, technicianID uuid.UUID) (bool, error)
}

// StatisticsSink receives the recomputed aggregate, typically the technician
// profile store.
type StatisticsSink interface {
	UpdateStatistics(ctx context.Context, technicianID uuid.UUID, avgRating float64, totalRatings, satisfiedClients, unsatisfiedClients int) error
}
