// Package rating owns individual rating records and the reconciler that keeps
// a technician's derived rating summary equal to the aggregate of those
// records.
package rating

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fixmate/technician-scheduling/internal/logger"
)

// Reconciler validates rating writes and recomputes the per-technician
// summary after every change. Recompute reads all current ratings and
// replaces the summary atomically: re-running it is always safe, so
// concurrent rating edits converge on the true aggregate.
type Reconciler struct {
	repo        Repository
	completions CompletionChecker
	stats       StatisticsSink
	log         *logger.Logger
	now         func() time.Time

	// Serializes recomputes per technician so summary writes for one
	// technician never interleave.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewReconciler(repo Repository, completions CompletionChecker, stats StatisticsSink, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:        repo,
		completions: completions,
		stats:       stats,
		log:         log,
		now:         time.Now,
		locks:       make(map[uuid.UUID]*sync.Mutex),
	}
}

func validateScore(score int, comment string) error {
	if score < MinScore || score > MaxScore {
		return &ValidationError{Field: "score", Reason: "must be between 1 and 5"}
	}
	// Low scores always need an explanation, no matter which fields the
	// request supplied.
	if score <= unsatisfiedMax && strings.TrimSpace(comment) == "" {
		return &ValidationError{Field: "comment", Reason: "is required for scores of 2 or below"}
	}
	return nil
}

// CreateRating records a new rating for the pair. The pair must have at least
// one completed appointment between them and no existing rating.
func (rc *Reconciler) CreateRating(ctx context.Context, clientID, technicianID uuid.UUID, score int, comment string) (*Rating, error) {
	if err := validateScore(score, comment); err != nil {
		return nil, err
	}

	eligible, err := rc.completions.HasCompletedBetween(ctx, clientID, technicianID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrIneligible
	}

	if _, err := rc.repo.GetByPair(ctx, clientID, technicianID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrRatingNotFound) {
		return nil, err
	}

	now := rc.now()
	r := &Rating{
		ID:           uuid.New(),
		ClientID:     clientID,
		TechnicianID: technicianID,
		Score:        score,
		Comment:      strings.TrimSpace(comment),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := rc.repo.Insert(ctx, r); err != nil {
		return nil, err
	}

	rc.recomputeAfterWrite(ctx, technicianID)
	return r, nil
}

// UpdateRating changes the score and/or comment of an existing rating. The
// low-score comment rule applies to the resulting record, not to the fields
// supplied in this particular request.
func (rc *Reconciler) UpdateRating(ctx context.Context, id uuid.UUID, score *int, comment *string) (*Rating, error) {
	r, err := rc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if score != nil {
		r.Score = *score
	}
	if comment != nil {
		r.Comment = strings.TrimSpace(*comment)
	}
	if err := validateScore(r.Score, r.Comment); err != nil {
		return nil, err
	}

	if err := rc.repo.Update(ctx, r); err != nil {
		return nil, err
	}

	rc.recomputeAfterWrite(ctx, r.TechnicianID)
	return r, nil
}

// DeleteRating removes a rating and recomputes the technician's summary.
func (rc *Reconciler) DeleteRating(ctx context.Context, id uuid.UUID) error {
	deleted, err := rc.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	rc.recomputeAfterWrite(ctx, deleted.TechnicianID)
	return nil
}

// Recompute reads every current rating for the technician, derives the
// summary, writes it as a single replace, and pushes the statistics to the
// technician profile store.
func (rc *Reconciler) Recompute(ctx context.Context, technicianID uuid.UUID) (*Summary, error) {
	lock := rc.technicianLock(technicianID)
	lock.Lock()
	defer lock.Unlock()

	ratings, err := rc.repo.ListByTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	s := summarize(technicianID, ratings)
	if err := rc.repo.UpsertSummary(ctx, s); err != nil {
		return nil, err
	}

	if rc.stats != nil {
		err := rc.stats.UpdateStatistics(ctx, technicianID,
			s.AverageScore, s.TotalRatings, s.SatisfiedCount, s.UnsatisfiedCount)
		if err != nil {
			return nil, err
		}
	}

	return &s, nil
}

// GetSummary reads the stored summary; absent rows read as the zero summary.
func (rc *Reconciler) GetSummary(ctx context.Context, technicianID uuid.UUID) (*Summary, error) {
	return rc.repo.GetSummary(ctx, technicianID)
}

// AppointmentCompleted implements the scheduling engine's completion hook:
// the pair becomes rateable, and the completed-job statistics refresh. The
// score itself only moves when a rating record changes, but the recompute is
// idempotent so refreshing here costs nothing.
func (rc *Reconciler) AppointmentCompleted(ctx context.Context, clientID, technicianID uuid.UUID) error {
	_, err := rc.Recompute(ctx, technicianID)
	return err
}

// recomputeAfterWrite runs the recompute for a rating write. A failure does
// not fail the write itself: the summary converges on the next recompute.
func (rc *Reconciler) recomputeAfterWrite(ctx context.Context, technicianID uuid.UUID) {
	if _, err := rc.Recompute(ctx, technicianID); err != nil {
		rc.log.Error("rating summary recompute failed",
			"technician_id", technicianID,
			"error", err,
		)
	}
}

func (rc *Reconciler) technicianLock(technicianID uuid.UUID) *sync.Mutex {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	l, ok := rc.locks[technicianID]
	if !ok {
		l = &sync.Mutex{}
		rc.locks[technicianID] = l
	}
	return l
}
