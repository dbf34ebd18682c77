package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixmate/technician-scheduling/internal/directory"
	"github.com/fixmate/technician-scheduling/internal/locker"
	"github.com/fixmate/technician-scheduling/internal/logger"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventStatusChanged          = "APPOINTMENT_STATUS_CHANGED"
	EventRatingRecomputeFailed  = "RATING_RECOMPUTE_FAILED"
)

const completionHookTimeout = 10 * time.Second

// ActionReschedule is not part of the lifecycle table; it only names the
// operation in errors when a reschedule is attempted in a non-movable state.
const ActionReschedule Action = "reschedule"

// CompletionListener is notified after an appointment reaches completed. The
// notification runs outside the triggering request: a listener failure never
// fails the completion itself.
type CompletionListener interface {
	AppointmentCompleted(ctx context.Context, clientID, technicianID uuid.UUID) error
}

// Engine owns every appointment mutation. It consults the state machine for
// legality and the conflict index plus store for availability, and it keeps
// the index synchronized with the store: index updates happen only after the
// store commit succeeds, so a storage failure leaves no stray index entry.
type Engine struct {
	repo       Repository
	index      *ConflictIndex
	locks      locker.Locker
	users      directory.Users
	completion CompletionListener
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine wires the engine. users may be nil when no directory is available
// (tests); role claims are then trusted as long as the actor is a party to the
// appointment.
func NewEngine(repo Repository, locks locker.Locker, users directory.Users, log *logger.Logger) *Engine {
	return &Engine{
		repo:  repo,
		index: NewConflictIndex(),
		locks: locks,
		users: users,
		log:   log,
		now:   time.Now,
	}
}

// SetCompletionListener registers the hook invoked after completions.
func (e *Engine) SetCompletionListener(l CompletionListener) {
	e.completion = l
}

// RebuildIndex replays the active subset of the store into the conflict
// index. Called once at startup; safe to call again after any suspected
// index corruption.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	active, err := e.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}
	e.index.Rebuild(active)
	e.log.Info("conflict index rebuilt", "active_slots", len(active))
	return nil
}

type CreateInput struct {
	ClientID     uuid.UUID
	TechnicianID uuid.UUID
	Slot         TimeSlot
	NeedID       *uuid.UUID
	Location     *Location
	Notes        string
}

func (in CreateInput) validate(now time.Time) error {
	if in.ClientID == uuid.Nil {
		return &ValidationError{Field: "client_id", Reason: "is required"}
	}
	if in.TechnicianID == uuid.Nil {
		return &ValidationError{Field: "technician_id", Reason: "is required"}
	}
	if err := in.Slot.Validate(); err != nil {
		return err
	}
	if !in.Slot.Start.After(now) {
		return &ValidationError{Field: "scheduled_start", Reason: "must be in the future"}
	}
	if len(in.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Reason: "exceeds maximum length"}
	}
	return nil
}

// confirmConflict resolves an index hit against the store. The index is a
// per-process cache: another instance may have cancelled or moved the
// appointment an entry names, so a hit is only a conflict once the store
// confirms the appointment is still active on an overlapping slot. Stale
// entries are repaired in place. Every repair removes or shrinks the set of
// entries overlapping the candidate, so the rescan terminates.
func (e *Engine) confirmConflict(ctx context.Context, technicianID uuid.UUID, candidate TimeSlot, exclude uuid.UUID) (*ConflictError, error) {
	for {
		conflictID, ok := e.index.FirstConflict(technicianID, candidate, exclude)
		if !ok {
			return nil, nil
		}

		other, err := e.repo.GetByID(ctx, conflictID)
		if errors.Is(err, ErrAppointmentNotFound) {
			e.index.Remove(technicianID, conflictID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("confirm conflicting appointment: %w", err)
		}
		if !other.Status.Active() {
			e.index.Remove(technicianID, conflictID)
			continue
		}
		if !other.Slot.Overlaps(candidate) {
			// Moved elsewhere; refresh the entry and rescan.
			e.index.Replace(technicianID, conflictID, other.Slot)
			continue
		}
		return &ConflictError{ConflictingID: conflictID}, nil
	}
}

// Create books the technician for the requested slot. The conflict check and
// the insert run as one atomic unit under the technician's lock, so two
// concurrent creates for overlapping slots cannot both commit.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := in.validate(e.now()); err != nil {
		return nil, err
	}
	if err := e.verifyRole(ctx, in.ClientID, RoleClient); err != nil {
		return nil, err
	}
	if err := e.verifyRole(ctx, in.TechnicianID, RoleTechnician); err != nil {
		return nil, err
	}

	var created *Appointment

	err := e.locks.WithLock(ctx, technicianKey(in.TechnicianID), func(lockCtx context.Context) error {
		cerr, err := e.confirmConflict(lockCtx, in.TechnicianID, in.Slot, uuid.Nil)
		if err != nil {
			return err
		}
		if cerr != nil {
			return cerr
		}

		// The store is authoritative: another instance may have committed a
		// slot this process has not indexed.
		existing, err := e.repo.FindActiveOverlapping(lockCtx, in.TechnicianID, in.Slot.Start, in.Slot.End(), nil)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check overlapping appointments: %w", err)
		}
		if existing != nil {
			return &ConflictError{ConflictingID: existing.ID}
		}

		now := e.now()
		appt := &Appointment{
			ID:           uuid.New(),
			ClientID:     in.ClientID,
			TechnicianID: in.TechnicianID,
			NeedID:       in.NeedID,
			Slot:         in.Slot,
			Location:     in.Location,
			Status:       StatusPending,
			Notes:        in.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := e.repo.Insert(lockCtx, appt); err != nil {
			return err
		}
		e.index.Insert(appt.TechnicianID, appt.ID, appt.Slot)

		created = appt
		e.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"client_id":        appt.ClientID.String(),
			"technician_id":    appt.TechnicianID.String(),
			"scheduled_start":  appt.Slot.Start,
			"duration_minutes": appt.Slot.DurationMinutes,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, locker.ErrNotAcquired) {
			return nil, ErrTechnicianBusy
		}
		return nil, err
	}

	return created, nil
}

// Reschedule moves a pending or confirmed appointment to a new slot. The
// conflict check excludes the appointment being moved, and on conflict the
// original slot stays untouched.
func (e *Engine) Reschedule(ctx context.Context, appointmentID, actorID uuid.UUID, newSlot TimeSlot) (*Appointment, error) {
	if err := newSlot.Validate(); err != nil {
		return nil, err
	}
	if !newSlot.Start.After(e.now()) {
		return nil, &ValidationError{Field: "scheduled_start", Reason: "must be in the future"}
	}

	appt, err := e.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	role, err := partyRole(appt, actorID)
	if err != nil {
		return nil, err
	}
	if err := e.verifyRole(ctx, actorID, role); err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{From: appt.Status, Action: ActionReschedule, Role: role}
	}

	var moved *Appointment

	// The appointment lock is taken inside the technician lock so a concurrent
	// transition cannot slip in between the slot commit and the index update.
	// Transition takes the appointment lock alone; the technician-then-
	// appointment order here cannot deadlock against it.
	err = e.locks.WithLock(ctx, technicianKey(appt.TechnicianID), func(lockCtx context.Context) error {
		return e.locks.WithLock(lockCtx, appointmentKey(appt.ID), func(lockCtx context.Context) error {
			cerr, err := e.confirmConflict(lockCtx, appt.TechnicianID, newSlot, appt.ID)
			if err != nil {
				return err
			}
			if cerr != nil {
				return cerr
			}

			existing, err := e.repo.FindActiveOverlapping(lockCtx, appt.TechnicianID, newSlot.Start, newSlot.End(), &appt.ID)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check overlapping appointments: %w", err)
			}
			if existing != nil {
				return &ConflictError{ConflictingID: existing.ID}
			}

			oldSlot := appt.Slot
			updated, err := e.repo.UpdateSlot(lockCtx, appt.ID, newSlot)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					// Status moved on between our read and the update.
					if cur, gerr := e.repo.GetByID(lockCtx, appt.ID); gerr == nil {
						return &InvalidTransitionError{From: cur.Status, Action: ActionReschedule, Role: role}
					}
					return err
				}
				return err
			}
			e.index.Replace(appt.TechnicianID, appt.ID, newSlot)

			moved = updated
			e.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
				"old_start":        oldSlot.Start,
				"new_start":        newSlot.Start,
				"duration_minutes": newSlot.DurationMinutes,
				"actor_id":         actorID.String(),
			})
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, locker.ErrNotAcquired) {
			return nil, ErrTechnicianBusy
		}
		return nil, err
	}

	return moved, nil
}

// Transition applies one lifecycle action as the given actor. Transitions for
// a single appointment are serialized through its lock so no two race.
func (e *Engine) Transition(ctx context.Context, appointmentID, actorID uuid.UUID, role Role, action Action) (*Appointment, error) {
	if role != RoleClient && role != RoleTechnician {
		return nil, &ValidationError{Field: "actor_role", Reason: "must be client or technician"}
	}
	return e.transition(ctx, appointmentID, actorID, role, action, nil)
}

// Cancel is a convenience wrapper over the cancel action. The actor's role is
// derived from which party of the appointment they are.
func (e *Engine) Cancel(ctx context.Context, appointmentID, actorID uuid.UUID, reason string) (*Appointment, error) {
	return e.transition(ctx, appointmentID, actorID, "", ActionCancel, &reason)
}

func (e *Engine) transition(ctx context.Context, appointmentID, actorID uuid.UUID, role Role, action Action, reason *string) (*Appointment, error) {
	if action == ActionCancel {
		if reason == nil || strings.TrimSpace(*reason) == "" {
			return nil, &ValidationError{Field: "cancellation_reason", Reason: "is required"}
		}
		trimmed := strings.TrimSpace(*reason)
		reason = &trimmed
	} else {
		reason = nil
	}

	var result *Appointment

	err := e.locks.WithLock(ctx, appointmentKey(appointmentID), func(lockCtx context.Context) error {
		appt, err := e.repo.GetByID(lockCtx, appointmentID)
		if err != nil {
			return err
		}

		actorRole := role
		if actorRole == "" {
			actorRole, err = partyRole(appt, actorID)
			if err != nil {
				return err
			}
		}
		switch actorRole {
		case RoleClient:
			if appt.ClientID != actorID {
				return ErrForbidden
			}
		case RoleTechnician:
			if appt.TechnicianID != actorID {
				return ErrForbidden
			}
		default:
			return ErrForbidden
		}
		if err := e.verifyRole(lockCtx, actorID, actorRole); err != nil {
			return err
		}

		next, err := Apply(appt.Status, action, actorRole)
		if err != nil {
			return err
		}

		updated, err := e.repo.UpdateStatus(lockCtx, appointmentID, appt.Status, next, reason)
		if err != nil {
			return fmt.Errorf("apply %s: %w", action, err)
		}
		// Terminal statuses leave the active set and free the slot at once.
		if next.Terminal() {
			e.index.Remove(appt.TechnicianID, appt.ID)
		}

		e.logEvent(lockCtx, appointmentID, EventStatusChanged, map[string]any{
			"action":     string(action),
			"from":       string(appt.Status),
			"to":         string(next),
			"actor_id":   actorID.String(),
			"actor_role": string(actorRole),
		})

		if next == StatusCompleted {
			e.notifyCompleted(updated)
		}

		result = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, locker.ErrNotAcquired) {
			return nil, ErrAppointmentBusy
		}
		return nil, err
	}

	return result, nil
}

// notifyCompleted hands the completed appointment to the rating reconciler.
// Runs detached from the request: recompute failure must not fail the
// completion, but it is logged and recorded on the event log for retry.
func (e *Engine) notifyCompleted(appt *Appointment) {
	if e.completion == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), completionHookTimeout)
		defer cancel()

		if err := e.completion.AppointmentCompleted(ctx, appt.ClientID, appt.TechnicianID); err != nil {
			e.log.Error("statistics recompute after completion failed",
				"appointment_id", appt.ID,
				"technician_id", appt.TechnicianID,
				"error", err,
			)
			e.logEvent(ctx, appt.ID, EventRatingRecomputeFailed, map[string]any{
				"technician_id": appt.TechnicianID.String(),
				"error":         err.Error(),
			})
		}
	}()
}

// Read accessors. Pure pass-through filtering, no business rules.

func (e *Engine) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.repo.GetByID(ctx, id)
}

func (e *Engine) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return e.repo.ListByClient(ctx, clientID, limit, offset)
}

func (e *Engine) ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return e.repo.ListByTechnician(ctx, technicianID, limit, offset)
}

func (e *Engine) ListUpcoming(ctx context.Context, technicianID uuid.UUID, limit int) ([]Appointment, error) {
	limit, _ = clampPage(limit, 0)
	return e.repo.ListUpcoming(ctx, technicianID, e.now(), limit)
}

func (e *Engine) ListByMonth(ctx context.Context, technicianID uuid.UUID, year int, month time.Month) ([]Appointment, error) {
	if month < time.January || month > time.December {
		return nil, &ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	return e.repo.ListByMonth(ctx, technicianID, year, month)
}

func (e *Engine) verifyRole(ctx context.Context, id uuid.UUID, want Role) error {
	if e.users == nil {
		return nil
	}
	u, err := e.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if string(u.Role) != string(want) {
		return ErrForbidden
	}
	return nil
}

func partyRole(appt *Appointment, actorID uuid.UUID) (Role, error) {
	switch actorID {
	case appt.ClientID:
		return RoleClient, nil
	case appt.TechnicianID:
		return RoleTechnician, nil
	}
	return "", ErrForbidden
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func technicianKey(id uuid.UUID) string {
	return "technician:" + id.String()
}

func appointmentKey(id uuid.UUID) string {
	return "appointment:" + id.String()
}

func (e *Engine) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("marshal event payload failed", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     e.now(),
	}

	if err := e.repo.InsertEvent(ctx, ev); err != nil {
		e.log.Error("insert event log failed",
			"event_type", eventType,
			"appointment_id", appointmentID,
			"error", err,
		)
	}
}
