package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the appointment store boundary. It owns the authoritative
// records; all mutations flow through the Engine.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	Insert(ctx context.Context, appt *Appointment) error

	// UpdateSlot moves the appointment to a new slot iff its status is still
	// pending or confirmed. Returns ErrAppointmentNotFound when the guard
	// fails so the caller can reload and report the real state.
	UpdateSlot(ctx context.Context, id uuid.UUID, slot TimeSlot) (*Appointment, error)

	// UpdateStatus is a compare-and-swap on status: it only succeeds when the
	// stored status still equals from. reason is persisted for cancellations.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error)

	// FindActiveOverlapping returns an active appointment of the technician
	// whose slot intersects [start, end), skipping exclude when non-nil.
	FindActiveOverlapping(ctx context.Context, technicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (*Appointment, error)

	// ListActive returns every active appointment, used to rebuild the
	// conflict index at startup.
	ListActive(ctx context.Context) ([]Appointment, error)

	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListUpcoming(ctx context.Context, technicianID uuid.UUID, from time.Time, limit int) ([]Appointment, error)
	ListByMonth(ctx context.Context, technicianID uuid.UUID, year int, month time.Month) ([]Appointment, error)

	// HasCompletedBetween reports whether the pair has at least one completed
	// appointment, the rating eligibility rule.
	HasCompletedBetween(ctx context.Context, clientID, technicianID uuid.UUID) (bool, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
