package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrForbidden           = errors.New("actor is not a party to this appointment")
	// ErrTechnicianBusy means another request holds the technician's schedule
	// lock; the caller may retry shortly.
	ErrTechnicianBusy = errors.New("technician schedule is being modified, please retry")
	// ErrAppointmentBusy means another transition for the same appointment is
	// in flight.
	ErrAppointmentBusy = errors.New("appointment is being modified, please retry")
)

// ValidationError reports a malformed input field. Deterministic: retrying the
// same request cannot succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ConflictError reports that the candidate slot overlaps an active appointment
// of the same technician.
type ConflictError struct {
	ConflictingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot overlaps active appointment %s", e.ConflictingID)
}

// InvalidTransitionError reports an illegal (state, action, role) combination.
type InvalidTransitionError struct {
	From   Status
	Action Action
	Role   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q as %s", e.Action, e.From, e.Role)
}
