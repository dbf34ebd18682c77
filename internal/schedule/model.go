package schedule

import (
	"time"

	"github.com/google/uuid"
)

const maxNotesLength = 2000

type Location struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Appointment is the durable record of a booking between one client and one
// technician. Records are never deleted: cancellation and no-show are states.
type Appointment struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	TechnicianID       uuid.UUID
	NeedID             *uuid.UUID
	Slot               TimeSlot
	Location           *Location
	Status             Status
	CancellationReason *string
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
