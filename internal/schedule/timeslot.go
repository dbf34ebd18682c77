package schedule

import "time"

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

// TimeSlot is the half-open interval [Start, Start+Duration) during which a
// technician is committed to an appointment.
type TimeSlot struct {
	Start           time.Time
	DurationMinutes int
}

func (s TimeSlot) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the two half-open intervals intersect. Slots that
// merely touch (one ends exactly when the other starts) do not overlap.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

func (s TimeSlot) Validate() error {
	if s.Start.IsZero() {
		return &ValidationError{Field: "scheduled_start", Reason: "is required"}
	}
	if s.DurationMinutes < MinDurationMinutes || s.DurationMinutes > MaxDurationMinutes {
		return &ValidationError{Field: "duration_minutes", Reason: "must be between 15 and 480"}
	}
	return nil
}
