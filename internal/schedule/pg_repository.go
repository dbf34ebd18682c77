package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `
	id, client_id, technician_id, need_id,
	scheduled_start, duration_minutes,
	address, latitude, longitude,
	status, cancellation_reason, notes,
	created_at, updated_at`

var activeStatuses = []string{
	string(StatusPending),
	string(StatusConfirmed),
	string(StatusInProgress),
	string(StatusArrived),
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a       Appointment
		address *string
		lat     *float64
		lng     *float64
	)

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.TechnicianID,
		&a.NeedID,
		&a.Slot.Start,
		&a.Slot.DurationMinutes,
		&address,
		&lat,
		&lng,
		&a.Status,
		&a.CancellationReason,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if lat != nil && lng != nil {
		loc := Location{Latitude: *lat, Longitude: *lng}
		if address != nil {
			loc.Address = *address
		}
		a.Location = &loc
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Insert(ctx context.Context, appt *Appointment) error {
	var address *string
	var lat, lng *float64
	if appt.Location != nil {
		address = &appt.Location.Address
		lat = &appt.Location.Latitude
		lng = &appt.Location.Longitude
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, client_id, technician_id, need_id,
			scheduled_start, duration_minutes,
			address, latitude, longitude,
			status, cancellation_reason, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, $11, $12, $13)
	`,
		appt.ID, appt.ClientID, appt.TechnicianID, appt.NeedID,
		appt.Slot.Start, appt.Slot.DurationMinutes,
		address, lat, lng,
		appt.Status, appt.Notes,
		appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateSlot(ctx context.Context, id uuid.UUID, slot TimeSlot) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_start = $2,
		    duration_minutes = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, slot.Start, slot.DurationMinutes)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancellation_reason = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, reason)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveOverlapping(ctx context.Context, technicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE technician_id = $1
		  AND status = ANY($2)
		  AND scheduled_start < $4
		  AND scheduled_start + make_interval(mins => duration_minutes) > $3
		  AND ($5::uuid IS NULL OR id <> $5)
		ORDER BY scheduled_start
		LIMIT 1
	`, technicianID, activeStatuses, start, end, exclude)
	return scanAppointment(row)
}

func (r *PgRepository) ListActive(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($1)
		ORDER BY technician_id, scheduled_start
	`, activeStatuses)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		ORDER BY scheduled_start DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE technician_id = $1
		ORDER BY scheduled_start DESC
		LIMIT $2 OFFSET $3
	`, technicianID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListUpcoming(ctx context.Context, technicianID uuid.UUID, from time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE technician_id = $1
		  AND status = ANY($2)
		  AND scheduled_start >= $3
		ORDER BY scheduled_start
		LIMIT $4
	`, technicianID, activeStatuses, from, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByMonth(ctx context.Context, technicianID uuid.UUID, year int, month time.Month) ([]Appointment, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE technician_id = $1
		  AND scheduled_start >= $2
		  AND scheduled_start < $3
		ORDER BY scheduled_start
	`, technicianID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) HasCompletedBetween(ctx context.Context, clientID, technicianID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE client_id = $1
			  AND technician_id = $2
			  AND status = 'completed'
		)
	`, clientID, technicianID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
