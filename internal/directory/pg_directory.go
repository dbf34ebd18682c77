package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, role
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (d *PgDirectory) UpdateStatistics(ctx context.Context, technicianID uuid.UUID, avgRating float64, totalRatings, satisfiedClients, unsatisfiedClients int) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO technician_profiles (technician_id, avg_rating, total_ratings, satisfied_clients, unsatisfied_clients, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (technician_id) DO UPDATE
		SET avg_rating = EXCLUDED.avg_rating,
		    total_ratings = EXCLUDED.total_ratings,
		    satisfied_clients = EXCLUDED.satisfied_clients,
		    unsatisfied_clients = EXCLUDED.unsatisfied_clients,
		    updated_at = now()
	`, technicianID, avgRating, totalRatings, satisfiedClients, unsatisfiedClients)
	if err != nil {
		return fmt.Errorf("update technician statistics: %w", err)
	}
	return nil
}
