package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ratingColumns = `id, client_id, technician_id, score, comment, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRating(row pgx.Row) (*Rating, error) {
	var r Rating
	err := row.Scan(
		&r.ID,
		&r.ClientID,
		&r.TechnicianID,
		&r.Score,
		&r.Comment,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Rating, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ratingColumns+`
		FROM ratings
		WHERE id = $1
	`, id)
	return scanRating(row)
}

func (r *PgRepository) GetByPair(ctx context.Context, clientID, technicianID uuid.UUID) (*Rating, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ratingColumns+`
		FROM ratings
		WHERE client_id = $1 AND technician_id = $2
	`, clientID, technicianID)
	return scanRating(row)
}

func (r *PgRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID) ([]Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ratingColumns+`
		FROM ratings
		WHERE technician_id = $1
		ORDER BY created_at
	`, technicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Rating
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, rt *Rating) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ratings (id, client_id, technician_id, score, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rt.ID, rt.ClientID, rt.TechnicianID, rt.Score, rt.Comment, rt.CreatedAt, rt.UpdatedAt)
	if err != nil {
		// The unique (client_id, technician_id) constraint enforces one
		// rating per pair even when two inserts race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, rt *Rating) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ratings
		SET score = $2,
		    comment = $3,
		    updated_at = now()
		WHERE id = $1
	`, rt.ID, rt.Score, rt.Comment)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRatingNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) (*Rating, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM ratings
		WHERE id = $1
		RETURNING `+ratingColumns+`
	`, id)
	return scanRating(row)
}

func (r *PgRepository) UpsertSummary(ctx context.Context, s Summary) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO technician_rating_summaries (technician_id, average_score, total_ratings, satisfied_count, unsatisfied_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (technician_id) DO UPDATE
		SET average_score = EXCLUDED.average_score,
		    total_ratings = EXCLUDED.total_ratings,
		    satisfied_count = EXCLUDED.satisfied_count,
		    unsatisfied_count = EXCLUDED.unsatisfied_count,
		    updated_at = now()
	`, s.TechnicianID, s.AverageScore, s.TotalRatings, s.SatisfiedCount, s.UnsatisfiedCount)
	if err != nil {
		return fmt.Errorf("upsert rating summary: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSummary(ctx context.Context, technicianID uuid.UUID) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT technician_id, average_score, total_ratings, satisfied_count, unsatisfied_count
		FROM technician_rating_summaries
		WHERE technician_id = $1
	`, technicianID).Scan(&s.TechnicianID, &s.AverageScore, &s.TotalRatings, &s.SatisfiedCount, &s.UnsatisfiedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lazily materialized: no row simply means no ratings yet.
			return &Summary{TechnicianID: technicianID}, nil
		}
		return nil, err
	}
	return &s, nil
}
