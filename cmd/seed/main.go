package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmate/technician-scheduling/internal/db"
	"github.com/fixmate/technician-scheduling/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	technicians, err := seedUsers(context.Background(), pool, "technician", 50)
	if err != nil {
		log.Fatalf("seed technicians: %v", err)
	}
	clients, err := seedUsers(context.Background(), pool, "client", 2000)
	if err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, clients, technicians, 500); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, role string, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d %ss", count, role)

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, role, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, role)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("%ss seeded: %d/%d", role, end, count)
	}

	return ids, nil
}

// seedAppointments gives each technician a non-overlapping run of future
// slots so the seeded calendar already satisfies the non-overlap invariant.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, clients, technicians []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	nextStart := make(map[uuid.UUID]time.Time, len(technicians))
	dayStart := time.Now().Truncate(time.Hour).Add(24 * time.Hour)

	for i := 0; i < count; i++ {
		technicianID := technicians[gofakeit.Number(0, len(technicians)-1)]
		clientID := clients[gofakeit.Number(0, len(clients)-1)]

		start, ok := nextStart[technicianID]
		if !ok {
			start = dayStart
		}
		duration := gofakeit.Number(2, 8) * 30 // 60 to 240 minutes
		gap := time.Duration(gofakeit.Number(30, 180)) * time.Minute
		nextStart[technicianID] = start.Add(time.Duration(duration)*time.Minute + gap)

		status := schedule.StatusPending
		if gofakeit.Bool() {
			status = schedule.StatusConfirmed
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (
				id, client_id, technician_id, need_id,
				scheduled_start, duration_minutes,
				address, latitude, longitude,
				status, cancellation_reason, notes,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, NULL, $4, $5, $6, $7, $8, $9, NULL, $10, now(), now())
		`,
			uuid.New(), clientID, technicianID,
			start, duration,
			gofakeit.Address().Address, gofakeit.Latitude(), gofakeit.Longitude(),
			status, gofakeit.Sentence(8),
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
