// simulate drives concurrent booking traffic at a running api-server and then
// audits the appointment store: if the engine is correct, no technician ever
// ends up with two overlapping active slots, no matter how hostile the
// interleaving.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmate/technician-scheduling/internal/config"
	"github.com/fixmate/technician-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	TechnicianLimit int
	ClientLimit     int
	PostgresDSN     string
}

type DataPool struct {
	Clients     []uuid.UUID
	Technicians []uuid.UUID

	mu       sync.RWMutex
	pending  []uuid.UUID // appointments eligible for confirm/cancel
	clientOf map[uuid.UUID]uuid.UUID
	techOf   map[uuid.UUID]uuid.UUID
}

func (dp *DataPool) AddAppointment(id, clientID, technicianID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, id)
	dp.clientOf[id] = clientID
	dp.techOf[id] = technicianID
}

func (dp *DataPool) TakeRandomAppointment() (id, clientID, technicianID uuid.UUID, ok bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	idx := rand.Intn(len(dp.pending))
	id = dp.pending[idx]
	dp.pending = append(dp.pending[:idx], dp.pending[idx+1:]...)
	return id, dp.clientOf[id], dp.techOf[id], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := SimConfig{
		APIBaseURL:      envOr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:        envDuration("SIM_DURATION", 30*time.Second),
		Workers:         envInt("SIM_WORKERS", 16),
		TechnicianLimit: envInt("SIM_TECHNICIANS", 5),
		ClientLimit:     envInt("SIM_CLIENTS", 200),
		PostgresDSN:     cfg.PostgresDSN,
	}

	ctx, cancel := context.WithTimeout(context.Background(), sim.Duration+2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, sim.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadDataPool(ctx, pool, sim)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d technicians and %d clients", len(dp.Technicians), len(dp.Clients))

	createMetrics := &OperationMetrics{}
	transitionMetrics := &OperationMetrics{}

	var wg sync.WaitGroup
	deadline := time.Now().Add(sim.Duration)
	client := &http.Client{Timeout: 10 * time.Second}

	log.Printf("running %d workers for %s against %s", sim.Workers, sim.Duration, sim.APIBaseURL)
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				// Four in five requests create; deliberately reuse a small
				// window of start times so overlap contention stays high.
				if rand.Intn(5) < 4 {
					doCreate(client, sim.APIBaseURL, dp, createMetrics)
				} else {
					doTransition(client, sim.APIBaseURL, dp, transitionMetrics)
				}
			}
		}()
	}
	wg.Wait()

	report("create", createMetrics)
	report("transition", transitionMetrics)

	violations, err := auditOverlaps(ctx, pool)
	if err != nil {
		log.Fatalf("audit overlaps: %v", err)
	}
	if violations > 0 {
		log.Fatalf("FAIL: %d overlapping active appointment pairs found", violations)
	}
	log.Println("PASS: no technician has overlapping active appointments")
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, sim SimConfig) (*DataPool, error) {
	dp := &DataPool{
		clientOf: make(map[uuid.UUID]uuid.UUID),
		techOf:   make(map[uuid.UUID]uuid.UUID),
	}

	rows, err := pool.Query(ctx, `SELECT id FROM users WHERE role = 'technician' LIMIT $1`, sim.TechnicianLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Technicians = append(dp.Technicians, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := pool.Query(ctx, `SELECT id FROM users WHERE role = 'client' LIMIT $1`, sim.ClientLimit)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var id uuid.UUID
		if err := crows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Clients = append(dp.Clients, id)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Technicians) == 0 || len(dp.Clients) == 0 {
		return nil, fmt.Errorf("no seeded users found, run cmd/seed first")
	}
	return dp, nil
}

func doCreate(client *http.Client, baseURL string, dp *DataPool, m *OperationMetrics) {
	technicianID := dp.Technicians[rand.Intn(len(dp.Technicians))]
	clientID := dp.Clients[rand.Intn(len(dp.Clients))]

	// Slots land on a 30-minute grid inside a two-day window, so many
	// requests target colliding intervals.
	start := time.Now().Truncate(time.Hour).
		Add(time.Duration(48+rand.Intn(96)) * 30 * time.Minute)

	body, _ := json.Marshal(map[string]any{
		"client_id":        clientID.String(),
		"technician_id":    technicianID.String(),
		"scheduled_start":  start.Format(time.RFC3339),
		"duration_minutes": 30 + 30*rand.Intn(4),
	})

	began := time.Now()
	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		m.Record(time.Since(began), false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID string `json:"id"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &created) == nil {
			if id, err := uuid.Parse(created.ID); err == nil {
				dp.AddAppointment(id, clientID, technicianID)
			}
		}
		m.Record(time.Since(began), true, false)
	case http.StatusConflict:
		m.Record(time.Since(began), false, true)
	default:
		m.Record(time.Since(began), false, false)
	}
}

func doTransition(client *http.Client, baseURL string, dp *DataPool, m *OperationMetrics) {
	id, clientID, technicianID, ok := dp.TakeRandomAppointment()
	if !ok {
		return
	}

	var (
		path string
		body map[string]any
	)
	if rand.Intn(2) == 0 {
		path = fmt.Sprintf("/appointments/%s/confirm", id)
		body = map[string]any{"actor_id": technicianID.String(), "actor_role": "technician"}
	} else {
		path = fmt.Sprintf("/appointments/%s/cancel", id)
		body = map[string]any{"actor_id": clientID.String(), "reason": "simulated cancellation"}
	}

	data, _ := json.Marshal(body)
	began := time.Now()
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		m.Record(time.Since(began), false, false)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	m.Record(time.Since(began), resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusConflict)
}

// auditOverlaps counts pairs of active appointments for the same technician
// with intersecting half-open intervals. Any non-zero result is a correctness
// failure of the engine.
func auditOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var violations int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.technician_id = b.technician_id
		 AND a.id < b.id
		WHERE a.status IN ('pending', 'confirmed', 'in_progress', 'arrived')
		  AND b.status IN ('pending', 'confirmed', 'in_progress', 'arrived')
		  AND a.scheduled_start < b.scheduled_start + make_interval(mins => b.duration_minutes)
		  AND b.scheduled_start < a.scheduled_start + make_interval(mins => a.duration_minutes)
	`).Scan(&violations)
	return violations, err
}

func report(name string, m *OperationMetrics) {
	avg, p50, p95 := m.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		name, m.Total, m.Success, m.Conflict, m.Error, avg, p50, p95)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
