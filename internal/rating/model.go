package rating

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinScore = 1
	MaxScore = 5

	// Score thresholds for the satisfied/unsatisfied buckets.
	satisfiedMin   = 4
	unsatisfiedMax = 2
)

// Rating is one client's current score for one technician. At most one rating
// per (client, technician) pair exists at a time.
type Rating struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	TechnicianID uuid.UUID
	Score        int
	Comment      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the derived aggregate for a technician. It is always recomputed
// in full from the current ratings and overwritten as a whole, never patched
// field by field.
type Summary struct {
	TechnicianID     uuid.UUID
	AverageScore     float64
	TotalRatings     int
	SatisfiedCount   int
	UnsatisfiedCount int
}

func summarize(technicianID uuid.UUID, ratings []Rating) Summary {
	s := Summary{TechnicianID: technicianID}
	if len(ratings) == 0 {
		return s
	}

	total := 0
	for _, r := range ratings {
		total += r.Score
		if r.Score >= satisfiedMin {
			s.SatisfiedCount++
		}
		if r.Score <= unsatisfiedMax {
			s.UnsatisfiedCount++
		}
	}
	s.TotalRatings = len(ratings)
	s.AverageScore = float64(total) / float64(len(ratings))
	return s
}
