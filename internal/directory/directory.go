// Package directory exposes the user-directory and technician-profile
// collaborators consumed by the scheduling core. User storage itself is owned
// elsewhere; only the lookups and the statistics push live here.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
)

type User struct {
	ID   uuid.UUID
	Name string
	Role Role
}

// Users resolves an actor's identity and role at transition time.
type Users interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// Profiles receives recomputed aggregate statistics for a technician.
type Profiles interface {
	UpdateStatistics(ctx context.Context, technicianID uuid.UUID, avgRating float64, totalRatings, satisfiedClients, unsatisfiedClients int) error
}
