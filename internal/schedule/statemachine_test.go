package schedule

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusInProgress, StatusArrived,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

var allActions = []Action{
	ActionConfirm, ActionCancel, ActionStart, ActionArrive, ActionComplete, ActionNoShow,
}

var allRoles = []Role{RoleClient, RoleTechnician}

type legalMove struct {
	from   Status
	action Action
	role   Role
}

// legalMoves enumerates every permitted (state, action, role) combination.
// Everything outside this set must be rejected.
var legalMoves = map[legalMove]Status{
	{StatusPending, ActionConfirm, RoleTechnician}: StatusConfirmed,

	{StatusPending, ActionCancel, RoleClient}:       StatusCancelled,
	{StatusPending, ActionCancel, RoleTechnician}:   StatusCancelled,
	{StatusConfirmed, ActionCancel, RoleClient}:     StatusCancelled,
	{StatusConfirmed, ActionCancel, RoleTechnician}: StatusCancelled,

	{StatusConfirmed, ActionStart, RoleTechnician}:   StatusInProgress,
	{StatusInProgress, ActionArrive, RoleTechnician}: StatusArrived,
	{StatusArrived, ActionComplete, RoleTechnician}:  StatusCompleted,

	{StatusConfirmed, ActionNoShow, RoleTechnician}:  StatusNoShow,
	{StatusInProgress, ActionNoShow, RoleTechnician}: StatusNoShow,
	{StatusArrived, ActionNoShow, RoleTechnician}:    StatusNoShow,
}

func TestApplyCompleteness(t *testing.T) {
	for _, from := range allStatuses {
		for _, action := range allActions {
			for _, role := range allRoles {
				name := fmt.Sprintf("%s_%s_%s", from, action, role)
				t.Run(name, func(t *testing.T) {
					next, err := Apply(from, action, role)

					if want, ok := legalMoves[legalMove{from, action, role}]; ok {
						require.NoError(t, err)
						assert.Equal(t, want, next)
						return
					}

					var ite *InvalidTransitionError
					require.ErrorAs(t, err, &ite)
					assert.Equal(t, from, ite.From)
					assert.Equal(t, action, ite.Action)
					assert.Equal(t, role, ite.Role)
				})
			}
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		require.True(t, from.Terminal())
		for _, action := range allActions {
			for _, role := range allRoles {
				_, err := Apply(from, action, role)
				var ite *InvalidTransitionError
				require.ErrorAs(t, err, &ite, "terminal state %s must reject %s by %s", from, action, role)
			}
		}
	}
}

func TestActiveIsComplementOfTerminal(t *testing.T) {
	for _, s := range allStatuses {
		assert.NotEqual(t, s.Terminal(), s.Active(), "status %s", s)
	}
}

func TestApplyUnknownRole(t *testing.T) {
	_, err := Apply(StatusPending, ActionConfirm, Role("admin"))
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}
