package schedule

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusArrived    Status = "arrived"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionArrive   Action = "arrive"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether s still occupies the technician's calendar.
func (s Status) Active() bool {
	return !s.Terminal()
}

type transitionKey struct {
	from   Status
	action Action
}

type transitionRule struct {
	to    Status
	roles map[Role]bool
}

func technicianOnly() map[Role]bool {
	return map[Role]bool{RoleTechnician: true}
}

func eitherParty() map[Role]bool {
	return map[Role]bool{RoleClient: true, RoleTechnician: true}
}

// transitions is the closed set of legal lifecycle moves. Anything absent from
// this table is rejected; there is no other way to change an appointment's
// status.
var transitions = map[transitionKey]transitionRule{
	{StatusPending, ActionConfirm}: {StatusConfirmed, technicianOnly()},

	{StatusPending, ActionCancel}:   {StatusCancelled, eitherParty()},
	{StatusConfirmed, ActionCancel}: {StatusCancelled, eitherParty()},

	{StatusConfirmed, ActionStart}:   {StatusInProgress, technicianOnly()},
	{StatusInProgress, ActionArrive}: {StatusArrived, technicianOnly()},
	{StatusArrived, ActionComplete}:  {StatusCompleted, technicianOnly()},

	{StatusConfirmed, ActionNoShow}:  {StatusNoShow, technicianOnly()},
	{StatusInProgress, ActionNoShow}: {StatusNoShow, technicianOnly()},
	{StatusArrived, ActionNoShow}:    {StatusNoShow, technicianOnly()},
}

// Apply resolves (current, action, role) against the transition table and
// returns the next status. It is a pure lookup: it never touches storage and
// has no side effects. Illegal combinations return *InvalidTransitionError
// carrying enough context for an accurate caller-facing message.
func Apply(current Status, action Action, role Role) (Status, error) {
	rule, ok := transitions[transitionKey{current, action}]
	if !ok || !rule.roles[role] {
		return "", &InvalidTransitionError{From: current, Action: action, Role: role}
	}
	return rule.to, nil
}
