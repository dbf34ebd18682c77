package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixmate/technician-scheduling/internal/directory"
	"github.com/fixmate/technician-scheduling/internal/locker"
	"github.com/fixmate/technician-scheduling/internal/logger"
)

// fakeRepo is an in-memory Repository with the same compare-and-swap
// semantics as the Postgres implementation.
type fakeRepo struct {
	mu         sync.Mutex
	appts      map[uuid.UUID]*Appointment
	events     []EventLog
	failInsert error

	// Runs after an UpdateSlot commit, outside the repo mutex. Set before any
	// concurrent use.
	updateSlotHook func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) Insert(_ context.Context, appt *Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdateSlot(_ context.Context, id uuid.UUID, slot TimeSlot) (*Appointment, error) {
	f.mu.Lock()
	a, ok := f.appts[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		f.mu.Unlock()
		return nil, ErrAppointmentNotFound
	}
	a.Slot = slot
	a.UpdatedAt = time.Now()
	cp := *a
	f.mu.Unlock()

	if f.updateSlotHook != nil {
		f.updateSlotHook()
	}
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.CancellationReason = reason
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) FindActiveOverlapping(_ context.Context, technicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.TechnicianID != technicianID || !a.Status.Active() {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.Slot.Start.Before(end) && start.Before(a.Slot.End()) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) ListActive(_ context.Context) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.Status.Active() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByClient(_ context.Context, clientID uuid.UUID, _, _ int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.ClientID == clientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByTechnician(_ context.Context, technicianID uuid.UUID, _, _ int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.TechnicianID == technicianID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUpcoming(_ context.Context, technicianID uuid.UUID, from time.Time, _ int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.TechnicianID == technicianID && a.Status.Active() && !a.Slot.Start.Before(from) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByMonth(_ context.Context, technicianID uuid.UUID, year int, month time.Month) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.TechnicianID == technicianID && a.Slot.Start.Year() == year && a.Slot.Start.Month() == month {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) HasCompletedBetween(_ context.Context, clientID, technicianID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.ClientID == clientID && a.TechnicianID == technicianID && a.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// setStatus and setSlot mutate the store directly, standing in for writes
// committed by another instance that this process's index never saw.
func (f *fakeRepo) setStatus(id uuid.UUID, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appts[id].Status = status
}

func (f *fakeRepo) setSlot(id uuid.UUID, slot TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appts[id].Slot = slot
}

type fakeUsers struct {
	mu    sync.Mutex
	roles map[uuid.UUID]directory.Role
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{roles: make(map[uuid.UUID]directory.Role)}
}

func (f *fakeUsers) set(id uuid.UUID, role directory.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = role
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &directory.User{ID: id, Role: role}, nil
}

type recordingListener struct {
	done chan uuid.UUID
}

func (l *recordingListener) AppointmentCompleted(_ context.Context, _, technicianID uuid.UUID) error {
	l.done <- technicianID
	return nil
}

// testClock is well before every slot the tests book.
var testClock = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine(repo Repository) *Engine {
	e := NewEngine(repo, locker.NewLocalLocker(), nil, logger.NewNop())
	e.now = func() time.Time { return testClock }
	return e
}

func futureSlot(hour, minute, duration int) TimeSlot {
	return TimeSlot{
		Start:           time.Date(2026, 6, 1, hour, minute, 0, 0, time.UTC),
		DurationMinutes: duration,
	}
}

func mustCreate(t *testing.T, e *Engine, clientID, technicianID uuid.UUID, slot TimeSlot) *Appointment {
	t.Helper()
	appt, err := e.Create(context.Background(), CreateInput{
		ClientID:     clientID,
		TechnicianID: technicianID,
		Slot:         slot,
	})
	require.NoError(t, err)
	return appt
}

func TestCreateSetsPendingAndTimestamps(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	appt := mustCreate(t, e, uuid.New(), uuid.New(), futureSlot(14, 0, 60))

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, testClock, appt.CreatedAt)
	assert.Equal(t, testClock, appt.UpdatedAt)
	assert.Nil(t, appt.CancellationReason)
}

func TestCreateRejectsPastStart(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	_, err := e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: uuid.New(),
		Slot:         TimeSlot{Start: testClock.Add(-time.Hour), DurationMinutes: 60},
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "scheduled_start", vErr.Field)
}

func TestCreateRejectsBadDuration(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	for _, duration := range []int{0, 14, 481} {
		_, err := e.Create(context.Background(), CreateInput{
			ClientID:     uuid.New(),
			TechnicianID: uuid.New(),
			Slot:         futureSlot(14, 0, duration),
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "duration %d", duration)
	}
}

func TestCreateConflictNamesExistingAppointment(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	tech := uuid.New()
	first := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	_, err := e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(14, 30, 60),
	})

	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, first.ID, cErr.ConflictingID)
}

func TestCreateDifferentTechniciansIndependent(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	slot := futureSlot(14, 0, 60)
	mustCreate(t, e, uuid.New(), uuid.New(), slot)
	mustCreate(t, e, uuid.New(), uuid.New(), slot)
}

// The no-double-booking property: many concurrent creates for overlapping
// slots of the same technician commit exactly once.
func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	tech := uuid.New()

	const n = 25
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// All slots intersect 14:00-15:00.
			_, err := e.Create(context.Background(), CreateInput{
				ClientID:     uuid.New(),
				TechnicianID: tech,
				Slot:         futureSlot(14, (i%3)*15, 60),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var cErr *ConflictError
		require.ErrorAs(t, err, &cErr)
	}
	assert.Equal(t, 1, successes)
}

func TestStoreFailureLeavesNoIndexEntry(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	tech := uuid.New()

	repo.failInsert = errors.New("connection reset")
	_, err := e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(14, 0, 60),
	})
	require.Error(t, err)

	// The failed create must not leave a phantom slot behind.
	repo.failInsert = nil
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
}

func TestCancelRequiresReason(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	appt := mustCreate(t, e, client, uuid.New(), futureSlot(14, 0, 60))

	_, err := e.Cancel(context.Background(), appt.ID, client, "   ")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cancellation_reason", vErr.Field)

	got, err := e.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCancelFreesSlotImmediately(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	tech := uuid.New()
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	cancelled, err := e.Cancel(context.Background(), appt.ID, client, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "plans changed", *cancelled.CancellationReason)

	// Same technician, same time succeeds now.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
}

func TestCancelByNonPartyForbidden(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	appt := mustCreate(t, e, uuid.New(), uuid.New(), futureSlot(14, 0, 60))

	_, err := e.Cancel(context.Background(), appt.ID, uuid.New(), "not my appointment")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestTransitionActorMustMatchRole(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	appt := mustCreate(t, e, client, uuid.New(), futureSlot(14, 0, 60))

	// The client cannot claim the technician role.
	_, err := e.Transition(context.Background(), appt.ID, client, RoleTechnician, ActionConfirm)
	require.ErrorIs(t, err, ErrForbidden)

	// The client's own role cannot confirm.
	_, err = e.Transition(context.Background(), appt.ID, client, RoleClient, ActionConfirm)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}

func TestHappyPathToCompletionNotifiesListener(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	listener := &recordingListener{done: make(chan uuid.UUID, 1)}
	e.SetCompletionListener(listener)

	tech := uuid.New()
	appt := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	ctx := context.Background()
	for _, action := range []Action{ActionConfirm, ActionStart, ActionArrive, ActionComplete} {
		var err error
		appt, err = e.Transition(ctx, appt.ID, tech, RoleTechnician, action)
		require.NoError(t, err, "action %s", action)
	}
	assert.Equal(t, StatusCompleted, appt.Status)

	select {
	case got := <-listener.done:
		assert.Equal(t, tech, got)
	case <-time.After(2 * time.Second):
		t.Fatal("completion listener was not notified")
	}

	// Completed slots are freed.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	tech := uuid.New()
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	_, err := e.Cancel(context.Background(), appt.ID, client, "changed my mind")
	require.NoError(t, err)

	for _, action := range []Action{ActionConfirm, ActionStart, ActionArrive, ActionComplete, ActionNoShow, ActionCancel} {
		actor, role := tech, RoleTechnician
		if action == ActionCancel {
			actor, role = client, RoleClient
		}
		var target error
		if action == ActionCancel {
			_, target = e.Cancel(context.Background(), appt.ID, actor, "again")
		} else {
			_, target = e.Transition(context.Background(), appt.ID, actor, role, action)
		}
		var ite *InvalidTransitionError
		require.ErrorAs(t, target, &ite, "action %s must fail on cancelled", action)
		assert.Equal(t, StatusCancelled, ite.From)
	}
}

func TestNoShowReachableFromActiveStates(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	tech := uuid.New()
	appt := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	ctx := context.Background()
	_, err := e.Transition(ctx, appt.ID, tech, RoleTechnician, ActionConfirm)
	require.NoError(t, err)

	updated, err := e.Transition(ctx, appt.ID, tech, RoleTechnician, ActionNoShow)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, updated.Status)

	// No-show frees the slot too.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
}

func TestRescheduleMovesSlot(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	tech := uuid.New()
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	moved, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(16, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, futureSlot(16, 0, 90), moved.Slot)

	// The old interval is free, the new one is taken.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
	_, err = e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(16, 30, 60),
	})
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, appt.ID, cErr.ConflictingID)
}

func TestRescheduleConflictLeavesOriginalUntouched(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	tech := uuid.New()
	blocker := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
	appt := mustCreate(t, e, client, tech, futureSlot(16, 0, 60))

	_, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(14, 30, 60))
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, blocker.ID, cErr.ConflictingID)

	got, err := e.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, futureSlot(16, 0, 60), got.Slot)
	assert.Equal(t, StatusPending, got.Status)

	// Its original interval is still held in the index.
	_, err = e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(16, 30, 30),
	})
	require.ErrorAs(t, err, &cErr)
}

func TestRescheduleOntoOwnIntervalAllowed(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	appt := mustCreate(t, e, client, uuid.New(), futureSlot(14, 0, 60))

	// Shrinking inside its own slot conflicts with nothing.
	moved, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(14, 15, 30))
	require.NoError(t, err)
	assert.Equal(t, futureSlot(14, 15, 30), moved.Slot)
}

func TestRescheduleOnlyWhilePendingOrConfirmed(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	client := uuid.New()
	tech := uuid.New()
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	ctx := context.Background()
	_, err := e.Transition(ctx, appt.ID, tech, RoleTechnician, ActionConfirm)
	require.NoError(t, err)
	_, err = e.Transition(ctx, appt.ID, tech, RoleTechnician, ActionStart)
	require.NoError(t, err)

	_, err = e.Reschedule(ctx, appt.ID, client, futureSlot(16, 0, 60))
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusInProgress, ite.From)
}

func TestRebuildIndexRestoresConflicts(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	tech := uuid.New()
	appt := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	// A fresh engine over the same store starts with an empty index; after
	// rebuilding it must reject the same interval again.
	restarted := newTestEngine(repo)
	require.NoError(t, restarted.RebuildIndex(context.Background()))

	_, err := restarted.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(14, 30, 30),
	})
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, appt.ID, cErr.ConflictingID)
}

// A cancel arriving while a reschedule is between its store commit and its
// index update must not leave the cancelled appointment's new slot indexed.
func TestCancelDuringRescheduleKeepsIndexConsistent(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	client := uuid.New()
	tech := uuid.New()
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	cancelDone := make(chan error, 1)
	repo.updateSlotHook = func() {
		repo.updateSlotHook = nil
		go func() {
			_, err := e.Cancel(context.Background(), appt.ID, client, "plans changed")
			cancelDone <- err
		}()
		// Give the cancel a chance to run; it must block on the appointment
		// lock until the reschedule has finished its index update.
		time.Sleep(50 * time.Millisecond)
	}

	_, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(16, 0, 60))
	require.NoError(t, err)
	require.NoError(t, <-cancelDone)

	got, err := e.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// Both the old and the new interval are free.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))
	mustCreate(t, e, uuid.New(), tech, futureSlot(16, 0, 60))
}

// An index entry for an appointment another instance has since cancelled must
// not block the freed interval; the stale entry is dropped on first contact.
func TestStaleIndexEntryDoesNotBlockFreedSlot(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	tech := uuid.New()
	appt := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	repo.setStatus(appt.ID, StatusCancelled)

	replacement := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 30, 60))
	assert.Equal(t, StatusPending, replacement.Status)

	// The stale entry is gone, not merely bypassed: only the replacement
	// occupies the index now.
	assert.Equal(t, 1, e.index.Size())
}

// An appointment moved by another instance still blocks its current interval
// but not the one this process's index remembers.
func TestStaleIndexEntryAfterRemoteMove(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	tech := uuid.New()
	appt := mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	repo.setSlot(appt.ID, futureSlot(18, 0, 60))

	// The remembered interval is free again.
	mustCreate(t, e, uuid.New(), tech, futureSlot(14, 0, 60))

	// The current interval conflicts, via the refreshed entry.
	_, err := e.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(18, 30, 30),
	})
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, appt.ID, cErr.ConflictingID)
}

func TestRescheduleChecksDirectoryRole(t *testing.T) {
	repo := newFakeRepo()
	users := newFakeUsers()
	e := NewEngine(repo, locker.NewLocalLocker(), users, logger.NewNop())
	e.now = func() time.Time { return testClock }

	client := uuid.New()
	tech := uuid.New()
	users.set(client, directory.RoleClient)
	users.set(tech, directory.RoleTechnician)
	appt := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))

	// The directory no longer backs the actor's party role.
	users.set(client, directory.RoleTechnician)
	_, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(16, 0, 60))
	require.ErrorIs(t, err, ErrForbidden)

	users.set(client, directory.RoleClient)
	moved, err := e.Reschedule(context.Background(), appt.ID, client, futureSlot(16, 0, 60))
	require.NoError(t, err)
	assert.Equal(t, futureSlot(16, 0, 60), moved.Slot)
}

// End-to-end lifecycle scenario.
func TestBookConfirmConflictCancelRebook(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	ctx := context.Background()
	client := uuid.New()
	tech := uuid.New()

	first := mustCreate(t, e, client, tech, futureSlot(14, 0, 60))
	assert.Equal(t, StatusPending, first.Status)

	confirmed, err := e.Transition(ctx, first.ID, tech, RoleTechnician, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	overlapping := CreateInput{
		ClientID:     uuid.New(),
		TechnicianID: tech,
		Slot:         futureSlot(14, 30, 60),
	}
	_, err = e.Create(ctx, overlapping)
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, first.ID, cErr.ConflictingID)

	cancelled, err := e.Cancel(ctx, first.ID, client, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	second, err := e.Create(ctx, overlapping)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, second.Status)
}
