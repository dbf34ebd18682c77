package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictIndexInsertAndQuery(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	a := uuid.New()

	ix.Insert(tech, a, slotAt(14, 0, 60))

	got, ok := ix.FirstConflict(tech, slotAt(14, 30, 60), uuid.Nil)
	require.True(t, ok)
	assert.Equal(t, a, got)

	// Touching slot is free.
	_, ok = ix.FirstConflict(tech, slotAt(15, 0, 60), uuid.Nil)
	assert.False(t, ok)

	// Other technicians are unaffected.
	_, ok = ix.FirstConflict(uuid.New(), slotAt(14, 30, 60), uuid.Nil)
	assert.False(t, ok)
}

func TestConflictIndexExclude(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	a := uuid.New()
	b := uuid.New()

	ix.Insert(tech, a, slotAt(14, 0, 60))
	ix.Insert(tech, b, slotAt(16, 0, 60))

	// Moving a onto its own interval conflicts with nothing.
	_, ok := ix.FirstConflict(tech, slotAt(14, 30, 30), a)
	assert.False(t, ok)

	// Moving a onto b still conflicts.
	got, ok := ix.FirstConflict(tech, slotAt(16, 30, 60), a)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestConflictIndexRemoveFreesSlot(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	a := uuid.New()

	ix.Insert(tech, a, slotAt(14, 0, 60))
	ix.Remove(tech, a)

	_, ok := ix.FirstConflict(tech, slotAt(14, 0, 60), uuid.Nil)
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Size())

	// Removing again is a no-op.
	ix.Remove(tech, a)
}

func TestConflictIndexReplace(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	a := uuid.New()

	ix.Insert(tech, a, slotAt(14, 0, 60))
	ix.Replace(tech, a, slotAt(18, 0, 60))

	_, ok := ix.FirstConflict(tech, slotAt(14, 0, 60), uuid.Nil)
	assert.False(t, ok, "old slot must be freed")

	got, ok := ix.FirstConflict(tech, slotAt(18, 30, 60), uuid.Nil)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

// A maximum-length appointment starting well before the candidate must still
// be found, exercising the bounded leftward scan.
func TestConflictIndexLongEarlierSlot(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	long := uuid.New()

	ix.Insert(tech, long, slotAt(8, 0, MaxDurationMinutes)) // 08:00-16:00
	ix.Insert(tech, uuid.New(), slotAt(16, 0, 30))
	ix.Insert(tech, uuid.New(), slotAt(17, 0, 30))

	got, ok := ix.FirstConflict(tech, slotAt(15, 30, 15), uuid.Nil)
	require.True(t, ok)
	assert.Equal(t, long, got)
}

func TestConflictIndexRebuild(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()
	ix.Insert(tech, uuid.New(), slotAt(9, 0, 60))

	a := Appointment{ID: uuid.New(), TechnicianID: tech, Slot: slotAt(14, 0, 60), Status: StatusConfirmed}
	b := Appointment{ID: uuid.New(), TechnicianID: uuid.New(), Slot: slotAt(14, 0, 60), Status: StatusPending}
	ix.Rebuild([]Appointment{a, b})

	assert.Equal(t, 2, ix.Size())

	// Pre-rebuild contents are gone.
	_, ok := ix.FirstConflict(tech, slotAt(9, 0, 60), uuid.Nil)
	assert.False(t, ok)

	got, ok := ix.FirstConflict(tech, slotAt(14, 30, 30), uuid.Nil)
	require.True(t, ok)
	assert.Equal(t, a.ID, got)
}

func TestConflictIndexConcurrentAccess(t *testing.T) {
	ix := NewConflictIndex()
	tech := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := uuid.New()
			slot := TimeSlot{Start: slotAt(0, 0, 30).Start.Add(time.Duration(i) * 30 * time.Minute), DurationMinutes: 30}
			ix.Insert(tech, id, slot)
			ix.FirstConflict(tech, slot, uuid.Nil)
			ix.Remove(tech, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, ix.Size())
}
