package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConflictIndex tracks, per technician, the slots of appointments that are
// still active. It is a process-local cache over the appointment store: it
// holds nothing that cannot be rebuilt by replaying the active subset of the
// store, and within a lock-protected critical section the store query remains
// the authoritative check. Its job is to answer overlap queries without a
// round trip on the happy path.
type ConflictIndex struct {
	mu           sync.RWMutex
	byTechnician map[uuid.UUID][]indexEntry // sorted by Slot.Start
}

type indexEntry struct {
	AppointmentID uuid.UUID
	Slot          TimeSlot
}

func NewConflictIndex() *ConflictIndex {
	return &ConflictIndex{byTechnician: make(map[uuid.UUID][]indexEntry)}
}

// Insert registers an active slot for the technician.
func (ix *ConflictIndex) Insert(technicianID, appointmentID uuid.UUID, slot TimeSlot) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertLocked(technicianID, appointmentID, slot)
}

func (ix *ConflictIndex) insertLocked(technicianID, appointmentID uuid.UUID, slot TimeSlot) {
	entries := ix.byTechnician[technicianID]
	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Slot.Start.Before(slot.Start)
	})
	entries = append(entries, indexEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = indexEntry{AppointmentID: appointmentID, Slot: slot}
	ix.byTechnician[technicianID] = entries
}

// Remove drops the slot of the given appointment, if present. Removing an
// unknown appointment is a no-op so that terminal transitions stay idempotent.
func (ix *ConflictIndex) Remove(technicianID, appointmentID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(technicianID, appointmentID)
}

func (ix *ConflictIndex) removeLocked(technicianID, appointmentID uuid.UUID) {
	entries := ix.byTechnician[technicianID]
	for i, e := range entries {
		if e.AppointmentID == appointmentID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(ix.byTechnician, technicianID)
		return
	}
	ix.byTechnician[technicianID] = entries
}

// Replace swaps the slot of an appointment in one step, used by reschedule.
func (ix *ConflictIndex) Replace(technicianID, appointmentID uuid.UUID, slot TimeSlot) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(technicianID, appointmentID)
	ix.insertLocked(technicianID, appointmentID, slot)
}

// FirstConflict returns the id of an active appointment whose slot overlaps
// the candidate, skipping exclude (uuid.Nil excludes nothing). Entries are
// sorted by start, so the scan starts just below the candidate's end and walks
// left; because durations are capped at MaxDurationMinutes, entries starting
// more than that before the candidate cannot reach it and the walk stops there.
func (ix *ConflictIndex) FirstConflict(technicianID uuid.UUID, candidate TimeSlot, exclude uuid.UUID) (uuid.UUID, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.byTechnician[technicianID]
	end := candidate.End()
	horizon := candidate.Start.Add(-MaxDurationMinutes * time.Minute)

	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Slot.Start.Before(end)
	})
	for j := i - 1; j >= 0; j-- {
		e := entries[j]
		if e.Slot.Start.Before(horizon) {
			break
		}
		if e.AppointmentID == exclude {
			continue
		}
		if e.Slot.Overlaps(candidate) {
			return e.AppointmentID, true
		}
	}
	return uuid.Nil, false
}

// Rebuild replaces the entire index with the given active appointments,
// typically the result of replaying the store at startup.
func (ix *ConflictIndex) Rebuild(active []Appointment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.byTechnician = make(map[uuid.UUID][]indexEntry, len(ix.byTechnician))
	for _, a := range active {
		ix.insertLocked(a.TechnicianID, a.ID, a.Slot)
	}
}

// Size returns the number of indexed slots across all technicians.
func (ix *ConflictIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, entries := range ix.byTechnician {
		n += len(entries)
	}
	return n
}
