// Package lifecycle moves dose instances between scheduled, taken, and skipped,
// and applies the matching side effects to the owning medication's stock.
package lifecycle

import (
	"errors"
	"time"

	"medsidekick/dbtypes"
)

// MissedGrace is how long a scheduled dose may be overdue before it is shown
// as missed.
const MissedGrace = 60 * time.Minute

var (
	ErrDoseTaken    = errors.New("dose is taken; undo it before skipping")
	ErrOrphanedDose = errors.New("dose has no medication")
)

// EffectiveStatus is the status to display for a dose.  "Missed" is never
// stored: a dose still scheduled more than MissedGrace after its time is only
// shown as missed.
func EffectiveStatus(status dbtypes.DoseStatus, scheduledAt, now time.Time) dbtypes.DoseStatus {
	if status == dbtypes.DoseScheduled && now.After(scheduledAt.Add(MissedGrace)) {
		return dbtypes.DoseMissed
	}
	return status
}

// MarkTaken marks d as taken at the given time and consumes one dose of m's
// stock, never going below zero.  Doses that are already taken are left
// alone.  Skipped doses can still be taken.
//
// Returns whether anything changed.
func MarkTaken(d *dbtypes.DoseInstance, m *dbtypes.Medication, at, now time.Time) (bool, error) {
	if m == nil || m.ID != d.MedicationID {
		return false, ErrOrphanedDose
	}
	if d.Status == dbtypes.DoseTaken {
		return false, nil
	}

	takenAt := at
	d.Status = dbtypes.DoseTaken
	d.TakenAt = &takenAt
	d.UpdatedAt = now

	m.CurrentStock = max(m.CurrentStock-m.DoseQuantityPerAdministration, 0)
	m.UpdatedAt = now
	return true, nil
}

// UndoTaken returns a taken dose to scheduled and gives back one dose of
// stock.  The medication's current dose quantity is used, even if it changed
// since the dose was taken.
func UndoTaken(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
	if m == nil || m.ID != d.MedicationID {
		return false, ErrOrphanedDose
	}
	if d.Status != dbtypes.DoseTaken {
		return false, nil
	}

	d.Status = dbtypes.DoseScheduled
	d.TakenAt = nil
	d.UpdatedAt = now

	m.CurrentStock += m.DoseQuantityPerAdministration
	m.UpdatedAt = now
	return true, nil
}

// MarkSkipped skips a scheduled dose.  There is no stock effect, so a taken
// dose must be undone first.
func MarkSkipped(d *dbtypes.DoseInstance, now time.Time) (bool, error) {
	switch d.Status {
	case dbtypes.DoseSkipped:
		return false, nil
	case dbtypes.DoseTaken:
		return false, ErrDoseTaken
	}

	d.Status = dbtypes.DoseSkipped
	d.UpdatedAt = now
	return true, nil
}

// Toggle is the tap action: taken doses are undone, anything else is taken.
func Toggle(d *dbtypes.DoseInstance, m *dbtypes.Medication, at, now time.Time) (bool, error) {
	if d.Status == dbtypes.DoseTaken {
		return UndoTaken(d, m, now)
	}
	return MarkTaken(d, m, at, now)
}
