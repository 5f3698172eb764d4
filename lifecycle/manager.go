package lifecycle

import (
	"context"
	"fmt"
	"time"

	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/metrics"
)

// Manager applies lifecycle transitions to stored doses.  Each call is a
// single store transaction covering the dose and its medication.
//
// On a failed commit the returned records still carry the applied change; the
// caller decides whether to retry or reload.
type Manager struct {
	db *dblayer.DB
}

func NewManager(db *dblayer.DB) *Manager {
	return &Manager{db: db}
}

// Outcome is the state of a dose and its medication after a transition.
type Outcome struct {
	Dose       *dbtypes.DoseInstance
	Medication *dbtypes.Medication
	Changed    bool
}

type transition func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error)

// stockEffect says whether a transition writes the medication back.
type stockEffect bool

const (
	movesStock stockEffect = true
	noStock    stockEffect = false
)

func (mgr *Manager) apply(ctx context.Context, op string, doseID string, effect stockEffect, fn transition) (*Outcome, error) {
	out := &Outcome{}
	err := mgr.db.Update(ctx, op, func(txn *dblayer.Txn) error {
		*out = Outcome{}

		d, err := txn.MustDose(doseID)
		if err != nil {
			return err
		}
		out.Dose = d

		m, ok, err := txn.Medication(d.MedicationID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: dose %s references medication %s", ErrOrphanedDose, d.ID, d.MedicationID)
		}
		out.Medication = m

		changed, err := fn(d, m, txn.Now())
		if err != nil {
			return fmt.Errorf("dose %s: %w", d.ID, err)
		}
		out.Changed = changed
		if !changed {
			return nil
		}

		if err := txn.PutDose(d); err != nil {
			return err
		}
		if effect == noStock {
			return nil
		}
		return txn.UpdateMedication(m)
	})
	if err != nil {
		return out, err
	}

	if out.Changed {
		metrics.RecordTransition(ctx, op, 1)
	}
	return out, nil
}

// MarkTaken records the dose as taken at the given time.
func (mgr *Manager) MarkTaken(ctx context.Context, doseID string, at time.Time) (*Outcome, error) {
	return mgr.apply(ctx, "taken", doseID, movesStock, func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
		return MarkTaken(d, m, at, now)
	})
}

func (mgr *Manager) UndoTaken(ctx context.Context, doseID string) (*Outcome, error) {
	return mgr.apply(ctx, "undo", doseID, movesStock, UndoTaken)
}

func (mgr *Manager) MarkSkipped(ctx context.Context, doseID string) (*Outcome, error) {
	return mgr.apply(ctx, "skipped", doseID, noStock, func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
		return MarkSkipped(d, now)
	})
}

// Toggle undoes a taken dose, and takes any other.
func (mgr *Manager) Toggle(ctx context.Context, doseID string, at time.Time) (*Outcome, error) {
	return mgr.apply(ctx, "toggle", doseID, movesStock, func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
		return Toggle(d, m, at, now)
	})
}

// MarkAllTaken takes every dose in the group that is still scheduled.
// Resolved doses are left untouched.
//
// Returns the number of doses taken.
func (mgr *Manager) MarkAllTaken(ctx context.Context, doseIDs []string, at time.Time) (int, error) {
	return mgr.bulk(ctx, "taken", doseIDs, movesStock, func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
		return MarkTaken(d, m, at, now)
	})
}

// SkipAll skips every dose in the group that is still scheduled.
func (mgr *Manager) SkipAll(ctx context.Context, doseIDs []string) (int, error) {
	return mgr.bulk(ctx, "skipped", doseIDs, noStock, func(d *dbtypes.DoseInstance, m *dbtypes.Medication, now time.Time) (bool, error) {
		return MarkSkipped(d, now)
	})
}

func (mgr *Manager) bulk(ctx context.Context, op string, doseIDs []string, effect stockEffect, fn transition) (int, error) {
	applied := 0
	err := mgr.db.Update(ctx, "bulk-"+op, func(txn *dblayer.Txn) error {
		applied = 0

		// Several doses in one group can share a medication; its stock must
		// accumulate across them.
		meds := map[string]*dbtypes.Medication{}
		dirty := map[string]bool{}
		for _, id := range doseIDs {
			d, err := txn.MustDose(id)
			if err != nil {
				return err
			}
			if d.Status != dbtypes.DoseScheduled {
				continue
			}

			m, ok := meds[d.MedicationID]
			if !ok {
				var found bool
				var err error
				m, found, err = txn.Medication(d.MedicationID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: dose %s references medication %s", ErrOrphanedDose, d.ID, d.MedicationID)
				}
				meds[d.MedicationID] = m
			}

			changed, err := fn(d, m, txn.Now())
			if err != nil {
				return fmt.Errorf("dose %s: %w", d.ID, err)
			}
			if !changed {
				continue
			}
			if err := txn.PutDose(d); err != nil {
				return err
			}
			if effect == movesStock {
				dirty[m.ID] = true
			}
			applied++
		}

		for id := range dirty {
			if err := txn.UpdateMedication(meds[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return applied, err
	}

	metrics.RecordTransition(ctx, op, applied)
	return applied, nil
}

// SetStock overwrites a medication's stock count, floored at zero.
func (mgr *Manager) SetStock(ctx context.Context, medicationID string, count int) (*dbtypes.Medication, error) {
	var m *dbtypes.Medication
	err := mgr.db.Update(ctx, "set-stock", func(txn *dblayer.Txn) error {
		var err error
		m, err = txn.MustMedication(medicationID)
		if err != nil {
			return err
		}
		m.CurrentStock = max(count, 0)
		return txn.UpdateMedication(m)
	})
	return m, err
}

// AdjustStock adds delta (which may be negative) to a medication's stock,
// floored at zero.  As-needed medications are tracked this way.
func (mgr *Manager) AdjustStock(ctx context.Context, medicationID string, delta int) (*dbtypes.Medication, error) {
	var m *dbtypes.Medication
	err := mgr.db.Update(ctx, "adjust-stock", func(txn *dblayer.Txn) error {
		var err error
		m, err = txn.MustMedication(medicationID)
		if err != nil {
			return err
		}
		m.CurrentStock = max(m.CurrentStock+delta, 0)
		return txn.UpdateMedication(m)
	})
	return m, err
}
