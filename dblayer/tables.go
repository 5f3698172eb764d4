package dblayer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"medsidekick/dbtypes"
	"medsidekick/mealtime"
)

// Key prefixes that denote the different tables in the key-value store.
const (
	slotKeyPrefix       = "slot/"
	medicationKeyPrefix = "med/"
	doseKeyPrefix       = "dose/"
)

func slotKey(id string) []byte       { return []byte(slotKeyPrefix + id) }
func medicationKey(id string) []byte { return []byte(medicationKeyPrefix + id) }
func doseKey(id string) []byte       { return []byte(doseKeyPrefix + id) }

func (t *Txn) getJSON(key []byte, out any) (bool, error) {
	data, err := t.kv.get(key)
	if err == errKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, newError("decode", fmt.Errorf("while unmarshaling %q: %w", key, err))
	}
	return true, nil
}

func (t *Txn) putJSON(key []byte, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return newError("encode", fmt.Errorf("while marshaling %q: %w", key, err))
	}
	return t.kv.set(key, data)
}

func scanJSON[T any](t *Txn, prefix string) ([]*T, error) {
	var out []*T
	err := t.kv.scan([]byte(prefix), func(key, value []byte) error {
		rec := new(T)
		if err := json.Unmarshal(value, rec); err != nil {
			return newError("decode", fmt.Errorf("while unmarshaling %q: %w", key, err))
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Slots returns every meal-time slot, ordered by SortOrder.
func (t *Txn) Slots() ([]*dbtypes.MealTimeSlot, error) {
	slots, err := scanJSON[dbtypes.MealTimeSlot](t, slotKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("while listing meal times: %w", err)
	}
	return mealtime.NewRegistry(slots).Sorted(), nil
}

func (t *Txn) SlotByKey(key string) (*dbtypes.MealTimeSlot, bool, error) {
	slots, err := t.Slots()
	if err != nil {
		return nil, false, err
	}
	for _, s := range slots {
		if s.Key == key {
			return s, true, nil
		}
	}
	return nil, false, nil
}

// CreateSlot inserts a new slot, deriving its key from its name when the key
// is empty, and assigning its ID.  A negative SortOrder appends the slot after
// all existing ones.
func (t *Txn) CreateSlot(s *dbtypes.MealTimeSlot) error {
	if s.Key == "" {
		s.Key = mealtime.GenerateKey(s.Name)
	}
	if s.Key == "" {
		return ErrMealTimeKeyEmpty
	}
	if !mealtime.ValidTimeOfDay(s.Hour, s.Minute) {
		return ErrInvalidTimeOfDay
	}
	if s.Symbol == "" {
		s.Symbol = mealtime.DefaultSymbol
	}

	existing, err := t.Slots()
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Key == s.Key {
			return fmt.Errorf("%w: %q", ErrMealTimeKeyExists, s.Key)
		}
	}
	if s.SortOrder < 0 {
		s.SortOrder = mealtime.NewRegistry(existing).NextSortOrder()
	}

	s.ID = t.db.newID()
	if err := t.putJSON(slotKey(s.ID), s); err != nil {
		return fmt.Errorf("while creating meal time %q: %w", s.Key, err)
	}
	return nil
}

// UpdateSlot writes back an edited slot, looked up by key.  The key itself
// never changes.
func (t *Txn) UpdateSlot(s *dbtypes.MealTimeSlot) error {
	if !mealtime.ValidTimeOfDay(s.Hour, s.Minute) {
		return ErrInvalidTimeOfDay
	}

	current, ok, err := t.SlotByKey(s.Key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrMealTimeNotFound, s.Key)
	}

	s.ID = current.ID
	if s.Symbol == "" {
		s.Symbol = mealtime.DefaultSymbol
	}
	if err := t.putJSON(slotKey(s.ID), s); err != nil {
		return fmt.Errorf("while updating meal time %q: %w", s.Key, err)
	}
	return nil
}

// DeleteSlot removes the slot with the given key and strips the key from every
// medication that references it.  Dose instances keep their slot key.
//
// Returns the number of medications that were updated.
func (t *Txn) DeleteSlot(key string) (int, error) {
	current, ok, err := t.SlotByKey(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMealTimeNotFound, key)
	}

	meds, err := t.Medications()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, m := range meds {
		if !m.RemoveSlotKey(key) {
			continue
		}
		if err := t.UpdateMedication(m); err != nil {
			return 0, fmt.Errorf("while removing meal time %q from medication %s: %w", key, m.ID, err)
		}
		updated++
	}

	if err := t.kv.delete(slotKey(current.ID)); err != nil {
		return 0, fmt.Errorf("while deleting meal time %q: %w", key, err)
	}

	slog.InfoContext(t.ctx, "Deleted meal time", slog.String("key", key), slog.Int("medications-updated", updated))
	return updated, nil
}

// Medications returns every medication, ordered by name.
func (t *Txn) Medications() ([]*dbtypes.Medication, error) {
	meds, err := scanJSON[dbtypes.Medication](t, medicationKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("while listing medications: %w", err)
	}
	sort.SliceStable(meds, func(i, j int) bool {
		return strings.ToLower(meds[i].Name) < strings.ToLower(meds[j].Name)
	})
	return meds, nil
}

func (t *Txn) Medication(id string) (*dbtypes.Medication, bool, error) {
	m := &dbtypes.Medication{}
	ok, err := t.getJSON(medicationKey(id), m)
	if err != nil {
		return nil, false, fmt.Errorf("while retrieving medication %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	return m, true, nil
}

// MustMedication is Medication, with a missing record reported as
// ErrMedicationNotFound.
func (t *Txn) MustMedication(id string) (*dbtypes.Medication, error) {
	m, ok, err := t.Medication(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMedicationNotFound, id)
	}
	return m, nil
}

// CreateMedication fills in defaults, assigns an ID, and inserts m.
func (t *Txn) CreateMedication(m *dbtypes.Medication) error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMedicationNameEmpty
	}

	m.ApplyDefaults(t.now)
	m.ID = t.db.newID()
	if err := t.putJSON(medicationKey(m.ID), m); err != nil {
		return fmt.Errorf("while creating medication %q: %w", m.Name, err)
	}
	return nil
}

// UpdateMedication writes back m, refreshing UpdatedAt.
func (t *Txn) UpdateMedication(m *dbtypes.Medication) error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMedicationNameEmpty
	}

	var current dbtypes.Medication
	ok, err := t.getJSON(medicationKey(m.ID), &current)
	if err != nil {
		return fmt.Errorf("while retrieving medication %s: %w", m.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMedicationNotFound, m.ID)
	}

	if m.CurrentStock < 0 {
		m.CurrentStock = 0
	}
	if m.DoseQuantityPerAdministration < 1 {
		m.DoseQuantityPerAdministration = 1
	}
	if m.EstimatedDailyDosesIfAsNeeded < 1 {
		m.EstimatedDailyDosesIfAsNeeded = 1
	}
	m.SetSlotKeys(m.SlotKeys)
	m.CreatedAt = current.CreatedAt
	m.UpdatedAt = t.now

	if err := t.putJSON(medicationKey(m.ID), m); err != nil {
		return fmt.Errorf("while updating medication %s: %w", m.ID, err)
	}
	return nil
}

// DeleteMedication removes the medication and every dose instance it owns.
//
// Returns the number of dose instances deleted.
func (t *Txn) DeleteMedication(id string) (int, error) {
	if _, err := t.MustMedication(id); err != nil {
		return 0, err
	}

	owned, err := t.Doses(DoseFilter{MedicationID: id})
	if err != nil {
		return 0, err
	}
	for _, d := range owned {
		if err := t.kv.delete(doseKey(d.ID)); err != nil {
			return 0, fmt.Errorf("while deleting dose %s: %w", d.ID, err)
		}
	}

	if err := t.kv.delete(medicationKey(id)); err != nil {
		return 0, fmt.Errorf("while deleting medication %s: %w", id, err)
	}

	slog.InfoContext(t.ctx, "Deleted medication", slog.String("medication", id), slog.Int("doses-deleted", len(owned)))
	return len(owned), nil
}

// DoseFilter selects dose instances.  Zero-valued fields match everything.
type DoseFilter struct {
	MedicationID string
	SlotKey      string

	// Half-open range [From, To) on ScheduledAt.
	From time.Time
	To   time.Time

	Statuses []dbtypes.DoseStatus

	// Arbitrary extra predicate.
	Where func(*dbtypes.DoseInstance) bool
}

func (f DoseFilter) Match(d *dbtypes.DoseInstance) bool {
	if f.MedicationID != "" && d.MedicationID != f.MedicationID {
		return false
	}
	if f.SlotKey != "" && d.SlotKey != f.SlotKey {
		return false
	}
	if !f.From.IsZero() && d.ScheduledAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.ScheduledAt.Before(f.To) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if d.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Where != nil && !f.Where(d) {
		return false
	}
	return true
}

// Doses returns the matching dose instances ordered by ScheduledAt.
func (t *Txn) Doses(f DoseFilter) ([]*dbtypes.DoseInstance, error) {
	all, err := scanJSON[dbtypes.DoseInstance](t, doseKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("while listing doses: %w", err)
	}

	out := all[:0]
	for _, d := range all {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Txn) Dose(id string) (*dbtypes.DoseInstance, bool, error) {
	d := &dbtypes.DoseInstance{}
	ok, err := t.getJSON(doseKey(id), d)
	if err != nil {
		return nil, false, fmt.Errorf("while retrieving dose %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	return d, true, nil
}

func (t *Txn) MustDose(id string) (*dbtypes.DoseInstance, error) {
	d, ok, err := t.Dose(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDoseNotFound, id)
	}
	return d, nil
}

// doseDay identifies the single dose a medication may have at a meal time on
// one calendar day.
type doseDay struct {
	medicationID string
	slotKey      string
	year         int
	month        time.Month
	day          int
}

// doseDayOf judges the calendar day in loc, whatever zone the stored time was
// written in.
func doseDayOf(d *dbtypes.DoseInstance, loc *time.Location) doseDay {
	y, m, dd := d.ScheduledAt.In(loc).Date()
	return doseDay{medicationID: d.MedicationID, slotKey: d.SlotKey, year: y, month: m, day: dd}
}

// InsertDoses stores new dose instances, assigning IDs to any that lack one.
//
// It fails with ErrDuplicateDose, writing nothing, if any of them repeats the
// medication, slot key, and calendar day of a stored dose or of another dose
// in the batch.  Calendar days are judged in the transaction clock's zone,
// the same zone regeneration passes generate in.
func (t *Txn) InsertDoses(doses []*dbtypes.DoseInstance) error {
	existing, err := scanJSON[dbtypes.DoseInstance](t, doseKeyPrefix)
	if err != nil {
		return fmt.Errorf("while listing doses: %w", err)
	}
	loc := t.now.Location()
	seen := map[doseDay]bool{}
	for _, d := range existing {
		seen[doseDayOf(d, loc)] = true
	}
	for _, d := range doses {
		k := doseDayOf(d, loc)
		if seen[k] {
			return fmt.Errorf("%w: medication %s at %q on %s", ErrDuplicateDose, d.MedicationID, d.SlotKey, d.ScheduledAt.In(loc).Format(time.DateOnly))
		}
		seen[k] = true
	}

	for _, d := range doses {
		if d.ID == "" {
			d.ID = t.db.newID()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = t.now
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = t.now
		}
		if err := t.putJSON(doseKey(d.ID), d); err != nil {
			return fmt.Errorf("while inserting dose %s: %w", d.ID, err)
		}
	}
	return nil
}

// PutDose writes back a dose whose fields the caller has already updated.
func (t *Txn) PutDose(d *dbtypes.DoseInstance) error {
	if err := t.putJSON(doseKey(d.ID), d); err != nil {
		return fmt.Errorf("while updating dose %s: %w", d.ID, err)
	}
	return nil
}
