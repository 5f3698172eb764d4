// Package dbtypes holds the records persisted by dblayer.
package dbtypes

import (
	"fmt"
	"sort"
	"time"
)

// MealTimeSlot is a named time-of-day anchor that medications are scheduled
// against.
//
// Medications refer to slots by Key, never by Name, so renaming a slot keeps
// every reference intact.
type MealTimeSlot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`

	Hour   int `json:"hour"`
	Minute int `json:"minute"`

	SortOrder int    `json:"sortOrder"`
	Symbol    string `json:"symbol"`
}

// DisplayTime renders the slot's time of day, e.g. "6:30 PM".
func (s *MealTimeSlot) DisplayTime() string {
	return time.Date(2000, 1, 1, s.Hour, s.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

type Medication struct {
	ID string `json:"id"`

	Name string `json:"name"`

	// Free-form, display only.  "500 mg", "2 puffs", etc.
	DosageText   string `json:"dosageText"`
	Instructions string `json:"instructions,omitempty"`

	IsActive bool `json:"isActive"`

	MedicationType MedicationType `json:"medicationType"`
	FrequencyMode  FrequencyMode  `json:"frequencyMode"`

	// Keys of the MealTimeSlots this medication is taken at.  Stored sorted
	// and de-duplicated; see SetSlotKeys.
	SlotKeys []string `json:"slotKeys"`

	// Only consulted for FrequencySpecificDays.  Empty means every day.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`

	// The current count of stock, in StockUnit.
	CurrentStock int `json:"currentStock"`

	// How much stock one administration consumes.
	DoseQuantityPerAdministration int `json:"doseQuantityPerAdministration"`

	StockUnit StockUnit `json:"stockUnit"`

	// Used to project consumption for FrequencyAsNeeded only.
	EstimatedDailyDosesIfAsNeeded int `json:"estimatedDailyDosesIfAsNeeded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetSlotKeys replaces the slot key set.  Order and duplicates in keys are not
// significant.
func (m *Medication) SetSlotKeys(keys []string) {
	seen := map[string]bool{}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	m.SlotKeys = out
}

func (m *Medication) HasSlotKey(key string) bool {
	for _, k := range m.SlotKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RemoveSlotKey reports whether key was present.
func (m *Medication) RemoveSlotKey(key string) bool {
	for i, k := range m.SlotKeys {
		if k == key {
			m.SlotKeys = append(m.SlotKeys[:i:i], m.SlotKeys[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyDefaults fills in the fields a freshly created medication must have.
func (m *Medication) ApplyDefaults(now time.Time) {
	m.MedicationType = ParseMedicationType(string(m.MedicationType))
	m.FrequencyMode = ParseFrequencyMode(string(m.FrequencyMode))
	if m.StockUnit == "" {
		m.StockUnit = m.MedicationType.DefaultStockUnit()
	}
	m.StockUnit = ParseStockUnit(string(m.StockUnit))
	if m.DoseQuantityPerAdministration < 1 {
		m.DoseQuantityPerAdministration = 1
	}
	if m.EstimatedDailyDosesIfAsNeeded < 1 {
		m.EstimatedDailyDosesIfAsNeeded = 1
	}
	if m.CurrentStock < 0 {
		m.CurrentStock = 0
	}
	if m.StartDate.IsZero() {
		y, mo, d := now.Date()
		m.StartDate = time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
	}
	m.SetSlotKeys(m.SlotKeys)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func (m *Medication) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.DosageText)
}

// DoseInstance is one concrete, dated occurrence of a medication being due.
type DoseInstance struct {
	ID           string `json:"id"`
	MedicationID string `json:"medicationID"`
	SlotKey      string `json:"slotKey"`

	ScheduledAt time.Time  `json:"scheduledAt"`
	Status      DoseStatus `json:"status"`

	// Set exactly when Status is DoseTaken.
	TakenAt *time.Time `json:"takenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
