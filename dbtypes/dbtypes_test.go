package dbtypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestUnknownEnumsFallBack(t *testing.T) {
	in := `{
		"name": "Mystery",
		"medicationType": "hologram",
		"frequencyMode": "fortnightly",
		"stockUnit": "scoops"
	}`

	m := &Medication{}
	if err := json.Unmarshal([]byte(in), m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if m.MedicationType != MedicationTypeTablet {
		t.Errorf("MedicationType = %q; want %q", m.MedicationType, MedicationTypeTablet)
	}
	if m.FrequencyMode != FrequencyDaily {
		t.Errorf("FrequencyMode = %q; want %q", m.FrequencyMode, FrequencyDaily)
	}
	if m.StockUnit != StockUnitTablets {
		t.Errorf("StockUnit = %q; want %q", m.StockUnit, StockUnitTablets)
	}
}

func TestStoredMissedReadsAsScheduled(t *testing.T) {
	for _, stored := range []string{"missed", "", "bogus"} {
		d := &DoseInstance{}
		if err := json.Unmarshal([]byte(`{"status": "`+stored+`"}`), d); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if d.Status != DoseScheduled {
			t.Errorf("Stored status %q read back as %q; want %q", stored, d.Status, DoseScheduled)
		}
	}
}

func TestDefaultStockUnit(t *testing.T) {
	want := map[MedicationType]StockUnit{
		MedicationTypeTablet:     StockUnitTablets,
		MedicationTypeCapsule:    StockUnitCapsules,
		MedicationTypeLiquid:     StockUnitMilliliters,
		MedicationTypeInjection:  StockUnitUnits,
		MedicationTypeInhaler:    StockUnitPuffs,
		MedicationTypeTopical:    StockUnitApplications,
		MedicationTypePatch:      StockUnitPatches,
		MedicationTypeDrops:      StockUnitDrops,
		MedicationTypeSupplement: StockUnitTablets,
	}

	got := map[MedicationType]StockUnit{}
	for _, mt := range MedicationTypes {
		got[mt] = mt.DefaultStockUnit()
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad default stock units; diff (-got +want)\n%s", diff)
	}
}

func TestApplyDefaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	m := &Medication{
		Name:                          "Ventolin",
		MedicationType:                MedicationTypeInhaler,
		SlotKeys:                      []string{"supper", "breakfast", "supper", ""},
		CurrentStock:                  -3,
		DoseQuantityPerAdministration: 0,
	}
	m.ApplyDefaults(now)

	want := &Medication{
		Name:                          "Ventolin",
		MedicationType:                MedicationTypeInhaler,
		FrequencyMode:                 FrequencyDaily,
		SlotKeys:                      []string{"breakfast", "supper"},
		StartDate:                     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CurrentStock:                  0,
		DoseQuantityPerAdministration: 1,
		StockUnit:                     StockUnitPuffs,
		EstimatedDailyDosesIfAsNeeded: 1,
		CreatedAt:                     now,
		UpdatedAt:                     now,
	}
	if diff := cmp.Diff(m, want); diff != "" {
		t.Errorf("Bad defaults; diff (-got +want)\n%s", diff)
	}
}

func TestRemoveSlotKey(t *testing.T) {
	m := &Medication{}
	m.SetSlotKeys([]string{"lunch", "breakfast"})

	if !m.RemoveSlotKey("breakfast") {
		t.Errorf("RemoveSlotKey(breakfast) reported absent")
	}
	if m.RemoveSlotKey("breakfast") {
		t.Errorf("Second RemoveSlotKey(breakfast) reported present")
	}
	if diff := cmp.Diff(m.SlotKeys, []string{"lunch"}); diff != "" {
		t.Errorf("Bad slot keys; diff (-got +want)\n%s", diff)
	}
}

func TestDisplayTime(t *testing.T) {
	testCases := []struct {
		hour, minute int
		want         string
	}{
		{7, 0, "7:00 AM"},
		{18, 30, "6:30 PM"},
		{0, 5, "12:05 AM"},
		{12, 0, "12:00 PM"},
	}
	for _, tc := range testCases {
		s := &MealTimeSlot{Hour: tc.hour, Minute: tc.minute}
		if got := s.DisplayTime(); got != tc.want {
			t.Errorf("DisplayTime(%02d:%02d) = %q; want %q", tc.hour, tc.minute, got, tc.want)
		}
	}
}
