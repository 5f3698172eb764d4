package dosegen

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"medsidekick/clock"
	"medsidekick/dbtypes"
	"medsidekick/mealtime"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var day0 = time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC) // A Monday.

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("dose-%d", n)
	}
}

func newTestGenerator() *Generator {
	return New(WithClock(clock.NewFixed(day0)), WithIDFunc(sequentialIDs()))
}

func daily(id string, slots ...string) *dbtypes.Medication {
	return &dbtypes.Medication{
		ID:                            id,
		Name:                          id,
		IsActive:                      true,
		FrequencyMode:                 dbtypes.FrequencyDaily,
		SlotKeys:                      slots,
		StartDate:                     clock.StartOfDay(day0),
		CurrentStock:                  10,
		DoseQuantityPerAdministration: 1,
	}
}

type occ struct {
	MedicationID string
	SlotKey      string
	ScheduledAt  time.Time
}

func occurrences(doses []*dbtypes.DoseInstance) []occ {
	var out []occ
	for _, d := range doses {
		out = append(out, occ{d.MedicationID, d.SlotKey, d.ScheduledAt})
	}
	return out
}

func TestMetforminScenario(t *testing.T) {
	g := newTestGenerator()
	meds := []*dbtypes.Medication{daily("metformin", "breakfast", "dinner")}

	result := g.GenerateUpcoming(meds, mealtime.Defaults(), nil, day0, 1)

	want := []*dbtypes.DoseInstance{
		{
			ID:           "dose-1",
			MedicationID: "metformin",
			SlotKey:      "breakfast",
			ScheduledAt:  time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC),
			Status:       dbtypes.DoseScheduled,
			CreatedAt:    day0,
			UpdatedAt:    day0,
		},
		{
			ID:           "dose-2",
			MedicationID: "metformin",
			SlotKey:      "dinner",
			ScheduledAt:  time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC),
			Status:       dbtypes.DoseScheduled,
			CreatedAt:    day0,
			UpdatedAt:    day0,
		},
	}
	if diff := cmp.Diff(result.Doses, want); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("Unexpected unresolved slots: %v", result.Unresolved)
	}
}

func TestIdempotent(t *testing.T) {
	g := newTestGenerator()
	meds := []*dbtypes.Medication{
		daily("a", "breakfast", "supper"),
		daily("b", "lunch"),
	}
	slots := mealtime.Defaults()

	first := g.GenerateUpcoming(meds, slots, nil, day0, 7)
	if got, want := len(first.Doses), 7*3; got != want {
		t.Fatalf("First pass generated %d doses; want %d", got, want)
	}

	second := g.GenerateUpcoming(meds, slots, first.Doses, day0, 7)
	if len(second.Doses) != 0 {
		t.Errorf("Second pass generated %d doses; want 0: %v", len(second.Doses), occurrences(second.Doses))
	}

	// A later reference date only adds the new days.
	third := g.GenerateUpcoming(meds, slots, first.Doses, clock.AddDays(day0, 2), 7)
	if got, want := len(third.Doses), 2*3; got != want {
		t.Errorf("Shifted pass generated %d doses; want %d", got, want)
	}
}

func TestUniqueByCalendarDay(t *testing.T) {
	g := newTestGenerator()
	meds := []*dbtypes.Medication{daily("a", "breakfast")}

	// An existing instance at an odd time still occupies the day.
	existing := []*dbtypes.DoseInstance{{
		ID:           "old",
		MedicationID: "a",
		SlotKey:      "breakfast",
		ScheduledAt:  time.Date(2024, 3, 4, 9, 41, 0, 0, time.UTC),
		Status:       dbtypes.DoseTaken,
	}}

	result := g.GenerateUpcoming(meds, mealtime.Defaults(), existing, day0, 2)
	want := []occ{{"a", "breakfast", time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)}}
	if diff := cmp.Diff(occurrences(result.Doses), want); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}
}

func TestDuplicateSlotKeysInBatch(t *testing.T) {
	g := newTestGenerator()
	m := daily("a", "breakfast", "breakfast")

	result := g.GenerateUpcoming([]*dbtypes.Medication{m}, mealtime.Defaults(), nil, day0, 1)
	if len(result.Doses) != 1 {
		t.Errorf("Generated %d doses; want 1: %v", len(result.Doses), occurrences(result.Doses))
	}
}

func TestScheduleWindow(t *testing.T) {
	g := newTestGenerator()

	startsTomorrow := daily("tomorrow", "breakfast")
	startsTomorrow.StartDate = clock.StartOfDay(clock.AddDays(day0, 1))

	endedYesterday := daily("yesterday", "breakfast")
	endedYesterday.StartDate = clock.StartOfDay(clock.AddDays(day0, -10))
	yesterday := clock.StartOfDay(clock.AddDays(day0, -1))
	endedYesterday.EndDate = &yesterday

	endsToday := daily("today", "breakfast")
	endOfToday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	endsToday.EndDate = &endOfToday

	meds := []*dbtypes.Medication{startsTomorrow, endedYesterday, endsToday}
	result := g.GenerateUpcoming(meds, mealtime.Defaults(), nil, day0, 3)

	want := []occ{
		{"tomorrow", "breakfast", time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)},
		{"tomorrow", "breakfast", time.Date(2024, 3, 6, 7, 0, 0, 0, time.UTC)},
		{"today", "breakfast", time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)},
	}
	if diff := cmp.Diff(occurrences(result.Doses), want); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}
}

func TestSkipsInactiveEmptyAndAsNeeded(t *testing.T) {
	g := newTestGenerator()

	inactive := daily("inactive", "breakfast")
	inactive.IsActive = false

	noSlots := daily("no-slots")

	asNeeded := daily("as-needed", "breakfast")
	asNeeded.FrequencyMode = dbtypes.FrequencyAsNeeded

	result := g.GenerateUpcoming([]*dbtypes.Medication{inactive, noSlots, asNeeded, nil}, mealtime.Defaults(), nil, day0, 7)
	if len(result.Doses) != 0 {
		t.Errorf("Generated %d doses; want 0: %v", len(result.Doses), occurrences(result.Doses))
	}
}

func TestUnresolvedSlot(t *testing.T) {
	g := newTestGenerator()
	m := daily("a", "elevenses", "morning")

	// No registry at all: "morning" falls back to the legacy table.
	result := g.GenerateUpcoming([]*dbtypes.Medication{m}, nil, nil, day0, 3)

	wantDoses := []occ{
		{"a", "morning", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"a", "morning", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"a", "morning", time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)},
	}
	if diff := cmp.Diff(occurrences(result.Doses), wantDoses); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}

	wantUnresolved := []UnresolvedSlot{{MedicationID: "a", MedicationName: "a", SlotKey: "elevenses"}}
	if diff := cmp.Diff(result.Unresolved, wantUnresolved); diff != "" {
		t.Errorf("Bad unresolved slots; diff (-got +want)\n%s", diff)
	}
	if !errors.Is(result.Unresolved[0], ErrInvalidScheduleSlot) {
		t.Errorf("UnresolvedSlot should match ErrInvalidScheduleSlot")
	}
}

func TestFrequencyModes(t *testing.T) {
	g := newTestGenerator()

	everyOther := daily("every-other", "breakfast")
	everyOther.FrequencyMode = dbtypes.FrequencyEveryOtherDay
	everyOther.StartDate = clock.StartOfDay(clock.AddDays(day0, -1))

	mwf := daily("mwf", "breakfast")
	mwf.FrequencyMode = dbtypes.FrequencySpecificDays
	mwf.Weekdays = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

	result := g.GenerateUpcoming([]*dbtypes.Medication{everyOther, mwf}, mealtime.Defaults(), nil, day0, 5)

	var got []string
	for _, d := range result.Doses {
		got = append(got, d.MedicationID+" "+d.ScheduledAt.Format("Mon 02"))
	}
	want := []string{
		"every-other Tue 05",
		"every-other Thu 07",
		"mwf Mon 04",
		"mwf Wed 06",
		"mwf Fri 08",
	}
	if diff := cmp.Diff(got, want, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}
}

func TestEveryOtherDayFromDistantStart(t *testing.T) {
	for _, start := range []time.Time{{}, time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)} {
		g := newTestGenerator()
		m := daily("every-other", "breakfast")
		m.FrequencyMode = dbtypes.FrequencyEveryOtherDay
		m.StartDate = start

		result := g.GenerateUpcoming([]*dbtypes.Medication{m}, mealtime.Defaults(), nil, day0, 6)
		if len(result.Doses) != 3 {
			t.Errorf("StartDate %v: generated %d doses over 6 days; want 3", start, len(result.Doses))
		}
	}
}

func TestNonPositiveDaysAhead(t *testing.T) {
	g := newTestGenerator()
	meds := []*dbtypes.Medication{daily("a", "breakfast")}
	for _, n := range []int{0, -3} {
		if result := g.GenerateUpcoming(meds, mealtime.Defaults(), nil, day0, n); len(result.Doses) != 0 {
			t.Errorf("daysAhead=%d generated %d doses; want 0", n, len(result.Doses))
		}
	}
}

func TestReferenceLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	g := newTestGenerator()
	meds := []*dbtypes.Medication{daily("a", "breakfast")}
	meds[0].StartDate = time.Time{}

	// 23:30 UTC on the 3rd is the morning of the 4th in Tokyo.
	ref := time.Date(2024, 3, 3, 23, 30, 0, 0, time.UTC).In(tokyo)
	result := g.GenerateUpcoming(meds, mealtime.Defaults(), nil, ref, 1)

	want := []occ{{"a", "breakfast", time.Date(2024, 3, 4, 7, 0, 0, 0, tokyo)}}
	if diff := cmp.Diff(occurrences(result.Doses), want); diff != "" {
		t.Errorf("Bad doses; diff (-got +want)\n%s", diff)
	}
}
