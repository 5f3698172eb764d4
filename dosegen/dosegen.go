// Package dosegen expands medications and their meal-time slots into concrete
// dated dose instances.
//
// Generation is strictly additive: it only proposes instances that are
// missing, so it can be re-run after every launch and every edit.
package dosegen

import (
	"errors"
	"fmt"
	"time"

	"medsidekick/clock"
	"medsidekick/dbtypes"
	"medsidekick/mealtime"

	"github.com/google/uuid"
)

// DefaultDaysAhead is the rolling window filled on each pass.
const DefaultDaysAhead = 7

var ErrInvalidScheduleSlot = errors.New("slot key resolves to neither a registry entry nor a legacy default")

// UnresolvedSlot records a slot key that was skipped for one medication.
type UnresolvedSlot struct {
	MedicationID   string
	MedicationName string
	SlotKey        string
}

func (u UnresolvedSlot) Error() string {
	return fmt.Sprintf("medication %q (%s), slot key %q: %v", u.MedicationName, u.MedicationID, u.SlotKey, ErrInvalidScheduleSlot)
}

func (u UnresolvedSlot) Unwrap() error {
	return ErrInvalidScheduleSlot
}

type Result struct {
	// New instances, in generation order (medication, day, slot key).
	Doses []*dbtypes.DoseInstance

	// Unresolved slot keys, one entry per medication and key.
	Unresolved []UnresolvedSlot
}

type Generator struct {
	clock clock.Clock
	newID func() string
}

type GeneratorOpt func(*Generator)

// WithClock sets the clock used for CreatedAt/UpdatedAt stamps.
func WithClock(c clock.Clock) GeneratorOpt {
	return func(g *Generator) {
		g.clock = c
	}
}

func WithIDFunc(f func() string) GeneratorOpt {
	return func(g *Generator) {
		g.newID = f
	}
}

func New(opts ...GeneratorOpt) *Generator {
	g := &Generator{
		clock: clock.Real{},
		newID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

type calendarDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) calendarDay {
	y, m, d := t.Date()
	return calendarDay{y, m, d}
}

type occurrence struct {
	medicationID string
	slotKey      string
	day          calendarDay
}

// GenerateUpcoming returns the dose instances that should exist for the
// daysAhead calendar days starting at referenceDate's day, and do not yet
// exist in existing.
func (g *Generator) GenerateUpcoming(
	medications []*dbtypes.Medication,
	slots []*dbtypes.MealTimeSlot,
	existing []*dbtypes.DoseInstance,
	referenceDate time.Time,
	daysAhead int,
) *Result {
	result := &Result{}
	if daysAhead <= 0 {
		return result
	}

	registry := mealtime.NewRegistry(slots)
	loc := referenceDate.Location()
	firstDay := clock.StartOfDay(referenceDate)
	now := g.clock.Now()

	seen := map[occurrence]bool{}
	for _, d := range existing {
		if d == nil {
			continue
		}
		seen[occurrence{d.MedicationID, d.SlotKey, dayOf(d.ScheduledAt.In(loc))}] = true
	}

	for _, m := range medications {
		if m == nil || !m.IsActive || len(m.SlotKeys) == 0 {
			continue
		}
		if dbtypes.ParseFrequencyMode(string(m.FrequencyMode)) == dbtypes.FrequencyAsNeeded {
			continue
		}

		reported := map[string]bool{}
		for offset := 0; offset < daysAhead; offset++ {
			day := clock.AddDays(firstDay, offset)
			if !ScheduledOn(m, day) {
				continue
			}

			for _, key := range m.SlotKeys {
				hour, minute, ok := registry.Resolve(key)
				if !ok {
					if !reported[key] {
						reported[key] = true
						result.Unresolved = append(result.Unresolved, UnresolvedSlot{
							MedicationID:   m.ID,
							MedicationName: m.Name,
							SlotKey:        key,
						})
					}
					continue
				}

				occ := occurrence{m.ID, key, dayOf(day)}
				if seen[occ] {
					continue
				}
				seen[occ] = true

				result.Doses = append(result.Doses, &dbtypes.DoseInstance{
					ID:           g.newID(),
					MedicationID: m.ID,
					SlotKey:      key,
					ScheduledAt:  clock.At(day, hour, minute),
					Status:       dbtypes.DoseScheduled,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
		}
	}

	return result
}

// ScheduledOn reports whether m is due at all on day's calendar day: inside
// its active window, and matching its frequency mode.
func ScheduledOn(m *dbtypes.Medication, day time.Time) bool {
	if !InWindow(m, day) {
		return false
	}

	switch dbtypes.ParseFrequencyMode(string(m.FrequencyMode)) {
	case dbtypes.FrequencyAsNeeded:
		return false
	case dbtypes.FrequencyEveryOtherDay:
		return clock.DaysBetween(day, m.StartDate)%2 == 0
	case dbtypes.FrequencySpecificDays:
		if len(m.Weekdays) == 0 {
			return true
		}
		wd := day.Weekday()
		for _, w := range m.Weekdays {
			if w == wd {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// InWindow reports whether day falls within [StartDate, EndDate], compared by
// calendar day.  A nil EndDate is open-ended.
func InWindow(m *dbtypes.Medication, day time.Time) bool {
	if !m.StartDate.IsZero() && clock.DaysBetween(day, m.StartDate) > 0 {
		return false
	}
	if m.EndDate != nil && clock.DaysBetween(day, *m.EndDate) < 0 {
		return false
	}
	return true
}
