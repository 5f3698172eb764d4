// Package agenda arranges one day's dose instances into meal-time groups for
// display.
package agenda

import (
	"sort"
	"time"

	"medsidekick/clock"
	"medsidekick/dbtypes"
	"medsidekick/lifecycle"
	"medsidekick/mealtime"
	"medsidekick/stock"
)

type Entry struct {
	Dose       *dbtypes.DoseInstance
	Medication *dbtypes.Medication

	// Status as displayed: a long-overdue scheduled dose shows as missed.
	Status dbtypes.DoseStatus

	Stock stock.Projection
}

// Group is every dose due at one meal time.
type Group struct {
	SlotKey   string
	Name      string
	Symbol    string
	SortOrder int

	// Wall-clock time of the earliest entry.
	Time time.Time

	Entries []*Entry
}

// Complete reports whether every dose in the group has been taken or skipped.
func (g *Group) Complete() bool {
	for _, e := range g.Entries {
		if e.Dose.Status == dbtypes.DoseScheduled {
			return false
		}
	}
	return true
}

// Pending returns the IDs of doses in the group still stored as scheduled.
func (g *Group) Pending() []string {
	var ids []string
	for _, e := range g.Entries {
		if e.Dose.Status == dbtypes.DoseScheduled {
			ids = append(ids, e.Dose.ID)
		}
	}
	return ids
}

type Day struct {
	Date   time.Time
	Groups []*Group
}

// Next returns the first group that still has doses to take, or nil.
func (d *Day) Next() *Group {
	for _, g := range d.Groups {
		if !g.Complete() {
			return g
		}
	}
	return nil
}

// Counts returns how many taken and total doses the day has.
func (d *Day) Counts() (taken, total int) {
	for _, g := range d.Groups {
		for _, e := range g.Entries {
			total++
			if e.Dose.Status == dbtypes.DoseTaken {
				taken++
			}
		}
	}
	return taken, total
}

// Today builds the agenda for now's calendar day.  Doses whose medication is
// missing are left out.
func Today(doses []*dbtypes.DoseInstance, meds []*dbtypes.Medication, slots []*dbtypes.MealTimeSlot, now time.Time) *Day {
	registry := mealtime.NewRegistry(slots)

	medsByID := make(map[string]*dbtypes.Medication, len(meds))
	for _, m := range meds {
		medsByID[m.ID] = m
	}

	day := &Day{Date: clock.StartOfDay(now)}
	groups := map[string]*Group{}
	for _, d := range doses {
		if !clock.SameDay(now, d.ScheduledAt) {
			continue
		}
		m, ok := medsByID[d.MedicationID]
		if !ok {
			continue
		}

		g, ok := groups[d.SlotKey]
		if !ok {
			g = &Group{
				SlotKey:   d.SlotKey,
				Name:      registry.DisplayName(d.SlotKey),
				Symbol:    registry.Symbol(d.SlotKey),
				SortOrder: registry.SortOrder(d.SlotKey),
			}
			groups[d.SlotKey] = g
			day.Groups = append(day.Groups, g)
		}

		g.Entries = append(g.Entries, &Entry{
			Dose:       d,
			Medication: m,
			Status:     lifecycle.EffectiveStatus(d.Status, d.ScheduledAt, now),
			Stock:      stock.Project(m),
		})
	}

	for _, g := range day.Groups {
		sort.SliceStable(g.Entries, func(i, j int) bool {
			a, b := g.Entries[i], g.Entries[j]
			if !a.Dose.ScheduledAt.Equal(b.Dose.ScheduledAt) {
				return a.Dose.ScheduledAt.Before(b.Dose.ScheduledAt)
			}
			return a.Medication.Name < b.Medication.Name
		})
		g.Time = g.Entries[0].Dose.ScheduledAt.In(now.Location())
	}

	sort.SliceStable(day.Groups, func(i, j int) bool {
		a, b := day.Groups[i], day.Groups[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.SlotKey < b.SlotKey
	})

	return day
}
