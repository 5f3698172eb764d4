// Package mealtime implements the meal-time registry: the ordered catalog of
// named time-of-day slots that medications are scheduled against.
package mealtime

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"medsidekick/dbtypes"
)

const (
	DefaultSymbol = "fork.knife"

	// UnknownSortOrder places groups for keys with no registry entry last.
	UnknownSortOrder = 999
)

// GenerateKey derives a camelCase key from a display name, e.g. "Morning
// Snack" becomes "morningSnack".
func GenerateKey(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return strings.ToLower(strings.TrimSpace(name))
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(strings.ToLower(w[size:]))
	}
	return b.String()
}

type defaultSlot struct {
	name   string
	key    string
	hour   int
	minute int
	symbol string
}

var defaultSlots = []defaultSlot{
	{"Pre-Breakfast", "preBreakfast", 6, 30, "clock"},
	{"Breakfast", "breakfast", 7, 0, "sunrise"},
	{"Lunch", "lunch", 12, 0, "sun.max"},
	{"Dinner", "dinner", 18, 30, "sun.haze"},
	{"Supper", "supper", 20, 0, "moon.haze"},
	{"Bed Time", "bedTime", 22, 30, "moon.zzz"},
}

// Defaults returns the slots seeded into an empty registry.  IDs are left
// empty for the store to assign.
func Defaults() []*dbtypes.MealTimeSlot {
	out := make([]*dbtypes.MealTimeSlot, 0, len(defaultSlots))
	for i, d := range defaultSlots {
		out = append(out, &dbtypes.MealTimeSlot{
			Name:      d.name,
			Key:       d.key,
			Hour:      d.hour,
			Minute:    d.minute,
			SortOrder: i,
			Symbol:    d.symbol,
		})
	}
	return out
}

type legacyEntry struct {
	name   string
	hour   int
	minute int
}

// Built-in times for slot keys that predate the user-editable registry.  Used
// only when a key no longer resolves to a registry entry.
var legacy = map[string]legacyEntry{
	"preBreakfast": {"Pre-Breakfast", 6, 30},
	"breakfast":    {"Breakfast", 7, 0},
	"lunch":        {"Lunch", 12, 0},
	"dinner":       {"Dinner", 18, 30},
	"supper":       {"Supper", 20, 0},
	"bedTime":      {"Bed Time", 22, 30},
	"bedtime":      {"Bed Time", 22, 30},
	"morning":      {"Morning", 8, 0},
	"evening":      {"Evening", 20, 0},
}

func LegacyTime(key string) (hour, minute int, ok bool) {
	e, ok := legacy[key]
	if !ok {
		return 0, 0, false
	}
	return e.hour, e.minute, true
}

func LegacyName(key string) (string, bool) {
	e, ok := legacy[key]
	return e.name, ok
}

// ValidTimeOfDay reports whether hour:minute is a wall-clock time.
func ValidTimeOfDay(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

// Registry is a read-only index over a snapshot of the slot table.
type Registry struct {
	sorted []*dbtypes.MealTimeSlot
	byKey  map[string]*dbtypes.MealTimeSlot
}

func NewRegistry(slots []*dbtypes.MealTimeSlot) *Registry {
	r := &Registry{
		sorted: make([]*dbtypes.MealTimeSlot, 0, len(slots)),
		byKey:  make(map[string]*dbtypes.MealTimeSlot, len(slots)),
	}
	for _, s := range slots {
		if s == nil {
			continue
		}
		r.sorted = append(r.sorted, s)
		r.byKey[s.Key] = s
	}
	sort.SliceStable(r.sorted, func(i, j int) bool {
		if r.sorted[i].SortOrder != r.sorted[j].SortOrder {
			return r.sorted[i].SortOrder < r.sorted[j].SortOrder
		}
		return r.sorted[i].Key < r.sorted[j].Key
	})
	return r
}

func (r *Registry) Lookup(key string) (*dbtypes.MealTimeSlot, bool) {
	s, ok := r.byKey[key]
	return s, ok
}

// Resolve finds the time of day for key: the live registry first, then the
// legacy table.
func (r *Registry) Resolve(key string) (hour, minute int, ok bool) {
	if s, found := r.byKey[key]; found {
		return s.Hour, s.Minute, true
	}
	return LegacyTime(key)
}

// Sorted returns the slots in processing order.
func (r *Registry) Sorted() []*dbtypes.MealTimeSlot {
	return r.sorted
}

func (r *Registry) SortOrder(key string) int {
	if s, ok := r.byKey[key]; ok {
		return s.SortOrder
	}
	return UnknownSortOrder
}

// DisplayName tolerates dangling keys.
func (r *Registry) DisplayName(key string) string {
	if s, ok := r.byKey[key]; ok {
		return s.Name
	}
	if name, ok := LegacyName(key); ok {
		return name
	}
	return key
}

func (r *Registry) Symbol(key string) string {
	if s, ok := r.byKey[key]; ok && s.Symbol != "" {
		return s.Symbol
	}
	return DefaultSymbol
}

// SortKeys returns a copy of keys in display order.  Keys with no registry
// entry go last, ordered by key.
func (r *Registry) SortKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := r.SortOrder(out[i]), r.SortOrder(out[j])
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}

// NextSortOrder is the sort order for a slot appended to the end.
func (r *Registry) NextSortOrder() int {
	if len(r.sorted) == 0 {
		return 0
	}
	return r.sorted[len(r.sorted)-1].SortOrder + 1
}
