package main

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

func location() (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("while loading time zone %q: %w", timezone, err)
	}
	return loc, nil
}

// parseDate reads a YYYY-MM-DD calendar day as midnight in the configured
// zone.
func parseDate(s string) (time.Time, error) {
	loc, err := location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("while parsing date %q: %w", s, err)
	}
	return t, nil
}

// parseTimeOfDay reads "HH:MM" in 24-hour form.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("while parsing time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		out = append(out, wd)
	}
	return out, nil
}
