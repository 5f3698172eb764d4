package clock

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("No zoneinfo: %v", err)
	}

	testCases := []struct {
		desc string
		a, b time.Time
		want int
	}{
		{
			desc: "same instant",
			a:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			want: 0,
		},
		{
			desc: "same day, different times",
			a:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC),
			want: 0,
		},
		{
			desc: "across leap day",
			a:    time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
			want: 2,
		},
		{
			desc: "backwards",
			a:    time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want: -4,
		},
		{
			desc: "across spring-forward",
			a:    time.Date(2024, 3, 9, 0, 0, 0, 0, ny),
			b:    time.Date(2024, 3, 11, 0, 0, 0, 0, ny),
			want: 2,
		},
		{
			desc: "centuries apart",
			a:    time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
			want: 730485,
		},
		{
			desc: "centuries backwards",
			a:    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			b:    time.Date(1700, 3, 1, 0, 0, 0, 0, time.UTC),
			want: -118342,
		},
		{
			desc: "b converted into a's zone",
			a:    time.Date(2024, 3, 1, 12, 0, 0, 0, ny),
			b:    time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC), // 22:00 on the 1st in New York
			want: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := DaysBetween(tc.a, tc.b); got != tc.want {
				t.Errorf("DaysBetween(%v, %v) = %d; want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAtAndStartOfDay(t *testing.T) {
	day := time.Date(2024, 3, 1, 15, 45, 12, 99, time.UTC)

	if got, want := StartOfDay(day), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("StartOfDay = %v; want %v", got, want)
	}
	if got, want := At(day, 7, 30), time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("At = %v; want %v", got, want)
	}
	if got, want := AddDays(day, 31), time.Date(2024, 4, 1, 15, 45, 12, 99, time.UTC); !got.Equal(want) {
		t.Errorf("AddDays = %v; want %v", got, want)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, a.Add(23*time.Hour)) {
		t.Errorf("SameDay should be true within the day")
	}
	if SameDay(a, a.Add(24*time.Hour)) {
		t.Errorf("SameDay should be false across midnight")
	}
}

func TestFixed(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	c.Advance(90 * time.Minute)
	if got, want := c.Now(), start.Add(90*time.Minute); !got.Equal(want) {
		t.Errorf("After Advance, Now() = %v; want %v", got, want)
	}
	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("After Set, Now() = %v; want %v", got, start)
	}
}
