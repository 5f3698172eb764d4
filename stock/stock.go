// Package stock projects how long a medication's current stock will last.
package stock

import (
	"math"

	"medsidekick/dbtypes"
)

// Fixed policy thresholds, in days of supply.
const (
	GoodDays    = 14
	WarningDays = 7
)

// Unbounded is the days-of-supply reported when nothing is being consumed.
const Unbounded = math.MaxInt

type Level string

const (
	LevelGood     Level = "good"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelEmpty    Level = "empty"
)

// Severity orders levels from good (0) to empty (3).
func (l Level) Severity() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelCritical:
		return 2
	case LevelEmpty:
		return 3
	default:
		return 0
	}
}

func (l Level) SymbolName() string {
	switch l {
	case LevelWarning:
		return "exclamationmark.triangle.fill"
	case LevelCritical:
		return "exclamationmark.octagon.fill"
	case LevelEmpty:
		return "xmark.circle.fill"
	default:
		return "checkmark.circle.fill"
	}
}

// DailyConsumptionRate is the stock consumed per day under m's schedule.
func DailyConsumptionRate(m *dbtypes.Medication) float64 {
	perDose := float64(m.DoseQuantityPerAdministration)
	slots := max(len(m.SlotKeys), 1)

	switch dbtypes.ParseFrequencyMode(string(m.FrequencyMode)) {
	case dbtypes.FrequencyEveryOtherDay, dbtypes.FrequencySpecificDays:
		return float64(slots) * perDose / 2
	case dbtypes.FrequencyAsNeeded:
		return float64(max(m.EstimatedDailyDosesIfAsNeeded, 1)) * perDose
	default:
		return float64(slots) * perDose
	}
}

func DaysOfSupply(m *dbtypes.Medication) int {
	rate := DailyConsumptionRate(m)
	if rate <= 0 {
		return Unbounded
	}
	return int(math.Floor(float64(m.CurrentStock) / rate))
}

func LevelOf(m *dbtypes.Medication) Level {
	if m.CurrentStock <= 0 {
		return LevelEmpty
	}
	days := DaysOfSupply(m)
	switch {
	case days >= GoodDays:
		return LevelGood
	case days >= WarningDays:
		return LevelWarning
	default:
		return LevelCritical
	}
}

type Projection struct {
	DailyRate    float64
	DaysOfSupply int
	Level        Level
}

func Project(m *dbtypes.Medication) Projection {
	return Projection{
		DailyRate:    DailyConsumptionRate(m),
		DaysOfSupply: DaysOfSupply(m),
		Level:        LevelOf(m),
	}
}
