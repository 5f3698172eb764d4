package dbtypes

// Enums are stored by their string value.  Reading an unrecognized value never
// fails; it falls back to the default documented on each type.

type MedicationType string

const (
	MedicationTypeTablet     MedicationType = "tablet"
	MedicationTypeCapsule    MedicationType = "capsule"
	MedicationTypeLiquid     MedicationType = "liquid"
	MedicationTypeInjection  MedicationType = "injection"
	MedicationTypeInhaler    MedicationType = "inhaler"
	MedicationTypeTopical    MedicationType = "topical"
	MedicationTypePatch      MedicationType = "patch"
	MedicationTypeDrops      MedicationType = "drops"
	MedicationTypeSupplement MedicationType = "supplement"
)

var MedicationTypes = []MedicationType{
	MedicationTypeTablet,
	MedicationTypeCapsule,
	MedicationTypeLiquid,
	MedicationTypeInjection,
	MedicationTypeInhaler,
	MedicationTypeTopical,
	MedicationTypePatch,
	MedicationTypeDrops,
	MedicationTypeSupplement,
}

// ParseMedicationType falls back to tablet.
func ParseMedicationType(s string) MedicationType {
	for _, t := range MedicationTypes {
		if string(t) == s {
			return t
		}
	}
	return MedicationTypeTablet
}

func (t MedicationType) MarshalText() ([]byte, error) {
	return []byte(ParseMedicationType(string(t))), nil
}

func (t *MedicationType) UnmarshalText(text []byte) error {
	*t = ParseMedicationType(string(text))
	return nil
}

// DefaultStockUnit is the unit a new medication of this type counts its stock
// in.
func (t MedicationType) DefaultStockUnit() StockUnit {
	switch ParseMedicationType(string(t)) {
	case MedicationTypeCapsule:
		return StockUnitCapsules
	case MedicationTypeLiquid:
		return StockUnitMilliliters
	case MedicationTypeInjection:
		return StockUnitUnits
	case MedicationTypeInhaler:
		return StockUnitPuffs
	case MedicationTypeTopical:
		return StockUnitApplications
	case MedicationTypePatch:
		return StockUnitPatches
	case MedicationTypeDrops:
		return StockUnitDrops
	default:
		return StockUnitTablets
	}
}

type FrequencyMode string

const (
	FrequencyDaily         FrequencyMode = "daily"
	FrequencyEveryOtherDay FrequencyMode = "everyOtherDay"
	FrequencySpecificDays  FrequencyMode = "specificDays"
	FrequencyAsNeeded      FrequencyMode = "asNeeded"
)

var FrequencyModes = []FrequencyMode{
	FrequencyDaily,
	FrequencyEveryOtherDay,
	FrequencySpecificDays,
	FrequencyAsNeeded,
}

// ParseFrequencyMode falls back to daily.
func ParseFrequencyMode(s string) FrequencyMode {
	for _, f := range FrequencyModes {
		if string(f) == s {
			return f
		}
	}
	return FrequencyDaily
}

func (f FrequencyMode) MarshalText() ([]byte, error) {
	return []byte(ParseFrequencyMode(string(f))), nil
}

func (f *FrequencyMode) UnmarshalText(text []byte) error {
	*f = ParseFrequencyMode(string(text))
	return nil
}

func (f FrequencyMode) DisplayName() string {
	switch ParseFrequencyMode(string(f)) {
	case FrequencyEveryOtherDay:
		return "Every Other Day"
	case FrequencySpecificDays:
		return "Specific Days"
	case FrequencyAsNeeded:
		return "As Needed"
	default:
		return "Daily"
	}
}

type StockUnit string

const (
	StockUnitTablets      StockUnit = "tablets"
	StockUnitCapsules     StockUnit = "capsules"
	StockUnitMilliliters  StockUnit = "milliliters"
	StockUnitUnits        StockUnit = "units"
	StockUnitPuffs        StockUnit = "puffs"
	StockUnitApplications StockUnit = "applications"
	StockUnitPatches      StockUnit = "patches"
	StockUnitDrops        StockUnit = "drops"
)

var StockUnits = []StockUnit{
	StockUnitTablets,
	StockUnitCapsules,
	StockUnitMilliliters,
	StockUnitUnits,
	StockUnitPuffs,
	StockUnitApplications,
	StockUnitPatches,
	StockUnitDrops,
}

// ParseStockUnit falls back to tablets.
func ParseStockUnit(s string) StockUnit {
	for _, u := range StockUnits {
		if string(u) == s {
			return u
		}
	}
	return StockUnitTablets
}

func (u StockUnit) MarshalText() ([]byte, error) {
	return []byte(ParseStockUnit(string(u))), nil
}

func (u *StockUnit) UnmarshalText(text []byte) error {
	*u = ParseStockUnit(string(text))
	return nil
}

type DoseStatus string

const (
	DoseScheduled DoseStatus = "scheduled"
	DoseTaken     DoseStatus = "taken"
	DoseSkipped   DoseStatus = "skipped"

	// DoseMissed is only ever computed for display.  It is never stored.
	DoseMissed DoseStatus = "missed"
)

// ParseDoseStatus falls back to scheduled.  A stored "missed" also reads back
// as scheduled.
func ParseDoseStatus(s string) DoseStatus {
	switch DoseStatus(s) {
	case DoseTaken:
		return DoseTaken
	case DoseSkipped:
		return DoseSkipped
	default:
		return DoseScheduled
	}
}

func (s DoseStatus) MarshalText() ([]byte, error) {
	return []byte(ParseDoseStatus(string(s))), nil
}

func (s *DoseStatus) UnmarshalText(text []byte) error {
	*s = ParseDoseStatus(string(text))
	return nil
}

func (s DoseStatus) DisplayName() string {
	switch s {
	case DoseTaken:
		return "Taken"
	case DoseSkipped:
		return "Skipped"
	case DoseMissed:
		return "Missed"
	default:
		return "Scheduled"
	}
}
