package report

import "medsidekick/dbtypes"

type shelf struct {
	CurrentStock int
}

func Restock(m *dbtypes.Medication, meds []*dbtypes.Medication) {
	m.CurrentStock = 30             // want `direct write to Medication.CurrentStock`
	(m).CurrentStock += 5           // want `direct write to Medication.CurrentStock`
	meds[0].CurrentStock--          // want `direct write to Medication.CurrentStock`
	m.Name, m.CurrentStock = "x", 1 // want `direct write to Medication.CurrentStock`
}

func Fine(m *dbtypes.Medication) int {
	fresh := &dbtypes.Medication{Name: "New", CurrentStock: 10}
	s := shelf{}
	s.CurrentStock = 4
	m.Name = "Renamed"
	return fresh.CurrentStock + m.CurrentStock + s.CurrentStock
}
