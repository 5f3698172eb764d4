package lifecycle

import "medsidekick/dbtypes"

func Take(m *dbtypes.Medication, n int) {
	m.CurrentStock -= n
	if m.CurrentStock < 0 {
		m.CurrentStock = 0
	}
}

func Undo(m *dbtypes.Medication) {
	m.CurrentStock++
}
