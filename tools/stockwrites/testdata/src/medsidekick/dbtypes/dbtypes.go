package dbtypes

type Medication struct {
	Name         string
	CurrentStock int
}

func (m *Medication) Clamp() {
	if m.CurrentStock < 0 {
		m.CurrentStock = 0
	}
}
