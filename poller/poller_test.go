package poller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"medsidekick/clock"
	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/dosesync"
	"medsidekick/lifecycle"
	"medsidekick/stock"

	"github.com/google/go-cmp/cmp"
)

type fakeNotifier struct {
	batches [][]StockAlert

	// Number of upcoming Notify calls to fail.
	failures int
}

var errMailDown = errors.New("mail relay down")

func (f *fakeNotifier) Notify(ctx context.Context, alerts []StockAlert) error {
	if f.failures > 0 {
		f.failures--
		return errMailDown
	}
	f.batches = append(f.batches, alerts)
	return nil
}

func (f *fakeNotifier) levels() [][]stock.Level {
	var out [][]stock.Level
	for _, batch := range f.batches {
		var levels []stock.Level
		for _, a := range batch {
			levels = append(levels, a.Level)
		}
		out = append(out, levels)
	}
	return out
}

func TestStockAlerts(t *testing.T) {
	ctx := context.Background()
	db := dblayer.OpenInMemory(dblayer.WithClock(clock.NewFixed(time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC))))
	defer db.Close()

	m := &dbtypes.Medication{
		Name:                          "Warfarin",
		IsActive:                      true,
		SlotKeys:                      []string{"breakfast"},
		CurrentStock:                  30,
		DoseQuantityPerAdministration: 1,
	}
	err := db.Update(ctx, "test", func(txn *dblayer.Txn) error {
		return txn.CreateMedication(m)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	notifier := &fakeNotifier{}
	p := New(dosesync.New(db), db, notifier)
	mgr := lifecycle.NewManager(db)

	steps := []struct {
		desc  string
		stock int
	}{
		{"good", 30},
		{"warning", 10},
		{"still warning", 8},
		{"critical", 3},
		{"empty", 0},
		{"restocked", 30},
		{"warning again", 7},
	}
	for _, s := range steps {
		if _, err := mgr.SetStock(ctx, m.ID, s.stock); err != nil {
			t.Fatalf("%s: Unexpected error: %v", s.desc, err)
		}
		if err := p.Pass(ctx); err != nil {
			t.Fatalf("%s: Unexpected error: %v", s.desc, err)
		}
	}

	want := [][]stock.Level{
		{stock.LevelWarning},
		{stock.LevelCritical},
		{stock.LevelEmpty},
		{stock.LevelWarning},
	}
	if diff := cmp.Diff(notifier.levels(), want); diff != "" {
		t.Errorf("Bad alerts; diff (-got +want)\n%s", diff)
	}

	first := notifier.batches[0][0]
	if first.Name != "Warfarin" || first.CurrentStock != 10 || first.DaysOfSupply != 10 || first.Unit != dbtypes.StockUnitTablets {
		t.Errorf("Bad alert %+v", first)
	}
}

func TestFailedAlertIsRetried(t *testing.T) {
	ctx := context.Background()
	db := dblayer.OpenInMemory(dblayer.WithClock(clock.NewFixed(time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC))))
	defer db.Close()

	err := db.Update(ctx, "test", func(txn *dblayer.Txn) error {
		return txn.CreateMedication(&dbtypes.Medication{
			Name:         "Warfarin",
			IsActive:     true,
			SlotKeys:     []string{"breakfast"},
			CurrentStock: 0,
		})
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	notifier := &fakeNotifier{failures: 1}
	p := New(dosesync.New(db), db, notifier)

	if err := p.Pass(ctx); !errors.Is(err, errMailDown) {
		t.Fatalf("First pass: err = %v; want %v", err, errMailDown)
	}
	for i := 0; i < 2; i++ {
		if err := p.Pass(ctx); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	// Delivered once on the retry, then not repeated.
	if diff := cmp.Diff(notifier.levels(), [][]stock.Level{{stock.LevelEmpty}}); diff != "" {
		t.Errorf("Bad alerts; diff (-got +want)\n%s", diff)
	}
}

func TestInactiveMedicationsAreIgnored(t *testing.T) {
	ctx := context.Background()
	db := dblayer.OpenInMemory()
	defer db.Close()

	err := db.Update(ctx, "test", func(txn *dblayer.Txn) error {
		return txn.CreateMedication(&dbtypes.Medication{Name: "Paused", SlotKeys: []string{"breakfast"}})
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	notifier := &fakeNotifier{}
	if err := New(dosesync.New(db), db, notifier).Pass(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(notifier.batches) != 0 {
		t.Errorf("Got alerts %v for an inactive medication", notifier.batches)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db := dblayer.OpenInMemory()
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := New(dosesync.New(db), db, &fakeNotifier{}, WithRecheckPeriod(time.Millisecond))

	done := make(chan error)
	go func() {
		done <- p.Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v; want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRenderAlerts(t *testing.T) {
	text, err := RenderAlerts([]StockAlert{
		{Name: "Warfarin", DosageText: "5 mg", Unit: dbtypes.StockUnitTablets, CurrentStock: 3, DaysOfSupply: 3, Level: stock.LevelCritical},
		{Name: "Ventolin", DosageText: "100 mcg", Unit: dbtypes.StockUnitPuffs, CurrentStock: 0, Level: stock.LevelEmpty},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, want := range []string{
		"The following medications are running low:",
		"* Warfarin (5 mg): critical.  3 tablets left, about 3 days.",
		"* Ventolin (100 mcg): empty.  0 puffs left.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Rendered alert %q does not contain %q", text, want)
		}
	}
}
