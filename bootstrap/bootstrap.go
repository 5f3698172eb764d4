// Package bootstrap brings a store to a usable state at startup: default
// meal times, optionally a starter medication list, then a regeneration pass.
//
// Run never fails.  Each step logs its error and the next one proceeds.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/dosesync"
	"medsidekick/mealtime"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Seed the starter medication list into an empty store.
	SeedMedications bool
}

// Report says what each step did.  A nil error field means the step
// succeeded or had nothing to do.
type Report struct {
	SlotsSeeded       int
	SlotErr           error
	MedicationsSeeded int
	MedicationErr     error
	Sync              *dosesync.Result
	SyncErr           error
}

// Run seeds defaults and runs one regeneration pass.  The two seed steps are
// independent and run concurrently; each is a no-op when its table already
// has records.
func Run(ctx context.Context, db *dblayer.DB, syncer *dosesync.Syncer, opts Options) *Report {
	report := &Report{}

	// A failed seed must not cancel the other one.
	var g errgroup.Group
	g.Go(func() error {
		report.SlotsSeeded, report.SlotErr = SeedSlots(ctx, db)
		if report.SlotErr != nil {
			slog.ErrorContext(ctx, "Failed to seed meal times", slog.Any("err", report.SlotErr))
			return fmt.Errorf("while seeding meal times: %w", report.SlotErr)
		}
		return nil
	})
	if opts.SeedMedications {
		g.Go(func() error {
			report.MedicationsSeeded, report.MedicationErr = SeedMedications(ctx, db)
			if report.MedicationErr != nil {
				slog.ErrorContext(ctx, "Failed to seed medications", slog.Any("err", report.MedicationErr))
				return fmt.Errorf("while seeding medications: %w", report.MedicationErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "Seeding incomplete; regenerating from what is stored", slog.Any("err", err))
	}

	report.Sync, report.SyncErr = syncer.Sync(ctx)

	slog.InfoContext(ctx, "Bootstrap complete",
		slog.Int("slots-seeded", report.SlotsSeeded),
		slog.Int("medications-seeded", report.MedicationsSeeded),
		slog.Bool("sync-ok", report.SyncErr == nil))
	return report
}

// SeedSlots inserts the default meal times if there are no slots at all.
func SeedSlots(ctx context.Context, db *dblayer.DB) (int, error) {
	seeded := 0
	err := db.Update(ctx, "seed-slots", func(txn *dblayer.Txn) error {
		seeded = 0

		existing, err := txn.Slots()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		for _, s := range mealtime.Defaults() {
			if err := txn.CreateSlot(s); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seeded, nil
}

// StarterMedications is the list SeedMedications inserts.
func StarterMedications() []*dbtypes.Medication {
	starter := func(name, dosage string, t dbtypes.MedicationType, slots ...string) *dbtypes.Medication {
		return &dbtypes.Medication{
			Name:                          name,
			DosageText:                    dosage,
			IsActive:                      true,
			MedicationType:                t,
			FrequencyMode:                 dbtypes.FrequencyDaily,
			SlotKeys:                      slots,
			CurrentStock:                  30,
			DoseQuantityPerAdministration: 1,
		}
	}

	return []*dbtypes.Medication{
		starter("Valsartan", "40 mg", dbtypes.MedicationTypeTablet, "breakfast"),
		starter("Aspirin (Low Dose)", "81 mg", dbtypes.MedicationTypeTablet, "breakfast"),
		starter("Atorvastatin", "20 mg", dbtypes.MedicationTypeTablet, "breakfast"),
		starter("Rivaroxaban", "2.5 mg", dbtypes.MedicationTypeTablet, "breakfast"),
		starter("Colchicine", "0.5 mg", dbtypes.MedicationTypeTablet, "breakfast"),
		starter("Citalopram", "20 mg", dbtypes.MedicationTypeTablet, "supper"),
		starter("Vitamin / Supplement", "500 mg", dbtypes.MedicationTypeSupplement, "breakfast", "supper"),
	}
}

// SeedMedications inserts StarterMedications if there are no medications at
// all.
func SeedMedications(ctx context.Context, db *dblayer.DB) (int, error) {
	seeded := 0
	err := db.Update(ctx, "seed-medications", func(txn *dblayer.Txn) error {
		seeded = 0

		existing, err := txn.Medications()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		for _, m := range StarterMedications() {
			if err := txn.CreateMedication(m); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seeded, nil
}
