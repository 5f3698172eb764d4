package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"medsidekick/agenda"
	"medsidekick/clock"
	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/lifecycle"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var todayDate string

// loadDay reads everything needed to build the agenda for the given day, or
// today when day is empty.
func loadDay(ctx context.Context, s *store, day string) (*agenda.Day, error) {
	now := s.clock.Now()
	if day != "" {
		d, err := parseDate(day)
		if err != nil {
			return nil, err
		}
		// Keep the current time of day so missed doses still show as missed.
		now = clock.At(d, now.Hour(), now.Minute())
	}

	var result *agenda.Day
	err := s.db.View(ctx, "agenda", func(txn *dblayer.Txn) error {
		start := clock.StartOfDay(now)
		doses, err := txn.Doses(dblayer.DoseFilter{From: start, To: clock.AddDays(start, 1)})
		if err != nil {
			return err
		}
		meds, err := txn.Medications()
		if err != nil {
			return err
		}
		slots, err := txn.Slots()
		if err != nil {
			return err
		}
		result = agenda.Today(doses, meds, slots, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var cmdToday = &cobra.Command{
	Use:   "today",
	Short: "Show the day's doses, grouped by meal time",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			day, err := loadDay(ctx, s, todayDate)
			if err != nil {
				return err
			}

			taken, total := day.Counts()
			fmt.Printf("%s: %d of %d taken\n", day.Date.Format("Monday, January 2"), taken, total)
			if next := day.Next(); next != nil {
				fmt.Printf("Next: %s at %s\n", next.Name, next.Time.Format("3:04 PM"))
			}
			fmt.Println()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, g := range day.Groups {
				mark := ""
				if g.Complete() {
					mark = " (done)"
				}
				fmt.Fprintf(tw, "%s %s%s\t\t\t\t\n", g.Time.Format("3:04 PM"), g.Name, mark)
				for _, e := range g.Entries {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", e.Dose.ID, e.Medication.Name, e.Medication.DosageText, e.Status.DisplayName(), e.Stock.Level)
				}
			}
			return tw.Flush()
		})
	},
}

var cmdDose = &cobra.Command{
	Use:   "dose [command]",
	Short: "Record taken and skipped doses",
}

var doseAt string

func takenAt(s *store) (time.Time, error) {
	if doseAt == "" {
		return s.clock.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, doseAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("while parsing --at %q: %w", doseAt, err)
	}
	return t, nil
}

func printOutcome(out *lifecycle.Outcome) {
	if !out.Changed {
		fmt.Printf("%s: %s already %s\n", out.Dose.ID, out.Medication.Name, out.Dose.Status.DisplayName())
		return
	}
	fmt.Printf("%s: %s %s, %d %s left\n", out.Dose.ID, out.Medication.Name, out.Dose.Status.DisplayName(), out.Medication.CurrentStock, out.Medication.StockUnit)
}

var cmdDoseTake = &cobra.Command{
	Use:  "take DOSE-ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			at, err := takenAt(s)
			if err != nil {
				return err
			}
			out, err := lifecycle.NewManager(s.db).MarkTaken(ctx, args[0], at)
			if err != nil {
				return fmt.Errorf("while marking dose taken: %w", err)
			}
			printOutcome(out)
			return nil
		})
	},
}

var cmdDoseUndo = &cobra.Command{
	Use:  "undo DOSE-ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			out, err := lifecycle.NewManager(s.db).UndoTaken(ctx, args[0])
			if err != nil {
				return fmt.Errorf("while undoing dose: %w", err)
			}
			printOutcome(out)
			return nil
		})
	},
}

var cmdDoseSkip = &cobra.Command{
	Use:  "skip DOSE-ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			out, err := lifecycle.NewManager(s.db).MarkSkipped(ctx, args[0])
			if err != nil {
				return fmt.Errorf("while skipping dose: %w", err)
			}
			printOutcome(out)
			return nil
		})
	},
}

var cmdDoseToggle = &cobra.Command{
	Use:   "toggle DOSE-ID",
	Short: "Undo a taken dose, or take any other",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			at, err := takenAt(s)
			if err != nil {
				return err
			}
			out, err := lifecycle.NewManager(s.db).Toggle(ctx, args[0], at)
			if err != nil {
				return fmt.Errorf("while toggling dose: %w", err)
			}
			printOutcome(out)
			return nil
		})
	},
}

// pendingInGroup returns the still-scheduled dose IDs of today's group for
// slotKey.
func pendingInGroup(ctx context.Context, s *store, slotKey string) ([]string, error) {
	day, err := loadDay(ctx, s, todayDate)
	if err != nil {
		return nil, err
	}
	for _, g := range day.Groups {
		if g.SlotKey == slotKey {
			return g.Pending(), nil
		}
	}
	return nil, fmt.Errorf("no doses at meal time %q on %s", slotKey, day.Date.Format(dateLayout))
}

var cmdDoseTakeAll = &cobra.Command{
	Use:   "take-all SLOT-KEY",
	Short: "Take every pending dose at one of the day's meal times",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			at, err := takenAt(s)
			if err != nil {
				return err
			}
			ids, err := pendingInGroup(ctx, s, args[0])
			if err != nil {
				return err
			}
			n, err := lifecycle.NewManager(s.db).MarkAllTaken(ctx, ids, at)
			if err != nil {
				return fmt.Errorf("while marking doses taken: %w", err)
			}
			glog.Infof("Took %d doses", n)
			fmt.Printf("%d %s\n", n, dbtypes.DoseTaken.DisplayName())
			return nil
		})
	},
}

var cmdDoseSkipAll = &cobra.Command{
	Use:   "skip-all SLOT-KEY",
	Short: "Skip every pending dose at one of the day's meal times",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			ids, err := pendingInGroup(ctx, s, args[0])
			if err != nil {
				return err
			}
			n, err := lifecycle.NewManager(s.db).SkipAll(ctx, ids)
			if err != nil {
				return fmt.Errorf("while skipping doses: %w", err)
			}
			glog.Infof("Skipped %d doses", n)
			fmt.Printf("%d %s\n", n, dbtypes.DoseSkipped.DisplayName())
			return nil
		})
	},
}

func init() {
	cmdToday.Flags().StringVar(&todayDate, "date", "", "Day to show, YYYY-MM-DD; defaults to today")

	cmdDoseTake.Flags().StringVar(&doseAt, "at", "", "When the dose was taken, RFC 3339; defaults to now")
	cmdDoseToggle.Flags().StringVar(&doseAt, "at", "", "When the dose was taken, if taking it; RFC 3339; defaults to now")
	cmdDoseTakeAll.Flags().StringVar(&doseAt, "at", "", "When the doses were taken, RFC 3339; defaults to now")
	cmdDoseTakeAll.Flags().StringVar(&todayDate, "date", "", "Day of the meal time, YYYY-MM-DD; defaults to today")
	cmdDoseSkipAll.Flags().StringVar(&todayDate, "date", "", "Day of the meal time, YYYY-MM-DD; defaults to today")
}
