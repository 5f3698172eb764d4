package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/lifecycle"
	"medsidekick/mealtime"
	"medsidekick/stock"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cmdMeds = &cobra.Command{
	Use:   "meds [command]",
	Short: "Manage medications",
}

var cmdMedsList = &cobra.Command{
	Use: "list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			var meds []*dbtypes.Medication
			var registry *mealtime.Registry
			err := s.db.View(ctx, "list-medications", func(txn *dblayer.Txn) error {
				var err error
				meds, err = txn.Medications()
				if err != nil {
					return err
				}
				slots, err := txn.Slots()
				if err != nil {
					return err
				}
				registry = mealtime.NewRegistry(slots)
				return nil
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDOSAGE\tFREQUENCY\tSLOTS\tSTOCK\tDAYS\tLEVEL\tACTIVE")
			for _, m := range meds {
				var slotNames []string
				for _, k := range registry.SortKeys(m.SlotKeys) {
					slotNames = append(slotNames, registry.DisplayName(k))
				}
				proj := stock.Project(m)
				days := "-"
				if proj.DaysOfSupply != stock.Unbounded {
					days = fmt.Sprint(proj.DaysOfSupply)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d %s\t%s\t%s\t%t\n",
					m.ID, m.Name, m.DosageText, m.FrequencyMode.DisplayName(), strings.Join(slotNames, ", "),
					m.CurrentStock, m.StockUnit, days, proj.Level, m.IsActive)
			}
			return tw.Flush()
		})
	},
}

// medFlags holds the flags shared by add and edit.
type medFlags struct {
	name           string
	dosage         string
	instructions   string
	medType        string
	frequency      string
	slots          []string
	weekdays       []string
	start          string
	end            string
	doseQuantity   int
	unit           string
	estimatedDaily int
	active         bool
}

func (f *medFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Display name")
	fs.StringVar(&f.dosage, "dosage", "", "Free-form dosage, e.g. \"500 mg\"")
	fs.StringVar(&f.instructions, "instructions", "", "Free-form instructions")
	fs.StringVar(&f.medType, "type", string(dbtypes.MedicationTypeTablet), "Medication type")
	fs.StringVar(&f.frequency, "frequency", string(dbtypes.FrequencyDaily), "daily, everyOtherDay, specificDays, or asNeeded")
	fs.StringSliceVar(&f.slots, "slots", nil, "Meal time keys")
	fs.StringSliceVar(&f.weekdays, "weekdays", nil, "Weekdays for specificDays, e.g. mon,wed,fri")
	fs.StringVar(&f.start, "start", "", "Start date, YYYY-MM-DD; defaults to today")
	fs.StringVar(&f.end, "end", "", "End date, YYYY-MM-DD; empty is open-ended")
	fs.IntVar(&f.doseQuantity, "dose-quantity", 1, "Stock consumed per administration")
	fs.StringVar(&f.unit, "unit", "", "Stock unit; defaults from the type")
	fs.IntVar(&f.estimatedDaily, "estimated-daily", 1, "Estimated doses per day, for asNeeded")
	fs.BoolVar(&f.active, "active", true, "Whether the medication is scheduled")
}

// apply copies every flag that was set on the command line into m.  When all
// is true, unset flags are applied too, with their defaults.
func (f *medFlags) apply(fs *pflag.FlagSet, m *dbtypes.Medication, all bool) error {
	set := func(name string) bool {
		return all || fs.Changed(name)
	}

	if set("name") {
		m.Name = f.name
	}
	if set("dosage") {
		m.DosageText = f.dosage
	}
	if set("instructions") {
		m.Instructions = f.instructions
	}
	if set("type") {
		m.MedicationType = dbtypes.ParseMedicationType(f.medType)
	}
	if set("frequency") {
		m.FrequencyMode = dbtypes.ParseFrequencyMode(f.frequency)
	}
	if set("slots") {
		m.SetSlotKeys(f.slots)
	}
	if set("weekdays") {
		wds, err := parseWeekdays(f.weekdays)
		if err != nil {
			return err
		}
		m.Weekdays = wds
	}
	if set("start") && f.start != "" {
		t, err := parseDate(f.start)
		if err != nil {
			return err
		}
		m.StartDate = t
	}
	if set("end") {
		m.EndDate = nil
		if f.end != "" {
			t, err := parseDate(f.end)
			if err != nil {
				return err
			}
			m.EndDate = &t
		}
	}
	if set("dose-quantity") {
		m.DoseQuantityPerAdministration = f.doseQuantity
	}
	if set("unit") && f.unit != "" {
		m.StockUnit = dbtypes.ParseStockUnit(f.unit)
	}
	if set("estimated-daily") {
		m.EstimatedDailyDosesIfAsNeeded = f.estimatedDaily
	}
	if set("active") {
		m.IsActive = f.active
	}
	return nil
}

var (
	medsAddFlags  medFlags
	medsAddStock  int
	medsEditFlags medFlags
)

var cmdMedsAdd = &cobra.Command{
	Use: "add",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			var created *dbtypes.Medication
			err := s.db.Update(ctx, "create-medication", func(txn *dblayer.Txn) error {
				// Later stock changes go through "meds stock".
				m := &dbtypes.Medication{CurrentStock: medsAddStock}
				if err := medsAddFlags.apply(cmd.Flags(), m, true); err != nil {
					return err
				}
				if err := txn.CreateMedication(m); err != nil {
					return err
				}
				created = m
				return nil
			})
			if err != nil {
				return fmt.Errorf("while creating medication: %w", err)
			}

			glog.Infof("Created medication %s: %v", created.ID, created)
			fmt.Println(created.ID)
			return s.resync(ctx)
		})
	},
}

var cmdMedsEdit = &cobra.Command{
	Use:  "edit ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			err := s.db.Update(ctx, "update-medication", func(txn *dblayer.Txn) error {
				m, err := txn.MustMedication(args[0])
				if err != nil {
					return err
				}
				if err := medsEditFlags.apply(cmd.Flags(), m, false); err != nil {
					return err
				}
				return txn.UpdateMedication(m)
			})
			if err != nil {
				return fmt.Errorf("while updating medication: %w", err)
			}

			return s.resync(ctx)
		})
	},
}

var cmdMedsDelete = &cobra.Command{
	Use:  "delete ID",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			var deleted int
			err := s.db.Update(ctx, "delete-medication", func(txn *dblayer.Txn) error {
				var err error
				deleted, err = txn.DeleteMedication(args[0])
				return err
			})
			if err != nil {
				return fmt.Errorf("while deleting medication: %w", err)
			}

			glog.Infof("Deleted medication %s and %d doses", args[0], deleted)
			return nil
		})
	},
}

var (
	medsStockSet    int
	medsStockAdjust int
)

var cmdMedsStock = &cobra.Command{
	Use:   "stock ID",
	Short: "Set or adjust a medication's stock count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setChanged, adjustChanged := cmd.Flags().Changed("set"), cmd.Flags().Changed("adjust")
		if setChanged == adjustChanged {
			return fmt.Errorf("exactly one of --set and --adjust is required")
		}

		return withStore(func(ctx context.Context, s *store) error {
			mgr := lifecycle.NewManager(s.db)

			var m *dbtypes.Medication
			var err error
			if setChanged {
				m, err = mgr.SetStock(ctx, args[0], medsStockSet)
			} else {
				m, err = mgr.AdjustStock(ctx, args[0], medsStockAdjust)
			}
			if err != nil {
				return fmt.Errorf("while updating stock: %w", err)
			}

			proj := stock.Project(m)
			fmt.Printf("%s: %d %s (%s)\n", m.Name, m.CurrentStock, m.StockUnit, proj.Level)
			return nil
		})
	},
}

func init() {
	medsAddFlags.register(cmdMedsAdd.Flags())
	cmdMedsAdd.Flags().IntVar(&medsAddStock, "stock", 0, "Initial stock")
	cmdMedsAdd.MarkFlagRequired("name")
	medsEditFlags.register(cmdMedsEdit.Flags())

	cmdMedsStock.Flags().IntVar(&medsStockSet, "set", 0, "New stock count")
	cmdMedsStock.Flags().IntVar(&medsStockAdjust, "adjust", 0, "Amount to add; negative to remove")
}
