package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"medsidekick/dblayer"
	"medsidekick/dbtypes"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var cmdSlots = &cobra.Command{
	Use:   "slots [command]",
	Short: "Manage meal times",
}

var cmdSlotsList = &cobra.Command{
	Use: "list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			var slots []*dbtypes.MealTimeSlot
			err := s.db.View(ctx, "list-slots", func(txn *dblayer.Txn) error {
				var err error
				slots, err = txn.Slots()
				return err
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tKEY\tNAME\tTIME\tSYMBOL")
			for _, slot := range slots {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", slot.SortOrder, slot.Key, slot.Name, slot.DisplayTime(), slot.Symbol)
			}
			return tw.Flush()
		})
	},
}

var (
	slotName      string
	slotKeyFlag   string
	slotTime      string
	slotSymbol    string
	slotSortOrder int
)

var cmdSlotsAdd = &cobra.Command{
	Use: "add",
	RunE: func(cmd *cobra.Command, args []string) error {
		hour, minute, err := parseTimeOfDay(slotTime)
		if err != nil {
			return err
		}
		sortOrder := -1
		if cmd.Flags().Changed("sort-order") {
			sortOrder = slotSortOrder
		}

		return withStore(func(ctx context.Context, s *store) error {
			slot := &dbtypes.MealTimeSlot{
				Name:      slotName,
				Key:       slotKeyFlag,
				Hour:      hour,
				Minute:    minute,
				Symbol:    slotSymbol,
				SortOrder: sortOrder,
			}
			err := s.db.Update(ctx, "create-slot", func(txn *dblayer.Txn) error {
				// CreateSlot fills in fields; start from the flags each attempt.
				attempt := *slot
				if err := txn.CreateSlot(&attempt); err != nil {
					return err
				}
				*slot = attempt
				return nil
			})
			if err != nil {
				return fmt.Errorf("while creating meal time: %w", err)
			}

			glog.Infof("Created meal time %q (%s) at %s", slot.Name, slot.Key, slot.DisplayTime())
			return s.resync(ctx)
		})
	},
}

var cmdSlotsEdit = &cobra.Command{
	Use:  "edit KEY",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			err := s.db.Update(ctx, "update-slot", func(txn *dblayer.Txn) error {
				slot, ok, err := txn.SlotByKey(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %q", dblayer.ErrMealTimeNotFound, args[0])
				}

				if cmd.Flags().Changed("name") {
					slot.Name = slotName
				}
				if cmd.Flags().Changed("time") {
					slot.Hour, slot.Minute, err = parseTimeOfDay(slotTime)
					if err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("symbol") {
					slot.Symbol = slotSymbol
				}
				if cmd.Flags().Changed("sort-order") {
					slot.SortOrder = slotSortOrder
				}
				return txn.UpdateSlot(slot)
			})
			if err != nil {
				return fmt.Errorf("while updating meal time: %w", err)
			}

			return s.resync(ctx)
		})
	},
}

var cmdSlotsDelete = &cobra.Command{
	Use:  "delete KEY",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			var updated int
			err := s.db.Update(ctx, "delete-slot", func(txn *dblayer.Txn) error {
				var err error
				updated, err = txn.DeleteSlot(args[0])
				return err
			})
			if err != nil {
				return fmt.Errorf("while deleting meal time: %w", err)
			}

			glog.Infof("Deleted meal time %q, updated %d medications", args[0], updated)
			return s.resync(ctx)
		})
	},
}

func init() {
	cmdSlotsAdd.Flags().StringVar(&slotName, "name", "", "Display name")
	cmdSlotsAdd.Flags().StringVar(&slotKeyFlag, "key", "", "Stable key; derived from the name when empty")
	cmdSlotsAdd.Flags().StringVar(&slotTime, "time", "", "Time of day, HH:MM")
	cmdSlotsAdd.Flags().StringVar(&slotSymbol, "symbol", "", "Symbol name")
	cmdSlotsAdd.Flags().IntVar(&slotSortOrder, "sort-order", 0, "Position; appended after all others when unset")
	cmdSlotsAdd.MarkFlagRequired("name")
	cmdSlotsAdd.MarkFlagRequired("time")

	cmdSlotsEdit.Flags().StringVar(&slotName, "name", "", "Display name")
	cmdSlotsEdit.Flags().StringVar(&slotTime, "time", "", "Time of day, HH:MM")
	cmdSlotsEdit.Flags().StringVar(&slotSymbol, "symbol", "", "Symbol name")
	cmdSlotsEdit.Flags().IntVar(&slotSortOrder, "sort-order", 0, "Position")
}
