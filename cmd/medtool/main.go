// medtool is a utility program for inspecting and editing a medsidekick
// store from the command line.
//
// Every edit to a medication or meal time is followed by a regeneration pass,
// so the upcoming dose window always reflects the current schedule.
package main

import (
	"context"
	"flag"
	"fmt"

	"medsidekick/clock"
	"medsidekick/dblayer"
	"medsidekick/dosesync"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var cmdRoot = &cobra.Command{
	Use:          "medtool",
	SilenceUsage: true,
}

var (
	dataDir   string
	daysAhead int
	timezone  string
)

func init() {
	cmdRoot.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory of the badger database.")
	cmdRoot.PersistentFlags().IntVar(&daysAhead, "days-ahead", 7, "Number of calendar days, starting today, to keep generated.")
	cmdRoot.PersistentFlags().StringVar(&timezone, "timezone", "", "IANA time zone that calendar days are computed in.  Empty uses the system zone.")
}

// store is an open database plus the syncer that edits trigger.
type store struct {
	db     *dblayer.DB
	syncer *dosesync.Syncer
	clock  clock.Clock
}

func withStore(fn func(ctx context.Context, s *store) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if dataDir == "" {
		return fmt.Errorf("--data-dir is required")
	}

	loc, err := location()
	if err != nil {
		return err
	}
	c := clock.Real{Location: loc}

	db, err := dblayer.Open(dataDir, dblayer.WithClock(c))
	if err != nil {
		return fmt.Errorf("while opening store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			glog.Errorf("Error while closing store: %v", err)
		}
	}()

	return fn(ctx, &store{
		db:     db,
		syncer: dosesync.New(db, dosesync.WithDaysAhead(daysAhead)),
		clock:  c,
	})
}

// resync runs the regeneration pass that follows every schedule edit.
func (s *store) resync(ctx context.Context) error {
	result, err := s.syncer.Sync(ctx)
	if err != nil {
		return err
	}
	glog.Infof("Generated %d doses", result.Generated)
	for _, u := range result.Unresolved {
		glog.Warningf("Skipped %v", u)
	}
	return nil
}

var cmdSync = &cobra.Command{
	Use:   "sync",
	Short: "Run one regeneration pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *store) error {
			return s.resync(ctx)
		})
	},
}

func main() {
	glog.CopyStandardLogTo("INFO")
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmdRoot.AddCommand(cmdSlots, cmdMeds, cmdToday, cmdDose, cmdSync)
	cmdSlots.AddCommand(cmdSlotsList, cmdSlotsAdd, cmdSlotsEdit, cmdSlotsDelete)
	cmdMeds.AddCommand(cmdMedsList, cmdMedsAdd, cmdMedsEdit, cmdMedsDelete, cmdMedsStock)
	cmdDose.AddCommand(cmdDoseTake, cmdDoseUndo, cmdDoseSkip, cmdDoseToggle, cmdDoseTakeAll, cmdDoseSkipAll)

	if err := cmdRoot.Execute(); err != nil {
		glog.Exitf("Error: %v", err)
	}
}
