// Package metrics defines the opencensus measures recorded by the scheduling
// core.
package metrics

import (
	"context"
	"log/slog"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	DosesGenerated  = stats.Int64("medsidekick/doses_generated", "Dose instances inserted by regeneration passes", stats.UnitDimensionless)
	UnresolvedSlots = stats.Int64("medsidekick/unresolved_slots", "Slot keys skipped because they resolved to no time of day", stats.UnitDimensionless)
	SyncPasses      = stats.Int64("medsidekick/sync_passes", "Regeneration passes run", stats.UnitDimensionless)
	DoseTransitions = stats.Int64("medsidekick/dose_transitions", "Dose lifecycle transitions applied", stats.UnitDimensionless)
	KeyTransition   = tag.MustNewKey("transition")
	KeyResult       = tag.MustNewKey("result")
)

var (
	DosesGeneratedView = &view.View{
		Name:        "medsidekick/doses_generated",
		Description: "Total dose instances generated",
		Measure:     DosesGenerated,
		Aggregation: view.Sum(),
	}

	UnresolvedSlotsView = &view.View{
		Name:        "medsidekick/unresolved_slots",
		Description: "Total unresolved slot keys seen by regeneration passes",
		Measure:     UnresolvedSlots,
		Aggregation: view.Sum(),
	}

	SyncPassesView = &view.View{
		Name:        "medsidekick/sync_passes",
		Description: "Counter of regeneration passes, by result",
		TagKeys:     []tag.Key{KeyResult},
		Measure:     SyncPasses,
		Aggregation: view.Count(),
	}

	DoseTransitionsView = &view.View{
		Name:        "medsidekick/dose_transitions",
		Description: "Total dose transitions, by transition",
		TagKeys:     []tag.Key{KeyTransition},
		Measure:     DoseTransitions,
		Aggregation: view.Sum(),
	}
)

func Views() []*view.View {
	return []*view.View{DosesGeneratedView, UnresolvedSlotsView, SyncPassesView, DoseTransitionsView}
}

func Register() error {
	return view.Register(Views()...)
}

func Unregister() {
	view.Unregister(Views()...)
}

func RecordSync(ctx context.Context, generated, unresolved int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	record(ctx, []tag.Mutator{tag.Insert(KeyResult, result)},
		SyncPasses.M(1),
		DosesGenerated.M(int64(generated)),
		UnresolvedSlots.M(int64(unresolved)),
	)
}

// RecordTransition counts n applied transitions of the named kind ("taken",
// "undo", "skipped").
func RecordTransition(ctx context.Context, transition string, n int) {
	if n == 0 {
		return
	}
	record(ctx, []tag.Mutator{tag.Insert(KeyTransition, transition)}, DoseTransitions.M(int64(n)))
}

func record(ctx context.Context, tags []tag.Mutator, ms ...stats.Measurement) {
	if err := stats.RecordWithOptions(ctx, stats.WithTags(tags...), stats.WithMeasurements(ms...)); err != nil {
		slog.WarnContext(ctx, "Failed to record metrics", slog.Any("err", err))
	}
}
