// Package dosesync runs regeneration passes: it reads the current
// medications, slots, and dose instances, generates whatever is missing for
// the upcoming window, and stores it.
package dosesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"medsidekick/clock"
	"medsidekick/dblayer"
	"medsidekick/dosegen"
	"medsidekick/metrics"
)

type Syncer struct {
	db        *dblayer.DB
	gen       *dosegen.Generator
	daysAhead int

	// Passes are serialized so that two concurrent triggers cannot both
	// decide the same occurrence is missing.
	mu sync.Mutex
}

type SyncerOpt func(*Syncer)

// WithDaysAhead sets the size of the rolling window, in calendar days.
func WithDaysAhead(n int) SyncerOpt {
	return func(s *Syncer) {
		s.daysAhead = n
	}
}

func WithGenerator(g *dosegen.Generator) SyncerOpt {
	return func(s *Syncer) {
		s.gen = g
	}
}

func New(db *dblayer.DB, opts ...SyncerOpt) *Syncer {
	s := &Syncer{
		db:        db,
		daysAhead: dosegen.DefaultDaysAhead,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.gen == nil {
		s.gen = dosegen.New(dosegen.WithClock(dbClock{db}))
	}

	return s
}

type dbClock struct {
	db *dblayer.DB
}

func (c dbClock) Now() time.Time {
	return c.db.Now()
}

var _ clock.Clock = dbClock{}

// Result summarizes one regeneration pass.
type Result struct {
	Generated  int
	Unresolved []dosegen.UnresolvedSlot
}

// Sync runs one regeneration pass for the window starting today.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{}
	err := s.db.Update(ctx, "sync", func(txn *dblayer.Txn) error {
		*result = Result{}

		meds, err := txn.Medications()
		if err != nil {
			return err
		}
		slots, err := txn.Slots()
		if err != nil {
			return err
		}

		// Only instances on or after today can collide with the window.
		today := clock.StartOfDay(txn.Now())
		existing, err := txn.Doses(dblayer.DoseFilter{From: today.Add(-24 * time.Hour)})
		if err != nil {
			return err
		}

		gen := s.gen.GenerateUpcoming(meds, slots, existing, today, s.daysAhead)
		if err := txn.InsertDoses(gen.Doses); err != nil {
			return err
		}

		result.Generated = len(gen.Doses)
		result.Unresolved = gen.Unresolved
		return nil
	})

	metrics.RecordSync(ctx, result.Generated, len(result.Unresolved), err)

	if err != nil {
		slog.ErrorContext(ctx, "Regeneration pass failed", slog.Any("err", err))
		return result, fmt.Errorf("while regenerating doses: %w", err)
	}

	for _, u := range result.Unresolved {
		slog.WarnContext(ctx, "Skipping unresolved slot key",
			slog.String("medication", u.MedicationID),
			slog.String("medication-name", u.MedicationName),
			slog.String("slot-key", u.SlotKey))
	}
	slog.InfoContext(ctx, "Regeneration pass complete", slog.Int("generated", result.Generated), slog.Int("unresolved", len(result.Unresolved)))

	return result, nil
}
