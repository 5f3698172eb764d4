// Package dblayer packages up all access to the local data store.
//
// The same DB type fronts either an on-disk badger database or an in-memory
// map, so code and tests run against identical semantics.
package dblayer

import (
	"context"
	"fmt"
	"time"

	"medsidekick/clock"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DB struct {
	backend      backend
	clock        clock.Clock
	newID        func() string
	beforeCommit func(op string) error
}

type DBOpt func(*DB)

// WithClock sets the clock used for CreatedAt/UpdatedAt stamps.
func WithClock(c clock.Clock) DBOpt {
	return func(db *DB) {
		db.clock = c
	}
}

func WithIDFunc(f func() string) DBOpt {
	return func(db *DB) {
		db.newID = f
	}
}

// WithBeforeCommit installs a check run after an update's function succeeds
// and before its commit.  A non-nil result aborts the commit as a persistence
// failure, leaving the store unchanged.
func WithBeforeCommit(f func(op string) error) DBOpt {
	return func(db *DB) {
		db.beforeCommit = f
	}
}

func newDB(b backend, opts []DBOpt) *DB {
	db := &DB{
		backend: b,
		clock:   clock.Real{},
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(db)
	}

	return db
}

// Open opens (creating if needed) the badger database in dataDir.
func Open(dataDir string, opts ...DBOpt) (*DB, error) {
	b, err := openBadger(dataDir)
	if err != nil {
		return nil, err
	}
	return newDB(b, opts), nil
}

// OpenInMemory returns an empty store that lives only as long as the process.
func OpenInMemory(opts ...DBOpt) *DB {
	return newDB(newMemoryBackend(), opts)
}

func (db *DB) Close() error {
	return db.backend.close()
}

func (db *DB) Now() time.Time {
	return db.clock.Now()
}

// View runs fn in a read-only transaction.  op names the operation in traces.
func (db *DB) View(ctx context.Context, op string, fn func(*Txn) error) error {
	tracer := otel.Tracer("medsidekick/dblayer")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.View")
	defer span.End()

	span.SetAttributes(attribute.String("op", op))

	err := db.backend.view(func(kv kvTxn) error {
		return fn(&Txn{ctx: ctx, kv: kv, db: db, now: db.clock.Now()})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Update runs fn in a read-write transaction and commits it.
//
// fn may be executed more than once if the commit loses a race, so it must
// not leak state across executions.
func (db *DB) Update(ctx context.Context, op string, fn func(*Txn) error) error {
	tracer := otel.Tracer("medsidekick/dblayer")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DB.Update")
	defer span.End()

	span.SetAttributes(attribute.String("op", op))

	err := db.backend.update(func(kv kvTxn) error {
		if err := fn(&Txn{ctx: ctx, kv: kv, db: db, now: db.clock.Now()}); err != nil {
			return err
		}
		if db.beforeCommit != nil {
			if err := db.beforeCommit(op); err != nil {
				return newError("commit", fmt.Errorf("while committing %s: %w", op, err))
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Txn is a transaction over all three tables.
type Txn struct {
	ctx context.Context
	kv  kvTxn
	db  *DB

	// One timestamp per transaction, used for every UpdatedAt it writes.
	now time.Time
}

func (t *Txn) Now() time.Time {
	return t.now
}
