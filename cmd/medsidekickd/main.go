package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medsidekick/bootstrap"
	"medsidekick/clock"
	"medsidekick/dblayer"
	"medsidekick/dosesync"
	"medsidekick/healthz"
	"medsidekick/metrics"
	"medsidekick/poller"

	"golang.org/x/sync/errgroup"
)

var (
	dataDir         = flag.String("data-dir", "", "Directory of the badger database.  Empty keeps all state in memory.")
	daysAhead       = flag.Int("days-ahead", 7, "Number of calendar days, starting today, to keep generated.")
	recheckPeriod   = flag.Duration("recheck-period", 1*time.Hour, "Time between regeneration and stock passes")
	seedMedications = flag.Bool("seed-medications", true, "Seed the starter medication list into an empty store.")
	debugListen     = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	timezone        = flag.String("timezone", "", "IANA time zone that calendar days are computed in.  Empty uses the system zone.")
)

func main() {
	flag.Parse()

	slog.Info("Starting up")
	slog.Info(
		"Flags",
		slog.String("data-dir", *dataDir),
		slog.Int("days-ahead", *daysAhead),
		slog.Duration("recheck-period", *recheckPeriod),
		slog.Bool("seed-medications", *seedMedications),
		slog.String("debug-listen", *debugListen),
		slog.String("timezone", *timezone),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := do(ctx); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("err", err))
		os.Exit(255)
	}
}

func do(ctx context.Context) error {
	loc := time.Local
	if *timezone != "" {
		var err error
		loc, err = time.LoadLocation(*timezone)
		if err != nil {
			return fmt.Errorf("while loading time zone %q: %w", *timezone, err)
		}
	}
	dbOpts := []dblayer.DBOpt{dblayer.WithClock(clock.Real{Location: loc})}

	var db *dblayer.DB
	if *dataDir == "" {
		slog.WarnContext(ctx, "No --data-dir given; state will not survive a restart")
		db = dblayer.OpenInMemory(dbOpts...)
	} else {
		var err error
		db, err = dblayer.Open(*dataDir, dbOpts...)
		if err != nil {
			return fmt.Errorf("while opening store: %w", err)
		}
	}
	defer db.Close()

	if err := metrics.Register(); err != nil {
		return fmt.Errorf("while registering metrics views: %w", err)
	}

	metricsHandler, err := metrics.NewHandler()
	if err != nil {
		return fmt.Errorf("while creating metrics handler: %w", err)
	}

	syncer := dosesync.New(db, dosesync.WithDaysAhead(*daysAhead))

	readiness := healthz.NewReadiness()

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", readiness)
	debugServeMux.Handle("/metrics", metricsHandler)
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("debug server died: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return debugServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		bootstrap.Run(gctx, db, syncer, bootstrap.Options{SeedMedications: *seedMedications})
		readiness.SetReady(true)

		p := poller.New(syncer, db, poller.LogNotifier{}, poller.WithRecheckPeriod(*recheckPeriod))
		if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Shutting down")
	return nil
}
