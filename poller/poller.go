// Package poller periodically tops up the dose window and watches stock
// levels.
package poller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"medsidekick/dblayer"
	"medsidekick/dbtypes"
	"medsidekick/dosesync"
	"medsidekick/stock"
)

const DefaultRecheckPeriod = time.Hour

type StockAlert struct {
	MedicationID string
	Name         string
	DosageText   string
	Unit         dbtypes.StockUnit

	CurrentStock int
	DaysOfSupply int
	Level        stock.Level
}

// Notifier delivers stock alerts.
type Notifier interface {
	Notify(ctx context.Context, alerts []StockAlert) error
}

// Poller runs an infinite loop, regenerating doses and checking stock on
// every pass.
type Poller struct {
	syncer        *dosesync.Syncer
	db            *dblayer.DB
	notifier      Notifier
	recheckPeriod time.Duration

	// The worst level already reported for each medication.  Only ever
	// touched from the Run goroutine.
	reported map[string]stock.Level
}

type PollerOpt func(*Poller)

func WithRecheckPeriod(d time.Duration) PollerOpt {
	return func(p *Poller) {
		p.recheckPeriod = d
	}
}

func New(syncer *dosesync.Syncer, db *dblayer.DB, notifier Notifier, opts ...PollerOpt) *Poller {
	p := &Poller{
		syncer:        syncer,
		db:            db,
		notifier:      notifier,
		recheckPeriod: DefaultRecheckPeriod,
		reported:      map[string]stock.Level{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.recheckPeriod)
	defer ticker.Stop()

	// Poll once right away --- ticker doesn't fire until the tick period has
	// elapsed.
	if err := p.Pass(ctx); err != nil {
		slog.ErrorContext(ctx, "Error during poller pass", slog.Any("err", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := p.Pass(ctx); err != nil {
			slog.ErrorContext(ctx, "Error during poller pass", slog.Any("err", err))
		}
	}
}

// Pass runs one regeneration pass followed by one stock check.  The stock
// check runs even if regeneration failed.
func (p *Poller) Pass(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting poller pass")
	defer func() {
		slog.InfoContext(ctx, "Finished poller pass")
	}()

	_, syncErr := p.syncer.Sync(ctx)

	if err := p.checkStock(ctx); err != nil {
		return fmt.Errorf("while checking stock: %w", err)
	}
	return syncErr
}

func (p *Poller) checkStock(ctx context.Context) error {
	var meds []*dbtypes.Medication
	err := p.db.View(ctx, "check-stock", func(txn *dblayer.Txn) error {
		var err error
		meds, err = txn.Medications()
		return err
	})
	if err != nil {
		return err
	}

	var alerts []StockAlert
	seen := map[string]bool{}
	for _, m := range meds {
		seen[m.ID] = true
		if !m.IsActive {
			delete(p.reported, m.ID)
			continue
		}

		proj := stock.Project(m)
		last, ok := p.reported[m.ID]
		if !ok {
			last = stock.LevelGood
		}

		if proj.Level.Severity() <= last.Severity() {
			// Remember recoveries, so that a later drop alerts again.
			p.reported[m.ID] = proj.Level
			continue
		}

		// Recorded only once the alert is delivered.
		alerts = append(alerts, StockAlert{
			MedicationID: m.ID,
			Name:         m.Name,
			DosageText:   m.DosageText,
			Unit:         m.StockUnit,
			CurrentStock: m.CurrentStock,
			DaysOfSupply: proj.DaysOfSupply,
			Level:        proj.Level,
		})
	}

	for id := range p.reported {
		if !seen[id] {
			delete(p.reported, id)
		}
	}

	if len(alerts) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sending stock alerts", slog.Int("count", len(alerts)))
	if err := p.notifier.Notify(ctx, alerts); err != nil {
		return fmt.Errorf("while sending stock alerts: %w", err)
	}
	for _, a := range alerts {
		p.reported[a.MedicationID] = a.Level
	}
	return nil
}

const alertPlain = `
{{- if . -}}
The following medications are running low:
{{range . -}}
* {{.Name}} ({{.DosageText}}): {{.Level}}.  {{.CurrentStock}} {{.Unit}} left
{{- if eq .CurrentStock 0}}.{{else}}, about {{.DaysOfSupply}} days.{{end}}
{{end}}
{{- end}}
`

var alertPlainTemplate = template.Must(template.New("alert").Parse(alertPlain))

// RenderAlerts formats alerts as plain text.
func RenderAlerts(alerts []StockAlert) (string, error) {
	text := &bytes.Buffer{}
	if err := alertPlainTemplate.Execute(text, alerts); err != nil {
		return "", fmt.Errorf("while templating stock alert: %w", err)
	}
	return text.String(), nil
}

// LogNotifier writes alerts to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, alerts []StockAlert) error {
	text, err := RenderAlerts(alerts)
	if err != nil {
		return err
	}
	slog.WarnContext(ctx, "Stock alert", slog.String("message", text))
	return nil
}
