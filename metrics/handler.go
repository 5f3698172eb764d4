package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	ocprometheus "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHandler serves the registered views, plus Go runtime and process
// metrics, in the Prometheus exposition format.
func NewHandler() (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("while registering Go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("while registering process collector: %w", err)
	}

	// The exporter registers itself into reg and reads the views on every
	// scrape.
	_, err := ocprometheus.NewExporter(ocprometheus.Options{
		Registry: reg,
		OnError: func(err error) {
			slog.Error("Failed to export views", slog.Any("err", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("while creating prometheus exporter: %w", err)
	}

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
