// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Migration runs are batch jobs, so pushing at run end fits
// better than exposing a scrape endpoint that would disappear with the
// process.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"shopmigrate/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	records  *prometheus.CounterVec // migrate_records_total
	lookups  *prometheus.CounterVec // migrate_lookups_total
	duration *prometheus.SummaryVec // migrate_phase_duration_seconds
}

// NewBackend constructs a Pushgateway backend. jobName groups pushes on the
// gateway (usually "shopmigrate"); gatewayURL is its base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "shopmigrate"
	}
	reg := prometheus.NewRegistry()
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_records_total",
			Help: "Records processed per phase and outcome.",
		}, []string{"phase", "status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_lookups_total",
			Help: "Reference lookups per phase, index, and status.",
		}, []string{"phase", "index", "status"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: "migrate_phase_duration_seconds",
			Help: "Wall-clock duration of each migration phase.",
		}, []string{"phase"}),
	}
	reg.MustRegister(b.records, b.lookups, b.duration)
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta == 0 {
		return
	}
	switch name {
	case "migrate_records_total":
		b.records.WithLabelValues(labels["phase"], labels["status"]).Add(delta)
	case "migrate_lookups_total":
		b.lookups.WithLabelValues(labels["phase"], labels["index"], labels["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == "migrate_phase_duration_seconds" {
		b.duration.WithLabelValues(labels["phase"]).Observe(value)
	}
}

// Flush pushes the registry to the gateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
