package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helpdesk"

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	httpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by error code",
		},
		[]string{"method", "route", "code"},
	)

	slaScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "scans_total",
			Help:      "SLA alert scans by outcome",
		},
		[]string{"outcome"},
	)

	slaScannedTickets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "scanned_tickets_total",
			Help:      "Open tickets examined by SLA scans",
		},
	)

	slaAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "alerts_total",
			Help:      "SLA alerts raised by kind",
		},
		[]string{"kind"},
	)

	slaScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one SLA alert scan",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	autoAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "auto_resolutions_total",
			Help:      "Auto-assignment resolutions by outcome",
		},
		[]string{"outcome"},
	)
)

// Metrics records service metrics. A nil *Metrics records nothing.
type Metrics struct{}

// NewMetrics returns the metrics recorder backed by the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest observes one HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordError counts an HTTP error by its domain error code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	httpErrors.WithLabelValues(method, route, code).Inc()
}

// RecordSLAScan records the outcome of one alert scan.
func (m *Metrics) RecordSLAScan(scanned int, alertKinds []string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	slaScanDuration.Observe(duration.Seconds())
	if err != nil {
		slaScans.WithLabelValues("failed").Inc()
		return
	}
	slaScans.WithLabelValues("success").Inc()
	slaScannedTickets.Add(float64(scanned))
	for _, kind := range alertKinds {
		slaAlerts.WithLabelValues(kind).Inc()
	}
}

// RecordSLAScanSkipped counts a scheduler tick that did not run a scan.
func (m *Metrics) RecordSLAScanSkipped(reason string) {
	if m == nil {
		return
	}
	slaScans.WithLabelValues("skipped_" + reason).Inc()
}

// RecordAutoAssignment counts a resolver outcome: assigned, unassigned or failed.
func (m *Metrics) RecordAutoAssignment(outcome string) {
	if m == nil {
		return
	}
	autoAssignments.WithLabelValues(outcome).Inc()
}
