package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_notification_deliveries_total",
		Help: "Notification delivery attempts by channel and result",
	}, []string{"channel", "result"})
	documentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_documents_generated_total",
		Help: "Quotation documents produced, by output mode (pdf, html_fallback, html)",
	}, []string{"mode"})
	elementErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_template_element_errors_total",
		Help: "Template elements that failed to render and were replaced by an error marker",
	}, []string{"type"})
	sweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_scheduled_sweep_runs_total",
		Help: "Scheduled notification sweeps by outcome (ran, skipped)",
	}, []string{"outcome"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "API request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry prometheus.Registerer) {
	registry.MustRegister(deliveriesTotal, documentsTotal, elementErrorsTotal, sweepRunsTotal, requestDuration)
}

// IncDelivery counts one (recipient, channel) delivery attempt.
func IncDelivery(channel string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	deliveriesTotal.WithLabelValues(channel, result).Inc()
}

// IncDocument counts a produced document by mode.
func IncDocument(mode string) { documentsTotal.WithLabelValues(mode).Inc() }

// IncElementError counts an element replaced by an inline error marker.
func IncElementError(elementType string) { elementErrorsTotal.WithLabelValues(elementType).Inc() }

// IncSweep counts a sweep tick.
func IncSweep(outcome string) { sweepRunsTotal.WithLabelValues(outcome).Inc() }

// ObserveRequest records one handled API request.
func ObserveRequest(method, route string, status int, d time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
