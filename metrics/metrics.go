// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting intake service metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissions      int64
	validationFailed int64
	deliveriesFailed int64
	deletions        int64
	lookups          int64
	purged           int64
	lastPurge        int64
)

const counterInc int64 = 1

var (
	promSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthintake_submissions_total",
			Help: "Total stored questionnaires",
		},
		[]string{"type"},
	)
	promValidationFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthintake_validation_failed_total",
			Help: "Total questionnaires rejected by validation",
		},
	)
	promDeliveriesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthintake_delivery_failed_total",
			Help: "Total questionnaires that could not be forwarded to the staff chat",
		},
	)
	promDeletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthintake_deletions_total",
			Help: "Total questionnaires deleted on request",
		},
	)
	promLookups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthintake_lookups_total",
			Help: "Total contact lookups",
		},
	)
	promPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthintake_purged_total",
			Help: "Total questionnaires removed by retention",
		},
	)
	promRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthintake_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthintake_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"route"},
	)
	promLastPurge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthintake_last_purge_timestamp_seconds",
			Help: "Unix timestamp of the last retention pass",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promSubmissions,
		promValidationFailed,
		promDeliveriesFailed,
		promDeletions,
		promLookups,
		promPurged,
		promRequests,
		promRequestDuration,
		promLastPurge,
	)
}

// IncSubmission counts a stored questionnaire of the given type.
func IncSubmission(category string) {
	atomic.AddInt64(&submissions, counterInc)
	promSubmissions.WithLabelValues(category).Inc()
}

// IncValidationFailed counts a rejected questionnaire.
func IncValidationFailed() {
	atomic.AddInt64(&validationFailed, counterInc)
	promValidationFailed.Inc()
}

// IncDeliveryFailed counts a questionnaire the staff chat never received.
func IncDeliveryFailed() {
	atomic.AddInt64(&deliveriesFailed, counterInc)
	promDeliveriesFailed.Inc()
}

func IncDeletion() {
	atomic.AddInt64(&deletions, counterInc)
	promDeletions.Inc()
}

func IncLookup() {
	atomic.AddInt64(&lookups, counterInc)
	promLookups.Inc()
}

// AddPurged records a retention pass that removed n questionnaires at t.
func AddPurged(n int, t time.Time) {
	atomic.AddInt64(&purged, int64(n))
	atomic.StoreInt64(&lastPurge, t.Unix())
	promPurged.Add(float64(n))
	promLastPurge.Set(float64(t.Unix()))
}

// ObserveRequest records one HTTP request.
func ObserveRequest(route string, code int, d time.Duration) {
	promRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	promRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Submissions      int64  `json:"submissions"`
	ValidationFailed int64  `json:"validation_failed"`
	DeliveriesFailed int64  `json:"deliveries_failed"`
	Deletions        int64  `json:"deletions"`
	Lookups          int64  `json:"lookups"`
	Purged           int64  `json:"purged"`
	LastPurge        int64  `json:"last_purge_timestamp"`
	LastPurgeHuman   string `json:"last_purge_human,omitempty"`
}

// GetSnapshot returns the current values of all internal counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPurge)
	s := StatsSnapshot{
		Submissions:      atomic.LoadInt64(&submissions),
		ValidationFailed: atomic.LoadInt64(&validationFailed),
		DeliveriesFailed: atomic.LoadInt64(&deliveriesFailed),
		Deletions:        atomic.LoadInt64(&deletions),
		Lookups:          atomic.LoadInt64(&lookups),
		Purged:           atomic.LoadInt64(&purged),
		LastPurge:        ts,
	}
	if ts > 0 {
		s.LastPurgeHuman = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return s
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler serves the current snapshot as JSON.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
