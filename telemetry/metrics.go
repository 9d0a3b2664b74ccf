// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	DataRequests        *prometheus.CounterVec // action, outcome
	AuthFailures        *prometheus.CounterVec // resource
	AuthLockouts        prometheus.Counter
	RateLimited         *prometheus.CounterVec // scope
	Notifications       *prometheus.CounterVec // channel, result
	IncidentTransitions *prometheus.CounterVec // kind
	Suggestions         *prometheus.CounterVec // result
	TwitchRequests      *prometheus.CounterVec // endpoint, result

	// Histograms (seconds)
	RequestDuration *prometheus.HistogramVec // route
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DataRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_data_requests_total", Help: "Data access/deletion requests by action and outcome"}, []string{"action", "outcome"})
		AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_auth_failures_total", Help: "Failed admin credential checks by resource"}, []string{"resource"})
		AuthLockouts = promauto.NewCounter(prometheus.CounterOpts{Name: "fwj_auth_lockouts_total", Help: "Requests rejected because the caller is locked out"})
		RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_rate_limited_total", Help: "Requests rejected by the cooldown limiter"}, []string{"scope"})
		Notifications = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_notifications_total", Help: "Outbound notifications by channel and result"}, []string{"channel", "result"})
		IncidentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_incident_transitions_total", Help: "Incident notice writes by transition kind"}, []string{"kind"})
		Suggestions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_suggestions_total", Help: "Flight suggestions by result"}, []string{"result"})
		TwitchRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fwj_twitch_requests_total", Help: "Twitch Helix calls by endpoint and result"}, []string{"endpoint", "result"})
		RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "fwj_http_request_duration_seconds", Help: "HTTP request duration seconds", Buckets: prometheus.DefBuckets}, []string{"route"})
	})
}

// Inc increments a labelled counter if metrics were initialised.
func Inc(c *prometheus.CounterVec, labels ...string) {
	if c != nil {
		c.WithLabelValues(labels...).Inc()
	}
}

// IncLockout counts a rejected locked-out request.
func IncLockout() {
	if AuthLockouts != nil {
		AuthLockouts.Inc()
	}
}

// ObserveRequest records the latency of one request against its route pattern.
func ObserveRequest(route string, d time.Duration) {
	if RequestDuration != nil {
		RequestDuration.WithLabelValues(route).Observe(d.Seconds())
	}
}

// Result maps an error to the "ok"/"error" label used by outbound-call counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
