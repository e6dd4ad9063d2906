// Package metrics collects Prometheus metrics for the auth flows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the auth core and HTTP layer report into.
type Recorder interface {
	RecordLogin(result string)
	RecordRefresh(result string)
	RecordLogout(scope string)
	RecordSessionsRevoked(count int)
	RecordCSRFRejection()
	RecordUpstreamLatency(call string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string)                          {}
func (Nop) RecordRefresh(string)                        {}
func (Nop) RecordLogout(string)                         {}
func (Nop) RecordSessionsRevoked(int)                   {}
func (Nop) RecordCSRFRejection()                        {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Collector)(nil)
)

// Collector is the Prometheus backed Recorder.
type Collector struct {
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         *prometheus.CounterVec
	sessionsRevoked prometheus.Counter
	csrfRejections  prometheus.Counter
	upstreamLatency *prometheus.HistogramVec
}

// NewCollector registers the auth metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memauth_logins_total",
			Help: "Completed login callbacks by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memauth_refresh_total",
			Help: "Access token refresh attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memauth_logouts_total",
			Help: "Logouts by scope (session or all).",
		}, []string{"scope"}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memauth_sessions_revoked_total",
			Help: "Refresh sessions deleted by logout or deactivation.",
		}),
		csrfRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memauth_csrf_rejections_total",
			Help: "Requests rejected by the CSRF double-submit check.",
		}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memauth_upstream_duration_seconds",
			Help:    "Latency of identity provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
	}

	reg.MustRegister(
		c.logins,
		c.refreshes,
		c.logouts,
		c.sessionsRevoked,
		c.csrfRejections,
		c.upstreamLatency,
	)

	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRefresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordLogout(scope string) {
	c.logouts.WithLabelValues(scope).Inc()
}

func (c *Collector) RecordSessionsRevoked(count int) {
	c.sessionsRevoked.Add(float64(count))
}

func (c *Collector) RecordCSRFRejection() {
	c.csrfRejections.Inc()
}

func (c *Collector) RecordUpstreamLatency(call string, d time.Duration) {
	c.upstreamLatency.WithLabelValues(call).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
