package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagarc03/relaygate"
)

// Metrics collects proxy metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	upstreamErrors *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	bindings       prometheus.Gauge
	skipped        prometheus.Gauge
	gatherer       prometheus.Gatherer
}

// NewMetrics registers the gateway collectors on reg. A nil reg uses a fresh
// registry so tests and multiple handlers do not collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_proxy_requests_total",
				Help: "Total number of proxied requests by service, method and response code",
			},
			[]string{"service", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relaygate_proxy_request_duration_seconds",
				Help:    "Time from dispatch to the end of the relayed response",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_upstream_errors_total",
				Help: "Transport failures talking to upstream services",
			},
			[]string{"service", "kind"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_auth_rejections_total",
				Help: "Requests rejected by the bearer gate",
			},
			[]string{"service"},
		),
		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaygate_route_bindings",
			Help: "Number of active route bindings",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaygate_route_skipped_entries",
			Help: "Configuration entries skipped while building the route table",
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.requests, m.duration, m.upstreamErrors, m.rejections, m.bindings, m.skipped)
	return m
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeTable(t *relaygate.RouteTable) {
	if m == nil {
		return
	}
	m.bindings.Set(float64(t.Len()))
	m.skipped.Set(float64(len(t.Skipped())))
}

func (m *Metrics) observeRequest(b relaygate.RouteBinding, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(b.ServiceID, b.Method.HTTP(), strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(b.ServiceID, b.Method.HTTP()).Observe(elapsed.Seconds())
}

func (m *Metrics) upstreamError(b relaygate.RouteBinding, kind string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(b.ServiceID, kind).Inc()
}

func (m *Metrics) authRejected(b relaygate.RouteBinding) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(b.ServiceID).Inc()
}
