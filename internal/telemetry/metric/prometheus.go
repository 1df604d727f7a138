package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "svcreg"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	Registrations  prometheus.Counter
	ACLDecisions   *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	Deaths         *prometheus.CounterVec
	TokenRejects   *prometheus.CounterVec
	StartRequests  *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec
	Connections    prometheus.Gauge
}

// NewRegistry creates a registry with the Go runtime and process
// collectors plus every svcreg metric.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Interface registrations, one per interface of each added chain.",
		}),
		ACLDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acl_decisions_total",
			Help:      "Access control decisions.",
		}, []string{"perm", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Registration notifications sent to subscribers.",
		}, []string{"kind", "result"}),
		Deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deaths_total",
			Help:      "Death events handled.",
		}, []string{"kind"}),
		TokenRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rejects_total",
			Help:      "Tokens that did not resolve.",
		}, []string{"reason"}),
		StartRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_requests_total",
			Help:      "Requests to start a missing service.",
		}, []string{"result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_commands_total",
			Help:      "Commands served on the registry socket.",
		}, []string{"cmd"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_command_duration_seconds",
			Help:      "Time to serve a command, queueing on the registry loop included.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"cmd"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_connections",
			Help:      "Open connections on the registry socket.",
		}),
	}

	reg.MustRegister(
		r.Registrations,
		r.ACLDecisions,
		r.Notifications,
		r.Deaths,
		r.TokenRejects,
		r.StartRequests,
		r.Commands,
		r.CommandLatency,
		r.Connections,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the process-wide registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving r in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// MustRegister adds extra collectors, e.g. a Collector.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Registration implements service.Recorder.
func (r *Registry) Registration(string) {
	r.Registrations.Inc()
}

// ACLDecision implements service.Recorder.
func (r *Registry) ACLDecision(perm string, granted bool) {
	r.ACLDecisions.WithLabelValues(perm, result(granted, "granted", "denied")).Inc()
}

// Notification implements service.Recorder.
func (r *Registry) Notification(kind string, delivered bool) {
	r.Notifications.WithLabelValues(kind, result(delivered, "delivered", "failed")).Inc()
}

// Death implements service.Recorder.
func (r *Registry) Death(kind string) {
	r.Deaths.WithLabelValues(kind).Inc()
}

// TokenReject implements service.Recorder.
func (r *Registry) TokenReject(reason string) {
	r.TokenRejects.WithLabelValues(reason).Inc()
}

// StartRequest implements service.Recorder.
func (r *Registry) StartRequest(res string) {
	r.StartRequests.WithLabelValues(res).Inc()
}

// RecordCommand counts one served command and its duration in seconds.
func (r *Registry) RecordCommand(cmd string, seconds float64) {
	r.Commands.WithLabelValues(cmd).Inc()
	r.CommandLatency.WithLabelValues(cmd).Observe(seconds)
}

// ConnOpened counts a new client connection.
func (r *Registry) ConnOpened() {
	r.Connections.Inc()
}

// ConnClosed counts a closed client connection.
func (r *Registry) ConnClosed() {
	r.Connections.Dec()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
