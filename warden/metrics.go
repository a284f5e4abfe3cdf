package warden

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the warden. Using a struct
// (not global vars) keeps metrics testable and avoids registry conflicts
// when multiple tests run in parallel.
type Metrics struct {
	InstallsTotal   *prometheus.CounterVec
	InstallDuration *prometheus.HistogramVec
	FilterRules     *prometheus.GaugeVec
	SeccompHealthy  prometheus.Gauge
}

// NewMetrics creates and registers all warden metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InstallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_policy_installs_total",
			Help: "Total policy installs, by profile and result (ok, noop, error).",
		}, []string{"profile", "result"}),

		InstallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_policy_install_duration_seconds",
			Help:    "Duration of policy construction and load in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"profile"}),

		FilterRules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "warden_policy_filter_rules",
			Help: "Number of rules compiled into the most recent filter, by profile.",
		}, []string{"profile"}),

		SeccompHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warden_seccomp_available",
			Help: "Whether the kernel supports seccomp filtering (1=yes, 0=no).",
		}),
	}

	reg.MustRegister(
		m.InstallsTotal,
		m.InstallDuration,
		m.FilterRules,
		m.SeccompHealthy,
	)

	return m
}
