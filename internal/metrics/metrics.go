// Package metrics exposes the matchmaking counters scraped at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Swipes           *prometheus.CounterVec
	MatchesCreated   prometheus.Counter
	QuotaRejections  *prometheus.CounterVec
	MessagesSent     prometheus.Counter
	PremiumDowngrade prometheus.Counter
}

// New registers every counter on a private registry, so several instances
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Swipes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "swipes_total",
			Help:      "Accepted swipes by kind.",
		}, []string{"kind"}),
		MatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "matches_created_total",
			Help:      "Matches materialized on reciprocal likes.",
		}),
		QuotaRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "quota_rejections_total",
			Help:      "Actions refused because a free-tier limit was reached.",
		}, []string{"resource"}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "messages_sent_total",
			Help:      "Messages persisted.",
		}),
		PremiumDowngrade: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matchmaking",
			Name:      "premium_downgrades_total",
			Help:      "Expired subscriptions cleared.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
