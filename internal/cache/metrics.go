package cache

import "github.com/prometheus/client_golang/prometheus"

const (
	tierProcess = "process"
	tierContext = "context"

	resultHit  = "hit"
	resultMiss = "miss"
)

type metrics struct {
	lookups *prometheus.CounterVec
	imports prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archcheck",
			Name:      "cache_lookups_total",
			Help:      "Graph cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		imports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archcheck",
			Name:      "cache_imports_total",
			Help:      "Imports run because no cached graph was available.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.imports)
	}
	return m
}

func (m *metrics) lookup(tier string, hit bool) {
	result := resultMiss
	if hit {
		result = resultHit
	}
	m.lookups.WithLabelValues(tier, result).Inc()
}
