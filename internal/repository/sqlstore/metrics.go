package sqlstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "clanstore"

// Metrics holds the store's Prometheus collectors. It also serves as the
// cache observer for the entity caches.
type Metrics struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	reconnects     prometheus.Counter
	kills          prometheus.Counter
	fatal          *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Entity cache hits by kind.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Entity cache misses by kind.",
		}, []string{"kind"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted from a full entity cache by kind.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "reconnects_total",
			Help:      "Database connections re-established after a loss.",
		}),
		kills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "kills_total",
			Help:      "Database connections force-closed.",
		}),
		fatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "fatal_errors_total",
			Help:      "Fatal database errors by operation.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "operation_duration_seconds",
			Help:      "Time spent holding the database connection per operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.cacheHits, m.cacheMisses, m.cacheEvictions,
			m.reconnects, m.kills, m.fatal, m.duration)
	}
	return m
}

// Hit implements cache.Observer
func (m *Metrics) Hit(kind string) { m.cacheHits.WithLabelValues(kind).Inc() }

// Miss implements cache.Observer
func (m *Metrics) Miss(kind string) { m.cacheMisses.WithLabelValues(kind).Inc() }

// Evict implements cache.Observer
func (m *Metrics) Evict(kind string) { m.cacheEvictions.WithLabelValues(kind).Inc() }

func (m *Metrics) observe(op string, start time.Time) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
