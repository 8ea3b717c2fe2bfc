package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "callscope"

type metrics struct {
	sessionsOpened prometheus.Counter
	eventsIngested *prometheus.CounterVec
	tracesArchived prometheus.Counter
	liveDropped    prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	windowLatency  prometheus.Histogram
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_opened_total",
			Help:      "Number of live recording sessions opened",
		}),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_ingested_total",
			Help:      "Number of call events applied to session traces",
		}, []string{"type"}),
		tracesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "traces_archived_total",
			Help:      "Number of traces persisted to the archive",
		}),
		liveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "live_events_dropped_total",
			Help:      "Number of live notifications dropped on slow subscribers",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trace_cache_hits_total",
			Help:      "Number of trace lookups served from the in-memory cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trace_cache_misses_total",
			Help:      "Number of trace lookups that went to the archive",
		}),
		windowLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "frame_window_seconds",
			Help:      "Latency of visible frame window queries",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}

	reg.MustRegister(
		m.sessionsOpened,
		m.eventsIngested,
		m.tracesArchived,
		m.liveDropped,
		m.cacheHits,
		m.cacheMisses,
		m.windowLatency,
	)
	return m
}
