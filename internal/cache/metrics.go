package cache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	flushes   prometheus.Counter
	discarded prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Reads served from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Reads that went to the store.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "cache",
			Name:      "flushes_total",
			Help:      "Full cache flushes triggered by mutations.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "cache",
			Name:      "discarded_fills_total",
			Help:      "Loads not stored because a flush happened while they ran.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.flushes, m.discarded)
	}
	return m
}
