package slab

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the counters a Directory exposes via Collectors(). Using
// prometheus types directly (rather than plain atomics) lets a caller
// register them with its own registry, the pattern danielino-comio and
// nmxmxh/inos_v1 use for allocator/storage instrumentation in the pack.
type metrics struct {
	allocs     prometheus.Counter
	frees      prometheus.Counter
	oom        prometheus.Counter
	cacheCount prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		allocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slaballoc",
			Name:      "allocs_total",
			Help:      "Total number of objects successfully allocated.",
		}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slaballoc",
			Name:      "frees_total",
			Help:      "Total number of objects freed.",
		}),
		oom: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slaballoc",
			Name:      "oom_total",
			Help:      "Total number of allocations that failed because the buddy allocator had no room.",
		}),
		cacheCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slaballoc",
			Name:      "caches_created_total",
			Help:      "Total number of size-class caches created.",
		}),
	}
}

// Collectors returns the directory's metrics for registration with a
// prometheus.Registerer.
func (d *Directory) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		d.metrics.allocs,
		d.metrics.frees,
		d.metrics.oom,
		d.metrics.cacheCount,
	}
}
