package object

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts store traffic. A nil *Metrics records nothing.
type Metrics struct {
	Writes    prometheus.Counter
	DedupHits prometheus.Counter
	Reads     prometheus.Counter
	CacheHits prometheus.Counter
	Deletes   prometheus.Counter
}

// NewMetrics creates store counters and registers them with reg. A nil
// registerer leaves the counters unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Writes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "objects", Name: "writes_total",
			Help: "Objects written to the backend.",
		}),
		DedupHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "objects", Name: "dedup_hits_total",
			Help: "Puts that found the object already stored.",
		}),
		Reads: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "objects", Name: "reads_total",
			Help: "Objects read from the backend.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "objects", Name: "cache_hits_total",
			Help: "Gets served from the decoded-object cache.",
		}),
		Deletes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "objects", Name: "deletes_total",
			Help: "Objects deleted by pruning.",
		}),
	}
}

func (m *Metrics) incWrites() {
	if m != nil {
		m.Writes.Inc()
	}
}

func (m *Metrics) incDedupHits() {
	if m != nil {
		m.DedupHits.Inc()
	}
}

func (m *Metrics) incReads() {
	if m != nil {
		m.Reads.Inc()
	}
}

func (m *Metrics) incCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) incDeletes() {
	if m != nil {
		m.Deletes.Inc()
	}
}
