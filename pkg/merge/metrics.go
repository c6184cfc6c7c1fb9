package merge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/odvcencio/geogot/pkg/diff"
)

// Metrics counts scenario results. It is itself a Consumer so the engine
// can tee results into it.
type Metrics struct {
	Results   *prometheus.CounterVec
	Scenarios prometheus.Counter
}

// NewMetrics creates merge counters and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "merge", Name: "results_total",
			Help: "Merge scenario results by outcome.",
		}, []string{"outcome"}),
		Scenarios: f.NewCounter(prometheus.CounterOpts{
			Namespace: "geogot", Subsystem: "merge", Name: "scenarios_total",
			Help: "Merge scenarios run to completion.",
		}),
	}
}

func (m *Metrics) Conflicted(Conflict)     { m.Results.WithLabelValues("conflicted").Inc() }
func (m *Metrics) Unconflicted(diff.Entry) { m.Results.WithLabelValues("unconflicted").Inc() }
func (m *Metrics) Merged(FeatureInfo)      { m.Results.WithLabelValues("merged").Inc() }
func (m *Metrics) Finished()               { m.Scenarios.Inc() }
