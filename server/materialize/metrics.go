package materialize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opMaterializeNew = "materialize_new"
	opRematerialize  = "rematerialize"
	opRemoveAll      = "remove_all"

	resultOK    = "ok"
	resultError = "error"
)

var (
	MaterializationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskcal_materializations_total",
			Help: "Total number of materializer operations",
		},
		[]string{"op", "result"},
	)

	InstancesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskcal_instances_written_total",
			Help: "Total number of event instances inserted into the event store",
		},
	)

	ExpansionOccurrences = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskcal_expansion_occurrences",
			Help:    "Number of occurrences produced per materialized task",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1 .. 1024
		},
	)
)

func track(op string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	MaterializationsTotal.WithLabelValues(op, result).Inc()
}
