// Package metrics implements the engine's metrics sink on prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// Recorder counts one sample per mutation attempt, labelled by operation,
// outcome and semantic code. Replay and mismatch outcomes carry their own
// codes so they count distinctly from fresh successes and other failures.
type Recorder struct {
	operations *prometheus.CounterVec
}

// NewRecorder registers the counters on the given registerer (use
// prometheus.DefaultRegisterer in main).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "Mutation attempts by operation, outcome and semantic code.",
		}, []string{"operation", "ok", "code"}),
	}
}

func (r *Recorder) RecordOperation(kind domain.OpKind, ok bool, code domain.Code) {
	okLabel := "false"
	if ok {
		okLabel = "true"
	}
	r.operations.WithLabelValues(string(kind), okLabel, string(code)).Inc()
}
