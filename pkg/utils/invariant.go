// Invariants are conditions in code that must be true; otherwise, there is a bug in code.
// Think of what you'd `panic()` on, but you don't want to take the whole server down because of it. When an invariant
// is violated, an error is logged and the `invariants_total` counter is incremented so that it can trigger an alert.
// It is still up to the caller to handle the erroneous case, e.g. by returning early.
//
// Do not use invariants for conditions that depend on external input; a client sending an out of range index is not
// an invariant violation. A list whose back-references disagree with its forward chain is.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant records a violated invariant. In test mode builds it panics.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetMetricValue returns the current value of invariant metric with labels `module` and `invariantType`.
func GetMetricValue(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(metric.Counter.GetValue())
}
