// Package metrics records run outcomes as Prometheus metrics, to be exported in the text exposition format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ubuntu/docsync/internal/dispatch"
)

const (
	labelKind   = "kind"
	labelStage  = "stage"
	labelResult = "result"

	resultSuccess = "success"
	resultFailure = "failure"

	// noKind labels outcomes of units which never got classified.
	noKind = "none"
)

// Recorder is an outcome observer backed by a Prometheus registry.
type Recorder struct {
	gatherer  prometheus.Gatherer
	outcomes  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New registers the docsync collectors on reg.
func New(reg *prometheus.Registry) *Recorder {
	return &Recorder{
		gatherer: reg,
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsync_outcomes_total",
				Help: "Tracks the number of processed input units.",
			}, []string{labelKind, labelStage, labelResult},
		),
		durations: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "docsync_dispatch_duration_seconds",
				Help: "Tracks the latencies of requests to the document store.",
				// Max of 10.24s, the default response timeout.
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			}, []string{labelKind},
		),
	}
}

// Observe records o. It is safe for concurrent use.
func (r *Recorder) Observe(o dispatch.Outcome) {
	kind := string(o.Kind)
	if kind == "" {
		kind = noKind
	}
	result := resultSuccess
	if !o.Success {
		result = resultFailure
	}

	r.outcomes.WithLabelValues(kind, string(o.Stage), result).Inc()
	if o.Stage == dispatch.StageDispatch {
		r.durations.WithLabelValues(kind).Observe(o.Duration.Seconds())
	}
}

// WriteToTextfile atomically writes every gathered metric to path, node exporter textfile collector style.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create metrics directory: %v", err)
	}
	if err := prometheus.WriteToTextfile(path, r.gatherer); err != nil {
		return fmt.Errorf("could not write metrics: %w", err)
	}
	return nil
}
