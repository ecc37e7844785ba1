package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"picturereader/internal/recognition"
)

var (
	once sync.Once

	// CompletionsTotal counts finished capability calls by outcome. Applied is
	// "false" for calls whose result was dropped by a newer submission, a reset
	// or shutdown.
	CompletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picturereader",
		Subsystem: "recognition",
		Name:      "completions_total",
		Help:      "Total number of finished recognition calls, labeled by state, reason and whether the result was applied.",
	}, []string{"state", "reason", "applied"})

	// DurationSeconds is the capability call latency.
	DurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "picturereader",
		Subsystem: "recognition",
		Name:      "duration_seconds",
		Help:      "Time spent in the recognition provider per call.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"state"})

	// JobsProcessedTotal counts worker tasks by result.
	JobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "picturereader",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Total number of recognition jobs processed by the worker, labeled by result.",
	}, []string{"result"})
)

// Register registers the metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CompletionsTotal,
			DurationSeconds,
			JobsProcessedTotal,
		)
	})
}

// ObserveCompletion is a recognition completion hook.
func ObserveCompletion(c recognition.Completion) {
	reason := ""
	if e, ok := c.State.(recognition.Error); ok {
		reason = e.Reason.String()
	}
	applied := "false"
	if c.Applied {
		applied = "true"
	}
	state := c.State.Kind().String()
	CompletionsTotal.WithLabelValues(state, reason, applied).Inc()
	DurationSeconds.WithLabelValues(state).Observe(c.Duration.Seconds())
}
