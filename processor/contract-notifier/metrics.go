package contractnotifier

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/contractnotify/notify"
	"github.com/c360studio/contractnotify/responsibility"
)

// Metrics are the Prometheus collectors of the notifier.
type Metrics struct {
	Runs               *prometheus.CounterVec
	Contracts          prometheus.Counter
	Resolutions        *prometheus.CounterVec
	ResolutionFailures prometheus.Counter
	Messages           *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by another instance are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractnotify_runs_total",
			Help: "Batch runs by result",
		}, []string{"result"}),
		Contracts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contractnotify_contracts_total",
			Help: "Contracts returned by the stored query",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractnotify_resolutions_total",
			Help: "Resolved responsibilities by reason",
		}, []string{"reason"}),
		ResolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contractnotify_resolution_failures_total",
			Help: "Contracts sent to the controller because resolution failed",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractnotify_messages_total",
			Help: "Composed letters by status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contractnotify_run_duration_seconds",
			Help:    "Duration of batch runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	m.Runs = register(reg, m.Runs)
	m.Contracts = register(reg, m.Contracts)
	m.Resolutions = register(reg, m.Resolutions)
	m.ResolutionFailures = register(reg, m.ResolutionFailures)
	m.Messages = register(reg, m.Messages)
	m.RunDuration = register(reg, m.RunDuration)
	return m
}

// register returns the collector already registered under the same name, if any.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observeRun(report *RunReport, took time.Duration) {
	m.Runs.WithLabelValues("ok").Inc()
	m.Contracts.Add(float64(report.Contracts))
	for reason, n := range report.Resolutions {
		m.Resolutions.WithLabelValues(reason).Add(float64(n))
	}
	m.ResolutionFailures.Add(float64(len(report.Failed)))
	for status, n := range report.Messages {
		m.Messages.WithLabelValues(string(status)).Add(float64(n))
	}
	m.RunDuration.Observe(took.Seconds())
}

func (m *Metrics) observeFailedRun(took time.Duration) {
	m.Runs.WithLabelValues("error").Inc()
	m.RunDuration.Observe(took.Seconds())
}

// resolutionCounts tallies the list by reason code.
func resolutionCounts(list *responsibility.List) map[string]int {
	counts := make(map[string]int)
	for _, g := range list.Groups() {
		for _, r := range g.Responsibilities {
			counts[r.Reason.String()]++
		}
	}
	return counts
}

// outcomes converts results to their serializable form.
func outcomes(results []notify.Result) []notify.Outcome {
	out := make([]notify.Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome()
	}
	return out
}
