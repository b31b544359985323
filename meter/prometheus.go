package meter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/sentimentgate"
)

// Result outcomes reported by PrometheusMeter.
const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// PrometheusMeter exports pipeline events as Prometheus metrics. Accounts are
// not used as labels.
type PrometheusMeter struct {
	issued      *prometheus.CounterVec
	invocations *prometheus.CounterVec
	results     *prometheus.CounterVec
	sentiments  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ sentimentgate.Meter = (*PrometheusMeter)(nil)

// NewPrometheusMeter creates the metrics and registers them with reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewPrometheusMeter(reg prometheus.Registerer) (*PrometheusMeter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMeter{
		issued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimentgate_upload_targets_issued_total",
				Help: "Upload targets issued, by file extension.",
			},
			[]string{"extension"},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimentgate_engine_invocations_total",
				Help: "Inference engine calls started, by engine.",
			},
			[]string{"engine"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimentgate_engine_results_total",
				Help: "Inference outcomes, by engine and outcome (committed, conflict, error).",
			},
			[]string{"engine", "outcome"},
		),
		sentiments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimentgate_overall_sentiment_total",
				Help: "Overall sentiment of returned analyses.",
			},
			[]string{"sentiment"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentimentgate_engine_duration_seconds",
				Help:    "Inference engine call duration, by engine.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"engine"},
		),
	}

	for _, c := range []prometheus.Collector{m.issued, m.invocations, m.results, m.sentiments, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMeter) OnIssue(e sentimentgate.IssueEvent) {
	m.issued.WithLabelValues(e.Extension).Inc()
}

func (m *PrometheusMeter) OnInvoke(e sentimentgate.InvokeEvent) {
	m.invocations.WithLabelValues(e.Engine).Inc()
}

func (m *PrometheusMeter) OnResult(e sentimentgate.ResultEvent) {
	m.duration.WithLabelValues(e.Engine).Observe(e.Duration.Seconds())

	outcome := OutcomeError
	switch {
	case e.Conflict:
		outcome = OutcomeConflict
	case e.Success && e.Committed:
		outcome = OutcomeCommitted
	}
	m.results.WithLabelValues(e.Engine, outcome).Inc()

	if e.Success && e.Sentiment != "" {
		m.sentiments.WithLabelValues(e.Sentiment).Inc()
	}
}
