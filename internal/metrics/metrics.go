// Package metrics exposes Prometheus collectors for scraping sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scraper"

// Metrics groups the collectors the scraper updates. A nil *Metrics is
// valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	Challenges      prometheus.Counter
	ItemsExtracted  *prometheus.CounterVec
	Comments        prometheus.Counter
	HarvestWarnings *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_attempts_total",
			Help:      "Search attempts by outcome.",
		}, []string{"outcome"}),
		Challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Challenge pages detected.",
		}),
		ItemsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_extracted_total",
			Help:      "Items emitted by the extraction chain, by winning strategy.",
		}, []string{"strategy"}),
		Comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_harvested_total",
			Help:      "Normalized comments kept by the harvester.",
		}),
		HarvestWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_warnings_total",
			Help:      "Degraded harvest steps.",
		}, []string{"step"}),
		SessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time of search invocations.",
			Buckets:   []float64{5, 10, 20, 40, 80, 160, 320, 640},
		}, []string{"mode"}),
	}
	reg.MustRegister(m.Attempts, m.Challenges, m.ItemsExtracted, m.Comments, m.HarvestWarnings, m.SessionDuration)
	return m
}

// Attempt records the outcome of one search attempt.
func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

// Challenge records a detected challenge page.
func (m *Metrics) Challenge() {
	if m == nil {
		return
	}
	m.Challenges.Inc()
}

// Extracted records n items emitted by strategy.
func (m *Metrics) Extracted(strategy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ItemsExtracted.WithLabelValues(strategy).Add(float64(n))
}

// Harvested records kept comments and the steps that degraded.
func (m *Metrics) Harvested(comments int, degradedSteps []string) {
	if m == nil {
		return
	}
	m.Comments.Add(float64(comments))
	for _, step := range degradedSteps {
		m.HarvestWarnings.WithLabelValues(step).Inc()
	}
}

// ObserveSession records the duration of an invocation in seconds.
func (m *Metrics) ObserveSession(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.SessionDuration.WithLabelValues(mode).Observe(seconds)
}
