// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsPoster/internal/domain"
)

// Recorder is the subset of metrics the pipeline stages report.
type Recorder interface {
	RecordIngested(count int)
	RecordIngestionFailure(source string)
	RecordAttempt()
	RecordCritique(verdict domain.Verdict, violated []domain.RuleID)
	RecordSession(outcome string)
	RecordSubmission()
	RecordDecision(decision domain.Decision)
	RecordAlreadyResolved()
	RecordPublish(target string, success bool)
}

// Session outcomes.
const (
	OutcomeVetted           = "vetted"
	OutcomeCriticRejected   = "critic_rejected"
	OutcomeGenerationFailed = "generation_failed"
)

// Collector records metrics into Prometheus.
type Collector struct {
	ingested        prometheus.Counter
	ingestFail      *prometheus.CounterVec
	attempts        prometheus.Counter
	critiques       *prometheus.CounterVec
	violations      *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	submissions     prometheus.Counter
	decisions       *prometheus.CounterVec
	alreadyResolved prometheus.Counter
	publishes       *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsposter_news_ingested_total",
			Help: "News items newly appended to the store.",
		}),
		ingestFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_ingestion_failures_total",
			Help: "Source fetches that failed.",
		}, []string{"source"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsposter_generation_attempts_total",
			Help: "Draft generation attempts.",
		}),
		critiques: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_critiques_total",
			Help: "Critique results by verdict.",
		}, []string{"verdict"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_rule_violations_total",
			Help: "Constitution rule violations by rule.",
		}, []string{"rule"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_sessions_total",
			Help: "Generation sessions by outcome.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsposter_approval_submissions_total",
			Help: "Drafts submitted for human review.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_approval_decisions_total",
			Help: "Reviewer actions by decision.",
		}, []string{"decision"}),
		alreadyResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsposter_approval_already_resolved_total",
			Help: "Reviewer actions that arrived after the draft was resolved.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsposter_publish_attempts_total",
			Help: "Publish attempts by target and result.",
		}, []string{"target", "result"}),
	}

	reg.MustRegister(
		c.ingested,
		c.ingestFail,
		c.attempts,
		c.critiques,
		c.violations,
		c.sessions,
		c.submissions,
		c.decisions,
		c.alreadyResolved,
		c.publishes,
	)

	return c
}

func (c *Collector) RecordIngested(count int) {
	c.ingested.Add(float64(count))
}

func (c *Collector) RecordIngestionFailure(source string) {
	c.ingestFail.WithLabelValues(source).Inc()
}

func (c *Collector) RecordAttempt() {
	c.attempts.Inc()
}

func (c *Collector) RecordCritique(verdict domain.Verdict, violated []domain.RuleID) {
	c.critiques.WithLabelValues(string(verdict)).Inc()
	for _, rule := range violated {
		c.violations.WithLabelValues(string(rule)).Inc()
	}
}

func (c *Collector) RecordSession(outcome string) {
	c.sessions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSubmission() {
	c.submissions.Inc()
}

func (c *Collector) RecordDecision(decision domain.Decision) {
	c.decisions.WithLabelValues(string(decision)).Inc()
}

func (c *Collector) RecordAlreadyResolved() {
	c.alreadyResolved.Inc()
}

func (c *Collector) RecordPublish(target string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.publishes.WithLabelValues(target, result).Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Discard drops every measurement.
type Discard struct{}

var _ Recorder = Discard{}

func (Discard) RecordIngested(int)                             {}
func (Discard) RecordIngestionFailure(string)                  {}
func (Discard) RecordAttempt()                                 {}
func (Discard) RecordCritique(domain.Verdict, []domain.RuleID) {}
func (Discard) RecordSession(string)                           {}
func (Discard) RecordSubmission()                              {}
func (Discard) RecordDecision(domain.Decision)                 {}
func (Discard) RecordAlreadyResolved()                         {}
func (Discard) RecordPublish(string, bool)                     {}
