package metrics

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/entity"
)

// Metrics implements port.Metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	decisionsTotal     *prometheus.CounterVec
	conflictsTotal     *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenso_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expenso_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenso_approval_decisions_total",
				Help: "Approval decisions by action and resulting expense status",
			},
			[]string{"action", "outcome"},
		),
		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenso_approval_conflicts_total",
				Help: "Decisions refused because the row was missing or already processed",
			},
			[]string{"action"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenso_expense_submissions_total",
				Help: "Expense submissions by the type of the matched rule",
			},
			[]string{"rule_type"},
		),
	}

	m.registry.MustRegister(
		m.apiRequestsTotal,
		m.apiRequestDuration,
		m.decisionsTotal,
		m.conflictsTotal,
		m.submissionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterDB exposes connection pool statistics of db
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		return fmt.Errorf("failed to register db stats: %w", err)
	}
	return nil
}

// Handler returns the Prometheus scrape handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordAPIRequest records one HTTP request
func (m *Metrics) RecordAPIRequest(method, path string, status int, seconds float64) {
	m.apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.apiRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// ObserveDecision implements port.Metrics
func (m *Metrics) ObserveDecision(action entity.ApprovalAction, outcome entity.ExpenseStatus) {
	m.decisionsTotal.WithLabelValues(string(action), string(outcome)).Inc()
}

// ObserveConflict implements port.Metrics
func (m *Metrics) ObserveConflict(action entity.ApprovalAction) {
	m.conflictsTotal.WithLabelValues(string(action)).Inc()
}

// ObserveSubmission implements port.Metrics; ruleType is empty when no rule matched
func (m *Metrics) ObserveSubmission(ruleType string) {
	if ruleType == "" {
		ruleType = "none"
	}
	m.submissionsTotal.WithLabelValues(ruleType).Inc()
}

var _ port.Metrics = (*Metrics)(nil)
