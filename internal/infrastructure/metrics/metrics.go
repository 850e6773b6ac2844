package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// Metrics holds all Prometheus metrics and implements usecase.MetricsSink.
type Metrics struct {
	// Account metrics
	AccountsCreated prometheus.Counter
	AccountCount    prometheus.Gauge

	// Transaction metrics
	Transactions      *prometheus.CounterVec
	TransactionAmount *prometheus.HistogramVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsProcessed *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
	EventDuration   *prometheus.HistogramVec

	// Lock metrics
	LockAcquisitions *prometheus.CounterVec
	LeaseExpirations *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var _ usecase.MetricsSink = (*Metrics)(nil)

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Account metrics
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "bankledger_accounts",
			Help: "Number of accounts in the ledger",
		}),

		// Transaction metrics
		Transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_transactions_total",
				Help: "Total transaction rows recorded by type",
			},
			[]string{"type"},
		),
		TransactionAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_transaction_amount",
				Help:    "Distribution of transaction amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"type"},
		),

		// Event metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_events_published_total",
				Help: "Domain events accepted for delivery",
			},
			[]string{"event_type"},
		),
		EventsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_events_processed_total",
				Help: "Domain events applied to read views",
			},
			[]string{"event_type"},
		),
		EventsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_events_failed_total",
				Help: "Domain events whose delivery failed after retries",
			},
			[]string{"event_type"},
		),
		EventDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_event_processing_seconds",
				Help:    "Time spent applying an event to read views",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		// Lock metrics
		LockAcquisitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_lock_acquisitions_total",
				Help: "Lock acquisition attempts by scope and result",
			},
			[]string{"scope", "result"},
		),
		LeaseExpirations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_lock_lease_expired_total",
				Help: "Locks whose lease ran out while held",
			},
			[]string{"scope"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) AccountCreated() {
	m.AccountsCreated.Inc()
}

func (m *Metrics) SetAccountCount(count int64) {
	m.AccountCount.Set(float64(count))
}

func (m *Metrics) TransactionRecorded(txType domain.TransactionType, amount decimal.Decimal) {
	m.Transactions.WithLabelValues(string(txType)).Inc()
	m.TransactionAmount.WithLabelValues(string(txType)).Observe(amount.InexactFloat64())
}

func (m *Metrics) EventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventProcessed(eventType string, took time.Duration) {
	m.EventsProcessed.WithLabelValues(eventType).Inc()
	m.EventDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func (m *Metrics) EventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) LockAcquired(scope string) {
	m.LockAcquisitions.WithLabelValues(scope, "success").Inc()
}

func (m *Metrics) LockFailed(scope string) {
	m.LockAcquisitions.WithLabelValues(scope, "failure").Inc()
}

func (m *Metrics) LeaseExpired(scope string) {
	m.LeaseExpirations.WithLabelValues(scope).Inc()
}
