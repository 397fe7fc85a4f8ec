package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "fuelsite_"

	resultSuccess    = "success"
	resultError      = "error"
	resultUnresolved = "unresolved"
)

var (
	registerOnce sync.Once

	sessionOpenedTotal   prometheus.Counter
	sessionClosedTotal   prometheus.Counter
	sessionConflictTotal prometheus.Counter
	sessionRepeatedClose prometheus.Counter

	reconciliationTotal   *prometheus.CounterVec
	reconciliationLatency *prometheus.HistogramVec

	meterAnomaliesTotal *prometheus.CounterVec

	outboxDeliveriesTotal *prometheus.CounterVec
)

// Init registers metrics and DB-backed gauges. It is safe to call more than once.
func Init(db *sql.DB, logger logrus.FieldLogger) {
	registerOnce.Do(func() {
		sessionOpenedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sessions_opened_total",
				Help: "Total cash-box sessions opened",
			},
		)
		sessionClosedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sessions_closed_total",
				Help: "Total cash-box sessions closed",
			},
		)
		sessionConflictTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_open_conflicts_total",
				Help: "Open attempts rejected because the day already had an open session",
			},
		)
		sessionRepeatedClose = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_repeated_close_total",
				Help: "Close calls on sessions that were already closed",
			},
		)

		reconciliationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_total",
				Help: "Total reconciliation requests by mode and result",
			},
			[]string{"mode", "result"},
		)
		reconciliationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_latency_seconds",
				Help:    "Reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)

		meterAnomaliesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "meter_anomalies_total",
				Help: "Nozzle rows left blank by reconciliation, by kind",
			},
			[]string{"kind"},
		)

		outboxDeliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_deliveries_total",
				Help: "Outbox delivery attempts by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			sessionOpenedTotal,
			sessionClosedTotal,
			sessionConflictTotal,
			sessionRepeatedClose,
			reconciliationTotal,
			reconciliationLatency,
			meterAnomaliesTotal,
			outboxDeliveriesTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncSessionOpened increments the opened session counter.
func IncSessionOpened() {
	if sessionOpenedTotal != nil {
		sessionOpenedTotal.Inc()
	}
}

// IncSessionClosed increments the closed session counter.
func IncSessionClosed() {
	if sessionClosedTotal != nil {
		sessionClosedTotal.Inc()
	}
}

// IncSessionConflict increments the open conflict counter.
func IncSessionConflict() {
	if sessionConflictTotal != nil {
		sessionConflictTotal.Inc()
	}
}

// IncSessionCloseRepeated increments the repeated close counter.
func IncSessionCloseRepeated() {
	if sessionRepeatedClose != nil {
		sessionRepeatedClose.Inc()
	}
}

// ObserveReconciliation records reconciliation latency and result.
func ObserveReconciliation(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "final"
	}
	if result == "" {
		result = resultSuccess
	}
	if reconciliationTotal != nil {
		reconciliationTotal.WithLabelValues(mode, result).Inc()
	}
	if reconciliationLatency != nil {
		reconciliationLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// IncMeterAnomaly increments the anomaly counter.
func IncMeterAnomaly(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if meterAnomaliesTotal != nil {
		meterAnomaliesTotal.WithLabelValues(kind).Inc()
	}
}

// IncOutboxDelivery counts one outbox delivery attempt.
func IncOutboxDelivery(result string) {
	if result == "" {
		result = resultSuccess
	}
	if outboxDeliveriesTotal != nil {
		outboxDeliveriesTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess    = resultSuccess
	ResultError      = resultError
	ResultUnresolved = resultUnresolved
)
