package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func registerDBMetrics(db *sql.DB, logger logrus.FieldLogger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sessions_open",
			Help: "Cash-box sessions currently open",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM cash_sessions WHERE NOT is_closed")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "meter_snapshots_last_hour",
			Help: "Meter snapshots recorded during the last hour",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM meter_snapshots WHERE taken_at > NOW() - INTERVAL '1 hour'")
		},
	))
}

func queryCount(db *sql.DB, logger logrus.FieldLogger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.WithError(err).Warn("metrics query failed")
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
