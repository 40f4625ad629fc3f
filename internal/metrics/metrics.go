// Package metrics exposes the wallet's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"drivekr-wallet-backend/internal/domain"
)

const namespace = "drivekr_wallet"

// Collector implements service.MetricsCollector.
type Collector struct {
	operationDuration *prometheus.HistogramVec
	operationResults  *prometheus.CounterVec
	transactionVolume *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

// NewCollector registers the instruments with reg. Pass prometheus.DefaultRegisterer to
// serve them from promhttp.Handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of ledger and verification operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Ledger and verification operations by result.",
			},
			[]string{"operation", "result"}, // result: "success" or a domain error code
		),
		transactionVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_volume_rupees_total",
				Help:      "Money moved by settled or approved transactions.",
			},
			[]string{"type"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification delivery attempts by channel and outcome.",
			},
			[]string{"channel", "status"},
		),
	}
}

func (c *Collector) RecordOperationDuration(operation string, duration time.Duration) {
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordOperationResult(operation, result string) {
	c.operationResults.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordTransactionVolume(txType domain.TransactionType, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	c.transactionVolume.WithLabelValues(string(txType)).Add(amount.InexactFloat64())
}

func (c *Collector) RecordNotification(channel string, status domain.NotificationStatus) {
	c.notifications.WithLabelValues(channel, string(status)).Inc()
}
