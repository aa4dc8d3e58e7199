package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/miner"
	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tf_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	tfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tf_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	tfRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tf_rate_limited_total",
		Help: "Requests rejected by the per-IP rate limiter.",
	})

	tfTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tf_transactions_submitted_total",
		Help: "Transactions accepted into the pending pool, by whether the signature was verified on intake.",
	}, []string{"verified"})

	tfPendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tf_pending_transactions",
		Help: "Transactions waiting to be sealed.",
	})

	tfChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tf_chain_height",
		Help: "Number of blocks in the chain, including genesis.",
	})

	tfBlocksSealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tf_blocks_sealed_total",
		Help: "Total blocks sealed.",
	})

	tfSealedTransactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tf_sealed_transactions_total",
		Help: "Total transactions sealed into blocks.",
	})

	tfSealDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tf_seal_duration_seconds",
		Help:    "Wall time of a successful nonce search.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})

	tfSealAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tf_seal_attempts",
		Help:    "Nonces tried before a block met the difficulty target.",
		Buckets: prometheus.ExponentialBuckets(1, 8, 10),
	})

	tfSealJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tf_seal_jobs_total",
		Help: "Miner jobs by trigger and outcome.",
	}, []string{"trigger", "result"})

	tfAuditChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tf_audit_checks_total",
		Help: "Full-chain audits by result.",
	}, []string{"result"})

	tfAuditDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tf_audit_duration_seconds",
		Help:    "Wall time of a full-chain audit.",
		Buckets: prometheus.DefBuckets,
	})

	tfChainIntact = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tf_chain_intact",
		Help: "1 when the last audit found the chain valid, 0 otherwise.",
	})

	tfWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tf_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		tfRequestsTotal.WithLabelValues(method, path, status).Inc()
		tfRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSeal records a sealed block. Its signature matches
// trustledger.SealObserver.
func RecordSeal(b *trustledger.Block, attempts uint64, elapsed time.Duration) {
	tfBlocksSealedTotal.Inc()
	tfSealedTransactionsTotal.Add(float64(len(b.Transactions)))
	tfSealAttempts.Observe(float64(attempts))
	tfSealDuration.Observe(elapsed.Seconds())
	tfChainHeight.Set(float64(b.Index + 1))
}

// RecordSealJob records a finished miner job. Its signature matches
// miner.ResultRecordFunc.
func RecordSealJob(r miner.Result) {
	trigger := "manual"
	if r.Auto {
		trigger = "auto"
	}
	tfSealJobsTotal.WithLabelValues(trigger, sealResultLabel(r.Err)).Inc()
}

func sealResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, trustledger.ErrNoPendingTransactions):
		return "no_pending"
	case errors.Is(err, trustledger.ErrSealTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, miner.ErrStopped):
		return "canceled"
	default:
		return "error"
	}
}

// RecordTransaction records a transaction accepted into the pool.
func RecordTransaction(verified bool) {
	tfTransactionsTotal.WithLabelValues(strconv.FormatBool(verified)).Inc()
}

// SetPendingGauge sets the pending pool size gauge.
func SetPendingGauge(n int) {
	tfPendingTransactions.Set(float64(n))
}

// SetChainHeight sets the chain height gauge.
func SetChainHeight(n int) {
	tfChainHeight.Set(float64(n))
}

// RecordAudit records a full-chain audit. Its signature matches
// audit.MetricsRecordFunc.
func RecordAudit(valid bool, elapsed time.Duration) {
	if valid {
		tfAuditChecksTotal.WithLabelValues("valid").Inc()
		tfChainIntact.Set(1)
	} else {
		tfAuditChecksTotal.WithLabelValues("broken").Inc()
		tfChainIntact.Set(0)
	}
	tfAuditDuration.Observe(elapsed.Seconds())
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		tfWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		tfWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
