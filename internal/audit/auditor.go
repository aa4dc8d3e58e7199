// Package audit periodically re-validates the ledger and publishes the verdict.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/omega-cyber/trust-fabric/internal/trustledger"
	"go.uber.org/zap"
)

// Validator is the subset of trustledger.Ledger the auditor needs.
type Validator interface {
	Validate(ctx context.Context) trustledger.ValidationReport
}

// Config holds audit configuration.
type Config struct {
	Interval time.Duration
}

// MetricsRecordFunc is an optional callback for every audit result.
type MetricsRecordFunc func(valid bool, elapsed time.Duration)

// StatusFunc is an optional callback fired when the chain changes between
// intact and broken, and once for the first audit.
type StatusFunc func(intact bool)

// Auditor runs chain validation on a fixed interval.
type Auditor struct {
	validator Validator
	cfg       Config
	onMetrics MetricsRecordFunc
	onStatus  StatusFunc
	logger    *zap.Logger

	mu      sync.RWMutex
	last    *trustledger.ValidationReport
	checked time.Time
	started bool
	done    chan struct{}
}

// New creates an Auditor. A zero Interval defaults to one minute.
func New(v Validator, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{validator: v, cfg: cfg, logger: logger, done: make(chan struct{})}
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// SetStatusFunc configures the intact/broken transition callback.
func (a *Auditor) SetStatusFunc(fn StatusFunc) {
	a.onStatus = fn
}

// Start audits once immediately, then on every tick until ctx is cancelled.
// Only the first call runs; later calls return at once.
func (a *Auditor) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()
	defer close(a.done)

	a.CheckOnce(ctx)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.CheckOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed once Start has returned. No callback fires after that.
func (a *Auditor) Done() <-chan struct{} { return a.done }

// CheckOnce validates the chain, records the outcome and returns the report.
func (a *Auditor) CheckOnce(ctx context.Context) trustledger.ValidationReport {
	start := time.Now()
	report := a.validator.Validate(ctx)
	elapsed := time.Since(start)

	if a.onMetrics != nil {
		a.onMetrics(report.Valid, elapsed)
	}

	a.mu.Lock()
	prev := a.last
	a.last = &report
	a.checked = time.Now().UTC()
	a.mu.Unlock()

	changed := prev == nil || prev.Valid != report.Valid
	switch {
	case !report.Valid && changed:
		a.logger.Error("audit: chain integrity broken",
			zap.Int("block", report.First.BlockIndex),
			zap.String("check", string(report.First.Check)),
			zap.String("detail", report.First.Detail),
			zap.Int("failures", len(report.Failures)),
		)
	case report.Valid && prev != nil && changed:
		a.logger.Info("audit: chain integrity restored", zap.Int("blocks", report.BlocksChecked))
	default:
		a.logger.Debug("audit: chain checked",
			zap.Bool("valid", report.Valid),
			zap.Int("blocks", report.BlocksChecked),
			zap.Duration("elapsed", elapsed),
		)
	}

	if changed && a.onStatus != nil {
		a.onStatus(report.Valid)
	}
	return report
}

// Last returns the most recent report and when it was taken.
// ok is false before the first audit.
func (a *Auditor) Last() (report trustledger.ValidationReport, at time.Time, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return trustledger.ValidationReport{}, time.Time{}, false
	}
	return *a.last, a.checked, true
}
